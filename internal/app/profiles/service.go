// Package profiles owns read-modify-write access to user profiles.
package profiles

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/PabloGalante/farum-triage/internal/app/keylock"
	"github.com/PabloGalante/farum-triage/internal/domain"
)

// Service serializes profile updates per user so concurrent feedback and
// turns for the same user never lose a write.
type Service struct {
	store domain.ProfileStore
	locks *keylock.Map
	now   domain.Clock
}

func NewService(store domain.ProfileStore, now domain.Clock) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, locks: keylock.New(), now: now}
}

// Get returns the stored profile, or a fresh default one (not persisted)
// when the user has none yet.
func (s *Service) Get(ctx context.Context, id domain.UserID) (*domain.UserProfile, error) {
	p, err := s.store.GetProfile(ctx, id)
	if errors.Is(err, domain.ErrProfileNotFound) {
		return domain.NewUserProfile(id, s.now()), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// Update loads the profile (creating it if needed), applies fn to a copy and
// stores the result. If fn returns an error nothing is written.
func (s *Service) Update(ctx context.Context, id domain.UserID, fn func(*domain.UserProfile) error) (*domain.UserProfile, error) {
	release, err := s.locks.Acquire(ctx, string(id))
	if err != nil {
		return nil, err
	}
	defer release()

	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next.UpdatedAt = s.now()
	if err := s.store.PutProfile(ctx, next); err != nil {
		return nil, fmt.Errorf("put profile: %w", err)
	}
	return next, nil
}
