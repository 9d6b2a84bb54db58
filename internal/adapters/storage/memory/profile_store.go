package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/PabloGalante/farum-triage/internal/domain"
)

// ProfileStore is the in-memory ProfileStore. Profiles are copied on the way
// in and out, so callers never share state with the store.
type ProfileStore struct {
	mu       sync.RWMutex
	profiles map[domain.UserID]*domain.UserProfile
}

func NewProfileStore() *ProfileStore {
	return &ProfileStore{
		profiles: make(map[domain.UserID]*domain.UserProfile),
	}
}

func (s *ProfileStore) GetProfile(_ context.Context, id domain.UserID) (*domain.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[id]
	if !ok {
		return nil, domain.ErrProfileNotFound
	}
	return p.Clone(), nil
}

func (s *ProfileStore) PutProfile(_ context.Context, profile *domain.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.profiles[profile.ID] = profile.Clone()
	return nil
}

func (s *ProfileStore) DeleteProfile(_ context.Context, id domain.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[id]; !ok {
		return domain.ErrProfileNotFound
	}
	delete(s.profiles, id)
	return nil
}

// All returns copies of every profile, ordered by ID.
func (s *ProfileStore) All() []*domain.UserProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.UserProfile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Replace swaps the whole profile set, as when restoring a snapshot.
func (s *ProfileStore) Replace(profiles []*domain.UserProfile) {
	next := make(map[domain.UserID]*domain.UserProfile, len(profiles))
	for _, p := range profiles {
		next[p.ID] = p.Clone()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles = next
}
