// Package feedback is the write path for intervention outcomes.
package feedback

import (
	"context"
	"fmt"
	"time"

	"github.com/PabloGalante/farum-triage/internal/app/profiles"
	"github.com/PabloGalante/farum-triage/internal/domain"
	"github.com/PabloGalante/farum-triage/internal/lexicon"
	"github.com/PabloGalante/farum-triage/internal/observability"
)

// Service records outcomes into the user's profile and the global aggregate.
// It is the only code that changes effectiveness records.
type Service struct {
	profiles *profiles.Service
	global   domain.EffectivenessStore
	lexicon  lexicon.Provider
	metrics  *observability.Metrics
	now      domain.Clock
}

func NewService(p *profiles.Service, global domain.EffectivenessStore, lex lexicon.Provider, m *observability.Metrics, now domain.Clock) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{profiles: p, global: global, lexicon: lex, metrics: m, now: now}
}

// RecordOutcome folds one outcome into the per-user and global records.
// rating must be in [1, domain.MaxRating] and key must name a catalog entry.
func (s *Service) RecordOutcome(ctx context.Context, userID domain.UserID, key domain.InterventionKey, success bool, rating float64) error {
	log := observability.LoggerFromContext(ctx).With("user_id", string(userID), "intervention", string(key))

	if _, ok := s.lexicon.Current().Intervention(key); !ok {
		return fmt.Errorf("%w: %q", domain.ErrUnknownIntervention, key)
	}
	if rating < 1 || rating > domain.MaxRating {
		return fmt.Errorf("%w: %.1f not in [1,%.0f]", domain.ErrInvalidRating, rating, domain.MaxRating)
	}

	outcome := domain.Outcome{Success: success, Rating: rating, At: s.now()}

	_, err := s.profiles.Update(ctx, userID, func(p *domain.UserProfile) error {
		p.Effectiveness[key] = p.Record(key).Apply(outcome)
		return nil
	})
	if err != nil {
		log.Error("failed to record personal outcome", "error", err)
		return fmt.Errorf("record personal outcome: %w", err)
	}

	if err := s.global.AddGlobalOutcome(ctx, key, outcome); err != nil {
		log.Error("failed to record global outcome", "error", err)
		return fmt.Errorf("record global outcome: %w", err)
	}

	s.metrics.ObserveFeedback(success)
	log.Info("feedback recorded", "success", success, "rating", rating)
	return nil
}
