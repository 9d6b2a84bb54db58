package conversation

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/PabloGalante/farum-triage/internal/app/analysis"
	"github.com/PabloGalante/farum-triage/internal/app/compose"
	"github.com/PabloGalante/farum-triage/internal/app/crisis"
	"github.com/PabloGalante/farum-triage/internal/app/flow"
	"github.com/PabloGalante/farum-triage/internal/app/selection"
	"github.com/PabloGalante/farum-triage/internal/domain"
	"github.com/PabloGalante/farum-triage/internal/observability"
)

// Vitals are optional physiological readings sent with a turn.
type Vitals struct {
	HeartRate float64 `json:"heart_rate,omitempty"`
}

type TurnInput struct {
	SessionID domain.SessionID // a new session is opened when empty or unknown
	UserID    domain.UserID
	Text      string

	Preferences     *PreferencesPatch
	Vitals          *Vitals
	CulturalContext string
}

// HandleTurn runs one message through analysis, crisis detection, flow,
// selection and composition, and persists the result.
//
// Only caller errors are returned (missing user, session owned by someone
// else). Internal failures are logged. A crisis turn still answers with the
// crisis protocol; any other turn gets the generic fallback and leaves the
// stored session untouched.
func (s *Service) HandleTurn(ctx context.Context, in TurnInput) (domain.Response, error) {
	started := time.Now()
	if in.UserID == "" {
		return nil, domain.ErrUserRequired
	}
	if in.SessionID == "" {
		in.SessionID = domain.SessionID(s.newID())
	}

	ctx, span := observability.StartSpan(ctx, "conversation.turn")
	defer span.End()

	log := observability.LoggerFromContext(ctx).With(
		"session_id", string(in.SessionID),
		"user_id", string(in.UserID),
	)

	release, err := s.locks.Acquire(ctx, string(in.SessionID))
	if err != nil {
		return nil, err
	}
	defer release()

	// One lexicon snapshot for the whole turn, even if a reload lands mid-way.
	t := s.lexicon.Current()
	comp := compose.New(t)
	fm := flow.New(t)
	now := s.now()

	markFailed := func(err error) {
		log.Error("turn failed", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "internal failure")
	}
	fail := func(info domain.SessionInfo, err error) (domain.Response, error) {
		markFailed(err)
		resp := comp.Fallback(in.SessionID, domain.FallbackInternal, info)
		s.finishTurn(span, resp, started)
		return resp, nil
	}

	session, isNew, loadErr := s.loadSession(ctx, in.SessionID, in.UserID, now)
	if errors.Is(loadErr, domain.ErrSessionOwnership) {
		log.Warn("session owned by another user")
		return nil, loadErr
	}
	if loadErr != nil {
		// Keep going on a fresh context so a crisis can still be answered.
		// It is never written back over the unreadable stored session.
		loadErr = fmt.Errorf("load session: %w", loadErr)
		session = domain.NewSessionContext(in.SessionID, in.UserID, now)
	}

	// info as stored, reported when the turn cannot complete
	base := session.Info(now)

	if strings.TrimSpace(in.Text) == "" {
		if loadErr != nil {
			return fail(domain.SessionInfo{}, loadErr)
		}
		resp := comp.Fallback(in.SessionID, domain.FallbackEmptyInput, base)
		s.finishTurn(span, resp, started)
		return resp, nil
	}

	_, stage := observability.StartSpan(ctx, "conversation.analyze")
	a := analysis.Analyze(in.Text, session, t)
	if in.Vitals != nil && in.Vitals.HeartRate >= s.arousalHeartRate &&
		!slices.Contains(a.RiskFactors, RiskPhysiologicalArousal) {
		a.RiskFactors = append(a.RiskFactors, RiskPhysiologicalArousal)
	}
	ca := crisis.Detect(in.Text, a, t)
	stage.SetAttributes(
		attribute.Int("severity", a.Severity),
		attribute.Bool("crisis", ca.IsCrisis),
	)
	stage.End()

	patch := turnPatch(in)

	if ca.IsCrisis {
		// Crisis replaces the personalized pipeline: no stage move, no selection.
		fm.Observe(session, a, now)
		fm.RatchetCrisis(session, ca, now)
		ev := session.CrisisEvents[len(session.CrisisEvents)-1]

		resp := comp.Crisis(session.ID, a, ca, domain.SessionInfo{})
		s.metrics.ObserveCrisis(string(ca.Type))
		log.Warn("crisis detected",
			"type", string(ca.Type),
			"severity", ca.Severity,
			"crisis_level", session.CrisisLevel,
		)

		// Persistence problems never replace the crisis protocol.
		if loadErr != nil {
			markFailed(loadErr)
		} else {
			if err := s.recordProgress(ctx, in.UserID, patch, isNew, &ev, now); err != nil {
				markFailed(err)
			}
			if err := s.sessions.PutSession(ctx, session); err != nil {
				markFailed(fmt.Errorf("store session: %w", err))
			} else {
				s.appendTranscript(ctx, session, in.Text, resp, now)
			}
		}

		resp.SessionInfo = session.Info(now)
		s.finishTurn(span, resp, started)
		return resp, nil
	}

	if loadErr != nil {
		return fail(domain.SessionInfo{}, loadErr)
	}

	profile, err := s.turnProfile(ctx, in.UserID, patch)
	if err != nil {
		return fail(base, fmt.Errorf("load profile: %w", err))
	}

	tr := fm.Advance(session, in.Text, a, now)

	global, err := s.global.GlobalEffectiveness(ctx)
	if err != nil {
		return fail(base, fmt.Errorf("load global effectiveness: %w", err))
	}

	_, stage = observability.StartSpan(ctx, "conversation.select")
	rec := selection.Select(selection.Input{
		Text:     in.Text,
		Analysis: a,
		Profile:  profile,
		Session:  session,
		Global:   global,
	}, t)
	stage.SetAttributes(attribute.String("intervention", string(rec.Top().Intervention.Key)))
	stage.End()

	resp, err := comp.Standard(compose.StandardInput{
		SessionID:      session.ID,
		Analysis:       a,
		Recommendation: rec,
		Style:          profile.Preferences.Style,
		Stage:          session.Flow.Stage,
	})
	if err != nil {
		return fail(base, err)
	}
	fm.RecordTechniques(session, resp.Techniques)

	rejected := make([]string, 0, len(rec.Rejected))
	for _, r := range rec.Rejected {
		rejected = append(rejected, string(r.Key))
	}
	s.metrics.ObserveSelection(string(rec.Top().Intervention.Key), rejected)

	log.Info("turn analyzed",
		"stage_from", string(tr.From),
		"stage_to", string(tr.To),
		"severity", a.Severity,
		"intervention", string(rec.Top().Intervention.Key),
		"rejected", len(rejected),
	)

	// preferences were applied by turnProfile
	if err := s.recordProgress(ctx, in.UserID, PreferencesPatch{}, isNew, nil, now); err != nil {
		return fail(base, err)
	}
	if err := s.sessions.PutSession(ctx, session); err != nil {
		return fail(base, fmt.Errorf("store session: %w", err))
	}

	resp.SessionInfo = session.Info(now)
	s.appendTranscript(ctx, session, in.Text, resp, now)
	s.finishTurn(span, resp, started)
	return resp, nil
}

// recordProgress counts the turn on the user's profile, applying patch and
// adding the crisis event when there is one.
func (s *Service) recordProgress(ctx context.Context, userID domain.UserID, patch PreferencesPatch, isNew bool, ev *domain.CrisisEvent, now time.Time) error {
	_, err := s.profiles.Update(ctx, userID, func(p *domain.UserProfile) error {
		patch.apply(p)
		p.Progress.TotalTurns++
		p.Progress.LastSeenAt = now
		if isNew {
			p.Progress.TotalSessions++
		}
		if ev != nil {
			p.CrisisHistory = append(p.CrisisHistory, *ev)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return nil
}

func (s *Service) loadSession(ctx context.Context, id domain.SessionID, userID domain.UserID, now time.Time) (*domain.SessionContext, bool, error) {
	session, err := s.sessions.GetSession(ctx, id)
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return domain.NewSessionContext(id, userID, now), true, nil
	case err != nil:
		return nil, false, err
	case session.UserID != userID:
		return nil, false, fmt.Errorf("%w: %s", domain.ErrSessionOwnership, id)
	}
	return session, false, nil
}

// turnPatch folds the turn's cultural context into its preference patch.
func turnPatch(in TurnInput) PreferencesPatch {
	patch := PreferencesPatch{}
	if in.Preferences != nil {
		patch = *in.Preferences
	}
	if in.CulturalContext != "" && patch.CulturalContext == nil {
		patch.CulturalContext = &in.CulturalContext
	}
	return patch
}

// turnProfile applies any preferences sent with the turn, then returns the
// profile the turn should be personalized with.
func (s *Service) turnProfile(ctx context.Context, userID domain.UserID, patch PreferencesPatch) (*domain.UserProfile, error) {
	if patch.empty() {
		return s.profiles.Get(ctx, userID)
	}
	return s.profiles.Update(ctx, userID, func(p *domain.UserProfile) error {
		patch.apply(p)
		return nil
	})
}

// appendTranscript records both sides of the turn. A transcript failure is
// logged but does not fail a turn whose state is already stored.
func (s *Service) appendTranscript(ctx context.Context, session *domain.SessionContext, text string, resp domain.Response, now time.Time) {
	msgs := []*domain.Message{
		{
			ID:        domain.MessageID(s.newID()),
			SessionID: session.ID,
			UserID:    session.UserID,
			Author:    domain.RoleUser,
			Text:      text,
			CreatedAt: now,
		},
		{
			ID:        domain.MessageID(s.newID()),
			SessionID: session.ID,
			UserID:    session.UserID,
			Author:    domain.RoleAgent,
			Text:      resp.Common().Text,
			CreatedAt: now,
			Kind:      string(resp.Kind()),
		},
	}
	for _, m := range msgs {
		if err := s.messages.AppendMessage(ctx, m); err != nil {
			observability.LoggerFromContext(ctx).Error("failed to append message",
				"session_id", string(session.ID),
				"author", string(m.Author),
				"error", err,
			)
			return
		}
	}
}

func (s *Service) finishTurn(span trace.Span, resp domain.Response, started time.Time) {
	span.SetAttributes(attribute.String("kind", string(resp.Kind())))
	s.metrics.ObserveTurn(string(resp.Kind()), time.Since(started))
}
