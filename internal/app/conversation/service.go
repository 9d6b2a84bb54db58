package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/PabloGalante/farum-triage/internal/app/flow"
	"github.com/PabloGalante/farum-triage/internal/app/keylock"
	"github.com/PabloGalante/farum-triage/internal/app/profiles"
	"github.com/PabloGalante/farum-triage/internal/domain"
	"github.com/PabloGalante/farum-triage/internal/lexicon"
	"github.com/PabloGalante/farum-triage/internal/observability"
)

// DefaultArousalHeartRate is the heart rate (bpm) at or above which a turn
// carries the physiological_arousal risk factor.
const DefaultArousalHeartRate = 100

// RiskPhysiologicalArousal is raised from request vitals, not from text.
const RiskPhysiologicalArousal = "physiological_arousal"

// Deps are the collaborators of a Service. Lexicon, Sessions, Messages,
// Profiles and Global are required.
type Deps struct {
	Lexicon  lexicon.Provider
	Sessions domain.SessionStore
	Messages domain.MessageStore
	Profiles *profiles.Service
	Global   domain.EffectivenessStore
	Metrics  *observability.Metrics

	Now              domain.Clock
	NewID            func() string
	ArousalHeartRate float64
}

type Service struct {
	lexicon  lexicon.Provider
	sessions domain.SessionStore
	messages domain.MessageStore
	profiles *profiles.Service
	global   domain.EffectivenessStore
	metrics  *observability.Metrics
	locks    *keylock.Map

	now              domain.Clock
	newID            func() string
	arousalHeartRate float64
}

func NewService(d Deps) *Service {
	s := &Service{
		lexicon:          d.Lexicon,
		sessions:         d.Sessions,
		messages:         d.Messages,
		profiles:         d.Profiles,
		global:           d.Global,
		metrics:          d.Metrics,
		locks:            keylock.New(),
		now:              d.Now,
		newID:            d.NewID,
		arousalHeartRate: d.ArousalHeartRate,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	if s.arousalHeartRate <= 0 {
		s.arousalHeartRate = DefaultArousalHeartRate
	}
	return s
}

type StartSessionInput struct {
	UserID    domain.UserID
	SessionID domain.SessionID // optional; generated when empty
}

type StartSessionOutput struct {
	Session *domain.SessionContext
	Welcome *domain.Message
}

func (s *Service) StartSession(ctx context.Context, in StartSessionInput) (*StartSessionOutput, error) {
	if in.UserID == "" {
		return nil, domain.ErrUserRequired
	}
	id := in.SessionID
	if id == "" {
		id = domain.SessionID(s.newID())
	}

	log := observability.LoggerFromContext(ctx).With("user_id", string(in.UserID), "session_id", string(id))
	log.Info("starting new session")

	release, err := s.locks.Acquire(ctx, string(id))
	if err != nil {
		return nil, err
	}
	defer release()

	if _, err := s.sessions.GetSession(ctx, id); err == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionExists, id)
	} else if !errors.Is(err, domain.ErrSessionNotFound) {
		log.Error("failed to check session", "error", err)
		return nil, err
	}

	now := s.now()
	session := domain.NewSessionContext(id, in.UserID, now)
	if err := s.sessions.PutSession(ctx, session); err != nil {
		log.Error("failed to create session", "error", err)
		return nil, err
	}

	if _, err := s.profiles.Update(ctx, in.UserID, func(p *domain.UserProfile) error {
		p.Progress.TotalSessions++
		p.Progress.LastSeenAt = now
		return nil
	}); err != nil {
		log.Error("failed to update profile", "error", err)
		return nil, err
	}

	t := s.lexicon.Current()
	welcome := &domain.Message{
		ID:        domain.MessageID(s.newID()),
		SessionID: id,
		UserID:    in.UserID,
		Author:    domain.RoleAgent,
		Text:      t.Flow.FollowUps[domain.StageIntroduction],
		CreatedAt: now,
		Kind:      string(domain.KindStandard),
	}
	if err := s.messages.AppendMessage(ctx, welcome); err != nil {
		log.Error("failed to append welcome message", "error", err)
		return nil, err
	}

	log.Info("session started")
	return &StartSessionOutput{Session: session, Welcome: welcome}, nil
}

func (s *Service) GetSessionTimeline(
	ctx context.Context,
	sessionID domain.SessionID,
	limit int,
) (*domain.SessionContext, []*domain.Message, error) {

	log := observability.LoggerFromContext(ctx).With(
		"session_id", string(sessionID),
		"limit", limit,
	)

	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, domain.ErrSessionNotFound) {
			log.Error("failed to get session", "error", err)
		}
		return nil, nil, err
	}

	msgs, err := s.messages.GetMessagesBySession(ctx, sessionID, limit)
	if err != nil {
		log.Error("failed to get messages", "error", err)
		return nil, nil, err
	}

	log.Info("fetched session timeline", "message_count", len(msgs))
	return session, msgs, nil
}

// CloseSession ends a session explicitly, dropping its state and transcript.
// Profile data (effectiveness, crisis history) is kept.
func (s *Service) CloseSession(ctx context.Context, sessionID domain.SessionID) error {
	log := observability.LoggerFromContext(ctx).With("session_id", string(sessionID))

	release, err := s.locks.Acquire(ctx, string(sessionID))
	if err != nil {
		return err
	}
	defer release()

	if err := s.sessions.DeleteSession(ctx, sessionID); err != nil {
		if !errors.Is(err, domain.ErrSessionNotFound) {
			log.Error("failed to delete session", "error", err)
		}
		return err
	}
	if err := s.messages.DeleteSessionMessages(ctx, sessionID); err != nil {
		log.Error("failed to delete transcript", "error", err)
		return err
	}

	log.Info("session closed")
	return nil
}

type DeescalateInput struct {
	SessionID domain.SessionID
	Level     int
	Reason    string
}

// Deescalate lowers a session's crisis level. The event is recorded on the
// session and in the user's crisis history.
func (s *Service) Deescalate(ctx context.Context, in DeescalateInput) (*domain.SessionContext, error) {
	log := observability.LoggerFromContext(ctx).With("session_id", string(in.SessionID))

	release, err := s.locks.Acquire(ctx, string(in.SessionID))
	if err != nil {
		return nil, err
	}
	defer release()

	session, err := s.sessions.GetSession(ctx, in.SessionID)
	if err != nil {
		return nil, err
	}

	from := session.CrisisLevel
	ev, err := flow.New(s.lexicon.Current()).Deescalate(session, in.Level, in.Reason, s.now())
	if err != nil {
		log.Warn("de-escalation refused", "error", err, "crisis_level", from, "requested", in.Level)
		return nil, err
	}

	if err := s.sessions.PutSession(ctx, session); err != nil {
		log.Error("failed to store session", "error", err)
		return nil, err
	}
	if _, err := s.profiles.Update(ctx, session.UserID, func(p *domain.UserProfile) error {
		p.CrisisHistory = append(p.CrisisHistory, ev)
		return nil
	}); err != nil {
		log.Error("failed to record de-escalation on profile", "error", err)
		return nil, err
	}

	log.Warn("crisis level lowered", "from", from, "to", ev.Severity, "reason", ev.Reason)
	return session, nil
}

// Profile returns the user's profile, or a default one for unknown users.
func (s *Service) Profile(ctx context.Context, userID domain.UserID) (*domain.UserProfile, error) {
	return s.profiles.Get(ctx, userID)
}

// PreferencesPatch changes only the fields that are set.
type PreferencesPatch struct {
	Style               *string  `json:"style,omitempty"`
	Language            *string  `json:"language,omitempty"`
	CulturalContext     *string  `json:"cultural_context,omitempty"`
	PreferredCategories []string `json:"preferred_categories,omitempty"`
	PreferredTechniques []string `json:"preferred_techniques,omitempty"`
	TraumaHistory       *bool    `json:"trauma_history,omitempty"`
	Stabilized          *bool    `json:"stabilized,omitempty"`
}

func (p PreferencesPatch) empty() bool {
	return p.Style == nil && p.Language == nil && p.CulturalContext == nil &&
		p.PreferredCategories == nil && p.PreferredTechniques == nil &&
		p.TraumaHistory == nil && p.Stabilized == nil
}

func (p PreferencesPatch) apply(profile *domain.UserProfile) {
	prefs := &profile.Preferences
	if p.Style != nil {
		prefs.Style = domain.ParseStyle(*p.Style)
	}
	if p.Language != nil {
		prefs.Language = *p.Language
	}
	if p.CulturalContext != nil {
		prefs.CulturalContext = *p.CulturalContext
	}
	if p.PreferredCategories != nil {
		prefs.PreferredCategories = append([]string(nil), p.PreferredCategories...)
	}
	if p.PreferredTechniques != nil {
		prefs.PreferredTechniques = append([]string(nil), p.PreferredTechniques...)
	}
	if p.TraumaHistory != nil {
		profile.Clinical.TraumaHistory = *p.TraumaHistory
	}
	if p.Stabilized != nil {
		profile.Clinical.Stabilized = *p.Stabilized
	}
}

func (s *Service) UpdatePreferences(ctx context.Context, userID domain.UserID, patch PreferencesPatch) (*domain.UserProfile, error) {
	if userID == "" {
		return nil, domain.ErrUserRequired
	}
	p, err := s.profiles.Update(ctx, userID, func(p *domain.UserProfile) error {
		patch.apply(p)
		return nil
	})
	if err != nil {
		observability.LoggerFromContext(ctx).Error("failed to update preferences", "user_id", string(userID), "error", err)
		return nil, err
	}
	return p, nil
}
