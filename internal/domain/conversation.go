package domain

import "time"

// Message represents any message in a session timeline (user or agent).
// A received message is never edited.
type Message struct {
	ID        MessageID `json:"id"`
	SessionID SessionID `json:"session_id"`
	UserID    UserID    `json:"user_id"`
	Author    Role      `json:"author"`
	Text      string    `json:"text"`
	CreatedAt Timestamp `json:"created_at"`

	// Kind of payload for agent messages: "standard", "crisis" or "fallback".
	Kind string `json:"kind,omitempty"`
}

// Stage is a conversational stage of the flow state machine.
type Stage string

const (
	StageIntroduction Stage = "introduction"
	StageAssessment   Stage = "assessment"
	StageIntervention Stage = "intervention"
	StageReflection   Stage = "reflection"
	StagePlanning     Stage = "planning"
	StageClosure      Stage = "closure"
)

type Momentum string

const (
	MomentumIncreasing Momentum = "increasing"
	MomentumDecreasing Momentum = "decreasing"
	MomentumStable     Momentum = "stable"
)

type Depth string

const (
	DepthSurface  Depth = "surface"
	DepthModerate Depth = "moderate"
	DepthDeep     Depth = "deep"
)

type ToneTrend string

const (
	ToneImproving ToneTrend = "improving"
	ToneDeclining ToneTrend = "declining"
	ToneSteady    ToneTrend = "steady"
)

// Flow is the per-session conversational state.
type Flow struct {
	Stage      Stage     `json:"stage"`
	Confidence float64   `json:"confidence"`
	Momentum   Momentum  `json:"momentum"`
	Depth      Depth     `json:"depth"`
	ToneTrend  ToneTrend `json:"tone_trend"`
}

// NewFlow returns the initial flow of a session.
func NewFlow() Flow {
	return Flow{
		Stage:      StageIntroduction,
		Confidence: 1,
		Momentum:   MomentumStable,
		Depth:      DepthSurface,
		ToneTrend:  ToneSteady,
	}
}

// CrisisEvent is an entry in a session's or profile's crisis history.
// Deescalation events carry the level the session was lowered to.
type CrisisEvent struct {
	At         time.Time  `json:"at"`
	SessionID  SessionID  `json:"session_id"`
	Type       CrisisType `json:"type"`
	Severity   int        `json:"severity"`
	Deescalate bool       `json:"deescalate,omitempty"`
	Reason     string     `json:"reason,omitempty"`
}

// SessionContext is the engine-owned state of one active conversation.
// EmotionalJourney and TechniquesUsed are append-only; CrisisLevel only
// decreases through an explicit de-escalation event.
type SessionContext struct {
	ID            SessionID `json:"id"`
	UserID        UserID    `json:"user_id"`
	MessageCount  int       `json:"message_count"`
	StartedAt     time.Time `json:"started_at"`
	LastMessageAt time.Time `json:"last_message_at"`
	CrisisLevel   int       `json:"crisis_level"`

	EmotionalJourney []SentimentClass `json:"emotional_journey"`
	TechniquesUsed   []string         `json:"techniques_used"`
	CrisisEvents     []CrisisEvent    `json:"crisis_events,omitempty"`

	Flow Flow `json:"flow"`
}

// NewSessionContext creates the state for a conversation starting at now.
func NewSessionContext(id SessionID, userID UserID, now time.Time) *SessionContext {
	return &SessionContext{
		ID:            id,
		UserID:        userID,
		StartedAt:     now,
		LastMessageAt: now,
		Flow:          NewFlow(),
	}
}

// SessionInfo is the read-only summary returned with every response.
type SessionInfo struct {
	TurnCount        int              `json:"turn_count"`
	Duration         time.Duration    `json:"-"`
	EmotionalJourney []SentimentClass `json:"emotional_journey"`
	TechniquesUsed   []string         `json:"techniques_used"`
	CrisisLevel      int              `json:"crisis_level"`
	Flow             Flow             `json:"flow"`
}

// Info summarizes the session as of now. Slices are copied.
func (s *SessionContext) Info(now time.Time) SessionInfo {
	return SessionInfo{
		TurnCount:        s.MessageCount,
		Duration:         now.Sub(s.StartedAt),
		EmotionalJourney: append([]SentimentClass(nil), s.EmotionalJourney...),
		TechniquesUsed:   append([]string(nil), s.TechniquesUsed...),
		CrisisLevel:      s.CrisisLevel,
		Flow:             s.Flow,
	}
}

// Clone returns a deep copy so stores never share slices with callers.
func (s *SessionContext) Clone() *SessionContext {
	if s == nil {
		return nil
	}
	out := *s
	out.EmotionalJourney = append([]SentimentClass(nil), s.EmotionalJourney...)
	out.TechniquesUsed = append([]string(nil), s.TechniquesUsed...)
	out.CrisisEvents = append([]CrisisEvent(nil), s.CrisisEvents...)
	return &out
}
