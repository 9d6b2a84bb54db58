package httpadapter

import (
	"math"
	"time"

	"github.com/PabloGalante/farum-triage/internal/app/conversation"
	"github.com/PabloGalante/farum-triage/internal/domain"
)

// ─────────────────────────────────────────────
// DTOs (request/response)
// ─────────────────────────────────────────────

type chatRequest struct {
	Message   string       `json:"message"`
	SessionID string       `json:"session_id"`
	UserID    string       `json:"user_id"`
	Context   *chatContext `json:"context,omitempty"`
}

type chatContext struct {
	Preferences     *conversation.PreferencesPatch `json:"preferences,omitempty"`
	Vitals          *conversation.Vitals           `json:"vitals,omitempty"`
	CulturalContext string                         `json:"cultural_context,omitempty"`
}

type sessionInfoResponse struct {
	TurnCount        int                     `json:"turn_count"`
	DurationSeconds  float64                 `json:"duration_seconds"`
	EmotionalJourney []domain.SentimentClass `json:"emotional_journey"`
	TechniquesUsed   []string                `json:"techniques_used"`
	CrisisLevel      int                     `json:"crisis_level"`
	Stage            domain.Stage            `json:"stage"`
}

type interventionResponse struct {
	Key           string              `json:"key"`
	Name          string              `json:"name"`
	Category      string              `json:"category"`
	Technique     string              `json:"technique"`
	Description   string              `json:"description,omitempty"`
	Steps         []string            `json:"steps,omitempty"`
	Score         float64             `json:"score"`
	EvidenceLevel domain.EvidenceTier `json:"evidence_level"`
	Warnings      []string            `json:"warnings,omitempty"`
}

// chatResponse is the wire shape of every turn. Crisis and fallback turns
// leave the personalization fields empty.
type chatResponse struct {
	Kind      domain.ResponseKind `json:"kind"`
	SessionID string              `json:"session_id"`
	Response  string              `json:"response"`
	FollowUp  string              `json:"follow_up"`

	TherapeuticStyle   domain.CommunicationStyle `json:"therapeutic_style,omitempty"`
	Techniques         []string                  `json:"techniques,omitempty"`
	Interventions      []interventionResponse    `json:"interventions,omitempty"`
	EducationalContent string                    `json:"educational_content,omitempty"`

	Sentiment            *domain.Sentiment        `json:"sentiment,omitempty"`
	Emotions             []domain.EmotionScore    `json:"emotions,omitempty"`
	CognitiveDistortions []domain.DistortionMatch `json:"cognitive_distortions,omitempty"`
	Severity             *int                     `json:"severity,omitempty"`

	IsCrisis   bool                     `json:"is_crisis"`
	CrisisInfo *domain.CrisisAssessment `json:"crisis_info,omitempty"`
	Reason     domain.FallbackReason    `json:"reason,omitempty"`

	SuggestedActions []domain.SuggestedAction `json:"suggested_actions"`
	SessionInfo      sessionInfoResponse      `json:"session_info"`
}

type feedbackRequest struct {
	UserID          string `json:"user_id"`
	InterventionKey string `json:"intervention_key"`
	Outcome         struct {
		Success bool `json:"success"`
	} `json:"outcome"`
	Feedback struct {
		Rating float64 `json:"rating"`
	} `json:"feedback"`
}

type createSessionRequest struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id,omitempty"`
}

type createSessionResponse struct {
	Session sessionResponse  `json:"session"`
	Welcome *messageResponse `json:"welcome_message,omitempty"`
}

type sessionResponse struct {
	ID            string               `json:"id"`
	UserID        string               `json:"user_id"`
	StartedAt     time.Time            `json:"started_at"`
	LastMessageAt time.Time            `json:"last_message_at"`
	Flow          domain.Flow          `json:"flow"`
	CrisisEvents  []domain.CrisisEvent `json:"crisis_events,omitempty"`
	Info          sessionInfoResponse  `json:"session_info"`
}

type messageResponse struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	Kind      string    `json:"kind,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type getSessionResponse struct {
	Session  sessionResponse   `json:"session"`
	Messages []messageResponse `json:"messages"`
}

type deescalateRequest struct {
	Level  *int   `json:"level"`
	Reason string `json:"reason"`
}

// ─────────────────────────────────────────────
// Conversation Helpers
// ─────────────────────────────────────────────

func toSessionInfoResponse(info domain.SessionInfo) sessionInfoResponse {
	out := sessionInfoResponse{
		TurnCount:        info.TurnCount,
		DurationSeconds:  math.Round(info.Duration.Seconds()*1000) / 1000,
		EmotionalJourney: info.EmotionalJourney,
		TechniquesUsed:   info.TechniquesUsed,
		CrisisLevel:      info.CrisisLevel,
		Stage:            info.Flow.Stage,
	}
	if out.EmotionalJourney == nil {
		out.EmotionalJourney = []domain.SentimentClass{}
	}
	if out.TechniquesUsed == nil {
		out.TechniquesUsed = []string{}
	}
	return out
}

func toInterventionResponse(s domain.ScoredIntervention) interventionResponse {
	iv := s.Intervention
	return interventionResponse{
		Key:           string(iv.Key),
		Name:          iv.Name,
		Category:      iv.Category,
		Technique:     iv.Technique,
		Description:   iv.Description,
		Steps:         iv.Steps,
		Score:         math.Round(s.Score*1e4) / 1e4,
		EvidenceLevel: s.Validation.EvidenceLevel,
		Warnings:      s.Validation.Warnings,
	}
}

func toChatResponse(resp domain.Response) chatResponse {
	env := resp.Common()
	out := chatResponse{
		Kind:             resp.Kind(),
		SessionID:        string(env.SessionID),
		Response:         env.Text,
		FollowUp:         env.FollowUp,
		SuggestedActions: env.SuggestedActions,
		SessionInfo:      toSessionInfoResponse(env.SessionInfo),
	}
	if out.SuggestedActions == nil {
		out.SuggestedActions = []domain.SuggestedAction{}
	}
	if a := env.Analysis; a != nil {
		sev := a.Severity
		out.Sentiment = &a.Sentiment
		out.Emotions = a.Emotions
		out.CognitiveDistortions = a.Distortions
		out.Severity = &sev
	}

	switch r := resp.(type) {
	case *domain.StandardResponse:
		out.TherapeuticStyle = r.Style
		out.Techniques = r.Techniques
		out.EducationalContent = r.EducationalContent
		for _, s := range r.Interventions {
			out.Interventions = append(out.Interventions, toInterventionResponse(s))
		}
	case *domain.CrisisResponse:
		out.IsCrisis = true
		ca := r.Assessment
		out.CrisisInfo = &ca
	case *domain.FallbackResponse:
		out.Reason = r.Reason
	}
	return out
}

func toSessionResponse(s *domain.SessionContext, now time.Time) sessionResponse {
	return sessionResponse{
		ID:            string(s.ID),
		UserID:        string(s.UserID),
		StartedAt:     s.StartedAt,
		LastMessageAt: s.LastMessageAt,
		Flow:          s.Flow,
		CrisisEvents:  s.CrisisEvents,
		Info:          toSessionInfoResponse(s.Info(now)),
	}
}

func toMessageResponse(m *domain.Message) messageResponse {
	return messageResponse{
		ID:        string(m.ID),
		SessionID: string(m.SessionID),
		Author:    string(m.Author),
		Text:      m.Text,
		Kind:      m.Kind,
		CreatedAt: m.CreatedAt,
	}
}

func toMessagesResponse(msgs []*domain.Message) []messageResponse {
	out := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessageResponse(m))
	}
	return out
}
