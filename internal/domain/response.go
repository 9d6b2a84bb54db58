package domain

// ResponseKind discriminates the response variants.
type ResponseKind string

const (
	KindStandard ResponseKind = "standard"
	KindCrisis   ResponseKind = "crisis"
	KindFallback ResponseKind = "fallback"
)

// Priority of a suggested action.
type Priority string

const (
	PriorityImmediate Priority = "immediate"
	PriorityHigh      Priority = "high"
	PriorityMedium    Priority = "medium"
	PriorityLow       Priority = "low"
)

// SuggestedAction points the UI at an external tool or route.
type SuggestedAction struct {
	Tool     string   `json:"tool"`
	Priority Priority `json:"priority"`
	Route    string   `json:"route,omitempty"`
}

// Envelope carries the fields every response variant shares.
type Envelope struct {
	SessionID        SessionID         `json:"session_id"`
	Text             string            `json:"response"`
	FollowUp         string            `json:"follow_up"`
	SuggestedActions []SuggestedAction `json:"suggested_actions"`
	Analysis         *Analysis         `json:"-"`
	SessionInfo      SessionInfo       `json:"session_info"`
}

// Response is implemented by StandardResponse, CrisisResponse and
// FallbackResponse. Callers discriminate with a type switch.
type Response interface {
	Kind() ResponseKind
	Common() *Envelope
}

// StandardResponse is a normal turn with a selected intervention.
type StandardResponse struct {
	Envelope
	Style              CommunicationStyle   `json:"therapeutic_style"`
	Techniques         []string             `json:"techniques"`
	Interventions      []ScoredIntervention `json:"interventions"`
	EducationalContent string               `json:"educational_content,omitempty"`
	Stage              Stage                `json:"stage"`
}

func (r *StandardResponse) Kind() ResponseKind { return KindStandard }
func (r *StandardResponse) Common() *Envelope  { return &r.Envelope }

// CrisisResponse replaces the whole personalized pipeline for the turn.
type CrisisResponse struct {
	Envelope
	Assessment CrisisAssessment `json:"crisis_info"`
}

func (r *CrisisResponse) Kind() ResponseKind { return KindCrisis }
func (r *CrisisResponse) Common() *Envelope  { return &r.Envelope }

// FallbackReason explains why a fallback was produced.
type FallbackReason string

const (
	FallbackEmptyInput FallbackReason = "empty_input"
	FallbackInternal   FallbackReason = "internal_error"
)

// FallbackResponse is the generic supportive reply for bad input or internal failure.
type FallbackResponse struct {
	Envelope
	Reason FallbackReason `json:"reason"`
}

func (r *FallbackResponse) Kind() ResponseKind { return KindFallback }
func (r *FallbackResponse) Common() *Envelope  { return &r.Envelope }
