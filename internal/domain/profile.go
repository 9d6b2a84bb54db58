package domain

import "time"

// RecentOutcomeLimit is how many recent outcomes an effectiveness record keeps.
const RecentOutcomeLimit = 5

// MaxRating is the top of the feedback rating scale (1..MaxRating).
const MaxRating = 5.0

// Outcome is one feedback event for an intervention.
type Outcome struct {
	Success bool      `json:"success"`
	Rating  float64   `json:"rating"`
	At      time.Time `json:"at"`
}

// EffectivenessRecord is a running aggregate of feedback for one intervention,
// kept globally and per user.
type EffectivenessRecord struct {
	Key         InterventionKey `json:"key"`
	Uses        int             `json:"uses"`
	Successes   int             `json:"successes"`
	TotalRating float64         `json:"total_rating"`
	Recent      []Outcome       `json:"recent,omitempty"`
}

// AverageRating is TotalRating/Uses, or 0 when never used.
func (r EffectivenessRecord) AverageRating() float64 {
	if r.Uses == 0 {
		return 0
	}
	return r.TotalRating / float64(r.Uses)
}

// SuccessRate is Successes/Uses, or 0 when never used.
func (r EffectivenessRecord) SuccessRate() float64 {
	if r.Uses == 0 {
		return 0
	}
	return float64(r.Successes) / float64(r.Uses)
}

// Apply returns the record with one more outcome folded in.
func (r EffectivenessRecord) Apply(o Outcome) EffectivenessRecord {
	r.Uses++
	if o.Success {
		r.Successes++
	}
	r.TotalRating += o.Rating

	recent := make([]Outcome, 0, RecentOutcomeLimit)
	recent = append(recent, r.Recent...)
	recent = append(recent, o)
	if len(recent) > RecentOutcomeLimit {
		recent = recent[len(recent)-RecentOutcomeLimit:]
	}
	r.Recent = recent
	return r
}

// Preferences hold how a user likes to be talked to.
type Preferences struct {
	Style               CommunicationStyle `json:"style"`
	Language            string             `json:"language,omitempty"`
	CulturalContext     string             `json:"cultural_context,omitempty"`
	PreferredCategories []string           `json:"preferred_categories,omitempty"`
	PreferredTechniques []string           `json:"preferred_techniques,omitempty"`
}

// ClinicalHistory holds the facts the clinical rule validator needs.
type ClinicalHistory struct {
	TraumaHistory bool `json:"trauma_history"`
	Stabilized    bool `json:"stabilized"`
}

// Progress markers accumulated across sessions.
type Progress struct {
	TotalTurns    int       `json:"total_turns"`
	TotalSessions int       `json:"total_sessions"`
	LastSeenAt    time.Time `json:"last_seen_at"`
}

// UserProfile outlives sessions. Sessions reference it by ID and never own it.
type UserProfile struct {
	ID            UserID                                  `json:"id"`
	Preferences   Preferences                             `json:"preferences"`
	Clinical      ClinicalHistory                         `json:"clinical"`
	Effectiveness map[InterventionKey]EffectivenessRecord `json:"effectiveness"`
	CrisisHistory []CrisisEvent                           `json:"crisis_history,omitempty"`
	Progress      Progress                                `json:"progress"`
	CreatedAt     time.Time                               `json:"created_at"`
	UpdatedAt     time.Time                               `json:"updated_at"`
}

// NewUserProfile returns an empty profile with default preferences.
func NewUserProfile(id UserID, now time.Time) *UserProfile {
	return &UserProfile{
		ID:            id,
		Preferences:   Preferences{Style: StyleEmpathetic, Language: "en"},
		Effectiveness: make(map[InterventionKey]EffectivenessRecord),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Record returns the user's effectiveness record for key (zero value if none).
func (p *UserProfile) Record(key InterventionKey) EffectivenessRecord {
	if p == nil || p.Effectiveness == nil {
		return EffectivenessRecord{Key: key}
	}
	r, ok := p.Effectiveness[key]
	if !ok {
		return EffectivenessRecord{Key: key}
	}
	return r
}

// Clone returns a deep copy so callers can mutate without aliasing stored state.
func (p *UserProfile) Clone() *UserProfile {
	if p == nil {
		return nil
	}
	out := *p
	out.Preferences.PreferredCategories = append([]string(nil), p.Preferences.PreferredCategories...)
	out.Preferences.PreferredTechniques = append([]string(nil), p.Preferences.PreferredTechniques...)
	out.CrisisHistory = append([]CrisisEvent(nil), p.CrisisHistory...)
	out.Effectiveness = make(map[InterventionKey]EffectivenessRecord, len(p.Effectiveness))
	for k, r := range p.Effectiveness {
		r.Recent = append([]Outcome(nil), r.Recent...)
		out.Effectiveness[k] = r
	}
	return &out
}
