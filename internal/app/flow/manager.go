// Package flow tracks where a conversation is: its stage, momentum, depth
// and emotional tone, plus the crisis-level ratchet.
package flow

import (
	"fmt"

	"github.com/PabloGalante/farum-triage/internal/domain"
	"github.com/PabloGalante/farum-triage/internal/lexicon"
)

// Transition describes what one turn did to the flow.
type Transition struct {
	From       domain.Stage `json:"from"`
	To         domain.Stage `json:"to"`
	Confidence float64      `json:"confidence"`
	Matches    int          `json:"matches"`
}

// Manager applies flow rules from one lexicon snapshot. It holds no state of
// its own; everything lives on the SessionContext it is given.
type Manager struct {
	t *lexicon.Tables
}

func New(t *lexicon.Tables) Manager {
	return Manager{t: t}
}

// Observe counts the turn and appends its sentiment to the journey without
// moving the stage. Crisis turns only go through Observe.
func (m Manager) Observe(s *domain.SessionContext, a domain.Analysis, now domain.Timestamp) {
	s.MessageCount++
	s.LastMessageAt = now
	s.EmotionalJourney = append(s.EmotionalJourney, a.Sentiment.Classification)
	s.Flow.ToneTrend = m.toneTrend(s.EmotionalJourney)
}

// Advance observes the turn, then moves the stage along the transition with
// the most phrase matches. Ties go to the earlier transition in the table.
// A turn with no match stays in place at low confidence.
func (m Manager) Advance(s *domain.SessionContext, text string, a domain.Analysis, now domain.Timestamp) Transition {
	m.Observe(s, a, now)

	msg := lexicon.NewText(text)
	tr := Transition{From: s.Flow.Stage, To: s.Flow.Stage, Confidence: m.t.Tuning.LowConfidence}

	for _, cand := range m.t.Flow.Transitions {
		n := len(msg.Matches(cand.Phrases))
		if n > tr.Matches {
			tr.Matches = n
			tr.To = cand.Stage
			tr.Confidence = min(1, cand.Confidence+0.1*float64(n-1))
		}
	}

	s.Flow.Stage = tr.To
	s.Flow.Confidence = tr.Confidence
	s.Flow.Momentum = m.momentum(msg)
	s.Flow.Depth = m.depth(msg)
	return tr
}

func (m Manager) momentum(msg lexicon.Text) domain.Momentum {
	eng := len(msg.Matches(m.t.Flow.Engagement))
	dis := len(msg.Matches(m.t.Flow.Disengagement))
	switch {
	case eng > dis:
		return domain.MomentumIncreasing
	case dis > eng:
		return domain.MomentumDecreasing
	default:
		return domain.MomentumStable
	}
}

func (m Manager) depth(msg lexicon.Text) domain.Depth {
	switch {
	case msg.HasAny(m.t.Flow.DeepTopics):
		return domain.DepthDeep
	case msg.HasAny(m.t.Flow.ModerateTopics):
		return domain.DepthModerate
	default:
		return domain.DepthSurface
	}
}

func toneValue(c domain.SentimentClass) int {
	switch c {
	case domain.SentimentPositive:
		return 1
	case domain.SentimentNegative:
		return -1
	default:
		return 0
	}
}

// toneTrend compares the newest journey entry with the oldest one inside
// the tone window.
func (m Manager) toneTrend(journey []domain.SentimentClass) domain.ToneTrend {
	window := m.t.Tuning.ToneWindow
	if len(journey) < 2 {
		return domain.ToneSteady
	}
	if len(journey) > window {
		journey = journey[len(journey)-window:]
	}
	first, last := toneValue(journey[0]), toneValue(journey[len(journey)-1])
	switch {
	case last > first:
		return domain.ToneImproving
	case last < first:
		return domain.ToneDeclining
	default:
		return domain.ToneSteady
	}
}

// RecordTechniques appends the turn's techniques to the session log.
func (m Manager) RecordTechniques(s *domain.SessionContext, keys []string) {
	s.TechniquesUsed = append(s.TechniquesUsed, keys...)
}

// RatchetCrisis records a positive assessment on the session. The crisis
// level only moves up here; it reports whether it did.
func (m Manager) RatchetCrisis(s *domain.SessionContext, a domain.CrisisAssessment, now domain.Timestamp) bool {
	if !a.IsCrisis {
		return false
	}
	s.CrisisEvents = append(s.CrisisEvents, domain.CrisisEvent{
		At:        now,
		SessionID: s.ID,
		Type:      a.Type,
		Severity:  a.Severity,
	})
	if a.Severity <= s.CrisisLevel {
		return false
	}
	s.CrisisLevel = a.Severity
	return true
}

// Deescalate is the only way to lower a session's crisis level. The new
// level must be strictly lower than the current one and a reason is required.
func (m Manager) Deescalate(s *domain.SessionContext, level int, reason string, now domain.Timestamp) (domain.CrisisEvent, error) {
	if reason == "" {
		return domain.CrisisEvent{}, fmt.Errorf("%w: reason is required", domain.ErrInvalidDeescalation)
	}
	if level < 0 || level >= s.CrisisLevel {
		return domain.CrisisEvent{}, fmt.Errorf("%w: level %d must be in [0,%d)", domain.ErrInvalidDeescalation, level, s.CrisisLevel)
	}
	ev := domain.CrisisEvent{
		At:         now,
		SessionID:  s.ID,
		Type:       domain.CrisisNone,
		Severity:   level,
		Deescalate: true,
		Reason:     reason,
	}
	s.CrisisLevel = level
	s.CrisisEvents = append(s.CrisisEvents, ev)
	return ev, nil
}
