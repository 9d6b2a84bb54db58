package flow_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/farum-triage/internal/app/analysis"
	"github.com/PabloGalante/farum-triage/internal/app/flow"
	"github.com/PabloGalante/farum-triage/internal/domain"
	"github.com/PabloGalante/farum-triage/internal/lexicon"
)

var t0 = time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)

func advance(m flow.Manager, s *domain.SessionContext, text string, at time.Time) flow.Transition {
	return m.Advance(s, text, analysis.Analyze(text, s, lexicon.MustDefault()), at)
}

func TestAdvanceFollowsTriggerPhrases(t *testing.T) {
	m := flow.New(lexicon.MustDefault())
	s := domain.NewSessionContext("s1", "u1", t0)

	tr := advance(m, s, "Lately I've been struggling", t0.Add(time.Minute))
	assert.Equal(t, domain.StageIntroduction, tr.From)
	assert.Equal(t, domain.StageAssessment, tr.To)
	// three assessment phrases: base 0.6 + 0.1 per extra match
	assert.Equal(t, 3, tr.Matches)
	assert.InDelta(t, 0.8, tr.Confidence, 1e-9)

	tr = advance(m, s, "What can I do? Help me", t0.Add(2*time.Minute))
	assert.Equal(t, domain.StageIntervention, tr.To)
	assert.Equal(t, domain.StageIntervention, s.Flow.Stage)

	assert.Equal(t, 2, s.MessageCount)
	assert.Equal(t, t0.Add(2*time.Minute), s.LastMessageAt)
	assert.Len(t, s.EmotionalJourney, 2)
}

func TestAdvanceWithoutMatchSelfLoops(t *testing.T) {
	m := flow.New(lexicon.MustDefault())
	s := domain.NewSessionContext("s1", "u1", t0)

	tr := advance(m, s, "the weather is grey", t0)
	assert.Equal(t, domain.StageIntroduction, tr.To)
	assert.InDelta(t, 0.1, s.Flow.Confidence, 1e-9)
	assert.Zero(t, tr.Matches)
}

func TestAdvanceTiesGoToTableOrder(t *testing.T) {
	m := flow.New(lexicon.MustDefault())
	s := domain.NewSessionContext("s1", "u1", t0)

	// one assessment phrase and one closure phrase
	tr := advance(m, s, "i feel tired, bye", t0)
	assert.Equal(t, domain.StageAssessment, tr.To)
}

func TestMomentumAndDepth(t *testing.T) {
	m := flow.New(lexicon.MustDefault())
	s := domain.NewSessionContext("s1", "u1", t0)

	advance(m, s, "yes, tell me more about my family", t0)
	assert.Equal(t, domain.MomentumIncreasing, s.Flow.Momentum)
	assert.Equal(t, domain.DepthModerate, s.Flow.Depth)

	advance(m, s, "whatever, i guess. it was the abuse", t0)
	assert.Equal(t, domain.MomentumDecreasing, s.Flow.Momentum)
	assert.Equal(t, domain.DepthDeep, s.Flow.Depth)

	advance(m, s, "the bus was late", t0)
	assert.Equal(t, domain.MomentumStable, s.Flow.Momentum)
	assert.Equal(t, domain.DepthSurface, s.Flow.Depth)
}

func TestToneTrend(t *testing.T) {
	m := flow.New(lexicon.MustDefault())
	s := domain.NewSessionContext("s1", "u1", t0)

	advance(m, s, "everything is awful", t0)
	assert.Equal(t, domain.ToneSteady, s.Flow.ToneTrend)

	advance(m, s, "it was okay I guess", t0)
	advance(m, s, "today was a good and happy day", t0)
	assert.Equal(t, domain.ToneImproving, s.Flow.ToneTrend)

	advance(m, s, "now it is terrible", t0)
	assert.Equal(t, domain.ToneDeclining, s.Flow.ToneTrend)
}

func TestJourneyIsAppendOnly(t *testing.T) {
	m := flow.New(lexicon.MustDefault())
	s := domain.NewSessionContext("s1", "u1", t0)

	advance(m, s, "I am happy", t0)
	prefix := append([]domain.SentimentClass(nil), s.EmotionalJourney...)

	advance(m, s, "I am sad", t0)
	m.RecordTechniques(s, []string{"deep_breathing"})
	advance(m, s, "fine", t0)
	m.RecordTechniques(s, []string{"thought_record", "self_compassion"})

	assert.Equal(t, prefix, s.EmotionalJourney[:len(prefix)])
	assert.Equal(t, []string{"deep_breathing", "thought_record", "self_compassion"}, s.TechniquesUsed)
}

func TestCrisisRatchet(t *testing.T) {
	m := flow.New(lexicon.MustDefault())
	s := domain.NewSessionContext("s1", "u1", t0)

	raised := m.RatchetCrisis(s, domain.CrisisAssessment{IsCrisis: true, Severity: 9, Type: domain.CrisisSuicidePrevention}, t0)
	assert.True(t, raised)
	assert.Equal(t, 9, s.CrisisLevel)

	raised = m.RatchetCrisis(s, domain.CrisisAssessment{IsCrisis: true, Severity: 7, Type: domain.CrisisSevereDistress}, t0)
	assert.False(t, raised)
	assert.Equal(t, 9, s.CrisisLevel)
	assert.Len(t, s.CrisisEvents, 2)

	assert.False(t, m.RatchetCrisis(s, domain.CrisisAssessment{Type: domain.CrisisNone}, t0))
	assert.Len(t, s.CrisisEvents, 2)

	advance(m, s, "I'm okay now", t0)
	assert.Equal(t, 9, s.CrisisLevel)
}

func TestDeescalate(t *testing.T) {
	m := flow.New(lexicon.MustDefault())
	s := domain.NewSessionContext("s1", "u1", t0)
	s.CrisisLevel = 9

	_, err := m.Deescalate(s, 3, "", t0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidDeescalation))

	_, err = m.Deescalate(s, 9, "counselor follow-up", t0)
	assert.True(t, errors.Is(err, domain.ErrInvalidDeescalation))
	_, err = m.Deescalate(s, 10, "counselor follow-up", t0)
	assert.True(t, errors.Is(err, domain.ErrInvalidDeescalation))
	assert.Equal(t, 9, s.CrisisLevel)

	ev, err := m.Deescalate(s, 3, "counselor follow-up", t0)
	require.NoError(t, err)
	assert.True(t, ev.Deescalate)
	assert.Equal(t, 3, ev.Severity)
	assert.Equal(t, 3, s.CrisisLevel)
	require.Len(t, s.CrisisEvents, 1)
	assert.Equal(t, "counselor follow-up", s.CrisisEvents[0].Reason)
}
