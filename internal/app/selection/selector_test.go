package selection_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/farum-triage/internal/app/analysis"
	"github.com/PabloGalante/farum-triage/internal/app/selection"
	"github.com/PabloGalante/farum-triage/internal/domain"
	"github.com/PabloGalante/farum-triage/internal/lexicon"
)

const distortedText = "I always fail at everything and I'm useless"

var now = time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)

func input(text string, profile *domain.UserProfile, global map[domain.InterventionKey]domain.EffectivenessRecord) selection.Input {
	return selection.Input{
		Text:     text,
		Analysis: analysis.Analyze(text, nil, lexicon.MustDefault()),
		Profile:  profile,
		Global:   global,
	}
}

func keys(rec domain.Recommendation) []domain.InterventionKey {
	out := make([]domain.InterventionKey, 0, len(rec.Ranked))
	for _, s := range rec.Ranked {
		out = append(out, s.Intervention.Key)
	}
	return out
}

func TestSelectDistortedThinking(t *testing.T) {
	rec := selection.Select(input(distortedText, nil, nil), lexicon.MustDefault())

	assert.False(t, rec.IsDefault)
	assert.ElementsMatch(t, []string{"general", "cognitive", "self_worth"}, rec.Categories)
	assert.Equal(t, []domain.InterventionKey{"cognitive_restructuring", "self_compassion", "thought_record"}, keys(rec))

	top := rec.Top()
	assert.InDelta(t, 0.2*4.0/7.0, top.RangeFit, 1e-9)
	assert.InDelta(t, top.RangeFit, top.Score, 1e-9)

	techniques := selection.Techniques(rec, 3)
	assert.Contains(t, techniques, "cognitive_restructuring")
}

func TestSelectFallsBackToDefault(t *testing.T) {
	rec := selection.Select(input("Hello, how are you?", nil, nil), lexicon.MustDefault())

	require.Len(t, rec.Ranked, 1)
	assert.True(t, rec.IsDefault)
	assert.Equal(t, domain.InterventionKey("supportive_listening"), rec.Top().Intervention.Key)
	assert.True(t, rec.Top().Validation.IsValid)
}

func TestSelectNeverEmpty(t *testing.T) {
	tables := lexicon.MustDefault()
	for _, text := range []string{
		"", "?", "asdf qwer", "I can't sleep and I'm exhausted",
		"I feel hopeless and trapped, I can't go on",
		"my partner and I had a fight again",
	} {
		rec := selection.Select(input(text, nil, nil), tables)
		assert.NotEmpty(t, rec.Ranked, text)
	}
}

func TestSelectExcludesInvalidInterventions(t *testing.T) {
	tables := lexicon.MustDefault()
	text := "I keep avoiding people, I'm scared of parties"
	in := input(text, nil, nil)
	in.Analysis.RiskFactors = append(in.Analysis.RiskFactors, "physiological_arousal")

	rec := selection.Select(in, tables)
	for _, s := range rec.Ranked {
		assert.True(t, s.Validation.IsValid, s.Intervention.Key)
		assert.NotEqual(t, domain.InterventionKey("exposure_hierarchy"), s.Intervention.Key)
	}
	require.NotEmpty(t, rec.Rejected)
	assert.Equal(t, domain.InterventionKey("exposure_hierarchy"), rec.Rejected[0].Key)
}

func TestSelectTraumaProcessingRejectedUntilStabilized(t *testing.T) {
	tables := lexicon.MustDefault()
	text := "I keep having flashbacks of the abuse"
	profile := domain.NewUserProfile("u1", now)
	profile.Clinical = domain.ClinicalHistory{TraumaHistory: true}

	rec := selection.Select(input(text, profile, nil), tables)
	assert.NotContains(t, keys(rec), domain.InterventionKey("trauma_narrative"))

	profile.Clinical.Stabilized = true
	rec = selection.Select(input(text, profile, nil), tables)
	assert.Contains(t, keys(rec), domain.InterventionKey("trauma_narrative"))
}

func TestSessionCrisisLevelTightensValidation(t *testing.T) {
	tables := lexicon.MustDefault()
	in := input(distortedText, nil, nil)
	in.Session = &domain.SessionContext{CrisisLevel: 9}

	rec := selection.Select(in, tables)
	assert.True(t, rec.IsDefault)
	assert.Len(t, rec.Rejected, 3)
}

func TestPersonalFeedbackReordersOnlyThatUser(t *testing.T) {
	tables := lexicon.MustDefault()

	userA := domain.NewUserProfile("a", now)
	global := map[domain.InterventionKey]domain.EffectivenessRecord{}

	rate := func(rating float64) {
		o := domain.Outcome{Success: true, Rating: rating, At: now}
		userA.Effectiveness["thought_record"] = userA.Record("thought_record").Apply(o)
		global["thought_record"] = global["thought_record"].Apply(o)
	}

	rate(4)
	rec := selection.Select(input(distortedText, userA, global), tables)
	assert.Equal(t, domain.InterventionKey("thought_record"), rec.Top().Intervention.Key)
	assert.InDelta(t, 0.32+0.05+0.2*2.0/7.0, rec.Top().Score, 1e-9)

	rate(5)
	rec = selection.Select(input(distortedText, userA, global), tables)
	assert.Equal(t, domain.InterventionKey("thought_record"), rec.Top().Intervention.Key)
	assert.InDelta(t, 0.36+0.05+0.2*2.0/7.0, rec.Top().Score, 1e-9)

	// Two global uses are below the minimum, so user B sees the base order.
	userB := domain.NewUserProfile("b", now)
	rec = selection.Select(input(distortedText, userB, global), tables)
	assert.Equal(t, []domain.InterventionKey{"cognitive_restructuring", "self_compassion", "thought_record"}, keys(rec))
}

func TestGlobalEffectivenessCountsAfterMinimumUses(t *testing.T) {
	tables := lexicon.MustDefault()
	global := map[domain.InterventionKey]domain.EffectivenessRecord{}
	for i := 0; i < tables.Tuning.GlobalMinUses; i++ {
		global["thought_record"] = global["thought_record"].Apply(domain.Outcome{Success: true, Rating: 5, At: now})
	}

	rec := selection.Select(input(distortedText, nil, global), tables)
	assert.Equal(t, domain.InterventionKey("thought_record"), rec.Top().Intervention.Key)
	assert.InDelta(t, 0.3, rec.Top().Global, 1e-9)
}

func TestGlobalMinimumUsesIsTunable(t *testing.T) {
	tables := *lexicon.MustDefault()
	tables.Tuning.GlobalMinUses = 0

	global := map[domain.InterventionKey]domain.EffectivenessRecord{
		"thought_record": domain.EffectivenessRecord{}.Apply(domain.Outcome{Success: true, Rating: 5, At: now}),
	}

	rec := selection.Select(input(distortedText, nil, global), &tables)
	assert.Equal(t, domain.InterventionKey("thought_record"), rec.Top().Intervention.Key)
	assert.InDelta(t, 0.3, rec.Top().Global, 1e-9)
}

func TestPreferenceMatch(t *testing.T) {
	tables := lexicon.MustDefault()
	profile := domain.NewUserProfile("u1", now)
	profile.Preferences.PreferredCategories = []string{"self_worth"}

	rec := selection.Select(input(distortedText, profile, nil), tables)
	assert.Equal(t, domain.InterventionKey("self_compassion"), rec.Top().Intervention.Key)
	assert.InDelta(t, 0.1, rec.Top().Preference, 1e-9)
}

func TestRangeFit(t *testing.T) {
	r := domain.SeverityRange{Min: 3, Max: 8}

	assert.InDelta(t, 1-0.5/3.5, selection.RangeFit(r, 5), 1e-9)
	assert.InDelta(t, 4.0/7.0, selection.RangeFit(r, 7), 1e-9)
	// edges of the range still earn part of the bonus
	assert.InDelta(t, 1.0/3.5, selection.RangeFit(r, 3), 1e-9)
	assert.InDelta(t, 1.0/3.5, selection.RangeFit(r, 8), 1e-9)
	assert.InDelta(t, 1.0, selection.RangeFit(domain.SeverityRange{Min: 4, Max: 6}, 5), 1e-9)
	assert.Zero(t, selection.RangeFit(domain.SeverityRange{Min: 0, Max: 2}, 10))
}

func TestSignalsToolsKeepHighestPriority(t *testing.T) {
	tables := lexicon.MustDefault()
	a := analysis.Analyze("I'm anxious and stressed", nil, tables)

	_, tools := selection.Signals(a, tables)
	require.NotEmpty(t, tools)

	seen := map[string]bool{}
	for _, tool := range tools {
		assert.False(t, seen[tool.Tool], "duplicate tool %s", tool.Tool)
		seen[tool.Tool] = true
		if tool.Tool == "breathing_exercise" {
			assert.Equal(t, domain.PriorityHigh, tool.Priority)
		}
	}
	assert.True(t, seen["breathing_exercise"])
}
