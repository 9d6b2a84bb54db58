package compose_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/farum-triage/internal/app/analysis"
	"github.com/PabloGalante/farum-triage/internal/app/compose"
	"github.com/PabloGalante/farum-triage/internal/app/crisis"
	"github.com/PabloGalante/farum-triage/internal/app/selection"
	"github.com/PabloGalante/farum-triage/internal/domain"
	"github.com/PabloGalante/farum-triage/internal/lexicon"
)

func standard(t *testing.T, text string, style domain.CommunicationStyle) *domain.StandardResponse {
	t.Helper()
	tables := lexicon.MustDefault()
	a := analysis.Analyze(text, nil, tables)
	rec := selection.Select(selection.Input{Text: text, Analysis: a}, tables)

	resp, err := compose.New(tables).Standard(compose.StandardInput{
		SessionID:      "s1",
		Analysis:       a,
		Recommendation: rec,
		Style:          style,
		Stage:          domain.StageAssessment,
	})
	require.NoError(t, err)
	return resp
}

func TestStandardResponse(t *testing.T) {
	resp := standard(t, "I always fail at everything and I'm useless", domain.StyleEmpathetic)

	assert.Equal(t, domain.KindStandard, resp.Kind())
	assert.Contains(t, resp.Text, "cognitive restructuring")
	assert.Equal(t, []string{"cognitive_restructuring", "self_compassion", "thought_record"}, resp.Techniques)
	assert.Len(t, resp.Interventions, 3)
	assert.Equal(t, "How long have you been feeling this way?", resp.FollowUp)
	assert.Contains(t, resp.EducationalContent, "All-or-nothing thinking")
	assert.Contains(t, resp.EducationalContent, "Labeling")
	require.NotNil(t, resp.Analysis)
	assert.Equal(t, 7, resp.Analysis.Severity)

	tools := map[string]domain.Priority{}
	for _, a := range resp.SuggestedActions {
		tools[a.Tool] = a.Priority
	}
	assert.Equal(t, domain.PriorityHigh, tools["thought_record"])
}

func TestStandardResponseStyles(t *testing.T) {
	text := "I'm so anxious and worried about tomorrow"
	seen := map[string]bool{}
	for _, style := range []domain.CommunicationStyle{
		domain.StyleEmpathetic, domain.StyleDirect, domain.StyleSocratic, domain.StyleMindfulness,
	} {
		resp := standard(t, text, style)
		assert.Equal(t, style, resp.Style)
		assert.Contains(t, resp.Text, "anxiety")
		assert.False(t, seen[resp.Text], "styles should render differently")
		seen[resp.Text] = true
	}
}

func TestStandardResponseDefaultIntervention(t *testing.T) {
	resp := standard(t, "Hello, how are you?", domain.StyleDirect)

	assert.Equal(t, []string{"supportive_listening"}, resp.Techniques)
	assert.Empty(t, resp.EducationalContent)
}

func TestCrisisResponse(t *testing.T) {
	tables := lexicon.MustDefault()
	text := "I think about ending my life"
	a := analysis.Analyze(text, nil, tables)
	ca := crisis.Detect(text, a, tables)

	resp := compose.New(tables).Crisis("s1", a, ca, domain.SessionInfo{CrisisLevel: 9})

	assert.Equal(t, domain.KindCrisis, resp.Kind())
	assert.Contains(t, resp.Text, "988")
	assert.Equal(t, "Are you somewhere safe right now?", resp.FollowUp)
	require.NotEmpty(t, resp.SuggestedActions)
	first := resp.SuggestedActions[0]
	assert.Equal(t, compose.CrisisTool, first.Tool)
	assert.Equal(t, domain.PriorityImmediate, first.Priority)
	assert.Equal(t, "/crisis", first.Route)
	assert.Equal(t, 9, resp.Assessment.Severity)
}

func TestFallbackResponses(t *testing.T) {
	c := compose.New(lexicon.MustDefault())

	empty := c.Fallback("s1", domain.FallbackEmptyInput, domain.SessionInfo{})
	assert.Equal(t, domain.KindFallback, empty.Kind())
	assert.Contains(t, empty.Text, "share a little more")
	assert.NotNil(t, empty.SuggestedActions)

	internal := c.Fallback("s1", domain.FallbackInternal, domain.SessionInfo{})
	assert.Contains(t, internal.Text, "I'm here with you")
	assert.NotEqual(t, empty.Text, internal.Text)
}
