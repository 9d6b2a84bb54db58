package analysis_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/farum-triage/internal/app/analysis"
	"github.com/PabloGalante/farum-triage/internal/domain"
	"github.com/PabloGalante/farum-triage/internal/lexicon"
)

func TestAnalyzeNeutralGreeting(t *testing.T) {
	a := analysis.Analyze("Hello, how are you?", nil, lexicon.MustDefault())

	assert.Equal(t, 5, a.Severity)
	assert.Equal(t, domain.SentimentNeutral, a.Sentiment.Classification)
	require.Len(t, a.Emotions, 1)
	assert.Equal(t, domain.NeutralEmotion, a.Emotions[0].Emotion)
	assert.InDelta(t, 0.5, a.Emotions[0].Intensity, 1e-9)
	assert.Empty(t, a.Distortions)
	assert.Equal(t, analysis.IntentGeneral, a.Intent)
	assert.Equal(t, 1, a.Markers.Questions)
	assert.Equal(t, 4, a.Markers.Words)
}

func TestAnalyzeCrisisKeywordSetsMaxSeverity(t *testing.T) {
	a := analysis.Analyze("I think about ending my life", nil, lexicon.MustDefault())

	assert.Equal(t, 10, a.Severity)
	assert.Equal(t, "crisis", a.Intent)
}

func TestAnalyzeLethalMethodSetsMaxSeverity(t *testing.T) {
	a := analysis.Analyze("I have been saving up pills", nil, lexicon.MustDefault())
	assert.Equal(t, 10, a.Severity)
}

func TestAnalyzeDistortionsAndSeverity(t *testing.T) {
	a := analysis.Analyze("I always fail at everything and I'm useless", nil, lexicon.MustDefault())

	assert.InDelta(t, -4, a.Sentiment.Score, 1e-9)
	assert.InDelta(t, -0.5, a.Sentiment.Comparative, 1e-9)
	assert.Equal(t, domain.SentimentNegative, a.Sentiment.Classification)
	assert.Equal(t, 7, a.Severity)

	assert.True(t, a.HasDistortion("all_or_nothing"))
	assert.True(t, a.HasDistortion("labeling"))
	assert.False(t, a.HasDistortion("catastrophizing"))

	for _, d := range a.Distortions {
		if d.Type == "all_or_nothing" {
			assert.Equal(t, []string{"always", "everything"}, d.Examples)
			assert.Equal(t, 2, d.Frequency)
		}
	}
	assert.Contains(t, a.Topics, "self_worth")
	assert.Equal(t, 2, a.Markers.Absolutes)
}

func TestAnalyzeAmplifiersAreCapped(t *testing.T) {
	a := analysis.Analyze("I feel so overwhelmed and it is unbearable, extremely intense", nil, lexicon.MustDefault())

	// baseline 5, strong negative +2, amplifiers capped at +2
	assert.Equal(t, 9, a.Severity)
}

func TestAnalyzeNegationFlipsSentiment(t *testing.T) {
	a := analysis.Analyze("I am not happy", nil, lexicon.MustDefault())

	assert.InDelta(t, -3, a.Sentiment.Score, 1e-9)
	assert.Equal(t, domain.SentimentNegative, a.Sentiment.Classification)
	assert.Equal(t, 1, a.Markers.Negations)
}

func TestAnalyzeEmotionOrdering(t *testing.T) {
	tables := lexicon.MustDefault()

	a := analysis.Analyze("I'm sad and lonely and alone", nil, tables)
	require.GreaterOrEqual(t, len(a.Emotions), 2)
	assert.Equal(t, "loneliness", a.Emotions[0].Emotion)
	assert.InDelta(t, 2.0/7.0, a.Emotions[0].Intensity, 1e-9)
	assert.Equal(t, "sadness", a.Emotions[1].Emotion)

	// Equal intensity keeps table order: shame is listed before calm.
	a = analysis.Analyze("ashamed but calm", nil, tables)
	require.Len(t, a.Emotions, 2)
	assert.Equal(t, "shame", a.Emotions[0].Emotion)
	assert.Equal(t, "calm", a.Emotions[1].Emotion)
}

func TestAnalyzeEmotionsNeverEmpty(t *testing.T) {
	tables := lexicon.MustDefault()
	for _, text := range []string{"", "   ", "!!!", "the quick brown fox", "12345"} {
		a := analysis.Analyze(text, nil, tables)
		assert.NotEmpty(t, a.Emotions, "text %q", text)
	}
}

func TestAnalyzeIsDeterministic(t *testing.T) {
	tables := lexicon.MustDefault()
	text := "My boss says I should work harder and I feel anxious and alone, I can't sleep"

	first := analysis.Analyze(text, nil, tables)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, analysis.Analyze(text, nil, tables))
	}
}

func TestAnalyzeRiskAndProtectiveFactors(t *testing.T) {
	a := analysis.Analyze("I feel hopeless and alone but I talked to my therapist", nil, lexicon.MustDefault())

	assert.Contains(t, a.RiskFactors, "hopelessness")
	assert.Contains(t, a.RiskFactors, "isolation")
	assert.Contains(t, a.ProtectiveFactors, "social_support")
	assert.Contains(t, a.ProtectiveFactors, "help_seeking")
}

func TestAnalyzeTemporalRiskFromSession(t *testing.T) {
	session := &domain.SessionContext{
		CrisisLevel:      9,
		EmotionalJourney: []domain.SentimentClass{domain.SentimentNegative, domain.SentimentNegative},
	}

	a := analysis.Analyze("everything is awful", session, lexicon.MustDefault())
	assert.Contains(t, a.RiskFactors, analysis.RiskRecentCrisis)
	assert.Contains(t, a.RiskFactors, analysis.RiskDecliningMood)

	a = analysis.Analyze("today was good", session, lexicon.MustDefault())
	assert.Contains(t, a.RiskFactors, analysis.RiskRecentCrisis)
	assert.NotContains(t, a.RiskFactors, analysis.RiskDecliningMood)
}

func TestAnalyzeWholeWordMatching(t *testing.T) {
	// "whatever" contains "hate" but must not read as anger.
	a := analysis.Analyze("whatever", nil, lexicon.MustDefault())
	assert.Equal(t, domain.NeutralEmotion, a.PrimaryEmotion().Emotion)
}
