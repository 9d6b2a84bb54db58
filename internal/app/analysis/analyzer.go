// Package analysis scores the emotional and cognitive content of one message.
package analysis

import (
	"sort"
	"strings"

	"github.com/PabloGalante/farum-triage/internal/domain"
	"github.com/PabloGalante/farum-triage/internal/lexicon"
)

// Intent used when no intent keyword matches.
const IntentGeneral = "general"

// Risk factors derived from session history rather than from the message.
const (
	RiskRecentCrisis  = "recent_crisis"
	RiskDecliningMood = "declining_mood"
)

// Analyze derives an Analysis from text. session may be nil; when present
// it only contributes temporal risk factors. The same inputs always yield
// the same Analysis.
func Analyze(text string, session *domain.SessionContext, t *lexicon.Tables) domain.Analysis {
	msg := lexicon.NewText(text)

	a := domain.Analysis{
		Sentiment:         sentiment(msg, t),
		Emotions:          emotions(msg, t),
		Distortions:       distortions(msg, t),
		Intent:            intent(msg, t),
		Topics:            names(msg, t.Topics),
		Markers:           markers(msg, text, t),
		RiskFactors:       names(msg, t.RiskFactors),
		ProtectiveFactors: names(msg, t.ProtectiveFactors),
	}
	a.Severity = severity(msg, a.Sentiment, t)
	a.RiskFactors = append(a.RiskFactors, temporalRisk(session, a.Sentiment, t)...)
	return a
}

func sentiment(msg lexicon.Text, t *lexicon.Tables) domain.Sentiment {
	tokens := msg.Tokens()
	negations := make(map[string]bool, len(t.Sentiment.Negations))
	for _, n := range t.Sentiment.Negations {
		negations[n] = true
	}

	var score float64
	for i, tok := range tokens {
		v, ok := t.Sentiment.Words[tok]
		if !ok {
			continue
		}
		if i > 0 && negations[tokens[i-1]] {
			v = -v
		}
		score += v
	}

	s := domain.Sentiment{Score: score, Classification: domain.SentimentNeutral}
	if len(tokens) > 0 {
		s.Comparative = score / float64(len(tokens))
	}
	switch {
	case score > t.Tuning.PositiveThreshold:
		s.Classification = domain.SentimentPositive
	case score < t.Tuning.NegativeThreshold:
		s.Classification = domain.SentimentNegative
	}
	return s
}

// emotions never returns an empty slice: with no hits it reports neutral.
func emotions(msg lexicon.Text, t *lexicon.Tables) []domain.EmotionScore {
	var out []domain.EmotionScore
	for _, cat := range t.Emotions {
		hits := msg.Matches(cat.Keywords)
		if len(hits) == 0 {
			continue
		}
		intensity := float64(len(hits)) / float64(len(cat.Keywords))
		if intensity > 1 {
			intensity = 1
		}
		out = append(out, domain.EmotionScore{Emotion: cat.Name, Intensity: intensity, Triggers: hits})
	}
	if len(out) == 0 {
		return []domain.EmotionScore{{Emotion: domain.NeutralEmotion, Intensity: t.Tuning.NeutralIntensity}}
	}
	// Stable sort keeps table order for equal intensities.
	sort.SliceStable(out, func(i, j int) bool { return out[i].Intensity > out[j].Intensity })
	return out
}

func distortions(msg lexicon.Text, t *lexicon.Tables) []domain.DistortionMatch {
	var out []domain.DistortionMatch
	for _, cat := range t.Distortions {
		hits := msg.Matches(cat.Keywords)
		if len(hits) == 0 {
			continue
		}
		freq := 0
		for _, h := range hits {
			freq += msg.Count(h)
		}
		out = append(out, domain.DistortionMatch{Type: cat.Name, Frequency: freq, Examples: hits})
	}
	return out
}

func intent(msg lexicon.Text, t *lexicon.Tables) string {
	for _, cat := range t.Intents {
		if msg.HasAny(cat.Keywords) {
			return cat.Name
		}
	}
	return IntentGeneral
}

// names returns the categories with at least one keyword hit, in table order.
func names(msg lexicon.Text, cats []lexicon.Category) []string {
	out := []string{}
	for _, cat := range cats {
		if msg.HasAny(cat.Keywords) {
			out = append(out, cat.Name)
		}
	}
	return out
}

func markers(msg lexicon.Text, raw string, t *lexicon.Tables) domain.Markers {
	m := domain.Markers{
		Words:     len(msg.Tokens()),
		Questions: strings.Count(raw, "?"),
	}
	negations := make(map[string]bool, len(t.Sentiment.Negations))
	for _, n := range t.Sentiment.Negations {
		negations[n] = true
	}
	firstPerson := make(map[string]bool, len(t.Markers.FirstPerson))
	for _, fp := range t.Markers.FirstPerson {
		firstPerson[fp] = true
	}
	for _, tok := range msg.Tokens() {
		if negations[tok] {
			m.Negations++
		}
		if firstPerson[tok] {
			m.FirstPerson++
		}
	}
	for _, abs := range t.Markers.Absolutes {
		m.Absolutes += msg.Count(abs)
	}
	return m
}

func severity(msg lexicon.Text, s domain.Sentiment, t *lexicon.Tables) int {
	tu := t.Tuning

	// A direct crisis or lethal-method mention overrides everything else.
	if msg.HasAny(t.Crisis.Keywords) || msg.HasAny(t.Crisis.LethalMethods) {
		return 10
	}

	sev := tu.BaselineSeverity
	switch {
	case s.Score < 0 && (s.Score <= tu.StrongNegativeScore || s.Comparative <= tu.StrongNegativeComparative):
		sev += tu.StrongNegativeBoost
	case s.Classification == domain.SentimentNegative:
		sev += tu.NegativeSeverityBoost
	}

	boost := 0
	for _, amp := range t.Markers.Amplifiers {
		boost += msg.Count(amp) * tu.AmplifierBoost
	}
	sev += min(boost, tu.MaxAmplifierBoost)

	return max(0, min(10, sev))
}

func temporalRisk(session *domain.SessionContext, s domain.Sentiment, t *lexicon.Tables) []string {
	if session == nil {
		return nil
	}
	var out []string
	if session.CrisisLevel >= domain.CrisisFloorSeverity {
		out = append(out, RiskRecentCrisis)
	}

	window := t.Tuning.ToneWindow - 1
	journey := session.EmotionalJourney
	if s.Classification == domain.SentimentNegative && window > 0 && len(journey) >= window {
		declining := true
		for _, c := range journey[len(journey)-window:] {
			if c != domain.SentimentNegative {
				declining = false
				break
			}
		}
		if declining {
			out = append(out, RiskDecliningMood)
		}
	}
	return out
}
