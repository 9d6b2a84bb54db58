// Package crisis decides whether a message needs the safety protocol.
//
// Detection is an OR over independent signal classes so that one missed
// keyword does not hide a crisis the other signals can see.
package crisis

import (
	"github.com/PabloGalante/farum-triage/internal/domain"
	"github.com/PabloGalante/farum-triage/internal/lexicon"
)

const distortionAllOrNothing = "all_or_nothing"

// Detect assesses text together with its Analysis.
func Detect(text string, a domain.Analysis, t *lexicon.Tables) domain.CrisisAssessment {
	msg := lexicon.NewText(text)
	tu := t.Tuning

	var sig domain.CrisisSignals
	if hits := msg.Matches(t.Crisis.Keywords); len(hits) > 0 {
		sig.Keyword = true
		sig.Matched = append(sig.Matched, hits...)
	}
	if hits := msg.Matches(t.Crisis.HighRiskPhrases); len(hits) > 0 {
		sig.HighRiskPhrase = true
		sig.Matched = append(sig.Matched, hits...)
	}
	for _, name := range t.Crisis.DespairEmotions {
		if a.EmotionIntensity(name) >= tu.CrisisEmotionCutoff {
			sig.Emotional = true
			break
		}
	}
	sig.Threshold = a.Severity >= tu.CrisisSeverityThreshold ||
		a.Sentiment.Score <= tu.CrisisSentimentThreshold
	if hits := msg.Matches(t.Crisis.LethalMethods); len(hits) > 0 {
		sig.LethalMethod = true
		sig.Matched = append(sig.Matched, hits...)
	}

	if !sig.Keyword && !sig.HighRiskPhrase && !sig.Emotional && !sig.Threshold {
		return domain.CrisisAssessment{Type: domain.CrisisNone, Signals: sig}
	}

	severity := domain.CrisisFloorSeverity
	if sig.LethalMethod {
		severity += tu.LethalMethodWeight
	}
	if a.Severity > tu.HighSeverityCutoff {
		severity += tu.HighSeverityWeight
	}
	if a.HasDistortion(distortionAllOrNothing) {
		severity += tu.AllOrNothingWeight
	}
	severity = min(severity, 10)

	ct := classify(msg, t)
	return domain.CrisisAssessment{
		IsCrisis:          true,
		Severity:          severity,
		Type:              ct.Name,
		RecommendedAction: ct.Action,
		Signals:           sig,
		Resources:         append([]domain.CrisisResource(nil), t.Crisis.Resources...),
	}
}

// classify returns the first crisis type with a keyword hit, in table
// order, falling back to severe distress.
func classify(msg lexicon.Text, t *lexicon.Tables) lexicon.CrisisType {
	for _, ct := range t.Crisis.Types {
		if msg.HasAny(ct.Keywords) {
			return ct
		}
	}
	ct, _ := t.CrisisTypeFor(domain.CrisisSevereDistress)
	return ct
}

// Message returns the canned message for an assessment's type.
func Message(a domain.CrisisAssessment, t *lexicon.Tables) string {
	if ct, ok := t.CrisisTypeFor(a.Type); ok {
		return ct.Message
	}
	ct, _ := t.CrisisTypeFor(domain.CrisisSevereDistress)
	return ct.Message
}
