// Package selection picks and ranks interventions for a turn, personalized
// by the user's own feedback and the global aggregate.
package selection

import (
	"math"
	"slices"
	"sort"

	"github.com/PabloGalante/farum-triage/internal/app/clinical"
	"github.com/PabloGalante/farum-triage/internal/domain"
	"github.com/PabloGalante/farum-triage/internal/lexicon"
)

// Input is everything one selection reads. Profile, Session and Global may
// be nil or empty.
type Input struct {
	Text     string
	Analysis domain.Analysis
	Profile  *domain.UserProfile
	Session  *domain.SessionContext
	Global   map[domain.InterventionKey]domain.EffectivenessRecord
}

// Select returns a ranked recommendation. It never returns an empty one:
// when nothing applies it falls back to the default intervention.
func Select(in Input, t *lexicon.Tables) domain.Recommendation {
	categories, _ := Signals(in.Analysis, t)
	msg := lexicon.NewText(in.Text)

	vc := clinical.Context{
		Severity:    in.Analysis.Severity,
		RiskFactors: in.Analysis.RiskFactors,
	}
	if in.Profile != nil {
		vc.History = in.Profile.Clinical
	}
	// A session that has been in crisis keeps its crisis level until it is
	// explicitly de-escalated.
	if in.Session != nil && in.Session.CrisisLevel > vc.Severity {
		vc.Severity = in.Session.CrisisLevel
	}

	rec := domain.Recommendation{Categories: categories}
	for _, iv := range t.Interventions {
		if !slices.Contains(categories, iv.Category) {
			continue
		}
		if !iv.Severity.Contains(in.Analysis.Severity) {
			continue
		}
		if !msg.HasAny(iv.Keywords) {
			continue
		}

		v := clinical.Validate(iv, vc, t)
		if !v.IsValid {
			rec.Rejected = append(rec.Rejected, domain.Rejection{Key: iv.Key, Warnings: v.Warnings})
			continue
		}
		s := score(iv, in, t)
		s.Validation = v
		rec.Ranked = append(rec.Ranked, s)
	}

	if len(rec.Ranked) == 0 {
		def := t.Default
		rec.IsDefault = true
		rec.Ranked = []domain.ScoredIntervention{{
			Intervention: def,
			Validation: domain.ValidationResult{
				IsValid:                 true,
				SafetyScore:             1,
				ClinicalAppropriateness: 1,
				EvidenceLevel:           def.EvidenceTier,
			},
		}}
		return rec
	}

	// Stable: equal scores keep catalog order.
	sort.SliceStable(rec.Ranked, func(i, j int) bool {
		return rec.Ranked[i].Score > rec.Ranked[j].Score
	})
	return rec
}

func score(iv domain.Intervention, in Input, t *lexicon.Tables) domain.ScoredIntervention {
	w := t.Tuning.Weights
	s := domain.ScoredIntervention{Intervention: iv}

	if g, ok := in.Global[iv.Key]; ok && g.Uses >= t.Tuning.GlobalMinUses && g.Uses > 0 {
		s.Global = w.Global * g.AverageRating() / domain.MaxRating
	}

	personal := in.Profile.Record(iv.Key)
	s.Personal = w.Personal * personal.AverageRating() / domain.MaxRating
	s.RangeFit = w.RangeFit * RangeFit(iv.Severity, in.Analysis.Severity)

	if in.Profile != nil {
		prefs := in.Profile.Preferences
		if slices.Contains(prefs.PreferredTechniques, string(iv.Key)) ||
			slices.Contains(prefs.PreferredCategories, iv.Category) {
			s.Preference = w.Preference
		}
	}

	if len(personal.Recent) > 0 {
		ok := 0
		for _, o := range personal.Recent {
			if o.Success {
				ok++
			}
		}
		s.Recency = w.Recency * float64(ok) / float64(len(personal.Recent))
	}

	s.Score = s.Global + s.Personal + s.RangeFit + s.Preference + s.Recency
	return s
}

// RangeFit is 1 at the center of the range, falling linearly toward its
// edges, and 0 outside it.
func RangeFit(r domain.SeverityRange, severity int) float64 {
	half := float64(r.Max-r.Min) / 2
	center := float64(r.Min) + half
	fit := 1 - math.Abs(float64(severity)-center)/(half+1)
	return math.Max(0, math.Min(1, fit))
}

// Signals maps an analysis through the applicability table. Categories and
// tools come back deduplicated in order of first appearance; a tool listed
// twice keeps its most urgent priority.
func Signals(a domain.Analysis, t *lexicon.Tables) ([]string, []lexicon.Tool) {
	var rows []lexicon.Applicability
	for _, e := range a.Emotions {
		rows = append(rows, t.ApplicableTo(lexicon.SignalEmotion, e.Emotion)...)
	}
	for _, d := range a.Distortions {
		rows = append(rows, t.ApplicableTo(lexicon.SignalDistortion, d.Type)...)
	}
	for _, topic := range a.Topics {
		rows = append(rows, t.ApplicableTo(lexicon.SignalTopic, topic)...)
	}
	for _, r := range a.RiskFactors {
		rows = append(rows, t.ApplicableTo(lexicon.SignalRisk, r)...)
	}

	var categories []string
	var tools []lexicon.Tool
	toolIdx := map[string]int{}
	for _, row := range rows {
		for _, c := range row.Categories {
			if !slices.Contains(categories, c) {
				categories = append(categories, c)
			}
		}
		for _, tool := range row.Tools {
			i, seen := toolIdx[tool.Tool]
			if !seen {
				toolIdx[tool.Tool] = len(tools)
				tools = append(tools, tool)
				continue
			}
			if priorityRank(tool.Priority) > priorityRank(tools[i].Priority) {
				tools[i].Priority = tool.Priority
			}
		}
	}
	return categories, tools
}

func priorityRank(p domain.Priority) int {
	switch p {
	case domain.PriorityImmediate:
		return 4
	case domain.PriorityHigh:
		return 3
	case domain.PriorityMedium:
		return 2
	case domain.PriorityLow:
		return 1
	default:
		return 0
	}
}

// Techniques returns the keys of the top n ranked interventions.
func Techniques(rec domain.Recommendation, n int) []string {
	out := make([]string, 0, n)
	for i, s := range rec.Ranked {
		if i == n {
			break
		}
		out = append(out, string(s.Intervention.Key))
	}
	return out
}
