// Package compose turns the results of a turn into a response.
package compose

import (
	"fmt"
	"strings"

	"github.com/PabloGalante/farum-triage/internal/app/crisis"
	"github.com/PabloGalante/farum-triage/internal/app/selection"
	"github.com/PabloGalante/farum-triage/internal/domain"
	"github.com/PabloGalante/farum-triage/internal/lexicon"
)

// CrisisTool is the suggested action that opens the crisis resources page.
const CrisisTool = "crisis_resources"

type Composer struct {
	t *lexicon.Tables
}

func New(t *lexicon.Tables) Composer {
	return Composer{t: t}
}

// templateData is what response templates can reference.
type templateData struct {
	Emotion     string
	Technique   string
	Description string
}

// StandardInput carries one non-crisis turn.
type StandardInput struct {
	SessionID      domain.SessionID
	Analysis       domain.Analysis
	Recommendation domain.Recommendation
	Style          domain.CommunicationStyle
	Stage          domain.Stage
	Info           domain.SessionInfo
}

// Standard fills the style template with the primary emotion and the
// top-ranked technique.
func (c Composer) Standard(in StandardInput) (*domain.StandardResponse, error) {
	top := in.Recommendation.Top().Intervention
	data := templateData{
		Emotion:     humanize(in.Analysis.PrimaryEmotion().Emotion),
		Technique:   top.Name,
		Description: top.Description,
	}

	var text strings.Builder
	if err := c.t.Template(in.Style).Execute(&text, data); err != nil {
		return nil, fmt.Errorf("render %s template: %w", in.Style, err)
	}

	n := min(c.t.Tuning.MaxTechniques, len(in.Recommendation.Ranked))
	_, tools := selection.Signals(in.Analysis, c.t)

	a := in.Analysis
	return &domain.StandardResponse{
		Envelope: domain.Envelope{
			SessionID:        in.SessionID,
			Text:             text.String(),
			FollowUp:         c.t.Flow.FollowUps[in.Stage],
			SuggestedActions: actions(tools),
			Analysis:         &a,
			SessionInfo:      in.Info,
		},
		Style:              in.Style,
		Techniques:         selection.Techniques(in.Recommendation, n),
		Interventions:      append([]domain.ScoredIntervention(nil), in.Recommendation.Ranked[:n]...),
		EducationalContent: c.educational(in.Analysis),
		Stage:              in.Stage,
	}, nil
}

// Crisis builds the safety response. It always names a hotline and puts the
// crisis route first at immediate priority.
func (c Composer) Crisis(sessionID domain.SessionID, a domain.Analysis, ca domain.CrisisAssessment, info domain.SessionInfo) *domain.CrisisResponse {
	var acts []domain.SuggestedAction
	for _, r := range ca.Resources {
		if r.Route != "" {
			acts = append(acts, domain.SuggestedAction{Tool: CrisisTool, Priority: domain.PriorityImmediate, Route: r.Route})
		}
	}
	acts = append(acts, domain.SuggestedAction{Tool: "safety_plan", Priority: domain.PriorityHigh})

	return &domain.CrisisResponse{
		Envelope: domain.Envelope{
			SessionID:        sessionID,
			Text:             crisis.Message(ca, c.t),
			FollowUp:         c.t.Crisis.FollowUp,
			SuggestedActions: acts,
			Analysis:         &a,
			SessionInfo:      info,
		},
		Assessment: ca,
	}
}

// Fallback is the generic supportive reply.
func (c Composer) Fallback(sessionID domain.SessionID, reason domain.FallbackReason, info domain.SessionInfo) *domain.FallbackResponse {
	text := c.t.Responses.InternalError
	if reason == domain.FallbackEmptyInput {
		text = c.t.Responses.EmptyInput
	}
	return &domain.FallbackResponse{
		Envelope: domain.Envelope{
			SessionID:        sessionID,
			Text:             text,
			FollowUp:         c.t.Responses.FallbackFollowUp,
			SuggestedActions: []domain.SuggestedAction{},
			SessionInfo:      info,
		},
		Reason: reason,
	}
}

func (c Composer) educational(a domain.Analysis) string {
	var parts []string
	for _, d := range a.Distortions {
		if cat, ok := c.t.Distortion(d.Type); ok && cat.Description != "" {
			parts = append(parts, cat.Description)
		}
	}
	return strings.Join(parts, " ")
}

func actions(tools []lexicon.Tool) []domain.SuggestedAction {
	out := make([]domain.SuggestedAction, 0, len(tools))
	for _, t := range tools {
		out = append(out, domain.SuggestedAction{Tool: t.Tool, Priority: t.Priority})
	}
	return out
}

func humanize(name string) string {
	if name == domain.NeutralEmotion {
		return "mixed feelings"
	}
	return strings.ReplaceAll(name, "_", " ")
}
