// Package clinical checks candidate interventions against safety rules.
package clinical

import (
	"fmt"

	"github.com/PabloGalante/farum-triage/internal/domain"
	"github.com/PabloGalante/farum-triage/internal/lexicon"
)

// Components every intervention needs near crisis severity.
const (
	ComponentSafetyPlanning       = "safety_planning"
	ComponentProfessionalReferral = "professional_referral"
)

// Context is what the validator knows about the person and the turn.
type Context struct {
	Severity    int
	RiskFactors []string
	History     domain.ClinicalHistory
}

// Validate applies the rules to one intervention. Failing interventions are
// reported, never fixed up.
func Validate(iv domain.Intervention, c Context, t *lexicon.Tables) domain.ValidationResult {
	tu := t.Tuning
	res := domain.ValidationResult{
		SafetyScore:             1,
		ClinicalAppropriateness: 1,
		EvidenceLevel:           iv.EvidenceTier,
	}

	if c.Severity >= tu.CrisisAdjacentSeverity {
		for _, comp := range []string{ComponentSafetyPlanning, ComponentProfessionalReferral} {
			if !iv.HasComponent(comp) {
				res.Warnings = append(res.Warnings,
					fmt.Sprintf("severity %d requires component %s", c.Severity, comp))
			}
		}
		if iv.Exposure {
			res.SafetyScore = 0
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("exposure techniques are blocked at severity %d", c.Severity))
		}
	}

	if c.History.TraumaHistory && !c.History.Stabilized && iv.TraumaProcessing {
		res.Warnings = append(res.Warnings, "trauma processing is contraindicated before stabilization")
	}

	if bar := tu.EvidenceQualityBar.Rank(); iv.EvidenceTier.Rank() < bar {
		// One tier below the bar costs a quarter.
		gap := bar - iv.EvidenceTier.Rank()
		res.ClinicalAppropriateness = max(0, 1-0.25*float64(gap))
	}

	risks := make(map[string]bool, len(c.RiskFactors))
	for _, r := range c.RiskFactors {
		risks[r] = true
	}
	for _, ci := range iv.Contraindications {
		if risks[ci] {
			res.Warnings = append(res.Warnings, fmt.Sprintf("contraindicated with %s", ci))
		}
	}

	res.IsValid = len(res.Warnings) == 0 && res.SafetyScore >= tu.MinSafetyScore
	return res
}
