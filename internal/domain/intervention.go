package domain

// EvidenceTier grades the research support of a technique, "A" best.
type EvidenceTier string

const (
	EvidenceA EvidenceTier = "A"
	EvidenceB EvidenceTier = "B"
	EvidenceC EvidenceTier = "C"
	EvidenceD EvidenceTier = "D"
)

// Rank orders tiers: A=4 ... D=1, unknown=0.
func (t EvidenceTier) Rank() int {
	switch t {
	case EvidenceA:
		return 4
	case EvidenceB:
		return 3
	case EvidenceC:
		return 2
	case EvidenceD:
		return 1
	default:
		return 0
	}
}

// SeverityRange is an inclusive [Min,Max] severity window.
type SeverityRange struct {
	Min int `json:"min" toml:"min" yaml:"min"`
	Max int `json:"max" toml:"max" yaml:"max"`
}

func (r SeverityRange) Contains(severity int) bool {
	return severity >= r.Min && severity <= r.Max
}

// Intervention is immutable catalog data describing one technique.
type Intervention struct {
	Key               InterventionKey `json:"key" toml:"key" yaml:"key"`
	Name              string          `json:"name" toml:"name" yaml:"name"`
	Category          string          `json:"category" toml:"category" yaml:"category"`
	Technique         string          `json:"technique" toml:"technique" yaml:"technique"`
	Description       string          `json:"description,omitempty" toml:"description" yaml:"description"`
	Keywords          []string        `json:"-" toml:"keywords" yaml:"keywords"`
	Severity          SeverityRange   `json:"severity" toml:"severity" yaml:"severity"`
	EvidenceTier      EvidenceTier    `json:"evidence_tier" toml:"evidence_tier" yaml:"evidence_tier"`
	Components        []string        `json:"components,omitempty" toml:"components" yaml:"components"`
	Contraindications []string        `json:"contraindications,omitempty" toml:"contraindications" yaml:"contraindications"`
	Exposure          bool            `json:"exposure,omitempty" toml:"exposure" yaml:"exposure"`
	TraumaProcessing  bool            `json:"trauma_processing,omitempty" toml:"trauma_processing" yaml:"trauma_processing"`
	Steps             []string        `json:"steps,omitempty" toml:"steps" yaml:"steps"`
}

// HasComponent reports whether the intervention includes the named component.
func (i Intervention) HasComponent(name string) bool {
	for _, c := range i.Components {
		if c == name {
			return true
		}
	}
	return false
}

// ValidationResult is the clinical validator's verdict on one intervention.
type ValidationResult struct {
	IsValid                 bool         `json:"is_valid"`
	Warnings                []string     `json:"warnings,omitempty"`
	SafetyScore             float64      `json:"safety_score"`
	ClinicalAppropriateness float64      `json:"clinical_appropriateness"`
	EvidenceLevel           EvidenceTier `json:"evidence_level"`
}

// ScoredIntervention is a ranked candidate with its score breakdown.
type ScoredIntervention struct {
	Intervention Intervention     `json:"intervention"`
	Score        float64          `json:"score"`
	Global       float64          `json:"global"`
	Personal     float64          `json:"personal"`
	RangeFit     float64          `json:"range_fit"`
	Preference   float64          `json:"preference"`
	Recency      float64          `json:"recency"`
	Validation   ValidationResult `json:"validation"`
}

// Rejection records a candidate excluded by clinical validation.
type Rejection struct {
	Key      InterventionKey `json:"key"`
	Warnings []string        `json:"warnings"`
}

// Recommendation is the selector's output. Ranked is never empty.
type Recommendation struct {
	Ranked     []ScoredIntervention `json:"ranked"`
	Rejected   []Rejection          `json:"rejected,omitempty"`
	Categories []string             `json:"categories,omitempty"`
	IsDefault  bool                 `json:"is_default"`
}

// Top returns the winning intervention.
func (r Recommendation) Top() ScoredIntervention {
	return r.Ranked[0]
}
