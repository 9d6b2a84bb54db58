// Package lexicon holds the keyword tables, intervention catalog and tuning
// parameters that drive triage. Tables are data: the reviewed default is
// embedded from default.toml and can be replaced by a TOML or YAML file.
package lexicon

import (
	"text/template"

	"github.com/PabloGalante/farum-triage/internal/domain"
)

// Category is a named keyword set (an emotion, distortion, intent, topic...).
type Category struct {
	Name        string   `toml:"name" yaml:"name"`
	Keywords    []string `toml:"keywords" yaml:"keywords"`
	Description string   `toml:"description" yaml:"description"`
}

// Weights of the personalization score.
type Weights struct {
	Global     float64 `toml:"global" yaml:"global"`
	Personal   float64 `toml:"personal" yaml:"personal"`
	RangeFit   float64 `toml:"range_fit" yaml:"range_fit"`
	Preference float64 `toml:"preference" yaml:"preference"`
	Recency    float64 `toml:"recency" yaml:"recency"`
}

// Tuning groups every threshold and constant used by the rule packages.
type Tuning struct {
	BaselineSeverity          int     `toml:"baseline_severity" yaml:"baseline_severity"`
	NegativeSeverityBoost     int     `toml:"negative_severity_boost" yaml:"negative_severity_boost"`
	StrongNegativeBoost       int     `toml:"strong_negative_boost" yaml:"strong_negative_boost"`
	StrongNegativeScore       float64 `toml:"strong_negative_score" yaml:"strong_negative_score"`
	StrongNegativeComparative float64 `toml:"strong_negative_comparative" yaml:"strong_negative_comparative"`
	AmplifierBoost            int     `toml:"amplifier_boost" yaml:"amplifier_boost"`
	MaxAmplifierBoost         int     `toml:"max_amplifier_boost" yaml:"max_amplifier_boost"`
	PositiveThreshold         float64 `toml:"positive_threshold" yaml:"positive_threshold"`
	NegativeThreshold         float64 `toml:"negative_threshold" yaml:"negative_threshold"`
	NeutralIntensity          float64 `toml:"neutral_intensity" yaml:"neutral_intensity"`

	CrisisEmotionCutoff      float64 `toml:"crisis_emotion_cutoff" yaml:"crisis_emotion_cutoff"`
	CrisisSeverityThreshold  int     `toml:"crisis_severity_threshold" yaml:"crisis_severity_threshold"`
	CrisisSentimentThreshold float64 `toml:"crisis_sentiment_threshold" yaml:"crisis_sentiment_threshold"`
	LethalMethodWeight       int     `toml:"lethal_method_weight" yaml:"lethal_method_weight"`
	HighSeverityCutoff       int     `toml:"high_severity_cutoff" yaml:"high_severity_cutoff"`
	HighSeverityWeight       int     `toml:"high_severity_weight" yaml:"high_severity_weight"`
	AllOrNothingWeight       int     `toml:"all_or_nothing_weight" yaml:"all_or_nothing_weight"`

	CrisisAdjacentSeverity int                 `toml:"crisis_adjacent_severity" yaml:"crisis_adjacent_severity"`
	MinSafetyScore         float64             `toml:"min_safety_score" yaml:"min_safety_score"`
	EvidenceQualityBar     domain.EvidenceTier `toml:"evidence_quality_bar" yaml:"evidence_quality_bar"`

	GlobalMinUses int     `toml:"global_min_uses" yaml:"global_min_uses"`
	MaxTechniques int     `toml:"max_techniques" yaml:"max_techniques"`
	LowConfidence float64 `toml:"low_confidence" yaml:"low_confidence"`
	ToneWindow    int     `toml:"tone_window" yaml:"tone_window"`

	Weights Weights `toml:"weights" yaml:"weights"`
}

type Sentiment struct {
	Negations []string           `toml:"negations" yaml:"negations"`
	Words     map[string]float64 `toml:"words" yaml:"words"`
}

type Markers struct {
	Absolutes   []string `toml:"absolutes" yaml:"absolutes"`
	FirstPerson []string `toml:"first_person" yaml:"first_person"`
	Amplifiers  []string `toml:"amplifiers" yaml:"amplifiers"`
}

// CrisisType is one crisis classification with its canned message.
type CrisisType struct {
	Name     domain.CrisisType `toml:"name" yaml:"name"`
	Keywords []string          `toml:"keywords" yaml:"keywords"`
	Message  string            `toml:"message" yaml:"message"`
	Action   string            `toml:"action" yaml:"action"`
}

type Crisis struct {
	Keywords        []string                `toml:"keywords" yaml:"keywords"`
	HighRiskPhrases []string                `toml:"high_risk_phrases" yaml:"high_risk_phrases"`
	LethalMethods   []string                `toml:"lethal_methods" yaml:"lethal_methods"`
	DespairEmotions []string                `toml:"despair_emotions" yaml:"despair_emotions"`
	FollowUp        string                  `toml:"follow_up" yaml:"follow_up"`
	Types           []CrisisType            `toml:"types" yaml:"types"`
	Resources       []domain.CrisisResource `toml:"resources" yaml:"resources"`
}

// Transition moves the flow to Stage when any phrase matches.
type Transition struct {
	Stage      domain.Stage `toml:"stage" yaml:"stage"`
	Confidence float64      `toml:"confidence" yaml:"confidence"`
	Phrases    []string     `toml:"phrases" yaml:"phrases"`
}

type Flow struct {
	Engagement     []string                `toml:"engagement" yaml:"engagement"`
	Disengagement  []string                `toml:"disengagement" yaml:"disengagement"`
	DeepTopics     []string                `toml:"deep_topics" yaml:"deep_topics"`
	ModerateTopics []string                `toml:"moderate_topics" yaml:"moderate_topics"`
	Transitions    []Transition            `toml:"transitions" yaml:"transitions"`
	FollowUps      map[domain.Stage]string `toml:"follow_ups" yaml:"follow_ups"`
}

type Responses struct {
	EmptyInput       string                               `toml:"empty_input" yaml:"empty_input"`
	InternalError    string                               `toml:"internal_error" yaml:"internal_error"`
	FallbackFollowUp string                               `toml:"fallback_follow_up" yaml:"fallback_follow_up"`
	Templates        map[domain.CommunicationStyle]string `toml:"templates" yaml:"templates"`
}

// Tool is an external tool the UI can open, with its priority.
type Tool struct {
	Tool     string          `toml:"tool" yaml:"tool"`
	Priority domain.Priority `toml:"priority" yaml:"priority"`
}

// Signal kinds in the applicability table.
const (
	SignalEmotion    = "emotion"
	SignalDistortion = "distortion"
	SignalTopic      = "topic"
	SignalRisk       = "risk"

	// AnyName matches every signal of its kind.
	AnyName = "*"
)

// Applicability maps one analysis signal to intervention categories and
// suggested tools. It is the only place that relates signals to techniques.
type Applicability struct {
	Signal     string   `toml:"signal" yaml:"signal"`
	Name       string   `toml:"name" yaml:"name"`
	Categories []string `toml:"categories" yaml:"categories"`
	Tools      []Tool   `toml:"tools" yaml:"tools"`
}

// Tables is one complete, validated lexicon. Treat it as read-only once
// returned from Load/Parse/MustDefault.
type Tables struct {
	Version           string                `toml:"version" yaml:"version"`
	Tuning            Tuning                `toml:"tuning" yaml:"tuning"`
	Sentiment         Sentiment             `toml:"sentiment" yaml:"sentiment"`
	Emotions          []Category            `toml:"emotions" yaml:"emotions"`
	Distortions       []Category            `toml:"distortions" yaml:"distortions"`
	Intents           []Category            `toml:"intents" yaml:"intents"`
	Topics            []Category            `toml:"topics" yaml:"topics"`
	Markers           Markers               `toml:"markers" yaml:"markers"`
	RiskFactors       []Category            `toml:"risk_factors" yaml:"risk_factors"`
	ProtectiveFactors []Category            `toml:"protective_factors" yaml:"protective_factors"`
	Crisis            Crisis                `toml:"crisis" yaml:"crisis"`
	Flow              Flow                  `toml:"flow" yaml:"flow"`
	Responses         Responses             `toml:"responses" yaml:"responses"`
	Applicability     []Applicability       `toml:"applicability" yaml:"applicability"`
	Default           domain.Intervention   `toml:"default_intervention" yaml:"default_intervention"`
	Interventions     []domain.Intervention `toml:"interventions" yaml:"interventions"`

	interventionIndex map[domain.InterventionKey]int
	templates         map[domain.CommunicationStyle]*template.Template
}

// Intervention looks up a catalog entry, including the default one.
func (t *Tables) Intervention(key domain.InterventionKey) (domain.Intervention, bool) {
	if key == t.Default.Key {
		return t.Default, true
	}
	i, ok := t.interventionIndex[key]
	if !ok {
		return domain.Intervention{}, false
	}
	return t.Interventions[i], true
}

// Template returns the parsed response template for style, falling back to empathetic.
func (t *Tables) Template(style domain.CommunicationStyle) *template.Template {
	if tpl, ok := t.templates[style]; ok {
		return tpl
	}
	return t.templates[domain.StyleEmpathetic]
}

// Distortion returns the distortion category by name.
func (t *Tables) Distortion(name string) (Category, bool) {
	for _, d := range t.Distortions {
		if d.Name == name {
			return d, true
		}
	}
	return Category{}, false
}

// CrisisTypeFor returns the crisis type entry by name.
func (t *Tables) CrisisTypeFor(name domain.CrisisType) (CrisisType, bool) {
	for _, ct := range t.Crisis.Types {
		if ct.Name == name {
			return ct, true
		}
	}
	return CrisisType{}, false
}

// ApplicableTo returns the applicability rows for one signal, in table order.
func (t *Tables) ApplicableTo(signal, name string) []Applicability {
	var out []Applicability
	for _, a := range t.Applicability {
		if a.Signal != signal {
			continue
		}
		if a.Name == name || a.Name == AnyName {
			out = append(out, a)
		}
	}
	return out
}
