package lexicon

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"text/template"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/PabloGalante/farum-triage/internal/domain"
)

//go:embed default.toml
var defaultTOML []byte

// Format of a lexicon file.
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

// FormatFor picks the format from a file extension (.toml, .yaml, .yml).
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("lexicon: unsupported file extension %q", filepath.Ext(path))
	}
}

var loadDefault = sync.OnceValues(func() (*Tables, error) {
	return Parse(defaultTOML, FormatTOML)
})

// Default returns the embedded tables. The result is shared: do not mutate it.
func Default() (*Tables, error) {
	return loadDefault()
}

// MustDefault is Default for callers that cannot continue without tables.
func MustDefault() *Tables {
	t, err := loadDefault()
	if err != nil {
		panic(err)
	}
	return t
}

// DefaultSource returns the embedded TOML.
func DefaultSource() []byte {
	return bytes.Clone(defaultTOML)
}

// LoadFile reads, validates and prepares a lexicon from disk.
func LoadFile(path string) (*Tables, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("lexicon: read %s: %w", path, err)
	}
	t, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("lexicon: %s: %w", path, err)
	}
	return t, nil
}

// Parse decodes, validates and prepares a lexicon.
func Parse(data []byte, format Format) (*Tables, error) {
	var t Tables
	switch format {
	case FormatTOML:
		if _, err := toml.Decode(string(data), &t); err != nil {
			return nil, fmt.Errorf("decode toml: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}
	if err := t.prepare(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Encode writes t in the given format.
func Encode(t *Tables, format Format) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case FormatTOML:
		if err := toml.NewEncoder(&buf).Encode(t); err != nil {
			return nil, err
		}
	case FormatYAML:
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(t); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
	return buf.Bytes(), nil
}

var knownStages = map[domain.Stage]bool{
	domain.StageIntroduction: true,
	domain.StageAssessment:   true,
	domain.StageIntervention: true,
	domain.StageReflection:   true,
	domain.StagePlanning:     true,
	domain.StageClosure:      true,
}

var knownSignals = map[string]bool{
	SignalEmotion:    true,
	SignalDistortion: true,
	SignalTopic:      true,
	SignalRisk:       true,
}

// Validate reports every problem found, joined.
func (t *Tables) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	tu := t.Tuning
	if tu.BaselineSeverity < 0 || tu.BaselineSeverity > 10 {
		add("tuning.baseline_severity %d outside 0..10", tu.BaselineSeverity)
	}
	if tu.MaxTechniques < 1 {
		add("tuning.max_techniques must be at least 1")
	}
	if tu.ToneWindow < 2 {
		add("tuning.tone_window must be at least 2")
	}
	if tu.GlobalMinUses < 0 {
		add("tuning.global_min_uses must not be negative")
	}
	if tu.MinSafetyScore < 0 || tu.MinSafetyScore > 1 {
		add("tuning.min_safety_score %.2f outside 0..1", tu.MinSafetyScore)
	}
	if tu.EvidenceQualityBar.Rank() == 0 {
		add("tuning.evidence_quality_bar %q is not a known tier", tu.EvidenceQualityBar)
	}
	if tu.CrisisSeverityThreshold < domain.CrisisFloorSeverity || tu.CrisisSeverityThreshold > 10 {
		add("tuning.crisis_severity_threshold %d outside %d..10", tu.CrisisSeverityThreshold, domain.CrisisFloorSeverity)
	}
	w := tu.Weights
	for name, v := range map[string]float64{
		"global": w.Global, "personal": w.Personal, "range_fit": w.RangeFit,
		"preference": w.Preference, "recency": w.Recency,
	} {
		if v < 0 {
			add("tuning.weights.%s must not be negative", name)
		}
	}

	if len(t.Sentiment.Words) == 0 {
		add("sentiment.words is empty")
	}
	if len(t.Emotions) == 0 {
		add("emotions is empty")
	}
	errs = append(errs, checkCategories("emotions", t.Emotions)...)
	errs = append(errs, checkCategories("distortions", t.Distortions)...)
	errs = append(errs, checkCategories("intents", t.Intents)...)
	errs = append(errs, checkCategories("topics", t.Topics)...)
	errs = append(errs, checkCategories("risk_factors", t.RiskFactors)...)
	errs = append(errs, checkCategories("protective_factors", t.ProtectiveFactors)...)

	emotions := make(map[string]bool, len(t.Emotions))
	for _, e := range t.Emotions {
		emotions[e.Name] = true
	}
	for _, name := range t.Crisis.DespairEmotions {
		if !emotions[name] {
			add("crisis.despair_emotions: unknown emotion %q", name)
		}
	}
	if len(t.Crisis.Keywords) == 0 {
		add("crisis.keywords is empty")
	}
	if len(t.Crisis.Types) == 0 {
		add("crisis.types is empty")
	}
	if _, ok := t.CrisisTypeFor(domain.CrisisSevereDistress); !ok {
		add("crisis.types must define %q", domain.CrisisSevereDistress)
	}
	for i, ct := range t.Crisis.Types {
		if ct.Name == "" || ct.Message == "" || ct.Action == "" {
			add("crisis.types[%d]: name, message and action are required", i)
		}
	}
	if len(t.Crisis.Resources) == 0 {
		add("crisis.resources is empty")
	}

	for i, tr := range t.Flow.Transitions {
		if !knownStages[tr.Stage] {
			add("flow.transitions[%d]: unknown stage %q", i, tr.Stage)
		}
		if tr.Confidence <= 0 || tr.Confidence > 1 {
			add("flow.transitions[%d]: confidence %.2f outside (0,1]", i, tr.Confidence)
		}
		if len(tr.Phrases) == 0 {
			add("flow.transitions[%d]: no phrases", i)
		}
	}

	if t.Responses.EmptyInput == "" || t.Responses.InternalError == "" {
		add("responses.empty_input and responses.internal_error are required")
	}
	if _, ok := t.Responses.Templates[domain.StyleEmpathetic]; !ok {
		add("responses.templates must define %q", domain.StyleEmpathetic)
	}

	for i, a := range t.Applicability {
		if !knownSignals[a.Signal] {
			add("applicability[%d]: unknown signal %q", i, a.Signal)
		}
		if a.Name == "" || len(a.Categories) == 0 {
			add("applicability[%d]: name and categories are required", i)
		}
	}

	if t.Default.Key == "" {
		add("default_intervention.key is required")
	} else {
		errs = append(errs, checkIntervention("default_intervention", t.Default)...)
	}
	if len(t.Interventions) == 0 {
		add("interventions is empty")
	}
	seen := make(map[domain.InterventionKey]bool, len(t.Interventions))
	for i, iv := range t.Interventions {
		where := fmt.Sprintf("interventions[%d]", i)
		if iv.Key == "" {
			add("%s: key is required", where)
			continue
		}
		if seen[iv.Key] || iv.Key == t.Default.Key {
			add("%s: duplicate key %q", where, iv.Key)
		}
		seen[iv.Key] = true
		if len(iv.Keywords) == 0 {
			add("%s (%s): no keywords", where, iv.Key)
		}
		errs = append(errs, checkIntervention(where, iv)...)
	}

	return errors.Join(errs...)
}

func checkCategories(section string, cats []Category) []error {
	var errs []error
	seen := make(map[string]bool, len(cats))
	for i, c := range cats {
		if c.Name == "" {
			errs = append(errs, fmt.Errorf("%s[%d]: name is required", section, i))
			continue
		}
		if seen[c.Name] {
			errs = append(errs, fmt.Errorf("%s[%d]: duplicate name %q", section, i, c.Name))
		}
		seen[c.Name] = true
		if len(c.Keywords) == 0 {
			errs = append(errs, fmt.Errorf("%s (%s): no keywords", section, c.Name))
		}
	}
	return errs
}

func checkIntervention(where string, iv domain.Intervention) []error {
	var errs []error
	r := iv.Severity
	if r.Min < 0 || r.Max > 10 || r.Min > r.Max {
		errs = append(errs, fmt.Errorf("%s (%s): severity range %d..%d invalid", where, iv.Key, r.Min, r.Max))
	}
	if iv.EvidenceTier.Rank() == 0 {
		errs = append(errs, fmt.Errorf("%s (%s): unknown evidence tier %q", where, iv.Key, iv.EvidenceTier))
	}
	if iv.Category == "" {
		errs = append(errs, fmt.Errorf("%s (%s): category is required", where, iv.Key))
	}
	return errs
}

// prepare normalizes keywords, indexes the catalog and parses templates.
func (t *Tables) prepare() error {
	normalizeAll := func(list []string) {
		for i, s := range list {
			list[i] = Normalize(s)
		}
	}
	normalizeCats := func(cats []Category) {
		for i := range cats {
			normalizeAll(cats[i].Keywords)
		}
	}

	normalizeAll(t.Sentiment.Negations)
	words := make(map[string]float64, len(t.Sentiment.Words))
	for w, v := range t.Sentiment.Words {
		words[Normalize(w)] = v
	}
	t.Sentiment.Words = words

	normalizeCats(t.Emotions)
	normalizeCats(t.Distortions)
	normalizeCats(t.Intents)
	normalizeCats(t.Topics)
	normalizeCats(t.RiskFactors)
	normalizeCats(t.ProtectiveFactors)
	normalizeAll(t.Markers.Absolutes)
	normalizeAll(t.Markers.FirstPerson)
	normalizeAll(t.Markers.Amplifiers)

	normalizeAll(t.Crisis.Keywords)
	normalizeAll(t.Crisis.HighRiskPhrases)
	normalizeAll(t.Crisis.LethalMethods)
	for i := range t.Crisis.Types {
		normalizeAll(t.Crisis.Types[i].Keywords)
	}

	normalizeAll(t.Flow.Engagement)
	normalizeAll(t.Flow.Disengagement)
	normalizeAll(t.Flow.DeepTopics)
	normalizeAll(t.Flow.ModerateTopics)
	for i := range t.Flow.Transitions {
		normalizeAll(t.Flow.Transitions[i].Phrases)
	}

	t.interventionIndex = make(map[domain.InterventionKey]int, len(t.Interventions))
	for i := range t.Interventions {
		normalizeAll(t.Interventions[i].Keywords)
		t.interventionIndex[t.Interventions[i].Key] = i
	}

	t.templates = make(map[domain.CommunicationStyle]*template.Template, len(t.Responses.Templates))
	for style, src := range t.Responses.Templates {
		tpl, err := template.New(string(style)).Option("missingkey=error").Parse(src)
		if err != nil {
			return fmt.Errorf("responses.templates.%s: %w", style, err)
		}
		t.templates[style] = tpl
	}
	return nil
}
