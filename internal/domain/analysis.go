package domain

// Sentiment is the lexicon score of a message.
type Sentiment struct {
	Score          float64        `json:"score"`
	Comparative    float64        `json:"comparative"`
	Classification SentimentClass `json:"classification"`
}

// EmotionScore is one detected emotion. Intensity is in [0,1].
type EmotionScore struct {
	Emotion   string   `json:"emotion"`
	Intensity float64  `json:"intensity"`
	Triggers  []string `json:"triggers,omitempty"`
}

// DistortionMatch is one detected cognitive distortion.
type DistortionMatch struct {
	Type      string   `json:"type"`
	Frequency int      `json:"frequency"`
	Examples  []string `json:"examples"`
}

// Markers are plain linguistic tallies.
type Markers struct {
	Words       int `json:"words"`
	Negations   int `json:"negations"`
	Absolutes   int `json:"absolutes"`
	FirstPerson int `json:"first_person"`
	Questions   int `json:"questions"`
}

const NeutralEmotion = "neutral"

// Analysis is derived from a single Message and never mutated after creation.
type Analysis struct {
	Sentiment         Sentiment         `json:"sentiment"`
	Emotions          []EmotionScore    `json:"emotions"`
	Distortions       []DistortionMatch `json:"cognitive_distortions"`
	Intent            string            `json:"intent"`
	Severity          int               `json:"severity"`
	Topics            []string          `json:"topics"`
	Markers           Markers           `json:"markers"`
	RiskFactors       []string          `json:"risk_factors"`
	ProtectiveFactors []string          `json:"protective_factors"`
}

// PrimaryEmotion returns the highest-confidence emotion.
func (a Analysis) PrimaryEmotion() EmotionScore {
	if len(a.Emotions) == 0 {
		return EmotionScore{Emotion: NeutralEmotion, Intensity: 0.5}
	}
	return a.Emotions[0]
}

// EmotionIntensity returns the intensity of the named emotion, or 0.
func (a Analysis) EmotionIntensity(name string) float64 {
	for _, e := range a.Emotions {
		if e.Emotion == name {
			return e.Intensity
		}
	}
	return 0
}

// HasDistortion reports whether the distortion type was detected.
func (a Analysis) HasDistortion(kind string) bool {
	for _, d := range a.Distortions {
		if d.Type == kind {
			return true
		}
	}
	return false
}

// CrisisType classifies a positive crisis assessment.
type CrisisType string

const (
	CrisisNone              CrisisType = "none"
	CrisisSuicidePrevention CrisisType = "suicide-prevention"
	CrisisSelfHarm          CrisisType = "self-harm"
	CrisisSevereDistress    CrisisType = "severe-distress"
)

// CrisisFloorSeverity is the minimum severity any positive assessment carries.
const CrisisFloorSeverity = 7

// CrisisResource is a hotline, text line or in-app route offered during a crisis.
type CrisisResource struct {
	Name    string `json:"name" toml:"name" yaml:"name"`
	Contact string `json:"contact,omitempty" toml:"contact" yaml:"contact"`
	Route   string `json:"route,omitempty" toml:"route" yaml:"route"`
}

// CrisisSignals records which independent signal classes fired.
type CrisisSignals struct {
	Keyword        bool     `json:"keyword"`
	HighRiskPhrase bool     `json:"high_risk_phrase"`
	Emotional      bool     `json:"emotional"`
	Threshold      bool     `json:"threshold"`
	LethalMethod   bool     `json:"lethal_method"`
	Matched        []string `json:"matched,omitempty"`
}

// CrisisAssessment is the output of crisis detection.
// IsCrisis implies Severity >= CrisisFloorSeverity and a non-empty RecommendedAction.
type CrisisAssessment struct {
	IsCrisis          bool             `json:"is_crisis"`
	Severity          int              `json:"severity"`
	Type              CrisisType       `json:"type"`
	RecommendedAction string           `json:"recommended_action,omitempty"`
	Signals           CrisisSignals    `json:"signals"`
	Resources         []CrisisResource `json:"resources,omitempty"`
}
