package entities

// SymbolCategory groups IPA symbols the way the chart displays them
type SymbolCategory string

const (
	CategoryMonophthong SymbolCategory = "monophthong"
	CategoryDiphthong   SymbolCategory = "diphthong"
	CategoryConsonant   SymbolCategory = "consonant"
)

// Voicing describes whether the vocal cords vibrate for a sound
type Voicing string

const (
	Voiced   Voicing = "voiced"
	Unvoiced Voicing = "unvoiced"
	Mixed    Voicing = "mixed"
)

// IPASymbol is one chart entry with a tip aimed at Chinese speakers
type IPASymbol struct {
	Symbol      string         `json:"symbol" yaml:"symbol"`
	Example     string         `json:"example" yaml:"example"`
	Category    SymbolCategory `json:"category" yaml:"category"`
	Voice       Voicing        `json:"voice" yaml:"voice"`
	Description string         `json:"description" yaml:"description"`
	Tip         string         `json:"tip" yaml:"tip"`
}

// MouthHint returns the articulation hint shown next to the mouth diagram
func (s IPASymbol) MouthHint() string {
	if s.Category != CategoryConsonant {
		return "Maintain steady tongue position"
	}
	if s.Voice == Voiced {
		return "Voiced (震动声带)"
	}
	return "Unvoiced (只送气)"
}

// SentenceDrill is a practice sentence and the skill it trains
type SentenceDrill struct {
	Text  string `json:"text" yaml:"text"`
	Focus string `json:"focus" yaml:"focus"`
}

// StressSyllable is one bar of the rhythm chart
type StressSyllable struct {
	Syllable string `json:"syllable" yaml:"syllable"`
	Stress   int    `json:"stress" yaml:"stress"`
	Label    string `json:"label,omitempty" yaml:"label"`
}

// StressPattern is a word or phrase broken into syllables
type StressPattern struct {
	Language  string           `json:"language" yaml:"language"`
	Phrase    string           `json:"phrase" yaml:"phrase"`
	Timing    string           `json:"timing" yaml:"timing"`
	Syllables []StressSyllable `json:"syllables" yaml:"syllables"`
}

// RhythmComparison contrasts stress-timed English with syllable-timed Chinese
type RhythmComparison struct {
	Summary   string            `json:"summary" yaml:"summary"`
	English   StressPattern     `json:"english" yaml:"english"`
	Chinese   StressPattern     `json:"chinese" yaml:"chinese"`
	Shadowing ShadowingExercise `json:"shadowing" yaml:"shadowing"`
}

// ShadowingExercise is a sentence to imitate with its stressed words marked
type ShadowingExercise struct {
	Sentence string   `json:"sentence" yaml:"sentence"`
	Stressed []string `json:"stressed" yaml:"stressed"`
}

// IsStrong reports whether the syllable is drawn as stressed
func (s StressSyllable) IsStrong() bool {
	return s.Stress > 5
}
