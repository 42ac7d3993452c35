package phonetics

import (
	"errors"
	"testing"

	"github.com/satriahrh/echocoach/domain/entities"
)

func TestDefaultCatalog(t *testing.T) {
	catalog, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}

	tests := []struct {
		category entities.SymbolCategory
		want     int
	}{
		{entities.CategoryMonophthong, 5},
		{entities.CategoryDiphthong, 2},
		{entities.CategoryConsonant, 5},
		{"", 12},
	}

	for _, tt := range tests {
		if got := len(catalog.Symbols(tt.category)); got != tt.want {
			t.Errorf("Symbols(%q) returned %d entries, want %d", tt.category, got, tt.want)
		}
	}

	if got := len(catalog.Drills()); got != 4 {
		t.Errorf("Drills() returned %d entries, want 4", got)
	}

	rhythm := catalog.Rhythm()
	if len(rhythm.English.Syllables) != 4 || len(rhythm.Chinese.Syllables) != 4 {
		t.Errorf("unexpected rhythm syllables %+v", rhythm)
	}
	if !rhythm.English.Syllables[0].IsStrong() || rhythm.English.Syllables[1].IsStrong() {
		t.Error("Pho should be strong and to should be weak")
	}
}

func TestSymbolLookup(t *testing.T) {
	catalog, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}

	th, err := catalog.Symbol("θ")
	if err != nil {
		t.Fatalf("Symbol() error = %v", err)
	}
	if th.Example != "think" || th.Voice != entities.Unvoiced {
		t.Errorf("unexpected entry %+v", th)
	}
	if th.MouthHint() != "Unvoiced (只送气)" {
		t.Errorf("MouthHint() = %q", th.MouthHint())
	}

	schwa, _ := catalog.Symbol("ə")
	if schwa.MouthHint() != "Maintain steady tongue position" {
		t.Errorf("MouthHint() = %q", schwa.MouthHint())
	}

	if _, err := catalog.Symbol("ʒ"); !errors.Is(err, ErrSymbolNotFound) {
		t.Errorf("Symbol(ʒ) error = %v, want ErrSymbolNotFound", err)
	}
}

func TestParseRejectsBadEntries(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown category", "symbols:\n  - {symbol: x, example: box, category: click}\n"},
		{"missing example", "symbols:\n  - {symbol: x, category: consonant}\n"},
		{"duplicate", "symbols:\n  - {symbol: x, example: a, category: consonant}\n  - {symbol: x, example: b, category: consonant}\n"},
		{"not yaml", "symbols: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.doc)); err == nil {
				t.Error("Parse() should fail")
			}
		})
	}
}
