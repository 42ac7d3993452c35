// Package phonetics serves the static reference content: the IPA chart,
// sentence drills and the stress-rhythm comparison.
package phonetics

import (
	_ "embed"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/satriahrh/echocoach/domain/entities"
)

//go:embed catalog.yaml
var defaultCatalog []byte

var ErrSymbolNotFound = errors.New("symbol not found")

// Catalog holds the parsed reference content. It is read-only after Load.
type Catalog struct {
	symbols []entities.IPASymbol
	index   map[string]entities.IPASymbol
	drills  []entities.SentenceDrill
	rhythm  entities.RhythmComparison
}

type catalogFile struct {
	Symbols []entities.IPASymbol      `yaml:"symbols"`
	Drills  []entities.SentenceDrill  `yaml:"drills"`
	Rhythm  entities.RhythmComparison `yaml:"rhythm"`
}

// Default parses the catalog bundled with the binary
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Parse reads a catalog document
func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse phonetics catalog: %w", err)
	}

	c := &Catalog{
		symbols: file.Symbols,
		index:   make(map[string]entities.IPASymbol, len(file.Symbols)),
		drills:  file.Drills,
		rhythm:  file.Rhythm,
	}

	for _, s := range file.Symbols {
		if s.Symbol == "" || s.Example == "" {
			return nil, fmt.Errorf("symbol entry %q is incomplete", s.Symbol)
		}
		switch s.Category {
		case entities.CategoryMonophthong, entities.CategoryDiphthong, entities.CategoryConsonant:
		default:
			return nil, fmt.Errorf("symbol %q has unknown category %q", s.Symbol, s.Category)
		}
		if _, dup := c.index[s.Symbol]; dup {
			return nil, fmt.Errorf("symbol %q is listed twice", s.Symbol)
		}
		c.index[s.Symbol] = s
	}

	return c, nil
}

// Symbols returns the chart entries in display order, filtered by category when one is given
func (c *Catalog) Symbols(category entities.SymbolCategory) []entities.IPASymbol {
	out := make([]entities.IPASymbol, 0, len(c.symbols))
	for _, s := range c.symbols {
		if category == "" || s.Category == category {
			out = append(out, s)
		}
	}
	return out
}

func (c *Catalog) Symbol(symbol string) (entities.IPASymbol, error) {
	s, ok := c.index[symbol]
	if !ok {
		return entities.IPASymbol{}, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
	}
	return s, nil
}

func (c *Catalog) Drills() []entities.SentenceDrill {
	out := make([]entities.SentenceDrill, len(c.drills))
	copy(out, c.drills)
	return out
}

func (c *Catalog) Rhythm() entities.RhythmComparison {
	return c.rhythm
}
