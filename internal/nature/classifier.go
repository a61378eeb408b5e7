// Package nature provides the keyword-driven transaction nature classifier.
// The ordered keyword table lives in keywords.yaml as data, not code, so the
// classification order is itself reviewable and testable.
package nature

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rchaves649/finscope/internal/domain"
	"github.com/rchaves649/finscope/internal/normalize"
)

//go:embed keywords.yaml
var embeddedKeywords []byte

// installmentPattern matches "03/12"-style markers in the raw (not
// normalized) description; normalization would strip the slash.
var installmentPattern = regexp.MustCompile(`\b\d{1,2}/\d{1,2}\b`)

type tableEntry struct {
	Nature   domain.Nature `yaml:"nature"`
	Keywords []string      `yaml:"keywords"`
}

type keywordTable struct {
	Natures []tableEntry `yaml:"natures"`
}

// Classifier performs an ordered, first-match-wins keyword scan over
// normalized descriptions. It is pure and safe for concurrent use.
type Classifier struct {
	entries []tableEntry
}

// New creates a classifier from YAML keyword-table data. Natures must be
// valid and every entry must carry at least one keyword; keywords are
// normalized at load so the table and the input agree on the key space.
func New(data []byte) (*Classifier, error) {
	var table keywordTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to parse keyword table (check syntax, indentation, and field names): %w", err)
	}
	if len(table.Natures) == 0 {
		return nil, fmt.Errorf("keyword table has no entries")
	}

	for i, entry := range table.Natures {
		if !domain.ValidateNature(entry.Nature) {
			return nil, fmt.Errorf("entry %d: invalid nature %q", i, entry.Nature)
		}
		if entry.Nature == domain.NatureExpense {
			return nil, fmt.Errorf("entry %d: expense is the fallback and cannot carry keywords", i)
		}
		if len(entry.Keywords) == 0 {
			return nil, fmt.Errorf("entry %d (%s): at least one keyword is required", i, entry.Nature)
		}
		for j, kw := range entry.Keywords {
			if strings.TrimSpace(kw) == "" {
				return nil, fmt.Errorf("entry %d (%s): keyword %d is empty", i, entry.Nature, j)
			}
			table.Natures[i].Keywords[j] = normalize.Key(kw)
		}
	}

	return &Classifier{entries: table.Natures}, nil
}

// LoadEmbedded loads the embedded keywords.yaml table.
func LoadEmbedded() (*Classifier, error) {
	c, err := New(embeddedKeywords)
	if err != nil {
		return nil, fmt.Errorf("failed to load embedded keyword table (possible binary corruption): %w", err)
	}
	return c, nil
}

// LoadFromFile loads a keyword table from a filesystem path, for hosts that
// want to override the embedded defaults.
func LoadFromFile(path string) (*Classifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keyword table: %w", err)
	}
	c, err := New(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load keyword table from %q: %w", path, err)
	}
	return c, nil
}

// Detect returns the nature for a raw description. Keyword sets can
// overlap ("CANCELAMENTO COMPRA" reads as both a reversal and a purchase),
// so the table order decides; anything unmatched is a plain expense.
func (c *Classifier) Detect(description string) domain.Nature {
	key := normalize.Key(description)

	for _, entry := range c.entries {
		for _, kw := range entry.Keywords {
			if strings.Contains(key, kw) {
				return entry.Nature
			}
		}
		if entry.Nature == domain.NatureInstallment && installmentPattern.MatchString(description) {
			return domain.NatureInstallment
		}
	}
	return domain.NatureExpense
}
