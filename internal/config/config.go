// Package config loads the application configuration from a YAML file.
package config

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/rchaves649/finscope/internal/domain"
)

// ScopeConfig declares one accounting scope.
type ScopeConfig struct {
	ID           string       `yaml:"id"`
	Type         string       `yaml:"type"` // individual or shared
	Name         string       `yaml:"name"`
	DefaultSplit *SplitConfig `yaml:"default_split,omitempty"`
}

// SplitConfig is a percentage split for a shared scope.
type SplitConfig struct {
	A decimal.Decimal `yaml:"a"`
	B decimal.Decimal `yaml:"b"`
}

// FirestoreConfig selects the Firestore backend when set.
type FirestoreConfig struct {
	ProjectID       string `yaml:"project_id"`
	CredentialsFile string `yaml:"credentials_file,omitempty"`
}

// Config is the root configuration.
type Config struct {
	DatabasePath string           `yaml:"database_path"`
	KeywordsFile string           `yaml:"keywords_file,omitempty"`
	Learning     bool             `yaml:"learning"`
	Scopes       []ScopeConfig    `yaml:"scopes"`
	Firestore    *FirestoreConfig `yaml:"firestore,omitempty"`
}

// Default returns the configuration used when no file is given: one
// individual scope on a local database file.
func Default() *Config {
	return &Config{
		DatabasePath: "finscope.db",
		Learning:     true,
		Scopes: []ScopeConfig{
			{ID: "personal", Type: "individual", Name: "Personal"},
		},
	}
}

// Load reads and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.Scopes) == 0 {
		return fmt.Errorf("at least one scope must be configured")
	}
	seen := make(map[string]bool, len(c.Scopes))
	for _, sc := range c.Scopes {
		if sc.ID == "" {
			return fmt.Errorf("scope ID cannot be empty")
		}
		if seen[sc.ID] {
			return fmt.Errorf("duplicate scope ID %q", sc.ID)
		}
		seen[sc.ID] = true
		if sc.Type != string(domain.ScopeIndividual) && sc.Type != string(domain.ScopeShared) {
			return fmt.Errorf("scope %s: unknown type %q", sc.ID, sc.Type)
		}
		if sc.DefaultSplit != nil {
			sum := sc.DefaultSplit.A.Add(sc.DefaultSplit.B)
			if !sum.Equal(decimal.NewFromInt(100)) {
				return fmt.Errorf("scope %s: default split must sum to 100, got %s", sc.ID, sum)
			}
		}
	}
	return nil
}

// ScopeByID resolves a configured scope into its domain form.
func (c *Config) ScopeByID(id string) (domain.Scope, error) {
	for _, sc := range c.Scopes {
		if sc.ID != id {
			continue
		}
		scope := domain.Scope{
			ScopeID:   sc.ID,
			ScopeType: domain.ScopeType(sc.Type),
			Name:      sc.Name,
		}
		if sc.DefaultSplit != nil {
			scope.DefaultSplit = &domain.Split{A: sc.DefaultSplit.A, B: sc.DefaultSplit.B}
		}
		return scope, nil
	}
	return domain.Scope{}, fmt.Errorf("scope %q is not configured", id)
}
