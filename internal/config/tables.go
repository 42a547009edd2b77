package config

import (
	"fmt"
	"os"

	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/alerts"
	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/classification"
	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/domain"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// tablesFile is the on-disk shape of TABLES_FILE:
//
//	limits:
//	  energia: 350
//	keywords:
//	  - category: energia
//	    keywords: [energia, enel]
type tablesFile struct {
	Limits   map[domain.Category]float64 `yaml:"limits"`
	Keywords []classification.Keywords   `yaml:"keywords"`
}

// Tables are the lookup tables injected into the classifier and evaluator.
type Tables struct {
	Limits   *alerts.Limits
	Keywords *classification.Table
}

// DefaultTables returns the built-in tables.
func DefaultTables() *Tables {
	return &Tables{Limits: alerts.DefaultLimits(), Keywords: classification.DefaultTable()}
}

// LoadTables reads the YAML file at path. An empty path yields the
// defaults. Limits are merged over the defaults; a non-empty keyword list
// replaces the default table entirely, keeping its order.
func LoadTables(path string) (*Tables, error) {
	if path == "" {
		return DefaultTables(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading tables file: %w", err)
	}
	return ParseTables(raw)
}

// ParseTables decodes a tables document.
func ParseTables(raw []byte) (*Tables, error) {
	var f tablesFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decoding tables file: %w", err)
	}

	overrides := make(map[domain.Category]decimal.Decimal, len(f.Limits))
	for c, v := range f.Limits {
		overrides[c] = decimal.NewFromFloat(v).Round(2)
	}
	limits, err := alerts.NewLimits(overrides)
	if err != nil {
		return nil, err
	}

	keywords := classification.DefaultTable()
	if len(f.Keywords) > 0 {
		keywords, err = classification.NewTable(f.Keywords)
		if err != nil {
			return nil, err
		}
	}

	return &Tables{Limits: limits, Keywords: keywords}, nil
}
