// Package alerts decides which notifications an invoice deserves: limit
// alerts at upload time and due-soon reminders during the daily sweep.
package alerts

import (
	"fmt"

	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/domain"

	"github.com/shopspring/decimal"
)

// Limits maps each category to its monthly spending ceiling. It is built
// once and only read afterwards.
type Limits struct {
	ceilings map[domain.Category]decimal.Decimal
}

// DefaultCeilings returns the built-in ceilings in BRL.
func DefaultCeilings() map[domain.Category]decimal.Decimal {
	return map[domain.Category]decimal.Decimal{
		domain.CategoryEnergia:    decimal.NewFromInt(300),
		domain.CategoryAgua:       decimal.NewFromInt(200),
		domain.CategoryInternet:   decimal.NewFromInt(150),
		domain.CategoryTelefone:   decimal.NewFromInt(100),
		domain.CategoryAluguel:    decimal.NewFromInt(1500),
		domain.CategoryCondominio: decimal.NewFromInt(800),
		domain.CategoryStreaming:  decimal.NewFromInt(100),
		domain.CategoryCartao:     decimal.NewFromInt(2000),
		domain.CategorySeguro:     decimal.NewFromInt(500),
		domain.CategoryEducacao:   decimal.NewFromInt(1000),
		domain.CategorySaude:      decimal.NewFromInt(800),
		domain.CategoryTransporte: decimal.NewFromInt(500),
		domain.CategoryOutros:     decimal.NewFromInt(300),
	}
}

// DefaultLimits returns the built-in table.
func DefaultLimits() *Limits {
	return &Limits{ceilings: DefaultCeilings()}
}

// NewLimits merges overrides over the defaults. Unknown categories and
// non-positive ceilings are rejected.
func NewLimits(overrides map[domain.Category]decimal.Decimal) (*Limits, error) {
	ceilings := DefaultCeilings()
	for c, v := range overrides {
		if !c.Valid() {
			return nil, &domain.ErrValidation{Field: "limits", Message: fmt.Sprintf("unknown category %q", c)}
		}
		if !v.IsPositive() {
			return nil, &domain.ErrValidation{Field: "limits", Message: fmt.Sprintf("ceiling for %s must be positive", c)}
		}
		ceilings[c] = v
	}
	return &Limits{ceilings: ceilings}, nil
}

// For returns the ceiling of c, falling back to the "outros" ceiling.
func (l *Limits) For(c domain.Category) decimal.Decimal {
	if v, ok := l.ceilings[c]; ok {
		return v
	}
	return l.ceilings[domain.CategoryOutros]
}

// Snapshot copies the table, for the categories endpoint.
func (l *Limits) Snapshot() map[domain.Category]decimal.Decimal {
	out := make(map[domain.Category]decimal.Decimal, len(l.ceilings))
	for c, v := range l.ceilings {
		out[c] = v
	}
	return out
}
