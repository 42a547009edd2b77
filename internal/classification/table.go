// Package classification assigns an expense category to an invoice by
// scoring its text against a keyword table.
package classification

import (
	"fmt"
	"strings"

	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/domain"
)

// Keywords is one row of the keyword table.
type Keywords struct {
	Category domain.Category `yaml:"category" json:"category"`
	Keywords []string        `yaml:"keywords" json:"keywords"`
}

// Table is an ordered, immutable keyword table. Row order is the tie-break
// order: on equal scores the earlier category wins.
type Table struct {
	rows []Keywords
}

// NewTable validates and copies entries. Keywords are lowercased once here
// so classification does not repeat the work.
func NewTable(entries []Keywords) (*Table, error) {
	seen := make(map[domain.Category]bool, len(entries))
	rows := make([]Keywords, 0, len(entries))

	for _, e := range entries {
		if !e.Category.Valid() {
			return nil, &domain.ErrValidation{Field: "category", Message: fmt.Sprintf("unknown category %q", e.Category)}
		}
		if seen[e.Category] {
			return nil, &domain.ErrValidation{Field: "category", Message: fmt.Sprintf("duplicate category %q", e.Category)}
		}
		seen[e.Category] = true

		kws := make([]string, 0, len(e.Keywords))
		for _, k := range e.Keywords {
			k = strings.ToLower(strings.TrimSpace(k))
			if k != "" {
				kws = append(kws, k)
			}
		}
		rows = append(rows, Keywords{Category: e.Category, Keywords: kws})
	}
	return &Table{rows: rows}, nil
}

// Rows returns a copy of the table rows.
func (t *Table) Rows() []Keywords {
	out := make([]Keywords, len(t.rows))
	for i, r := range t.rows {
		out[i] = Keywords{Category: r.Category, Keywords: append([]string(nil), r.Keywords...)}
	}
	return out
}

// DefaultKeywords is the built-in table: Portuguese expense terms and the
// best-known billers of each category.
func DefaultKeywords() []Keywords {
	return []Keywords{
		{Category: domain.CategoryEnergia, Keywords: []string{
			"energia", "eletricidade", "elétrica", "light", "enel", "cemig", "copel",
			"celesc", "ampla", "cpfl", "eletropaulo", "kWh",
		}},
		{Category: domain.CategoryAgua, Keywords: []string{
			"água", "saneamento", "sabesp", "cedae", "copasa", "cagece", "compesa",
			"embasa", "casan", "corsan", "m³",
		}},
		{Category: domain.CategoryInternet, Keywords: []string{
			"internet", "banda larga", "fibra", "conexão", "oi fibra", "vivo fibra",
			"claro net", "tim live", "provedor",
		}},
		{Category: domain.CategoryTelefone, Keywords: []string{
			"telefone", "móvel", "celular", "tim", "vivo", "claro", "oi", "nextel", "minutos",
		}},
		{Category: domain.CategoryAluguel, Keywords: []string{
			"aluguel", "locação", "imóvel", "locatário", "inquilino", "imobiliária", "proprietário",
		}},
		{Category: domain.CategoryCondominio, Keywords: []string{
			"condomínio", "taxa condominial", "síndico", "administradora", "assembleia",
		}},
		{Category: domain.CategoryStreaming, Keywords: []string{
			"netflix", "spotify", "disney", "amazon prime", "hbo", "globoplay", "deezer",
			"youtube premium",
		}},
		{Category: domain.CategoryCartao, Keywords: []string{
			"cartão de crédito", "fatura cartão", "nubank", "itaucard", "bradesco", "visa",
			"mastercard", "american express",
		}},
		{Category: domain.CategorySeguro, Keywords: []string{
			"seguro", "apólice", "porto seguro", "bradesco seguros", "sulamerica", "liberty",
		}},
		{Category: domain.CategoryEducacao, Keywords: []string{
			"educação", "mensalidade", "escola", "faculdade", "universidade", "curso",
			"material escolar",
		}},
		{Category: domain.CategorySaude, Keywords: []string{
			"saúde", "plano de saúde", "amil", "unimed", "hapvida", "notredame", "hospital", "clínica",
		}},
		{Category: domain.CategoryTransporte, Keywords: []string{
			"transporte", "combustível", "gasolina", "etanol", "diesel", "uber", "99", "táxi", "passagem",
		}},
		{Category: domain.CategoryImpostos, Keywords: []string{
			"imposto", "iptu", "ipva", "taxa", "tributo", "darf", "inss", "contribuição",
		}},
	}
}

// DefaultTable builds the table from DefaultKeywords.
func DefaultTable() *Table {
	t, err := NewTable(DefaultKeywords())
	if err != nil {
		panic(err)
	}
	return t
}
