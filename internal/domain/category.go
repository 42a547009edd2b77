package domain

import "github.com/shopspring/decimal"

// Category is one label from the fixed expense enumeration.
type Category string

const (
	CategoryEnergia    Category = "energia"
	CategoryAgua       Category = "agua"
	CategoryInternet   Category = "internet"
	CategoryTelefone   Category = "telefone"
	CategoryAluguel    Category = "aluguel"
	CategoryCondominio Category = "condominio"
	CategoryStreaming  Category = "streaming"
	CategoryCartao     Category = "cartao"
	CategorySeguro     Category = "seguro"
	CategoryEducacao   Category = "educacao"
	CategorySaude      Category = "saude"
	CategoryTransporte Category = "transporte"
	CategoryImpostos   Category = "impostos"
	CategoryOutros     Category = "outros"
)

var categoryLabels = map[Category]string{
	CategoryEnergia:    "Energia Elétrica",
	CategoryAgua:       "Água",
	CategoryInternet:   "Internet",
	CategoryTelefone:   "Telefone",
	CategoryAluguel:    "Aluguel",
	CategoryCondominio: "Condomínio",
	CategoryStreaming:  "Streaming",
	CategoryCartao:     "Cartão de Crédito",
	CategorySeguro:     "Seguro",
	CategoryEducacao:   "Educação",
	CategorySaude:      "Saúde",
	CategoryTransporte: "Transporte",
	CategoryImpostos:   "Impostos",
	CategoryOutros:     "Outros",
}

// Categories lists every category in classification order, "outros" last.
func Categories() []Category {
	return []Category{
		CategoryEnergia, CategoryAgua, CategoryInternet, CategoryTelefone,
		CategoryAluguel, CategoryCondominio, CategoryStreaming, CategoryCartao,
		CategorySeguro, CategoryEducacao, CategorySaude, CategoryTransporte,
		CategoryImpostos, CategoryOutros,
	}
}

// Valid reports whether c belongs to the enumeration.
func (c Category) Valid() bool {
	_, ok := categoryLabels[c]
	return ok
}

// Label returns the Portuguese display name.
func (c Category) Label() string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return categoryLabels[CategoryOutros]
}

// ParseCategory validates a category received from a client.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.Valid() {
		return "", &ErrValidation{Field: "category", Message: "unknown category " + s}
	}
	return c, nil
}

// CategoryInfo is returned by GET /v1/categories.
type CategoryInfo struct {
	ID    Category        `json:"id"`
	Label string          `json:"label"`
	Limit decimal.Decimal `json:"limit"`
}
