package extraction

import (
	"strings"

	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/domain"

	"github.com/shopspring/decimal"
)

// amountToken captures "1234", "1.234", "157,89" or "1.234,56".
const amountToken = `(\d+(?:\.\d{3})*(?:,\d{1,2})?)`

const labelTail = `\s*:?\s*(?:R\$\s*)?`

var labeledAmountMatchers = []matcher{
	newMatcher("total_a_pagar", `(?i)TOTAL\s+A\s+PAGAR`+labelTail+amountToken),
	newMatcher("valor_a_pagar", `(?i)VALOR\s+A\s+PAGAR`+labelTail+amountToken),
	newMatcher("valor_total", `(?i)VALOR\s+TOTAL`+labelTail+amountToken),
	newMatcher("total_da_fatura", `(?i)TOTAL\s+DA\s+FATURA`+labelTail+amountToken),
	newMatcher("valor_do_documento", `(?i)VALOR\s+DO\s+DOCUMENTO`+labelTail+amountToken),
	newMatcher("valor_cobrado", `(?i)VALOR\s+COBRADO`+labelTail+amountToken),
	newMatcher("valor_devido", `(?i)(?:VALOR|TOTAL)\s+DEVIDO`+labelTail+amountToken),
	// A bare TOTAL label is too common ("TOTAL 3 ITENS") to accept an
	// integer after it; it needs R$ or centavos.
	newMatcher("total", `(?i)\bTOTAL\s*:?\s*R\$\s*`+amountToken),
	newMatcher("total_decimal", `(?i)\bTOTAL\s*:?\s*(\d+(?:\.\d{3})*,\d{2})\b`),
}

var currencyAmountMatchers = []matcher{
	newMatcher("currency_marker", `R\$\s*`+amountToken),
}

// monetaryTokenMatcher only accepts tokens with a decimal comma, so dates
// and document numbers are left alone.
var monetaryTokenMatcher = newMatcher("max_monetary_token", `(\d+(?:\.\d{3})*,\d{2})\b`)

var (
	minAmountExclusive = decimal.Zero
	maxAmountExclusive = decimal.NewFromInt(100000)
)

// ExtractAmount finds the invoice total. Labeled patterns win over bare
// currency markers; as a last resort the largest monetary-looking token in
// the text is taken.
func ExtractAmount(text string) domain.Field[decimal.Decimal] {
	if f := firstValid(text, labeledAmountMatchers, ParseAmount); f.Present {
		return f
	}
	if f := firstValid(text, currencyAmountMatchers, ParseAmount); f.Present {
		return f
	}

	var best decimal.Decimal
	found := false
	for _, c := range monetaryTokenMatcher.candidates(text) {
		v, ok := ParseAmount(c)
		if !ok {
			continue
		}
		if !found || v.GreaterThan(best) {
			best, found = v, true
		}
	}
	if !found {
		return domain.Absent[decimal.Decimal]()
	}
	return domain.Found(best, monetaryTokenMatcher.name)
}

// ParseAmount reads a Brazilian-formatted numeral: dots are thousands
// separators and the comma is the decimal point. It reports false for
// unparseable input and for values outside (0, 100000).
func ParseAmount(raw string) (decimal.Decimal, bool) {
	s := strings.TrimRight(strings.TrimSpace(raw), ".,")
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", ".")
	if s == "" {
		return decimal.Decimal{}, false
	}

	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	v = v.Round(2)
	if !PlausibleAmount(v) {
		return decimal.Decimal{}, false
	}
	return v, true
}

// PlausibleAmount reports whether v can be an invoice total.
func PlausibleAmount(v decimal.Decimal) bool {
	return v.GreaterThan(minAmountExclusive) && v.LessThan(maxAmountExclusive)
}
