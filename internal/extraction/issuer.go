package extraction

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/domain"
)

// Label captures stop at the end of the line or at ; ! ?. A period does not
// end the capture: company names carry "S.A." and "LTDA.".
const issuerCapture = `[ \t]*:?[ \t]*([^\n;!?]+)`

var issuerLabelMatchers = []matcher{
	newMatcher("cedente", `(?i)\bCEDENTE`+issuerCapture),
	newMatcher("beneficiario", `(?i)\bBENEFICI[AÁ]RIO`+issuerCapture),
	newMatcher("fornecedor", `(?i)\bFORNECEDOR`+issuerCapture),
	newMatcher("emissor", `(?i)\bEMISSOR`+issuerCapture),
	newMatcher("empresa", `(?i)\bEMPRESA[ \t]*:[ \t]*([^\n;!?]+)`),
}

var (
	trailingDocumentRe = regexp.MustCompile(`(?i)\s+(?:CNPJ|CPF)\b.*$`)
	upperRunRe         = regexp.MustCompile(`\p{Lu}{2,}`)
)

type biller struct {
	name string
	re   *regexp.Regexp
}

func newBiller(name string) biller {
	return biller{name: name, re: regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(name) + `\b`)}
}

// Well-known Brazilian billers, longer names first so "NETFLIX" is not
// reported as "NET".
var knownBillers = []biller{
	newBiller("PORTO SEGURO"),
	newBiller("AMAZON PRIME"),
	newBiller("ELETROPAULO"),
	newBiller("GLOBOPLAY"),
	newBiller("SULAMERICA"),
	newBiller("ITAUCARD"),
	newBiller("NETFLIX"),
	newBiller("SPOTIFY"),
	newBiller("HAPVIDA"),
	newBiller("COMPESA"),
	newBiller("CELESC"),
	newBiller("SABESP"),
	newBiller("COPASA"),
	newBiller("EMBASA"),
	newBiller("CORSAN"),
	newBiller("NUBANK"),
	newBiller("UNIMED"),
	newBiller("DISNEY"),
	newBiller("CEMIG"),
	newBiller("COPEL"),
	newBiller("CEDAE"),
	newBiller("CASAN"),
	newBiller("LIGHT"),
	newBiller("CLARO"),
	newBiller("ENEL"),
	newBiller("CPFL"),
	newBiller("VIVO"),
	newBiller("AMIL"),
	newBiller("TIM"),
	newBiller("NET"),
	newBiller("OI"),
}

const headerScanLines = 5

// ExtractIssuer finds the company that issued the invoice: a labeled line
// first, then a known biller name, then a header-looking line near the top.
func ExtractIssuer(text string) domain.Field[string] {
	if f := firstValid(text, issuerLabelMatchers, cleanIssuer); f.Present {
		return f
	}

	for _, b := range knownBillers {
		if b.re.MatchString(text) {
			return domain.Found(b.name, "known_biller")
		}
	}

	if line, ok := headerLine(text); ok {
		return domain.Found(line, "header_line")
	}
	return domain.Absent[string]()
}

// cleanIssuer trims a label capture and drops a trailing CNPJ/CPF. Captures
// without at least two letters are rejected.
func cleanIssuer(raw string) (string, bool) {
	s := trailingDocumentRe.ReplaceAllString(raw, "")
	s = strings.TrimSpace(s)
	s = strings.TrimRight(s, " -:,/")
	s = strings.TrimLeft(s, " -:,/")

	letters := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			letters++
		}
	}
	if letters < 2 {
		return "", false
	}
	return s, true
}

func headerLine(text string) (string, bool) {
	lines := strings.Split(text, "\n")
	for i := 0; i < len(lines) && i < headerScanLines; i++ {
		line := strings.TrimSpace(lines[i])
		n := utf8.RuneCountInString(line)
		if n <= 5 || n >= 50 {
			continue
		}
		if r, _ := utf8.DecodeRuneInString(line); unicode.IsDigit(r) {
			continue
		}
		if !upperRunRe.MatchString(line) {
			continue
		}
		return line, true
	}
	return "", false
}
