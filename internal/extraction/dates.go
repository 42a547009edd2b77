package extraction

import (
	"strconv"
	"strings"
	"time"

	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/domain"
)

// dateToken accepts d/m/y with "/", "." or "-" and a 2- or 4-digit year.
const dateToken = `(\d{1,2}[/.\-]\d{1,2}[/.\-](?:\d{4}|\d{2}))\b`

const dateLabelTail = `\s*:?\s*`

var dueDateMatchers = []matcher{
	newMatcher("data_de_vencimento", `(?i)DATA\s+DE\s+VENCIMENTO`+dateLabelTail+dateToken),
	newMatcher("vencimento", `(?i)VENCIMENTO(?:\s+EM)?`+dateLabelTail+dateToken),
	newMatcher("vence_em", `(?i)VENCE\s+EM`+dateLabelTail+dateToken),
	newMatcher("venc", `(?i)\bVENC\.?`+dateLabelTail+dateToken),
	newMatcher("pagavel_ate", `(?i)PAG(?:AR|ÁVEL|AVEL)\s+AT[ÉE]`+dateLabelTail+dateToken),
}

var issueDateMatchers = []matcher{
	newMatcher("data_de_emissao", `(?i)DATA\s+DE\s+EMISS[AÃ]O`+dateLabelTail+dateToken),
	newMatcher("emissao", `(?i)EMISS[AÃ]O`+dateLabelTail+dateToken),
	newMatcher("emitido_em", `(?i)EMITID[OA]\s+EM`+dateLabelTail+dateToken),
	newMatcher("data_do_documento", `(?i)DATA\s+DO\s+DOCUMENTO`+dateLabelTail+dateToken),
}

var genericDateMatchers = []matcher{
	newMatcher("generic_date", `\b(\d{2}[/.\-]\d{2}[/.\-]\d{4})\b`),
}

// ExtractDueDate finds the due date (vencimento).
func ExtractDueDate(text string) domain.Field[time.Time] {
	return extractDate(text, dueDateMatchers)
}

// ExtractIssueDate finds the issue date (emissão).
func ExtractIssueDate(text string) domain.Field[time.Time] {
	return extractDate(text, issueDateMatchers)
}

func extractDate(text string, labeled []matcher) domain.Field[time.Time] {
	if f := firstValid(text, labeled, ParseDate); f.Present {
		return f
	}
	return firstValid(text, genericDateMatchers, ParseDate)
}

// ParseDate reads a day-first date. Day must be 1..31 and month 1..12;
// two-digit years below 50 land in the 2000s, the rest in the 1900s.
// Day/month combinations are not checked against the calendar.
func ParseDate(raw string) (time.Time, bool) {
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == '/' || r == '.' || r == '-'
	})
	if len(parts) != 3 {
		return time.Time{}, false
	}

	day, err := strconv.Atoi(parts[0])
	if err != nil || day < 1 || day > 31 {
		return time.Time{}, false
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil || month < 1 || month > 12 {
		return time.Time{}, false
	}
	year, err := strconv.Atoi(parts[2])
	if err != nil {
		return time.Time{}, false
	}
	if len(parts[2]) == 2 {
		year = expandYear(year)
	}

	return domain.Date(year, time.Month(month), day), true
}

func expandYear(yy int) int {
	if yy < 50 {
		return 2000 + yy
	}
	return 1900 + yy
}
