// Package extraction turns raw OCR output into structured invoice fields.
//
// Text first goes through Normalize, which repairs the usual OCR damage
// (currency misreads, stray symbols, broken thousands groups). The field
// extractors then run ordered pattern families against the normalized text
// and validate every candidate before accepting it.
package extraction

import (
	"regexp"
	"strings"
	"unicode"
)

// maxNormalizeRounds bounds the fixed-point iteration in Normalize.
const maxNormalizeRounds = 4

const retainedPunctuation = `.,;:"/\()-+=$%@`

var (
	currencyMarkerRe = regexp.MustCompile(`(?i)\bR\s*[$S]\s*(\d)`)
	thousandsRe      = regexp.MustCompile(`(\d)[.,](\d{3})([.,])(\d{2})\b`)
)

type phraseFix struct {
	re   *regexp.Regexp
	repl string
}

// OCR misreads of fixed phrases seen on Brazilian bills.
var phraseFixes = []phraseFix{
	{regexp.MustCompile(`\bS\s?[./]\s?A\b\.?`), "S.A."},
	{regexp.MustCompile(`\bL\s?[T7]\s?D\s?[A4]\b`), "LTDA"},
	{regexp.MustCompile(`\bVENC[I1l]MENT[O0]\b`), "VENCIMENTO"},
	{regexp.MustCompile(`\bT[O0]TAL\b`), "TOTAL"},
	{regexp.MustCompile(`\bVAL[O0]R\b`), "VALOR"},
}

// Normalize canonicalizes OCR text. It is pure and idempotent:
// Normalize(Normalize(s)) == Normalize(s).
func Normalize(text string) string {
	out := normalizeOnce(text)
	// A later pass can expose a match for an earlier one; iterate to a fixed point.
	for i := 0; i < maxNormalizeRounds; i++ {
		next := normalizeOnce(out)
		if next == out {
			break
		}
		out = next
	}
	return out
}

func normalizeOnce(s string) string {
	s = canonicalizeCurrency(s)
	s = collapseSpace(s)
	s = stripUnretained(s)
	s = repairPhrases(s)
	s = collapseThousands(s)
	s = canonicalizeCurrency(s)
	return s
}

// canonicalizeCurrency rewrites "R $", "RS", "r$" and friends in front of a
// numeral to "R$ " with exactly one space.
func canonicalizeCurrency(s string) string {
	return currencyMarkerRe.ReplaceAllString(s, "R$$ $1")
}

// collapseSpace squeezes whitespace runs. A run holding a line break becomes
// a single newline, anything else a single space.
func collapseSpace(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inRun, runHasNewline := false, false
	flush := func() {
		if !inRun {
			return
		}
		if runHasNewline {
			b.WriteByte('\n')
		} else {
			b.WriteByte(' ')
		}
		inRun, runHasNewline = false, false
	}

	for _, r := range s {
		if unicode.IsSpace(r) {
			inRun = true
			if r == '\n' {
				runHasNewline = true
			}
			continue
		}
		flush()
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

func retained(r rune) bool {
	switch {
	case r >= '0' && r <= '9':
		return true
	case unicode.IsSpace(r):
		return true
	case unicode.IsLetter(r) && unicode.Is(unicode.Latin, r):
		return true
	}
	return strings.ContainsRune(retainedPunctuation, r)
}

func stripUnretained(s string) string {
	stripped := strings.Map(func(r rune) rune {
		if retained(r) {
			return r
		}
		return -1
	}, s)
	return collapseSpace(stripped)
}

func repairPhrases(s string) string {
	for _, f := range phraseFixes {
		s = f.re.ReplaceAllString(s, f.repl)
	}
	return s
}

// collapseThousands turns "1.234,56" into "1234,56". Repeated until stable
// because adjacent groups overlap.
func collapseThousands(s string) string {
	for {
		next := thousandsRe.ReplaceAllString(s, "$1$2$3$4")
		if next == s {
			return s
		}
		s = next
	}
}
