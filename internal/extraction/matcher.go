package extraction

import (
	"regexp"

	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/domain"
)

// matcher is one entry of a pattern family. The first capture group of re
// holds the candidate; name is recorded as the field's provenance.
type matcher struct {
	name string
	re   *regexp.Regexp
}

func newMatcher(name, pattern string) matcher {
	return matcher{name: name, re: regexp.MustCompile(pattern)}
}

// candidates returns every capture in text order.
func (m matcher) candidates(text string) []string {
	var out []string
	for _, sm := range m.re.FindAllStringSubmatch(text, -1) {
		if len(sm) > 1 && sm[1] != "" {
			out = append(out, sm[1])
		}
	}
	return out
}

// firstValid walks the matchers in priority order and returns the first
// candidate accepted by validate. A rejected candidate is not an error; the
// walk simply moves on.
func firstValid[T any](text string, matchers []matcher, validate func(string) (T, bool)) domain.Field[T] {
	for _, m := range matchers {
		for _, c := range m.candidates(text) {
			if v, ok := validate(c); ok {
				return domain.Found(v, m.name)
			}
		}
	}
	return domain.Absent[T]()
}
