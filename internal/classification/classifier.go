package classification

import (
	"strings"

	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/domain"
)

const (
	textHitScore   = 1
	issuerHitBonus = 2
)

// Result is the chosen category with the score that won it.
type Result struct {
	Category domain.Category `json:"category"`
	Score    int             `json:"score"`
	Matched  []string        `json:"matched,omitempty"`
}

// Classifier scores text against a Table. It holds no mutable state and is
// safe for concurrent use.
type Classifier struct {
	table *Table
}

// New returns a classifier over table. A nil table means DefaultTable.
func New(table *Table) *Classifier {
	if table == nil {
		table = DefaultTable()
	}
	return &Classifier{table: table}
}

// Classify picks the category whose keywords best match text and issuer.
// Every keyword found anywhere scores 1; a keyword also found in the issuer
// name scores 2 more. The strictly highest score wins, earlier rows win
// ties, and a zero score yields "outros".
func (c *Classifier) Classify(text, issuer string) Result {
	lowerIssuer := strings.ToLower(issuer)
	haystack := strings.ToLower(text) + " " + lowerIssuer

	best := Result{Category: domain.CategoryOutros}
	for _, row := range c.table.rows {
		score := 0
		var matched []string
		for _, kw := range row.Keywords {
			if !strings.Contains(haystack, kw) {
				continue
			}
			score += textHitScore
			if lowerIssuer != "" && strings.Contains(lowerIssuer, kw) {
				score += issuerHitBonus
			}
			matched = append(matched, kw)
		}
		if score > best.Score {
			best = Result{Category: row.Category, Score: score, Matched: matched}
		}
	}
	return best
}
