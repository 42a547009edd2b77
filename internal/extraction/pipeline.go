package extraction

import (
	"github.com/KevinLopes23/Sistema-de-Controle-de-Faturas/internal/domain"

	"golang.org/x/sync/errgroup"
)

// Result is the normalized text together with the extracted fields.
type Result struct {
	Normalized string
	Fields     domain.ExtractedFields
}

// Extract normalizes text and runs the four field extractors. The
// extractors are independent, so they run concurrently; the result is
// complete when Extract returns.
func Extract(text string) Result {
	normalized := Normalize(text)

	var fields domain.ExtractedFields
	var g errgroup.Group

	g.Go(func() error {
		fields.Amount = ExtractAmount(normalized)
		return nil
	})
	g.Go(func() error {
		fields.DueDate = ExtractDueDate(normalized)
		return nil
	})
	g.Go(func() error {
		fields.IssueDate = ExtractIssueDate(normalized)
		return nil
	})
	g.Go(func() error {
		fields.Issuer = ExtractIssuer(normalized)
		return nil
	})

	_ = g.Wait()

	return Result{Normalized: normalized, Fields: fields}
}
