package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Field is the outcome of one extractor: a value with the name of the
// pattern that produced it, or absent.
type Field[T any] struct {
	Value   T
	Pattern string
	Present bool
}

// Found wraps an extracted value.
func Found[T any](v T, pattern string) Field[T] {
	return Field[T]{Value: v, Pattern: pattern, Present: true}
}

// Absent is the empty result.
func Absent[T any]() Field[T] {
	return Field[T]{}
}

// Ptr returns a pointer to the value, or nil when absent.
func (f Field[T]) Ptr() *T {
	if !f.Present {
		return nil
	}
	v := f.Value
	return &v
}

// ExtractedFields is the fixed set of fields read from invoice text.
type ExtractedFields struct {
	Amount    Field[decimal.Decimal]
	DueDate   Field[time.Time]
	IssueDate Field[time.Time]
	Issuer    Field[string]
}
