package recovery

import (
	"context"
	"errors"

	"github.com/vietddude/steemstream/internal/core/domain"
	"github.com/vietddude/steemstream/internal/indexing/accounts"
	"github.com/vietddude/steemstream/internal/infra/rpc/routing"
)

// FailureCategory is the error class that decides whether work is retried.
type FailureCategory int

const (
	// CategoryTransient errors are retried at the scope where they occurred.
	CategoryTransient FailureCategory = iota
	// CategoryMalformed errors skip the record and are never retried.
	CategoryMalformed
	// CategoryFatal errors stop the owning loop.
	CategoryFatal
)

func (c FailureCategory) String() string {
	switch c {
	case CategoryTransient:
		return "transient"
	case CategoryMalformed:
		return "malformed"
	case CategoryFatal:
		return "fatal"
	}
	return "unknown"
}

// Classifier maps an error to a FailureCategory.
type Classifier func(err error) FailureCategory

// DefaultClassifier treats network and node errors as transient, payload shape
// errors as malformed, and JSON-RPC request errors as fatal.
func DefaultClassifier(err error) FailureCategory {
	switch {
	case err == nil:
		return CategoryTransient
	case errors.Is(err, domain.ErrMalformedPayload), errors.Is(err, accounts.ErrAccountNotFound):
		return CategoryMalformed
	case errors.Is(err, context.Canceled):
		return CategoryFatal
	case errors.Is(err, ErrRetryExhausted):
		return CategoryFatal
	case routing.ClassifyError(err) == routing.ActionFatal:
		return CategoryFatal
	}
	return CategoryTransient
}
