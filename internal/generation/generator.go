package generation

import (
	"context"

	"github.com/p-n-ai/pai-worksheet/internal/problem"
)

// Generator produces problems. Implementations assign a fresh ID to every problem they return.
type Generator interface {
	// GenerateSet returns a new set for spec. Matching spec.Total and spec.Counts is best effort.
	GenerateSet(ctx context.Context, spec Spec) ([]problem.Problem, error)
	// ReplaceOne returns a new problem on the same learning objective as p, with difficulty d.
	ReplaceOne(ctx context.Context, p problem.Problem, d problem.Difficulty) (problem.Problem, error)
}

type requesterKey struct{}

// WithRequester tags ctx with the key token budgets are charged to.
func WithRequester(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, requesterKey{}, key)
}

// Requester returns the budget key carried by ctx, if any.
func Requester(ctx context.Context) string {
	key, _ := ctx.Value(requesterKey{}).(string)
	return key
}
