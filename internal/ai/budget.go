package ai

import (
	"context"
	"fmt"
	"sync"
)

// BudgetChecker checks and records token usage against per-requester budgets.
// A zero budget means unlimited.
type BudgetChecker interface {
	// Check returns true if the requester has budget remaining.
	Check(ctx context.Context, key string) (bool, error)
	// Record records token usage for a requester.
	Record(ctx context.Context, key string, tokens int) error
	// Usage returns current usage and the budget for a requester.
	Usage(ctx context.Context, key string) (used int64, budget int64, err error)
}

// InMemoryBudget is an in-process budget tracker for development and single-node runs.
// Multi-node deployments use RedisBudget so usage is shared.
type InMemoryBudget struct {
	mu      sync.RWMutex
	limit   int64
	budgets map[string]int64 // key -> budget override
	usage   map[string]int64 // key -> tokens used
}

// NewInMemoryBudget creates a tracker where every key starts with limit tokens.
func NewInMemoryBudget(limit int64) *InMemoryBudget {
	return &InMemoryBudget{
		limit:   limit,
		budgets: make(map[string]int64),
		usage:   make(map[string]int64),
	}
}

// SetBudget overrides the token budget for one key.
func (b *InMemoryBudget) SetBudget(key string, tokens int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.budgets[key] = tokens
}

func (b *InMemoryBudget) budgetFor(key string) int64 {
	if budget, ok := b.budgets[key]; ok {
		return budget
	}
	return b.limit
}

func (b *InMemoryBudget) Check(_ context.Context, key string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	budget := b.budgetFor(key)
	if budget <= 0 {
		return true, nil
	}
	return b.usage[key] < budget, nil
}

func (b *InMemoryBudget) Record(_ context.Context, key string, tokens int) error {
	if tokens < 0 {
		return fmt.Errorf("tokens must be non-negative, got %d", tokens)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.usage[key] += int64(tokens)
	return nil
}

func (b *InMemoryBudget) Usage(_ context.Context, key string) (int64, int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.usage[key], b.budgetFor(key), nil
}

// Reset clears recorded usage for every key.
func (b *InMemoryBudget) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.usage = make(map[string]int64)
}
