// Package llm provides the rate-budgeted JSON-only chat adapter shared
// by the dream and think pipelines.
package llm

import (
	"sync"
	"time"
)

// BudgetStats is the observable state of a budget.
type BudgetStats struct {
	CallsUsed   int    `json:"calls_used"`
	CallsBudget int    `json:"calls_budget"`
	LastError   string `json:"last_error,omitempty"`
}

// Budget is a fixed-window per-minute call limiter. The counter resets
// once 60 seconds have elapsed since the window opened.
type Budget struct {
	mu          sync.Mutex
	callsPerMin int
	windowStart time.Time
	calls       int
	lastError   string
	now         func() time.Time
}

// NewBudget creates a budget allowing callsPerMin calls per minute.
func NewBudget(callsPerMin int) *Budget {
	if callsPerMin < 1 {
		callsPerMin = 1
	}
	return &Budget{
		callsPerMin: callsPerMin,
		windowStart: time.Now(),
		now:         time.Now,
	}
}

func (b *Budget) resetIfNeeded() {
	now := b.now()
	if now.Sub(b.windowStart) >= 60*time.Second {
		b.windowStart = now
		b.calls = 0
	}
}

// Acquire is non-blocking: it returns true and records the call iff the
// current window has budget remaining.
func (b *Budget) Acquire() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetIfNeeded()
	if b.calls >= b.callsPerMin {
		return false
	}
	b.calls++
	return true
}

// SetLastError records the most recent adapter failure for observers.
func (b *Budget) SetLastError(msg string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastError = msg
}

// Stats returns a snapshot of the budget state.
func (b *Budget) Stats() BudgetStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetIfNeeded()
	return BudgetStats{
		CallsUsed:   b.calls,
		CallsBudget: b.callsPerMin,
		LastError:   b.lastError,
	}
}
