package llm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBudgetExhaustsWithinWindow(t *testing.T) {
	b := NewBudget(2)
	assert.True(t, b.Acquire())
	assert.True(t, b.Acquire())
	assert.False(t, b.Acquire())

	stats := b.Stats()
	assert.Equal(t, 2, stats.CallsUsed)
	assert.Equal(t, 2, stats.CallsBudget)
}

func TestBudgetFixedWindowReset(t *testing.T) {
	now := time.Now()
	b := NewBudget(1)
	b.now = func() time.Time { return now }
	b.windowStart = now

	assert.True(t, b.Acquire())
	assert.False(t, b.Acquire())

	// 59s in, still the same window.
	now = now.Add(59 * time.Second)
	assert.False(t, b.Acquire())

	// The window rolls at 60s and the counter resets.
	now = now.Add(time.Second)
	assert.True(t, b.Acquire())
	assert.Equal(t, 1, b.Stats().CallsUsed)
}

func TestBudgetMinimumOfOne(t *testing.T) {
	b := NewBudget(0)
	assert.True(t, b.Acquire())
	assert.False(t, b.Acquire())
}

func TestBudgetLastError(t *testing.T) {
	b := NewBudget(5)
	b.SetLastError("parse_fail")
	assert.Equal(t, "parse_fail", b.Stats().LastError)
}
