package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func eastern(t *testing.T) *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return loc
}

func TestIsOpen(t *testing.T) {
	et := eastern(t)

	// Tuesday mid-session.
	assert.True(t, IsOpen(time.Date(2025, 6, 10, 11, 0, 0, 0, et)))
	// Opening bell boundary.
	assert.True(t, IsOpen(time.Date(2025, 6, 10, 9, 30, 0, 0, et)))
	assert.False(t, IsOpen(time.Date(2025, 6, 10, 9, 29, 0, 0, et)))
	// Close boundary is exclusive.
	assert.False(t, IsOpen(time.Date(2025, 6, 10, 16, 0, 0, 0, et)))
	assert.True(t, IsOpen(time.Date(2025, 6, 10, 15, 59, 0, 0, et)))
	// Weekend.
	assert.False(t, IsOpen(time.Date(2025, 6, 14, 11, 0, 0, 0, et)))
	assert.False(t, IsOpen(time.Date(2025, 6, 15, 11, 0, 0, 0, et)))
}

func TestIsOpenConvertsZones(t *testing.T) {
	// 15:00 UTC on a Tuesday is 11:00 ET during daylight saving.
	assert.True(t, IsOpen(time.Date(2025, 6, 10, 15, 0, 0, 0, time.UTC)))
	// 02:00 UTC is outside the session.
	assert.False(t, IsOpen(time.Date(2025, 6, 10, 2, 0, 0, 0, time.UTC)))
}

func TestCanTradeNow(t *testing.T) {
	et := eastern(t)
	open := time.Date(2025, 6, 10, 11, 0, 0, 0, et)
	closed := time.Date(2025, 6, 10, 20, 0, 0, 0, et)

	assert.True(t, CanTradeNow(true, open))
	assert.True(t, CanTradeNow(true, closed))
	// Daily-bar engines act after the close.
	assert.False(t, CanTradeNow(false, open))
	assert.True(t, CanTradeNow(false, closed))
}
