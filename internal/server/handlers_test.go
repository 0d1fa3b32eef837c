package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindColor(t *testing.T) {
	assert.Equal(t, "#34d399", kindColor("investible"))
	assert.Equal(t, "#60a5fa", kindColor("bellwether"))
	// Option kinds share one color regardless of call/put.
	assert.Equal(t, "#fb923c", kindColor("option_call"))
	assert.Equal(t, "#fb923c", kindColor("option_put"))
	assert.Equal(t, "#9ca3af", kindColor("mystery"))
}

func TestEdgeColor(t *testing.T) {
	assert.Equal(t, "#60a5fa", edgeColor("correlates"))
	assert.Equal(t, "#f87171", edgeColor("inverse_correlates"))
	assert.Equal(t, "#a78bfa", edgeColor("liquidity_coupled"))
	assert.Equal(t, "#38bdf8", edgeColor("iv_correlates"))
	assert.Equal(t, "#38bdf8", edgeColor("iv_inverse"))
	assert.Equal(t, "#fb923c", edgeColor("options_hedges"))
	assert.Equal(t, "#c084fc", edgeColor("vol_regime_coupled"))
	assert.Equal(t, "#9ca3af", edgeColor("unknown_channel"))
}

func TestFormatPct(t *testing.T) {
	assert.Equal(t, "+1.50%", formatPct(1.5))
	assert.Equal(t, "-0.40%", formatPct(-0.4))
	assert.Equal(t, "+0.00%", formatPct(0))
}
