package workers

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerStartStop(t *testing.T) {
	var steps atomic.Int64
	w := NewWorker("test", 10*time.Millisecond, func() (string, error) {
		steps.Add(1)
		return "tick", nil
	}, zerolog.Nop())

	assert.False(t, w.Running())
	w.Start()
	assert.True(t, w.Running())

	require.Eventually(t, func() bool { return steps.Load() >= 2 },
		2*time.Second, 5*time.Millisecond)

	start := time.Now()
	w.StopNow()
	// The stop signal is observed within one sleep slice.
	assert.Less(t, time.Since(start), time.Second)
	assert.False(t, w.Running())

	settled := steps.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, settled, steps.Load())
}

func TestWorkerStartIsIdempotent(t *testing.T) {
	var steps atomic.Int64
	w := NewWorker("test", time.Hour, func() (string, error) {
		steps.Add(1)
		return "tick", nil
	}, zerolog.Nop())

	w.Start()
	w.Start()
	w.Start()
	defer w.StopNow()

	require.Eventually(t, func() bool { return steps.Load() >= 1 },
		time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	// A duplicated loop would have stepped more than once at this interval.
	assert.Equal(t, int64(1), steps.Load())
}

func TestWorkerStopNowWithoutStart(t *testing.T) {
	w := NewWorker("test", time.Hour, func() (string, error) { return "", nil }, zerolog.Nop())
	w.StopNow()
	assert.False(t, w.Running())
}

func TestWorkerStepOnceRecordsStats(t *testing.T) {
	fail := false
	w := NewWorker("test", time.Hour, func() (string, error) {
		if fail {
			return "tick", errors.New("boom")
		}
		return "tick", nil
	}, zerolog.Nop())

	require.NoError(t, w.StepOnce())
	st := w.GetStats()
	assert.Equal(t, int64(1), st.Steps)
	assert.Equal(t, int64(0), st.Errors)
	assert.Equal(t, "tick", st.LastAction)
	assert.Empty(t, st.LastError)
	assert.NotEmpty(t, st.LastTS)

	fail = true
	require.Error(t, w.StepOnce())
	st = w.GetStats()
	assert.Equal(t, int64(1), st.Steps)
	assert.Equal(t, int64(1), st.Errors)
	assert.Equal(t, "boom", st.LastError)

	// A later success clears the sticky error message.
	fail = false
	require.NoError(t, w.StepOnce())
	assert.Empty(t, w.GetStats().LastError)
}

func TestWorkerCounters(t *testing.T) {
	w := NewWorker("test", time.Hour, func() (string, error) { return "", nil }, zerolog.Nop())
	w.AddCounter("edges_updated", 2)
	w.AddCounter("edges_updated", 1)

	st := w.GetStats()
	assert.Equal(t, int64(3), st.Counters["edges_updated"])

	// The snapshot is a copy, not a live view.
	st.Counters["edges_updated"] = 99
	assert.Equal(t, int64(3), w.GetStats().Counters["edges_updated"])
}
