// Package workers hosts the three autonomous loops: Market (snapshot
// pipeline), Dream (knowledge-graph maintenance), and Think (committee
// plus guarded execution), sharing one cancellable loop shape.
package workers

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/kginvest/internal/metrics"
)

const sleepSlice = 250 * time.Millisecond

// Stats is the shared per-worker telemetry snapshot.
type Stats struct {
	Steps      int64            `json:"steps"`
	Errors     int64            `json:"errors"`
	LastTS     string           `json:"last_ts"`
	LastAction string           `json:"last_action"`
	LastError  string           `json:"last_error"`
	Counters   map[string]int64 `json:"counters,omitempty"`
}

// Worker runs one named step function on an interval. Start is
// idempotent; StopNow signals the loop, which observes the stop within
// one sleep slice.
type Worker struct {
	name     string
	interval time.Duration
	step     func() (string, error)

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
	stats   Stats

	log zerolog.Logger
}

// NewWorker wraps a step function into a supervised loop. The step
// returns an action label recorded in the stats.
func NewWorker(name string, interval time.Duration, step func() (string, error), log zerolog.Logger) *Worker {
	return &Worker{
		name:     name,
		interval: interval,
		step:     step,
		stats:    Stats{Counters: map[string]int64{}},
		log:      log.With().Str("worker", name).Logger(),
	}
}

// Name returns the worker's name.
func (w *Worker) Name() string { return w.name }

// Start launches the loop if it is not already running.
func (w *Worker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}
	w.running = true
	w.stop = make(chan struct{})
	w.done = make(chan struct{})
	go w.loop(w.stop, w.done)
	w.log.Info().Msg("worker started")
}

// StopNow signals the loop to exit and waits for it.
func (w *Worker) StopNow() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stop)
	done := w.done
	w.mu.Unlock()

	<-done
	w.log.Info().Msg("worker stopped")
}

// Running reports whether the loop is active.
func (w *Worker) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// StepOnce runs a single step outside the loop and records it.
func (w *Worker) StepOnce() error {
	action, err := w.step()
	w.record(action, err)
	return err
}

// GetStats returns a copy of the telemetry snapshot.
func (w *Worker) GetStats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := w.stats
	out.Counters = make(map[string]int64, len(w.stats.Counters))
	for k, v := range w.stats.Counters {
		out.Counters[k] = v
	}
	return out
}

// AddCounter bumps a worker-specific counter.
func (w *Worker) AddCounter(name string, delta int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stats.Counters[name] += delta
}

func (w *Worker) loop(stop, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		default:
		}

		action, err := w.step()
		w.record(action, err)
		if err != nil {
			w.log.Error().Err(err).Msg("step failed")
		}

		if !w.sleep(stop) {
			return
		}
	}
}

// sleep waits for the interval in bounded slices so a stop signal is
// observed within one slice. Returns false when stopped.
func (w *Worker) sleep(stop chan struct{}) bool {
	remaining := w.interval
	for remaining > 0 {
		slice := sleepSlice
		if remaining < slice {
			slice = remaining
		}
		select {
		case <-stop:
			return false
		case <-time.After(slice):
			remaining -= slice
		}
	}
	return true
}

func (w *Worker) record(action string, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stats.LastTS = time.Now().UTC().Format(time.RFC3339)
	w.stats.LastAction = action
	if err != nil {
		w.stats.Errors++
		w.stats.LastError = err.Error()
		metrics.WorkerErrors.WithLabelValues(w.name).Inc()
		return
	}
	w.stats.Steps++
	w.stats.LastError = ""
	metrics.WorkerSteps.WithLabelValues(w.name).Inc()
}
