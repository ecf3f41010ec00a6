// Package metrics is the backend-neutral metrics facade used by jobs.
//
// Jobs only call IncCounter/ObserveHistogram through the package-level
// functions; the CLI decides at startup which Backend (if any) receives them.
// The default backend discards everything.
package metrics

import (
	"sync"
	"time"
)

// Metric names emitted by this module.
const (
	// labels: step, status
	StepTotal = "eduetl_step_total"
	// labels: step, status
	StepDurationSeconds = "eduetl_step_duration_seconds"
	// labels: kind (read, written, malformed, unclassified, cycle)
	RecordsTotal = "eduetl_records_total"
	// labels: status (ok, failed)
	GroupsTotal = "eduetl_groups_total"
)

// Labels are metric dimensions.
type Labels map[string]string

// Backend receives metric observations.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
}

// Flusher is implemented by backends that buffer.
type Flusher interface {
	Flush() error
}

type nop struct{}

func (nop) IncCounter(string, float64, Labels)       {}
func (nop) ObserveHistogram(string, float64, Labels) {}

var (
	mu      sync.RWMutex
	backend Backend = nop{}
)

// SetBackend installs b as the process-wide backend. nil restores the nop.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		backend = nop{}
		return
	}
	backend = b
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

func IncCounter(name string, delta float64, labels Labels) {
	current().IncCounter(name, delta, labels)
}

func ObserveHistogram(name string, value float64, labels Labels) {
	current().ObserveHistogram(name, value, labels)
}

// Flush flushes the installed backend when it buffers.
func Flush() error {
	if f, ok := current().(Flusher); ok {
		return f.Flush()
	}
	return nil
}

// RecordRecords counts n records of kind.
func RecordRecords(kind string, n int) {
	if n <= 0 {
		return
	}
	IncCounter(RecordsTotal, float64(n), Labels{"kind": kind})
}

// RecordGroup counts one group write outcome.
func RecordGroup(ok bool) {
	status := "ok"
	if !ok {
		status = "failed"
	}
	IncCounter(GroupsTotal, 1, Labels{"status": status})
}

// Step times one named job step: call the returned func with the step's
// error when it finishes.
func Step(step string) func(err error) {
	start := time.Now()
	return func(err error) {
		status := "ok"
		if err != nil {
			status = "error"
		}
		l := Labels{"step": step, "status": status}
		IncCounter(StepTotal, 1, l)
		ObserveHistogram(StepDurationSeconds, time.Since(start).Seconds(), l)
	}
}
