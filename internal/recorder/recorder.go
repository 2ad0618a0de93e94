// Package recorder tallies pass/fail test records for a run.
package recorder

import (
	"strconv"
	"sync"
	"time"

	"github.com/gemplay-qa/gemcheck/internal/console"
)

// Record is the outcome of one named check.
type Record struct {
	Suite    string        `json:"suite,omitempty"`
	Name     string        `json:"name"`
	Passed   bool          `json:"passed"`
	Details  string        `json:"details,omitempty"`
	Duration time.Duration `json:"duration_ns,omitempty"`
	At       time.Time     `json:"at"`
}

// Summary is the aggregate of all records.
type Summary struct {
	Total       int     `json:"total"`
	Passed      int     `json:"passed"`
	Failed      int     `json:"failed"`
	SuccessRate float64 `json:"success_rate"`
}

// Recorder accumulates records. It is safe for concurrent use.
type Recorder struct {
	mu       sync.Mutex
	suite    string
	summary  Summary
	tests    []Record
	onRecord []func(Record)
	now      func() time.Time
}

// New returns an empty Recorder.
func New() *Recorder {
	return &Recorder{now: time.Now}
}

// SetSuite tags subsequent records with a suite name.
func (r *Recorder) SetSuite(name string) {
	r.mu.Lock()
	r.suite = name
	r.mu.Unlock()
}

// OnRecord registers fn to be called after every record is added.
func (r *Recorder) OnRecord(fn func(Record)) {
	r.mu.Lock()
	r.onRecord = append(r.onRecord, fn)
	r.mu.Unlock()
}

// Record adds a named outcome. Records are never deduplicated.
func (r *Recorder) Record(name string, passed bool, details string) Record {
	return r.Add(Record{Name: name, Passed: passed, Details: details})
}

// Add appends rec, filling Suite and At when they are empty.
func (r *Recorder) Add(rec Record) Record {
	r.mu.Lock()
	if rec.Suite == "" {
		rec.Suite = r.suite
	}
	if rec.At.IsZero() {
		rec.At = r.now()
	}
	r.summary.Total++
	if rec.Passed {
		r.summary.Passed++
	} else {
		r.summary.Failed++
	}
	r.tests = append(r.tests, rec)
	hooks := append([]func(Record){}, r.onRecord...)
	r.mu.Unlock()

	for _, fn := range hooks {
		fn(rec)
	}
	return rec
}

// Records returns a copy of every record in insertion order.
func (r *Recorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Record(nil), r.tests...)
}

// Failures returns only the failed records.
func (r *Recorder) Failures() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Record
	for _, rec := range r.tests {
		if !rec.Passed {
			out = append(out, rec)
		}
	}
	return out
}

// Summary returns the totals and success percentage.
func (r *Recorder) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.summary
	if s.Total > 0 {
		s.SuccessRate = float64(s.Passed) / float64(s.Total) * 100
	}
	return s
}

// ExitCode is 0 when nothing failed and 1 otherwise.
func (r *Recorder) ExitCode() int {
	if r.Summary().Failed > 0 {
		return 1
	}
	return 0
}

// PrintSummary prints failed records and the overall percentage.
func (r *Recorder) PrintSummary(p *console.Printer) {
	s := r.Summary()
	p.Header("TEST SUMMARY")
	p.Info("Total:   %d", s.Total)
	p.Info("Passed:  %s", p.Colorize(console.Green, strconv.Itoa(s.Passed)))
	p.Info("Failed:  %s", p.Colorize(console.Red, strconv.Itoa(s.Failed)))

	if failures := r.Failures(); len(failures) > 0 {
		p.Println()
		p.Error("Failed tests:")
		for _, rec := range failures {
			name := rec.Name
			if rec.Suite != "" {
				name = rec.Suite + " / " + rec.Name
			}
			p.Info("- %s", name)
			if rec.Details != "" {
				p.Info("    %s", rec.Details)
			}
		}
	}

	p.Println()
	switch {
	case s.Total == 0:
		p.Warning("No tests were recorded")
	case s.Failed == 0:
		p.Success("Success rate: %.1f%% (%d/%d)", s.SuccessRate, s.Passed, s.Total)
	default:
		p.Error("Success rate: %.1f%% (%d/%d)", s.SuccessRate, s.Passed, s.Total)
	}
}
