// Package suites holds the built-in GemPlay checks. Each suite is a
// sequence of calls against the live API whose outcomes are recorded
// through an Env.
package suites

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/gemplay-qa/gemcheck/internal/recorder"
)

// Suite is one named scenario body.
type Suite struct {
	Name        string
	Description string
	Tags        []string
	NeedsAdmin  bool
	Run         func(ctx context.Context, env *Env) error
}

// Registry holds suites in registration order.
type Registry struct {
	suites []Suite
	byName map[string]int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]int)}
}

// Register adds s. Names must be unique.
func (r *Registry) Register(s Suite) error {
	if s.Name == "" || s.Run == nil {
		return fmt.Errorf("suite must have a name and a Run func")
	}
	if _, dup := r.byName[s.Name]; dup {
		return fmt.Errorf("suite %q already registered", s.Name)
	}
	r.byName[s.Name] = len(r.suites)
	r.suites = append(r.suites, s)
	return nil
}

// All returns every suite in registration order.
func (r *Registry) All() []Suite {
	return slices.Clone(r.suites)
}

// Lookup finds a suite by name.
func (r *Registry) Lookup(name string) (Suite, bool) {
	i, ok := r.byName[name]
	if !ok {
		return Suite{}, false
	}
	return r.suites[i], true
}

// Select resolves command-line selectors to suites. A selector is either
// a suite name or "tag:<tag>". No selectors selects everything. The
// result keeps registration order and holds no duplicates.
func (r *Registry) Select(selectors []string) ([]Suite, error) {
	if len(selectors) == 0 {
		return r.All(), nil
	}

	picked := make(map[string]bool)
	var unknown []string
	for _, sel := range selectors {
		if tag, ok := strings.CutPrefix(sel, "tag:"); ok {
			found := false
			for _, s := range r.suites {
				if slices.Contains(s.Tags, tag) {
					picked[s.Name] = true
					found = true
				}
			}
			if !found {
				unknown = append(unknown, sel)
			}
			continue
		}
		if _, ok := r.byName[sel]; !ok {
			unknown = append(unknown, sel)
			continue
		}
		picked[sel] = true
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("unknown suite(s): %s", strings.Join(unknown, ", "))
	}

	var out []Suite
	for _, s := range r.suites {
		if picked[s.Name] {
			out = append(out, s)
		}
	}
	return out, nil
}

// Builtin returns a registry with every built-in suite.
func Builtin() *Registry {
	r := NewRegistry()
	for _, s := range []Suite{
		authSuite(),
		gemsSuite(),
		gamesSuite(),
		botsSuite(),
		humanBotsSuite(),
		commissionSuite(),
		notificationsSuite(),
	} {
		if err := r.Register(s); err != nil {
			panic(err)
		}
	}
	return r
}

// SuiteResult is the outcome of one suite run.
type SuiteResult struct {
	Name     string
	Duration time.Duration
	Err      error // non-nil when the suite aborted
}

// RunOptions controls RunAll.
type RunOptions struct {
	// FailFast stops the run at the first failed record.
	FailFast bool
}

// ErrFailFast is the cancellation cause when FailFast stops a run.
var ErrFailFast = errors.New("stopped after first failure")

// RunAll runs suites in order. An aborted suite is recorded as a failure
// and the run moves on to the next suite. The returned error is non-nil
// only when the run was cut short by ctx or by FailFast.
func RunAll(ctx context.Context, env *Env, list []Suite, opts RunOptions) ([]SuiteResult, error) {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	if opts.FailFast {
		env.Recorder.OnRecord(func(rec recorder.Record) {
			if !rec.Passed {
				cancel(ErrFailFast)
			}
		})
	}

	var results []SuiteResult
	for _, s := range list {
		if ctx.Err() != nil {
			break
		}

		env.Recorder.SetSuite(s.Name)
		env.Printer.Header(strings.ToUpper(s.Name) + ": " + s.Description)

		start := time.Now()
		err := runSuite(ctx, env, s)
		res := SuiteResult{Name: s.Name, Duration: time.Since(start), Err: err}
		results = append(results, res)

		switch {
		case err == nil:
		case ctx.Err() != nil:
			env.Log.WithField("suite", s.Name).Debugf("suite interrupted: %v", err)
		default:
			env.Check(s.Name+" setup", false, err.Error())
			env.Printer.Warning("suite %s aborted", s.Name)
		}
	}
	env.Recorder.SetSuite("")

	if ctx.Err() != nil {
		return results, context.Cause(ctx)
	}
	return results, nil
}

func runSuite(ctx context.Context, env *Env, s Suite) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = Abort("panic: %v", p)
		}
	}()
	if s.NeedsAdmin {
		if _, err := env.Admin(ctx); err != nil {
			return err
		}
	}
	return s.Run(ctx, env)
}
