package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/gemplay-qa/gemcheck/internal/history"
	"github.com/gemplay-qa/gemcheck/internal/preflight"
	"github.com/gemplay-qa/gemcheck/internal/recorder"
	"github.com/gemplay-qa/gemcheck/internal/scenario"
	"github.com/gemplay-qa/gemcheck/internal/suites"
)

const defaultScenarioDir = "./scenarios/"

// ---------------------------------------------------------------------------
// gemcheck list
// ---------------------------------------------------------------------------

func cmdList(w io.Writer) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SUITE\tTAGS\tADMIN\tDESCRIPTION")
	for _, s := range suites.Builtin().All() {
		admin := ""
		if s.NeedsAdmin {
			admin = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.Name, strings.Join(s.Tags, ","), admin, s.Description)
	}
	tw.Flush()
}

// ---------------------------------------------------------------------------
// gemcheck preflight
// ---------------------------------------------------------------------------

func (a *app) cmdPreflight(ctx context.Context) (int, error) {
	if err := a.cfg.Validate(); err != nil {
		return exitHarness, err
	}
	report := preflight.Run(ctx, a.cfg, a.newClient(), a.log)
	report.Print(a.printer)
	if !report.OK() {
		return exitHarness, errPreflight
	}
	return exitOK, nil
}

// preflight runs the connectivity checks ahead of a run and prints them
// only when something failed.
func (a *app) preflight(ctx context.Context) error {
	if a.opts.noPreflight {
		return nil
	}
	report := preflight.Run(ctx, a.cfg, a.newClient(), a.log)
	if !report.OK() {
		report.Print(a.printer)
		return errPreflight
	}
	for _, res := range report.Results {
		a.log.WithField("check", res.Name).Debug(res.Detail)
	}
	return nil
}

// ---------------------------------------------------------------------------
// gemcheck run
// ---------------------------------------------------------------------------

func (a *app) cmdRun(ctx context.Context, args []string) (int, error) {
	if err := a.cfg.Validate(); err != nil {
		return exitHarness, err
	}
	list, err := suites.Builtin().Select(args)
	if err != nil {
		return exitHarness, err
	}
	if err := a.preflight(ctx); err != nil {
		return exitHarness, err
	}

	started := time.Now()
	rec := recorder.New()
	env := suites.NewEnv(a.cfg, rec, a.printer, a.log)

	results, runErr := suites.RunAll(ctx, env, list, suites.RunOptions{FailFast: a.opts.failFast})
	for _, res := range results {
		entry := a.log.WithField("suite", res.Name).WithField("duration", res.Duration.Round(time.Millisecond))
		if res.Err != nil {
			entry = entry.WithError(res.Err)
		}
		entry.Debug("suite finished")
	}

	return a.finish(ctx, commandLine("run", args), started, rec, runErr)
}

// ---------------------------------------------------------------------------
// gemcheck test
// ---------------------------------------------------------------------------

func (a *app) cmdTest(ctx context.Context, args []string) (int, error) {
	path := defaultScenarioDir
	if len(args) > 0 {
		path = args[0]
	}
	list, failed, err := scenario.Load(path, a.configPath)
	if err != nil {
		return exitHarness, err
	}
	if len(list) == 0 && len(failed) == 0 {
		return exitHarness, fmt.Errorf("no scenarios found in %s", path)
	}
	if err := a.cfg.Validate(); err != nil {
		return exitHarness, err
	}
	if err := a.preflight(ctx); err != nil {
		return exitHarness, err
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	started := time.Now()
	rec := recorder.New()
	if a.opts.failFast {
		rec.OnRecord(func(r recorder.Record) {
			if !r.Passed {
				cancel(suites.ErrFailFast)
			}
		})
	}

	// A file that is not a valid scenario fails on its own; the rest run.
	for _, f := range failed {
		name := filepath.Base(f.Path)
		rec.SetSuite(name)
		rec.Record(name+" setup", false, f.Error())
		a.printer.Error("%s: %v", name, f.Err)
	}

	runner := scenario.NewRunner(a.newClient(), a.cfg, rec, a.printer, a.log)
	for _, s := range list {
		if ctx.Err() != nil {
			break
		}
		result, err := runner.Run(ctx, s)
		if err != nil {
			rec.SetSuite(s.Name)
			rec.Record(s.Name+" setup", false, err.Error())
			a.printer.Error("%s: %v", s.Name, err)
			continue
		}
		a.log.WithFields(logrus.Fields{
			"scenario": s.Name,
			"source":   s.Source,
			"passed":   result.Passed,
			"duration": result.Duration.Round(time.Millisecond),
		}).Debug("scenario finished")
	}
	rec.SetSuite("")

	var runErr error
	if ctx.Err() != nil {
		runErr = context.Cause(ctx)
	}
	return a.finish(ctx, commandLine("test", []string{path}), started, rec, runErr)
}

// ---------------------------------------------------------------------------
// reporting shared by run and test
// ---------------------------------------------------------------------------

// finish prints the summary, writes the requested reports and saves the
// run to history. A run cut short by an interrupt exits as a harness
// error even when nothing failed.
func (a *app) finish(ctx context.Context, command string, started time.Time, rec *recorder.Recorder, runErr error) (int, error) {
	switch {
	case runErr == nil:
	case errors.Is(runErr, suites.ErrFailFast):
		a.printer.Warning("stopped after the first failure (--fail-fast)")
	default:
		a.printer.Warning("run interrupted: %v", runErr)
	}
	rec.PrintSummary(a.printer)

	info := recorder.RunInfo{
		ID:        uuid.NewString(),
		Command:   command,
		BaseURL:   a.cfg.BaseURL,
		StartedAt: started,
		Duration:  time.Since(started),
	}

	// Reports and history are written even after an interrupt.
	ctx = context.WithoutCancel(ctx)
	var errs []error
	if a.opts.reportPath != "" {
		errs = append(errs, writeReport(a.opts.reportPath, func(w io.Writer) error { return rec.WriteJSON(w, info) }))
	}
	if a.opts.junitPath != "" {
		errs = append(errs, writeReport(a.opts.junitPath, func(w io.Writer) error { return rec.WriteJUnit(w, info) }))
	}
	if a.cfg.History != "" {
		errs = append(errs, a.saveHistory(ctx, info, rec))
	}
	if err := errors.Join(errs...); err != nil {
		return exitHarness, err
	}

	if runErr != nil && !errors.Is(runErr, suites.ErrFailFast) {
		return exitHarness, nil
	}
	return rec.ExitCode(), nil
}

func writeReport(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating report: %w", err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

func (a *app) saveHistory(ctx context.Context, info recorder.RunInfo, rec *recorder.Recorder) error {
	store, err := history.Open(a.cfg.History)
	if err != nil {
		return err
	}
	defer store.Close()

	s := rec.Summary()
	run := &history.Run{
		ID:        info.ID,
		Command:   info.Command,
		BaseURL:   info.BaseURL,
		StartedAt: info.StartedAt,
		Duration:  info.Duration,
		Total:     s.Total,
		Passed:    s.Passed,
		Failed:    s.Failed,
	}
	if err := store.SaveRun(ctx, run, rec.Records()); err != nil {
		return fmt.Errorf("saving run history: %w", err)
	}
	a.log.WithField("run", run.ID).Debug("run saved to history")
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func commandLine(cmd string, args []string) string {
	return strings.TrimSpace(cmd + " " + strings.Join(args, " "))
}

// ---------------------------------------------------------------------------
// gemcheck history
// ---------------------------------------------------------------------------

func (a *app) cmdHistory(ctx context.Context, args []string) (int, error) {
	if a.cfg.History == "" {
		return exitHarness, errors.New("no history database configured (set history: in gemcheck.yaml, GEMCHECK_HISTORY or --history)")
	}
	store, err := history.Open(a.cfg.History)
	if err != nil {
		return exitHarness, err
	}
	defer store.Close()

	if sel := strings.Join(args, " "); strings.Contains(sel, "/") {
		suite, name, _ := strings.Cut(sel, "/")
		return a.showTest(ctx, store, strings.TrimSpace(suite), strings.TrimSpace(name))
	}

	limit := 20
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return a.showRun(ctx, store, args[0])
		}
		limit = n
	}

	runs, err := store.ListRuns(ctx, limit)
	if err != nil {
		return exitHarness, err
	}
	if len(runs) == 0 {
		fmt.Fprintln(a.stdout, "No runs recorded.")
		return exitOK, nil
	}

	tw := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tDURATION\tCOMMAND\tPASSED\tFAILED")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d/%d\t%d\n",
			shortID(r.ID), humanize.Time(r.StartedAt), r.Duration.Round(time.Millisecond),
			r.Command, r.Passed, r.Total, r.Failed)
	}
	tw.Flush()
	return exitOK, nil
}

// showRun prints every record of one run. id may be a unique prefix as
// shown by the run listing.
func (a *app) showRun(ctx context.Context, store *history.Store, id string) (int, error) {
	run, err := store.GetRun(ctx, id)
	if errors.Is(err, history.ErrNotFound) {
		run, err = findRunByPrefix(ctx, store, id)
	}
	if err != nil {
		return exitHarness, err
	}
	records, err := store.Records(ctx, run.ID)
	if err != nil {
		return exitHarness, err
	}

	p := a.printer
	p.Header(fmt.Sprintf("%s (%s, %s)", run.Command, humanize.Time(run.StartedAt), run.BaseURL))
	for _, r := range records {
		name := r.Name
		if r.Suite != "" {
			name = r.Suite + " / " + r.Name
		}
		if r.Passed {
			p.Success("%s (%s)", name, r.Duration.Round(time.Millisecond))
			continue
		}
		p.Error("%s", name)
		if r.Details != "" {
			p.Info("%s", r.Details)
		}
	}
	p.Println()
	p.Info("%s of %s checks passed", humanize.Comma(int64(run.Passed)), humanize.Comma(int64(run.Total)))
	return exitOK, nil
}

// showTest prints the latest outcomes of one check across runs.
func (a *app) showTest(ctx context.Context, store *history.Store, suite, name string) (int, error) {
	records, err := store.TestHistory(ctx, suite, name, 20)
	if err != nil {
		return exitHarness, err
	}
	if len(records) == 0 {
		return exitHarness, fmt.Errorf("no recorded results for %s / %s", suite, name)
	}

	p := a.printer
	p.Header(suite + " / " + name)
	passed := 0
	for _, r := range records {
		when := humanize.Time(r.At)
		if r.Passed {
			passed++
			p.Success("%s (%s)", when, r.Duration.Round(time.Millisecond))
			continue
		}
		p.Error("%s", when)
		if r.Details != "" {
			p.Info("%s", r.Details)
		}
	}
	p.Println()
	p.Info("%d of the last %d results passed", passed, len(records))
	return exitOK, nil
}

func findRunByPrefix(ctx context.Context, store *history.Store, prefix string) (history.Run, error) {
	runs, err := store.ListRuns(ctx, 1000)
	if err != nil {
		return history.Run{}, err
	}
	var match []history.Run
	for _, r := range runs {
		if strings.HasPrefix(r.ID, prefix) {
			match = append(match, r)
		}
	}
	switch len(match) {
	case 0:
		return history.Run{}, fmt.Errorf("run %s: %w", prefix, history.ErrNotFound)
	case 1:
		return match[0], nil
	default:
		return history.Run{}, fmt.Errorf("run prefix %s is ambiguous (%d matches)", prefix, len(match))
	}
}
