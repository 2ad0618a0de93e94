package scenario

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gemplay-qa/gemcheck/internal/client"
	"github.com/gemplay-qa/gemcheck/internal/config"
	"github.com/gemplay-qa/gemcheck/internal/console"
	"github.com/gemplay-qa/gemcheck/internal/gemplay"
	"github.com/gemplay-qa/gemcheck/internal/jsonpath"
	"github.com/gemplay-qa/gemcheck/internal/poll"
	"github.com/gemplay-qa/gemcheck/internal/recorder"
)

// DefaultTokenVar is where Login stores the token when As is empty.
const DefaultTokenVar = "token"

// StepResult records the outcome of a single step.
type StepResult struct {
	Name     string
	Passed   bool
	Attempts int
	Duration time.Duration
	Error    string // empty when passed
}

// Result records the outcome of an entire scenario.
type Result struct {
	ScenarioName string
	Passed       bool
	Steps        []StepResult
	Duration     time.Duration
}

// Runner executes scenarios against the configured GemPlay API and records
// every step.
type Runner struct {
	api      *gemplay.API
	cfg      *config.Config
	rec      *recorder.Recorder
	printer  *console.Printer
	log      logrus.FieldLogger
	vars     map[string]string
	tokenVar string
}

// NewRunner creates a Runner. rec and printer may be nil.
func NewRunner(c *client.Client, cfg *config.Config, rec *recorder.Recorder, printer *console.Printer, log logrus.FieldLogger) *Runner {
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		log = l
	}
	return &Runner{
		api:     gemplay.New(c),
		cfg:     cfg,
		rec:     rec,
		printer: printer,
		log:     log,
	}
}

// Run executes a single scenario. A failed login is returned as an error;
// failed steps only mark the result as failed.
func (r *Runner) Run(ctx context.Context, s *Scenario) (*Result, error) {
	start := time.Now()
	result := &Result{ScenarioName: s.Name, Passed: true}

	r.vars = make(map[string]string, len(s.Variables))
	r.tokenVar = ""
	for k, v := range s.Variables {
		expanded, err := ExpandTemplates(v, r.cfg, r.vars)
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", k, err)
		}
		r.vars[k] = expanded
	}

	if r.rec != nil {
		r.rec.SetSuite(s.Name)
	}
	if r.printer != nil {
		title := s.Name
		if s.Description != "" {
			title += ": " + s.Description
		}
		r.printer.Header(title)
	}

	if s.Login != nil {
		if err := r.login(ctx, s.Login); err != nil {
			return nil, fmt.Errorf("login failed: %w", err)
		}
	}

	for i := range s.Steps {
		if ctx.Err() != nil {
			result.Passed = false
			break
		}
		sr := r.runStep(ctx, &s.Steps[i])
		result.Steps = append(result.Steps, sr)
		if !sr.Passed {
			result.Passed = false
		}
		r.report(sr)
	}

	result.Duration = time.Since(start)
	return result, nil
}

func (r *Runner) login(ctx context.Context, l *Login) error {
	email, password := l.Email, l.Password
	if l.Admin {
		if r.cfg == nil || !r.cfg.HasAdmin() {
			return errors.New("admin login requested but admin credentials are not configured")
		}
		email, password = r.cfg.Admin.Email, r.cfg.Admin.Password
	}
	email, err := ExpandTemplates(email, r.cfg, r.vars)
	if err != nil {
		return fmt.Errorf("email: %w", err)
	}
	password, err = ExpandTemplates(password, r.cfg, r.vars)
	if err != nil {
		return fmt.Errorf("password: %w", err)
	}

	_, session, err := r.api.Authenticate(ctx, email, password)
	if err != nil {
		return err
	}
	r.tokenVar = l.As
	if r.tokenVar == "" {
		r.tokenVar = DefaultTokenVar
	}
	r.vars[r.tokenVar] = session.Token
	if session.UserID != "" {
		r.vars[r.tokenVar+"_user_id"] = session.UserID
	}
	r.log.WithField("email", email).Debug("scenario login")
	return nil
}

func (r *Runner) report(sr StepResult) {
	if r.rec != nil {
		r.rec.Add(recorder.Record{Name: sr.Name, Passed: sr.Passed, Details: sr.Error, Duration: sr.Duration})
	}
	if r.printer == nil {
		return
	}
	if sr.Passed {
		r.printer.Success("%s (%s)", sr.Name, sr.Duration.Round(time.Millisecond))
		return
	}
	r.printer.Error("%s", sr.Name)
	r.printer.Info("%s", sr.Error)
}

// runStep executes a step, retrying it when the step polls.
func (r *Runner) runStep(ctx context.Context, step *Step) StepResult {
	start := time.Now()
	sr := StepResult{Name: step.Name}

	if step.Poll == nil {
		sr.Attempts = 1
		if err := r.attempt(ctx, step); err != nil {
			sr.Error = err.Error()
		} else {
			sr.Passed = true
		}
		sr.Duration = time.Since(start)
		return sr
	}

	var lastErr error
	err := poll.Until(ctx, step.Poll.Interval.Std(), step.Poll.Timeout.Std(), func(ctx context.Context) (bool, error) {
		sr.Attempts++
		lastErr = r.attempt(ctx, step)
		var fatal *stepError
		if errors.As(lastErr, &fatal) && fatal.fatal {
			return false, lastErr
		}
		return lastErr == nil, nil
	})
	switch {
	case err == nil:
		sr.Passed = true
	case errors.Is(err, poll.ErrTimeout) && lastErr != nil:
		sr.Error = fmt.Sprintf("after %d attempts: %v", sr.Attempts, lastErr)
	default:
		sr.Error = err.Error()
	}
	sr.Duration = time.Since(start)
	return sr
}

// stepError marks failures that retrying cannot fix, such as a bad
// template or an invalid JSONPath.
type stepError struct {
	msg   string
	fatal bool
}

func (e *stepError) Error() string { return e.msg }

func fatalf(format string, args ...any) error {
	return &stepError{msg: fmt.Sprintf(format, args...), fatal: true}
}

// attempt performs the request once, captures variables and checks
// assertions.
func (r *Runner) attempt(ctx context.Context, step *Step) error {
	req, err := r.buildRequest(step)
	if err != nil {
		return err
	}

	resp, err := r.api.Client().Do(ctx, req)
	if err != nil {
		return errors.New(client.Describe(err))
	}

	for varName, path := range step.Capture {
		val, ok := resp.Path(path)
		if !ok {
			return fmt.Errorf("capture %q: JSONPath %q: no match found", varName, path)
		}
		r.vars[varName] = jsonpath.Format(val)
	}

	if step.Assert != nil {
		if err := r.runAssertions(step.Assert, resp); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) buildRequest(step *Step) (client.Request, error) {
	path, err := ExpandTemplates(step.Request.Path, r.cfg, r.vars)
	if err != nil {
		return client.Request{}, fatalf("template expansion in path: %v", err)
	}
	headers, err := expandMap(step.Request.Headers, r.cfg, r.vars)
	if err != nil {
		return client.Request{}, fatalf("template expansion in header %v", err)
	}
	query, err := expandMap(step.Request.Query, r.cfg, r.vars)
	if err != nil {
		return client.Request{}, fatalf("template expansion in query %v", err)
	}

	req := client.Request{
		Method:  step.Request.Method,
		Path:    path,
		Headers: headers,
		Query:   query,
	}
	if step.Request.Body != nil {
		body, err := expandValue(step.Request.Body, r.cfg, r.vars)
		if err != nil {
			return client.Request{}, fatalf("template expansion in body: %v", err)
		}
		req.Body = body
	}

	switch auth := step.Request.Auth; {
	case auth == AuthNone:
		req.NoAuth = true
	case auth != "":
		token, ok := r.vars[auth]
		if !ok {
			return client.Request{}, fatalf("auth variable %q is not set", auth)
		}
		req.Token = token
	case r.tokenVar != "":
		req.Token = r.vars[r.tokenVar]
	}
	if step.Assert != nil && step.Assert.Status != 0 {
		req.ExpectStatus = step.Assert.Status
	}
	return req, nil
}

// runAssertions evaluates all assertions against the response.
func (r *Runner) runAssertions(a *Assert, resp *client.Response) error {
	if a.Status != 0 && resp.Status != a.Status {
		return fmt.Errorf("expected status %d, got %d: %s", a.Status, resp.Status, excerpt(resp.Text()))
	}

	if a.BodyContains != "" {
		want, err := ExpandTemplates(a.BodyContains, r.cfg, r.vars)
		if err != nil {
			return fatalf("template expansion in body_contains: %v", err)
		}
		if !strings.Contains(resp.Text(), want) {
			return fmt.Errorf("body does not contain %q", want)
		}
	}

	for key, expected := range a.Headers {
		want, err := ExpandTemplates(expected, r.cfg, r.vars)
		if err != nil {
			return fatalf("template expansion in header %q: %v", key, err)
		}
		if actual := resp.Header.Get(key); actual != want {
			return fmt.Errorf("header %q: expected %q, got %q", key, want, actual)
		}
	}

	if len(a.Body) > 0 {
		if !resp.IsJSON() {
			return fmt.Errorf("response body is not valid JSON: %s", excerpt(resp.Text()))
		}
		expanded, err := expandValue(map[string]any(a.Body), r.cfg, r.vars)
		if err != nil {
			return fatalf("template expansion in assertion: %v", err)
		}
		if err := EvaluateBodyAssertions(resp.JSON, expanded.(map[string]any)); err != nil {
			return err
		}
	}
	return nil
}

func excerpt(s string) string {
	const maxLen = 200
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}
