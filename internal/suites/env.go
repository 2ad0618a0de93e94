package suites

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gemplay-qa/gemcheck/internal/client"
	"github.com/gemplay-qa/gemcheck/internal/config"
	"github.com/gemplay-qa/gemcheck/internal/console"
	"github.com/gemplay-qa/gemcheck/internal/gemplay"
	"github.com/gemplay-qa/gemcheck/internal/poll"
	"github.com/gemplay-qa/gemcheck/internal/recorder"
)

// ErrAbort marks a setup failure that ends the current suite. Assertion
// failures are recorded instead and never abort.
var ErrAbort = errors.New("suite aborted")

// Abort returns an ErrAbort-wrapped error.
func Abort(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrAbort, fmt.Sprintf(format, args...))
}

// Env is everything a suite needs to talk to GemPlay and report results.
type Env struct {
	Config   *config.Config
	API      *gemplay.API // anonymous
	Recorder *recorder.Recorder
	Printer  *console.Printer
	Log      logrus.FieldLogger

	admin        *gemplay.API
	adminExpires *client.TokenInfo // nil when the token is not a JWT
	now          func() time.Time
}

// adminRefreshMargin is how close to expiry the cached admin token may get
// before Admin logs in again.
const adminRefreshMargin = time.Minute

// NewEnv builds an Env whose API targets cfg.BaseURL.
func NewEnv(cfg *config.Config, rec *recorder.Recorder, p *console.Printer, log logrus.FieldLogger) *Env {
	c := client.New(cfg.BaseURL, client.WithTimeout(cfg.Timeout), client.WithLogger(log))
	return &Env{
		Config:   cfg,
		API:      gemplay.New(c),
		Recorder: rec,
		Printer:  p,
		Log:      log,
		now:      time.Now,
	}
}

// Check records a named outcome and prints it.
func (e *Env) Check(name string, passed bool, details string) bool {
	return e.check(recorder.Record{Name: name, Passed: passed, Details: details})
}

// Checkf is Check with formatted details.
func (e *Env) Checkf(name string, passed bool, format string, args ...any) bool {
	return e.Check(name, passed, fmt.Sprintf(format, args...))
}

func (e *Env) check(rec recorder.Record) bool {
	rec = e.Recorder.Add(rec)
	if rec.Passed {
		e.Printer.Success("%s", rec.Name)
	} else {
		e.Printer.Error("%s", rec.Name)
		if rec.Details != "" {
			e.Printer.Info("%s", rec.Details)
		}
	}
	return rec.Passed
}

// CheckResponse records whether a call produced the expected status, along
// with how long it took. A transport error is a failure, never a crash.
// Calls cut off by a cancelled run are not recorded.
func (e *Env) CheckResponse(name string, resp *client.Response, err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if err != nil {
		return e.Check(name, false, client.Describe(err))
	}
	rec := recorder.Record{Name: name, Passed: resp.OK, Duration: resp.Duration}
	if !resp.OK {
		rec.Details = resp.Details()
	}
	return e.check(rec)
}

// CheckStatus records whether a call returned exactly status.
func (e *Env) CheckStatus(name string, resp *client.Response, err error, status int) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if err != nil {
		return e.Check(name, false, client.Describe(err))
	}
	rec := recorder.Record{Name: name, Passed: resp.Status == status, Duration: resp.Duration}
	if !rec.Passed {
		rec.Details = fmt.Sprintf("status %d (expected %d): %s", resp.Status, status, excerpt(resp))
	}
	return e.check(rec)
}

// Admin returns an API logged in as the configured admin. The session is
// reused until its token is about to expire.
func (e *Env) Admin(ctx context.Context) (*gemplay.API, error) {
	if e.admin != nil && !e.adminExpiring() {
		return e.admin, nil
	}
	if !e.Config.HasAdmin() {
		return nil, Abort("admin credentials are not configured")
	}
	if e.admin != nil {
		e.Log.Debug("admin token about to expire, logging in again")
	}
	api, s, err := e.API.Authenticate(ctx, e.Config.Admin.Email, e.Config.Admin.Password)
	if err != nil {
		return nil, Abort("admin login: %s", client.Describe(err))
	}
	e.admin = api
	e.adminExpires = e.inspectToken(s.Token)
	return api, nil
}

func (e *Env) adminExpiring() bool {
	return e.adminExpires != nil && e.adminExpires.ExpiresWithin(e.now(), adminRefreshMargin)
}

// NewUser registers, verifies and logs in a throwaway user, then tops up
// its balance.
func (e *Env) NewUser(ctx context.Context) (*gemplay.API, *gemplay.Session, error) {
	f := e.Config.Fixtures
	u := gemplay.NewThrowawayUser(f.UserPrefix, f.EmailDomain, f.Password)
	api, s, err := e.API.RegisterAndLogin(ctx, u)
	if err != nil {
		return nil, nil, Abort("creating user %s: %s", u.Email, client.Describe(err))
	}
	if f.Balance > 0 {
		resp, err := api.AddBalance(ctx, f.Balance)
		if err != nil {
			return nil, nil, Abort("funding %s: %s", u.Email, client.Describe(err))
		}
		if !resp.OK {
			e.Log.WithField("user", u.Email).Warnf("add-balance refused: %s", resp.Details())
		}
	}
	e.Log.WithFields(logrus.Fields{"user": u.Email, "id": s.UserID}).Debug("created throwaway user")
	return api, s, nil
}

// BuyGems buys qty gems of the fixture type for api, aborting on failure.
func (e *Env) BuyGems(ctx context.Context, api *gemplay.API, qty int) error {
	resp, err := api.BuyGems(ctx, e.Config.Fixtures.GemType, qty)
	if err != nil {
		return Abort("buying gems: %s", client.Describe(err))
	}
	if !resp.OK {
		return Abort("buying gems: %s", resp.Details())
	}
	return nil
}

// Poll waits for fn using the configured interval and timeout.
func (e *Env) Poll(ctx context.Context, fn poll.Func) error {
	return poll.Until(ctx, e.Config.Poll.Interval, e.Config.Poll.Timeout, fn)
}

// WaitFor polls fetch until ready holds for its response and records the
// outcome under name. It returns the last response seen.
func (e *Env) WaitFor(ctx context.Context, name string, fetch func(context.Context) (*client.Response, error), ready func(*client.Response) bool) (*client.Response, bool) {
	var last *client.Response
	err := e.Poll(ctx, func(ctx context.Context) (bool, error) {
		r, err := fetch(ctx)
		if err != nil {
			return false, err
		}
		last = r
		return r.OK && ready(r), nil
	})
	if errors.Is(err, context.Canceled) {
		return last, false
	}

	details := ""
	switch {
	case err == nil:
	case last != nil:
		details = fmt.Sprintf("%s; last %s", client.Describe(err), last.Details())
	default:
		details = client.Describe(err)
	}
	return last, e.Check(name, err == nil, details)
}

func (e *Env) inspectToken(token string) *client.TokenInfo {
	info, err := client.InspectToken(token)
	if err != nil {
		e.Log.WithError(err).Debug("admin token is not a JWT")
		return nil
	}
	fields := logrus.Fields{"subject": info.Subject}
	if !info.ExpiresAt.IsZero() {
		fields["expires_in"] = info.ExpiresAt.Sub(e.now()).Round(time.Second)
	}
	e.Log.WithFields(fields).Debug("admin logged in")
	return info
}

func excerpt(resp *client.Response) string {
	const maxLen = 200
	s := resp.Text()
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}
