// Package preflight checks that the GemPlay backend is reachable and the
// configured admin account can log in before any suite runs.
package preflight

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/gemplay-qa/gemcheck/internal/client"
	"github.com/gemplay-qa/gemcheck/internal/config"
	"github.com/gemplay-qa/gemcheck/internal/console"
	"github.com/gemplay-qa/gemcheck/internal/gemplay"
	"github.com/gemplay-qa/gemcheck/internal/poll"
)

// healthInterval is the pause between health checks.
const healthInterval = 500 * time.Millisecond

// Result represents the outcome of a single preflight check.
type Result struct {
	Name    string
	Passed  bool
	Skipped bool
	Detail  string
}

// Report holds the results of a preflight run.
type Report struct {
	BaseURL string
	Results []Result
	Passed  int
	Failed  int
}

// OK reports whether every check that ran passed.
func (r *Report) OK() bool {
	return r.Failed == 0
}

func (r *Report) add(res Result) {
	r.Results = append(r.Results, res)
	if res.Passed || res.Skipped {
		r.Passed++
	} else {
		r.Failed++
	}
}

// Run polls the health endpoint until it answers 200 or cfg.Poll.Timeout
// elapses, then logs in with the admin credentials when they are configured.
// The login check is skipped when the backend never became healthy.
func Run(ctx context.Context, cfg *config.Config, c *client.Client, log logrus.FieldLogger) *Report {
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		log = l
	}
	report := &Report{BaseURL: c.BaseURL()}

	health := checkHealth(ctx, cfg, c)
	report.add(health)
	log.WithFields(logrus.Fields{"check": health.Name, "passed": health.Passed}).Debug("preflight")

	if !health.Passed {
		report.add(Result{Name: "Admin login", Skipped: true, Detail: "skipped: backend not healthy"})
		return report
	}

	login := checkAdminLogin(ctx, cfg, c)
	report.add(login)
	log.WithFields(logrus.Fields{"check": login.Name, "passed": login.Passed}).Debug("preflight")
	return report
}

func checkHealth(ctx context.Context, cfg *config.Config, c *client.Client) Result {
	timeout := cfg.Poll.Timeout
	name := fmt.Sprintf("GET %s returns 200 within %s", cfg.HealthPath, timeout)

	var last string
	err := poll.Until(ctx, healthInterval, timeout, func(ctx context.Context) (bool, error) {
		resp, err := c.Do(ctx, client.Request{Method: http.MethodGet, Path: cfg.HealthPath, NoAuth: true})
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return false, err
			}
			last = client.Describe(err)
			return false, nil
		}
		if !resp.OK {
			last = fmt.Sprintf("status %d", resp.Status)
			return false, nil
		}
		last = fmt.Sprintf("status %d in %s", resp.Status, resp.Duration.Round(time.Millisecond))
		return true, nil
	})

	switch {
	case err == nil:
		return Result{Name: name, Passed: true, Detail: last}
	case errors.Is(err, poll.ErrTimeout):
		return Result{Name: name, Detail: "last attempt: " + last}
	default:
		return Result{Name: name, Detail: err.Error()}
	}
}

func checkAdminLogin(ctx context.Context, cfg *config.Config, c *client.Client) Result {
	name := "Admin login"
	if !cfg.HasAdmin() {
		return Result{Name: name, Skipped: true, Detail: "skipped: admin credentials not configured, admin suites will abort"}
	}

	admin, session, err := gemplay.New(c).Authenticate(ctx, cfg.Admin.Email, cfg.Admin.Password)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}

	resp, err := admin.Me(ctx)
	if err != nil {
		return Result{Name: name, Detail: "GET /auth/me: " + client.Describe(err)}
	}
	if !resp.OK {
		return Result{Name: name, Detail: fmt.Sprintf("GET /auth/me: status %d", resp.Status)}
	}

	detail := fmt.Sprintf("logged in as %s", cfg.Admin.Email)
	if info, err := client.InspectToken(session.Token); err == nil && !info.ExpiresAt.IsZero() {
		detail += ", token expires " + humanize.Time(info.ExpiresAt)
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// Print writes one line per check.
func (r *Report) Print(p *console.Printer) {
	p.Header("Preflight: " + r.BaseURL)
	for _, res := range r.Results {
		switch {
		case res.Skipped:
			p.Warning("%s: %s", res.Name, res.Detail)
		case res.Passed:
			p.Success("%s: %s", res.Name, res.Detail)
		default:
			p.Error("%s: %s", res.Name, res.Detail)
		}
	}
	p.Println()
	p.Println(fmt.Sprintf("%d passed, %d failed", r.Passed, r.Failed))
}
