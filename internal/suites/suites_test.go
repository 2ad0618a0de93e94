package suites

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gemplay-qa/gemcheck/internal/config"
	"github.com/gemplay-qa/gemcheck/internal/console"
	"github.com/gemplay-qa/gemcheck/internal/recorder"
)

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		BaseURL: baseURL,
		Timeout: 5 * time.Second,
		Admin:   config.Credentials{Email: stubAdminEmail, Password: stubAdminPassword},
		Poll:    config.Poll{Interval: 10 * time.Millisecond, Timeout: 2 * time.Second},
		Commission: config.Commission{
			HumanRate:      stubCommission,
			RegularBotRate: 0,
		},
		Fixtures: config.Fixtures{
			UserPrefix:  "qa",
			EmailDomain: "test.local",
			Password:    "Test123!",
			GemType:     "Ruby",
			GemQuantity: 5,
			Balance:     1000,
			BotMinBet:   1,
			BotMaxBet:   50,
			CycleGames:  12,
		},
	}
}

func testEnv(t *testing.T, cfg *config.Config) (*Env, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewEnv(cfg, recorder.New(), console.Plain(&out), log), &out
}

func failureNames(rec *recorder.Recorder) []string {
	var names []string
	for _, f := range rec.Failures() {
		names = append(names, f.Name+": "+f.Details)
	}
	return names
}

func TestBuiltinSuitesPassAgainstStub(t *testing.T) {
	reg := Builtin()
	for _, s := range reg.All() {
		t.Run(s.Name, func(t *testing.T) {
			_, srv := newStubGemPlay(t)
			env, _ := testEnv(t, testConfig(srv.URL))

			results, err := RunAll(context.Background(), env, []Suite{s}, RunOptions{})
			require.NoError(t, err)
			require.Len(t, results, 1)
			assert.NoError(t, results[0].Err)

			sum := env.Recorder.Summary()
			assert.Positive(t, sum.Total)
			assert.Zero(t, sum.Failed, "failures: %v", failureNames(env.Recorder))
		})
	}
}

func TestRunAllRecordsAbortAndContinues(t *testing.T) {
	stub, srv := newStubGemPlay(t)
	stub.failRegister = true
	env, out := testEnv(t, testConfig(srv.URL))

	list, err := Builtin().Select([]string{"auth", "gems"})
	require.NoError(t, err)

	results, err := RunAll(context.Background(), env, list, RunOptions{})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, ErrAbort)

	var failed []string
	for _, f := range env.Recorder.Failures() {
		failed = append(failed, f.Suite+"/"+f.Name)
	}
	assert.Equal(t, []string{"auth/register throwaway user", "gems/gems setup"}, failed)
	assert.Contains(t, out.String(), "suite gems aborted")
}

func TestRunAllFailFast(t *testing.T) {
	stub, srv := newStubGemPlay(t)
	stub.failRegister = true
	env, _ := testEnv(t, testConfig(srv.URL))

	list, err := Builtin().Select([]string{"auth", "gems", "games"})
	require.NoError(t, err)

	results, err := RunAll(context.Background(), env, list, RunOptions{FailFast: true})
	require.ErrorIs(t, err, ErrFailFast)
	assert.Len(t, results, 1, "run must stop inside the first suite")
	assert.Equal(t, 1, env.Recorder.Summary().Failed)
}

func TestAdminSuiteWithoutCredentialsAborts(t *testing.T) {
	_, srv := newStubGemPlay(t)
	cfg := testConfig(srv.URL)
	cfg.Admin = config.Credentials{}
	env, _ := testEnv(t, cfg)

	bots, ok := Builtin().Lookup("bots")
	require.True(t, ok)

	results, err := RunAll(context.Background(), env, []Suite{bots}, RunOptions{})
	require.NoError(t, err)
	assert.ErrorIs(t, results[0].Err, ErrAbort)

	failures := env.Recorder.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, "bots setup", failures[0].Name)
	assert.Contains(t, failures[0].Details, "admin credentials")
}

func TestTransportFailureIsRecordedNotFatal(t *testing.T) {
	env, _ := testEnv(t, testConfig("http://127.0.0.1:1"))
	auth, _ := Builtin().Lookup("auth")

	results, err := RunAll(context.Background(), env, []Suite{auth}, RunOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)

	sum := env.Recorder.Summary()
	assert.Positive(t, sum.Failed)
	for _, f := range env.Recorder.Failures() {
		assert.True(t, strings.HasPrefix(f.Details, "request error:") || strings.HasPrefix(f.Details, "timeout:"),
			"unexpected details %q", f.Details)
	}
}

func TestSelect(t *testing.T) {
	reg := Builtin()

	all, err := reg.Select(nil)
	require.NoError(t, err)
	assert.Len(t, all, 7)

	picked, err := reg.Select([]string{"games", "auth", "games"})
	require.NoError(t, err)
	assert.Equal(t, []string{"auth", "games"}, names(picked))

	tagged, err := reg.Select([]string{"tag:admin"})
	require.NoError(t, err)
	assert.Equal(t, []string{"bots", "human-bots"}, names(tagged))

	_, err = reg.Select([]string{"nope", "tag:missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
	assert.Contains(t, err.Error(), "tag:missing")
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	reg := NewRegistry()
	s := Suite{Name: "x", Run: func(context.Context, *Env) error { return nil }}
	require.NoError(t, reg.Register(s))
	assert.Error(t, reg.Register(s))
	assert.Error(t, reg.Register(Suite{Name: "y"}))
}

func TestRunSuiteRecoversPanic(t *testing.T) {
	_, srv := newStubGemPlay(t)
	env, _ := testEnv(t, testConfig(srv.URL))
	boom := Suite{Name: "boom", Run: func(context.Context, *Env) error { panic("kaboom") }}

	results, err := RunAll(context.Background(), env, []Suite{boom}, RunOptions{})
	require.NoError(t, err)
	assert.ErrorIs(t, results[0].Err, ErrAbort)
	assert.Contains(t, results[0].Err.Error(), "kaboom")
}

func TestRunAllStopsOnCancelledContext(t *testing.T) {
	_, srv := newStubGemPlay(t)
	env, _ := testEnv(t, testConfig(srv.URL))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := RunAll(ctx, env, Builtin().All(), RunOptions{})
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, results)
	assert.Zero(t, env.Recorder.Summary().Total)
}

func TestDriftRatio(t *testing.T) {
	ms := time.Millisecond
	tests := []struct {
		name string
		d    []time.Duration
		want float64
	}{
		{"all under the floor", []time.Duration{ms, 2 * ms, 3 * ms}, 1},
		{"single sample", []time.Duration{100 * ms}, 1},
		{"steady growth", []time.Duration{100 * ms, 150 * ms, 400 * ms}, 4},
		{"slow middle", []time.Duration{20 * ms, 900 * ms, 800 * ms, 700 * ms, 20 * ms}, 18},
		{"slow first request", []time.Duration{600 * ms, 100 * ms, 100 * ms, 100 * ms, 100 * ms}, 6},
		{"jitter within ratio", []time.Duration{100 * ms, 250 * ms, 120 * ms, 90 * ms, 110 * ms}, 250.0 / 90.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, driftRatio(tt.d), 1e-9)
		})
	}
	assert.Greater(t, driftRatio(tests[3].d), maxDriftRatio)
}

func TestSuitesRecordBackendFaults(t *testing.T) {
	tests := []struct {
		name  string
		suite string
		fault func(*stubGemPlay)
		want  string
	}{
		{"wrong commission rate", "commission", func(s *stubGemPlay) { s.commissionRate = 0.05 }, "creator frozen commission is rate * bet"},
		{"commission kept after leave", "commission", func(s *stubGemPlay) { s.leaveKeepsFrozen = true }, "opponent commission is unfrozen after leaving"},
		{"bet outside range", "bots", func(s *stubGemPlay) { s.betOutOfRange = true }, "all 3 bet amounts within [1.00, 50.00]"},
		{"cycle off target", "bots", func(s *stubGemPlay) { s.skewCycles = true }, "cycle 1 outcomes match target split"},
		{"opponent kept after leave", "games", func(s *stubGemPlay) { s.leaveKeepsOpponent = true }, "opponent fields are cleared"},
		{"unread count stuck", "notifications", func(s *stubGemPlay) { s.markReadIgnored = true }, "unread count drops by one"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub, srv := newStubGemPlay(t)
			tt.fault(stub)
			env, _ := testEnv(t, testConfig(srv.URL))
			s, ok := Builtin().Lookup(tt.suite)
			require.True(t, ok)

			results, err := RunAll(context.Background(), env, []Suite{s}, RunOptions{})
			require.NoError(t, err)
			require.Len(t, results, 1)
			assert.NoError(t, results[0].Err)

			var failed []string
			for _, f := range env.Recorder.Failures() {
				failed = append(failed, f.Name)
			}
			assert.Contains(t, failed, tt.want)
		})
	}
}

func TestCheckResponseRecordsDuration(t *testing.T) {
	_, srv := newStubGemPlay(t)
	env, _ := testEnv(t, testConfig(srv.URL))
	hb, ok := Builtin().Lookup("human-bots")
	require.True(t, ok)

	_, err := RunAll(context.Background(), env, []Suite{hb}, RunOptions{})
	require.NoError(t, err)

	timed := 0
	for _, r := range env.Recorder.Records() {
		if strings.HasPrefix(r.Name, "list request ") {
			timed++
			assert.Positive(t, r.Duration, r.Name)
		}
	}
	assert.Equal(t, driftSamples, timed)
}

func TestAdminLogsInAgainNearExpiry(t *testing.T) {
	stub, srv := newStubGemPlay(t)
	stub.adminTokenTTL = time.Hour
	env, _ := testEnv(t, testConfig(srv.URL))
	ctx := context.Background()

	first, err := env.Admin(ctx)
	require.NoError(t, err)
	second, err := env.Admin(ctx)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, stub.loginCount(stubAdminEmail))

	env.now = func() time.Time { return time.Now().Add(time.Hour - 30*time.Second) }
	third, err := env.Admin(ctx)
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.NotEqual(t, first.Token(), third.Token())
	assert.Equal(t, 2, stub.loginCount(stubAdminEmail))
}

func names(list []Suite) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = s.Name
	}
	return out
}
