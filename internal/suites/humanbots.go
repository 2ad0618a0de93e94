package suites

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gemplay-qa/gemcheck/internal/gemplay"
	"github.com/gemplay-qa/gemcheck/internal/poll"
)

// driftSamples is how many list requests are timed for the drift check.
const driftSamples = 5

// maxDriftRatio is how much slower the slowest timed request may be than
// the fastest before the drift check fails.
const maxDriftRatio = 3.0

// driftSpacing separates the timed list requests.
const driftSpacing = 20 * time.Millisecond

var errDriftSample = errors.New("list request failed")

func humanBotsSuite() Suite {
	return Suite{
		Name:        "human-bots",
		Description: "human-bot management, stats and list response times",
		Tags:        []string{"admin", "bots"},
		NeedsAdmin:  true,
		Run:         runHumanBots,
	}
}

func runHumanBots(ctx context.Context, env *Env) error {
	admin, err := env.Admin(ctx)
	if err != nil {
		return err
	}
	f := env.Config.Fixtures

	bot := gemplay.HumanBot{
		Name:            gemplay.NewThrowawayUser(f.UserPrefix+"_hb", f.EmailDomain, "").Username,
		Character:       "BALANCED",
		Gender:          "male",
		MinBet:          f.BotMinBet,
		MaxBet:          f.BotMaxBet,
		BetLimit:        3,
		MinDelay:        30,
		MaxDelay:        90,
		UseCommitReveal: true,
		IsActive:        false,
	}

	env.Printer.Step("Create human-bot %s", bot.Name)
	resp, err := admin.CreateHumanBot(ctx, bot)
	if !env.CheckResponse("create human-bot", resp, err) {
		return nil
	}
	id := firstString(resp, "$.id", "$.bot_id", "$.human_bot.id")
	if id == "" {
		return Abort("create human-bot response has no id: %s", resp.Details())
	}
	defer func() {
		_, _ = admin.DeleteHumanBot(context.WithoutCancel(ctx), id)
	}()

	resp, err = admin.HumanBot(ctx, id)
	if env.CheckResponse("GET human-bot", resp, err) {
		env.Checkf("name echoes request", resp.String("$.name") == bot.Name, "got %q", resp.String("$.name"))
		env.Checkf("character echoes request", resp.String("$.character") == bot.Character, "got %q", resp.String("$.character"))
		checkFloatField(env, resp, "min_bet echoes request", "$.min_bet", bot.MinBet)
		checkFloatField(env, resp, "max_bet echoes request", "$.max_bet", bot.MaxBet)
	}

	env.Printer.Step("List human-bots")
	resp, err = admin.HumanBots(ctx, 1, 100)
	if env.CheckResponse("list human-bots", resp, err) {
		env.Check("created human-bot appears in list", listHasID(resp, id, "$.bots[*].id", "$[*].id"), resp.Details())
	}

	env.Printer.Step("Update human-bot")
	newMax := bot.MaxBet + 10
	resp, err = admin.UpdateHumanBot(ctx, id, map[string]any{"max_bet": newMax})
	if env.CheckResponse("update human-bot", resp, err) {
		resp, err = admin.HumanBot(ctx, id)
		if env.CheckResponse("GET updated human-bot", resp, err) {
			checkFloatField(env, resp, "max_bet reflects update", "$.max_bet", newMax)
		}
	}

	resp, err = admin.ToggleHumanBot(ctx, id)
	env.CheckResponse("toggle human-bot status", resp, err)

	env.Printer.Step("Stats")
	resp, err = admin.HumanBotStats(ctx)
	if env.CheckResponse("GET human-bot stats", resp, err) {
		for _, field := range []string{"$.total_bots", "$.active_bots"} {
			env.Check("stats has "+field[2:], resp.Has(field), resp.Details())
		}
	}

	env.Printer.Step("Time %d sequential list requests", driftSamples)
	durations := make([]time.Duration, 0, driftSamples)
	err = poll.Attempts(ctx, driftSpacing, driftSamples, func(ctx context.Context) (bool, error) {
		n := len(durations) + 1
		resp, err := admin.HumanBots(ctx, 1, 10)
		if !env.CheckResponse(fmt.Sprintf("list request %d/%d", n, driftSamples), resp, err) {
			return false, errDriftSample
		}
		durations = append(durations, resp.Duration)
		env.Printer.Info("request %d: %s", n, resp.Duration.Round(time.Millisecond))
		return len(durations) == driftSamples, nil
	})
	if err != nil && !errors.Is(err, errDriftSample) {
		env.Log.WithError(err).Debug("drift sampling stopped")
	}
	if len(durations) == driftSamples {
		drift := driftRatio(durations)
		env.Checkf("response time does not drift", drift <= maxDriftRatio,
			"slowest/fastest ratio %.2f (durations %v)", drift, durations)
	}

	resp, err = admin.DeleteHumanBot(ctx, id)
	if env.CheckResponse("delete human-bot", resp, err) {
		resp, err = admin.HumanBot(ctx, id)
		env.CheckStatus("deleted human-bot is gone", resp, err, http.StatusNotFound)
	}
	return nil
}

// driftFloor is the smallest duration the drift check distinguishes;
// faster samples are treated as equal.
const driftFloor = 50 * time.Millisecond

// driftRatio is the slowest sample over the fastest, each raised to
// driftFloor. It stays 1 while every sample is under the floor.
func driftRatio(d []time.Duration) float64 {
	if len(d) < 2 {
		return 1
	}
	lo, hi := d[0], d[0]
	for _, v := range d[1:] {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	return float64(max(hi, driftFloor)) / float64(max(lo, driftFloor))
}
