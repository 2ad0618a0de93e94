package suites

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gemplay-qa/gemcheck/internal/client"
	"github.com/gemplay-qa/gemcheck/internal/expect"
	"github.com/gemplay-qa/gemcheck/internal/gemplay"
	"github.com/gemplay-qa/gemcheck/internal/jsonpath"
)

// Target split for the regular bot created by the bots suite.
const (
	botWinsPct   = 40
	botLossesPct = 40
	botDrawsPct  = 20
)

func botsSuite() Suite {
	return Suite{
		Name:        "bots",
		Description: "regular bot CRUD, bet range and cycle totals",
		Tags:        []string{"admin", "bots"},
		NeedsAdmin:  true,
		Run:         runBots,
	}
}

func runBots(ctx context.Context, env *Env) error {
	admin, err := env.Admin(ctx)
	if err != nil {
		return err
	}
	f := env.Config.Fixtures

	bot := gemplay.RegularBot{
		Name:               gemplay.NewThrowawayUser(f.UserPrefix+"_bot", f.EmailDomain, "").Username,
		MinBetAmount:       f.BotMinBet,
		MaxBetAmount:       f.BotMaxBet,
		CycleGames:         f.CycleGames,
		WinsPercentage:     botWinsPct,
		LossesPercentage:   botLossesPct,
		DrawsPercentage:    botDrawsPct,
		PauseBetweenCycles: 5,
		CreationMode:       "queue-based",
	}
	split, err := expect.Distribution(botWinsPct, botLossesPct, botDrawsPct, f.CycleGames)
	if err != nil {
		return Abort("bot fixture: %v", err)
	}

	env.Printer.Step("Create regular bot %s", bot.Name)
	resp, err := admin.CreateRegularBot(ctx, bot)
	if !env.CheckResponse("create regular bot", resp, err) {
		return nil
	}
	botID := firstString(resp, "$.bot_id", "$.id", "$.bot.id")
	if botID == "" {
		return Abort("create bot response has no id: %s", resp.Details())
	}
	defer func() {
		_, _ = admin.DeleteBot(context.WithoutCancel(ctx), botID)
	}()

	env.Printer.Step("Read bot back")
	resp, err = admin.Bot(ctx, botID)
	if env.CheckResponse("GET bot", resp, err) {
		checkFloatField(env, resp, "min_bet_amount echoes request", "$.min_bet_amount", bot.MinBetAmount)
		checkFloatField(env, resp, "max_bet_amount echoes request", "$.max_bet_amount", bot.MaxBetAmount)
		checkFloatField(env, resp, "cycle_games echoes request", "$.cycle_games", float64(bot.CycleGames))

		if total, ok := resp.Float("$.cycle_total_amount"); ok {
			want := expect.CycleSum(bot.MinBetAmount, bot.MaxBetAmount, bot.CycleGames)
			env.Checkf("cycle total is (min+max)/2*cycle_games", expect.Approx(total, want.InexactFloat64(), 1),
				"expected %s, got %.2f", want.StringFixed(2), total)
		} else {
			env.Printer.Warning("bot response has no cycle_total_amount")
		}
	}

	resp, err = admin.Bots(ctx, 1, 100)
	if env.CheckResponse("list bots", resp, err) {
		env.Check("created bot appears in list", listHasID(resp, botID, "$.bots[*].id", "$[*].id"), resp.Details())
	}

	env.Printer.Step("Update bot")
	newPause := bot.PauseBetweenCycles * 2
	resp, err = admin.UpdateBot(ctx, botID, map[string]any{"pause_between_cycles": newPause})
	if env.CheckResponse("update bot", resp, err) {
		resp, err = admin.Bot(ctx, botID)
		if env.CheckResponse("GET updated bot", resp, err) {
			checkFloatField(env, resp, "pause_between_cycles reflects update", "$.pause_between_cycles", float64(newPause))
		}
	}

	env.Printer.Step("Wait for the bot to place bets")
	bets, ok := env.WaitFor(ctx, "bot places active bets",
		func(ctx context.Context) (*client.Response, error) { return admin.BotActiveBets(ctx, botID) },
		func(r *client.Response) bool { return len(betAmounts(r)) > 0 })
	if ok {
		amounts := betAmounts(bets)
		var outside []float64
		for _, a := range amounts {
			if !expect.InRange(a, bot.MinBetAmount, bot.MaxBetAmount) {
				outside = append(outside, a)
			}
		}
		env.Checkf(fmt.Sprintf("all %d bet amounts within [%.2f, %.2f]", len(amounts), bot.MinBetAmount, bot.MaxBetAmount),
			len(outside) == 0, "out of range: %v", outside)
	}

	env.Printer.Step("Cycle history")
	env.Printer.Info("cycle of %d games targets %d wins / %d losses / %d draws",
		f.CycleGames, split.Wins, split.Losses, split.Draws)
	resp, err = admin.BotCycleHistory(ctx, botID)
	if env.CheckResponse("GET cycle history", resp, err) {
		checkCycleOutcomes(env, resp, split)
	}

	env.Printer.Step("Toggle and delete")
	wasActive, _ := getBool(ctx, admin.Bot, botID, "$.is_active")
	resp, err = admin.ToggleBot(ctx, botID)
	if env.CheckResponse("toggle bot status", resp, err) {
		nowActive, ok := getBool(ctx, admin.Bot, botID, "$.is_active")
		env.Checkf("toggle flips is_active", ok && nowActive != wasActive, "before %v, after %v", wasActive, nowActive)
	}

	resp, err = admin.DeleteBot(ctx, botID)
	if env.CheckResponse("delete bot", resp, err) {
		resp, err = admin.Bot(ctx, botID)
		env.CheckStatus("deleted bot is gone", resp, err, http.StatusNotFound)
	}
	return nil
}

// betAmounts reads bet amounts from an active-bets response, which is
// either a bare list or wrapped in "bets".
func betAmounts(r *client.Response) []float64 {
	vals := r.All("$.bets[*].bet_amount")
	if len(vals) == 0 {
		vals = r.All("$[*].bet_amount")
	}
	out := make([]float64, 0, len(vals))
	for _, v := range vals {
		if f, ok := v.(float64); ok {
			out = append(out, f)
		}
	}
	return out
}

// checkCycleOutcomes compares every completed cycle in a cycle-history
// response with the target split. A bot that has not finished a cycle yet
// only produces a warning.
func checkCycleOutcomes(env *Env, r *client.Response, want expect.Outcomes) {
	cycles := r.All("$.cycles[*]")
	if len(cycles) == 0 {
		cycles = r.List()
	}
	checked := 0
	for i, c := range cycles {
		m, ok := c.(map[string]any)
		if !ok {
			continue
		}
		got, ok := cycleOutcomes(m)
		if !ok || got.Total() != want.Total() {
			continue
		}
		checked++
		env.Checkf(fmt.Sprintf("cycle %d outcomes match target split", i+1), got == want,
			"expected %d/%d/%d wins/losses/draws, got %d/%d/%d",
			want.Wins, want.Losses, want.Draws, got.Wins, got.Losses, got.Draws)
	}
	if checked == 0 {
		env.Printer.Warning("no completed cycle yet; outcome split not checked")
	}
}

func cycleOutcomes(m map[string]any) (expect.Outcomes, bool) {
	count := func(key string) (int, bool) {
		for _, k := range []string{key, key + "_count"} {
			if n, ok := m[k].(float64); ok {
				return int(n), true
			}
		}
		return 0, false
	}
	w, okW := count("wins")
	l, okL := count("losses")
	d, okD := count("draws")
	return expect.Outcomes{Wins: w, Losses: l, Draws: d}, okW && okL && okD
}

// listHasID reports whether any of the JSONPath lists in r holds id.
func listHasID(r *client.Response, id string, paths ...string) bool {
	for _, p := range paths {
		for _, v := range r.All(p) {
			if jsonpath.Format(v) == id {
				return true
			}
		}
	}
	return false
}

func firstString(r *client.Response, paths ...string) string {
	for _, p := range paths {
		if s := r.String(p); s != "" {
			return s
		}
	}
	return ""
}

func checkFloatField(env *Env, r *client.Response, name, path string, want float64) {
	got, ok := r.Float(path)
	env.Checkf(name, ok && expect.Money(got).Equal(expect.Money(want)), "%s: expected %.2f, got %v", path, want, r.String(path))
}

func getBool(ctx context.Context, get func(context.Context, string) (*client.Response, error), id, path string) (bool, bool) {
	resp, err := get(ctx, id)
	if err != nil || !resp.OK {
		return false, false
	}
	return resp.Bool(path)
}
