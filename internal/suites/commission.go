package suites

import (
	"context"

	"github.com/gemplay-qa/gemcheck/internal/expect"
	"github.com/gemplay-qa/gemcheck/internal/gemplay"
)

func commissionSuite() Suite {
	return Suite{
		Name:        "commission",
		Description: "frozen commission on human games, none against regular bots",
		Tags:        []string{"economy", "games"},
		Run:         runCommission,
	}
}

func runCommission(ctx context.Context, env *Env) error {
	rate := env.Config.Commission.HumanRate
	creator, err := newPlayer(ctx, env)
	if err != nil {
		return err
	}
	opponent, err := newPlayer(ctx, env)
	if err != nil {
		return err
	}

	env.Printer.Step("Creator freezes commission on create")
	before, ok := readBalance(ctx, creator.api)
	if !ok {
		return Abort("reading creator balance")
	}
	gameID, bet, err := openGame(ctx, env, creator)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = creator.api.CancelGame(context.WithoutCancel(ctx), gameID)
	}()
	if bet <= 0 {
		return Abort("create game response has no bet_amount")
	}
	want := expect.Commission(bet, rate)
	env.Printer.Info("bet %.2f, expected commission %s at %.0f%%", bet, want.StringFixed(2), rate*100)

	if after, ok := readBalance(ctx, creator.api); ok {
		frozen := expect.Delta(before.Frozen, after.Frozen)
		env.Checkf("creator frozen commission is rate * bet", frozen.Equal(want),
			"frozen delta %s, expected %s", frozen.StringFixed(2), want.StringFixed(2))
	}

	env.Printer.Step("Opponent freezes commission on join")
	oppBefore, ok := readBalance(ctx, opponent.api)
	if !ok {
		return Abort("reading opponent balance")
	}
	f := env.Config.Fixtures
	resp, err := opponent.api.JoinGame(ctx, gameID, gemplay.JoinGameRequest{
		Move: gemplay.MoveScissors,
		Gems: gemplay.Gems(f.GemType, f.GemQuantity),
	})
	if !env.CheckResponse("opponent joins game", resp, err) {
		return nil
	}
	oppJoined, ok := readBalance(ctx, opponent.api)
	if ok {
		frozen := expect.Delta(oppBefore.Frozen, oppJoined.Frozen)
		env.Checkf("opponent frozen commission is rate * bet", frozen.Equal(want),
			"frozen delta %s, expected %s", frozen.StringFixed(2), want.StringFixed(2))
	}

	env.Printer.Step("Opponent leaves and gets commission back")
	resp, err = opponent.api.LeaveGame(ctx, gameID)
	if env.CheckResponse("opponent leaves ACTIVE game", resp, err) {
		if oppLeft, ok := readBalance(ctx, opponent.api); ok {
			env.Checkf("opponent commission is unfrozen after leaving", expect.Money(oppLeft.Frozen).Equal(expect.Money(oppBefore.Frozen)),
				"frozen before join %.2f, after leave %.2f", oppBefore.Frozen, oppLeft.Frozen)
		}
	}

	env.Printer.Step("Join a regular bot game")
	checkRegularBotCommission(ctx, env, opponent)

	if env.Config.HasAdmin() {
		admin, err := env.Admin(ctx)
		if err != nil {
			return err
		}
		resp, err := admin.CommissionSummary(ctx)
		env.CheckResponse("GET commission summary", resp, err)
		resp, err = admin.ProfitStats(ctx)
		env.CheckResponse("GET profit stats", resp, err)
	}
	return nil
}

func checkRegularBotCommission(ctx context.Context, env *Env, p *player) {
	list, err := p.api.AvailableGames(ctx)
	if !env.CheckResponse("list available games", list, err) {
		return
	}
	g, ok := gemplay.FindGame(list, func(g map[string]any) bool {
		return g["bot_type"] == gemplay.BotRegular || g["creator_type"] == "bot"
	})
	if !ok {
		env.Printer.Warning("no regular bot game available; skipping regular bot commission check")
		return
	}
	id := gemplay.GameID(g)
	bet, _ := g["bet_amount"].(float64)

	before, ok := readBalance(ctx, p.api)
	if !ok {
		env.Printer.Warning("balance unavailable; skipping regular bot commission check")
		return
	}
	resp, err := p.api.JoinGame(ctx, id, gemplay.JoinGameRequest{Move: gemplay.MoveRock, Gems: betGems(g, env)})
	if !env.CheckResponse("join regular bot game", resp, err) {
		return
	}
	after, ok := readBalance(ctx, p.api)
	if !ok {
		return
	}
	rate := env.Config.Commission.RegularBotRate
	frozen := expect.Delta(before.Frozen, after.Frozen)
	env.Checkf("regular bot game freezes no commission", expect.CommissionMatches(frozen.InexactFloat64(), bet, rate),
		"frozen delta %s, expected %s on bet %.2f", frozen.StringFixed(2), expect.Commission(bet, rate).StringFixed(2), bet)
}

// betGems mirrors the gems a listed game was created with, falling back to
// the fixture bet.
func betGems(g map[string]any, env *Env) map[string]int {
	if raw, ok := g["bet_gems"].(map[string]any); ok && len(raw) > 0 {
		out := make(map[string]int, len(raw))
		for k, v := range raw {
			if n, ok := v.(float64); ok {
				out[k] = int(n)
			}
		}
		return out
	}
	f := env.Config.Fixtures
	return gemplay.Gems(f.GemType, f.GemQuantity)
}
