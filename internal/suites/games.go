package suites

import (
	"context"
	"net/http"

	"github.com/gemplay-qa/gemcheck/internal/client"
	"github.com/gemplay-qa/gemcheck/internal/gemplay"
)

func gamesSuite() Suite {
	return Suite{
		Name:        "games",
		Description: "game create, join and leave state transitions",
		Tags:        []string{"games"},
		Run:         runGames,
	}
}

// player is a funded throwaway user holding gems.
type player struct {
	api     *gemplay.API
	session *gemplay.Session
}

func newPlayer(ctx context.Context, env *Env) (*player, error) {
	api, s, err := env.NewUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := env.BuyGems(ctx, api, env.Config.Fixtures.GemQuantity*2); err != nil {
		return nil, err
	}
	return &player{api: api, session: s}, nil
}

// openGame creates a WAITING game as p and returns its id and bet amount.
func openGame(ctx context.Context, env *Env, p *player) (string, float64, error) {
	f := env.Config.Fixtures
	resp, err := p.api.CreateGame(ctx, gemplay.CreateGameRequest{
		Move:    gemplay.MoveRock,
		BetGems: gemplay.Gems(f.GemType, f.GemQuantity),
	})
	if err != nil {
		return "", 0, Abort("creating game: %s", client.Describe(err))
	}
	if !resp.OK {
		return "", 0, Abort("creating game: %s", resp.Details())
	}
	id := resp.String("$.game_id")
	if id == "" {
		return "", 0, Abort("create game response has no game_id: %s", resp.Details())
	}
	bet, _ := resp.Float("$.bet_amount")
	return id, bet, nil
}

func runGames(ctx context.Context, env *Env) error {
	creator, err := newPlayer(ctx, env)
	if err != nil {
		return err
	}
	opponent, err := newPlayer(ctx, env)
	if err != nil {
		return err
	}
	f := env.Config.Fixtures
	join := gemplay.JoinGameRequest{Move: gemplay.MovePaper, Gems: gemplay.Gems(f.GemType, f.GemQuantity)}

	env.Printer.Step("Create game")
	gameID, _, err := openGame(ctx, env, creator)
	if err != nil {
		return err
	}
	defer func() {
		if resp, err := creator.api.CancelGame(context.WithoutCancel(ctx), gameID); err == nil && !resp.OK {
			env.Log.WithField("game", gameID).Debugf("cleanup cancel: %s", resp.Details())
		}
	}()

	resp, err := creator.api.Game(ctx, gameID)
	if env.CheckResponse("GET created game", resp, err) {
		env.Checkf("new game is WAITING", resp.String("$.status") == gemplay.StatusWaiting,
			"status %q", resp.String("$.status"))
	}

	resp, err = creator.api.MyGames(ctx)
	if env.CheckResponse("GET my games", resp, err) {
		env.Check("created game is listed in my games",
			listHasID(resp, gameID, "$.games[*].id", "$.games[*].game_id", "$[*].id", "$[*].game_id"), resp.Details())
	}

	env.Printer.Step("Creator joins own game")
	resp, err = creator.api.JoinGame(ctx, gameID, join)
	if err == nil {
		env.Checkf("creator cannot join own game", resp.Status >= http.StatusBadRequest,
			"expected rejection, got %s", resp.Details())
	} else {
		env.CheckResponse("creator cannot join own game", resp, err)
	}

	env.Printer.Step("Opponent joins")
	resp, err = opponent.api.JoinGame(ctx, gameID, join)
	if !env.CheckResponse("opponent joins WAITING game", resp, err) {
		return nil
	}

	resp, err = creator.api.Game(ctx, gameID)
	if env.CheckResponse("GET joined game", resp, err) {
		status := resp.String("$.status")
		env.Checkf("joined game is ACTIVE", status == gemplay.StatusActive, "status %q", status)
		env.Check("ACTIVE game has a deadline", resp.Has("$.active_deadline"), resp.Details())
		if opponent.session.UserID != "" {
			env.Checkf("opponent_id is the joining user", resp.String("$.opponent_id") == opponent.session.UserID,
				"expected %s, got %q", opponent.session.UserID, resp.String("$.opponent_id"))
		}
	}

	env.Printer.Step("Opponent leaves ACTIVE game")
	resp, err = opponent.api.LeaveGame(ctx, gameID)
	if !env.CheckResponse("opponent leaves ACTIVE game", resp, err) {
		return nil
	}

	last, ok := env.WaitFor(ctx, "game returns to WAITING after opponent leaves",
		func(ctx context.Context) (*client.Response, error) { return creator.api.Game(ctx, gameID) },
		func(r *client.Response) bool { return r.String("$.status") == gemplay.StatusWaiting })
	if ok {
		env.Check("opponent fields are cleared", !last.Has("$.opponent_id"), last.Details())
		env.Check("deadline is cleared", !last.Has("$.active_deadline"), last.Details())
	}
	return nil
}
