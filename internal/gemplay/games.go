package gemplay

import (
	"context"

	"github.com/gemplay-qa/gemcheck/internal/client"
	"github.com/gemplay-qa/gemcheck/internal/jsonpath"
)

// CreateGame calls POST /games/create.
func (a *API) CreateGame(ctx context.Context, req CreateGameRequest) (*client.Response, error) {
	return a.post(ctx, "/games/create", req)
}

// JoinGame calls POST /games/{id}/join.
func (a *API) JoinGame(ctx context.Context, gameID string, req JoinGameRequest) (*client.Response, error) {
	return a.post(ctx, pathf("/games/%s/join", gameID), req)
}

// LeaveGame calls POST /games/{id}/leave.
func (a *API) LeaveGame(ctx context.Context, gameID string) (*client.Response, error) {
	return a.post(ctx, pathf("/games/%s/leave", gameID), nil)
}

// CancelGame calls DELETE /games/{id}/cancel.
func (a *API) CancelGame(ctx context.Context, gameID string) (*client.Response, error) {
	return a.delete(ctx, pathf("/games/%s/cancel", gameID))
}

// Game calls GET /games/{id}.
func (a *API) Game(ctx context.Context, gameID string) (*client.Response, error) {
	return a.get(ctx, pathf("/games/%s", gameID), nil)
}

// AvailableGames calls GET /games/available.
func (a *API) AvailableGames(ctx context.Context) (*client.Response, error) {
	return a.get(ctx, "/games/available", nil)
}

// MyGames calls GET /games/my-games.
func (a *API) MyGames(ctx context.Context) (*client.Response, error) {
	return a.get(ctx, "/games/my-games", nil)
}

// FindGame returns the first game in a list response for which match
// holds.
func FindGame(list *client.Response, match func(map[string]any) bool) (map[string]any, bool) {
	items := list.List()
	if items == nil {
		if games, ok := list.Path("$.games"); ok {
			items, _ = games.([]any)
		}
	}
	for _, item := range items {
		g, ok := item.(map[string]any)
		if ok && match(g) {
			return g, true
		}
	}
	return nil, false
}

// GameID reads the id of a game object, which some endpoints name game_id.
func GameID(g map[string]any) string {
	for _, k := range []string{"game_id", "id"} {
		if s := jsonpath.Format(g[k]); s != "" {
			return s
		}
	}
	return ""
}
