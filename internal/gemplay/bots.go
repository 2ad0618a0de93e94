package gemplay

import (
	"context"
	"strconv"

	"github.com/gemplay-qa/gemcheck/internal/client"
)

// Bots calls GET /admin/bots.
func (a *API) Bots(ctx context.Context, page, limit int) (*client.Response, error) {
	return a.get(ctx, "/admin/bots", pageQuery(page, limit))
}

// CreateRegularBot calls POST /admin/bots/create-regular.
func (a *API) CreateRegularBot(ctx context.Context, bot RegularBot) (*client.Response, error) {
	return a.post(ctx, "/admin/bots/create-regular", bot)
}

// Bot calls GET /admin/bots/{id}.
func (a *API) Bot(ctx context.Context, id string) (*client.Response, error) {
	return a.get(ctx, pathf("/admin/bots/%s", id), nil)
}

// UpdateBot calls PUT /admin/bots/{id}.
func (a *API) UpdateBot(ctx context.Context, id string, fields map[string]any) (*client.Response, error) {
	return a.put(ctx, pathf("/admin/bots/%s", id), fields)
}

// ToggleBot calls POST /admin/bots/{id}/toggle-status.
func (a *API) ToggleBot(ctx context.Context, id string) (*client.Response, error) {
	return a.post(ctx, pathf("/admin/bots/%s/toggle-status", id), nil)
}

// DeleteBot calls DELETE /admin/bots/{id}.
func (a *API) DeleteBot(ctx context.Context, id string) (*client.Response, error) {
	return a.delete(ctx, pathf("/admin/bots/%s", id))
}

// BotActiveBets calls GET /admin/bots/{id}/active-bets.
func (a *API) BotActiveBets(ctx context.Context, id string) (*client.Response, error) {
	return a.get(ctx, pathf("/admin/bots/%s/active-bets", id), nil)
}

// BotCycleHistory calls GET /admin/bots/{id}/cycle-history.
func (a *API) BotCycleHistory(ctx context.Context, id string) (*client.Response, error) {
	return a.get(ctx, pathf("/admin/bots/%s/cycle-history", id), nil)
}

// HumanBots calls GET /admin/human-bots.
func (a *API) HumanBots(ctx context.Context, page, limit int) (*client.Response, error) {
	return a.get(ctx, "/admin/human-bots", pageQuery(page, limit))
}

// CreateHumanBot calls POST /admin/human-bots.
func (a *API) CreateHumanBot(ctx context.Context, bot HumanBot) (*client.Response, error) {
	return a.post(ctx, "/admin/human-bots", bot)
}

// HumanBot calls GET /admin/human-bots/{id}.
func (a *API) HumanBot(ctx context.Context, id string) (*client.Response, error) {
	return a.get(ctx, pathf("/admin/human-bots/%s", id), nil)
}

// UpdateHumanBot calls PUT /admin/human-bots/{id}.
func (a *API) UpdateHumanBot(ctx context.Context, id string, fields map[string]any) (*client.Response, error) {
	return a.put(ctx, pathf("/admin/human-bots/%s", id), fields)
}

// ToggleHumanBot calls POST /admin/human-bots/{id}/toggle-status.
func (a *API) ToggleHumanBot(ctx context.Context, id string) (*client.Response, error) {
	return a.post(ctx, pathf("/admin/human-bots/%s/toggle-status", id), nil)
}

// DeleteHumanBot calls DELETE /admin/human-bots/{id}.
func (a *API) DeleteHumanBot(ctx context.Context, id string) (*client.Response, error) {
	return a.delete(ctx, pathf("/admin/human-bots/%s", id))
}

// HumanBotStats calls GET /admin/human-bots/stats.
func (a *API) HumanBotStats(ctx context.Context) (*client.Response, error) {
	return a.get(ctx, "/admin/human-bots/stats", nil)
}

// ProfitStats calls GET /admin/profit/stats.
func (a *API) ProfitStats(ctx context.Context) (*client.Response, error) {
	return a.get(ctx, "/admin/profit/stats", nil)
}

// CommissionSummary calls GET /admin/profit/commission-summary.
func (a *API) CommissionSummary(ctx context.Context) (*client.Response, error) {
	return a.get(ctx, "/admin/profit/commission-summary", nil)
}

func pageQuery(page, limit int) map[string]string {
	q := map[string]string{}
	if page > 0 {
		q["page"] = strconv.Itoa(page)
	}
	if limit > 0 {
		q["limit"] = strconv.Itoa(limit)
	}
	return q
}
