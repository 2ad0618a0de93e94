package gemplay

import (
	"context"
	"strconv"

	"github.com/gemplay-qa/gemcheck/internal/client"
)

// BuyGems calls POST /gems/buy?gem_type=T&quantity=N.
func (a *API) BuyGems(ctx context.Context, gemType string, qty int) (*client.Response, error) {
	return a.postQuery(ctx, "/gems/buy", map[string]string{
		"gem_type": gemType,
		"quantity": strconv.Itoa(qty),
	})
}

// SellGems calls POST /gems/sell?gem_type=T&quantity=N.
func (a *API) SellGems(ctx context.Context, gemType string, qty int) (*client.Response, error) {
	return a.postQuery(ctx, "/gems/sell", map[string]string{
		"gem_type": gemType,
		"quantity": strconv.Itoa(qty),
	})
}

// Inventory calls GET /gems/inventory. The body is a list of
// {type, quantity, frozen_quantity} entries.
func (a *API) Inventory(ctx context.Context) (*client.Response, error) {
	return a.get(ctx, "/gems/inventory", nil)
}

// Balance calls GET /economy/balance.
func (a *API) Balance(ctx context.Context) (*client.Response, error) {
	return a.get(ctx, "/economy/balance", nil)
}

// GemQuantity extracts the quantity of gemType from an inventory response.
func GemQuantity(inv *client.Response, gemType string) (qty, frozen float64, ok bool) {
	for _, item := range inv.List() {
		m, isMap := item.(map[string]any)
		if !isMap || m["type"] != gemType {
			continue
		}
		q, _ := m["quantity"].(float64)
		f, _ := m["frozen_quantity"].(float64)
		return q, f, true
	}
	return 0, 0, false
}

// Balances is the subset of GET /economy/balance the suites compare.
type Balances struct {
	Virtual float64
	Frozen  float64
}

// ReadBalances pulls virtual and frozen balances out of a balance response.
func ReadBalances(resp *client.Response) (Balances, bool) {
	v, okV := resp.Float("$.virtual_balance")
	f, okF := resp.Float("$.frozen_balance")
	return Balances{Virtual: v, Frozen: f}, okV && okF
}
