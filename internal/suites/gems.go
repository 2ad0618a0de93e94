package suites

import (
	"context"
	"net/http"

	"github.com/gemplay-qa/gemcheck/internal/expect"
	"github.com/gemplay-qa/gemcheck/internal/gemplay"
)

func gemsSuite() Suite {
	return Suite{
		Name:        "gems",
		Description: "gem purchase, sale and inventory bookkeeping",
		Tags:        []string{"smoke", "economy"},
		Run:         runGems,
	}
}

func runGems(ctx context.Context, env *Env) error {
	api, _, err := env.NewUser(ctx)
	if err != nil {
		return err
	}
	gemType := env.Config.Fixtures.GemType
	qty := env.Config.Fixtures.GemQuantity

	before, ok := inventoryCount(ctx, env, api, gemType)
	if !ok {
		return Abort("reading initial inventory")
	}
	balBefore, _ := readBalance(ctx, api)

	env.Printer.Step("Buy %d %s", qty, gemType)
	resp, err := api.BuyGems(ctx, gemType, qty)
	if env.CheckResponse("buy gems", resp, err) {
		after, ok := inventoryCount(ctx, env, api, gemType)
		env.Checkf("inventory grows by purchased quantity", ok && after == before+float64(qty),
			"before %.0f, after %.0f, bought %d", before, after, qty)

		if balAfter, ok := readBalance(ctx, api); ok {
			spent := expect.Delta(balAfter.Virtual, balBefore.Virtual)
			env.Checkf("virtual balance decreases on purchase", spent.IsPositive(),
				"before %.2f, after %.2f", balBefore.Virtual, balAfter.Virtual)
		}
		before = after
	}

	env.Printer.Step("Sell 1 %s", gemType)
	resp, err = api.SellGems(ctx, gemType, 1)
	if env.CheckResponse("sell gems", resp, err) {
		after, ok := inventoryCount(ctx, env, api, gemType)
		env.Checkf("inventory shrinks by sold quantity", ok && after == before-1,
			"before %.0f, after %.0f", before, after)
	}

	env.Printer.Step("Buy more gems than the balance covers")
	resp, err = api.BuyGems(ctx, gemType, 1_000_000)
	if err == nil {
		env.Checkf("purchase beyond balance is rejected", resp.Status >= http.StatusBadRequest && resp.Status < http.StatusInternalServerError,
			"expected 4xx, got %s", resp.Details())
	} else {
		env.CheckResponse("purchase beyond balance is rejected", resp, err)
	}

	env.Printer.Step("Sell gems the user does not own")
	resp, err = api.SellGems(ctx, gemType, int(before)+1000)
	if err == nil {
		env.Checkf("overselling is rejected", resp.Status >= http.StatusBadRequest && resp.Status < http.StatusInternalServerError,
			"expected 4xx, got %s", resp.Details())
	} else {
		env.CheckResponse("overselling is rejected", resp, err)
	}
	return nil
}

func inventoryCount(ctx context.Context, env *Env, api *gemplay.API, gemType string) (float64, bool) {
	inv, err := api.Inventory(ctx)
	if err != nil || !inv.OK {
		env.Log.WithField("gem_type", gemType).Debug("inventory unavailable")
		return 0, false
	}
	qty, _, _ := gemplay.GemQuantity(inv, gemType)
	return qty, true
}

func readBalance(ctx context.Context, api *gemplay.API) (gemplay.Balances, bool) {
	resp, err := api.Balance(ctx)
	if err != nil || !resp.OK {
		return gemplay.Balances{}, false
	}
	return gemplay.ReadBalances(resp)
}
