package suites

import (
	"context"
	"net/http"

	"github.com/gemplay-qa/gemcheck/internal/gemplay"
)

func authSuite() Suite {
	return Suite{
		Name:        "auth",
		Description: "admin login, rejected credentials, throwaway user lifecycle",
		Tags:        []string{"smoke"},
		Run:         runAuth,
	}
}

func runAuth(ctx context.Context, env *Env) error {
	cfg := env.Config

	if cfg.HasAdmin() {
		env.Printer.Step("Admin login")
		resp, err := env.API.Login(ctx, cfg.Admin.Email, cfg.Admin.Password)
		if env.CheckResponse("admin login succeeds", resp, err) {
			env.Check("admin login returns access_token", resp.String("$.access_token") != "", resp.Details())
		}

		env.Printer.Step("Admin login with wrong password")
		resp, err = env.API.Login(ctx, cfg.Admin.Email, cfg.Admin.Password+"-wrong")
		env.CheckStatus("wrong password is rejected with 401", resp, err, http.StatusUnauthorized)
	} else {
		env.Printer.Warning("admin credentials not configured; skipping admin login checks")
	}

	env.Printer.Step("Register, verify and log in a throwaway user")
	f := cfg.Fixtures
	u := gemplay.NewThrowawayUser(f.UserPrefix, f.EmailDomain, f.Password)

	resp, err := env.API.Register(ctx, u)
	if !env.CheckResponse("register throwaway user", resp, err) {
		return nil
	}

	if vt := resp.String("$.verification_token"); vt != "" {
		resp, err := env.API.VerifyEmail(ctx, vt)
		env.CheckResponse("verify email with returned token", resp, err)
	} else {
		env.Printer.Warning("register response has no verification_token")
	}

	resp, err = env.API.Login(ctx, u.Email, u.Password)
	if !env.CheckResponse("throwaway user login", resp, err) {
		return nil
	}
	token := resp.String("$.access_token")
	if !env.Check("user login returns access_token", token != "", resp.Details()) {
		return nil
	}

	me, err := env.API.As(token).Me(ctx)
	if env.CheckResponse("GET /auth/me with user token", me, err) {
		env.Checkf("/auth/me echoes the registered email", me.String("$.email") == u.Email,
			"expected %s, got %q", u.Email, me.String("$.email"))
	}

	resp, err = env.API.Me(ctx)
	env.CheckStatus("GET /auth/me without token is rejected", resp, err, http.StatusUnauthorized)
	return nil
}
