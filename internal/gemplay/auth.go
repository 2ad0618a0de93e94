package gemplay

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/gemplay-qa/gemcheck/internal/client"
)

// Login calls POST /auth/login.
func (a *API) Login(ctx context.Context, email, password string) (*client.Response, error) {
	return a.c.Do(ctx, client.Request{
		Method: "POST",
		Path:   "/auth/login",
		Body:   Credentials{Email: email, Password: password},
		NoAuth: true,
	})
}

// Register calls POST /auth/register.
func (a *API) Register(ctx context.Context, u User) (*client.Response, error) {
	return a.c.Do(ctx, client.Request{Method: "POST", Path: "/auth/register", Body: u, NoAuth: true})
}

// VerifyEmail calls POST /auth/verify-email with the token returned by
// registration.
func (a *API) VerifyEmail(ctx context.Context, token string) (*client.Response, error) {
	return a.c.Do(ctx, client.Request{
		Method: "POST",
		Path:   "/auth/verify-email",
		Body:   map[string]string{"token": token},
		NoAuth: true,
	})
}

// Me calls GET /auth/me.
func (a *API) Me(ctx context.Context) (*client.Response, error) {
	return a.get(ctx, "/auth/me", nil)
}

// AddBalance calls POST /auth/add-balance?amount=N to top up a test user.
func (a *API) AddBalance(ctx context.Context, amount float64) (*client.Response, error) {
	return a.postQuery(ctx, "/auth/add-balance", map[string]string{"amount": fmt.Sprintf("%g", amount)})
}

// Authenticate logs in and returns an API acting as that user.
func (a *API) Authenticate(ctx context.Context, email, password string) (*API, *Session, error) {
	resp, err := a.Login(ctx, email, password)
	if resp, err = requireOK("login "+email, resp, err); err != nil {
		return nil, nil, err
	}
	token := resp.String("$.access_token")
	if token == "" {
		return nil, nil, fmt.Errorf("login %s: response has no access_token", email)
	}
	s := &Session{
		User:   User{Email: email, Password: password},
		UserID: resp.String("$.user.id"),
		Token:  token,
	}
	s.User.Username = resp.String("$.user.username")
	return a.As(token), s, nil
}

// NewThrowawayUser builds a registration payload whose username and email
// carry a random suffix so repeated runs never collide.
func NewThrowawayUser(prefix, domain, password string) User {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
	name := prefix + "_" + suffix
	return User{
		Username: name,
		Email:    name + "@" + domain,
		Password: password,
		Gender:   "male",
	}
}

// RegisterAndLogin registers u, verifies the email when the backend hands
// back a verification token, and logs in.
func (a *API) RegisterAndLogin(ctx context.Context, u User) (*API, *Session, error) {
	resp, err := a.Register(ctx, u)
	if resp, err = requireOK("register "+u.Email, resp, err); err != nil {
		return nil, nil, err
	}

	if vt := resp.String("$.verification_token"); vt != "" {
		vresp, err := a.VerifyEmail(ctx, vt)
		if _, err := requireOK("verify "+u.Email, vresp, err); err != nil {
			return nil, nil, err
		}
	}

	api, s, err := a.Authenticate(ctx, u.Email, u.Password)
	if err != nil {
		return nil, nil, err
	}
	s.User = u
	if s.UserID == "" {
		s.UserID = resp.String("$.user_id")
	}
	return api, s, nil
}
