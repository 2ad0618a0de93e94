// Package gemplay describes the GemPlay REST endpoints the harness exercises.
// It owns request shapes and paths only; responses are returned as
// *client.Response and inspected by the caller.
package gemplay

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gemplay-qa/gemcheck/internal/client"
)

// API is a GemPlay client acting as one user (or anonymously).
type API struct {
	c *client.Client
}

// New wraps c.
func New(c *client.Client) *API {
	return &API{c: c}
}

// Client returns the underlying request wrapper.
func (a *API) Client() *client.Client {
	return a.c
}

// As returns an API that authenticates with token.
func (a *API) As(token string) *API {
	return &API{c: a.c.WithToken(token)}
}

// Token returns the bearer token in use, if any.
func (a *API) Token() string {
	return a.c.Token()
}

func (a *API) get(ctx context.Context, path string, query map[string]string) (*client.Response, error) {
	return a.c.Get(ctx, path, query)
}

func (a *API) post(ctx context.Context, path string, body any) (*client.Response, error) {
	return a.c.Post(ctx, path, body)
}

func (a *API) postQuery(ctx context.Context, path string, query map[string]string) (*client.Response, error) {
	return a.c.Do(ctx, client.Request{Method: http.MethodPost, Path: path, Query: query})
}

func (a *API) put(ctx context.Context, path string, body any) (*client.Response, error) {
	return a.c.Put(ctx, path, body)
}

func (a *API) delete(ctx context.Context, path string) (*client.Response, error) {
	return a.c.Delete(ctx, path)
}

// pathf builds a path with escaped id segments.
func pathf(format string, ids ...string) string {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = url.PathEscape(id)
	}
	return fmt.Sprintf(format, args...)
}

// StatusError reports an unexpected status from a step whose success is a
// precondition for the rest of a scenario.
type StatusError struct {
	Op       string
	Response *client.Response
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Response.Details())
}

// requireOK turns a non-OK response into a *StatusError.
func requireOK(op string, resp *client.Response, err error) (*client.Response, error) {
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !resp.OK {
		return resp, &StatusError{Op: op, Response: resp}
	}
	return resp, nil
}
