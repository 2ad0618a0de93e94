// Package client wraps HTTP calls against the GemPlay API and normalizes
// every response into status, raw body, and decoded JSON.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultTimeout bounds a single request.
const DefaultTimeout = 30 * time.Second

// maxLoggedBody caps how much of a body is written to debug logs.
const maxLoggedBody = 2048

// Client talks to one API base URL, optionally as a bearer-token holder.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     logrus.FieldLogger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithLogger sets the logger used for request/response debug output.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Client) { c.log = l }
}

// New creates a Client for baseURL with a 30-second timeout.
func New(baseURL string, opts ...Option) *Client {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		log:     discard,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root all relative paths are joined to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Token returns the bearer token attached to requests, if any.
func (c *Client) Token() string {
	return c.token
}

// WithToken returns a copy of c that authenticates as token.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// Request describes a single API call.
type Request struct {
	Method  string
	Path    string // relative to the base URL, or an absolute http(s) URL
	Query   map[string]string
	Headers map[string]string
	Body    any // JSON-encoded; []byte and string are sent verbatim

	// Token overrides the client's token for this call. NoAuth drops
	// authentication entirely.
	Token  string
	NoAuth bool

	// ExpectStatus is compared against the response status to fill
	// Response.OK. Zero means 200.
	ExpectStatus int
}

// Do performs req. Transport failures are returned as *RequestError; a
// status that differs from ExpectStatus is not an error and shows up as
// Response.OK == false.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	target, err := c.resolveURL(req.Path, req.Query)
	if err != nil {
		return nil, &RequestError{Method: method, URL: req.Path, Err: err}
	}

	body, err := encodeBody(req.Body)
	if err != nil {
		return nil, &RequestError{Method: method, URL: target, Err: err}
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, &RequestError{Method: method, URL: target, Err: err}
	}

	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	token := c.token
	if req.Token != "" {
		token = req.Token
	}
	if token != "" && !req.NoAuth {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	log := c.log.WithFields(logrus.Fields{"method": method, "url": target})
	if body != nil {
		log.WithField("body", truncate(string(body))).Debug("request")
	} else {
		log.Debug("request")
	}

	start := time.Now()
	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		log.WithError(err).Debug("request failed")
		return nil, &RequestError{Method: method, URL: target, Err: err}
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &RequestError{Method: method, URL: target, Err: fmt.Errorf("reading response body: %w", err)}
	}

	expect := req.ExpectStatus
	if expect == 0 {
		expect = http.StatusOK
	}
	resp := newResponse(httpResp.StatusCode, httpResp.Header, raw, time.Since(start), expect)

	log.WithFields(logrus.Fields{
		"status":   resp.Status,
		"duration": resp.Duration.Round(time.Millisecond),
		"body":     truncate(resp.Text()),
	}).Debug("response")

	return resp, nil
}

// Get issues a GET with optional query parameters.
func (c *Client) Get(ctx context.Context, path string, query map[string]string) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query})
}

// Post issues a POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body})
}

// Put issues a PUT with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPut, Path: path, Body: body})
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodDelete, Path: path})
}

func (c *Client) resolveURL(path string, query map[string]string) (string, error) {
	raw := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		if c.baseURL == "" {
			return "", fmt.Errorf("relative path %q with no base URL", path)
		}
		raw = c.baseURL + "/" + strings.TrimLeft(path, "/")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parsing URL %q: %w", raw, err)
	}
	if len(query) > 0 {
		q := u.Query()
		for k, v := range query {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func encodeBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case string:
		return []byte(b), nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}
		return data, nil
	}
}

func truncate(s string) string {
	if len(s) <= maxLoggedBody {
		return s
	}
	return s[:maxLoggedBody] + "...(truncated)"
}
