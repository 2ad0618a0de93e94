package client

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gemplay-qa/gemcheck/internal/jsonpath"
)

// maxDetails caps the body excerpt included in failure details.
const maxDetails = 300

// Response is a normalized API response.
type Response struct {
	Status   int
	Header   http.Header
	Body     []byte
	JSON     any // nil when the body is empty or not JSON
	Duration time.Duration
	Expected int
	OK       bool // Status == Expected
}

func newResponse(status int, header http.Header, body []byte, d time.Duration, expect int) *Response {
	r := &Response{
		Status:   status,
		Header:   header,
		Body:     body,
		Duration: d,
		Expected: expect,
		OK:       status == expect,
	}
	if len(body) > 0 {
		if doc, err := jsonpath.Parse(body); err == nil {
			r.JSON = doc
		}
	}
	return r
}

// IsJSON reports whether the body decoded as JSON.
func (r *Response) IsJSON() bool {
	return r.JSON != nil
}

// Text returns the raw body as a string.
func (r *Response) Text() string {
	return string(r.Body)
}

// List returns the body as a JSON array, or nil when it is not one.
func (r *Response) List() []any {
	l, _ := r.JSON.([]any)
	return l
}

// Path returns the first value matched by a JSONPath expression.
func (r *Response) Path(expr string) (any, bool) {
	if r.JSON == nil {
		return nil, false
	}
	val, ok, err := jsonpath.First(r.JSON, expr)
	if err != nil {
		return nil, false
	}
	return val, ok
}

// All returns every value matched by a JSONPath expression.
func (r *Response) All(expr string) []any {
	if r.JSON == nil {
		return nil
	}
	vals, _ := jsonpath.Get(r.JSON, expr)
	return vals
}

// Has reports whether expr matches a non-null value.
func (r *Response) Has(expr string) bool {
	val, ok := r.Path(expr)
	return ok && val != nil
}

// String returns the value at expr formatted as a string, or "".
func (r *Response) String(expr string) string {
	val, ok := r.Path(expr)
	if !ok || val == nil {
		return ""
	}
	return jsonpath.Format(val)
}

// Float returns the numeric value at expr. Numeric strings are accepted
// because some endpoints serialize money as strings.
func (r *Response) Float(expr string) (float64, bool) {
	val, ok := r.Path(expr)
	if !ok {
		return 0, false
	}
	switch v := val.(type) {
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Bool returns the boolean value at expr.
func (r *Response) Bool(expr string) (bool, bool) {
	val, ok := r.Path(expr)
	if !ok {
		return false, false
	}
	b, ok := val.(bool)
	return b, ok
}

// Details summarizes the response for a failed test record.
func (r *Response) Details() string {
	body := r.Text()
	if len(body) > maxDetails {
		body = body[:maxDetails] + "..."
	}
	return fmt.Sprintf("status %d (expected %d): %s", r.Status, r.Expected, body)
}
