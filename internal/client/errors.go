package client

import (
	"context"
	"errors"
	"fmt"
)

// RequestError is a transport-level failure: the request never produced
// an HTTP response.
type RequestError struct {
	Method string
	URL    string
	Err    error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the failure was a deadline or client timeout.
func (e *RequestError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(e.Err, &te) && te.Timeout()
}

// Describe renders err for a test record: transport errors keep their
// method and URL, anything else is passed through.
func Describe(err error) string {
	var re *RequestError
	if errors.As(err, &re) {
		if re.Timeout() {
			return fmt.Sprintf("timeout: %s %s", re.Method, re.URL)
		}
		return "request error: " + re.Error()
	}
	return err.Error()
}
