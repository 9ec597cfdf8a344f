// Package providers holds the shared pieces of the Discord and GitHub
// API clients.
package providers

import (
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
)

// UpstreamError is returned for any non-success response from Discord or
// GitHub. It is terminal for the current request; the core never retries.
type UpstreamError struct {
	Status     int
	StatusText string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream error: [%d] %s", e.Status, e.StatusText)
}

// NewUpstreamError builds an UpstreamError from a response status code.
func NewUpstreamError(statusCode int) *UpstreamError {
	return &UpstreamError{Status: statusCode, StatusText: http.StatusText(statusCode)}
}

// CheckResponse converts a non-2xx response into an UpstreamError.
func CheckResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return NewUpstreamError(resp.StatusCode)
}

// WrapRetrieveError converts a token-endpoint failure from the oauth2
// package into an UpstreamError, keeping the error surface uniform across
// both providers.
func WrapRetrieveError(err error) error {
	if err == nil {
		return nil
	}
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) && rerr.Response != nil {
		return NewUpstreamError(rerr.Response.StatusCode)
	}
	return err
}
