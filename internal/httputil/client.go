// Package httputil holds small HTTP helpers shared by the API server and the
// command-line tools.
package httputil

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// HTTPClient abstracts the one HTTP operation the tools need so tests can
// substitute canned responses.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientFunc adapts a function to HTTPClient.
type ClientFunc func(req *http.Request) (*http.Response, error)

func (f ClientFunc) Do(req *http.Request) (*http.Response, error) { return f(req) }

// Fetch issues a GET for url and returns the body of a 2xx response. The
// caller closes the body.
func Fetch(ctx context.Context, c HTTPClient, url string) (io.ReadCloser, error) {
	if c == nil {
		c = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("fetching %s: %s: %s", url, resp.Status, msg)
	}
	return resp.Body, nil
}
