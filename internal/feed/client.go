package feed

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"
)

// CalendarPath is the same-origin proxy endpoint served by internal/web.
const CalendarPath = "/api/calendar"

// Client reads the calendar document through a running instance's proxy
// endpoint instead of the upstream source, so the upstream URL (and any
// credential embedded in it) never leaves the server.
type Client struct {
	endpoint string
	timeout  time.Duration
	client   *http.Client
}

// NewClient returns a Client for the server at baseURL
// (e.g. "http://127.0.0.1:8080"). timeout <= 0 selects DefaultTimeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		endpoint: strings.TrimRight(baseURL, "/") + CalendarPath,
		timeout:  timeout,
		client:   &http.Client{},
	}
}

// Raw implements Source. Any transport failure or non-2xx answer is a
// *ClientError.
func (c *Client) Raw(ctx context.Context) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, &ClientError{Err: err}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &ClientError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &ClientError{StatusCode: resp.StatusCode, Err: errors.New(resp.Status)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ClientError{Err: err}
	}
	return body, nil
}
