package feed

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	appLog "todaycal/internal/log"
)

// DefaultTimeout bounds an upstream fetch when none is configured.
const DefaultTimeout = 15 * time.Second

// Source yields a raw calendar document.
type Source interface {
	Raw(ctx context.Context) ([]byte, error)
}

// Observer receives the outcome of every upstream fetch. It is satisfied by
// the metrics package; nil disables reporting.
type Observer interface {
	ObserveFetch(result string, elapsed time.Duration)
}

// Fetcher retrieves the upstream ICS document. The URL is injected at
// construction; an empty URL makes every fetch fail with ErrNotConfigured.
type Fetcher struct {
	url      string
	timeout  time.Duration
	client   *http.Client
	observer Observer
}

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithObserver reports fetch outcomes to o.
func WithObserver(o Observer) Option {
	return func(f *Fetcher) { f.observer = o }
}

// NewFetcher creates a Fetcher for rawURL. timeout <= 0 selects DefaultTimeout.
func NewFetcher(rawURL string, timeout time.Duration, opts ...Option) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	f := &Fetcher{
		url:     rawURL,
		timeout: timeout,
		client:  &http.Client{},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Configured reports whether an upstream URL is set.
func (f *Fetcher) Configured() bool {
	return f.url != ""
}

// Response is a successfully fetched upstream document.
type Response struct {
	Body        []byte
	ContentType string
}

// Fetch performs one GET against the upstream URL. The body is returned
// verbatim. ctx cancellation and the configured timeout both abort the
// request with a KindUnreachable FetchError.
func (f *Fetcher) Fetch(ctx context.Context) (Response, error) {
	if f.url == "" {
		f.observe("not_configured", 0)
		return Response{}, ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	started := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		f.observe("unreachable", time.Since(started))
		return Response{}, &FetchError{Kind: KindUnreachable, Err: err}
	}
	req.Header.Set("Accept", "text/calendar, text/plain;q=0.9, */*;q=0.1")

	appLog.Debug("feed fetch start", "url", redactURL(f.url))

	resp, err := f.client.Do(req)
	if err != nil {
		f.observe("unreachable", time.Since(started))
		return Response{}, &FetchError{Kind: KindUnreachable, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		f.observe("remote_error", time.Since(started))
		return Response{}, &FetchError{
			Kind:       KindRemoteError,
			StatusCode: resp.StatusCode,
			Err:        errors.New(resp.Status),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		f.observe("unreachable", time.Since(started))
		return Response{}, &FetchError{Kind: KindUnreachable, Err: err}
	}

	elapsed := time.Since(started)
	f.observe("success", elapsed)
	appLog.Debug("feed fetch success",
		"url", redactURL(f.url),
		"status", resp.StatusCode,
		"bytes", len(body),
		"elapsed", elapsed,
	)

	return Response{Body: body, ContentType: resp.Header.Get("Content-Type")}, nil
}

// Raw implements Source.
func (f *Fetcher) Raw(ctx context.Context) ([]byte, error) {
	resp, err := f.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Redacted returns the upstream URL in a form that is safe to log.
func (f *Fetcher) Redacted() string {
	return redactURL(f.url)
}

func (f *Fetcher) observe(result string, elapsed time.Duration) {
	if f.observer != nil {
		f.observer.ObserveFetch(result, elapsed)
	}
}

// redactURL hides path and query of a calendar URL, which commonly embed
// private tokens.
//
//	https://example.com/path/to/private.ics?token=abcd
//	-> https://example.com/...(redacted)
func redactURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "ics://...(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}
