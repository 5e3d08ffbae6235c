// Package client provides the retrying HTTP client shared by the feed
// and registry fetchers.
//
// Requests are retried on rate limiting (429) and server errors (5xx)
// with capped exponential backoff, honoring a server-provided
// Retry-After delay when present. 404 responses are surfaced as a typed
// HTTPError without retrying.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/cenk/backoff"
	"github.com/rs/dnscache"
)

const acceptHeader = "application/atom+xml, application/xml;q=0.9, application/json;q=0.8, text/html;q=0.6, */*;q=0.5"

// Getter is the transport capability consumed by fetchers and the
// resolver. Tests substitute a fake implementation to exercise the
// resolution logic without a live network.
type Getter interface {
	// GetText fetches a URL and returns the response body as text.
	GetText(ctx context.Context, url string) (string, error)

	// GetJSON fetches a URL and decodes the JSON response into v.
	GetJSON(ctx context.Context, url string, v any) error

	// Exists probes whether a URL resolves to an existing resource.
	Exists(ctx context.Context, url string) (bool, error)
}

// Client fetches text and JSON documents from upstream services.
type Client struct {
	http        *http.Client
	userAgent   string
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.http = c
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(cl *Client) {
		cl.userAgent = ua
	}
}

// WithMaxAttempts sets the total number of attempts per request.
func WithMaxAttempts(n int) Option {
	return func(cl *Client) {
		cl.maxAttempts = n
	}
}

// WithBaseDelay sets the initial delay for exponential backoff.
func WithBaseDelay(d time.Duration) Option {
	return func(cl *Client) {
		cl.baseDelay = d
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		cl.http.Timeout = d
	}
}

// New creates a Client with the given options.
func New(opts ...Option) *Client {
	// DNS cache with a 5 minute refresh interval.
	resolver := &dnscache.Resolver{}
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			resolver.Refresh(true)
		}
	}()

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	c := &Client{
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
					host, port, err := net.SplitHostPort(addr)
					if err != nil {
						return nil, err
					}
					ips, err := resolver.LookupHost(ctx, host)
					if err != nil {
						return nil, err
					}
					for _, ip := range ips {
						conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
						if err == nil {
							return conn, nil
						}
					}
					return nil, fmt.Errorf("failed to dial any resolved IP")
				},
				MaxIdleConns:          100,
				MaxIdleConnsPerHost:   10,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
		userAgent:   "frida-versions/1.0",
		maxAttempts: 3,
		baseDelay:   500 * time.Millisecond,
		maxDelay:    8 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Default returns a Client with the default retry policy and transport.
func Default() *Client {
	return New()
}

// GetText fetches a URL and returns the response body as text.
func (c *Client) GetText(ctx context.Context, url string) (string, error) {
	body, err := c.get(ctx, url)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// GetJSON fetches a URL and decodes the JSON response into v.
func (c *Client) GetJSON(ctx context.Context, url string, v any) error {
	body, err := c.get(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("parsing JSON from %s: %w", url, err)
	}
	return nil
}

// Exists probes a URL with a HEAD request, falling back to GET when the
// endpoint does not serve HEAD. A 404 is reported as (false, nil);
// rate limits and server errors are retried like any other request.
func (c *Client) Exists(ctx context.Context, url string) (bool, error) {
	var exists bool
	err := c.retry(ctx, func() (bool, error) {
		e, retryable, err := c.doHead(ctx, url)
		if err != nil {
			return retryable, err
		}
		exists = e
		return false, nil
	})
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	err := c.retry(ctx, func() (bool, error) {
		b, retryable, err := c.doGet(ctx, url)
		if err != nil {
			return retryable, err
		}
		body = b
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// retry runs attempt up to maxAttempts times with capped exponential
// backoff between retryable failures.
func (c *Client) retry(ctx context.Context, attempt func() (retryable bool, err error)) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.baseDelay
	bo.Multiplier = 2
	bo.MaxInterval = c.maxDelay
	bo.MaxElapsedTime = 0
	bo.Reset()

	for n := 1; ; n++ {
		retryable, err := attempt()
		if err == nil {
			return nil
		}
		if !retryable || n >= c.maxAttempts {
			return err
		}

		delay := bo.NextBackOff()
		// A server-provided retry delay wins over the backoff schedule.
		var rateErr *RateLimitError
		if errors.As(err, &rateErr) && rateErr.RetryAfter > 0 {
			d := time.Duration(rateErr.RetryAfter) * time.Second
			if d > 30*time.Second {
				d = 30 * time.Second
			}
			delay = d
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (c *Client) doHead(ctx context.Context, url string) (exists bool, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false, false, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return false, true, fmt.Errorf("probing %s: %w", url, err)
	}
	_ = resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return true, false, nil

	case resp.StatusCode == http.StatusNotFound:
		return false, false, nil

	case resp.StatusCode == http.StatusMethodNotAllowed:
		// The GET fallback carries its own retry loop.
		if _, err := c.get(ctx, url); err != nil {
			var httpErr *HTTPError
			if errors.As(err, &httpErr) && httpErr.IsNotFound() {
				return false, false, nil
			}
			return false, false, err
		}
		return true, false, nil

	case resp.StatusCode == http.StatusTooManyRequests:
		return false, true, &RateLimitError{URL: url, RetryAfter: retryAfterSeconds(resp)}

	case resp.StatusCode >= 500:
		return false, true, &HTTPError{StatusCode: resp.StatusCode, URL: url}

	default:
		return false, false, &HTTPError{StatusCode: resp.StatusCode, URL: url}
	}
}

func (c *Client) doGet(ctx context.Context, url string) (body []byte, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", acceptHeader)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, true, fmt.Errorf("reading %s: %w", url, err)
		}
		return b, false, nil

	case resp.StatusCode == http.StatusNotFound:
		return nil, false, &HTTPError{StatusCode: resp.StatusCode, URL: url}

	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, true, &RateLimitError{URL: url, RetryAfter: retryAfterSeconds(resp)}

	case resp.StatusCode >= 500:
		return nil, true, &HTTPError{StatusCode: resp.StatusCode, URL: url}

	default:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, false, &HTTPError{StatusCode: resp.StatusCode, URL: url, Body: string(b)}
	}
}

func retryAfterSeconds(resp *http.Response) int {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return secs
}
