// Package fetch wraps the HTTP client with per-host circuit breaking so
// that a dead upstream fails fast instead of stalling a long resolution
// pass on retries.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/cenk/backoff"
	circuit "github.com/rubyist/circuitbreaker"

	"github.com/frida-mgr/versions/client"
)

// ErrUpstreamDown is returned when a host's circuit is open.
var ErrUpstreamDown = errors.New("upstream unavailable")

// CircuitBreakerClient wraps a client.Getter with one circuit breaker
// per upstream host.
type CircuitBreakerClient struct {
	inner    client.Getter
	breakers map[string]*circuit.Breaker
	mu       sync.RWMutex
}

// NewCircuitBreakerClient creates a circuit breaker wrapper around a
// transport.
func NewCircuitBreakerClient(inner client.Getter) *CircuitBreakerClient {
	return &CircuitBreakerClient{
		inner:    inner,
		breakers: make(map[string]*circuit.Breaker),
	}
}

// getBreaker returns or creates the circuit breaker for a host.
func (c *CircuitBreakerClient) getBreaker(host string) *circuit.Breaker {
	c.mu.RLock()
	breaker, exists := c.breakers[host]
	c.mu.RUnlock()

	if exists {
		return breaker
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Double-check after acquiring write lock
	if breaker, exists := c.breakers[host]; exists {
		return breaker
	}

	// Trips after 5 consecutive failures, resets with exponential backoff.
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 30 * time.Second
	expBackoff.MaxInterval = 5 * time.Minute
	expBackoff.Multiplier = 2.0
	expBackoff.Reset()

	opts := &circuit.Options{
		BackOff:    expBackoff,
		ShouldTrip: circuit.ThresholdTripFunc(5),
	}
	breaker = circuit.NewBreakerWithOptions(opts)

	c.breakers[host] = breaker
	return breaker
}

func (c *CircuitBreakerClient) call(rawURL string, fn func() error) error {
	host := extractHost(rawURL)
	breaker := c.getBreaker(host)

	if !breaker.Ready() {
		return fmt.Errorf("circuit breaker open for %s: %w", host, ErrUpstreamDown)
	}

	return breaker.Call(fn, 0)
}

// GetText fetches a URL through the host's circuit breaker.
func (c *CircuitBreakerClient) GetText(ctx context.Context, url string) (string, error) {
	var text string
	err := c.call(url, func() error {
		var fetchErr error
		text, fetchErr = c.inner.GetText(ctx, url)
		return fetchErr
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

// GetJSON fetches and decodes a URL through the host's circuit breaker.
func (c *CircuitBreakerClient) GetJSON(ctx context.Context, url string, v any) error {
	return c.call(url, func() error {
		return c.inner.GetJSON(ctx, url, v)
	})
}

// Exists probes a URL through the host's circuit breaker. A definitive
// "does not exist" answer is not a breaker failure.
func (c *CircuitBreakerClient) Exists(ctx context.Context, url string) (bool, error) {
	var exists bool
	err := c.call(url, func() error {
		var probeErr error
		exists, probeErr = c.inner.Exists(ctx, url)
		return probeErr
	})
	if err != nil {
		return false, err
	}
	return exists, nil
}

// extractHost extracts a host identifier from a URL for breaker grouping.
func extractHost(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		// Fallback to simple truncation
		if len(rawURL) > 50 {
			return rawURL[:50]
		}
		return rawURL
	}
	return parsed.Host
}

// BreakerState returns the current state of all circuit breakers.
func (c *CircuitBreakerClient) BreakerState() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	states := make(map[string]string)
	for host, breaker := range c.breakers {
		if breaker.Tripped() {
			states[host] = "open"
		} else {
			states[host] = "closed"
		}
	}
	return states
}
