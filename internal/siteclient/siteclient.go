// Package siteclient provides the HTTP client the archiver uses to talk to
// the site: sane timeouts so a dead upstream can't hang a sync run forever,
// and a per-host rate limiter so a burst of feed or item fetches doesn't
// look like a scrape to the far end.
package siteclient

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Default returns an HTTP client suitable for feed probes and item metadata
// fetches: bounded overall timeout plus a bounded time to first response
// byte, so a stalled connection doesn't block a sync run indefinitely.
func Default() *http.Client {
	return &http.Client{
		Timeout: 60 * time.Second,
		Transport: &http.Transport{
			ResponseHeaderTimeout: 15 * time.Second,
			ExpectContinueTimeout: 5 * time.Second,
			IdleConnTimeout:       30 * time.Second,
		},
	}
}

// HostLimiter paces outgoing requests per host so the archiver never issues
// more than a configured rate of requests against any one origin,
// regardless of how many goroutines in the process want to talk to it.
type HostLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

// GlobalHostLimiter is the shared per-host limiter used by every package
// that fetches from the site. Default: 2 requests/second per host, burst 4.
var GlobalHostLimiter = NewHostLimiter(2, 4)

// NewHostLimiter creates a limiter allowing rps requests per second per
// host, with the given burst allowance.
func NewHostLimiter(rps float64, burst int) *HostLimiter {
	if burst < 1 {
		burst = 1
	}
	return &HostLimiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

// Wait blocks until a request to rawURL's host is permitted to proceed, or
// ctx is done.
func (h *HostLimiter) Wait(ctx context.Context, rawURL string) error {
	return h.limiterFor(rawURL).Wait(ctx)
}

func (h *HostLimiter) limiterFor(rawURL string) *rate.Limiter {
	host := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		host = u.Scheme + "://" + u.Host
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	l, ok := h.limiters[host]
	if !ok {
		l = rate.NewLimiter(h.rps, h.burst)
		h.limiters[host] = l
	}
	return l
}

// Get issues a rate-limited, context-aware GET request against client.
func Get(ctx context.Context, client *http.Client, limiter *HostLimiter, rawURL string) (*http.Response, error) {
	if client == nil {
		client = Default()
	}
	if limiter == nil {
		limiter = GlobalHostLimiter
	}
	if err := limiter.Wait(ctx, rawURL); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	return client.Do(req)
}
