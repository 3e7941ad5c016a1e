// Package ratelimit paces outbound requests per destination host.
package ratelimit

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// HostLimiter enforces a minimum interval of 1/rate between admissions to the
// same host. Hosts are independent: waiting on one never delays another.
//
// Each host gets its own token bucket with burst 1, so admissions are
// serialized per host and the "next allowed" bookkeeping is atomic. The
// bucket is advanced from time.Now readings, which carry a monotonic clock
// reading, so wall-clock adjustments neither skip nor double a wait.
type HostLimiter struct {
	limit rate.Limit

	mu    sync.Mutex
	hosts map[string]*rate.Limiter
}

// NewHostLimiter creates a limiter admitting ratePerSecond requests per host.
// A non-positive rate disables pacing.
func NewHostLimiter(ratePerSecond float64) *HostLimiter {
	return &HostLimiter{
		limit: rate.Limit(ratePerSecond),
		hosts: make(map[string]*rate.Limiter),
	}
}

// Enabled reports whether the limiter paces requests at all.
func (l *HostLimiter) Enabled() bool {
	return l != nil && l.limit > 0
}

// Interval returns the minimum spacing between two admissions to one host.
func (l *HostLimiter) Interval() time.Duration {
	if !l.Enabled() {
		return 0
	}
	return time.Duration(float64(time.Second) / float64(l.limit))
}

// Wait blocks until a request to host may be issued. It returns ctx.Err()
// unchanged if the context ends first; the reserved slot is then released.
func (l *HostLimiter) Wait(ctx context.Context, host string) error {
	if !l.Enabled() {
		return nil
	}
	if err := l.forHost(host).Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		// rate.Limiter refuses waits that would outlive the ctx deadline.
		return fmt.Errorf("rate limit wait for %s: %w", host, err)
	}
	return nil
}

func (l *HostLimiter) forHost(host string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.hosts[host]
	if !ok {
		lim = rate.NewLimiter(l.limit, 1)
		l.hosts[host] = lim
	}
	return lim
}

// HostOf extracts the host[:port] a raw URL targets. URLs without a host
// (odd or relative inputs) fall back to their path so they still get a
// stable partition key.
func HostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	if u.Host != "" {
		return u.Host
	}
	return u.Path
}
