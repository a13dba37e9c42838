package probe

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// politeTransport stamps the user agent on every request and paces requests per host
type politeTransport struct {
	base      http.RoundTripper
	userAgent string
	rps       float64
	overrides map[string]float64

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func newPoliteTransport(base http.RoundTripper, userAgent string, rps float64, overrides map[string]float64) *politeTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &politeTransport{
		base:      base,
		userAgent: userAgent,
		rps:       rps,
		overrides: overrides,
		limiters:  make(map[string]*rate.Limiter),
	}
}

func (t *politeTransport) limiter(host string) *rate.Limiter {
	host = strings.ToLower(host)

	t.mu.Lock()
	defer t.mu.Unlock()

	if l, ok := t.limiters[host]; ok {
		return l
	}
	rps := t.rps
	if v, ok := t.overrides[host]; ok {
		rps = v
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	l := rate.NewLimiter(limit, 1)
	t.limiters[host] = l
	return l
}

// pacedKey carries the host whose pacing slot the Client already took,
// before the per-request timeout started
type pacedKey struct{}

// wait takes a pacing slot for host. It must be called with the caller's
// context, not one bounded by the request timeout.
func (t *politeTransport) wait(ctx context.Context, host string) (context.Context, error) {
	if err := t.limiter(host).Wait(ctx); err != nil {
		return ctx, err
	}
	return context.WithValue(ctx, pacedKey{}, strings.ToLower(host)), nil
}

func (t *politeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// SDK requests and cross-host redirects arrive unpaced
	if host, _ := req.Context().Value(pacedKey{}).(string); host != strings.ToLower(req.URL.Host) {
		if err := t.limiter(req.URL.Host).Wait(req.Context()); err != nil {
			return nil, err
		}
	}
	// RoundTrippers must not modify the caller's request
	r := req.Clone(req.Context())
	r.Header.Set("User-Agent", t.userAgent)
	return t.base.RoundTrip(r)
}
