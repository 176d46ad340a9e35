package api

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"bibliotech/internal/config"

	"golang.org/x/time/rate"
)

const defaultLimiterIdleTTL = 10 * time.Minute

type clientLimiter struct {
	lim      *rate.Limiter
	lastSeen atomic.Int64
}

// rateLimiter holds one token bucket per client address. Buckets idle for
// longer than idleTTL are dropped.
type rateLimiter struct {
	limiters  sync.Map
	cfg       config.APIRateLimitConfig
	trusted   []netip.Prefix
	idleTTL   time.Duration
	lastSweep atomic.Int64
	now       func() time.Time
}

func newRateLimiter(cfg config.APIRateLimitConfig) *rateLimiter {
	// Entries are checked by config.Validate.
	trusted, _ := cfg.TrustedPrefixes()
	idle := cfg.IdleTTL
	if idle <= 0 {
		idle = defaultLimiterIdleTTL
	}
	l := &rateLimiter{cfg: cfg, trusted: trusted, idleTTL: idle, now: time.Now}
	l.lastSweep.Store(l.now().UnixNano())
	return l
}

func (l *rateLimiter) enabled() bool {
	return l != nil && l.cfg.RPS > 0
}

func (l *rateLimiter) allow(r *http.Request) bool {
	if !l.enabled() {
		return true
	}
	now := l.now()
	l.evictIdle(now)

	c := l.getLimiter(l.clientKey(r))
	c.lastSeen.Store(now.UnixNano())
	return c.lim.AllowN(now, 1)
}

func (l *rateLimiter) getLimiter(key string) *clientLimiter {
	if v, ok := l.limiters.Load(key); ok {
		if c, ok := v.(*clientLimiter); ok {
			return c
		}
	}

	burst := l.cfg.Burst
	if burst <= 0 {
		burst = 5
	}

	c := &clientLimiter{lim: rate.NewLimiter(rate.Limit(l.cfg.RPS), burst)}
	actual, loaded := l.limiters.LoadOrStore(key, c)
	if loaded {
		if existing, ok := actual.(*clientLimiter); ok {
			return existing
		}
	}
	return c
}

// evictIdle runs at most once per idleTTL.
func (l *rateLimiter) evictIdle(now time.Time) {
	last := l.lastSweep.Load()
	if now.UnixNano()-last < l.idleTTL.Nanoseconds() {
		return
	}
	if !l.lastSweep.CompareAndSwap(last, now.UnixNano()) {
		return
	}
	cutoff := now.Add(-l.idleTTL).UnixNano()
	l.limiters.Range(func(key, v any) bool {
		if c, ok := v.(*clientLimiter); !ok || c.lastSeen.Load() < cutoff {
			l.limiters.Delete(key)
		}
		return true
	})
}

// clientKey identifies the caller by its remote address. X-Forwarded-For is
// read only when the remote address is a trusted proxy; the key is then the
// rightmost hop that is not itself a trusted proxy.
func (l *rateLimiter) clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil || host == "" {
		return clientKeyUnknown
	}
	if !l.isTrusted(host) {
		return host
	}

	hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		if !l.isTrusted(hop) {
			return hop
		}
		host = hop
	}
	return host
}

func (l *rateLimiter) isTrusted(host string) bool {
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range l.trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
