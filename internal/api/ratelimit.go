package api

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const limiterIdleTTL = time.Hour

// ParseRate reads limits written as "N per unit", e.g. "5 per minute" or
// "100/hour". The burst equals N.
func ParseRate(s string) (rate.Limit, int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	var count, unit string
	if before, after, ok := strings.Cut(s, " per "); ok {
		count, unit = before, after
	} else if before, after, ok := strings.Cut(s, "/"); ok {
		count, unit = before, after
	} else {
		return 0, 0, fmt.Errorf("invalid rate limit %q", s)
	}

	n, err := strconv.Atoi(strings.TrimSpace(count))
	if err != nil || n <= 0 {
		return 0, 0, fmt.Errorf("invalid rate limit count in %q", s)
	}

	var period time.Duration
	switch strings.TrimSuffix(strings.TrimSpace(unit), "s") {
	case "second":
		period = time.Second
	case "minute":
		period = time.Minute
	case "hour":
		period = time.Hour
	case "day":
		period = 24 * time.Hour
	default:
		return 0, 0, fmt.Errorf("invalid rate limit unit in %q", s)
	}
	return rate.Limit(float64(n) / period.Seconds()), n, nil
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPLimiter keeps one token bucket per client address.
type IPLimiter struct {
	limit     rate.Limit
	burst     int
	whitelist map[string]bool

	mu       sync.Mutex
	visitors map[string]*visitor
	swept    time.Time
}

func NewIPLimiter(limit rate.Limit, burst int, whitelist []string) *IPLimiter {
	wl := make(map[string]bool, len(whitelist))
	for _, ip := range whitelist {
		wl[ip] = true
	}
	return &IPLimiter{
		limit:     limit,
		burst:     burst,
		whitelist: wl,
		visitors:  make(map[string]*visitor),
		swept:     time.Now(),
	}
}

func (l *IPLimiter) Allow(ip string) bool {
	if l.whitelist[ip] {
		return true
	}

	l.mu.Lock()
	now := time.Now()
	if now.Sub(l.swept) > limiterIdleTTL {
		for k, v := range l.visitors {
			if now.Sub(v.lastSeen) > limiterIdleTTL {
				delete(l.visitors, k)
			}
		}
		l.swept = now
	}
	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now
	l.mu.Unlock()

	return v.limiter.Allow()
}

func (l *IPLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(clientIP(r)) {
			w.Header().Set("Retry-After", strconv.Itoa(l.retryAfter()))
			writeError(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *IPLimiter) retryAfter() int {
	if l.limit <= 0 {
		return 60
	}
	return int(1/float64(l.limit)) + 1
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// newLimiter returns nil when rate is empty so the route goes unlimited.
func newLimiter(rate string, whitelist []string) (*IPLimiter, error) {
	if strings.TrimSpace(rate) == "" {
		return nil, nil
	}
	limit, burst, err := ParseRate(rate)
	if err != nil {
		return nil, err
	}
	return NewIPLimiter(limit, burst, whitelist), nil
}

func limited(l *IPLimiter, h http.HandlerFunc) http.Handler {
	if l == nil {
		return h
	}
	return l.middleware(h)
}
