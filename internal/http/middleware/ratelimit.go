package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	bucketIdleTTL  = 10 * time.Minute
	sweepFrequency = time.Minute
)

// RateLimiter guarda um token bucket por IP ou por conta.
type RateLimiter struct {
	every rate.Limit
	burst int

	mu      sync.Mutex
	buckets map[string]*bucket
	swept   time.Time
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

func NewRateLimiter(reqPerSec float64, burst int) *RateLimiter {
	return &RateLimiter{
		every:   rate.Limit(reqPerSec),
		burst:   burst,
		buckets: map[string]*bucket{},
		swept:   time.Now(),
	}
}

// take consome um token; quando não há, devolve quanto esperar.
func (l *RateLimiter) take(key string, now time.Time) (bool, time.Duration) {
	l.mu.Lock()
	if now.Sub(l.swept) > sweepFrequency {
		for k, b := range l.buckets {
			if now.Sub(b.seen) > bucketIdleTTL {
				delete(l.buckets, k)
			}
		}
		l.swept = now
	}
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.every, l.burst)}
		l.buckets[key] = b
	}
	b.seen = now
	l.mu.Unlock()

	res := b.lim.ReserveN(now, 1)
	if !res.OK() {
		return false, time.Second
	}
	if wait := res.DelayFrom(now); wait > 0 {
		res.CancelAt(now)
		return false, wait
	}
	return true, 0
}

func (l *RateLimiter) middleware(keyOf func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyOf(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			if ok, wait := l.take(key, time.Now()); !ok {
				secs := int(math.Ceil(wait.Seconds()))
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				writeError(w, http.StatusTooManyRequests, "RATE_LIMIT", "Limite de requisições excedido")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IPRateLimit protege as rotas públicas.
func IPRateLimit(l *RateLimiter) func(http.Handler) http.Handler {
	return l.middleware(func(r *http.Request) string { return "ip:" + realIPFromRequest(r) })
}

// UserRateLimit usa o subject do token; sem claims não limita.
func UserRateLimit(l *RateLimiter) func(http.Handler) http.Handler {
	return l.middleware(func(r *http.Request) string {
		if sub := GetSubject(r.Context()); sub != "" {
			return "sub:" + sub
		}
		return ""
	})
}

func realIPFromRequest(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
