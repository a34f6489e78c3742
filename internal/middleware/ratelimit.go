package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter hands every client IP its own token bucket.
//
// TOKEN BUCKET:
// Each bucket holds up to burst tokens and refills at rps tokens per second.
// A request takes one token; with none left it gets 429 and a Retry-After.
//
// Buckets of clients that went quiet are dropped by Cleanup so the map does
// not grow with every address ever seen.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*visitor
	rps     rate.Limit
	burst   int
	logger  *slog.Logger
	now     func() time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewRateLimiter(rps float64, burst int, logger *slog.Logger) *RateLimiter {
	return &RateLimiter{
		clients: make(map[string]*visitor),
		rps:     rate.Limit(rps),
		burst:   burst,
		logger:  logger,
		now:     time.Now,
	}
}

// Allow takes a token from ip's bucket.
func (l *RateLimiter) Allow(ip string) bool {
	l.mu.Lock()
	v, ok := l.clients[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.clients[ip] = v
	}
	now := l.now()
	v.lastSeen = now
	l.mu.Unlock()

	return v.limiter.AllowN(now, 1)
}

// Cleanup forgets clients idle for longer than idle and returns how many
// were dropped.
func (l *RateLimiter) Cleanup(idle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-idle)
	dropped := 0
	for ip, v := range l.clients {
		if v.lastSeen.Before(cutoff) {
			delete(l.clients, ip)
			dropped++
		}
	}
	return dropped
}

// Handler is the middleware. It keys on r.RemoteAddr, so chi's RealIP must
// run first when the server sits behind a proxy.
func (l *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !l.Allow(ip) {
			l.logger.Warn("rate limit exceeded", slog.String("ip", ip), slog.String("path", r.URL.Path))

			retry := 1
			if l.rps > 0 {
				retry = max(1, int(1/float64(l.rps)))
			}
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate_limited","message":"too many requests"}` + "\n"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP strips the port from RemoteAddr. RealIP leaves a bare address,
// which SplitHostPort rejects; that is returned as-is.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
