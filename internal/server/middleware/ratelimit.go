package middleware

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// visitorTTL is how long an idle client keeps its token bucket.
	visitorTTL = 30 * time.Minute
	// sweepEvery bounds how often the visitor map is pruned.
	sweepEvery = 10 * time.Minute
)

// visitor is one client's token bucket.
type visitor struct {
	bucket   *rate.Limiter
	lastSeen time.Time
}

// RateLimitByIP throttles requests per client IP. It guards the
// unauthenticated routes, where the only identity available is the address
// chi's RealIP middleware resolved into r.RemoteAddr. Idle buckets are swept
// during lookups, so the map stays bounded without a background goroutine.
func RateLimitByIP(rps float64, burst int) func(http.Handler) http.Handler {
	var (
		mu        sync.Mutex
		visitors  = make(map[string]*visitor)
		lastSweep = time.Now()
	)

	allow := func(ip string) bool {
		mu.Lock()
		defer mu.Unlock()

		now := time.Now()
		if now.Sub(lastSweep) >= sweepEvery {
			for addr, v := range visitors {
				if now.Sub(v.lastSeen) >= visitorTTL {
					delete(visitors, addr)
				}
			}
			lastSweep = now
		}

		v, ok := visitors[ip]
		if !ok {
			v = &visitor{bucket: rate.NewLimiter(rate.Limit(rps), burst)}
			visitors[ip] = v
		}
		v.lastSeen = now

		return v.bucket.Allow()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !allow(r.RemoteAddr) {
				writeProblem(w, http.StatusTooManyRequests, "Too Many Requests", "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
