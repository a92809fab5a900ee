package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/use-agent/scrapedesk/config"
	"github.com/use-agent/scrapedesk/models"
	"golang.org/x/time/rate"
)

const (
	limiterIdleTTL   = time.Hour
	limiterSweepTick = 5 * time.Minute
)

var rateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "scrapedesk_http_rate_limited_total",
	Help: "Requests rejected by the per-caller rate limiter.",
})

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterSet holds one token bucket per caller identity.
type limiterSet struct {
	mu      sync.Mutex
	entries map[string]*limiterEntry
	limit   rate.Limit
	burst   int
}

func (s *limiterSet) get(identity string, now time.Time) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[identity]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.entries[identity] = e
	}
	e.lastSeen = now
	return e.limiter
}

func (s *limiterSet) sweep(cutoff time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.entries {
		if e.lastSeen.Before(cutoff) {
			delete(s.entries, id)
		}
	}
}

// RateLimit returns per-caller token-bucket rate limiting. The caller is
// the API key stored by Auth, or the client IP.
//
// Buckets idle for an hour are dropped by a background sweep.
func RateLimit(cfg config.RateLimitConfig) gin.HandlerFunc {
	set := &limiterSet{
		entries: make(map[string]*limiterEntry),
		limit:   rate.Limit(cfg.RequestsPerSecond),
		burst:   cfg.Burst,
	}

	go func() {
		ticker := time.NewTicker(limiterSweepTick)
		defer ticker.Stop()
		for now := range ticker.C {
			set.sweep(now.Add(-limiterIdleTTL))
		}
	}()

	return func(c *gin.Context) {
		identity := c.GetString(apiKeyContextKey)
		if identity == "" {
			identity = c.ClientIP()
		}

		lim := set.get(identity, time.Now())
		if !lim.Allow() {
			rateLimitedTotal.Inc()
			c.Header("Retry-After", strconv.Itoa(retryAfter(set.limit)))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, models.ErrorResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeRateLimited,
					Message: "rate limit exceeded, please slow down",
				},
			})
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatFloat(float64(set.limit), 'f', -1, 64))
		c.Next()
	}
}

// retryAfter is the whole number of seconds until one token refills.
func retryAfter(limit rate.Limit) int {
	if limit <= 0 {
		return 1
	}
	return max(1, int(math.Ceil(1/float64(limit))))
}
