package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const requestIDHeader = "X-Request-ID"

// requestID tags every request with an id, reusing the caller's when given.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// requestLogger logs one line per request.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http request",
			zap.String("request_id", c.GetString("request_id")),
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// Throttler is notified when the rate limiter rejects a request.
type Throttler interface {
	RecordThrottle(route string)
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter keeps one token bucket per client IP.
type rateLimiter struct {
	limit     rate.Limit
	burst     int
	throttler Throttler
	clockNow  func() time.Time

	mu       sync.Mutex
	visitors map[string]*visitor
}

func newRateLimiter(perSecond float64, burst int, throttler Throttler) *rateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &rateLimiter{
		limit:     rate.Limit(perSecond),
		burst:     burst,
		throttler: throttler,
		clockNow:  time.Now,
		visitors:  make(map[string]*visitor),
	}
}

func (r *rateLimiter) obtain(id string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clockNow()
	for key, v := range r.visitors {
		if now.Sub(v.lastSeen) > 5*time.Minute {
			delete(r.visitors, key)
		}
	}
	v, ok := r.visitors[id]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(r.limit, r.burst)}
		r.visitors[id] = v
	}
	v.lastSeen = now
	return v.limiter
}

func (r *rateLimiter) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !r.obtain(c.ClientIP()).AllowN(r.clockNow(), 1) {
			if r.throttler != nil {
				r.throttler.RecordThrottle(c.FullPath())
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorBody{
				Error:   "RateLimited",
				Message: http.StatusText(http.StatusTooManyRequests),
			})
			return
		}
		c.Next()
	}
}
