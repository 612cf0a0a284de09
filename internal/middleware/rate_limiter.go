package middleware

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v3"
	"golang.org/x/time/rate"
)

// RateLimiter ограничивает частоту запросов с одного IP
type RateLimiter struct {
	ips      map[string]*visitor
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	idleTime time.Duration
	now      func() time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter создаёт ограничитель: perSecond запросов в секунду с запасом burst
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		ips:      make(map[string]*visitor),
		limit:    rate.Limit(perSecond),
		burst:    burst,
		idleTime: 10 * time.Minute,
		now:      time.Now,
	}
}

// Handler middleware для Fiber
func (r *RateLimiter) Handler() fiber.Handler {
	return func(c fiber.Ctx) error {
		if !r.getLimiter(c.IP()).Allow() {
			c.Set(fiber.HeaderRetryAfter, "1")
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Слишком много запросов, попробуйте позже",
			})
		}
		return c.Next()
	}
}

func (r *RateLimiter) getLimiter(ip string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()

	// Забываем IP, которые давно не появлялись
	for key, v := range r.ips {
		if now.Sub(v.lastSeen) > r.idleTime {
			delete(r.ips, key)
		}
	}

	v, exists := r.ips[ip]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(r.limit, r.burst)}
		r.ips[ip] = v
	}
	v.lastSeen = now
	return v.limiter
}
