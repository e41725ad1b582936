package orchestrator

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/autostream/gateway/internal/apierr"
)

// recoverMiddleware is C12's panic-safety boundary: any panic inside a
// downstream handler becomes a structured 500 instead of crashing the
// process, and is logged without terminating (spec §4.13).
func (s *Server) recoverMiddleware(c *fiber.Ctx) error {
	defer func() {
		if r := recover(); r != nil {
			s.deps.Logger.Error("recovered panic", zap.Any("panic", r), zap.String("path", c.Path()))
			_ = writeAPIErr(c, apierr.New(apierr.Internal, "internal error"))
		}
	}()
	return c.Next()
}

// rateLimitMiddleware enforces a per-client-IP token bucket approximating
// the sliding-window limit of spec §4.13 (e.g. 100 requests / 60 s).
// Grounded on golang.org/x/time/rate's token-bucket limiter, the same
// library DESIGN.md documents wiring in for this exact concern.
func (s *Server) rateLimitMiddleware(c *fiber.Ctx) error {
	limiter := s.limiterFor(c.IP())
	if !limiter.Allow() {
		return writeAPIErr(c, apierr.New(apierr.RateLimited, "rate limit exceeded"))
	}
	return c.Next()
}

func (s *Server) limiterFor(ip string) *rate.Limiter {
	s.limiterMu.Lock()
	defer s.limiterMu.Unlock()
	l, ok := s.limiters[ip]
	if !ok {
		perMinute := float64(s.deps.RateLimitPerMinute)
		l = rate.NewLimiter(rate.Limit(perMinute/60.0), s.deps.RateLimitPerMinute)
		s.limiters[ip] = l
	}
	return l
}

// queueDwell is the maximum time a request waits for a concurrency-gate
// slot before it is rejected with 503 (spec §5: "the queue has a maximum
// dwell time beyond which the request returns 503").
const queueDwell = 2 * time.Second

// concurrencyGate bounds the number of simultaneously in-flight listing
// computations (spec §4.13's global semaphore, e.g. 15).
func (s *Server) concurrencyGate(c *fiber.Ctx) error {
	select {
	case s.concurrency <- struct{}{}:
	case <-time.After(queueDwell):
		return writeAPIErr(c, apierr.New(apierr.Overloaded, "server is at capacity"))
	}
	defer func() { <-s.concurrency }()
	return c.Next()
}

// writeAPIErr surfaces an *apierr.Error as the stable JSON body spec §7
// requires, with its mapped HTTP status.
func writeAPIErr(c *fiber.Ctx, e *apierr.Error) error {
	return c.Status(e.Kind.HTTPStatus()).JSON(e.Body())
}
