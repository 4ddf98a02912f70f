// Package ratelimited implements a demo service whose work step is gated by
// a Redis-backed token bucket, adapted from the teacher's internal/rate
// Limiter: the same "tokens:timestamp" string encoding, refill-by-elapsed-
// time, burst-capped bucket, keyed here by service name instead of a client
// UUID since there's exactly one bucket per service instance.
package ratelimited

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"svcrunner/internal/persistence"
	"svcrunner/internal/runtime/service"
)

// Service runs its own work exactly when its token bucket allows it,
// skipping (not erroring) ticks where it's rate limited.
type Service struct {
	*service.BaseService
	logger *slog.Logger
	redis  *persistence.RedisClient
	rps    int
	burst  int
	key    string

	steps int
}

// New builds a rate-limited Service backed by redis, allowing up to rps
// steps per second with a burst capacity of burst tokens.
func New(name string, periodMs int, sender service.Sender, redis *persistence.RedisClient, rps, burst int, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		BaseService: service.NewBase(name, periodMs, 0, sender),
		logger:      logger,
		redis:       redis,
		rps:         rps,
		burst:       burst,
		key:         fmt.Sprintf("ratelimited:%s", name),
	}
}

// WorkStep consults the token bucket before doing any work; a denied
// request is not an error, just a skipped step.
func (s *Service) WorkStep() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	allowed, _, err := s.allow(ctx)
	if err != nil {
		return err
	}
	if !allowed {
		return nil
	}

	s.steps++
	s.logger.Debug("ratelimited: step allowed", "service", s.Name(), "steps", s.steps)
	return nil
}

// allow mirrors the teacher's Limiter.Allow: a "tokens:timestamp" value
// refilled by elapsed whole seconds and capped at burst, consumed by one per
// allowed call.
func (s *Service) allow(ctx context.Context) (bool, time.Duration, error) {
	now := time.Now()
	windowStart := now.Truncate(time.Second)

	currentTokensStr, err := s.redis.Get(ctx, s.key).Result()
	currentTokens := s.burst // a bucket with no stored state starts full
	lastRefill := windowStart
	if err == nil {
		var lastRefillUnix int64
		fmt.Sscanf(currentTokensStr, "%d:%d", &currentTokens, &lastRefillUnix)
		lastRefill = time.Unix(lastRefillUnix, 0)
	}

	elapsed := windowStart.Sub(lastRefill)
	tokensToAdd := int(elapsed.Seconds()) * s.rps
	currentTokens += tokensToAdd
	if currentTokens > s.burst {
		currentTokens = s.burst
	}

	if currentTokens <= 0 {
		retryAfter := time.Second - time.Duration(now.Nanosecond())
		return false, retryAfter, nil
	}

	currentTokens--
	newValue := fmt.Sprintf("%d:%d", currentTokens, windowStart.Unix())
	if err := s.redis.Set(ctx, s.key, newValue, time.Minute).Err(); err != nil {
		return false, 0, err
	}
	return true, 0, nil
}
