package leaderboard

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/sociopolis/sociopolis_service/internal/telemetry"
)

const recomputeLockKey = "lock:leaderboard:recompute"

// Maintainer decouples snapshot maintenance from the XP write path. Awards
// enqueue; a single goroutine drains the queue, coalescing bursts into one
// recompute bounded by a rate limiter. A Redis lock serializes across
// instances and singleflight collapses concurrent direct callers.
type Maintainer struct {
	svc        *Service
	rdb        *redis.Client
	limiter    *rate.Limiter
	sf         singleflight.Group
	ch         chan struct{}
	maxRetries int
}

func NewMaintainer(svc *Service, rdb *redis.Client, rps, burst, maxRetries int) *Maintainer {
	if rps <= 0 {
		rps = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &Maintainer{
		svc:        svc,
		rdb:        rdb,
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
		ch:         make(chan struct{}, 1),
		maxRetries: maxRetries,
	}
}

// Enqueue requests a recompute and never blocks; requests arriving while one
// is already pending coalesce into it.
func (m *Maintainer) Enqueue() {
	select {
	case m.ch <- struct{}{}:
	default:
	}
}

// Run drains the queue until ctx is done. Call in its own goroutine.
func (m *Maintainer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.ch:
			if err := m.limiter.Wait(ctx); err != nil {
				return
			}
			m.RecomputeNow(ctx)
		}
	}
}

// RecomputeNow performs one recomputation with retry and backoff. Safe to call
// from anywhere; concurrent calls share a single execution.
func (m *Maintainer) RecomputeNow(ctx context.Context) {
	_, err, _ := m.sf.Do("recompute", func() (any, error) {
		if m.rdb != nil {
			ok, err := m.rdb.SetNX(ctx, recomputeLockKey, "1", 30*time.Second).Result()
			if err == nil && !ok {
				telemetry.L().Debug().Msg("leaderboard_recompute_lock_held")
				return nil, nil
			}
			defer m.rdb.Del(ctx, recomputeLockKey)
		}

		backoff := time.Second
		var err error
		for attempt := 0; attempt <= m.maxRetries; attempt++ {
			if err = m.svc.Recompute(ctx); err == nil {
				return nil, nil
			}
			telemetry.L().Warn().Err(err).Int("attempt", attempt).Msg("leaderboard_recompute_retry")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		return nil, err
	})
	if err != nil {
		telemetry.L().Error().Err(err).Msg("leaderboard_recompute_failed")
	}
}
