package reflection

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Resolver guarantees exactly one active prompt per calendar day, creating one
// lazily from the active pool the first time any session asks. Callers cannot
// tell whether the row was found or just created.
type Resolver struct {
	store  Store
	cache  *redis.Client // optional; nil skips caching
	logger *zap.SugaredLogger
}

func NewResolver(store Store, cache *redis.Client, logger *zap.SugaredLogger) *Resolver {
	return &Resolver{store: store, cache: cache, logger: logger}
}

// Today returns the current calendar date in UTC, truncated to midnight.
func Today() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// Resolve returns the daily prompt for the given date, creating it if absent.
// Safe under concurrent callers: the insert is conflict-safe on the active_on
// uniqueness constraint, so every racer converges on the same row.
func (r *Resolver) Resolve(ctx context.Context, today time.Time) (*Daily, error) {
	if d := r.cached(ctx, today); d != nil {
		return d, nil
	}

	d, err := r.store.FindDailyPromptByDate(ctx, today)
	if err != nil {
		return nil, err
	}
	if d != nil {
		r.cacheDaily(ctx, today, d)
		return d, nil
	}

	p, err := r.store.PickRandomActivePrompt(ctx)
	if err != nil {
		return nil, err
	}
	if p == nil {
		// Empty pool is an operator problem, not a per-request fault.
		if r.logger != nil {
			r.logger.Errorw("reflection prompt pool is empty; seed reflection_prompts",
				"date", today.Format("2006-01-02"))
		}
		return nil, ErrNoPromptsAvailable
	}

	// Another caller may insert between our miss and this insert; the store
	// re-reads the winning row on conflict.
	d, err = r.store.InsertDailyPromptIfAbsent(ctx, p.ID, today)
	if err != nil {
		return nil, err
	}

	r.cacheDaily(ctx, today, d)
	return d, nil
}

func cacheKey(date time.Time) string {
	return fmt.Sprintf("reflection:daily:%s", date.Format("2006-01-02"))
}

func (r *Resolver) cached(ctx context.Context, date time.Time) *Daily {
	if r.cache == nil {
		return nil
	}
	val, err := r.cache.Get(ctx, cacheKey(date)).Result()
	if err != nil {
		return nil
	}
	var d Daily
	if err := json.Unmarshal([]byte(val), &d); err != nil {
		return nil
	}
	return &d
}

// cacheDaily is best-effort; a cache failure never fails the resolve.
func (r *Resolver) cacheDaily(ctx context.Context, date time.Time, d *Daily) {
	if r.cache == nil {
		return
	}
	payload, err := json.Marshal(d)
	if err != nil {
		return
	}
	ttl := time.Until(date.AddDate(0, 0, 1))
	if ttl <= 0 {
		ttl = time.Minute
	}
	if err := r.cache.Set(ctx, cacheKey(date), payload, ttl).Err(); err != nil && r.logger != nil {
		r.logger.Warnw("failed to cache daily prompt", "error", err)
	}
}
