package quotes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrNoQuotesAvailable means the active quote pool is empty; an operator needs
// to seed the quotes table.
var ErrNoQuotesAvailable = errors.New("no active quotes available")

type Quote struct {
	ID     int64   `json:"id"`
	Text   string  `json:"text"`
	Author *string `json:"author"`
}

// Weekly binds one quote to one calendar week, keyed by that week's Monday.
type Weekly struct {
	ID         int64     `json:"weekly_id"`
	ActiveWeek time.Time `json:"active_week"`
	Quote      Quote     `json:"quote"`
}

// Service lazily guarantees one quote per week, mirroring the daily prompt
// resolver: read, pick at random on a miss, insert conflict-safe on the
// active_week uniqueness constraint, re-read the winner.
type Service struct {
	pool   *pgxpool.Pool
	cache  *redis.Client // optional
	logger *zap.SugaredLogger
}

func NewService(pool *pgxpool.Pool, cache *redis.Client, logger *zap.SugaredLogger) *Service {
	return &Service{pool: pool, cache: cache, logger: logger}
}

// WeekStart returns the Monday of the week containing t, at UTC midnight.
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday belongs to the week that started the previous Monday
	}
	monday := t.AddDate(0, 0, 1-weekday)
	return time.Date(monday.Year(), monday.Month(), monday.Day(), 0, 0, 0, 0, time.UTC)
}

// ResolveWeek returns this week's quote, selecting one if the week has none yet.
func (s *Service) ResolveWeek(ctx context.Context, now time.Time) (*Weekly, error) {
	week := WeekStart(now)

	if w := s.cached(ctx, week); w != nil {
		return w, nil
	}

	w, err := s.findByWeek(ctx, week)
	if err != nil {
		return nil, err
	}
	if w == nil {
		w, err = s.rotate(ctx, week)
		if err != nil {
			return nil, err
		}
	}

	s.cacheWeekly(ctx, week, w)
	return w, nil
}

func (s *Service) findByWeek(ctx context.Context, week time.Time) (*Weekly, error) {
	query := `
		SELECT w.id, w.active_week, q.id, q.text, q.author
		FROM weekly_quotes w
		JOIN quotes q ON q.id = w.quote_id
		WHERE w.active_week = $1`

	var w Weekly
	err := s.pool.QueryRow(ctx, query, week).
		Scan(&w.ID, &w.ActiveWeek, &w.Quote.ID, &w.Quote.Text, &w.Quote.Author)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find weekly quote: %w", err)
	}
	return &w, nil
}

func (s *Service) rotate(ctx context.Context, week time.Time) (*Weekly, error) {
	var q Quote
	err := s.pool.QueryRow(ctx,
		`SELECT id, text, author FROM quotes WHERE is_active = TRUE ORDER BY RANDOM() LIMIT 1`).
		Scan(&q.ID, &q.Text, &q.Author)
	if errors.Is(err, pgx.ErrNoRows) {
		if s.logger != nil {
			s.logger.Errorw("quote pool is empty; seed quotes", "week", week.Format("2006-01-02"))
		}
		return nil, ErrNoQuotesAvailable
	}
	if err != nil {
		return nil, fmt.Errorf("failed to pick quote: %w", err)
	}

	// Concurrent rotations for the same week converge on whoever wins the insert.
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO weekly_quotes (quote_id, active_week) VALUES ($1, $2) ON CONFLICT (active_week) DO NOTHING`,
		q.ID, week); err != nil {
		return nil, fmt.Errorf("failed to insert weekly quote: %w", err)
	}

	w, err := s.findByWeek(ctx, week)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, fmt.Errorf("weekly quote for %s missing after insert", week.Format("2006-01-02"))
	}
	return w, nil
}

func cacheKey(week time.Time) string {
	return fmt.Sprintf("quotes:weekly:%s", week.Format("2006-01-02"))
}

func (s *Service) cached(ctx context.Context, week time.Time) *Weekly {
	if s.cache == nil {
		return nil
	}
	val, err := s.cache.Get(ctx, cacheKey(week)).Result()
	if err != nil {
		return nil
	}
	var w Weekly
	if err := json.Unmarshal([]byte(val), &w); err != nil {
		return nil
	}
	return &w
}

func (s *Service) cacheWeekly(ctx context.Context, week time.Time, w *Weekly) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(w)
	if err != nil {
		return
	}
	ttl := time.Until(week.AddDate(0, 0, 7))
	if ttl <= 0 {
		ttl = time.Hour
	}
	if err := s.cache.Set(ctx, cacheKey(week), payload, ttl).Err(); err != nil && s.logger != nil {
		s.logger.Warnw("failed to cache weekly quote", "error", err)
	}
}
