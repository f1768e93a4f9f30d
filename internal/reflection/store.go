package reflection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the persistence gateway for prompts, daily prompt records and daily
// messages. Find methods return (nil, nil) when the row does not exist.
type Store interface {
	FindDailyPromptByDate(ctx context.Context, date time.Time) (*Daily, error)
	PickRandomActivePrompt(ctx context.Context) (*Prompt, error)
	InsertDailyPromptIfAbsent(ctx context.Context, promptID int64, date time.Time) (*Daily, error)
	ListMessages(ctx context.Context, dailyID int64, limit int) ([]Message, error)
	InsertMessage(ctx context.Context, dailyID int64, userID *int64, username, content string) (*Message, error)
	FindMessageByID(ctx context.Context, id int64) (*Message, error)
	UpdateMessageContent(ctx context.Context, id int64, content string) (*Message, error)
	DeleteMessageByID(ctx context.Context, id int64) (bool, error)
}

// PGStore implements Store on a pgx connection pool.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) FindDailyPromptByDate(ctx context.Context, date time.Time) (*Daily, error) {
	query := `
		SELECT dp.id, dp.active_on, p.id, p.text
		FROM reflection_daily_prompts dp
		JOIN reflection_prompts p ON p.id = dp.prompt_id
		WHERE dp.active_on = $1`

	var d Daily
	err := s.pool.QueryRow(ctx, query, date).Scan(&d.ID, &d.ActiveOn, &d.Prompt.ID, &d.Prompt.Text)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find daily prompt: %w", err)
	}
	return &d, nil
}

func (s *PGStore) PickRandomActivePrompt(ctx context.Context) (*Prompt, error) {
	query := `
		SELECT id, text
		FROM reflection_prompts
		WHERE is_active = TRUE
		ORDER BY RANDOM()
		LIMIT 1`

	var p Prompt
	err := s.pool.QueryRow(ctx, query).Scan(&p.ID, &p.Text)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to pick random prompt: %w", err)
	}
	return &p, nil
}

// InsertDailyPromptIfAbsent attempts the insert and, win or lose, returns the row
// that holds the date. Concurrent callers racing the same date all converge on
// the winner; a duplicate-key error never escapes.
func (s *PGStore) InsertDailyPromptIfAbsent(ctx context.Context, promptID int64, date time.Time) (*Daily, error) {
	query := `
		INSERT INTO reflection_daily_prompts (prompt_id, active_on)
		VALUES ($1, $2)
		ON CONFLICT (active_on) DO NOTHING`

	if _, err := s.pool.Exec(ctx, query, promptID, date); err != nil {
		return nil, fmt.Errorf("failed to insert daily prompt: %w", err)
	}

	d, err := s.FindDailyPromptByDate(ctx, date)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, fmt.Errorf("daily prompt for %s missing after insert", date.Format("2006-01-02"))
	}
	return d, nil
}

func (s *PGStore) ListMessages(ctx context.Context, dailyID int64, limit int) ([]Message, error) {
	query := `
		SELECT id, daily_id, user_id, username, content, created_at
		FROM reflection_daily_messages
		WHERE daily_id = $1
		ORDER BY created_at ASC
		LIMIT $2`

	rows, err := s.pool.Query(ctx, query, dailyID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	messages := []Message{}
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.DailyID, &m.UserID, &m.Username, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read messages: %w", err)
	}
	return messages, nil
}

func (s *PGStore) InsertMessage(ctx context.Context, dailyID int64, userID *int64, username, content string) (*Message, error) {
	query := `
		INSERT INTO reflection_daily_messages (daily_id, user_id, username, content)
		VALUES ($1, $2, $3, $4)
		RETURNING id, daily_id, user_id, username, content, created_at`

	var m Message
	err := s.pool.QueryRow(ctx, query, dailyID, userID, username, content).
		Scan(&m.ID, &m.DailyID, &m.UserID, &m.Username, &m.Content, &m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert message: %w", err)
	}
	return &m, nil
}

func (s *PGStore) FindMessageByID(ctx context.Context, id int64) (*Message, error) {
	query := `
		SELECT id, daily_id, user_id, username, content, created_at
		FROM reflection_daily_messages
		WHERE id = $1`

	var m Message
	err := s.pool.QueryRow(ctx, query, id).
		Scan(&m.ID, &m.DailyID, &m.UserID, &m.Username, &m.Content, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find message: %w", err)
	}
	return &m, nil
}

// UpdateMessageContent rewrites the content only; created_at is preserved so room
// ordering never changes on edit.
func (s *PGStore) UpdateMessageContent(ctx context.Context, id int64, content string) (*Message, error) {
	query := `
		UPDATE reflection_daily_messages
		SET content = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING id, daily_id, user_id, username, content, created_at`

	var m Message
	err := s.pool.QueryRow(ctx, query, id, content).
		Scan(&m.ID, &m.DailyID, &m.UserID, &m.Username, &m.Content, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update message: %w", err)
	}
	return &m, nil
}

func (s *PGStore) DeleteMessageByID(ctx context.Context, id int64) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM reflection_daily_messages WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete message: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
