package db

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// InitPostgres initializes and returns a PostgreSQL connection pool
func InitPostgres() (*pgxpool.Pool, error) {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		host := getEnvOrDefault("POSTGRES_HOST", "localhost")
		port := getEnvOrDefault("POSTGRES_PORT", "5432")
		user := getEnvOrDefault("POSTGRES_USER", "mycm")
		password := getEnvOrDefault("POSTGRES_PASSWORD", "")
		dbname := getEnvOrDefault("POSTGRES_DB", "mycm")
		sslmode := getEnvOrDefault("POSTGRES_SSLMODE", "disable")

		databaseURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
			user, password, host, port, dbname, sslmode)
	}

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 5
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = time.Minute * 30
	config.HealthCheckPeriod = time.Minute * 5

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := createTables(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	if err := seedDefaults(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to seed defaults: %w", err)
	}

	return pool, nil
}

// createTables creates all required tables if they don't exist
func createTables(ctx context.Context, pool *pgxpool.Pool) error {
	usersTable := `
		CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			username TEXT NOT NULL CHECK (char_length(username) BETWEEN 3 AND 32),
			email TEXT NOT NULL,
			password TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('user', 'admin')),
			name TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`

	postsTable := `
		CREATE TABLE IF NOT EXISTS posts (
			id BIGSERIAL PRIMARY KEY,
			title TEXT NOT NULL,
			content TEXT NOT NULL,
			author_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			image_url TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`

	commentsTable := `
		CREATE TABLE IF NOT EXISTS comments (
			id BIGSERIAL PRIMARY KEY,
			post_id BIGINT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			content TEXT NOT NULL CHECK (char_length(content) BETWEEN 1 AND 5000),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`

	contactMessagesTable := `
		CREATE TABLE IF NOT EXISTS contact_messages (
			id BIGSERIAL PRIMARY KEY,
			name VARCHAR(100) NOT NULL,
			email VARCHAR(255) NOT NULL,
			message TEXT NOT NULL,
			client_ip INET,
			user_agent TEXT,
			created_at TIMESTAMPTZ DEFAULT NOW()
		);
	`

	sectionsTable := `
		CREATE TABLE IF NOT EXISTS sections (
			id BIGSERIAL PRIMARY KEY,
			slug TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`

	contentBlocksTable := `
		CREATE TABLE IF NOT EXISTS content_blocks (
			id BIGSERIAL PRIMARY KEY,
			section_id BIGINT NOT NULL REFERENCES sections(id) ON DELETE CASCADE,
			title TEXT,
			body TEXT NOT NULL,
			image_url TEXT,
			order_index INTEGER NOT NULL DEFAULT 0,
			published BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`

	reflectionPromptsTable := `
		CREATE TABLE IF NOT EXISTS reflection_prompts (
			id BIGSERIAL PRIMARY KEY,
			text TEXT NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`

	// One prompt per calendar day. The UNIQUE constraint on active_on is what the
	// resolver's conflict-safe insert relies on.
	reflectionDailyPromptsTable := `
		CREATE TABLE IF NOT EXISTS reflection_daily_prompts (
			id BIGSERIAL PRIMARY KEY,
			prompt_id BIGINT NOT NULL REFERENCES reflection_prompts(id) ON DELETE CASCADE,
			active_on DATE NOT NULL UNIQUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`

	reflectionDailyMessagesTable := `
		CREATE TABLE IF NOT EXISTS reflection_daily_messages (
			id BIGSERIAL PRIMARY KEY,
			daily_id BIGINT NOT NULL REFERENCES reflection_daily_prompts(id) ON DELETE CASCADE,
			user_id BIGINT REFERENCES users(id) ON DELETE CASCADE,
			username TEXT,
			content TEXT NOT NULL CHECK (char_length(content) BETWEEN 1 AND 2000),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`

	quotesTable := `
		CREATE TABLE IF NOT EXISTS quotes (
			id BIGSERIAL PRIMARY KEY,
			text TEXT NOT NULL,
			author TEXT,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`

	weeklyQuotesTable := `
		CREATE TABLE IF NOT EXISTS weekly_quotes (
			id BIGSERIAL PRIMARY KEY,
			quote_id BIGINT NOT NULL REFERENCES quotes(id) ON DELETE CASCADE,
			active_week DATE NOT NULL UNIQUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`

	indexes := []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS users_username_lower_uniq ON users (LOWER(username));`,
		`CREATE UNIQUE INDEX IF NOT EXISTS users_email_lower_uniq ON users (LOWER(email));`,
		`CREATE INDEX IF NOT EXISTS idx_posts_author_id ON posts(author_id);`,
		`CREATE INDEX IF NOT EXISTS idx_posts_created_at ON posts(created_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_comments_post_id_created ON comments(post_id, created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_comments_user_id ON comments(user_id);`,
		`CREATE INDEX IF NOT EXISTS idx_blocks_section_order ON content_blocks(section_id, order_index, created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_reflection_daily_prompts_active_on ON reflection_daily_prompts(active_on);`,
		`CREATE INDEX IF NOT EXISTS idx_reflection_daily_prompts_prompt ON reflection_daily_prompts(prompt_id);`,
		`CREATE INDEX IF NOT EXISTS idx_reflection_daily_messages_daily_created ON reflection_daily_messages(daily_id, created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_reflection_daily_messages_user ON reflection_daily_messages(user_id);`,
		`CREATE INDEX IF NOT EXISTS idx_weekly_quotes_active_week ON weekly_quotes(active_week);`,
		`CREATE INDEX IF NOT EXISTS idx_weekly_quotes_quote_id ON weekly_quotes(quote_id);`,
	}

	tables := []string{
		usersTable, postsTable, commentsTable, contactMessagesTable, sectionsTable,
		contentBlocksTable, reflectionPromptsTable, reflectionDailyPromptsTable,
		reflectionDailyMessagesTable, quotesTable, weeklyQuotesTable,
	}

	for _, table := range tables {
		if _, err := pool.Exec(ctx, table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	for _, index := range indexes {
		if _, err := pool.Exec(ctx, index); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

// seedDefaults inserts a starter pool of reflection prompts and quotes on a fresh
// database so the daily resolver has something to draw from. Existing rows win.
func seedDefaults(ctx context.Context, pool *pgxpool.Pool) error {
	prompts := []string{
		"What is one small win you had today",
		"What helps you feel grounded when life feels heavy",
		"Name one thing you would tell your younger self",
		"What can you do in the next ten minutes to care for yourself",
		"Who is someone you are grateful for right now, and why",
		"What is one worry you can set down for the rest of the day",
	}

	var promptCount int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM reflection_prompts`).Scan(&promptCount); err != nil {
		return fmt.Errorf("failed to count reflection prompts: %w", err)
	}
	if promptCount == 0 {
		for _, text := range prompts {
			if _, err := pool.Exec(ctx,
				`INSERT INTO reflection_prompts (text, is_active) VALUES ($1, TRUE)`, text); err != nil {
				return fmt.Errorf("failed to seed reflection prompt: %w", err)
			}
		}
	}

	quotes := []struct {
		text   string
		author string
	}{
		{"You do not have to see the whole staircase, just take the first step.", "Martin Luther King Jr."},
		{"Almost everything will work again if you unplug it for a few minutes, including you.", "Anne Lamott"},
		{"Feelings are much like waves; we can't stop them from coming but we can choose which ones to surf.", "Jonatan Martensson"},
	}

	var quoteCount int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM quotes`).Scan(&quoteCount); err != nil {
		return fmt.Errorf("failed to count quotes: %w", err)
	}
	if quoteCount == 0 {
		for _, q := range quotes {
			if _, err := pool.Exec(ctx,
				`INSERT INTO quotes (text, author, is_active) VALUES ($1, $2, TRUE)`, q.text, q.author); err != nil {
				return fmt.Errorf("failed to seed quote: %w", err)
			}
		}
	}

	return nil
}

// getEnvOrDefault returns the environment variable value or a default value if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
