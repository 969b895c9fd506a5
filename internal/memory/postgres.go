package memory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// recallFetchCap bounds the candidate set scored per recall query.
const recallFetchCap = 500

// PostgresStore persists long-term user memory in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS memory_entries (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT '',
			importance INT NOT NULL DEFAULT 5,
			session_id TEXT NOT NULL DEFAULT '',
			source TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (user_id, key)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_memory_entries_user_created ON memory_entries (user_id, created_at);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) Remember(ctx context.Context, entry Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	entry.Importance = clampImportance(entry.Importance)

	_, err := s.pool.Exec(ctx,
		`INSERT INTO memory_entries (id, user_id, key, value, category, importance, session_id, source, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (user_id, key) DO UPDATE SET
			value = EXCLUDED.value,
			category = EXCLUDED.category,
			importance = EXCLUDED.importance,
			session_id = EXCLUDED.session_id,
			source = EXCLUDED.source`,
		entry.ID,
		entry.UserID,
		entry.Key,
		entry.Value,
		entry.Category,
		entry.Importance,
		entry.SessionID,
		entry.Source,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("remember: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, userID, key string) (Entry, bool, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, user_id, key, value, category, importance, session_id, source, created_at
		 FROM memory_entries WHERE user_id=$1 AND key=$2`,
		userID,
		key,
	)
	var e Entry
	err := row.Scan(&e.ID, &e.UserID, &e.Key, &e.Value, &e.Category, &e.Importance, &e.SessionID, &e.Source, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("get entry: %w", err)
	}
	return e, true, nil
}

func (s *PostgresStore) Recall(ctx context.Context, userID, query string, limit int) ([]Entry, error) {
	entries, err := s.userEntries(ctx,
		`SELECT id, user_id, key, value, category, importance, session_id, source, created_at
		 FROM memory_entries WHERE user_id=$1 ORDER BY importance DESC, created_at DESC LIMIT $2`,
		userID, recallFetchCap)
	if err != nil {
		return nil, fmt.Errorf("query recall candidates: %w", err)
	}
	return scoreRecall(entries, query, limit), nil
}

func (s *PostgresStore) WithPrefix(ctx context.Context, userID, prefix string) ([]Entry, error) {
	entries, err := s.userEntries(ctx,
		`SELECT id, user_id, key, value, category, importance, session_id, source, created_at
		 FROM memory_entries WHERE user_id=$1 AND key LIKE $2 || '%' ORDER BY created_at`,
		userID, prefix)
	if err != nil {
		return nil, fmt.Errorf("query by prefix: %w", err)
	}
	return entries, nil
}

func (s *PostgresStore) userEntries(ctx context.Context, sql string, args ...any) ([]Entry, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Key, &e.Value, &e.Category, &e.Importance, &e.SessionID, &e.Source, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan entry row: %w", err)
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

func (s *PostgresStore) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{Categories: make(map[string]int)}

	row := s.pool.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT user_id) FROM memory_entries`)
	if err := row.Scan(&stats.TotalEntries, &stats.Users); err != nil {
		return Stats{}, fmt.Errorf("count entries: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT category, COUNT(*) FROM memory_entries GROUP BY category`)
	if err != nil {
		return Stats{}, fmt.Errorf("count categories: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var category string
		var n int
		if err := rows.Scan(&category, &n); err != nil {
			return Stats{}, fmt.Errorf("scan category row: %w", err)
		}
		stats.Categories[category] = n
	}
	return stats, rows.Err()
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
