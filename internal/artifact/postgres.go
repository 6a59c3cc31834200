package artifact

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore keeps artifact bytes in a single table.
type PostgresStore struct {
	db         *sql.DB
	schemaOnce sync.Once
	schemaErr  error
}

// OpenPostgres connects through the pgx database/sql driver.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return NewPostgresStore(db), nil
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Close() error { return s.db.Close() }

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS deck_artifacts (
    id SERIAL PRIMARY KEY,
    session_id TEXT NOT NULL,
    path TEXT NOT NULL,
    content BYTEA NOT NULL DEFAULT ''::bytea,
    size BIGINT NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
    UNIQUE(session_id, path)
);
CREATE INDEX IF NOT EXISTS idx_deck_artifacts_session ON deck_artifacts(session_id);
`)
	})
	return s.schemaErr
}

func (s *PostgresStore) Put(ctx context.Context, sessionID, path string, content []byte) error {
	sid, p, err := splitKey(sessionID, path)
	if err != nil {
		return err
	}
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	if content == nil {
		content = []byte{}
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO deck_artifacts (session_id, path, content, size, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (session_id, path)
DO UPDATE SET content=EXCLUDED.content, size=EXCLUDED.size, updated_at=EXCLUDED.updated_at
`, sid, p, content, int64(len(content)), time.Now())
	return err
}

func (s *PostgresStore) Get(ctx context.Context, sessionID, path string) ([]byte, error) {
	sid, p, err := splitKey(sessionID, path)
	if err != nil {
		return nil, err
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	var content []byte
	err = s.db.QueryRowContext(ctx, `SELECT content FROM deck_artifacts WHERE session_id=$1 AND path=$2`, sid, p).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return content, err
}

func (s *PostgresStore) List(ctx context.Context, sessionID string) ([]string, error) {
	sid, err := cleanSession(sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT path FROM deck_artifacts WHERE session_id=$1 ORDER BY path`, sid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	paths := []string{}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// GetURL is unsupported; content lives in the table.
func (s *PostgresStore) GetURL(context.Context, string, string) (string, error) { return "", nil }

func splitKey(sessionID, path string) (string, string, error) {
	sid, err := cleanSession(sessionID)
	if err != nil {
		return "", "", err
	}
	p, err := cleanPath(path)
	if err != nil {
		return "", "", err
	}
	return sid, p, nil
}
