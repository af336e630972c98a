package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/c360studio/semfolio/engine"
	_ "modernc.org/sqlite"
)

// SQLite stores checkpoints in a single table keyed by (thread_id, seq).
// Versions equal sequence numbers.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens the database at path, creating the schema if needed.
// Use ":memory:" for a private in-memory database.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection serialises writers and keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS checkpoints (
		thread_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		status TEXT NOT NULL,
		node TEXT,
		body TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		PRIMARY KEY (thread_id, seq)
	);

	CREATE INDEX IF NOT EXISTS idx_checkpoints_status ON checkpoints(status);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("migrate checkpoints: %w", err)
	}
	return nil
}

// Latest implements engine.Store.
func (s *SQLite) Latest(ctx context.Context, threadID string) (*engine.Checkpoint, error) {
	var body string
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM checkpoints WHERE thread_id = ? ORDER BY seq DESC LIMIT 1`,
		threadID,
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, engine.ErrNoCheckpoint
	}
	if err != nil {
		return nil, fmt.Errorf("query latest checkpoint: %w", err)
	}
	return decodeRow(body)
}

// Append implements engine.Store.
func (s *SQLite) Append(ctx context.Context, cp *engine.Checkpoint, expectedVersion uint64) (uint64, error) {
	if uint64(cp.Seq) != expectedVersion+1 {
		return 0, fmt.Errorf("%w: seq %d does not follow version %d", engine.ErrConflict, cp.Seq, expectedVersion)
	}
	body, err := jsonCheckpoint(cp)
	if err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var current uint64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM checkpoints WHERE thread_id = ?`, cp.ThreadID,
	).Scan(&current); err != nil {
		return 0, fmt.Errorf("query version: %w", err)
	}
	if current != expectedVersion {
		return 0, fmt.Errorf("%w: thread %s at version %d, expected %d",
			engine.ErrConflict, cp.ThreadID, current, expectedVersion)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO checkpoints (thread_id, seq, status, node, body, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		cp.ThreadID, cp.Seq, string(cp.Status), cp.Node, string(body), cp.CreatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return 0, fmt.Errorf("%w: thread %s seq %d", engine.ErrConflict, cp.ThreadID, cp.Seq)
		}
		return 0, fmt.Errorf("insert checkpoint: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return uint64(cp.Seq), nil
}

// History implements engine.Store.
func (s *SQLite) History(ctx context.Context, threadID string) ([]*engine.Checkpoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT body FROM checkpoints WHERE thread_id = ? ORDER BY seq ASC`, threadID)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []*engine.Checkpoint
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		cp, err := decodeRow(body)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, rows.Err()
}

// Paused lists threads whose latest checkpoint is paused.
func (s *SQLite) Paused(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.thread_id FROM checkpoints c
		JOIN (SELECT thread_id, MAX(seq) AS seq FROM checkpoints GROUP BY thread_id) m
		  ON c.thread_id = m.thread_id AND c.seq = m.seq
		WHERE c.status = ?
		ORDER BY c.thread_id`, string(engine.StatusPaused))
	if err != nil {
		return nil, fmt.Errorf("query paused threads: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func decodeRow(body string) (*engine.Checkpoint, error) {
	cp, err := decodeCheckpoint([]byte(body))
	if err != nil {
		return nil, err
	}
	cp.Version = uint64(cp.Seq)
	return cp, nil
}
