package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps the state blob and the outbox in one SQLite file, so the
// CLI and the worker process can share it.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

var (
	_ StateStore = (*SQLiteStore)(nil)
	_ Outbox     = (*SQLiteStore)(nil)
)

func dsn(path string) string {
	return "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStore) Save(ctx context.Context, blob []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_state (id, body, version, updated_at) VALUES (1, ?, 1, ?)
		ON CONFLICT (id) DO UPDATE SET
			body = excluded.body,
			version = app_state.version + 1,
			updated_at = excluded.updated_at`,
		blob, s.now().Unix())
	if err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context) ([]byte, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, `SELECT body FROM app_state WHERE id = 1`).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoState
	}
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	return blob, nil
}

func (s *SQLiteStore) Enqueue(ctx context.Context, kind ItemKind, payload []byte) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin enqueue: %w", err)
	}
	defer tx.Rollback()

	if kind == KindSnapshot {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM sync_queue WHERE kind = ? AND status = ?`, KindSnapshot, StatusPending)
		if err != nil {
			return 0, fmt.Errorf("drop superseded snapshots: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			slog.DebugContext(ctx, "Superseded pending snapshots", "count", n)
		}
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO sync_queue (kind, payload, status, created_at) VALUES (?, ?, ?, ?)`,
		kind, payload, StatusPending, s.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("enqueue %s: %w", kind, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("enqueue %s: %w", kind, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit enqueue: %w", err)
	}
	return id, nil
}

func (s *SQLiteStore) DequeueBatch(ctx context.Context, limit int) ([]QueueItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, payload, status, attempts, COALESCE(last_error, ''), created_at, processed_at
		FROM sync_queue WHERE status = ? ORDER BY id LIMIT ?`,
		StatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("dequeue batch: %w", err)
	}
	defer rows.Close()

	var items []QueueItem
	for rows.Next() {
		var (
			it        QueueItem
			created   int64
			processed sql.NullInt64
		)
		if err := rows.Scan(&it.ID, &it.Kind, &it.Payload, &it.Status, &it.Attempts, &it.LastError, &created, &processed); err != nil {
			return nil, fmt.Errorf("scan queue item: %w", err)
		}
		it.CreatedAt = time.Unix(created, 0)
		if processed.Valid {
			t := time.Unix(processed.Int64, 0)
			it.ProcessedAt = &t
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *SQLiteStore) setStatus(ctx context.Context, id int64, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, append(args, id)...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %d", ErrItemNotFound, id)
	}
	return nil
}

func (s *SQLiteStore) MarkProcessing(ctx context.Context, id int64) error {
	if err := s.setStatus(ctx, id, `UPDATE sync_queue SET status = ? WHERE id = ?`, StatusProcessing); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}
	return nil
}

func (s *SQLiteStore) MarkComplete(ctx context.Context, id int64) error {
	err := s.setStatus(ctx, id,
		`UPDATE sync_queue SET status = ?, processed_at = ? WHERE id = ?`,
		StatusCompleted, s.now().Unix())
	if err != nil {
		return fmt.Errorf("mark complete: %w", err)
	}
	return nil
}

func (s *SQLiteStore) MarkFailed(ctx context.Context, id int64, reason string) error {
	err := s.setStatus(ctx, id,
		`UPDATE sync_queue SET status = ?, attempts = attempts + 1, last_error = ?, processed_at = ? WHERE id = ?`,
		StatusFailed, reason, s.now().Unix())
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

func (s *SQLiteStore) IncrementAttempt(ctx context.Context, id int64, reason string) error {
	err := s.setStatus(ctx, id,
		`UPDATE sync_queue SET status = ?, attempts = attempts + 1, last_error = ? WHERE id = ?`,
		StatusPending, reason)
	if err != nil {
		return fmt.Errorf("increment attempt: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ResetStaleProcessing(ctx context.Context) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sync_queue SET status = ? WHERE status = ?`, StatusPending, StatusProcessing)
	if err != nil {
		return fmt.Errorf("reset stale processing: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		slog.InfoContext(ctx, "Reset stale processing items", "count", n)
	}
	return nil
}

func (s *SQLiteStore) CleanupCompleted(ctx context.Context, before time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM sync_queue WHERE status = ? AND processed_at < ?`, StatusCompleted, before.Unix())
	if err != nil {
		return fmt.Errorf("cleanup completed: %w", err)
	}
	return nil
}

func (s *SQLiteStore) RetryFailed(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sync_queue SET status = ?, attempts = 0 WHERE status = ?`, StatusPending, StatusFailed)
	if err != nil {
		return fmt.Errorf("retry failed: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Stats(ctx context.Context) (QueueStats, error) {
	var st QueueStats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'processing' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0)
		FROM sync_queue`).Scan(&st.Pending, &st.Processing, &st.Completed, &st.Failed)
	if err != nil {
		return st, fmt.Errorf("queue stats: %w", err)
	}
	return st, nil
}
