package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Compile-time check that SQLiteRepository implements Repository.
var _ Repository = (*SQLiteRepository)(nil)

const schema = `CREATE TABLE IF NOT EXISTS task_records(
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	status TEXT NOT NULL,
	targets INTEGER NOT NULL,
	processed INTEGER NOT NULL,
	failed INTEGER NOT NULL,
	outputs TEXT NOT NULL,
	error TEXT NOT NULL,
	log TEXT NOT NULL,
	started_at INTEGER NOT NULL,
	finished_at INTEGER NOT NULL
);`

// SQLiteRepository stores records in a SQLite database.
type SQLiteRepository struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(path string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create history schema: %w", err)
	}
	return &SQLiteRepository{db: db}, nil
}

// Save upserts rec.
func (r *SQLiteRepository) Save(ctx context.Context, rec *Record) error {
	c := rec.Clone()
	outputs, err := json.Marshal(c.Outputs)
	if err != nil {
		return fmt.Errorf("encode outputs: %w", err)
	}
	logLines, err := json.Marshal(c.Log)
	if err != nil {
		return fmt.Errorf("encode log: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO task_records
		(id, kind, status, targets, processed, failed, outputs, error, log, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Kind, string(c.Status), c.Targets, c.Processed, c.Failed,
		string(outputs), c.Error, string(logLines), unixNano(c.StartedAt), unixNano(c.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("save record %s: %w", c.ID, err)
	}
	return nil
}

// FindByID loads one record.
func (r *SQLiteRepository) FindByID(ctx context.Context, id string) (*Record, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, kind, status, targets, processed, failed, outputs, error, log, started_at, finished_at
		FROM task_records WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	return rec, err
}

// List returns records, most recently started first.
func (r *SQLiteRepository) List(ctx context.Context, limit int) ([]*Record, error) {
	query := `SELECT id, kind, status, targets, processed, failed, outputs, error, log, started_at, finished_at
		FROM task_records ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close closes the database.
func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(s rowScanner) (*Record, error) {
	var (
		rec               Record
		status            string
		outputs, logLines string
		started, finished int64
	)
	err := s.Scan(&rec.ID, &rec.Kind, &status, &rec.Targets, &rec.Processed, &rec.Failed,
		&outputs, &rec.Error, &logLines, &started, &finished)
	if err != nil {
		return nil, err
	}
	rec.Status = Status(status)
	if err := json.Unmarshal([]byte(outputs), &rec.Outputs); err != nil {
		return nil, fmt.Errorf("decode outputs: %w", err)
	}
	if err := json.Unmarshal([]byte(logLines), &rec.Log); err != nil {
		return nil, fmt.Errorf("decode log: %w", err)
	}
	rec.StartedAt = fromUnixNano(started)
	rec.FinishedAt = fromUnixNano(finished)
	return &rec, nil
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}
