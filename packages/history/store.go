package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	// SQLite driver
	_ "github.com/mattn/go-sqlite3"

	"github.com/abdul-hamid-achik/apicase/packages/core/runner"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	started_at  INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	total       INTEGER NOT NULL,
	passed      INTEGER NOT NULL,
	failed      INTEGER NOT NULL,
	skipped     INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS cases (
	run_id      TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	position    INTEGER NOT NULL,
	file        TEXT NOT NULL,
	block       INTEGER NOT NULL,
	name        TEXT NOT NULL,
	method      TEXT NOT NULL,
	url         TEXT NOT NULL,
	expected    INTEGER NOT NULL,
	received    INTEGER NOT NULL,
	passed      INTEGER NOT NULL,
	remarks     TEXT NOT NULL,
	duration_ms INTEGER NOT NULL,
	PRIMARY KEY (run_id, position)
);
CREATE INDEX IF NOT EXISTS runs_started_at ON runs(started_at DESC);
`

// Run is one stored invocation of apicase run.
type Run struct {
	ID        string
	StartedAt time.Time
	Duration  time.Duration
	Total     int
	Passed    int
	Failed    int
	Skipped   int
}

// Case is one stored test case outcome.
type Case struct {
	File     string
	Block    int
	Name     string
	Method   string
	URL      string
	Expected int
	Received int
	Passed   bool
	Remarks  string
	Duration time.Duration
}

// Store persists run history in a SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the history database. path may carry a sqlite:// or
// sqlite: prefix; parent directories are created as needed.
func Open(path string) (*Store, error) {
	dsn := parseConnectionString(path)
	if dsn == "" {
		return nil, fmt.Errorf("history path is empty")
	}
	if dsn != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
			return nil, fmt.Errorf("creating history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dsn+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to history database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating history schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveRun stores the results of every file run under a new run ID and
// returns the ID.
func (s *Store) SaveRun(ctx context.Context, startedAt time.Time, duration time.Duration, runs []*runner.RunResult) (string, error) {
	id := uuid.New().String()

	var total, passed, failed, skipped int
	for _, run := range runs {
		total += len(run.Results)
		passed += run.Passed
		failed += run.Failed
		skipped += run.Skipped
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, duration_ms, total, passed, failed, skipped) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, startedAt.UnixMilli(), duration.Milliseconds(), total, passed, failed, skipped,
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO cases (run_id, position, file, block, name, method, url, expected, received, passed, remarks, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("prepare case insert: %w", err)
	}
	defer stmt.Close()

	position := 0
	for _, run := range runs {
		for _, res := range run.Results {
			remarks := ""
			if res.Remarks != nil {
				remarks = res.Remarks.String()
			}
			_, err := stmt.ExecContext(ctx,
				id, position, run.File, res.Block, res.Name, res.Method, res.URL,
				int(res.Expected), res.Received, res.Passed, remarks, res.Duration.Milliseconds(),
			)
			if err != nil {
				return "", fmt.Errorf("insert case %q: %w", res.Name, err)
			}
			position++
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit run: %w", err)
	}
	return id, nil
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, duration_ms, total, passed, failed, skipped
		 FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r                Run
			startedMs, durMs int64
		)
		if err := rows.Scan(&r.ID, &startedMs, &durMs, &r.Total, &r.Passed, &r.Failed, &r.Skipped); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.StartedAt = time.UnixMilli(startedMs)
		r.Duration = time.Duration(durMs) * time.Millisecond
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return runs, nil
}

// Cases returns the stored case outcomes of a run in execution order.
func (s *Store) Cases(ctx context.Context, runID string) ([]Case, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT file, block, name, method, url, expected, received, passed, remarks, duration_ms
		 FROM cases WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("query cases: %w", err)
	}
	defer rows.Close()

	var cases []Case
	for rows.Next() {
		var (
			c     Case
			durMs int64
		)
		if err := rows.Scan(&c.File, &c.Block, &c.Name, &c.Method, &c.URL, &c.Expected, &c.Received, &c.Passed, &c.Remarks, &durMs); err != nil {
			return nil, fmt.Errorf("failed to scan case: %w", err)
		}
		c.Duration = time.Duration(durMs) * time.Millisecond
		cases = append(cases, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return cases, nil
}

// DefaultPath is ~/.apicase/history.db, or a relative path when the home
// directory is unknown.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".apicase", "history.db")
	}
	return filepath.Join(home, ".apicase", "history.db")
}

func parseConnectionString(connStr string) string {
	connStr = strings.TrimSpace(connStr)
	if strings.HasPrefix(connStr, "sqlite://") {
		return strings.TrimPrefix(connStr, "sqlite://")
	}
	return strings.TrimPrefix(connStr, "sqlite:")
}
