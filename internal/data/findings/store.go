package findings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"chunkmap/internal/engine/calls"
	"chunkmap/internal/shared/jsonutil"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const (
	driverName  = "sqlite"
	maxAttempts = 5
)

var ErrNoRuns = errors.New("no runs recorded")

type Store struct {
	path string
	db   *sql.DB
	mu   sync.Mutex
}

// Open creates or opens the database at path. busyTimeout bounds how long a
// statement waits on a lock held by another process.
func Open(path string, busyTimeout time.Duration) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("findings path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("findings path %q is a directory, expected file", cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create findings directory %q: %w", dir, err)
		}
	}

	if busyTimeout <= 0 {
		busyTimeout = 2 * time.Second
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cleanPath, busyTimeout.Milliseconds())
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite findings %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite findings %q: %w", cleanPath, err)
	}
	if err := EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize sqlite schema %q: %w", cleanPath, err)
	}

	return &Store{path: cleanPath, db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// SaveRun stores run and its calls in one transaction. An empty run ID is
// filled with a new UUID, which is returned.
func (s *Store) SaveRun(ctx context.Context, run Run, found []calls.DiscoveredAPICall) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if run.SchemaVersion == 0 {
		run.SchemaVersion = SchemaVersion
	}
	run.CallCount = len(found)

	rows := make([][]any, 0, len(found))
	for i, c := range found {
		headers := c.Headers
		if headers == nil {
			headers = map[string]string{}
		}
		headersJSON, err := jsonutil.Marshal(headers)
		if err != nil {
			return "", fmt.Errorf("encode headers of call %d: %w", i, err)
		}
		bodyJSON, err := jsonutil.Marshal(c.Body)
		if err != nil {
			return "", fmt.Errorf("encode body of call %d: %w", i, err)
		}
		rows = append(rows, []any{
			run.ID, i, c.URL, c.Method, string(headersJSON), string(bodyJSON),
			c.ChunkID, c.FunctionFile, c.FunctionFileLine, c.CalledFrom, c.Source,
		})
	}

	err := s.withRetry("save run", func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO runs (id, schema_version, dir, started_at_utc, duration_ms, chunk_count, fetch_chunks, axios_clients, call_count)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  dir=excluded.dir,
  started_at_utc=excluded.started_at_utc,
  duration_ms=excluded.duration_ms,
  chunk_count=excluded.chunk_count,
  fetch_chunks=excluded.fetch_chunks,
  axios_clients=excluded.axios_clients,
  call_count=excluded.call_count
`,
			run.ID, run.SchemaVersion, run.Dir, run.StartedAt.UTC().Format(time.RFC3339Nano),
			run.Duration.Milliseconds(), run.ChunkCount, run.FetchChunks, run.AxiosClients, run.CallCount,
		); err != nil {
			_ = tx.Rollback()
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM calls WHERE run_id = ?`, run.ID); err != nil {
			_ = tx.Rollback()
			return err
		}
		stmt, err := tx.PrepareContext(ctx, `
INSERT INTO calls (run_id, seq, url, method, headers_json, body_json, chunk_id, function_file, function_file_line, called_from, source)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		defer stmt.Close()
		for _, args := range rows {
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				_ = tx.Rollback()
				return err
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return "", err
	}
	return run.ID, nil
}

// LatestRun returns the most recent run, or ErrNoRuns.
func (s *Store) LatestRun(ctx context.Context) (Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		run   Run
		tsRaw string
		ms    int64
	)
	err := s.withRetry("load latest run", func() error {
		return s.db.QueryRowContext(ctx, `
SELECT id, schema_version, dir, started_at_utc, duration_ms, chunk_count, fetch_chunks, axios_clients, call_count
FROM runs
ORDER BY started_at_utc DESC, created_at_utc DESC
LIMIT 1`).Scan(
			&run.ID, &run.SchemaVersion, &run.Dir, &tsRaw, &ms,
			&run.ChunkCount, &run.FetchChunks, &run.AxiosClients, &run.CallCount,
		)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNoRuns
	}
	if err != nil {
		return Run{}, err
	}
	ts, err := time.Parse(time.RFC3339Nano, tsRaw)
	if err != nil {
		return Run{}, fmt.Errorf("parse run timestamp %q: %w", tsRaw, err)
	}
	run.StartedAt = ts.UTC()
	run.Duration = time.Duration(ms) * time.Millisecond
	return run, nil
}

// ListCalls returns the calls of runID in discovery order.
func (s *Store) ListCalls(ctx context.Context, runID string) ([]calls.DiscoveredAPICall, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rows *sql.Rows
	err := s.withRetry("list calls", func() error {
		var qErr error
		rows, qErr = s.db.QueryContext(ctx, `
SELECT url, method, headers_json, body_json, chunk_id, function_file, function_file_line, called_from, source
FROM calls
WHERE run_id = ?
ORDER BY seq ASC`, runID)
		return qErr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]calls.DiscoveredAPICall, 0)
	for rows.Next() {
		var (
			c           calls.DiscoveredAPICall
			headersJSON string
			bodyJSON    string
		)
		if err := rows.Scan(&c.URL, &c.Method, &headersJSON, &bodyJSON, &c.ChunkID, &c.FunctionFile, &c.FunctionFileLine, &c.CalledFrom, &c.Source); err != nil {
			return nil, fmt.Errorf("scan call row: %w", err)
		}
		if err := jsonutil.Unmarshal([]byte(headersJSON), &c.Headers); err != nil {
			return nil, fmt.Errorf("decode headers: %w", err)
		}
		if err := jsonutil.Unmarshal([]byte(bodyJSON), &c.Body); err != nil {
			return nil, fmt.Errorf("decode body: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate call rows: %w", err)
	}
	return out, nil
}

func (s *Store) withRetry(op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isLockError(err) || attempt == maxAttempts {
			break
		}
		time.Sleep(time.Duration(attempt*25) * time.Millisecond)
	}
	return fmt.Errorf("%s: %w", op, lastErr)
}

func isLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}

func IsCorruptError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "malformed") || strings.Contains(msg, "not a database") || errors.Is(err, os.ErrInvalid)
}
