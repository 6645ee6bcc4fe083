// Package sqlstore implements the metadata store on database/sql, with
// SQLite (modernc.org/sqlite) and PostgreSQL (lib/pq) dialects.
package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/tide-ide/tide/internal/logging"
	"github.com/tide-ide/tide/internal/metrics"
	"github.com/tide-ide/tide/pkg/models"
	"github.com/tide-ide/tide/pkg/retry"
)

//go:embed migrations/*.up.sql
var migrations embed.FS

// Dialect selects placeholder syntax and the driver name.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

const (
	stateLogin    = "login"
	stateCourses  = "courses"
	stateDownload = "download_path"
)

// Store is a SQL-backed metadata store.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// OpenSQLite opens a SQLite database file. ":memory:" gives a private
// in-memory database.
func OpenSQLite(ctx context.Context, path string) (*Store, error) {
	inMemory := path == "" || path == ":memory:"
	if inMemory {
		path = ":memory:"
	} else if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if inMemory {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	return finishOpen(ctx, db, SQLite)
}

// OpenPostgres connects to PostgreSQL, retrying while the server comes up.
func OpenPostgres(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	cfg := retry.DefaultConfig()
	cfg.MaxAttempts = 5
	cfg.InitialWait = 500 * time.Millisecond
	cfg.OnRetry = func(attempt int, wait time.Duration, err error) {
		logging.Warn("database not ready, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err))
	}
	if err := retry.Do(ctx, cfg, func() error {
		return retry.Retryable(db.PingContext(ctx))
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return finishOpen(ctx, db, Postgres)
}

func finishOpen(ctx context.Context, db *sql.DB, dialect Dialect) (*Store, error) {
	s := &Store{db: db, dialect: dialect}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate runs the embedded *.up.sql files in name order. Every
// statement is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	files, err := fs.Glob(migrations, "migrations/*.up.sql")
	if err != nil {
		return fmt.Errorf("glob migrations: %w", err)
	}
	sort.Strings(files)

	for _, f := range files {
		logging.Debug("running migration", zap.String("file", filepath.Base(f)))
		content, err := migrations.ReadFile(f)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", f, err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("exec migration %s: %w", f, err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying connection pool.
func (s *Store) DB() *sql.DB {
	return s.db
}

// UpdateConnectionMetrics publishes pool statistics.
func (s *Store) UpdateConnectionMetrics() {
	metrics.SetDBConnectionsOpen(s.db.Stats().OpenConnections)
}

// rebind turns ? placeholders into $n for PostgreSQL.
func (s *Store) rebind(query string) string {
	if s.dialect != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) observe(op string, start time.Time) {
	metrics.RecordStoreOp(string(s.dialect), op, time.Since(start))
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	return models.Float(n.Float64)
}

func (s *Store) PutTaskMetadata(ctx context.Context, meta models.TaskMetadata) error {
	defer s.observe("put_task", time.Now())
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}
	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO task_metadata (task_set_id, task_id, doc_id, path, max_points, data)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (task_set_id, task_id) DO UPDATE SET
			doc_id = excluded.doc_id,
			path = excluded.path,
			max_points = excluded.max_points,
			data = excluded.data`),
		meta.TaskSetID, meta.TaskID, meta.DocID, meta.Path, nullFloat(meta.MaxPoints), string(data))
	if err != nil {
		return fmt.Errorf("upsert task %s/%s: %w", meta.TaskSetID, meta.TaskID, err)
	}
	return nil
}

func (s *Store) scanTask(row *sql.Row) (models.TaskMetadata, bool, error) {
	var data string
	var meta models.TaskMetadata
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return meta, false, nil
		}
		return meta, false, err
	}
	if err := json.Unmarshal([]byte(data), &meta); err != nil {
		return meta, false, fmt.Errorf("decode task: %w", err)
	}
	return meta, true, nil
}

func (s *Store) TaskMetadata(ctx context.Context, taskSetID, taskID string) (models.TaskMetadata, bool, error) {
	defer s.observe("get_task", time.Now())
	return s.scanTask(s.db.QueryRowContext(ctx,
		s.rebind(`SELECT data FROM task_metadata WHERE task_set_id = ? AND task_id = ?`),
		taskSetID, taskID))
}

func (s *Store) ListTaskMetadata(ctx context.Context) ([]models.TaskMetadata, error) {
	defer s.observe("list_tasks", time.Now())
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM task_metadata ORDER BY task_set_id, task_id`)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var out []models.TaskMetadata
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var meta models.TaskMetadata
		if err := json.Unmarshal([]byte(data), &meta); err != nil {
			return nil, fmt.Errorf("decode task: %w", err)
		}
		out = append(out, meta)
	}
	return out, rows.Err()
}

func (s *Store) PutPoints(ctx context.Context, path, taskID string, rec models.PointsRecord) error {
	defer s.observe("put_points", time.Now())
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO points (path, task_id, current_points) VALUES (?, ?, ?)
		ON CONFLICT (path, task_id) DO UPDATE SET current_points = excluded.current_points`),
		path, taskID, nullFloat(rec.CurrentPoints))
	if err != nil {
		return fmt.Errorf("upsert points %s/%s: %w", path, taskID, err)
	}
	return nil
}

func (s *Store) Points(ctx context.Context, path, taskID string) (models.PointsRecord, bool, error) {
	defer s.observe("get_points", time.Now())
	var cur sql.NullFloat64
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT current_points FROM points WHERE path = ? AND task_id = ?`),
		path, taskID).Scan(&cur)
	if errors.Is(err, sql.ErrNoRows) {
		return models.PointsRecord{}, false, nil
	}
	if err != nil {
		return models.PointsRecord{}, false, err
	}
	return models.PointsRecord{CurrentPoints: floatPtr(cur)}, true, nil
}

func (s *Store) getState(ctx context.Context, key string, v any) error {
	var value string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT value FROM state WHERE key = ?`), key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", key, err)
	}
	return json.Unmarshal([]byte(value), v)
}

func (s *Store) setState(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO state (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value`), key, string(data))
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func (s *Store) LoginData(ctx context.Context) (models.LoginData, error) {
	var data models.LoginData
	err := s.getState(ctx, stateLogin, &data)
	return data, err
}

func (s *Store) SetLoginData(ctx context.Context, data models.LoginData) error {
	return s.setState(ctx, stateLogin, data)
}

func (s *Store) Courses(ctx context.Context) ([]models.Course, error) {
	var courses []models.Course
	err := s.getState(ctx, stateCourses, &courses)
	return courses, err
}

func (s *Store) SetCourses(ctx context.Context, courses []models.Course) error {
	return s.setState(ctx, stateCourses, courses)
}

func (s *Store) DownloadPath(ctx context.Context) (string, error) {
	var p string
	err := s.getState(ctx, stateDownload, &p)
	return p, err
}

func (s *Store) SetDownloadPath(ctx context.Context, path string) error {
	return s.setState(ctx, stateDownload, path)
}

func (s *Store) ClearSession(ctx context.Context) error {
	defer s.observe("clear_session", time.Now())
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM points`); err != nil {
		return fmt.Errorf("clear points: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		s.rebind(`DELETE FROM state WHERE key IN (?, ?)`), stateLogin, stateCourses); err != nil {
		return fmt.Errorf("clear state: %w", err)
	}
	return tx.Commit()
}
