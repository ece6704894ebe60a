// Package storage persists task records in SQLite. It implements the
// scheduler's Store contract: reads are immediately consistent, so the
// EXECUTING count derived here is safe to use for admission decisions.
package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"playsched/internal/task"
	logx "playsched/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

var ErrNotFound = errors.New("task not found")

// Config configures the SQLite store.
type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means driver default
}

type SQLite struct {
	db  *sql.DB
	log logx.Logger
}

func Open(cfg Config, log logx.Logger) (*SQLite, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	s := &SQLite{db: db, log: log}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

const taskColumns = `id, enabled, start_minute, end_minute, repeat_days, all_day, state, current_start_ms, current_end_ms`

func scanTask(row interface{ Scan(...any) error }) (task.Task, error) {
	var (
		out             task.Task
		enabled, allDay int
		repeatDays      int
		state           string
		startMS, endMS  int64
	)
	err := row.Scan(&out.ID, &enabled, &out.StartMinute, &out.EndMinute,
		&repeatDays, &allDay, &state, &startMS, &endMS)
	if err != nil {
		return task.Task{}, err
	}
	out.Enabled = enabled != 0
	out.AllDay = allDay != 0
	out.RepeatDays = task.DayMask(repeatDays)
	out.State = task.ExecutionState(state)
	out.CurrentStart = fromMillis(startMS)
	out.CurrentEnd = fromMillis(endMS)
	return out, nil
}

func (s *SQLite) Task(ctx context.Context, id int64) (task.Task, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return task.Task{}, fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	return t, err
}

func (s *SQLite) EnabledTasks(ctx context.Context) ([]task.Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE enabled = 1 ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []task.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLite) UpdateExecutionState(ctx context.Context, id int64, st task.ExecutionState, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET state = ?, updated_at_ms = ? WHERE id = ?`,
		string(st), at.UnixMilli(), id)
	if err != nil {
		return err
	}
	return requireRow(res, id)
}

func (s *SQLite) UpdateExecutionWindow(ctx context.Context, id int64, start, end time.Time, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET current_start_ms = ?, current_end_ms = ?, updated_at_ms = ? WHERE id = ?`,
		toMillis(start), toMillis(end), at.UnixMilli(), id)
	if err != nil {
		return err
	}
	return requireRow(res, id)
}

func (s *SQLite) DisableTask(ctx context.Context, id int64, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET enabled = 0, updated_at_ms = ? WHERE id = ?`,
		at.UnixMilli(), id)
	if err != nil {
		return err
	}
	return requireRow(res, id)
}

func (s *SQLite) CountByState(ctx context.Context, st task.ExecutionState) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tasks WHERE state = ? AND enabled = 1`, string(st)).Scan(&n)
	return n, err
}

// UpsertTask writes the full record. The surrounding app owns task creation
// and editing; the scheduler itself only goes through the Update* methods.
func (s *SQLite) UpsertTask(ctx context.Context, t task.Task, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks(id, enabled, start_minute, end_minute, repeat_days, all_day, state, current_start_ms, current_end_ms, updated_at_ms)
		 VALUES(?,?,?,?,?,?,?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET
		   enabled=excluded.enabled, start_minute=excluded.start_minute,
		   end_minute=excluded.end_minute, repeat_days=excluded.repeat_days,
		   all_day=excluded.all_day, state=excluded.state,
		   current_start_ms=excluded.current_start_ms,
		   current_end_ms=excluded.current_end_ms,
		   updated_at_ms=excluded.updated_at_ms`,
		t.ID, boolInt(t.Enabled), t.StartMinute, t.EndMinute, int(t.RepeatDays),
		boolInt(t.AllDay), string(t.State), toMillis(t.CurrentStart), toMillis(t.CurrentEnd),
		at.UnixMilli())
	return err
}

func requireRow(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// toMillis maps the zero time to 0 ("unset") and back.
func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
