package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/drover-dev/drover/internal/domain"
	"github.com/drover-dev/drover/internal/ports"
	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}

	// Enable WAL mode for concurrent read/write access
	db.Exec("PRAGMA journal_mode=WAL")

	// Wait up to 5 seconds when the database is locked instead of failing immediately
	db.Exec("PRAGMA busy_timeout=5000")

	// Serialize all Go-side access through a single connection so SQLite
	// never sees concurrent writers (WAL + busy_timeout as defense-in-depth).
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			agent_name TEXT NOT NULL,
			state TEXT NOT NULL,
			step_index INTEGER NOT NULL DEFAULT 0,
			turns INTEGER NOT NULL DEFAULT 0,
			chars INTEGER NOT NULL DEFAULT 0,
			started_at TEXT,
			completed_at TEXT,
			workspace_dir TEXT NOT NULL DEFAULT '',
			error_message TEXT NOT NULL DEFAULT ''
		);
		CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			source TEXT NOT NULL,
			kind TEXT NOT NULL,
			message TEXT,
			payload TEXT,
			created_at TEXT NOT NULL,
			FOREIGN KEY (run_id) REFERENCES runs(id)
		);
		CREATE INDEX IF NOT EXISTS idx_events_run_seq ON events(run_id, seq);
	`)
	return err
}

func (s *Store) CreateRun(ctx context.Context, run *domain.Run) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, agent_name, state, step_index, turns, chars, started_at, completed_at, workspace_dir, error_message)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.AgentName, string(run.State), run.StepIndex, run.Turns, run.Chars,
		formatTime(run.StartedAt), formatTime(run.CompletedAt), run.WorkspaceDir, run.ErrorMessage,
	)
	return err
}

func (s *Store) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, agent_name, state, step_index, turns, chars, started_at, completed_at, workspace_dir, error_message
		 FROM runs WHERE id = ?`, id)

	run, err := scanRun(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %q not found", id)
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

func (s *Store) UpdateRun(ctx context.Context, run *domain.Run) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET state = ?, step_index = ?, turns = ?, chars = ?, started_at = ?, completed_at = ?, workspace_dir = ?, error_message = ?
		 WHERE id = ?`,
		string(run.State), run.StepIndex, run.Turns, run.Chars,
		formatTime(run.StartedAt), formatTime(run.CompletedAt), run.WorkspaceDir, run.ErrorMessage,
		run.ID,
	)
	return err
}

func (s *Store) DeleteRun(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE run_id = ?`, id)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	return err
}

func (s *Store) ListRuns(ctx context.Context) ([]*domain.Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, agent_name, state, step_index, turns, chars, started_at, completed_at, workspace_dir, error_message
		 FROM runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*domain.Run
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func scanRun(scan func(...any) error) (*domain.Run, error) {
	run := &domain.Run{}
	var startedAt, completedAt string
	err := scan(&run.ID, &run.AgentName, &run.State, &run.StepIndex, &run.Turns, &run.Chars,
		&startedAt, &completedAt, &run.WorkspaceDir, &run.ErrorMessage)
	if err != nil {
		return nil, err
	}
	run.StartedAt = parseTime(startedAt)
	run.CompletedAt = parseTime(completedAt)
	return run, nil
}

func (s *Store) AppendEvent(ctx context.Context, event *ports.Event) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (run_id, seq, source, kind, message, payload, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		event.RunID, event.Seq, event.Source, event.Kind, event.Message, event.Payload,
		formatTime(event.CreatedAt),
	)
	return err
}

func (s *Store) ListEvents(ctx context.Context, runID string) ([]*ports.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, seq, source, kind, COALESCE(message,''), COALESCE(payload,''), created_at
		 FROM events WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEvents(rows)
}

func (s *Store) SearchEvents(ctx context.Context, query string, limit int) ([]*ports.Event, error) {
	if limit <= 0 {
		limit = 10
	}
	pattern := "%" + query + "%"
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, seq, source, kind, COALESCE(message,''), COALESCE(payload,''), created_at
		 FROM events WHERE message LIKE ? OR payload LIKE ?
		 ORDER BY id DESC LIMIT ?`, pattern, pattern, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEvents(rows)
}

func collectEvents(rows *sql.Rows) ([]*ports.Event, error) {
	var events []*ports.Event
	for rows.Next() {
		e := &ports.Event{}
		var createdAt string
		if err := rows.Scan(&e.RunID, &e.Seq, &e.Source, &e.Kind, &e.Message, &e.Payload, &createdAt); err != nil {
			return nil, err
		}
		e.CreatedAt = parseTime(createdAt)
		events = append(events, e)
	}
	return events, rows.Err()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
