package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tyura/websocket-clients/internal/application/port"
	"github.com/tyura/websocket-clients/internal/domain"
)

type Repo struct {
	db *sql.DB
}

func New(path string) (*Repo, error) {
	// ensure directory exists
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	r := &Repo{db: db}
	if err := r.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repo) Close() error { return r.db.Close() }

func (r *Repo) GetDB() *sql.DB {
	return r.db
}

func (r *Repo) migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS drain_reports (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  run_id TEXT NOT NULL,
  ts_ms INTEGER NOT NULL,
  count INTEGER NOT NULL,
  active INTEGER NOT NULL,
  closed INTEGER NOT NULL,
  failed INTEGER NOT NULL,
  total INTEGER NOT NULL,
  created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_drain_reports_ts ON drain_reports(ts_ms);
CREATE INDEX IF NOT EXISTS idx_drain_reports_run ON drain_reports(run_id);

CREATE TABLE IF NOT EXISTS session_events (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  run_id TEXT NOT NULL,
  shard_id INTEGER NOT NULL,
  from_state TEXT NOT NULL,
  to_state TEXT NOT NULL,
  cause TEXT NOT NULL,
  ts_ms INTEGER NOT NULL,
  created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_session_events_ts ON session_events(ts_ms);
CREATE INDEX IF NOT EXISTS idx_session_events_shard ON session_events(run_id, shard_id);
`)
	return err
}

func (r *Repo) InsertDrainReport(ctx context.Context, rep domain.DrainReport) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO drain_reports(run_id, ts_ms, count, active, closed, failed, total, created_at)
VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		rep.RunID, rep.At.UnixMilli(), rep.Count, rep.Active, rep.Closed, rep.Failed, rep.Total, time.Now().UnixMilli())
	return err
}

func (r *Repo) InsertSessionEvent(ctx context.Context, ev domain.SessionEvent) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO session_events(run_id, shard_id, from_state, to_state, cause, ts_ms, created_at)
VALUES(?, ?, ?, ?, ?, ?, ?)`,
		ev.RunID, ev.ShardID, ev.From, ev.To, ev.Cause, ev.At.UnixMilli(), time.Now().UnixMilli())
	return err
}

// ListDrainReports returns the latest reports of a run, newest first.
func (r *Repo) ListDrainReports(ctx context.Context, runID string, limit int) ([]domain.DrainReport, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT run_id, ts_ms, count, active, closed, failed, total
FROM drain_reports WHERE run_id = ? ORDER BY id DESC LIMIT ?`, runID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.DrainReport
	for rows.Next() {
		var rep domain.DrainReport
		var ts int64
		if err := rows.Scan(&rep.RunID, &ts, &rep.Count, &rep.Active, &rep.Closed, &rep.Failed, &rep.Total); err != nil {
			return nil, err
		}
		rep.At = time.UnixMilli(ts)
		out = append(out, rep)
	}
	return out, rows.Err()
}

// ListSessionEvents returns a shard's transitions in insertion order.
func (r *Repo) ListSessionEvents(ctx context.Context, runID string, shardID int) ([]domain.SessionEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT run_id, shard_id, from_state, to_state, cause, ts_ms
FROM session_events WHERE run_id = ? AND shard_id = ? ORDER BY id ASC`, runID, shardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.SessionEvent
	for rows.Next() {
		var ev domain.SessionEvent
		var ts int64
		if err := rows.Scan(&ev.RunID, &ev.ShardID, &ev.From, &ev.To, &ev.Cause, &ts); err != nil {
			return nil, err
		}
		ev.At = time.UnixMilli(ts)
		out = append(out, ev)
	}
	return out, rows.Err()
}

var _ port.Repository = (*Repo)(nil)
