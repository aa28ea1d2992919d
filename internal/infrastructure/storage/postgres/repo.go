package postgres

import (
	"context"
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/tyura/websocket-clients/internal/application/port"
	"github.com/tyura/websocket-clients/internal/domain"
)

type Repo struct {
	db *sql.DB
}

func New(dsn string) (*Repo, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	r := &Repo{db: db}
	if err := r.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repo) Close() error { return r.db.Close() }

func (r *Repo) migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS drain_reports (
  id BIGSERIAL PRIMARY KEY,
  run_id UUID NOT NULL,
  ts_ms BIGINT NOT NULL,
  count INTEGER NOT NULL,
  active INTEGER NOT NULL,
  closed INTEGER NOT NULL,
  failed INTEGER NOT NULL,
  total INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_drain_reports_ts ON drain_reports(ts_ms);

CREATE TABLE IF NOT EXISTS session_events (
  id BIGSERIAL PRIMARY KEY,
  run_id UUID NOT NULL,
  shard_id INTEGER NOT NULL,
  from_state TEXT NOT NULL,
  to_state TEXT NOT NULL,
  cause TEXT NOT NULL,
  ts_ms BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_session_events_shard ON session_events(run_id, shard_id);
`)
	return err
}

func (r *Repo) InsertDrainReport(ctx context.Context, rep domain.DrainReport) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO drain_reports(run_id, ts_ms, count, active, closed, failed, total) VALUES($1, $2, $3, $4, $5, $6, $7)`,
		rep.RunID, rep.At.UnixMilli(), rep.Count, rep.Active, rep.Closed, rep.Failed, rep.Total)
	return err
}

func (r *Repo) InsertSessionEvent(ctx context.Context, ev domain.SessionEvent) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO session_events(run_id, shard_id, from_state, to_state, cause, ts_ms) VALUES($1, $2, $3, $4, $5, $6)`,
		ev.RunID, ev.ShardID, ev.From, ev.To, ev.Cause, ev.At.UnixMilli())
	return err
}

var _ port.Repository = (*Repo)(nil)
