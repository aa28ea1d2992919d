package redis

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/tyura/websocket-clients/internal/application/port"
	"github.com/tyura/websocket-clients/internal/domain"

	"github.com/redis/go-redis/v9"
)

type Repo struct {
	rdb           *redis.Client
	prefix        string
	ttl           time.Duration
	keyLatest     string // prefix + ":latest"
	reportStream  string
	reportChannel string
	eventStream   string
}

type LatestReport struct {
	RunID  string `json:"run_id"`
	Count  int    `json:"count"`
	Active int    `json:"active"`
	Closed int    `json:"closed"`
	Failed int    `json:"failed"`
	Total  int    `json:"total"`
	Ts     int64  `json:"ts"`
}

func New(rdb *redis.Client, prefix string, ttl time.Duration, reportStream, reportChannel, eventStream string) *Repo {
	if strings.TrimSpace(reportStream) == "" {
		reportStream = prefix + ":reports"
	}
	if strings.TrimSpace(reportChannel) == "" {
		reportChannel = prefix + ":reports:pub"
	}
	if strings.TrimSpace(eventStream) == "" {
		eventStream = prefix + ":events"
	}
	return &Repo{
		rdb:           rdb,
		prefix:        prefix,
		ttl:           ttl,
		keyLatest:     prefix + ":latest",
		reportStream:  reportStream,
		reportChannel: reportChannel,
		eventStream:   eventStream,
	}
}

func (r *Repo) InsertDrainReport(ctx context.Context, rep domain.DrainReport) error {
	lr := LatestReport{
		RunID:  rep.RunID,
		Count:  rep.Count,
		Active: rep.Active,
		Closed: rep.Closed,
		Failed: rep.Failed,
		Total:  rep.Total,
		Ts:     rep.At.UnixMilli(),
	}
	b, _ := json.Marshal(lr)

	// 1) Hash: field = run id -> json, plus XADD <stream>
	pipe := r.rdb.Pipeline()
	pipe.HSet(ctx, r.keyLatest, rep.RunID, string(b))
	if r.ttl > 0 {
		pipe.Expire(ctx, r.keyLatest, r.ttl)
	}
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: r.reportStream,
		Values: map[string]any{
			"run_id": rep.RunID,
			"ts_ms":  lr.Ts,
			"count":  rep.Count,
			"active": rep.Active,
			"closed": rep.Closed,
			"failed": rep.Failed,
		},
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	// 2) PubSub: PUBLISH <channel> json
	return r.rdb.Publish(ctx, r.reportChannel, string(b)).Err()
}

func (r *Repo) InsertSessionEvent(ctx context.Context, ev domain.SessionEvent) error {
	return r.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: r.eventStream,
		Values: map[string]any{
			"run_id": ev.RunID,
			"shard":  strconv.Itoa(ev.ShardID),
			"from":   ev.From,
			"to":     ev.To,
			"cause":  ev.Cause,
			"ts_ms":  ev.At.UnixMilli(),
		},
	}).Err()
}

// Close is a no-op; the client is owned by the container.
func (r *Repo) Close() error { return nil }

var _ port.Repository = (*Repo)(nil)
