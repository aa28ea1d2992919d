package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/tyura/websocket-clients/internal/application/port"
	"github.com/tyura/websocket-clients/internal/domain"
)

const defaultWriteTimeout = 3 * time.Second

// ReportService stamps monitor output and session events with the run id
// and hands them to the repository. Write failures are logged, never
// propagated to the ingest path.
type ReportService struct {
	repo    port.Repository
	runID   string
	timeout time.Duration
}

func NewReportService(repo port.Repository) *ReportService {
	return &ReportService{
		repo:    repo,
		runID:   uuid.NewString(),
		timeout: defaultWriteTimeout,
	}
}

// WithRunID pins the run id, mostly for tests.
func (s *ReportService) WithRunID(id string) *ReportService {
	s.runID = id
	return s
}

func (s *ReportService) RunID() string { return s.runID }

func (s *ReportService) RecordDrain(ctx context.Context, r domain.DrainReport) {
	r.RunID = s.runID
	wctx, cancel := s.writeContext(ctx)
	defer cancel()

	if err := s.repo.InsertDrainReport(wctx, r); err != nil {
		log.Warn().Err(err).Int("count", r.Count).Msg("persist drain report failed")
	}
}

func (s *ReportService) RecordTransition(ctx context.Context, ev domain.SessionEvent) {
	ev.RunID = s.runID
	wctx, cancel := s.writeContext(ctx)
	defer cancel()

	if err := s.repo.InsertSessionEvent(wctx, ev); err != nil {
		log.Warn().
			Err(err).
			Int("shard", ev.ShardID).
			Str("to", ev.To).
			Msg("persist session event failed")
	}
}

// 关闭阶段的状态迁移也要落库，所以不继承上游的取消
func (s *ReportService) writeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
}
