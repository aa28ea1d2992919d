package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/tyura/websocket-clients/internal/application/usecase/ingest"
	"github.com/tyura/websocket-clients/internal/infrastructure/config"
	"github.com/tyura/websocket-clients/internal/infrastructure/logger"
	"github.com/tyura/websocket-clients/internal/infrastructure/svc"
)

func main() {
	logger.Setup("info")

	configPath := flag.String("config", "configs/config.toml", "path to config.toml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if errors.Is(err, os.ErrNotExist) {
		log.Warn().Str("config", *configPath).Msg("config not found, using defaults")
		cfg, err = config.Default(), nil
	}
	if err != nil {
		log.Fatal().Err(err).Str("config", *configPath).Msg("load config failed")
	}
	logger.Setup(cfg.App.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sc, err := svc.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("service context initialization failed")
	}
	defer sc.Close()

	sup := ingest.NewSupervisor(sc.BuildSupervisorDeps())

	log.Info().
		Str("config", *configPath).
		Str("ws_url", cfg.Exchange.WsURL).
		Int("symbols", len(sc.Symbols())).
		Int("sessions", len(sc.Shards())).
		Int("monitor_interval_sec", cfg.App.MonitorIntervalSec).
		Str("run_id", sc.ReportService().RunID()).
		Msg("mexcws started")

	if err := sup.Run(ctx); err != nil {
		log.Error().Err(err).Msg("supervisor exited")
	}

	st := sc.Buffer().Stats()
	log.Info().
		Int64("appended", st.TotalAppended).
		Int64("drained", st.TotalDrained).
		Int64("dropped", st.TotalDropped).
		Msg("mexcws stopped")
}
