package svc

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	appcontainer "github.com/tyura/websocket-clients/internal/application/container"
	"github.com/tyura/websocket-clients/internal/application/port"
	"github.com/tyura/websocket-clients/internal/application/service"
	"github.com/tyura/websocket-clients/internal/application/usecase/ingest"
	"github.com/tyura/websocket-clients/internal/domain"
	"github.com/tyura/websocket-clients/internal/infrastructure/aggregator"
	"github.com/tyura/websocket-clients/internal/infrastructure/config"
	infracontainer "github.com/tyura/websocket-clients/internal/infrastructure/container"
	"github.com/tyura/websocket-clients/internal/infrastructure/exchange"
	"github.com/tyura/websocket-clients/internal/infrastructure/exchange/mexc"
	"github.com/tyura/websocket-clients/internal/infrastructure/websocket"
	"github.com/tyura/websocket-clients/internal/interfaces/console"
)

type ServiceContext struct {
	Ctx    context.Context
	Config *config.Config

	// 基础设施层
	infra   *infracontainer.Container
	app     *appcontainer.Container
	dialer  port.Dialer
	source  port.SymbolSource
	buffer  *aggregator.Buffer
	symbols []string
	shards  []domain.Shard

	// 输出端口
	Reporter port.Reporter
}

// New 创建并初始化 ServiceContext
// 这是应用启动的唯一入口点，所有依赖初始化都在这里完成
func New(ctx context.Context, cfg *config.Config) (*ServiceContext, error) {
	infra, err := infracontainer.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageInitFailed, err)
	}

	sc := &ServiceContext{
		Ctx:    ctx,
		Config: cfg,
		infra:  infra,
		app:    appcontainer.New(infra.Repository()),
		dialer: websocket.NewDialer(websocket.Options{
			HandshakeTimeout:  cfg.ConnectTimeout(),
			WriteTimeout:      cfg.WriteTimeout(),
			ReadTimeout:       cfg.ReadTimeout(),
			EnableCompression: cfg.Session.EnableCompression,
			BufferSize:        cfg.Session.BufferSize,
		}),
		source:   mexc.NewRESTClient(cfg.Exchange.RESTURL, cfg.Exchange.TickerPath, cfg.RESTTimeout()),
		buffer:   aggregator.New(cfg.Aggregator.Capacity, aggregator.ParsePolicy(cfg.Aggregator.Overflow)),
		Reporter: console.NewReporter(),
	}

	if err := sc.initializeComponents(); err != nil {
		// 清理已初始化的资源
		_ = sc.Close()
		return nil, err
	}
	return sc, nil
}

// initializeComponents 解析交易对并切分分片
func (sc *ServiceContext) initializeComponents() error {
	symbols, err := sc.resolveSymbols()
	if err != nil {
		return err
	}
	if len(symbols) == 0 {
		return ErrNoSymbols
	}

	shards, err := domain.Partition(symbols, sc.Config.Symbols.BatchSize)
	if err != nil {
		return err
	}
	sc.symbols = symbols
	sc.shards = shards

	log.Info().
		Int("symbols", len(symbols)).
		Int("shards", len(shards)).
		Int("batch_size", sc.Config.Symbols.BatchSize).
		Str("run_id", sc.app.ReportService().RunID()).
		Msg("components initialized")
	return nil
}

// resolveSymbols 静态列表优先；否则通过 REST 拉取全部交易对再过滤截断
func (sc *ServiceContext) resolveSymbols() ([]string, error) {
	conv := exchange.NewQuoteConverter(sc.Config.Symbols.Quote)

	if len(sc.Config.Symbols.List) > 0 {
		expanded := exchange.ExpandCoins(sc.Config.Symbols.List, conv)
		return exchange.SelectSymbols(expanded, nil, sc.Config.Symbols.Limit), nil
	}

	all, err := sc.source.FetchSymbols(sc.Ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch %s symbols: %w", sc.source.Name(), err)
	}
	selected := exchange.SelectSymbols(all, conv, sc.Config.Symbols.Limit)
	log.Info().
		Str("source", sc.source.Name()).
		Int("listed", len(all)).
		Int("selected", len(selected)).
		Str("quote", conv.Quote()).
		Msg("symbols fetched")
	return selected, nil
}

func (sc *ServiceContext) Symbols() []string { return sc.symbols }

func (sc *ServiceContext) Shards() []domain.Shard { return sc.shards }

func (sc *ServiceContext) Buffer() *aggregator.Buffer { return sc.buffer }

func (sc *ServiceContext) ReportService() *service.ReportService { return sc.app.ReportService() }

func (sc *ServiceContext) Container() *infracontainer.Container { return sc.infra }

// BuildSupervisorDeps 构建 Supervisor 所需的所有依赖
func (sc *ServiceContext) BuildSupervisorDeps() ingest.SupervisorDeps {
	reports := sc.app.ReportService()
	return ingest.SupervisorDeps{
		Shards: sc.shards,
		Session: ingest.SessionConfig{
			URL:            sc.Config.Exchange.WsURL,
			ChannelPrefix:  sc.Config.Exchange.ChannelPrefix,
			PingInterval:   sc.Config.PingInterval(),
			ConnectTimeout: sc.Config.ConnectTimeout(),
			LogMessages:    sc.Config.Session.LogMessages,
		},
		Dialer:   sc.dialer,
		Sink:     sc.buffer,
		Observer: ingest.RecorderObserver(reports),
		Monitor: ingest.MonitorDeps{
			Drainer:   sc.buffer,
			Reporter:  sc.Reporter,
			Recorder:  reports,
			Interval:  sc.Config.MonitorInterval(),
			Formatter: ingest.NewFormatter(true),
		},
	}
}

// Close 关闭 ServiceContext 中的所有资源
func (sc *ServiceContext) Close() error {
	return sc.infra.Close()
}
