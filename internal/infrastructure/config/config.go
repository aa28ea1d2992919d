package config

import (
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/tyura/websocket-clients/internal/domain"
)

const (
	DefaultRESTURL       = "https://api.mexc.com"
	DefaultTickerPath    = "/api/v3/ticker/bookTicker"
	DefaultWsURL         = "wss://wbs.mexc.com/ws"
	DefaultChannelPrefix = "spot@public.deals.v3.api@"

	DefaultBatchSize     = 15
	DefaultSymbolLimit   = 100
	DefaultPingSec       = 3
	DefaultConnectSec    = 10
	DefaultWriteSec      = 5
	DefaultMonitorSec    = 5
	DefaultRESTSec       = 10
	DefaultSessionBuffer = 256

	OverflowDrop  = "drop"
	OverflowBlock = "block"
)

type Config struct {
	App struct {
		LogLevel           string `toml:"log_level"`
		MonitorIntervalSec int    `toml:"monitor_interval_sec"`
	} `toml:"app"`

	Exchange struct {
		RESTURL        string `toml:"rest_url"`
		TickerPath     string `toml:"ticker_path"`
		WsURL          string `toml:"ws_url"`
		ChannelPrefix  string `toml:"channel_prefix"`
		RESTTimeoutSec int    `toml:"rest_timeout_sec"`
	} `toml:"exchange"`

	Symbols struct {
		List      []string `toml:"list"`  // static universe; REST listing is skipped when set
		Quote     string   `toml:"quote"` // e.g. USDT; empty keeps every symbol
		Limit     int      `toml:"limit"` // defaults to 100 when listing over REST
		BatchSize int      `toml:"batch_size"`
	} `toml:"symbols"`

	Session struct {
		PingIntervalSec   int  `toml:"ping_interval_sec"`
		ConnectTimeoutSec int  `toml:"connect_timeout_sec"`
		WriteTimeoutSec   int  `toml:"write_timeout_sec"`
		ReadTimeoutSec    int  `toml:"read_timeout_sec"` // 0 = no read deadline
		EnableCompression bool `toml:"enable_compression"`
		BufferSize        int  `toml:"buffer_size"`
		LogMessages       bool `toml:"log_messages"`
	} `toml:"session"`

	Aggregator struct {
		Capacity int    `toml:"capacity"` // 0 = unbounded
		Overflow string `toml:"overflow"` // drop | block
	} `toml:"aggregator"`

	Storage struct {
		Enabled bool `toml:"enabled"`

		Redis struct {
			Enabled       bool   `toml:"enabled"`
			Addr          string `toml:"addr"`
			Password      string `toml:"password"`
			DB            int    `toml:"db"`
			Prefix        string `toml:"prefix"`
			TTLSeconds    int    `toml:"ttl_seconds"`
			ReportStream  string `toml:"report_stream"`
			ReportChannel string `toml:"report_channel"`
			EventStream   string `toml:"event_stream"`
		} `toml:"redis"`

		SQLite struct {
			Enabled bool   `toml:"enabled"`
			Path    string `toml:"path"`
		} `toml:"sqlite"`

		Postgres struct {
			Enabled bool   `toml:"enabled"`
			DSN     string `toml:"dsn"`
		} `toml:"postgres"`
	} `toml:"storage"`
}

func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a config with every default applied, as if loaded from an
// empty file.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

func applyDefaults(cfg *Config) {
	if cfg.App.LogLevel == "" {
		cfg.App.LogLevel = "info"
	}
	if cfg.App.MonitorIntervalSec <= 0 {
		cfg.App.MonitorIntervalSec = DefaultMonitorSec
	}

	if cfg.Exchange.RESTURL == "" {
		cfg.Exchange.RESTURL = DefaultRESTURL
	}
	if cfg.Exchange.TickerPath == "" {
		cfg.Exchange.TickerPath = DefaultTickerPath
	}
	if cfg.Exchange.WsURL == "" {
		cfg.Exchange.WsURL = DefaultWsURL
	}
	if cfg.Exchange.ChannelPrefix == "" {
		cfg.Exchange.ChannelPrefix = DefaultChannelPrefix
	}
	if cfg.Exchange.RESTTimeoutSec <= 0 {
		cfg.Exchange.RESTTimeoutSec = DefaultRESTSec
	}

	// batch_size is validated rather than defaulted when explicitly negative
	if cfg.Symbols.BatchSize == 0 {
		cfg.Symbols.BatchSize = DefaultBatchSize
	}
	if cfg.Symbols.Limit == 0 && len(cfg.Symbols.List) == 0 {
		cfg.Symbols.Limit = DefaultSymbolLimit
	}

	if cfg.Session.PingIntervalSec <= 0 {
		cfg.Session.PingIntervalSec = DefaultPingSec
	}
	if cfg.Session.ConnectTimeoutSec <= 0 {
		cfg.Session.ConnectTimeoutSec = DefaultConnectSec
	}
	if cfg.Session.WriteTimeoutSec <= 0 {
		cfg.Session.WriteTimeoutSec = DefaultWriteSec
	}
	if cfg.Session.BufferSize <= 0 {
		cfg.Session.BufferSize = DefaultSessionBuffer
	}

	if cfg.Aggregator.Overflow == "" {
		cfg.Aggregator.Overflow = OverflowBlock
	}

	if cfg.Storage.Redis.Addr == "" {
		cfg.Storage.Redis.Addr = "127.0.0.1:6379"
	}
	if cfg.Storage.Redis.Prefix == "" {
		cfg.Storage.Redis.Prefix = "mexcws"
	}
	if cfg.Storage.SQLite.Path == "" {
		cfg.Storage.SQLite.Path = "data/mexcws.db"
	}
}

func validate(cfg *Config) error {
	cfg.Symbols.List = normalizeSymbols(cfg.Symbols.List)
	cfg.Symbols.Quote = strings.ToUpper(strings.TrimSpace(cfg.Symbols.Quote))
	cfg.Aggregator.Overflow = strings.ToLower(strings.TrimSpace(cfg.Aggregator.Overflow))

	if cfg.Symbols.BatchSize <= 0 {
		return &domain.ConfigurationError{Field: "symbols.batch_size", Reason: "must be >= 1"}
	}
	if cfg.Symbols.Limit < 0 {
		return &domain.ConfigurationError{Field: "symbols.limit", Reason: "must be >= 0"}
	}
	if strings.TrimSpace(cfg.Exchange.WsURL) == "" {
		return &domain.ConfigurationError{Field: "exchange.ws_url", Reason: "is empty"}
	}
	if cfg.Session.ReadTimeoutSec < 0 {
		return &domain.ConfigurationError{Field: "session.read_timeout_sec", Reason: "must be >= 0"}
	}
	if cfg.Aggregator.Capacity < 0 {
		return &domain.ConfigurationError{Field: "aggregator.capacity", Reason: "must be >= 0"}
	}
	switch cfg.Aggregator.Overflow {
	case OverflowDrop, OverflowBlock:
	default:
		return &domain.ConfigurationError{Field: "aggregator.overflow", Reason: "must be drop or block"}
	}

	if cfg.Storage.Redis.Enabled && strings.TrimSpace(cfg.Storage.Redis.Addr) == "" {
		return &domain.ConfigurationError{Field: "storage.redis.addr", Reason: "empty but enabled"}
	}
	if cfg.Storage.Postgres.Enabled && strings.TrimSpace(cfg.Storage.Postgres.DSN) == "" {
		return &domain.ConfigurationError{Field: "storage.postgres.dsn", Reason: "empty but enabled"}
	}
	return nil
}

func normalizeSymbols(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]struct{}{}
	for _, s := range in {
		u := strings.ToUpper(strings.TrimSpace(s))
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

func (c *Config) MonitorInterval() time.Duration {
	return time.Duration(c.App.MonitorIntervalSec) * time.Second
}

func (c *Config) PingInterval() time.Duration {
	return time.Duration(c.Session.PingIntervalSec) * time.Second
}

func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.Session.ConnectTimeoutSec) * time.Second
}

func (c *Config) WriteTimeout() time.Duration {
	return time.Duration(c.Session.WriteTimeoutSec) * time.Second
}

func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.Session.ReadTimeoutSec) * time.Second
}

func (c *Config) RESTTimeout() time.Duration {
	return time.Duration(c.Exchange.RESTTimeoutSec) * time.Second
}
