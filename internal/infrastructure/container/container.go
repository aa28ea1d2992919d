package container

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/tyura/websocket-clients/internal/application/port"
	"github.com/tyura/websocket-clients/internal/infrastructure/config"
	"github.com/tyura/websocket-clients/internal/infrastructure/storage"
	"github.com/tyura/websocket-clients/internal/infrastructure/storage/composite"
	pgrepo "github.com/tyura/websocket-clients/internal/infrastructure/storage/postgres"
	redisrepo "github.com/tyura/websocket-clients/internal/infrastructure/storage/redis"
	sqliterepo "github.com/tyura/websocket-clients/internal/infrastructure/storage/sqlite"
)

// Container 持有存储层依赖及其关闭顺序
type Container struct {
	cfg         *config.Config
	redisClient *redis.Client
	redisRepo   *redisrepo.Repo
	sqliteRepo  *sqliterepo.Repo
	pgRepo      *pgrepo.Repo
	memRepo     *storage.InMemoryRepository
	closeOnce   sync.Once
	closerChain []func() error
}

// New 创建新的容器实例
func New(cfg *config.Config) (*Container, error) {
	c := &Container{
		cfg:         cfg,
		closerChain: make([]func() error, 0),
	}

	if cfg.Storage.Enabled {
		if err := c.initStorage(); err != nil {
			// 清理已初始化的资源
			_ = c.Close()
			return nil, err
		}
	}

	return c, nil
}

// initStorage 初始化存储层（Redis、SQLite、Postgres）
func (c *Container) initStorage() error {
	if c.cfg.Storage.Redis.Enabled {
		if err := c.initRedis(); err != nil {
			return fmt.Errorf("redis init failed: %w", err)
		}
	}

	if c.cfg.Storage.SQLite.Enabled {
		if err := c.initSQLite(); err != nil {
			return fmt.Errorf("sqlite init failed: %w", err)
		}
	}

	if c.cfg.Storage.Postgres.Enabled {
		if err := c.initPostgres(); err != nil {
			return fmt.Errorf("postgres init failed: %w", err)
		}
	}

	return nil
}

// initRedis 初始化 Redis 连接
func (c *Container) initRedis() error {
	rc := c.cfg.Storage.Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return fmt.Errorf("redis ping failed: %w", err)
	}

	c.redisClient = rdb
	ttl := time.Duration(rc.TTLSeconds) * time.Second
	c.redisRepo = redisrepo.New(rdb, rc.Prefix, ttl, rc.ReportStream, rc.ReportChannel, rc.EventStream)

	c.closerChain = append(c.closerChain, func() error {
		log.Info().Msg("closing redis connection")
		return rdb.Close()
	})

	log.Info().
		Str("addr", rc.Addr).
		Int("db", rc.DB).
		Msg("redis initialized")

	return nil
}

// initSQLite 初始化 SQLite 数据库
func (c *Container) initSQLite() error {
	repo, err := sqliterepo.New(c.cfg.Storage.SQLite.Path)
	if err != nil {
		return err
	}

	c.sqliteRepo = repo

	c.closerChain = append(c.closerChain, func() error {
		log.Info().Msg("closing sqlite connection")
		return repo.Close()
	})

	log.Info().
		Str("path", c.cfg.Storage.SQLite.Path).
		Msg("sqlite initialized")

	return nil
}

// initPostgres 初始化 Postgres 连接
func (c *Container) initPostgres() error {
	repo, err := pgrepo.New(c.cfg.Storage.Postgres.DSN)
	if err != nil {
		return err
	}

	c.pgRepo = repo

	c.closerChain = append(c.closerChain, func() error {
		log.Info().Msg("closing postgres connection")
		return repo.Close()
	})

	log.Info().Msg("postgres initialized")
	return nil
}

func (c *Container) Config() *config.Config {
	return c.cfg
}

func (c *Container) RedisClient() *redis.Client {
	return c.redisClient
}

func (c *Container) RedisRepo() *redisrepo.Repo {
	return c.redisRepo
}

func (c *Container) SQLiteRepo() *sqliterepo.Repo {
	return c.sqliteRepo
}

func (c *Container) PostgresRepo() *pgrepo.Repo {
	return c.pgRepo
}

// Repository 返回所有已启用后端的组合；未启用任何存储时退化为内存实现
func (c *Container) Repository() port.Repository {
	var repos []port.Repository
	if c.redisRepo != nil {
		repos = append(repos, c.redisRepo)
	}
	if c.sqliteRepo != nil {
		repos = append(repos, c.sqliteRepo)
	}
	if c.pgRepo != nil {
		repos = append(repos, c.pgRepo)
	}

	if len(repos) == 0 {
		if c.memRepo == nil {
			c.memRepo = storage.NewInMemoryRepository(0)
		}
		return c.memRepo
	}
	return composite.New(repos...)
}

// Close 关闭所有资源（按后进先出顺序）
func (c *Container) Close() error {
	var err error
	c.closeOnce.Do(func() {
		for i := len(c.closerChain) - 1; i >= 0; i-- {
			if e := c.closerChain[i](); e != nil {
				log.Error().Err(e).Msg("error closing resource")
				if err == nil {
					err = e
				}
			}
		}
		log.Info().Msg("container closed")
	})
	return err
}
