package main

import (
	"context"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/hunter/internal/crm"
	"github.com/sells-group/hunter/internal/extract"
	"github.com/sells-group/hunter/internal/fetcher"
	"github.com/sells-group/hunter/internal/hunter"
	"github.com/sells-group/hunter/internal/ingest"
	"github.com/sells-group/hunter/internal/lead"
	"github.com/sells-group/hunter/internal/lock"
	"github.com/sells-group/hunter/internal/model"
	"github.com/sells-group/hunter/internal/scrape"
	"github.com/sells-group/hunter/internal/source"
	"github.com/sells-group/hunter/internal/store"
	"github.com/sells-group/hunter/pkg/jina"
	sfpkg "github.com/sells-group/hunter/pkg/salesforce"
)

// hunterEnv holds the store, sources and runner shared by hunt and serve.
type hunterEnv struct {
	Store   store.Store
	Runner  *hunter.Runner
	Sources []model.Source
	redis   *redis.Client
}

// Close releases resources held by the environment.
func (e *hunterEnv) Close() {
	if e.redis != nil {
		_ = e.redis.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initHunter validates config for mode, opens and migrates the store, loads
// sources and wires the runner. Callers should defer env.Close().
func initHunter(ctx context.Context, mode string) (*hunterEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	srcs, err := source.LoadSources(cfg.Hunter.SourcesFile)
	if err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	env := &hunterEnv{Store: st, Sources: srcs}

	if err := st.Migrate(ctx); err != nil {
		env.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	dir, err := initDirectory(st)
	if err != nil {
		env.Close()
		return nil, err
	}

	locker, rdb, err := initLocker(ctx, st)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.redis = rdb

	ex, err := extract.NewFromConfig(cfg)
	if err != nil {
		env.Close()
		return nil, err
	}

	deps := initSourceDeps()
	env.Runner = hunter.New(
		st,
		ingest.New(st, time.Duration(cfg.Hunter.SeenCacheTTLMins)*time.Minute),
		lead.NewManager(st, dir, locker),
		ex,
		func(src model.Source) (source.Adapter, error) { return source.New(src, deps) },
		hunter.Options{
			BatchSize:   cfg.Hunter.BatchSize,
			Concurrency: cfg.Hunter.Concurrency,
		},
	)

	zap.L().Info("hunter initialized",
		zap.String("store", cfg.Store.Driver),
		zap.String("crm", cfg.CRM.Driver),
		zap.String("extractor", ex.Name()),
		zap.Int("sources", len(srcs)),
		zap.Bool("redis_lock", rdb != nil),
	)
	return env, nil
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "hunter.db"
		}
		st, err := store.NewSQLite(dsn)
		if err != nil {
			return nil, err
		}
		return st, nil
	case "postgres":
		st, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initDirectory picks the CRM directory. The "postgres" driver reads the
// contacts and clients tables of whichever store is configured.
func initDirectory(st store.Store) (crm.Directory, error) {
	switch cfg.CRM.Driver {
	case "none":
		return crm.None{}, nil
	case "salesforce":
		pemData, err := os.ReadFile(cfg.Salesforce.KeyPath)
		if err != nil {
			return nil, eris.Wrap(err, "read salesforce JWT private key")
		}
		client, err := sfpkg.NewJWTClient(sfpkg.JWTCreds{
			LoginURL: cfg.Salesforce.LoginURL,
			Username: cfg.Salesforce.Username,
			ClientID: cfg.Salesforce.ClientID,
			KeyPEM:   string(pemData),
		}, sfpkg.WithRateLimit(cfg.Salesforce.RateLimit))
		if err != nil {
			return nil, eris.Wrap(err, "init salesforce")
		}
		return crm.NewSalesforce(client, cfg.CRM.MinKeyLength), nil
	case "postgres", "":
		switch s := st.(type) {
		case *store.PostgresStore:
			return crm.NewPostgres(s.Pool(), cfg.CRM.MinKeyLength), nil
		case *store.SQLiteStore:
			return crm.NewSQLite(s.DB(), cfg.CRM.MinKeyLength), nil
		}
		return nil, eris.Errorf("crm driver %q needs a postgres or sqlite store", cfg.CRM.Driver)
	default:
		return nil, eris.Errorf("unsupported crm driver: %s", cfg.CRM.Driver)
	}
}

// initLocker always serializes keys in-process, then across processes with
// Redis when configured, or with advisory locks on a Postgres store.
func initLocker(ctx context.Context, st store.Store) (lock.Locker, *redis.Client, error) {
	chain := lock.Chain{lock.NewLocal()}

	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, eris.Wrap(err, "redis ping")
		}
		ttl := time.Duration(cfg.Hunter.LockTTLSecs) * time.Second
		return append(chain, lock.NewRedis(rdb, ttl)), rdb, nil
	}

	if ps, ok := st.(*store.PostgresStore); ok {
		chain = append(chain, lock.NewAdvisory(ps.Pool()))
	}
	return chain, nil, nil
}

// initSourceDeps builds the clients source adapters share.
func initSourceDeps() source.Deps {
	timeout := time.Duration(cfg.Hunter.FetchTimeoutSecs) * time.Second
	jinaClient := jina.NewClient(cfg.Jina.Key, jina.WithBaseURL(cfg.Jina.BaseURL))

	deps := source.Deps{
		Fetcher: fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			UserAgent: cfg.Hunter.UserAgent,
			Timeout:   timeout,
		}),
		Scrapers: []scrape.Scraper{
			scrape.NewLocalScraper(cfg.Hunter.UserAgent, timeout),
			scrape.NewJinaScraper(jinaClient),
		},
		Jina: jinaClient,
		Throttle: source.NewThrottle(
			time.Duration(cfg.Hunter.MinDelayMs)*time.Millisecond,
			time.Duration(cfg.Hunter.MaxDelayMs)*time.Millisecond,
		),
		Options: source.Options{
			MinContentLength: cfg.Hunter.MinContentLength,
			FetchTimeout:     timeout,
		},
	}
	if cfg.Hunter.RespectRobots {
		deps.Robots = source.NewRobots(cfg.Hunter.UserAgent, timeout)
	}
	return deps
}
