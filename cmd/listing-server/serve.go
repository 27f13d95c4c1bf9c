package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Sternrassler/paged-listing/pkg/httpfetch"
	"github.com/Sternrassler/paged-listing/pkg/logging"
	"github.com/Sternrassler/paged-listing/pkg/pagination"
	"github.com/Sternrassler/paged-listing/pkg/store"
)

// item is one upstream element, kept as decoded JSON.
type item = map[string]any

func newServeCmd() *cobra.Command {
	cfg := defaultServerConfig()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Page through an upstream endpoint and serve the listing",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cfg)
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP listen address")
	f.StringVar(&cfg.Upstream, "upstream", cfg.Upstream, "URL of the paged upstream endpoint")
	f.StringVar(&cfg.UserAgent, "user-agent", cfg.UserAgent, "User-Agent sent upstream")
	f.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Upstream request timeout")
	f.StringVar(&cfg.Store, "store", cfg.Store, "Store backend: none, memory, redis or postgres")
	f.StringVar(&cfg.RedisURL, "redis-url", cfg.RedisURL, "Redis URL for --store=redis")
	f.StringVar(&cfg.DatabaseURL, "database-url", cfg.DatabaseURL, "Postgres DSN for --store=postgres")
	f.StringVar(&cfg.Table, "table", cfg.Table, "Postgres table for --store=postgres")
	f.StringVar(&cfg.Namespace, "namespace", cfg.Namespace, "Store key namespace")
	f.DurationVar(&cfg.TTL, "ttl", cfg.TTL, "Expiry of stored items for --store=redis (0 = never)")
	f.BoolVar(&cfg.Compress, "compress", cfg.Compress, "Compress stored items with zstd")
	f.StringVar(&cfg.Name, "name", cfg.Name, "Listing name")
	f.IntVar(&cfg.FirstPage, "first-page", cfg.FirstPage, "Number of the first upstream page")
	f.IntVar(&cfg.PageSize, "page-size", cfg.PageSize, "Items per upstream page")
	f.IntVar(&cfg.Prefetch, "prefetch", cfg.Prefetch, "Prefetch distance for ?around= (0 = page size)")
	f.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	f.BoolVar(&cfg.Pretty, "log-pretty", cfg.Pretty, "Human readable log output")

	return cmd
}

func runServe(ctx context.Context, cfg serverConfig) error {
	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Pretty: cfg.Pretty,
	}).With().Str("component", "server").Logger()

	fetchCfg := httpfetch.DefaultConfig(cfg.Upstream, cfg.UserAgent)
	fetchCfg.Timeout = cfg.Timeout
	fetcher, err := httpfetch.New[item](fetchCfg)
	if err != nil {
		return fmt.Errorf("upstream: %w", err)
	}

	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	l, err := newListing(fetcher, b.store, cfg)
	if err != nil {
		return err
	}
	defer l.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newRouter(l, logger),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().
			Str("addr", cfg.Addr).
			Str("upstream", cfg.Upstream).
			Str("store", cfg.Store).
			Msg("Server starting")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info().Msg("Server shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// newListing creates the served listing, cache mode when s is non-nil.
func newListing(fetcher pagination.PageFetcher[item], s pagination.Store[item], cfg serverConfig) (*pagination.Listing[item], error) {
	lc := pagination.DefaultConfig()
	lc.Name = cfg.Name
	lc.FirstPage = cfg.FirstPage
	lc.PageSize = cfg.PageSize
	lc.InitialLoadSize = cfg.PageSize
	lc.PrefetchDistance = cfg.Prefetch

	if s == nil {
		return pagination.NewNetworkListing(fetcher, lc)
	}
	return pagination.NewCachedListing(fetcher, s, lc)
}

// backend is the store selected by --store and the connections behind it.
type backend struct {
	store   pagination.Store[item]
	closers []func()
}

func (b *backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func openBackend(ctx context.Context, cfg serverConfig) (*backend, error) {
	b := &backend{}
	key := store.Key{Namespace: cfg.Namespace, Listing: cfg.Name}

	codec := store.JSON[item]()
	if cfg.Compress {
		codec = store.Zstd(codec)
	}

	switch cfg.Store {
	case storeNone, "":
		return b, nil

	case storeMemory:
		b.store = store.NewMemory[item]()
		return b, nil

	case storeRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		redisClient := redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			redisClient.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		b.closers = append(b.closers, func() { redisClient.Close() })
		b.store = store.NewRedis(redisClient, key, codec, store.RedisConfig{TTL: cfg.TTL})
		return b, nil

	case storePostgres:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("--database-url is required for --store=postgres")
		}
		pool, err := store.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(ctx, pool, cfg.Table); err != nil {
			pool.Close()
			return nil, err
		}
		b.closers = append(b.closers, pool.Close)
		b.store = store.NewPostgres(pool, cfg.Table, key, codec)
		return b, nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store)
	}
}
