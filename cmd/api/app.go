package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/onnwee/carmarket/internal/api"
	"github.com/onnwee/carmarket/internal/carrequest"
	"github.com/onnwee/carmarket/internal/config"
	"github.com/onnwee/carmarket/internal/db"
	"github.com/onnwee/carmarket/internal/health"
	"github.com/onnwee/carmarket/internal/middleware"
	"github.com/onnwee/carmarket/internal/notice"
	"github.com/onnwee/carmarket/internal/post"
	"github.com/onnwee/carmarket/internal/recency"
	"github.com/onnwee/carmarket/internal/search"
	"github.com/onnwee/carmarket/internal/tracing"
	"github.com/onnwee/carmarket/internal/user"
)

const serviceName = "carmarket-api"

// rateLimitCleanupInterval is how often expired in-memory rate limit
// windows are dropped.
const rateLimitCleanupInterval = 5 * time.Minute

// app holds the wired server and the resources it must release on shutdown.
type app struct {
	handler   http.Handler
	recent    *recency.Service
	rateStore *middleware.InMemoryRateLimitStore
	tracer    *tracing.Provider
	closers   []func() error
	logger    *slog.Logger
}

// repositories are the storage backends behind the handlers.
type repositories struct {
	users    user.Repository
	posts    post.Repository
	requests carrequest.Repository
	notices  notice.Repository
	source   search.Source
}

// newApp connects the configured backends and builds the middleware chain.
// On error every resource opened so far is closed.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *app, err error) {
	a := &app{logger: logger}
	defer func() {
		if err != nil {
			_ = a.close(context.Background())
		}
	}()

	a.tracer, err = tracing.NewProvider(tracing.Config{
		ServiceName:  serviceName,
		Enabled:      cfg.TracingEnabled,
		Environment:  cfg.Env,
		ExporterType: cfg.TracingExporter,
		OTLPEndpoint: cfg.TracingEndpoint,
		SamplingRate: cfg.TracingSampleRate,
		InsecureMode: cfg.TracingInsecure,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("tracing: %w", err)
	}

	var checkers []health.Checker

	var conn *sql.DB
	if cfg.UsesPostgres() {
		conn, err = db.Open(ctx, cfg.DatabaseURL, db.DefaultPoolConfig())
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, conn.Close)
		checkers = append(checkers, health.NewDBChecker(conn))

		if cfg.MigrateOnStart {
			if err = db.Migrate(ctx, conn, logger); err != nil {
				return nil, err
			}
		}
	}

	var rdb *redis.Client
	if cfg.UsesRedis() {
		rdb, err = openRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, rdb.Close)
		checkers = append(checkers, health.NewRedisChecker(rdb))
	}

	repos := newRepositories(cfg.StorageBackend, conn, logger)
	if cfg.StorageBackend == config.BackendMemory && cfg.RecencyBackend == config.BackendPostgres {
		logger.Warn("recency lists in postgres reference users and posts that only exist in memory; views of them will be rejected")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	httpMetrics := middleware.NewMetrics()
	searchMetrics := search.NewMetrics()
	recencyMetrics := recency.NewMetrics()
	for _, r := range []interface{ Register(prometheus.Registerer) error }{httpMetrics, searchMetrics, recencyMetrics} {
		if err = r.Register(reg); err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
	}

	a.recent = recency.NewService(newRecencyStore(cfg.RecencyBackend, conn, rdb, logger),
		recency.WithCapacity(cfg.RecencyCapacity),
		recency.WithMetrics(recencyMetrics),
		recency.WithLogger(logger),
	)
	searcher := search.NewService(repos.source, searchMetrics, logger)

	mux := api.NewRouter(api.Handlers{
		Posts:       api.NewPostHandlers(repos.posts, searcher, a.recent, logger),
		Users:       api.NewUserHandlers(repos.users, searcher, a.recent, logger),
		CarRequests: api.NewCarRequestHandlers(repos.requests, logger),
		Dashboard: api.NewDashboardHandlers(api.DashboardDeps{
			Users:    repos.users,
			Posts:    repos.posts,
			Requests: repos.requests,
			Notices:  repos.notices,
			Search:   searcher,
		}, logger),
		Notices: api.NewNoticeHandlers(repos.notices, logger),
		Health:  api.NewHealthHandlers(logger, checkers...),
		Metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
	})

	var store middleware.RateLimitStore
	if cfg.RateLimitBackend == config.BackendRedis {
		store = middleware.NewRedisRateLimitStore(rdb, httpMetrics, logger)
	} else {
		a.rateStore = middleware.NewInMemoryRateLimitStore()
		store = a.rateStore
	}
	limit := middleware.RateLimitConfig{RequestsPerWindow: cfg.RateLimitRequests, WindowDuration: time.Minute}

	// Outermost first: Recover, RequestID, Tracing, Logging, HTTPMetrics,
	// CORS, RateLimiter, then the mux.
	var handler http.Handler = mux
	handler = middleware.RateLimiter(store, limit, middleware.ViewerKeyFunc(), httpMetrics)(handler)
	handler = middleware.CORS(middleware.CORSConfig{AllowedOrigins: cfg.CORSAllowedOrigins, MaxAge: 600})(handler)
	handler = middleware.HTTPMetrics(httpMetrics)(handler)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.Tracing(serviceName)(handler)
	handler = middleware.RequestID(handler)
	a.handler = middleware.Recover(logger)(handler)

	return a, nil
}

func openRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

func newRepositories(backend string, conn *sql.DB, logger *slog.Logger) repositories {
	if backend == config.BackendPostgres {
		return repositories{
			users:    user.NewPostgresRepository(conn, logger),
			posts:    post.NewPostgresPostRepository(conn, logger),
			requests: carrequest.NewPostgresRepository(conn, logger),
			notices:  notice.NewPostgresRepository(conn, logger),
			source:   search.NewPostgresSource(conn, logger),
		}
	}

	users := user.NewInMemoryRepository()
	posts := post.NewInMemoryPostRepository(users)
	source := search.NewInMemorySource()
	source.Register(search.EntityUsers, users)
	source.Register(search.EntityPosts, posts)
	return repositories{
		users:    users,
		posts:    posts,
		requests: carrequest.NewInMemoryRepository(users),
		notices:  notice.NewInMemoryRepository(users),
		source:   source,
	}
}

func newRecencyStore(backend string, conn *sql.DB, rdb *redis.Client, logger *slog.Logger) recency.Store {
	switch backend {
	case config.BackendPostgres:
		return recency.NewPostgresStore(conn, logger)
	case config.BackendRedis:
		return recency.NewRedisStore(rdb, "")
	default:
		return recency.NewInMemoryStore()
	}
}

// startBackground runs maintenance loops until ctx is done.
func (a *app) startBackground(ctx context.Context) {
	if a.rateStore != nil {
		go a.rateStore.RunCleanup(ctx, rateLimitCleanupInterval)
	}
}

// close flushes traces and releases connections, newest first.
func (a *app) close(ctx context.Context) error {
	var errs []error
	if a.tracer != nil {
		errs = append(errs, a.tracer.Shutdown(ctx))
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
