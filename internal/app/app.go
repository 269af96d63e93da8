package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/Abdurahmanit/property-service/internal/adapter/messaging/nats"
	"github.com/Abdurahmanit/property-service/internal/adapter/repository/cache"
	"github.com/Abdurahmanit/property-service/internal/adapter/repository/memory"
	"github.com/Abdurahmanit/property-service/internal/adapter/repository/mongodb"
	redisrepo "github.com/Abdurahmanit/property-service/internal/adapter/repository/redis"
	"github.com/Abdurahmanit/property-service/internal/adapter/rest"
	"github.com/Abdurahmanit/property-service/internal/config"
	"github.com/Abdurahmanit/property-service/internal/platform/clock"
	"github.com/Abdurahmanit/property-service/internal/platform/logger"
	"github.com/Abdurahmanit/property-service/internal/platform/metrics"
	"github.com/Abdurahmanit/property-service/internal/platform/tracer"
	"github.com/Abdurahmanit/property-service/internal/property/domain"
	"github.com/Abdurahmanit/property-service/internal/property/seed"
	"github.com/Abdurahmanit/property-service/internal/property/usecase"
	"github.com/Abdurahmanit/property-service/internal/property/validation"
	natsgo "github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

const (
	appName          = "property-service"
	metricsNamespace = "property_service"
)

type App struct {
	cfg     *config.Config
	log     *logger.Logger
	server  *http.Server
	usecase *usecase.PropertyUsecase

	mongoClient *mongo.Client
	redisClient *redis.Client
	natsConn    *natsgo.Conn
	tracer      *sdktrace.TracerProvider
}

// New connects the configured backends, seeds an empty store and builds
// the HTTP server. Connections opened before a failure are closed again.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (_ *App, err error) {
	a := &App{cfg: cfg, log: log}
	defer func() {
		if err != nil {
			a.closeBackends(context.Background())
		}
	}()

	a.tracer = tracer.Init(ctx, cfg.Tracing.ServiceName, cfg.Tracing.OTLPEndpoint, log)

	repo, err := a.newRepository(ctx)
	if err != nil {
		return nil, err
	}

	var publisher domain.EventPublisher
	if cfg.NATS.URL != "" {
		a.natsConn, err = nats.NewConnection(cfg.NATS.URL, appName, log)
		if err != nil {
			return nil, err
		}
		publisher, err = nats.NewPublisher(a.natsConn, cfg.NATS.SubjectPrefix, log)
		if err != nil {
			return nil, err
		}
		log.Info("lifecycle events enabled", zap.String("url", cfg.NATS.URL), zap.String("subject_prefix", cfg.NATS.SubjectPrefix))
	}

	var (
		mm       *metrics.MetricsManager
		recorder usecase.MetricsRecorder
	)
	if cfg.Metrics.Enabled {
		mm = metrics.NewMetricsManager(metricsNamespace)
		recorder = mm.Recorder()
	}

	schema := validation.NewSchema()
	clk := clock.Real{}
	a.usecase = usecase.NewPropertyUsecase(repo, schema, publisher, recorder, clk, clock.UUIDGenerator{}, log)

	if cfg.Seed.Enabled {
		if err := a.seed(ctx, clk.Now()); err != nil {
			return nil, err
		}
	}

	handler := rest.NewHandler(a.usecase, schema, clk, log)
	router := rest.NewRouter(handler, rest.RouterConfig{
		APIPrefix:      cfg.HTTP.APIPrefix,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		JWTSecret:      cfg.Auth.JWTSecret,
		MetricsPath:    cfg.Metrics.Path,
	}, mm, log)

	a.server = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}
	return a, nil
}

func (a *App) newRepository(ctx context.Context) (domain.PropertyRepository, error) {
	cfg := a.cfg
	switch cfg.Storage.Driver {
	case config.DriverRedis:
		client, err := a.connectRedis(ctx)
		if err != nil {
			return nil, err
		}
		return redisrepo.NewPropertyRepository(client, cfg.Redis.KeyPrefix), nil

	case config.DriverMongo:
		client, err := mongodb.NewClient(ctx, cfg.Mongo.URI, cfg.Mongo.ConnectTimeout)
		if err != nil {
			return nil, err
		}
		a.mongoClient = client
		repo := mongodb.NewPropertyRepository(client.Database(cfg.Mongo.Database), cfg.Mongo.Collection)
		if err := repo.EnsureIndexes(ctx); err != nil {
			return nil, err
		}
		a.log.Info("mongo store ready", zap.String("database", cfg.Mongo.Database), zap.String("collection", cfg.Mongo.Collection))

		if !cfg.Cache.Enabled {
			return repo, nil
		}
		rc, err := a.connectRedis(ctx)
		if err != nil {
			return nil, err
		}
		a.log.Info("redis cache enabled", zap.Duration("ttl", cfg.Cache.TTL))
		return cache.NewPropertyRepository(repo, rc, cfg.Redis.KeyPrefix, cfg.Cache.TTL, a.log), nil

	default:
		return memory.NewPropertyRepository(), nil
	}
}

func (a *App) connectRedis(ctx context.Context) (*redis.Client, error) {
	client, err := redisrepo.NewClient(ctx, redisrepo.Options{
		Addr:     a.cfg.Redis.Address,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	})
	if err != nil {
		return nil, err
	}
	a.redisClient = client
	a.log.Info("redis connected", zap.String("address", a.cfg.Redis.Address))
	return client, nil
}

func (a *App) seed(ctx context.Context, now time.Time) error {
	props, rep, err := seed.LoadFile(a.cfg.Seed.File, now)
	if err != nil {
		return fmt.Errorf("load seed data: %w", err)
	}
	if rep.CoercedType > 0 || rep.Reassigned > 0 || rep.Duplicates > 0 {
		a.log.Warn("seed data normalized",
			zap.Int("coerced_type", rep.CoercedType),
			zap.Int("reassigned_id", rep.Reassigned),
			zap.Int("duplicates", rep.Duplicates))
	}
	if _, err := a.usecase.Bootstrap(ctx, props); err != nil {
		return err
	}
	return nil
}

// Handler exposes the router, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.server.Handler
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully and
// closes every backend connection.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", a.server.Addr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		a.log.Info("HTTP server listening", zap.String("address", ln.Addr().String()), zap.String("storage", a.cfg.Storage.Driver))
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		a.log.Info("shutdown requested")
	case serveErr = <-errCh:
		a.log.Error("HTTP server failed", zap.Error(serveErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.log.Error("HTTP server graceful shutdown failed", zap.Error(err))
		if serveErr == nil {
			serveErr = err
		}
	}
	a.closeBackends(shutdownCtx)
	a.log.Info("application shut down")
	return serveErr
}

func (a *App) closeBackends(ctx context.Context) {
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.log.Warn("tracer provider shutdown failed", zap.Error(err))
		}
		a.tracer = nil
	}
	if a.natsConn != nil {
		if err := a.natsConn.Drain(); err != nil {
			a.log.Warn("NATS drain failed", zap.Error(err))
		}
		a.natsConn = nil
	}
	if a.mongoClient != nil {
		if err := a.mongoClient.Disconnect(ctx); err != nil {
			a.log.Warn("error disconnecting from MongoDB", zap.Error(err))
		}
		a.mongoClient = nil
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.log.Warn("error closing Redis client", zap.Error(err))
		}
		a.redisClient = nil
	}
}
