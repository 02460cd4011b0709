package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"eventmatch/pkg/bus"
	"eventmatch/pkg/db"
	gos3 "eventmatch/pkg/s3"
	"eventmatch/pkg/telemetry"
	"eventmatch/services/api"
	"eventmatch/services/api/internal/config"
	"eventmatch/services/directory"
	"eventmatch/services/matching"
	"eventmatch/services/realtime"
	"eventmatch/services/stats"
)

const (
	serviceName = "matching-api"
	streamName  = "EVENTMATCH"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	logger, err := telemetry.NewLogger(serviceName, cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		log.Fatal().Err(err).Msg("init logger")
	}
	log.Logger = logger

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("matching-api failed")
	}
}

func run(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	shutdownTelemetry, middleware, err := telemetry.Init(ctx, serviceName, cfg.OTLPEndpoint, logger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown telemetry")
		}
	}()

	pool, err := db.Open(ctx, cfg.DBDSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	if cfg.MigrateOnStart {
		if err := db.Migrate(ctx, pool); err != nil {
			return err
		}
	}

	orm, err := db.OpenORM(ctx, cfg.DBDSN)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.CloseORM(orm); err != nil {
			logger.Error().Err(err).Msg("close orm")
		}
	}()

	var signer directory.URLSigner
	if cfg.PhotoBucket != "" {
		client, err := gos3.NewClient(ctx, gos3.ConfigFromEnv())
		if err != nil {
			return err
		}
		if signer, err = gos3.NewBucketSigner(client, cfg.PhotoBucket, cfg.PhotoURLTTL); err != nil {
			return err
		}
	}

	dir, err := directory.New(orm, signer, logger.With().Str("component", "directory").Logger())
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	var (
		messageBus *bus.Bus
		gateway    *realtime.Gateway
		notifier   matching.Notifier
	)
	if cfg.NATSURL != "" {
		if messageBus, err = bus.New(cfg.NATSURL); err != nil {
			return err
		}
		defer messageBus.Close()
		if err := messageBus.EnsureStream(streamName, "eventmatch.>"); err != nil {
			return err
		}
		notifier = matching.NewBusNotifier(messageBus)
	} else if cfg.RealtimeEnabled {
		// Single instance: deliver straight to the local gateway, created below.
		notifier = matching.NotifierFunc(func(ctx context.Context, n matching.Notification) error {
			return gateway.Notify(ctx, n)
		})
	}

	engine, err := matching.New(matching.Options{
		ORM:      orm,
		Gate:     dir,
		Events:   dir,
		Profiles: dir,
		Notifier: notifier,
		Logger:   logger.With().Str("component", "matching").Logger(),
		Metrics:  matching.NewMetrics(reg),
	})
	if err != nil {
		return err
	}

	var realtimeHandler http.Handler
	if cfg.RealtimeEnabled {
		if gateway, err = realtime.New(engine, logger.With().Str("component", "realtime").Logger()); err != nil {
			return err
		}
		go func() {
			if err := gateway.Serve(); err != nil {
				logger.Error().Err(err).Msg("realtime gateway stopped")
			}
		}()
		defer gateway.Close()
		if messageBus != nil {
			host, err := os.Hostname()
			if err != nil {
				return err
			}
			if err := gateway.Consume(ctx, messageBus, host); err != nil {
				return err
			}
		}
		realtimeHandler = gateway
	}

	if messageBus != nil {
		listener, err := matching.NewMembershipListener(engine, messageBus, logger.With().Str("component", "membership").Logger())
		if err != nil {
			return err
		}
		if err := listener.Start(ctx); err != nil {
			return err
		}
		defer listener.Close()
	}

	statsSvc, err := stats.New(pool)
	if err != nil {
		return err
	}

	a, err := api.New(api.Options{
		Engine:   engine,
		Stats:    statsSvc,
		Ready:    readiness(pool, messageBus),
		Realtime: realtimeHandler,
		Metrics:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Logger:   logger,
		Config: api.Config{
			AllowedOrigins:     cfg.AllowedOrigins,
			RateLimitPerMinute: cfg.RateLimitPerMinute,
			MessagePageSize:    cfg.MessagePageSize,
		},
	})
	if err != nil {
		return err
	}
	routes, err := a.Routes()
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           middleware(routes),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Addr).Msg("starting matching-api")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown server")
	}
	return nil
}

func readiness(pool *pgxpool.Pool, messageBus *bus.Bus) api.Pinger {
	return func(ctx context.Context) error {
		if err := db.Ping(ctx, pool); err != nil {
			return err
		}
		if messageBus != nil && !messageBus.Connected() {
			return errors.New("nats disconnected")
		}
		return nil
	}
}
