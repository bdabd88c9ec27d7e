package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"haforge/pkg/bus"
	"haforge/pkg/db"
	gos3 "haforge/pkg/s3"
	"haforge/pkg/telemetry"
	"haforge/services/console"
	"haforge/services/docstore"
	"haforge/services/orchestrator"
	"haforge/services/semaphore"
)

const serviceName = "haforged"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := console.LoadConfig(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	shutdownTracing, traceMiddleware, err := telemetry.Init(ctx, serviceName, cfg.OTLPEndpoint, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("init telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown telemetry")
		}
	}()

	pool, err := db.Open(ctx, cfg.DBDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	orm, err := db.OpenORM(cfg.DBDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("open orm")
	}

	var events *bus.Bus
	if cfg.NATSURL != "" {
		events, err = bus.New(cfg.NATSURL)
		if err != nil {
			log.Fatal().Err(err).Msg("connect event bus")
		}
		defer events.Close()
	}

	docs := docstore.New(cfg.PlaybookDir, cfg.PlaybookBaseURL)

	if cfg.S3Bucket != "" {
		s3Client, err := gos3.NewClientFromEnv()
		if err != nil {
			log.Fatal().Err(err).Msg("init s3 mirror")
		}
		docs.S3 = s3Client
		docs.Bucket = cfg.S3Bucket
	}

	signer, err := docstore.NewSignerFromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("init manifest signer")
	}
	docs.Signer = signer

	jobs, err := semaphore.NewClient(semaphore.Config{
		BaseURL: cfg.SemaphoreURL,
		Token:   cfg.SemaphoreToken,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("init job client")
	}

	orch := &orchestrator.Orchestrator{
		DB:   pool,
		ORM:  orm,
		Docs: docs,
		Jobs: jobs,
		Poller: &semaphore.Poller{
			Client:   jobs,
			Interval: cfg.PollInterval,
			Timeout:  cfg.PollTimeout,
		},
		Bus:        events,
		Logger:     log.Logger,
		BcryptCost: cfg.BcryptCost,
	}

	api, err := console.New(pool, orch, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("init api")
	}

	handler := api.Routes(console.RouterOptions{
		AllowedOrigins: cfg.AllowedOrigins,
		Telemetry:      traceMiddleware,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("starting haforged")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown server")
	}
}
