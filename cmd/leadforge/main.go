// Package main wires together the lead enrichment service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"go.uber.org/zap"

	"github.com/leadforge/leadforge/internal/api"
	gcsarchive "github.com/leadforge/leadforge/internal/archive/gcs"
	"github.com/leadforge/leadforge/internal/audit"
	"github.com/leadforge/leadforge/internal/clock/system"
	"github.com/leadforge/leadforge/internal/config"
	"github.com/leadforge/leadforge/internal/id/uuid"
	"github.com/leadforge/leadforge/internal/lead"
	"github.com/leadforge/leadforge/internal/logging"
	"github.com/leadforge/leadforge/internal/metrics"
	memorynotify "github.com/leadforge/leadforge/internal/notify/memory"
	pubsubnotify "github.com/leadforge/leadforge/internal/notify/pubsub"
	"github.com/leadforge/leadforge/internal/pipeline"
	"github.com/leadforge/leadforge/internal/scoring"
	"github.com/leadforge/leadforge/internal/scrape"
	"github.com/leadforge/leadforge/internal/scrape/ratelimit"
	memorystorage "github.com/leadforge/leadforge/internal/storage/memory"
	"github.com/leadforge/leadforge/internal/storage/postgres"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		leads   lead.LeadStore
		models  lead.ModelStore
		results lead.ResultStore
	)
	if cfg.DB.DSN != "" {
		store, err := postgres.NewStore(ctx, postgres.StoreConfig{
			DSN:      cfg.DB.DSN,
			MaxConns: int32(cfg.DB.MaxConns),
			MinConns: int32(cfg.DB.MinConns),
		})
		if err != nil {
			logger.Fatal("postgres store init failed", zap.Error(err))
		}
		defer store.Close()
		leads, models, results = store, store, store
	} else {
		logger.Info("db.dsn not set, using in-memory store")
		store := memorystorage.NewStore()
		leads, models, results = store, store, store
	}

	var publisher lead.Publisher
	if cfg.PubSub.ProjectID != "" {
		client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			logger.Fatal("pubsub client init failed", zap.Error(err))
		}
		defer func() {
			if closeErr := client.Close(); closeErr != nil {
				logger.Warn("pubsub client close failed", zap.Error(closeErr))
			}
		}()
		publisher = pubsubnotify.New(client.Publisher(cfg.PubSub.TopicName))
	} else {
		logger.Info("pubsub.project_id not set, using in-process publisher")
		publisher = memorynotify.NewPublisher()
	}

	var archive lead.BlobStore
	if cfg.Archive.GCSBucket != "" {
		blobStore, err := gcsarchive.NewBlobStore(ctx, cfg.Archive.GCSBucket, logging.Component(logger, "archive"))
		if err != nil {
			logger.Fatal("gcs archive init failed", zap.Error(err))
		}
		defer func() {
			if closeErr := blobStore.Close(); closeErr != nil {
				logger.Warn("gcs client close failed", zap.Error(closeErr))
			}
		}()
		archive = blobStore
	}

	clock := system.New()
	idGen := uuid.NewGenerator()
	limiter := ratelimit.New(ratelimit.Config{
		Budget: cfg.RateLimit.Budget,
		Window: cfg.RateWindow(),
	})
	defer limiter.Stop()

	fetcher := scrape.NewCollyFetcher(scrape.FetcherConfig{
		Timeout: cfg.FetchTimeout(),
	}, logging.Component(logger, "fetcher"))
	scraper := scrape.NewScraper(
		fetcher,
		scrape.NewExtractor(),
		limiter,
		audit.NewZapLog(logging.Component(logger, "audit")),
		archive,
		clock,
		idGen,
		scrape.ScraperConfig{
			GroupSize:   cfg.Scrape.GroupSize,
			GroupDelay:  cfg.GroupDelay(),
			ArchivePath: cfg.Archive.Prefix,
			ContentType: cfg.Archive.ContentType,
		},
		logging.Component(logger, "scraper"),
	)
	engine := scoring.NewEngine(leads, models, results, clock, logging.Component(logger, "scoring"))
	pl := pipeline.New(
		scraper,
		engine,
		leads,
		models,
		publisher,
		pipeline.NewRegistry(),
		clock,
		idGen,
		logging.Component(logger, "pipeline"),
	)

	apiServer := api.NewServer(pl, scraper, engine, leads, results, cfg, logging.Component(logger, "api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
