package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	cfgpkg "github.com/local/pdfsplitd/internal/config"
	"github.com/local/pdfsplitd/internal/dispatcher"
	"github.com/local/pdfsplitd/internal/engine"
	"github.com/local/pdfsplitd/internal/jobs"
	logpkg "github.com/local/pdfsplitd/internal/logger"
	"github.com/local/pdfsplitd/internal/metrics"
	"github.com/local/pdfsplitd/internal/server"
	"github.com/local/pdfsplitd/internal/storage"
	"github.com/local/pdfsplitd/internal/tempstore"
)

func main() {
	_ = godotenv.Load()
	cfg := cfgpkg.FromEnv()

	// Init logging
	_ = logpkg.Init(logpkg.Options{
		Level:        cfg.Logging.Level,
		Pretty:       cfg.Logging.Pretty,
		File:         cfg.Logging.File,
		MaxSizeMB:    cfg.Logging.MaxSizeMB,
		MaxBackups:   cfg.Logging.MaxBackups,
		MaxAgeDays:   cfg.Logging.MaxAgeDays,
		Compress:     cfg.Logging.Compress,
		SendToAxiom:  cfg.Axiom.Send && cfg.Axiom.APIKey != "",
		AxiomAPIKey:  cfg.Axiom.APIKey,
		AxiomOrgID:   cfg.Axiom.OrgID,
		AxiomDataset: cfg.Axiom.Dataset,
		AxiomFlush:   cfg.Axiom.FlushInterval,
	})
	defer logpkg.Close()

	metrics.Init()

	// Temp staging
	temp, err := tempstore.New(cfg.Storage.TempDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init temp store")
	}
	temp.Start(cfg.Storage.SweepInterval, cfg.Storage.MaxAge)
	defer temp.Close()

	// Job store
	var store jobs.Store
	switch cfg.Jobs.Backend {
	case "redis":
		rs, err := jobs.NewRedisStore(cfg.Jobs.RedisURL, cfg.Jobs.Retention)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis job store")
		}
		store = rs
	default:
		store = jobs.NewMemoryStore(cfg.Jobs.Retention, cfg.Jobs.Retention/4)
	}
	defer store.Close()

	tracker := jobs.New(store, jobs.Options{
		MaxConcurrent: cfg.Jobs.MaxConcurrent,
		MaxDuration:   cfg.Jobs.MaxDuration,
	})

	// Optional S3 mirror
	var mirror dispatcher.Mirror
	fetcher := &server.Fetcher{MaxBytes: int64(cfg.Server.MaxUploadMB) << 20}
	if cfg.Storage.MirrorToS3 && cfg.Storage.S3Bucket != "" {
		s3store, err := storage.NewS3Store(context.Background(), cfg.Storage.S3Bucket, cfg.Storage.S3Prefix, os.Getenv("STORAGE_PASSWORD"))
		if err != nil {
			log.Fatal().Err(err).Msg("failed to init s3 store")
		}
		mirror = s3store
		// mirrored objects come back through the store so encrypted
		// uploads stay readable as sources
		fetcher.Store = s3store
	}

	disp := dispatcher.New(engine.New(), temp, tracker, mirror, dispatcher.Options{
		ArchiveTTL: cfg.Jobs.Retention,
	})
	srv := server.New(disp, tracker, fetcher, cfg.Server, cfg.Split)

	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)
	mux.Handle("/metrics", metrics.Handler())

	httpSrv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Msgf("HTTP server listening on :%s", cfg.Server.Port)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(ctx)
	tracker.Wait()
	fmt.Println("shutdown complete")
}
