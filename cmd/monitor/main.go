// Package main is the entry point for divmon, a dividend-yield threshold
// monitor. It evaluates configured instruments against their baseline-derived
// thresholds once per day, delivers notifications over a Discord webhook, and
// exposes a read-only HTTP status surface.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/divmon/internal/clientdata"
	"github.com/aristath/divmon/internal/clients/exchangerate"
	"github.com/aristath/divmon/internal/clients/frankfurter"
	"github.com/aristath/divmon/internal/clients/yahoo"
	"github.com/aristath/divmon/internal/config"
	"github.com/aristath/divmon/internal/database"
	"github.com/aristath/divmon/internal/fx"
	"github.com/aristath/divmon/internal/metrics"
	"github.com/aristath/divmon/internal/monitor"
	"github.com/aristath/divmon/internal/notify"
	"github.com/aristath/divmon/internal/reliability"
	"github.com/aristath/divmon/internal/scheduler"
	"github.com/aristath/divmon/internal/server"
	"github.com/aristath/divmon/internal/state"
	"github.com/aristath/divmon/pkg/logger"
)

const backupRetentionDays = 30

func main() {
	once := flag.Bool("once", false, "run a single evaluation and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: true,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting divmon")

	instruments, err := config.LoadInstruments(cfg.InstrumentsPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load instruments")
	}
	log.Info().Int("instruments", len(instruments)).Msg("Instruments loaded")

	cacheDB, err := database.Open(cfg.CacheDBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open client-data cache")
	}
	defer cacheDB.Close()

	cacheRepo := clientdata.NewRepository(cacheDB.Conn())
	if err := cacheRepo.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize client-data schema")
	}

	store := state.NewStore(cfg.StatePath, log)
	market := yahoo.NewClient(cacheRepo, log)
	fxService := fx.NewService(
		exchangerate.NewClient(cacheRepo, log),
		frankfurter.NewClient(cacheRepo, log),
		cfg.FXBase, cfg.FXQuote, cfg.FXDefaultRate,
		log,
	)

	var notifier notify.Notifier = notify.NewDiscord(cfg.DiscordWebhookURL, log)
	recorder := metrics.New()

	runner := monitor.NewRunner(
		instruments, store, market, fxService, notifier, recorder,
		cfg.ReminderWeekday, log,
	)

	var backup *reliability.BackupService
	if cfg.Backup.Enabled {
		s3Client, err := reliability.NewS3Client(
			context.Background(),
			cfg.Backup.Endpoint, cfg.Backup.Region,
			cfg.Backup.AccessKey, cfg.Backup.SecretKey, cfg.Backup.Bucket,
			log,
		)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize S3 client, backups disabled")
		} else {
			backup = reliability.NewBackupService(s3Client, cfg.StatePath, cfg.Backup.Prefix, log)
			log.Info().Str("bucket", cfg.Backup.Bucket).Msg("State backups enabled")
		}
	}

	evaluate := func(ctx context.Context) error {
		if _, err := runner.Run(ctx); err != nil {
			return err
		}
		if backup != nil {
			if err := backup.UploadState(ctx); err != nil {
				log.Error().Err(err).Msg("State backup failed")
			}
			if err := backup.RotateOldBackups(ctx, backupRetentionDays); err != nil {
				log.Error().Err(err).Msg("Backup rotation failed")
			}
		}
		return nil
	}

	if *once {
		if err := evaluate(context.Background()); err != nil {
			log.Fatal().Err(err).Msg("Run failed")
		}
		return
	}

	sched := scheduler.New(log)
	if err := sched.AddJob(cfg.Schedule, scheduler.NewJob("evaluate", evaluate)); err != nil {
		log.Fatal().Err(err).Msg("Failed to register evaluation job")
	}
	if err := sched.AddJob("@hourly", scheduler.NewJob("cache-cleanup", func(ctx context.Context) error {
		deleted, err := cacheRepo.DeleteAllExpired()
		if err != nil {
			return err
		}
		for table, n := range deleted {
			if n > 0 {
				log.Debug().Str("table", table).Int64("deleted", n).Msg("Expired cache entries removed")
			}
		}
		return nil
	})); err != nil {
		log.Fatal().Err(err).Msg("Failed to register cache-cleanup job")
	}
	sched.Start()

	srv := server.New(server.Config{
		Log:         log,
		Port:        cfg.Port,
		Runner:      runner,
		Store:       store,
		Instruments: instruments,
	})
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")
	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Stopped")
}
