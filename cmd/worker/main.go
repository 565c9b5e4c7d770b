package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"coursejobs/internal/catalog"
	"coursejobs/internal/certificate"
	"coursejobs/internal/chain"
	"coursejobs/internal/config"
	"coursejobs/internal/generate"
	"coursejobs/internal/models"
	"coursejobs/internal/notify"
	"coursejobs/internal/speech"
	"coursejobs/internal/storage"
	"coursejobs/internal/store"
	"coursejobs/internal/telemetry"
	"coursejobs/internal/worker"
)

func main() {
	cfg := config.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		<-ch
		cancel()
	}()

	st, err := store.New(ctx, cfg.PostgresDSN, cfg.LockTimeout)
	if err != nil {
		logger.Error("connect postgres", "err", err)
		os.Exit(1)
	}
	defer st.Close()

	if err := st.RunMigrations(ctx); err != nil {
		logger.Error("migrations", "err", err)
		os.Exit(1)
	}

	media, err := storage.New(ctx, cfg)
	if err != nil {
		logger.Error("init media storage", "err", err)
		os.Exit(1)
	}

	generator, err := generate.NewOllama(cfg.OllamaBaseURL, cfg.OllamaModel, nil)
	if err != nil {
		logger.Error("init generator", "err", err)
		os.Exit(1)
	}

	content := catalog.NewClient(cfg.CatalogBaseURL, cfg.CatalogToken, 30*time.Second)
	pool := st.Pool()

	deps := worker.Deps{
		Content:      store.NewContentRepo(pool),
		Audio:        store.NewAudioRepo(pool),
		Ledger:       store.NewLedgerRepo(pool),
		Lessons:      content,
		Generator:    generator,
		Speech:       speech.NewClient(cfg.TTSBaseURL, cfg.TTSVoice, 2*time.Minute),
		Media:        media,
		Chain:        chain.NewClient(cfg.ChainServiceURL, cfg.ChainServiceToken, time.Minute),
		Certificates: certificate.NewIssuer(media, cfg.CertTemplatePath, logger),
		Notify:       &notify.Log{Logger: logger},
		JobRetention: cfg.JobRetention,
	}

	workerID := os.Getenv("WORKER_ID")
	if workerID == "" {
		if hostname, _ := os.Hostname(); hostname != "" {
			workerID = hostname
		} else {
			workerID = fmt.Sprintf("worker-%d", os.Getpid())
		}
	}

	w := worker.New(workerID, st, deps, cfg.WorkerPollInterval, logger)

	// Periodic maintenance: one cleanup job per schedule tick. A duplicate
	// tick while the previous sweep still runs is harmless.
	sched := cron.New()
	if _, err := sched.AddFunc(cfg.CleanupSchedule, func() {
		if _, err := st.Enqueue(ctx, models.TypeCleanup, struct{}{}, store.EnqueueOptions{MaxAttempts: 1}); err != nil {
			logger.Warn("enqueue cleanup", "err", err)
		}
	}); err != nil {
		logger.Error("cleanup schedule", "schedule", cfg.CleanupSchedule, "err", err)
		os.Exit(1)
	}
	sched.Start()
	defer sched.Stop()

	go func() {
		if err := http.ListenAndServe(cfg.MetricsAddr, telemetry.Handler()); err != nil {
			logger.Warn("metrics server stopped", "err", err)
		}
	}()

	logger.Info("worker starting", "worker_id", workerID, "lock_timeout", cfg.LockTimeout)
	if err := w.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("worker stopped", "err", err)
		os.Exit(1)
	}
}
