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

	"github.com/redis/go-redis/v9"

	"coursejobs/internal/api"
	"coursejobs/internal/catalog"
	"coursejobs/internal/certificate"
	"coursejobs/internal/chain"
	"coursejobs/internal/config"
	"coursejobs/internal/generate"
	"coursejobs/internal/notify"
	"coursejobs/internal/ratelimit"
	"coursejobs/internal/speech"
	"coursejobs/internal/storage"
	"coursejobs/internal/store"
	"coursejobs/internal/worker"
)

// The api binary serves the batch trigger for deployments without a
// long-lived worker process, so it carries the full handler wiring and
// executes jobs in-process when triggered.
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

	if cfg.TriggerSecret == "" {
		logger.Error("TRIGGER_SECRET must be set")
		os.Exit(1)
	}

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

	workerID := fmt.Sprintf("api-%d", os.Getpid())
	w := worker.New(workerID, st, deps, cfg.WorkerPollInterval, logger)

	limiterClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	limiter := ratelimit.NewTokenBucket(limiterClient, cfg.RateLimitCapacity, cfg.RateLimitRefill, time.Hour)

	server := api.New(cfg, st, w, limiter)
	httpServer := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: server.Router(),
	}

	logger.Info("api listening", "port", cfg.HTTPPort)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("listen", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	_ = httpServer.Shutdown(shutdownCtx)
}
