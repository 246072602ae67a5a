package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"pricefeed/internal/app"
	"pricefeed/internal/config"
	"pricefeed/internal/feed"
	"pricefeed/internal/logging"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	log := logging.New(cfg.Log.Level, cfg.Log.Format)

	f, _, err := app.Build(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("startup failed")
	}

	// Fetches shared by several requests outlive the request that started them, up to
	// the same budget a single request gets.
	shared := feed.NewSerialized(f)
	shared.Timeout = time.Duration(cfg.Server.RequestTimeoutSec) * time.Second

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           newHandler(shared, log, cfg),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Cold requests download full histories and may wait on the rate limiter.
		WriteTimeout: 2 * time.Duration(cfg.Server.RequestTimeoutSec) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithField("addr", srv.Addr).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server")
		}
	}()

	// graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("shutdown")
	}
}

func newHandler(f feed.Fetcher, log *logrus.Logger, cfg config.Config) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`"ok"`))
	})
	mux.Handle("/api/series", &seriesHandler{
		fetcher:     f,
		log:         log,
		concurrency: cfg.AlphaVantage.MaxConcurrency,
		timeout:     time.Duration(cfg.Server.RequestTimeoutSec) * time.Second,
	})
	return readOnlyJSON(compressLarge(recoverPanic(log, mux)))
}
