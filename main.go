package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/nijaru/yt-summary/captions"
	"github.com/nijaru/yt-summary/config"
	"github.com/nijaru/yt-summary/handlers"
	"github.com/nijaru/yt-summary/ledger"
	"github.com/nijaru/yt-summary/logger"
	"github.com/nijaru/yt-summary/middleware"
	"github.com/nijaru/yt-summary/summary"
	"github.com/nijaru/yt-summary/transcription"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logrus.WithError(err).Fatal("Invalid configuration")
	}

	logCloser, err := logger.Setup(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to set up logging")
	}
	defer logCloser.Close()

	var serviceOpts []transcription.Option
	var stats handlers.StatsSource
	if cfg.LedgerPath != "" {
		l, err := ledger.Open(cfg.LedgerPath)
		if err != nil {
			logrus.WithError(err).Fatal("Failed to open outcome ledger")
		}
		defer l.Close()
		serviceOpts = append(serviceOpts, transcription.WithRecorder(l))
		stats = l
	}

	youtube := captions.NewYouTube(captions.YouTubeConfig{Timeout: cfg.YouTubeTimeout})
	fetcher := captions.NewFetcher(youtube, cfg.Languages)

	summarizer := summary.NewClient(summary.Config{
		Enabled:       cfg.EnableSummary,
		Token:         cfg.HFToken,
		Model:         cfg.SummaryModel,
		BaseURL:       cfg.SummaryAPIBase,
		Strategy:      summary.Strategy(cfg.SummaryStrategy),
		MaxInputChars: cfg.SummaryMaxInputChars,
		ChunkChars:    cfg.SummaryChunkChars,
		MaxLength:     cfg.SummaryMaxLength,
		MinLength:     cfg.SummaryMinLength,
		Timeout:       cfg.SummaryTimeout,
	})
	if cfg.EnableSummary && !cfg.SummaryAvailable() {
		logrus.Warn("HF_TOKEN is not set, summaries will be empty")
	}

	service := transcription.NewService(fetcher, summarizer, transcription.Config{
		MaxRetriesCap: cfg.MaxRetriesCap,
		MaxRetryDelay: cfg.MaxRetryDelay,
		EnableSummary: cfg.EnableSummary,
	}, serviceOpts...)

	server := handlers.NewServer(cfg,
		handlers.NewHandler(service, cfg, stats),
		handlers.WithRateLimiter(middleware.NewRateLimiter(cfg.RateLimit, cfg.RateLimitInterval)),
	)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		logrus.WithError(err).Error("Server failed")
	case sig := <-stop:
		logrus.WithField("signal", sig.String()).Info("Shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logrus.WithError(err).Error("Server forced to shutdown")
	}
	logrus.Info("Server stopped")
}
