package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	videoanalyzer "video-analyzer/agents/video-analyzer"
	"video-analyzer/shared/ai"
	"video-analyzer/shared/auth"
	"video-analyzer/shared/config"
	"video-analyzer/shared/logging"
	"video-analyzer/shared/monitoring"
	"video-analyzer/shared/progress"
	"video-analyzer/shared/scheduler"
	"video-analyzer/shared/storage"
	"video-analyzer/shared/youtube"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(cfg.Logging)

	// Create context that responds to signals
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := storage.Open(ctx, &cfg.Storage, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to open result store")
	}
	defer store.Close()

	monitor := monitoring.NewMonitor(log)
	pipeline := videoanalyzer.NewPipeline(videoanalyzer.PipelineDeps{
		Metadata:    youtube.NewClient(&cfg.YouTube, log),
		Transcripts: youtube.NewCaptionStub(log),
		Analyzer:    ai.NewAnalyzer(&cfg.Analysis, log),
		Studio:      ai.NewThumbnailStudio(&cfg.Images, log),
		Store:       store,
		Monitor:     monitor,
	}, time.Duration(cfg.Server.RunTimeoutSeconds)*time.Second, log)

	if len(os.Args) > 2 && os.Args[1] == "--once" {
		if err := runOnce(ctx, pipeline, os.Args[2], log); err != nil {
			log.WithError(err).Fatal("Analysis failed")
		}
		return
	}

	sched := scheduler.New(monitor, log)
	if err := sched.Add(ctx, cfg.Monitoring.ProbeSchedule, monitoring.NewStoreProbe(store, 5*time.Second)); err != nil {
		log.WithError(err).Fatal("Failed to schedule store probe")
	}
	go func() {
		if err := sched.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.WithError(err).Error("Scheduler stopped unexpectedly")
		}
	}()

	handlers := videoanalyzer.NewHandlers(pipeline, store, auth.NewVerifier(cfg.Auth.SitePassword), log)
	app := videoanalyzer.NewServer(&cfg.Server, handlers, monitoring.NewHealthHandlers(monitor), log)

	go func() {
		<-ctx.Done()
		log.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.RunTimeoutSeconds+5)*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			log.WithError(err).Error("Graceful shutdown failed")
		}
	}()

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.WithFields(logrus.Fields{
		"addr":   addr,
		"driver": cfg.Storage.Driver,
	}).Info("Video analyzer listening")
	if err := app.Listen(addr); err != nil {
		log.WithError(err).Fatal("Server failed")
	}
}

// runOnce analyzes a single URL from the command line and prints the
// progress records to stdout.
func runOnce(ctx context.Context, pipeline *videoanalyzer.Pipeline, url string, log *logrus.Logger) error {
	stream := progress.NewStream(progress.DefaultBuffer)
	done := make(chan error, 1)
	go func() {
		_, err := pipeline.Run(ctx, videoanalyzer.Request{SourceURL: url}, stream)
		done <- err
	}()

	for event := range stream.Events() {
		if err := progress.Encode(os.Stdout, event); err != nil {
			log.WithError(err).Warn("Failed to write progress event")
		}
	}
	return <-done
}
