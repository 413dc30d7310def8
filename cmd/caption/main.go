package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/google/uuid"
	"github.com/timmy/capvis/internal/config"
	"github.com/timmy/capvis/internal/domain"
	"github.com/timmy/capvis/internal/logger"
	"github.com/timmy/capvis/internal/render"
	"github.com/timmy/capvis/internal/repository"
	"github.com/timmy/capvis/internal/service"
	"github.com/timmy/capvis/internal/source"
)

func main() {
	// Initialize logger first (with defaults)
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "json",
		ServiceName: "capvis",
	})
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// Parse command line flags
	parallel := flag.Bool("parallel", false, "Process images in parallel")
	workers := flag.Int("workers", 0, "Number of parallel workers (0 = config default)")
	useCache := flag.Bool("use-cache", false, "Skip images that already have a fresh caption")
	limit := flag.Int("limit", 0, "Maximum number of images to caption (0 = all)")
	demos := flag.Int("demos", -1, "Number of samples in the demo artifact (0 = skip, -1 = config default)")
	clearCache := flag.Bool("clear-cache", false, "Clear all cached captions before processing")
	dir := flag.String("dir", "", "Image source directory (overrides config)")
	out := flag.String("out", "", "Demo artifact output path (overrides config)")
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	// Rebuild the logger with the configured level/format/file
	appLogger = logger.New(&logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		ServiceName: "capvis",
		LogFile:     cfg.Log.File,
	})
	logger.SetDefaultLogger(appLogger)

	if *workers <= 0 {
		*workers = cfg.Batch.Workers
	}
	if *demos < 0 {
		*demos = cfg.Demo.Count
	}
	sourceDir := cfg.Source.Dir
	if *dir != "" {
		sourceDir = *dir
	}
	demoPath := cfg.Demo.OutputPath
	if *out != "" {
		demoPath = *out
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown: stop scheduling new work, let in-flight
	// workers finish or time out.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("Received shutdown signal, canceling...")
		cancel()
	}()

	// Initialize store
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}
	captionRepo := repository.NewCaptionRepository(db, cfg.Cache.MaxAge)

	if *clearCache {
		if err := captionRepo.Clear(ctx); err != nil {
			appLogger.WithError(err).Fatal("Failed to clear cache")
		}
		appLogger.Info("Cache cleared")
	}

	// Probe the inference endpoint before scheduling any work
	captioner, err := service.NewCaptioner(&cfg.VLM)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to create caption service")
	}
	if err := captioner.Probe(ctx); err != nil {
		appLogger.WithError(err).Fatal("Inference endpoint is not ready")
	}
	appLogger.WithField(logger.FieldModel, captioner.Model()).Info("Inference endpoint ready")

	// Discover images
	src := source.NewDirectorySource(sourceDir)
	images, err := src.List(ctx)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to list source images")
	}
	appLogger.WithFields(logger.Fields{
		logger.FieldSource: src.GetSourceID(),
		"images":           len(images),
	}).Info("Discovered source images")

	// Run the batch
	ctx = logger.SetJobID(ctx, uuid.New().String())
	ctx = logger.SetSource(ctx, src.GetSourceID())

	runner := service.NewBatchRunner(captionRepo, captioner, appLogger)
	results, stats, err := runner.Run(ctx, images, service.RunOptions{
		UseCache: *useCache,
		Parallel: *parallel,
		Workers:  *workers,
		Limit:    *limit,
		Retries:  cfg.Batch.RetryCount,
	})
	if err != nil {
		appLogger.WithError(err).Fatal("Batch run failed")
	}

	appLogger.WithFields(logger.Fields{
		"total":     stats.Total,
		"succeeded": stats.Succeeded,
		"failed":    stats.Failed,
		"cached":    stats.Cached,
	}).Info("Run summary")

	// Render the demo artifact from this run's successful captions
	if *demos > 0 {
		samples := collectSamples(results)
		renderer := render.NewRenderer(appLogger)
		if err := renderer.Render(samples, demoPath, *demos); err != nil {
			if errors.Is(err, domain.ErrNoSamples) {
				appLogger.Warn("No captioned samples available, skipping demo")
			} else {
				appLogger.WithError(err).Error("Failed to render demo artifact")
			}
		}
	}

	if *useCache {
		cacheStats, err := captionRepo.Stats(ctx)
		if err != nil {
			appLogger.WithError(err).Warn("Failed to read cache stats")
		} else {
			appLogger.WithFields(logger.Fields{
				"records":       cacheStats.Records,
				"payload_bytes": cacheStats.PayloadBytes,
			}).Info("Cache stats")
		}
	}
}

// collectSamples turns successful result entries into render samples, in key
// order so demo selection is stable.
func collectSamples(results map[string]*service.ItemResult) []render.Sample {
	keys := make([]string, 0, len(results))
	for key, res := range results {
		if res.Err == nil && res.Caption != nil {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	samples := make([]render.Sample, 0, len(keys))
	for _, key := range keys {
		res := results[key]
		samples = append(samples, render.Sample{Image: res.Image, Caption: res.Caption})
	}
	return samples
}
