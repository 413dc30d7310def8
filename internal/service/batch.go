package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/timmy/capvis/internal/domain"
	"github.com/timmy/capvis/internal/logger"
)

// defaultRetryPause is the pause between caption attempts for one image.
const defaultRetryPause = time.Second

// BatchRunner drives one captioning run: it resolves cached entries,
// dispatches the remaining images to the captioner either sequentially or
// across a bounded worker pool, and writes every successful caption through
// to the store immediately.
type BatchRunner struct {
	store      CaptionStore
	captioner  Captioner
	logger     *logger.Logger
	retryPause time.Duration
}

// NewBatchRunner creates a new batch runner.
func NewBatchRunner(store CaptionStore, captioner Captioner, log *logger.Logger) *BatchRunner {
	return &BatchRunner{
		store:      store,
		captioner:  captioner,
		logger:     log,
		retryPause: defaultRetryPause,
	}
}

// log returns a logger from context if available, otherwise the runner's own.
func (r *BatchRunner) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return r.logger
}

// RunOptions holds per-run configuration.
type RunOptions struct {
	UseCache bool // reuse fresh stored captions instead of re-captioning
	Parallel bool // dispatch across Workers goroutines instead of one loop
	Workers  int  // pool size in parallel mode
	Limit    int  // max images to caption this run, 0 = unbounded
	Retries  int  // total caption attempts per image, min 1
}

// ItemResult is the outcome for one image key. Exactly one of Caption or Err
// is meaningful; Cached marks entries reused from the store.
type ItemResult struct {
	Key     string
	Image   domain.ImageRecord
	Caption *domain.Caption
	Err     error
	Cached  bool
}

// RunStats holds aggregate counters for a run.
type RunStats struct {
	Total     int64
	Succeeded int64
	Failed    int64
	Cached    int64
	StartTime time.Time
	EndTime   time.Time
}

// Run captions the given images and returns one result entry per distinct
// image key. Per-image failures are recorded against their key and never
// abort the batch.
func (r *BatchRunner) Run(ctx context.Context, images []domain.ImageRecord, opts RunOptions) (map[string]*ItemResult, *RunStats, error) {
	stats := &RunStats{StartTime: time.Now()}
	results := make(map[string]*ItemResult, len(images))

	attempts := opts.Retries
	if attempts < 1 {
		attempts = 1
	}
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	r.log(ctx).WithFields(logger.Fields{
		"images":    len(images),
		"use_cache": opts.UseCache,
		"parallel":  opts.Parallel,
		"workers":   workers,
		"limit":     opts.Limit,
	}).Info("Starting batch run")

	// Selection: resolve cached entries into the result map and collect the
	// remaining work in input order. Duplicate keys collapse to one unit of
	// work so a key is never in flight twice within a run.
	seen := make(map[string]struct{}, len(images))
	var work []domain.ImageRecord
	for _, img := range images {
		if _, dup := seen[img.Key]; dup {
			continue
		}
		seen[img.Key] = struct{}{}

		if opts.UseCache {
			if cached := r.fromCache(ctx, img); cached != nil {
				results[img.Key] = cached
				stats.Cached++
				continue
			}
		}
		work = append(work, img)
	}

	if opts.Limit > 0 && len(work) > opts.Limit {
		work = work[:opts.Limit]
	}
	stats.Total = int64(len(results) + len(work))

	if opts.Parallel {
		r.runParallel(ctx, work, workers, attempts, results, stats)
	} else {
		r.runSequential(ctx, work, attempts, results, stats)
	}

	stats.EndTime = time.Now()

	r.log(ctx).WithFields(logger.Fields{
		"total":     stats.Total,
		"succeeded": stats.Succeeded,
		"failed":    stats.Failed,
		"cached":    stats.Cached,
		"duration":  stats.EndTime.Sub(stats.StartTime).String(),
	}).Info("Batch run completed")

	return results, stats, nil
}

// fromCache returns a cached result entry for img, or nil when the store has
// no fresh record. Store read errors degrade to a cache miss.
func (r *BatchRunner) fromCache(ctx context.Context, img domain.ImageRecord) *ItemResult {
	has, err := r.store.Has(ctx, img)
	if err != nil {
		r.log(ctx).WithField(logger.FieldImageKey, img.Key).WithError(err).Warn("Cache lookup failed, re-captioning")
		return nil
	}
	if !has {
		return nil
	}

	caption, err := r.store.Get(ctx, img.Key)
	if err != nil {
		r.log(ctx).WithField(logger.FieldImageKey, img.Key).WithError(err).Warn("Cache read failed, re-captioning")
		return nil
	}
	return &ItemResult{Key: img.Key, Image: img, Caption: caption, Cached: true}
}

func (r *BatchRunner) runSequential(ctx context.Context, work []domain.ImageRecord, attempts int, results map[string]*ItemResult, stats *RunStats) {
	for _, img := range work {
		if ctx.Err() != nil {
			// Stop scheduling new work; everything already processed
			// stays in the result map.
			break
		}
		res := r.processOne(ctx, img, attempts)
		results[res.Key] = res
		r.count(ctx, res, stats)
	}
}

func (r *BatchRunner) runParallel(ctx context.Context, work []domain.ImageRecord, workers, attempts int, results map[string]*ItemResult, stats *RunStats) {
	itemsChan := make(chan domain.ImageRecord, workers*2)
	resultsChan := make(chan *ItemResult, workers*2)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			r.worker(ctx, workerID, itemsChan, resultsChan, attempts)
		}(i)
	}

	// Single collector goroutine owns the result map during the run.
	done := make(chan struct{})
	go func() {
		for res := range resultsChan {
			results[res.Key] = res
			r.count(ctx, res, stats)
		}
		close(done)
	}()

feed:
	for _, img := range work {
		select {
		case itemsChan <- img:
		case <-ctx.Done():
			break feed
		}
	}

	close(itemsChan)
	wg.Wait()
	close(resultsChan)
	<-done
}

func (r *BatchRunner) worker(ctx context.Context, workerID int, items <-chan domain.ImageRecord, out chan<- *ItemResult, attempts int) {
	for img := range items {
		select {
		case <-ctx.Done():
			return
		default:
		}
		out <- r.processOne(ctx, img, attempts)
	}
}

func (r *BatchRunner) count(ctx context.Context, res *ItemResult, stats *RunStats) {
	if res.Err != nil {
		atomic.AddInt64(&stats.Failed, 1)
		r.log(ctx).WithField(logger.FieldImageKey, res.Key).WithError(res.Err).Error("Failed to caption image")
		return
	}
	atomic.AddInt64(&stats.Succeeded, 1)
}

// processOne captions a single image with retries and writes the result
// through to the store before reporting, so completed work survives a crash
// mid-run.
func (r *BatchRunner) processOne(ctx context.Context, img domain.ImageRecord, attempts int) *ItemResult {
	res := &ItemResult{Key: img.Key, Image: img}

	var caption *domain.Caption
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		caption, err = r.captioner.Describe(ctx, img.Path)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			break
		}
		if attempt < attempts {
			r.log(ctx).WithFields(logger.Fields{
				logger.FieldImageKey: img.Key,
				"attempt":            attempt,
			}).WithError(err).Warn("Caption attempt failed, retrying")
			time.Sleep(r.retryPause)
		}
	}
	if err != nil {
		res.Err = err
		return res
	}

	if putErr := r.store.Put(ctx, img, caption, r.captioner.Model()); putErr != nil {
		res.Err = putErr
		return res
	}

	res.Caption = caption
	return res
}
