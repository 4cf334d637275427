// Package downloads fetches a catalog's missing items into its destination.
package downloads

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chansync/internal/catalog"
	"chansync/internal/domain/consts"
	"chansync/internal/domain/logger"
	"chansync/internal/models"
	"chansync/internal/storage"
	"chansync/internal/workers"
)

// Orchestrator drains a catalog's missing downloads.
type Orchestrator struct {
	cat    *catalog.Catalog
	stages Stages
	opts   Options
}

// NewOrchestrator returns an orchestrator for cat.
func NewOrchestrator(cat *catalog.Catalog, stages Stages, opts Options) *Orchestrator {
	if opts.ErrorBudget <= 0 {
		opts.ErrorBudget = DefaultOptions.ErrorBudget
	}
	return &Orchestrator{cat: cat, stages: stages, opts: opts}
}

// DownloadMissing fetches up to limit missing items (all when limit <= 0)
// with maxConcurrent parallel downloads.
//
// Results are merged into the catalog in submission order. Failed items get
// the sticky error flag. Once the error budget is spent no further stage is
// started, in-flight items are drained and ErrBudgetExhausted is returned.
func (o *Orchestrator) DownloadMissing(ctx context.Context, limit, maxConcurrent int) (Summary, error) {
	var sum Summary

	missing, err := o.cat.FindMissingDownloads(ctx)
	if err != nil {
		return sum, err
	}
	if limit > 0 && len(missing) > limit {
		sum.Skipped = len(missing) - limit
		missing = missing[:limit]
	}
	if len(missing) == 0 {
		logger.Pl.I("Nothing to download for %s", o.cat.ChannelName())
		return sum, nil
	}
	logger.Pl.I("Downloading %d missing items for %s into %s", len(missing), o.cat.ChannelName(), o.cat.Dir())

	reqs := make([]models.DownloadRequest, len(missing))
	for i, e := range missing {
		reqs[i] = models.DownloadRequest{
			URL:             e.URL,
			Dest:            storage.Join(o.cat.Dir(), e.FilePath),
			DownloadMedia:   true,
			FetchUploadDate: true,
		}
	}

	batch, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	p := NewPipeline(o.stages, maxConcurrent, o.opts.ScratchRoot)
	defer p.Close()

	budget := o.opts.ErrorBudget
	exhausted := false

	futures := p.Submit(ctx, batch, reqs)
	for i, f := range futures {
		res, err := f.Wait(ctx)
		if err != nil {
			cancel(err)
			drainFutures(futures[i:], consts.DrainTimeout)
			return sum, err
		}
		entry := missing[i]
		if res.UploadDate != nil {
			entry.UploadDate = res.UploadDate
		}

		switch {
		case res.OK():
			sum.Attempted++
			sum.Succeeded++
			logger.Pl.S("Downloaded %q to %s", entry.Title, res.Dest)
			if res.DateErr != nil {
				logger.Pl.W("No upload date for %s: %v", entry.URL, res.DateErr)
			}
			if res.UploadDate != nil {
				o.record(ctx, entry)
			}

		case errors.Is(res.Err, ErrCancelled):
			sum.Skipped++
			logger.Pl.D(2, "Skipped %s: %v", entry.URL, res.Err)
			if res.UploadDate != nil {
				o.record(ctx, entry)
			}

		default:
			sum.Attempted++
			sum.Failed++
			logger.Pl.E("Failed to download %q: %v", entry.Title, res.Err)
			// MarkError carries any upload date along with the flag.
			if err := o.cat.MarkError(ctx, entry); err != nil {
				logger.Pl.E("Could not flag %s as failed: %v", entry.URL, err)
			}
			if budget--; budget <= 0 && !exhausted {
				exhausted = true
				logger.Pl.W("Reached %d download errors for %s, stopping batch", o.opts.ErrorBudget, o.cat.ChannelName())
				cancel(ErrBudgetExhausted)
			}
		}
	}

	if err := context.Cause(ctx); err != nil {
		return sum, err
	}
	if exhausted {
		return sum, fmt.Errorf("%w after %d failures", ErrBudgetExhausted, sum.Failed)
	}
	return sum, nil
}

// record merges an entry's upload date into the catalog.
func (o *Orchestrator) record(ctx context.Context, entry models.Entry) {
	if err := o.cat.Merge(ctx, []models.Entry{entry}, true); err != nil {
		logger.Pl.E("Could not record upload date for %s: %v", entry.URL, err)
	}
}

// drainFutures waits up to timeout for in-flight items so their scratch
// directories are removed before the caller returns.
func drainFutures(futures []*workers.Future[models.FinalResult], timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	for _, f := range futures {
		if _, err := f.Wait(ctx); err != nil {
			logger.Pl.W("Gave up waiting for %d in-flight downloads", len(futures))
			return
		}
	}
}
