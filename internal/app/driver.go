package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chansync/internal/blocking"
	"chansync/internal/command"
	"chansync/internal/config"
	"chansync/internal/domain/consts"
	"chansync/internal/domain/logger"
	"chansync/internal/history"
	"chansync/internal/models"
	"chansync/internal/sources"
	"chansync/internal/storage"
	"chansync/internal/times"
)

// Options controls a multi-channel run.
type Options struct {
	// ScanLimit caps each listing; zero uses the default.
	ScanLimit int
	// DownloadLimit caps downloads per channel; zero or less is unlimited.
	DownloadLimit   int
	StopOnDuplicate bool
	DryRun          bool
	// Once runs a single pass instead of looping.
	Once  bool
	Sleep time.Duration
	// StaggerSecs is the upper bound of a random pause between channels.
	StaggerSecs int

	// Blocker and History are optional.
	Blocker *blocking.Blocker
	History *history.Store
}

// Driver syncs every channel of a config document.
type Driver struct {
	cfg     *config.Config
	backend storage.Backend
	deps    Deps
	opts    Options
}

// NewDriver returns a driver writing into backend, which serves cfg.Output.
func NewDriver(cfg *config.Config, backend storage.Backend, deps Deps, opts Options) *Driver {
	if opts.ScanLimit <= 0 {
		opts.ScanLimit = consts.DefaultScanLimit
	}
	if opts.Sleep <= 0 {
		opts.Sleep = consts.DefaultSyncSleep
	}
	return &Driver{cfg: cfg, backend: backend, deps: deps, opts: opts}
}

// RunMultiple opens cfg's output and syncs its channels until interrupted,
// or once when opts.Once is set.
func RunMultiple(ctx context.Context, cfg *config.Config, rclonePath string, deps Deps, opts Options) error {
	backend, err := storage.Open(cfg.Output, cfg.Rclone, rclonePath)
	if err != nil {
		return err
	}
	logger.Pl.I("Syncing %d channels into %s", len(cfg.Channels), backend)
	return NewDriver(cfg, backend, deps, opts).Run(ctx)
}

// Run repeats passes with a sleep in between.
func (d *Driver) Run(ctx context.Context) error {
	for {
		if err := d.Pass(ctx); err != nil {
			return err
		}
		if d.opts.Once || d.opts.DryRun {
			return nil
		}
		if err := times.WaitTime(ctx, d.opts.Sleep, "before the next pass"); err != nil {
			return context.Cause(ctx)
		}
	}
}

// Pass syncs every channel once, in document order.
//
// Channel failures are logged and recorded; only an interrupt ends the pass early.
func (d *Driver) Pass(ctx context.Context) error {
	if d.opts.Blocker != nil {
		if err := d.opts.Blocker.CleanExpired(ctx); err != nil {
			logger.Pl.W("Could not clean expired blocks: %v", err)
		}
	}

	failed := 0
	for i, ch := range d.cfg.Channels {
		if err := ctx.Err(); err != nil {
			return context.Cause(ctx)
		}
		if i > 0 && !d.opts.DryRun {
			if err := times.WaitTime(ctx, times.RandomSecsDuration(d.opts.StaggerSecs), "before the next channel"); err != nil {
				return context.Cause(ctx)
			}
		}

		err := d.syncChannel(ctx, ch)
		switch {
		case err == nil:
		case isInterrupt(ctx, err):
			return err
		default:
			failed++
			logger.Pl.E("Failed to process channel %s (%s): %v", ch.Name, ch.Source, err)
		}
	}

	if failed > 0 {
		logger.Pl.W("Pass finished with %d of %d channels failing", failed, len(d.cfg.Channels))
	} else {
		logger.Pl.S("Pass finished for %d channels", len(d.cfg.Channels))
	}
	return nil
}

func isInterrupt(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, command.ErrInterrupted)
}

// syncChannel runs one channel's scan and download phases. Panics are recovered.
func (d *Driver) syncChannel(ctx context.Context, ch models.Channel) (err error) {
	dir := ch.OutputDir(d.cfg.Output)
	logger.Pl.I("Processing channel %s (%s) into %s", ch.Name, ch.Source, dir)

	if d.opts.DryRun {
		logger.Pl.I("Dry run: would sync %s/%s (id %q, scan=%v, download=%v, download limit %d)",
			ch.Name, ch.Source, ch.ChannelID, d.cfg.CmdOptions.Scan, d.cfg.CmdOptions.Download, d.opts.DownloadLimit)
		return nil
	}

	run := history.Start(ch.Name, ch.Source)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while processing %s: %v", ch.Name, r)
		}
		run.Finish(err)
		if d.opts.History != nil {
			if recErr := d.opts.History.Record(context.WithoutCancel(ctx), run); recErr != nil {
				logger.Pl.W("Could not record run for %s: %v", ch.Name, recErr)
			}
		}
	}()

	domain := sources.MustLookup(ch.Source).Domain()
	if d.opts.Blocker != nil {
		if blocked, _, remaining := d.opts.Blocker.IsBlocked(domain); blocked {
			return fmt.Errorf("%s is blocked for another %v after rate limiting", domain, remaining.Round(time.Second))
		}
	}

	syncer, err := NewSyncer(ctx, d.deps, d.backend, ch, d.cfg.Output)
	if err != nil {
		return err
	}

	if d.cfg.CmdOptions.Scan {
		res, err := syncer.ScanForVids(ctx, d.opts.ScanLimit, d.opts.StopOnDuplicate)
		run.Scanned = len(res.Entries)
		if res.RateLimited && d.opts.Blocker != nil {
			if blockErr := d.opts.Blocker.BlockDomain(ctx, domain, "rate limited while scanning "+ch.Name); blockErr != nil {
				logger.Pl.W("Could not block %s: %v", domain, blockErr)
			}
		}
		if err != nil {
			return err
		}
	}

	if d.cfg.CmdOptions.Download {
		sum, err := syncer.Download(ctx, d.opts.DownloadLimit)
		run.Downloaded = sum.Succeeded
		run.Failed = sum.Failed
		if err != nil {
			return err
		}
	}

	logger.Pl.S("Finished processing channel %s (%s)", ch.Name, ch.Source)
	return nil
}
