// Package app drives channel synchronization.
package app

import (
	"context"
	"errors"
	"fmt"

	"chansync/internal/catalog"
	"chansync/internal/cookies"
	"chansync/internal/domain/consts"
	"chansync/internal/domain/logger"
	"chansync/internal/downloads"
	"chansync/internal/models"
	"chansync/internal/scanner"
	"chansync/internal/sources"
	"chansync/internal/storage"
)

// StagesFunc builds the download stages for one channel.
type StagesFunc func(v sources.Variant, backend storage.Backend, cookiesTxt string) downloads.Stages

// Deps are the collaborators shared by every channel sync of a run.
type Deps struct {
	// Streamer runs yt-dlp listings.
	Streamer scanner.Streamer
	// Stages builds per-channel download stages.
	Stages StagesFunc
	Prober sources.Prober
	// Cookies is optional; without it tools run without a cookie file.
	Cookies *cookies.Manager
	Lock    *catalog.Lock

	ConcurrentDownloads int
	Downloads           downloads.Options
	// BacklogThreshold skips scanning while this many downloads are pending.
	BacklogThreshold int
}

func (d Deps) backlog() int {
	if d.BacklogThreshold > 0 {
		return d.BacklogThreshold
	}
	return consts.BacklogThreshold
}

func (d Deps) concurrency() int {
	if d.ConcurrentDownloads > 0 {
		return d.ConcurrentDownloads
	}
	return consts.DefaultConcurrentDownloads
}

// Syncer mirrors one channel.
type Syncer struct {
	deps    Deps
	channel models.Channel
	variant sources.Variant
	cat     *catalog.Catalog
	scanner *scanner.Scanner
	cookies *cookies.Bundle
}

// Report is the outcome of one Sync.
type Report struct {
	Scan     scanner.Result
	Download downloads.Summary
}

// NewSyncer opens (or creates) the channel's catalog under root.
func NewSyncer(ctx context.Context, deps Deps, backend storage.Backend, ch models.Channel, root string) (*Syncer, error) {
	v, err := sources.Lookup(ch.Source)
	if err != nil {
		return nil, err
	}
	channelURL, err := v.ChannelURL(ctx, deps.Prober, ch.ChannelID)
	if err != nil {
		return nil, err
	}

	dir := ch.OutputDir(root)
	cat, err := catalog.GetOrCreate(ctx, backend, catalog.PathFor(dir), catalog.Identity{
		ChannelName: ch.Name,
		ChannelURL:  channelURL,
		Source:      ch.Source,
	}, deps.Lock)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog for %s: %w", ch.Name, err)
	}

	return &Syncer{
		deps:    deps,
		channel: ch,
		variant: v,
		cat:     cat,
		scanner: scanner.New(deps.Streamer, consts.ScanErrorCeiling),
	}, nil
}

// Catalog returns the channel's catalog.
func (s *Syncer) Catalog() *catalog.Catalog {
	return s.cat
}

// cookieFile returns the Netscape cookie file for the channel's platform, refreshing it when stale.
func (s *Syncer) cookieFile(ctx context.Context) (string, error) {
	if s.deps.Cookies == nil {
		return "", nil
	}
	b, err := s.deps.Cookies.GetOrRefresh(ctx, s.channel.Source, s.cookies)
	if err != nil {
		return "", err
	}
	s.cookies = b
	return b.TxtPath, nil
}

// ScanForVids lists the channel and merges new items into the catalog.
//
// The scan is skipped while the download backlog is at the threshold. A
// catalog with no entries always gets a full scan regardless of limit.
func (s *Syncer) ScanForVids(ctx context.Context, limit int, stopOnDuplicate bool) (scanner.Result, error) {
	known, err := s.cat.KnownVids(ctx, true)
	if err != nil {
		return scanner.Result{}, err
	}
	missing, err := s.cat.FindMissingDownloads(ctx)
	if err != nil {
		return scanner.Result{}, err
	}

	if len(known) == 0 {
		logger.Pl.I("First scan of %s, listing every item", s.channel.Name)
		limit = 0
	} else if len(missing) >= s.deps.backlog() {
		logger.Pl.I("Skipping scan for %s, %d downloads still pending", s.channel.Name, len(missing))
		return scanner.Result{}, nil
	}

	cookiesTxt, err := s.cookieFile(ctx)
	if err != nil {
		return scanner.Result{}, err
	}

	knownSet := make(map[string]struct{}, len(known))
	for _, e := range known {
		knownSet[e.URL] = struct{}{}
	}

	res, err := s.scanner.Scan(ctx, scanner.Request{
		ChannelURL:      s.cat.ChannelURL(),
		Limit:           limit,
		StopOnDuplicate: stopOnDuplicate,
		Known:           knownSet,
		CookiesTxt:      cookiesTxt,
		ExtraArgs:       s.variant.ScanArgs,
	})
	if err != nil {
		return res, err
	}

	if len(res.Entries) > 0 {
		if err := s.cat.Merge(ctx, res.Entries, true); err != nil {
			return res, err
		}
	}
	return res, nil
}

// Download fetches up to limit missing items (all when limit <= 0).
func (s *Syncer) Download(ctx context.Context, limit int) (downloads.Summary, error) {
	cookiesTxt, err := s.cookieFile(ctx)
	if err != nil {
		return downloads.Summary{}, err
	}
	stages := s.deps.Stages(s.variant, s.cat.Backend(), cookiesTxt)
	return downloads.NewOrchestrator(s.cat, stages, s.deps.Downloads).
		DownloadMissing(ctx, limit, s.deps.concurrency())
}

// Sync scans then downloads.
//
// An exhausted download error budget is reported in the summary, not as an error.
func (s *Syncer) Sync(ctx context.Context, scanLimit, downloadLimit int) (Report, error) {
	var rep Report
	var err error

	if rep.Scan, err = s.ScanForVids(ctx, scanLimit, false); err != nil {
		return rep, err
	}
	rep.Download, err = s.Download(ctx, downloadLimit)
	if errors.Is(err, downloads.ErrBudgetExhausted) {
		logger.Pl.W("%s: %v", s.channel.Name, err)
		err = nil
	}
	return rep, err
}

// KnownVids returns every catalog entry, re-read from storage.
func (s *Syncer) KnownVids(ctx context.Context) ([]models.Entry, error) {
	return s.cat.KnownVids(ctx, true)
}

// FindMissing returns the entries with no file in the destination.
func (s *Syncer) FindMissing(ctx context.Context) ([]models.Entry, error) {
	if _, err := s.cat.Load(ctx); err != nil {
		return nil, err
	}
	return s.cat.FindMissingDownloads(ctx)
}

// AlreadyDownloaded returns the entries whose file is present.
func (s *Syncer) AlreadyDownloaded(ctx context.Context) ([]models.Entry, error) {
	if _, err := s.cat.Load(ctx); err != nil {
		return nil, err
	}
	return s.cat.AlreadyDownloaded(ctx)
}
