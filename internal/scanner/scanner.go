// Package scanner lists a channel's remote items.
package scanner

import (
	"context"
	"errors"

	"chansync/internal/command"
	"chansync/internal/domain/consts"
	"chansync/internal/domain/logger"
	"chansync/internal/models"
)

// Streamer runs a tool and feeds it each output line.
type Streamer interface {
	Stream(ctx context.Context, args []string, onLine command.LineFunc) (stopped bool, err error)
}

// Request describes one channel scan.
type Request struct {
	ChannelURL string
	// Limit caps the listing depth; zero or less scans everything.
	Limit           int
	StopOnDuplicate bool
	// Known holds the URLs already in the catalog.
	Known      map[string]struct{}
	CookiesTxt string
	// ExtraArgs carries per-platform listing flags.
	ExtraArgs []string
}

// Result is what a scan collected and why it ended.
type Result struct {
	Entries      []models.Entry
	Errors       int
	RateLimited  bool
	StoppedEarly bool
	Aborted      bool
}

// Scanner lists channels through yt-dlp.
type Scanner struct {
	streamer Streamer
	ceiling  int
}

// New returns a scanner. A non-positive ceiling uses the default error ceiling.
func New(s Streamer, ceiling int) *Scanner {
	if ceiling <= 0 {
		ceiling = consts.ScanErrorCeiling
	}
	return &Scanner{streamer: s, ceiling: ceiling}
}

// Scan lists req.ChannelURL.
//
// Rate limiting, a known item (with StopOnDuplicate) or too many malformed
// lines stop the listing early; what was collected is still returned. An
// interrupted child yields command.ErrInterrupted.
func (s *Scanner) Scan(ctx context.Context, req Request) (Result, error) {
	if err := models.ValidateURL(req.ChannelURL); err != nil {
		return Result{}, err
	}

	l := newListing(s.ceiling, req.StopOnDuplicate, req.Known)
	args := command.ListArgs(req.ChannelURL, req.Limit, req.CookiesTxt, req.ExtraArgs)

	logger.Pl.I("Scanning %s", req.ChannelURL)
	_, err := s.streamer.Stream(ctx, args, l.feed)

	res := Result{
		Entries:      l.entries,
		Errors:       l.errors,
		RateLimited:  l.rateLimited,
		StoppedEarly: l.stoppedEarly,
		Aborted:      l.aborted,
	}

	var exitErr *command.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		logger.Pl.W("Scan of %s exited with code %d, keeping %d collected items", req.ChannelURL, exitErr.Code, len(res.Entries))
	default:
		return res, err
	}

	logger.Pl.I("Scan of %s found %d items (%d errors)", req.ChannelURL, len(res.Entries), res.Errors)
	return res, nil
}
