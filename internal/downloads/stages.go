package downloads

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"chansync/internal/command"
	"chansync/internal/domain/consts"
	"chansync/internal/domain/logger"
	"chansync/internal/models"
	"chansync/internal/retry"
	"chansync/internal/sources"
	"chansync/internal/storage"
)

// Stages are the external steps of one item's pipeline.
type Stages interface {
	// Download fetches the item's audio into scratch and returns the file path.
	Download(ctx context.Context, url, scratch string) (string, error)
	// UploadDate returns nil when the platform reports no date.
	UploadDate(ctx context.Context, url string) (*models.Date, error)
	Convert(ctx context.Context, in, out string) error
	// Copy places a local file at dest in the destination tree.
	Copy(ctx context.Context, local, dest string) error
}

// ToolStages drives yt-dlp, ffmpeg and a storage backend.
type ToolStages struct {
	YtDlp   command.Executor
	FFmpeg  command.Executor
	Backend storage.Backend
	Variant sources.Variant
	// CookiesTxt is the Netscape cookie file handed to yt-dlp, if any.
	CookiesTxt string
	Retry      retry.Config
}

// NewToolStages returns stages with the default retry policy.
func NewToolStages(ytdlp, ffmpeg command.Executor, backend storage.Backend, v sources.Variant, cookiesTxt string) *ToolStages {
	return &ToolStages{
		YtDlp:      ytdlp,
		FFmpeg:     ffmpeg,
		Backend:    backend,
		Variant:    v,
		CookiesTxt: cookiesTxt,
		Retry:      retry.DefaultConfig(),
	}
}

func retryable(err error) bool {
	if errors.Is(err, command.ErrInterrupted) || errors.Is(err, command.ErrExecutableNotFound) {
		return false
	}
	return retry.IsRetryable(err)
}

func (t *ToolStages) downloadCookies() string {
	if t.Variant.DownloadCookies {
		return t.CookiesTxt
	}
	return ""
}

// Download implements Stages.
func (t *ToolStages) Download(ctx context.Context, url, scratch string) (string, error) {
	args := command.BestAudioArgs(url, scratch, t.Variant.Format, t.downloadCookies())

	var media string
	err := retry.Do(ctx, t.Retry, retryable, func(ctx context.Context) error {
		if _, err := t.YtDlp.Execute(ctx, args); err != nil {
			logger.Pl.W("Download attempt for %s failed: %v", url, err)
			return err
		}
		matches, err := filepath.Glob(filepath.Join(scratch, consts.ScratchBase+".*"))
		if err != nil {
			return retry.Permanent(err)
		}
		if len(matches) == 0 {
			return ErrNoMedia
		}
		media = matches[0]
		return nil
	})
	if err != nil {
		return "", err
	}
	return media, nil
}

// UploadDate implements Stages.
func (t *ToolStages) UploadDate(ctx context.Context, url string) (*models.Date, error) {
	res, err := t.YtDlp.Execute(ctx, command.UploadDateArgs(url, t.CookiesTxt))
	if err != nil {
		return nil, err
	}

	var last string
	for _, line := range strings.Split(res.Stdout, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			last = line
		}
	}
	d, err := models.ParseUploadDate(last)
	if err != nil {
		logger.Pl.W("Unparseable upload date %q for %s: %v", last, url, err)
		return nil, nil
	}
	return d, nil
}

// Convert implements Stages.
func (t *ToolStages) Convert(ctx context.Context, in, out string) error {
	_, err := t.FFmpeg.Execute(ctx, command.ConvertArgs(in, out))
	return err
}

// Copy implements Stages.
func (t *ToolStages) Copy(ctx context.Context, local, dest string) error {
	data, err := os.ReadFile(local)
	if err != nil {
		return err
	}
	if err := t.Backend.WriteFile(ctx, dest, data); err != nil {
		return fmt.Errorf("failed to copy %s to %s: %w", local, dest, err)
	}
	return nil
}
