package downloads

import (
	"errors"
	"fmt"

	"chansync/internal/domain/consts"
)

// Stage is a download item's position in the pipeline.
type Stage string

const (
	StagePending     Stage = "pending"
	StageDownloading Stage = "downloading"
	StageConverting  Stage = "converting"
	StageCopying     Stage = "copying"
	StageDone        Stage = "done"
	StageFailed      Stage = "failed"
)

var (
	// ErrCancelled marks an item stopped before entering its next stage.
	ErrCancelled = errors.New("download cancelled")
	// ErrBudgetExhausted is returned when a batch stops after too many failures.
	ErrBudgetExhausted = errors.New("download error budget exhausted")
	// ErrNoMedia is returned when yt-dlp exits cleanly without producing a file.
	ErrNoMedia = errors.New("no media file produced")
)

// StageError is a failure within one pipeline stage.
type StageError struct {
	URL   string
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed while %s: %v", e.URL, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Options holds orchestrator configuration.
type Options struct {
	// ErrorBudget is how many item failures a batch tolerates.
	ErrorBudget int
	// ScratchRoot holds per-item temp directories; empty uses os.TempDir.
	ScratchRoot string
}

// DefaultOptions provides the standard error budget.
var DefaultOptions = Options{
	ErrorBudget: consts.DownloadErrorBudget,
}

// Summary reports the outcome of one batch.
type Summary struct {
	Attempted int
	Succeeded int
	Failed    int
	// Skipped counts items cut by the limit or cancelled before starting.
	Skipped int
}
