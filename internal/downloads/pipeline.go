package downloads

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"chansync/internal/domain/consts"
	"chansync/internal/domain/logger"
	"chansync/internal/models"
	"chansync/internal/workers"

	"github.com/google/uuid"
)

// Pipeline runs download requests through their stages.
//
// Downloads run on a pool owned by the pipeline; transcoding and upload date
// lookups share the process-wide pools.
type Pipeline struct {
	stages      Stages
	downloads   *workers.Pool
	convert     *workers.Pool
	resolve     *workers.Pool
	scratchRoot string
}

// NewPipeline starts a pipeline with size concurrent downloads.
func NewPipeline(stages Stages, size int, scratchRoot string) *Pipeline {
	if scratchRoot == "" {
		scratchRoot = os.TempDir()
	}
	return &Pipeline{
		stages:      stages,
		downloads:   workers.NewPool("download", size),
		convert:     workers.ConvertPool(),
		resolve:     workers.ResolverPool(),
		scratchRoot: scratchRoot,
	}
}

// Close stops the download pool. In-flight items still resolve their futures.
func (p *Pipeline) Close() {
	p.downloads.Stop()
}

// Submit queues every request and returns futures index-aligned with reqs.
//
// Subprocesses run under ctx. Stage transitions are gated on gate: once it
// is done, items fail with ErrCancelled instead of starting their next stage.
func (p *Pipeline) Submit(ctx, gate context.Context, reqs []models.DownloadRequest) []*workers.Future[models.FinalResult] {
	futures := make([]*workers.Future[models.FinalResult], len(reqs))
	for i := range futures {
		futures[i] = workers.NewFuture[models.FinalResult]()
	}

	go func() {
		for i, req := range reqs {
			f := futures[i]
			err := p.downloads.Submit(gate, func() {
				f.Resolve(p.process(ctx, gate, req))
			})
			if err != nil {
				f.Resolve(models.FinalResult{URL: req.URL, Dest: req.Dest, Err: cancelled(gate, err)})
			}
		}
	}()
	return futures
}

func cancelled(gate context.Context, err error) error {
	if cause := context.Cause(gate); cause != nil {
		return fmt.Errorf("%w: %w", ErrCancelled, cause)
	}
	return fmt.Errorf("%w: %w", ErrCancelled, err)
}

type dateResult struct {
	date *models.Date
	err  error
}

// item tracks one request through its stages.
type item struct {
	req   models.DownloadRequest
	stage Stage
	gate  context.Context
}

// advance moves to next unless the gate has closed.
func (it *item) advance(next Stage) error {
	if it.gate.Err() != nil {
		it.stage = StageFailed
		return cancelled(it.gate, it.gate.Err())
	}
	logger.Pl.D(3, "%s: %s -> %s", it.req.URL, it.stage, next)
	it.stage = next
	return nil
}

func (it *item) fail(stage Stage, err error) error {
	it.stage = StageFailed
	return &StageError{URL: it.req.URL, Stage: stage, Err: err}
}

func (p *Pipeline) process(ctx, gate context.Context, req models.DownloadRequest) models.FinalResult {
	it := &item{req: req, stage: StagePending, gate: gate}
	if err := it.advance(StageDownloading); err != nil {
		return models.FinalResult{URL: req.URL, Dest: req.Dest, Err: err}
	}
	// In-flight work is waited on even after the gate closes.
	drain := context.WithoutCancel(ctx)

	var date *workers.Future[dateResult]
	if req.FetchUploadDate {
		date = workers.Run(gate, p.resolve, func() dateResult {
			d, err := p.stages.UploadDate(ctx, req.URL)
			return dateResult{date: d, err: err}
		}, func(err error) dateResult {
			return dateResult{err: cancelled(gate, err)}
		})
	}

	var mediaErr error
	if req.DownloadMedia {
		mediaErr = p.media(ctx, drain, it)
	}

	res := models.FinalResult{URL: req.URL, Dest: req.Dest}
	if date != nil {
		dr, _ := date.Wait(drain)
		res.UploadDate = dr.date
		res.DateErr = dr.err
	}

	// A placed file is a success even without its upload date.
	switch {
	case mediaErr != nil:
		res.Err = mediaErr
		if it.stage != StageFailed {
			res.Err = it.fail(it.stage, mediaErr)
		}
		res.DateErr = nil
		return res
	case !req.DownloadMedia && res.DateErr != nil:
		res.Err = it.fail(StageDownloading, res.DateErr)
		res.DateErr = nil
		return res
	}
	it.stage = StageDone
	return res
}

// media downloads, converts and copies one item through a scratch directory.
func (p *Pipeline) media(ctx, drain context.Context, it *item) error {
	scratch := filepath.Join(p.scratchRoot, consts.ScratchPattern+uuid.NewString())
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		return err
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			logger.Pl.W("Failed to remove scratch directory %s: %v", scratch, err)
		}
	}()

	downloaded, err := p.stages.Download(ctx, it.req.URL, scratch)
	if err != nil {
		return err
	}

	if err := it.advance(StageConverting); err != nil {
		return err
	}
	converted := filepath.Join(scratch, consts.ScratchBase+"_out"+consts.AudioExt)
	conv := workers.Run(it.gate, p.convert, func() error {
		return p.stages.Convert(ctx, downloaded, converted)
	}, func(err error) error {
		it.stage = StageFailed
		return cancelled(it.gate, err)
	})
	if err, _ := conv.Wait(drain); err != nil {
		return err
	}

	if err := it.advance(StageCopying); err != nil {
		return err
	}
	return p.stages.Copy(ctx, converted, it.req.Dest)
}
