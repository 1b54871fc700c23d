package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"media-lite/internal/filesystem"
	"media-lite/internal/logging"
	"media-lite/internal/media"
	"media-lite/internal/mediatypes"
	"media-lite/internal/workers"
)

type source struct {
	Kind mediatypes.Kind
	Dir  string
}

// gate blocks work while resources are short.
type gate interface {
	Wait(ctx context.Context) error
}

type options struct {
	Force   bool
	Workers int
	Gate    gate
}

// Summary counts the outcome of a backfill pass.
type Summary struct {
	Generated int
	Skipped   int
	Failed    int
}

type job struct {
	kind mediatypes.Kind
	path string
}

// defaultWorkers sizes the pool for jobs. Image-only passes are pure
// resizing; video frame grabs spend part of their time waiting on ffmpeg.
func defaultWorkers(jobs []job) int {
	for _, j := range jobs {
		if j.kind == mediatypes.KindVideo {
			return workers.ForMixed(len(jobs))
		}
	}
	return workers.ForCPU(len(jobs))
}

// backfill renders thumbnails for every asset in sources that lacks one, or
// for every asset when opts.Force is set. Per-file failures are counted, not
// returned; the error is non-nil only when a directory cannot be listed or
// ctx is cancelled.
func backfill(ctx context.Context, thumbs *media.ThumbnailGenerator, sources []source, opts options) (Summary, error) {
	log := logging.With("thumbgen")
	var summary Summary

	var jobs []job
	retry := filesystem.DefaultRetryConfig()
	for _, src := range sources {
		entries, err := os.ReadDir(src.Dir)
		if err != nil {
			return summary, fmt.Errorf("list %s directory: %w", src.Kind, err)
		}
		for _, entry := range entries {
			name := entry.Name()
			if entry.IsDir() || strings.HasPrefix(name, ".") || mediatypes.KindOf(name) != src.Kind {
				continue
			}
			if !opts.Force {
				exists, err := filesystem.Exists(thumbs.PathFor(src.Kind, name), retry)
				if err == nil && exists {
					summary.Skipped++
					continue
				}
			}
			jobs = append(jobs, job{kind: src.Kind, path: filepath.Join(src.Dir, name)})
		}
	}
	if len(jobs) == 0 {
		log.Info().Int("skipped", summary.Skipped).Msg("nothing to generate")
		return summary, nil
	}

	limit := opts.Workers
	if limit <= 0 {
		limit = defaultWorkers(jobs)
	}
	log.Info().Int("files", len(jobs)).Int("workers", limit).Bool("force", opts.Force).Msg("backfill started")

	start := time.Now()
	var generated, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, j := range jobs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if opts.Gate != nil {
				if err := opts.Gate.Wait(gctx); err != nil {
					return err
				}
			}
			if err := gctx.Err(); err != nil {
				return err
			}
			if _, ok := thumbs.Generate(gctx, j.kind, j.path); ok {
				generated.Add(1)
			} else {
				failed.Add(1)
			}
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	summary.Generated = int(generated.Load())
	summary.Failed = int(failed.Load())
	log.Info().
		Int("generated", summary.Generated).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Dur("took", time.Since(start)).
		Msg("backfill finished")
	return summary, err
}
