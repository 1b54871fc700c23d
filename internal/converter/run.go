package converter

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"

	"media-lite/internal/metrics"
)

// Run sweeps orphaned temp files, scans once, and then rescans every poll
// interval and on directory events until ctx is cancelled. Polling stays
// authoritative; events only bring the next pass forward.
func (c *Converter) Run(ctx context.Context) error {
	c.setRunning(true)
	defer c.setRunning(false)

	c.log.Info().Str("dir", c.cfg.Dir).
		Str("legacy", c.cfg.LegacyExt).Str("target", c.cfg.TargetExt).
		Dur("poll", c.cfg.PollInterval).
		Msg("converter started")

	if removed := c.SweepTemps(); removed > 0 {
		c.log.Info().Int("removed", removed).Msg("swept orphaned temp files")
	}

	var wg sync.WaitGroup
	defer wg.Wait()

	if c.cfg.ReconcileSchedule != "" {
		sched := cron.New()
		if _, err := sched.AddFunc(c.cfg.ReconcileSchedule, func() { c.Reconcile(ctx) }); err != nil {
			return fmt.Errorf("invalid reconcile schedule %q: %w", c.cfg.ReconcileSchedule, err)
		}
		sched.Start()
		defer func() { <-sched.Stop().Done() }()
	}

	if c.cfg.Watch {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.watch(ctx)
		}()
	}

	c.ScanOnce(ctx)

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.log.Info().Msg("converter stopped")
			return nil
		case <-ticker.C:
			c.ScanOnce(ctx)
		case <-c.wake:
			c.ScanOnce(ctx)
		}
	}
}

// Trigger asks a running converter for an early pass. It never blocks.
func (c *Converter) Trigger() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Converter) setRunning(running bool) {
	c.statusMu.Lock()
	c.status.Running = running
	c.statusMu.Unlock()
	if running {
		metrics.ConverterIsRunning.Set(1)
	} else {
		metrics.ConverterIsRunning.Set(0)
	}
}

// watch triggers a pass whenever a legacy file is created, written or moved
// into the directory. Failures only cost latency, so they are logged and the
// watcher gives up.
func (c *Converter) watch(ctx context.Context) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		metrics.ConverterWatcherErrors.Inc()
		c.log.Warn().Err(err).Msg("cannot create file watcher, relying on polling")
		return
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			c.log.Warn().Err(err).Msg("failed to close file watcher")
		}
	}()

	if err := watcher.Add(c.cfg.Dir); err != nil {
		metrics.ConverterWatcherErrors.Inc()
		c.log.Warn().Err(err).Str("dir", c.cfg.Dir).Msg("cannot watch video directory, relying on polling")
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !c.relevant(event) {
				continue
			}
			metrics.ConverterWatcherEvents.WithLabelValues(opLabel(event.Op)).Inc()
			c.log.Debug().Str("file", filepath.Base(event.Name)).Str("op", event.Op.String()).Msg("watch event")
			c.Trigger()
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			metrics.ConverterWatcherErrors.Inc()
			c.log.Warn().Err(err).Msg("file watcher error")
		}
	}
}

func (c *Converter) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
		return false
	}
	name := filepath.Base(event.Name)
	return !strings.HasPrefix(name, ".") && strings.EqualFold(filepath.Ext(name), c.cfg.LegacyExt)
}

func opLabel(op fsnotify.Op) string {
	switch {
	case op.Has(fsnotify.Create):
		return "create"
	case op.Has(fsnotify.Write):
		return "write"
	case op.Has(fsnotify.Rename):
		return "rename"
	default:
		return "other"
	}
}
