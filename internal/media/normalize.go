package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"

	"media-lite/internal/logging"
	"media-lite/internal/metrics"
	"media-lite/internal/transcoder"
)

// NormalizeResult describes what Normalize did to a file.
type NormalizeResult struct {
	Before    transcoder.ProbeResult
	After     transcoder.ProbeResult
	Transform transcoder.Transform
	Changed   bool
}

// Normalizer bakes rotation into video pixels according to a RotationPolicy.
// Calls for the same path are serialized; different paths run in parallel.
type Normalizer struct {
	tc     transcoder.Transcoder
	policy RotationPolicy
	locks  *pathLocks
	log    zerolog.Logger
}

// NewNormalizer creates a Normalizer.
func NewNormalizer(tc transcoder.Transcoder, policy RotationPolicy) *Normalizer {
	return &Normalizer{
		tc:     tc,
		policy: policy,
		locks:  newPathLocks(),
		log:    logging.With("normalizer"),
	}
}

// Policy returns the policy this normalizer applies.
func (n *Normalizer) Policy() RotationPolicy {
	return n.policy
}

// Normalize reports whether path is in normalized form afterwards. A false
// result leaves the file exactly as it was.
func (n *Normalizer) Normalize(ctx context.Context, path string) bool {
	_, err := n.Run(ctx, path)
	return err == nil
}

// Run is Normalize with details. On error the original file is untouched and
// no temporary file is left behind.
func (n *Normalizer) Run(ctx context.Context, path string) (NormalizeResult, error) {
	unlock := n.locks.lock(path)
	defer unlock()

	start := time.Now()
	res, result, err := n.run(ctx, path)
	metrics.NormalizeTotal.WithLabelValues(result).Inc()
	if err != nil {
		kind := recordFailure("normalizer", err)
		n.log.Error().Err(err).Str("path", path).Str("kind", kind).Msg("normalization failed")
		return res, err
	}
	if res.Changed {
		metrics.NormalizeDuration.Observe(time.Since(start).Seconds())
		n.log.Info().Str("path", path).
			Str("transform", res.Transform.String()).
			Int("width", res.After.Width).Int("height", res.After.Height).
			Dur("took", time.Since(start)).
			Msg("rotation normalized")
	}
	return res, nil
}

func (n *Normalizer) run(ctx context.Context, path string) (NormalizeResult, string, error) {
	var res NormalizeResult

	before, err := n.tc.Probe(ctx, path)
	if err != nil {
		return res, "probe_failed", fmt.Errorf("probe %s: %w", path, err)
	}
	res.Before = before
	res.After = before

	plan, err := n.policy.Plan(before)
	if err != nil {
		return res, "probe_failed", fmt.Errorf("plan %s: %w", path, err)
	}
	if !plan.Needed() {
		return res, "unchanged", nil
	}
	res.Transform = plan.Transform

	op := plan.Operation(transcoder.FormatForExt(filepath.Ext(path)))
	after, stage, err := ReplaceWithTranscode(ctx, n.tc, path, path, op, renameio.WithExistingPermissions())
	if err != nil {
		return res, stage, err
	}

	want := plan.Expect(before)
	if after != nil {
		res.After = *after
		if after.Width != want.Width || after.Height != want.Height {
			n.log.Warn().Str("path", path).
				Int("want_width", want.Width).Int("want_height", want.Height).
				Int("got_width", after.Width).Int("got_height", after.Height).
				Msg("normalized dimensions differ from expectation")
		}
	} else {
		res.After = want
	}
	res.Changed = true
	return res, "rotated", nil
}

// ReplaceWithTranscode transcodes src into a pending sibling of dst, checks
// that the output is non-empty, re-probes it, and atomically moves it to dst.
// src and dst may be the same path. The re-probe result is nil if probing the
// output failed; that is logged but not treated as an error.
//
// The returned stage names the step that failed, for metrics.
func ReplaceWithTranscode(ctx context.Context, tc transcoder.Transcoder, src, dst string, op transcoder.Operation, opts ...renameio.Option) (*transcoder.ProbeResult, string, error) {
	opts = append([]renameio.Option{renameio.WithTempDir(filepath.Dir(dst))}, opts...)
	pending, err := renameio.NewPendingFile(dst, opts...)
	if err != nil {
		return nil, "replace_failed", fmt.Errorf("create pending file for %s: %w", dst, err)
	}
	defer func() {
		// No-op once the file has been committed.
		_ = pending.Cleanup()
	}()

	tmp := pending.Name()
	if err := tc.Transcode(ctx, src, tmp, op); err != nil {
		return nil, "transcode_failed", fmt.Errorf("transcode %s: %w", src, err)
	}

	info, err := os.Stat(tmp)
	if err != nil {
		return nil, "verify_failed", fmt.Errorf("stat transcoded output: %w", err)
	}
	if info.Size() == 0 {
		return nil, "verify_failed", fmt.Errorf("%w: transcoded output for %s is empty", transcoder.ErrToolFailure, src)
	}

	var after *transcoder.ProbeResult
	if probed, err := tc.Probe(ctx, tmp); err != nil {
		logging.Warn("Could not re-probe transcoded output of %s: %v", src, err)
	} else {
		after = &probed
	}

	if err := pending.CloseAtomicallyReplace(); err != nil {
		return nil, "replace_failed", fmt.Errorf("replace %s: %w", dst, err)
	}
	return after, "", nil
}

// pathLocks hands out one mutex per path, dropping entries nobody holds.
type pathLocks struct {
	mu    sync.Mutex
	locks map[string]*pathLock
}

type pathLock struct {
	mu   sync.Mutex
	refs int
}

func newPathLocks() *pathLocks {
	return &pathLocks{locks: make(map[string]*pathLock)}
}

func (p *pathLocks) lock(path string) func() {
	key := filepath.Clean(path)

	p.mu.Lock()
	l, ok := p.locks[key]
	if !ok {
		l = &pathLock{}
		p.locks[key] = l
	}
	l.refs++
	p.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		p.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(p.locks, key)
		}
		p.mu.Unlock()
	}
}
