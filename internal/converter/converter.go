package converter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/renameio/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"media-lite/internal/filesystem"
	"media-lite/internal/logging"
	"media-lite/internal/media"
	"media-lite/internal/mediatypes"
	"media-lite/internal/metrics"
	"media-lite/internal/transcoder"
)

// Catalog is the part of the catalog store the converter needs. Filenames are
// bare names relative to the video directory.
type Catalog interface {
	// Rename moves the association of oldName to newName. A missing oldName
	// association is not an error and reports false.
	Rename(ctx context.Context, oldName, newName string) (bool, error)
	// Get reports the category associated with filename, if any.
	Get(ctx context.Context, filename string) (int64, bool, error)
	// Filenames lists every filename that has an association.
	Filenames(ctx context.Context) ([]string, error)
}

// Config holds the converter settings.
type Config struct {
	Dir               string
	LegacyExt         string
	TargetExt         string
	PollInterval      time.Duration
	SettleAge         time.Duration
	TempMaxAge        time.Duration
	Watch             bool
	ReconcileSchedule string
}

// Per-file outcomes, also used as metric labels.
const (
	resultConverted     = "converted"
	resultSkippedExists = "skipped_exists"
	resultSettling      = "skipped_settling"
	resultFailed        = "failed"
	resultCatalogFailed = "catalog_failed"
)

// ScanResult summarizes one scan pass.
type ScanResult struct {
	ID            string        `json:"id"`
	Started       time.Time     `json:"started"`
	Duration      time.Duration `json:"duration"`
	Candidates    int           `json:"candidates"`
	Converted     int           `json:"converted"`
	SkippedExists int           `json:"skippedExists"`
	Deferred      int           `json:"deferred"`
	Failed        int           `json:"failed"`
	CatalogFailed int           `json:"catalogFailed"`
}

// Status is a snapshot of the converter for health endpoints.
type Status struct {
	Running        bool       `json:"running"`
	Scans          int64      `json:"scans"`
	TotalConverted int64      `json:"totalConverted"`
	LastScan       ScanResult `json:"lastScan"`
	LastReconcile  time.Time  `json:"lastReconcile,omitempty"`
}

// Converter rewrites legacy-container videos into the target container,
// baking rotation in with the configured policy, and keeps the catalog's
// filename keys in step.
type Converter struct {
	cfg     Config
	tc      transcoder.Transcoder
	policy  media.RotationPolicy
	catalog Catalog
	thumbs  *media.ThumbnailGenerator
	log     zerolog.Logger
	now     func() time.Time
	remove  func(string) error

	scanMu   sync.Mutex
	statusMu sync.RWMutex
	status   Status
	wake     chan struct{}
}

// New creates a Converter. thumbs may be nil to skip thumbnail refreshes.
func New(cfg Config, tc transcoder.Transcoder, policy media.RotationPolicy, catalog Catalog, thumbs *media.ThumbnailGenerator) *Converter {
	if cfg.LegacyExt == "" {
		cfg.LegacyExt = ".mov"
	}
	if cfg.TargetExt == "" {
		cfg.TargetExt = ".mp4"
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.TempMaxAge <= 0 {
		cfg.TempMaxAge = time.Hour
	}
	return &Converter{
		cfg:     cfg,
		tc:      tc,
		policy:  policy,
		catalog: catalog,
		thumbs:  thumbs,
		log:     logging.With("converter"),
		now:     time.Now,
		remove:  os.Remove,
		wake:    make(chan struct{}, 1),
	}
}

// Status returns a snapshot of the converter state.
func (c *Converter) Status() Status {
	c.statusMu.RLock()
	defer c.statusMu.RUnlock()
	return c.status
}

// TargetName maps a legacy filename to its converted name.
func (c *Converter) TargetName(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name)) + c.cfg.TargetExt
}

func (c *Converter) isCandidate(entry os.DirEntry) bool {
	name := entry.Name()
	if entry.IsDir() || strings.HasPrefix(name, ".") {
		return false
	}
	return strings.EqualFold(filepath.Ext(name), c.cfg.LegacyExt)
}

// ScanOnce runs one pass over the video directory. Files are handled one at a
// time in directory order; a failing file never stops the pass.
func (c *Converter) ScanOnce(ctx context.Context) ScanResult {
	c.scanMu.Lock()
	defer c.scanMu.Unlock()

	res := ScanResult{ID: uuid.NewString(), Started: c.now()}
	log := c.log.With().Str("scan", res.ID).Logger()

	defer func() {
		res.Duration = time.Since(res.Started)
		metrics.ConverterScansTotal.Inc()
		metrics.ConverterLastScanTimestamp.Set(float64(c.now().Unix()))
		metrics.ConverterLastScanDuration.Set(res.Duration.Seconds())

		c.statusMu.Lock()
		c.status.Scans++
		c.status.TotalConverted += int64(res.Converted)
		c.status.LastScan = res
		c.statusMu.Unlock()
	}()

	entries, err := filesystem.ReadDirWithRetry(c.cfg.Dir, filesystem.DefaultRetryConfig())
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn().Str("dir", c.cfg.Dir).Msg("video directory does not exist, waiting")
		} else {
			log.Error().Err(err).Str("dir", c.cfg.Dir).Msg("cannot list video directory")
		}
		return res
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		if !c.isCandidate(entry) {
			continue
		}
		res.Candidates++

		result := c.processFile(ctx, log, entry.Name())
		metrics.ConverterFilesTotal.WithLabelValues(result).Inc()
		switch result {
		case resultConverted:
			res.Converted++
		case resultCatalogFailed:
			res.Converted++
			res.CatalogFailed++
		case resultSkippedExists:
			res.SkippedExists++
		case resultSettling:
			res.Deferred++
		default:
			res.Failed++
		}
	}

	if res.Candidates > 0 {
		log.Info().
			Int("candidates", res.Candidates).
			Int("converted", res.Converted).
			Int("skipped", res.SkippedExists).
			Int("deferred", res.Deferred).
			Int("failed", res.Failed).
			Int("catalog_failed", res.CatalogFailed).
			Msg("scan pass complete")
	}
	return res
}

// processFile converts one legacy file. It recovers panics so that one bad
// file cannot take the daemon down.
func (c *Converter) processFile(ctx context.Context, log zerolog.Logger, name string) (result string) {
	log = log.With().Str("file", name).Logger()

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic converting %s: %v", name, r)
			media.RecordFailure("converter", err)
			log.Error().Err(err).Bytes("stack", debug.Stack()).Msg("recovered from panic")
			result = resultFailed
		}
	}()

	src := filepath.Join(c.cfg.Dir, name)
	targetName := c.TargetName(name)
	dst := filepath.Join(c.cfg.Dir, targetName)

	info, err := os.Stat(src)
	if err != nil {
		// Gone between listing and processing.
		log.Debug().Err(err).Msg("legacy file vanished")
		return resultFailed
	}
	if age := c.now().Sub(info.ModTime()); age < c.cfg.SettleAge {
		log.Debug().Dur("age", age).Msg("legacy file still settling, deferring")
		return resultSettling
	}

	exists, err := filesystem.Exists(dst, filesystem.DefaultRetryConfig())
	if err != nil {
		media.RecordFailure("converter", err)
		log.Error().Err(err).Str("target", targetName).Msg("cannot check target")
		return resultFailed
	}
	if exists {
		if c.interrupted(ctx, name, targetName) {
			log.Info().Str("target", targetName).Msg("target exists but catalog still names the legacy file, finishing conversion")
			return c.finish(ctx, log, name, targetName, true)
		}
		log.Debug().Str("target", targetName).Msg("target already exists, skipping")
		return resultSkippedExists
	}

	op, plan := c.operationFor(ctx, log, src)

	start := time.Now()
	if _, _, err := media.ReplaceWithTranscode(ctx, c.tc, src, dst, op, renameio.WithPermissions(0o644)); err != nil {
		kind := media.RecordFailure("converter", err)
		log.Error().Err(err).Str("kind", kind).Msg("conversion failed")
		return resultFailed
	}
	log.Info().Str("target", targetName).
		Str("transform", op.Transform.String()).
		Dur("took", time.Since(start)).
		Msg("converted")

	return c.finish(ctx, log, name, targetName, plan.Needed())
}

// interrupted reports whether an existing target is the output of an earlier
// conversion whose legacy file could not be removed: the catalog still keys
// the legacy name and has nothing under the target name.
func (c *Converter) interrupted(ctx context.Context, name, targetName string) bool {
	if c.catalog == nil {
		return false
	}
	if _, ok, err := c.catalog.Get(ctx, name); err != nil || !ok {
		return false
	}
	_, ok, err := c.catalog.Get(ctx, targetName)
	return err == nil && !ok
}

// finish completes a conversion whose target is already in place: the legacy
// file is removed, then the catalog key is renamed, then the thumbnail is
// refreshed. A legacy file that cannot be removed fails the file and leaves
// the catalog untouched so the next pass can retry.
func (c *Converter) finish(ctx context.Context, log zerolog.Logger, name, targetName string, refreshThumb bool) string {
	src := filepath.Join(c.cfg.Dir, name)
	dst := filepath.Join(c.cfg.Dir, targetName)

	if err := c.remove(src); err != nil && !os.IsNotExist(err) {
		err = fmt.Errorf("remove legacy file %s: %w", name, err)
		kind := media.RecordFailure("converter", err)
		log.Error().Err(err).Str("kind", kind).Msg("converted, but could not remove legacy file")
		return resultFailed
	}

	result := c.renameInCatalog(ctx, log, name, targetName)

	if c.thumbs != nil && (refreshThumb || !filesystem.NonEmptyFile(c.thumbs.PathFor(mediatypes.KindVideo, targetName))) {
		c.thumbs.Generate(ctx, mediatypes.KindVideo, dst)
	}
	return result
}

func (c *Converter) renameInCatalog(ctx context.Context, log zerolog.Logger, name, targetName string) string {
	if c.catalog == nil {
		return resultConverted
	}
	moved, err := c.catalog.Rename(ctx, name, targetName)
	if err != nil {
		err = fmt.Errorf("%w: %v", media.ErrCatalogInconsistency, err)
		media.RecordFailure("converter", err)
		metrics.CatalogInconsistenciesTotal.WithLabelValues("converter").Inc()
		log.Error().Err(err).Str("target", targetName).
			Msg("file converted but catalog rename failed; left for reconciliation")
		return resultCatalogFailed
	}
	if moved {
		log.Info().Str("target", targetName).Msg("catalog association renamed")
	}
	return resultConverted
}

// operationFor decides the re-encode for src. Probe or policy problems fall
// back to a plain container change with autorotation left on, so the legacy
// file still leaves the directory.
func (c *Converter) operationFor(ctx context.Context, log zerolog.Logger, src string) (transcoder.Operation, media.Plan) {
	format := transcoder.FormatForExt(c.cfg.TargetExt)

	probe, err := c.tc.Probe(ctx, src)
	if err != nil {
		if !errors.Is(err, transcoder.ErrToolMissing) {
			log.Warn().Err(err).Str("kind", media.ErrorKind(err)).Msg("probe failed, converting without rotation fix")
		}
		return transcoder.Operation{Format: format}, media.Plan{}
	}

	plan, err := c.policy.Plan(probe)
	if err != nil {
		log.Warn().Err(err).Int("rotation", probe.Rotation).Msg("no rotation plan, converting without rotation fix")
		return transcoder.Operation{Format: format}, media.Plan{}
	}
	return plan.Operation(format), plan
}
