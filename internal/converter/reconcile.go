package converter

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"media-lite/internal/filesystem"
	"media-lite/internal/media"
	"media-lite/internal/mediatypes"
	"media-lite/internal/metrics"
)

// Reconcile repairs associations left behind by failed catalog renames: a
// row keyed by a legacy filename whose file is gone but whose converted
// sibling exists is moved to the converted name. It returns the number of
// rows repaired.
func (c *Converter) Reconcile(ctx context.Context) int {
	if c.catalog == nil {
		return 0
	}

	log := c.log.With().Str("job", "reconcile").Logger()

	names, err := c.catalog.Filenames(ctx)
	if err != nil {
		media.RecordFailure("converter", err)
		log.Error().Err(err).Msg("cannot list catalog filenames")
		return 0
	}

	retry := filesystem.DefaultRetryConfig()
	repaired := 0
	for _, name := range names {
		if ctx.Err() != nil {
			break
		}
		if !strings.EqualFold(filepath.Ext(name), c.cfg.LegacyExt) {
			continue
		}

		legacyExists, err := filesystem.Exists(filepath.Join(c.cfg.Dir, name), retry)
		if err != nil || legacyExists {
			continue
		}
		target := c.TargetName(name)
		targetExists, err := filesystem.Exists(filepath.Join(c.cfg.Dir, target), retry)
		if err != nil || !targetExists {
			continue
		}

		moved, err := c.catalog.Rename(ctx, name, target)
		if err != nil {
			metrics.CatalogInconsistenciesTotal.WithLabelValues("reconcile").Inc()
			log.Warn().Err(err).Str("file", name).Str("target", target).Msg("reconcile rename failed")
			continue
		}
		if moved {
			repaired++
			metrics.ReconcileRenamesTotal.Inc()
			log.Info().Str("file", name).Str("target", target).Msg("catalog association repaired")
		}
	}

	c.statusMu.Lock()
	c.status.LastReconcile = c.now()
	c.statusMu.Unlock()

	if repaired > 0 {
		log.Info().Int("repaired", repaired).Msg("reconcile complete")
	}
	return repaired
}

// SweepTemps removes pending files older than TempMaxAge that an earlier
// process left behind when it died mid-transcode. Pending files are hidden
// siblings named "." + target name + random digits. The thumbnail directory
// is swept too, for extracted frames and unfinished thumbnail writes.
func (c *Converter) SweepTemps() int {
	removed := c.sweepDir(c.cfg.Dir, c.isPendingName)
	if c.thumbs != nil {
		removed += c.sweepDir(c.thumbs.Dir(), isThumbTempName)
	}
	return removed
}

func (c *Converter) sweepDir(dir string, match func(string) bool) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !match(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil || c.now().Sub(info.ModTime()) < c.cfg.TempMaxAge {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := os.Remove(path); err != nil {
			c.log.Warn().Err(err).Str("file", path).Msg("cannot remove orphaned temp file")
			continue
		}
		c.log.Debug().Str("file", path).Msg("removed orphaned temp file")
		removed++
	}
	return removed
}

// isPendingName matches "." + a video filename + the random digits renameio
// appends.
func (c *Converter) isPendingName(name string) bool {
	exts := []string{strings.ToLower(c.cfg.TargetExt), strings.ToLower(c.cfg.LegacyExt)}
	for ext := range mediatypes.VideoExtensions {
		exts = append(exts, ext)
	}
	return hasPendingSuffix(name, exts)
}

// isThumbTempName matches frames extracted for video thumbnails and pending
// thumbnail writes.
func isThumbTempName(name string) bool {
	if strings.HasPrefix(name, ".frame-") && strings.HasSuffix(name, ".jpg") {
		return true
	}
	exts := []string{".jpg"}
	for ext := range mediatypes.ImageExtensions {
		exts = append(exts, ext)
	}
	return hasPendingSuffix(name, exts)
}

// hasPendingSuffix reports whether name is "." + something ending in one of
// exts + digits. Extensions are checked from the end because the digits may
// start with one that belongs to the extension (".mp4" + "123").
func hasPendingSuffix(name string, exts []string) bool {
	if !strings.HasPrefix(name, ".") {
		return false
	}
	rest := strings.ToLower(name[1:])
	for _, ext := range exts {
		i := strings.LastIndex(rest, ext)
		if i <= 0 {
			continue
		}
		digits := rest[i+len(ext):]
		if digits != "" && strings.Trim(digits, "0123456789") == "" {
			return true
		}
	}
	return false
}
