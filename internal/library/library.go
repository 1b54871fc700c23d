package library

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"

	"media-lite/internal/filesystem"
	"media-lite/internal/logging"
	"media-lite/internal/media"
	"media-lite/internal/mediatypes"
	"media-lite/internal/metrics"
	"media-lite/internal/transcoder"
)

var (
	// ErrUnsupportedType is returned when a file's extension is not accepted
	// for the requested kind.
	ErrUnsupportedType = errors.New("file type not accepted")
	// ErrInvalidName is returned for empty names or names with path parts.
	ErrInvalidName = errors.New("invalid filename")
	// ErrNotFound is returned when deleting a file that does not exist.
	ErrNotFound = errors.New("media file not found")
)

// Dirs holds the storage directory for each kind.
type Dirs struct {
	Video    string
	Image    string
	Document string
}

// Associations is the part of the catalog store uploads and deletes touch.
type Associations interface {
	SetAssociation(ctx context.Context, kind mediatypes.Kind, filename string, categoryID int64) error
	RemoveAssociation(ctx context.Context, kind mediatypes.Kind, filename string) error
}

// Stored describes an asset written by Store.
type Stored struct {
	Kind          mediatypes.Kind   `json:"kind"`
	Filename      string            `json:"filename"`
	Path          string            `json:"-"`
	Size          int64             `json:"size"`
	ThumbnailPath string            `json:"-"`
	Orientation   media.Orientation `json:"-"`
	Normalized    bool              `json:"normalized"`
}

// Library is the upload-side entry point: it stores bytes, normalizes
// videos, renders thumbnails and keeps category associations in step.
type Library struct {
	dirs       Dirs
	normalizer *media.Normalizer
	analyzer   *media.Analyzer
	thumbs     *media.ThumbnailGenerator
	assoc      Associations
	log        zerolog.Logger
	now        func() time.Time
}

// New creates a Library. assoc may be nil when no catalog is attached.
func New(dirs Dirs, tc transcoder.Transcoder, policy media.RotationPolicy, thumbs *media.ThumbnailGenerator, assoc Associations) *Library {
	return &Library{
		dirs:       dirs,
		normalizer: media.NewNormalizer(tc, policy),
		analyzer:   media.NewAnalyzer(tc),
		thumbs:     thumbs,
		assoc:      assoc,
		log:        logging.With("library"),
		now:        time.Now,
	}
}

// Dir returns the storage directory for kind.
func (l *Library) Dir(kind mediatypes.Kind) (string, error) {
	switch kind {
	case mediatypes.KindVideo:
		return l.dirs.Video, nil
	case mediatypes.KindImage:
		return l.dirs.Image, nil
	case mediatypes.KindDocument:
		return l.dirs.Document, nil
	default:
		return "", fmt.Errorf("%w: kind %q", ErrUnsupportedType, kind)
	}
}

func accepts(kind mediatypes.Kind, ext string) bool {
	switch kind {
	case mediatypes.KindVideo:
		return mediatypes.VideoExtensions[ext]
	case mediatypes.KindImage:
		return mediatypes.ImageExtensions[ext]
	case mediatypes.KindDocument:
		return mediatypes.DocumentExtensions[ext]
	}
	return false
}

// UniqueName turns an uploaded name into "<base>_<unix seconds><ext>".
func UniqueName(originalName string, now time.Time) (string, error) {
	name := filepath.Base(filepath.Clean("/" + strings.ReplaceAll(originalName, `\`, "/")))
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	if base == "" || name == "/" || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, originalName)
	}
	return fmt.Sprintf("%s_%d%s", base, now.Unix(), ext), nil
}

// Store writes r as a new asset of kind. Videos are normalized and every
// kind that has one gets a thumbnail; failures in either step are logged and
// the asset is kept. A categoryID other than 0 is recorded in the catalog.
//
// If only the catalog write fails, the stored asset is returned together with
// an error wrapping media.ErrCatalogInconsistency.
func (l *Library) Store(ctx context.Context, kind mediatypes.Kind, originalName string, r io.Reader, categoryID int64) (stored *Stored, err error) {
	defer func() {
		result := "success"
		if err != nil && stored == nil {
			result = "error"
		}
		metrics.LibraryOperationsTotal.WithLabelValues("store", string(kind), result).Inc()
	}()

	dir, err := l.Dir(kind)
	if err != nil {
		return nil, err
	}
	ext := mediatypes.Ext(originalName)
	if !accepts(kind, ext) {
		return nil, fmt.Errorf("%w: %q is not a %s", ErrUnsupportedType, originalName, kind)
	}

	name, path, err := l.reserveName(dir, originalName)
	if err != nil {
		return nil, err
	}
	log := l.log.With().Str("file", name).Str("kind", string(kind)).Logger()

	size, err := writeAtomically(path, r)
	if err != nil {
		media.RecordFailure("library", err)
		return nil, fmt.Errorf("store %s: %w", name, err)
	}
	metrics.LibraryBytesStored.WithLabelValues(string(kind)).Add(float64(size))
	log.Info().Int64("size", size).Msg("asset stored")

	stored = &Stored{Kind: kind, Filename: name, Path: path, Size: size}

	if kind == mediatypes.KindVideo {
		res, nerr := l.normalizer.Run(ctx, path)
		if nerr != nil {
			log.Warn().Err(nerr).Msg("video kept without rotation fix")
		}
		stored.Normalized = nerr == nil && res.Changed
		stored.Orientation = l.analyzer.ClassifyOrLandscape(ctx, path)
	}

	if kind.HasThumbnail() && l.thumbs != nil {
		if thumb, ok := l.thumbs.Generate(ctx, kind, path); ok {
			stored.ThumbnailPath = thumb
		}
	}

	if categoryID != 0 && l.assoc != nil {
		if aerr := l.assoc.SetAssociation(ctx, kind, name, categoryID); aerr != nil {
			aerr = fmt.Errorf("%w: %v", media.ErrCatalogInconsistency, aerr)
			media.RecordFailure("library", aerr)
			metrics.CatalogInconsistenciesTotal.WithLabelValues("library").Inc()
			log.Error().Err(aerr).Int64("category", categoryID).Msg("asset stored but category not recorded")
			return stored, aerr
		}
	}
	return stored, nil
}

// reserveName picks a unique name in dir. Two uploads of the same name in
// the same second get a numeric suffix.
func (l *Library) reserveName(dir, originalName string) (string, string, error) {
	name, err := UniqueName(originalName, l.now())
	if err != nil {
		return "", "", err
	}
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	candidate := name
	for i := 1; ; i++ {
		path := filepath.Join(dir, candidate)
		exists, err := filesystem.Exists(path, filesystem.DefaultRetryConfig())
		if err != nil {
			return "", "", err
		}
		if !exists {
			return candidate, path, nil
		}
		candidate = fmt.Sprintf("%s_%d%s", base, i, ext)
	}
}

func writeAtomically(path string, r io.Reader) (int64, error) {
	pending, err := renameio.NewPendingFile(path, renameio.WithTempDir(filepath.Dir(path)), renameio.WithPermissions(0o644))
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = pending.Cleanup()
	}()

	n, err := io.Copy(pending, r)
	if err != nil {
		return 0, err
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return 0, err
	}
	return n, nil
}

// Delete removes an asset, its thumbnail and its category association. A
// missing thumbnail or association is not an error.
func (l *Library) Delete(ctx context.Context, kind mediatypes.Kind, filename string) (err error) {
	defer func() {
		result := "success"
		if err != nil {
			result = "error"
		}
		metrics.LibraryOperationsTotal.WithLabelValues("delete", string(kind), result).Inc()
	}()

	if filename == "" || filepath.Base(filename) != filename || strings.HasPrefix(filename, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidName, filename)
	}
	dir, err := l.Dir(kind)
	if err != nil {
		return err
	}

	if err := os.Remove(filepath.Join(dir, filename)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, filename)
		}
		media.RecordFailure("library", err)
		return fmt.Errorf("delete %s: %w", filename, err)
	}

	if l.thumbs != nil {
		if thumb := l.thumbs.PathFor(kind, filename); thumb != "" {
			if err := os.Remove(thumb); err != nil && !os.IsNotExist(err) {
				l.log.Warn().Err(err).Str("thumbnail", thumb).Msg("failed to remove thumbnail")
			}
		}
	}

	if kind != mediatypes.KindDocument && l.assoc != nil {
		if err := l.assoc.RemoveAssociation(ctx, kind, filename); err != nil {
			err = fmt.Errorf("%w: %v", media.ErrCatalogInconsistency, err)
			media.RecordFailure("library", err)
			metrics.CatalogInconsistenciesTotal.WithLabelValues("library").Inc()
			return err
		}
	}

	l.log.Info().Str("file", filename).Str("kind", string(kind)).Msg("asset deleted")
	return nil
}

// Thumbnail returns the thumbnail path for an asset, or the placeholder if
// none has been generated.
func (l *Library) Thumbnail(kind mediatypes.Kind, filename string) (string, error) {
	if l.thumbs == nil {
		return "", errors.New("no thumbnail directory configured")
	}
	return l.thumbs.ThumbnailOrPlaceholder(kind, filename)
}

// Orientation classifies a stored video, defaulting to landscape.
func (l *Library) Orientation(ctx context.Context, filename string) media.Orientation {
	return l.analyzer.ClassifyOrLandscape(ctx, filepath.Join(l.dirs.Video, filepath.Base(filename)))
}
