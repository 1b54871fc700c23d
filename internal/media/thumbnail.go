package media

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/renameio/v2"

	"media-lite/internal/logging"
	"media-lite/internal/mediatypes"
	"media-lite/internal/metrics"
	"media-lite/internal/transcoder"
)

const (
	ThumbnailWidth   = 320
	ThumbnailHeight  = 240
	ThumbnailQuality = 85

	// PlaceholderName is the shared fallback thumbnail inside the thumbnail directory.
	PlaceholderName = "fallback.jpg"

	// DefaultFrameOffset is where video thumbnails are taken from.
	DefaultFrameOffset = 3 * time.Second

	imageThumbnailPrefix = "thumb_"
)

// VideoThumbnailName returns the thumbnail filename for a video: the base
// name with a .jpg extension. A legacy clip and its converted copy share it.
func VideoThumbnailName(videoName string) string {
	base := filepath.Base(videoName)
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".jpg"
}

// ImageThumbnailName returns the thumbnail filename for an image. The
// original extension is kept even though the content is always JPEG.
func ImageThumbnailName(imageName string) string {
	return imageThumbnailPrefix + filepath.Base(imageName)
}

// ThumbnailName returns the thumbnail filename for an asset of kind, or ""
// if the kind gets no thumbnail.
func ThumbnailName(kind mediatypes.Kind, filename string) string {
	switch kind {
	case mediatypes.KindVideo:
		return VideoThumbnailName(filename)
	case mediatypes.KindImage:
		return ImageThumbnailName(filename)
	default:
		return ""
	}
}

// ThumbnailGenerator renders fixed-size letterboxed previews.
type ThumbnailGenerator struct {
	tc          transcoder.Transcoder
	dir         string
	frameOffset time.Duration

	placeholderMu sync.Mutex
}

// NewThumbnailGenerator creates a generator writing into dir.
func NewThumbnailGenerator(tc transcoder.Transcoder, dir string) *ThumbnailGenerator {
	return &ThumbnailGenerator{
		tc:          tc,
		dir:         dir,
		frameOffset: DefaultFrameOffset,
	}
}

// Dir returns the thumbnail directory.
func (g *ThumbnailGenerator) Dir() string {
	return g.dir
}

// PathFor returns where the thumbnail for filename of kind lives, or "" if
// the kind has none.
func (g *ThumbnailGenerator) PathFor(kind mediatypes.Kind, filename string) string {
	name := ThumbnailName(kind, filename)
	if name == "" {
		return ""
	}
	return filepath.Join(g.dir, name)
}

// Generate creates the thumbnail for srcPath in the thumbnail directory and
// returns its path.
func (g *ThumbnailGenerator) Generate(ctx context.Context, kind mediatypes.Kind, srcPath string) (string, bool) {
	out := g.PathFor(kind, srcPath)
	switch kind {
	case mediatypes.KindVideo:
		return out, g.GenerateVideoThumbnail(ctx, srcPath, out)
	case mediatypes.KindImage:
		return out, g.GenerateImageThumbnail(ctx, srcPath, out)
	default:
		return "", false
	}
}

// GenerateVideoThumbnail grabs a frame a few seconds in and letterboxes it
// into outPath. On failure outPath does not exist afterwards.
func (g *ThumbnailGenerator) GenerateVideoThumbnail(ctx context.Context, videoPath, outPath string) bool {
	start := time.Now()
	err := g.videoThumbnail(ctx, videoPath, outPath)
	return g.finish("video", videoPath, outPath, start, err)
}

// GenerateImageThumbnail applies EXIF orientation, letterboxes the image
// and writes it to outPath. On failure outPath does not exist afterwards.
func (g *ThumbnailGenerator) GenerateImageThumbnail(ctx context.Context, imagePath, outPath string) bool {
	start := time.Now()
	err := ctx.Err()
	if err == nil {
		err = imageThumbnail(imagePath, outPath)
	}
	return g.finish("image", imagePath, outPath, start, err)
}

func (g *ThumbnailGenerator) finish(thumbType, src, out string, start time.Time, err error) bool {
	metrics.ThumbnailGenerationDuration.WithLabelValues(thumbType).Observe(time.Since(start).Seconds())
	if err == nil {
		metrics.ThumbnailGenerationsTotal.WithLabelValues(thumbType, "success").Inc()
		logging.Debug("Thumbnail created for %s", src)
		return true
	}

	if rmErr := os.Remove(out); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
		logging.Warn("failed to remove stale thumbnail %s: %v", out, rmErr)
	}

	kind := recordFailure("thumbnail", err)
	status := "error"
	switch {
	case kind == KindToolMissing || kind == KindToolFailure:
		status = "error_tool"
	case errors.Is(err, errDecode):
		status = "error_decode"
	case errors.Is(err, errEncode):
		status = "error_encode"
	}
	metrics.ThumbnailGenerationsTotal.WithLabelValues(thumbType, status).Inc()
	logging.Warn("Error creating thumbnail for %s (%s): %v", src, kind, err)
	return false
}

var (
	errDecode = errors.New("decode failed")
	errEncode = errors.New("encode failed")
)

func (g *ThumbnailGenerator) videoThumbnail(ctx context.Context, videoPath, outPath string) error {
	if err := g.tc.Available(); err != nil {
		return err
	}

	frame, err := os.CreateTemp(filepath.Dir(outPath), ".frame-*.jpg")
	if err != nil {
		return fmt.Errorf("create frame file: %w", err)
	}
	framePath := frame.Name()
	_ = frame.Close()
	defer func() {
		if err := os.Remove(framePath); err != nil && !errors.Is(err, os.ErrNotExist) {
			logging.Warn("failed to remove frame file %s: %v", framePath, err)
		}
	}()

	err = g.extractFrame(ctx, videoPath, framePath, g.frameOffset)
	if err != nil && g.frameOffset > 0 && shouldRetryFromStart(err) {
		// Clips shorter than the offset produce nothing; take the first frame.
		logging.Debug("Frame at %s failed for %s, retrying at start: %v", g.frameOffset, videoPath, err)
		err = g.extractFrame(ctx, videoPath, framePath, 0)
	}
	if err != nil {
		return err
	}

	img, err := imaging.Open(framePath)
	if err != nil {
		return fmt.Errorf("%w: frame of %s: %v", errDecode, videoPath, err)
	}
	return writeJPEG(outPath, Letterbox(img))
}

var errEmptyFrame = errors.New("no frame extracted")

func (g *ThumbnailGenerator) extractFrame(ctx context.Context, src, dst string, offset time.Duration) error {
	if err := g.tc.ExtractFrame(ctx, src, dst, offset); err != nil {
		return err
	}
	if info, err := os.Stat(dst); err != nil || info.Size() == 0 {
		return errEmptyFrame
	}
	return nil
}

func shouldRetryFromStart(err error) bool {
	return errors.Is(err, errEmptyFrame) || errors.Is(err, transcoder.ErrToolFailure)
}

func imageThumbnail(imagePath, outPath string) error {
	img, err := LoadOrientedImage(imagePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return err
		}
		return fmt.Errorf("%w: %v", errDecode, err)
	}
	return writeJPEG(outPath, Letterbox(img))
}

// Letterbox shrinks img to fit the thumbnail box without upscaling and
// centers it on a white canvas.
func Letterbox(img image.Image) *image.NRGBA {
	fitted := imaging.Fit(img, ThumbnailWidth, ThumbnailHeight, imaging.Lanczos)
	w, h := fitted.Bounds().Dx(), fitted.Bounds().Dy()

	canvas := imaging.New(ThumbnailWidth, ThumbnailHeight, color.White)
	offset := image.Pt((ThumbnailWidth-w)/2, (ThumbnailHeight-h)/2)
	return imaging.Overlay(canvas, fitted, offset, 1.0)
}

// writeJPEG encodes img to path atomically.
func writeJPEG(path string, img image.Image) error {
	pending, err := renameio.NewPendingFile(path,
		renameio.WithTempDir(filepath.Dir(path)),
		renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("create pending thumbnail: %w", err)
	}
	defer func() {
		_ = pending.Cleanup()
	}()

	if err := jpeg.Encode(pending, img, &jpeg.Options{Quality: ThumbnailQuality}); err != nil {
		return fmt.Errorf("%w: %v", errEncode, err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("write thumbnail %s: %w", path, err)
	}
	return nil
}

// EnsurePlaceholder creates the white placeholder thumbnail if it is
// missing and returns its path.
func (g *ThumbnailGenerator) EnsurePlaceholder() (string, error) {
	g.placeholderMu.Lock()
	defer g.placeholderMu.Unlock()

	path := filepath.Join(g.dir, PlaceholderName)
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		return path, nil
	}

	blank := imaging.New(ThumbnailWidth, ThumbnailHeight, color.White)
	if err := writeJPEG(path, blank); err != nil {
		return "", fmt.Errorf("create placeholder: %w", err)
	}
	logging.Info("Fallback image created at %s", path)
	return path, nil
}

// ThumbnailOrPlaceholder returns the generated thumbnail for filename if it
// exists, otherwise the placeholder.
func (g *ThumbnailGenerator) ThumbnailOrPlaceholder(kind mediatypes.Kind, filename string) (string, error) {
	if p := g.PathFor(kind, filename); p != "" {
		if info, err := os.Stat(p); err == nil && info.Size() > 0 {
			return p, nil
		}
	}
	metrics.ThumbnailPlaceholderServed.Inc()
	return g.EnsurePlaceholder()
}
