package media

import (
	"errors"
	"fmt"
	"image"
	"io"
	"os"

	"media-lite/internal/filesystem"
	"media-lite/internal/logging"
	"media-lite/internal/metrics"

	// Image format decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp" // WebP format support
)

const (
	// MaxImageDimension is the largest width or height decoded at full size.
	// Larger images are shrunk while decoding when libvips is available.
	MaxImageDimension = 4096

	// MaxImagePixels is the largest pixel count decoded at full size.
	MaxImagePixels = 20_000_000

	// preShrinkBox is the square libvips shrinks oversized images into. It is
	// square so that a later quarter-turn cannot make the image smaller than
	// the thumbnail box.
	preShrinkBox = 640
)

// ImageDimensions holds image width and height
type ImageDimensions struct {
	Width  int
	Height int
}

// GetImageDimensions returns image dimensions without fully decoding the image
func GetImageDimensions(path string) (*ImageDimensions, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := file.Close(); err != nil {
			logging.Warn("failed to close image file %s: %v", path, err)
		}
	}()

	config, _, err := image.DecodeConfig(file)
	if err != nil {
		return nil, err
	}

	return &ImageDimensions{
		Width:  config.Width,
		Height: config.Height,
	}, nil
}

// ReadEXIFOrientation returns the EXIF orientation tag of path, or 1 when
// the file has no readable EXIF data.
func ReadEXIFOrientation(path string) int {
	f, err := filesystem.OpenWithRetry(path, filesystem.DefaultRetryConfig())
	if err != nil {
		return 1
	}
	defer func() {
		if err := f.Close(); err != nil {
			logging.Warn("failed to close image file %s: %v", path, err)
		}
	}()

	x, err := exif.Decode(f)
	if err != nil {
		logging.Debug("No EXIF data in %s: %v", path, err)
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	v, err := tag.Int(0)
	if err != nil {
		logging.Debug("Malformed EXIF orientation in %s: %v", path, err)
		return 1
	}
	return v
}

// ApplyEXIFOrientation rotates img for the orientation values phones write.
// Rotations are counter-clockwise: 3 turns 180, 6 turns 270, 8 turns 90.
// Mirrored orientations are left as they are.
func ApplyEXIFOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 3:
		return imaging.Rotate180(img)
	case 6:
		return imaging.Rotate270(img)
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

// LoadOrientedImage decodes path and applies its EXIF orientation. Very
// large images are shrunk during decode when libvips is available.
func LoadOrientedImage(path string) (image.Image, error) {
	format, err := detectFileType(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	metrics.ThumbnailImageDecodeByFormat.WithLabelValues(format).Inc()

	img, err := decodeConstrained(path)
	if err != nil {
		return nil, err
	}
	return ApplyEXIFOrientation(img, ReadEXIFOrientation(path)), nil
}

func decodeConstrained(path string) (image.Image, error) {
	if IsVipsAvailable() {
		if dims, err := GetImageDimensions(path); err == nil {
			oversized := dims.Width > MaxImageDimension || dims.Height > MaxImageDimension ||
				dims.Width*dims.Height > MaxImagePixels
			if oversized {
				img, err := LoadImageWithVips(path, preShrinkBox, preShrinkBox)
				if err == nil {
					return img, nil
				}
				logging.Debug("vips decode failed for %s, falling back: %v", path, err)
			}
		}
	}

	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// detectFileType sniffs the container format from magic bytes.
func detectFileType(filePath string) (string, error) {
	file, err := filesystem.OpenWithRetry(filePath, filesystem.DefaultRetryConfig())
	if err != nil {
		return "", err
	}
	defer func() {
		if err := file.Close(); err != nil {
			logging.Warn("failed to close image file %s: %v", filePath, err)
		}
	}()

	header := make([]byte, 12)
	n, err := io.ReadFull(file, header)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", err
	}
	header = header[:n]

	switch {
	case len(header) >= 3 && header[0] == 0xFF && header[1] == 0xD8 && header[2] == 0xFF:
		return "jpeg", nil
	case len(header) >= 4 && header[0] == 0x89 && header[1] == 'P' && header[2] == 'N' && header[3] == 'G':
		return "png", nil
	case len(header) >= 4 && string(header[:4]) == "GIF8":
		return "gif", nil
	case len(header) >= 12 && string(header[:4]) == "RIFF" && string(header[8:12]) == "WEBP":
		return "webp", nil
	case len(header) >= 2 && header[0] == 'B' && header[1] == 'M':
		return "bmp", nil
	case len(header) >= 4 && (string(header[:4]) == "II*\x00" || string(header[:4]) == "MM\x00*"):
		return "tiff", nil
	}
	return "unknown", nil
}
