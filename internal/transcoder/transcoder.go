package transcoder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrToolMissing is returned when ffmpeg or ffprobe cannot be found.
	ErrToolMissing = errors.New("external media tool not available")
	// ErrToolFailure is the class of all non-zero tool exits. *ToolError unwraps to it.
	ErrToolFailure = errors.New("external media tool failed")
	// ErrTimeout is returned when a tool run exceeds its configured deadline.
	ErrTimeout = errors.New("external media tool timed out")
	// ErrMetadataParse is returned when probe output cannot be understood.
	ErrMetadataParse = errors.New("media metadata could not be parsed")
)

// maxStderr caps how much tool stderr is kept in errors and logs.
const maxStderr = 4096

// ToolError describes a tool that ran but exited unsuccessfully.
type ToolError struct {
	Tool     string
	ExitCode int
	Stderr   string
}

func (e *ToolError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s exited with code %d", e.Tool, e.ExitCode)
	}
	return fmt.Sprintf("%s exited with code %d: %s", e.Tool, e.ExitCode, e.Stderr)
}

// Unwrap lets errors.Is(err, ErrToolFailure) match.
func (e *ToolError) Unwrap() error { return ErrToolFailure }

func truncateStderr(s string) string {
	if len(s) > maxStderr {
		return s[:maxStderr] + "..."
	}
	return s
}

// ProbeResult is what a probe reports about the first video stream.
// Rotation is taken from the stream's rotate tag when present, otherwise from
// its display-matrix side data.
type ProbeResult struct {
	Width    int `json:"width"`
	Height   int `json:"height"`
	Rotation int `json:"rotation"`
}

// Transform is a pixel rotation applied while re-encoding.
type Transform int

const (
	// TransformNone re-encodes without touching pixel orientation.
	TransformNone Transform = iota
	// TransformRotateCW turns the picture 90 degrees clockwise.
	TransformRotateCW
	// TransformRotateCCW turns the picture 90 degrees counter-clockwise.
	TransformRotateCCW
	// TransformRotate180 turns the picture upside down.
	TransformRotate180
)

// Filter returns the ffmpeg video filter for t, or "" for TransformNone.
func (t Transform) Filter() string {
	switch t {
	case TransformRotateCW:
		return "transpose=1"
	case TransformRotateCCW:
		return "transpose=2"
	case TransformRotate180:
		return "transpose=1,transpose=1"
	default:
		return ""
	}
}

// SwapsDimensions reports whether applying t exchanges width and height.
func (t Transform) SwapsDimensions() bool {
	return t == TransformRotateCW || t == TransformRotateCCW
}

func (t Transform) String() string {
	switch t {
	case TransformNone:
		return "none"
	case TransformRotateCW:
		return "rotate_cw"
	case TransformRotateCCW:
		return "rotate_ccw"
	case TransformRotate180:
		return "rotate_180"
	default:
		return fmt.Sprintf("transform(%d)", int(t))
	}
}

// Operation describes one re-encode.
type Operation struct {
	Transform Transform
	// Format is the output muxer name (e.g. "mp4"). Output paths are often
	// temporary names without an extension, so it must be explicit.
	Format string
	// NoAutoRotate stops the decoder from applying rotation metadata before
	// the filter runs. Set when the transform was derived from that metadata.
	NoAutoRotate bool
}

// Transcoder is the capability the media pipeline needs from an external
// media tool. FFmpeg is the production implementation.
type Transcoder interface {
	// Available returns ErrToolMissing when the underlying tools are absent.
	Available() error
	// Probe reports dimensions and rotation of the first video stream.
	Probe(ctx context.Context, path string) (ProbeResult, error)
	// Transcode re-encodes src into dst. Rotation metadata is cleared in dst.
	Transcode(ctx context.Context, src, dst string, op Operation) error
	// ExtractFrame writes a single JPEG frame taken at offset into dst.
	ExtractFrame(ctx context.Context, src, dst string, offset time.Duration) error
}

// FormatForExt returns the ffmpeg muxer for a file extension such as ".mp4".
// Unknown extensions map to "mp4".
func FormatForExt(ext string) string {
	switch strings.ToLower(ext) {
	case ".mov":
		return "mov"
	case ".mkv":
		return "matroska"
	case ".avi":
		return "avi"
	case ".webm":
		return "webm"
	default:
		return "mp4"
	}
}
