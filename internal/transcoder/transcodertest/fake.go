// Package transcodertest provides an in-process Transcoder for tests.
//
// Fake media files are small JSON documents describing a ProbeResult. The fake
// transcodes them the way ffmpeg would transform real pixels: the decoder
// applies rotation metadata unless NoAutoRotate is set, the filter turns the
// picture, and the output carries rotation 0.
package transcodertest

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"sync"
	"time"

	"media-lite/internal/transcoder"
)

// WriteVideo writes a fake video file describing p.
func WriteVideo(path string, p transcoder.ProbeResult) error {
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// ReadVideo decodes a fake video file.
func ReadVideo(path string) (transcoder.ProbeResult, error) {
	var p transcoder.ProbeResult
	b, err := os.ReadFile(path)
	if err != nil {
		return p, err
	}
	if err := json.Unmarshal(b, &p); err != nil {
		return p, fmt.Errorf("%w: %v", transcoder.ErrMetadataParse, err)
	}
	return p, nil
}

// Fake is a scriptable transcoder.Transcoder.
type Fake struct {
	// Missing makes every call fail with ErrToolMissing.
	Missing bool
	// TranscodeErr is returned from Transcode after the destination has been
	// partially written.
	TranscodeErr error
	// EmptyOutput makes Transcode succeed while producing a zero-byte file.
	EmptyOutput bool
	// FrameErr is returned from ExtractFrame.
	FrameErr error
	// Delay is slept inside Transcode.
	Delay time.Duration

	mu            sync.Mutex
	probes        int
	transcodes    []Call
	frames        []Call
	inFlight      map[string]int
	maxConcurrent int
}

// Call records one Transcode or ExtractFrame invocation.
type Call struct {
	Src    string
	Dst    string
	Op     transcoder.Operation
	Offset time.Duration
}

var _ transcoder.Transcoder = (*Fake)(nil)

func (f *Fake) Available() error {
	if f.Missing {
		return fmt.Errorf("%w: fake", transcoder.ErrToolMissing)
	}
	return nil
}

func (f *Fake) Probe(ctx context.Context, path string) (transcoder.ProbeResult, error) {
	f.mu.Lock()
	f.probes++
	f.mu.Unlock()

	if err := f.Available(); err != nil {
		return transcoder.ProbeResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return transcoder.ProbeResult{}, err
	}
	p, err := ReadVideo(path)
	if err != nil {
		if os.IsNotExist(err) {
			return p, &transcoder.ToolError{Tool: "ffprobe", ExitCode: 1, Stderr: err.Error()}
		}
		return p, err
	}
	return p, nil
}

func (f *Fake) Transcode(ctx context.Context, src, dst string, op transcoder.Operation) error {
	f.mu.Lock()
	f.transcodes = append(f.transcodes, Call{Src: src, Dst: dst, Op: op})
	if f.inFlight == nil {
		f.inFlight = make(map[string]int)
	}
	f.inFlight[src]++
	if f.inFlight[src] > f.maxConcurrent {
		f.maxConcurrent = f.inFlight[src]
	}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.inFlight[src]--
		f.mu.Unlock()
	}()

	if err := f.Available(); err != nil {
		return err
	}
	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	in, err := ReadVideo(src)
	if err != nil {
		return &transcoder.ToolError{Tool: "ffmpeg", ExitCode: 1, Stderr: err.Error()}
	}

	if f.TranscodeErr != nil {
		_ = os.WriteFile(dst, []byte("partial"), 0o644)
		return f.TranscodeErr
	}
	if f.EmptyOutput {
		return os.WriteFile(dst, nil, 0o644)
	}

	b, err := json.Marshal(Apply(in, op))
	if err != nil {
		return err
	}
	return os.WriteFile(dst, b, 0o644)
}

// Apply computes the stream a real encoder would produce for in under op.
func Apply(in transcoder.ProbeResult, op transcoder.Operation) transcoder.ProbeResult {
	out := in
	if !op.NoAutoRotate {
		out = displayed(in)
	}
	if op.Transform.SwapsDimensions() {
		out.Width, out.Height = out.Height, out.Width
	}
	out.Rotation = 0
	return out
}

func displayed(p transcoder.ProbeResult) transcoder.ProbeResult {
	r := p.Rotation % 360
	if r < 0 {
		r = -r
	}
	if r == 90 || r == 270 {
		p.Width, p.Height = p.Height, p.Width
	}
	p.Rotation = 0
	return p
}

// ExtractFrame writes a solid JPEG whose size is a tenth of the displayed
// frame size.
func (f *Fake) ExtractFrame(ctx context.Context, src, dst string, offset time.Duration) error {
	f.mu.Lock()
	f.frames = append(f.frames, Call{Src: src, Dst: dst, Offset: offset})
	f.mu.Unlock()

	if err := f.Available(); err != nil {
		return err
	}
	if f.FrameErr != nil {
		return f.FrameErr
	}
	in, err := ReadVideo(src)
	if err != nil {
		return &transcoder.ToolError{Tool: "ffmpeg", ExitCode: 1, Stderr: err.Error()}
	}
	d := displayed(in)
	w, h := max(d.Width/10, 1), max(d.Height/10, 1)

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 20, G: 40, B: 200, A: 255})
		}
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if err := jpeg.Encode(out, img, &jpeg.Options{Quality: 90}); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// Probes returns the number of Probe calls.
func (f *Fake) Probes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.probes
}

// Transcodes returns a copy of recorded Transcode calls.
func (f *Fake) Transcodes() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.transcodes...)
}

// Frames returns a copy of recorded ExtractFrame calls.
func (f *Fake) Frames() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.frames...)
}

// MaxConcurrent returns the highest number of simultaneous Transcode calls
// observed for a single source path.
func (f *Fake) MaxConcurrent() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxConcurrent
}
