package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"media-lite/internal/transcoder"
	"media-lite/internal/transcoder/transcodertest"
)

func writeFakeVideo(t *testing.T, dir, name string, p transcoder.ProbeResult) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := transcodertest.WriteVideo(path, p); err != nil {
		t.Fatalf("write fake video: %v", err)
	}
	return path
}

func dirNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func TestNormalizePortraitBecomesLandscape(t *testing.T) {
	t.Parallel()

	tests := []struct {
		rotation int
		raw      transcoder.ProbeResult
	}{
		{0, transcoder.ProbeResult{Width: 1080, Height: 1920}},
		{180, transcoder.ProbeResult{Width: 1080, Height: 1920, Rotation: 180}},
		{90, transcoder.ProbeResult{Width: 1920, Height: 1080, Rotation: 90}},
		{-90, transcoder.ProbeResult{Width: 1920, Height: 1080, Rotation: -90}},
		{270, transcoder.ProbeResult{Width: 1920, Height: 1080, Rotation: 270}},
		{-270, transcoder.ProbeResult{Width: 1920, Height: 1080, Rotation: -270}},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("rotation_%d", tt.rotation), func(t *testing.T) {
			t.Parallel()
			dir := t.TempDir()
			path := writeFakeVideo(t, dir, "clip.mp4", tt.raw)

			if got := ClassifyDimensions(tt.raw); got != OrientationPortrait {
				t.Fatalf("fixture is %v, want portrait", got)
			}

			fake := &transcodertest.Fake{}
			n := NewNormalizer(fake, PolicyPortrait)
			res, err := n.Run(context.Background(), path)
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if !res.Changed || res.Transform != transcoder.TransformRotateCW {
				t.Errorf("result = %+v, want CW rotation applied", res)
			}

			after, err := transcodertest.ReadVideo(path)
			if err != nil {
				t.Fatalf("read normalized file: %v", err)
			}
			if o := ClassifyDimensions(after); o != OrientationLandscape {
				t.Errorf("after normalize orientation = %v (%+v), want landscape", o, after)
			}
			if after.Rotation != 0 {
				t.Errorf("rotation metadata = %d, want 0", after.Rotation)
			}
			if names := dirNames(t, dir); len(names) != 1 || names[0] != "clip.mp4" {
				t.Errorf("directory = %v, want only clip.mp4", names)
			}

			calls := fake.Transcodes()
			if len(calls) != 1 || calls[0].Op.Format != "mp4" || calls[0].Op.NoAutoRotate {
				t.Errorf("transcode calls = %+v", calls)
			}
		})
	}
}

func TestNormalizeLeavesNonPortraitUntouched(t *testing.T) {
	t.Parallel()

	for _, p := range []transcoder.ProbeResult{
		{Width: 1920, Height: 1080},
		{Width: 640, Height: 640},
	} {
		dir := t.TempDir()
		path := writeFakeVideo(t, dir, "clip.mov", p)
		before, _ := os.ReadFile(path)
		beforeInfo, _ := os.Stat(path)

		fake := &transcodertest.Fake{}
		if !NewNormalizer(fake, PolicyPortrait).Normalize(context.Background(), path) {
			t.Fatalf("Normalize(%+v) = false, want true", p)
		}

		after, _ := os.ReadFile(path)
		afterInfo, _ := os.Stat(path)
		if !bytes.Equal(before, after) || !beforeInfo.ModTime().Equal(afterInfo.ModTime()) {
			t.Errorf("file changed for %+v", p)
		}
		if n := len(fake.Transcodes()); n != 0 {
			t.Errorf("transcodes = %d, want 0", n)
		}
	}
}

func TestNormalizeFailureLeavesOriginal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		fake *transcodertest.Fake
	}{
		{"tool missing", &transcodertest.Fake{Missing: true}},
		{"transcode fails", &transcodertest.Fake{TranscodeErr: &transcoder.ToolError{Tool: "ffmpeg", ExitCode: 1}}},
		{"empty output", &transcodertest.Fake{EmptyOutput: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			dir := t.TempDir()
			path := writeFakeVideo(t, dir, "clip.mp4", transcoder.ProbeResult{Width: 1080, Height: 1920})
			before, _ := os.ReadFile(path)

			if NewNormalizer(tt.fake, PolicyPortrait).Normalize(context.Background(), path) {
				t.Fatal("Normalize() = true, want false")
			}

			after, err := os.ReadFile(path)
			if err != nil {
				t.Fatalf("original missing: %v", err)
			}
			if !bytes.Equal(before, after) {
				t.Error("original file modified")
			}
			if names := dirNames(t, dir); len(names) != 1 {
				t.Errorf("leftover files: %v", names)
			}
		})
	}
}

func TestNormalizeMetadataPolicy(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := writeFakeVideo(t, dir, "clip.mp4", transcoder.ProbeResult{Width: 1080, Height: 1920, Rotation: 90})

	fake := &transcodertest.Fake{}
	res, err := NewNormalizer(fake, PolicyMetadata).Run(context.Background(), path)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Transform != transcoder.TransformRotateCCW {
		t.Errorf("transform = %v, want rotate_ccw", res.Transform)
	}
	calls := fake.Transcodes()
	if len(calls) != 1 || !calls[0].Op.NoAutoRotate {
		t.Fatalf("transcode calls = %+v, want one with autorotate disabled", calls)
	}
	after, _ := transcodertest.ReadVideo(path)
	if after.Width != 1920 || after.Height != 1080 || after.Rotation != 0 {
		t.Errorf("after = %+v, want 1920x1080 rotation 0", after)
	}
}

func TestNormalizeUnsupportedRotation(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := writeFakeVideo(t, dir, "clip.mp4", transcoder.ProbeResult{Width: 1080, Height: 1920, Rotation: 45})

	_, err := NewNormalizer(&transcodertest.Fake{}, PolicyMetadata).Run(context.Background(), path)
	if !errors.Is(err, ErrUnsupportedRotation) {
		t.Errorf("error = %v, want ErrUnsupportedRotation", err)
	}
}

func TestNormalizeSerializesSamePath(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := writeFakeVideo(t, dir, "clip.mp4", transcoder.ProbeResult{Width: 1920, Height: 1080, Rotation: 90})

	fake := &transcodertest.Fake{Delay: 20 * time.Millisecond}
	n := NewNormalizer(fake, PolicyPortrait)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n.Normalize(context.Background(), path)
		}()
	}
	wg.Wait()

	if got := fake.MaxConcurrent(); got != 1 {
		t.Errorf("max concurrent transcodes for one path = %d, want 1", got)
	}
	// Only the first call finds a portrait video; later calls see landscape.
	if got := len(fake.Transcodes()); got != 1 {
		t.Errorf("transcodes = %d, want 1", got)
	}
	if len(n.locks.locks) != 0 {
		t.Errorf("path locks not released: %d", len(n.locks.locks))
	}
}

func TestNormalizeCancelled(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := writeFakeVideo(t, dir, "clip.mp4", transcoder.ProbeResult{Width: 1080, Height: 1920})
	before, _ := os.ReadFile(path)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if NewNormalizer(&transcodertest.Fake{}, PolicyPortrait).Normalize(ctx, path) {
		t.Fatal("Normalize() with cancelled context = true")
	}
	after, _ := os.ReadFile(path)
	if !bytes.Equal(before, after) {
		t.Error("original modified")
	}
	if names := dirNames(t, dir); len(names) != 1 {
		t.Errorf("leftover files: %v", names)
	}
}
