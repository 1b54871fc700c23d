//go:build unix

package transcoder

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"sync"
	"syscall"
	"testing"
	"time"
)

// writeScript installs an executable shell script standing in for a tool.
func writeScript(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunToolMissing(t *testing.T) {
	f := NewFFmpeg(Config{
		FFmpegPath:  filepath.Join(t.TempDir(), "no-ffmpeg"),
		FFprobePath: filepath.Join(t.TempDir(), "no-ffprobe"),
	})

	if err := f.Available(); !errors.Is(err, ErrToolMissing) {
		t.Errorf("Available() error = %v, want ErrToolMissing", err)
	}
	if _, err := f.Probe(context.Background(), "x.mp4"); !errors.Is(err, ErrToolMissing) {
		t.Errorf("Probe() error = %v, want ErrToolMissing", err)
	}
	if err := f.Transcode(context.Background(), "a", "b", Operation{}); !errors.Is(err, ErrToolMissing) {
		t.Errorf("Transcode() error = %v, want ErrToolMissing", err)
	}
}

func TestProbeParsesToolOutput(t *testing.T) {
	probe := writeScript(t, "ffprobe", `echo '{"streams":[{"width":1920,"height":1080,"tags":{"rotate":"90"}}]}'`)
	f := NewFFmpeg(Config{FFprobePath: probe})

	got, err := f.Probe(context.Background(), "clip.mov")
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	want := ProbeResult{Width: 1920, Height: 1080, Rotation: 90}
	if got != want {
		t.Errorf("Probe() = %+v, want %+v", got, want)
	}
}

func TestRunNonZeroExit(t *testing.T) {
	tool := writeScript(t, "ffmpeg", "echo 'Invalid data found when processing input' >&2\nexit 3")
	f := NewFFmpeg(Config{FFmpegPath: tool})

	err := f.Transcode(context.Background(), "in.mov", "out.mp4", Operation{})
	if !errors.Is(err, ErrToolFailure) {
		t.Fatalf("Transcode() error = %v, want ErrToolFailure", err)
	}
	var te *ToolError
	if !errors.As(err, &te) {
		t.Fatalf("want *ToolError, got %T", err)
	}
	if te.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", te.ExitCode)
	}
	if te.Stderr != "Invalid data found when processing input" {
		t.Errorf("Stderr = %q", te.Stderr)
	}
	if te.Tool != "ffmpeg" {
		t.Errorf("Tool = %q", te.Tool)
	}
}

func TestRunTimeoutKillsTool(t *testing.T) {
	tool := writeScript(t, "ffmpeg", "sleep 30")
	f := NewFFmpeg(Config{
		FFmpegPath:       tool,
		TranscodeTimeout: 200 * time.Millisecond,
		KillGrace:        200 * time.Millisecond,
	})

	start := time.Now()
	err := f.Transcode(context.Background(), "in.mov", "out.mp4", Operation{})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Transcode() error = %v, want ErrTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Errorf("tool was not stopped promptly: %v", elapsed)
	}
}

func TestRunCallerCancellation(t *testing.T) {
	tool := writeScript(t, "ffmpeg", "sleep 30")
	f := NewFFmpeg(Config{FFmpegPath: tool, KillGrace: 200 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := f.Transcode(ctx, "in.mov", "out.mp4", Operation{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Transcode() error = %v, want caller's context error", err)
	}
	if errors.Is(err, ErrTimeout) {
		t.Error("caller cancellation should not be reported as a tool timeout")
	}
}

func TestCleanupWithNoProcesses(t *testing.T) {
	f := NewFFmpeg(DefaultConfig())
	f.Cleanup()
}

func TestProcessGroupNoKillAfterExit(t *testing.T) {
	var (
		mu   sync.Mutex
		sent []syscall.Signal
	)
	orig := signalGroup
	signalGroup = func(pid int, sig syscall.Signal) error {
		mu.Lock()
		sent = append(sent, sig)
		mu.Unlock()
		return orig(pid, sig)
	}
	t.Cleanup(func() { signalGroup = orig })

	tool := writeScript(t, "ffmpeg", "trap 'exit 0' TERM\nsleep 30 &\nwait")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	const grace = 300 * time.Millisecond
	cmd := exec.CommandContext(ctx, tool)
	release := setProcessGroup(cmd, grace)
	if err := cmd.Start(); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	cancel()
	_ = cmd.Wait()
	release()

	// Past the grace period the group id may belong to someone else.
	time.Sleep(2 * grace)

	mu.Lock()
	defer mu.Unlock()
	if slices.Contains(sent, syscall.SIGKILL) {
		t.Errorf("signals sent = %v, want no SIGKILL after the group exited", sent)
	}
	if !slices.Contains(sent, syscall.SIGTERM) {
		t.Errorf("signals sent = %v, want SIGTERM on cancel", sent)
	}
}
