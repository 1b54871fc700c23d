package transcoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"media-lite/internal/logging"
	"media-lite/internal/metrics"
)

// Config holds tool locations and per-invocation limits.
type Config struct {
	FFmpegPath       string
	FFprobePath      string
	ProbeTimeout     time.Duration
	TranscodeTimeout time.Duration
	FrameTimeout     time.Duration
	// KillGrace is how long a timed-out tool gets between SIGTERM and SIGKILL.
	KillGrace time.Duration
}

// DefaultConfig returns limits suitable for phone-sized clips.
func DefaultConfig() Config {
	return Config{
		FFmpegPath:       "ffmpeg",
		FFprobePath:      "ffprobe",
		ProbeTimeout:     30 * time.Second,
		TranscodeTimeout: 30 * time.Minute,
		FrameTimeout:     60 * time.Second,
		KillGrace:        5 * time.Second,
	}
}

// FFmpeg runs ffprobe and ffmpeg as child processes.
type FFmpeg struct {
	cfg       Config
	processes map[*exec.Cmd]string
	processMu sync.Mutex
}

// NewFFmpeg creates an FFmpeg transcoder. Zero fields in cfg take defaults.
func NewFFmpeg(cfg Config) *FFmpeg {
	def := DefaultConfig()
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = def.FFmpegPath
	}
	if cfg.FFprobePath == "" {
		cfg.FFprobePath = def.FFprobePath
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = def.ProbeTimeout
	}
	if cfg.TranscodeTimeout <= 0 {
		cfg.TranscodeTimeout = def.TranscodeTimeout
	}
	if cfg.FrameTimeout <= 0 {
		cfg.FrameTimeout = def.FrameTimeout
	}
	if cfg.KillGrace <= 0 {
		cfg.KillGrace = def.KillGrace
	}
	return &FFmpeg{
		cfg:       cfg,
		processes: make(map[*exec.Cmd]string),
	}
}

var _ Transcoder = (*FFmpeg)(nil)

// Available checks that both ffmpeg and ffprobe resolve on PATH.
func (f *FFmpeg) Available() error {
	for _, bin := range []string{f.cfg.FFmpegPath, f.cfg.FFprobePath} {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("%w: %s", ErrToolMissing, bin)
		}
	}
	return nil
}

// Probe runs ffprobe against path.
func (f *FFmpeg) Probe(ctx context.Context, path string) (ProbeResult, error) {
	out, err := f.run(ctx, "probe", f.cfg.FFprobePath, f.cfg.ProbeTimeout, probeArgs(path))
	if err != nil {
		return ProbeResult{}, err
	}
	return ParseProbeOutput(out)
}

// Transcode re-encodes src to dst as H.264/AAC with rotation metadata cleared.
func (f *FFmpeg) Transcode(ctx context.Context, src, dst string, op Operation) error {
	_, err := f.run(ctx, "transcode", f.cfg.FFmpegPath, f.cfg.TranscodeTimeout, transcodeArgs(src, dst, op))
	return err
}

// ExtractFrame grabs one frame at offset as a high-quality JPEG.
func (f *FFmpeg) ExtractFrame(ctx context.Context, src, dst string, offset time.Duration) error {
	_, err := f.run(ctx, "extract_frame", f.cfg.FFmpegPath, f.cfg.FrameTimeout, frameArgs(src, dst, offset))
	return err
}

func transcodeArgs(src, dst string, op Operation) []string {
	format := op.Format
	if format == "" {
		format = "mp4"
	}

	args := []string{"-hide_banner", "-loglevel", "error", "-y"}
	if op.NoAutoRotate {
		args = append(args, "-noautorotate")
	}
	args = append(args, "-i", src)
	if filter := op.Transform.Filter(); filter != "" {
		args = append(args, "-vf", filter)
	}
	args = append(args,
		"-c:v", "libx264",
		"-preset", "medium",
		"-crf", "23",
		"-c:a", "aac",
		"-b:a", "128k",
		"-movflags", "+faststart",
		"-metadata:s:v:0", "rotate=0",
		"-f", format,
		dst,
	)
	return args
}

func frameArgs(src, dst string, offset time.Duration) []string {
	return []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-ss", formatTimestamp(offset),
		"-i", src,
		"-frames:v", "1",
		"-q:v", "2",
		"-f", "image2",
		dst,
	}
}

// formatTimestamp renders d as HH:MM:SS.mmm for -ss.
func formatTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	d -= s * time.Second
	ms := d / time.Millisecond
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}

func toolName(bin string) string {
	if i := strings.LastIndexAny(bin, `/\`); i >= 0 {
		return bin[i+1:]
	}
	return bin
}

// run executes one tool invocation under its own deadline and records it.
func (f *FFmpeg) run(ctx context.Context, op, bin string, timeout time.Duration, args []string) ([]byte, error) {
	tool := toolName(bin)

	path, err := exec.LookPath(bin)
	if err != nil {
		metrics.ToolInvocationsTotal.WithLabelValues(tool, op, "missing").Inc()
		return nil, fmt.Errorf("%w: %s", ErrToolMissing, bin)
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// #nosec G204 -- binary comes from configuration, arguments are built here
	cmd := exec.CommandContext(runCtx, path, args...)
	release := setProcessGroup(cmd, f.cfg.KillGrace)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	f.track(cmd, op+" "+args[len(args)-1])
	defer f.untrack(cmd)

	logging.Debug("Running %s %s", tool, strings.Join(args, " "))
	start := time.Now()
	runErr := cmd.Run()
	release()
	metrics.ToolDuration.WithLabelValues(tool, op).Observe(time.Since(start).Seconds())

	if runErr == nil {
		metrics.ToolInvocationsTotal.WithLabelValues(tool, op, "success").Inc()
		return stdout.Bytes(), nil
	}

	switch {
	case errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		metrics.ToolInvocationsTotal.WithLabelValues(tool, op, "timeout").Inc()
		return nil, fmt.Errorf("%s %s after %s: %w", tool, op, timeout, ErrTimeout)
	case ctx.Err() != nil:
		metrics.ToolInvocationsTotal.WithLabelValues(tool, op, "error").Inc()
		return nil, ctx.Err()
	}

	metrics.ToolInvocationsTotal.WithLabelValues(tool, op, "error").Inc()
	exitCode := -1
	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		exitCode = exitErr.ExitCode()
	}
	return nil, &ToolError{
		Tool:     tool,
		ExitCode: exitCode,
		Stderr:   truncateStderr(strings.TrimSpace(stderr.String())),
	}
}

func (f *FFmpeg) track(cmd *exec.Cmd, label string) {
	f.processMu.Lock()
	f.processes[cmd] = label
	f.processMu.Unlock()
	metrics.ToolProcessesActive.Inc()
}

func (f *FFmpeg) untrack(cmd *exec.Cmd) {
	f.processMu.Lock()
	delete(f.processes, cmd)
	f.processMu.Unlock()
	metrics.ToolProcessesActive.Dec()
}

// Cleanup kills every tool process that is still running.
func (f *FFmpeg) Cleanup() {
	f.processMu.Lock()
	defer f.processMu.Unlock()

	for cmd, label := range f.processes {
		if cmd.Process == nil {
			continue
		}
		logging.Info("Killing %s process: %s", toolName(cmd.Path), label)
		if err := killProcessGroup(cmd); err != nil {
			logging.Warn("failed to kill %s process (%s): %v", toolName(cmd.Path), label, err)
		}
	}
}
