package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/term"

	"media-lite/internal/logging"
	"media-lite/internal/media"
	"media-lite/internal/startup"
	"media-lite/internal/transcoder"
)

func main() {
	yes := flag.Bool("yes", false, "fix without asking")
	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() > 1 {
		printUsage()
		os.Exit(2)
	}

	cfg, err := startup.ReadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	logging.SetLevel(logging.ParseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tc := transcoder.NewFFmpeg(cfg.TranscoderConfig())
	defer tc.Cleanup()
	if err := tc.Available(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	f := newFixer(cfg.VideoDir, tc, media.NewThumbnailGenerator(tc, cfg.ThumbnailDir), os.Stdout)

	candidates, err := f.find(ctx, flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if len(candidates) == 0 {
		fmt.Println("No videos with rotation metadata found.")
		return
	}
	f.list(candidates)

	if !*yes {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: stdin is not a terminal; pass -yes to fix without asking")
			os.Exit(1)
		}
		if !confirm(os.Stdin, os.Stdout, len(candidates)) {
			fmt.Println("Aborted.")
			return
		}
	}

	if r := f.fix(ctx, candidates); r.Failed > 0 {
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "Media Lite Rotation Fix")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage: fixrotation [-yes] [filename]")
	fmt.Fprintln(os.Stderr, "")
	flag.PrintDefaults()
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Environment:")
	fmt.Fprintln(os.Stderr, "  VIDEO_DIR, THUMBNAIL_DIR, FFMPEG_PATH, FFPROBE_PATH")
}
