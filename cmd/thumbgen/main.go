package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"media-lite/internal/logging"
	"media-lite/internal/media"
	"media-lite/internal/memory"
	"media-lite/internal/mediatypes"
	"media-lite/internal/startup"
	"media-lite/internal/transcoder"
)

func main() {
	force := flag.Bool("force", false, "regenerate thumbnails that already exist")
	kind := flag.String("kind", "all", "assets to process: video, image or all")
	workerCount := flag.Int("workers", 0, "parallel workers (0 picks a default from the CPU count)")
	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() > 0 {
		printUsage()
		os.Exit(2)
	}

	cfg, err := startup.ReadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	logging.SetLevel(logging.ParseLevel(cfg.LogLevel))
	memory.ConfigureLimit()

	sources, err := selectSources(*kind, cfg.VideoDir, cfg.ImageDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.ThumbnailDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot create thumbnail directory: %v\n", err)
		os.Exit(1)
	}

	tc := transcoder.NewFFmpeg(cfg.TranscoderConfig())
	defer tc.Cleanup()
	if err := tc.Available(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v; video thumbnails will fail\n", err)
	}
	if err := media.InitVips(); err != nil {
		logging.Debug("libvips unavailable: %v", err)
	}
	defer media.ShutdownVips()

	thumbs := media.NewThumbnailGenerator(tc, cfg.ThumbnailDir)
	if _, err := thumbs.EnsurePlaceholder(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: cannot create placeholder thumbnail: %v\n", err)
	}

	monitor := memory.NewMonitor(memory.DefaultMonitorConfig())
	go monitor.Run(ctx)

	summary, err := backfill(ctx, thumbs, sources, options{Force: *force, Workers: *workerCount, Gate: monitor})
	fmt.Printf("Generated: %d, skipped: %d, failed: %d\n", summary.Generated, summary.Skipped, summary.Failed)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "Interrupted")
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
	if summary.Failed > 0 {
		os.Exit(1)
	}
}

// selectSources maps the -kind flag to the directories to walk.
func selectSources(kind, videoDir, imageDir string) ([]source, error) {
	video := source{Kind: mediatypes.KindVideo, Dir: videoDir}
	image := source{Kind: mediatypes.KindImage, Dir: imageDir}
	switch kind {
	case "all", "":
		return []source{video, image}, nil
	case string(mediatypes.KindVideo):
		return []source{video}, nil
	case string(mediatypes.KindImage):
		return []source{image}, nil
	}
	return nil, fmt.Errorf("unknown kind %q (want video, image or all)", kind)
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "Media Lite Thumbnail Backfill")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage: thumbgen [-force] [-kind video|image|all] [-workers N]")
	fmt.Fprintln(os.Stderr, "")
	flag.PrintDefaults()
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Environment:")
	fmt.Fprintln(os.Stderr, "  VIDEO_DIR, IMAGE_DIR, THUMBNAIL_DIR, FFMPEG_PATH, MEDIA_LITE_WORKERS")
}
