package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"media-lite/internal/database"
	"media-lite/internal/library"
	"media-lite/internal/logging"
	"media-lite/internal/media"
	"media-lite/internal/startup"
	"media-lite/internal/transcoder"
)

func main() {
	categoryID := flag.Int64("category", database.AllCategoryID, "category to assign (0 assigns none)")
	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() == 0 {
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

	db, err := database.Open(ctx, database.Config{Driver: cfg.Database.Driver, URL: cfg.Database.URL})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
		}
	}()

	if err := checkCategory(ctx, db, *categoryID); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	tc := transcoder.NewFFmpeg(cfg.TranscoderConfig())
	defer tc.Cleanup()
	if err := tc.Available(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v; videos will be stored without rotation fix or thumbnail\n", err)
	}

	thumbs := media.NewThumbnailGenerator(tc, cfg.ThumbnailDir)
	lib := library.New(library.Dirs{
		Video:    cfg.VideoDir,
		Image:    cfg.ImageDir,
		Document: cfg.DocumentDir,
	}, tc, cfg.Policy, thumbs, db)

	r, err := ingest(ctx, lib, flag.Args(), *categoryID, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	if r.Failed > 0 || r.Partial > 0 {
		os.Exit(1)
	}
}

type categoryGetter interface {
	GetCategory(ctx context.Context, id int64) (*database.Category, error)
}

// checkCategory rejects ids that do not name an existing category.
func checkCategory(ctx context.Context, db categoryGetter, id int64) error {
	if id == database.AllCategoryID {
		return nil
	}
	if _, err := db.GetCategory(ctx, id); err != nil {
		if errors.Is(err, database.ErrCategoryNotFound) {
			return fmt.Errorf("category %d does not exist", id)
		}
		return err
	}
	return nil
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "Media Lite Ingest")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage: ingest [-category ID] FILE...")
	fmt.Fprintln(os.Stderr, "")
	flag.PrintDefaults()
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Environment:")
	fmt.Fprintln(os.Stderr, "  VIDEO_DIR, IMAGE_DIR, DOCUMENT_DIR, THUMBNAIL_DIR, DATABASE_DRIVER, DATABASE_URL")
}
