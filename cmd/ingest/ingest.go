package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"media-lite/internal/library"
	"media-lite/internal/media"
	"media-lite/internal/mediatypes"
)

// maxFiles matches the per-request limit of the upload form.
const maxFiles = 10

var errTooManyFiles = fmt.Errorf("at most %d files per run", maxFiles)

type storer interface {
	Store(ctx context.Context, kind mediatypes.Kind, originalName string, r io.Reader, categoryID int64) (*library.Stored, error)
}

type result struct {
	Stored  int
	Partial int
	Failed  int
}

// ingest stores each path through lib. A file that is stored but whose
// category could not be recorded counts as partial.
func ingest(ctx context.Context, lib storer, paths []string, categoryID int64, out io.Writer) (result, error) {
	var r result
	if len(paths) > maxFiles {
		return r, errTooManyFiles
	}

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return r, err
		}
		stored, err := storeFile(ctx, lib, path, categoryID)
		switch {
		case err == nil:
			r.Stored++
			fmt.Fprintf(out, "stored %s as %s (%s)\n", path, stored.Filename, describe(stored))
		case stored != nil && errors.Is(err, media.ErrCatalogInconsistency):
			r.Partial++
			fmt.Fprintf(out, "stored %s as %s without category: %v\n", path, stored.Filename, err)
		default:
			r.Failed++
			fmt.Fprintf(out, "FAILED %s: %v\n", path, err)
		}
	}
	return r, nil
}

func storeFile(ctx context.Context, lib storer, path string, categoryID int64) (*library.Stored, error) {
	name := filepath.Base(path)
	kind := mediatypes.KindOf(name)
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %s", library.ErrUnsupportedType, name)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	return lib.Store(ctx, kind, name, f, categoryID)
}

func describe(s *library.Stored) string {
	desc := fmt.Sprintf("%s, %d bytes", s.Kind, s.Size)
	if s.Kind == mediatypes.KindVideo {
		desc += ", " + s.Orientation.String()
		if s.Normalized {
			desc += ", rotated"
		}
	}
	return desc
}
