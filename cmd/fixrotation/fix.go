package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"media-lite/internal/logging"
	"media-lite/internal/media"
	"media-lite/internal/mediatypes"
	"media-lite/internal/transcoder"
)

var errNotVideo = errors.New("not a video file")

type candidate struct {
	Name     string
	Path     string
	Rotation int
}

type report struct {
	Fixed  int
	Failed int
}

type fixer struct {
	dir        string
	tc         transcoder.Transcoder
	normalizer *media.Normalizer
	thumbs     *media.ThumbnailGenerator
	out        io.Writer
	log        zerolog.Logger
}

func newFixer(dir string, tc transcoder.Transcoder, thumbs *media.ThumbnailGenerator, out io.Writer) *fixer {
	return &fixer{
		dir:        dir,
		tc:         tc,
		normalizer: media.NewNormalizer(tc, media.PolicyMetadata),
		thumbs:     thumbs,
		out:        out,
		log:        logging.With("fixrotation"),
	}
}

// find probes the video directory, or only name when it is not empty, and
// returns the clips with a non-zero rotation sorted by name. Files that
// cannot be probed are logged and left out.
func (f *fixer) find(ctx context.Context, name string) ([]candidate, error) {
	var names []string
	if name != "" {
		if filepath.Base(name) != name || strings.HasPrefix(name, ".") {
			return nil, fmt.Errorf("invalid filename %q", name)
		}
		if mediatypes.KindOf(name) != mediatypes.KindVideo {
			return nil, fmt.Errorf("%w: %s", errNotVideo, name)
		}
		if _, err := os.Stat(filepath.Join(f.dir, name)); err != nil {
			return nil, err
		}
		names = []string{name}
	} else {
		entries, err := os.ReadDir(f.dir)
		if err != nil {
			return nil, fmt.Errorf("list video directory: %w", err)
		}
		for _, e := range entries {
			n := e.Name()
			if e.IsDir() || strings.HasPrefix(n, ".") || mediatypes.KindOf(n) != mediatypes.KindVideo {
				continue
			}
			names = append(names, n)
		}
	}

	var found []candidate
	for _, n := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := filepath.Join(f.dir, n)
		res, err := f.tc.Probe(ctx, path)
		if err != nil {
			f.log.Warn().Err(err).Str("file", n).Msg("cannot probe video")
			continue
		}
		if res.Rotation != 0 {
			found = append(found, candidate{Name: n, Path: path, Rotation: res.Rotation})
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].Name < found[j].Name })
	return found, nil
}

func (f *fixer) list(candidates []candidate) {
	fmt.Fprintf(f.out, "Found %d video(s) with rotation metadata:\n", len(candidates))
	for _, c := range candidates {
		fmt.Fprintf(f.out, "  %s (rotation %d)\n", c.Name, c.Rotation)
	}
}

// fix re-encodes each candidate and refreshes its thumbnail. A failed clip
// is reported and left as it was.
func (f *fixer) fix(ctx context.Context, candidates []candidate) report {
	var r report
	for _, c := range candidates {
		if ctx.Err() != nil {
			break
		}
		res, err := f.normalizer.Run(ctx, c.Path)
		if err != nil {
			r.Failed++
			fmt.Fprintf(f.out, "FAILED %s: %v\n", c.Name, err)
			continue
		}
		r.Fixed++
		if res.Changed && f.thumbs != nil {
			if _, ok := f.thumbs.Generate(ctx, mediatypes.KindVideo, c.Path); !ok {
				fmt.Fprintf(f.out, "fixed %s (thumbnail not regenerated)\n", c.Name)
				continue
			}
		}
		fmt.Fprintf(f.out, "fixed %s\n", c.Name)
	}
	fmt.Fprintf(f.out, "Fixed: %d, failed: %d\n", r.Fixed, r.Failed)
	return r
}

// confirm asks whether to fix n videos. Only "y" or "yes" proceed.
func confirm(in io.Reader, out io.Writer, n int) bool {
	fmt.Fprintf(out, "Fix %d video(s)? [y/N] ", n)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}
