package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media-lite/internal/database"
	"media-lite/internal/library"
	"media-lite/internal/media"
	"media-lite/internal/mediatypes"
	"media-lite/internal/transcoder"
	"media-lite/internal/transcoder/transcodertest"
)

type setup struct {
	db     *database.Database
	lib    *library.Library
	dirs   library.Dirs
	thumbs string
	src    string
}

func newSetup(t *testing.T) *setup {
	t.Helper()
	root := t.TempDir()
	s := &setup{
		dirs: library.Dirs{
			Video:    filepath.Join(root, "videos"),
			Image:    filepath.Join(root, "images"),
			Document: filepath.Join(root, "documents"),
		},
		thumbs: filepath.Join(root, "thumbnails"),
		src:    filepath.Join(root, "incoming"),
	}
	for _, dir := range []string{s.dirs.Video, s.dirs.Image, s.dirs.Document, s.thumbs, s.src} {
		require.NoError(t, os.MkdirAll(dir, 0o755))
	}

	db, err := database.Open(context.Background(), database.Config{Driver: "sqlite3", URL: filepath.Join(root, "media.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	s.db = db

	fake := &transcodertest.Fake{}
	s.lib = library.New(s.dirs, fake, media.PolicyPortrait, media.NewThumbnailGenerator(fake, s.thumbs), db)
	return s
}

func TestIngestStoresFiles(t *testing.T) {
	s := newSetup(t)
	ctx := context.Background()
	cat, err := s.db.CreateCategory(ctx, "Holiday")
	require.NoError(t, err)

	clip := filepath.Join(s.src, "phone.mov")
	require.NoError(t, transcodertest.WriteVideo(clip, transcoder.ProbeResult{Width: 1080, Height: 1920}))
	doc := filepath.Join(s.src, "notes.txt")
	require.NoError(t, os.WriteFile(doc, []byte("hello"), 0o644))

	var out bytes.Buffer
	r, err := ingest(ctx, s.lib, []string{clip, doc}, cat.ID, &out)
	require.NoError(t, err)
	assert.Equal(t, result{Stored: 2}, r)
	assert.Contains(t, out.String(), "video")
	assert.Contains(t, out.String(), "landscape, rotated")

	videos, err := os.ReadDir(s.dirs.Video)
	require.NoError(t, err)
	require.Len(t, videos, 1)
	assert.Regexp(t, `^phone_\d+\.mov$`, videos[0].Name())

	got, ok, err := s.db.GetAssociation(ctx, mediatypes.KindVideo, videos[0].Name())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, cat.ID, got)

	docs, err := os.ReadDir(s.dirs.Document)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Regexp(t, `^notes_\d+\.txt$`, docs[0].Name())

	// Sources are copied, never moved.
	assert.FileExists(t, clip)
	assert.FileExists(t, doc)
}

func TestIngestRejectsBadFiles(t *testing.T) {
	s := newSetup(t)
	bin := filepath.Join(s.src, "tool.exe")
	require.NoError(t, os.WriteFile(bin, []byte("MZ"), 0o644))

	var out bytes.Buffer
	r, err := ingest(context.Background(), s.lib, []string{bin, filepath.Join(s.src, "missing.png"), s.src}, 0, &out)
	require.NoError(t, err)
	assert.Equal(t, result{Failed: 3}, r)
	assert.Contains(t, out.String(), "FAILED "+bin)

	for _, dir := range []string{s.dirs.Video, s.dirs.Image, s.dirs.Document} {
		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries)
	}
}

func TestIngestTooManyFiles(t *testing.T) {
	paths := make([]string, maxFiles+1)
	for i := range paths {
		paths[i] = fmt.Sprintf("f%d.txt", i)
	}
	_, err := ingest(context.Background(), &stubStorer{}, paths, 0, io.Discard)
	require.ErrorIs(t, err, errTooManyFiles)
}

type stubStorer struct {
	err error
}

func (s *stubStorer) Store(_ context.Context, kind mediatypes.Kind, name string, r io.Reader, _ int64) (*library.Stored, error) {
	n, err := io.Copy(io.Discard, r)
	if err != nil {
		return nil, err
	}
	return &library.Stored{Kind: kind, Filename: "stored_" + name, Size: n}, s.err
}

func TestIngestCatalogFailureIsPartial(t *testing.T) {
	src := filepath.Join(t.TempDir(), "photo.jpg")
	require.NoError(t, os.WriteFile(src, []byte("jpeg"), 0o644))
	lib := &stubStorer{err: fmt.Errorf("%w: db locked", media.ErrCatalogInconsistency)}

	var out bytes.Buffer
	r, err := ingest(context.Background(), lib, []string{src}, 3, &out)
	require.NoError(t, err)
	assert.Equal(t, result{Partial: 1}, r)
	assert.Contains(t, out.String(), "as stored_photo.jpg without category")
}

func TestIngestCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ingest(ctx, &stubStorer{}, []string{"a.txt"}, 0, io.Discard)
	require.ErrorIs(t, err, context.Canceled)
}

func TestCheckCategory(t *testing.T) {
	s := newSetup(t)
	ctx := context.Background()
	cat, err := s.db.CreateCategory(ctx, "Work")
	require.NoError(t, err)

	require.NoError(t, checkCategory(ctx, s.db, database.AllCategoryID))
	require.NoError(t, checkCategory(ctx, s.db, cat.ID))

	err = checkCategory(ctx, s.db, 999)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "999 does not exist")

	boom := errors.New("connection refused")
	require.ErrorIs(t, checkCategory(ctx, failingGetter{boom}, 1), boom)
}

type failingGetter struct{ err error }

func (f failingGetter) GetCategory(context.Context, int64) (*database.Category, error) {
	return nil, f.err
}
