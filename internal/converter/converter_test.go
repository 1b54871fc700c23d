package converter

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"media-lite/internal/database"
	"media-lite/internal/media"
	"media-lite/internal/mediatypes"
	"media-lite/internal/transcoder"
	"media-lite/internal/transcoder/transcodertest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var (
	portraitClip  = transcoder.ProbeResult{Width: 1080, Height: 1920}
	landscapeClip = transcoder.ProbeResult{Width: 1920, Height: 1080}
)

type fixture struct {
	dir     string
	thumbs  string
	fake    *transcodertest.Fake
	db      *database.Database
	catalog *database.KindCatalog
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	f := &fixture{
		dir:    filepath.Join(root, "videos"),
		thumbs: filepath.Join(root, "thumbnails"),
		fake:   &transcodertest.Fake{},
	}
	require.NoError(t, os.MkdirAll(f.dir, 0o755))
	require.NoError(t, os.MkdirAll(f.thumbs, 0o755))

	db, err := database.Open(context.Background(), database.Config{
		Driver: "sqlite3",
		URL:    filepath.Join(root, "media.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	f.db = db
	f.catalog = db.Catalog(mediatypes.KindVideo)
	return f
}

func (f *fixture) converter(policy media.RotationPolicy) *Converter {
	return New(Config{Dir: f.dir}, f.fake, policy, f.catalog, media.NewThumbnailGenerator(f.fake, f.thumbs))
}

func (f *fixture) writeClip(t *testing.T, name string, p transcoder.ProbeResult) string {
	t.Helper()
	path := filepath.Join(f.dir, name)
	require.NoError(t, transcodertest.WriteVideo(path, p))
	return path
}

func (f *fixture) category(t *testing.T, name string) int64 {
	t.Helper()
	cat, err := f.db.CreateCategory(context.Background(), name)
	require.NoError(t, err)
	return cat.ID
}

func hiddenFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var hidden []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			hidden = append(hidden, e.Name())
		}
	}
	return hidden
}

func TestScanConvertsAndRenamesAssociation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.writeClip(t, "clip.mov", portraitClip)
	catID := f.category(t, "Holidays")
	require.NoError(t, f.catalog.Set(ctx, "clip.mov", catID))

	c := f.converter(media.PolicyPortrait)
	res := c.ScanOnce(ctx)

	assert.Equal(t, 1, res.Candidates)
	assert.Equal(t, 1, res.Converted)
	assert.Zero(t, res.Failed)
	assert.NotEmpty(t, res.ID)

	assert.NoFileExists(t, filepath.Join(f.dir, "clip.mov"))
	out, err := transcodertest.ReadVideo(filepath.Join(f.dir, "clip.mp4"))
	require.NoError(t, err)
	assert.Equal(t, landscapeClip, out)
	assert.Empty(t, hiddenFiles(t, f.dir))

	_, ok, err := f.catalog.Get(ctx, "clip.mov")
	require.NoError(t, err)
	assert.False(t, ok)
	got, ok, err := f.catalog.Get(ctx, "clip.mp4")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, catID, got)

	assert.FileExists(t, filepath.Join(f.thumbs, "clip.jpg"))

	calls := f.fake.Transcodes()
	require.Len(t, calls, 1)
	assert.Equal(t, transcoder.TransformRotateCW, calls[0].Op.Transform)
	assert.False(t, calls[0].Op.NoAutoRotate)
	assert.Equal(t, "mp4", calls[0].Op.Format)

	st := c.Status()
	assert.EqualValues(t, 1, st.Scans)
	assert.EqualValues(t, 1, st.TotalConverted)
	assert.Equal(t, res.ID, st.LastScan.ID)
}

func TestScanIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.writeClip(t, "a.mov", landscapeClip)

	c := f.converter(media.PolicyPortrait)
	first := c.ScanOnce(ctx)
	require.Equal(t, 1, first.Converted)

	second := c.ScanOnce(ctx)
	assert.Zero(t, second.Candidates)
	assert.Len(t, f.fake.Transcodes(), 1)
	assert.FileExists(t, filepath.Join(f.dir, "a.mp4"))
}

func TestScanLandscapeKeepsOrientation(t *testing.T) {
	f := newFixture(t)
	f.writeClip(t, "wide.mov", landscapeClip)

	res := f.converter(media.PolicyPortrait).ScanOnce(context.Background())
	require.Equal(t, 1, res.Converted)

	calls := f.fake.Transcodes()
	require.Len(t, calls, 1)
	assert.Equal(t, transcoder.TransformNone, calls[0].Op.Transform)

	out, err := transcodertest.ReadVideo(filepath.Join(f.dir, "wide.mp4"))
	require.NoError(t, err)
	assert.Equal(t, landscapeClip, out)
}

func TestScanMetadataPolicy(t *testing.T) {
	f := newFixture(t)
	f.writeClip(t, "phone.mov", transcoder.ProbeResult{Width: 1920, Height: 1080, Rotation: 90})

	res := f.converter(media.PolicyMetadata).ScanOnce(context.Background())
	require.Equal(t, 1, res.Converted)

	calls := f.fake.Transcodes()
	require.Len(t, calls, 1)
	assert.Equal(t, transcoder.TransformRotateCCW, calls[0].Op.Transform)
	assert.True(t, calls[0].Op.NoAutoRotate)
}

func TestScanUnsupportedRotationFallsBack(t *testing.T) {
	f := newFixture(t)
	f.writeClip(t, "odd.mov", transcoder.ProbeResult{Width: 1920, Height: 1080, Rotation: 45})

	res := f.converter(media.PolicyMetadata).ScanOnce(context.Background())
	require.Equal(t, 1, res.Converted)

	calls := f.fake.Transcodes()
	require.Len(t, calls, 1)
	assert.Equal(t, transcoder.TransformNone, calls[0].Op.Transform)
	assert.False(t, calls[0].Op.NoAutoRotate)
	assert.NoFileExists(t, filepath.Join(f.dir, "odd.mov"))
}

func TestScanSkipsWhenTargetExists(t *testing.T) {
	f := newFixture(t)
	f.writeClip(t, "dup.mov", portraitClip)
	f.writeClip(t, "dup.mp4", landscapeClip)

	res := f.converter(media.PolicyPortrait).ScanOnce(context.Background())

	assert.Equal(t, 1, res.SkippedExists)
	assert.Zero(t, res.Converted)
	assert.Empty(t, f.fake.Transcodes())
	assert.FileExists(t, filepath.Join(f.dir, "dup.mov"))
}

func TestScanMatchesExtensionCaseInsensitively(t *testing.T) {
	f := newFixture(t)
	f.writeClip(t, "LOUD.MOV", landscapeClip)

	res := f.converter(media.PolicyPortrait).ScanOnce(context.Background())

	assert.Equal(t, 1, res.Converted)
	assert.FileExists(t, filepath.Join(f.dir, "LOUD.mp4"))
	assert.NoFileExists(t, filepath.Join(f.dir, "LOUD.MOV"))
}

func TestScanIgnoresHiddenAndOtherFiles(t *testing.T) {
	f := newFixture(t)
	f.writeClip(t, ".partial.mov", landscapeClip)
	f.writeClip(t, "movie.mkv", landscapeClip)
	require.NoError(t, os.Mkdir(filepath.Join(f.dir, "folder.mov"), 0o755))

	res := f.converter(media.PolicyPortrait).ScanOnce(context.Background())

	assert.Zero(t, res.Candidates)
	assert.Empty(t, f.fake.Transcodes())
}

func TestScanDefersSettlingFiles(t *testing.T) {
	f := newFixture(t)
	f.writeClip(t, "fresh.mov", landscapeClip)

	c := New(Config{Dir: f.dir, SettleAge: time.Hour}, f.fake, media.PolicyPortrait, f.catalog, nil)
	res := c.ScanOnce(context.Background())
	assert.Equal(t, 1, res.Deferred)
	assert.Empty(t, f.fake.Transcodes())

	c.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	res = c.ScanOnce(context.Background())
	assert.Equal(t, 1, res.Converted)
}

func TestScanTranscodeFailureLeavesLegacy(t *testing.T) {
	f := newFixture(t)
	f.fake.TranscodeErr = &transcoder.ToolError{Tool: "ffmpeg", ExitCode: 1, Stderr: "boom"}
	f.writeClip(t, "bad.mov", portraitClip)

	c := f.converter(media.PolicyPortrait)
	res := c.ScanOnce(context.Background())

	assert.Equal(t, 1, res.Failed)
	assert.FileExists(t, filepath.Join(f.dir, "bad.mov"))
	assert.NoFileExists(t, filepath.Join(f.dir, "bad.mp4"))
	assert.Empty(t, hiddenFiles(t, f.dir))

	// The next pass retries.
	f.fake.TranscodeErr = nil
	res = c.ScanOnce(context.Background())
	assert.Equal(t, 1, res.Converted)
	assert.Len(t, f.fake.Transcodes(), 2)
}

func TestScanEmptyOutputIsFailure(t *testing.T) {
	f := newFixture(t)
	f.fake.EmptyOutput = true
	f.writeClip(t, "empty.mov", landscapeClip)

	res := f.converter(media.PolicyPortrait).ScanOnce(context.Background())

	assert.Equal(t, 1, res.Failed)
	assert.FileExists(t, filepath.Join(f.dir, "empty.mov"))
	assert.NoFileExists(t, filepath.Join(f.dir, "empty.mp4"))
	assert.Empty(t, hiddenFiles(t, f.dir))
}

func TestScanToolMissing(t *testing.T) {
	f := newFixture(t)
	f.fake.Missing = true
	f.writeClip(t, "clip.mov", landscapeClip)

	res := f.converter(media.PolicyPortrait).ScanOnce(context.Background())

	assert.Equal(t, 1, res.Failed)
	assert.FileExists(t, filepath.Join(f.dir, "clip.mov"))
}

func TestScanContinuesAfterFailure(t *testing.T) {
	f := newFixture(t)
	// Not a decodable clip: the probe fails, the plain conversion fails too.
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "a_broken.mov"), []byte("garbage"), 0o644))
	f.writeClip(t, "b_good.mov", landscapeClip)

	res := f.converter(media.PolicyPortrait).ScanOnce(context.Background())

	assert.Equal(t, 2, res.Candidates)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.Converted)
	assert.FileExists(t, filepath.Join(f.dir, "a_broken.mov"))
	assert.FileExists(t, filepath.Join(f.dir, "b_good.mp4"))
}

type stubCatalog struct {
	renameErr   error
	panicRename bool
	names       []string
	renamed     [][2]string
}

func (s *stubCatalog) Rename(_ context.Context, oldName, newName string) (bool, error) {
	if s.panicRename {
		panic("catalog exploded")
	}
	if s.renameErr != nil {
		return false, s.renameErr
	}
	s.renamed = append(s.renamed, [2]string{oldName, newName})
	return true, nil
}

func (s *stubCatalog) Get(context.Context, string) (int64, bool, error) {
	return 0, false, nil
}

func (s *stubCatalog) Filenames(context.Context) ([]string, error) {
	return s.names, nil
}

func TestScanCatalogFailureKeepsConversion(t *testing.T) {
	f := newFixture(t)
	f.writeClip(t, "clip.mov", landscapeClip)

	cat := &stubCatalog{renameErr: errors.New("database is locked")}
	c := New(Config{Dir: f.dir}, f.fake, media.PolicyPortrait, cat, nil)
	res := c.ScanOnce(context.Background())

	assert.Equal(t, 1, res.Converted)
	assert.Equal(t, 1, res.CatalogFailed)
	assert.Zero(t, res.Failed)
	assert.FileExists(t, filepath.Join(f.dir, "clip.mp4"))
	assert.NoFileExists(t, filepath.Join(f.dir, "clip.mov"))
}

func TestScanRecoversFromPanic(t *testing.T) {
	f := newFixture(t)
	f.writeClip(t, "a.mov", landscapeClip)
	f.writeClip(t, "b.mov", landscapeClip)

	cat := &stubCatalog{panicRename: true}
	c := New(Config{Dir: f.dir}, f.fake, media.PolicyPortrait, cat, nil)

	var res ScanResult
	require.NotPanics(t, func() { res = c.ScanOnce(context.Background()) })
	assert.Equal(t, 2, res.Candidates)
	assert.Equal(t, 2, res.Failed)
	assert.FileExists(t, filepath.Join(f.dir, "b.mp4"))
}

func TestScanWithoutCatalog(t *testing.T) {
	f := newFixture(t)
	f.writeClip(t, "clip.mov", landscapeClip)

	c := New(Config{Dir: f.dir}, f.fake, media.PolicyPortrait, nil, nil)
	res := c.ScanOnce(context.Background())
	assert.Equal(t, 1, res.Converted)
}

func TestScanLegacyRemovalFailureIsRetried(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.writeClip(t, "stuck.mov", portraitClip)
	catID := f.category(t, "Family")
	require.NoError(t, f.catalog.Set(ctx, "stuck.mov", catID))

	c := f.converter(media.PolicyPortrait)
	c.remove = func(string) error { return errors.New("resource busy") }

	res := c.ScanOnce(ctx)
	assert.Equal(t, 1, res.Failed)
	assert.Zero(t, res.Converted)
	assert.FileExists(t, filepath.Join(f.dir, "stuck.mov"))
	assert.FileExists(t, filepath.Join(f.dir, "stuck.mp4"))
	assert.NoFileExists(t, filepath.Join(f.thumbs, "stuck.jpg"))

	got, ok, err := f.catalog.Get(ctx, "stuck.mov")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, catID, got)
	_, ok, err = f.catalog.Get(ctx, "stuck.mp4")
	require.NoError(t, err)
	assert.False(t, ok)

	c.remove = os.Remove
	res = c.ScanOnce(ctx)
	assert.Equal(t, 1, res.Converted)
	assert.Zero(t, res.SkippedExists)
	assert.Zero(t, res.Failed)
	assert.NoFileExists(t, filepath.Join(f.dir, "stuck.mov"))
	assert.FileExists(t, filepath.Join(f.thumbs, "stuck.jpg"))

	got, ok, err = f.catalog.Get(ctx, "stuck.mp4")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, catID, got)

	// The target was already written, so nothing is transcoded twice.
	assert.Len(t, f.fake.Transcodes(), 1)
}

func TestScanTargetWithOwnAssociationIsSkipped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := f.category(t, "A"), f.category(t, "B")

	f.writeClip(t, "twin.mov", portraitClip)
	f.writeClip(t, "twin.mp4", landscapeClip)
	require.NoError(t, f.catalog.Set(ctx, "twin.mov", a))
	require.NoError(t, f.catalog.Set(ctx, "twin.mp4", b))

	res := f.converter(media.PolicyPortrait).ScanOnce(ctx)
	assert.Equal(t, 1, res.SkippedExists)
	assert.FileExists(t, filepath.Join(f.dir, "twin.mov"))
}

// thumbWatchCatalog records whether the thumbnail already existed when the
// catalog rename ran.
type thumbWatchCatalog struct {
	Catalog
	thumb         string
	thumbAtRename bool
}

func (w *thumbWatchCatalog) Rename(ctx context.Context, oldName, newName string) (bool, error) {
	_, err := os.Stat(w.thumb)
	w.thumbAtRename = err == nil
	return w.Catalog.Rename(ctx, oldName, newName)
}

func TestScanRenamesCatalogBeforeThumbnail(t *testing.T) {
	f := newFixture(t)
	f.writeClip(t, "tall.mov", portraitClip)

	watch := &thumbWatchCatalog{Catalog: f.catalog, thumb: filepath.Join(f.thumbs, "tall.jpg")}
	c := New(Config{Dir: f.dir}, f.fake, media.PolicyPortrait, watch, media.NewThumbnailGenerator(f.fake, f.thumbs))
	res := c.ScanOnce(context.Background())

	assert.Equal(t, 1, res.Converted)
	assert.False(t, watch.thumbAtRename)
	assert.FileExists(t, watch.thumb)
}

func TestScanMissingDirectory(t *testing.T) {
	f := newFixture(t)
	c := New(Config{Dir: filepath.Join(f.dir, "nope")}, f.fake, media.PolicyPortrait, nil, nil)
	res := c.ScanOnce(context.Background())
	assert.Zero(t, res.Candidates)
	assert.EqualValues(t, 1, c.Status().Scans)
}

func TestScanRefreshesMissingThumbnail(t *testing.T) {
	f := newFixture(t)
	f.writeClip(t, "wide.mov", landscapeClip)

	f.converter(media.PolicyPortrait).ScanOnce(context.Background())

	// No transform was needed, but there was no thumbnail yet either.
	assert.FileExists(t, filepath.Join(f.thumbs, "wide.jpg"))
	assert.Len(t, f.fake.Frames(), 1)
}

func TestTargetName(t *testing.T) {
	c := New(Config{}, &transcodertest.Fake{}, media.PolicyPortrait, nil, nil)
	assert.Equal(t, "clip.mp4", c.TargetName("clip.mov"))
	assert.Equal(t, "CLIP.mp4", c.TargetName("CLIP.MOV"))
	assert.Equal(t, "a.b.mp4", c.TargetName("a.b.mov"))
}

func TestReconcile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	catID := f.category(t, "Trips")

	// Converted, but the rename never happened.
	f.writeClip(t, "lost.mp4", landscapeClip)
	require.NoError(t, f.catalog.Set(ctx, "lost.mov", catID))
	// Not converted yet.
	f.writeClip(t, "pending.mov", landscapeClip)
	require.NoError(t, f.catalog.Set(ctx, "pending.mov", catID))
	// Gone entirely.
	require.NoError(t, f.catalog.Set(ctx, "gone.mov", catID))

	c := f.converter(media.PolicyPortrait)
	assert.Equal(t, 1, c.Reconcile(ctx))

	got, ok, err := f.catalog.Get(ctx, "lost.mp4")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, catID, got)

	names, err := f.catalog.Filenames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"gone.mov", "lost.mp4", "pending.mov"}, names)
	assert.False(t, c.Status().LastReconcile.IsZero())

	assert.Zero(t, c.Reconcile(ctx))
}

func TestReconcileConflictLeavesRows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := f.category(t, "A"), f.category(t, "B")

	f.writeClip(t, "x.mp4", landscapeClip)
	require.NoError(t, f.catalog.Set(ctx, "x.mov", a))
	require.NoError(t, f.catalog.Set(ctx, "x.mp4", b))

	c := f.converter(media.PolicyPortrait)
	assert.Zero(t, c.Reconcile(ctx))

	names, err := f.catalog.Filenames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"x.mov", "x.mp4"}, names)
}

func TestSweepTemps(t *testing.T) {
	f := newFixture(t)
	old := time.Now().Add(-2 * time.Hour)

	write := func(name string, mtime time.Time) {
		path := filepath.Join(f.dir, name)
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
		require.NoError(t, os.Chtimes(path, mtime, mtime))
	}
	write(".clip.mp4123456", old)
	write(".clip.mov987", old)
	write(".fresh.mp4555", time.Now())
	write(".hidden", old)
	write(".notes.txt123", old)
	write("clip.mp4", old)

	c := f.converter(media.PolicyPortrait)
	assert.Equal(t, 2, c.SweepTemps())

	assert.NoFileExists(t, filepath.Join(f.dir, ".clip.mp4123456"))
	assert.NoFileExists(t, filepath.Join(f.dir, ".clip.mov987"))
	assert.FileExists(t, filepath.Join(f.dir, ".fresh.mp4555"))
	assert.FileExists(t, filepath.Join(f.dir, ".hidden"))
	assert.FileExists(t, filepath.Join(f.dir, ".notes.txt123"))
	assert.FileExists(t, filepath.Join(f.dir, "clip.mp4"))
}

func TestSweepTempsThumbnailDir(t *testing.T) {
	f := newFixture(t)
	old := time.Now().Add(-2 * time.Hour)

	write := func(name string, mtime time.Time) {
		path := filepath.Join(f.thumbs, name)
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
		require.NoError(t, os.Chtimes(path, mtime, mtime))
	}
	write(".frame-123456.jpg", old)
	write(".clip.jpg4242", old)
	write(".thumb_cat.png77", old)
	write(".frame-999.jpg", time.Now())
	write("clip.jpg", old)
	write("fallback.jpg", old)

	c := f.converter(media.PolicyPortrait)
	assert.Equal(t, 3, c.SweepTemps())

	assert.NoFileExists(t, filepath.Join(f.thumbs, ".frame-123456.jpg"))
	assert.NoFileExists(t, filepath.Join(f.thumbs, ".clip.jpg4242"))
	assert.NoFileExists(t, filepath.Join(f.thumbs, ".thumb_cat.png77"))
	assert.FileExists(t, filepath.Join(f.thumbs, ".frame-999.jpg"))
	assert.FileExists(t, filepath.Join(f.thumbs, "clip.jpg"))
	assert.FileExists(t, filepath.Join(f.thumbs, "fallback.jpg"))
}

func TestRunConvertsUntilCancelled(t *testing.T) {
	f := newFixture(t)
	c := New(Config{
		Dir:               f.dir,
		PollInterval:      50 * time.Millisecond,
		Watch:             true,
		ReconcileSchedule: "@every 1h",
	}, f.fake, media.PolicyPortrait, f.catalog, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, func() bool { return c.Status().Running }, 5*time.Second, 10*time.Millisecond)

	f.writeClip(t, "late.mov", portraitClip)
	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(f.dir, "late.mp4"))
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.False(t, c.Status().Running)
	assert.GreaterOrEqual(t, c.Status().TotalConverted, int64(1))
}

func TestRunRejectsBadSchedule(t *testing.T) {
	f := newFixture(t)
	c := New(Config{Dir: f.dir, ReconcileSchedule: "every now and then"}, f.fake, media.PolicyPortrait, nil, nil)

	err := c.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid reconcile schedule")
	assert.False(t, c.Status().Running)
}

func TestTriggerNeverBlocks(t *testing.T) {
	c := New(Config{}, &transcodertest.Fake{}, media.PolicyPortrait, nil, nil)
	done := make(chan struct{})
	go func() {
		c.Trigger()
		c.Trigger()
		c.Trigger()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Trigger blocked")
	}
}
