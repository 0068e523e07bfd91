package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/clusterfoundry/backup-sidecar/internal/backup"
	"github.com/clusterfoundry/backup-sidecar/internal/config"
	"github.com/clusterfoundry/backup-sidecar/internal/storage"
)

// mockFS serves a fixed key set lexically, the way an object store does.
type mockFS struct {
	keys    []string
	root    string
	walkErr error

	lastPrefix string
	lastMarker string

	downloadKey  string
	downloadPath string
	downloadConc int
	downloadErr  error
}

func (m *mockFS) Walk(ctx context.Context, prefix, marker string, fn func(key string) error) error {
	m.lastPrefix = prefix
	m.lastMarker = marker
	if m.walkErr != nil {
		return m.walkErr
	}
	for _, k := range m.keys {
		if !strings.HasPrefix(k, prefix) || k < marker {
			continue
		}
		if err := fn(k); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockFS) Download(ctx context.Context, key, localPath string, concurrency int) error {
	m.downloadKey = key
	m.downloadPath = localPath
	m.downloadConc = concurrency
	if m.downloadErr != nil {
		return m.downloadErr
	}
	return os.WriteFile(localPath, []byte("{}"), 0o644)
}

func (m *mockFS) RootPrefix() string {
	return m.root
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestCatalog(t *testing.T, fs *mockFS) Catalog {
	t.Helper()
	cfg := &config.Config{
		ManifestFormat: "v2",
		DataDir:        t.TempDir(),
	}
	codec := backup.NewCodec("prod", "node-1", fs.root)
	cat, err := New(cfg, fs, codec, testLogger())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return cat
}

func manifestKey(t *testing.T, ts time.Time) string {
	t.Helper()
	codec := backup.NewCodec("prod", "node-1", "backups")
	return codec.Encode(backup.KindManifest, ts, backup.ManifestFileName(ts))
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	cfg := &config.Config{ManifestFormat: "v3", DataDir: t.TempDir()}
	if _, err := New(cfg, &mockFS{root: "backups"}, backup.NewCodec("prod", "node-1", "backups"), testLogger()); err == nil {
		t.Error("New() with unknown format should fail")
	}
}

func TestSearchPrefix(t *testing.T) {
	fs := &mockFS{root: "backups"}
	cat := newTestCatalog(t, fs)

	if got, want := cat.SearchPrefix(nil), "backups/prod/META_V2"; got != want {
		t.Errorf("SearchPrefix(nil) = %q, want %q", got, want)
	}

	dr := backup.DateRange{Start: time.Date(2023, 5, 1, 14, 30, 0, 0, time.UTC)}
	if got, want := cat.SearchPrefix(&dr), "backups/prod/META_V2/20230501"; got != want {
		t.Errorf("SearchPrefix(range) = %q, want %q", got, want)
	}
}

func TestFindRequiresBoundedRange(t *testing.T) {
	cat := newTestCatalog(t, &mockFS{root: "backups"})

	open := backup.DateRange{Start: time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)}
	if _, err := cat.Find(context.Background(), open); !errors.Is(err, backup.ErrInvalidRange) {
		t.Errorf("Find(open range) error = %v, want ErrInvalidRange", err)
	}

	if _, err := cat.Find(context.Background(), backup.DateRange{}); !errors.Is(err, backup.ErrInvalidRange) {
		t.Errorf("Find(zero range) error = %v, want ErrInvalidRange", err)
	}
}

func TestFindExactWindow(t *testing.T) {
	// Entries at 09:59, 10:00 and 10:05; only 10:00 falls inside
	// [09:58, 10:04].
	day := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)
	fs := &mockFS{
		root: "backups",
		keys: []string{
			manifestKey(t, day.Add(9*time.Hour+59*time.Minute)),
			manifestKey(t, day.Add(10*time.Hour)),
			manifestKey(t, day.Add(10*time.Hour+5*time.Minute)),
		},
	}
	cat := newTestCatalog(t, fs)

	dr := backup.DateRange{
		Start: day.Add(9*time.Hour + 58*time.Minute),
		End:   day.Add(10*time.Hour + 4*time.Minute),
	}

	metas, err := cat.Find(context.Background(), dr)
	if err != nil {
		t.Fatalf("Find() error: %v", err)
	}
	if len(metas) != 1 {
		t.Fatalf("Find() returned %d entries, want 1", len(metas))
	}
	if want := day.Add(10 * time.Hour); !metas[0].LastModified.Equal(want) {
		t.Errorf("Find() returned entry at %v, want %v", metas[0].LastModified, want)
	}
}

func TestFindEmptyWindow(t *testing.T) {
	at := time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC)
	fs := &mockFS{
		root: "backups",
		keys: []string{
			manifestKey(t, at.Add(-time.Hour)),
			manifestKey(t, at.Add(time.Hour)),
		},
	}
	cat := newTestCatalog(t, fs)

	metas, err := cat.Find(context.Background(), backup.DateRange{Start: at, End: at})
	if err != nil {
		t.Fatalf("Find() error: %v", err)
	}
	if len(metas) != 0 {
		t.Errorf("Find() returned %d entries, want empty result", len(metas))
	}
}

func TestFindNewestFirst(t *testing.T) {
	day := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)
	times := []time.Time{
		day.Add(8 * time.Hour),
		day.Add(14 * time.Hour),
		day.Add(11 * time.Hour),
		day.Add(9 * time.Hour),
	}

	fs := &mockFS{root: "backups"}
	for _, ts := range times {
		fs.keys = append(fs.keys, manifestKey(t, ts))
	}
	cat := newTestCatalog(t, fs)

	metas, err := cat.Find(context.Background(), backup.DateRange{Start: day, End: day.Add(24 * time.Hour)})
	if err != nil {
		t.Fatalf("Find() error: %v", err)
	}
	if len(metas) != len(times) {
		t.Fatalf("Find() returned %d entries, want %d", len(metas), len(times))
	}
	for i := 1; i < len(metas); i++ {
		if metas[i].LastModified.After(metas[i-1].LastModified) {
			t.Errorf("result not sorted newest first at index %d: %v after %v",
				i, metas[i].LastModified, metas[i-1].LastModified)
		}
	}
}

func TestFindSkipsMalformedKeys(t *testing.T) {
	day := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)
	fs := &mockFS{
		root: "backups",
		keys: []string{
			manifestKey(t, day.Add(10*time.Hour)),
			"backups/prod/META_V2/20230501/leftover.json", // foreign writer, wrong grammar
			manifestKey(t, day.Add(11*time.Hour)),
		},
	}
	cat := newTestCatalog(t, fs)

	metas, err := cat.Find(context.Background(), backup.DateRange{Start: day, End: day.Add(24 * time.Hour)})
	if err != nil {
		t.Fatalf("Find() error: %v", err)
	}
	if len(metas) != 2 {
		t.Errorf("Find() returned %d entries, want 2 (malformed key skipped)", len(metas))
	}
}

func TestFindPrefixAndMarker(t *testing.T) {
	fs := &mockFS{root: "backups"}
	cat := newTestCatalog(t, fs)

	dr := backup.DateRange{
		Start: time.Date(2023, 5, 1, 16, 0, 0, 0, time.UTC),
		End:   time.Date(2023, 5, 3, 0, 0, 0, 0, time.UTC),
	}
	if _, err := cat.Find(context.Background(), dr); err != nil {
		t.Fatalf("Find() error: %v", err)
	}

	// The bounded range spans two days, so the prefix widens to the
	// common token of both bounds.
	if want := "backups/prod/META_V2/2023050"; fs.lastPrefix != want {
		t.Errorf("listing prefix = %q, want %q", fs.lastPrefix, want)
	}
	// The marker is derived from the open-ended range at Start, so it is
	// date-only regardless of the start's time-of-day.
	if want := "backups/prod/META_V2/20230501"; fs.lastMarker != want {
		t.Errorf("listing marker = %q, want %q", fs.lastMarker, want)
	}
}

func TestFindMultiDayWindow(t *testing.T) {
	// Manifests on consecutive days; a window covering both must return
	// both, not just the entries under the start day's prefix.
	first := time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC)
	second := time.Date(2023, 5, 2, 12, 0, 0, 0, time.UTC)
	fs := &mockFS{
		root: "backups",
		keys: []string{
			manifestKey(t, first),
			manifestKey(t, second),
		},
	}
	cat := newTestCatalog(t, fs)

	dr := backup.DateRange{
		Start: time.Date(2023, 5, 1, 11, 0, 0, 0, time.UTC),
		End:   time.Date(2023, 5, 2, 13, 0, 0, 0, time.UTC),
	}

	metas, err := cat.Find(context.Background(), dr)
	if err != nil {
		t.Fatalf("Find() error: %v", err)
	}
	if len(metas) != 2 {
		t.Fatalf("Find() returned %d entries, want 2", len(metas))
	}
	if !metas[0].LastModified.Equal(second) {
		t.Errorf("Find()[0] at %v, want the newer manifest at %v", metas[0].LastModified, second)
	}
	if !metas[1].LastModified.Equal(first) {
		t.Errorf("Find()[1] at %v, want the older manifest at %v", metas[1].LastModified, first)
	}
}

func TestFindListingFailure(t *testing.T) {
	fs := &mockFS{
		root:    "backups",
		walkErr: fmt.Errorf("%w: connection reset", storage.ErrTransfer),
	}
	cat := newTestCatalog(t, fs)

	dr := backup.DateRange{
		Start: time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2023, 5, 2, 0, 0, 0, 0, time.UTC),
	}
	if _, err := cat.Find(context.Background(), dr); !errors.Is(err, storage.ErrTransfer) {
		t.Errorf("Find() error = %v, want ErrTransfer", err)
	}
}

func TestMaterialize(t *testing.T) {
	ts := time.Date(2023, 5, 1, 16, 1, 0, 0, time.UTC)
	fs := &mockFS{root: "backups"}
	cat := newTestCatalog(t, fs)

	meta := &backup.Path{
		Kind:         backup.KindManifest,
		LastModified: ts,
		RemoteKey:    manifestKey(t, ts),
		FileName:     backup.ManifestFileName(ts),
	}

	localPath, err := cat.Materialize(context.Background(), meta)
	if err != nil {
		t.Fatalf("Materialize() error: %v", err)
	}

	if want := filepath.Join(cat.LocalManifestDir(), meta.FileName); localPath != want {
		t.Errorf("Materialize() = %q, want %q", localPath, want)
	}
	if fs.downloadKey != meta.RemoteKey {
		t.Errorf("downloaded key = %q, want %q", fs.downloadKey, meta.RemoteKey)
	}
	if fs.downloadConc != downloadConcurrency {
		t.Errorf("download concurrency = %d, want %d", fs.downloadConc, downloadConcurrency)
	}
	if _, err := os.Stat(localPath); err != nil {
		t.Errorf("materialized file missing: %v", err)
	}
}

func TestMaterializeFailure(t *testing.T) {
	ts := time.Date(2023, 5, 1, 16, 1, 0, 0, time.UTC)
	fs := &mockFS{
		root:        "backups",
		downloadErr: fmt.Errorf("%w: timeout", storage.ErrTransfer),
	}
	cat := newTestCatalog(t, fs)

	meta := &backup.Path{
		RemoteKey: manifestKey(t, ts),
		FileName:  backup.ManifestFileName(ts),
	}

	_, err := cat.Materialize(context.Background(), meta)
	if !errors.Is(err, ErrRetrieval) {
		t.Errorf("Materialize() error = %v, want ErrRetrieval", err)
	}
	if !errors.Is(err, storage.ErrTransfer) {
		t.Errorf("Materialize() error = %v, should wrap the transfer failure", err)
	}
}

func TestPruneLocal(t *testing.T) {
	fs := &mockFS{root: "backups"}
	cat := newTestCatalog(t, fs)
	dir := cat.LocalManifestDir()

	keep := []string{"snapshot-001.db", "notes.txt"}
	sweep := []string{
		"meta_v2_202305011601.json",
		"meta_v2_202305021601.json",
		"meta_v2_202305031601.json.tmp",
	}
	for _, name := range append(append([]string{}, keep...), sweep...) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	// Subdirectories are never swept, even with a matching name.
	if err := os.Mkdir(filepath.Join(dir, "meta_v2_dir.json"), 0o755); err != nil {
		t.Fatal(err)
	}

	cat.PruneLocal()

	for _, name := range sweep {
		if _, err := os.Stat(filepath.Join(dir, name)); !os.IsNotExist(err) {
			t.Errorf("manifest %q should have been deleted", name)
		}
	}
	for _, name := range keep {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("non-manifest %q should survive the sweep: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "meta_v2_dir.json")); err != nil {
		t.Errorf("directory should survive the sweep: %v", err)
	}

	// A second sweep over the already-clean directory is a no-op.
	cat.PruneLocal()
	for _, name := range keep {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("non-manifest %q should survive repeated sweeps: %v", name, err)
		}
	}
}

func TestArtifactListUnsupported(t *testing.T) {
	cat := newTestCatalog(t, &mockFS{root: "backups"})

	if _, err := cat.ArtifactList("/tmp/meta_v2_202305011601.json"); !errors.Is(err, ErrArtifactListUnsupported) {
		t.Errorf("ArtifactList() error = %v, want ErrArtifactListUnsupported", err)
	}
}
