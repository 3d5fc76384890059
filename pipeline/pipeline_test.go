package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"vidweek/config"
	"vidweek/karakeep"
	"vidweek/media"
	"vidweek/report"
	"vidweek/window"
)

// --- fakes ---

type fakeBookmarks struct {
	bookmarks []karakeep.Bookmark
	raw       []byte
}

func (f *fakeBookmarks) ListBookmarks(context.Context) ([]karakeep.Bookmark, []byte, error) {
	return f.bookmarks, f.raw, nil
}

type fakeChat struct {
	bodies []string
}

func (f *fakeChat) MessagesWithin(context.Context, window.Window) ([]string, error) {
	return f.bodies, nil
}

// fakeProber answers remote probes by URL and file probes by video id.
type fakeProber struct {
	remote map[string]*media.Metadata
	local  map[string]time.Duration
}

func (f *fakeProber) Probe(_ context.Context, url string) (*media.Metadata, error) {
	m, ok := f.remote[url]
	if !ok {
		return nil, fmt.Errorf("probe %s: no such video", url)
	}
	return m, nil
}

func (f *fakeProber) FileDuration(_ context.Context, path string) (time.Duration, error) {
	d, ok := f.local[stem(path)]
	if !ok {
		return 0, media.ErrNoDuration
	}
	return d, nil
}

// fakeDownloader writes a placeholder file named by the video id.
type fakeDownloader struct {
	ids map[string]string // url -> video id
}

func (f *fakeDownloader) Download(_ context.Context, url, destDir string) error {
	id, ok := f.ids[url]
	if !ok {
		return fmt.Errorf("download %s: no such video", url)
	}
	return os.WriteFile(filepath.Join(destDir, id+".mp4"), bytes.Repeat([]byte("v"), 100), 0644)
}

// fakeEncoder records invocations and writes valid-sized outputs.
type fakeEncoder struct {
	normalizeCalls int
	concatCalls    int
}

func (f *fakeEncoder) Normalize(_ context.Context, src, dst string, _ media.Profile) error {
	f.normalizeCalls++
	return os.WriteFile(dst, bytes.Repeat([]byte("n"), 2048), 0644)
}

func (f *fakeEncoder) Concat(_ context.Context, listFile, dst string) error {
	f.concatCalls++
	return os.WriteFile(dst, bytes.Repeat([]byte("c"), 4096), 0644)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	root := t.TempDir()
	cfg.DownloadDir = filepath.Join(root, "downloads")
	cfg.CompilationDir = filepath.Join(root, "compilation")
	return cfg
}

func testWindow() window.Window {
	return window.Window{
		Start: time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC),
	}
}

// --- tests ---

func TestRunDurationGate(t *testing.T) {
	cfg := testConfig(t)
	win := testWindow()

	bookmarks := &fakeBookmarks{
		bookmarks: []karakeep.Bookmark{
			{ID: "b1", CreatedAt: win.Start.Add(time.Hour), Content: karakeep.Content{URL: "https://v.example/kept"}},
			{ID: "b2", CreatedAt: win.Start.Add(2 * time.Hour), Content: karakeep.Content{URL: "https://v.example/over"}},
			{ID: "b3", CreatedAt: win.Start.Add(3 * time.Hour), Content: karakeep.Content{URL: "https://v.example/unknown"}},
		},
		raw: []byte(`{"bookmarks":[]}`),
	}

	prober := &fakeProber{
		remote: map[string]*media.Metadata{
			// Exactly at the 180s ceiling: included.
			"https://v.example/kept": {ID: "kept", Title: "Kept", URL: "https://v.example/kept", Duration: 180 * time.Second},
			// One second over: excluded.
			"https://v.example/over": {ID: "over", Title: "Over", URL: "https://v.example/over", Duration: 181 * time.Second},
			// Duration unreported: excluded.
			"https://v.example/unknown": {ID: "unknown", Title: "Unknown", URL: "https://v.example/unknown"},
		},
		local: map[string]time.Duration{"kept": 180 * time.Second},
	}

	encoder := &fakeEncoder{}
	p := &Pipeline{
		Cfg:        cfg,
		Log:        zap.NewNop(),
		Bookmarks:  bookmarks,
		Chat:       &fakeChat{},
		Prober:     prober,
		Downloader: &fakeDownloader{ids: map[string]string{"https://v.example/kept": "kept"}},
		Encoder:    encoder,
		Renderer:   &report.Renderer{},
	}

	if err := p.Run(context.Background(), win, false); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	datedDir := filepath.Join(cfg.DownloadDir, win.DateKey())
	if _, err := os.Stat(filepath.Join(datedDir, "kept.mp4")); err != nil {
		t.Errorf("kept.mp4 missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(datedDir, "over.mp4")); err == nil {
		t.Error("over.mp4 exists, want excluded before download")
	}
	if encoder.normalizeCalls != 1 {
		t.Errorf("normalizeCalls = %d, want 1", encoder.normalizeCalls)
	}
	if encoder.concatCalls != 1 {
		t.Errorf("concatCalls = %d, want 1", encoder.concatCalls)
	}

	reportOut, err := os.ReadFile(filepath.Join(cfg.CompilationDir, win.DateKey()+".md"))
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !strings.Contains(string(reportOut), "[Kept](https://v.example/kept)") {
		t.Errorf("report missing kept video:\n%s", reportOut)
	}
	if strings.Contains(string(reportOut), "Over") {
		t.Errorf("report contains excluded video:\n%s", reportOut)
	}
}

func TestRunSweepDeletesOversizedDownload(t *testing.T) {
	cfg := testConfig(t)
	win := testWindow()
	datedDir := filepath.Join(cfg.DownloadDir, win.DateKey())
	if err := os.MkdirAll(datedDir, 0755); err != nil {
		t.Fatal(err)
	}
	// A leftover file the pre-download gate never saw.
	if err := os.WriteFile(filepath.Join(datedDir, "stray.mp4"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	prober := &fakeProber{
		remote: map[string]*media.Metadata{},
		local:  map[string]time.Duration{"stray": 200 * time.Second},
	}
	p := &Pipeline{
		Cfg:      cfg,
		Log:      zap.NewNop(),
		Prober:   prober,
		Encoder:  &fakeEncoder{},
		Renderer: &report.Renderer{},
	}

	if err := p.Run(context.Background(), win, true); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if _, err := os.Stat(filepath.Join(datedDir, "stray.mp4")); err == nil {
		t.Error("oversized stray.mp4 survived the sweep")
	}
}

func TestNormalizeIdempotence(t *testing.T) {
	cfg := testConfig(t)
	srcDir := t.TempDir()
	normalizedDir := filepath.Join(srcDir, "normalized")

	src := filepath.Join(srcDir, "vid1.webm")
	if err := os.WriteFile(src, bytes.Repeat([]byte("s"), 100), 0644); err != nil {
		t.Fatal(err)
	}

	encoder := &fakeEncoder{}
	p := &Pipeline{Cfg: cfg, Log: zap.NewNop(), Encoder: encoder}

	// First pass encodes.
	out := p.normalizeAll(context.Background(), p.Log, []string{src}, normalizedDir)
	if encoder.normalizeCalls != 1 {
		t.Fatalf("normalizeCalls = %d after first pass, want 1", encoder.normalizeCalls)
	}
	if len(out) != 1 || stem(out[0]) != "vid1" {
		t.Fatalf("normalizeAll() = %v, want one vid1 target", out)
	}

	// Second pass sees a valid target and skips the encode.
	p.normalizeAll(context.Background(), p.Log, []string{src}, normalizedDir)
	if encoder.normalizeCalls != 1 {
		t.Errorf("normalizeCalls = %d after rerun with valid target, want 1", encoder.normalizeCalls)
	}

	// A zero-byte target is corrupt: deleted and re-encoded.
	if err := os.WriteFile(out[0], nil, 0644); err != nil {
		t.Fatal(err)
	}
	p.normalizeAll(context.Background(), p.Log, []string{src}, normalizedDir)
	if encoder.normalizeCalls != 2 {
		t.Errorf("normalizeCalls = %d after rerun with corrupt target, want 2", encoder.normalizeCalls)
	}
	if info, err := os.Stat(out[0]); err != nil || info.Size() <= 1024 {
		t.Errorf("corrupt target not regenerated: info=%v err=%v", info, err)
	}
}

func TestBuildTimeline(t *testing.T) {
	dir := t.TempDir()
	var files []string
	for _, id := range []string{"aaa", "bbb", "ccc"} {
		path := filepath.Join(dir, id+".mp4")
		if err := os.WriteFile(path, []byte("n"), 0644); err != nil {
			t.Fatal(err)
		}
		files = append(files, path)
	}

	prober := &fakeProber{local: map[string]time.Duration{
		"aaa": 30 * time.Second,
		"bbb": 45 * time.Second,
		"ccc": 12 * time.Second,
	}}
	meta := map[string]*media.Metadata{
		"aaa": {ID: "aaa", Title: "Clip A", URL: "https://v.example/aaa", Uploader: "Chan A"},
	}

	p := &Pipeline{Cfg: config.DefaultConfig(), Prober: prober}
	entries, total, err := p.buildTimeline(context.Background(), zap.NewNop(), files, meta)
	if err != nil {
		t.Fatalf("buildTimeline() error = %v", err)
	}

	if len(entries) != 3 {
		t.Fatalf("len(entries) = %d, want 3", len(entries))
	}

	wantTimestamps := []string{"00:00:00", "00:00:30", "00:01:15"}
	for i, want := range wantTimestamps {
		if entries[i].Timestamp != want {
			t.Errorf("entries[%d].Timestamp = %q, want %q", i, entries[i].Timestamp, want)
		}
	}
	if got := report.FormatOffset(total); got != "00:01:27" {
		t.Errorf("total = %q, want %q", got, "00:01:27")
	}

	// Metadata join for the first entry, filename fallback for the rest.
	if entries[0].Title != "Clip A" || entries[0].Uploader != "Chan A" {
		t.Errorf("entries[0] metadata not joined: %+v", entries[0])
	}
	if entries[1].Title != "bbb" {
		t.Errorf("entries[1].Title = %q, want filename fallback %q", entries[1].Title, "bbb")
	}
	if entries[2].Index != 3 {
		t.Errorf("entries[2].Index = %d, want 3", entries[2].Index)
	}
}

func TestMergeOnlyWithoutMetadata(t *testing.T) {
	cfg := testConfig(t)
	win := testWindow()
	datedDir := filepath.Join(cfg.DownloadDir, win.DateKey())
	if err := os.MkdirAll(datedDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(datedDir, "vid1.mp4"), bytes.Repeat([]byte("v"), 100), 0644); err != nil {
		t.Fatal(err)
	}

	prober := &fakeProber{local: map[string]time.Duration{"vid1": 10 * time.Second}}
	encoder := &fakeEncoder{}
	p := &Pipeline{
		Cfg:      cfg,
		Log:      zap.NewNop(),
		Prober:   prober,
		Encoder:  encoder,
		Renderer: &report.Renderer{},
	}

	// No metadata.json exists; the run must fall back to filename titles
	// instead of failing.
	if err := p.Run(context.Background(), win, true); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	reportOut, err := os.ReadFile(filepath.Join(cfg.CompilationDir, win.DateKey()+".md"))
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !strings.Contains(string(reportOut), "vid1") {
		t.Errorf("report missing filename-derived title:\n%s", reportOut)
	}
	if encoder.concatCalls != 1 {
		t.Errorf("concatCalls = %d, want 1", encoder.concatCalls)
	}
}

func TestRunEmptyWindowSkipsConcat(t *testing.T) {
	cfg := testConfig(t)
	win := testWindow()

	encoder := &fakeEncoder{}
	p := &Pipeline{
		Cfg:      cfg,
		Log:      zap.NewNop(),
		Prober:   &fakeProber{},
		Encoder:  encoder,
		Renderer: &report.Renderer{},
	}

	if err := p.Run(context.Background(), win, true); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if encoder.concatCalls != 0 {
		t.Errorf("concatCalls = %d, want 0", encoder.concatCalls)
	}

	reportOut, err := os.ReadFile(filepath.Join(cfg.CompilationDir, win.DateKey()+".md"))
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !strings.Contains(string(reportOut), "No videos in this period.") {
		t.Errorf("report missing empty-state message:\n%s", reportOut)
	}
}
