// Package pipeline sequences a compilation run: fetch bookmarked and
// chatted links, download the videos, normalize them, concatenate, and
// render the report.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"vidweek/config"
	"vidweek/karakeep"
	"vidweek/links"
	"vidweek/media"
	"vidweek/report"
	"vidweek/storage"
	"vidweek/window"
)

// minNormalizedSize is the smallest byte size a normalized file can have
// and still count as a valid encode. Anything at or below this is treated
// as corrupt and regenerated.
const minNormalizedSize = 1024

// BookmarkSource lists bookmarks along with the raw response body.
type BookmarkSource interface {
	ListBookmarks(ctx context.Context) ([]karakeep.Bookmark, []byte, error)
}

// ChatSource collects message bodies posted within a window.
type ChatSource interface {
	MessagesWithin(ctx context.Context, w window.Window) ([]string, error)
}

// Pipeline holds the dependencies a run threads through its stages.
type Pipeline struct {
	Cfg        *config.Config
	Log        *zap.Logger
	Bookmarks  BookmarkSource
	Chat       ChatSource
	Prober     media.Prober
	Downloader media.Downloader
	Encoder    media.Encoder
	Renderer   *report.Renderer
}

// SourceURL records where a candidate URL came from.
type SourceURL struct {
	URL    string `json:"url"`
	Origin string `json:"origin"` // "bookmark" or "chat"
}

// sourcesSnapshot is the persisted record of a run's candidate URLs.
type sourcesSnapshot struct {
	RunID string      `json:"run_id"`
	Start time.Time   `json:"start"`
	End   time.Time   `json:"end"`
	URLs  []SourceURL `json:"urls"`
}

// Run executes the pipeline for the given window. With mergeOnly set,
// fetching and downloading are skipped and the run operates on files
// already present in the dated directory.
func (p *Pipeline) Run(ctx context.Context, win window.Window, mergeOnly bool) error {
	runID := uuid.NewString()
	log := p.Log.With(zap.String("run_id", runID), zap.String("date_key", win.DateKey()))

	datedDir := filepath.Join(p.Cfg.DownloadDir, win.DateKey())
	if err := os.MkdirAll(datedDir, 0755); err != nil {
		return fmt.Errorf("create download dir: %w", err)
	}

	meta := map[string]*media.Metadata{}

	if mergeOnly {
		log.Info("merge-only run, skipping fetch and download")
		if err := storage.LoadJSON(metadataPath(datedDir), &meta); err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				return err
			}
			// No metadata from a prior run: titles fall back to
			// filenames.
			log.Warn("no metadata snapshot, using filenames as titles")
		}
	} else {
		var err error
		meta, err = p.fetchAndDownload(ctx, log, win, runID, datedDir)
		if err != nil {
			return err
		}
	}

	kept := p.sweepOversized(ctx, log, datedDir)

	normalizedDir := filepath.Join(datedDir, "normalized")
	normalized := p.normalizeAll(ctx, log, kept, normalizedDir)

	entries, total, err := p.buildTimeline(ctx, log, normalized, meta)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(p.Cfg.CompilationDir, 0755); err != nil {
		return fmt.Errorf("create compilation dir: %w", err)
	}

	if len(normalized) > 0 {
		listFile := filepath.Join(datedDir, "filelist.txt")
		if err := media.WriteConcatList(listFile, normalized); err != nil {
			return fmt.Errorf("write concat list: %w", err)
		}

		outPath := filepath.Join(p.Cfg.CompilationDir, win.DateKey()+".mp4")
		log.Info("concatenating", zap.Int("segments", len(normalized)), zap.String("out", outPath))
		if err := p.Encoder.Concat(ctx, listFile, outPath); err != nil {
			return fmt.Errorf("concat: %w", err)
		}
	} else {
		log.Warn("no normalized videos, skipping concatenation")
	}

	data := report.Data{
		StartDate:     win.Start.Format(time.RFC3339),
		EndDate:       win.End.Format(time.RFC3339),
		Videos:        entries,
		TotalCount:    len(entries),
		TotalDuration: report.FormatOffset(total),
	}
	rendered, err := p.Renderer.Render(data)
	if err != nil {
		return err
	}

	reportPath := filepath.Join(p.Cfg.CompilationDir, win.DateKey()+".md")
	if err := storage.SaveRaw(reportPath, []byte(rendered)); err != nil {
		return err
	}

	log.Info("run complete",
		zap.Int("videos", len(entries)),
		zap.String("total", data.TotalDuration),
		zap.String("report", reportPath))
	return nil
}

// fetchAndDownload runs the fetch, extraction, and duration-gated download
// stages, returning the per-video metadata keyed by video id.
func (p *Pipeline) fetchAndDownload(ctx context.Context, log *zap.Logger, win window.Window, runID, datedDir string) (map[string]*media.Metadata, error) {
	bookmarks, raw, err := p.Bookmarks.ListBookmarks(ctx)
	if err != nil {
		return nil, err
	}
	if err := storage.SaveRaw(filepath.Join(datedDir, "bookmarks.json"), raw); err != nil {
		return nil, err
	}

	filtered := karakeep.FilterWindow(bookmarks, win)
	log.Info("fetched bookmarks", zap.Int("total", len(bookmarks)), zap.Int("in_window", len(filtered)))

	bodies, err := p.Chat.MessagesWithin(ctx, win)
	if err != nil {
		return nil, err
	}
	log.Info("fetched chat messages", zap.Int("in_window", len(bodies)))

	// Bookmarks feed the set before chat so report order follows
	// bookmark chronology first.
	set := links.NewSet()
	var sources []SourceURL
	for _, b := range filtered {
		for _, u := range links.Extract(b.Content.URL + " " + b.Title) {
			if set.Add(u) {
				sources = append(sources, SourceURL{URL: u, Origin: "bookmark"})
			}
		}
	}
	for _, body := range bodies {
		for _, u := range links.Extract(body) {
			if set.Add(u) {
				sources = append(sources, SourceURL{URL: u, Origin: "chat"})
			}
		}
	}
	log.Info("extracted urls", zap.Int("unique", set.Len()))

	snapshot := sourcesSnapshot{RunID: runID, Start: win.Start, End: win.End, URLs: sources}
	if err := storage.SaveJSON(filepath.Join(datedDir, "sources.json"), snapshot); err != nil {
		return nil, err
	}

	meta := map[string]*media.Metadata{}
	for _, url := range set.URLs() {
		m, err := p.Prober.Probe(ctx, url)
		if err != nil {
			log.Warn("probe failed, skipping", zap.String("url", url), zap.Error(err))
			continue
		}
		if m.Duration == 0 {
			log.Warn("duration unknown, skipping", zap.String("url", url))
			continue
		}
		if m.Duration > p.Cfg.MaxClipDuration {
			log.Info("over duration ceiling, skipping",
				zap.String("url", url),
				zap.Duration("duration", m.Duration),
				zap.Duration("ceiling", p.Cfg.MaxClipDuration))
			continue
		}

		meta[m.ID] = m

		log.Info("downloading", zap.String("url", url), zap.String("video_id", m.ID))
		if err := p.Downloader.Download(ctx, url, datedDir); err != nil {
			log.Warn("download failed, skipping", zap.String("url", url), zap.Error(err))
			continue
		}
	}

	if err := storage.SaveJSON(metadataPath(datedDir), meta); err != nil {
		return nil, err
	}

	return meta, nil
}

// sweepOversized probes every downloaded file and deletes any over the
// ceiling. This backstops the pre-download gate: a merge-only run never
// probed, and a remote probe can disagree with the delivered file. Files
// whose duration cannot be determined are kept.
func (p *Pipeline) sweepOversized(ctx context.Context, log *zap.Logger, datedDir string) []string {
	files := listVideoFiles(datedDir)

	kept := make([]string, 0, len(files))
	for _, f := range files {
		d, err := p.Prober.FileDuration(ctx, f)
		if err != nil {
			log.Warn("duration probe failed, keeping file", zap.String("file", f), zap.Error(err))
			kept = append(kept, f)
			continue
		}
		if d > p.Cfg.MaxClipDuration {
			log.Info("deleting oversized download", zap.String("file", f), zap.Duration("duration", d))
			if err := os.Remove(f); err != nil {
				log.Warn("delete failed", zap.String("file", f), zap.Error(err))
			}
			continue
		}
		kept = append(kept, f)
	}
	return kept
}

// normalizeAll re-encodes each kept file to the target profile. A target
// that already exists and exceeds minNormalizedSize is left alone, which
// is what lets a merge-only rerun resume without redoing encodes. An
// undersized target is a corrupt partial encode: it is deleted and redone.
func (p *Pipeline) normalizeAll(ctx context.Context, log *zap.Logger, files []string, normalizedDir string) []string {
	if len(files) == 0 {
		return nil
	}
	if err := os.MkdirAll(normalizedDir, 0755); err != nil {
		log.Error("create normalized dir failed", zap.Error(err))
		return nil
	}

	profile := media.Profile{Width: p.Cfg.Width, Height: p.Cfg.Height}

	var normalized []string
	for _, src := range files {
		id := stem(src)
		dst := filepath.Join(normalizedDir, id+".mp4")

		if info, err := os.Stat(dst); err == nil {
			if info.Size() > minNormalizedSize {
				log.Debug("already normalized", zap.String("video_id", id))
				normalized = append(normalized, dst)
				continue
			}
			log.Warn("undersized normalized file, re-encoding", zap.String("video_id", id), zap.Int64("size", info.Size()))
			if err := os.Remove(dst); err != nil {
				log.Warn("delete failed", zap.String("file", dst), zap.Error(err))
				continue
			}
		}

		log.Info("normalizing", zap.String("video_id", id))
		if err := p.Encoder.Normalize(ctx, src, dst, profile); err != nil {
			log.Warn("encode failed, excluding from compilation", zap.String("video_id", id), zap.Error(err))
			continue
		}
		normalized = append(normalized, dst)
	}

	sort.Strings(normalized)
	return normalized
}

// metadataPath is where the video metadata snapshot lives in a dated dir.
func metadataPath(datedDir string) string {
	return filepath.Join(datedDir, "metadata.json")
}

// listVideoFiles returns the media files in the dated directory in
// lexicographic order, skipping snapshots and the normalized subdirectory.
func listVideoFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".json", ".txt", ".md":
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files
}

// stem returns the filename without directory or extension, which by the
// download output template is the canonical video id.
func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
