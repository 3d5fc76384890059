package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"vidweek/media"
	"vidweek/report"
)

// buildTimeline walks the normalized files in their stable order, probes
// each duration, and assigns every clip a start offset equal to the
// running total. Concatenation stream-copies the segments, so the offsets
// are exact playback positions in the compilation.
func (p *Pipeline) buildTimeline(ctx context.Context, log *zap.Logger, normalized []string, meta map[string]*media.Metadata) ([]report.Video, time.Duration, error) {
	var entries []report.Video
	var running time.Duration

	for _, path := range normalized {
		id := stem(path)

		d, err := p.Prober.FileDuration(ctx, path)
		if err != nil {
			log.Warn("duration probe failed, excluding from report", zap.String("video_id", id), zap.Error(err))
			continue
		}

		entry := report.Video{
			Index:            len(entries) + 1,
			Title:            id,
			Timestamp:        report.FormatOffset(running),
			TimestampSeconds: running.Seconds(),
			Duration:         report.FormatClip(d),
			DurationSeconds:  d.Seconds(),
			VideoID:          id,
		}
		if m, ok := meta[id]; ok {
			entry.Title = m.Title
			entry.URL = m.URL
			entry.Uploader = m.Uploader
		}

		entries = append(entries, entry)
		running += d
	}

	return entries, running, nil
}
