// Package media wraps the external download, probe, and encode tools
// behind narrow interfaces with typed inputs and outputs, so the pipeline
// can run against fakes in tests.
package media

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Sentinel errors.
var (
	// ErrToolNotInstalled indicates the external binary was not found.
	ErrToolNotInstalled = errors.New("tool not installed")
	// ErrNoDuration indicates a probe produced no usable duration.
	ErrNoDuration = errors.New("duration unavailable")
)

// Metadata is the probe result for a candidate URL, fetched before any
// download happens.
type Metadata struct {
	// ID is the canonical video id assigned by the source platform.
	ID string `json:"id"`
	// Title is the video title.
	Title string `json:"title"`
	// URL is the original page URL the metadata was probed from.
	URL string `json:"url"`
	// Uploader is the channel or account display name.
	Uploader string `json:"uploader"`
	// Duration is the video length. Zero when the source did not report
	// one.
	Duration time.Duration `json:"-"`
	// DurationSeconds mirrors Duration for JSON persistence.
	DurationSeconds float64 `json:"duration_seconds"`
}

// Prober fetches metadata for remote URLs and durations of local files.
type Prober interface {
	// Probe fetches metadata for a URL without downloading it.
	Probe(ctx context.Context, url string) (*Metadata, error)
	// FileDuration returns the duration of a downloaded file.
	FileDuration(ctx context.Context, path string) (time.Duration, error)
}

// Downloader fetches a remote video into a directory, naming the file by
// its canonical video id.
type Downloader interface {
	Download(ctx context.Context, url, destDir string) error
}

// Profile is the uniform playback target all segments are normalized to.
type Profile struct {
	Width  int
	Height int
}

// Encoder re-encodes files to a profile and concatenates normalized
// segments.
type Encoder interface {
	// Normalize re-encodes src into dst at the profile's resolution.
	Normalize(ctx context.Context, src, dst string, profile Profile) error
	// Concat stream-copies the files named in listFile into dst. No
	// re-encode happens here, so segment durations are preserved exactly.
	Concat(ctx context.Context, listFile, dst string) error
}

// ToolError wraps a failed tool invocation with the captured stderr.
type ToolError struct {
	Tool   string
	Args   []string
	Stderr string
	Err    error
}

func (e *ToolError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s failed: %v: %s", e.Tool, e.Err, e.Stderr)
	}
	return fmt.Sprintf("%s failed: %v", e.Tool, e.Err)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}
