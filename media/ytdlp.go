package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
	"time"
)

const (
	defaultYtdlpPath    = "yt-dlp"
	defaultProbeTimeout = 1 * time.Minute
	defaultToolTimeout  = 15 * time.Minute
)

// Ytdlp invokes yt-dlp as a subprocess for both metadata probing and
// downloading.
type Ytdlp struct {
	// Path is the path to the yt-dlp executable. Defaults to "yt-dlp".
	Path string
	// CookiesBrowser is passed to --cookies-from-browser. Empty disables
	// browser cookies.
	CookiesBrowser string
	// ProbeTimeout bounds metadata probes.
	ProbeTimeout time.Duration
	// DownloadTimeout bounds downloads.
	DownloadTimeout time.Duration
}

// NewYtdlp creates a yt-dlp wrapper with default settings.
func NewYtdlp() *Ytdlp {
	return &Ytdlp{
		Path:            defaultYtdlpPath,
		CookiesBrowser:  "firefox",
		ProbeTimeout:    defaultProbeTimeout,
		DownloadTimeout: defaultToolTimeout,
	}
}

// CheckInstalled verifies that yt-dlp is available.
func (y *Ytdlp) CheckInstalled(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, y.path(), "--version")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("yt-dlp: %w", ErrToolNotInstalled)
	}
	return nil
}

// Probe fetches metadata for a URL via yt-dlp -J without downloading.
func (y *Ytdlp) Probe(ctx context.Context, url string) (*Metadata, error) {
	timeout := y.ProbeTimeout
	if timeout == 0 {
		timeout = defaultProbeTimeout
	}
	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := []string{"-J", "--no-warnings"}
	if y.CookiesBrowser != "" {
		args = append(args, "--cookies-from-browser", y.CookiesBrowser)
	}
	args = append(args, url)

	cmd := exec.CommandContext(cmdCtx, y.path(), args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, &ToolError{Tool: "yt-dlp", Args: args, Stderr: stderr.String(), Err: err}
	}

	return parseProbeOutput(stdout.Bytes(), url)
}

// parseProbeOutput extracts the fields the pipeline needs from yt-dlp's
// JSON dump.
func parseProbeOutput(data []byte, url string) (*Metadata, error) {
	var raw struct {
		ID       string  `json:"id"`
		Title    string  `json:"title"`
		Uploader string  `json:"uploader"`
		Duration float64 `json:"duration"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse probe output: %w", err)
	}
	if raw.ID == "" {
		return nil, fmt.Errorf("parse probe output: missing video id")
	}

	meta := &Metadata{
		ID:              raw.ID,
		Title:           raw.Title,
		URL:             url,
		Uploader:        raw.Uploader,
		DurationSeconds: raw.Duration,
	}
	if raw.Duration > 0 {
		meta.Duration = time.Duration(raw.Duration * float64(time.Second))
	}
	return meta, nil
}

// Download fetches the video at url into destDir, named by its canonical
// video id.
func (y *Ytdlp) Download(ctx context.Context, url, destDir string) error {
	timeout := y.DownloadTimeout
	if timeout == 0 {
		timeout = defaultToolTimeout
	}
	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := []string{
		"-o", filepath.Join(destDir, "%(id)s.%(ext)s"),
		"--no-warnings",
	}
	if y.CookiesBrowser != "" {
		args = append(args, "--cookies-from-browser", y.CookiesBrowser)
	}
	args = append(args, url)

	cmd := exec.CommandContext(cmdCtx, y.path(), args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return &ToolError{Tool: "yt-dlp", Args: args, Stderr: stderr.String(), Err: err}
	}
	return nil
}

func (y *Ytdlp) path() string {
	if y.Path != "" {
		return y.Path
	}
	return defaultYtdlpPath
}
