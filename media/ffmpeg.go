package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// FFmpeg invokes ffmpeg and ffprobe for normalization, concatenation, and
// duration probing.
type FFmpeg struct {
	// FfmpegPath is the ffmpeg executable. Defaults to "ffmpeg".
	FfmpegPath string
	// FfprobePath is the ffprobe executable. Defaults to "ffprobe".
	FfprobePath string
	// Timeout bounds encode and concat invocations.
	Timeout time.Duration
	// ProbeTimeout bounds ffprobe invocations.
	ProbeTimeout time.Duration
}

// NewFFmpeg creates an ffmpeg wrapper with default settings.
func NewFFmpeg() *FFmpeg {
	return &FFmpeg{
		FfmpegPath:   "ffmpeg",
		FfprobePath:  "ffprobe",
		Timeout:      defaultToolTimeout,
		ProbeTimeout: defaultProbeTimeout,
	}
}

// FileDuration probes the duration of a local media file.
func (f *FFmpeg) FileDuration(ctx context.Context, path string) (time.Duration, error) {
	timeout := f.ProbeTimeout
	if timeout == 0 {
		timeout = defaultProbeTimeout
	}
	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}
	cmd := exec.CommandContext(cmdCtx, f.ffprobePath(), args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return 0, &ToolError{Tool: "ffprobe", Args: args, Stderr: stderr.String(), Err: err}
	}

	seconds, err := strconv.ParseFloat(strings.TrimSpace(stdout.String()), 64)
	if err != nil {
		return 0, fmt.Errorf("probe %s: %w", path, ErrNoDuration)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

// Normalize re-encodes src into dst at the profile resolution with the
// fixed H.264/AAC/30fps settings every compiled segment shares.
func (f *FFmpeg) Normalize(ctx context.Context, src, dst string, profile Profile) error {
	timeout := f.Timeout
	if timeout == 0 {
		timeout = defaultToolTimeout
	}
	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	filter := fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2",
		profile.Width, profile.Height, profile.Width, profile.Height)

	args := []string{
		"-i", src,
		"-vf", filter,
		"-c:v", "libx264",
		"-c:a", "aac",
		"-preset", "fast",
		"-crf", "23",
		"-r", "30",
		"-y",
		dst,
	}
	cmd := exec.CommandContext(cmdCtx, f.ffmpegPath(), args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return &ToolError{Tool: "ffmpeg", Args: args, Stderr: stderr.String(), Err: err}
	}
	return nil
}

// Concat joins the files named in listFile into dst with stream copy.
// Segments were already normalized to identical parameters, so no
// re-encode happens and the report's accumulated timeline stays exact.
func (f *FFmpeg) Concat(ctx context.Context, listFile, dst string) error {
	timeout := f.Timeout
	if timeout == 0 {
		timeout = defaultToolTimeout
	}
	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := []string{
		"-f", "concat",
		"-safe", "0",
		"-i", listFile,
		"-c", "copy",
		"-movflags", "+faststart",
		"-y",
		dst,
	}
	cmd := exec.CommandContext(cmdCtx, f.ffmpegPath(), args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return &ToolError{Tool: "ffmpeg", Args: args, Stderr: stderr.String(), Err: err}
	}
	return nil
}

// WriteConcatList writes an ffmpeg concat demuxer list file naming each
// path, escaping single quotes the way the demuxer expects. Entries are
// absolutized first: the demuxer resolves relative entries against the
// list file's directory, not the working directory the paths came from.
func WriteConcatList(path string, files []string) error {
	var b strings.Builder
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", f, err)
		}
		escaped := strings.ReplaceAll(abs, "'", `'\''`)
		fmt.Fprintf(&b, "file '%s'\n", escaped)
	}
	return os.WriteFile(path, []byte(b.String()), 0644)
}

func (f *FFmpeg) ffmpegPath() string {
	if f.FfmpegPath != "" {
		return f.FfmpegPath
	}
	return "ffmpeg"
}

func (f *FFmpeg) ffprobePath() string {
	if f.FfprobePath != "" {
		return f.FfprobePath
	}
	return "ffprobe"
}
