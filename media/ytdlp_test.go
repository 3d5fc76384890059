package media

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCheckInstalledMissingBinary(t *testing.T) {
	y := NewYtdlp()
	y.Path = "/nonexistent/yt-dlp"
	if err := y.CheckInstalled(context.Background()); !errors.Is(err, ErrToolNotInstalled) {
		t.Errorf("CheckInstalled() error = %v, want ErrToolNotInstalled", err)
	}
}

func TestCheckInstalledPresentBinary(t *testing.T) {
	y := NewYtdlp()
	y.Path = "true" // exits 0 regardless of --version
	if err := y.CheckInstalled(context.Background()); err != nil {
		t.Errorf("CheckInstalled() error = %v", err)
	}
}

const sampleProbeOutput = `{
  "id": "dQw4w9WgXcQ",
  "title": "Test Clip",
  "uploader": "Test Channel",
  "duration": 145.5,
  "view_count": 12345
}`

func TestParseProbeOutput(t *testing.T) {
	meta, err := parseProbeOutput([]byte(sampleProbeOutput), "https://youtu.be/dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("parseProbeOutput() error = %v", err)
	}

	if meta.ID != "dQw4w9WgXcQ" {
		t.Errorf("meta.ID = %q, want %q", meta.ID, "dQw4w9WgXcQ")
	}
	if meta.Title != "Test Clip" {
		t.Errorf("meta.Title = %q, want %q", meta.Title, "Test Clip")
	}
	if meta.Uploader != "Test Channel" {
		t.Errorf("meta.Uploader = %q, want %q", meta.Uploader, "Test Channel")
	}
	if meta.URL != "https://youtu.be/dQw4w9WgXcQ" {
		t.Errorf("meta.URL = %q, want %q", meta.URL, "https://youtu.be/dQw4w9WgXcQ")
	}
	if want := time.Duration(145.5 * float64(time.Second)); meta.Duration != want {
		t.Errorf("meta.Duration = %v, want %v", meta.Duration, want)
	}
	if meta.DurationSeconds != 145.5 {
		t.Errorf("meta.DurationSeconds = %v, want 145.5", meta.DurationSeconds)
	}
}

func TestParseProbeOutputMissingID(t *testing.T) {
	if _, err := parseProbeOutput([]byte(`{"title": "no id"}`), "https://example.com"); err == nil {
		t.Error("parseProbeOutput() error = nil, want missing id error")
	}
}

func TestParseProbeOutputInvalidJSON(t *testing.T) {
	if _, err := parseProbeOutput([]byte("not json"), "https://example.com"); err == nil {
		t.Error("parseProbeOutput() error = nil, want parse error")
	}
}

func TestParseProbeOutputNoDuration(t *testing.T) {
	meta, err := parseProbeOutput([]byte(`{"id": "abc", "title": "live"}`), "https://example.com")
	if err != nil {
		t.Fatalf("parseProbeOutput() error = %v", err)
	}
	if meta.Duration != 0 {
		t.Errorf("meta.Duration = %v, want 0", meta.Duration)
	}
}
