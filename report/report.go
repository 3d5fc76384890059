// Package report renders the markdown report that accompanies each
// compilation.
package report

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"text/template"
	"time"
)

//go:embed report.md.tmpl
var defaultTemplate string

// Video is one report row, in compilation order.
type Video struct {
	Index    int    `json:"index"`
	Title    string `json:"title"`
	URL      string `json:"url"`
	Uploader string `json:"uploader"`
	// Timestamp is the start offset into the compilation, HH:MM:SS.
	Timestamp        string  `json:"timestamp"`
	TimestampSeconds float64 `json:"timestamp_seconds"`
	// Duration is the clip length, MM:SS.
	Duration        string  `json:"duration"`
	DurationSeconds float64 `json:"duration_seconds"`
	VideoID         string  `json:"video_id"`
}

// Data is everything the report template sees.
type Data struct {
	StartDate     string
	EndDate       string
	Videos        []Video
	TotalCount    int
	TotalDuration string
}

// Renderer fills the report template. TemplatePath overrides the embedded
// default when set.
type Renderer struct {
	TemplatePath string
}

// Render produces the markdown report for the given data.
func (r *Renderer) Render(data Data) (string, error) {
	text := defaultTemplate
	if r.TemplatePath != "" {
		raw, err := os.ReadFile(r.TemplatePath)
		if err != nil {
			return "", fmt.Errorf("read report template: %w", err)
		}
		text = string(raw)
	}

	tmpl, err := template.New("report").Parse(text)
	if err != nil {
		return "", fmt.Errorf("parse report template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	return buf.String(), nil
}

// FormatOffset formats a start offset as HH:MM:SS.
func FormatOffset(d time.Duration) string {
	total := int(d.Seconds())
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}

// FormatClip formats a clip duration as MM:SS.
func FormatClip(d time.Duration) string {
	total := int(d.Seconds())
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
