package main

import (
	"testing"
	"time"
)

func TestParseWindowDefaultsToTrailingWeek(t *testing.T) {
	win, err := parseWindow("", "2025-03-09T00:00:00Z")
	if err != nil {
		t.Fatalf("parseWindow() error = %v", err)
	}

	wantEnd := time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)
	if !win.End.Equal(wantEnd) {
		t.Errorf("End = %v, want %v", win.End, wantEnd)
	}
	if !win.Start.Equal(wantEnd.Add(-7 * 24 * time.Hour)) {
		t.Errorf("Start = %v, want 7 days before end", win.Start)
	}
}

func TestParseWindowExplicitDates(t *testing.T) {
	win, err := parseWindow("2025-03-01", "2025-03-09")
	if err != nil {
		t.Fatalf("parseWindow() error = %v", err)
	}
	if !win.Start.Equal(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Start = %v", win.Start)
	}
	if !win.End.Equal(time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("End = %v", win.End)
	}
}

func TestParseWindowRejectsGarbage(t *testing.T) {
	if _, err := parseWindow("last tuesday", ""); err == nil {
		t.Error("parseWindow() error = nil, want parse error")
	}
	if _, err := parseWindow("", "2025/03/09"); err == nil {
		t.Error("parseWindow() error = nil, want parse error")
	}
}

func TestParseISODateLayouts(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2025-03-09", time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)},
		{"2025-03-09T12:30:00", time.Date(2025, 3, 9, 12, 30, 0, 0, time.UTC)},
		{"2025-03-09T12:30:00Z", time.Date(2025, 3, 9, 12, 30, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		got, err := parseISODate(tt.in)
		if err != nil {
			t.Errorf("parseISODate(%q) error = %v", tt.in, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("parseISODate(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
