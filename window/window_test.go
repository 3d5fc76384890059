package window

import (
	"testing"
	"time"
)

func TestContains(t *testing.T) {
	start := time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)
	w := Window{Start: start, End: end}

	tests := []struct {
		name string
		t    time.Time
		want bool
	}{
		{"before start", start.Add(-time.Second), false},
		{"exactly start", start, true},
		{"inside", start.Add(24 * time.Hour), true},
		{"exactly end", end, true},
		{"after end", end.Add(time.Second), false},
		{
			// +02:00 local instant equal to the UTC start.
			name: "start in another zone",
			t:    time.Date(2025, 3, 2, 2, 0, 0, 0, time.FixedZone("EET", 2*3600)),
			want: true,
		},
		{
			name: "out of window despite local clock reading inside",
			t:    time.Date(2025, 3, 9, 1, 0, 0, 0, time.FixedZone("EET", 2*3600)),
			want: true, // 23:00 UTC on 2025-03-08
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := w.Contains(tt.t); got != tt.want {
				t.Errorf("Contains(%v) = %v, want %v", tt.t, got, tt.want)
			}
		})
	}
}

func TestDateKey(t *testing.T) {
	w := Window{End: time.Date(2025, 3, 9, 18, 30, 0, 0, time.UTC)}
	if got := w.DateKey(); got != "2025_03_09" {
		t.Errorf("DateKey() = %q, want %q", got, "2025_03_09")
	}
}

func TestLast(t *testing.T) {
	end := time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)
	w := Last(end, 7*24*time.Hour)
	if want := time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC); !w.Start.Equal(want) {
		t.Errorf("Last() start = %v, want %v", w.Start, want)
	}
}
