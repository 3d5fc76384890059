// Package window models the date range a compilation run covers.
package window

import "time"

// Window is an inclusive time range. Both bounds count as inside.
type Window struct {
	Start time.Time
	End   time.Time
}

// Last returns a window ending at end and reaching back the given span.
func Last(end time.Time, span time.Duration) Window {
	return Window{Start: end.Add(-span), End: end}
}

// Contains reports whether t falls within the window. Instants are
// normalized to UTC before comparison so mixed-zone timestamps from the
// bookmark and chat services compare correctly.
func (w Window) Contains(t time.Time) bool {
	t = t.UTC()
	return !t.Before(w.Start.UTC()) && !t.After(w.End.UTC())
}

// DateKey returns the formatted end date used to key the dated download
// directory and the compilation artifacts, e.g. "2025_03_09".
func (w Window) DateKey() string {
	return w.End.Format("2006_01_02")
}
