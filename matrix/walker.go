package matrix

import (
	"context"
	"time"

	"vidweek/window"
)

// PageSource fetches one page of history from a continuation cursor.
// *Client satisfies this; tests substitute fakes.
type PageSource interface {
	Messages(ctx context.Context, from string) (*Page, error)
}

// StopFunc decides, given a fetched page, whether the walk should stop
// after it.
type StopFunc func(*Page) bool

// OlderThan returns a stop predicate that ends the walk once the oldest
// event in a page predates t. Anything older cannot be in the window.
func OlderThan(t time.Time) StopFunc {
	return func(p *Page) bool {
		oldest, ok := p.Oldest()
		if !ok {
			return true
		}
		return oldest.Before(t.UTC())
	}
}

// Walker is a lazy, restartable backward walk over room history. Each Next
// call fetches one page; the walk is done when the cursor is exhausted, a
// page comes back empty, or the stop predicate fires.
type Walker struct {
	source PageSource
	stop   StopFunc
	cursor string
	done   bool
}

// NewWalker starts a walk at the most recent event. stop may be nil, in
// which case only cursor exhaustion terminates the walk.
func NewWalker(source PageSource, stop StopFunc) *Walker {
	return &Walker{source: source, stop: stop}
}

// Next fetches the next (older) page. It returns nil once the walk is
// done.
func (w *Walker) Next(ctx context.Context) (*Page, error) {
	if w.done {
		return nil, nil
	}

	page, err := w.source.Messages(ctx, w.cursor)
	if err != nil {
		return nil, err
	}

	if len(page.Events) == 0 {
		w.done = true
		return page, nil
	}
	if page.End == "" {
		w.done = true
	}
	if w.stop != nil && w.stop(page) {
		w.done = true
	}

	w.cursor = page.End
	return page, nil
}

// Done reports whether the walk has terminated.
func (w *Walker) Done() bool {
	return w.done
}

// MessagesWithin walks history backward and collects the bodies of events
// whose timestamp falls inside the window, oldest-first.
func (c *Client) MessagesWithin(ctx context.Context, w window.Window) ([]string, error) {
	walker := NewWalker(c, OlderThan(w.Start))

	// dir=b yields newest first; collect then reverse so callers see
	// chronological order.
	var newestFirst []string
	for !walker.Done() {
		page, err := walker.Next(ctx)
		if err != nil {
			return nil, err
		}
		if page == nil {
			break
		}
		for _, e := range page.Events {
			if e.Content.Body == "" {
				continue
			}
			if w.Contains(e.Timestamp()) {
				newestFirst = append(newestFirst, e.Content.Body)
			}
		}
	}

	bodies := make([]string, 0, len(newestFirst))
	for i := len(newestFirst) - 1; i >= 0; i-- {
		bodies = append(bodies, newestFirst[i])
	}
	return bodies, nil
}
