// Package matrix walks a room's message history backward in time.
package matrix

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"vidweek/retry"
)

const pageLimit = 100

// Event is a single timeline event from the room history.
type Event struct {
	OriginServerTS int64        `json:"origin_server_ts"`
	Content        EventContent `json:"content"`
}

// EventContent carries the message body URLs are extracted from.
type EventContent struct {
	Body string `json:"body"`
}

// Timestamp returns the event's origin server timestamp as a UTC instant.
func (e Event) Timestamp() time.Time {
	return time.UnixMilli(e.OriginServerTS).UTC()
}

// Page is one page of history, oldest event last (dir=b ordering).
type Page struct {
	Events []Event
	// End is the continuation cursor for the next (older) page. Empty
	// means the history is exhausted.
	End string
}

// Oldest returns the timestamp of the oldest event in the page and false
// when the page is empty.
func (p *Page) Oldest() (time.Time, bool) {
	if len(p.Events) == 0 {
		return time.Time{}, false
	}
	oldest := p.Events[0].Timestamp()
	for _, e := range p.Events[1:] {
		if t := e.Timestamp(); t.Before(oldest) {
			oldest = t
		}
	}
	return oldest, true
}

// messagesResponse is the wire shape of the room messages endpoint.
type messagesResponse struct {
	Chunk []Event `json:"chunk"`
	End   string  `json:"end"`
}

// Client talks to a Matrix homeserver's client API.
type Client struct {
	Homeserver  string
	RoomID      string
	AccessToken string

	HTTPClient *http.Client
	Retry      retry.Config
}

// NewClient creates a history client for the given room.
func NewClient(homeserver, roomID, accessToken string) *Client {
	return &Client{
		Homeserver:  homeserver,
		RoomID:      roomID,
		AccessToken: accessToken,
		HTTPClient:  &http.Client{Timeout: 30 * time.Second},
		Retry:       retry.DefaultConfig(),
	}
}

// Messages fetches one page of history walking backward from the given
// cursor. An empty cursor starts at the most recent event.
func (c *Client) Messages(ctx context.Context, from string) (*Page, error) {
	endpoint := fmt.Sprintf("%s/_matrix/client/v3/rooms/%s/messages",
		c.Homeserver, url.PathEscape(c.RoomID))

	query := url.Values{}
	query.Set("access_token", c.AccessToken)
	query.Set("dir", "b")
	query.Set("limit", fmt.Sprintf("%d", pageLimit))
	if from != "" {
		query.Set("from", from)
	}

	var page *Page
	err := retry.Do(ctx, c.Retry, nil, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+query.Encode(), nil)
		if err != nil {
			return err
		}

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			return fmt.Errorf("fetch messages: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read messages response: %w", err)
		}

		switch resp.StatusCode {
		case http.StatusOK:
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("fetch messages: %w", retry.ErrUnauthorized)
		case http.StatusNotFound:
			return fmt.Errorf("room %s: %w", c.RoomID, retry.ErrNotFound)
		default:
			return fmt.Errorf("fetch messages: unexpected status %d", resp.StatusCode)
		}

		var decoded messagesResponse
		if err := json.Unmarshal(body, &decoded); err != nil {
			return fmt.Errorf("parse messages response: %w", err)
		}

		page = &Page{Events: decoded.Chunk, End: decoded.End}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return page, nil
}
