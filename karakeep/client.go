// Package karakeep fetches saved bookmarks from a Karakeep list.
package karakeep

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"vidweek/retry"
	"vidweek/window"
)

// Bookmark is a saved link record from the bookmarking service.
type Bookmark struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Title     string    `json:"title"`
	Content   Content   `json:"content"`
}

// Content carries the bookmarked URL.
type Content struct {
	URL string `json:"url"`
}

// listResponse is the wire shape of the bookmark list endpoint.
type listResponse struct {
	Bookmarks []Bookmark `json:"bookmarks"`
}

// Client talks to the Karakeep bookmark API.
type Client struct {
	BaseURL string
	ListID  string
	APIKey  string

	HTTPClient *http.Client
	Retry      retry.Config
}

// NewClient creates a bookmark client for the given list.
func NewClient(baseURL, listID, apiKey string) *Client {
	return &Client{
		BaseURL:    baseURL,
		ListID:     listID,
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		Retry:      retry.DefaultConfig(),
	}
}

// ListBookmarks fetches every bookmark in the list. The raw response body
// is returned alongside the decoded bookmarks so the caller can snapshot
// it verbatim.
func (c *Client) ListBookmarks(ctx context.Context) ([]Bookmark, []byte, error) {
	url := fmt.Sprintf("%s/api/v1/lists/%s/bookmarks", c.BaseURL, c.ListID)

	var raw []byte
	err := retry.Do(ctx, c.Retry, nil, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+c.APIKey)

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			return fmt.Errorf("fetch bookmarks: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read bookmarks response: %w", err)
		}

		switch resp.StatusCode {
		case http.StatusOK:
			raw = body
			return nil
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("fetch bookmarks: %w", retry.ErrUnauthorized)
		case http.StatusNotFound:
			return fmt.Errorf("list %s: %w", c.ListID, retry.ErrNotFound)
		default:
			return fmt.Errorf("fetch bookmarks: unexpected status %d", resp.StatusCode)
		}
	})
	if err != nil {
		return nil, nil, err
	}

	var decoded listResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, nil, fmt.Errorf("parse bookmarks response: %w", err)
	}

	return decoded.Bookmarks, raw, nil
}

// FilterWindow returns the bookmarks whose creation instant falls inside
// the window, both bounds inclusive.
func FilterWindow(bookmarks []Bookmark, w window.Window) []Bookmark {
	filtered := make([]Bookmark, 0, len(bookmarks))
	for _, b := range bookmarks {
		if w.Contains(b.CreatedAt) {
			filtered = append(filtered, b)
		}
	}
	return filtered
}
