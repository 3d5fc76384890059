// Package upload publishes the latest compilation to YouTube.
package upload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"vidweek/storage"
)

// ErrNoToken indicates no credential has been cached yet.
var ErrNoToken = errors.New("no cached token")

// uploadScope is the only permission the uploader needs.
const uploadScope = "https://www.googleapis.com/auth/youtube.upload"

// TokenCache abstracts credential persistence so the uploader never
// depends on the serialization format.
type TokenCache interface {
	Load() (*oauth2.Token, error)
	Persist(tok *oauth2.Token) error
}

// FileTokenCache stores the OAuth token as JSON at a fixed path.
type FileTokenCache struct {
	Path string
}

// Load reads the cached token. ErrNoToken is returned when the file does
// not exist.
func (c *FileTokenCache) Load() (*oauth2.Token, error) {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoToken
		}
		return nil, fmt.Errorf("load token: %w", err)
	}

	tok := &oauth2.Token{}
	if err := json.Unmarshal(data, tok); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	return tok, nil
}

// Persist writes the token atomically so a crash mid-write never corrupts
// the credential shared across runs.
func (c *FileTokenCache) Persist(tok *oauth2.Token) error {
	return storage.SaveJSON(c.Path, tok)
}

// Authenticator owns the token lifecycle: cached token used directly,
// expired token refreshed, absent token obtained interactively.
type Authenticator struct {
	OAuth *oauth2.Config
	Cache TokenCache
	// Prompt is called with the authorization URL the user must visit
	// during the interactive flow. Defaults to printing on stderr.
	Prompt func(url string)
}

// NewAuthenticator builds an authenticator for an installed-app OAuth
// client.
func NewAuthenticator(clientID, clientSecret string, cache TokenCache) *Authenticator {
	return &Authenticator{
		OAuth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{uploadScope},
		},
		Cache: cache,
	}
}

// Client returns an authenticated HTTP client, running the refresh or
// interactive flow as needed and persisting any new token.
func (a *Authenticator) Client(ctx context.Context) (*http.Client, error) {
	tok, err := a.Cache.Load()
	if err != nil && !errors.Is(err, ErrNoToken) {
		return nil, err
	}

	switch {
	case tok != nil && tok.Valid():
		// Cached token still good.
	case tok != nil && tok.RefreshToken != "":
		fresh, err := a.OAuth.TokenSource(ctx, tok).Token()
		if err != nil {
			return nil, fmt.Errorf("refresh token: %w", err)
		}
		tok = fresh
		if err := a.Cache.Persist(tok); err != nil {
			return nil, err
		}
	default:
		tok, err = a.authorize(ctx)
		if err != nil {
			return nil, err
		}
		if err := a.Cache.Persist(tok); err != nil {
			return nil, err
		}
	}

	return a.OAuth.Client(ctx, tok), nil
}

// authorize runs the interactive loopback flow: listen on an ephemeral
// local port, send the user to the consent page, and exchange the code
// that comes back on the redirect.
func (a *Authenticator) authorize(ctx context.Context) (*oauth2.Token, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("start redirect listener: %w", err)
	}
	defer listener.Close()

	cfg := *a.OAuth
	cfg.RedirectURL = fmt.Sprintf("http://%s/", listener.Addr().String())

	state := uuid.NewString()
	authURL := cfg.AuthCodeURL(state, oauth2.AccessTypeOffline)
	if a.Prompt != nil {
		a.Prompt(authURL)
	} else {
		fmt.Fprintf(os.Stderr, "Visit this URL to authorize the upload:\n%s\n", authURL)
	}

	codeCh := make(chan string, 1)
	server := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		}
		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			return
		}
		fmt.Fprintln(w, "Authorization received. You can close this tab.")
		codeCh <- code
	})}
	go server.Serve(listener)
	defer server.Close()

	var code string
	select {
	case code = <-codeCh:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	return tok, nil
}
