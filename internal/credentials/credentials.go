package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"weekly/internal/config"
)

// GoogleTokenURL is the token endpoint assumed when a bundle shape carries none.
var GoogleTokenURL = google.Endpoint.TokenURL

const msgNoToken = "no token found"

// AuthError reports missing or malformed credentials and failed refreshes.
type AuthError struct {
	Key string
	Msg string
	Err error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (%s): %v", e.Msg, e.Key, e.Err)
	}
	return fmt.Sprintf("%s (%s)", e.Msg, e.Key)
}

func (e *AuthError) Unwrap() error { return e.Err }

// Bundle holds the fields needed to authenticate one adapter's calls.
type Bundle struct {
	AccessToken   string
	RefreshToken  string
	TokenEndpoint string
	ClientID      string
	ClientSecret  string
	Scopes        []string
	Expiry        time.Time
}

// Expired reports whether the bundle carries an expiry that has passed.
func (b *Bundle) Expired(now time.Time) bool {
	return !b.Expiry.IsZero() && !now.Before(b.Expiry)
}

// Token returns the bundle as an oauth2 token.
func (b *Bundle) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  b.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: b.RefreshToken,
		Expiry:       b.Expiry,
	}
}

func (b *Bundle) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     b.ClientID,
		ClientSecret: b.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: b.TokenEndpoint},
		Scopes:       b.Scopes,
	}
}

// Refresh exchanges the refresh token for a new access token. The result is
// kept on the bundle only.
func (b *Bundle) Refresh(ctx context.Context, client *http.Client) error {
	if b.RefreshToken == "" {
		return fmt.Errorf("no refresh token")
	}
	if client != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, client)
	}
	tok, err := b.oauthConfig().TokenSource(ctx, &oauth2.Token{RefreshToken: b.RefreshToken}).Token()
	if err != nil {
		return fmt.Errorf("failed to refresh access token: %w", err)
	}
	b.AccessToken = tok.AccessToken
	b.Expiry = tok.Expiry
	if tok.RefreshToken != "" {
		b.RefreshToken = tok.RefreshToken
	}
	return nil
}

// Client returns an HTTP client that sends the bundle's access token as is.
// Every request is bounded by timeout.
func (b *Bundle) Client(ctx context.Context, timeout time.Duration) *http.Client {
	return BearerClient(ctx, b.Token(), timeout)
}

// BearerClient wraps a fixed token in an authenticated client.
func BearerClient(ctx context.Context, tok *oauth2.Token, timeout time.Duration) *http.Client {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Timeout: timeout})
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(tok))
	client.Timeout = timeout
	return client
}

// Resolver builds token bundles from a configuration source.
type Resolver struct {
	Source  config.Source
	Timeout time.Duration
	Logger  *slog.Logger
	// Now is overridable for tests.
	Now func() time.Time
}

// NewResolver creates a Resolver reading from src.
func NewResolver(logger *slog.Logger, src config.Source, timeout time.Duration) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = config.DefaultHTTPTimeout
	}
	return &Resolver{Source: src, Timeout: timeout, Logger: logger, Now: time.Now}
}

// Resolve loads the bundle stored under key in the given shape and refreshes
// it when it is expired and a refresh token is present.
func (r *Resolver) Resolve(ctx context.Context, key string, shape Shape) (*Bundle, error) {
	raw, ok := r.Source.Lookup(key)
	if !ok {
		return nil, &AuthError{Key: key, Msg: msgNoToken}
	}
	bundle, err := shape.decode([]byte(raw))
	if err != nil {
		return nil, &AuthError{Key: key, Msg: "invalid token", Err: err}
	}
	if bundle.Expired(r.now()) && bundle.RefreshToken != "" {
		r.Logger.Debug("Refreshing expired access token", "key", key, "endpoint", bundle.TokenEndpoint)
		if err := bundle.Refresh(ctx, &http.Client{Timeout: r.Timeout}); err != nil {
			return nil, &AuthError{Key: key, Msg: "token refresh failed", Err: err}
		}
	}
	return bundle, nil
}

// Static returns a bearer token stored verbatim under key. There is no
// refresh flow for static tokens.
func (r *Resolver) Static(key string) (*oauth2.Token, error) {
	raw, ok := r.Source.Lookup(key)
	if !ok {
		return nil, &AuthError{Key: key, Msg: msgNoToken}
	}
	return &oauth2.Token{AccessToken: strings.TrimSpace(raw), TokenType: "Bearer"}, nil
}

func (r *Resolver) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// IsMissing reports whether err is an AuthError for an absent configuration value.
func IsMissing(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae) && ae.Msg == msgNoToken && ae.Err == nil
}

// IsAuthError reports whether err is or wraps an *AuthError.
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// FromOAuth builds a bundle from an OAuth client config and a token obtained
// through the consent flow.
func FromOAuth(cfg *oauth2.Config, tok *oauth2.Token) *Bundle {
	return &Bundle{
		AccessToken:   tok.AccessToken,
		RefreshToken:  tok.RefreshToken,
		TokenEndpoint: cfg.Endpoint.TokenURL,
		ClientID:      cfg.ClientID,
		ClientSecret:  cfg.ClientSecret,
		Scopes:        cfg.Scopes,
		Expiry:        tok.Expiry,
	}
}

// MarshalAuthorizedUser renders b in the authorized-user shape read by
// Resolve with AuthorizedUser.
func MarshalAuthorizedUser(b *Bundle) ([]byte, error) {
	out := map[string]any{
		"token":         b.AccessToken,
		"refresh_token": b.RefreshToken,
		"token_uri":     b.TokenEndpoint,
		"client_id":     b.ClientID,
		"client_secret": b.ClientSecret,
		"scopes":        b.Scopes,
	}
	if !b.Expiry.IsZero() {
		out["expiry"] = b.Expiry.UTC().Format(time.RFC3339)
	}
	return json.Marshal(out)
}
