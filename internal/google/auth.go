package google

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/docs/v1"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/gmail/v1"

	"weekly/internal/config"
	"weekly/internal/credentials"
)

const oobRedirectURL = "urn:ietf:wg:oauth:2.0:oob"

// Grant describes the consent needed for one token key.
type Grant struct {
	Key    string
	Shape  credentials.Shape
	Scopes []string
}

var grants = map[string]Grant{
	"calendar": {Key: config.CalendarTokenKey, Shape: credentials.AuthorizedUser, Scopes: []string{calendar.CalendarReadonlyScope}},
	"gmail":    {Key: config.GmailTokenKey, Shape: credentials.ExplicitFields, Scopes: []string{gmail.GmailReadonlyScope}},
	"docs":     {Key: config.DocTokenKey, Shape: credentials.DocumentFields, Scopes: []string{docs.DocumentsScope, drive.DriveFileScope}},
}

// GrantFor returns the consent settings of a service: calendar, gmail or docs.
func GrantFor(service string) (Grant, error) {
	g, ok := grants[service]
	if !ok {
		return Grant{}, fmt.Errorf("unknown service '%s', expected one of %v", service, GrantServices())
	}
	return g, nil
}

// GrantServices lists the services GrantFor accepts.
func GrantServices() []string {
	out := make([]string, 0, len(grants))
	for name := range grants {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// OAuthConfig builds the desktop consent config for g. Client credentials
// come from clientID/clientSecret when both are set, else from credentialsFile.
func OAuthConfig(g Grant, clientID, clientSecret, credentialsFile string) (*oauth2.Config, error) {
	if clientID != "" && clientSecret != "" {
		return &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  oobRedirectURL,
			Scopes:       g.Scopes,
			Endpoint:     google.Endpoint,
		}, nil
	}

	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s not found. Please provide GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET env vars or pass --credentials", credentialsFile)
		}
		return nil, fmt.Errorf("unable to read client secret file: %w", err)
	}
	cfg, err := google.ConfigFromJSON(b, g.Scopes...)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file to config: %w", err)
	}
	cfg.RedirectURL = oobRedirectURL
	return cfg, nil
}

// ExchangeCode trades an authorization code for a token bundle and renders
// it in the layout stored under g.Key.
func ExchangeCode(ctx context.Context, g Grant, cfg *oauth2.Config, code string) ([]byte, error) {
	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve token from web: %w", err)
	}
	return g.Shape.Encode(credentials.FromOAuth(cfg, tok))
}
