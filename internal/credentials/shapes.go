package credentials

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Shape selects the JSON layout a token source is stored in.
type Shape int

const (
	// AuthorizedUser is the generic Google authorized-user layout: token or
	// access_token, refresh_token, token_uri, client_id, client_secret,
	// scopes and an optional expiry.
	AuthorizedUser Shape = iota
	// ExplicitFields requires token, token_uri, client_id, client_secret and
	// scopes; refresh_token is optional.
	ExplicitFields
	// DocumentFields requires access_token, refresh_token, client_id,
	// client_secret and a space separated scope. The token endpoint is fixed.
	DocumentFields
)

func (s Shape) String() string {
	switch s {
	case AuthorizedUser:
		return "authorized_user"
	case ExplicitFields:
		return "explicit_fields"
	case DocumentFields:
		return "document_fields"
	}
	return fmt.Sprintf("Shape(%d)", int(s))
}

func (s Shape) required() []string {
	switch s {
	case ExplicitFields:
		return []string{"token", "token_uri", "client_id", "client_secret", "scopes"}
	case DocumentFields:
		return []string{"access_token", "refresh_token", "client_id", "client_secret", "scope"}
	}
	return []string{"token_uri"}
}

// scopeList accepts either a JSON array or a space separated string.
type scopeList []string

func (s *scopeList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*s = list
		return nil
	}
	var joined string
	if err := json.Unmarshal(data, &joined); err != nil {
		return fmt.Errorf("scopes must be a string or a list of strings")
	}
	*s = strings.Fields(joined)
	return nil
}

type tokenFields struct {
	Token        string    `json:"token"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenURI     string    `json:"token_uri"`
	ClientID     string    `json:"client_id"`
	ClientSecret string    `json:"client_secret"`
	Scopes       scopeList `json:"scopes"`
	Scope        scopeList `json:"scope"`
	Expiry       string    `json:"expiry"`
}

func (s Shape) decode(data []byte) (*Bundle, error) {
	var present map[string]json.RawMessage
	if err := json.Unmarshal(data, &present); err != nil {
		return nil, fmt.Errorf("malformed token JSON: %w", err)
	}
	var missing []string
	for _, key := range s.required() {
		v, ok := present[key]
		if !ok || string(v) == "null" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}

	var f tokenFields
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("malformed token JSON: %w", err)
	}

	b := &Bundle{
		RefreshToken: f.RefreshToken,
		ClientID:     f.ClientID,
		ClientSecret: f.ClientSecret,
	}
	switch s {
	case AuthorizedUser:
		b.AccessToken = f.Token
		if b.AccessToken == "" {
			b.AccessToken = f.AccessToken
		}
		if b.AccessToken == "" {
			return nil, fmt.Errorf("missing required fields: token")
		}
		b.TokenEndpoint = f.TokenURI
		b.Scopes = f.Scopes
	case ExplicitFields:
		b.AccessToken = f.Token
		b.TokenEndpoint = f.TokenURI
		b.Scopes = f.Scopes
	case DocumentFields:
		b.AccessToken = f.AccessToken
		b.TokenEndpoint = GoogleTokenURL
		b.Scopes = f.Scope
	default:
		return nil, fmt.Errorf("unknown token shape %s", s)
	}

	if f.Expiry != "" {
		exp, err := parseExpiry(f.Expiry)
		if err != nil {
			return nil, err
		}
		b.Expiry = exp
	}
	return b, nil
}

// parseExpiry accepts RFC 3339 and the zone-less UTC form some token writers emit.
func parseExpiry(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02T15:04:05.999999999", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid expiry '%s': %w", value, err)
	}
	return t, nil
}

// Encode renders b in the layout decode reads for s.
func (s Shape) Encode(b *Bundle) ([]byte, error) {
	switch s {
	case AuthorizedUser, ExplicitFields:
		return MarshalAuthorizedUser(b)
	case DocumentFields:
		out := map[string]any{
			"access_token":  b.AccessToken,
			"refresh_token": b.RefreshToken,
			"client_id":     b.ClientID,
			"client_secret": b.ClientSecret,
			"scope":         strings.Join(b.Scopes, " "),
		}
		if !b.Expiry.IsZero() {
			out["expiry"] = b.Expiry.UTC().Format(time.RFC3339)
		}
		return json.Marshal(out)
	}
	return nil, fmt.Errorf("unknown token shape %s", s)
}
