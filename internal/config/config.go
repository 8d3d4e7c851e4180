package config

import (
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

// Configuration keys. The token key names are shared with existing deployments
// and must not change.
const (
	CalendarTokenKey = "GOOGLE_TKN"
	GmailTokenKey    = "GMAIL_TKN"
	DocTokenKey      = "GOOGLE_TKN_DOC"
	HubSpotTokenKey  = "HUBSPOT_ACCESS_TKN"
	SlackTokenKey    = "SLACK_BOT_TOKEN"

	TimezoneKey        = "PRIMARY_TIMEZONE"
	HTTPTimeoutKey     = "HTTP_TIMEOUT"
	LogLevelKey        = "LOG_LEVEL"
	DigestRecipientKey = "DIGEST_RECIPIENT"

	CalDAVURLKey      = "CALDAV_URL"
	CalDAVUsernameKey = "CALDAV_USERNAME"
	CalDAVPasswordKey = "CALDAV_PASSWORD"
	CalDAVCalendarKey = "CALDAV_CALENDAR"
)

const (
	DefaultTimezone    = "Asia/Kolkata"
	DefaultHTTPTimeout = 10 * time.Second
)

// Source is an opaque key/value lookup. Adapters receive one instead of
// reading the process environment directly.
type Source interface {
	Lookup(key string) (string, bool)
}

// Env reads the process environment.
type Env struct{}

// NewEnv loads a .env file when present and returns the environment source.
func NewEnv() Env {
	// A missing .env file is not an error.
	_ = godotenv.Load()
	return Env{}
}

func (Env) Lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

// Map is an in-memory Source.
type Map map[string]string

func (m Map) Lookup(key string) (string, bool) {
	v, ok := m[key]
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

// FromFile reads a dotenv formatted file into a Map without touching the
// process environment.
func FromFile(path string) (Map, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Map(values), nil
}

// Get returns the value for key or def when absent.
func Get(src Source, key, def string) string {
	if v, ok := src.Lookup(key); ok {
		return v
	}
	return def
}

// Location resolves the fixed local zone used for presentation.
func Location(src Source) (*time.Location, error) {
	tz := Get(src, TimezoneKey, DefaultTimezone)
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone '%s': %w", tz, err)
	}
	return loc, nil
}

// HTTPTimeout returns the per-call bound for outbound requests.
func HTTPTimeout(src Source) (time.Duration, error) {
	v, ok := src.Lookup(HTTPTimeoutKey)
	if !ok {
		return DefaultHTTPTimeout, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s '%s': %w", HTTPTimeoutKey, v, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s '%s': must be positive", HTTPTimeoutKey, v)
	}
	return d, nil
}
