package timeutil

import (
	"fmt"
	"strings"
	"time"
)

// ISO is the presentation layout for local timestamps.
const ISO = "2006-01-02T15:04:05.999999-07:00"

// DateLayout is the all-day event layout.
const DateLayout = "2006-01-02"

// Layouts accepted with an explicit offset.
var zonedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04Z07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04Z07:00",
}

// Layouts accepted without an offset; interpreted in the local zone.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04",
	DateLayout,
}

// Normalizer converts between a fixed local zone and UTC.
type Normalizer struct {
	Loc *time.Location
}

// New returns a Normalizer for loc. A nil loc means UTC.
func New(loc *time.Location) *Normalizer {
	if loc == nil {
		loc = time.UTC
	}
	return &Normalizer{Loc: loc}
}

// ParseLocal parses an ISO-8601 string. Values without an offset are taken to
// be in the local zone already; values with one are converted into it.
func (n *Normalizer) ParseLocal(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.In(n.Loc), nil
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, value, n.Loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid isoformat string: '%s'", value)
}

// ToLocal converts a backend start/end value. A ten character value is an
// all-day date and maps to local midnight. Returns nil when the value is empty
// or unparseable.
func (n *Normalizer) ToLocal(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	if len(raw) == len(DateLayout) {
		d, err := time.Parse(DateLayout, raw)
		if err != nil {
			return nil
		}
		t := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, n.Loc)
		return &t
	}
	if t, err := n.ParseLocal(raw); err == nil {
		return &t
	}
	if strings.HasSuffix(raw, "Z") {
		if t, err := n.ParseLocal(strings.TrimSuffix(raw, "Z") + "+00:00"); err == nil {
			return &t
		}
	}
	return nil
}

// Now returns the current time in the local zone.
func (n *Normalizer) Now() time.Time {
	return time.Now().In(n.Loc)
}

// UTC formats t as an RFC 3339 UTC timestamp with a Z suffix.
func UTC(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// FormatISO renders t in ISO-8601 with its offset; fractional seconds only when non-zero.
func FormatISO(t time.Time) string {
	return t.Format(ISO)
}

// Weekday returns the English weekday name of t.
func Weekday(t time.Time) string {
	return t.Weekday().String()
}

// DocumentTitle renders "<Weekday> <YYYY-MM-DD>" for t in the local zone.
func (n *Normalizer) DocumentTitle(t time.Time) string {
	t = t.In(n.Loc)
	return Weekday(t) + " " + t.Format(DateLayout)
}
