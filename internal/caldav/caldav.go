package caldav

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	dav "github.com/emersion/go-webdav/caldav"

	"weekly/internal/config"
	"weekly/internal/models"
)

const sourceName = "caldav"

// basicAuthTransport adds Basic Auth and the user agent to each request.
type basicAuthTransport struct {
	Username  string
	Password  string
	Transport http.RoundTripper
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.SetBasicAuth(t.Username, t.Password)
	req.Header.Set("User-Agent", "weekly/1.0")
	return t.Transport.RoundTrip(req)
}

// Settings locate one calendar on a CalDAV server.
type Settings struct {
	Endpoint string
	Username string
	Password string
	Calendar string
}

// SettingsFrom reads the CALDAV_* keys. ok is false when no endpoint is configured.
func SettingsFrom(src config.Source) (Settings, bool) {
	endpoint, ok := src.Lookup(config.CalDAVURLKey)
	if !ok {
		return Settings{}, false
	}
	return Settings{
		Endpoint: endpoint,
		Username: config.Get(src, config.CalDAVUsernameKey, ""),
		Password: config.Get(src, config.CalDAVPasswordKey, ""),
		Calendar: config.Get(src, config.CalDAVCalendarKey, ""),
	}, true
}

// Client reads events from one CalDAV calendar.
type Client struct {
	caldav       *dav.Client
	logger       *slog.Logger
	calendarPath string
	loc          *time.Location
}

// NewClient connects to the server and resolves the configured calendar.
// An empty calendar name selects the first calendar in the home set.
func NewClient(ctx context.Context, logger *slog.Logger, s Settings, loc *time.Location, timeout time.Duration) (*Client, error) {
	httpClient := &http.Client{
		Timeout: timeout,
		Transport: &basicAuthTransport{
			Username:  s.Username,
			Password:  s.Password,
			Transport: http.DefaultTransport,
		},
	}
	caldavClient, err := dav.NewClient(httpClient, s.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create caldav client: %w", err)
	}
	c := &Client{caldav: caldavClient, logger: logger, loc: loc}

	logger.Debug("Finding CalDAV calendar", "calendarName", s.Calendar)
	calendarPath, err := c.findCalendar(ctx, s.Calendar)
	if err != nil {
		return nil, fmt.Errorf("could not find calendar '%s': %w", s.Calendar, err)
	}
	c.calendarPath = calendarPath
	logger.Debug("Found CalDAV calendar", "path", calendarPath)
	return c, nil
}

// findCalendar discovers the user's calendars and returns the path of the one
// with the matching name.
func (c *Client) findCalendar(ctx context.Context, name string) (string, error) {
	principalPath, err := c.caldav.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to find principal path: %w", err)
	}
	homeSetPath, err := c.caldav.FindCalendarHomeSet(ctx, principalPath)
	if err != nil {
		return "", fmt.Errorf("failed to find calendar home set: %w", err)
	}
	calendars, err := c.caldav.FindCalendars(ctx, homeSetPath)
	if err != nil {
		return "", fmt.Errorf("failed to find calendars: %w", err)
	}
	for _, cal := range calendars {
		if name == "" || cal.Name == name {
			return cal.Path, nil
		}
	}
	return "", fmt.Errorf("no calendar found with name '%s'", name)
}

// ListEvents returns the events overlapping window, ordered by start and
// capped at max. Recurring events are returned as their master instance.
func (c *Client) ListEvents(ctx context.Context, window models.TimeWindow, max int) ([]*models.Event, error) {
	query := &dav.CalendarQuery{
		CompRequest: dav.CalendarCompRequest{
			Name:  ical.CompCalendar,
			Props: []string{ical.PropVersion},
			Comps: []dav.CalendarCompRequest{{
				Name:     ical.CompEvent,
				AllProps: true,
			}},
		},
		CompFilter: dav.CompFilter{
			Name: ical.CompCalendar,
			Comps: []dav.CompFilter{{
				Name:  ical.CompEvent,
				Start: window.Start.UTC(),
				End:   window.End.UTC(),
			}},
		},
	}
	objects, err := c.caldav.QueryCalendar(ctx, c.calendarPath, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query calendar: %w", err)
	}

	var events []*models.Event
	for _, obj := range objects {
		if obj.Data == nil {
			continue
		}
		events = append(events, ToEvents(obj.Data, obj.Path, c.loc)...)
	}
	SortByStart(events, c.loc)
	if max > 0 && len(events) > max {
		events = events[:max]
	}
	c.logger.Debug("Fetched CalDAV events", "count", len(events))
	return events, nil
}

// ToEvents converts the VEVENTs of one calendar object. Floating times are
// read in loc. Events without a start are skipped.
func ToEvents(cal *ical.Calendar, objectPath string, loc *time.Location) []*models.Event {
	var out []*models.Event
	for _, ev := range cal.Events() {
		start := rawTime(ev.Props.Get(ical.PropDateTimeStart), loc)
		if start == "" {
			continue
		}
		uid, _ := ev.Props.Text(ical.PropUID)
		if uid == "" {
			uid = objectPath
		}
		out = append(out, &models.Event{
			ID:          uid,
			Title:       text(ev.Component, ical.PropSummary),
			Description: text(ev.Component, ical.PropDescription),
			Location:    text(ev.Component, ical.PropLocation),
			Start:       start,
			End:         rawTime(ev.Props.Get(ical.PropDateTimeEnd), loc),
			Link:        text(ev.Component, ical.PropURL),
			Attendees:   attendees(ev.Component),
			Source:      sourceName,
		})
	}
	return out
}

func text(comp *ical.Component, name string) string {
	v, err := comp.Props.Text(name)
	if err != nil {
		return ""
	}
	return v
}

// rawTime renders a DTSTART/DTEND the way the Google backend delivers it:
// YYYY-MM-DD for dates, RFC 3339 otherwise.
func rawTime(prop *ical.Prop, loc *time.Location) string {
	if prop == nil {
		return ""
	}
	t, err := prop.DateTime(loc)
	if err != nil {
		return ""
	}
	if prop.ValueType() == ical.ValueDate {
		return t.Format(time.DateOnly)
	}
	return t.Format(time.RFC3339)
}

var partStat = map[string]string{
	"ACCEPTED":     "accepted",
	"DECLINED":     "declined",
	"TENTATIVE":    "tentative",
	"NEEDS-ACTION": "needsAction",
}

func attendees(comp *ical.Component) []models.Attendee {
	props := comp.Props.Values(ical.PropAttendee)
	out := make([]models.Attendee, 0, len(props))
	for _, p := range props {
		email := strings.TrimSpace(p.Value)
		if len(email) >= 7 && strings.EqualFold(email[:7], "mailto:") {
			email = email[7:]
		}
		a := models.Attendee{Email: models.StringPtr(email)}
		if cn := p.Params.Get(ical.ParamCommonName); cn != "" {
			a.Name = models.StringPtr(cn)
		}
		if ps, ok := partStat[strings.ToUpper(p.Params.Get(ical.ParamParticipationStatus))]; ok {
			a.Response = models.StringPtr(ps)
		}
		out = append(out, a)
	}
	return out
}

// SortByStart orders events chronologically; unparseable starts sort last.
func SortByStart(events []*models.Event, loc *time.Location) {
	key := func(e *models.Event) time.Time {
		if t, err := time.ParseInLocation(time.DateOnly, e.Start, loc); err == nil {
			return t
		}
		if t, err := time.Parse(time.RFC3339, e.Start); err == nil {
			return t
		}
		return time.Unix(1<<62, 0)
	}
	sort.SliceStable(events, func(i, j int) bool { return key(events[i]).Before(key(events[j])) })
}
