package google

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"weekly/internal/config"
	"weekly/internal/credentials"
	"weekly/internal/models"
	"weekly/internal/timeutil"
	"weekly/internal/tools"
)

const (
	CalendarToolName = "fetch_upcoming_meetings"

	// maxCalendarResults caps one listing; there is no pagination past it.
	maxCalendarResults = 100
	primaryCalendarID  = "primary"
	noTitle            = "No Title"
)

var zoomPattern = regexp.MustCompile(`(?i)\bzoom\.us\b`)

// EventSource lists raw events in a window.
type EventSource interface {
	ListEvents(ctx context.Context, window models.TimeWindow, max int) ([]*models.Event, error)
}

// CalendarClient provides a client for interacting with the Google Calendar API.
type CalendarClient struct {
	service    *calendar.Service
	logger     *slog.Logger
	calendarID string
}

// NewCalendarClient creates a Google Calendar client on top of an
// authenticated HTTP client. An empty endpoint uses the public API.
func NewCalendarClient(ctx context.Context, logger *slog.Logger, httpClient *http.Client, endpoint string) (*CalendarClient, error) {
	opts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	service, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	return &CalendarClient{service: service, logger: logger, calendarID: primaryCalendarID}, nil
}

// ListEvents fetches single-occurrence events in the window ordered by start time.
func (c *CalendarClient) ListEvents(ctx context.Context, window models.TimeWindow, max int) ([]*models.Event, error) {
	tmin := timeutil.UTC(window.Start)
	tmax := timeutil.UTC(window.End)
	c.logger.Debug("Fetching upcoming events", "calendarID", c.calendarID, "timeMin", tmin, "timeMax", tmax)

	events, err := c.service.Events.List(c.calendarID).
		Context(ctx).
		TimeMin(tmin).
		TimeMax(tmax).
		SingleEvents(true).
		MaxResults(int64(max)).
		OrderBy("startTime").
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve events: %w", err)
	}

	c.logger.Info("Successfully fetched events from Google Calendar", "count", len(events.Items), "calendarID", c.calendarID)
	return toInternalEvents(events.Items), nil
}

// toInternalEvents converts Google Calendar events to the internal Event model.
func toInternalEvents(googleEvents []*calendar.Event) []*models.Event {
	internalEvents := make([]*models.Event, 0, len(googleEvents))
	for _, item := range googleEvents {
		if item == nil {
			continue
		}
		attendees := make([]models.Attendee, 0, len(item.Attendees))
		for _, a := range item.Attendees {
			if a == nil {
				continue
			}
			attendees = append(attendees, models.Attendee{
				Name:     models.StringPtr(a.DisplayName),
				Email:    models.StringPtr(a.Email),
				Response: models.StringPtr(a.ResponseStatus),
			})
		}
		internalEvents = append(internalEvents, &models.Event{
			ID:          item.Id,
			Title:       item.Summary,
			Description: item.Description,
			Location:    item.Location,
			Start:       rawEventTime(item.Start),
			End:         rawEventTime(item.End),
			Link:        item.HtmlLink,
			Attendees:   attendees,
			Source:      "google",
		})
	}
	return internalEvents
}

func rawEventTime(t *calendar.EventDateTime) string {
	if t == nil {
		return ""
	}
	if t.DateTime != "" {
		return t.DateTime
	}
	return t.Date
}

// FetchMeetingsInput are the calendar tool arguments.
type FetchMeetingsInput struct {
	Query       any    `json:"query,omitempty" description:"Ignored; accepted for backward compatibility"`
	StartISO    string `json:"start_iso,omitempty" description:"ISO-8601 start in the local zone; defaults to now"`
	EndISO      string `json:"end_iso,omitempty" description:"ISO-8601 end in the local zone; defaults to start + 7 days"`
	RequireZoom *bool  `json:"require_zoom,omitempty" description:"Only include events containing zoom.us in location/description (default true)"`
}

// ConnectFunc opens an event source for one call.
type ConnectFunc func(ctx context.Context) (EventSource, error)

// CalendarTool lists upcoming meetings.
type CalendarTool struct {
	env *tools.Env
	// Connect defaults to the Google Calendar of the GOOGLE_TKN account.
	Connect ConnectFunc
	// Endpoint overrides the Calendar API base URL.
	Endpoint string
	// Now is overridable for tests.
	Now func() time.Time
}

func NewCalendarTool(env *tools.Env) *CalendarTool {
	t := &CalendarTool{env: env, Now: time.Now}
	t.Connect = t.connectGoogle
	return t
}

func (t *CalendarTool) Name() string { return CalendarToolName }

func (t *CalendarTool) Description() string {
	return "Fetches upcoming calendar events within the next 7 days (local time zone). " +
		"Returns compact JSON with title/day/start/end/event_link/location/description/attendees. " +
		"Optional filter require_zoom=true keeps only Zoom meetings."
}

func (t *CalendarTool) Params() []tools.Param {
	return []tools.Param{
		{Name: "query", Type: "string", Description: "Ignored; accepted for backward compatibility"},
		{Name: "start_iso", Type: "string", Description: "ISO-8601 start in the local zone; defaults to now"},
		{Name: "end_iso", Type: "string", Description: "ISO-8601 end in the local zone; defaults to start + 7 days"},
		{Name: "require_zoom", Type: "boolean", Description: "Only include events containing zoom.us in location/description", Default: true},
	}
}

func (t *CalendarTool) Call(ctx context.Context, args json.RawMessage) string {
	var in FetchMeetingsInput
	if err := tools.Decode(args, &in); err != nil {
		return tools.ErrorJSON(fmt.Sprintf("Calendar fetch failed: %v", err))
	}
	out, err := t.Fetch(ctx, &in)
	if err != nil {
		return tools.ErrorJSON(err.Error())
	}
	return tools.Encode(out)
}

// Fetch runs the calendar operation. The returned error text is the envelope message.
func (t *CalendarTool) Fetch(ctx context.Context, in *FetchMeetingsInput) (*models.MeetingList, error) {
	src, err := t.Connect(ctx)
	if err != nil {
		if credentials.IsMissing(err) {
			return nil, tools.Failf("No calendar token JSON found in env (%s)", config.CalendarTokenKey)
		}
		return nil, tools.Failf("Auth error: %v", err)
	}

	window, err := t.window(in)
	if err != nil {
		return nil, tools.Failf("Calendar fetch failed: %v", err)
	}

	events, err := src.ListEvents(ctx, window, maxCalendarResults)
	if err != nil {
		return nil, tools.Failf("Calendar fetch failed: %v", err)
	}

	requireZoom := in.RequireZoom == nil || *in.RequireZoom
	items := make([]models.Meeting, 0, len(events))
	for _, ev := range events {
		if requireZoom && !HasZoom(ev) {
			continue
		}
		items = append(items, t.toMeeting(ev))
	}
	t.env.Logger.Debug("Projected meetings", "fetched", len(events), "kept", len(items), "requireZoom", requireZoom)
	return &models.MeetingList{Count: len(items), Items: items}, nil
}

func (t *CalendarTool) window(in *FetchMeetingsInput) (models.TimeWindow, error) {
	n := t.env.Normalizer
	var start, end time.Time
	var err error
	if in.StartISO != "" {
		if start, err = n.ParseLocal(in.StartISO); err != nil {
			return models.TimeWindow{}, err
		}
	}
	if in.EndISO != "" {
		if end, err = n.ParseLocal(in.EndISO); err != nil {
			return models.TimeWindow{}, err
		}
	}
	return models.NewTimeWindow(start, end, t.Now().In(n.Loc))
}

func (t *CalendarTool) toMeeting(ev *models.Event) models.Meeting {
	n := t.env.Normalizer
	m := models.Meeting{
		Title:       ev.Title,
		EventLink:   models.StringPtr(ev.Link),
		Location:    models.StringPtr(ev.Location),
		Description: models.StringPtr(ev.Description),
		Attendees:   ev.Attendees,
	}
	if m.Title == "" {
		m.Title = noTitle
	}
	if m.Attendees == nil {
		m.Attendees = []models.Attendee{}
	}
	if start := n.ToLocal(ev.Start); start != nil {
		day := timeutil.Weekday(*start)
		iso := timeutil.FormatISO(*start)
		m.Day, m.StartLocal = &day, &iso
	}
	if end := n.ToLocal(ev.End); end != nil {
		iso := timeutil.FormatISO(*end)
		m.EndLocal = &iso
	}
	return m
}

// HasZoom reports whether the event's location or description mentions
// zoom.us as a whole word.
func HasZoom(ev *models.Event) bool {
	return zoomPattern.MatchString(ev.Location + " " + ev.Description)
}

func (t *CalendarTool) connectGoogle(ctx context.Context) (EventSource, error) {
	bundle, err := t.env.Resolver.Resolve(ctx, config.CalendarTokenKey, credentials.AuthorizedUser)
	if err != nil {
		return nil, err
	}
	return NewCalendarClient(ctx, t.env.Logger, bundle.Client(ctx, t.env.Timeout), t.Endpoint)
}
