package models

import (
	"fmt"
	"time"
)

// Event represents a calendar event as delivered by a backend.
// This is an internal representation, independent of any specific calendar provider.
// Start and End keep the backend's raw wire value: a YYYY-MM-DD date for all-day
// events, an RFC 3339 timestamp otherwise.
type Event struct {
	ID          string     // Unique identifier for the event in the source calendar
	Title       string     // Summary or title of the event
	Description string     // Detailed description of the event
	Location    string     // Location of the event
	Start       string     // Raw start value
	End         string     // Raw end value
	Link        string     // Link to the event in the provider's UI
	Attendees   []Attendee // Invited attendees, in backend order
	Source      string     // The source of the event (e.g., "google", "caldav")
}

// Attendee is one invitee. Name and Response are nil when the backend omits them.
type Attendee struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Response *string `json:"response"`
}

// Meeting is the compact projection of an Event handed to callers.
type Meeting struct {
	Title       string     `json:"title"`
	Day         *string    `json:"day"`
	StartLocal  *string    `json:"start_local"`
	EndLocal    *string    `json:"end_local"`
	EventLink   *string    `json:"event_link"`
	Location    *string    `json:"location"`
	Description *string    `json:"description"`
	Attendees   []Attendee `json:"attendees"`
}

// MeetingList is the calendar adapter payload.
type MeetingList struct {
	Count int       `json:"count"`
	Items []Meeting `json:"items"`
}

// TimeWindow bounds a calendar query.
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// DefaultWindowSpan is applied when no end bound is given.
const DefaultWindowSpan = 7 * 24 * time.Hour

// NewTimeWindow applies the defaults: a zero start means now, a zero end
// means start plus seven days.
func NewTimeWindow(start, end, now time.Time) (TimeWindow, error) {
	if start.IsZero() {
		start = now
	}
	if end.IsZero() {
		end = start.Add(DefaultWindowSpan)
	}
	if end.Before(start) {
		return TimeWindow{}, fmt.Errorf("window end %s is before start %s", end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	return TimeWindow{Start: start, End: end}, nil
}

// StringPtr returns nil for an empty string.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
