package digest

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weekly/internal/google"
	"weekly/internal/hubspot"
	"weekly/internal/notify"
	"weekly/internal/tools"
)

// scriptedTool answers every call through fn and records the arguments.
type scriptedTool struct {
	name string
	fn   func(args map[string]any) string

	mu    sync.Mutex
	calls []map[string]any
}

func (s *scriptedTool) Name() string          { return s.name }
func (s *scriptedTool) Description() string   { return s.name }
func (s *scriptedTool) Params() []tools.Param { return nil }
func (s *scriptedTool) Call(_ context.Context, raw json.RawMessage) string {
	var args map[string]any
	_ = json.Unmarshal(raw, &args)
	s.mu.Lock()
	s.calls = append(s.calls, args)
	s.mu.Unlock()
	return s.fn(args)
}

const twoMeetings = `{"count":2,"items":[
	{"title":"Client sync","day":"Tuesday","start_local":"2025-03-11T10:00:00+05:30","end_local":"2025-03-11T10:30:00+05:30",
	 "event_link":"https://calendar.example/1","location":"https://zoom.us/j/1","description":null,
	 "attendees":[{"name":null,"email":null,"response":null},{"name":"Ana","email":"ana@example.com","response":"accepted"}]},
	{"title":"Internal retro","day":"Wednesday","start_local":"2025-03-12T15:00:00+05:30","end_local":null,
	 "event_link":null,"location":null,"description":null,"attendees":[]}
]}`

type fakes struct {
	calendar, mail, crm, doc, slack *scriptedTool
}

func newFakes() *fakes {
	return &fakes{
		calendar: &scriptedTool{name: google.CalendarToolName, fn: func(map[string]any) string { return twoMeetings }},
		mail: &scriptedTool{name: google.MailToolName, fn: func(args map[string]any) string {
			if args["query"] == "Internal retro" {
				return `{"error":"Error while accessing Gmail: quota"}`
			}
			return `{"count":1,"items":[{"id":"m1","subject":"Agenda for client sync","from":"Bo <bo@example.com>","date":"Mon, 10 Mar 2025","snippet":"see you"}]}`
		}},
		crm: &scriptedTool{name: hubspot.ToolName, fn: func(map[string]any) string {
			return `{"found":true,"meeting":{},"contact":{"firstname":"Ana","email":"ana@example.com"},"companies":[{"name":"Acme"}],"deals":[]}`
		}},
		doc: &scriptedTool{name: google.DocumentToolName, fn: func(map[string]any) string {
			return "https://docs.google.com/document/d/doc-9/edit"
		}},
		slack: &scriptedTool{name: notify.ToolName, fn: func(args map[string]any) string {
			return `{"ok":true,"channel":"D1","ts":"1.2"}`
		}},
	}
}

func (f *fakes) runner() *Runner {
	registry := tools.NewRegistry(f.calendar, f.mail, f.crm, f.doc, f.slack)
	r := NewRunner(slog.New(slog.NewTextHandler(io.Discard, nil)), registry)
	r.Now = func() time.Time { return time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC) }
	return r
}

func TestRunFullCycle(t *testing.T) {
	f := newFakes()
	report, err := f.runner().Run(context.Background(), Options{
		StartISO:    "2025-03-11T00:00:00",
		RequireZoom: true,
		Recipient:   "#weekly",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	require.Len(t, report.Entries, 2)
	assert.Equal(t, "Client sync", report.Entries[0].Meeting.Title)
	assert.Equal(t, "Internal retro", report.Entries[1].Meeting.Title)

	require.NotNil(t, report.Entries[0].Mail)
	assert.Equal(t, 1, report.Entries[0].Mail.Count)
	require.NotNil(t, report.Entries[0].CRM)
	assert.True(t, report.Entries[0].CRM.Found)
	assert.Equal(t, "Error while accessing Gmail: quota", report.Entries[1].MailError)
	assert.Nil(t, report.Entries[1].CRM)

	require.Len(t, f.calendar.calls, 1)
	assert.Equal(t, "2025-03-11T00:00:00", f.calendar.calls[0]["start_iso"])
	assert.Equal(t, true, f.calendar.calls[0]["require_zoom"])
	assert.NotContains(t, f.calendar.calls[0], "end_iso")

	assert.Len(t, f.mail.calls, 2)
	require.Len(t, f.crm.calls, 1)
	assert.Equal(t, "ana@example.com", f.crm.calls[0]["email"])
	assert.Equal(t, "Client sync", f.crm.calls[0]["meeting_title"])

	assert.Contains(t, report.Summary, "1. Client sync")
	assert.Contains(t, report.Summary, "2. Internal retro")
	assert.Contains(t, report.Summary, "Agenda for client sync")
	assert.Contains(t, report.Summary, "company name=Acme")
	assert.Contains(t, report.Summary, "Mail: unavailable (Error while accessing Gmail: quota)")

	require.Len(t, f.doc.calls, 1)
	assert.Equal(t, report.Summary, f.doc.calls[0]["meeting_summary"])
	assert.Equal(t, "https://docs.google.com/document/d/doc-9/edit", report.Link)

	require.Len(t, f.slack.calls, 1)
	assert.Equal(t, "#weekly", f.slack.calls[0]["recipient"])
	assert.True(t, strings.HasSuffix(f.slack.calls[0]["message"].(string), report.Link))
	require.NotNil(t, report.Delivery)
	assert.Equal(t, "D1", report.Delivery.Channel)
}

func TestRunDryRun(t *testing.T) {
	f := newFakes()
	report, err := f.runner().Run(context.Background(), Options{DryRun: true, Recipient: "#weekly"})
	require.NoError(t, err)
	assert.NotEmpty(t, report.Summary)
	assert.Empty(t, report.Link)
	assert.Empty(t, f.doc.calls)
	assert.Empty(t, f.slack.calls)
}

func TestRunWithoutRecipient(t *testing.T) {
	f := newFakes()
	report, err := f.runner().Run(context.Background(), Options{})
	require.NoError(t, err)
	assert.NotEmpty(t, report.Link)
	assert.Empty(t, f.slack.calls)
	assert.Nil(t, report.Delivery)
}

func TestRunFailures(t *testing.T) {
	t.Run("calendar error", func(t *testing.T) {
		f := newFakes()
		f.calendar.fn = func(map[string]any) string { return `{"error":"No calendar token JSON found in env (GOOGLE_TKN)"}` }
		_, err := f.runner().Run(context.Background(), Options{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "GOOGLE_TKN")
		assert.Empty(t, f.mail.calls)
	})

	t.Run("publish error", func(t *testing.T) {
		f := newFakes()
		f.doc.fn = func(map[string]any) string { return "Error creating document: quota" }
		report, err := f.runner().Run(context.Background(), Options{Recipient: "#weekly"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Error creating document: quota")
		assert.NotEmpty(t, report.Summary)
		assert.Empty(t, f.slack.calls)
	})

	t.Run("notify error", func(t *testing.T) {
		f := newFakes()
		f.slack.fn = func(map[string]any) string { return `{"error":"Slack notification failed: channel_not_found"}` }
		report, err := f.runner().Run(context.Background(), Options{Recipient: "#nope"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "channel_not_found")
		assert.NotEmpty(t, report.Link)
	})

	t.Run("tool missing", func(t *testing.T) {
		r := NewRunner(slog.New(slog.NewTextHandler(io.Discard, nil)), tools.NewRegistry())
		_, err := r.Run(context.Background(), Options{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "is not registered")
	})
}

func TestRenderEmpty(t *testing.T) {
	out, err := Render(time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), nil)
	require.NoError(t, err)
	assert.Contains(t, out, "Weekly meeting digest")
	assert.Contains(t, out, "Generated 2025-03-10")
	assert.Contains(t, out, "No upcoming meetings.")
}
