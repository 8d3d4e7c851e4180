package digest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"weekly/internal/google"
	"weekly/internal/hubspot"
	"weekly/internal/models"
	"weekly/internal/notify"
	"weekly/internal/tools"
)

const defaultMailResults = 5

// Options control one digest run.
type Options struct {
	StartISO    string
	EndISO      string
	RequireZoom bool
	IncludeBody bool
	// Recipient is notified with the document link. Empty skips notification.
	Recipient string
	// DryRun renders the summary without publishing or notifying.
	DryRun bool
}

// Entry is everything gathered for one meeting.
type Entry struct {
	Meeting   models.Meeting
	Mail      *models.MailList
	MailError string
	CRM       *models.CRMResult
}

// Report is the outcome of a run.
type Report struct {
	RunID    string
	Entries  []Entry
	Summary  string
	Link     string
	Delivery *models.Delivery
}

// Runner drives the adapters in order: calendar, then mail and CRM per
// meeting, then publish and notify.
type Runner struct {
	logger   *slog.Logger
	registry *tools.Registry
	// Now is overridable for tests.
	Now func() time.Time
}

func NewRunner(logger *slog.Logger, registry *tools.Registry) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{logger: logger, registry: registry, Now: time.Now}
}

// Run performs one digest cycle.
func (r *Runner) Run(ctx context.Context, opts Options) (*Report, error) {
	report := &Report{RunID: uuid.New().String()}
	logger := r.logger.With("run", report.RunID)
	logger.Info("Starting digest run", "dryRun", opts.DryRun)

	meetings, err := r.meetings(ctx, opts)
	if err != nil {
		return report, err
	}
	logger.Info("Fetched meetings", "count", meetings.Count)

	report.Entries = r.gather(ctx, logger, meetings.Items, opts)

	summary, err := Render(r.Now(), report.Entries)
	if err != nil {
		return report, fmt.Errorf("failed to render summary: %w", err)
	}
	report.Summary = summary

	if opts.DryRun {
		logger.Info("[DRY RUN] Skipping publish and notify", "summaryBytes", len(summary))
		return report, nil
	}

	link, err := r.publish(ctx, summary)
	if err != nil {
		return report, err
	}
	report.Link = link
	logger.Info("Published digest", "link", link)

	if opts.Recipient == "" {
		logger.Info("No recipient configured, skipping notification")
		return report, nil
	}
	delivery, err := r.notify(ctx, opts.Recipient, link)
	if err != nil {
		return report, err
	}
	report.Delivery = delivery
	logger.Info("Digest run finished", "channel", delivery.Channel)
	return report, nil
}

func (r *Runner) meetings(ctx context.Context, opts Options) (*models.MeetingList, error) {
	args := map[string]any{"require_zoom": opts.RequireZoom}
	if opts.StartISO != "" {
		args["start_iso"] = opts.StartISO
	}
	if opts.EndISO != "" {
		args["end_iso"] = opts.EndISO
	}
	out, err := r.call(ctx, google.CalendarToolName, args)
	if err != nil {
		return nil, err
	}
	if msg := envelopeError(out); msg != "" {
		return nil, fmt.Errorf("calendar: %s", msg)
	}
	var list models.MeetingList
	if err := json.Unmarshal([]byte(out), &list); err != nil {
		return nil, fmt.Errorf("failed to decode calendar output: %w", err)
	}
	return &list, nil
}

// gather runs one worker per meeting. Results are stored by meeting index so
// output order matches calendar order.
func (r *Runner) gather(ctx context.Context, logger *slog.Logger, meetings []models.Meeting, opts Options) []Entry {
	entries := make([]Entry, len(meetings))
	var wg sync.WaitGroup
	for i, m := range meetings {
		wg.Add(1)
		go func() {
			defer wg.Done()
			entries[i] = r.enrich(ctx, logger, m, opts)
		}()
	}
	wg.Wait()
	return entries
}

func (r *Runner) enrich(ctx context.Context, logger *slog.Logger, m models.Meeting, opts Options) Entry {
	entry := Entry{Meeting: m}

	mailArgs := map[string]any{"query": m.Title, "max_results": defaultMailResults, "include_body": opts.IncludeBody}
	if out, err := r.call(ctx, google.MailToolName, mailArgs); err != nil {
		entry.MailError = err.Error()
	} else if msg := envelopeError(out); msg != "" {
		entry.MailError = msg
	} else {
		var list models.MailList
		if err := json.Unmarshal([]byte(out), &list); err != nil {
			entry.MailError = err.Error()
		} else {
			entry.Mail = &list
		}
	}
	if entry.MailError != "" {
		logger.Warn("Mail lookup failed", "meeting", m.Title, "error", entry.MailError)
	}

	email := firstEmail(m.Attendees)
	if email == "" {
		logger.Debug("Meeting has no attendee email, skipping CRM", "meeting", m.Title)
		return entry
	}
	out, err := r.call(ctx, hubspot.ToolName, map[string]any{"meeting_title": m.Title, "email": email})
	if err != nil {
		logger.Warn("CRM lookup failed", "meeting", m.Title, "error", err)
		return entry
	}
	var crm models.CRMResult
	if err := json.Unmarshal([]byte(out), &crm); err != nil {
		logger.Warn("CRM output unreadable", "meeting", m.Title, "error", err)
		return entry
	}
	entry.CRM = &crm
	return entry
}

func (r *Runner) publish(ctx context.Context, summary string) (string, error) {
	out, err := r.call(ctx, google.DocumentToolName, map[string]any{"meeting_summary": summary})
	if err != nil {
		return "", err
	}
	if google.IsDocumentError(out) {
		return "", fmt.Errorf("publish: %s", out)
	}
	return strings.TrimSpace(out), nil
}

func (r *Runner) notify(ctx context.Context, recipient, link string) (*models.Delivery, error) {
	message := fmt.Sprintf("Your weekly meeting digest is ready: %s", link)
	out, err := r.call(ctx, notify.ToolName, map[string]any{"recipient": recipient, "message": message})
	if err != nil {
		return nil, err
	}
	if msg := envelopeError(out); msg != "" {
		return nil, fmt.Errorf("notify: %s", msg)
	}
	var d models.Delivery
	if err := json.Unmarshal([]byte(out), &d); err != nil {
		return nil, fmt.Errorf("failed to decode notification output: %w", err)
	}
	return &d, nil
}

func (r *Runner) call(ctx context.Context, name string, args map[string]any) (string, error) {
	if _, ok := r.registry.Lookup(name); !ok {
		return "", fmt.Errorf("tool %s is not registered", name)
	}
	data, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("failed to encode %s arguments: %w", name, err)
	}
	return r.registry.Call(ctx, name, data), nil
}

// envelopeError returns the message of an {"error": ...} output, or "".
func envelopeError(out string) string {
	var env models.ErrorEnvelope
	if err := json.Unmarshal([]byte(out), &env); err != nil {
		return ""
	}
	return env.Error
}

func firstEmail(attendees []models.Attendee) string {
	for _, a := range attendees {
		if a.Email != nil && strings.TrimSpace(*a.Email) != "" {
			return *a.Email
		}
	}
	return ""
}
