package hubspot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"weekly/internal/config"
	"weekly/internal/credentials"
	"weekly/internal/models"
	"weekly/internal/tools"
)

const (
	ToolName = "HubSpotSearchTool"

	// maxAssociated bounds the company and deal fan-out per contact.
	maxAssociated = 3
)

// Status is the outcome of a single CRM lookup.
type Status int

const (
	Found Status = iota
	NotFound
	Failed
)

func (s Status) String() string {
	switch s {
	case Found:
		return "found"
	case NotFound:
		return "not found"
	default:
		return "error"
	}
}

// Lookup is the result of one sub-lookup. Value is only set when Status is Found.
type Lookup[T any] struct {
	Status Status
	Value  T
	Err    error
}

func resultOf[T any](v T, err error) Lookup[T] {
	switch {
	case err == nil:
		return Lookup[T]{Status: Found, Value: v}
	case errors.Is(err, ErrNotFound):
		return Lookup[T]{Status: NotFound, Err: err}
	default:
		return Lookup[T]{Status: Failed, Err: err}
	}
}

// LookupInput are the CRM tool arguments.
type LookupInput struct {
	MeetingTitle string `json:"meeting_title" description:"Title of the event from the calendar"`
	Email        string `json:"email" description:"Email of the attendee from the event"`
}

// Tool aggregates meeting, contact, company and deal records.
type Tool struct {
	env *tools.Env
	// BaseURL overrides DefaultBaseURL.
	BaseURL string
}

func NewTool(env *tools.Env) *Tool {
	return &Tool{env: env}
}

func (t *Tool) Name() string { return ToolName }

func (t *Tool) Description() string {
	return "Search HubSpot for a meeting, contact, and associated companies/deals. Inputs: meeting_title, email. Returns compact JSON."
}

func (t *Tool) Params() []tools.Param {
	return []tools.Param{
		{Name: "meeting_title", Type: "string", Description: "Title of the event from the calendar", Required: true},
		{Name: "email", Type: "string", Description: "Email of the attendee from the event", Required: true},
	}
}

func (t *Tool) Call(ctx context.Context, args json.RawMessage) string {
	var in LookupInput
	if err := tools.Decode(args, &in); err != nil {
		return tools.Encode(&models.CRMResult{Reason: err.Error()})
	}
	return tools.Encode(t.Lookup(ctx, &in))
}

// Lookup runs the three lookups independently; none of them aborts another.
func (t *Tool) Lookup(ctx context.Context, in *LookupInput) *models.CRMResult {
	logger := t.env.Logger.With("tool", ToolName)
	if strings.TrimSpace(in.MeetingTitle) == "" || strings.TrimSpace(in.Email) == "" {
		return &models.CRMResult{Reason: "invalid arguments: meeting_title and email are required"}
	}
	tok, err := t.env.Resolver.Static(config.HubSpotTokenKey)
	if err != nil {
		return &models.CRMResult{Reason: fmt.Sprintf("Auth error: %v", err)}
	}
	client := NewClient(logger, credentials.BearerClient(ctx, tok, t.env.Timeout), t.BaseURL)

	meeting := resultOf(client.SearchMeeting(ctx, in.MeetingTitle))
	logLookup(logger, "meeting", meeting.Status, meeting.Err)

	contact := resultOf(client.ContactByEmail(ctx, in.Email))
	logLookup(logger, "contact", contact.Status, contact.Err)

	var (
		contactProps models.Properties
		companies    []models.Properties
		deals        []models.Properties
	)
	if contact.Status == Found {
		contactProps = contact.Value.Properties
		companies = fetchAll(ctx, client, logger, "companies", contact.Value.Associated("companies"))
		deals = fetchAll(ctx, client, logger, "deals", contact.Value.Associated("deals"))
	}
	return models.NewCRMResult(meeting.Value, contactProps, companies, deals)
}

// fetchAll fetches at most maxAssociated objects, omitting any lookup that
// did not succeed.
func fetchAll(ctx context.Context, client *Client, logger *slog.Logger, objectType string, ids []string) []models.Properties {
	if len(ids) > maxAssociated {
		ids = ids[:maxAssociated]
	}
	lookups := make([]Lookup[models.Properties], 0, len(ids))
	for _, id := range ids {
		lookups = append(lookups, resultOf(client.Object(ctx, objectType, id)))
	}
	out := make([]models.Properties, 0, len(lookups))
	for i, l := range lookups {
		if l.Status != Found {
			logger.Debug("Skipping CRM object", "type", objectType, "id", ids[i], "status", l.Status.String(), "error", l.Err)
			continue
		}
		if l.Value == nil {
			l.Value = models.Properties{}
		}
		out = append(out, l.Value)
	}
	return out
}

func logLookup(logger *slog.Logger, what string, status Status, err error) {
	if status == Found {
		return
	}
	logger.Debug("CRM lookup came back empty", "lookup", what, "status", status.String(), "error", err)
}
