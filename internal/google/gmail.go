package google

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"weekly/internal/config"
	"weekly/internal/credentials"
	"weekly/internal/models"
	"weekly/internal/tools"
)

const (
	MailToolName = "GmailMeetingTool"

	gmailUser            = "me"
	defaultMaxResults    = 5
	minMaxResults        = 1
	maxMaxResults        = 10
	defaultBodyCharLimit = 800
	snippetCharLimit     = 300
)

// MailClient wraps the Gmail API for one authenticated user.
type MailClient struct {
	service *gmail.Service
	logger  *slog.Logger
}

// NewMailClient creates a Gmail client on top of an authenticated HTTP client.
func NewMailClient(ctx context.Context, logger *slog.Logger, httpClient *http.Client, endpoint string) (*MailClient, error) {
	opts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	service, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}
	return &MailClient{service: service, logger: logger}, nil
}

// Search returns the ids of at most max messages matching query.
func (c *MailClient) Search(ctx context.Context, query string, max int) ([]string, error) {
	resp, err := c.service.Users.Messages.List(gmailUser).Context(ctx).Q(query).MaxResults(int64(max)).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to search messages: %w", err)
	}
	ids := make([]string, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		if m != nil && m.Id != "" {
			ids = append(ids, m.Id)
		}
	}
	c.logger.Debug("Searched mailbox", "query", query, "max", max, "hits", len(ids))
	return ids, nil
}

// Metadata fetches the Subject/From/Date headers and snippet of a message.
func (c *MailClient) Metadata(ctx context.Context, id string) (*gmail.Message, error) {
	msg, err := c.service.Users.Messages.Get(gmailUser, id).Context(ctx).
		Format("metadata").
		MetadataHeaders("Subject", "From", "Date").
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch message %s: %w", id, err)
	}
	return msg, nil
}

// Full fetches the complete payload of a message.
func (c *MailClient) Full(ctx context.Context, id string) (*gmail.Message, error) {
	msg, err := c.service.Users.Messages.Get(gmailUser, id).Context(ctx).Format("full").Do()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch message body %s: %w", id, err)
	}
	return msg, nil
}

// SearchMailInput are the mail tool arguments.
type SearchMailInput struct {
	Query         string `json:"query" description:"Gmail search query with optional filters like date or sender."`
	MaxResults    *int   `json:"max_results,omitempty" description:"Maximum number of emails to return (1-10, default 5)."`
	IncludeBody   bool   `json:"include_body,omitempty" description:"If true, return a truncated plain-text body."`
	BodyCharLimit *int   `json:"body_char_limit,omitempty" description:"Max characters of body to include when include_body=true (hard cap, default 800)."`
}

// ClampMaxResults bounds a requested result count to [1, 10].
func ClampMaxResults(n int) int {
	return max(minMaxResults, min(n, maxMaxResults))
}

// MailTool searches a mailbox for meeting related mail.
type MailTool struct {
	env *tools.Env
	// Endpoint overrides the Gmail API base URL.
	Endpoint string
}

func NewMailTool(env *tools.Env) *MailTool {
	return &MailTool{env: env}
}

func (t *MailTool) Name() string { return MailToolName }

func (t *MailTool) Description() string {
	return "Search Gmail for meeting-related emails based on a query string (e.g., meeting title) and return compact results."
}

func (t *MailTool) Params() []tools.Param {
	return []tools.Param{
		{Name: "query", Type: "string", Description: "Gmail search query with optional filters like date or sender.", Required: true},
		{Name: "max_results", Type: "integer", Description: "Maximum number of emails to return (1-10).", Default: defaultMaxResults},
		{Name: "include_body", Type: "boolean", Description: "If true, return a truncated plain-text body.", Default: false},
		{Name: "body_char_limit", Type: "integer", Description: "Max characters of body to include when include_body=true (hard cap).", Default: defaultBodyCharLimit},
	}
}

func (t *MailTool) Call(ctx context.Context, args json.RawMessage) string {
	var in SearchMailInput
	if err := tools.Decode(args, &in); err != nil {
		return tools.ErrorJSON(fmt.Sprintf("Error while accessing Gmail: %v", err))
	}
	out, err := t.Search(ctx, &in)
	if err != nil {
		return tools.ErrorJSON(err.Error())
	}
	return tools.Encode(out)
}

// Search runs the mail operation. The returned error text is the envelope message.
func (t *MailTool) Search(ctx context.Context, in *SearchMailInput) (*models.MailList, error) {
	if strings.TrimSpace(in.Query) == "" {
		return nil, tools.Failf("Error while accessing Gmail: query is required")
	}
	bundle, err := t.env.Resolver.Resolve(ctx, config.GmailTokenKey, credentials.ExplicitFields)
	if err != nil {
		if credentials.IsMissing(err) {
			return nil, tools.Failf("%s not found in environment", config.GmailTokenKey)
		}
		return nil, tools.Failf("Error while accessing Gmail: %v", err)
	}
	client, err := NewMailClient(ctx, t.env.Logger, bundle.Client(ctx, t.env.Timeout), t.Endpoint)
	if err != nil {
		return nil, tools.Failf("Error while accessing Gmail: %v", err)
	}

	maxResults := defaultMaxResults
	if in.MaxResults != nil {
		maxResults = *in.MaxResults
	}
	maxResults = ClampMaxResults(maxResults)
	bodyLimit := defaultBodyCharLimit
	if in.BodyCharLimit != nil {
		bodyLimit = *in.BodyCharLimit
	}

	ids, err := client.Search(ctx, in.Query, maxResults)
	if err != nil {
		return nil, tools.Failf("Error while accessing Gmail: %v", err)
	}

	items := make([]models.Mail, 0, len(ids))
	for _, id := range ids {
		msg, err := client.Metadata(ctx, id)
		if err != nil {
			return nil, tools.Failf("Error while accessing Gmail: %v", err)
		}
		record := toMail(id, msg)
		if in.IncludeBody {
			full, err := client.Full(ctx, id)
			if err != nil {
				return nil, tools.Failf("Error while accessing Gmail: %v", err)
			}
			body := truncate(ExtractPlainText(full.Payload), bodyLimit)
			record.Body = &body
		}
		items = append(items, record)
	}
	return &models.MailList{Count: len(items), Items: items}, nil
}

func toMail(id string, msg *gmail.Message) models.Mail {
	headers := map[string]string{}
	if msg.Payload != nil {
		for _, h := range msg.Payload.Headers {
			if h != nil {
				headers[h.Name] = h.Value
			}
		}
	}
	return models.Mail{
		ID:      id,
		Subject: headerOr(headers, "Subject", "No Subject"),
		From:    headerOr(headers, "From", "No Sender"),
		Date:    headerOr(headers, "Date", "No Date"),
		Snippet: truncate(msg.Snippet, snippetCharLimit),
	}
}

func headerOr(headers map[string]string, name, def string) string {
	if v, ok := headers[name]; ok {
		return v
	}
	return def
}
