package google

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"google.golang.org/api/docs/v1"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"weekly/internal/config"
	"weekly/internal/credentials"
	"weekly/internal/tools"
)

const (
	DocumentToolName = "GoogleDocTool"

	documentErrorPrefix = "Error creating document: "
	documentLinkFormat  = "https://docs.google.com/document/d/%s/edit"
)

// DocumentClient creates and shares Google Docs.
type DocumentClient struct {
	docs   *docs.Service
	drive  *drive.Service
	logger *slog.Logger
}

// NewDocumentClient creates Docs and Drive services sharing one authenticated
// HTTP client.
func NewDocumentClient(ctx context.Context, logger *slog.Logger, httpClient *http.Client, endpoint string) (*DocumentClient, error) {
	opts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	docsService, err := docs.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create docs service: %w", err)
	}
	driveService, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}
	return &DocumentClient{docs: docsService, drive: driveService, logger: logger}, nil
}

// Create makes an empty document and returns its id.
func (c *DocumentClient) Create(ctx context.Context, title string) (string, error) {
	doc, err := c.docs.Documents.Create(&docs.Document{Title: title}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to create document: %w", err)
	}
	if doc.DocumentId == "" {
		return "", fmt.Errorf("document created without an id")
	}
	return doc.DocumentId, nil
}

// InsertText writes text at the start of the document body.
func (c *DocumentClient) InsertText(ctx context.Context, documentID, text string) error {
	req := &docs.BatchUpdateDocumentRequest{
		Requests: []*docs.Request{{
			InsertText: &docs.InsertTextRequest{
				Location: &docs.Location{Index: 1},
				Text:     text,
			},
		}},
	}
	if _, err := c.docs.Documents.BatchUpdate(documentID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to insert text: %w", err)
	}
	return nil
}

// ShareWithAnyone grants edit access to anyone holding the link.
func (c *DocumentClient) ShareWithAnyone(ctx context.Context, fileID string) error {
	perm := &drive.Permission{Type: "anyone", Role: "writer"}
	if _, err := c.drive.Permissions.Create(fileID, perm).Fields("id").Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to set permission: %w", err)
	}
	return nil
}

// PublishInput are the document tool arguments.
type PublishInput struct {
	MeetingSummary string `json:"meeting_summary" description:"The meeting summary text to insert into the document."`
}

// DocumentTool publishes a summary to a new shared document.
type DocumentTool struct {
	env *tools.Env
	// Endpoint overrides both the Docs and Drive API base URLs.
	Endpoint string
	// Now is overridable for tests.
	Now func() time.Time
}

func NewDocumentTool(env *tools.Env) *DocumentTool {
	return &DocumentTool{env: env, Now: time.Now}
}

func (t *DocumentTool) Name() string { return DocumentToolName }

func (t *DocumentTool) Description() string {
	return "Creates a Google Doc titled with the current weekday and date, inserts the meeting summary and returns an edit link."
}

func (t *DocumentTool) Params() []tools.Param {
	return []tools.Param{
		{Name: "meeting_summary", Type: "string", Description: "The meeting summary text to insert into the document.", Required: true},
	}
}

// Call returns the document link or a plain error string, never JSON.
func (t *DocumentTool) Call(ctx context.Context, args json.RawMessage) string {
	var in PublishInput
	if err := tools.Decode(args, &in); err != nil {
		return documentErrorPrefix + err.Error()
	}
	link, err := t.Publish(ctx, in.MeetingSummary)
	if err != nil {
		return documentErrorPrefix + err.Error()
	}
	return link
}

// Publish creates the document and returns its edit link.
func (t *DocumentTool) Publish(ctx context.Context, summary string) (string, error) {
	bundle, err := t.env.Resolver.Resolve(ctx, config.DocTokenKey, credentials.DocumentFields)
	if err != nil {
		return "", err
	}
	client, err := NewDocumentClient(ctx, t.env.Logger, bundle.Client(ctx, t.env.Timeout), t.Endpoint)
	if err != nil {
		return "", err
	}

	title := t.env.Normalizer.DocumentTitle(t.Now())
	id, err := client.Create(ctx, title)
	if err != nil {
		return "", err
	}
	if err := client.InsertText(ctx, id, summary+"\n"); err != nil {
		return "", err
	}
	// Anyone with the link may edit; kept for compatibility with existing readers.
	if err := client.ShareWithAnyone(ctx, id); err != nil {
		return "", err
	}
	link := DocumentLink(id)
	t.env.Logger.Info("Published document", "title", title, "link", link)
	return link, nil
}

// DocumentLink builds the canonical edit URL of a document.
func DocumentLink(id string) string {
	return fmt.Sprintf(documentLinkFormat, id)
}

// IsDocumentError reports whether a publish result is an error string.
func IsDocumentError(result string) bool {
	return strings.HasPrefix(result, documentErrorPrefix)
}
