package hubspot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"weekly/internal/models"
)

// DefaultBaseURL is the public HubSpot API root.
const DefaultBaseURL = "https://api.hubapi.com"

// ContactProperties are requested on every contact lookup.
var ContactProperties = []string{
	"firstname", "lastname", "email", "phone", "lifecyclestage",
	"linkedinbio", "hs_linkedinid", "hs_linkedinbio",
}

var contactAssociations = []string{"companies", "deals", "meetings"}

// ErrNotFound is returned when HubSpot reports the object does not exist.
var ErrNotFound = errors.New("object not found")

// APIError is a non-2xx HubSpot response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("hubspot returned status %d", e.Status)
	}
	return fmt.Sprintf("hubspot returned status %d: %s", e.Status, e.Message)
}

// Association is one associated object id.
type Association struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// Record is a CRM object with its properties and associations.
type Record struct {
	ID           string            `json:"id"`
	Properties   models.Properties `json:"properties"`
	Associations map[string]struct {
		Results []Association `json:"results"`
	} `json:"associations"`
}

// Associated returns the ids associated under kind, in response order.
func (r *Record) Associated(kind string) []string {
	group, ok := r.Associations[kind]
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(group.Results))
	for _, a := range group.Results {
		if a.ID != "" {
			ids = append(ids, a.ID)
		}
	}
	return ids
}

type searchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type searchResponse struct {
	Total   int      `json:"total"`
	Results []Record `json:"results"`
}

// Client talks to the HubSpot CRM v3 object endpoints.
type Client struct {
	http    *http.Client
	baseURL string
	logger  *slog.Logger
}

// NewClient wraps an authenticated HTTP client. An empty baseURL selects
// DefaultBaseURL.
func NewClient(logger *slog.Logger, httpClient *http.Client, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{http: httpClient, baseURL: strings.TrimRight(baseURL, "/"), logger: logger}
}

// SearchMeeting returns the properties of the first meeting matching query,
// or ErrNotFound when there is none.
func (c *Client) SearchMeeting(ctx context.Context, query string) (models.Properties, error) {
	var resp searchResponse
	if err := c.do(ctx, http.MethodPost, "/crm/v3/objects/meetings/search", nil, searchRequest{Query: query, Limit: 1}, &resp); err != nil {
		return nil, fmt.Errorf("failed to search meetings: %w", err)
	}
	if len(resp.Results) == 0 {
		return nil, ErrNotFound
	}
	return resp.Results[0].Properties, nil
}

// ContactByEmail fetches a contact using email as the id property.
func (c *Client) ContactByEmail(ctx context.Context, email string) (*Record, error) {
	q := url.Values{}
	q.Set("idProperty", "email")
	q.Set("properties", strings.Join(ContactProperties, ","))
	q.Set("associations", strings.Join(contactAssociations, ","))
	var rec Record
	if err := c.do(ctx, http.MethodGet, "/crm/v3/objects/contacts/"+url.PathEscape(email), q, nil, &rec); err != nil {
		return nil, fmt.Errorf("failed to fetch contact: %w", err)
	}
	return &rec, nil
}

// Object fetches one object of objectType by its HubSpot id.
func (c *Client) Object(ctx context.Context, objectType, id string) (models.Properties, error) {
	var rec Record
	if err := c.do(ctx, http.MethodGet, "/crm/v3/objects/"+objectType+"/"+url.PathEscape(id), nil, nil, &rec); err != nil {
		return nil, fmt.Errorf("failed to fetch %s %s: %w", objectType, id, err)
	}
	return rec.Properties, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	c.logger.Debug("HubSpot request", "method", method, "path", path, "status", resp.StatusCode)
	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var payload struct {
			Message string `json:"message"`
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = json.Unmarshal(data, &payload)
		return &APIError{Status: resp.StatusCode, Message: payload.Message}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
