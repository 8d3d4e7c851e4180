package hubspot

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weekly/internal/config"
	"weekly/internal/tools"
)

type fakeCRM struct {
	mu            sync.Mutex
	meetingStatus int
	meetings      []map[string]any
	contactStatus int
	contact       map[string]any
	objects       map[string]map[string]any
	failObjects   map[string]bool
	fetched       []string
	contactQuery  map[string]string
	searchBody    map[string]any
}

func (f *fakeCRM) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r.Header.Get("Authorization") != "Bearer hs-token" {
		http.Error(w, `{"message":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/crm/v3/objects/meetings/search":
		_ = json.NewDecoder(r.Body).Decode(&f.searchBody)
		if f.meetingStatus != 0 {
			http.Error(w, `{"message":"search unavailable"}`, f.meetingStatus)
			return
		}
		writeJSON(w, map[string]any{"total": len(f.meetings), "results": f.meetings})
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/crm/v3/objects/contacts/"):
		q := r.URL.Query()
		f.contactQuery = map[string]string{
			"id":           strings.TrimPrefix(r.URL.Path, "/crm/v3/objects/contacts/"),
			"idProperty":   q.Get("idProperty"),
			"properties":   q.Get("properties"),
			"associations": q.Get("associations"),
		}
		if f.contactStatus != 0 {
			http.Error(w, `{"message":"contact lookup failed"}`, f.contactStatus)
			return
		}
		if f.contact == nil {
			http.Error(w, `{"message":"resource not found"}`, http.StatusNotFound)
			return
		}
		writeJSON(w, f.contact)
	case r.Method == http.MethodGet:
		key := strings.TrimPrefix(r.URL.Path, "/crm/v3/objects/")
		f.fetched = append(f.fetched, key)
		if f.failObjects[key] {
			http.Error(w, `{"message":"internal"}`, http.StatusInternalServerError)
			return
		}
		obj, ok := f.objects[key]
		if !ok {
			http.Error(w, `{"message":"resource not found"}`, http.StatusNotFound)
			return
		}
		writeJSON(w, map[string]any{"id": key, "properties": obj})
	default:
		http.NotFound(w, r)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func assoc(ids ...string) map[string]any {
	results := make([]map[string]string, 0, len(ids))
	for _, id := range ids {
		results = append(results, map[string]string{"id": id, "type": "contact_to_x"})
	}
	return map[string]any{"results": results}
}

func newTool(t *testing.T, fake *fakeCRM, src config.Map) *Tool {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	if src == nil {
		src = config.Map{config.HubSpotTokenKey: "hs-token"}
	}
	env, err := tools.NewEnv(slog.New(slog.NewTextHandler(io.Discard, nil)), src)
	require.NoError(t, err)
	env.Timeout = 2 * time.Second
	tool := NewTool(env)
	tool.BaseURL = srv.URL
	return tool
}

func call(t *testing.T, tool *Tool, title, email string) string {
	t.Helper()
	args, err := json.Marshal(map[string]string{"meeting_title": title, "email": email})
	require.NoError(t, err)
	return tool.Call(context.Background(), args)
}

func TestLookupFullResult(t *testing.T) {
	fake := &fakeCRM{
		meetings: []map[string]any{{"id": "m1", "properties": map[string]any{"hs_meeting_title": "Q1 sync"}}},
		contact: map[string]any{
			"id":         "c1",
			"properties": map[string]any{"email": "ana@example.com", "firstname": "Ana", "phone": nil},
			"associations": map[string]any{
				"companies": assoc("co1"),
				"deals":     assoc("d1", "d2"),
			},
		},
		objects: map[string]map[string]any{
			"companies/co1": {"name": "Acme"},
			"deals/d1":      {"dealname": "Renewal"},
			"deals/d2":      {"dealname": "Upsell"},
		},
	}
	tool := newTool(t, fake, nil)

	out := call(t, tool, "Q1 sync", "ana@example.com")
	assert.JSONEq(t, `{
		"found": true,
		"meeting": {"hs_meeting_title": "Q1 sync"},
		"contact": {"email": "ana@example.com", "firstname": "Ana", "phone": null},
		"companies": [{"name": "Acme"}],
		"deals": [{"dealname": "Renewal"}, {"dealname": "Upsell"}]
	}`, out)

	assert.Equal(t, "Q1 sync", fake.searchBody["query"])
	assert.EqualValues(t, 1, fake.searchBody["limit"])
	assert.Equal(t, "ana@example.com", fake.contactQuery["id"])
	assert.Equal(t, "email", fake.contactQuery["idProperty"])
	assert.Equal(t, strings.Join(ContactProperties, ","), fake.contactQuery["properties"])
	assert.Equal(t, "companies,deals,meetings", fake.contactQuery["associations"])
}

func TestLookupMeetingSearchFailsContactFound(t *testing.T) {
	fake := &fakeCRM{
		meetingStatus: http.StatusTooManyRequests,
		contact:       map[string]any{"id": "c1", "properties": map[string]any{"email": "ana@example.com"}},
	}
	tool := newTool(t, fake, nil)

	assert.JSONEq(t, `{
		"found": true,
		"meeting": {},
		"contact": {"email": "ana@example.com"},
		"companies": [],
		"deals": []
	}`, call(t, tool, "Q1 sync", "ana@example.com"))
}

func TestLookupNothingFound(t *testing.T) {
	t.Run("all empty", func(t *testing.T) {
		tool := newTool(t, &fakeCRM{}, nil)
		assert.Equal(t, `{"found":false,"reason":"No HubSpot data found"}`, strings.TrimSpace(call(t, tool, "Q1 sync", "nobody@example.com")))
	})

	t.Run("all fail", func(t *testing.T) {
		tool := newTool(t, &fakeCRM{meetingStatus: http.StatusInternalServerError, contactStatus: http.StatusBadGateway}, nil)
		assert.Equal(t, `{"found":false,"reason":"No HubSpot data found"}`, strings.TrimSpace(call(t, tool, "Q1 sync", "ana@example.com")))
	})

	t.Run("meeting without properties", func(t *testing.T) {
		tool := newTool(t, &fakeCRM{meetings: []map[string]any{{"id": "m1", "properties": map[string]any{}}}}, nil)
		assert.JSONEq(t, `{"found":false,"reason":"No HubSpot data found"}`, call(t, tool, "Q1 sync", "ana@example.com"))
	})
}

func TestLookupSkipsFailedItemsAndCaps(t *testing.T) {
	fake := &fakeCRM{
		contact: map[string]any{
			"id":         "c1",
			"properties": map[string]any{"email": "ana@example.com"},
			"associations": map[string]any{
				"companies": assoc("co1", "co2", "co3", "co4", "co5"),
				"deals":     assoc("d1", "d2"),
			},
		},
		objects: map[string]map[string]any{
			"companies/co1": {"name": "One"},
			"companies/co3": {"name": "Three"},
			"companies/co4": {"name": "Four"},
			"deals/d2":      {"dealname": "Two"},
		},
		failObjects: map[string]bool{"companies/co2": true},
	}
	tool := newTool(t, fake, nil)

	result := tool.Lookup(context.Background(), &LookupInput{MeetingTitle: "Q1 sync", Email: "ana@example.com"})
	require.True(t, result.Found)
	require.Len(t, result.Companies, 2)
	assert.Equal(t, "One", result.Companies[0]["name"])
	assert.Equal(t, "Three", result.Companies[1]["name"])
	require.Len(t, result.Deals, 1)
	assert.Equal(t, "Two", result.Deals[0]["dealname"])

	assert.Equal(t, []string{"companies/co1", "companies/co2", "companies/co3", "deals/d1", "deals/d2"}, fake.fetched)
}

func TestLookupAuthAndInput(t *testing.T) {
	t.Run("missing token", func(t *testing.T) {
		tool := newTool(t, &fakeCRM{}, config.Map{})
		var out map[string]any
		require.NoError(t, json.Unmarshal([]byte(call(t, tool, "Q1 sync", "ana@example.com")), &out))
		assert.Equal(t, false, out["found"])
		assert.True(t, strings.HasPrefix(out["reason"].(string), "Auth error: "), out["reason"])
		assert.NotContains(t, out, "meeting")
	})

	t.Run("rejected token", func(t *testing.T) {
		tool := newTool(t, &fakeCRM{}, config.Map{config.HubSpotTokenKey: "wrong"})
		assert.JSONEq(t, `{"found":false,"reason":"No HubSpot data found"}`, call(t, tool, "Q1 sync", "ana@example.com"))
	})

	t.Run("missing email", func(t *testing.T) {
		tool := newTool(t, &fakeCRM{}, nil)
		out := tool.Call(context.Background(), json.RawMessage(`{"meeting_title":"Q1 sync"}`))
		assert.Contains(t, out, `"found":false`)
		assert.Contains(t, out, "email are required")
	})

	t.Run("malformed arguments", func(t *testing.T) {
		tool := newTool(t, &fakeCRM{}, nil)
		out := tool.Call(context.Background(), json.RawMessage(`{"email":7}`))
		assert.Contains(t, out, `"found":false`)
		assert.Contains(t, out, "invalid arguments")
	})
}

func TestResultOf(t *testing.T) {
	assert.Equal(t, Found, resultOf("x", nil).Status)
	assert.Equal(t, NotFound, resultOf("", ErrNotFound).Status)
	assert.Equal(t, Failed, resultOf("", &APIError{Status: 500}).Status)
	assert.Equal(t, "", resultOf("ignored", &APIError{Status: 500}).Value)
}
