package google

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"weekly/internal/config"
	"weekly/internal/tools"
)

// calendarToken is a GOOGLE_TKN value that needs no refresh.
const calendarToken = `{"token":"cal-token","refresh_token":"r","token_uri":"https://oauth2.example/token","client_id":"c","client_secret":"s","scopes":["https://www.googleapis.com/auth/calendar.readonly"]}`

// gmailToken is a GMAIL_TKN value that needs no refresh.
const gmailToken = `{"token":"mail-token","token_uri":"https://oauth2.example/token","client_id":"c","client_secret":"s","scopes":["https://www.googleapis.com/auth/gmail.readonly"]}`

// docToken is a GOOGLE_TKN_DOC value that needs no refresh.
const docToken = `{"access_token":"doc-token","refresh_token":"r","client_id":"c","client_secret":"s","scope":"https://www.googleapis.com/auth/documents https://www.googleapis.com/auth/drive"}`

func testEnv(t *testing.T, src config.Map) *tools.Env {
	t.Helper()
	env, err := tools.NewEnv(slog.New(slog.NewTextHandler(io.Discard, nil)), src)
	require.NoError(t, err)
	env.Timeout = 2 * time.Second
	return env
}

func newAPIServer(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func decodeResult(t *testing.T, out string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &m), out)
	return m
}
