package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTimeWindow(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	w, err := NewTimeWindow(time.Time{}, time.Time{}, now)
	require.NoError(t, err)
	assert.Equal(t, now, w.Start)
	assert.Equal(t, 7*24*time.Hour, w.End.Sub(w.Start))

	start := now.Add(24 * time.Hour)
	w, err = NewTimeWindow(start, time.Time{}, now)
	require.NoError(t, err)
	assert.Equal(t, start.Add(DefaultWindowSpan), w.End)

	_, err = NewTimeWindow(start, now, now)
	assert.Error(t, err)

	w, err = NewTimeWindow(start, start, now)
	require.NoError(t, err)
	assert.True(t, w.Start.Equal(w.End))
}

func TestCRMResultJSON(t *testing.T) {
	empty := NewCRMResult(nil, Properties{}, nil, []Properties{})
	b, err := json.Marshal(empty)
	require.NoError(t, err)
	assert.JSONEq(t, `{"found":false,"reason":"No HubSpot data found"}`, string(b))

	hit := NewCRMResult(nil, Properties{"email": "a@example.com"}, nil, nil)
	b, err = json.Marshal(hit)
	require.NoError(t, err)
	assert.JSONEq(t, `{"found":true,"meeting":{},"contact":{"email":"a@example.com"},"companies":[],"deals":[]}`, string(b))
}

func TestMailBodyOmittedUnlessSet(t *testing.T) {
	b, err := json.Marshal(Mail{ID: "1"})
	require.NoError(t, err)
	assert.NotContains(t, string(b), "body")

	body := ""
	b, err = json.Marshal(Mail{ID: "1", Body: &body})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"body":""`)
}

func TestStringPtr(t *testing.T) {
	assert.Nil(t, StringPtr(""))
	assert.Equal(t, "x", *StringPtr("x"))
}
