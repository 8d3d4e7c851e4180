package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoTool struct{ name string }

func (e echoTool) Name() string        { return e.name }
func (e echoTool) Description() string { return "echoes its input" }
func (e echoTool) Params() []Param {
	return []Param{
		{Name: "text", Type: "string", Description: "text to echo", Required: true},
		{Name: "times", Type: "integer", Description: "repeat count", Default: 1},
	}
}
func (e echoTool) Call(_ context.Context, args json.RawMessage) string {
	var in struct {
		Text string `json:"text"`
	}
	if err := Decode(args, &in); err != nil {
		return ErrorJSON(err.Error())
	}
	return Encode(map[string]string{"text": in.Text})
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(echoTool{name: "b"}, echoTool{name: "a"})

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].Name())
	assert.Equal(t, "b", list[1].Name())

	out := r.Call(context.Background(), "a", json.RawMessage(`{"text":"<hi>"}`))
	assert.Equal(t, `{"text":"<hi>"}`, out)

	out = r.Call(context.Background(), "missing", nil)
	assert.JSONEq(t, `{"error":"unknown tool: missing"}`, out)

	out = r.Call(context.Background(), "a", json.RawMessage(`{"text":`))
	assert.Contains(t, out, "invalid arguments")
}

func TestSchema(t *testing.T) {
	s := Schema(echoTool{name: "echo"})
	assert.Equal(t, "echo", s["name"])
	params := s["parameters"].(map[string]any)
	assert.Equal(t, []string{"text"}, params["required"])
	props := params["properties"].(map[string]any)
	assert.Equal(t, 1, props["times"].(map[string]any)["default"])
	_, hasDefault := props["text"].(map[string]any)["default"]
	assert.False(t, hasDefault)
}

func TestDecodeEmpty(t *testing.T) {
	in := struct{ A int }{A: 7}
	require.NoError(t, Decode(nil, &in))
	require.NoError(t, Decode(json.RawMessage(" null "), &in))
	assert.Equal(t, 7, in.A)
}
