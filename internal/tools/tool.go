package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// Param describes one tool argument.
type Param struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Required    bool   `json:"required,omitempty"`
	Default     any    `json:"default,omitempty"`
}

// Tool is the contract every adapter implements. Call never fails: problems
// are reported inside the returned text.
type Tool interface {
	Name() string
	Description() string
	Params() []Param
	Call(ctx context.Context, args json.RawMessage) string
}

// Registry holds tools by name.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool)}
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

// Register adds t, replacing any tool with the same name.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

func (r *Registry) Lookup(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns the registered tools sorted by name.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Call invokes the named tool.
func (r *Registry) Call(ctx context.Context, name string, args json.RawMessage) string {
	t, ok := r.Lookup(name)
	if !ok {
		return ErrorJSON(fmt.Sprintf("unknown tool: %s", name))
	}
	return t.Call(ctx, args)
}

// Schema renders the tool's parameters as a JSON Schema object.
func Schema(t Tool) map[string]any {
	props := map[string]any{}
	required := []string{}
	for _, p := range t.Params() {
		prop := map[string]any{"type": p.Type, "description": p.Description}
		if p.Default != nil {
			prop["default"] = p.Default
		}
		props[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return map[string]any{
		"name":        t.Name(),
		"description": t.Description(),
		"parameters": map[string]any{
			"type":       "object",
			"properties": props,
			"required":   required,
		},
	}
}

// Decode unmarshals tool arguments into v. Empty and null arguments leave v untouched.
func Decode(args json.RawMessage, v any) error {
	trimmed := bytes.TrimSpace(args)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(trimmed, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

// Encode renders v as compact JSON without HTML escaping.
func Encode(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return ErrorJSON(fmt.Sprintf("failed to encode result: %v", err))
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n"))
}

// ErrorJSON renders the error envelope.
func ErrorJSON(message string) string {
	b, _ := json.Marshal(map[string]string{"error": message})
	return string(b)
}

// Failure is an error whose text is the envelope message as shown to the caller.
type Failure struct {
	Msg string
}

func (f *Failure) Error() string { return f.Msg }

// Failf formats a Failure.
func Failf(format string, args ...any) error {
	return &Failure{Msg: fmt.Sprintf(format, args...)}
}
