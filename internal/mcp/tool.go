package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/viant/jsonrpc"
	"github.com/viant/mcp-protocol/schema"
	protoserver "github.com/viant/mcp-protocol/server"

	"weekly/internal/google"
	"weekly/internal/hubspot"
	"weekly/internal/models"
	"weekly/internal/notify"
	"weekly/internal/tools"
)

// DocumentLink is the MCP output schema of the document tool.
type DocumentLink struct {
	Link string `json:"link"`
}

func registerTools(base *protoserver.DefaultHandler, registry *tools.Registry) error {
	for _, t := range registry.List() {
		var err error
		switch t.Name() {
		case google.CalendarToolName:
			err = register[*google.FetchMeetingsInput, *models.MeetingList](base, t)
		case google.MailToolName:
			err = register[*google.SearchMailInput, *models.MailList](base, t)
		case hubspot.ToolName:
			err = register[*hubspot.LookupInput, *models.CRMResult](base, t)
		case google.DocumentToolName:
			err = register[*google.PublishInput, *DocumentLink](base, t)
		case notify.ToolName:
			err = register[*notify.NotifyInput, *models.Delivery](base, t)
		default:
			err = fmt.Errorf("no input schema for tool %s", t.Name())
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// register exposes t with I as its input schema. The typed input is
// re-encoded and passed through the adapter's uniform Call contract.
func register[I any, O any](base *protoserver.DefaultHandler, t tools.Tool) error {
	return protoserver.RegisterTool[I, O](base.Registry, t.Name(), t.Description(), func(ctx context.Context, in I) (*schema.CallToolResult, *jsonrpc.Error) {
		args, err := json.Marshal(in)
		if err != nil {
			return buildErrorResult(err.Error())
		}
		return buildTextResult(t.Call(ctx, args)), nil
	})
}

func buildErrorResult(message string) (*schema.CallToolResult, *jsonrpc.Error) {
	return nil, jsonrpc.NewError(jsonrpc.InvalidParams, message, nil)
}

func buildTextResult(text string) *schema.CallToolResult {
	return &schema.CallToolResult{Content: []schema.CallToolResultContentElem{{Type: "text", Text: text}}}
}
