package mcp

import (
	"context"
	"fmt"

	"github.com/viant/jsonrpc/transport"
	protoclient "github.com/viant/mcp-protocol/client"
	"github.com/viant/mcp-protocol/logger"
	protoserver "github.com/viant/mcp-protocol/server"

	"weekly/internal/tools"
)

// Handler exposes the adapter registry over MCP.
type Handler struct {
	*protoserver.DefaultHandler
	registry *tools.Registry
}

// NewHandler returns the per-session handler factory for the server.
func NewHandler(registry *tools.Registry) protoserver.NewHandler {
	return func(_ context.Context, notifier transport.Notifier, logger logger.Logger, clientOperation protoclient.Operations) (protoserver.Handler, error) {
		base := protoserver.NewDefaultHandler(notifier, logger, clientOperation)
		ret := &Handler{DefaultHandler: base, registry: registry}
		if err := registerTools(base, registry); err != nil {
			return nil, fmt.Errorf("failed to register tools: %w", err)
		}
		return ret, nil
	}
}
