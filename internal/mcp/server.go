package mcp

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/viant/mcp-protocol/schema"
	mcpsrv "github.com/viant/mcp/server"

	"weekly/internal/tools"
)

const (
	serverName    = "weekly"
	streamableURI = "/mcp"
)

// NewServer builds an MCP server exposing every tool in registry.
func NewServer(registry *tools.Registry, addr, version string) (*mcpsrv.Server, error) {
	options := []mcpsrv.Option{
		mcpsrv.WithImplementation(schema.Implementation{Name: serverName, Version: version}),
		mcpsrv.WithNewHandler(NewHandler(registry)),
		mcpsrv.WithEndpointAddress(addr),
		mcpsrv.WithRootRedirect(true),
		mcpsrv.WithStreamableURI(streamableURI),
	}
	server, err := mcpsrv.New(options...)
	if err != nil {
		return nil, fmt.Errorf("failed to create mcp server: %w", err)
	}
	return server, nil
}

// Serve runs the streamable HTTP endpoint on addr until it fails.
func Serve(ctx context.Context, logger *slog.Logger, registry *tools.Registry, addr, version string) error {
	if addr == "" {
		return fmt.Errorf("listen address is required")
	}
	server, err := NewServer(registry, addr, version)
	if err != nil {
		return err
	}
	server.UseStreamableHTTP(true)
	logger.Info("Serving MCP", "addr", addr, "path", streamableURI, "tools", len(registry.List()))
	if err := server.HTTP(ctx, addr).ListenAndServe(); err != nil {
		return fmt.Errorf("mcp server stopped: %w", err)
	}
	return nil
}
