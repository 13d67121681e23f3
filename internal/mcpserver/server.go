// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes Raido export tools for LLM/editor integration via stdio
// transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/halvard/raido/internal/export"
	"github.com/halvard/raido/internal/exportlog"
)

// Server wraps the MCP server with Raido tools.
type Server struct {
	mcp    *server.MCPServer
	exp    *export.Exporter
	log    exportlog.Log // may be nil
	routes []export.Route
}

// New creates a new MCP server with all export tools registered.
func New(exp *export.Exporter, log exportlog.Log, routes []export.Route) *Server {
	s := &Server{exp: exp, log: log, routes: routes}

	s.mcp = server.NewMCPServer(
		"Raido",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("export_note",
		mcp.WithDescription("Export a Markdown document to the content service: "+
			"uploads embedded images, rewrites their references in the source "+
			"document, and submits the mapped payload to the route's endpoint. "+
			"Read the frontmatter contract first via the raido://frontmatter-contract "+
			"resource to know which metadata fields a route requires."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the document (e.g. posts/note.md)")),
		mcp.WithString("route", mcp.Required(), mcp.Description("Name of the configured export route")),
		mcp.WithBoolean("force", mcp.Description("Export even when the content is unchanged since the last export")),
	), s.exportNote)

	s.mcp.AddTool(mcp.NewTool("list_routes",
		mcp.WithDescription("List the configured export routes with their endpoints and field mappings."),
	), s.listRoutes)

	s.mcp.AddTool(mcp.NewTool("get_frontmatter_contract",
		mcp.WithDescription("Returns the document format the export pipeline expects. "+
			"Call this before creating documents meant for export."),
	), s.getFrontmatterContract)

	s.mcp.AddTool(mcp.NewTool("export_history",
		mcp.WithDescription("Show recent export attempts, newest first."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of entries (default 50)")),
	), s.exportHistory)

	// Resource: frontmatter contract for exportable documents.
	s.mcp.AddResource(
		mcp.NewResource("raido://frontmatter-contract", "Frontmatter Contract",
			mcp.WithResourceDescription("Document format expected by the export pipeline."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContractResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) exportNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	routeName, err := req.RequireString("route")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	force := false
	if v, fErr := req.RequireBool("force"); fErr == nil {
		force = v
	}

	route, ok := s.findRoute(routeName)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("unknown route: %s", routeName)), nil
	}

	res, err := s.exp.Export(ctx, path, route, export.Options{Force: force})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("export failed: %v", err)), nil
	}

	out := map[string]any{"result": res}
	if len(res.Failed) > 0 {
		out["failed_images"] = res.FailedPaths()
	}
	data, _ := json.Marshal(out)
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) listRoutes(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(map[string]any{"routes": s.routes})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) exportHistory(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.log == nil {
		return mcp.NewToolResultText(`{"exports":[]}`), nil
	}

	limit := 0
	if v, err := req.RequireFloat("limit"); err == nil {
		limit = int(v)
	}

	rows, err := s.log.History(limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("history failed: %v", err)), nil
	}
	if rows == nil {
		rows = []exportlog.Row{}
	}
	data, _ := json.Marshal(map[string]any{"exports": rows})
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) getFrontmatterContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(FrontmatterContract), nil
}

func (s *Server) readContractResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "raido://frontmatter-contract",
			MIMEType: "text/markdown",
			Text:     FrontmatterContract,
		},
	}, nil
}

func (s *Server) findRoute(name string) (export.Route, bool) {
	for _, r := range s.routes {
		if r.Name == name {
			return r, true
		}
	}
	return export.Route{}, false
}
