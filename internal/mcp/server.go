// Package mcp exposes Quire operations as MCP tools over stdio.
package mcp

import (
	"context"
	"slices"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/quire/internal/codec"
	"github.com/hpungsan/quire/internal/ops"
)

const transformTool = "transform_run"

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	transformTool: {
		def:     transformToolDef(kindNames(nil)),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTransform },
	},
	"pages_parse": {
		def:     pagesToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleParsePages },
	},
	"table_preview": {
		def:     previewToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePreview },
	},
	"pdf_preview": {
		def:     pdfPreviewToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePDFPreview },
	},
	"jobs_list": {
		def:     listToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleList },
	},
	"job_fetch": {
		def:     fetchToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleFetch },
	},
	"jobs_purge": {
		def:     purgeToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePurge },
	},
	"jobs_export": {
		def:     exportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleExport },
	},
}

// historyTools need the job database.
var historyTools = []string{"jobs_list", "job_fetch", "jobs_purge", "jobs_export"}

// AllToolNames returns all valid tool names, sorted.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// ValidateDisabledKinds returns the entries that are not transform kinds.
func ValidateDisabledKinds(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, err := codec.ParseKind(name); err != nil {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// NewServer creates an MCP server with Quire tools registered.
// Tools in cfg.DisabledTools are skipped, as are the job tools when history
// is off. transform_run only advertises enabled kinds and is dropped when
// none are left.
func NewServer(deps *ops.Deps, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"quire",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(deps)

	disabled := make(map[string]bool)
	if deps.Config != nil {
		for _, name := range deps.Config.DisabledTools {
			disabled[name] = true
		}
	}
	if deps.DB == nil {
		for _, name := range historyTools {
			disabled[name] = true
		}
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		def := entry.def
		if name == transformTool && deps.Codecs != nil {
			kinds := kindNames(deps.Codecs.Enabled)
			if len(kinds) == 0 {
				continue
			}
			def = transformToolDef(kinds)
		}
		s.AddTool(def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(deps *ops.Deps, version string) error {
	return server.ServeStdio(NewServer(deps, version))
}

// ToolHandlerFunc is the signature for tool handlers.
type ToolHandlerFunc func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
