package mcp

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/meltforce/mesoplan/internal/expand"
)

// New creates an MCP server with all tools and resources registered.
func New(ds DataSource, opts expand.Options, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("Mesoplan", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("Mesoplan training periodization server. Browse mesocycle templates, inspect expanded plans and student macrocycles, and preview how a template expands. All tools are read-only."),
	)

	h := &handlers{ds: ds, expand: opts, log: log}

	// Tools
	s.AddTools(
		server.ServerTool{Tool: toolListMesocycles, Handler: h.listMesocycles},
		server.ServerTool{Tool: toolGetMesocycle, Handler: h.getMesocycle},
		server.ServerTool{Tool: toolGetMacrocycle, Handler: h.getMacrocycle},
		server.ServerTool{Tool: toolListStudentPlans, Handler: h.listStudentPlans},
		server.ServerTool{Tool: toolPreviewExpansion, Handler: h.previewExpansion},
	)

	// Resources
	s.AddResources(
		server.ServerResource{Resource: resStatusTransitions, Handler: h.statusTransitions},
		server.ServerResource{Resource: resTemplates, Handler: h.templates},
	)

	return s
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	ds     DataSource
	expand expand.Options
	log    *slog.Logger
}

// --- Resource definitions ---

var resStatusTransitions = mcp.NewResource(
	"mesoplan://status_transitions",
	"Status Transitions",
	mcp.WithResourceDescription("The mesocycle lifecycle: every status and the statuses reachable from it"),
	mcp.WithMIMEType("application/json"),
)

var resTemplates = mcp.NewResource(
	"mesoplan://templates",
	"Templates",
	mcp.WithResourceDescription("All unassigned mesocycle templates that are not archived"),
	mcp.WithMIMEType("application/json"),
)
