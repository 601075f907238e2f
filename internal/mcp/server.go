package mcp

import (
	"context"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/hpungsan/keepsake/internal/config"
	"github.com/hpungsan/keepsake/internal/metrics"
	"github.com/hpungsan/keepsake/internal/store"
)

// KnownTypes lists all valid type names.
var KnownTypes = []string{"contributor", "capsule", "item", "merge"}

// toolFunc runs one tool and returns its payload or a coded error.
type toolFunc func(ctx context.Context, req mcp.CallToolRequest) (any, error)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) toolFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"contributor_create": {def: contributorCreateToolDef, handler: func(h *Handlers) toolFunc { return h.HandleContributorCreate }},
	"contributor_get":    {def: contributorGetToolDef, handler: func(h *Handlers) toolFunc { return h.HandleContributorGet }},
	"contributor_list":   {def: contributorListToolDef, handler: func(h *Handlers) toolFunc { return h.HandleContributorList }},
	"contributor_update": {def: contributorUpdateToolDef, handler: func(h *Handlers) toolFunc { return h.HandleContributorUpdate }},
	"contributor_delete": {def: contributorDeleteToolDef, handler: func(h *Handlers) toolFunc { return h.HandleContributorDelete }},
	"capsule_create":     {def: capsuleCreateToolDef, handler: func(h *Handlers) toolFunc { return h.HandleCapsuleCreate }},
	"capsule_get":        {def: capsuleGetToolDef, handler: func(h *Handlers) toolFunc { return h.HandleCapsuleGet }},
	"capsule_list":       {def: capsuleListToolDef, handler: func(h *Handlers) toolFunc { return h.HandleCapsuleList }},
	"capsule_patch":      {def: capsulePatchToolDef, handler: func(h *Handlers) toolFunc { return h.HandleCapsulePatch }},
	"capsule_delete":     {def: capsuleDeleteToolDef, handler: func(h *Handlers) toolFunc { return h.HandleCapsuleDelete }},
	"capsule_merge":      {def: capsuleMergeToolDef, handler: func(h *Handlers) toolFunc { return h.HandleCapsuleMerge }},
	"item_add":           {def: itemAddToolDef, handler: func(h *Handlers) toolFunc { return h.HandleItemAdd }},
	"item_get":           {def: itemGetToolDef, handler: func(h *Handlers) toolFunc { return h.HandleItemGet }},
	"item_list":          {def: itemListToolDef, handler: func(h *Handlers) toolFunc { return h.HandleItemList }},
	"item_patch":         {def: itemPatchToolDef, handler: func(h *Handlers) toolFunc { return h.HandleItemPatch }},
	"item_delete":        {def: itemDeleteToolDef, handler: func(h *Handlers) toolFunc { return h.HandleItemDelete }},
	"merge_list":         {def: mergeListToolDef, handler: func(h *Handlers) toolFunc { return h.HandleMergeList }},
}

// AllToolNames returns a list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
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

// ValidateDisabledTypes returns a list of unknown type names from the given list.
func ValidateDisabledTypes(names []string) []string {
	known := make(map[string]bool, len(KnownTypes))
	for _, t := range KnownTypes {
		known[t] = true
	}

	unknown := make([]string, 0)
	for _, name := range names {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// GetTypeForTool extracts the type name from a tool name.
// Tool names follow the pattern "type_action" (e.g., "capsule_patch" → "capsule").
func GetTypeForTool(toolName string) string {
	if idx := strings.Index(toolName, "_"); idx > 0 {
		return toolName[:idx]
	}
	return ""
}

// ExpandTypesToTools returns all tool names belonging to the given types.
func ExpandTypesToTools(types []string) []string {
	if len(types) == 0 {
		return nil
	}

	typeSet := make(map[string]bool, len(types))
	for _, t := range types {
		typeSet[t] = true
	}

	tools := make([]string, 0)
	for name := range toolRegistry {
		if typeSet[GetTypeForTool(name)] {
			tools = append(tools, name)
		}
	}
	return tools
}

// NewServer creates a new MCP server with Keepsake tools registered.
// Tools listed in cfg.DisabledTools or belonging to cfg.DisabledTypes
// are excluded from registration. m may be nil.
func NewServer(st *store.Store, cfg *config.Config, m *metrics.Metrics, logger zerolog.Logger, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"keepsake",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(st, cfg)

	disabled := make(map[string]bool)
	for _, tool := range ExpandTypesToTools(cfg.DisabledTypes) {
		disabled[tool] = true
	}
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, instrument(name, entry.handler(h), m, logger))
	}

	return s
}

// instrument adapts a toolFunc to the server's handler signature. Each call
// gets a logger tagged with the tool name, and its outcome is recorded in m.
func instrument(name string, fn toolFunc, m *metrics.Metrics, logger zerolog.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		ctx = logger.With().Str("tool", name).Logger().WithContext(ctx)

		out, err := fn(ctx, req)
		m.Observe(name, start, err)
		if err != nil {
			zerolog.Ctx(ctx).Debug().Err(err).Msg("tool call failed")
			return errorResult(err), nil
		}
		return successResult(out)
	}
}

// Run starts the MCP server using stdio transport.
func Run(st *store.Store, cfg *config.Config, logger zerolog.Logger, version string) error {
	s := NewServer(st, cfg, nil, logger, version)
	return server.ServeStdio(s)
}
