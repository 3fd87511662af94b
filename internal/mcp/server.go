// Package mcp exposes the rewriter as Model Context Protocol tools over stdio.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	rtdebug "runtime/debug"

	"github.com/google/jsonschema-go/jsonschema"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/proptrim/internal/config"
	"github.com/standardbeagle/proptrim/internal/debug"
	"github.com/standardbeagle/proptrim/internal/transform"
	"github.com/standardbeagle/proptrim/internal/version"
)

// engineCacheSize bounds the engines kept for distinct option overrides
const engineCacheSize = 32

var (
	errSourceRequired = errors.New("source is required")
	errPathsRequired  = errors.New("paths is required")
	errOutsideRoot    = errors.New("path is outside the project root")
)

// Server serves the rewrite tools. Every call starts from the base
// configuration; per-call arguments override a private copy of it.
type Server struct {
	cfg     *config.Config
	server  *mcp.Server
	engines *lru.Cache[string, *transform.Engine]
}

// NewServer validates cfg and registers the tools. A nil cfg means the
// defaults for the current directory.
func NewServer(cfg *config.Config) (*Server, error) {
	if cfg == nil {
		cfg = config.Default("")
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}

	engines, err := lru.New[string, *transform.Engine](engineCacheSize)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:     cfg,
		engines: engines,
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "proptrim",
			Version: version.Version,
		}, nil),
	}
	s.registerTools()
	return s, nil
}

func (s *Server) registerTools() {
	s.server.AddTool(&mcp.Tool{
		Name:        "info",
		Description: "Describe the proptrim tools, rewrite modes and configuration. Use 'info' for an overview or pass a tool name.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"tool": {
					Type:        "string",
					Description: "Tool name to describe (rewrite_prop_types, check_files, version)",
				},
			},
		},
	}, s.handleInfo)

	s.server.AddTool(&mcp.Tool{
		Name:        "rewrite_prop_types",
		Description: "Remove or environment-gate React propTypes declarations in one JavaScript/JSX/TypeScript module and return the rewritten text.",
		InputSchema: &jsonschema.Schema{
			Type:     "object",
			Required: []string{"source"},
			Properties: map[string]*jsonschema.Schema{
				"source": {
					Type:        "string",
					Description: "Module text to rewrite",
				},
				"filename": {
					Type:        "string",
					Description: "File name used to pick the grammar (.js, .jsx, .ts, .tsx ...) and for the source map",
				},
				"mode": {
					Type:        "string",
					Description: "remove, wrap or unsafe-wrap (default from configuration)",
					Enum:        []any{"remove", "wrap", "unsafe-wrap"},
				},
				"remove_import": {
					Type:        "boolean",
					Description: "Also drop imports used only by removed declarations (mode remove only)",
				},
				"libraries": {
					Type:        "array",
					Description: "Extra tracked import sources; /pattern/ is a regular expression",
					Items:       &jsonschema.Schema{Type: "string"},
				},
				"class_name_matchers": {
					Type:        "array",
					Description: "Regular expressions for extra component base classes",
					Items:       &jsonschema.Schema{Type: "string"},
				},
				"source_map": {
					Type:        "boolean",
					Description: "Return a source map when the text changed",
				},
			},
		},
	}, s.handleRewrite)

	s.server.AddTool(&mcp.Tool{
		Name:        "check_files",
		Description: "Report which files under the project root contain propTypes declarations that would be rewritten. Nothing is written.",
		InputSchema: &jsonschema.Schema{
			Type:     "object",
			Required: []string{"paths"},
			Properties: map[string]*jsonschema.Schema{
				"paths": {
					Type:        "array",
					Description: "Files or directories relative to the project root",
					Items:       &jsonschema.Schema{Type: "string"},
				},
				"mode": {
					Type:        "string",
					Description: "remove, wrap or unsafe-wrap (default from configuration)",
					Enum:        []any{"remove", "wrap", "unsafe-wrap"},
				},
			},
		},
	}, s.handleCheckFiles)
}

// engineFor returns an engine for cfg, reusing one built for identical options
func (s *Server) engineFor(cfg *config.Config) (*transform.Engine, error) {
	opts, err := cfg.Options()
	if err != nil {
		return nil, err
	}
	key := opts.Fingerprint()
	if e, ok := s.engines.Get(key); ok {
		return e, nil
	}
	e, err := transform.New(opts)
	if err != nil {
		return nil, err
	}
	s.engines.Add(key, e)
	return e, nil
}

// recoverFromPanic turns a panicking handler into an error result
func (s *Server) recoverFromPanic(operation string, handler func() (*mcp.CallToolResult, error)) (result *mcp.CallToolResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			debug.LogMCP("PANIC RECOVERED in %s: %v\n%s\n", operation, r, rtdebug.Stack())
			var m runtime.MemStats
			runtime.ReadMemStats(&m)
			debug.LogMCP("Memory stats - Alloc: %d KB, Sys: %d KB, NumGC: %d\n", m.Alloc/1024, m.Sys/1024, m.NumGC)
			result, err = createErrorResponse(operation, fmt.Errorf("internal error: %v", r))
		}
	}()

	result, err = handler()
	if err != nil {
		debug.LogMCP("Error in %s: %v\n", operation, err)
		return createErrorResponse(operation, err)
	}
	return result, nil
}

// Start serves the tools over stdin/stdout until ctx is cancelled or the
// client disconnects
func (s *Server) Start(ctx context.Context) error {
	debug.SetMCPMode(true)
	debug.LogMCP("Starting MCP server with stdio transport\n")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Connect serves the tools over an arbitrary transport
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.server.Connect(ctx, t, nil)
}

// GetHandlerForTesting returns a handler function for testing purposes
func (s *Server) GetHandlerForTesting(toolName string) func(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	switch toolName {
	case "info":
		return s.handleInfo
	case "rewrite_prop_types":
		return s.handleRewrite
	case "check_files":
		return s.handleCheckFiles
	default:
		return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return createErrorResponse("GetHandlerForTesting", fmt.Errorf("unknown tool: %s", toolName))
		}
	}
}
