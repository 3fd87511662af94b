package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/proptrim/internal/debug"
	"github.com/standardbeagle/proptrim/internal/runner"
	"github.com/standardbeagle/proptrim/internal/splice"
	"github.com/standardbeagle/proptrim/internal/transform"
	"github.com/standardbeagle/proptrim/internal/version"
)

// InfoParams selects the topic of the info tool
type InfoParams struct {
	Tool string `json:"tool,omitempty"`
}

// RewriteParams are the arguments of rewrite_prop_types. Unset fields keep
// the configured value.
type RewriteParams struct {
	Source            string   `json:"source"`
	Filename          string   `json:"filename,omitempty"`
	Mode              string   `json:"mode,omitempty"`
	RemoveImport      *bool    `json:"remove_import,omitempty"`
	Libraries         []string `json:"libraries,omitempty"`
	ClassNameMatchers []string `json:"class_name_matchers,omitempty"`
	SourceMap         bool     `json:"source_map,omitempty"`
}

// CheckParams are the arguments of check_files
type CheckParams struct {
	Paths []string `json:"paths"`
	Mode  string   `json:"mode,omitempty"`
}

// SiteInfo describes one located declaration
type SiteInfo struct {
	Kind      string `json:"kind"`
	Component string `json:"component,omitempty"`
	Line      int    `json:"line"`
	Column    int    `json:"column"`
	Action    string `json:"action"`
}

// RewriteResponse is the result of rewrite_prop_types. A module that does not
// parse comes back unchanged with ParseFailed set.
type RewriteResponse struct {
	Success        bool              `json:"success"`
	Changed        bool              `json:"changed"`
	Code           string            `json:"code"`
	Map            *splice.SourceMap `json:"map,omitempty"`
	Sites          []SiteInfo        `json:"sites,omitempty"`
	RemovedImports []string          `json:"removed_imports,omitempty"`
	ParseFailed    bool              `json:"parse_failed,omitempty"`
	ParseError     string            `json:"parse_error,omitempty"`
}

// FileReport is one file of a check_files response
type FileReport struct {
	Path    string     `json:"path"`
	Outcome string     `json:"outcome"`
	Sites   []SiteInfo `json:"sites,omitempty"`
	Reason  string     `json:"reason,omitempty"`
	Error   string     `json:"error,omitempty"`
}

// CheckResponse summarizes a check_files run. Unchanged files are counted but
// not listed.
type CheckResponse struct {
	Success     bool         `json:"success"`
	Changed     int          `json:"changed"`
	Unchanged   int          `json:"unchanged"`
	Skipped     int          `json:"skipped"`
	ParseFailed int          `json:"parse_failed"`
	Errors      int          `json:"errors"`
	Files       []FileReport `json:"files"`
	DurationMs  int64        `json:"duration_ms"`
}

func decodeArgs(req *mcp.CallToolRequest, v interface{}) error {
	if req == nil || req.Params == nil || len(req.Params.Arguments) == 0 {
		return nil
	}
	if err := json.Unmarshal(req.Params.Arguments, v); err != nil {
		return fmt.Errorf("invalid parameters: %w", err)
	}
	return nil
}

func (s *Server) handleInfo(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.recoverFromPanic("info", func() (*mcp.CallToolResult, error) {
		var params InfoParams
		if err := decodeArgs(req, &params); err != nil {
			return nil, err
		}

		switch tool := strings.ToLower(strings.TrimSpace(params.Tool)); tool {
		case "":
			return createJSONResponse(map[string]interface{}{
				"name":        "proptrim",
				"description": "Removes or environment-gates React propTypes declarations in JavaScript-family modules.",
				"tools": map[string]string{
					"info":               "This overview, or details for one tool",
					"rewrite_prop_types": "Rewrite one module given as text",
					"check_files":        "List project files that would be rewritten",
				},
				"modes": map[string]string{
					string(transform.ModeRemove):     "Delete every declaration",
					string(transform.ModeWrap):       "Keep the assignment and gate its value on the environment check",
					string(transform.ModeUnsafeWrap): "Gate the whole assignment on the environment check",
				},
				"configuration": s.configSummary(),
			})
		case "rewrite_prop_types":
			return createJSONResponse(map[string]interface{}{
				"name":        "rewrite_prop_types",
				"description": "Rewrite the propTypes declarations of one module. Files that do not parse come back unchanged with parse_failed set.",
				"parameters": map[string]string{
					"source":              "Module text (required)",
					"filename":            "Name used to choose the grammar; defaults to module.jsx",
					"mode":                "remove | wrap | unsafe-wrap",
					"remove_import":       "Drop imports only the removed declarations used; requires mode remove",
					"libraries":           "Extra tracked import sources, /pattern/ for a regular expression",
					"class_name_matchers": "Regular expressions naming extra component base classes",
					"source_map":          "Include a source map in the response",
				},
				"example": map[string]interface{}{
					"source":   "Button.propTypes = { label: PropTypes.string };",
					"filename": "Button.jsx",
					"mode":     "wrap",
				},
			})
		case "check_files":
			return createJSONResponse(map[string]interface{}{
				"name":        "check_files",
				"description": "Run the rewriter over project files without writing. Honors include, exclude and ignore_filenames.",
				"parameters": map[string]string{
					"paths": "Files or directories relative to the project root (required)",
					"mode":  "remove | wrap | unsafe-wrap",
				},
				"example": map[string]interface{}{"paths": []string{"src"}},
			})
		case "version":
			return createJSONResponse(map[string]interface{}{
				"name":           "version",
				"server_name":    "proptrim",
				"server_version": version.FullInfo(),
				"go_version":     runtime.Version(),
				"platform":       runtime.GOOS + "/" + runtime.GOARCH,
			})
		default:
			return nil, fmt.Errorf("unknown tool: %s", tool)
		}
	})
}

func (s *Server) configSummary() map[string]interface{} {
	return map[string]interface{}{
		"root":          s.cfg.Project.Root,
		"mode":          s.cfg.Mode,
		"remove_import": s.cfg.RemoveImport,
		"libraries":     append([]string{transform.DefaultLibrary}, s.cfg.Libraries...),
		"property_name": s.cfg.PropertyName,
		"annotation":    s.cfg.Annotation,
		"env_check":     s.cfg.EnvCheck,
	}
}

func (s *Server) handleRewrite(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.recoverFromPanic("rewrite_prop_types", func() (*mcp.CallToolResult, error) {
		var params RewriteParams
		if err := decodeArgs(req, &params); err != nil {
			return nil, err
		}
		if params.Source == "" {
			return nil, errSourceRequired
		}

		cfg := s.cfg.Clone()
		if params.Mode != "" {
			cfg.Mode = params.Mode
		}
		if params.RemoveImport != nil {
			cfg.RemoveImport = *params.RemoveImport
		}
		if params.Libraries != nil {
			cfg.Libraries = params.Libraries
		}
		if params.ClassNameMatchers != nil {
			cfg.ClassNameMatchers = params.ClassNameMatchers
		}
		cfg.Output.SourceMaps = params.SourceMap

		engine, err := s.engineFor(cfg)
		if err != nil {
			return nil, err
		}

		filename := params.Filename
		if filename == "" {
			filename = "module.jsx"
		}
		debug.LogMCP("rewrite %s (%d bytes, mode %s)\n", filename, len(params.Source), cfg.Mode)

		result, err := engine.Rewrite([]byte(params.Source), filename)
		if transform.IsParseFailure(err) {
			return createJSONResponse(RewriteResponse{
				Success:     true,
				Code:        params.Source,
				ParseFailed: true,
				ParseError:  err.Error(),
			})
		}
		if err != nil {
			return nil, err
		}

		return createJSONResponse(RewriteResponse{
			Success:        true,
			Changed:        result.Changed,
			Code:           result.Code,
			Map:            result.Map,
			Sites:          siteInfos(result.Sites),
			RemovedImports: result.RemovedImports,
		})
	})
}

func (s *Server) handleCheckFiles(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.recoverFromPanic("check_files", func() (*mcp.CallToolResult, error) {
		var params CheckParams
		if err := decodeArgs(req, &params); err != nil {
			return nil, err
		}
		if len(params.Paths) == 0 {
			return nil, errPathsRequired
		}

		paths, err := s.resolvePaths(params.Paths)
		if err != nil {
			return nil, err
		}

		cfg := s.cfg.Clone()
		if params.Mode != "" {
			cfg.Mode = params.Mode
		}
		// Check mode never writes, whatever the configuration says
		cfg.Output.OutDir = ""
		cfg.Output.SourceMaps = false

		opts, err := runner.OptionsFromConfig(cfg)
		if err != nil {
			return nil, err
		}
		r, err := runner.New(opts)
		if err != nil {
			return nil, err
		}
		summary, err := r.Run(ctx, paths)
		if err != nil {
			return nil, err
		}

		resp := CheckResponse{
			Success:     true,
			Changed:     summary.Changed,
			Unchanged:   summary.Unchanged,
			Skipped:     summary.Skipped,
			ParseFailed: summary.ParseFailed,
			Errors:      summary.Errors,
			Files:       []FileReport{},
			DurationMs:  summary.Duration.Milliseconds(),
		}
		for _, f := range summary.Files {
			if f.Outcome == runner.OutcomeUnchanged {
				continue
			}
			report := FileReport{
				Path:    s.relative(f.Path),
				Outcome: string(f.Outcome),
				Sites:   siteInfos(f.Sites),
				Reason:  f.Reason,
			}
			if f.Err != nil {
				report.Error = f.Err.Error()
			}
			resp.Files = append(resp.Files, report)
		}
		return createJSONResponse(resp)
	})
}

// resolvePaths anchors paths at the project root and rejects any that
// escape it
func (s *Server) resolvePaths(paths []string) ([]string, error) {
	root, err := filepath.Abs(s.cfg.Project.Root)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		abs := p
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(root, p)
		}
		abs = filepath.Clean(abs)
		rel, err := filepath.Rel(root, abs)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return nil, fmt.Errorf("%s: %w", p, errOutsideRoot)
		}
		out = append(out, abs)
	}
	return out, nil
}

func (s *Server) relative(path string) string {
	root, err := filepath.Abs(s.cfg.Project.Root)
	if err != nil {
		return path
	}
	if rel, err := filepath.Rel(root, path); err == nil {
		return filepath.ToSlash(rel)
	}
	return path
}

func siteInfos(sites []transform.Site) []SiteInfo {
	if len(sites) == 0 {
		return nil
	}
	out := make([]SiteInfo, len(sites))
	for i, site := range sites {
		out[i] = SiteInfo{
			Kind:      string(site.Kind),
			Component: site.Component,
			Line:      site.Line,
			Column:    site.Column,
			Action:    string(site.Action),
		}
	}
	return out
}
