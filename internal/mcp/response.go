package mcp

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	pterrors "github.com/standardbeagle/proptrim/internal/errors"
)

// createJSONResponse creates a standardized JSON response for MCP tools
func createJSONResponse(data interface{}) (*mcp.CallToolResult, error) {
	content, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response data: %v", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(content)},
		},
	}, nil
}

// createErrorResponse reports a tool failure inside the result, with IsError
// set, so the caller can see the problem and correct its input. Configuration
// errors carry the offending field and, when known, a suggestion.
func createErrorResponse(operation string, err error) (*mcp.CallToolResult, error) {
	errorData := map[string]interface{}{
		"success":   false,
		"error":     err.Error(),
		"operation": operation,
	}

	var cfgErr *pterrors.ConfigError
	if errors.As(err, &cfgErr) {
		errorData["field"] = cfgErr.Field
		if cfgErr.Suggestion != "" {
			errorData["suggestion"] = cfgErr.Suggestion
		}
	}
	if suggestion := suggestFor(operation, err); suggestion != "" {
		if _, ok := errorData["suggestion"]; !ok {
			errorData["suggestion"] = suggestion
		}
	}

	response, marshalErr := createJSONResponse(errorData)
	if marshalErr != nil {
		return nil, marshalErr
	}
	response.IsError = true
	return response, nil
}

// suggestFor covers the failures that have one obvious fix
func suggestFor(operation string, err error) string {
	switch {
	case errors.Is(err, pterrors.ErrRemoveImportMode):
		return `set "mode": "remove" or drop "remove_import"`
	case errors.Is(err, errSourceRequired):
		return `pass the module text as "source", e.g. {"source": "...", "filename": "Button.jsx"}`
	case errors.Is(err, errPathsRequired):
		return `pass paths relative to the project root, e.g. {"paths": ["src"]}`
	case errors.Is(err, errOutsideRoot):
		return "only paths inside the project root can be checked"
	}
	if operation == "info" {
		return `use {} for an overview or {"tool": "rewrite_prop_types"}`
	}
	return ""
}
