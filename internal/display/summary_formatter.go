// Package display renders runner summaries for the terminal.
package display

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/standardbeagle/proptrim/internal/runner"
)

// SummaryFormatter formats run summaries for display
type SummaryFormatter struct {
	options FormatterOptions
}

// FormatterOptions controls summary formatting
type FormatterOptions struct {
	Format        string // "text", "json", "compact"
	Root          string // Paths are shown relative to Root when set
	ShowSites     bool   // List every declaration site under its file
	ShowUnchanged bool   // Include files nothing happened to
	Indent        string
}

// Formats lists the accepted Format values
var Formats = []string{"text", "json", "compact"}

// NewSummaryFormatter creates a new summary formatter
func NewSummaryFormatter(options FormatterOptions) *SummaryFormatter {
	if options.Indent == "" {
		options.Indent = "  "
	}
	if options.Format == "" {
		options.Format = "text"
	}
	return &SummaryFormatter{options: options}
}

// Format formats a summary for display
func (sf *SummaryFormatter) Format(summary *runner.Summary) string {
	if summary == nil {
		return "No files processed\n"
	}

	switch sf.options.Format {
	case "json":
		return sf.formatJSON(summary)
	case "compact":
		return sf.formatCompact(summary)
	default:
		return sf.formatText(summary)
	}
}

func (sf *SummaryFormatter) visible(files []runner.FileResult) []runner.FileResult {
	if sf.options.ShowUnchanged {
		return files
	}
	out := make([]runner.FileResult, 0, len(files))
	for _, f := range files {
		if f.Outcome != runner.OutcomeUnchanged {
			out = append(out, f)
		}
	}
	return out
}

// formatText draws the files as a tree followed by the totals
func (sf *SummaryFormatter) formatText(summary *runner.Summary) string {
	var sb strings.Builder

	files := sf.visible(summary.Files)
	for i, f := range files {
		isLast := i == len(files)-1
		branch, childPrefix := "├─→ ", "│ "+sf.options.Indent
		if isLast {
			branch, childPrefix = "└─→ ", "  "+sf.options.Indent
		}

		sb.WriteString(branch)
		sb.WriteString(sf.path(f.Path))
		sb.WriteString(fmt.Sprintf(" [%s]", f.Outcome))
		if f.Output != "" && f.Output != f.Path {
			sb.WriteString(" -> " + sf.path(f.Output))
		}
		if f.Cached {
			sb.WriteString(" (cached)")
		}
		switch {
		case f.Err != nil:
			sb.WriteString(": " + f.Err.Error())
		case f.Reason != "":
			sb.WriteString(": " + f.Reason)
		}
		sb.WriteString("\n")

		if !sf.options.ShowSites {
			continue
		}
		for j, site := range f.Sites {
			siteBranch := "├─→ "
			if j == len(f.Sites)-1 {
				siteBranch = "└─→ "
			}
			sb.WriteString(childPrefix)
			sb.WriteString(siteBranch)
			sb.WriteString(fmt.Sprintf("%s (%s) %d:%d %s\n", componentLabel(site.Component), site.Kind, site.Line, site.Column, site.Action))
		}
	}

	if len(files) > 0 {
		sb.WriteString("\n")
	}
	sb.WriteString(totals(summary))
	sb.WriteString("\n")
	return sb.String()
}

// formatCompact prints one "outcome path" line per file and no totals
func (sf *SummaryFormatter) formatCompact(summary *runner.Summary) string {
	var sb strings.Builder
	for _, f := range sf.visible(summary.Files) {
		sb.WriteString(string(f.Outcome))
		sb.WriteString(" ")
		sb.WriteString(sf.path(f.Path))
		sb.WriteString("\n")
	}
	return sb.String()
}

type jsonSite struct {
	Kind      string `json:"kind"`
	Component string `json:"component,omitempty"`
	Line      int    `json:"line"`
	Column    int    `json:"column"`
	Action    string `json:"action"`
}

type jsonFile struct {
	Path           string     `json:"path"`
	Outcome        string     `json:"outcome"`
	Output         string     `json:"output,omitempty"`
	Cached         bool       `json:"cached,omitempty"`
	Reason         string     `json:"reason,omitempty"`
	Error          string     `json:"error,omitempty"`
	Sites          []jsonSite `json:"sites,omitempty"`
	RemovedImports []string   `json:"removed_imports,omitempty"`
}

type jsonSummary struct {
	Changed     int        `json:"changed"`
	Unchanged   int        `json:"unchanged"`
	Skipped     int        `json:"skipped"`
	ParseFailed int        `json:"parse_failed"`
	Errors      int        `json:"errors"`
	DurationMs  int64      `json:"duration_ms"`
	Files       []jsonFile `json:"files"`
}

func (sf *SummaryFormatter) formatJSON(summary *runner.Summary) string {
	out := jsonSummary{
		Changed:     summary.Changed,
		Unchanged:   summary.Unchanged,
		Skipped:     summary.Skipped,
		ParseFailed: summary.ParseFailed,
		Errors:      summary.Errors,
		DurationMs:  summary.Duration.Milliseconds(),
		Files:       []jsonFile{},
	}
	for _, f := range sf.visible(summary.Files) {
		jf := jsonFile{
			Path:           sf.path(f.Path),
			Outcome:        string(f.Outcome),
			Cached:         f.Cached,
			Reason:         f.Reason,
			RemovedImports: f.RemovedImports,
		}
		if f.Output != "" {
			jf.Output = sf.path(f.Output)
		}
		if f.Err != nil {
			jf.Error = f.Err.Error()
		}
		for _, s := range f.Sites {
			jf.Sites = append(jf.Sites, jsonSite{
				Kind:      string(s.Kind),
				Component: s.Component,
				Line:      s.Line,
				Column:    s.Column,
				Action:    string(s.Action),
			})
		}
		out.Files = append(out.Files, jf)
	}

	data, err := json.MarshalIndent(out, "", sf.options.Indent)
	if err != nil {
		return fmt.Sprintf(`{"error": %q}`, err.Error()) + "\n"
	}
	return string(data) + "\n"
}

func (sf *SummaryFormatter) path(p string) string {
	if sf.options.Root == "" {
		return filepath.ToSlash(p)
	}
	root, err := filepath.Abs(sf.options.Root)
	if err != nil {
		return filepath.ToSlash(p)
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return filepath.ToSlash(p)
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(p)
	}
	return filepath.ToSlash(rel)
}

func componentLabel(name string) string {
	if name == "" {
		return "<anonymous>"
	}
	return name
}

func totals(s *runner.Summary) string {
	return fmt.Sprintf("%d changed, %d unchanged, %d skipped, %d parse-failed, %d errors in %v",
		s.Changed, s.Unchanged, s.Skipped, s.ParseFailed, s.Errors, s.Duration.Round(time.Millisecond))
}
