package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
)

// LoadKDL attempts to load configuration from the .proptrim.kdl file in dir.
// It returns nil, nil when the file does not exist.
func LoadKDL(dir, rootDir string) (*Config, error) {
	kdlPath := filepath.Join(dir, KDLFileName)

	if _, err := os.Stat(kdlPath); os.IsNotExist(err) {
		return nil, nil
	}

	content, err := os.ReadFile(kdlPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %v", KDLFileName, err)
	}

	cfg, err := parseKDL(string(content), rootDir)
	if err != nil {
		return nil, err
	}

	// Relative roots are resolved against the directory holding the file
	if cfg.Project.Root != "" && !filepath.IsAbs(cfg.Project.Root) {
		cfg.Project.Root = filepath.Clean(filepath.Join(dir, cfg.Project.Root))
	}

	return cfg, nil
}

func parseKDL(content, rootDir string) (*Config, error) {
	cfg := Default(rootDir)

	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse KDL config: %w", err)
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "version":
			if v, ok := firstIntArg(n); ok {
				cfg.Version = v
			}
		case "mode":
			assignSimpleString(n, "mode", func(v string) { cfg.Mode = v })
		case "remove_import":
			if b, ok := firstBoolArg(n); ok {
				cfg.RemoveImport = b
			}
		case "libraries":
			cfg.Libraries = append(cfg.Libraries, collectStringArgs(n)...)
		case "class_name_matchers":
			cfg.ClassNameMatchers = append(cfg.ClassNameMatchers, collectStringArgs(n)...)
		case "ignore_filenames":
			cfg.IgnoreFilenames = append(cfg.IgnoreFilenames, collectStringArgs(n)...)
		case "property_name":
			assignSimpleString(n, "property_name", func(v string) { cfg.PropertyName = v })
		case "annotation":
			assignSimpleString(n, "annotation", func(v string) { cfg.Annotation = v })
		case "env_check":
			assignSimpleString(n, "env_check", func(v string) { cfg.EnvCheck = v })
		case "project":
			for _, cn := range n.Children { // project { root "." respect_gitignore true }
				assignSimpleString(cn, "root", func(v string) { cfg.Project.Root = v })
				if nodeName(cn) == "respect_gitignore" {
					if b, ok := firstBoolArg(cn); ok {
						cfg.Project.RespectGitignore = b
					}
				}
			}
		case "output":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "source_maps":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Output.SourceMaps = b
					}
				case "out_dir":
					if s, ok := firstStringArg(cn); ok {
						cfg.Output.OutDir = s
					}
				}
			}
		case "performance":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "workers":
					if v, ok := firstIntArg(cn); ok {
						cfg.Performance.Workers = v
					}
				case "cache_size":
					if v, ok := firstIntArg(cn); ok {
						cfg.Performance.CacheSize = v
					}
				case "watch_debounce_ms":
					if v, ok := firstIntArg(cn); ok {
						cfg.Performance.WatchDebounceMs = v
					}
				case "max_file_size":
					if v, ok := firstIntArg(cn); ok {
						cfg.Performance.MaxFileSize = int64(v)
					}
					if s, ok := firstStringArg(cn); ok {
						sz, err := parseSize(s)
						if err != nil {
							log.Printf("WARNING: invalid max_file_size %q in KDL config: %v", s, err)
							continue
						}
						cfg.Performance.MaxFileSize = sz
					}
				}
			}
		case "include":
			cfg.Include = append(cfg.Include, collectStringArgs(n)...)
		case "exclude":
			// An exclude block replaces the default exclusions
			cfg.Exclude = collectStringArgs(n)
		default:
			log.Printf("WARNING: unknown node '%s' in KDL config", nodeName(n))
		}
	}

	return cfg, nil
}

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}

func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	if b, ok := n.Arguments[0].Value.(bool); ok {
		return b, true
	}
	log.Printf("WARNING: invalid boolean value for '%s' in KDL config, got %T", nodeName(n), n.Arguments[0].Value)
	return false, false
}

// collectStringArgs reads inline arguments (`include "a" "b"`) or, when there
// are none, a block whose children are the values (`exclude { "a"; "b" }`)
func collectStringArgs(n *document.Node) []string {
	if n == nil {
		return nil
	}
	out := make([]string, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}

	if len(out) == 0 && len(n.Children) > 0 {
		out = make([]string, 0, len(n.Children))
		for _, child := range n.Children {
			if s, ok := firstStringArg(child); ok {
				out = append(out, s)
			} else if child.Name != nil {
				if s, ok := child.Name.Value.(string); ok {
					out = append(out, s)
				}
			}
		}
	}

	return out
}

func assignSimpleString(n *document.Node, target string, set func(string)) {
	if nodeName(n) == target {
		if s, ok := firstStringArg(n); ok {
			set(s)
		}
	}
}

// parseSize handles size strings like "10MB", "500KB", "1GB"
func parseSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))

	var multiplier int64 = 1
	var numStr string

	switch {
	case strings.HasSuffix(s, "GB"):
		multiplier = 1024 * 1024 * 1024
		numStr = strings.TrimSuffix(s, "GB")
	case strings.HasSuffix(s, "MB"):
		multiplier = 1024 * 1024
		numStr = strings.TrimSuffix(s, "MB")
	case strings.HasSuffix(s, "KB"):
		multiplier = 1024
		numStr = strings.TrimSuffix(s, "KB")
	case strings.HasSuffix(s, "B"):
		numStr = strings.TrimSuffix(s, "B")
	default:
		numStr = s
	}

	num, err := strconv.ParseInt(strings.TrimSpace(numStr), 10, 64)
	if err != nil {
		return 0, err
	}

	return num * multiplier, nil
}
