package config

import (
	"fmt"
	"os"
	"regexp"
	"runtime"
	"slices"
	"strings"

	pterrors "github.com/standardbeagle/proptrim/internal/errors"
	"github.com/standardbeagle/proptrim/internal/transform"
)

// Config file names looked up in the project root and the home directory
const (
	KDLFileName  = ".proptrim.kdl"
	TOMLFileName = "proptrim.toml"
)

type Config struct {
	Version int
	Project Project

	Mode         string
	RemoveImport bool

	// Libraries are tracked in addition to prop-types. A value written as
	// /pattern/ is a regular expression.
	Libraries         []string
	ClassNameMatchers []string
	IgnoreFilenames   []string

	PropertyName string
	Annotation   string
	EnvCheck     string

	Include []string
	Exclude []string

	Output      Output
	Performance Performance
}

type Project struct {
	Root             string
	RespectGitignore bool // Add .gitignore entries to the exclusions
}

type Output struct {
	SourceMaps bool   // Write <file>.map next to rewritten files
	OutDir     string // Mirror rewritten files here instead of writing in place
}

type Performance struct {
	Workers         int   // 0 = auto-detect (NumCPU)
	CacheSize       int   // Rewrite results kept in memory
	WatchDebounceMs int   // Debounce time for file change events
	MaxFileSize     int64 // Larger files are skipped; 0 = no limit
}

// Default returns the configuration used when no file is present
func Default(root string) *Config {
	if root == "" {
		if cwd, err := os.Getwd(); err == nil {
			root = cwd
		} else {
			root = "."
		}
	}

	return &Config{
		Version:      1,
		Project:      Project{Root: root, RespectGitignore: true},
		Mode:         string(transform.ModeRemove),
		PropertyName: transform.DefaultPropertyName,
		Annotation:   transform.DefaultAnnotation,
		EnvCheck:     transform.DefaultEnvCheck,
		Include:      []string{},
		Exclude:      DefaultExclusions(),
		Performance: Performance{
			Workers:         runtime.NumCPU(),
			CacheSize:       512,
			WatchDebounceMs: 100,
		},
	}
}

// DefaultExclusions are directories that never hold hand-written sources
func DefaultExclusions() []string {
	return []string{
		"**/.git/**",
		"**/node_modules/**",
		"**/bower_components/**",
		"**/jspm_packages/**",
		"**/dist/**",
		"**/build/**",
		"**/coverage/**",
		"**/.next/**",
		"**/.nuxt/**",
		"**/.cache/**",
		"**/*.min.js",
		"**/*.bundle.js",
		"**/*.chunk.js",
	}
}

// Load reads configuration for rootDir. A file in the home directory acts as
// the base; a file in rootDir overrides it. The KDL file wins over the TOML
// file in the same directory.
func Load(rootDir string) (*Config, error) {
	if rootDir == "" {
		rootDir = "."
	}

	var base *Config
	if home, err := os.UserHomeDir(); err == nil && home != rootDir {
		if cfg, err := loadDir(home, rootDir); err == nil && cfg != nil {
			base = cfg
		}
	}

	project, err := loadDir(rootDir, rootDir)
	if err != nil {
		return nil, err
	}

	var cfg *Config
	switch {
	case base != nil && project != nil:
		cfg = mergeConfigs(base, project)
	case project != nil:
		cfg = project
	case base != nil:
		cfg = base
	default:
		cfg = Default(rootDir)
	}
	cfg.Project.Root = rootDir

	if cfg.Project.RespectGitignore {
		gp := NewGitignoreParser()
		if err := gp.LoadGitignore(rootDir); err == nil {
			cfg.Exclude = DeduplicatePatterns(append(cfg.Exclude, gp.GetExclusionPatterns()...))
		}
	}
	cfg.EnrichExclusionsWithBuildArtifacts()

	return cfg, nil
}

// LoadFile reads one explicit configuration file
func LoadFile(path, rootDir string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, pterrors.NewFileError("read", path, err)
	}

	var cfg *Config
	if strings.HasSuffix(path, ".toml") {
		cfg, err = parseTOML(content, rootDir)
	} else {
		cfg, err = parseKDL(string(content), rootDir)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func loadDir(dir, rootDir string) (*Config, error) {
	if cfg, err := LoadKDL(dir, rootDir); err != nil || cfg != nil {
		return cfg, err
	}
	return LoadTOML(dir, rootDir)
}

// mergeConfigs merges a base config with a project config.
// Project settings win; base exclusions and libraries are kept.
func mergeConfigs(base, project *Config) *Config {
	merged := *project

	merged.Exclude = DeduplicatePatterns(append(append([]string{}, base.Exclude...), project.Exclude...))
	merged.Libraries = DeduplicatePatterns(append(append([]string{}, base.Libraries...), project.Libraries...))

	if len(project.Include) == 0 && len(base.Include) > 0 {
		merged.Include = base.Include
	}
	if len(project.ClassNameMatchers) == 0 {
		merged.ClassNameMatchers = base.ClassNameMatchers
	}
	if len(project.IgnoreFilenames) == 0 {
		merged.IgnoreFilenames = base.IgnoreFilenames
	}

	return &merged
}

// EnrichExclusionsWithBuildArtifacts adds output directories declared by the
// project's JavaScript build configuration to the exclusions
func (c *Config) EnrichExclusionsWithBuildArtifacts() {
	if c.Project.Root == "" {
		return
	}

	detected := NewBuildArtifactDetector(c.Project.Root).DetectOutputDirectories()
	if len(detected) > 0 {
		c.Exclude = DeduplicatePatterns(append(c.Exclude, detected...))
	}
}

// Options normalizes the configuration into the rewriter's options. The
// result is validated; a *errors.ConfigError is returned otherwise.
func (c *Config) Options() (transform.Options, error) {
	if err := ValidateConfig(c); err != nil {
		return transform.Options{}, err
	}

	libs := []transform.LibraryMatcher{transform.ExactLibrary(transform.DefaultLibrary)}
	for _, l := range c.Libraries {
		m, err := ParseLibrary(l)
		if err != nil {
			return transform.Options{}, pterrors.NewConfigError("libraries", l, err)
		}
		if m.Pattern == nil && m.Name == transform.DefaultLibrary {
			continue
		}
		libs = append(libs, m)
	}

	opts := transform.Options{
		Mode:         transform.Mode(c.Mode),
		RemoveImport: c.RemoveImport,
		Libraries:    libs,
		PropertyName: c.PropertyName,
		Annotation:   c.Annotation,
		EnvCheck:     c.EnvCheck,
		SourceMap:    c.Output.SourceMaps,
	}

	if len(c.ClassNameMatchers) > 0 {
		re, err := regexp.Compile(strings.Join(c.ClassNameMatchers, "|"))
		if err != nil {
			return transform.Options{}, pterrors.NewConfigError("class_name_matchers", strings.Join(c.ClassNameMatchers, "|"), err)
		}
		opts.ClassNameMatcher = re
	}

	return opts, nil
}

// IgnoreRegexp joins the ignore-filename patterns into one case-insensitive
// expression, or returns nil when there are none.
func (c *Config) IgnoreRegexp() (*regexp.Regexp, error) {
	if len(c.IgnoreFilenames) == 0 {
		return nil, nil
	}
	joined := strings.Join(c.IgnoreFilenames, "|")
	re, err := regexp.Compile("(?i)" + joined)
	if err != nil {
		return nil, pterrors.NewConfigError("ignore_filenames", joined, err)
	}
	return re, nil
}

// ParseLibrary reads a tracked-library entry: /pattern/ is a regular
// expression, anything else an exact module name.
func ParseLibrary(s string) (transform.LibraryMatcher, error) {
	if len(s) >= 2 && strings.HasPrefix(s, "/") && strings.HasSuffix(s, "/") {
		re, err := regexp.Compile(s[1 : len(s)-1])
		if err != nil {
			return transform.LibraryMatcher{}, err
		}
		return transform.PatternLibrary(re), nil
	}
	return transform.ExactLibrary(s), nil
}

// Clone returns a deep copy of c, so overrides never leak into a shared base
func (c *Config) Clone() *Config {
	cp := *c
	cp.Libraries = slices.Clone(c.Libraries)
	cp.ClassNameMatchers = slices.Clone(c.ClassNameMatchers)
	cp.IgnoreFilenames = slices.Clone(c.IgnoreFilenames)
	cp.Include = slices.Clone(c.Include)
	cp.Exclude = slices.Clone(c.Exclude)
	return &cp
}
