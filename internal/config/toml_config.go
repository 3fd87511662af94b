package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// tomlConfig mirrors the KDL layout for proptrim.toml
type tomlConfig struct {
	Version           int      `toml:"version"`
	Mode              *string  `toml:"mode"`
	RemoveImport      *bool    `toml:"remove_import"`
	Libraries         []string `toml:"libraries"`
	ClassNameMatchers []string `toml:"class_name_matchers"`
	IgnoreFilenames   []string `toml:"ignore_filenames"`
	PropertyName      *string  `toml:"property_name"`
	Annotation        *string  `toml:"annotation"`
	EnvCheck          *string  `toml:"env_check"`
	Include           []string `toml:"include"`
	Exclude           []string `toml:"exclude"`

	Project struct {
		Root             *string `toml:"root"`
		RespectGitignore *bool   `toml:"respect_gitignore"`
	} `toml:"project"`

	Output struct {
		SourceMaps *bool   `toml:"source_maps"`
		OutDir     *string `toml:"out_dir"`
	} `toml:"output"`

	Performance struct {
		Workers         *int    `toml:"workers"`
		CacheSize       *int    `toml:"cache_size"`
		WatchDebounceMs *int    `toml:"watch_debounce_ms"`
		MaxFileSize     *string `toml:"max_file_size"`
	} `toml:"performance"`
}

// LoadTOML attempts to load configuration from proptrim.toml in dir.
// It returns nil, nil when the file does not exist.
func LoadTOML(dir, rootDir string) (*Config, error) {
	path := filepath.Join(dir, TOMLFileName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %v", TOMLFileName, err)
	}

	cfg, err := parseTOML(content, rootDir)
	if err != nil {
		return nil, err
	}
	if cfg.Project.Root != "" && !filepath.IsAbs(cfg.Project.Root) {
		cfg.Project.Root = filepath.Clean(filepath.Join(dir, cfg.Project.Root))
	}
	return cfg, nil
}

func parseTOML(content []byte, rootDir string) (*Config, error) {
	var raw tomlConfig
	if err := toml.Unmarshal(content, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse TOML config: %w", err)
	}

	cfg := Default(rootDir)
	if raw.Version != 0 {
		cfg.Version = raw.Version
	}
	setString(&cfg.Mode, raw.Mode)
	setBool(&cfg.RemoveImport, raw.RemoveImport)
	setString(&cfg.PropertyName, raw.PropertyName)
	setString(&cfg.Annotation, raw.Annotation)
	setString(&cfg.EnvCheck, raw.EnvCheck)

	cfg.Libraries = append(cfg.Libraries, raw.Libraries...)
	cfg.ClassNameMatchers = append(cfg.ClassNameMatchers, raw.ClassNameMatchers...)
	cfg.IgnoreFilenames = append(cfg.IgnoreFilenames, raw.IgnoreFilenames...)
	cfg.Include = append(cfg.Include, raw.Include...)
	if raw.Exclude != nil {
		cfg.Exclude = raw.Exclude
	}

	setString(&cfg.Project.Root, raw.Project.Root)
	setBool(&cfg.Project.RespectGitignore, raw.Project.RespectGitignore)
	setBool(&cfg.Output.SourceMaps, raw.Output.SourceMaps)
	setString(&cfg.Output.OutDir, raw.Output.OutDir)

	setInt(&cfg.Performance.Workers, raw.Performance.Workers)
	setInt(&cfg.Performance.CacheSize, raw.Performance.CacheSize)
	setInt(&cfg.Performance.WatchDebounceMs, raw.Performance.WatchDebounceMs)
	if raw.Performance.MaxFileSize != nil {
		sz, err := parseSize(*raw.Performance.MaxFileSize)
		if err != nil {
			return nil, fmt.Errorf("invalid max_file_size %q: %w", *raw.Performance.MaxFileSize, err)
		}
		cfg.Performance.MaxFileSize = sz
	}

	return cfg, nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}
