package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/proptrim/internal/config"
	"github.com/standardbeagle/proptrim/internal/debug"
	"github.com/standardbeagle/proptrim/internal/display"
	"github.com/standardbeagle/proptrim/internal/version"
)

var Version = version.Version

// loadConfigWithOverrides loads configuration and applies CLI flag overrides
func loadConfigWithOverrides(c *cli.Context) (*config.Config, error) {
	root := c.String("root")
	if root == "" {
		root = "."
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root path %q: %w", root, err)
	}

	var cfg *config.Config
	if path := c.String("config"); path != "" {
		cfg, err = config.LoadFile(path, absRoot)
	} else {
		cfg, err = config.Load(absRoot)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if c.IsSet("mode") {
		cfg.Mode = c.String("mode")
	}
	if c.IsSet("remove-import") {
		cfg.RemoveImport = c.Bool("remove-import")
	}
	cfg.Libraries = append(cfg.Libraries, c.StringSlice("library")...)
	cfg.ClassNameMatchers = append(cfg.ClassNameMatchers, c.StringSlice("class-name-matcher")...)
	cfg.IgnoreFilenames = append(cfg.IgnoreFilenames, c.StringSlice("ignore-filename")...)
	if includeFlags := c.StringSlice("include"); len(includeFlags) > 0 {
		cfg.Include = includeFlags
	}
	if excludeFlags := c.StringSlice("exclude"); len(excludeFlags) > 0 {
		cfg.Exclude = append(cfg.Exclude, excludeFlags...)
	}
	if c.IsSet("property") {
		cfg.PropertyName = c.String("property")
	}
	if c.IsSet("annotation") {
		cfg.Annotation = c.String("annotation")
	}
	if c.IsSet("env-check") {
		cfg.EnvCheck = c.String("env-check")
	}
	if c.IsSet("workers") {
		cfg.Performance.Workers = c.Int("workers")
	}

	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyOutputFlags lets --write, --out-dir and --source-map override the
// configured output. An explicit --write drops a configured out_dir.
func applyOutputFlags(c *cli.Context, cfg *config.Config) (write bool) {
	write = c.Bool("write")
	if c.IsSet("out-dir") {
		cfg.Output.OutDir = c.String("out-dir")
	} else if write {
		cfg.Output.OutDir = ""
	}
	if c.IsSet("source-map") {
		cfg.Output.SourceMaps = c.Bool("source-map")
	}
	return write
}

func newFormatter(c *cli.Context, cfg *config.Config) (*display.SummaryFormatter, error) {
	format := c.String("format")
	valid := false
	for _, f := range display.Formats {
		if f == format {
			valid = true
			break
		}
	}
	if !valid {
		return nil, fmt.Errorf("unknown format %q, expected one of %s", format, strings.Join(display.Formats, ", "))
	}
	return display.NewSummaryFormatter(display.FormatterOptions{
		Format:        format,
		Root:          cfg.Project.Root,
		ShowSites:     c.Bool("sites"),
		ShowUnchanged: c.Bool("all"),
	}), nil
}

func outputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:    "write",
			Aliases: []string{"w"},
			Usage:   "Rewrite files in place",
		},
		&cli.StringFlag{
			Name:    "out-dir",
			Aliases: []string{"o"},
			Usage:   "Mirror every processed file under this directory instead of writing in place",
		},
		&cli.BoolFlag{
			Name:  "source-map",
			Usage: "Write <file>.map next to every rewritten file",
		},
	}
}

func reportFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Report format: text, json or compact",
			Value:   "text",
		},
		&cli.BoolFlag{
			Name:  "sites",
			Usage: "List every declaration site in the report",
		},
		&cli.BoolFlag{
			Name:  "all",
			Usage: "Include unchanged files in the report",
		},
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:                   "proptrim",
		Usage:                  "Remove or environment-gate React propTypes declarations",
		Version:                Version,
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Config file path (.kdl or .toml); default looks up .proptrim.kdl then proptrim.toml",
			},
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Project root directory (default: current directory)",
			},
			&cli.StringFlag{
				Name:    "mode",
				Aliases: []string{"m"},
				Usage:   "remove, wrap or unsafe-wrap",
			},
			&cli.BoolFlag{
				Name:  "remove-import",
				Usage: "Drop imports only the removed declarations used (mode remove only)",
			},
			&cli.StringSliceFlag{
				Name:  "library",
				Usage: "Track another import source besides prop-types; /pattern/ for a regular expression",
			},
			&cli.StringSliceFlag{
				Name:  "class-name-matcher",
				Usage: "Regular expression naming an extra component base class",
			},
			&cli.StringSliceFlag{
				Name:  "ignore-filename",
				Usage: "Skip files whose path matches this case-insensitive regular expression",
			},
			&cli.StringSliceFlag{
				Name:  "include",
				Usage: "Only rewrite files matching glob patterns (e.g., --include 'src/**/*.jsx')",
			},
			&cli.StringSliceFlag{
				Name:  "exclude",
				Usage: "Skip files matching glob patterns (e.g., --exclude '**/*.stories.js')",
			},
			&cli.StringFlag{
				Name:  "property",
				Usage: "Name of the type-declaration property",
				Value: "propTypes",
			},
			&cli.StringFlag{
				Name:  "annotation",
				Usage: "Comment marker that opts a declaration into removal",
				Value: "remove-proptypes",
			},
			&cli.StringFlag{
				Name:  "env-check",
				Usage: "Expression that is true outside production builds",
				Value: `process.env.NODE_ENV !== "production"`,
			},
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"j"},
				Usage:   "Files rewritten in parallel (0 = number of CPUs)",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Print debug output to stderr (same as DEBUG=1)",
			},
			&cli.BoolFlag{
				Name:   "debug-log",
				Usage:  "Write debug output to a file in the temp directory",
				Hidden: true,
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool("verbose") {
				debug.EnableDebug = "true"
			}
			if debug.IsDebugEnabled() && !c.Bool("debug-log") {
				debug.SetDebugOutput(c.App.ErrWriter)
			}
			if c.Bool("debug-log") {
				path, err := debug.InitDebugLogFile()
				if err != nil {
					return fmt.Errorf("failed to open debug log: %w", err)
				}
				fmt.Fprintf(c.App.ErrWriter, "Debug log: %s\n", path)
			}
			return nil
		},
		After: func(c *cli.Context) error {
			return debug.CloseDebugLog()
		},
		Commands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "Rewrite the files under the given paths",
				ArgsUsage: "[paths...]",
				Flags:     append(outputFlags(), reportFlags()...),
				Action:    runCommand,
			},
			{
				Name:      "check",
				Usage:     "Report files that would change; exits with status 1 if any would",
				ArgsUsage: "[paths...]",
				Flags:     reportFlags(),
				Action:    checkCommand,
			},
			{
				Name:  "stdin",
				Usage: "Rewrite standard input to standard output",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "filename",
						Usage: "File name used to pick the grammar",
						Value: "stdin.jsx",
					},
				},
				Action: stdinCommand,
			},
			{
				Name:      "watch",
				Usage:     "Rewrite files as they change",
				ArgsUsage: "[root]",
				Flags:     append(outputFlags(), reportFlags()...),
				Action:    watchCommand,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the rewrite tools over MCP (stdio)",
				Action: mcpCommand,
			},
			{
				Name:  "config",
				Usage: "Inspect configuration",
				Subcommands: []*cli.Command{
					{
						Name:   "show",
						Usage:  "Print the effective configuration as JSON",
						Action: configShowCommand,
					},
					{
						Name:   "validate",
						Usage:  "Check the configuration and report problems",
						Action: configValidateCommand,
					},
				},
			},
			{
				Name:  "version",
				Usage: "Print version information",
				Action: func(c *cli.Context) error {
					fmt.Fprintln(c.App.Writer, version.FullInfo())
					return nil
				},
			},
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}
