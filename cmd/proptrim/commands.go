package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/proptrim/internal/config"
	"github.com/standardbeagle/proptrim/internal/debug"
	pterrors "github.com/standardbeagle/proptrim/internal/errors"
	"github.com/standardbeagle/proptrim/internal/mcp"
	"github.com/standardbeagle/proptrim/internal/runner"
	"github.com/standardbeagle/proptrim/internal/transform"
)

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
}

// targetPaths returns the command arguments, or the project root when there
// are none
func targetPaths(c *cli.Context, cfg *config.Config) []string {
	if c.NArg() == 0 {
		return []string{cfg.Project.Root}
	}
	return c.Args().Slice()
}

func newRunner(cfg *config.Config, write bool) (*runner.Runner, error) {
	opts, err := runner.OptionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	opts.Write = write
	return runner.New(opts)
}

func runCommand(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}
	write := applyOutputFlags(c, cfg)
	formatter, err := newFormatter(c, cfg)
	if err != nil {
		return err
	}
	r, err := newRunner(cfg, write)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(c)
	defer cancel()

	summary, err := r.Run(ctx, targetPaths(c, cfg))
	if summary != nil {
		fmt.Fprint(c.App.Writer, formatter.Format(summary))
	}
	if err != nil {
		return err
	}
	if !write && cfg.Output.OutDir == "" && summary.Changed > 0 {
		fmt.Fprintln(c.App.ErrWriter, "No files written; pass --write or --out-dir to save the results")
	}
	return summary.Err()
}

func checkCommand(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}
	cfg.Output.OutDir = ""
	cfg.Output.SourceMaps = false
	formatter, err := newFormatter(c, cfg)
	if err != nil {
		return err
	}
	r, err := newRunner(cfg, false)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(c)
	defer cancel()

	summary, err := r.Run(ctx, targetPaths(c, cfg))
	if summary != nil {
		fmt.Fprint(c.App.Writer, formatter.Format(summary))
	}
	if err != nil {
		return err
	}
	if err := summary.Err(); err != nil {
		return err
	}
	if summary.Changed > 0 {
		return cli.Exit(fmt.Sprintf("%d file(s) contain propTypes declarations that would be rewritten", summary.Changed), 1)
	}
	return nil
}

func stdinCommand(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}
	opts, err := cfg.Options()
	if err != nil {
		return err
	}
	// A map has nowhere to go on stdout
	opts.SourceMap = false
	engine, err := transform.New(opts)
	if err != nil {
		return err
	}

	source, err := io.ReadAll(c.App.Reader)
	if err != nil {
		return pterrors.NewFileError("read", "stdin", err)
	}

	filename := c.String("filename")
	result, err := engine.Rewrite(source, filename)
	if transform.IsParseFailure(err) {
		fmt.Fprintf(c.App.ErrWriter, "Warning: %v; input passed through unchanged\n", err)
		_, err = c.App.Writer.Write(source)
		return err
	}
	if err != nil {
		return err
	}
	debug.LogTransform("stdin %s: %d sites, changed=%t\n", filename, len(result.Sites), result.Changed)
	_, err = io.WriteString(c.App.Writer, result.Code)
	return err
}

func watchCommand(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}
	write := applyOutputFlags(c, cfg)
	formatter, err := newFormatter(c, cfg)
	if err != nil {
		return err
	}

	root := cfg.Project.Root
	if c.NArg() > 0 {
		if root, err = filepath.Abs(c.Args().First()); err != nil {
			return err
		}
	}

	opts, err := runner.OptionsFromConfig(cfg)
	if err != nil {
		return err
	}
	opts.Write = write
	opts.OnWatchStart = func(root string) {
		fmt.Fprintf(c.App.ErrWriter, "Watching %s (Ctrl+C to stop)\n", root)
	}
	opts.OnBatch = func(summary *runner.Summary) {
		fmt.Fprint(c.App.Writer, formatter.Format(summary))
	}
	r, err := runner.New(opts)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(c)
	defer cancel()
	return r.Watch(ctx, root)
}

func mcpCommand(c *cli.Context) error {
	// Enable MCP mode to suppress all debug output
	debug.SetMCPMode(true)

	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return debug.Fatal("failed to load config: %v\n", err)
	}
	server, err := mcp.NewServer(cfg)
	if err != nil {
		return debug.Fatal("failed to create MCP server: %v\n", err)
	}

	ctx, cancel := signalContext(c)
	defer cancel()

	if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return debug.Fatal("MCP server error: %v\n", err)
	}
	return nil
}

func configShowCommand(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(cfg)
}

func configValidateCommand(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err == nil {
		_, err = cfg.Options()
	}
	if err != nil {
		fmt.Fprintf(c.App.ErrWriter, "Configuration validation failed: %v\n", err)
		var cfgErr *pterrors.ConfigError
		if errors.As(err, &cfgErr) && cfgErr.Suggestion != "" {
			fmt.Fprintf(c.App.ErrWriter, "Suggestion: %s\n", cfgErr.Suggestion)
		}
		return cli.Exit("", 1)
	}
	fmt.Fprintf(c.App.Writer, "Configuration is valid (mode %s, %d exclusions)\n", cfg.Mode, len(cfg.Exclude))
	return nil
}
