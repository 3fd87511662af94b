package runner

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/proptrim/internal/config"
	"github.com/standardbeagle/proptrim/internal/transform"
)

func TestOptionsFromConfig(t *testing.T) {
	root := project(t)
	cfg := config.Default(root)
	cfg.Mode = "wrap"
	cfg.IgnoreFilenames = []string{"legacy"}
	cfg.Performance.Workers = 3
	cfg.Performance.WatchDebounceMs = 250

	opts, err := OptionsFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, transform.ModeWrap, opts.Engine.Options().Mode)
	assert.Equal(t, 3, opts.Workers)
	assert.Equal(t, root, opts.Root)
	assert.Equal(t, "250ms", opts.WatchDebounce.String())
	assert.False(t, opts.Write)

	r, err := New(opts)
	require.NoError(t, err)
	summary, err := r.Run(context.Background(), []string{root})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Changed, "Button.jsx and Deep.test.js")
	for _, f := range summary.Files {
		assert.NotContains(t, f.Path, filepath.Join("src", "legacy"))
		assert.NotContains(t, f.Path, "node_modules")
	}
}

func TestOptionsFromConfig_Invalid(t *testing.T) {
	cfg := config.Default(t.TempDir())
	cfg.Mode = "wrap"
	cfg.RemoveImport = true
	_, err := OptionsFromConfig(cfg)
	assert.Error(t, err)

	cfg = config.Default(t.TempDir())
	cfg.IgnoreFilenames = []string{"(["}
	_, err = OptionsFromConfig(cfg)
	assert.Error(t, err)
}
