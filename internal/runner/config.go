package runner

import (
	"time"

	"github.com/standardbeagle/proptrim/internal/config"
	"github.com/standardbeagle/proptrim/internal/filter"
	"github.com/standardbeagle/proptrim/internal/security"
	"github.com/standardbeagle/proptrim/internal/transform"
)

// Files above this size are checked for minified output before parsing
const validationThresholdKB = 32

// OptionsFromConfig resolves cfg into runner options: the engine, the file
// filter and the performance and output settings. Write is left unset;
// callers decide whether a run writes in place.
func OptionsFromConfig(cfg *config.Config) (RunnerOptions, error) {
	opts, err := cfg.Options()
	if err != nil {
		return RunnerOptions{}, err
	}
	engine, err := transform.New(opts)
	if err != nil {
		return RunnerOptions{}, err
	}

	ignore, err := cfg.IgnoreRegexp()
	if err != nil {
		return RunnerOptions{}, err
	}
	f, err := filter.New(cfg.Project.Root, cfg.Include, cfg.Exclude, ignore)
	if err != nil {
		return RunnerOptions{}, err
	}

	return RunnerOptions{
		Engine:        engine,
		Filter:        f,
		Validator:     security.NewFileValidator(validationThresholdKB),
		Root:          cfg.Project.Root,
		Workers:       cfg.Performance.Workers,
		CacheSize:     cfg.Performance.CacheSize,
		MaxFileSize:   cfg.Performance.MaxFileSize,
		OutDir:        cfg.Output.OutDir,
		WatchDebounce: time.Duration(cfg.Performance.WatchDebounceMs) * time.Millisecond,
	}, nil
}
