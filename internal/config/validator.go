package config

import (
	"errors"
	"fmt"
	"regexp"
	"runtime"
	"strings"

	"github.com/hbollon/go-edlib"
	"github.com/t14raptor/go-fast/ast"
	fastparser "github.com/t14raptor/go-fast/parser"

	pterrors "github.com/standardbeagle/proptrim/internal/errors"
	"github.com/standardbeagle/proptrim/internal/jsast"
	"github.com/standardbeagle/proptrim/internal/parser"
	"github.com/standardbeagle/proptrim/internal/transform"
)

// Minimum Jaro-Winkler similarity for a "did you mean" suggestion
const suggestionThreshold = 0.7

var identifierPattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// Validator validates configuration and sets smart defaults
type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAndSetDefaults validates configuration and applies smart defaults.
// Failures are returned as *errors.ConfigError.
func (v *Validator) ValidateAndSetDefaults(cfg *Config) error {
	if err := v.validateMode(cfg); err != nil {
		return err
	}

	if err := v.validatePatterns(cfg); err != nil {
		return err
	}

	if err := v.validateNames(cfg); err != nil {
		return err
	}

	if err := v.validateEnvCheck(cfg.EnvCheck); err != nil {
		return pterrors.NewConfigError("env_check", cfg.EnvCheck, err).
			WithSuggestion(`use a single expression such as process.env.NODE_ENV !== "production"`)
	}

	if err := v.validatePerformanceConfig(&cfg.Performance); err != nil {
		return pterrors.NewConfigError("performance", "", err)
	}

	v.setSmartDefaults(cfg)
	return nil
}

func (v *Validator) validateMode(cfg *Config) error {
	if cfg.Mode == "" {
		cfg.Mode = string(transform.ModeRemove)
	}

	if !transform.Mode(cfg.Mode).Valid() {
		err := pterrors.NewConfigError("mode", cfg.Mode, fmt.Errorf("unknown mode %q", cfg.Mode))
		if s := SuggestMode(cfg.Mode); s != "" {
			return err.WithSuggestion(fmt.Sprintf("did you mean %q?", s))
		}
		return err
	}

	if cfg.RemoveImport && transform.Mode(cfg.Mode) != transform.ModeRemove {
		return pterrors.NewConfigError("remove_import", cfg.Mode, pterrors.ErrRemoveImportMode).
			WithSuggestion(`set mode "remove" or disable remove_import`)
	}
	return nil
}

func (v *Validator) validatePatterns(cfg *Config) error {
	for _, lib := range cfg.Libraries {
		if _, err := ParseLibrary(lib); err != nil {
			return pterrors.NewConfigError("libraries", lib, err)
		}
	}
	if len(cfg.ClassNameMatchers) > 0 {
		joined := strings.Join(cfg.ClassNameMatchers, "|")
		if _, err := regexp.Compile(joined); err != nil {
			return pterrors.NewConfigError("class_name_matchers", joined, err)
		}
	}
	if _, err := cfg.IgnoreRegexp(); err != nil {
		return err
	}
	return nil
}

func (v *Validator) validateNames(cfg *Config) error {
	if cfg.PropertyName == "" {
		cfg.PropertyName = transform.DefaultPropertyName
	}
	if !identifierPattern.MatchString(cfg.PropertyName) {
		return pterrors.NewConfigError("property_name", cfg.PropertyName,
			errors.New("property name must be a JavaScript identifier"))
	}
	if strings.TrimSpace(cfg.Annotation) == "" {
		cfg.Annotation = transform.DefaultAnnotation
	}
	if strings.TrimSpace(cfg.EnvCheck) == "" {
		cfg.EnvCheck = transform.DefaultEnvCheck
	}
	return nil
}

// validateEnvCheck requires the guard to be exactly one JavaScript
// expression. go-fast has no module syntax, so text it rejects (import.meta)
// is checked again with the tree-sitter grammar.
func (v *Validator) validateEnvCheck(env string) error {
	if strings.TrimSpace(env) == "" {
		return errors.New("environment check cannot be empty")
	}

	program, err := fastparser.ParseFile(env)
	if err == nil {
		if len(program.Body) != 1 {
			return errors.New("environment check must be a single expression")
		}
		if _, ok := program.Body[0].Stmt.(*ast.ExpressionStatement); !ok {
			return errors.New("environment check must be an expression")
		}
		return nil
	}

	tree, tsErr := parser.Default().Parse([]byte(env), parser.SourceJavaScript, "env_check")
	if tsErr != nil {
		return fmt.Errorf("environment check does not parse: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.NamedChildCount() != 1 || !jsast.Is(root.NamedChild(0), jsast.KindExpressionStatement) {
		return errors.New("environment check must be a single expression")
	}
	return nil
}

func (v *Validator) validatePerformanceConfig(perf *Performance) error {
	// Workers: 0 means auto-detect (set by smart defaults)
	if perf.Workers < 0 {
		return fmt.Errorf("Workers cannot be negative, got %d", perf.Workers)
	}
	if perf.CacheSize < 0 {
		return fmt.Errorf("CacheSize cannot be negative, got %d", perf.CacheSize)
	}
	if perf.WatchDebounceMs < 0 {
		return fmt.Errorf("WatchDebounceMs cannot be negative, got %d", perf.WatchDebounceMs)
	}
	if perf.MaxFileSize < 0 {
		return fmt.Errorf("MaxFileSize cannot be negative, got %d", perf.MaxFileSize)
	}
	return nil
}

// setSmartDefaults applies defaults based on system capabilities
func (v *Validator) setSmartDefaults(cfg *Config) {
	if cfg.Performance.Workers == 0 {
		cfg.Performance.Workers = max(1, runtime.NumCPU())
	}
	if cfg.Performance.WatchDebounceMs == 0 {
		cfg.Performance.WatchDebounceMs = 100
	}
}

// SuggestMode returns the valid mode closest to s, or "" if none is close
func SuggestMode(s string) string {
	best, bestScore := "", float32(0)
	for _, m := range transform.Modes {
		score, err := edlib.StringsSimilarity(strings.ToLower(s), string(m), edlib.JaroWinkler)
		if err != nil {
			continue
		}
		if score > bestScore {
			best, bestScore = string(m), score
		}
	}
	if bestScore < suggestionThreshold {
		return ""
	}
	return best
}

// ValidateConfig is a convenience function for quick validation
func ValidateConfig(cfg *Config) error {
	return NewValidator().ValidateAndSetDefaults(cfg)
}
