package transform

import (
	"fmt"
	"regexp"
	"strings"

	pterrors "github.com/standardbeagle/proptrim/internal/errors"
)

// Mode selects what happens to a qualifying site
type Mode string

const (
	// ModeRemove deletes every qualifying site
	ModeRemove Mode = "remove"
	// ModeWrap keeps the assignment and gates its value on the environment guard
	ModeWrap Mode = "wrap"
	// ModeUnsafeWrap gates the whole assignment on the environment guard
	ModeUnsafeWrap Mode = "unsafe-wrap"
)

// Modes lists every accepted mode
var Modes = []Mode{ModeRemove, ModeWrap, ModeUnsafeWrap}

// Valid reports whether m is a known mode
func (m Mode) Valid() bool {
	for _, known := range Modes {
		if m == known {
			return true
		}
	}
	return false
}

// Defaults applied to a zero Options value
const (
	DefaultLibrary      = "prop-types"
	DefaultPropertyName = "propTypes"
	DefaultAnnotation   = "remove-proptypes"
	DefaultEnvCheck     = `process.env.NODE_ENV !== "production"`
)

// Literals emitted by the edit planner
const (
	emptyObject = "{}"
	noValue     = "void 0"
)

// LibraryMatcher matches an import source either exactly or by regular expression
type LibraryMatcher struct {
	Name    string
	Pattern *regexp.Regexp
}

// ExactLibrary matches an import source equal to name
func ExactLibrary(name string) LibraryMatcher {
	return LibraryMatcher{Name: name}
}

// PatternLibrary matches any import source re matches
func PatternLibrary(re *regexp.Regexp) LibraryMatcher {
	return LibraryMatcher{Pattern: re}
}

// Matches reports whether source is tracked by m
func (m LibraryMatcher) Matches(source string) bool {
	if m.Pattern != nil {
		return m.Pattern.MatchString(source)
	}
	return source == m.Name
}

// String renders m the way it is written in configuration
func (m LibraryMatcher) String() string {
	if m.Pattern != nil {
		return "/" + m.Pattern.String() + "/"
	}
	return m.Name
}

// Options is the resolved, immutable configuration of an Engine
type Options struct {
	Mode         Mode
	RemoveImport bool

	// Libraries are the tracked import sources. Empty means prop-types only.
	Libraries []LibraryMatcher

	// ClassNameMatcher, when set, marks extra base-class names as components
	ClassNameMatcher *regexp.Regexp

	PropertyName string
	Annotation   string
	EnvCheck     string

	// SourceMap requests a position map with every changed result
	SourceMap bool
}

// DefaultOptions returns the options used when nothing is configured
func DefaultOptions() Options {
	return Options{}.withDefaults()
}

func (o Options) withDefaults() Options {
	if o.Mode == "" {
		o.Mode = ModeRemove
	}
	if len(o.Libraries) == 0 {
		o.Libraries = []LibraryMatcher{ExactLibrary(DefaultLibrary)}
	}
	if o.PropertyName == "" {
		o.PropertyName = DefaultPropertyName
	}
	if o.Annotation == "" {
		o.Annotation = DefaultAnnotation
	}
	if o.EnvCheck == "" {
		o.EnvCheck = DefaultEnvCheck
	}
	return o
}

// Validate checks options that cannot be honoured. It runs before any
// source is parsed.
func (o Options) Validate() error {
	o = o.withDefaults()

	if !o.Mode.Valid() {
		return pterrors.NewConfigError("mode", string(o.Mode),
			fmt.Errorf("unknown mode, expected one of %s", joinModes()))
	}
	if o.RemoveImport && o.Mode != ModeRemove {
		return pterrors.NewConfigError("removeImport", string(o.Mode), pterrors.ErrRemoveImportMode)
	}
	return nil
}

// tracksLibrary reports whether an import of source is tracked
func (o Options) tracksLibrary(source string) bool {
	for _, lib := range o.Libraries {
		if lib.Matches(source) {
			return true
		}
	}
	return false
}

// elideImports reports whether the import liveness pass runs
func (o Options) elideImports() bool {
	return o.RemoveImport && o.Mode == ModeRemove
}

func joinModes() string {
	names := make([]string, len(Modes))
	for i, m := range Modes {
		names[i] = string(m)
	}
	return strings.Join(names, ", ")
}
