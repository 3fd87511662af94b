// Package transform rewrites the component type-declaration sites of a
// JavaScript module: it locates `C.propTypes = ...` assignments and
// `static propTypes = ...` fields, then removes or environment-gates them
// and optionally drops the imports that only they used.
package transform

import (
	"fmt"
	"time"

	"github.com/standardbeagle/proptrim/internal/debug"
	"github.com/standardbeagle/proptrim/internal/detect"
	pterrors "github.com/standardbeagle/proptrim/internal/errors"
	"github.com/standardbeagle/proptrim/internal/parser"
	"github.com/standardbeagle/proptrim/internal/splice"
)

// Result is the outcome of rewriting one file
type Result struct {
	// Code is the rewritten text, or the original text when Changed is false
	Code string
	// Map is the position map from Code back to the original, when requested
	Map *splice.SourceMap
	// Changed is false when no edit altered the text
	Changed bool

	Sites          []Site
	RemovedImports []string
}

// Engine rewrites files under one fixed configuration. It holds no
// per-file state and is safe for concurrent use.
type Engine struct {
	opts       Options
	classifier *detect.Classifier
	parsers    *parser.Manager
}

// New validates opts and creates an engine. A configuration error is
// returned before any source is seen.
func New(opts Options) (*Engine, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	return &Engine{
		opts:       opts,
		classifier: detect.NewClassifier(opts.ClassNameMatcher),
		parsers:    parser.Default(),
	}, nil
}

// WithParserManager makes the engine borrow parsers from m
func (e *Engine) WithParserManager(m *parser.Manager) *Engine {
	cp := *e
	cp.parsers = m
	return &cp
}

// Options returns the resolved options
func (e *Engine) Options() Options {
	return e.opts
}

// Rewrite rewrites source, identified by id (a path, used to pick the
// grammar and to name the source map). Source that does not parse yields a
// *errors.ParseError; callers pass the original text through unchanged.
func (e *Engine) Rewrite(source []byte, id string) (*Result, error) {
	started := time.Now()

	tree, err := e.parsers.Parse(source, parser.DetectSourceKind(id), id)
	if err != nil {
		debug.LogTransform("%s: not transformed: %v\n", id, err)
		return nil, err
	}
	defer tree.Close()

	loc := newLocator(source, e.opts, e.classifier)
	loc.run(tree.RootNode())

	pl := &planner{src: source, opts: e.opts, parents: loc.parents, plan: &plan{}}
	p := pl.run(loc.sites)

	var removedImports []string
	if e.opts.elideImports() {
		removedImports = elideImports(loc, p)
	}

	buf := splice.NewBuffer(source)
	for _, r := range p.ranges {
		if r.replace {
			buf.Replace(int(r.start), int(r.end), r.replacement)
		} else {
			buf.Delete(int(r.start), int(r.end))
		}
	}
	for _, ins := range p.inserts {
		buf.Insert(int(ins.offset), ins.text)
	}

	result := &Result{
		Sites:          p.sites,
		RemovedImports: removedImports,
	}
	if !buf.HasChanged() {
		result.Code = string(source)
		debug.LogTransform("%s: unchanged (%d sites, %v)\n", id, len(p.sites), time.Since(started))
		return result, nil
	}

	result.Code = buf.String()
	result.Changed = true
	if e.opts.SourceMap {
		result.Map = buf.Map(splice.MapOptions{File: id, Source: id, IncludeContent: true})
	}

	debug.LogTransform("%s: rewrote %d sites, removed %d imports (%v)\n",
		id, len(p.sites), len(removedImports), time.Since(started))
	return result, nil
}

// Rewrite validates opts and rewrites one file
func Rewrite(source []byte, id string, opts Options) (*Result, error) {
	e, err := New(opts)
	if err != nil {
		return nil, err
	}
	return e.Rewrite(source, id)
}

// IsParseFailure reports whether err means the input could not be parsed,
// in which case the original text should pass through untouched.
func IsParseFailure(err error) bool {
	return pterrors.IsParseError(err)
}

// Fingerprint identifies the options for cache keys
func (o Options) Fingerprint() string {
	o = o.withDefaults()
	classNames := ""
	if o.ClassNameMatcher != nil {
		classNames = o.ClassNameMatcher.String()
	}
	return fmt.Sprintf("%s|%t|%v|%s|%s|%s|%s|%t",
		o.Mode, o.RemoveImport, o.Libraries, classNames, o.PropertyName, o.Annotation, o.EnvCheck, o.SourceMap)
}
