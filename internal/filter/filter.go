// Package filter decides which files the rewriter sees. Include and exclude
// entries are doublestar globs, or regular expressions when written /re/;
// the ignore expression rejects any id it matches.
package filter

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

type matcher struct {
	glob string
	re   *regexp.Regexp
}

func (m matcher) match(candidates []string) bool {
	for _, c := range candidates {
		if m.re != nil {
			if m.re.MatchString(c) {
				return true
			}
			continue
		}
		if ok, _ := doublestar.Match(m.glob, c); ok {
			return true
		}
	}
	return false
}

// Filter is immutable once built and safe for concurrent use
type Filter struct {
	root    string
	include []matcher
	exclude []matcher
	ignore  *regexp.Regexp
}

// New compiles include and exclude patterns. Paths are matched both as given
// and relative to root, so "src/**" and "**/src/**" both work.
func New(root string, include, exclude []string, ignore *regexp.Regexp) (*Filter, error) {
	f := &Filter{ignore: ignore}
	if root != "" {
		if abs, err := filepath.Abs(root); err == nil {
			f.root = filepath.ToSlash(abs)
		}
	}

	var err error
	if f.include, err = compile(include); err != nil {
		return nil, fmt.Errorf("include: %w", err)
	}
	if f.exclude, err = compile(exclude); err != nil {
		return nil, fmt.Errorf("exclude: %w", err)
	}
	return f, nil
}

func compile(patterns []string) ([]matcher, error) {
	out := make([]matcher, 0, len(patterns))
	for _, p := range patterns {
		if len(p) >= 2 && strings.HasPrefix(p, "/") && strings.HasSuffix(p, "/") && !strings.Contains(p, "*") {
			re, err := regexp.Compile(p[1 : len(p)-1])
			if err != nil {
				return nil, fmt.Errorf("invalid pattern %q: %w", p, err)
			}
			out = append(out, matcher{re: re})
			continue
		}
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid glob %q", p)
		}
		out = append(out, matcher{glob: p})
	}
	return out, nil
}

// Match reports whether the file id should be rewritten: it passes when some
// include pattern matches (or there are none), no exclude pattern matches
// and the ignore expression does not match.
func (f *Filter) Match(id string) bool {
	if f.ignore != nil && f.ignore.MatchString(id) {
		return false
	}
	candidates := f.candidates(id)
	for _, m := range f.exclude {
		if m.match(candidates) {
			return false
		}
	}
	if len(f.include) == 0 {
		return true
	}
	for _, m := range f.include {
		if m.match(candidates) {
			return true
		}
	}
	return false
}

// SkipDir reports whether a directory walk can prune dir: an exclude glob
// matches the directory itself or the ignore expression matches its path.
func (f *Filter) SkipDir(dir string) bool {
	if f.ignore != nil && f.ignore.MatchString(filepath.ToSlash(dir)+"/") {
		return true
	}
	candidates := f.candidates(dir)
	for _, m := range f.exclude {
		if m.glob != "" && m.match(candidates) {
			return true
		}
	}
	return false
}

// candidates lists the spellings of id patterns are tried against
func (f *Filter) candidates(id string) []string {
	p := filepath.ToSlash(id)
	out := []string{p}
	if trimmed := strings.TrimPrefix(p, "/"); trimmed != p && trimmed != "" {
		out = append(out, trimmed)
	}
	if f.root != "" {
		abs := p
		if !filepath.IsAbs(id) {
			if a, err := filepath.Abs(id); err == nil {
				abs = filepath.ToSlash(a)
			}
		}
		if rel, ok := strings.CutPrefix(abs, f.root+"/"); ok && rel != p {
			out = append(out, rel)
		}
	}
	return out
}
