package config

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// GitignoreParser reads a .gitignore file and turns its entries into the
// doublestar exclusion globs used by the file filter
type GitignoreParser struct {
	patterns []GitignorePattern
}

type GitignorePattern struct {
	Pattern   string
	Negate    bool
	Directory bool
	Absolute  bool
}

func NewGitignoreParser() *GitignoreParser {
	return &GitignoreParser{}
}

// LoadGitignore loads patterns from rootPath/.gitignore. A missing file is
// not an error.
func (gp *GitignoreParser) LoadGitignore(rootPath string) error {
	file, err := os.Open(filepath.Join(rootPath, ".gitignore"))
	if err != nil {
		return nil
	}
	defer file.Close()

	return gp.scan(file)
}

func (gp *GitignoreParser) scan(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		gp.AddPattern(scanner.Text())
	}
	return scanner.Err()
}

// AddPattern parses one .gitignore line; blank lines and comments are ignored
func (gp *GitignoreParser) AddPattern(line string) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return
	}

	var p GitignorePattern
	if strings.HasPrefix(line, "!") {
		p.Negate = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		p.Directory = true
		line = strings.TrimSuffix(line, "/")
	}
	if strings.HasPrefix(line, "/") {
		p.Absolute = true
		line = line[1:]
	}
	// A slash in the middle anchors the pattern to the root as well
	if strings.Contains(line, "/") && !strings.HasPrefix(line, "**/") {
		p.Absolute = true
	}
	if line == "" || !doublestar.ValidatePattern(line) {
		return
	}

	p.Pattern = line
	gp.patterns = append(gp.patterns, p)
}

// GetExclusionPatterns returns the non-negated entries as exclusion globs.
// Negations are dropped; they cannot be expressed as an exclusion.
func (gp *GitignoreParser) GetExclusionPatterns() []string {
	var exclusions []string
	for _, p := range gp.patterns {
		if p.Negate {
			continue
		}
		exclusions = append(exclusions, p.globs()...)
	}
	return DeduplicatePatterns(exclusions)
}

// ShouldIgnore reports whether path (relative to the root) is ignored, with
// later entries overriding earlier ones as git does
func (gp *GitignoreParser) ShouldIgnore(path string) bool {
	path = filepath.ToSlash(path)
	ignored := false
	for _, p := range gp.patterns {
		for _, g := range p.globs() {
			if ok, _ := doublestar.Match(g, path); ok {
				ignored = !p.Negate
				break
			}
		}
	}
	return ignored
}

func (p GitignorePattern) globs() []string {
	base := p.Pattern
	if !p.Absolute {
		base = "**/" + strings.TrimPrefix(base, "**/")
	}
	if p.Directory {
		return []string{base + "/**"}
	}
	// A plain entry names a file or a directory
	return []string{base, base + "/**"}
}
