package parser

import (
	"path/filepath"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// SourceKind is the grammar hint handed to the parser
type SourceKind int

const (
	// SourceJavaScript covers .js/.jsx/.mjs/.cjs; the grammar accepts JSX markup
	SourceJavaScript SourceKind = iota
	SourceTypeScript
	SourceTSX
)

func (k SourceKind) String() string {
	switch k {
	case SourceTypeScript:
		return "typescript"
	case SourceTSX:
		return "tsx"
	default:
		return "javascript"
	}
}

// DetectSourceKind maps a file identifier to a grammar. Unknown extensions,
// including bundler virtual ids, fall back to JavaScript with JSX.
func DetectSourceKind(filename string) SourceKind {
	// Strip bundler query suffixes such as "?used" or "?v=123"
	if i := strings.IndexByte(filename, '?'); i >= 0 {
		filename = filename[:i]
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".ts", ".mts", ".cts":
		return SourceTypeScript
	case ".tsx":
		return SourceTSX
	default:
		return SourceJavaScript
	}
}

// IsSupportedFile reports whether the extension belongs to the JavaScript family
func IsSupportedFile(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".js", ".jsx", ".mjs", ".cjs", ".ts", ".tsx", ".mts", ".cts":
		return true
	}
	return false
}

func languageFor(kind SourceKind) *tree_sitter.Language {
	switch kind {
	case SourceTypeScript:
		return tree_sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript())
	case SourceTSX:
		return tree_sitter.NewLanguage(tree_sitter_typescript.LanguageTSX())
	default:
		return tree_sitter.NewLanguage(tree_sitter_javascript.Language())
	}
}

func newParser(language *tree_sitter.Language) (*tree_sitter.Parser, error) {
	parser := tree_sitter.NewParser()
	if err := parser.SetLanguage(language); err != nil {
		parser.Close()
		return nil, err
	}
	return parser, nil
}
