package parser

import (
	"errors"
	"fmt"
	"sync"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/standardbeagle/proptrim/internal/debug"
	pterrors "github.com/standardbeagle/proptrim/internal/errors"
)

// defaultPoolSize bounds the idle parsers kept per grammar
const defaultPoolSize = 8

var errNoTree = errors.New("parser returned no tree")

// Manager hands out tree-sitter parsers per grammar. A tree-sitter parser is
// not safe for concurrent use, so each Parse call borrows one from a bounded
// free list and returns it afterwards.
type Manager struct {
	mu        sync.Mutex
	languages map[SourceKind]*tree_sitter.Language
	idle      map[SourceKind]chan *tree_sitter.Parser
	poolSize  int
	closed    bool

	parse func(*tree_sitter.Parser, []byte) *tree_sitter.Tree
}

func parseBuffer(p *tree_sitter.Parser, buf []byte) *tree_sitter.Tree {
	return p.Parse(buf, nil)
}

var (
	defaultManager     *Manager
	defaultManagerOnce sync.Once
)

// Default returns the process-wide manager
func Default() *Manager {
	defaultManagerOnce.Do(func() {
		defaultManager = NewManager(defaultPoolSize)
	})
	return defaultManager
}

// NewManager creates a manager keeping at most poolSize idle parsers per grammar
func NewManager(poolSize int) *Manager {
	if poolSize <= 0 {
		poolSize = defaultPoolSize
	}
	return &Manager{
		languages: make(map[SourceKind]*tree_sitter.Language),
		idle:      make(map[SourceKind]chan *tree_sitter.Parser),
		poolSize:  poolSize,
		parse:     parseBuffer,
	}
}

func (m *Manager) acquire(kind SourceKind) (*tree_sitter.Parser, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, errors.New("parser manager is closed")
	}
	lang, ok := m.languages[kind]
	if !ok {
		lang = languageFor(kind)
		m.languages[kind] = lang
		m.idle[kind] = make(chan *tree_sitter.Parser, m.poolSize)
	}
	idle := m.idle[kind]
	m.mu.Unlock()

	select {
	case p, ok := <-idle:
		if ok {
			return p, nil
		}
	default:
	}
	return newParser(lang)
}

func (m *Manager) release(kind SourceKind, p *tree_sitter.Parser) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		p.Close()
		return
	}
	select {
	case m.idle[kind] <- p:
	default:
		p.Close()
	}
}

// Close releases every idle parser. Parsers still borrowed are closed on return.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	for _, idle := range m.idle {
		close(idle)
		for p := range idle {
			p.Close()
		}
	}
}

// Parse parses source with the grammar for kind. The caller owns the returned
// tree and must Close it. A tree containing syntax errors is reported as a
// *errors.ParseError; the tree is closed in that case.
func (m *Manager) Parse(source []byte, kind SourceKind, path string) (tree *tree_sitter.Tree, err error) {
	p, err := m.acquire(kind)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s parser: %w", kind, err)
	}
	// A parser that panicked mid-parse is closed, never pooled
	panicked := false
	defer func() {
		if panicked {
			p.Close()
			return
		}
		m.release(kind, p)
	}()

	defer func() {
		if r := recover(); r != nil {
			panicked = true
			debug.LogTransform("TREE-SITTER PANIC in file %s: %v\n", path, r)
			tree = nil
			err = pterrors.NewParseError(path, 0, 0, fmt.Errorf("parser panic: %v", r))
		}
	}()

	// Tree-sitter reads the buffer through CGO; hand it a private copy
	buf := make([]byte, len(source))
	copy(buf, source)

	tree = m.parse(p, buf)
	if tree == nil {
		return nil, pterrors.NewParseError(path, 0, 0, errNoTree)
	}

	root := tree.RootNode()
	if root.HasError() {
		line, col := firstErrorPosition(root)
		tree.Close()
		return nil, pterrors.NewParseError(path, line, col, errors.New("syntax error"))
	}
	return tree, nil
}

// firstErrorPosition returns the 1-based position of the first ERROR or
// MISSING node in document order.
func firstErrorPosition(node *tree_sitter.Node) (int, int) {
	if node.IsError() || node.IsMissing() {
		pos := node.StartPosition()
		return int(pos.Row) + 1, int(pos.Column) + 1
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil || !(child.HasError() || child.IsMissing()) {
			continue
		}
		return firstErrorPosition(child)
	}
	pos := node.StartPosition()
	return int(pos.Row) + 1, int(pos.Column) + 1
}
