package parser

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	pterrors "github.com/standardbeagle/proptrim/internal/errors"
)

func TestDetectSourceKind(t *testing.T) {
	tests := []struct {
		filename string
		want     SourceKind
	}{
		{"/src/Foo.js", SourceJavaScript},
		{"/src/Foo.jsx", SourceJavaScript},
		{"/src/Foo.mjs", SourceJavaScript},
		{"/src/Foo.ts", SourceTypeScript},
		{"/src/Foo.mts", SourceTypeScript},
		{"/src/Foo.TSX", SourceTSX},
		{"/src/Foo.tsx?v=12", SourceTSX},
		{"\x00virtual:module", SourceJavaScript},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectSourceKind(tt.filename))
		})
	}
}

func TestIsSupportedFile(t *testing.T) {
	assert.True(t, IsSupportedFile("a.jsx"))
	assert.True(t, IsSupportedFile("a.cts"))
	assert.False(t, IsSupportedFile("a.css"))
	assert.False(t, IsSupportedFile("README"))
}

func TestParse_JSX(t *testing.T) {
	m := NewManager(2)
	defer m.Close()

	src := []byte(`const Foo = () => <div className="x">{props.a}</div>;`)
	tree, err := m.Parse(src, SourceJavaScript, "Foo.jsx")
	require.NoError(t, err)
	defer tree.Close()

	root := tree.RootNode()
	assert.Equal(t, "program", root.Kind())
	assert.False(t, root.HasError())
	assert.Equal(t, uint(len(src)), root.EndByte())
}

func TestParse_TSX(t *testing.T) {
	m := NewManager(2)
	defer m.Close()

	src := []byte(`class Foo extends React.Component<Props> { static propTypes = {}; render() { return <div/>; } }`)
	tree, err := m.Parse(src, SourceTSX, "Foo.tsx")
	require.NoError(t, err)
	defer tree.Close()
	assert.False(t, tree.RootNode().HasError())
}

func TestParse_SyntaxError(t *testing.T) {
	m := NewManager(2)
	defer m.Close()

	src := []byte("const a = ;\nfunction {")
	tree, err := m.Parse(src, SourceJavaScript, "broken.js")
	assert.Nil(t, tree)
	require.Error(t, err)

	var pe *pterrors.ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "broken.js", pe.FilePath)
	assert.GreaterOrEqual(t, pe.Line, 1)
}

func TestParse_Concurrent(t *testing.T) {
	m := NewManager(2)
	defer m.Close()

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tree, err := m.Parse([]byte(`export default function A() { return <a/>; }`), SourceJavaScript, "a.js")
			if err != nil {
				errs <- err
				return
			}
			tree.Close()
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
}

func TestManager_CloseRejectsParse(t *testing.T) {
	m := NewManager(1)
	m.Close()
	m.Close()

	_, err := m.Parse([]byte("a"), SourceJavaScript, "a.js")
	assert.Error(t, err)
}

func TestParse_PanicDiscardsParser(t *testing.T) {
	m := NewManager(2)
	defer m.Close()

	// Pool one healthy parser first
	tree, err := m.Parse([]byte("a;"), SourceJavaScript, "a.js")
	require.NoError(t, err)
	tree.Close()
	require.Len(t, m.idle[SourceJavaScript], 1)

	m.parse = func(*tree_sitter.Parser, []byte) *tree_sitter.Tree { panic("boom") }
	_, err = m.Parse([]byte("a;"), SourceJavaScript, "a.js")
	require.Error(t, err)
	var parseErr *pterrors.ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Contains(t, err.Error(), "parser panic: boom")
	assert.Empty(t, m.idle[SourceJavaScript], "the panicked parser must not return to the pool")

	m.parse = parseBuffer
	tree, err = m.Parse([]byte("a;"), SourceJavaScript, "a.js")
	require.NoError(t, err)
	tree.Close()
	assert.Len(t, m.idle[SourceJavaScript], 1)
}
