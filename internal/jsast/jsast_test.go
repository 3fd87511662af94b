package jsast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/standardbeagle/proptrim/internal/parser"
)

func parseJS(t *testing.T, src string) (*sitter.Node, []byte) {
	t.Helper()
	buf := []byte(src)
	tree, err := parser.Default().Parse(buf, parser.SourceJavaScript, "test.jsx")
	require.NoError(t, err)
	t.Cleanup(tree.Close)
	return tree.RootNode(), buf
}

// firstOfKind returns the first node of kind in document order
func firstOfKind(root *sitter.Node, kind string) *sitter.Node {
	var found *sitter.Node
	Walk(root, func(n, _ *sitter.Node) bool {
		if found != nil {
			return false
		}
		if n.Kind() == kind {
			found = n
			return false
		}
		return true
	})
	return found
}

func TestMatchesPattern(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		pattern string
		want    bool
	}{
		{"two segments", "React.Component;", "React.Component", true},
		{"three segments", "a.b.c;", "a.b.c", true},
		{"wrong tail", "React.Fragment;", "React.Component", false},
		{"wrong head", "Preact.Component;", "React.Component", false},
		{"chain longer than pattern", "x.React.Component;", "React.Component", false},
		{"chain shorter than pattern", "Component;", "React.Component", false},
		{"single identifier", "Component;", "Component", true},
		{"computed access", `React["Component"];`, "React.Component", false},
		{"call in chain", "React().Component;", "React.Component", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root, src := parseJS(t, tt.src)
			stmt := firstOfKind(root, KindExpressionStatement)
			require.NotNil(t, stmt)
			expr := FirstNamedChild(stmt)
			assert.Equal(t, tt.want, MatchesPattern(expr, src, tt.pattern))
		})
	}
}

func TestMatchesPattern_Nil(t *testing.T) {
	assert.False(t, MatchesPattern(nil, nil, "A.B"))
	assert.False(t, MatchesAnyPattern(nil, nil))
}

func TestIsAnnotated(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want bool
	}{
		{"block comment", "Foo.propTypes /* remove-proptypes */ = {};", true},
		{"padded block comment", "Foo.propTypes /*   remove-proptypes\t*/ = {};", true},
		{"no comment", "Foo.propTypes = {};", false},
		{"other comment", "Foo.propTypes /* keep */ = {};", false},
		{"second comment", "Foo.propTypes /* a */ /* remove-proptypes */ = {};", true},
		{"substring only", "Foo.propTypes /* remove-proptypes please */ = {};", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root, src := parseJS(t, tt.src)
			assign := firstOfKind(root, KindAssignment)
			require.NotNil(t, assign)
			left := assign.ChildByFieldName("left")
			assert.Equal(t, tt.want, IsAnnotated(left, src, "remove-proptypes"))
		})
	}
}

func TestCommentBody(t *testing.T) {
	assert.Equal(t, "remove-proptypes", CommentBody("// remove-proptypes "))
	assert.Equal(t, "remove-proptypes", CommentBody("/* remove-proptypes */"))
	assert.Equal(t, "x", CommentBody("x"))
}

func TestParentMap(t *testing.T) {
	root, _ := parseJS(t, "class A extends B { static propTypes = {}; }")

	pm := NewParentMap()
	Walk(root, func(n, parent *sitter.Node) bool {
		pm.Set(n, parent)
		return true
	})

	field := firstOfKind(root, KindFieldDefinition)
	require.NotNil(t, field)

	assert.Equal(t, KindClassBody, pm.Parent(field).Kind())
	class := pm.Ancestor(field, KindClassDeclaration)
	require.NotNil(t, class)
	assert.Equal(t, KindClassDeclaration, class.Kind())
	assert.Nil(t, pm.Ancestor(field, KindImportStatement))
	assert.Nil(t, pm.Parent(root))
}

func TestWalk_SkipsChildren(t *testing.T) {
	root, _ := parseJS(t, "function outer() { function inner() { return 1; } return 2; }")

	var returns int
	Walk(root, func(n, _ *sitter.Node) bool {
		if n.Kind() == KindFunctionDeclaration && n.Parent() != nil && n.Parent().Kind() != KindProgram {
			return false
		}
		if n.Kind() == KindReturnStatement {
			returns++
		}
		return true
	})
	assert.Equal(t, 1, returns)
}

func TestUnparenAndText(t *testing.T) {
	root, src := parseJS(t, "((a));")
	stmt := firstOfKind(root, KindExpressionStatement)
	inner := Unparen(FirstNamedChild(stmt))
	require.NotNil(t, inner)
	assert.Equal(t, KindIdentifier, inner.Kind())
	assert.Equal(t, "a", Text(inner, src))
	assert.Equal(t, "a", IdentifierName(inner, src))
	assert.Equal(t, "", Text(nil, src))
}

func TestKindPredicates(t *testing.T) {
	root, _ := parseJS(t, "const f = () => 1; const C = class {};")
	assert.True(t, IsFunction(firstOfKind(root, KindArrowFunction)))
	assert.True(t, IsClass(firstOfKind(root, KindClassExpression)))
	assert.False(t, IsClassDeclaration(firstOfKind(root, KindClassExpression)))
	assert.False(t, Is(nil, KindProgram))
	assert.True(t, Contains(root, 0))
	assert.False(t, Contains(root, root.EndByte()))
}
