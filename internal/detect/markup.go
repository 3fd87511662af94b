package detect

import (
	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/standardbeagle/proptrim/internal/jsast"
)

// ReturnsUI reports whether fn hands back a UI element. An arrow function
// with an expression body is checked directly; otherwise only the function's
// own return statements count, never those of nested functions.
func ReturnsUI(fn *sitter.Node, src []byte) bool {
	body := fn.ChildByFieldName("body")
	if body == nil {
		return false
	}

	if fn.Kind() == jsast.KindArrowFunction && body.Kind() != jsast.KindStatementBlock {
		return ConstructsUI(body, src)
	}

	found := false
	jsast.Walk(body, func(n, _ *sitter.Node) bool {
		if found {
			return false
		}
		if jsast.IsFunction(n) || jsast.IsClass(n) {
			return false
		}
		if n.Kind() == jsast.KindReturnStatement {
			if arg := jsast.FirstNamedChild(n); arg != nil && ConstructsUI(arg, src) {
				found = true
			}
			return false
		}
		return true
	})
	return found
}

// ConstructsUI reports whether node contains markup or an element factory
// call anywhere beneath it, callbacks included.
func ConstructsUI(node *sitter.Node, src []byte) bool {
	found := false
	jsast.Walk(node, func(n, _ *sitter.Node) bool {
		if found {
			return false
		}
		switch n.Kind() {
		case jsast.KindJSXElement, jsast.KindJSXSelfClosing, jsast.KindJSXFragment:
			found = true
			return false
		case jsast.KindCallExpression:
			if isElementFactoryCall(n, src) {
				found = true
				return false
			}
		}
		return true
	})
	return found
}

func isElementFactoryCall(call *sitter.Node, src []byte) bool {
	callee := jsast.Unparen(call.ChildByFieldName("function"))
	if jsast.MatchesAnyPattern(callee, src, elementFactoryPatterns...) {
		return true
	}
	return elementFactoryNames[jsast.IdentifierName(callee, src)]
}
