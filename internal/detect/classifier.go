// Package detect decides which declarations in a JavaScript module are UI
// components. Detection is structural only: base-class shape for classes,
// returned markup for functions.
package detect

import (
	"regexp"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/standardbeagle/proptrim/internal/jsast"
)

// Base classes recognised without configuration
var (
	baseClassPatterns = []string{"React.Component", "React.PureComponent"}
	baseClassNames    = map[string]bool{"Component": true, "PureComponent": true}
)

// Calls that produce a UI element
var (
	elementFactoryPatterns = []string{"React.createElement", "React.cloneElement"}
	elementFactoryNames    = map[string]bool{"cloneElement": true}
)

// Higher-order wrappers whose first argument is the component
var (
	wrapperPatterns = []string{"React.memo", "React.forwardRef"}
	wrapperNames    = map[string]bool{"memo": true, "forwardRef": true}
)

// Classifier classifies declarations. It is immutable after construction
// and safe for concurrent use.
type Classifier struct {
	classNameMatcher *regexp.Regexp
}

// NewClassifier creates a classifier. classNameMatcher, when non-nil, is
// tested against a bare identifier base class in addition to the built-in
// Component / PureComponent names.
func NewClassifier(classNameMatcher *regexp.Regexp) *Classifier {
	return &Classifier{classNameMatcher: classNameMatcher}
}

// IsComponentClass reports whether class is a named class whose base class
// identifies it as a component.
func (c *Classifier) IsComponentClass(class *sitter.Node, src []byte) bool {
	if !jsast.IsClass(class) || ClassName(class, src) == "" {
		return false
	}
	return c.isComponentBase(SuperClass(class), src)
}

func (c *Classifier) isComponentBase(super *sitter.Node, src []byte) bool {
	super = jsast.Unparen(super)
	if super == nil {
		return false
	}

	if jsast.MatchesAnyPattern(super, src, baseClassPatterns...) {
		return true
	}

	name := jsast.IdentifierName(super, src)
	if name == "" {
		return false
	}
	if baseClassNames[name] {
		return true
	}
	return c.classNameMatcher != nil && c.classNameMatcher.MatchString(name)
}

// ClassName returns the declared name of class, or "" when it is anonymous
func ClassName(class *sitter.Node, src []byte) string {
	if class == nil {
		return ""
	}
	return jsast.IdentifierName(class.ChildByFieldName("name"), src)
}

// SuperClass returns the base-class expression of class, or nil. JavaScript
// puts the expression directly under class_heritage; TypeScript nests it in
// an extends_clause.
func SuperClass(class *sitter.Node) *sitter.Node {
	heritage := jsast.ChildByKind(class, jsast.KindClassHeritage)
	if heritage == nil {
		return nil
	}

	if ext := jsast.ChildByKind(heritage, jsast.KindExtendsClause); ext != nil {
		if v := ext.ChildByFieldName("value"); v != nil {
			return v
		}
		return jsast.FirstNamedChild(ext)
	}

	first := jsast.FirstNamedChild(heritage)
	if jsast.Is(first, "implements_clause") {
		return nil
	}
	return first
}

// IsStatelessFunction reports whether a function declaration is a named
// function component.
func (c *Classifier) IsStatelessFunction(fn *sitter.Node, src []byte) bool {
	if !jsast.Is(fn, jsast.KindFunctionDeclaration, jsast.KindGeneratorDecl) {
		return false
	}
	if jsast.IdentifierName(fn.ChildByFieldName("name"), src) == "" {
		return false
	}
	return ReturnsUI(fn, src)
}

// IsStatelessDeclarator reports whether a variable declarator binds a plain
// name to a function component, either a function literal or a memo /
// forwardRef wrapper around one.
func (c *Classifier) IsStatelessDeclarator(decl *sitter.Node, src []byte) bool {
	if !jsast.Is(decl, jsast.KindVariableDeclarator) {
		return false
	}
	if !jsast.Is(decl.ChildByFieldName("name"), jsast.KindIdentifier) {
		return false
	}
	return isComponentValue(decl.ChildByFieldName("value"), src)
}

func isComponentValue(value *sitter.Node, src []byte) bool {
	value = jsast.Unparen(value)
	if value == nil {
		return false
	}

	switch value.Kind() {
	case jsast.KindArrowFunction, jsast.KindFunctionExpression, jsast.KindFunctionLegacy:
		return ReturnsUI(value, src)
	case jsast.KindCallExpression:
		if !isWrapperCall(value, src) {
			return false
		}
		return isComponentValue(firstArgument(value), src)
	}
	return false
}

func isWrapperCall(call *sitter.Node, src []byte) bool {
	callee := jsast.Unparen(call.ChildByFieldName("function"))
	if jsast.MatchesAnyPattern(callee, src, wrapperPatterns...) {
		return true
	}
	return wrapperNames[jsast.IdentifierName(callee, src)]
}

func firstArgument(call *sitter.Node) *sitter.Node {
	args := call.ChildByFieldName("arguments")
	if args == nil {
		return nil
	}
	return jsast.FirstNamedChild(args)
}
