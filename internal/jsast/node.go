// Package jsast holds read-only helpers over tree-sitter JavaScript trees:
// node text, child lookup, a skip-aware walk, the parent index and the
// structural predicates used by component detection.
package jsast

import (
	sitter "github.com/tree-sitter/go-tree-sitter"
)

// Node kinds shared by the JavaScript, TypeScript and TSX grammars
const (
	KindProgram             = "program"
	KindComment             = "comment"
	KindIdentifier          = "identifier"
	KindTypeIdentifier      = "type_identifier"
	KindPropertyIdentifier  = "property_identifier"
	KindShorthandProperty   = "shorthand_property_identifier"
	KindMemberExpression    = "member_expression"
	KindAssignment          = "assignment_expression"
	KindExpressionStatement = "expression_statement"
	KindTernary             = "ternary_expression"
	KindParenthesized       = "parenthesized_expression"
	KindCallExpression      = "call_expression"
	KindReturnStatement     = "return_statement"
	KindStatementBlock      = "statement_block"
	KindVariableDeclarator  = "variable_declarator"
	KindFunctionDeclaration = "function_declaration"
	KindGeneratorDecl       = "generator_function_declaration"
	KindFunctionExpression  = "function_expression"
	KindFunctionLegacy      = "function"
	KindGeneratorFunction   = "generator_function"
	KindArrowFunction       = "arrow_function"
	KindMethodDefinition    = "method_definition"
	KindClassDeclaration    = "class_declaration"
	KindAbstractClassDecl   = "abstract_class_declaration"
	KindClassExpression     = "class"
	KindClassHeritage       = "class_heritage"
	KindExtendsClause       = "extends_clause"
	KindClassBody           = "class_body"
	KindFieldDefinition     = "field_definition"
	KindPublicField         = "public_field_definition"
	KindImportStatement     = "import_statement"
	KindImportClause        = "import_clause"
	KindImportSpecifier     = "import_specifier"
	KindNamespaceImport     = "namespace_import"
	KindNamedImports        = "named_imports"
	KindJSXElement          = "jsx_element"
	KindJSXSelfClosing      = "jsx_self_closing_element"
	KindJSXFragment         = "jsx_fragment"
)

// Text extracts the source text covered by node
func Text(node *sitter.Node, src []byte) string {
	if node == nil {
		return ""
	}

	start := node.StartByte()
	end := node.EndByte()

	if start > uint(len(src)) || end > uint(len(src)) || start > end {
		return ""
	}

	return string(src[start:end])
}

// ChildByKind finds the first direct child whose kind is one of kinds
func ChildByKind(node *sitter.Node, kinds ...string) *sitter.Node {
	if node == nil {
		return nil
	}

	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child != nil && hasKind(child, kinds) {
			return child
		}
	}

	return nil
}

// FirstNamedChild returns the first named child that is not a comment
func FirstNamedChild(node *sitter.Node) *sitter.Node {
	if node == nil {
		return nil
	}
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child != nil && child.Kind() != KindComment {
			return child
		}
	}
	return nil
}

// Is reports whether node is non-nil and has one of kinds
func Is(node *sitter.Node, kinds ...string) bool {
	return node != nil && hasKind(node, kinds)
}

func hasKind(node *sitter.Node, kinds []string) bool {
	k := node.Kind()
	for _, want := range kinds {
		if k == want {
			return true
		}
	}
	return false
}

// IsFunction reports whether node opens a new function body
func IsFunction(node *sitter.Node) bool {
	return Is(node,
		KindFunctionDeclaration, KindGeneratorDecl,
		KindFunctionExpression, KindFunctionLegacy, KindGeneratorFunction,
		KindArrowFunction, KindMethodDefinition)
}

// IsClass reports whether node is a class declaration or class expression
func IsClass(node *sitter.Node) bool {
	return Is(node, KindClassDeclaration, KindAbstractClassDecl, KindClassExpression)
}

// IsClassDeclaration reports whether node declares a class as a statement
func IsClassDeclaration(node *sitter.Node) bool {
	return Is(node, KindClassDeclaration, KindAbstractClassDecl)
}

// Unparen strips any number of wrapping parenthesized_expression nodes
func Unparen(node *sitter.Node) *sitter.Node {
	for node != nil && node.Kind() == KindParenthesized {
		inner := FirstNamedChild(node)
		if inner == nil {
			return node
		}
		node = inner
	}
	return node
}

// IdentifierName returns the name of an identifier-like node, or "" when the
// node is anything else.
func IdentifierName(node *sitter.Node, src []byte) string {
	if Is(node, KindIdentifier, KindTypeIdentifier) {
		return Text(node, src)
	}
	return ""
}

// Walk visits node and its descendants depth-first, pre-order. visit
// receives each node with its parent (nil for the root); returning false
// skips the node's children.
func Walk(node *sitter.Node, visit func(node, parent *sitter.Node) bool) {
	walk(node, nil, visit)
}

func walk(node, parent *sitter.Node, visit func(node, parent *sitter.Node) bool) {
	if node == nil || !visit(node, parent) {
		return
	}

	for i := uint(0); i < node.ChildCount(); i++ {
		walk(node.Child(i), node, visit)
	}
}

// Contains reports whether offset lies in the half-open byte range of node
func Contains(node *sitter.Node, offset uint) bool {
	return node != nil && offset >= node.StartByte() && offset < node.EndByte()
}
