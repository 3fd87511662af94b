package transform

import (
	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/standardbeagle/proptrim/internal/detect"
	"github.com/standardbeagle/proptrim/internal/jsast"
)

// SiteKind distinguishes the two shapes a declaration site can take
type SiteKind string

const (
	SiteAssignment  SiteKind = "assignment"
	SiteStaticField SiteKind = "static-field"
)

// site is a located assignment or static field with the facts the planner needs
type site struct {
	kind SiteKind
	node *sitter.Node

	// component is the object name of an assignment or the owning class name
	// of a static field; "" when it could not be resolved
	component string
	annotated bool

	// class is the class declaration owning a static field
	class *sitter.Node
}

// importDecl is one tracked import declaration and the names it binds
type importDecl struct {
	node     *sitter.Node
	source   string
	bindings []string
}

// locator performs the single traversal that builds the parent index,
// the component registry, the tracked-import table and the site list.
type locator struct {
	src        []byte
	opts       Options
	classifier *detect.Classifier

	parents    jsast.ParentMap
	components map[string]*sitter.Node

	imports  []importDecl
	bindings map[string]int
	refs     map[string][]uint

	sites []site
}

func newLocator(src []byte, opts Options, classifier *detect.Classifier) *locator {
	return &locator{
		src:        src,
		opts:       opts,
		classifier: classifier,
		parents:    jsast.NewParentMap(),
		components: make(map[string]*sitter.Node),
		bindings:   make(map[string]int),
		refs:       make(map[string][]uint),
	}
}

func (l *locator) run(root *sitter.Node) {
	jsast.Walk(root, l.enter)
}

func (l *locator) enter(n, parent *sitter.Node) bool {
	l.parents.Set(n, parent)

	switch n.Kind() {
	case jsast.KindImportStatement:
		if l.opts.elideImports() {
			l.recordImport(n)
		}

	case jsast.KindIdentifier, jsast.KindShorthandProperty:
		if l.opts.elideImports() && !isImportBinding(parent) {
			name := jsast.Text(n, l.src)
			l.refs[name] = append(l.refs[name], n.StartByte())
		}

	case jsast.KindClassDeclaration, jsast.KindAbstractClassDecl:
		if l.classifier.IsComponentClass(n, l.src) {
			l.register(detect.ClassName(n, l.src), n)
		}

	case jsast.KindFunctionDeclaration, jsast.KindGeneratorDecl:
		if l.classifier.IsStatelessFunction(n, l.src) {
			l.register(jsast.Text(n.ChildByFieldName("name"), l.src), n)
		}

	case jsast.KindVariableDeclarator:
		if l.classifier.IsStatelessDeclarator(n, l.src) {
			l.register(jsast.Text(n.ChildByFieldName("name"), l.src), n)
		}

	case jsast.KindAssignment:
		l.locateAssignment(n)

	case jsast.KindFieldDefinition, jsast.KindPublicField:
		l.locateStaticField(n, parent)
	}

	return true
}

// register records a component under its declared name; a later
// declaration of the same name replaces the earlier one.
func (l *locator) register(name string, decl *sitter.Node) {
	if name == "" {
		return
	}
	l.components[name] = decl
}

func (l *locator) locateAssignment(n *sitter.Node) {
	left := n.ChildByFieldName("left")
	object, ok := l.propertyTarget(left)
	if !ok {
		return
	}

	s := site{
		kind:      SiteAssignment,
		node:      n,
		annotated: jsast.IsAnnotated(left, l.src, l.opts.Annotation),
	}
	if name := jsast.IdentifierName(object, l.src); name != "" {
		if _, registered := l.components[name]; registered {
			s.component = name
		}
	}
	if !s.annotated && s.component == "" {
		return
	}
	if s.component == "" {
		s.component = jsast.Text(object, l.src)
	}
	l.sites = append(l.sites, s)
}

// propertyTarget returns the object of a non-computed member access ending
// in the configured property name.
func (l *locator) propertyTarget(left *sitter.Node) (*sitter.Node, bool) {
	if !jsast.Is(left, jsast.KindMemberExpression) {
		return nil, false
	}
	prop := left.ChildByFieldName("property")
	if !jsast.Is(prop, jsast.KindPropertyIdentifier) || jsast.Text(prop, l.src) != l.opts.PropertyName {
		return nil, false
	}
	return left.ChildByFieldName("object"), true
}

func (l *locator) locateStaticField(n, parent *sitter.Node) {
	if !jsast.Is(parent, jsast.KindClassBody) || !isStatic(n) {
		return
	}
	name := n.ChildByFieldName("property")
	if name == nil {
		name = n.ChildByFieldName("name")
	}
	if !jsast.Is(name, jsast.KindPropertyIdentifier) || jsast.Text(name, l.src) != l.opts.PropertyName {
		return
	}

	s := site{kind: SiteStaticField, node: n}
	if class := l.parents.Parent(parent); jsast.IsClassDeclaration(class) {
		s.class = class
		s.component = detect.ClassName(class, l.src)
	}
	l.sites = append(l.sites, s)
}

func (l *locator) recordImport(n *sitter.Node) {
	source := stringValue(n.ChildByFieldName("source"), l.src)
	if !l.opts.tracksLibrary(source) {
		return
	}

	decl := importDecl{node: n, source: source}
	clause := jsast.ChildByKind(n, jsast.KindImportClause)
	if clause != nil {
		decl.bindings = importBindings(clause, l.src)
	}

	idx := len(l.imports)
	l.imports = append(l.imports, decl)
	for _, name := range decl.bindings {
		l.bindings[name] = idx
	}
}

// importBindings lists the local names an import clause introduces
func importBindings(clause *sitter.Node, src []byte) []string {
	var names []string
	for i := uint(0); i < clause.NamedChildCount(); i++ {
		child := clause.NamedChild(i)
		switch child.Kind() {
		case jsast.KindIdentifier:
			names = append(names, jsast.Text(child, src))
		case jsast.KindNamespaceImport:
			if id := jsast.ChildByKind(child, jsast.KindIdentifier); id != nil {
				names = append(names, jsast.Text(id, src))
			}
		case jsast.KindNamedImports:
			for j := uint(0); j < child.NamedChildCount(); j++ {
				spec := child.NamedChild(j)
				if spec.Kind() != jsast.KindImportSpecifier {
					continue
				}
				local := spec.ChildByFieldName("alias")
				if local == nil {
					local = spec.ChildByFieldName("name")
				}
				if jsast.Is(local, jsast.KindIdentifier) {
					names = append(names, jsast.Text(local, src))
				}
			}
		}
	}
	return names
}

func isImportBinding(parent *sitter.Node) bool {
	return jsast.Is(parent, jsast.KindImportSpecifier, jsast.KindImportClause, jsast.KindNamespaceImport)
}

func isStatic(field *sitter.Node) bool {
	for i := uint(0); i < field.ChildCount(); i++ {
		if child := field.Child(i); child != nil && child.Kind() == "static" {
			return true
		}
	}
	return false
}

// stringValue returns the contents of a string literal without its quotes
func stringValue(node *sitter.Node, src []byte) string {
	text := jsast.Text(node, src)
	if len(text) >= 2 {
		return text[1 : len(text)-1]
	}
	return text
}
