package transform

import (
	"fmt"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/standardbeagle/proptrim/internal/jsast"
)

// Action describes what the planner did with a site
type Action string

const (
	ActionRemoved   Action = "removed"
	ActionVoided    Action = "voided"
	ActionWrapped   Action = "wrapped"
	ActionHoisted   Action = "hoisted"
	ActionSkipped   Action = "skipped"
	ActionUntouched Action = "untouched"
)

// editRange is a planned removal or replacement of [start, end)
type editRange struct {
	start, end  uint
	replacement string
	replace     bool
}

// insertion is text appended immediately after an offset
type insertion struct {
	offset uint
	text   string
}

// Site reports one located declaration site and what became of it
type Site struct {
	Kind      SiteKind
	Component string
	Line      int
	Column    int
	Action    Action
}

// plan is the ordered set of disjoint edits for one file
type plan struct {
	ranges  []editRange
	inserts []insertion
	sites   []Site
}

// covered reports whether [start, end) lies inside an already planned range
func (p *plan) covered(start, end uint) bool {
	for _, r := range p.ranges {
		if start >= r.start && end <= r.end {
			return true
		}
	}
	return false
}

// removes reports whether offset falls inside a planned range
func (p *plan) removes(offset uint) bool {
	for _, r := range p.ranges {
		if offset >= r.start && offset < r.end {
			return true
		}
	}
	return false
}

func (p *plan) remove(start, end uint) {
	p.ranges = append(p.ranges, editRange{start: start, end: end})
}

func (p *plan) replace(start, end uint, text string) {
	p.ranges = append(p.ranges, editRange{start: start, end: end, replacement: text, replace: true})
}

func (p *plan) insertAfter(offset uint, text string) {
	p.inserts = append(p.inserts, insertion{offset: offset, text: text})
}

// planner turns located sites into edits according to the mode
type planner struct {
	src     []byte
	opts    Options
	parents jsast.ParentMap
	plan    *plan
}

func (pl *planner) run(sites []site) *plan {
	for _, s := range sites {
		start, end := s.node.StartByte(), s.node.EndByte()
		pos := s.node.StartPosition()
		report := Site{
			Kind:      s.kind,
			Component: s.component,
			Line:      int(pos.Row) + 1,
			Column:    int(pos.Column) + 1,
		}

		switch {
		case pl.plan.covered(start, end):
			report.Action = ActionSkipped
		case s.kind == SiteAssignment:
			report.Action = pl.assignment(s)
		default:
			report.Action = pl.staticField(s)
		}
		pl.plan.sites = append(pl.plan.sites, report)
	}
	return pl.plan
}

// assignment plans `L = R` according to the shape of its enclosing node
func (pl *planner) assignment(s site) Action {
	n := s.node
	parent := pl.effectiveParent(n)
	start, end := n.StartByte(), n.EndByte()

	switch pl.opts.Mode {
	case ModeWrap:
		left := jsast.Text(n.ChildByFieldName("left"), pl.src)
		right := n.ChildByFieldName("right")
		if pl.isGuarded(right, emptyObject) {
			return ActionUntouched
		}
		pl.plan.replace(start, end, fmt.Sprintf("%s = %s ? %s : %s",
			left, pl.opts.EnvCheck, jsast.Text(right, pl.src), emptyObject))
		return ActionWrapped

	case ModeUnsafeWrap:
		if jsast.Is(parent, jsast.KindTernary) {
			pl.plan.replace(start, end, noValue)
			return ActionVoided
		}
		pl.plan.replace(start, end, fmt.Sprintf("%s ? %s : %s",
			pl.opts.EnvCheck, jsast.Text(n, pl.src), noValue))
		return ActionWrapped

	default:
		switch {
		case jsast.Is(parent, jsast.KindTernary):
			pl.plan.replace(start, end, noValue)
			return ActionVoided
		case jsast.Is(parent, jsast.KindExpressionStatement):
			pl.plan.remove(parent.StartByte(), parent.EndByte())
		default:
			pl.plan.remove(start, end)
		}
		return ActionRemoved
	}
}

// staticField plans a `static prop = V` class member
func (pl *planner) staticField(s site) Action {
	n := s.node
	start, end := n.StartByte(), pl.fieldEnd(n)

	if pl.opts.Mode == ModeRemove {
		pl.plan.remove(start, end)
		return ActionRemoved
	}

	value := n.ChildByFieldName("value")
	if s.class == nil || s.component == "" || value == nil {
		return ActionSkipped
	}

	v := jsast.Text(value, pl.src)
	target := s.component + "." + pl.opts.PropertyName

	var stmt string
	if pl.opts.Mode == ModeWrap {
		stmt = fmt.Sprintf("\n%s = %s ? %s : %s;", target, pl.opts.EnvCheck, v, emptyObject)
	} else {
		stmt = fmt.Sprintf("\n%s ? %s = %s : %s;", pl.opts.EnvCheck, target, v, noValue)
	}

	pl.plan.remove(start, end)
	pl.plan.insertAfter(s.class.EndByte(), stmt)
	return ActionHoisted
}

// fieldEnd extends a class field to the `;` terminating it, if one is written
func (pl *planner) fieldEnd(field *sitter.Node) uint {
	next := field.NextSibling()
	for next != nil && next.Kind() == jsast.KindComment {
		next = next.NextSibling()
	}
	if next != nil && next.Kind() == ";" && next.EndByte() > next.StartByte() {
		return next.EndByte()
	}
	return field.EndByte()
}

// effectiveParent returns the nearest ancestor that is not a parenthesized
// expression.
func (pl *planner) effectiveParent(n *sitter.Node) *sitter.Node {
	parent := pl.parents.Parent(n)
	for jsast.Is(parent, jsast.KindParenthesized) {
		parent = pl.parents.Parent(parent)
	}
	return parent
}

// isGuarded reports whether value is already `<env-check> ? X : <fallback>`
func (pl *planner) isGuarded(value *sitter.Node, fallback string) bool {
	value = jsast.Unparen(value)
	if !jsast.Is(value, jsast.KindTernary) {
		return false
	}
	cond := jsast.Text(jsast.Unparen(value.ChildByFieldName("condition")), pl.src)
	alt := jsast.Text(value.ChildByFieldName("alternative"), pl.src)
	return cond == pl.opts.EnvCheck && alt == fallback
}
