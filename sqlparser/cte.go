package sqlparser

import (
	"fmt"

	"github.com/k0kubun/pgdvm/ir"
)

// cteBody is a not-yet-parsed CTE definition: a thunk that builds its
// ir.Op the first time it is needed (a CTE referenced zero times, e.g.
// one only used by a sibling CTE, is still only parsed on demand).
type cteBody struct {
	name         string
	defAliases   []string
	parse        func() (ir.Op, error)
	parsed       bool
	cteID        int
	outputCols   []string
}

// CteParseContext implements the WITH-clause decision tree from spec.md
// section 4.2: a FROM <name> occurrence is resolved against (a) the
// current self-ref name (if parsing a recursive term), (b) the
// non-recursive CTE map, or (c) falls through to a base-table Scan.
type CteParseContext struct {
	registry *ir.CteRegistry
	ctes     map[string]*cteBody
	order    []string

	// selfRefName/selfRefCols are set while parsing the recursive term
	// of a RecursiveCte; cleared otherwise. Only one recursive term is
	// ever being parsed at a time (no nested WITH RECURSIVE self-refs).
	selfRefName string
	selfRefCols []string
}

// NewCteParseContext returns an empty context backed by registry.
func NewCteParseContext(registry *ir.CteRegistry) *CteParseContext {
	return &CteParseContext{registry: registry, ctes: map[string]*cteBody{}}
}

// Declare registers a non-recursive (or not-yet-determined) CTE
// definition under name, without parsing it yet.
func (c *CteParseContext) Declare(name string, defAliases []string, parse func() (ir.Op, error)) {
	c.ctes[name] = &cteBody{name: name, defAliases: defAliases, parse: parse, cteID: -1}
	c.order = append(c.order, name)
}

// EnterRecursiveTerm marks name as the active self-reference while the
// recursive term of a RecursiveCte is being parsed.
func (c *CteParseContext) EnterRecursiveTerm(name string, cols []string) {
	c.selfRefName = name
	c.selfRefCols = cols
}

// ExitRecursiveTerm clears the active self-reference.
func (c *CteParseContext) ExitRecursiveTerm() {
	c.selfRefName = ""
	c.selfRefCols = nil
}

// ResolveKind is the outcome of the decision tree: which OpTree variant a
// `FROM name` occurrence should become.
type ResolveKind int

const (
	ResolveSelfRef ResolveKind = iota
	ResolveCteScan
	ResolveBaseScan
)

// Resolve implements spec.md's decision tree for `FROM cte_name`:
//
//  1. name matches the active self-ref -> RecursiveSelfRef
//  2. name is a declared CTE, already parsed -> CteScan reusing its cte_id
//  3. name is a declared CTE, not yet parsed -> parse body, register, CteScan
//  4. otherwise -> base Scan (resolved by the caller via catalog lookup)
func (c *CteParseContext) Resolve(name string, refAliases []string) (ResolveKind, ir.Op, error) {
	if name == c.selfRefName {
		return ResolveSelfRef, ir.RecursiveSelfRef{
			CteName: name,
			Columns: c.selfRefCols,
		}, nil
	}

	body, ok := c.ctes[name]
	if !ok {
		return ResolveBaseScan, nil, nil
	}

	if !body.parsed {
		parsedOp, err := body.parse()
		if err != nil {
			return ResolveCteScan, nil, err
		}
		body.cteID = c.registry.Register(name, parsedOp)
		body.outputCols = outputColumnsOf(parsedOp)
		body.parsed = true
	}

	scan := ir.CteScan{
		CteID:         body.cteID,
		CteName:       name,
		Columns:       body.outputCols,
		CteDefAliases: body.defAliases,
		ColumnAliases: refAliases,
	}
	return ResolveCteScan, scan, nil
}

// outputColumnsOf returns the columns an already-built Op exposes, used
// to populate CteScan.Columns ("body output columns before any alias
// projection", the invariant spec.md section 3 requires of the cache).
// Variants without a case below (Filter, Distinct, joins, set
// operations, ...) return nil.
func outputColumnsOf(op ir.Op) []string {
	switch n := op.(type) {
	case ir.Scan:
		return ir.Names(n.Columns)
	case ir.Project:
		return n.Aliases
	case ir.Subquery:
		if len(n.ColumnAliases) > 0 {
			return n.ColumnAliases
		}
		return outputColumnsOf(n.Child)
	case ir.RecursiveCte:
		return n.Columns
	case ir.CteScan:
		if len(n.ColumnAliases) > 0 {
			return n.ColumnAliases
		}
		if len(n.CteDefAliases) > 0 {
			return n.CteDefAliases
		}
		return n.Columns
	case ir.Aggregate:
		cols := make([]string, 0, len(n.GroupBy)+len(n.Aggs))
		for i, g := range n.GroupBy {
			if cr, ok := g.(ir.ColumnRef); ok {
				cols = append(cols, cr.Column)
			} else {
				cols = append(cols, fmt.Sprintf("group_expr_%d", i))
			}
		}
		for _, a := range n.Aggs {
			cols = append(cols, a.Alias)
		}
		return cols
	default:
		return nil
	}
}
