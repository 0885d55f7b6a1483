package sqlparser

import "github.com/k0kubun/pgdvm/ir"

// SetOpKind mirrors pg_query's SetOperation enum values relevant to this
// engine (SETOP_NONE is handled before BuildSetOp is ever called).
type SetOpKind int

const (
	SetOpUnion SetOpKind = iota
	SetOpIntersect
	SetOpExcept
)

// BuildSetOp combines an already-built left subtree with a freshly built
// right subtree per spec.md section 4.2: dispatch happens on the `op`
// field (not on Larg/Rarg nullness, which pg_query_go may leave non-nil
// even on simple SELECTs). UNION ALL flattens nested same-kind UnionAll
// arms into one vector; UNION (dedup) wraps the flattened UnionAll in a
// Distinct. Mixed UNION / UNION ALL does not flatten across the
// differing-kind boundary — it preserves PostgreSQL's nested
// set-operation semantics by leaving the other-kind subtree intact as a
// single child.
func BuildSetOp(kind SetOpKind, all bool, left, right ir.Op) ir.Op {
	switch kind {
	case SetOpIntersect:
		return ir.Intersect{Left: left, Right: right, All: all}
	case SetOpExcept:
		return ir.Except{Left: left, Right: right, All: all}
	default: // SetOpUnion
		children := flattenSetOpChain(left, all)
		children = append(children, right)
		if all {
			return ir.UnionAll{Children_: children}
		}
		return ir.Distinct{Child: ir.UnionAll{Children_: children}}
	}
}

// flattenSetOpChain returns left's own set-op children when left was
// built by a previous BuildSetOp call of the *same* union kind (ALL vs
// dedup); otherwise it returns left unchanged as a single element,
// preserving left as an opaque nested subtree.
func flattenSetOpChain(left ir.Op, all bool) []ir.Op {
	if all {
		if u, ok := left.(ir.UnionAll); ok {
			out := make([]ir.Op, len(u.Children_))
			copy(out, u.Children_)
			return out
		}
		return []ir.Op{left}
	}
	if d, ok := left.(ir.Distinct); ok {
		if u, ok := d.Child.(ir.UnionAll); ok {
			out := make([]ir.Op, len(u.Children_))
			copy(out, u.Children_)
			return out
		}
	}
	return []ir.Op{left}
}
