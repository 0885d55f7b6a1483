package sqlparser

import "github.com/k0kubun/pgdvm/ir"

// RewriteHaving rewrites a HAVING predicate that references an aggregate
// directly (e.g. `HAVING SUM(amount) > 100`) to instead reference the
// already-computed aggregate column alias (`total > 100`), per spec.md
// section 4.2. This lets the downstream Filter be emitted over the
// Aggregate op's output CTE rather than re-invoking the aggregate
// function a second time (which would require a second, independent
// differentiation of the same aggregate expression).
//
// aliasFor maps a rendered aggregate-expression key (FuncCall.SQL()) to
// the output alias the Aggregate op assigned it. Any FuncCall found in
// predicate that does not match an entry is left untouched (it is not an
// aggregate call — e.g. a scalar function over a grouped column).
func RewriteHaving(predicate ir.Expr, aliasFor map[string]string) ir.Expr {
	if predicate == nil {
		return nil
	}
	switch n := predicate.(type) {
	case ir.FuncCall:
		if alias, ok := aliasFor[n.SQL()]; ok {
			return ir.ColumnRef{Column: alias}
		}
		rewritten := make([]ir.Expr, len(n.Args))
		for i, a := range n.Args {
			rewritten[i] = RewriteHaving(a, aliasFor)
		}
		return ir.FuncCall{Name: n.Name, Args: rewritten}
	case ir.BinaryOp:
		return ir.BinaryOp{
			Op:    n.Op,
			Left:  RewriteHaving(n.Left, aliasFor),
			Right: RewriteHaving(n.Right, aliasFor),
		}
	default:
		return predicate
	}
}
