package diff

import (
	"fmt"

	"github.com/k0kubun/pgdvm/ir"
)

// diffScalarSubquery extends each changed outer row with one scalar
// value recomputed by re-evaluating Inner against the current catalog
// state (spec.md section 4.4 "ScalarSubquery"). The scalar is
// recomputed unconditionally for every changed outer row since Inner
// may reference outer columns and has no independent delta of its own
// that composes with the outer row's change.
func diffScalarSubquery(c *Context, s ir.ScalarSubquery) (Result, error) {
	if s.Child == nil {
		return Result{}, fmt.Errorf("scalar subquery with no outer child is unsupported at the top level")
	}
	child, err := Differentiate(c, s.Child)
	if err != nil {
		return Result{}, err
	}

	innerSQL, innerErr := renderCorrelatedInner(c, s.Inner)
	if innerErr != nil {
		return Result{}, innerErr
	}

	body := fmt.Sprintf(
		"SELECT __pgs_row_id, __pgs_action, %s, (%s) AS %s\nFROM %s d",
		selectList("d", child.Columns), innerSQL, ir.QuoteIdent(s.OutputAlias), ir.QuoteIdent(child.CTEName),
	)
	name := c.NextCTEName("scalar_subquery")
	c.AddCTE(name, body, false)

	outCols := append(append([]string{}, child.Columns...), s.OutputAlias)
	return Result{CTEName: name, Columns: outCols, IsDeduplicated: child.IsDeduplicated}, nil
}

// renderCorrelatedInner renders a scalar subquery's inner OpTree as a raw
// correlated SQL subquery. Unlike every other diff_xxx function, this
// does not differentiate Inner — a scalar subquery's current value is
// read directly, the same way a FILTER qualification reads current
// catalog state, since Inner typically correlates against the outer
// row and has no meaningful standalone delta.
func renderCorrelatedInner(c *Context, op ir.Op) (string, error) {
	switch o := op.(type) {
	case ir.Aggregate:
		sql, _, err := fullRelation(c, o.Child, Current)
		if err != nil {
			return "", err
		}
		aggExprs := make([]string, len(o.Aggs))
		for i, ad := range o.Aggs {
			aggExprs[i] = renderAggCall(ad)
		}
		return fmt.Sprintf("SELECT %s FROM %s", aggExprs[0], sql), nil
	default:
		return "", fmt.Errorf("unsupported scalar-subquery inner shape: %v", op.Kind())
	}
}
