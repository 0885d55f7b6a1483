package diff

import (
	"fmt"

	"github.com/k0kubun/pgdvm/ir"
)

// diffFilter re-evaluates Predicate over the child delta: a delta row
// survives a Filter exactly when it still satisfies the predicate, so no
// shape of differentiation beyond evaluating the predicate on each
// changed row is required (spec.md section 4.4 "Filter").
func diffFilter(c *Context, f ir.Filter) (Result, error) {
	child, err := Differentiate(c, f.Child)
	if err != nil {
		return Result{}, err
	}

	body := fmt.Sprintf(
		"SELECT __pgs_row_id, __pgs_action, %s\nFROM %s\nWHERE %s",
		selectList("", child.Columns), ir.QuoteIdent(child.CTEName), f.Predicate.SQL(),
	)
	name := c.NextCTEName("filter")
	c.AddCTE(name, body, false)

	return Result{CTEName: name, Columns: child.Columns, IsDeduplicated: child.IsDeduplicated}, nil
}
