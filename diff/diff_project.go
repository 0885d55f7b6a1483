package diff

import (
	"fmt"

	"github.com/k0kubun/pgdvm/ir"
)

// diffProject re-maps the child delta through Exprs. Row-id treatment
// depends on the child (spec.md section 4.4 "Project", section 6 open
// question, adopted): a join child recomputes the row-id by hashing the
// projected output tuple itself, since PK-corresponding expressions are
// not tracked per-column in the OpTree and hashing the full output is the
// conservative stand-in — it still yields a row-id stable across any
// refresh, just not minimal across opposite-side-only value changes. A
// Lateral child is treated the same way (SRF expansions have no natural
// PK). Any other child passes its row-id through unchanged.
func diffProject(c *Context, p ir.Project) (Result, error) {
	child, err := Differentiate(c, p.Child)
	if err != nil {
		return Result{}, err
	}

	rowID := "__pgs_row_id"
	switch p.Child.(type) {
	case ir.InnerJoin, ir.LeftJoin, ir.FullJoin, ir.LateralFunction, ir.LateralSubquery:
		exprs := make([]string, len(p.Exprs))
		for i, e := range p.Exprs {
			exprs[i] = fmt.Sprintf("%s::text", e.SQL())
		}
		rowID = combineRowIDs(exprs...)
	}

	body := fmt.Sprintf(
		"SELECT %s AS __pgs_row_id, __pgs_action, %s\nFROM %s",
		rowID, aliasedSelectList(p.Exprs, p.Aliases), ir.QuoteIdent(child.CTEName),
	)
	name := c.NextCTEName("project")
	c.AddCTE(name, body, false)

	return Result{CTEName: name, Columns: p.Aliases, IsDeduplicated: child.IsDeduplicated}, nil
}

// diffSubquery just renames the CTE output to the given alias's columns;
// the rows themselves are unchanged (spec.md section 4.4 "Subquery").
func diffSubquery(c *Context, s ir.Subquery) (Result, error) {
	child, err := Differentiate(c, s.Child)
	if err != nil {
		return Result{}, err
	}
	cols := child.Columns
	if len(s.ColumnAliases) > 0 {
		cols = s.ColumnAliases
	}
	return Result{CTEName: child.CTEName, Columns: cols, IsDeduplicated: child.IsDeduplicated}, nil
}
