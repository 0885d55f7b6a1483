package diff

import (
	"fmt"

	"github.com/k0kubun/pgdvm/ir"
)

// diffLateralFunction and diffLateralSubquery implement row-scoped
// recomputation (spec.md section 4.4 "LateralFunction / LateralSubquery"):
// for each changed outer row, delete its old expansions (matched by
// outer-row identity in the stream table) and re-expand the RawCall /
// RawSubquery escape hatch for the new row.
func diffLateralFunction(c *Context, l ir.LateralFunction) (Result, error) {
	child, err := Differentiate(c, l.Child)
	if err != nil {
		return Result{}, err
	}

	ordinality := ""
	if l.WithOrdinality {
		ordinality = " WITH ORDINALITY"
	}

	deletes := fmt.Sprintf(
		"SELECT st.__pgs_row_id, 'D'::text AS __pgs_action, st.*\n"+
			"FROM %s st\n"+
			"JOIN %s d ON st.__pgs_outer_row_id = d.__pgs_row_id\n"+
			"WHERE d.__pgs_action IN ('I', 'D')",
		streamTableRef(c), ir.QuoteIdent(child.CTEName),
	)
	inserts := fmt.Sprintf(
		"SELECT %s AS __pgs_row_id, 'I'::text AS __pgs_action, d.__pgs_row_id AS __pgs_outer_row_id, expanded.*\n"+
			"FROM %s d, LATERAL %s%s AS %s(%s) expanded\n"+
			"WHERE d.__pgs_action = 'I'",
		combineRowIDs("d.__pgs_row_id::text", "expanded.*::text"),
		ir.QuoteIdent(child.CTEName), l.RawCall, ordinality, ir.QuoteIdent(l.Alias), ir.ColList(l.ColumnAliases),
	)

	name := c.NextCTEName("lateral_function")
	c.AddCTE(name, deletes+"\nUNION ALL\n"+inserts, false)
	return Result{CTEName: name, Columns: l.ColumnAliases, IsDeduplicated: true}, nil
}

func diffLateralSubquery(c *Context, l ir.LateralSubquery) (Result, error) {
	child, err := Differentiate(c, l.Child)
	if err != nil {
		return Result{}, err
	}

	joinWord := "CROSS JOIN LATERAL"
	if l.IsLeft {
		joinWord = "LEFT JOIN LATERAL"
	}

	deletes := fmt.Sprintf(
		"SELECT st.__pgs_row_id, 'D'::text AS __pgs_action, st.*\n"+
			"FROM %s st\n"+
			"JOIN %s d ON st.__pgs_outer_row_id = d.__pgs_row_id\n"+
			"WHERE d.__pgs_action IN ('I', 'D')",
		streamTableRef(c), ir.QuoteIdent(child.CTEName),
	)
	colNames := ir.Names(l.Columns)
	inserts := fmt.Sprintf(
		"SELECT %s AS __pgs_row_id, 'I'::text AS __pgs_action, d.__pgs_row_id AS __pgs_outer_row_id, expanded.*\n"+
			"FROM %s d %s (%s) AS %s(%s) expanded\n"+
			"WHERE d.__pgs_action = 'I'",
		combineRowIDs("d.__pgs_row_id::text", "expanded.*::text"),
		ir.QuoteIdent(child.CTEName), joinWord, l.RawSubquery, ir.QuoteIdent(l.Alias), ir.ColList(colNames),
	)

	name := c.NextCTEName("lateral_subquery")
	c.AddCTE(name, deletes+"\nUNION ALL\n"+inserts, false)
	return Result{CTEName: name, Columns: colNames, IsDeduplicated: true}, nil
}
