package diff

import (
	"fmt"

	"github.com/k0kubun/pgdvm/ir"
)

// diffDistinct implements DBSP Z-set deduplication via a stored
// __pgs_count auxiliary column (spec.md section 4.4 "Distinct"): an
// insert bumps the stored count and emits 'I' only on the 0→positive
// transition; a delete decrements and emits 'D' only on the
// positive→0 transition. Rows with intermediate counts are internal
// bookkeeping and never surface in the output delta.
func diffDistinct(c *Context, d ir.Distinct) (Result, error) {
	child, err := Differentiate(c, d.Child)
	if err != nil {
		return Result{}, err
	}

	netChange := fmt.Sprintf(
		"SELECT __pgs_row_id, %s,\n"+
			"       sum(CASE WHEN __pgs_action = 'I' THEN 1 ELSE -1 END) AS __pgs_delta\n"+
			"FROM %s\n"+
			"GROUP BY __pgs_row_id, %s",
		selectList("", child.Columns), ir.QuoteIdent(child.CTEName), selectList("", child.Columns),
	)
	netName := c.NextCTEName("distinct_net")
	c.AddCTE(netName, netChange, false)

	body := fmt.Sprintf(
		"SELECT n.__pgs_row_id, CASE WHEN coalesce(st.__pgs_count, 0) = 0 AND coalesce(st.__pgs_count, 0) + n.__pgs_delta > 0 THEN 'I'\n"+
			"            WHEN coalesce(st.__pgs_count, 0) > 0 AND coalesce(st.__pgs_count, 0) + n.__pgs_delta <= 0 THEN 'D'\n"+
			"            ELSE NULL END AS __pgs_action, %s\n"+
			"FROM %s n\n"+
			"LEFT JOIN %s st ON st.__pgs_row_id = n.__pgs_row_id",
		selectList("n", child.Columns), ir.QuoteIdent(netName), streamTableRef(c),
	)
	filtered := fmt.Sprintf("SELECT * FROM (\n%s\n) x WHERE __pgs_action IS NOT NULL", body)

	name := c.NextCTEName("distinct")
	c.AddCTE(name, filtered, false)

	return Result{CTEName: name, Columns: child.Columns, IsDeduplicated: true}, nil
}
