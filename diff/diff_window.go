package diff

import (
	"fmt"
	"strings"

	"github.com/k0kubun/pgdvm/ir"
)

// diffWindow implements partition-level recomputation (spec.md section
// 4.4 "Window"): identify partitions containing any changed row, delete
// every stored row in those partitions, re-evaluate the window over the
// current full child relation restricted to those partitions, insert
// the results. This is correct for every frame kind including RANGE and
// GROUPS since the whole partition is rebuilt rather than patched.
func diffWindow(c *Context, w ir.Window) (Result, error) {
	child, err := Differentiate(c, w.Child)
	if err != nil {
		return Result{}, err
	}
	childCurrent, _, err := fullRelation(c, w.Child, Current)
	if err != nil {
		return Result{}, err
	}

	partKey := groupKeyHash(w.PartitionBy)
	affected := fmt.Sprintf("SELECT DISTINCT %s AS __pgs_partition_key FROM %s", partKey, ir.QuoteIdent(child.CTEName))
	affectedName := c.NextCTEName("window_affected_partitions")
	c.AddCTE(affectedName, affected, false)

	deletes := fmt.Sprintf(
		"SELECT st.__pgs_row_id, 'D'::text AS __pgs_action, st.*\n"+
			"FROM %s st\n"+
			"JOIN %s ap ON %s = ap.__pgs_partition_key",
		streamTableRef(c), ir.QuoteIdent(affectedName), partitionKeyOnStreamTable(w.PartitionBy),
	)

	winExprs := make([]string, len(w.Exprs))
	for i, e := range w.Exprs {
		part := ""
		if len(w.PartitionBy) > 0 {
			parts := make([]string, len(w.PartitionBy))
			for j, p := range w.PartitionBy {
				parts[j] = p.SQL()
			}
			part = "PARTITION BY " + strings.Join(parts, ", ") + " "
		}
		winExprs[i] = fmt.Sprintf("%s OVER (%s) AS %s", e.SQL(), strings.TrimSpace(part), ir.QuoteIdent(w.Aliases[i]))
	}
	passthrough := selectList("src", w.Passthrough)
	sel := passthrough
	if sel != "" {
		sel += ", "
	}
	sel += strings.Join(winExprs, ", ")

	inserts := fmt.Sprintf(
		"SELECT %s AS __pgs_row_id, 'I'::text AS __pgs_action, %s\n"+
			"FROM %s src\n"+
			"WHERE %s IN (SELECT __pgs_partition_key FROM %s)",
		combineRowIDs("src.*::text"), sel, childCurrent, partKey, ir.QuoteIdent(affectedName),
	)

	outCols := append(append([]string{}, w.Passthrough...), w.Aliases...)
	name := c.NextCTEName("window")
	c.AddCTE(name, deletes+"\nUNION ALL\n"+inserts, false)
	return Result{CTEName: name, Columns: outCols, IsDeduplicated: true}, nil
}

func partitionKeyOnStreamTable(partitionBy []ir.Expr) string {
	if len(partitionBy) == 0 {
		return fmt.Sprintf("pgstream.pg_stream_hash('%s')", ir.ScalarGroupSentinel)
	}
	exprs := make([]string, len(partitionBy))
	for i, e := range partitionBy {
		exprs[i] = fmt.Sprintf("st.%s::text", e.SQL())
	}
	return combineRowIDs(exprs...)
}
