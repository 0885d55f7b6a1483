package diff

import (
	"fmt"

	"github.com/k0kubun/pgdvm/ir"
)

// diffScan is the leaf delta rule (spec.md section 4.4 "Scan"): reads the
// change buffer within the frontier's (prev, current] interval, expands
// any 'U' row into a 'D' (old image) + 'I' (new image) pair, and hashes
// the row-id according to s.RowIDStrategy.
func diffScan(c *Context, s ir.Scan) (Result, error) {
	oid := s.OID
	prevLSN := c.Frontier().PrevLSN(oid)
	curLSN, err := c.Frontier().CurrentLSN(oid)
	if err != nil {
		return Result{}, err
	}
	table := c.Buffer().ChangeTableName(oid)

	allCols := ir.Names(s.Columns)
	pkCols := s.PrimaryKey
	if len(pkCols) == 0 {
		pkCols = allCols
	}

	outCols := selectList("r", allCols)

	deleteBranch := fmt.Sprintf(
		"SELECT %s AS __pgs_row_id, 'D'::text AS __pgs_action, %s\nFROM %s, %s\nWHERE action = 'U' AND lsn > %s AND lsn <= %s",
		rowIDExpr(s.RowIDStrategy, pkCols, allCols, "r"), outCols, table,
		jsonbExtract(s.Schema, s.Relation, "row_data_old"), quoteLSN(prevLSN), quoteLSN(curLSN),
	)
	insertFromUpdateBranch := fmt.Sprintf(
		"SELECT %s AS __pgs_row_id, 'I'::text AS __pgs_action, %s\nFROM %s, %s\nWHERE action = 'U' AND lsn > %s AND lsn <= %s",
		rowIDExpr(s.RowIDStrategy, pkCols, allCols, "r"), outCols, table,
		jsonbExtract(s.Schema, s.Relation, "row_data"), quoteLSN(prevLSN), quoteLSN(curLSN),
	)
	plainBranch := fmt.Sprintf(
		"SELECT %s AS __pgs_row_id, action AS __pgs_action, %s\nFROM %s, %s\nWHERE action IN ('I', 'D') AND lsn > %s AND lsn <= %s",
		rowIDExpr(s.RowIDStrategy, pkCols, allCols, "r"), outCols, table,
		jsonbExtract(s.Schema, s.Relation, "row_data"), quoteLSN(prevLSN), quoteLSN(curLSN),
	)

	body := deleteBranch + "\nUNION ALL\n" + insertFromUpdateBranch + "\nUNION ALL\n" + plainBranch
	name := c.NextCTEName("scan_" + s.Alias)
	c.AddCTE(name, body, false)

	return Result{CTEName: name, Columns: allCols, IsDeduplicated: false}, nil
}

func quoteLSN(lsn string) string {
	return fmt.Sprintf("'%s'::pg_lsn", lsn)
}
