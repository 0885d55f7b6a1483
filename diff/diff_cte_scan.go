package diff

import (
	"github.com/k0kubun/pgdvm/ir"
	"github.com/k0kubun/pgdvm/pgserr"
)

// diffCteScan is Tier-2 memoisation (spec.md section 4.4 "CteScan",
// grounded on original_source/src/dvm/operators/cte_scan.rs): the first
// CteScan for a given CteID differentiates the registered body and
// caches the Result; every subsequent CteScan for the same CteID reuses
// the cached CTE name instead of re-emitting the body's delta SQL,
// regardless of how many FROM-clause references the CTE has.
func diffCteScan(c *Context, s ir.CteScan) (Result, error) {
	if cached, ok := c.GetCTEDelta(s.CteID); ok {
		return renameCteScanOutput(c, cached, s)
	}

	_, body, ok := c.Registry().Get(s.CteID)
	if !ok {
		return Result{}, pgserr.Internal("cte registry has no entry for id %d (%s)", s.CteID, s.CteName)
	}
	d, err := Differentiate(c, body)
	if err != nil {
		return Result{}, err
	}
	c.SetCTEDelta(s.CteID, d)
	return renameCteScanOutput(c, d, s)
}

// renameCteScanOutput applies this particular FROM reference's column
// aliases (the CTE's own defining aliases first, then this reference's
// AS alias(...) aliases, outermost wins) without re-emitting the body.
func renameCteScanOutput(c *Context, d Result, s ir.CteScan) (Result, error) {
	cols := d.Columns
	if len(s.CteDefAliases) > 0 {
		cols = s.CteDefAliases
	}
	if len(s.ColumnAliases) > 0 {
		cols = s.ColumnAliases
	}
	return Result{CTEName: d.CTEName, Columns: cols, IsDeduplicated: d.IsDeduplicated}, nil
}
