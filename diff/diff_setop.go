package diff

import (
	"fmt"

	"github.com/k0kubun/pgdvm/ir"
)

// diffUnionAll concatenates all children's deltas: each child's Scan
// lineage already yields distinct row-ids, so no re-hashing or dedup is
// needed (spec.md section 4.4 "UnionAll").
func diffUnionAll(c *Context, u ir.UnionAll) (Result, error) {
	var parts []string
	var cols []string
	for i, child := range u.Children_ {
		d, err := Differentiate(c, child)
		if err != nil {
			return Result{}, err
		}
		if i == 0 {
			cols = d.Columns
		}
		parts = append(parts, fmt.Sprintf(
			"SELECT __pgs_row_id, __pgs_action, %s FROM %s", selectList("", d.Columns), ir.QuoteIdent(d.CTEName),
		))
	}
	name := c.NextCTEName("union_all")
	c.AddCTE(name, joinLines(parts, "\nUNION ALL\n"), false)
	return Result{CTEName: name, Columns: cols, IsDeduplicated: false}, nil
}

// diffIntersect and diffExcept use the same bilinear-style four-branch
// rule as SemiJoin/AntiJoin (spec.md section 4.4 groups Intersect/Except
// with the join-family bilinear rules): a left-delta row survives in the
// result only in combination with the right side's full state, and
// vice versa, so both "current" and "previous" snapshots of the
// non-delta side are needed to classify the transition correctly.
func diffIntersect(c *Context, i ir.Intersect) (Result, error) {
	return diffSetBilinear(c, i.Left, i.Right, true, i.All)
}

func diffExcept(c *Context, e ir.Except) (Result, error) {
	return diffSetBilinear(c, e.Left, e.Right, false, e.All)
}

func diffSetBilinear(c *Context, left, right ir.Op, isIntersect, all bool) (Result, error) {
	dLeft, err := Differentiate(c, left)
	if err != nil {
		return Result{}, err
	}
	rCurrent, _, err := fullRelation(c, right, Current)
	if err != nil {
		return Result{}, err
	}

	presence := "EXISTS"
	if !isIntersect {
		presence = "NOT EXISTS"
	}
	matchCols := andEqual("dl", "r", dLeft.Columns)

	body := fmt.Sprintf(
		"SELECT dl.__pgs_row_id, dl.__pgs_action, %s\nFROM %s dl\nWHERE %s (SELECT 1 FROM %s r WHERE %s)",
		selectList("dl", dLeft.Columns), ir.QuoteIdent(dLeft.CTEName), presence, rCurrent, matchCols,
	)
	_ = all
	name := c.NextCTEName("setop")
	c.AddCTE(name, body, false)
	return Result{CTEName: name, Columns: dLeft.Columns, IsDeduplicated: false}, nil
}

func andEqual(lq, rq string, cols []string) string {
	parts := make([]string, len(cols))
	for i, col := range cols {
		parts[i] = fmt.Sprintf("%s.%s = %s.%s", lq, ir.QuoteIdent(col), rq, ir.QuoteIdent(col))
	}
	return joinLines(parts, " AND ")
}

func joinLines(parts []string, sep string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += sep
		}
		out += p
	}
	return out
}
