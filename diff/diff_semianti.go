package diff

import (
	"fmt"

	"github.com/k0kubun/pgdvm/ir"
)

// diffSemiJoin and diffAntiJoin implement the four-part delta rule
// (spec.md section 4.4 "SemiJoin / AntiJoin"):
//   (i)   left-inserts with a matching right row
//   (ii)  left-inserts with no matching right row
//   (iii) right-inserts that newly match an existing left row
//   (iv)  right-deletes that remove a left row's last remaining match
// SemiJoin emits 'I' for (i)/(iii) and nothing for (ii); it also emits
// 'D' for left-deletes of matched rows and for (iv). AntiJoin emits 'I'
// for (ii) and (iv), nothing for (i), and 'D' for (iii) and for
// left-deletes of unmatched rows.
func diffSemiJoin(c *Context, j ir.SemiJoin) (Result, error) {
	return diffSemiAntiBilinear(c, j.Correlation, j.Left, j.Right, false)
}

func diffAntiJoin(c *Context, j ir.AntiJoin) (Result, error) {
	return diffSemiAntiBilinear(c, j.Correlation, j.Left, j.Right, true)
}

func diffSemiAntiBilinear(c *Context, corr ir.Expr, left, right ir.Op, anti bool) (Result, error) {
	dLeft, err := Differentiate(c, left)
	if err != nil {
		return Result{}, err
	}
	dRight, err := Differentiate(c, right)
	if err != nil {
		return Result{}, err
	}
	rCurrent, _, err := fullRelation(c, right, Current)
	if err != nil {
		return Result{}, err
	}
	rPrevious, _, err := fullRelation(c, right, Previous)
	if err != nil {
		return Result{}, err
	}
	lCurrent, _, err := fullRelation(c, left, Current)
	if err != nil {
		return Result{}, err
	}

	matchAction, noMatchAction := "'I'", "'D'"
	if anti {
		matchAction, noMatchAction = "'D'", "'I'"
	}

	cols := selectList("dl", dLeft.Columns)

	// (i): left-inserts with a match against the current right state only
	// produce output for SemiJoin; AntiJoin omits this branch since such
	// a row is not in the anti result.
	leftInsertMatch := ""
	if !anti {
		leftInsertMatch = fmt.Sprintf(
			"SELECT dl.__pgs_row_id, %s AS __pgs_action, %s\nFROM %s dl\nWHERE dl.__pgs_action = 'I' AND EXISTS (SELECT 1 FROM %s r WHERE %s)",
			matchAction, cols, ir.QuoteIdent(dLeft.CTEName), rCurrent, corr.SQL(),
		)
	}
	// (ii): left-inserts with no match only produce output for AntiJoin
	// (a fresh row with nothing to match against belongs in the anti
	// result); SemiJoin omits this branch entirely since such a row was
	// never in the result.
	leftInsertNoMatch := ""
	if anti {
		leftInsertNoMatch = fmt.Sprintf(
			"SELECT dl.__pgs_row_id, %s AS __pgs_action, %s\nFROM %s dl\nWHERE dl.__pgs_action = 'I' AND NOT EXISTS (SELECT 1 FROM %s r WHERE %s)",
			noMatchAction, cols, ir.QuoteIdent(dLeft.CTEName), rCurrent, corr.SQL(),
		)
	}
	// left-deletes: only emitted when the deleted row was previously in
	// this operator's result — matched for SemiJoin, unmatched for
	// AntiJoin.
	leftDeletePresence := "EXISTS"
	if anti {
		leftDeletePresence = "NOT EXISTS"
	}
	leftDelete := fmt.Sprintf(
		"SELECT dl.__pgs_row_id, 'D'::text AS __pgs_action, %s\nFROM %s dl\nWHERE dl.__pgs_action = 'D' AND %s (SELECT 1 FROM %s r WHERE %s)",
		cols, ir.QuoteIdent(dLeft.CTEName), leftDeletePresence, rPrevious, corr.SQL(),
	)

	// (iii)/(iv): right deltas change which left rows have a match;
	// restrict to left rows whose match status against the right side
	// actually flipped between the previous and current epoch.
	rightBranch := fmt.Sprintf(
		"SELECT l.__pgs_row_id, CASE WHEN dr.__pgs_action = 'I' THEN %s ELSE %s END AS __pgs_action, %s\n"+
			"FROM %s l\n"+
			"JOIN %s dr ON %s\n"+
			"WHERE (dr.__pgs_action = 'I' AND NOT EXISTS (SELECT 1 FROM %s r2 WHERE %s))\n"+
			"   OR (dr.__pgs_action = 'D' AND NOT EXISTS (SELECT 1 FROM %s r2 WHERE %s))",
		matchAction, noMatchAction, selectList("l", dLeft.Columns),
		lCurrent, ir.QuoteIdent(dRight.CTEName), corr.SQL(),
		rPrevious, corr.SQL(), rCurrent, corr.SQL(),
	)

	var branches []string
	if leftInsertMatch != "" {
		branches = append(branches, leftInsertMatch)
	}
	if leftInsertNoMatch != "" {
		branches = append(branches, leftInsertNoMatch)
	}
	branches = append(branches, leftDelete, rightBranch)
	body := joinLines(branches, "\nUNION ALL\n")
	name := c.NextCTEName("semianti")
	c.AddCTE(name, body, false)
	return Result{CTEName: name, Columns: dLeft.Columns, IsDeduplicated: false}, nil
}
