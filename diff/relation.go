package diff

import (
	"fmt"

	"github.com/k0kubun/pgdvm/ir"
)

// Epoch selects which side of a change a reconstructed full relation
// reflects.
type Epoch int

const (
	// Current is the relation's state after the frontier's changes have
	// been applied — for a Scan this is simply the live base table, since
	// PostgreSQL already holds post-change values.
	Current Epoch = iota
	// Previous is the relation's state before the frontier's changes.
	// Bilinear delta rules (Join, SemiJoin/AntiJoin, Intersect, Except)
	// need both epochs of their non-delta operand.
	Previous
)

// fullRelation recursively reconstructs op's full row set at epoch, for
// the subset of operators a bilinear delta rule needs as its
// non-delta operand (spec.md section 4.4 "Join"). Transparent operators
// (Filter, Project, Subquery) recurse; Scan is the base case; join
// families recurse on both sides at the same epoch.
//
// Returns a parenthesized SQL subquery and its column list.
func fullRelation(c *Context, op ir.Op, epoch Epoch) (string, []string, error) {
	switch o := op.(type) {
	case ir.Scan:
		return fullRelationScan(c, o, epoch)
	case ir.Filter:
		child, cols, err := fullRelation(c, o.Child, epoch)
		if err != nil {
			return "", nil, err
		}
		sql := fmt.Sprintf("(SELECT %s FROM %s r WHERE %s)", selectList("r", cols), child, o.Predicate.SQL())
		return sql, cols, nil
	case ir.Project:
		child, _, err := fullRelation(c, o.Child, epoch)
		if err != nil {
			return "", nil, err
		}
		sql := fmt.Sprintf("(SELECT %s FROM %s r)", aliasedSelectList(o.Exprs, o.Aliases), child)
		return sql, o.Aliases, nil
	case ir.Subquery:
		child, cols, err := fullRelation(c, o.Child, epoch)
		if err != nil {
			return "", nil, err
		}
		if len(o.ColumnAliases) > 0 {
			cols = o.ColumnAliases
		}
		return child, cols, nil
	case ir.InnerJoin:
		return fullRelationJoin(c, "JOIN", o.Predicate, o.Left, o.Right, epoch)
	case ir.LeftJoin:
		return fullRelationJoin(c, "LEFT JOIN", o.Predicate, o.Left, o.Right, epoch)
	case ir.FullJoin:
		return fullRelationJoin(c, "FULL JOIN", o.Predicate, o.Left, o.Right, epoch)
	default:
		return "", nil, fmt.Errorf("fullRelation: unsupported operand kind %v for bilinear delta reconstruction", op.Kind())
	}
}

func fullRelationJoin(c *Context, joinWord string, pred ir.Expr, left, right ir.Op, epoch Epoch) (string, []string, error) {
	lSQL, lCols, err := fullRelation(c, left, epoch)
	if err != nil {
		return "", nil, err
	}
	rSQL, rCols, err := fullRelation(c, right, epoch)
	if err != nil {
		return "", nil, err
	}
	cols := append(append([]string{}, lCols...), rCols...)
	sql := fmt.Sprintf("(SELECT * FROM %s l %s %s r ON %s)", lSQL, joinWord, rSQL, pred.SQL())
	return sql, cols, nil
}

// fullRelationScan builds the Current or Previous full row set for a base
// Scan. Current is just the live table. Previous subtracts rows this
// frontier inserted and adds back rows it deleted, using the Scan delta
// CTE's row-id tagging to identify which live rows are "new" this round.
func fullRelationScan(c *Context, s ir.Scan, epoch Epoch) (string, []string, error) {
	cols := ir.Names(s.Columns)
	liveTable := fmt.Sprintf("%s.%s", ir.QuoteIdent(s.Schema), ir.QuoteIdent(s.Relation))

	if epoch == Current {
		return fmt.Sprintf("(SELECT %s FROM %s)", ir.ColList(cols), liveTable), cols, nil
	}

	delta, err := diffScan(c, s)
	if err != nil {
		return "", nil, err
	}

	pkCols := s.PrimaryKey
	if len(pkCols) == 0 {
		pkCols = cols
	}
	rowID := rowIDExpr(s.RowIDStrategy, pkCols, cols, "live")
	sql := fmt.Sprintf(
		"(SELECT %s FROM %s live WHERE NOT EXISTS (SELECT 1 FROM %s d WHERE d.__pgs_row_id = %s AND d.__pgs_action = 'I')\n"+
			"UNION ALL\n"+
			"SELECT %s FROM %s d WHERE d.__pgs_action = 'D')",
		selectList("live", cols), liveTable, ir.QuoteIdent(delta.CTEName), rowID,
		selectList("d", cols), ir.QuoteIdent(delta.CTEName),
	)
	return sql, cols, nil
}
