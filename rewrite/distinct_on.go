package rewrite

import (
	"fmt"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// RewriteDistinctOn detects `SELECT DISTINCT ON (e1, ...) ... ORDER BY
// ...` and rewrites it to a ROW_NUMBER() window query (spec.md section
// 4.1): `SELECT ... FROM (SELECT ..., ROW_NUMBER() OVER (PARTITION BY
// e1, ... ORDER BY ...) AS __pgs_rn FROM ...) __distinct_on WHERE
// __pgs_rn = 1`. Idempotent: a query without DISTINCT ON is returned
// unchanged.
func RewriteDistinctOn(sql string) (string, error) {
	sel, err := parseOneSelect(sql)
	if err != nil {
		return "", err
	}
	if len(sel.DistinctClause) == 0 || !isDistinctOn(sel.DistinctClause) {
		return sql, nil
	}

	partitionBy, err := deparseExprList(sel.DistinctClause)
	if err != nil {
		return "", fmt.Errorf("rendering DISTINCT ON key list: %w", err)
	}

	orderBy := ""
	if len(sel.SortClause) > 0 {
		orderBy, err = renderSortClause(sel.SortClause)
		if err != nil {
			return "", err
		}
	} else {
		// DISTINCT ON without ORDER BY picks an arbitrary representative
		// per PostgreSQL semantics; anchor it to the DISTINCT ON keys
		// themselves for determinism.
		orderBy = partitionBy
	}

	innerSel := &pg_query.SelectStmt{
		TargetList:   sel.TargetList,
		FromClause:   sel.FromClause,
		WhereClause:  sel.WhereClause,
		GroupClause:  sel.GroupClause,
		HavingClause: sel.HavingClause,
		WithClause:   sel.WithClause,
	}
	innerSQL, err := deparseSelect(innerSel)
	if err != nil {
		return "", fmt.Errorf("deparsing DISTINCT ON inner query: %w", err)
	}

	rewritten := fmt.Sprintf(
		"SELECT * FROM (SELECT *, ROW_NUMBER() OVER (PARTITION BY %s ORDER BY %s) AS __pgs_rn FROM (%s) __distinct_on_src) __distinct_on WHERE __pgs_rn = 1",
		partitionBy, orderBy, innerSQL,
	)
	return rewritten, nil
}

// isDistinctOn distinguishes `DISTINCT ON (...)` from plain `DISTINCT`:
// pg_query represents plain DISTINCT as a DistinctClause containing one
// nil-Node placeholder entry, whereas DISTINCT ON carries real
// expression nodes.
func isDistinctOn(clause []*pg_query.Node) bool {
	for _, n := range clause {
		if n != nil && n.Node != nil {
			return true
		}
	}
	return false
}

func renderSortClause(sortClause []*pg_query.Node) (string, error) {
	out := ""
	for i, n := range sortClause {
		sb, ok := n.Node.(*pg_query.Node_SortBy)
		if !ok {
			continue
		}
		exprSQL, err := deparseExpr(sb.SortBy.Node)
		if err != nil {
			return "", err
		}
		if i > 0 {
			out += ", "
		}
		out += exprSQL
		switch sb.SortBy.SortbyDir {
		case pg_query.SortByDir_SORTBY_DESC:
			out += " DESC"
		case pg_query.SortByDir_SORTBY_ASC:
			out += " ASC"
		}
	}
	return out, nil
}
