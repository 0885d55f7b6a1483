package rewrite

import (
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// SubLinksUnderOr rewrites a WHERE clause whose top-level conjunction
// contains an `OR` with a SubLink (EXISTS/IN/ANY/ALL) among its arms into
// a UNION of one branch per disjunct (spec.md section 4.1): `WHERE p AND
// (q OR EXISTS(...))` becomes the UNION of `WHERE p AND q` and `WHERE p
// AND EXISTS(...)`, each a plain conjunction PostgreSQL can plan without
// the OR forcing a full scan. Plain UNION (not UNION ALL) is used so
// rows matching more than one disjunct are not double-counted.
func SubLinksUnderOr(sql string) (string, error) {
	sel, err := parseOneSelect(sql)
	if err != nil {
		return "", err
	}
	if sel.WhereClause == nil {
		return sql, nil
	}

	conjuncts := flattenAnd(sel.WhereClause)
	orIdx := -1
	for i, c := range conjuncts {
		if isOrWithSubLink(c) {
			orIdx = i
			break
		}
	}
	if orIdx == -1 {
		return sql, nil
	}

	or := conjuncts[orIdx].Node.(*pg_query.Node_BoolExpr).BoolExpr
	others := make([]*pg_query.Node, 0, len(conjuncts)-1)
	others = append(others, conjuncts[:orIdx]...)
	others = append(others, conjuncts[orIdx+1:]...)

	branchSQL := make([]string, len(or.Args))
	for i, disjunct := range or.Args {
		branchWhere := combineAnd(append(append([]*pg_query.Node{}, others...), disjunct))
		branchSel := &pg_query.SelectStmt{
			TargetList:   sel.TargetList,
			FromClause:   sel.FromClause,
			WhereClause:  branchWhere,
			GroupClause:  sel.GroupClause,
			HavingClause: sel.HavingClause,
			WithClause:   sel.WithClause,
		}
		s, err := deparseSelect(branchSel)
		if err != nil {
			return "", fmt.Errorf("deparsing OR branch %d: %w", i, err)
		}
		branchSQL[i] = s
	}
	return strings.Join(branchSQL, "\nUNION\n"), nil
}

// flattenAnd splits a WHERE expression into its top-level AND conjuncts;
// a non-AND expression is returned as the sole conjunct.
func flattenAnd(node *pg_query.Node) []*pg_query.Node {
	be, ok := node.Node.(*pg_query.Node_BoolExpr)
	if !ok || be.BoolExpr.Boolop != pg_query.BoolExprType_AND_EXPR {
		return []*pg_query.Node{node}
	}
	var out []*pg_query.Node
	for _, a := range be.BoolExpr.Args {
		out = append(out, flattenAnd(a)...)
	}
	return out
}

func combineAnd(conjuncts []*pg_query.Node) *pg_query.Node {
	if len(conjuncts) == 1 {
		return conjuncts[0]
	}
	return &pg_query.Node{Node: &pg_query.Node_BoolExpr{BoolExpr: &pg_query.BoolExpr{
		Boolop: pg_query.BoolExprType_AND_EXPR,
		Args:   conjuncts,
	}}}
}

func isOrWithSubLink(node *pg_query.Node) bool {
	be, ok := node.Node.(*pg_query.Node_BoolExpr)
	if !ok || be.BoolExpr.Boolop != pg_query.BoolExprType_OR_EXPR {
		return false
	}
	for _, a := range be.BoolExpr.Args {
		if containsSubLink(a) {
			return true
		}
	}
	return false
}

func containsSubLink(node *pg_query.Node) bool {
	if node == nil {
		return false
	}
	switch n := node.Node.(type) {
	case *pg_query.Node_SubLink:
		return true
	case *pg_query.Node_AExpr:
		return containsSubLink(n.AExpr.Lexpr) || containsSubLink(n.AExpr.Rexpr)
	case *pg_query.Node_BoolExpr:
		for _, a := range n.BoolExpr.Args {
			if containsSubLink(a) {
				return true
			}
		}
		return false
	case *pg_query.Node_FuncCall:
		for _, a := range n.FuncCall.Args {
			if containsSubLink(a) {
				return true
			}
		}
		return false
	default:
		return false
	}
}
