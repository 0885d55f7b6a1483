package rewrite

import (
	"fmt"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// ScalarSubqueryInWhere lifts a scalar subquery out of WHERE into a CROSS
// JOIN (spec.md section 4.1): `WHERE x = (SELECT agg FROM t2)` becomes
// `FROM t1, LATERAL-free CROSS JOIN (SELECT agg FROM t2) AS sq_0(scalar_0)
// WHERE x = sq_0.scalar_0`. Correlation is not checked: a correlated
// scalar subquery is lifted as well, into a non-LATERAL FROM item whose
// outer reference PostgreSQL rejects when the rewritten SQL is run.
func ScalarSubqueryInWhere(sql string) (string, error) {
	sel, err := parseOneSelect(sql)
	if err != nil {
		return "", err
	}
	if sel.WhereClause == nil {
		return sql, nil
	}

	var extracted []extractedSubquery
	newWhere, err := extractScalarSubLinks(sel.WhereClause, &extracted)
	if err != nil {
		return "", err
	}
	if len(extracted) == 0 {
		return sql, nil
	}
	sel.WhereClause = newWhere

	for _, e := range extracted {
		sel.FromClause = append(sel.FromClause, &pg_query.Node{
			Node: &pg_query.Node_RangeSubselect{RangeSubselect: &pg_query.RangeSubselect{
				Subquery: e.subquery,
				Alias:    &pg_query.Alias{Aliasname: e.alias, Colnames: []*pg_query.Node{stringNode(e.column)}},
			}},
		})
	}

	return deparseSelect(sel)
}

type extractedSubquery struct {
	subquery *pg_query.Node
	alias    string
	column   string
}

func stringNode(s string) *pg_query.Node {
	return &pg_query.Node{Node: &pg_query.Node_String_{String_: &pg_query.String{Sval: s}}}
}

// extractScalarSubLinks walks a WHERE-clause expression tree, replacing
// every EXPR_SUBLINK scalar subquery with a reference to a synthetic
// join column and appending the extraction to acc. It covers the
// expression shapes that actually occur in a WHERE clause: comparisons,
// boolean connectives, and function calls.
func extractScalarSubLinks(node *pg_query.Node, acc *[]extractedSubquery) (*pg_query.Node, error) {
	if node == nil {
		return nil, nil
	}

	switch n := node.Node.(type) {
	case *pg_query.Node_SubLink:
		if n.SubLink.SubLinkType != pg_query.SubLinkType_EXPR_SUBLINK {
			return node, nil
		}
		idx := len(*acc)
		alias := fmt.Sprintf("sq_%d", idx)
		column := fmt.Sprintf("scalar_%d", idx)
		*acc = append(*acc, extractedSubquery{subquery: n.SubLink.Subselect, alias: alias, column: column})
		return columnRefNode(alias, column), nil

	case *pg_query.Node_AExpr:
		left, err := extractScalarSubLinks(n.AExpr.Lexpr, acc)
		if err != nil {
			return nil, err
		}
		right, err := extractScalarSubLinks(n.AExpr.Rexpr, acc)
		if err != nil {
			return nil, err
		}
		n.AExpr.Lexpr = left
		n.AExpr.Rexpr = right
		return node, nil

	case *pg_query.Node_BoolExpr:
		for i, arg := range n.BoolExpr.Args {
			rewritten, err := extractScalarSubLinks(arg, acc)
			if err != nil {
				return nil, err
			}
			n.BoolExpr.Args[i] = rewritten
		}
		return node, nil

	case *pg_query.Node_FuncCall:
		for i, arg := range n.FuncCall.Args {
			rewritten, err := extractScalarSubLinks(arg, acc)
			if err != nil {
				return nil, err
			}
			n.FuncCall.Args[i] = rewritten
		}
		return node, nil

	default:
		return node, nil
	}
}

func columnRefNode(table, column string) *pg_query.Node {
	return &pg_query.Node{Node: &pg_query.Node_ColumnRef{ColumnRef: &pg_query.ColumnRef{
		Fields: []*pg_query.Node{stringNode(table), stringNode(column)},
	}}}
}
