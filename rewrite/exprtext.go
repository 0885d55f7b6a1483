package rewrite

import (
	"fmt"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// deparseExpr renders a single expression node back to SQL text by
// wrapping it in a throwaway `SELECT <expr>` statement and deparsing
// that, then stripping the synthetic prefix. pg_query_go only exposes
// Deparse at the statement level, so every rewriter that needs to turn
// a fragment of the tree back into text (a DISTINCT ON key, a GROUPING
// SETS member, a window PARTITION BY list) goes through this rather
// than hand-rolling a second expression-to-SQL renderer alongside
// sqlparser/expr.go's.
func deparseExpr(node *pg_query.Node) (string, error) {
	if node == nil {
		return "NULL", nil
	}
	wrapped := &pg_query.ParseResult{
		Stmts: []*pg_query.RawStmt{
			{
				Stmt: &pg_query.Node{
					Node: &pg_query.Node_SelectStmt{
						SelectStmt: &pg_query.SelectStmt{
							TargetList: []*pg_query.Node{
								{Node: &pg_query.Node_ResTarget{ResTarget: &pg_query.ResTarget{Val: node}}},
							},
						},
					},
				},
			},
		},
	}
	out, err := pg_query.Deparse(wrapped)
	if err != nil {
		return "", fmt.Errorf("deparsing expression fragment: %w", err)
	}
	const prefix = "SELECT "
	if len(out) >= len(prefix) && out[:len(prefix)] == prefix {
		return out[len(prefix):], nil
	}
	return out, nil
}

// deparseExprList joins a list of expression nodes as a comma-separated
// SQL fragment, e.g. for a PARTITION BY or GROUP BY column list.
func deparseExprList(nodes []*pg_query.Node) (string, error) {
	out := ""
	for i, n := range nodes {
		s, err := deparseExpr(n)
		if err != nil {
			return "", err
		}
		if i > 0 {
			out += ", "
		}
		out += s
	}
	return out, nil
}

// deparseSelect renders a full SelectStmt back to SQL by wrapping it in
// a one-statement ParseResult.
func deparseSelect(sel *pg_query.SelectStmt) (string, error) {
	wrapped := &pg_query.ParseResult{
		Stmts: []*pg_query.RawStmt{
			{Stmt: &pg_query.Node{Node: &pg_query.Node_SelectStmt{SelectStmt: sel}}},
		},
	}
	out, err := pg_query.Deparse(wrapped)
	if err != nil {
		return "", fmt.Errorf("deparsing rewritten SELECT: %w", err)
	}
	return out, nil
}

// parseOneSelect parses sql and returns its single top-level SelectStmt,
// erroring on anything else (every rewriter here only ever operates on
// one standalone SELECT).
func parseOneSelect(sql string) (*pg_query.SelectStmt, error) {
	result, err := pg_query.Parse(sql)
	if err != nil {
		return nil, fmt.Errorf("parsing SQL for rewrite: %w", err)
	}
	if len(result.Stmts) != 1 {
		return nil, fmt.Errorf("expected exactly one statement, got %d", len(result.Stmts))
	}
	sel, ok := result.Stmts[0].Stmt.Node.(*pg_query.Node_SelectStmt)
	if !ok {
		return nil, fmt.Errorf("expected a SELECT statement, got %T", result.Stmts[0].Stmt.Node)
	}
	return sel.SelectStmt, nil
}
