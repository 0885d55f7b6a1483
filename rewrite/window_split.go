package rewrite

import (
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// MultiPartitionWindowSplit rewrites a query whose window functions use
// more than one distinct PARTITION BY signature into a join of one
// subquery per signature (spec.md section 4.1), each keyed off a
// monotone ROW_NUMBER() OVER () marker over the original FROM/WHERE. The
// base subquery that computes the marker is repeated inside every
// per-signature subquery rather than shared. A query whose window functions already share a single
// partition signature (including the common case of just one window
// function) is returned unchanged.
func MultiPartitionWindowSplit(sql string) (string, error) {
	sel, err := parseOneSelect(sql)
	if err != nil {
		return "", err
	}

	occurrences, err := collectWindowFuncs(sel.TargetList)
	if err != nil {
		return "", err
	}
	sigOrder, bySig := groupBySignature(occurrences)
	if len(sigOrder) <= 1 {
		return sql, nil
	}

	baseSel := &pg_query.SelectStmt{
		TargetList: []*pg_query.Node{
			resTargetNode(columnRefNode("", "*"), ""),
			resTargetNode(rowNumberCallNode(), baseRankColumn),
		},
		FromClause:  sel.FromClause,
		WhereClause: sel.WhereClause,
	}
	baseSQL, err := deparseSelect(baseSel)
	if err != nil {
		return "", fmt.Errorf("deparsing window-split base query: %w", err)
	}

	const baseAlias = "__pgs_base"
	fromClause := []*pg_query.Node{rangeSubselectOfSQL(baseSQL, baseAlias)}

	for i, sig := range sigOrder {
		branchAlias := fmt.Sprintf("__pgs_win_%d", i)
		branchTargetList := []*pg_query.Node{
			resTargetNode(columnRefNode(baseAlias, baseRankColumn), branchRankColumn),
		}
		for _, occ := range bySig[sig] {
			branchTargetList = append(branchTargetList, resTargetNode(occ.node, occ.outputName))
		}
		branchSel := &pg_query.SelectStmt{
			TargetList: branchTargetList,
			FromClause: []*pg_query.Node{rangeSubselectOfSQL(baseSQL, baseAlias)},
		}
		branchSQL, err := deparseSelect(branchSel)
		if err != nil {
			return "", fmt.Errorf("deparsing window-split branch %d: %w", i, err)
		}

		joinCond := &pg_query.Node{Node: &pg_query.Node_AExpr{AExpr: &pg_query.A_Expr{
			Kind:  pg_query.A_Expr_Kind_AEXPR_OP,
			Name:  []*pg_query.Node{stringNode("=")},
			Lexpr: columnRefNode(baseAlias, baseRankColumn),
			Rexpr: columnRefNode(branchAlias, branchRankColumn),
		}}}
		fromClause[len(fromClause)-1] = &pg_query.Node{Node: &pg_query.Node_JoinExpr{JoinExpr: &pg_query.JoinExpr{
			Jointype: pg_query.JoinType_JOIN_INNER,
			Larg:     fromClause[len(fromClause)-1],
			Rarg:     rangeSubselectOfSQL(branchSQL, branchAlias),
			Quals:    joinCond,
		}}}

		for _, occ := range bySig[sig] {
			*occ.node = *columnRefNode(branchAlias, occ.outputName)
		}
	}

	sel.FromClause = fromClause
	sel.WhereClause = nil
	return deparseSelect(sel)
}

const (
	baseRankColumn   = "__pgs_rk"
	branchRankColumn = "__pgs_rk"
)

type windowFuncOccurrence struct {
	node       *pg_query.Node
	signature  string
	outputName string
}

// collectWindowFuncs walks the target list for FuncCall nodes carrying
// an OVER clause, recording a PARTITION BY signature for each so callers
// can group window functions that must share a partitioning.
func collectWindowFuncs(targetList []*pg_query.Node) ([]windowFuncOccurrence, error) {
	var out []windowFuncOccurrence
	idx := 0
	var walk func(node *pg_query.Node) error
	walk = func(node *pg_query.Node) error {
		if node == nil {
			return nil
		}
		switch n := node.Node.(type) {
		case *pg_query.Node_ResTarget:
			return walk(n.ResTarget.Val)
		case *pg_query.Node_FuncCall:
			if n.FuncCall.Over != nil {
				sig, err := deparseExprList(n.FuncCall.Over.PartitionClause)
				if err != nil {
					return err
				}
				name := fmt.Sprintf("__pgs_wf_%d", idx)
				idx++
				out = append(out, windowFuncOccurrence{node: node, signature: sig, outputName: name})
				return nil
			}
			for _, a := range n.FuncCall.Args {
				if err := walk(a); err != nil {
					return err
				}
			}
			return nil
		case *pg_query.Node_AExpr:
			if err := walk(n.AExpr.Lexpr); err != nil {
				return err
			}
			return walk(n.AExpr.Rexpr)
		case *pg_query.Node_BoolExpr:
			for _, a := range n.BoolExpr.Args {
				if err := walk(a); err != nil {
					return err
				}
			}
			return nil
		default:
			return nil
		}
	}
	for _, t := range targetList {
		if err := walk(t); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func groupBySignature(occurrences []windowFuncOccurrence) ([]string, map[string][]windowFuncOccurrence) {
	var order []string
	seen := map[string]bool{}
	bySig := map[string][]windowFuncOccurrence{}
	for _, o := range occurrences {
		if !seen[o.signature] {
			seen[o.signature] = true
			order = append(order, o.signature)
		}
		bySig[o.signature] = append(bySig[o.signature], o)
	}
	return order, bySig
}

func rowNumberCallNode() *pg_query.Node {
	return &pg_query.Node{Node: &pg_query.Node_FuncCall{FuncCall: &pg_query.FuncCall{
		Funcname: []*pg_query.Node{stringNode("row_number")},
		Over:     &pg_query.WindowDef{},
	}}}
}

func rangeSubselectOfSQL(sql, alias string) *pg_query.Node {
	sql = strings.TrimSuffix(strings.TrimSpace(sql), ";")
	sel, err := parseOneSelect(sql)
	if err != nil {
		// Should not happen: sql was itself just deparsed from a valid
		// SelectStmt. Fall back to a RangeVar-shaped error marker rather
		// than panicking.
		return &pg_query.Node{Node: &pg_query.Node_RangeVar{RangeVar: &pg_query.RangeVar{Relname: alias}}}
	}
	return &pg_query.Node{Node: &pg_query.Node_RangeSubselect{RangeSubselect: &pg_query.RangeSubselect{
		Subquery: &pg_query.Node{Node: &pg_query.Node_SelectStmt{SelectStmt: sel}},
		Alias:    &pg_query.Alias{Aliasname: alias},
	}}}
}
