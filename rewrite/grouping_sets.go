package rewrite

import (
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// RewriteGroupingSets expands GROUPING SETS / CUBE / ROLLUP in the group
// clause into a UNION ALL of one branch per grouping set (spec.md
// section 4.1): non-grouped columns are replaced with NULL in each
// branch, and GROUPING(a, b, ...) calls are replaced with the per-branch
// integer literal computed from the MSB-first bitmask (bit i = 1 iff
// args[i] is not part of the current set). CUBE of n columns expands to
// 2^n sets (largest-first); ROLLUP of n columns expands to n+1 prefixes;
// GROUPING SETS lists expand member-wise; multiple specs in one group
// clause cross-product.
func RewriteGroupingSets(sql string) (string, error) {
	sel, err := parseOneSelect(sql)
	if err != nil {
		return "", err
	}
	if !hasGroupingSet(sel.GroupClause) {
		return sql, nil
	}

	branches, err := expandGroupClause(sel.GroupClause)
	if err != nil {
		return "", err
	}

	branchSQL := make([]string, len(branches))
	for i, b := range branches {
		targetList, err := rewriteTargetListForBranch(sel.TargetList, b)
		if err != nil {
			return "", err
		}
		branchSel := &pg_query.SelectStmt{
			TargetList:   targetList,
			FromClause:   sel.FromClause,
			WhereClause:  sel.WhereClause,
			HavingClause: sel.HavingClause,
			WithClause:   sel.WithClause,
			GroupClause:  b.cols,
		}
		s, err := deparseSelect(branchSel)
		if err != nil {
			return "", fmt.Errorf("deparsing grouping-set branch %d: %w", i, err)
		}
		branchSQL[i] = s
	}
	return strings.Join(branchSQL, "\nUNION ALL\n"), nil
}

// groupingSetBranch is one expanded grouping-set branch: the column
// nodes it groups by, alongside their rendered text for membership
// comparisons against target-list columns and GROUPING() arguments.
type groupingSetBranch struct {
	cols     []*pg_query.Node
	colsText []string
}

func hasGroupingSet(groupClause []*pg_query.Node) bool {
	for _, n := range groupClause {
		if _, ok := n.Node.(*pg_query.Node_GroupingSet); ok {
			return true
		}
	}
	return false
}

// expandGroupClause returns one branch per grouping set, honoring
// CUBE/ROLLUP/SETS expansion and cross-producting when the group clause
// holds multiple specs (or a mix of plain columns and grouping sets —
// plain columns belong to every branch).
func expandGroupClause(groupClause []*pg_query.Node) ([]groupingSetBranch, error) {
	branches := []groupingSetBranch{{}}

	for _, n := range groupClause {
		gs, ok := n.Node.(*pg_query.Node_GroupingSet)
		if !ok {
			text, err := deparseExpr(n)
			if err != nil {
				return nil, err
			}
			for i := range branches {
				branches[i].cols = append(branches[i].cols, n)
				branches[i].colsText = append(branches[i].colsText, text)
			}
			continue
		}

		specBranches, err := expandGroupingSet(gs.GroupingSet)
		if err != nil {
			return nil, err
		}
		branches = crossProduct(branches, specBranches)
	}
	return branches, nil
}

func crossProduct(existing, specBranches []groupingSetBranch) []groupingSetBranch {
	var out []groupingSetBranch
	for _, e := range existing {
		for _, s := range specBranches {
			out = append(out, groupingSetBranch{
				cols:     append(append([]*pg_query.Node{}, e.cols...), s.cols...),
				colsText: append(append([]string{}, e.colsText...), s.colsText...),
			})
		}
	}
	return out
}

func expandGroupingSet(gs *pg_query.GroupingSet) ([]groupingSetBranch, error) {
	cols := gs.Content
	colsText := make([]string, len(cols))
	for i, c := range cols {
		s, err := deparseExpr(c)
		if err != nil {
			return nil, err
		}
		colsText[i] = s
	}

	switch gs.Kind {
	case pg_query.GroupingSetKind_GROUPING_SET_EMPTY:
		return []groupingSetBranch{{}}, nil

	case pg_query.GroupingSetKind_GROUPING_SET_SIMPLE:
		return []groupingSetBranch{{cols: cols, colsText: colsText}}, nil

	case pg_query.GroupingSetKind_GROUPING_SET_ROLLUP:
		var branches []groupingSetBranch
		for i := len(cols); i >= 0; i-- {
			branches = append(branches, groupingSetBranch{
				cols:     append([]*pg_query.Node{}, cols[:i]...),
				colsText: append([]string{}, colsText[:i]...),
			})
		}
		return branches, nil

	case pg_query.GroupingSetKind_GROUPING_SET_CUBE:
		n := len(cols)
		var branches []groupingSetBranch
		for mask := (1 << n) - 1; mask >= 0; mask-- {
			var bcols []*pg_query.Node
			var btext []string
			for i := 0; i < n; i++ {
				if mask&(1<<i) != 0 {
					bcols = append(bcols, cols[i])
					btext = append(btext, colsText[i])
				}
			}
			branches = append(branches, groupingSetBranch{cols: bcols, colsText: btext})
		}
		return branches, nil

	case pg_query.GroupingSetKind_GROUPING_SET_SETS:
		var branches []groupingSetBranch
		for _, member := range gs.Content {
			memberBranches, err := expandGroupClause([]*pg_query.Node{member})
			if err != nil {
				return nil, err
			}
			branches = append(branches, memberBranches...)
		}
		return branches, nil

	default:
		return nil, fmt.Errorf("unrecognised GroupingSetKind %v", gs.Kind)
	}
}

// rewriteTargetListForBranch rebuilds a target list for one grouping-set
// branch: a bare column reference not in the branch's grouping set
// becomes NULL (aliased to keep the UNION ALL's output columns
// consistent across branches); a GROUPING(...) call becomes the
// branch's integer bitmask literal; everything else (aggregates,
// expressions) passes through unchanged.
func rewriteTargetListForBranch(targetList []*pg_query.Node, branch groupingSetBranch) ([]*pg_query.Node, error) {
	out := make([]*pg_query.Node, len(targetList))
	for i, t := range targetList {
		rt, ok := t.Node.(*pg_query.Node_ResTarget)
		if !ok {
			out[i] = t
			continue
		}

		if fc, ok := rt.ResTarget.Val.Node.(*pg_query.Node_FuncCall); ok && isGroupingCall(fc.FuncCall) {
			bitmask, err := groupingBitmask(fc.FuncCall, branch.colsText)
			if err != nil {
				return nil, err
			}
			name := rt.ResTarget.Name
			out[i] = resTargetNode(intLiteralNode(bitmask), name)
			continue
		}

		if _, isCol := rt.ResTarget.Val.Node.(*pg_query.Node_ColumnRef); isCol {
			colText, err := deparseExpr(rt.ResTarget.Val)
			if err != nil {
				return nil, err
			}
			if !inSet(colText, branch.colsText) {
				name := rt.ResTarget.Name
				if name == "" {
					name = columnRefOutputName(rt.ResTarget.Val)
				}
				out[i] = resTargetNode(nullLiteralNode(), name)
				continue
			}
		}

		out[i] = t
	}
	return out, nil
}

func resTargetNode(val *pg_query.Node, name string) *pg_query.Node {
	return &pg_query.Node{Node: &pg_query.Node_ResTarget{ResTarget: &pg_query.ResTarget{Val: val, Name: name}}}
}

func intLiteralNode(v int) *pg_query.Node {
	return &pg_query.Node{Node: &pg_query.Node_AConst{AConst: &pg_query.A_Const{
		Val: &pg_query.A_Const_Ival{Ival: &pg_query.Integer{Ival: int32(v)}},
	}}}
}

// nullLiteralNode builds a NULL literal: A_Const carries both the Val
// oneof and an Isnull flag (sqlparser/expr.go's buildAConst reads
// Isnull directly), so a NULL literal sets Isnull with Val left unset.
func nullLiteralNode() *pg_query.Node {
	return &pg_query.Node{Node: &pg_query.Node_AConst{AConst: &pg_query.A_Const{Isnull: true}}}
}

func columnRefOutputName(node *pg_query.Node) string {
	cr, ok := node.Node.(*pg_query.Node_ColumnRef)
	if !ok || len(cr.ColumnRef.Fields) == 0 {
		return "__pgs_col"
	}
	last := cr.ColumnRef.Fields[len(cr.ColumnRef.Fields)-1]
	if s, ok := last.Node.(*pg_query.Node_String_); ok {
		return s.String_.Sval
	}
	return "__pgs_col"
}

func isGroupingCall(fc *pg_query.FuncCall) bool {
	if len(fc.Funcname) == 0 {
		return false
	}
	last, ok := fc.Funcname[len(fc.Funcname)-1].Node.(*pg_query.Node_String_)
	return ok && strings.EqualFold(last.String_.Sval, "grouping")
}

// groupingBitmask computes GROUPING(args...)'s value for one branch:
// bit i (counting from the most significant of len(args) bits) is 1 iff
// args[i] is not present in this branch's grouping set.
func groupingBitmask(fc *pg_query.FuncCall, branchColsText []string) (int, error) {
	n := len(fc.Args)
	mask := 0
	for i, arg := range fc.Args {
		argSQL, err := deparseExpr(arg)
		if err != nil {
			return 0, err
		}
		bitPos := n - 1 - i
		if !inSet(argSQL, branchColsText) {
			mask |= 1 << uint(bitPos)
		}
	}
	return mask, nil
}

func inSet(col string, set []string) bool {
	for _, s := range set {
		if s == col {
			return true
		}
	}
	return false
}
