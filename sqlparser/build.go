package sqlparser

import (
	"fmt"

	pgquery "github.com/pganalyze/pg_query_go/v6"

	"github.com/k0kubun/pgdvm/catalog"
	"github.com/k0kubun/pgdvm/ir"
	"github.com/k0kubun/pgdvm/pgserr"
)

// Parse builds the operator tree for one already-rewritten SELECT
// statement (spec.md section 4.2, the parser/IR-builder module). sql is
// expected to have already passed through rewrite.Pipeline; Parse itself
// only walks the shapes that pipeline leaves behind.
func Parse(sql string, cat catalog.Catalog) (ir.Op, error) {
	result, err := pgquery.Parse(sql)
	if err != nil {
		return nil, pgserr.ParseError("parsing query: %v", err)
	}
	if len(result.Stmts) != 1 {
		return nil, pgserr.ParseError("expected exactly one statement, got %d", len(result.Stmts))
	}
	sel, ok := result.Stmts[0].Stmt.Node.(*pgquery.Node_SelectStmt)
	if !ok {
		return nil, pgserr.ParseError("expected a SELECT statement, got %T", result.Stmts[0].Stmt.Node)
	}

	b := &builder{cat: cat, cteCtx: NewCteParseContext(ir.NewCteRegistry())}
	return b.buildSelect(sel.SelectStmt)
}

type builder struct {
	cat    catalog.Catalog
	cteCtx *CteParseContext
}

func (b *builder) buildSelect(sel *pgquery.SelectStmt) (ir.Op, error) {
	if sel.Op != pgquery.SetOperation_SETOP_NONE {
		return b.buildSetOpSelect(sel)
	}

	if sel.WithClause != nil {
		if err := b.declareCtes(sel.WithClause); err != nil {
			return nil, err
		}
	}

	op, err := b.buildFromClause(sel.FromClause)
	if err != nil {
		return nil, err
	}

	if sel.WhereClause != nil {
		op, err = b.applyWhere(op, sel.WhereClause)
		if err != nil {
			return nil, err
		}
	}

	if len(sel.GroupClause) > 0 || containsAggregateCall(sel.TargetList) {
		op, err = b.buildAggregate(op, sel)
		if err != nil {
			return nil, err
		}
	} else {
		op, err = b.buildProject(op, sel.TargetList)
		if err != nil {
			return nil, err
		}
	}

	if isDistinctClause(sel.DistinctClause) {
		op = ir.Distinct{Child: op}
	}

	return op, nil
}

func (b *builder) buildSetOpSelect(sel *pgquery.SelectStmt) (ir.Op, error) {
	left, err := b.buildSelect(sel.Larg)
	if err != nil {
		return nil, err
	}
	right, err := b.buildSelect(sel.Rarg)
	if err != nil {
		return nil, err
	}
	switch sel.Op {
	case pgquery.SetOperation_SETOP_UNION:
		return BuildSetOp(SetOpUnion, sel.All, left, right), nil
	case pgquery.SetOperation_SETOP_INTERSECT:
		return BuildSetOp(SetOpIntersect, sel.All, left, right), nil
	case pgquery.SetOperation_SETOP_EXCEPT:
		return BuildSetOp(SetOpExcept, sel.All, left, right), nil
	default:
		return nil, pgserr.Unsupported("SetOperation", "unrecognised set operation %v", sel.Op)
	}
}

// declareCtes registers every WITH-clause entry, in textual order, as
// not-yet-parsed bodies. A RECURSIVE CTE's Ctequery is itself a set-op
// SELECT whose Larg is the base term and Rarg the recursive term
// (PostgreSQL's own representation of WITH RECURSIVE).
func (b *builder) declareCtes(with *pgquery.WithClause) error {
	for _, cteNode := range with.Ctes {
		cte, ok := cteNode.Node.(*pgquery.Node_CommonTableExpr)
		if !ok {
			continue
		}
		name := cte.CommonTableExpr.Ctename
		defAliases := stringListFromNodes(cte.CommonTableExpr.Aliascolnames)
		ctequery := cte.CommonTableExpr.Ctequery
		recursive := with.Recursive

		b.cteCtx.Declare(name, defAliases, func() (ir.Op, error) {
			sel, ok := ctequery.Node.(*pgquery.Node_SelectStmt)
			if !ok {
				return nil, pgserr.ParseError("CTE %q body is not a SELECT", name)
			}
			if !recursive || sel.SelectStmt.Op == pgquery.SetOperation_SETOP_NONE {
				return b.buildSelect(sel.SelectStmt)
			}
			return b.buildRecursiveCte(name, defAliases, sel.SelectStmt)
		})
	}
	return nil
}

func (b *builder) buildRecursiveCte(name string, defAliases []string, sel *pgquery.SelectStmt) (ir.Op, error) {
	base, err := b.buildSelect(sel.Larg)
	if err != nil {
		return nil, err
	}
	cols := defAliases
	if len(cols) == 0 {
		cols = outputColumnsOf(base)
	}
	b.cteCtx.EnterRecursiveTerm(name, cols)
	recursive, err := b.buildSelect(sel.Rarg)
	b.cteCtx.ExitRecursiveTerm()
	if err != nil {
		return nil, err
	}
	return ir.RecursiveCte{
		Alias:     name,
		Columns:   cols,
		Base:      base,
		Recursive: recursive,
		UnionAll:  sel.All,
	}, nil
}

func (b *builder) buildFromClause(fromClause []*pgquery.Node) (ir.Op, error) {
	if len(fromClause) == 0 {
		return nil, pgserr.Unsupported("SelectStmt", "SELECT without FROM is not supported")
	}
	op, err := b.buildFromItem(fromClause[0])
	if err != nil {
		return nil, err
	}
	for _, item := range fromClause[1:] {
		right, err := b.buildFromItem(item)
		if err != nil {
			return nil, err
		}
		op = ir.InnerJoin{Predicate: ir.Literal{Text: "true"}, Left: op, Right: right}
	}
	return op, nil
}

func (b *builder) buildFromItem(node *pgquery.Node) (ir.Op, error) {
	switch n := node.Node.(type) {
	case *pgquery.Node_RangeVar:
		return b.buildRangeVar(n.RangeVar)

	case *pgquery.Node_JoinExpr:
		return b.buildJoinExpr(n.JoinExpr)

	case *pgquery.Node_RangeSubselect:
		sel, ok := n.RangeSubselect.Subquery.Node.(*pgquery.Node_SelectStmt)
		if !ok {
			return nil, pgserr.ParseError("RangeSubselect body is not a SELECT")
		}
		inner, err := b.buildSelect(sel.SelectStmt)
		if err != nil {
			return nil, err
		}
		alias := ""
		var colAliases []string
		if n.RangeSubselect.Alias != nil {
			alias = n.RangeSubselect.Alias.Aliasname
			colAliases = stringListFromNodes(n.RangeSubselect.Alias.Colnames)
		}
		return ir.Subquery{Alias: alias, ColumnAliases: colAliases, Child: inner}, nil

	default:
		return nil, pgserr.Unsupported(fmt.Sprintf("%T", node.Node), "FROM-clause item shape not supported")
	}
}

func (b *builder) buildRangeVar(rv *pgquery.RangeVar) (ir.Op, error) {
	alias := rv.Relname
	if rv.Alias != nil && rv.Alias.Aliasname != "" {
		alias = rv.Alias.Aliasname
	}

	kind, op, err := b.cteCtx.Resolve(rv.Relname, nil)
	if err != nil {
		return nil, err
	}
	switch kind {
	case ResolveSelfRef:
		return op, nil
	case ResolveCteScan:
		scan := op.(ir.CteScan)
		scan.Alias = alias
		return scan, nil
	}

	schema := rv.Schemaname
	if schema == "" {
		schema = "public"
	}
	oid, err := b.cat.TableOID(schema, rv.Relname)
	if err != nil {
		return nil, err
	}
	cols, err := b.cat.Columns(oid)
	if err != nil {
		return nil, err
	}
	pk, err := b.cat.PrimaryKey(oid)
	if err != nil {
		return nil, err
	}
	strategy := ir.RowIDAllColumns
	if len(pk) > 0 {
		strategy = ir.RowIDPrimaryKey
	}
	return ir.Scan{
		OID:           oid,
		Schema:        schema,
		Relation:      rv.Relname,
		Alias:         alias,
		Columns:       cols,
		PrimaryKey:    pk,
		RowIDStrategy: strategy,
	}, nil
}

func (b *builder) buildJoinExpr(j *pgquery.JoinExpr) (ir.Op, error) {
	left, err := b.buildFromItem(j.Larg)
	if err != nil {
		return nil, err
	}
	right, err := b.buildFromItem(j.Rarg)
	if err != nil {
		return nil, err
	}
	predicate := ir.Expr(ir.Literal{Text: "true"})
	if j.Quals != nil {
		predicate, err = buildExpr(j.Quals)
		if err != nil {
			return nil, err
		}
	}
	switch j.Jointype {
	case pgquery.JoinType_JOIN_INNER:
		return ir.InnerJoin{Predicate: predicate, Left: left, Right: right}, nil
	case pgquery.JoinType_JOIN_LEFT:
		return ir.LeftJoin{Predicate: predicate, Left: left, Right: right}, nil
	case pgquery.JoinType_JOIN_FULL:
		return ir.FullJoin{Predicate: predicate, Left: left, Right: right}, nil
	default:
		return nil, pgserr.Unsupported("JoinExpr", "join type %v is not supported", j.Jointype)
	}
}

// applyWhere wraps op in a Filter, first extracting any top-level EXISTS
// / IN / ANY / ALL SubLink conjunct into a SemiJoin or AntiJoin (spec.md
// section 4.2); everything else becomes the Filter's Predicate.
func (b *builder) applyWhere(op ir.Op, where *pgquery.Node) (ir.Op, error) {
	conjuncts := flattenAndNodes(where)
	var remaining []*pgquery.Node

	for _, c := range conjuncts {
		wrapped, negated := unwrapNot(c)
		sl, ok := wrapped.Node.(*pgquery.Node_SubLink)
		if !ok {
			remaining = append(remaining, c)
			continue
		}
		joined, err := b.buildSubLinkJoin(op, sl.SubLink, negated)
		if err != nil {
			return nil, err
		}
		op = joined
	}

	if len(remaining) == 0 {
		return op, nil
	}
	predicate, err := buildExpr(combineAndNodes(remaining))
	if err != nil {
		return nil, err
	}
	return ir.Filter{Predicate: predicate, Child: op}, nil
}

func (b *builder) buildSubLinkJoin(left ir.Op, sl *pgquery.SubLink, negated bool) (ir.Op, error) {
	sel, ok := sl.Subselect.Node.(*pgquery.Node_SelectStmt)
	if !ok {
		return nil, pgserr.ParseError("SubLink subselect is not a SELECT")
	}
	right, err := b.buildSelect(sel.SelectStmt)
	if err != nil {
		return nil, err
	}

	var kind SubLinkKind
	switch sl.SubLinkType {
	case pgquery.SubLinkType_EXISTS_SUBLINK:
		kind = SubLinkExists
	case pgquery.SubLinkType_ANY_SUBLINK:
		kind = SubLinkAny
	case pgquery.SubLinkType_ALL_SUBLINK:
		kind = SubLinkAll
	default:
		return nil, pgserr.Unsupported("SubLink", "SubLink type %v is not supported in WHERE", sl.SubLinkType)
	}

	correlation := ir.Expr(ir.Literal{Text: "true"})
	if sl.Testexpr != nil {
		var err error
		correlation, err = buildExpr(sl.Testexpr)
		if err != nil {
			return nil, err
		}
	}

	if WantsSemiJoin(kind, negated) {
		return ir.SemiJoin{Correlation: correlation, Left: left, Right: right}, nil
	}
	return ir.AntiJoin{Correlation: correlation, Left: left, Right: right}, nil
}

func (b *builder) buildProject(child ir.Op, targetList []*pgquery.Node) (ir.Op, error) {
	exprs := make([]ir.Expr, 0, len(targetList))
	aliases := make([]string, 0, len(targetList))
	for _, t := range targetList {
		rt, ok := t.Node.(*pgquery.Node_ResTarget)
		if !ok {
			continue
		}
		e, err := buildExpr(rt.ResTarget.Val)
		if err != nil {
			return nil, err
		}
		alias := rt.ResTarget.Name
		if alias == "" {
			alias = e.SQL()
		}
		exprs = append(exprs, e)
		aliases = append(aliases, alias)
	}
	return ir.Project{Exprs: exprs, Aliases: aliases, Child: child}, nil
}

func (b *builder) buildAggregate(child ir.Op, sel *pgquery.SelectStmt) (ir.Op, error) {
	groupBy := make([]ir.Expr, 0, len(sel.GroupClause))
	for _, g := range sel.GroupClause {
		e, err := buildExpr(g)
		if err != nil {
			return nil, err
		}
		groupBy = append(groupBy, e)
	}

	var aggs []ir.AggDescriptor
	aliasFor := map[string]string{}
	for _, t := range sel.TargetList {
		rt, ok := t.Node.(*pgquery.Node_ResTarget)
		if !ok {
			continue
		}
		fc, ok := rt.ResTarget.Val.Node.(*pgquery.Node_FuncCall)
		if !ok {
			continue
		}
		desc, err := buildAggDescriptor(fc.FuncCall, rt.ResTarget.Name)
		if err != nil {
			return nil, err
		}
		if desc == nil {
			continue
		}
		aggs = append(aggs, *desc)
		asExpr, err := buildFuncCall(fc.FuncCall)
		if err != nil {
			return nil, err
		}
		aliasFor[asExpr.SQL()] = desc.Alias
	}

	agg := ir.Aggregate{GroupBy: groupBy, Aggs: aggs, Child: child}

	if sel.HavingClause == nil {
		return agg, nil
	}
	havingExpr, err := buildExpr(sel.HavingClause)
	if err != nil {
		return nil, err
	}
	return ir.Filter{Predicate: RewriteHaving(havingExpr, aliasFor), Child: agg}, nil
}

func buildAggDescriptor(fc *pgquery.FuncCall, alias string) (*ir.AggDescriptor, error) {
	name := funcNameString(fc.Funcname)
	fn, ok := ir.AggFuncFromName(name)
	if !ok {
		return nil, nil
	}
	var arg ir.Expr
	if fc.AggStar {
		fn = ir.CountStar
	} else if len(fc.Args) > 0 {
		e, err := buildExpr(fc.Args[0])
		if err != nil {
			return nil, err
		}
		arg = e
	}
	if alias == "" {
		alias = name
	}
	return &ir.AggDescriptor{Func: fn, Arg: arg, Distinct: fc.AggDistinct, Alias: alias}, nil
}

func containsAggregateCall(targetList []*pgquery.Node) bool {
	for _, t := range targetList {
		rt, ok := t.Node.(*pgquery.Node_ResTarget)
		if !ok {
			continue
		}
		fc, ok := rt.ResTarget.Val.Node.(*pgquery.Node_FuncCall)
		if !ok {
			continue
		}
		if _, ok := ir.AggFuncFromName(funcNameString(fc.Funcname)); ok {
			return true
		}
	}
	return false
}

func isDistinctClause(clause []*pgquery.Node) bool {
	for _, n := range clause {
		if n == nil || n.Node == nil {
			return true // plain DISTINCT: one nil placeholder entry
		}
	}
	return false
}

func stringListFromNodes(nodes []*pgquery.Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if s, ok := n.Node.(*pgquery.Node_String_); ok {
			out = append(out, s.String_.Sval)
		}
	}
	return out
}

func flattenAndNodes(node *pgquery.Node) []*pgquery.Node {
	be, ok := node.Node.(*pgquery.Node_BoolExpr)
	if !ok || be.BoolExpr.Boolop != pgquery.BoolExprType_AND_EXPR {
		return []*pgquery.Node{node}
	}
	var out []*pgquery.Node
	for _, a := range be.BoolExpr.Args {
		out = append(out, flattenAndNodes(a)...)
	}
	return out
}

func combineAndNodes(nodes []*pgquery.Node) *pgquery.Node {
	if len(nodes) == 1 {
		return nodes[0]
	}
	return &pgquery.Node{Node: &pgquery.Node_BoolExpr{BoolExpr: &pgquery.BoolExpr{
		Boolop: pgquery.BoolExprType_AND_EXPR,
		Args:   nodes,
	}}}
}

func unwrapNot(node *pgquery.Node) (*pgquery.Node, bool) {
	be, ok := node.Node.(*pgquery.Node_BoolExpr)
	if !ok || be.BoolExpr.Boolop != pgquery.BoolExprType_NOT_EXPR || len(be.BoolExpr.Args) != 1 {
		return node, false
	}
	return be.BoolExpr.Args[0], true
}
