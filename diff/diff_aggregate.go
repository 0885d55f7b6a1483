package diff

import (
	"fmt"
	"strings"

	"github.com/k0kubun/pgdvm/ir"
)

// diffAggregate dispatches on the aggregate's incremental classification
// (spec.md section 4.4 "Aggregate"): cheap incremental update when every
// AggDescriptor is Count/CountStar/Sum/Avg, group rescan otherwise
// (Min/Max included). The two strategies never mix in one Aggregate node since
// is_group_rescan is evaluated per descriptor but a single Min/Max among
// otherwise-cheap aggregates still forces the whole node into rescan —
// the Max's old-extremum-removed case cannot be corrected incrementally.
func diffAggregate(c *Context, a ir.Aggregate) (Result, error) {
	child, err := Differentiate(c, a.Child)
	if err != nil {
		return Result{}, err
	}

	rescan := false
	for _, ad := range a.Aggs {
		if ad.Func.IsGroupRescan() || ad.Func == ir.Min || ad.Func == ir.Max {
			rescan = true
			break
		}
	}

	if rescan {
		return diffAggregateRescan(c, a, child)
	}
	return diffAggregateIncremental(c, a, child)
}

func groupByExprList(groupBy []ir.Expr) string {
	if len(groupBy) == 0 {
		return fmt.Sprintf("%s::text AS __pgs_group_key", quoteLiteral(ir.ScalarGroupSentinel))
	}
	parts := make([]string, len(groupBy))
	for i, e := range groupBy {
		parts[i] = e.SQL()
	}
	return strings.Join(parts, ", ")
}

func groupKeyHash(groupBy []ir.Expr) string {
	if len(groupBy) == 0 {
		return fmt.Sprintf("pgstream.pg_stream_hash(%s)", quoteLiteral(ir.ScalarGroupSentinel))
	}
	exprs := make([]string, len(groupBy))
	for i, e := range groupBy {
		exprs[i] = fmt.Sprintf("%s::text", e.SQL())
	}
	return combineRowIDs(exprs...)
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// diffAggregateIncremental emits 'D' for each affected group's stored
// old aggregate row (from the result stream table, referenced by
// __pgs_group_key) followed by 'I' for the recomputed value over the
// child's current full relation restricted to that group.
func diffAggregateIncremental(c *Context, a ir.Aggregate, child Result) (Result, error) {
	aggExprs := make([]string, len(a.Aggs))
	aliases := make([]string, len(a.Aggs))
	for i, ad := range a.Aggs {
		aggExprs[i] = renderAggCall(ad)
		aliases[i] = ad.Alias
	}

	childCurrent, _, err := fullRelation(c, a.Child, Current)
	if err != nil {
		return Result{}, err
	}

	affectedGroups := fmt.Sprintf(
		"SELECT DISTINCT %s AS __pgs_group_key FROM %s",
		groupKeyHash(a.GroupBy), ir.QuoteIdent(child.CTEName),
	)
	affectedName := c.NextCTEName("agg_affected_groups")
	c.AddCTE(affectedName, affectedGroups, false)

	deletes := fmt.Sprintf(
		"SELECT ag.__pgs_group_key AS __pgs_row_id, 'D'::text AS __pgs_action, st.*\n"+
			"FROM %s ag\n"+
			"JOIN %s st ON st.__pgs_row_id = ag.__pgs_group_key",
		ir.QuoteIdent(affectedName), streamTableRef(c),
	)
	inserts := fmt.Sprintf(
		"SELECT %s AS __pgs_row_id, 'I'::text AS __pgs_action, %s, %s\n"+
			"FROM %s src\n"+
			"WHERE %s IN (SELECT __pgs_group_key FROM %s)\n"+
			"GROUP BY %s",
		groupKeyHash(a.GroupBy), groupByExprList(a.GroupBy), strings.Join(aliasedList(aggExprs, aliases), ", "),
		childCurrent, groupKeyHash(a.GroupBy), ir.QuoteIdent(affectedName), groupByExprList(a.GroupBy),
	)

	name := c.NextCTEName("aggregate")
	c.AddCTE(name, deletes+"\nUNION ALL\n"+inserts, false)

	outCols := append(groupByColumnNames(a.GroupBy), aliases...)
	return Result{CTEName: name, Columns: outCols, IsDeduplicated: true}, nil
}

// diffAggregateRescan re-aggregates every group touched by the child
// delta from scratch, for aggregates with no incremental update rule.
func diffAggregateRescan(c *Context, a ir.Aggregate, child Result) (Result, error) {
	aggExprs := make([]string, len(a.Aggs))
	aliases := make([]string, len(a.Aggs))
	for i, ad := range a.Aggs {
		aggExprs[i] = renderAggCall(ad)
		aliases[i] = ad.Alias
	}

	childCurrent, _, err := fullRelation(c, a.Child, Current)
	if err != nil {
		return Result{}, err
	}

	affectedGroups := fmt.Sprintf(
		"SELECT DISTINCT %s AS __pgs_group_key FROM %s",
		groupKeyHash(a.GroupBy), ir.QuoteIdent(child.CTEName),
	)
	affectedName := c.NextCTEName("agg_rescan_groups")
	c.AddCTE(affectedName, affectedGroups, false)

	deletes := fmt.Sprintf(
		"SELECT ag.__pgs_group_key AS __pgs_row_id, 'D'::text AS __pgs_action, st.*\n"+
			"FROM %s ag\n"+
			"JOIN %s st ON st.__pgs_row_id = ag.__pgs_group_key",
		ir.QuoteIdent(affectedName), streamTableRef(c),
	)
	inserts := fmt.Sprintf(
		"SELECT %s AS __pgs_row_id, 'I'::text AS __pgs_action, %s, %s\n"+
			"FROM %s src\n"+
			"WHERE %s IN (SELECT __pgs_group_key FROM %s)\n"+
			"GROUP BY %s",
		groupKeyHash(a.GroupBy), groupByExprList(a.GroupBy), strings.Join(aliasedList(aggExprs, aliases), ", "),
		childCurrent, groupKeyHash(a.GroupBy), ir.QuoteIdent(affectedName), groupByExprList(a.GroupBy),
	)

	name := c.NextCTEName("aggregate_rescan")
	c.AddCTE(name, deletes+"\nUNION ALL\n"+inserts, false)

	outCols := append(groupByColumnNames(a.GroupBy), aliases...)
	return Result{CTEName: name, Columns: outCols, IsDeduplicated: true}, nil
}

func aliasedList(exprs, aliases []string) []string {
	out := make([]string, len(exprs))
	for i := range exprs {
		out[i] = fmt.Sprintf("%s AS %s", exprs[i], ir.QuoteIdent(aliases[i]))
	}
	return out
}

func groupByColumnNames(groupBy []ir.Expr) []string {
	names := make([]string, len(groupBy))
	for i, e := range groupBy {
		if cr, ok := e.(ir.ColumnRef); ok {
			names[i] = cr.Column
		} else {
			names[i] = fmt.Sprintf("group_expr_%d", i)
		}
	}
	return names
}

// renderAggCall renders one AggDescriptor as a standard PostgreSQL
// aggregate call over the child's current rows.
func renderAggCall(ad ir.AggDescriptor) string {
	distinct := ""
	if ad.Distinct {
		distinct = "DISTINCT "
	}
	switch ad.Func {
	case ir.CountStar:
		return "count(*)"
	default:
		argSQL := "*"
		if ad.Arg != nil {
			argSQL = ad.Arg.SQL()
		}
		name := strings.ToLower(ad.Func.String())
		if len(ad.OrderBy) > 0 {
			order := make([]string, len(ad.OrderBy))
			for i, o := range ad.OrderBy {
				order[i] = o.SQL()
			}
			return fmt.Sprintf("%s(%s%s ORDER BY %s)", name, distinct, argSQL, strings.Join(order, ", "))
		}
		return fmt.Sprintf("%s(%s%s)", name, distinct, argSQL)
	}
}

// streamTableRef is a placeholder FROM-target for the result stream
// table backing this Aggregate/Distinct node's persisted old state; the
// refresh driver substitutes the concrete qualified name before
// executing the emitted SQL (spec.md section 6, "ST qualified name").
func streamTableRef(c *Context) string {
	if c.STQualifiedName != "" {
		return c.STQualifiedName
	}
	return "__pgs_stream_table"
}
