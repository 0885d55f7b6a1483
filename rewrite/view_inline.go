package rewrite

import (
	"fmt"

	pg_query "github.com/pganalyze/pg_query_go/v6"

	"github.com/k0kubun/pgdvm/catalog"
)

// DefaultViewInlineDepth bounds the view-inlining fixpoint (spec.md
// section 4.1): a view chain deeper than this is rejected rather than
// expanded indefinitely.
const DefaultViewInlineDepth = 10

// InlineViews replaces every `FROM v` (or JOIN v) where v is a
// non-materialised view with `FROM (<view body>) AS v`, iterating to a
// bounded-depth fixpoint so a view-of-a-view chain is fully expanded.
// Materialised views and foreign tables are left untouched — the
// feasibility checker downstream rejects incremental maintenance over
// them.
func InlineViews(sql string, cat catalog.Catalog) (string, error) {
	current := sql
	for depth := 0; depth <= DefaultViewInlineDepth; depth++ {
		sel, err := parseOneSelect(current)
		if err != nil {
			return "", err
		}
		changed, err := inlineViewsInSelect(sel, cat)
		if err != nil {
			return "", err
		}
		if !changed {
			return current, nil
		}
		current, err = deparseSelect(sel)
		if err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("view inlining did not reach a fixpoint within depth %d; view chain is too deep or cyclic", DefaultViewInlineDepth)
}

func inlineViewsInSelect(sel *pg_query.SelectStmt, cat catalog.Catalog) (bool, error) {
	if sel == nil {
		return false, nil
	}
	changed := false

	if c, err := inlineViewsInSelect(sel.Larg, cat); err != nil {
		return false, err
	} else {
		changed = changed || c
	}
	if c, err := inlineViewsInSelect(sel.Rarg, cat); err != nil {
		return false, err
	} else {
		changed = changed || c
	}

	if sel.WithClause != nil {
		for _, cteNode := range sel.WithClause.Ctes {
			cte, ok := cteNode.Node.(*pg_query.Node_CommonTableExpr)
			if !ok || cte.CommonTableExpr.Ctequery == nil {
				continue
			}
			inner, ok := cte.CommonTableExpr.Ctequery.Node.(*pg_query.Node_SelectStmt)
			if !ok {
				continue
			}
			c, err := inlineViewsInSelect(inner.SelectStmt, cat)
			if err != nil {
				return false, err
			}
			changed = changed || c
		}
	}

	for i, from := range sel.FromClause {
		newFrom, c, err := inlineViewsInFromNode(from, cat)
		if err != nil {
			return false, err
		}
		if c {
			sel.FromClause[i] = newFrom
			changed = true
		}
	}
	return changed, nil
}

// inlineViewsInFromNode returns a possibly-replaced FROM-clause node and
// whether a replacement happened.
func inlineViewsInFromNode(node *pg_query.Node, cat catalog.Catalog) (*pg_query.Node, bool, error) {
	if node == nil {
		return node, false, nil
	}
	switch n := node.Node.(type) {
	case *pg_query.Node_RangeVar:
		return inlineRangeVar(n.RangeVar, cat)

	case *pg_query.Node_JoinExpr:
		left, cl, err := inlineViewsInFromNode(n.JoinExpr.Larg, cat)
		if err != nil {
			return nil, false, err
		}
		right, cr, err := inlineViewsInFromNode(n.JoinExpr.Rarg, cat)
		if err != nil {
			return nil, false, err
		}
		n.JoinExpr.Larg = left
		n.JoinExpr.Rarg = right
		return node, cl || cr, nil

	case *pg_query.Node_RangeSubselect:
		if sub, ok := n.RangeSubselect.Subquery.Node.(*pg_query.Node_SelectStmt); ok {
			c, err := inlineViewsInSelect(sub.SelectStmt, cat)
			if err != nil {
				return nil, false, err
			}
			return node, c, nil
		}
		return node, false, nil

	default:
		return node, false, nil
	}
}

func inlineRangeVar(rv *pg_query.RangeVar, cat catalog.Catalog) (*pg_query.Node, bool, error) {
	schema := rv.Schemaname
	if schema == "" {
		schema = "public"
	}
	kind, err := cat.RelKind(schema, rv.Relname)
	if err != nil {
		// Not found (or not a catalog-visible relation) — leave as-is;
		// the IR builder's own catalog lookup surfaces the real error.
		return &pg_query.Node{Node: &pg_query.Node_RangeVar{RangeVar: rv}}, false, nil
	}
	if kind != catalog.RelKindView {
		return &pg_query.Node{Node: &pg_query.Node_RangeVar{RangeVar: rv}}, false, nil
	}

	oid, err := cat.TableOID(schema, rv.Relname)
	if err != nil {
		return nil, false, err
	}
	bodySQL, err := cat.ViewDefinition(oid)
	if err != nil {
		return nil, false, err
	}
	bodySel, err := parseOneSelect(bodySQL)
	if err != nil {
		return nil, false, fmt.Errorf("parsing view definition for %s.%s: %w", schema, rv.Relname, err)
	}

	alias := rv.Relname
	if rv.Alias != nil && rv.Alias.Aliasname != "" {
		alias = rv.Alias.Aliasname
	}

	subselect := &pg_query.Node{
		Node: &pg_query.Node_RangeSubselect{
			RangeSubselect: &pg_query.RangeSubselect{
				Subquery: &pg_query.Node{Node: &pg_query.Node_SelectStmt{SelectStmt: bodySel}},
				Alias:    &pg_query.Alias{Aliasname: alias},
			},
		},
	}
	return subselect, true, nil
}
