package diff

import (
	"fmt"
	"strings"

	"github.com/k0kubun/pgdvm/ir"
)

// rowIDExpr renders the row-id hashing expression for a strategy over a
// set of already-qualified column references, following
// original_source/src/dvm/row_id.rs's dispatch. pgstream.pg_stream_hash is
// the single stable hashing function the emitted SQL relies on — its
// implementation lives in the out-of-scope extension, not this module.
func rowIDExpr(strategy ir.RowIDStrategy, pkCols, allCols []string, qualifier string) string {
	switch strategy {
	case ir.RowIDPrimaryKey:
		return hashCall(qualifier, pkCols)
	case ir.RowIDAllColumns:
		return hashCall(qualifier, allCols)
	default:
		return hashCall(qualifier, allCols)
	}
}

func hashCall(qualifier string, cols []string) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		if qualifier != "" {
			parts[i] = fmt.Sprintf("%s.%s::text", qualifier, ir.QuoteIdent(c))
		} else {
			parts[i] = fmt.Sprintf("%s::text", ir.QuoteIdent(c))
		}
	}
	return fmt.Sprintf("pgstream.pg_stream_hash(%s)", strings.Join(parts, ", "))
}

// combineRowIDs hashes a fixed-arity tuple of child row-ids together, the
// RowIDCombineChildren strategy used by joins and set operators (the
// combined value never collides with a single-child row-id since it
// hashes a tuple, not a scalar).
func combineRowIDs(exprs ...string) string {
	return fmt.Sprintf("pgstream.pg_stream_hash(%s)", strings.Join(exprs, ", "))
}

// selectList renders a "col1, col2, ..." clause, optionally qualified.
func selectList(qualifier string, cols []string) string {
	if qualifier == "" {
		return ir.ColList(cols)
	}
	return ir.QualifiedColList(qualifier, cols)
}

// aliasedSelectList renders "expr AS alias, ..." pairs.
func aliasedSelectList(exprs []ir.Expr, aliases []string) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = fmt.Sprintf("%s AS %s", e.SQL(), ir.QuoteIdent(aliases[i]))
	}
	return strings.Join(parts, ", ")
}

// jsonbExtract renders "jsonb_populate_record(NULL::schema.relation,
// <jsonCol>) AS r" — the decoding step every Scan delta rule performs to
// turn a changes_<oid> row's jsonb payload back into typed columns.
func jsonbExtract(schema, relation, jsonCol string) string {
	return fmt.Sprintf("jsonb_populate_record(NULL::%s.%s, %s) AS r",
		ir.QuoteIdent(schema), ir.QuoteIdent(relation), jsonCol)
}

func wrapParens(sql string) string {
	return "(\n" + sql + "\n)"
}
