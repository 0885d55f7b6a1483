package rewrite

import "github.com/k0kubun/pgdvm/catalog"

// Pipeline composes the raw-tree rewriters in the fixed order required
// for incrementalisation (spec.md section 4.1): each stage is a pure
// function from SQL text to SQL text (re-parsing between stages where a
// stage's output isn't already the right shape for the next), and every
// stage is idempotent on input it doesn't recognise. A query with none
// of these shapes passes through unchanged.
func Pipeline(sql string, cat catalog.Catalog) (string, error) {
	sql, err := InlineViews(sql, cat)
	if err != nil {
		return "", err
	}
	sql, err = RewriteDistinctOn(sql)
	if err != nil {
		return "", err
	}
	sql, err = RewriteGroupingSets(sql)
	if err != nil {
		return "", err
	}
	sql, err = ScalarSubqueryInWhere(sql)
	if err != nil {
		return "", err
	}
	sql, err = SubLinksUnderOr(sql)
	if err != nil {
		return "", err
	}
	sql, err = MultiPartitionWindowSplit(sql)
	if err != nil {
		return "", err
	}
	return sql, nil
}
