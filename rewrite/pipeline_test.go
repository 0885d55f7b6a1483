package rewrite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/k0kubun/pgdvm/catalog"
)

func TestPipelinePassesThroughQueryNeedingNoRewrite(t *testing.T) {
	cat := &fakeCatalog{kinds: map[string]catalog.RelKind{"public.orders": catalog.RelKindTable}}
	sql := "SELECT id, total FROM orders WHERE status = 'open'"
	out, err := Pipeline(sql, cat)
	require.NoError(t, err)
	assert.Equal(t, sql, out)
}

func TestPipelineAppliesGroupingSetsAfterViewInlining(t *testing.T) {
	cat := &fakeCatalog{
		kinds:      map[string]catalog.RelKind{"public.sales_view": catalog.RelKindView},
		oids:       map[string]uint32{"public.sales_view": 7},
		viewBodies: map[uint32]string{7: "SELECT region, product, amount FROM sales"},
	}
	sql := "SELECT region, product, SUM(amount) FROM sales_view GROUP BY ROLLUP (region, product)"
	out, err := Pipeline(sql, cat)
	require.NoError(t, err)
	assert.Contains(t, out, "sales_view")
	assert.Contains(t, out, "UNION ALL")
}
