package rewrite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/k0kubun/pgdvm/catalog"
	"github.com/k0kubun/pgdvm/ir"
)

type fakeCatalog struct {
	kinds      map[string]catalog.RelKind
	oids       map[string]uint32
	viewBodies map[uint32]string
}

func (f *fakeCatalog) key(schema, table string) string { return schema + "." + table }

func (f *fakeCatalog) TableOID(schema, table string) (uint32, error) {
	return f.oids[f.key(schema, table)], nil
}

func (f *fakeCatalog) Columns(oid uint32) ([]ir.Column, error) { return nil, nil }

func (f *fakeCatalog) PrimaryKey(oid uint32) ([]string, error) { return nil, nil }

func (f *fakeCatalog) FunctionVolatility(name string) (ir.Volatility, error) {
	return ir.Immutable, nil
}

func (f *fakeCatalog) RelKind(schema, table string) (catalog.RelKind, error) {
	return f.kinds[f.key(schema, table)], nil
}

func (f *fakeCatalog) ViewDefinition(oid uint32) (string, error) {
	return f.viewBodies[oid], nil
}

func TestInlineViewsLeavesPlainTableAlone(t *testing.T) {
	cat := &fakeCatalog{
		kinds: map[string]catalog.RelKind{"public.orders": catalog.RelKindTable},
	}
	out, err := InlineViews("SELECT id FROM orders", cat)
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM orders", out)
}

func TestInlineViewsExpandsView(t *testing.T) {
	cat := &fakeCatalog{
		kinds:      map[string]catalog.RelKind{"public.active_orders": catalog.RelKindView},
		oids:       map[string]uint32{"public.active_orders": 42},
		viewBodies: map[uint32]string{42: "SELECT id, status FROM orders WHERE status = 'active'"},
	}
	out, err := InlineViews("SELECT id FROM active_orders", cat)
	require.NoError(t, err)
	assert.Contains(t, out, "active_orders")
	assert.Contains(t, out, "status")
}
