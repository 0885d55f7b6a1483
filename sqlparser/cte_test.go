package sqlparser

import (
	"testing"

	"github.com/k0kubun/pgdvm/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCteParseContextResolvesBaseScan(t *testing.T) {
	ctx := NewCteParseContext(ir.NewCteRegistry())
	kind, op, err := ctx.Resolve("some_table", nil)
	require.NoError(t, err)
	assert.Equal(t, ResolveBaseScan, kind)
	assert.Nil(t, op)
}

func TestCteParseContextParsesOnceAndCaches(t *testing.T) {
	reg := ir.NewCteRegistry()
	ctx := NewCteParseContext(reg)

	calls := 0
	body := ir.Scan{OID: 1, Relation: "t", Columns: []ir.Column{{Name: "id"}, {Name: "name"}}}
	ctx.Declare("my_cte", nil, func() (ir.Op, error) {
		calls++
		return body, nil
	})

	kind1, op1, err := ctx.Resolve("my_cte", []string{"id", "name"})
	require.NoError(t, err)
	assert.Equal(t, ResolveCteScan, kind1)
	scan1 := op1.(ir.CteScan)

	kind2, op2, err := ctx.Resolve("my_cte", []string{"id", "name"})
	require.NoError(t, err)
	assert.Equal(t, ResolveCteScan, kind2)
	scan2 := op2.(ir.CteScan)

	assert.Equal(t, 1, calls, "CTE body must be parsed exactly once regardless of reference count")
	assert.Equal(t, scan1.CteID, scan2.CteID)
	assert.Equal(t, []string{"id", "name"}, scan1.Columns)
}

func TestCteParseContextSelfRef(t *testing.T) {
	ctx := NewCteParseContext(ir.NewCteRegistry())
	ctx.EnterRecursiveTerm("tree", []string{"id", "depth"})
	defer ctx.ExitRecursiveTerm()

	kind, op, err := ctx.Resolve("tree", nil)
	require.NoError(t, err)
	assert.Equal(t, ResolveSelfRef, kind)
	selfRef := op.(ir.RecursiveSelfRef)
	assert.Equal(t, "tree", selfRef.CteName)
	assert.Equal(t, []string{"id", "depth"}, selfRef.Columns)
}

func TestCteParseContextColumnAliasPriority(t *testing.T) {
	reg := ir.NewCteRegistry()
	ctx := NewCteParseContext(reg)
	ctx.Declare("c", []string{"x", "y"}, func() (ir.Op, error) {
		return ir.Scan{Columns: []ir.Column{{Name: "id"}, {Name: "val"}}}, nil
	})

	// No reference-level aliases: falls back to definition-level aliases.
	_, op, err := ctx.Resolve("c", nil)
	require.NoError(t, err)
	scan := op.(ir.CteScan)
	assert.Equal(t, []string{"x", "y"}, scan.CteDefAliases)
	assert.Nil(t, scan.ColumnAliases)
}
