package sqlparser

import (
	"testing"

	"github.com/k0kubun/pgdvm/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scanOp(rel string) ir.Op { return ir.Scan{Relation: rel} }

func TestBuildSetOpFlattensUnionAllChain(t *testing.T) {
	// a UNION ALL b UNION ALL c -> UnionAll{a, b, c}
	ab := BuildSetOp(SetOpUnion, true, scanOp("a"), scanOp("b"))
	abc := BuildSetOp(SetOpUnion, true, ab, scanOp("c"))

	u, ok := abc.(ir.UnionAll)
	require.True(t, ok)
	assert.Len(t, u.Children_, 3)
}

func TestBuildSetOpFlattensDedupChain(t *testing.T) {
	// a UNION b UNION c -> Distinct{UnionAll{a, b, c}}, not nested Distincts.
	ab := BuildSetOp(SetOpUnion, false, scanOp("a"), scanOp("b"))
	abc := BuildSetOp(SetOpUnion, false, ab, scanOp("c"))

	d, ok := abc.(ir.Distinct)
	require.True(t, ok)
	u, ok := d.Child.(ir.UnionAll)
	require.True(t, ok)
	assert.Len(t, u.Children_, 3)
}

func TestBuildSetOpDoesNotFlattenAcrossMixedKinds(t *testing.T) {
	// a UNION ALL b UNION c -> Distinct{UnionAll{ UnionAll{a,b}, c }}
	ab := BuildSetOp(SetOpUnion, true, scanOp("a"), scanOp("b"))
	abc := BuildSetOp(SetOpUnion, false, ab, scanOp("c"))

	d, ok := abc.(ir.Distinct)
	require.True(t, ok)
	outer, ok := d.Child.(ir.UnionAll)
	require.True(t, ok)
	require.Len(t, outer.Children_, 2)

	nested, ok := outer.Children_[0].(ir.UnionAll)
	require.True(t, ok, "inner UNION ALL chain must stay nested, not be flattened into the outer dedup union")
	assert.Len(t, nested.Children_, 2)
}

func TestBuildSetOpIntersectExceptAreBinary(t *testing.T) {
	i := BuildSetOp(SetOpIntersect, true, scanOp("a"), scanOp("b"))
	assert.Equal(t, ir.Intersect{Left: scanOp("a"), Right: scanOp("b"), All: true}, i)

	e := BuildSetOp(SetOpExcept, false, scanOp("a"), scanOp("b"))
	assert.Equal(t, ir.Except{Left: scanOp("a"), Right: scanOp("b"), All: false}, e)
}
