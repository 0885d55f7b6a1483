package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSourceOIDsDedupesAcrossJoin(t *testing.T) {
	left := Scan{OID: 1, Schema: "public", Relation: "l", Alias: "l"}
	right := Scan{OID: 2, Schema: "public", Relation: "r", Alias: "r"}
	join := InnerJoin{Left: left, Right: right, Predicate: BinaryOp{Op: "=",
		Left: ColumnRef{Table: "l", Column: "id"}, Right: ColumnRef{Table: "r", Column: "id"}}}
	filter := Filter{Child: join, Predicate: Literal{Text: "true"}}

	oids := SourceOIDs(filter)
	assert.ElementsMatch(t, []uint32{1, 2}, oids)
}

func TestSourceOIDsSameTableOnce(t *testing.T) {
	t1 := Scan{OID: 7, Schema: "public", Relation: "t", Alias: "a"}
	t2 := Scan{OID: 7, Schema: "public", Relation: "t", Alias: "b"}
	u := UnionAll{Children_: []Op{t1, t2}}

	oids := SourceOIDs(u)
	assert.Equal(t, []uint32{7}, oids)
}

func TestQuoteIdentDoublesEmbeddedQuote(t *testing.T) {
	assert.Equal(t, `"a""b"`, QuoteIdent(`a"b`))
}

func TestAggFuncFromName(t *testing.T) {
	f, ok := AggFuncFromName("sum")
	assert.True(t, ok)
	assert.Equal(t, Sum, f)
	assert.False(t, f.IsGroupRescan())

	f, ok = AggFuncFromName("array_agg")
	assert.True(t, ok)
	assert.True(t, f.IsGroupRescan())

	_, ok = AggFuncFromName("not_a_real_fn")
	assert.False(t, ok)
}

func TestKindSwitchIsExhaustive(t *testing.T) {
	// A compile-time-ish sanity check: every Op implementation must
	// report a distinct Kind matching its constructor.
	cases := []struct {
		op   Op
		kind Kind
	}{
		{Scan{}, KindScan},
		{Project{}, KindProject},
		{Filter{}, KindFilter},
		{InnerJoin{}, KindInnerJoin},
		{LeftJoin{}, KindLeftJoin},
		{FullJoin{}, KindFullJoin},
		{Aggregate{}, KindAggregate},
		{Distinct{}, KindDistinct},
		{UnionAll{}, KindUnionAll},
		{Intersect{}, KindIntersect},
		{Except{}, KindExcept},
		{Subquery{}, KindSubquery},
		{CteScan{}, KindCteScan},
		{RecursiveCte{}, KindRecursiveCte},
		{RecursiveSelfRef{}, KindRecursiveSelfRef},
		{Window{}, KindWindow},
		{LateralFunction{}, KindLateralFunction},
		{LateralSubquery{}, KindLateralSubquery},
		{SemiJoin{}, KindSemiJoin},
		{AntiJoin{}, KindAntiJoin},
		{ScalarSubquery{}, KindScalarSubquery},
	}
	for _, c := range cases {
		assert.Equal(t, c.kind, c.op.Kind())
	}
}
