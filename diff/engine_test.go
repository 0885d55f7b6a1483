package diff

import (
	"testing"

	"github.com/k0kubun/pgdvm/ir"
	"github.com/stretchr/testify/assert"
)

// TestDifferentiateHandlesEveryKind cross-checks Differentiate's type
// switch against every concrete ir.Op variant declared in optree.go. It
// does this structurally (reflect on the switch's source is not
// available at runtime, so instead it exercises Differentiate with a
// zero-value instance of each variant and asserts the result is never
// the catch-all "no differentiation rule registered" error) rather than
// by asserting real output, since a zero-value Op has no meaningful
// delta to compute.
func TestDifferentiateHandlesEveryKind(t *testing.T) {
	c := NewContext(ir.NewCteRegistry(), nil, nil, "cdc")

	variants := []ir.Op{
		ir.Scan{},
		ir.Project{Child: ir.Scan{}},
		ir.Filter{Child: ir.Scan{}},
		ir.InnerJoin{Left: ir.Scan{}, Right: ir.Scan{}},
		ir.LeftJoin{Left: ir.Scan{}, Right: ir.Scan{}},
		ir.FullJoin{Left: ir.Scan{}, Right: ir.Scan{}},
		ir.Aggregate{Child: ir.Scan{}},
		ir.Distinct{Child: ir.Scan{}},
		ir.UnionAll{Children_: []ir.Op{ir.Scan{}}},
		ir.Intersect{Left: ir.Scan{}, Right: ir.Scan{}},
		ir.Except{Left: ir.Scan{}, Right: ir.Scan{}},
		ir.Subquery{Alias: "s", Child: ir.Scan{}},
		ir.CteScan{CteID: 999},
		ir.RecursiveCte{Base: ir.Scan{}, Recursive: ir.Scan{}},
		ir.RecursiveSelfRef{CteName: "x"},
		ir.Window{Child: ir.Scan{}},
		ir.LateralFunction{Child: ir.Scan{}},
		ir.LateralSubquery{Child: ir.Scan{}},
		ir.SemiJoin{Left: ir.Scan{}, Right: ir.Scan{}},
		ir.AntiJoin{Left: ir.Scan{}, Right: ir.Scan{}},
		ir.ScalarSubquery{Inner: ir.Scan{}, Child: ir.Scan{}},
	}

	seenKinds := map[ir.Kind]bool{}
	for _, v := range variants {
		seenKinds[v.Kind()] = true

		_, err := Differentiate(c, v)
		if err == nil {
			continue
		}
		assert.NotContains(t, err.Error(), "no differentiation rule registered",
			"Differentiate has no case for %T", v)
	}

	// every Kind constant must be exercised by some variant above; a new
	// Kind added to optree.go without a corresponding entry here (and in
	// Differentiate's switch) fails this assertion.
	allKinds := []ir.Kind{
		ir.KindScan, ir.KindProject, ir.KindFilter, ir.KindInnerJoin,
		ir.KindLeftJoin, ir.KindFullJoin, ir.KindAggregate, ir.KindDistinct,
		ir.KindUnionAll, ir.KindIntersect, ir.KindExcept, ir.KindSubquery,
		ir.KindCteScan, ir.KindRecursiveCte, ir.KindRecursiveSelfRef,
		ir.KindWindow, ir.KindLateralFunction, ir.KindLateralSubquery,
		ir.KindSemiJoin, ir.KindAntiJoin, ir.KindScalarSubquery,
	}
	for _, k := range allKinds {
		assert.True(t, seenKinds[k], "Kind %v has no variant exercised in this test", k)
	}
	assert.Equal(t, len(allKinds), len(variants), "variants list and allKinds list have diverged")
}

// TestDifferentiateRecursiveSelfRefOutsideRecursiveCte asserts a
// RecursiveSelfRef reached directly by Differentiate (rather than
// resolved inside its enclosing RecursiveCte's Recursive subtree)
// reports an internal error rather than panicking or emitting
// nonsensical SQL.
func TestDifferentiateRecursiveSelfRefOutsideRecursiveCte(t *testing.T) {
	c := NewContext(ir.NewCteRegistry(), nil, nil, "cdc")
	_, err := Differentiate(c, ir.RecursiveSelfRef{CteName: "orphan", Alias: "o"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "orphan")
}

func TestResultZeroValueHasNoColumns(t *testing.T) {
	var r Result
	assert.Nil(t, r.Columns)
	assert.False(t, r.IsDeduplicated)
}
