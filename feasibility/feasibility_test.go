package feasibility

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/k0kubun/pgdvm/ir"
)

func TestCheckAcceptsPlainScan(t *testing.T) {
	err := Check(ir.Scan{Schema: "public", Relation: "orders", Alias: "orders"})
	assert.NoError(t, err)
}

func TestCheckAcceptsFilterOverJoin(t *testing.T) {
	tree := ir.Filter{
		Predicate: ir.Literal{Text: "true"},
		Child: ir.InnerJoin{
			Predicate: ir.Literal{Text: "true"},
			Left:      ir.Scan{Relation: "a", Alias: "a"},
			Right:     ir.Scan{Relation: "b", Alias: "b"},
		},
	}
	assert.NoError(t, Check(tree))
}

func TestCheckRejectsUnrecognisedAggregate(t *testing.T) {
	tree := ir.Aggregate{
		Child: ir.Scan{Relation: "orders", Alias: "orders"},
		Aggs:  []ir.AggDescriptor{{Func: ir.AggFunc(9999), Alias: "bogus"}},
	}
	err := Check(tree)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "UnsupportedOperator")
}

func TestCheckAcceptsRecognisedAggregate(t *testing.T) {
	tree := ir.Aggregate{
		Child: ir.Scan{Relation: "orders", Alias: "orders"},
		Aggs:  []ir.AggDescriptor{{Func: ir.Sum, Alias: "total"}},
	}
	assert.NoError(t, Check(tree))
}

func TestCheckRejectsNonLinearRecursiveCte(t *testing.T) {
	selfRef := ir.RecursiveSelfRef{CteName: "tree", Alias: "t", Columns: []string{"id"}}
	tree := ir.RecursiveCte{
		Alias: "tree",
		Base:  ir.Scan{Relation: "nodes", Alias: "n"},
		Recursive: ir.InnerJoin{
			Predicate: ir.Literal{Text: "true"},
			Left:      selfRef,
			Right:     selfRef,
		},
	}
	err := Check(tree)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "2 self-references")
}

func TestCheckAcceptsLinearRecursiveCte(t *testing.T) {
	tree := ir.RecursiveCte{
		Alias: "tree",
		Base:  ir.Scan{Relation: "nodes", Alias: "n"},
		Recursive: ir.InnerJoin{
			Predicate: ir.Literal{Text: "true"},
			Left:      ir.RecursiveSelfRef{CteName: "tree", Alias: "t", Columns: []string{"id"}},
			Right:     ir.Scan{Relation: "nodes", Alias: "n2"},
		},
	}
	assert.NoError(t, Check(tree))
}
