package diff

import (
	"github.com/k0kubun/pgdvm/ir"
	"github.com/k0kubun/pgdvm/pgserr"
)

// Differentiate is the engine's single dispatch point: an exhaustive
// type switch over every ir.Op variant (spec.md section 4.4). Adding a
// 22nd OpTree variant without a case here is a compile-time-invisible
// but immediately test-visible gap — TestDifferentiateHandlesEveryKind
// in engine_test.go cross-checks this switch against ir.Kind's full
// range.
func Differentiate(c *Context, op ir.Op) (Result, error) {
	switch o := op.(type) {
	case ir.Scan:
		return diffScan(c, o)
	case ir.Filter:
		return diffFilter(c, o)
	case ir.Project:
		return diffProject(c, o)
	case ir.Subquery:
		return diffSubquery(c, o)
	case ir.Distinct:
		return diffDistinct(c, o)
	case ir.Aggregate:
		return diffAggregate(c, o)
	case ir.InnerJoin:
		return diffInnerJoin(c, o)
	case ir.LeftJoin:
		return diffLeftJoin(c, o)
	case ir.FullJoin:
		return diffFullJoin(c, o)
	case ir.SemiJoin:
		return diffSemiJoin(c, o)
	case ir.AntiJoin:
		return diffAntiJoin(c, o)
	case ir.UnionAll:
		return diffUnionAll(c, o)
	case ir.Intersect:
		return diffIntersect(c, o)
	case ir.Except:
		return diffExcept(c, o)
	case ir.CteScan:
		return diffCteScan(c, o)
	case ir.RecursiveCte:
		return diffRecursiveCte(c, o)
	case ir.Window:
		return diffWindow(c, o)
	case ir.LateralFunction:
		return diffLateralFunction(c, o)
	case ir.LateralSubquery:
		return diffLateralSubquery(c, o)
	case ir.ScalarSubquery:
		return diffScalarSubquery(c, o)
	case ir.RecursiveSelfRef:
		return Result{}, pgserr.Internal("RecursiveSelfRef %q reached outside its enclosing RecursiveCte's Recursive subtree", o.CteName)
	default:
		return Result{}, pgserr.Internal("no differentiation rule registered for op kind %v", op.Kind())
	}
}
