// Package feasibility implements the IVM-support checker (spec.md
// section 4.3): a type-directed recursive walk over an ir.Op tree that
// rejects constructs the differentiation engine cannot incrementally
// maintain, before any CTE is ever emitted.
package feasibility

import (
	"github.com/k0kubun/pgdvm/ir"
	"github.com/k0kubun/pgdvm/pgserr"
)

// Check walks op and returns the first unsupported construct found, or
// nil if op is entirely IVM-valid. A caller that wants a FULL-mode
// fallback rather than a hard failure should inspect the returned
// error's Kind (pgserr.UnsupportedOperator) rather than treating
// every non-nil error as fatal.
func Check(op ir.Op) error {
	return check(op, false)
}

// check carries insideRecursiveTerm down the walk; no rule reads it. The
// non-linear-self-reference rule (spec.md section 4.3, RecursiveCte)
// counts self-references with a separate walk (countSelfRefs).
func check(op ir.Op, insideRecursiveTerm bool) error {
	if op == nil {
		return nil
	}

	switch o := op.(type) {
	case ir.Scan, ir.CteScan, ir.RecursiveSelfRef:
		return nil

	case ir.Aggregate:
		for _, ad := range o.Aggs {
			if !ad.Func.Recognised() {
				return pgserr.Unsupported("Aggregate", "aggregate function %q is not in the recognised incrementalisable set; use FULL mode for this stream table", ad.Func.String())
			}
		}
		return check(o.Child, insideRecursiveTerm)

	case ir.RecursiveCte:
		if n := countSelfRefs(o.Recursive); n > 1 {
			return pgserr.Unsupported("RecursiveCte", "recursive CTE %q has %d self-references in its recursive term; PostgreSQL itself restricts a WITH RECURSIVE term to reference the CTE at most once", o.Alias, n)
		}
		if err := check(o.Base, insideRecursiveTerm); err != nil {
			return err
		}
		return check(o.Recursive, true)

	default:
		for _, child := range op.Children() {
			if err := check(child, insideRecursiveTerm); err != nil {
				return err
			}
		}
		return nil
	}
}

func countSelfRefs(op ir.Op) int {
	n := 0
	var walk func(ir.Op)
	walk = func(o ir.Op) {
		if o == nil {
			return
		}
		if _, ok := o.(ir.RecursiveSelfRef); ok {
			n++
			return
		}
		for _, c := range o.Children() {
			walk(c)
		}
	}
	walk(op)
	return n
}
