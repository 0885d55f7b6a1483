package sqlparser

import "github.com/k0kubun/pgdvm/ir"

// FuncVolatility looks up a function's volatility classification. The
// catalog is the sole source of truth (spec.md section 6): "function
// name -> volatility class". Implementations query pg_proc.provolatile.
type FuncVolatility interface {
	FunctionVolatility(name string) (ir.Volatility, error)
}

// WalkVolatility collects the worst function-volatility class among the
// FuncCall nodes reachable through FuncCall arguments and BinaryOp
// operands of expr (spec.md section 4.2, "Volatility tracking"). A Raw
// expression (buildExpr renders casts, CASE, NOT and IS [NOT] NULL as
// Raw) is opaque text and is not inspected, so a function called inside
// one is not counted. Volatile
// functions disable incremental maintenance; the refresh driver falls
// back to FULL or rejects the query (that decision lives outside the
// core — this function only measures).
func WalkVolatility(expr ir.Expr, fv FuncVolatility) (ir.Volatility, error) {
	worst := ir.Immutable
	var walkErr error

	var walk func(ir.Expr)
	walk = func(e ir.Expr) {
		if e == nil || walkErr != nil {
			return
		}
		switch n := e.(type) {
		case ir.FuncCall:
			v, err := fv.FunctionVolatility(n.Name)
			if err != nil {
				walkErr = err
				return
			}
			worst = worst.Worse(v)
			for _, a := range n.Args {
				walk(a)
			}
		case ir.BinaryOp:
			walk(n.Left)
			walk(n.Right)
		case ir.ColumnRef, ir.Literal, ir.Star, ir.Raw:
			// leaves; Raw text is not inspected
		}
	}
	walk(expr)
	return worst, walkErr
}
