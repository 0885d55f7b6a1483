package ir

import "fmt"

// Expr is the expression AST threaded through every OpTree variant that
// carries predicates, projections, or join conditions. It is the six-
// variant sum type from spec.md section 3.
type Expr interface {
	exprNode()
	// SQL renders the expression as PostgreSQL text. ColumnRefs are
	// rendered with their own Table qualifier (if any); no requalification
	// is applied.
	SQL() string
}

// ColumnRef references a column, optionally qualified by a FROM-alias.
type ColumnRef struct {
	Table  string // empty when unqualified
	Column string
}

func (ColumnRef) exprNode() {}
func (c ColumnRef) SQL() string {
	if c.Table == "" {
		return QuoteIdent(c.Column)
	}
	return QuoteIdent(c.Table) + "." + QuoteIdent(c.Column)
}

// Literal is a pre-rendered SQL literal (already quoted/cast as needed).
type Literal struct {
	Text string
}

func (Literal) exprNode()    {}
func (l Literal) SQL() string { return l.Text }

// BinaryOp is a two-operand operator application, e.g. "a = b" or "a AND b".
type BinaryOp struct {
	Op    string
	Left  Expr
	Right Expr
}

func (BinaryOp) exprNode() {}
func (b BinaryOp) SQL() string {
	return fmt.Sprintf("(%s %s %s)", b.Left.SQL(), b.Op, b.Right.SQL())
}

// FuncCall is a function application, e.g. "lower(name)".
type FuncCall struct {
	Name string
	Args []Expr
}

func (FuncCall) exprNode() {}
func (f FuncCall) SQL() string {
	args := ""
	for i, a := range f.Args {
		if i > 0 {
			args += ", "
		}
		args += a.SQL()
	}
	return fmt.Sprintf("%s(%s)", f.Name, args)
}

// Star is "*" or "alias.*".
type Star struct {
	Alias string // empty for bare "*"
}

func (Star) exprNode() {}
func (s Star) SQL() string {
	if s.Alias == "" {
		return "*"
	}
	return QuoteIdent(s.Alias) + ".*"
}

// Raw is an escape hatch: a literal fragment of SQL text whose internal
// structure the engine does not model. Used only by rewrites (lateral
// function/subquery bodies) whose fidelity the engine does not depend on.
type Raw struct {
	Text string
}

func (Raw) exprNode()     {}
func (r Raw) SQL() string { return r.Text }
