// Package ir defines the operator-tree intermediate representation that
// sits between the SQL parser and the differentiation engine.
//
// OpTree is a closed algebraic sum type, modelled the way the teacher
// repository models its DDL AST (schema/ast.go): a single narrow
// interface (Op) implemented by exactly the fixed set of variants the
// specification names, each exposing Kind() for exhaustive switches.
// Deliberately not an open interface with arbitrary implementations —
// the closedness is the point (spec.md section 9): every differentiation
// site switches on all 21 variants. Go does not check type switches for
// exhaustiveness, so a new variant compiles without a case; the engine's
// default branch reports it at run time and diff's
// TestDifferentiateHandlesEveryKind lists every Kind.
package ir

// Kind discriminates Op variants for exhaustive type switches.
type Kind int

const (
	KindScan Kind = iota
	KindProject
	KindFilter
	KindInnerJoin
	KindLeftJoin
	KindFullJoin
	KindAggregate
	KindDistinct
	KindUnionAll
	KindIntersect
	KindExcept
	KindSubquery
	KindCteScan
	KindRecursiveCte
	KindRecursiveSelfRef
	KindWindow
	KindLateralFunction
	KindLateralSubquery
	KindSemiJoin
	KindAntiJoin
	KindScalarSubquery
)

// Op is implemented by every OpTree variant.
type Op interface {
	Kind() Kind
	// Children returns the direct child operators in a fixed, documented
	// order (used by generic walks: source-OID collection, volatility
	// propagation, the feasibility checker).
	Children() []Op
}

// ---- leaf producers --------------------------------------------------

// Scan produces the rows of a base table, restricted to the change
// buffer's (prev_lsn, current_lsn] interval when differentiated.
type Scan struct {
	OID          uint32
	Schema       string
	Relation     string
	Alias        string // FROM-alias; equals Relation if unaliased
	Columns      []Column
	PrimaryKey   []string // empty if no PK
	RowIDStrategy RowIDStrategy
}

func (Scan) Kind() Kind        { return KindScan }
func (Scan) Children() []Op    { return nil }

// ---- single-child operators -------------------------------------------

// Project re-maps child rows through an expression list.
type Project struct {
	Exprs   []Expr
	Aliases []string
	Child   Op
}

func (Project) Kind() Kind     { return KindProject }
func (p Project) Children() []Op { return []Op{p.Child} }

// Filter keeps child rows satisfying Predicate.
type Filter struct {
	Predicate Expr
	Child     Op
}

func (Filter) Kind() Kind        { return KindFilter }
func (f Filter) Children() []Op  { return []Op{f.Child} }

// Distinct deduplicates child rows, maintained via a __pgs_count Z-set
// auxiliary column in the stream table.
type Distinct struct {
	Child Op
}

func (Distinct) Kind() Kind       { return KindDistinct }
func (d Distinct) Children() []Op { return []Op{d.Child} }

// Subquery exposes Child's rows under Alias, with an optional
// column-alias list (`FROM (SELECT ...) AS alias(c1, c2)`).
type Subquery struct {
	Alias         string
	ColumnAliases []string // nil if none given
	Child         Op
}

func (Subquery) Kind() Kind       { return KindSubquery }
func (s Subquery) Children() []Op { return []Op{s.Child} }

// Window extends child rows with window-function outputs. All window
// expressions in one Window node share PartitionBy (the multi-PARTITION-BY
// rewriter splits queries that don't, see rewrite package).
type Window struct {
	Exprs       []Expr
	Aliases     []string
	PartitionBy []Expr
	Passthrough []string // child columns carried through unchanged
	Child       Op
}

func (Window) Kind() Kind       { return KindWindow }
func (w Window) Children() []Op { return []Op{w.Child} }

// LateralFunction expands Child rows by a set-returning function call.
// RawCall is an escape hatch (spec.md section 9): the engine treats it as
// an opaque row-scoped function, re-invoked per changed outer row.
type LateralFunction struct {
	RawCall        string
	Alias          string
	ColumnAliases  []string
	WithOrdinality bool
	Child          Op
}

func (LateralFunction) Kind() Kind       { return KindLateralFunction }
func (l LateralFunction) Children() []Op { return []Op{l.Child} }

// LateralSubquery expands Child rows by a correlated subquery, another
// escape hatch for the same reason as LateralFunction.
type LateralSubquery struct {
	RawSubquery   string
	Alias         string
	ColumnAliases []string
	Columns       []Column
	InnerSourceOIDs []uint32
	IsLeft        bool // LEFT JOIN LATERAL vs CROSS JOIN LATERAL
	Child         Op
}

func (LateralSubquery) Kind() Kind       { return KindLateralSubquery }
func (l LateralSubquery) Children() []Op { return []Op{l.Child} }

// ScalarSubquery extends Child rows with one scalar computed by Inner.
type ScalarSubquery struct {
	Inner         Op
	OutputAlias   string
	InnerSourceOIDs []uint32
	Child         Op
}

func (ScalarSubquery) Kind() Kind { return KindScalarSubquery }
func (s ScalarSubquery) Children() []Op {
	if s.Child == nil {
		return []Op{s.Inner}
	}
	return []Op{s.Child, s.Inner}
}

// ---- aggregate ----------------------------------------------------------

// AggDescriptor is one aggregate function application in an Aggregate's
// target list.
type AggDescriptor struct {
	Func     AggFunc
	Arg      Expr // nil for CountStar
	Distinct bool
	Alias    string
	OrderBy  []Expr // for ordered-set aggregates (percentile_cont, mode, ...)
}

// Aggregate groups Child rows by GroupBy and computes Aggs per group.
type Aggregate struct {
	GroupBy []Expr
	Aggs    []AggDescriptor
	Child   Op
}

func (Aggregate) Kind() Kind       { return KindAggregate }
func (a Aggregate) Children() []Op { return []Op{a.Child} }

// ---- joins ---------------------------------------------------------------

// InnerJoin, LeftJoin, FullJoin carry identical fields; kept as distinct
// Go types (rather than one struct with a JoinKind field) so each has its
// own case in the differentiation engine's type switch, matching the
// teacher's one-struct-per-DDL-action style in schema/ast.go.
type InnerJoin struct {
	Predicate   Expr
	Left, Right Op
}

func (InnerJoin) Kind() Kind       { return KindInnerJoin }
func (j InnerJoin) Children() []Op { return []Op{j.Left, j.Right} }

type LeftJoin struct {
	Predicate   Expr
	Left, Right Op
}

func (LeftJoin) Kind() Kind       { return KindLeftJoin }
func (j LeftJoin) Children() []Op { return []Op{j.Left, j.Right} }

type FullJoin struct {
	Predicate   Expr
	Left, Right Op
}

func (FullJoin) Kind() Kind       { return KindFullJoin }
func (j FullJoin) Children() []Op { return []Op{j.Left, j.Right} }

// SemiJoin keeps Left rows that have a matching Right row under
// Correlation, without duplicating Left rows on multiple matches.
type SemiJoin struct {
	Correlation Expr
	Left, Right Op
}

func (SemiJoin) Kind() Kind       { return KindSemiJoin }
func (j SemiJoin) Children() []Op { return []Op{j.Left, j.Right} }

// AntiJoin keeps Left rows that have no matching Right row.
type AntiJoin struct {
	Correlation Expr
	Left, Right Op
}

func (AntiJoin) Kind() Kind       { return KindAntiJoin }
func (j AntiJoin) Children() []Op { return []Op{j.Left, j.Right} }

// ---- set operations --------------------------------------------------

// UnionAll concatenates all children (bag union); plain UNION is modelled
// as Distinct{UnionAll{...}} per spec.md section 4.2.
type UnionAll struct {
	Children_ []Op
}

func (UnionAll) Kind() Kind       { return KindUnionAll }
func (u UnionAll) Children() []Op { return u.Children_ }

// Intersect / Except are always binary; All selects the bag (ALL) variant.
type Intersect struct {
	Left, Right Op
	All         bool
}

func (Intersect) Kind() Kind       { return KindIntersect }
func (i Intersect) Children() []Op { return []Op{i.Left, i.Right} }

type Except struct {
	Left, Right Op
	All         bool
}

func (Except) Kind() Kind       { return KindExcept }
func (e Except) Children() []Op { return []Op{e.Left, e.Right} }

// ---- CTEs ---------------------------------------------------------------

// CteScan references a shared CTE body by index (CteID) into the
// CteRegistry. Multiple CteScan nodes with the same CteID are the sole
// mechanism by which a CTE referenced N times is differentiated once
// (spec.md section 4.4, Tier-2 memoisation).
type CteScan struct {
	CteID         int
	CteName       string
	Alias         string
	Columns       []string // body output columns, pre-alias
	CteDefAliases []string // column aliases from the CTE definition
	ColumnAliases []string // column aliases from this FROM reference
}

func (CteScan) Kind() Kind    { return KindCteScan }
func (CteScan) Children() []Op { return nil }

// RecursiveCte is base UNION [ALL] recursive(self), where Recursive's
// RecursiveSelfRef leaves name Alias.
type RecursiveCte struct {
	Alias     string
	Columns   []string
	Base      Op
	Recursive Op
	UnionAll  bool
}

func (RecursiveCte) Kind() Kind       { return KindRecursiveCte }
func (r RecursiveCte) Children() []Op { return []Op{r.Base, r.Recursive} }

// RecursiveSelfRef is a leaf placeholder inside a RecursiveCte's Recursive
// subtree, standing for the CTE's own (not-yet-computed) output. It must
// only appear inside the Recursive field of its enclosing RecursiveCte
// (spec.md section 3 invariant). The feasibility checker accepts it
// anywhere; diff.Differentiate returns an internal error when it reaches
// one directly.
type RecursiveSelfRef struct {
	CteName string
	Alias   string
	Columns []string
}

func (RecursiveSelfRef) Kind() Kind     { return KindRecursiveSelfRef }
func (RecursiveSelfRef) Children() []Op { return nil }

// SourceOIDs collects the set of base-table OIDs reachable from op,
// used to determine which change buffers a differentiation touches
// (e.g. the recursive-CTE DRed-vs-semi-naive detection rule).
func SourceOIDs(op Op) []uint32 {
	seen := map[uint32]bool{}
	var out []uint32
	var walk func(Op)
	walk = func(o Op) {
		if o == nil {
			return
		}
		if s, ok := o.(Scan); ok {
			if !seen[s.OID] {
				seen[s.OID] = true
				out = append(out, s.OID)
			}
			return
		}
		for _, c := range o.Children() {
			walk(c)
		}
	}
	walk(op)
	return out
}
