// Package diff implements the differentiation engine: spec.md section
// 4.4 (per-operator delta rules), section 4.5 (recursive-CTE
// incrementaliser), and section 4.6 (SQL emission utilities).
package diff

import (
	"fmt"
	"strings"

	"github.com/k0kubun/pgdvm/cdc"
	"github.com/k0kubun/pgdvm/ir"
)

// cteEntry is one accumulated CTE definition, in emission order.
type cteEntry struct {
	name       string
	bodySQL    string
	isRecursive bool
}

// Result is spec's DiffResult: the value every per-operator differentiation
// function returns.
type Result struct {
	// CTEName is the CTE in the emitted WITH-clause holding this
	// operator's delta.
	CTEName string
	// Columns are the output column names, in order, not counting the
	// leading __pgs_row_id/__pgs_action pair.
	Columns []string
	// IsDeduplicated reports whether the delta's row set is already
	// unique on (__pgs_row_id, __pgs_action).
	IsDeduplicated bool
}

// Context is spec's DiffContext: mutable state scoped to exactly one
// differentiation of one defining query. It is exclusively owned by its
// invocation — never shared across concurrent differentiations (spec.md
// section 5).
type Context struct {
	registry *ir.CteRegistry

	ctes       []cteEntry
	nameCounts map[string]int

	frontier           *cdc.Frontier
	buffer             cdc.Buffer
	changeBufferSchema string

	// STQualifiedName and STUserColumns drive strategy selection for
	// recursive CTEs (column-mismatch check) and the row-id matching the
	// recomputation path performs against stored state.
	STQualifiedName string
	STUserColumns   []string

	// DefiningQuery is the optional original query text; when it and
	// STUserColumns are both set, the recursive-CTE recomputation path
	// uses it directly (with STUserColumns as its output columns) instead
	// of reconstructing SQL from the OpTree.
	DefiningQuery string

	cteDeltaCache map[int]Result
}

// NewContext constructs a Context for one differentiation.
func NewContext(registry *ir.CteRegistry, frontier *cdc.Frontier, buffer cdc.Buffer, changeBufferSchema string) *Context {
	return &Context{
		registry:           registry,
		nameCounts:         map[string]int{},
		frontier:           frontier,
		buffer:             buffer,
		changeBufferSchema: changeBufferSchema,
		cteDeltaCache:      map[int]Result{},
	}
}

// NextCTEName mints a unique CTE name from hint, using a monotone counter
// keyed by the hint so repeated calls with the same hint
// ("dred_dcasc_tree") produce dred_dcasc_tree, dred_dcasc_tree_2, ...
func (c *Context) NextCTEName(hint string) string {
	n := c.nameCounts[hint]
	c.nameCounts[hint] = n + 1
	if n == 0 {
		return hint
	}
	return fmt.Sprintf("%s_%d", hint, n+1)
}

// AddCTE appends a CTE definition to the accumulator. Order of addition
// is emission order; later CTEs may reference earlier ones, never the
// reverse (spec.md section 4.6 / section 5).
func (c *Context) AddCTE(name, bodySQL string, isRecursive bool) {
	c.ctes = append(c.ctes, cteEntry{name: name, bodySQL: bodySQL, isRecursive: isRecursive})
}

// GetCTEDelta retrieves a previously cached per-CTE-id delta (Tier-2
// memoisation, spec.md section 4.4 "CteScan").
func (c *Context) GetCTEDelta(cteID int) (Result, bool) {
	r, ok := c.cteDeltaCache[cteID]
	return r, ok
}

// SetCTEDelta caches a per-CTE-id delta. Reusing a cached entry copies
// the Result value (it is a plain struct, never aliased).
func (c *Context) SetCTEDelta(cteID int, r Result) {
	c.cteDeltaCache[cteID] = r
}

// Registry returns the read-only CTE-body registry shared across this
// differentiation.
func (c *Context) Registry() *ir.CteRegistry { return c.registry }

// Frontier returns the LSN frontier threaded through this differentiation.
func (c *Context) Frontier() *cdc.Frontier { return c.frontier }

// Buffer returns the change-buffer reader.
func (c *Context) Buffer() cdc.Buffer { return c.buffer }

// ChangeBufferSchema returns the schema changes_<oid> tables live in.
func (c *Context) ChangeBufferSchema() string { return c.changeBufferSchema }

// BuildWithQuery drains the CTE accumulator into the final emitted SQL
// string: "WITH [RECURSIVE] cte1 AS (...), cte2 AS (...) SELECT
// __pgs_row_id, __pgs_action, <cols> FROM <finalCTE>" (spec.md section
// 4.6 / section 6 "Output to scheduler"). Accumulator order is preserved.
func (c *Context) BuildWithQuery(final Result) string {
	recursive := false
	for _, e := range c.ctes {
		if e.isRecursive {
			recursive = true
			break
		}
	}

	var b strings.Builder
	b.WriteString("WITH ")
	if recursive {
		b.WriteString("RECURSIVE ")
	}
	for i, e := range c.ctes {
		if i > 0 {
			b.WriteString(",\n")
		}
		fmt.Fprintf(&b, "%s AS (\n%s\n)", ir.QuoteIdent(e.name), e.bodySQL)
	}
	b.WriteString("\nSELECT __pgs_row_id, __pgs_action")
	for _, col := range final.Columns {
		b.WriteString(", ")
		b.WriteString(ir.QuoteIdent(col))
	}
	fmt.Fprintf(&b, "\nFROM %s", ir.QuoteIdent(final.CTEName))
	return b.String()
}
