package diff

import (
	"fmt"
	"strings"

	"github.com/k0kubun/pgdvm/ir"
	"github.com/k0kubun/pgdvm/pgserr"
)

// diffRecursiveCte is the Tier 3c/3d/3e entry point (ported from
// original_source/src/dvm/operators/recursive_cte.rs): it selects among
// three strategies based on the query shape and the kind of changes
// present in the frontier.
//
//  1. Recomputation, when the RecursiveCte's column list doesn't match
//     the stored stream table's user columns (the outer SELECT projects
//     a subset) — the incremental paths require every CTE column to be
//     present in storage.
//  2. Delete-and-Rederive (DRed), for mixed INSERT/DELETE/UPDATE changes.
//  3. Semi-naive propagation, for INSERT-only changes.
//
// Non-linear recursion (more than one self-reference in Recursive) is
// rejected up front, matching PostgreSQL's own restriction.
func diffRecursiveCte(c *Context, r ir.RecursiveCte) (Result, error) {
	selfRefCount := countSelfRefs(r.Recursive)
	if selfRefCount > 1 {
		aliases := collectSelfRefAliases(r.Recursive)
		return Result{}, pgserr.Unsupported("RecursiveCte",
			"recursive CTE %q has %d self-references (%s); PostgreSQL restricts the recursive term to reference the CTE at most once",
			r.Alias, selfRefCount, strings.Join(aliases, ", "))
	}

	columnsMatch := len(c.STUserColumns) > 0 && stringsEqual(c.STUserColumns, r.Columns)
	if !columnsMatch {
		return generateRecomputationDelta(c, r)
	}

	baseDelta, err := Differentiate(c, r.Base)
	if err != nil {
		return Result{}, err
	}

	sourceOIDs := ir.SourceOIDs(r.Base)
	hasDeletes, err := checkForDeleteChanges(c, sourceOIDs)
	if err != nil {
		return Result{}, err
	}

	if hasDeletes {
		return generateDredDelta(c, r, baseDelta)
	}
	return generateSemiNaiveDelta(c, r, baseDelta)
}

func stringsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
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
		for _, ch := range o.Children() {
			walk(ch)
		}
	}
	walk(op)
	return n
}

func collectSelfRefAliases(op ir.Op) []string {
	var out []string
	var walk func(ir.Op)
	walk = func(o ir.Op) {
		if o == nil {
			return
		}
		if s, ok := o.(ir.RecursiveSelfRef); ok {
			out = append(out, s.Alias)
			return
		}
		for _, ch := range o.Children() {
			walk(ch)
		}
	}
	walk(op)
	return out
}

// checkForDeleteChanges reports whether any base source table touched by
// the recursive CTE's base case has a 'D' or 'U' change within the
// current frontier — the signal that forces DRed over semi-naive.
func checkForDeleteChanges(c *Context, sourceOIDs []uint32) (bool, error) {
	for _, oid := range sourceOIDs {
		prevLSN := c.Frontier().PrevLSN(oid)
		curLSN, err := c.Frontier().CurrentLSN(oid)
		if err != nil {
			return false, err
		}
		has, err := c.Buffer().HasDeleteOrUpdate(oid, prevLSN, curLSN)
		if err != nil {
			return false, err
		}
		if has {
			return true, nil
		}
	}
	return false, nil
}

// generateRecomputationDelta re-executes the defining query (or the
// reconstructed OpTree) and diffs it against the stream table by row-id.
func generateRecomputationDelta(c *Context, r ir.RecursiveCte) (Result, error) {
	stTable := streamTableRef(c)

	var recompInner string
	outCols := r.Columns
	if c.DefiningQuery != "" && len(c.STUserColumns) > 0 {
		recompInner = c.DefiningQuery
		outCols = c.STUserColumns
	} else {
		baseSQL, err := generateQuerySQL(r.Base, "")
		if err != nil {
			return Result{}, err
		}
		recSQL, err := generateQuerySQL(r.Recursive, r.Alias)
		if err != nil {
			return Result{}, err
		}
		recompInner = fmt.Sprintf(
			"WITH RECURSIVE %s AS (\n%s\nUNION ALL\n%s\n)\nSELECT %s FROM %s",
			ir.QuoteIdent(r.Alias), baseSQL, recSQL, ir.ColList(r.Columns), ir.QuoteIdent(r.Alias),
		)
	}

	recompName := c.NextCTEName("rc_recomp_" + r.Alias)
	recompSQL := fmt.Sprintf(
		"SELECT pgstream.pg_stream_hash(row_to_json(sub)::text || '/' || row_number() OVER ()::text) AS __pgs_row_id, sub.*\nFROM (%s) sub",
		recompInner,
	)
	c.AddCTE(recompName, recompSQL, false)

	insName := c.NextCTEName("rc_ins_" + r.Alias)
	insSQL := fmt.Sprintf(
		"SELECT n.__pgs_row_id, 'I'::text AS __pgs_action, %s\nFROM %s n\nLEFT JOIN %s s ON s.__pgs_row_id = n.__pgs_row_id\nWHERE s.__pgs_row_id IS NULL",
		selectList("n", outCols), ir.QuoteIdent(recompName), stTable,
	)
	c.AddCTE(insName, insSQL, false)

	delName := c.NextCTEName("rc_del_" + r.Alias)
	delSQL := fmt.Sprintf(
		"SELECT s.__pgs_row_id, 'D'::text AS __pgs_action, %s\nFROM %s s\nLEFT JOIN %s n ON n.__pgs_row_id = s.__pgs_row_id\nWHERE n.__pgs_row_id IS NULL",
		selectList("s", outCols), stTable, ir.QuoteIdent(recompName),
	)
	c.AddCTE(delName, delSQL, false)

	finalName := c.NextCTEName("rc_delta_" + r.Alias)
	finalSQL := fmt.Sprintf("SELECT * FROM %s\nUNION ALL\nSELECT * FROM %s", ir.QuoteIdent(insName), ir.QuoteIdent(delName))
	c.AddCTE(finalName, finalSQL, false)

	return Result{CTEName: finalName, Columns: outCols, IsDeduplicated: false}, nil
}

// generateSemiNaiveDelta implements strategy 3 of diffRecursiveCte
// (spec.md section 4.5): seed from the base delta's inserted rows and
// from new base rows joining existing stream-table storage, then
// propagate through the recursive term until fixpoint via a recursive
// CTE in the top-level WITH RECURSIVE clause.
func generateSemiNaiveDelta(c *Context, r ir.RecursiveCte, baseDelta Result) (Result, error) {
	stTable := streamTableRef(c)
	colListStr := ir.ColList(r.Columns)

	deltaCTE := c.NextCTEName("rc_snv_" + r.Alias)

	seedFromBase := fmt.Sprintf("SELECT %s FROM %s WHERE __pgs_action = 'I'", colListStr, ir.QuoteIdent(baseDelta.CTEName))

	seedFromExisting, err := generateSeedFromExisting(r.Recursive, stTable)
	if err != nil {
		return Result{}, err
	}

	propagation, err := generateQuerySQL(r.Recursive, deltaCTE)
	if err != nil {
		return Result{}, err
	}

	parts := []string{seedFromBase}
	if seedFromExisting != "" {
		parts = append(parts, seedFromExisting)
	}
	parts = append(parts, propagation)
	recursiveSQL := strings.Join(parts, "\nUNION ALL\n")

	c.AddCTE(deltaCTE, recursiveSQL, true)

	finalCTE := c.NextCTEName("rc_final_" + r.Alias)
	finalSQL := fmt.Sprintf(
		"SELECT pgstream.pg_stream_hash(row_to_json(sub)::text || '/' || row_number() OVER ()::text) AS __pgs_row_id,\n"+
			"       'I'::text AS __pgs_action,\n       %s\nFROM %s sub",
		colListStr, ir.QuoteIdent(deltaCTE),
	)
	c.AddCTE(finalCTE, finalSQL, false)

	return Result{CTEName: finalCTE, Columns: r.Columns, IsDeduplicated: false}, nil
}

// generateDredDelta implements strategy 2 (spec.md section 4.5, the
// four DRed phases): insert propagation via semi-naive, over-deletion
// cascade seeded from base deletes and propagated against stream-table
// storage, rederivation from current base tables, and the final
// over-deleted-minus-rederived combine.
func generateDredDelta(c *Context, r ir.RecursiveCte, baseDelta Result) (Result, error) {
	stTable := streamTableRef(c)
	colListStr := ir.ColList(r.Columns)

	// Phase 1: insert propagation (same shape as semi-naive).
	insDelta, err := generateSemiNaiveInsOnly(c, r, baseDelta)
	if err != nil {
		return Result{}, err
	}

	// Phase 2: over-deletion cascade.
	delSeedCTE := c.NextCTEName("dred_dseed_" + r.Alias)
	delSeedSQL := fmt.Sprintf("SELECT %s FROM %s WHERE __pgs_action = 'D'", colListStr, ir.QuoteIdent(baseDelta.CTEName))
	c.AddCTE(delSeedCTE, delSeedSQL, false)

	delCascadeCTE := c.NextCTEName("dred_dcasc_" + r.Alias)
	cascadePropagation, err := generateCascadeQuerySQL(r.Recursive, delCascadeCTE, stTable)
	if err != nil {
		return Result{}, err
	}
	delCascadeSQL := fmt.Sprintf("SELECT %s FROM %s\nUNION ALL\n%s", colListStr, ir.QuoteIdent(delSeedCTE), cascadePropagation)
	c.AddCTE(delCascadeCTE, delCascadeSQL, true)

	// Phase 3: rederivation from current base tables.
	baseSQL, err := generateQuerySQL(r.Base, "")
	if err != nil {
		return Result{}, err
	}
	recSQL, err := generateQuerySQL(r.Recursive, r.Alias)
	if err != nil {
		return Result{}, err
	}
	unionKw := "UNION"
	if r.UnionAll {
		unionKw = "UNION ALL"
	}
	rederiveFullCTE := c.NextCTEName("dred_rfull_" + r.Alias)
	rederiveFullSQL := fmt.Sprintf(
		"WITH RECURSIVE %s AS (\n%s\n%s\n%s\n)\nSELECT %s FROM %s",
		ir.QuoteIdent(r.Alias), baseSQL, unionKw, recSQL, colListStr, ir.QuoteIdent(r.Alias),
	)
	c.AddCTE(rederiveFullCTE, rederiveFullSQL, false)

	rederivedCTE := c.NextCTEName("dred_rdrv_" + r.Alias)
	rederivedSQL := fmt.Sprintf(
		"SELECT %s FROM %s\nINTERSECT\nSELECT %s FROM %s",
		colListStr, ir.QuoteIdent(delCascadeCTE), colListStr, ir.QuoteIdent(rederiveFullCTE),
	)
	c.AddCTE(rederivedCTE, rederivedSQL, false)

	// Phase 4: combine.
	netDelCTE := c.NextCTEName("dred_ndel_" + r.Alias)
	netDelSQL := fmt.Sprintf(
		"SELECT %s FROM %s\nEXCEPT\nSELECT %s FROM %s",
		colListStr, ir.QuoteIdent(delCascadeCTE), colListStr, ir.QuoteIdent(rederivedCTE),
	)
	c.AddCTE(netDelCTE, netDelSQL, false)

	delMatchCols := make([]string, len(r.Columns))
	for i, col := range r.Columns {
		delMatchCols[i] = fmt.Sprintf("d.%s = s.%s", ir.QuoteIdent(col), ir.QuoteIdent(col))
	}
	delFinalCTE := c.NextCTEName("dred_dfin_" + r.Alias)
	delFinalSQL := fmt.Sprintf(
		"SELECT s.__pgs_row_id, 'D'::text AS __pgs_action, %s\nFROM %s d\nJOIN %s s ON %s",
		selectList("s", r.Columns), ir.QuoteIdent(netDelCTE), stTable, strings.Join(delMatchCols, " AND "),
	)
	c.AddCTE(delFinalCTE, delFinalSQL, false)

	combinedCTE := c.NextCTEName("dred_comb_" + r.Alias)
	combinedSQL := fmt.Sprintf("SELECT * FROM %s\nUNION ALL\nSELECT * FROM %s", ir.QuoteIdent(insDelta.CTEName), ir.QuoteIdent(delFinalCTE))
	c.AddCTE(combinedCTE, combinedSQL, false)

	return Result{CTEName: combinedCTE, Columns: r.Columns, IsDeduplicated: false}, nil
}

// generateSemiNaiveInsOnly is the DRed algorithm's phase-1 sub-result:
// structurally identical to generateSemiNaiveDelta but named distinctly
// so it composes inside the larger DRed CTE chain.
func generateSemiNaiveInsOnly(c *Context, r ir.RecursiveCte, baseDelta Result) (Result, error) {
	colListStr := ir.ColList(r.Columns)
	stTable := streamTableRef(c)

	deltaCTE := c.NextCTEName("dred_ins_" + r.Alias)
	seedFromBase := fmt.Sprintf("SELECT %s FROM %s WHERE __pgs_action = 'I'", colListStr, ir.QuoteIdent(baseDelta.CTEName))

	seedFromExisting, err := generateSeedFromExisting(r.Recursive, stTable)
	if err != nil {
		return Result{}, err
	}
	propagation, err := generateQuerySQL(r.Recursive, deltaCTE)
	if err != nil {
		return Result{}, err
	}

	parts := []string{seedFromBase}
	if seedFromExisting != "" {
		parts = append(parts, seedFromExisting)
	}
	parts = append(parts, propagation)
	c.AddCTE(deltaCTE, strings.Join(parts, "\nUNION ALL\n"), true)

	insFinalCTE := c.NextCTEName("dred_ifin_" + r.Alias)
	insFinalSQL := fmt.Sprintf(
		"SELECT pgstream.pg_stream_hash(row_to_json(sub)::text || '/' || row_number() OVER ()::text) AS __pgs_row_id,\n"+
			"       'I'::text AS __pgs_action,\n       %s\nFROM %s sub",
		colListStr, ir.QuoteIdent(deltaCTE),
	)
	c.AddCTE(insFinalCTE, insFinalSQL, false)

	return Result{CTEName: insFinalCTE, Columns: r.Columns, IsDeduplicated: false}, nil
}

// generateSeedFromExisting renders the recursive term with its
// self-reference replaced by the stream table (existing derived rows)
// — covers new base rows that directly join an already-stored parent.
func generateSeedFromExisting(recursive ir.Op, stTable string) (string, error) {
	return generateQuerySQL(recursive, stTable)
}

// generateQuerySQL is a simplified SQL generator for the subset of
// OpTree shapes a recursive term can take (Scan, Filter, Project, Join,
// Subquery, RecursiveSelfRef) — ported from
// original_source/src/dvm/operators/recursive_cte.rs generate_query_sql.
// selfRefReplacement names the table/CTE RecursiveSelfRef resolves to;
// empty means a RecursiveSelfRef here is an error.
func generateQuerySQL(op ir.Op, selfRefReplacement string) (string, error) {
	switch o := op.(type) {
	case ir.Scan:
		cols := ir.Names(o.Columns)
		exprs := make([]string, len(cols))
		for i, col := range cols {
			exprs[i] = fmt.Sprintf("%s.%s", ir.QuoteIdent(o.Alias), ir.QuoteIdent(col))
		}
		return fmt.Sprintf("SELECT %s\nFROM %s.%s AS %s", strings.Join(exprs, ", "),
			ir.QuoteIdent(o.Schema), ir.QuoteIdent(o.Relation), ir.QuoteIdent(o.Alias)), nil

	case ir.RecursiveSelfRef:
		if selfRefReplacement == "" {
			return "", pgserr.Internal("RecursiveSelfRef %q encountered without a replacement target", o.Alias)
		}
		exprs := make([]string, len(o.Columns))
		for i, col := range o.Columns {
			exprs[i] = fmt.Sprintf("%s.%s", ir.QuoteIdent(o.Alias), ir.QuoteIdent(col))
		}
		return fmt.Sprintf("SELECT %s\nFROM %s AS %s", strings.Join(exprs, ", "), ir.QuoteIdent(selfRefReplacement), ir.QuoteIdent(o.Alias)), nil

	case ir.Filter:
		childSQL, err := generateQuerySQL(o.Child, selfRefReplacement)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("SELECT * FROM (\n%s\n) __f\nWHERE %s", childSQL, o.Predicate.SQL()), nil

	case ir.Project:
		projExprs := make([]string, len(o.Exprs))
		for i, e := range o.Exprs {
			esql := e.SQL()
			if esql == o.Aliases[i] {
				projExprs[i] = ir.QuoteIdent(o.Aliases[i])
			} else {
				projExprs[i] = fmt.Sprintf("%s AS %s", esql, ir.QuoteIdent(o.Aliases[i]))
			}
		}
		switch child := o.Child.(type) {
		case ir.InnerJoin:
			leftSQL, err := generateFromSQL(child.Left, selfRefReplacement)
			if err != nil {
				return "", err
			}
			rightSQL, err := generateFromSQL(child.Right, selfRefReplacement)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("SELECT %s\nFROM %s\nJOIN %s\n  ON %s", strings.Join(projExprs, ", "), leftSQL, rightSQL, child.Predicate.SQL()), nil
		case ir.LeftJoin:
			leftSQL, err := generateFromSQL(child.Left, selfRefReplacement)
			if err != nil {
				return "", err
			}
			rightSQL, err := generateFromSQL(child.Right, selfRefReplacement)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("SELECT %s\nFROM %s\nLEFT JOIN %s\n  ON %s", strings.Join(projExprs, ", "), leftSQL, rightSQL, child.Predicate.SQL()), nil
		default:
			childSQL, err := generateQuerySQL(o.Child, selfRefReplacement)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("SELECT %s\nFROM (\n%s\n) __p", strings.Join(projExprs, ", "), childSQL), nil
		}

	case ir.InnerJoin:
		leftSQL, err := generateFromSQL(o.Left, selfRefReplacement)
		if err != nil {
			return "", err
		}
		rightSQL, err := generateFromSQL(o.Right, selfRefReplacement)
		if err != nil {
			return "", err
		}
		var cols []string
		collectSelectCols(o.Left, &cols)
		collectSelectCols(o.Right, &cols)
		return fmt.Sprintf("SELECT %s\nFROM %s\nJOIN %s\n  ON %s", strings.Join(cols, ", "), leftSQL, rightSQL, o.Predicate.SQL()), nil

	case ir.LeftJoin:
		leftSQL, err := generateFromSQL(o.Left, selfRefReplacement)
		if err != nil {
			return "", err
		}
		rightSQL, err := generateFromSQL(o.Right, selfRefReplacement)
		if err != nil {
			return "", err
		}
		var cols []string
		collectSelectCols(o.Left, &cols)
		collectSelectCols(o.Right, &cols)
		return fmt.Sprintf("SELECT %s\nFROM %s\nLEFT JOIN %s\n  ON %s", strings.Join(cols, ", "), leftSQL, rightSQL, o.Predicate.SQL()), nil

	case ir.Subquery:
		childSQL, err := generateQuerySQL(o.Child, selfRefReplacement)
		if err != nil {
			return "", err
		}
		cols := outputColumnsOfRecursive(o.Child)
		exprs := make([]string, len(cols))
		for i, col := range cols {
			exprs[i] = fmt.Sprintf("%s.%s", ir.QuoteIdent(o.Alias), ir.QuoteIdent(col))
		}
		return fmt.Sprintf("SELECT %s\nFROM (\n%s\n) AS %s", strings.Join(exprs, ", "), childSQL, ir.QuoteIdent(o.Alias)), nil

	default:
		return "", pgserr.Internal("generate_query_sql: unsupported OpTree variant %v in recursive term", op.Kind())
	}
}

// generateFromSQL renders a FROM-clause table reference (rather than a
// full SELECT) for join children.
func generateFromSQL(op ir.Op, selfRefReplacement string) (string, error) {
	switch o := op.(type) {
	case ir.Scan:
		return fmt.Sprintf("%s.%s AS %s", ir.QuoteIdent(o.Schema), ir.QuoteIdent(o.Relation), ir.QuoteIdent(o.Alias)), nil
	case ir.RecursiveSelfRef:
		if selfRefReplacement == "" {
			return "", pgserr.Internal("RecursiveSelfRef %q encountered without a replacement target", o.Alias)
		}
		return fmt.Sprintf("%s AS %s", ir.QuoteIdent(selfRefReplacement), ir.QuoteIdent(o.Alias)), nil
	case ir.Subquery:
		childSQL, err := generateQuerySQL(o.Child, selfRefReplacement)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(\n%s\n) AS %s", childSQL, ir.QuoteIdent(o.Alias)), nil
	default:
		sql, err := generateQuerySQL(op, selfRefReplacement)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(\n%s\n) AS __sub", sql), nil
	}
}

func collectSelectCols(op ir.Op, out *[]string) {
	alias := "__sub"
	switch o := op.(type) {
	case ir.Scan:
		alias = o.Alias
	case ir.RecursiveSelfRef:
		alias = o.Alias
	case ir.Subquery:
		alias = o.Alias
	}
	for _, col := range outputColumnsOfRecursive(op) {
		*out = append(*out, fmt.Sprintf("%s.%s", ir.QuoteIdent(alias), ir.QuoteIdent(col)))
	}
}

func outputColumnsOfRecursive(op ir.Op) []string {
	switch o := op.(type) {
	case ir.Scan:
		return ir.Names(o.Columns)
	case ir.RecursiveSelfRef:
		return o.Columns
	case ir.Project:
		return o.Aliases
	case ir.Subquery:
		return outputColumnsOfRecursive(o.Child)
	default:
		return nil
	}
}

// generateCascadeQuerySQL renders the over-deletion cascade's recursive
// term: base table scans resolve to the stream table (existing derived
// rows), self-references resolve to the cascade CTE.
func generateCascadeQuerySQL(op ir.Op, cascadeCTE, stTable string) (string, error) {
	switch o := op.(type) {
	case ir.InnerJoin:
		leftFrom, err := generateCascadeFrom(o.Left, cascadeCTE, stTable)
		if err != nil {
			return "", err
		}
		rightFrom, err := generateCascadeFrom(o.Right, cascadeCTE, stTable)
		if err != nil {
			return "", err
		}
		var cols []string
		collectCascadeCols(o.Left, &cols)
		collectCascadeCols(o.Right, &cols)
		return fmt.Sprintf("SELECT %s\nFROM %s\nJOIN %s\n  ON %s", strings.Join(cols, ", "), leftFrom, rightFrom, o.Predicate.SQL()), nil

	case ir.LeftJoin:
		leftFrom, err := generateCascadeFrom(o.Left, cascadeCTE, stTable)
		if err != nil {
			return "", err
		}
		rightFrom, err := generateCascadeFrom(o.Right, cascadeCTE, stTable)
		if err != nil {
			return "", err
		}
		var cols []string
		collectCascadeCols(o.Left, &cols)
		collectCascadeCols(o.Right, &cols)
		return fmt.Sprintf("SELECT %s\nFROM %s\nLEFT JOIN %s\n  ON %s", strings.Join(cols, ", "), leftFrom, rightFrom, o.Predicate.SQL()), nil

	case ir.Project:
		childSQL, err := generateCascadeQuerySQL(o.Child, cascadeCTE, stTable)
		if err != nil {
			return "", err
		}
		projExprs := make([]string, len(o.Exprs))
		for i, e := range o.Exprs {
			esql := e.SQL()
			if esql == o.Aliases[i] {
				projExprs[i] = ir.QuoteIdent(o.Aliases[i])
			} else {
				projExprs[i] = fmt.Sprintf("%s AS %s", esql, ir.QuoteIdent(o.Aliases[i]))
			}
		}
		return fmt.Sprintf("SELECT %s\nFROM (\n%s\n) __p", strings.Join(projExprs, ", "), childSQL), nil

	case ir.Filter:
		childSQL, err := generateCascadeQuerySQL(o.Child, cascadeCTE, stTable)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("SELECT * FROM (\n%s\n) __f\nWHERE %s", childSQL, o.Predicate.SQL()), nil

	default:
		return "", pgserr.Internal("generate_query_sql_cascade: unsupported OpTree variant %v", op.Kind())
	}
}

func generateCascadeFrom(op ir.Op, cascadeCTE, stTable string) (string, error) {
	switch o := op.(type) {
	case ir.Scan:
		return fmt.Sprintf("%s AS %s", stTable, ir.QuoteIdent(o.Alias)), nil
	case ir.RecursiveSelfRef:
		return fmt.Sprintf("%s AS %s", ir.QuoteIdent(cascadeCTE), ir.QuoteIdent(o.Alias)), nil
	case ir.Subquery:
		childSQL, err := generateCascadeQuerySQL(o.Child, cascadeCTE, stTable)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(\n%s\n) AS %s", childSQL, ir.QuoteIdent(o.Alias)), nil
	default:
		sql, err := generateCascadeQuerySQL(op, cascadeCTE, stTable)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(\n%s\n) AS __sub", sql), nil
	}
}

func collectCascadeCols(op ir.Op, out *[]string) {
	alias := "__sub"
	switch o := op.(type) {
	case ir.Scan:
		alias = o.Alias
	case ir.RecursiveSelfRef:
		alias = o.Alias
	case ir.Subquery:
		alias = o.Alias
	}
	for _, col := range outputColumnsOfRecursive(op) {
		*out = append(*out, fmt.Sprintf("%s.%s", ir.QuoteIdent(alias), ir.QuoteIdent(col)))
	}
}
