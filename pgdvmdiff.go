// Package pgdvm implements Run, the logic shared by the cmd/pgdvmdiff
// CLI — mirroring the teacher's root sqldef.go, whose Run function was
// shared between the mysqldef and psqldef binaries. Here there is only
// one binary, but the split is kept: cmd/pgdvmdiff owns flag parsing and
// connection setup, Run owns the parse -> feasibility -> differentiate
// -> apply pipeline.
package pgdvm

import (
	"database/sql"
	"fmt"
	"os"

	_ "github.com/lib/pq"
	"github.com/k0kubun/pp/v3"

	"github.com/k0kubun/pgdvm/catalog"
	"github.com/k0kubun/pgdvm/cdc"
	"github.com/k0kubun/pgdvm/diff"
	"github.com/k0kubun/pgdvm/feasibility"
	"github.com/k0kubun/pgdvm/ir"
	"github.com/k0kubun/pgdvm/rewrite"
	"github.com/k0kubun/pgdvm/sqlparser"
	"github.com/k0kubun/pgdvm/streamtable"
	"github.com/k0kubun/pgdvm/util"
)

// Options configures one pgdvmdiff run.
type Options struct {
	Host           string
	Port           int
	User           string
	Password       string
	DbName         string
	CatalogSchema  string // schema holding pgs_stream_tables/pgs_dependencies
	ChangeSchema   string // schema holding changes_<oid> buffers
	Table          string // schema-qualified stream table name, e.g. "public.recent_orders"
	Apply          bool   // execute the emitted delta against the ST; default is dry-run
}

// dsn renders opts as a lib/pq connection string, the same shape as
// catalog.Config.DSN.
func (o *Options) dsn() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		o.User, o.Password, o.Host, o.Port, o.DbName)
}

// Run executes one refresh of the stream table named by opts.Table: load
// its registration, rewrite and parse its defining query, check
// feasibility, compute the LSN frontier, differentiate, and either print
// the emitted SQL (dry-run) or apply it inside one transaction.
func Run(opts *Options) error {
	util.InitSlog()

	db, err := sql.Open("postgres", opts.dsn())
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", opts.DbName, err)
	}
	defer db.Close()

	pgCat, err := catalog.NewPostgres(catalog.Config{
		Host: opts.Host, Port: opts.Port, User: opts.User,
		Password: opts.Password, DbName: opts.DbName,
	})
	if err != nil {
		return err
	}
	defer pgCat.Close()

	store := streamtable.NewStore(db, opts.CatalogSchema)
	buffer := cdc.NewPostgres(db, opts.ChangeSchema)

	schema, name, err := splitQualifiedName(opts.Table)
	if err != nil {
		return err
	}
	row, err := store.Get(schema, name)
	if err != nil {
		return err
	}

	rewritten, err := rewrite.Pipeline(row.DefiningQuery, pgCat)
	if err != nil {
		_ = store.MarkError(row.ID, err)
		return fmt.Errorf("rewriting defining query for %s: %w", opts.Table, err)
	}

	op, err := sqlparser.Parse(rewritten, pgCat)
	if err != nil {
		_ = store.MarkError(row.ID, err)
		return fmt.Errorf("parsing defining query for %s: %w", opts.Table, err)
	}

	if os.Getenv("PGDVM_DEBUG_TREE") != "" {
		pp.Println(op)
	}

	if err := feasibility.Check(op); err != nil {
		_ = store.MarkError(row.ID, err)
		_ = store.RequestReinit(row.ID)
		return fmt.Errorf("stream table %s is not incrementally maintainable, switch to FULL mode: %w", opts.Table, err)
	}

	if err := refreshDependencies(store, row.ID, op); err != nil {
		return err
	}

	frontier, currentLSN, err := buildFrontier(db, row, ir.SourceOIDs(op))
	if err != nil {
		_ = store.MarkError(row.ID, err)
		return err
	}

	registry := ir.NewCteRegistry()
	ctx := diff.NewContext(registry, frontier, buffer, opts.ChangeSchema)
	ctx.STQualifiedName = row.QualifiedName()
	ctx.DefiningQuery = row.DefiningQuery
	if row.Populated {
		if cols, err := stUserColumns(pgCat, schema, name); err == nil {
			ctx.STUserColumns = cols
		}
	}

	result, err := diff.Differentiate(ctx, op)
	if err != nil {
		_ = store.MarkError(row.ID, err)
		return fmt.Errorf("differentiating %s: %w", opts.Table, err)
	}
	emittedSQL := ctx.BuildWithQuery(result)

	if !opts.Apply {
		fmt.Println("-- dry run --")
		fmt.Printf("%s;\n", emittedSQL)
		return nil
	}

	if err := applyDelta(db, row, emittedSQL); err != nil {
		_ = store.MarkError(row.ID, err)
		return fmt.Errorf("applying delta to %s: %w", opts.Table, err)
	}
	return store.MarkRefreshed(row.ID, currentLSN)
}

// refreshDependencies records the base-relation edges the parsed query
// now reads, so a later schema change on any of them can be detected.
func refreshDependencies(store *streamtable.Store, streamTableID int64, op ir.Op) error {
	var deps []streamtable.Dependency
	for _, scan := range collectScans(op) {
		deps = append(deps, streamtable.Dependency{
			StreamTableID: streamTableID,
			SourceOID:     scan.OID,
			SourceSchema:  scan.Schema,
			SourceRelName: scan.Relation,
		})
	}
	return store.ReplaceDependencies(streamTableID, deps)
}

// collectScans walks op's tree and returns every Scan leaf it reaches,
// the same traversal ir.SourceOIDs performs but keeping the full node
// instead of only its OID.
func collectScans(op ir.Op) []ir.Scan {
	if op == nil {
		return nil
	}
	var out []ir.Scan
	if s, ok := op.(ir.Scan); ok {
		out = append(out, s)
	}
	for _, child := range op.Children() {
		out = append(out, collectScans(child)...)
	}
	return out
}

// buildFrontier queries the current WAL position once and pairs it with
// the stream table's last-refreshed LSN for every dependency OID — a
// single global frontier shared across all of a query's base relations,
// since pgs_stream_tables records only one last_refreshed_lsn per
// stream table, not one per dependency.
func buildFrontier(db *sql.DB, row streamtable.Row, oids []uint32) (*cdc.Frontier, string, error) {
	var currentLSN string
	if err := db.QueryRow(`SELECT pg_current_wal_lsn()::text`).Scan(&currentLSN); err != nil {
		return nil, "", fmt.Errorf("reading current WAL LSN: %w", err)
	}
	prevLSN := row.LastRefreshedLSN
	if prevLSN == "" {
		prevLSN = "0/0"
	}

	prev := make(map[uint32]string, len(oids))
	current := make(map[uint32]string, len(oids))
	for _, oid := range oids {
		prev[oid] = prevLSN
		current[oid] = currentLSN
	}
	return cdc.NewFrontier(prev, current), currentLSN, nil
}

func stUserColumns(cat catalog.Catalog, schema, name string) ([]string, error) {
	oid, err := cat.TableOID(schema, name)
	if err != nil {
		return nil, err
	}
	cols, err := cat.Columns(oid)
	if err != nil {
		return nil, err
	}
	return ir.Names(cols), nil
}

// applyDelta materialises the emitted delta query once and applies it
// against the stream table inside one transaction: inserted rows are
// appended, deleted rows are removed by their __pgs_row_id. This assumes
// the stream table carries a __pgs_row_id column of its own, the
// identity the differentiation engine hashes every row against (spec.md
// section 3, "__pgs_row_id ... stable across refreshes for the same
// logical row").
func applyDelta(db *sql.DB, row streamtable.Row, emittedSQL string) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	insertSQL := fmt.Sprintf(
		`INSERT INTO %s SELECT * FROM (%s) __pgs_delta WHERE __pgs_delta.__pgs_action = 'I'
		 ON CONFLICT (__pgs_row_id) DO NOTHING`,
		ir.QuoteIdent(row.Schema)+"."+ir.QuoteIdent(row.Name), emittedSQL,
	)
	if _, err := tx.Exec(insertSQL); err != nil {
		return fmt.Errorf("applying inserts: %w", err)
	}

	deleteSQL := fmt.Sprintf(
		`DELETE FROM %s WHERE __pgs_row_id IN (
		   SELECT __pgs_delta.__pgs_row_id FROM (%s) __pgs_delta WHERE __pgs_delta.__pgs_action = 'D'
		 )`,
		ir.QuoteIdent(row.Schema)+"."+ir.QuoteIdent(row.Name), emittedSQL,
	)
	if _, err := tx.Exec(deleteSQL); err != nil {
		return fmt.Errorf("applying deletes: %w", err)
	}

	return tx.Commit()
}

func splitQualifiedName(qualified string) (schema, name string, err error) {
	for i := len(qualified) - 1; i >= 0; i-- {
		if qualified[i] == '.' {
			return qualified[:i], qualified[i+1:], nil
		}
	}
	return "", "", fmt.Errorf("%q is not a schema-qualified table name (expected schema.table)", qualified)
}
