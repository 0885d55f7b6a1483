// Package catalog is the stated external-collaborator interface for
// catalog population (spec.md section 1, "Catalog population ... the
// core depends on a catalog lookup capability"). The core never reaches
// into pg_catalog directly; every resolution goes through Catalog.
package catalog

import "github.com/k0kubun/pgdvm/ir"

// Catalog resolves the metadata the parser/IR builder and differentiation
// engine need, per spec.md section 6 "Input from parser / catalog".
type Catalog interface {
	// TableOID resolves schema.table to its OID, pgserr.NotFound if absent.
	TableOID(schema, table string) (uint32, error)
	// Columns returns the column list (name, type, nullability) for oid,
	// in declared order.
	Columns(oid uint32) ([]ir.Column, error)
	// PrimaryKey returns the PK column list for oid, empty if none.
	PrimaryKey(oid uint32) ([]string, error)
	// FunctionVolatility resolves a function name to its volatility
	// class. An overloaded name resolves to a single class; Postgres
	// takes whichever matching pg_proc row its query returns first, so
	// which overload decides is not defined.
	FunctionVolatility(name string) (ir.Volatility, error)
	// RelKind reports a relation's relkind (r, v, m, f, p, ...).
	RelKind(schema, table string) (RelKind, error)
	// ViewDefinition returns a non-materialised view's body SQL text.
	ViewDefinition(oid uint32) (string, error)
}

// RelKind mirrors pg_class.relkind.
type RelKind byte

const (
	RelKindTable           RelKind = 'r'
	RelKindView            RelKind = 'v'
	RelKindMaterializedView RelKind = 'm'
	RelKindForeignTable    RelKind = 'f'
	RelKindPartitionedTable RelKind = 'p'
)
