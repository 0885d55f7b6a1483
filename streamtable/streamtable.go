// Package streamtable persists the stream tables this process maintains:
// one row per incrementally-maintained SELECT, tracking its mode,
// population status, and dependency edges on base relations. This is
// the supplement from original_source (the Rust source's catalog-table
// definitions, dropped by the distillation but necessary for a runnable
// cmd/pgdvmdiff harness).
package streamtable

import "time"

// Mode selects how a stream table is kept up to date.
type Mode string

const (
	// ModeIncremental maintains the table via the diff package's
	// per-operator delta rules.
	ModeIncremental Mode = "INCREMENTAL"
	// ModeFull recomputes the table from scratch on every refresh —
	// the feasibility checker's fallback for unsupported operator
	// shapes (spec.md section 4.3).
	ModeFull Mode = "FULL"
)

// Status is the stream table's last-observed refresh outcome.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusHealthy Status = "HEALTHY"
	StatusError   Status = "ERROR"
)

// Row is one pgs_stream_tables record.
type Row struct {
	ID               int64
	Schema           string
	Name             string
	DefiningQuery    string
	Mode             Mode
	Status           Status
	Populated        bool
	NeedsReinit      bool
	LastError        string
	LastRefreshedLSN string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// QualifiedName renders "schema.name" without quoting either part.
func (r Row) QualifiedName() string {
	return r.Schema + "." + r.Name
}

// Dependency is one pgs_dependencies record: a stream table's edge onto
// a base relation it reads, keyed by OID since base tables are
// identified by OID throughout the rest of the engine (catalog, cdc).
type Dependency struct {
	StreamTableID int64
	SourceOID     uint32
	SourceSchema  string
	SourceRelName string
}
