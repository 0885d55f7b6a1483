package streamtable

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/k0kubun/pgdvm/pgserr"
)

// Store is a lib/pq-backed repository over pgs_stream_tables and
// pgs_dependencies, mirroring the teacher's adapter/postgres/postgres.go
// query-and-scan style.
type Store struct {
	db            *sql.DB
	catalogSchema string
}

// NewStore wraps an existing *sql.DB. catalogSchema is the schema the
// pgs_stream_tables/pgs_dependencies tables themselves live in (separate
// from any individual stream table's own schema).
func NewStore(db *sql.DB, catalogSchema string) *Store {
	return &Store{db: db, catalogSchema: catalogSchema}
}

func (s *Store) table(name string) string {
	return fmt.Sprintf("%s.%s", s.catalogSchema, name)
}

// Get loads one pgs_stream_tables row by schema-qualified name.
func (s *Store) Get(schema, name string) (Row, error) {
	var r Row
	query := fmt.Sprintf(
		`SELECT id, schema, name, defining_query, mode, status, populated,
		        needs_reinit, last_error, last_refreshed_lsn, created_at, updated_at
		 FROM %s WHERE schema = $1 AND name = $2`,
		s.table("pgs_stream_tables"),
	)
	err := s.db.QueryRow(query, schema, name).Scan(
		&r.ID, &r.Schema, &r.Name, &r.DefiningQuery, &r.Mode, &r.Status,
		&r.Populated, &r.NeedsReinit, &r.LastError, &r.LastRefreshedLSN,
		&r.CreatedAt, &r.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return Row{}, pgserr.NotFoundf("no stream table registered for %s.%s", schema, name)
	}
	if err != nil {
		return Row{}, pgserr.Spi(err, "loading stream table %s.%s", schema, name)
	}
	return r, nil
}

// GetByID loads one pgs_stream_tables row by primary key. cmd/pgdvmdiff
// has no flag that selects a stream table by id; Run loads rows by name
// through Get.
func (s *Store) GetByID(id int64) (Row, error) {
	var r Row
	query := fmt.Sprintf(
		`SELECT id, schema, name, defining_query, mode, status, populated,
		        needs_reinit, last_error, last_refreshed_lsn, created_at, updated_at
		 FROM %s WHERE id = $1`,
		s.table("pgs_stream_tables"),
	)
	err := s.db.QueryRow(query, id).Scan(
		&r.ID, &r.Schema, &r.Name, &r.DefiningQuery, &r.Mode, &r.Status,
		&r.Populated, &r.NeedsReinit, &r.LastError, &r.LastRefreshedLSN,
		&r.CreatedAt, &r.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return Row{}, pgserr.NotFoundf("no stream table registered with id %d", id)
	}
	if err != nil {
		return Row{}, pgserr.Spi(err, "loading stream table id %d", id)
	}
	return r, nil
}

// Insert registers a new stream table in PENDING, unpopulated state.
func (s *Store) Insert(schema, name, definingQuery string, mode Mode) (int64, error) {
	var id int64
	query := fmt.Sprintf(
		`INSERT INTO %s (schema, name, defining_query, mode, status, populated, needs_reinit, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, false, false, now(), now())
		 RETURNING id`,
		s.table("pgs_stream_tables"),
	)
	err := s.db.QueryRow(query, schema, name, definingQuery, mode, StatusPending).Scan(&id)
	if err != nil {
		return 0, pgserr.Spi(err, "registering stream table %s.%s", schema, name)
	}
	return id, nil
}

// MarkRefreshed records a successful refresh: status HEALTHY, populated
// true, needs_reinit cleared, and the new high-water LSN.
func (s *Store) MarkRefreshed(id int64, lsn string) error {
	query := fmt.Sprintf(
		`UPDATE %s SET status = $2, populated = true, needs_reinit = false,
		        last_error = '', last_refreshed_lsn = $3, updated_at = now()
		 WHERE id = $1`,
		s.table("pgs_stream_tables"),
	)
	if _, err := s.db.Exec(query, id, StatusHealthy, lsn); err != nil {
		return pgserr.Spi(err, "marking stream table %d refreshed", id)
	}
	return nil
}

// MarkError records a failed refresh attempt without mutating populated
// or last_refreshed_lsn — a failed refresh leaves the previously
// maintained rows in place.
func (s *Store) MarkError(id int64, cause error) error {
	query := fmt.Sprintf(
		`UPDATE %s SET status = $2, last_error = $3, updated_at = now() WHERE id = $1`,
		s.table("pgs_stream_tables"),
	)
	if _, err := s.db.Exec(query, id, StatusError, cause.Error()); err != nil {
		return pgserr.Spi(err, "marking stream table %d errored", id)
	}
	return nil
}

// RequestReinit flags a stream table for full recomputation on its next
// refresh, the path taken when the feasibility checker downgrades a
// previously-incremental table (e.g. a dependency's shape changed).
func (s *Store) RequestReinit(id int64) error {
	query := fmt.Sprintf(`UPDATE %s SET needs_reinit = true, updated_at = now() WHERE id = $1`, s.table("pgs_stream_tables"))
	if _, err := s.db.Exec(query, id); err != nil {
		return pgserr.Spi(err, "requesting reinit for stream table %d", id)
	}
	return nil
}

// Dependencies lists the base-relation edges a stream table reads.
func (s *Store) Dependencies(streamTableID int64) ([]Dependency, error) {
	query := fmt.Sprintf(
		`SELECT stream_table_id, source_oid, source_schema, source_relname
		 FROM %s WHERE stream_table_id = $1`,
		s.table("pgs_dependencies"),
	)
	rows, err := s.db.Query(query, streamTableID)
	if err != nil {
		return nil, pgserr.Spi(err, "listing dependencies for stream table %d", streamTableID)
	}
	defer rows.Close()

	var deps []Dependency
	for rows.Next() {
		var d Dependency
		if err := rows.Scan(&d.StreamTableID, &d.SourceOID, &d.SourceSchema, &d.SourceRelName); err != nil {
			return nil, pgserr.Spi(err, "scanning dependency row for stream table %d", streamTableID)
		}
		deps = append(deps, d)
	}
	return deps, nil
}

// ReplaceDependencies atomically replaces a stream table's dependency
// set, called after (re)parsing its defining query discovers a new set
// of source OIDs.
func (s *Store) ReplaceDependencies(streamTableID int64, deps []Dependency) error {
	tx, err := s.db.Begin()
	if err != nil {
		return pgserr.Spi(err, "beginning dependency replace for stream table %d", streamTableID)
	}
	defer tx.Rollback()

	delQuery := fmt.Sprintf(`DELETE FROM %s WHERE stream_table_id = $1`, s.table("pgs_dependencies"))
	if _, err := tx.Exec(delQuery, streamTableID); err != nil {
		return pgserr.Spi(err, "clearing dependencies for stream table %d", streamTableID)
	}

	insQuery := fmt.Sprintf(
		`INSERT INTO %s (stream_table_id, source_oid, source_schema, source_relname) VALUES ($1, $2, $3, $4)`,
		s.table("pgs_dependencies"),
	)
	for _, d := range deps {
		if _, err := tx.Exec(insQuery, streamTableID, d.SourceOID, d.SourceSchema, d.SourceRelName); err != nil {
			return pgserr.Spi(err, "inserting dependency on oid %d for stream table %d", d.SourceOID, streamTableID)
		}
	}

	if err := tx.Commit(); err != nil {
		return pgserr.Spi(err, "committing dependency replace for stream table %d", streamTableID)
	}
	return nil
}
