package cdc

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/k0kubun/pgdvm/ir"
	"github.com/k0kubun/pgdvm/pgserr"
)

// Postgres implements Buffer over lib/pq, querying the
// "<schema>.changes_<oid>" tables the out-of-scope CDC mechanism
// populates.
type Postgres struct {
	db     *sql.DB
	schema string
}

// NewPostgres wraps an existing *sql.DB (typically shared with the
// catalog connection inside one refresh) scoped to the change-buffer
// schema.
func NewPostgres(db *sql.DB, schema string) *Postgres {
	return &Postgres{db: db, schema: schema}
}

func (p *Postgres) ChangeTableName(oid uint32) string {
	return fmt.Sprintf("%s.changes_%d", ir.QuoteIdent(p.schema), oid)
}

func (p *Postgres) HasDeleteOrUpdate(oid uint32, prevLSN, currentLSN string) (bool, error) {
	query := fmt.Sprintf(
		`SELECT EXISTS(
			SELECT 1 FROM %s
			WHERE (action = 'D' OR action = 'U')
			AND lsn > $1::pg_lsn AND lsn <= $2::pg_lsn
		)`,
		p.ChangeTableName(oid),
	)
	var found bool
	if err := p.db.QueryRow(query, prevLSN, currentLSN).Scan(&found); err != nil {
		return false, pgserr.Spi(err, "checking for delete/update changes on oid %d", oid)
	}
	return found, nil
}
