// Package pg lists PostgreSQL tables and table partitions as partcat
// references of the form "schema/table".
package pg

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/justapithecus/partcat/partcat"
)

// Querier is satisfied by *pgxpool.Pool, *pgx.Conn, and pgx.Tx.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Config holds configuration for the table lister.
type Config struct {
	// Schemas restricts listing to these schemas. Defaults to ["public"].
	Schemas []string

	// PartitionsOnly lists only tables attached as partitions of a
	// partitioned parent.
	PartitionsOnly bool
}

// Lister implements partcat.Lister over the system catalog.
type Lister struct {
	db             Querier
	schemas        []string
	partitionsOnly bool
}

const listTablesSQL = `
SELECT n.nspname, c.relname
FROM pg_catalog.pg_class c
JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
WHERE c.relkind IN ('r', 'p')
  AND n.nspname = ANY($1::text[])
  AND (NOT $2::boolean OR c.relispartition)
ORDER BY n.nspname, c.relname`

// New creates a table lister.
func New(db Querier, cfg Config) (*Lister, error) {
	if db == nil {
		return nil, errors.New("pg: querier is required")
	}
	schemas := cfg.Schemas
	if len(schemas) == 0 {
		schemas = []string{"public"}
	}
	for _, s := range schemas {
		if s == "" || strings.Contains(s, "/") {
			return nil, fmt.Errorf("pg: invalid schema name %q", s)
		}
	}
	return &Lister{
		db:             db,
		schemas:        append([]string(nil), schemas...),
		partitionsOnly: cfg.PartitionsOnly,
	}, nil
}

// List returns "schema/table" references starting with prefix.
func (l *Lister) List(ctx context.Context, prefix string) ([]string, error) {
	rows, err := l.db.Query(ctx, listTablesSQL, l.schemas, l.partitionsOnly)
	if err != nil {
		return nil, fmt.Errorf("pg: list tables: %w", classify(err))
	}
	defer rows.Close()

	var refs []string
	for rows.Next() {
		var schema, table string
		if err := rows.Scan(&schema, &table); err != nil {
			return nil, fmt.Errorf("pg: scan table: %w", err)
		}
		ref := schema + "/" + table
		if strings.HasPrefix(ref, prefix) {
			refs = append(refs, ref)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pg: list tables: %w", classify(err))
	}
	return refs, nil
}

// PostgreSQL error codes mapped onto partcat sentinels.
const (
	codeInsufficientPrivilege = "42501"
	codeInvalidCatalogName    = "3D000"
	codeInvalidSchemaName     = "3F000"
)

func classify(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case codeInsufficientPrivilege:
		return errors.Join(partcat.ErrPermissionDenied, err)
	case codeInvalidCatalogName, codeInvalidSchemaName:
		return errors.Join(partcat.ErrNotFound, err)
	default:
		return err
	}
}
