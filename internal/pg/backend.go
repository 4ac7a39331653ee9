package pg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"visubase/internal/baas"
	"visubase/internal/layout"
	"visubase/internal/schema"
)

// SQLSTATE 42P01: undefined_table
const codeUndefinedTable = "42P01"

const importedColor = "#10b981"

var (
	_ baas.Backend  = (*Backend)(nil)
	_ baas.Importer = (*Backend)(nil)
)

// Backend talks to a Postgres database directly.
type Backend struct {
	pool *pgxpool.Pool
}

func NewBackend(pool *pgxpool.Pool) *Backend {
	return &Backend{pool: pool}
}

func (b *Backend) Close() { b.pool.Close() }

// classify maps a missing document table to baas.ErrStorageMissing.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == codeUndefinedTable {
		return fmt.Errorf("%w: %s", baas.ErrStorageMissing, strings.TrimSpace(pgErr.Message))
	}
	return err
}

func (b *Backend) UpsertSchema(ctx context.Context, row baas.SchemaRow) error {
	data, err := json.Marshal(row.Data)
	if err != nil {
		return fmt.Errorf("encode schema %q: %w", row.Name, err)
	}
	_, err = b.pool.Exec(ctx, `
		INSERT INTO public.schemas (name, data, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE
		SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		row.Name, data, row.UpdatedAt)
	if err != nil {
		return classify(err)
	}
	return nil
}

func (b *Backend) SelectSchema(ctx context.Context, name string) (baas.SchemaRow, error) {
	row := baas.SchemaRow{Name: name}
	var data []byte
	err := b.pool.QueryRow(ctx, `
		SELECT data, COALESCE(updated_at, created_at, NOW())
		FROM public.schemas
		WHERE name = $1`, name).Scan(&data, &row.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return row, fmt.Errorf("schema %q: %w", name, baas.ErrNotFound)
	}
	if err != nil {
		return row, classify(err)
	}
	row.Data, err = schema.ParseDocument(data)
	return row, err
}

func (b *Backend) ExecSQL(ctx context.Context, sql string) error {
	if _, err := b.pool.Exec(ctx, sql); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			log.Printf("pg: exec failed: %s (%s)", pgErr.Message, pgErr.Code)
		}
		return fmt.Errorf("exec sql: %w", err)
	}
	return nil
}

type keyInfo struct {
	primary, unique bool
}

// ImportTables lists the public base tables with their columns. The document
// table and names starting with "_" are skipped.
func (b *Backend) ImportTables(ctx context.Context) ([]schema.Table, error) {
	rows, err := b.pool.Query(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public' AND table_type = 'BASE TABLE'
		ORDER BY table_name`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}

	keys, err := b.keyColumns(ctx)
	if err != nil {
		return nil, err
	}

	var tables []schema.Table
	for _, name := range names {
		if name == baas.StorageTable || strings.HasPrefix(name, "_") {
			continue
		}
		cols, err := b.columns(ctx, name, keys)
		if err != nil {
			return nil, err
		}
		tables = append(tables, schema.Table{
			Name:     name,
			Color:    importedColor,
			Position: schema.Vec3(layout.GridPosition(len(tables))),
			Columns:  cols,
		})
	}
	return tables, nil
}

func (b *Backend) keyColumns(ctx context.Context) (map[string]keyInfo, error) {
	rows, err := b.pool.Query(ctx, `
		SELECT tc.table_name, kcu.column_name, tc.constraint_type
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		WHERE tc.table_schema = 'public'
			AND tc.constraint_type IN ('PRIMARY KEY', 'UNIQUE')`)
	if err != nil {
		return nil, fmt.Errorf("list key columns: %w", err)
	}
	defer rows.Close()

	out := map[string]keyInfo{}
	for rows.Next() {
		var table, column, kind string
		if err := rows.Scan(&table, &column, &kind); err != nil {
			return nil, err
		}
		k := out[table+"."+column]
		if kind == "PRIMARY KEY" {
			k.primary = true
		} else {
			k.unique = true
		}
		out[table+"."+column] = k
	}
	return out, rows.Err()
}

func (b *Backend) columns(ctx context.Context, table string, keys map[string]keyInfo) ([]schema.Column, error) {
	rows, err := b.pool.Query(ctx, `
		SELECT column_name, data_type, is_nullable, COALESCE(column_default, '')
		FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = $1
		ORDER BY ordinal_position`, table)
	if err != nil {
		return nil, fmt.Errorf("columns of %s: %w", table, err)
	}
	defer rows.Close()

	cols := []schema.Column{}
	for rows.Next() {
		var name, typ, nullable, def string
		if err := rows.Scan(&name, &typ, &nullable, &def); err != nil {
			return nil, err
		}
		k := keys[table+"."+name]
		cols = append(cols, schema.Column{
			Name:       name,
			Type:       typ,
			Nullable:   nullable == "YES",
			Unique:     k.unique,
			PrimaryKey: k.primary || name == "id" || strings.Contains(def, "nextval"),
		})
	}
	return cols, rows.Err()
}
