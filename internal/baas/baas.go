// Package baas describes the capabilities the designer consumes from a hosted
// relational backend: a document table for saved designs and raw SQL execution.
package baas

import (
	"context"
	"errors"
	"strings"
	"time"

	"visubase/internal/schema"
)

var (
	// ErrStorageMissing means the schemas document table does not exist yet.
	ErrStorageMissing = errors.New("schema storage table is missing")
	ErrNotFound       = errors.New("schema document not found")
	ErrRowNotFound    = errors.New("row not found")
)

// StorageTable is the document table holding saved designs.
const StorageTable = "schemas"

// SetupSQL creates the document table. It is safe to run more than once.
const SetupSQL = `CREATE EXTENSION IF NOT EXISTS pgcrypto;

CREATE TABLE IF NOT EXISTS public.schemas (
  id UUID DEFAULT gen_random_uuid() PRIMARY KEY,
  name TEXT UNIQUE NOT NULL,
  data JSONB NOT NULL,
  created_at TIMESTAMPTZ DEFAULT NOW(),
  updated_at TIMESTAMPTZ DEFAULT NOW()
);`

// Credentials is the URL/key pair the user supplies at setup.
type Credentials struct {
	URL string `json:"url"`
	Key string `json:"key"`
}

func (c Credentials) Complete() bool {
	return strings.TrimSpace(c.URL) != "" && strings.TrimSpace(c.Key) != ""
}

// SchemaRow is one row of the document table.
type SchemaRow struct {
	Name      string          `json:"name"`
	Data      schema.Document `json:"data"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Backend is a connected backend.
type Backend interface {
	// UpsertSchema stores doc under name, replacing an existing row with that name.
	UpsertSchema(ctx context.Context, row SchemaRow) error
	// SelectSchema returns the row stored under name.
	SelectSchema(ctx context.Context, name string) (SchemaRow, error)
	// ExecSQL runs a script with the backend's elevated privileges.
	ExecSQL(ctx context.Context, sql string) error
	Close()
}

// Importer is implemented by backends that can describe their existing tables.
type Importer interface {
	ImportTables(ctx context.Context) ([]schema.Table, error)
}

// Row is one record of a materialized table, keyed by column name.
type Row = map[string]any

// RowStore is implemented by backends that can browse and edit the rows of
// the tables a sync created. Rows are addressed by their id column.
type RowStore interface {
	SelectRows(ctx context.Context, table string, limit, offset int) ([]Row, error)
	InsertRow(ctx context.Context, table string, row Row) (Row, error)
	UpdateRow(ctx context.Context, table, id string, row Row) (Row, error)
	DeleteRow(ctx context.Context, table, id string) error
}

// Dialer opens a Backend for a set of credentials.
type Dialer interface {
	Dial(ctx context.Context, creds Credentials) (Backend, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, creds Credentials) (Backend, error)

func (f DialerFunc) Dial(ctx context.Context, creds Credentials) (Backend, error) {
	return f(ctx, creds)
}
