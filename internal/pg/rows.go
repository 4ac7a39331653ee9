package pg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"

	"visubase/internal/baas"
)

var _ baas.RowStore = (*Backend)(nil)

// Row values arrive as decoded JSON, so statements go through the simple
// protocol: every value is sent as a literal and Postgres casts it to the
// column type, which the extended protocol would refuse for e.g. a string
// into timestamptz.
var simple = pgx.QueryExecModeSimpleProtocol

func table(name string) string {
	return pgx.Identifier{"public", name}.Sanitize()
}

// sortedColumns returns the keys of row in a stable order with their values
// ready for the simple protocol.
func sortedColumns(row baas.Row) ([]string, []any, error) {
	cols := make([]string, 0, len(row))
	for k := range row {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	args := make([]any, 0, len(cols))
	for _, k := range cols {
		v, err := literal(row[k])
		if err != nil {
			return nil, nil, fmt.Errorf("column %s: %w", k, err)
		}
		args = append(args, v)
	}
	return cols, args, nil
}

// literal flattens JSON objects and arrays to text for json/jsonb columns.
func literal(v any) (any, error) {
	switch v.(type) {
	case map[string]any, []any:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	}
	return v, nil
}

// normalize makes values JSON friendly; uuids decode as [16]byte.
func normalize(row map[string]any) baas.Row {
	for k, v := range row {
		if u, ok := v.([16]byte); ok {
			row[k] = fmt.Sprintf("%x-%x-%x-%x-%x", u[0:4], u[4:6], u[6:8], u[8:10], u[10:16])
		}
	}
	return row
}

func collect(rows pgx.Rows) ([]baas.Row, error) {
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, err
	}
	out := make([]baas.Row, 0, len(maps))
	for _, m := range maps {
		out = append(out, normalize(m))
	}
	return out, nil
}

func (b *Backend) SelectRows(ctx context.Context, name string, limit, offset int) ([]baas.Row, error) {
	rows, err := b.pool.Query(ctx,
		fmt.Sprintf("SELECT * FROM %s LIMIT $1 OFFSET $2", table(name)), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", name, err)
	}
	out, err := collect(rows)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", name, err)
	}
	return out, nil
}

func (b *Backend) InsertRow(ctx context.Context, name string, row baas.Row) (baas.Row, error) {
	cols, args, err := sortedColumns(row)
	if err != nil {
		return nil, err
	}
	var sql string
	if len(cols) == 0 {
		sql = fmt.Sprintf("INSERT INTO %s DEFAULT VALUES RETURNING *", table(name))
	} else {
		idents := make([]string, len(cols))
		params := make([]string, len(cols))
		for i, c := range cols {
			idents[i] = pgx.Identifier{c}.Sanitize()
			params[i] = fmt.Sprintf("$%d", i+1)
		}
		sql = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *",
			table(name), strings.Join(idents, ", "), strings.Join(params, ", "))
	}
	rows, err := b.pool.Query(ctx, sql, append([]any{simple}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("insert into %s: %w", name, err)
	}
	out, err := collect(rows)
	if err != nil {
		return nil, fmt.Errorf("insert into %s: %w", name, err)
	}
	if len(out) == 0 {
		return baas.Row{}, nil
	}
	return out[0], nil
}

func (b *Backend) UpdateRow(ctx context.Context, name, id string, row baas.Row) (baas.Row, error) {
	cols, args, err := sortedColumns(row)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, errors.New("no columns to update")
	}
	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = fmt.Sprintf("%s = $%d", pgx.Identifier{c}.Sanitize(), i+1)
	}
	sql := fmt.Sprintf("UPDATE %s SET %s WHERE id::text = $%d RETURNING *",
		table(name), strings.Join(sets, ", "), len(cols)+1)
	args = append(args, id)

	rows, err := b.pool.Query(ctx, sql, append([]any{simple}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", name, err)
	}
	out, err := collect(rows)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", name, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s id=%s: %w", name, id, baas.ErrRowNotFound)
	}
	return out[0], nil
}

func (b *Backend) DeleteRow(ctx context.Context, name, id string) error {
	tag, err := b.pool.Exec(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE id::text = $1", table(name)), simple, id)
	if err != nil {
		return fmt.Errorf("delete from %s: %w", name, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s id=%s: %w", name, id, baas.ErrRowNotFound)
	}
	return nil
}
