package pg

import (
	"fmt"
	"regexp"
	"strings"

	"visubase/internal/schema"
)

const scriptHeader = "-- Generated SQL Schema"

var whitespaceRe = regexp.MustCompile(`\s+`)

// Slug turns a display name into the SQL identifier used for the table.
func Slug(name string) string {
	return whitespaceRe.ReplaceAllString(strings.ToLower(name), "_")
}

// fallback body for tables without columns; a table is never emitted empty
var fallbackColumns = []string{
	"id SERIAL PRIMARY KEY",
	"created_at TIMESTAMPTZ DEFAULT NOW()",
}

func columnDef(c schema.Column) string {
	var sb strings.Builder
	sb.WriteString(c.Name)
	sb.WriteByte(' ')
	sb.WriteString(c.Type)
	if c.PrimaryKey {
		sb.WriteString(" PRIMARY KEY")
	}
	if !c.Nullable {
		sb.WriteString(" NOT NULL")
	}
	if c.Unique {
		sb.WriteString(" UNIQUE")
	}
	if c.ForeignKey != "" {
		sb.WriteString(" REFERENCES ")
		sb.WriteString(c.ForeignKey)
	}
	return sb.String()
}

func createTable(t schema.Table) string {
	defs := fallbackColumns
	if len(t.Columns) > 0 {
		defs = make([]string, 0, len(t.Columns))
		for _, c := range t.Columns {
			defs = append(defs, columnDef(c))
		}
	}
	return fmt.Sprintf("CREATE TABLE %s (\n  %s\n);", Slug(t.Name), strings.Join(defs, ",\n  "))
}

// ForeignKey is a relationship resolved against the tables of a document.
type ForeignKey struct {
	FromName   string // display names, used in the script comments
	ToName     string
	FromTable  string
	ToTable    string
	Column     string
	RefColumn  string
	AddsColumn bool // false when an existing source column is reused
}

// Constraint is the explicit constraint name, <from>_<column>_fkey.
func (fk ForeignKey) Constraint() string {
	return fk.FromTable + "_" + fk.Column + "_fkey"
}

// ResolveForeignKeys maps relationships to foreign keys in sequence order.
// Relationships with an unknown endpoint are skipped.
func ResolveForeignKeys(d schema.Document) []ForeignKey {
	fks := make([]ForeignKey, 0, len(d.Relationships))
	for _, r := range d.Relationships {
		from, ok := d.TableByID(r.From)
		if !ok {
			continue
		}
		to, ok := d.TableByID(r.To)
		if !ok {
			continue
		}
		fk := ForeignKey{
			FromName:   from.Name,
			ToName:     to.Name,
			FromTable:  Slug(from.Name),
			ToTable:    Slug(to.Name),
			RefColumn:  "id",
			AddsColumn: r.FromColumn == "",
		}
		switch {
		case r.FromColumn != "":
			fk.Column = r.FromColumn
		case r.ForeignKeyColumn != "":
			fk.Column = r.ForeignKeyColumn
		default:
			fk.Column = fk.ToTable + "_id"
		}
		if r.ToColumn != "" {
			fk.RefColumn = r.ToColumn
		}
		fks = append(fks, fk)
	}
	return fks
}

// GenerateSQL renders a drop-and-recreate script for the whole document:
// tables in sequence order first, then one foreign key per resolvable
// relationship, each introduced by two comment lines. The output depends only on d.
func GenerateSQL(d schema.Document) string {
	stmts := []string{scriptHeader}

	for _, t := range d.Tables {
		stmts = append(stmts,
			fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE;", Slug(t.Name)),
			createTable(t),
		)
	}

	for _, fk := range ResolveForeignKeys(d) {
		header := fmt.Sprintf("-- Relationship: %s -> %s\n-- Foreign Key: %s.%s -> %s.%s\n",
			fk.FromName, fk.ToName, fk.FromTable, fk.Column, fk.ToTable, fk.RefColumn)
		if fk.AddsColumn {
			stmts = append(stmts, header+fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s INTEGER;",
				fk.FromTable, fk.Column))
			header = ""
		}
		stmts = append(stmts, header+fmt.Sprintf(
			"ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s(%s) ON DELETE CASCADE;",
			fk.FromTable, fk.Constraint(), fk.Column, fk.ToTable, fk.RefColumn))
	}

	return strings.Join(stmts, "\n\n") + "\n"
}
