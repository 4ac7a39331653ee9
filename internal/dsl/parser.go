// Package dsl reads a plain-text schema description:
//
//	# comment
//	table Users: color=#10b981
//	  id: serial pk
//	  email: text unique required
//	table Posts:
//	  id: serial pk
//	  author_id: integer ref[Users.id]
//
// Columns are nullable unless marked required (or not_null). A ref[Table] or
// ref[Table.column] type suffix adds a relationship that reuses the column.
package dsl

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"visubase/internal/layout"
	"visubase/internal/pg"
	"visubase/internal/schema"
)

var (
	tableRe = regexp.MustCompile(`^table\s+(.+?)\s*:(.*)$`)
	fieldRe = regexp.MustCompile(`^([\w]+)\s*:\s*(.+)$`)
	refRe   = regexp.MustCompile(`^ref\[([^\].]+)(?:\.([\w]+))?\]$`)
)

// splitOptionTokens splits "k=v k2='v 2' flag" on blanks outside quotes.
func splitOptionTokens(s string) []string {
	var out []string
	var buf []rune
	inSingle, inDouble := false, false

	flush := func() {
		if len(buf) > 0 {
			out = append(out, string(buf))
			buf = buf[:0]
		}
	}
	for _, r := range s {
		switch {
		case r == '\'' && !inDouble:
			inSingle = !inSingle
		case r == '"' && !inSingle:
			inDouble = !inDouble
		case (r == ' ' || r == '\t' || r == ',') && !inSingle && !inDouble:
			flush()
			continue
		}
		buf = append(buf, r)
	}
	flush()
	return out
}

func unquote(v string) string {
	if len(v) >= 2 && (v[0] == '"' && v[len(v)-1] == '"' || v[0] == '\'' && v[len(v)-1] == '\'') {
		return v[1 : len(v)-1]
	}
	return v
}

func stripComment(s string) string {
	// '#' opens a comment only at the start or after a blank, so color=#10b981 survives
	for i := 0; i < len(s); i++ {
		if s[i] == '#' && (i == 0 || s[i-1] == ' ' || s[i-1] == '\t') {
			return strings.TrimSpace(s[:i])
		}
	}
	return strings.TrimSpace(s)
}

type pendingRef struct {
	line      int
	fromTable string
	column    string
	toName    string
	toColumn  string
}

type declared struct {
	id   string
	name string
	line int
}

// Parse reads a schema description. Table ids are "table_<slug>" with the
// slug of the generated SQL table, so two names that would create the same
// SQL table are rejected. Positions follow the creation order layout.
func Parse(r io.Reader) (schema.Document, error) {
	doc := schema.Document{Tables: []schema.Table{}, Relationships: []schema.Relationship{}}
	var refs []pendingRef
	bySlug := map[string]declared{}
	cur := -1

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := stripComment(scanner.Text())
		if line == "" {
			continue
		}

		if m := tableRe.FindStringSubmatch(line); m != nil {
			name := unquote(strings.TrimSpace(m[1]))
			slug := pg.Slug(name)
			if prev, dup := bySlug[slug]; dup {
				if prev.name == name {
					return schema.Document{}, fmt.Errorf("line %d: table %q declared twice", lineNo, name)
				}
				return schema.Document{}, fmt.Errorf("line %d: table %q collides with %q from line %d (both become %s)",
					lineNo, name, prev.name, prev.line, slug)
			}
			t := schema.Table{
				ID:       "table_" + slug,
				Name:     name,
				Color:    schema.DefaultTableColor,
				Position: schema.Vec3(layout.PositionFor(len(doc.Tables))),
				Columns:  []schema.Column{},
			}
			for _, tok := range splitOptionTokens(m[2]) {
				k, v, _ := strings.Cut(tok, "=")
				if strings.EqualFold(k, "color") && v != "" {
					t.Color = unquote(v)
				}
			}
			bySlug[slug] = declared{id: t.ID, name: name, line: lineNo}
			doc.Tables = append(doc.Tables, t)
			cur = len(doc.Tables) - 1
			continue
		}

		m := fieldRe.FindStringSubmatch(line)
		if m == nil {
			return schema.Document{}, fmt.Errorf("line %d: cannot parse %q", lineNo, line)
		}
		if cur < 0 {
			return schema.Document{}, fmt.Errorf("line %d: column %q outside of a table", lineNo, m[1])
		}

		toks := splitOptionTokens(m[2])
		col := schema.Column{Name: m[1], Nullable: true}
		for i, tok := range toks {
			if rm := refRe.FindStringSubmatch(tok); rm != nil {
				refs = append(refs, pendingRef{
					line: lineNo, fromTable: doc.Tables[cur].ID, column: col.Name,
					toName: strings.TrimSpace(rm[1]), toColumn: rm[2],
				})
				continue
			}
			if i == 0 {
				col.Type = tok
				continue
			}
			k, v, hasValue := strings.Cut(tok, "=")
			switch strings.ToLower(k) {
			case "pk", "primary_key":
				col.PrimaryKey = true
				col.Nullable = false
			case "unique":
				col.Unique = true
			case "required", "not_null":
				col.Nullable = false
			case "null", "nullable":
				col.Nullable = true
			case "references":
				if hasValue {
					col.ForeignKey = unquote(v)
				}
			default:
				return schema.Document{}, fmt.Errorf("line %d: unknown option %q", lineNo, tok)
			}
		}
		if col.Type == "" {
			return schema.Document{}, fmt.Errorf("line %d: column %q has no type", lineNo, col.Name)
		}
		doc.Tables[cur].Columns = append(doc.Tables[cur].Columns, col)
	}
	if err := scanner.Err(); err != nil {
		return schema.Document{}, err
	}

	for _, ref := range refs {
		to, ok := bySlug[pg.Slug(ref.toName)]
		if !ok {
			return schema.Document{}, fmt.Errorf("line %d: ref to unknown table %q", ref.line, ref.toName)
		}
		doc.Relationships = append(doc.Relationships, schema.Relationship{
			From: ref.fromTable, To: to.id, FromColumn: ref.column, ToColumn: ref.toColumn,
		})
	}
	return doc, nil
}

func ParseFile(path string) (schema.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return schema.Document{}, err
	}
	defer f.Close()
	doc, err := Parse(f)
	if err != nil {
		return schema.Document{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc, nil
}
