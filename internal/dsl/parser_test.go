package dsl

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visubase/internal/layout"
	"visubase/internal/pg"
	"visubase/internal/schema"
)

const blog = `
# blog schema
table Users: color=#10b981
  id: serial pk
  email: text unique required   # login
  nickname: varchar(40)

table Posts:
  id: serial pk
  author_id: integer ref[Users.id] required
  title: text not_null
`

func TestParseBlog(t *testing.T) {
	doc, err := Parse(strings.NewReader(blog))
	require.NoError(t, err)
	require.Len(t, doc.Tables, 2)

	users := doc.Tables[0]
	assert.Equal(t, "table_users", users.ID)
	assert.Equal(t, "#10b981", users.Color)
	assert.Equal(t, schema.Vec3(layout.PositionFor(0)), users.Position)
	require.Len(t, users.Columns, 3)
	assert.Equal(t, schema.Column{Name: "id", Type: "serial", PrimaryKey: true}, users.Columns[0])
	assert.Equal(t, schema.Column{Name: "email", Type: "text", Unique: true}, users.Columns[1])
	assert.Equal(t, schema.Column{Name: "nickname", Type: "varchar(40)", Nullable: true}, users.Columns[2])

	posts := doc.Tables[1]
	assert.Equal(t, schema.DefaultTableColor, posts.Color)
	assert.Equal(t, schema.Column{Name: "author_id", Type: "integer"}, posts.Columns[1])

	require.Len(t, doc.Relationships, 1)
	assert.Equal(t, schema.Relationship{From: posts.ID, To: users.ID, FromColumn: "author_id", ToColumn: "id"}, doc.Relationships[0])

	sql := pg.GenerateSQL(doc)
	assert.Contains(t, sql, "ALTER TABLE posts ADD CONSTRAINT posts_author_id_fkey FOREIGN KEY (author_id) REFERENCES users(id) ON DELETE CASCADE;")
	assert.NotContains(t, sql, "ADD COLUMN")
}

func TestParseRefWithoutColumnAndForwardReference(t *testing.T) {
	doc, err := Parse(strings.NewReader("table A:\n  b_id: integer ref[B]\ntable B:\n  id: serial pk\n"))
	require.NoError(t, err)
	require.Len(t, doc.Relationships, 1)
	assert.Equal(t, "table_b", doc.Relationships[0].To)
	assert.Empty(t, doc.Relationships[0].ToColumn)
}

func TestParseErrors(t *testing.T) {
	cases := map[string]string{
		"column outside table": "id: serial\n",
		"duplicate table":      "table A:\ntable a:\n",
		"unknown option":       "table A:\n  id: serial sparkly\n",
		"missing type":         "table A:\n  id: ref[A]\n",
		"unknown ref":          "table A:\n  b_id: integer ref[B]\n",
		"garbage":              "table A:\n  ???\n",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(src))
			assert.Error(t, err)
		})
	}
}

func TestParseRejectsNamesWithTheSameSQLTable(t *testing.T) {
	src := "table Order Items:\n  id: serial pk\ntable order_items:\n  id: serial pk\n"
	_, err := Parse(strings.NewReader(src))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")
	assert.Contains(t, err.Error(), "order_items")

	_, err = Parse(strings.NewReader("table Order  Items:\ntable order items:\n"))
	assert.Error(t, err)
}

func TestParseIDsFollowSQLTableNames(t *testing.T) {
	doc, err := Parse(strings.NewReader("table Order\tItems:\n  id: serial pk\ntable Notes:\n  item_id: integer ref[Order_Items]\n"))
	require.NoError(t, err)
	require.Len(t, doc.Tables, 2)
	assert.Equal(t, "table_order_items", doc.Tables[0].ID)
	require.Len(t, doc.Relationships, 1)
	assert.Equal(t, "table_order_items", doc.Relationships[0].To)
	assert.NoError(t, doc.CheckTableIDs())
}

func TestSplitOptionTokens(t *testing.T) {
	assert.Equal(t, []string{"text", "references='other (id)'", "unique"},
		splitOptionTokens(`text references='other (id)', unique`))
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.dsl")
	require.NoError(t, os.WriteFile(path, []byte(blog), 0o644))
	doc, err := ParseFile(path)
	require.NoError(t, err)
	assert.Len(t, doc.Tables, 2)

	_, err = ParseFile(filepath.Join(t.TempDir(), "missing.dsl"))
	assert.Error(t, err)
}
