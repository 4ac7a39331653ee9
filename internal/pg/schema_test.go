package pg

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visubase/internal/schema"
)

func TestSlug(t *testing.T) {
	tests := map[string]string{
		"Users":          "users",
		"Order Items":    "order_items",
		"Order \t  Item": "order_item",
		"already_snake":  "already_snake",
	}
	for in, want := range tests {
		assert.Equal(t, want, Slug(in), in)
	}
}

func usersAndPosts(t *testing.T) (*schema.Store, schema.Table, schema.Table) {
	t.Helper()
	s := schema.NewStore(schema.Document{}, nil)
	users, err := s.CreateTable("Users")
	require.NoError(t, err)
	posts, err := s.CreateTable("Posts")
	require.NoError(t, err)
	return s, users, posts
}

func TestGenerateSQLForeignKeyScenario(t *testing.T) {
	s, users, posts := usersAndPosts(t)
	_, err := s.AddRelationship(schema.Relationship{From: posts.ID, To: users.ID, ForeignKeyColumn: "user_id"})
	require.NoError(t, err)

	out := GenerateSQL(s.Document())
	assert.True(t, strings.HasPrefix(out, scriptHeader))
	assert.Contains(t, out, "DROP TABLE IF EXISTS posts CASCADE;")
	assert.Contains(t, out, "DROP TABLE IF EXISTS users CASCADE;")
	assert.Contains(t, out, "ALTER TABLE posts ADD COLUMN IF NOT EXISTS user_id INTEGER;")
	assert.Contains(t, out, "ADD CONSTRAINT posts_user_id_fkey FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE;")

	// tables come before constraints
	assert.Less(t, strings.Index(out, "CREATE TABLE posts"), strings.Index(out, "ALTER TABLE posts"))
}

func TestGenerateSQLColumnScenario(t *testing.T) {
	s, users, _ := usersAndPosts(t)
	_, err := s.AddColumn(users.ID, schema.Column{Name: "email", Type: "text", Nullable: false, Unique: true})
	require.NoError(t, err)

	out := GenerateSQL(s.Document())
	assert.Contains(t, out, "CREATE TABLE users (\n  email text NOT NULL UNIQUE\n);")
}

func TestGenerateSQLFallbackColumns(t *testing.T) {
	d := schema.Document{Tables: []schema.Table{{ID: "a", Name: "Empty Box"}}}
	out := GenerateSQL(d)
	assert.Contains(t, out, "CREATE TABLE empty_box (\n  id SERIAL PRIMARY KEY,\n  created_at TIMESTAMPTZ DEFAULT NOW()\n);")
}

func TestGenerateSQLColumnSuffixOrder(t *testing.T) {
	d := schema.Document{Tables: []schema.Table{{ID: "a", Name: "T", Columns: []schema.Column{
		{Name: "id", Type: "serial", PrimaryKey: true, Nullable: false, Unique: true, ForeignKey: "other(id)"},
		{Name: "note", Type: "text", Nullable: true},
	}}}}
	out := GenerateSQL(d)
	assert.Contains(t, out, "  id serial PRIMARY KEY NOT NULL UNIQUE REFERENCES other(id),\n  note text\n);")
}

func TestGenerateSQLFromColumnSkipsAddColumn(t *testing.T) {
	s, users, posts := usersAndPosts(t)
	_, err := s.AddRelationship(schema.Relationship{
		From: posts.ID, To: users.ID, ForeignKeyColumn: "ignored", FromColumn: "author", ToColumn: "uid",
	})
	require.NoError(t, err)

	out := GenerateSQL(s.Document())
	assert.NotContains(t, out, "ADD COLUMN")
	assert.Contains(t, out, "ALTER TABLE posts ADD CONSTRAINT posts_author_fkey FOREIGN KEY (author) REFERENCES users(uid) ON DELETE CASCADE;")
}

func TestGenerateSQLDefaultForeignKeyName(t *testing.T) {
	s, users, posts := usersAndPosts(t)
	_, err := s.AddRelationship(schema.Relationship{From: posts.ID, To: users.ID})
	require.NoError(t, err)

	out := GenerateSQL(s.Document())
	assert.Contains(t, out, "ALTER TABLE posts ADD COLUMN IF NOT EXISTS users_id INTEGER;")
	assert.Contains(t, out, "FOREIGN KEY (users_id) REFERENCES users(id)")
}

func TestGenerateSQLCommentsEachForeignKey(t *testing.T) {
	s, users, posts := usersAndPosts(t)
	_, err := s.AddRelationship(schema.Relationship{From: posts.ID, To: users.ID, ForeignKeyColumn: "user_id"})
	require.NoError(t, err)
	_, err = s.AddRelationship(schema.Relationship{From: posts.ID, To: users.ID, FromColumn: "editor", ToColumn: "uid"})
	require.NoError(t, err)

	out := GenerateSQL(s.Document())
	assert.Contains(t, out, "-- Relationship: Posts -> Users\n"+
		"-- Foreign Key: posts.user_id -> users.id\n"+
		"ALTER TABLE posts ADD COLUMN IF NOT EXISTS user_id INTEGER;\n\n"+
		"ALTER TABLE posts ADD CONSTRAINT posts_user_id_fkey")
	assert.Contains(t, out, "-- Relationship: Posts -> Users\n"+
		"-- Foreign Key: posts.editor -> users.uid\n"+
		"ALTER TABLE posts ADD CONSTRAINT posts_editor_fkey")
	assert.Equal(t, 2, strings.Count(out, "-- Relationship:"))
}

func TestGenerateSQLSkipsDanglingRelationships(t *testing.T) {
	d := schema.Document{
		Tables:        []schema.Table{{ID: "a", Name: "A"}},
		Relationships: []schema.Relationship{{From: "a", To: "gone"}, {From: "gone", To: "a"}},
	}
	out := GenerateSQL(d)
	assert.NotContains(t, out, "ALTER TABLE")
	assert.NotContains(t, out, "-- Relationship")
	assert.Empty(t, ResolveForeignKeys(d))
}

func TestGenerateSQLSelfRelationship(t *testing.T) {
	d := schema.Document{
		Tables:        []schema.Table{{ID: "e", Name: "Employees"}},
		Relationships: []schema.Relationship{{From: "e", To: "e", ForeignKeyColumn: "manager_id"}},
	}
	out := GenerateSQL(d)
	assert.Contains(t, out, "FOREIGN KEY (manager_id) REFERENCES employees(id)")
}

func TestGenerateSQLIsDeterministic(t *testing.T) {
	s, users, posts := usersAndPosts(t)
	_, _ = s.AddColumn(users.ID, schema.Column{Name: "email", Type: "text"})
	_, _ = s.AddRelationship(schema.Relationship{From: posts.ID, To: users.ID})
	d := s.Document()
	assert.Equal(t, GenerateSQL(d), GenerateSQL(d))
	assert.Equal(t, GenerateSQL(d), GenerateSQL(s.Document()))
}

func TestGenerateSQLStatementsSeparatedByBlankLines(t *testing.T) {
	d := schema.Document{Tables: []schema.Table{{ID: "a", Name: "A"}}}
	assert.Equal(t,
		"-- Generated SQL Schema\n\nDROP TABLE IF EXISTS a CASCADE;\n\nCREATE TABLE a (\n  id SERIAL PRIMARY KEY,\n  created_at TIMESTAMPTZ DEFAULT NOW()\n);\n",
		GenerateSQL(d))
}
