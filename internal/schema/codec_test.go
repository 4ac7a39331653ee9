package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportJSONRoundTrip(t *testing.T) {
	d := Document{
		Tables: []Table{
			{ID: "u", Name: "Users", Color: "#fff", Position: Vec3{1, 2, 3}, Columns: []Column{
				{ID: "c1", Name: "email", Type: "text", Nullable: false, Unique: true},
			}},
			{ID: "p", Name: "Posts", Color: "#000"},
		},
		Relationships: []Relationship{{ID: "r1", From: "p", To: "u", ForeignKeyColumn: "user_id"}},
	}

	out, err := ExportJSON(d)
	require.NoError(t, err)
	again, err := ExportJSON(d)
	require.NoError(t, err)
	assert.Equal(t, out, again)

	back, err := ParseDocument([]byte(out))
	require.NoError(t, err)
	assert.Equal(t, d, back)
}

func TestExportJSONEmptyDocument(t *testing.T) {
	out, err := ExportJSON(Document{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"tables":[],"relationships":[]}`, out)
}

func TestParseDocumentDefaultsNullable(t *testing.T) {
	d, err := ParseDocument([]byte(`{"tables":[{"id":"a","name":"A","color":"","position":[0,0,0],
		"columns":[{"name":"x","type":"text"},{"name":"y","type":"int","nullable":false}]}]}`))
	require.NoError(t, err)
	require.Len(t, d.Tables[0].Columns, 2)
	assert.True(t, d.Tables[0].Columns[0].Nullable)
	assert.False(t, d.Tables[0].Columns[1].Nullable)
	assert.NotNil(t, d.Relationships)
}

func TestParseDocumentRejectsGarbage(t *testing.T) {
	_, err := ParseDocument([]byte(`{"tables":`))
	assert.Error(t, err)
}
