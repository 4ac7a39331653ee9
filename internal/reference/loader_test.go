package reference

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinCatalog(t *testing.T) {
	c := Builtin()
	codes := c.Codes()
	assert.Len(t, codes, 21)
	assert.Equal(t, "text", codes[0])
	for _, want := range []string{"uuid", "jsonb", "double precision", "bigserial", "bytea"} {
		assert.Contains(t, codes, want)
	}
}

func TestKnown(t *testing.T) {
	c := Builtin()
	for _, typ := range []string{"text", "TEXT", "varchar(255)", "numeric(10, 2)", "bool", "int4", "uuid[]", " jsonb "} {
		assert.True(t, c.Known(typ), typ)
	}
	for _, typ := range []string{"", "strng", "money", "geometry"} {
		assert.False(t, c.Known(typ), typ)
	}
}

func TestLookupGroups(t *testing.T) {
	c := Builtin()
	cases := map[string]string{
		"int":                      "number",
		"numeric(10,2)":            "number",
		"BOOL":                     "logical",
		"timestamp with time zone": "time",
		"uuid":                     "identity",
		"jsonb":                    "document",
		"character varying(40)":    "text",
	}
	for typ, group := range cases {
		it, ok := c.Lookup(typ)
		require.True(t, ok, typ)
		assert.Equal(t, group, it.Group, typ)
	}
	it, ok := c.Lookup("int")
	require.True(t, ok)
	assert.Equal(t, "integer", it.Code)

	_, ok = c.Lookup("money")
	assert.False(t, ok)
}

func TestLoadCatalogMergesExtraFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "postgis.yaml"), []byte(`
name: postgis
items:
  - code: geometry
  - code: text
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	c, err := LoadCatalog(dir)
	require.NoError(t, err)
	assert.True(t, c.Known("geometry"))
	assert.Len(t, c.Items, 22, "duplicate codes are skipped")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yml"), []byte("items:\n  - label: x\n"), 0o644))
	_, err = LoadCatalog(dir)
	assert.Error(t, err)
}

func TestLoadCatalogEmptyDir(t *testing.T) {
	c, err := LoadCatalog("")
	require.NoError(t, err)
	assert.Equal(t, Builtin(), c)

	_, err = LoadCatalog(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
