package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"visubase/internal/baas"
	"visubase/internal/pg"
	"visubase/internal/reference"
	"visubase/internal/schema"
	"visubase/internal/supabase"
)

// GET /api/meta/types
func TypesHandler(types reference.TypeCatalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"types": types.Codes(), "items": types.Items})
	}
}

// GET /api/lint
func LintHandler(store *schema.Store, types reference.TypeCatalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		issues := schema.Lint(store.Document(), types.Known)
		if issues == nil {
			issues = []schema.Issue{}
		}
		c.JSON(http.StatusOK, gin.H{"issues": issues})
	}
}

// GET /api/export/sql
func ExportSQLHandler(store *schema.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Disposition", `attachment; filename="schema.sql"`)
		c.String(http.StatusOK, pg.GenerateSQL(store.Document()))
	}
}

// GET /api/export/json
func ExportJSONHandler(store *schema.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		out, err := schema.ExportJSON(store.Document())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed", "details": err.Error()})
			return
		}
		c.Header("Content-Disposition", `attachment; filename="schema.json"`)
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(out))
	}
}

// GET /api/meta/setup-sql returns the one-time SQL a user runs by hand when
// the backend cannot bootstrap itself.
func SetupSQLHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.String(http.StatusOK, baas.SetupSQL+"\n\n"+supabase.SetupFunctionSQL+"\n")
	}
}
