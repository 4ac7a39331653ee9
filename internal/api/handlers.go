package api

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"visubase/internal/dsl"
	"visubase/internal/layout"
	"visubase/internal/schema"
)

// GET /api/schema
func SnapshotHandler(store *schema.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, store.Snapshot())
	}
}

// PUT /api/schema replaces the whole graph with the posted document.
func ReplaceSchemaHandler(store *schema.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid body", "details": err.Error()})
			return
		}
		doc, err := schema.ParseDocument(body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON", "details": err.Error()})
			return
		}
		if err := store.Replace(doc); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, store.Snapshot())
	}
}

// PUT /api/schema/dsl replaces the graph with a plain-text schema description.
func ReplaceSchemaDSLHandler(store *schema.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		doc, err := dsl.Parse(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid schema text", "details": err.Error()})
			return
		}
		if err := store.Replace(doc); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, store.Snapshot())
	}
}

type tableReq struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Color    string          `json:"color"`
	Position *schema.Vec3    `json:"position"`
	Columns  []schema.Column `json:"columns"`
}

// POST /api/tables
// Without a position the table is placed by its creation order.
func CreateTableHandler(store *schema.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req tableReq
		if !bindJSON(c, &req) {
			return
		}
		t := schema.Table{ID: req.ID, Name: req.Name, Color: req.Color, Columns: req.Columns}
		if req.Position != nil {
			t.Position = *req.Position
		} else {
			t.Position = schema.Vec3(layout.PositionFor(len(store.Document().Tables)))
		}
		if t.Columns == nil {
			t.Columns = []schema.Column{}
		}
		created, err := store.AddTable(t)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, created)
	}
}

type tablePatch struct {
	Name     *string      `json:"name"`
	Position *schema.Vec3 `json:"position"`
}

// PATCH /api/tables/:id renames and/or moves a table.
func UpdateTableHandler(store *schema.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		var req tablePatch
		if !bindJSON(c, &req) {
			return
		}
		if req.Name != nil {
			if err := store.RenameTable(id, *req.Name); err != nil {
				fail(c, err)
				return
			}
		}
		if req.Position != nil {
			if err := store.UpdateTablePosition(id, *req.Position); err != nil {
				fail(c, err)
				return
			}
		}
		t, ok := store.Document().TableByID(id)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found", "details": id})
			return
		}
		c.JSON(http.StatusOK, t)
	}
}

// DELETE /api/tables/:id also drops every relationship touching the table.
func DeleteTableHandler(store *schema.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := store.DeleteTable(c.Param("id")); err != nil {
			fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// POST /api/tables/:id/columns
func AddColumnHandler(store *schema.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var col schema.Column
		if !bindJSON(c, &col) {
			return
		}
		created, err := store.AddColumn(c.Param("id"), col)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, created)
	}
}

// PUT /api/tables/:id/columns/:index
func UpdateColumnHandler(store *schema.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		idx, ok := indexParam(c, "index")
		if !ok {
			return
		}
		var col schema.Column
		if !bindJSON(c, &col) {
			return
		}
		if err := store.UpdateColumn(c.Param("id"), idx, col); err != nil {
			fail(c, err)
			return
		}
		t, _ := store.Document().TableByID(c.Param("id"))
		c.JSON(http.StatusOK, t)
	}
}

// DELETE /api/tables/:id/columns/:index
func DeleteColumnHandler(store *schema.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		idx, ok := indexParam(c, "index")
		if !ok {
			return
		}
		if err := store.DeleteColumn(c.Param("id"), idx); err != nil {
			fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// POST /api/relationships
func AddRelationshipHandler(store *schema.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var r schema.Relationship
		if !bindJSON(c, &r) {
			return
		}
		created, err := store.AddRelationship(r)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, created)
	}
}

type relationshipPatch struct {
	ForeignKeyColumn string `json:"foreignKeyColumn"`
	FromColumn       string `json:"fromColumn"`
	ToColumn         string `json:"toColumn"`
}

// PUT /api/relationships/:index
func UpdateRelationshipHandler(store *schema.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		idx, ok := indexParam(c, "index")
		if !ok {
			return
		}
		var req relationshipPatch
		if !bindJSON(c, &req) {
			return
		}
		if err := store.UpdateRelationship(idx, req.ForeignKeyColumn, req.FromColumn, req.ToColumn); err != nil {
			fail(c, err)
			return
		}
		rels := store.Document().Relationships
		if idx >= len(rels) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found", "details": "relationship was removed"})
			return
		}
		c.JSON(http.StatusOK, rels[idx])
	}
}

// DELETE /api/relationships/:index
func DeleteRelationshipHandler(store *schema.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		idx, ok := indexParam(c, "index")
		if !ok {
			return
		}
		if err := store.DeleteRelationship(idx); err != nil {
			fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

type uiReq struct {
	ID string `json:"id"` // empty clears
}

// PUT /api/ui/selected
func SelectHandler(store *schema.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req uiReq
		if !bindJSON(c, &req) {
			return
		}
		if err := store.SetSelected(req.ID); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, store.Snapshot())
	}
}

// PUT /api/ui/connect
func ConnectModeHandler(store *schema.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req uiReq
		if !bindJSON(c, &req) {
			return
		}
		if err := store.SetConnectMode(req.ID); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, store.Snapshot())
	}
}

// POST /api/ui/click/:id
func ClickHandler(store *schema.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		rel, err := store.ClickTable(c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"created": rel, "state": store.Snapshot()})
	}
}
