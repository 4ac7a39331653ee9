package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"visubase/internal/schema"
	"visubase/internal/state"
)

// GET /api/projects
func ListProjectsHandler(projects *state.Projects) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := projects.List(c.Request.Context())
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

type projectReq struct {
	Name string `json:"name"`
}

// POST /api/projects saves the current graph under a name.
func SaveProjectHandler(projects *state.Projects) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req projectReq
		if !bindJSON(c, &req) {
			return
		}
		if err := projects.Save(c.Request.Context(), req.Name); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"ok": true, "name": req.Name})
	}
}

// POST /api/projects/:name/load
func LoadProjectHandler(projects *state.Projects, store *schema.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := projects.Load(c.Request.Context(), c.Param("name")); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, store.Snapshot())
	}
}

// DELETE /api/projects/:name
func DeleteProjectHandler(projects *state.Projects) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := projects.Delete(c.Request.Context(), c.Param("name")); err != nil {
			fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// POST /api/reset starts over from the three default boxes.
func ResetHandler(store *schema.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := store.Replace(schema.DefaultDocument()); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, store.Snapshot())
	}
}
