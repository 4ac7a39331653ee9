package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"visubase/internal/baas"
	"visubase/internal/pg"
	"visubase/internal/reference"
	"visubase/internal/schema"
)

// Requests may name another project than the configured one.
const (
	HeaderBackendURL = "X-Backend-Url"
	HeaderBackendKey = "X-Backend-Key"
)

// dataTarget resolves :table against the designed tables by SQL name or id.
func dataTarget(c *gin.Context, store *schema.Store) (schema.Table, string, bool) {
	name := c.Param("table")
	for _, t := range store.Document().Tables {
		if pg.Slug(t.Name) == name || t.ID == name {
			return t, pg.Slug(t.Name), true
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "Unknown table", "details": name})
	return schema.Table{}, "", false
}

// openRows dials the backend and checks it can serve rows. The caller closes it.
func openRows(c *gin.Context, be Backend) (baas.RowStore, func(), bool) {
	creds := baas.Credentials{URL: c.GetHeader(HeaderBackendURL), Key: c.GetHeader(HeaderBackendKey)}
	if be.Credentials != nil {
		creds = be.Credentials(creds)
	}
	if !creds.Complete() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing credentials", "details": "backend url and key are required"})
		return nil, nil, false
	}
	if be.Dialer == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "No backend configured"})
		return nil, nil, false
	}
	conn, err := be.Dialer.Dial(c.Request.Context(), creds)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Connection failed", "details": err.Error()})
		return nil, nil, false
	}
	rows, ok := conn.(baas.RowStore)
	if !ok {
		conn.Close()
		c.JSON(http.StatusNotImplemented, gin.H{"error": "Backend cannot browse rows"})
		return nil, nil, false
	}
	return rows, conn.Close, true
}

func failRows(c *gin.Context, err error) {
	if errors.Is(err, baas.ErrRowNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found", "details": err.Error()})
		return
	}
	c.JSON(http.StatusBadGateway, gin.H{"error": "Backend error", "details": err.Error()})
}

// GET /api/data/:table
func ListRowsHandler(store *schema.Store, be Backend) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, table, ok := dataTarget(c, store)
		if !ok {
			return
		}
		lp := parseListParams(c.Request.URL.Query())
		rs, closeFn, ok := openRows(c, be)
		if !ok {
			return
		}
		defer closeFn()

		rows, err := rs.SelectRows(c.Request.Context(), table, lp.Limit, lp.Offset)
		if err != nil {
			failRows(c, err)
			return
		}
		c.Header("X-Limit", strconv.Itoa(lp.Limit))
		c.Header("X-Offset", strconv.Itoa(lp.Offset))
		c.JSON(http.StatusOK, rows)
	}
}

// POST /api/data/:table
func InsertRowHandler(store *schema.Store, types reference.TypeCatalog, be Backend) gin.HandlerFunc {
	return func(c *gin.Context) {
		t, table, ok := dataTarget(c, store)
		if !ok {
			return
		}
		var body map[string]any
		if !bindJSON(c, &body) {
			return
		}
		if errs := validateRow(t, types, body, true); len(errs) > 0 {
			c.JSON(http.StatusBadRequest, gin.H{"errors": errs})
			return
		}
		rs, closeFn, ok := openRows(c, be)
		if !ok {
			return
		}
		defer closeFn()

		row, err := rs.InsertRow(c.Request.Context(), table, body)
		if err != nil {
			failRows(c, err)
			return
		}
		c.JSON(http.StatusCreated, row)
	}
}

// PATCH /api/data/:table/:id
func UpdateRowHandler(store *schema.Store, types reference.TypeCatalog, be Backend) gin.HandlerFunc {
	return func(c *gin.Context) {
		t, table, ok := dataTarget(c, store)
		if !ok {
			return
		}
		var body map[string]any
		if !bindJSON(c, &body) {
			return
		}
		if len(body) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "details": "no fields to update"})
			return
		}
		if errs := validateRow(t, types, body, false); len(errs) > 0 {
			c.JSON(http.StatusBadRequest, gin.H{"errors": errs})
			return
		}
		rs, closeFn, ok := openRows(c, be)
		if !ok {
			return
		}
		defer closeFn()

		row, err := rs.UpdateRow(c.Request.Context(), table, c.Param("id"), body)
		if err != nil {
			failRows(c, err)
			return
		}
		c.JSON(http.StatusOK, row)
	}
}

// DELETE /api/data/:table/:id
func DeleteRowHandler(store *schema.Store, be Backend) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, table, ok := dataTarget(c, store)
		if !ok {
			return
		}
		rs, closeFn, ok := openRows(c, be)
		if !ok {
			return
		}
		defer closeFn()

		if err := rs.DeleteRow(c.Request.Context(), table, c.Param("id")); err != nil {
			failRows(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
