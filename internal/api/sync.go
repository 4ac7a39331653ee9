package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"visubase/internal/baas"
	"visubase/internal/schema"
	"visubase/internal/syncer"
)

// Backend bundles what the sync endpoints need.
type Backend struct {
	Orchestrator *syncer.Orchestrator
	// Dialer opens connections for the row endpoints.
	Dialer baas.Dialer
	// Credentials completes the pair sent with a request from configured or stored values.
	Credentials func(baas.Credentials) baas.Credentials
	SchemaName  string
}

type syncReq struct {
	URL  string `json:"url"`
	Key  string `json:"key"`
	Name string `json:"name"`
}

// readSyncReq accepts an empty body; everything then comes from configuration.
func readSyncReq(c *gin.Context, be Backend) (baas.Credentials, string, bool) {
	var req syncReq
	if c.Request.ContentLength != 0 {
		if !bindJSON(c, &req) {
			return baas.Credentials{}, "", false
		}
	}
	creds := baas.Credentials{URL: req.URL, Key: req.Key}
	if be.Credentials != nil {
		creds = be.Credentials(creds)
	}
	name := req.Name
	if name == "" {
		name = be.SchemaName
	}
	return creds, name, true
}

// Sync results always carry 200 unless the request was rejected before
// contacting the backend; the body tells success, partial and failed apart.
func resultStatus(res syncer.Result) int {
	switch res.Outcome {
	case syncer.OutcomeInvalid:
		return http.StatusBadRequest
	case syncer.OutcomeFailed:
		return http.StatusBadGateway
	default:
		return http.StatusOK
	}
}

// POST /api/sync
func SyncHandler(store *schema.Store, be Backend) gin.HandlerFunc {
	return func(c *gin.Context) {
		creds, name, ok := readSyncReq(c, be)
		if !ok {
			return
		}
		res := be.Orchestrator.Sync(c.Request.Context(), creds, name, store.Document())
		c.JSON(resultStatus(res), res)
	}
}

// POST /api/sync/tables
func CreateTablesHandler(store *schema.Store, be Backend) gin.HandlerFunc {
	return func(c *gin.Context) {
		creds, _, ok := readSyncReq(c, be)
		if !ok {
			return
		}
		res := be.Orchestrator.CreateTablesOnly(c.Request.Context(), creds, store.Document())
		c.JSON(resultStatus(res), res)
	}
}

// POST /api/sync/pull replaces the local graph with the saved one.
func PullHandler(store *schema.Store, be Backend) gin.HandlerFunc {
	return func(c *gin.Context) {
		creds, name, ok := readSyncReq(c, be)
		if !ok {
			return
		}
		doc, res := be.Orchestrator.Pull(c.Request.Context(), creds, name)
		if res.Success {
			if err := store.Replace(doc); err != nil {
				fail(c, err)
				return
			}
		}
		c.JSON(resultStatus(res), gin.H{"result": res, "state": store.Snapshot()})
	}
}

// POST /api/import appends the backend's existing tables to the graph.
func ImportHandler(store *schema.Store, be Backend) gin.HandlerFunc {
	return func(c *gin.Context) {
		creds, _, ok := readSyncReq(c, be)
		if !ok {
			return
		}
		tables, res := be.Orchestrator.Import(c.Request.Context(), creds)
		added := make([]schema.Table, 0, len(tables))
		for _, t := range tables {
			created, err := store.AddTable(t)
			if err != nil {
				fail(c, err)
				return
			}
			added = append(added, created)
		}
		c.JSON(resultStatus(res), gin.H{"result": res, "tables": added})
	}
}
