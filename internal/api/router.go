package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"visubase/internal/reference"
	"visubase/internal/schema"
	"visubase/internal/state"
)

type Deps struct {
	Store    *schema.Store
	Projects *state.Projects
	Types    reference.TypeCatalog
	Backend  Backend
	Origins  []string
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.Default()
	if len(d.Origins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:  d.Origins,
			AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:  []string{"Origin", "Content-Type", "Accept", HeaderBackendURL, HeaderBackendKey},
			ExposeHeaders: []string{"Content-Disposition", "X-Limit", "X-Offset"},
			MaxAge:        12 * time.Hour,
		}))
	}

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/schema", SnapshotHandler(d.Store))
		apiGroup.PUT("/schema", ReplaceSchemaHandler(d.Store))
		apiGroup.PUT("/schema/dsl", ReplaceSchemaDSLHandler(d.Store))

		apiGroup.POST("/tables", CreateTableHandler(d.Store))
		apiGroup.PATCH("/tables/:id", UpdateTableHandler(d.Store))
		apiGroup.DELETE("/tables/:id", DeleteTableHandler(d.Store))
		apiGroup.POST("/tables/:id/columns", AddColumnHandler(d.Store))
		apiGroup.PUT("/tables/:id/columns/:index", UpdateColumnHandler(d.Store))
		apiGroup.DELETE("/tables/:id/columns/:index", DeleteColumnHandler(d.Store))

		apiGroup.POST("/relationships", AddRelationshipHandler(d.Store))
		apiGroup.PUT("/relationships/:index", UpdateRelationshipHandler(d.Store))
		apiGroup.DELETE("/relationships/:index", DeleteRelationshipHandler(d.Store))

		apiGroup.PUT("/ui/selected", SelectHandler(d.Store))
		apiGroup.PUT("/ui/connect", ConnectModeHandler(d.Store))
		apiGroup.POST("/ui/click/:id", ClickHandler(d.Store))

		apiGroup.GET("/export/sql", ExportSQLHandler(d.Store))
		apiGroup.GET("/export/json", ExportJSONHandler(d.Store))
		apiGroup.GET("/meta/types", TypesHandler(d.Types))
		apiGroup.GET("/meta/setup-sql", SetupSQLHandler())
		apiGroup.GET("/lint", LintHandler(d.Store, d.Types))

		apiGroup.POST("/sync", SyncHandler(d.Store, d.Backend))
		apiGroup.POST("/sync/tables", CreateTablesHandler(d.Store, d.Backend))
		apiGroup.POST("/sync/pull", PullHandler(d.Store, d.Backend))
		apiGroup.POST("/import", ImportHandler(d.Store, d.Backend))

		apiGroup.GET("/data/:table", ListRowsHandler(d.Store, d.Backend))
		apiGroup.POST("/data/:table", InsertRowHandler(d.Store, d.Types, d.Backend))
		apiGroup.PATCH("/data/:table/:id", UpdateRowHandler(d.Store, d.Types, d.Backend))
		apiGroup.DELETE("/data/:table/:id", DeleteRowHandler(d.Store, d.Backend))

		apiGroup.GET("/projects", ListProjectsHandler(d.Projects))
		apiGroup.POST("/projects", SaveProjectHandler(d.Projects))
		apiGroup.POST("/projects/:name/load", LoadProjectHandler(d.Projects, d.Store))
		apiGroup.DELETE("/projects/:name", DeleteProjectHandler(d.Projects))
		apiGroup.POST("/reset", ResetHandler(d.Store))
	}
	return r
}

func RunServer(addr string, d Deps) error {
	return NewRouter(d).Run(addr)
}
