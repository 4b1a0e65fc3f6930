package route

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bassista/docsweep/internal/api/controller"
	"github.com/bassista/docsweep/internal/app"
)

// SetupRoutes registers all control API routes on the engine.
func SetupRoutes(r *gin.Engine, appCtx *app.App) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "UP",
		})
	})

	dc := controller.NewDocumentController(appCtx.Registry, appCtx.Sweeper, appCtx.Executor, appCtx.Fs)
	sc := controller.NewSweeperController(appCtx.Registry, appCtx.Sweeper, appCtx.Warnings)

	publicRouter := r.Group("")

	publicRouter.GET("/documents", dc.List)
	publicRouter.POST("/document", dc.Open)
	publicRouter.DELETE("/document/:id", dc.Close)
	publicRouter.POST("/document/:id/content", dc.SetContent)
	publicRouter.POST("/document/:id/save", dc.SaveNow)

	publicRouter.GET("/sweeper", sc.Status)
	publicRouter.PUT("/sweeper", sc.SetInterval)
	publicRouter.PUT("/sweeper/warnings", sc.SetWarnings)
}
