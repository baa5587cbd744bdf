package route

import (
	"github.com/gin-gonic/gin"

	"github.com/clinvet/fiscal-engine/internal/adapter/api/controller"
	"github.com/clinvet/fiscal-engine/pkg/auth"
	"github.com/clinvet/fiscal-engine/pkg/clinic"
)

// SetupDocumentRoutes configura as rotas do ciclo de vida dos documentos fiscais
func SetupDocumentRoutes(router *gin.RouterGroup, documentController *controller.DocumentController) {
	documentRouter := router.Group("/documents")
	documentRouter.Use(auth.JWTAuthMiddleware(), clinic.Middleware())
	{
		documentRouter.GET("", documentController.List)
		documentRouter.GET("/:id", documentController.Get)
		documentRouter.GET("/:id/events", documentController.ListEvents)
		documentRouter.POST("", documentController.Issue)
		documentRouter.POST("/:id/poll", documentController.Poll)
		documentRouter.POST("/:id/cancel", documentController.Cancel)
	}
}
