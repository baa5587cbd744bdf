package route

import (
	"github.com/gin-gonic/gin"

	"github.com/clinvet/fiscal-engine/internal/adapter/api/controller"
	"github.com/clinvet/fiscal-engine/pkg/auth"
	"github.com/clinvet/fiscal-engine/pkg/clinic"
)

// SetupEmitterRoutes configura as rotas para o módulo de emissores fiscais
func SetupEmitterRoutes(router *gin.RouterGroup, emitterController *controller.EmitterController, certificateController *controller.CertificateController) {
	emitterRouter := router.Group("/emitters")
	emitterRouter.Use(auth.JWTAuthMiddleware(), clinic.Middleware())
	{
		emitterRouter.GET("", emitterController.List)
		emitterRouter.GET("/current", emitterController.GetCurrent)
		emitterRouter.GET("/:id", emitterController.Get)
		emitterRouter.POST("", emitterController.Create)
		emitterRouter.PUT("/:id", emitterController.Update)

		// Certificados são sempre acessados pelo emissor dono
		emitterRouter.GET("/:id/certificates", certificateController.ListByEmitter)
		emitterRouter.POST("/:id/certificates", certificateController.Upload)
	}
}
