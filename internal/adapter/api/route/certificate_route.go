package route

import (
	"github.com/gin-gonic/gin"

	"github.com/clinvet/fiscal-engine/internal/adapter/api/controller"
	"github.com/clinvet/fiscal-engine/pkg/auth"
	"github.com/clinvet/fiscal-engine/pkg/clinic"
)

// SetupCertificateRoutes configura as rotas transversais de certificados
func SetupCertificateRoutes(router *gin.RouterGroup, certificateController *controller.CertificateController) {
	certificateRouter := router.Group("/certificates")
	certificateRouter.Use(auth.JWTAuthMiddleware(), clinic.Middleware())
	{
		certificateRouter.GET("/expiring", certificateController.ListExpiring)
	}
}
