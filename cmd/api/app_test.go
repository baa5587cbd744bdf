package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/clinvet/fiscal-engine/internal/adapter/api/controller"
	"github.com/clinvet/fiscal-engine/pkg/logger"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	t.Setenv("JWT_SECRET_KEY", "segredo-de-teste")
	gin.SetMode(gin.TestMode)

	log := logger.NewLogger()
	app := &App{
		router: gin.New(),
		logger: log,
	}
	app.setupRoutes(
		controller.NewEmitterController(nil, log),
		controller.NewCertificateController(nil, nil, nil, log),
		controller.NewDocumentController(nil, nil, nil, nil, log),
	)
	return app
}

func TestHealthIsOpenWithoutClinicHeader(t *testing.T) {
	app := newTestApp(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	app.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSwaggerIsOpenWithoutClinicHeader(t *testing.T) {
	app := newTestApp(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil)
	app.router.ServeHTTP(rec, req)

	assert.NotEqual(t, http.StatusBadRequest, rec.Code)
	assert.NotEqual(t, http.StatusNotFound, rec.Code)
}

func TestFiscalRoutesRequireAuthentication(t *testing.T) {
	app := newTestApp(t)

	for _, path := range []string{"/api/v1/emitters", "/api/v1/documents", "/api/v1/certificates/expiring"} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		app.router.ServeHTTP(rec, req)

		// Sem token as rotas fiscais param no middleware de autenticação
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}
