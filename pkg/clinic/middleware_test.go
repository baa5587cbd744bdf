package clinic

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClinicRouter() (*gin.Engine, *string) {
	gin.SetMode(gin.TestMode)

	var captured string
	router := gin.New()
	router.GET("/protegida", Middleware(), func(c *gin.Context) {
		captured = GetClinicID(c)
		c.Status(http.StatusOK)
	})
	return router, &captured
}

func TestMiddlewareRequiresClinic(t *testing.T) {
	router, _ := newClinicRouter()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protegida", nil)
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMiddlewareAcceptsHeader(t *testing.T) {
	router, captured := newClinicRouter()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protegida", nil)
	req.Header.Set("clinic-id", "clinica-1")
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "clinica-1", *captured)
}

func TestMiddlewareAcceptsAlternateHeader(t *testing.T) {
	router, captured := newClinicRouter()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protegida", nil)
	req.Header.Set("X-Clinic-Id", "clinica-2")
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "clinica-2", *captured)
}

func TestMiddlewareUsesClinicFromClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var captured string
	router := gin.New()
	// As claims do token preenchem clinic_id antes do middleware de clínica
	router.GET("/protegida", func(c *gin.Context) {
		c.Set("clinic_id", "clinica-do-token")
	}, Middleware(), func(c *gin.Context) {
		captured = GetClinicID(c)
		c.Status(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protegida", nil)
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "clinica-do-token", captured)
}
