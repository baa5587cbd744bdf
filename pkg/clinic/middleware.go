package clinic

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Erros comuns relacionados a operações de clínica
var (
	// ErrClinicNotSpecified ocorre quando um ID de clínica não é fornecido
	ErrClinicNotSpecified = errors.New("clinic ID não especificado")

	// ErrClinicNotFound ocorre quando uma clínica não é encontrada
	ErrClinicNotFound = errors.New("clínica não encontrada")
)

// Middleware garante que a requisição está escopada a uma clínica,
// aceitando o clinic ID já resolvido pelas claims do token ou informado via
// cabeçalho. É aplicado apenas aos grupos de rotas fiscais; rotas abertas
// como health e swagger ficam fora do escopo.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		clinicID := c.GetString("clinic_id")
		if clinicID == "" {
			clinicID = c.GetHeader("clinic-id")
		}
		if clinicID == "" {
			clinicID = c.GetHeader("X-Clinic-Id")
		}
		if clinicID == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"code":    http.StatusBadRequest,
				"message": "Clinic ID não fornecido",
				"details": "O cabeçalho 'clinic-id' é obrigatório",
			})
			return
		}

		c.Set("clinic_id", clinicID)
		c.Request = c.Request.WithContext(SetClinicIDContext(c.Request.Context(), clinicID))

		c.Next()
	}
}

// GetClinicID obtém o clinic ID de um contexto do Gin
func GetClinicID(c *gin.Context) string {
	return c.GetString("clinic_id")
}
