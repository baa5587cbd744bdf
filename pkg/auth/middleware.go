package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/clinvet/fiscal-engine/pkg/clinic"
)

// JWTAuthMiddleware cria um middleware para autenticação JWT
func JWTAuthMiddleware() gin.HandlerFunc {
	jwtService, err := NewJWTService()
	if err != nil {
		// Se não conseguir criar o serviço JWT, retornar erro 500
		return func(c *gin.Context) {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"code":    http.StatusInternalServerError,
				"message": "Erro ao configurar autenticação",
				"details": "O serviço JWT não foi inicializado corretamente",
			})
		}
	}

	return func(c *gin.Context) {
		// Obter o token do cabeçalho Authorization
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    http.StatusUnauthorized,
				"message": "Autenticação requerida",
				"details": "O cabeçalho Authorization não foi fornecido",
			})
			return
		}

		// Verificar o formato "Bearer <token>"
		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    http.StatusUnauthorized,
				"message": "Formato de token inválido",
				"details": "Use o formato 'Bearer <token>'",
			})
			return
		}

		// Validar o token
		claims, err := jwtService.ValidateToken(tokenParts[1])
		if err != nil {
			message := "Token inválido"
			if err == ErrExpiredToken {
				message = "Token expirado"
			}

			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    http.StatusUnauthorized,
				"message": message,
				"details": err.Error(),
			})
			return
		}

		// Armazenar as claims no contexto
		c.Set("user_id", claims.UserID)
		c.Set("clinic_id", claims.ClinicID)
		c.Set("user_email", claims.Email)
		c.Set("user_role", claims.Role)

		// Propagar o clinic ID para os repositórios
		c.Request = c.Request.WithContext(clinic.SetClinicIDContext(c.Request.Context(), claims.ClinicID))

		c.Next()
	}
}
