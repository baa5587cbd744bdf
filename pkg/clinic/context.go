package clinic

import (
	"context"
)

type contextKey string

const (
	// clinicIDKey é a chave usada para armazenar o clinic ID no contexto
	clinicIDKey contextKey = "clinic_id"
)

// SetClinicIDContext define o clinic ID no contexto
func SetClinicIDContext(ctx context.Context, clinicID string) context.Context {
	return context.WithValue(ctx, clinicIDKey, clinicID)
}

// GetClinicIDFromContext obtém o clinic ID do contexto
func GetClinicIDFromContext(ctx context.Context) string {
	if clinicID, ok := ctx.Value(clinicIDKey).(string); ok {
		return clinicID
	}
	return ""
}
