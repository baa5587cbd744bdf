package certificate

import (
	"context"
)

// Repository define a interface para operações de repositório de certificados digitais
type Repository interface {
	// Create cria um novo certificado digital
	Create(ctx context.Context, cert *Certificate) error

	// FindByID busca um certificado pelo ID
	FindByID(ctx context.Context, id string) (*Certificate, error)

	// FindByEmitter lista os certificados de um emissor, mais recentes primeiro
	FindByEmitter(ctx context.Context, emitterID string) ([]*Certificate, error)

	// FindActive busca o certificado ativo (mais recente) de um emissor
	FindActive(ctx context.Context, emitterID string) (*Certificate, error)

	// FindExpiring retorna certificados que expirarão em X dias
	FindExpiring(ctx context.Context, daysToExpire int) ([]*Certificate, error)
}
