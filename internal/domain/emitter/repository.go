package emitter

import (
	"context"
)

// Repository define a interface para operações de repositório de emissores fiscais
type Repository interface {
	// Create cria um novo emissor
	Create(ctx context.Context, em *Emitter) error

	// FindByID busca um emissor pelo ID
	FindByID(ctx context.Context, id string) (*Emitter, error)

	// FindByClinic busca o emissor de uma clínica (no máximo um por clínica)
	FindByClinic(ctx context.Context, clinicID string) (*Emitter, error)

	// Update atualiza os dados de um emissor existente
	Update(ctx context.Context, em *Emitter) error

	// List lista os emissores com paginação
	List(ctx context.Context, limit, offset int) ([]*Emitter, error)

	// ExistsByClinic verifica se a clínica já possui um emissor
	ExistsByClinic(ctx context.Context, clinicID string) (bool, error)
}
