package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/clinvet/fiscal-engine/internal/domain/document"
)

// ErrUnknownSource indica um tipo de origem sem leitor registrado
var ErrUnknownSource = errors.New("tipo de origem sem leitor registrado")

// SourceReader carrega o payload normalizado de um objeto de negócio
// (pedido, consulta ou orçamento). As implementações são visões somente
// leitura expostas pela aplicação que hospeda este serviço.
type SourceReader interface {
	Load(ctx context.Context, relatedID string) (*document.Payload, error)
}

// SourceRegistry roteia cada tipo de origem para o leitor correspondente.
// A seleção é um registro explícito por tipo, não introspecção dinâmica.
type SourceRegistry struct {
	readers map[document.RelatedType]SourceReader
}

// NewSourceRegistry cria um registro vazio de leitores de origem
func NewSourceRegistry() *SourceRegistry {
	return &SourceRegistry{readers: make(map[document.RelatedType]SourceReader)}
}

// Register registra um leitor para um tipo de origem suportado
func (r *SourceRegistry) Register(relatedType document.RelatedType, reader SourceReader) error {
	if !document.ValidRelatedType(relatedType) {
		return fmt.Errorf("tipo de origem não suportado: %q", relatedType)
	}
	r.readers[relatedType] = reader
	return nil
}

// Load carrega o payload do objeto de origem informado
func (r *SourceRegistry) Load(ctx context.Context, relatedType document.RelatedType, relatedID string) (*document.Payload, error) {
	reader, ok := r.readers[relatedType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, relatedType)
	}
	return reader.Load(ctx, relatedID)
}
