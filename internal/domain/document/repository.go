package document

import (
	"context"
	"time"
)

// Repository define a interface para operações de repositório de documentos fiscais
type Repository interface {
	// Create persiste um novo documento
	Create(ctx context.Context, doc *Document) error

	// FindByID busca um documento pelo ID
	FindByID(ctx context.Context, id string) (*Document, error)

	// FindByRelated busca o documento mais recente para um objeto de origem
	// (idempotência por (related_type, related_id, doc_type)). Retorna
	// (nil, nil) quando não há documento para a origem.
	FindByRelated(ctx context.Context, relatedType RelatedType, relatedID string, docType Type) (*Document, error)

	// Update persiste o estado atual do documento
	Update(ctx context.Context, doc *Document) error

	// List lista os documentos de um emissor com paginação, opcionalmente
	// filtrados por status
	List(ctx context.Context, emitterID string, status Status, limit, offset int) ([]*Document, error)

	// FindFailedSince retorna documentos FAILED criados após o instante
	// informado, limitados ao tamanho do lote da varredura de manutenção
	FindFailedSince(ctx context.Context, since time.Time, limit int) ([]*Document, error)

	// FindStaleProcessing retorna documentos PROCESSING sem atualização desde
	// o instante informado, limitados ao tamanho do lote
	FindStaleProcessing(ctx context.Context, olderThan time.Time, limit int) ([]*Document, error)

	// AppendEvent grava um evento imutável na trilha de auditoria
	AppendEvent(ctx context.Context, event *Event) error

	// ListEvents lista os eventos de um documento em ordem cronológica
	ListEvents(ctx context.Context, documentID string) ([]*Event, error)

	// CountEvents conta os eventos de um documento por tipo
	CountEvents(ctx context.Context, documentID string, eventType EventType) (int, error)
}
