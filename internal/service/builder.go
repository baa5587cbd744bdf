package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/clinvet/fiscal-engine/internal/domain/document"
	"github.com/clinvet/fiscal-engine/internal/domain/emitter"
	"github.com/clinvet/fiscal-engine/pkg/logger"
)

// DefaultSeries é a série usada quando o chamador não informa uma
const DefaultSeries = "1"

// DocumentBuilder converte um evento de negócio em um documento fiscal
// persistido com número reservado. A construção é idempotente por
// (related_type, related_id, doc_type): reconstruir para o mesmo objeto de
// origem reaproveita o documento existente em vez de consumir novo número.
type DocumentBuilder struct {
	docRepo     document.Repository
	emitterRepo emitter.Repository
	numbering   *NumberingService
	sources     *SourceRegistry
	logger      logger.Logger
}

// NewDocumentBuilder cria um novo builder de documentos fiscais
func NewDocumentBuilder(docRepo document.Repository, emitterRepo emitter.Repository, numbering *NumberingService, sources *SourceRegistry, log logger.Logger) *DocumentBuilder {
	return &DocumentBuilder{
		docRepo:     docRepo,
		emitterRepo: emitterRepo,
		numbering:   numbering,
		sources:     sources,
		logger:      log,
	}
}

// Build cria (ou reaproveita) o documento fiscal para o objeto de origem.
// Quando o payload é nulo, ele é carregado do leitor de origem registrado.
// O documento resultante fica em QUEUED, pronto para emissão assíncrona.
func (b *DocumentBuilder) Build(ctx context.Context, relatedType document.RelatedType, relatedID, emitterID string, docType document.Type, payload *document.Payload) (*document.Document, error) {
	if !document.ValidRelatedType(relatedType) {
		return nil, fmt.Errorf("tipo de origem não suportado: %q", relatedType)
	}

	// Idempotência: o documento mais recente para a origem vence
	existing, err := b.docRepo.FindByRelated(ctx, relatedType, relatedID, docType)
	if err != nil {
		return nil, fmt.Errorf("falha ao verificar documento existente: %w", err)
	}
	if existing != nil {
		b.logger.Info("documento existente reaproveitado",
			"document_id", existing.ID, "related_type", relatedType, "related_id", relatedID)
		return existing, nil
	}

	em, err := b.emitterRepo.FindByID(ctx, emitterID)
	if err != nil {
		return nil, fmt.Errorf("falha ao buscar emissor: %w", err)
	}

	if payload == nil {
		payload, err = b.sources.Load(ctx, relatedType, relatedID)
		if err != nil {
			return nil, err
		}
	}
	if err := validatePayload(docType, payload); err != nil {
		return nil, err
	}

	// O número é reservado exatamente uma vez, na criação
	number, err := b.numbering.ReserveNext(ctx, em.ID, docType, DefaultSeries)
	if err != nil {
		return nil, err
	}

	doc, err := document.NewDocument(em.ID, em.ClinicID, docType, relatedType, relatedID, DefaultSeries, number)
	if err != nil {
		return nil, err
	}

	doc.Payload, err = payload.Marshal()
	if err != nil {
		return nil, err
	}

	if err := doc.MarkQueued(); err != nil {
		return nil, err
	}

	if err := b.docRepo.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("falha ao persistir documento: %w", err)
	}

	event := document.NewEvent(doc.ID, document.EventQueued, doc.Status)
	if err := b.docRepo.AppendEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("falha ao registrar evento de criação: %w", err)
	}

	b.logger.Info("documento fiscal criado",
		"document_id", doc.ID, "doc_type", docType, "series", doc.Series, "number", doc.Number)

	return doc, nil
}

// validatePayload garante que o payload tem a parte exigida pelo tipo
func validatePayload(docType document.Type, payload *document.Payload) error {
	switch docType {
	case document.TypeNFSe:
		if payload.Service == nil {
			return errors.New("payload de NFS-e exige os dados do serviço")
		}
	case document.TypeNFe:
		if len(payload.Items) == 0 {
			return errors.New("payload de NF-e exige ao menos um item")
		}
	}
	return nil
}
