package service

import (
	"context"
	"time"

	"github.com/clinvet/fiscal-engine/internal/domain/document"
	"github.com/clinvet/fiscal-engine/pkg/logger"
)

const (
	// DefaultRetryLookback limita a varredura aos documentos falhados
	// recentes; falhas antigas exigem intervenção manual
	DefaultRetryLookback = 24 * time.Hour

	// DefaultMaxRetries limita quantas vezes a varredura reenvia o mesmo
	// documento antes de desistir
	DefaultMaxRetries = 3

	// DefaultStaleAfter define há quanto tempo um documento precisa estar
	// em processamento para ser considerado órfão e re-consultado
	DefaultStaleAfter = 10 * time.Minute

	// DefaultBatchSize limita o tamanho de cada varredura
	DefaultBatchSize = 50
)

// Enqueuer publica documentos na fila de emissão
type Enqueuer interface {
	EnqueueEmission(ctx context.Context, documentID string) error
}

// MaintenanceService varre documentos presos no pipeline: reenvia falhas
// recentes com limite de tentativas e re-consulta emissões órfãs que ficaram
// em processamento sem resposta.
type MaintenanceService struct {
	docRepo  document.Repository
	emission *EmissionService
	enqueuer Enqueuer
	logger   logger.Logger

	RetryLookback time.Duration
	MaxRetries    int
	StaleAfter    time.Duration
	BatchSize     int
}

// NewMaintenanceService cria um novo serviço de manutenção
func NewMaintenanceService(docRepo document.Repository, emission *EmissionService, enqueuer Enqueuer, log logger.Logger) *MaintenanceService {
	return &MaintenanceService{
		docRepo:       docRepo,
		emission:      emission,
		enqueuer:      enqueuer,
		logger:        log,
		RetryLookback: DefaultRetryLookback,
		MaxRetries:    DefaultMaxRetries,
		StaleAfter:    DefaultStaleAfter,
		BatchSize:     DefaultBatchSize,
	}
}

// RetryFailed reenfileira documentos que falharam dentro da janela de
// retentativa. Cada reenvio grava um evento próprio; documentos que já
// esgotaram o limite de tentativas são ignorados.
func (s *MaintenanceService) RetryFailed(ctx context.Context) error {
	since := time.Now().Add(-s.RetryLookback)
	docs, err := s.docRepo.FindFailedSince(ctx, since, s.BatchSize)
	if err != nil {
		return err
	}

	retried := 0
	for _, doc := range docs {
		attempts, err := s.docRepo.CountEvents(ctx, doc.ID, document.EventMaintenanceRetry)
		if err != nil {
			s.logger.Error("falha ao contar retentativas", "document_id", doc.ID, "error", err)
			continue
		}
		if attempts >= s.MaxRetries {
			s.logger.Warn("documento esgotou retentativas automáticas",
				"document_id", doc.ID, "attempts", attempts)
			continue
		}

		event := document.NewEvent(doc.ID, document.EventMaintenanceRetry, doc.Status)
		if err := s.docRepo.AppendEvent(ctx, event); err != nil {
			s.logger.Error("falha ao gravar evento de retentativa", "document_id", doc.ID, "error", err)
			continue
		}

		if err := s.enqueuer.EnqueueEmission(ctx, doc.ID); err != nil {
			s.logger.Error("falha ao reenfileirar documento", "document_id", doc.ID, "error", err)
			continue
		}
		retried++
	}

	if retried > 0 {
		s.logger.Info("varredura de retentativas concluída",
			"candidates", len(docs), "retried", retried)
	}
	return nil
}

// ResumeStale re-consulta documentos que ficaram em processamento além do
// esperado, tipicamente por queda do worker entre o envio e a resposta
func (s *MaintenanceService) ResumeStale(ctx context.Context) error {
	before := time.Now().Add(-s.StaleAfter)
	docs, err := s.docRepo.FindStaleProcessing(ctx, before, s.BatchSize)
	if err != nil {
		return err
	}

	for _, doc := range docs {
		if err := s.emission.Poll(ctx, doc.ID); err != nil {
			s.logger.Error("falha ao re-consultar documento órfão",
				"document_id", doc.ID, "error", err)
		}
	}

	if len(docs) > 0 {
		s.logger.Info("varredura de documentos órfãos concluída", "count", len(docs))
	}
	return nil
}
