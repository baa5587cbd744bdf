package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/clinvet/fiscal-engine/internal/domain/document"
	"github.com/clinvet/fiscal-engine/pkg/logger"
)

// ErrCounterConflict indica corrida na criação da linha do contador; a
// reserva deve ser reexecutada
var ErrCounterConflict = errors.New("conflito ao criar contador de numeração")

// CounterStore é o único caminho de escrita do contador de numeração. A
// implementação deve tomar lock exclusivo de linha dentro de uma transação e
// retornar ErrCounterConflict quando perder a corrida de criação da linha.
type CounterStore interface {
	ReserveNext(ctx context.Context, emitterID string, docType document.Type, series string) (int64, error)
}

// NumberingService reserva números de documentos fiscais por
// (emissor, tipo, série). Os números retornados são estritamente crescentes
// e nunca reutilizados; lacunas após falha no meio da transação são
// aceitáveis, duplicatas não.
type NumberingService struct {
	store  CounterStore
	logger logger.Logger
}

// NewNumberingService cria um novo serviço de numeração
func NewNumberingService(store CounterStore, log logger.Logger) *NumberingService {
	return &NumberingService{store: store, logger: log}
}

// ReserveNext reserva o próximo número para a chave informada. Conflitos de
// concorrência na criação do contador são repetidos de forma transparente;
// qualquer outro erro de persistência propaga ao chamador — a numeração
// nunca pula nem reutiliza silenciosamente.
func (s *NumberingService) ReserveNext(ctx context.Context, emitterID string, docType document.Type, series string) (int64, error) {
	for {
		number, err := s.store.ReserveNext(ctx, emitterID, docType, series)
		if err == nil {
			return number, nil
		}
		if errors.Is(err, ErrCounterConflict) {
			s.logger.Debug("corrida na criação do contador, repetindo reserva",
				"emitter_id", emitterID, "doc_type", docType, "series", series)
			continue
		}
		return 0, fmt.Errorf("falha ao reservar número: %w", err)
	}
}
