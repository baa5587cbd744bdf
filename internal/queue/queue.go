package queue

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/clinvet/fiscal-engine/pkg/logger"
)

// emissionQueueKey é a lista Redis que serve de fila de emissão
const emissionQueueKey = "fiscal:emission:queue"

// popTimeout limita cada bloqueio do consumidor para que o contexto de
// shutdown seja observado
const popTimeout = 5 * time.Second

// Processor consome um documento da fila
type Processor interface {
	Emit(ctx context.Context, documentID string) error
}

// Dispatcher publica documentos na fila de emissão. Sem Redis configurado o
// despacho degrada para processamento síncrono no mesmo processo, o que
// mantém o pipeline funcional em ambientes de desenvolvimento.
type Dispatcher struct {
	client    *redis.Client
	processor Processor
	logger    logger.Logger
}

// NewDispatcher cria um novo despachante. client pode ser nil para o modo
// síncrono.
func NewDispatcher(client *redis.Client, processor Processor, log logger.Logger) *Dispatcher {
	return &Dispatcher{
		client:    client,
		processor: processor,
		logger:    log,
	}
}

// EnqueueEmission publica um documento para emissão assíncrona
func (d *Dispatcher) EnqueueEmission(ctx context.Context, documentID string) error {
	if d.client == nil {
		d.logger.Debug("fila não configurada, emitindo de forma síncrona", "document_id", documentID)
		return d.processor.Emit(ctx, documentID)
	}

	if err := d.client.LPush(ctx, emissionQueueKey, documentID).Err(); err != nil {
		// Fila configurada porém indisponível: o despacho degrada para o
		// mesmo caminho síncrono do modo sem Redis, em vez de deixar o
		// documento parado em QUEUED
		d.logger.Warn("fila de emissão indisponível, emitindo de forma síncrona",
			"document_id", documentID, "error", err)
		return d.processor.Emit(ctx, documentID)
	}
	d.logger.Debug("documento enfileirado para emissão", "document_id", documentID)
	return nil
}

// Consume bloqueia consumindo a fila de emissão até o contexto ser
// cancelado. Cada documento é processado sequencialmente; falhas de emissão
// são logadas e não derrubam o consumidor.
func (d *Dispatcher) Consume(ctx context.Context) error {
	if d.client == nil {
		return errors.New("fila de emissão não configurada")
	}

	d.logger.Info("consumidor da fila de emissão iniciado", "queue", emissionQueueKey)
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("consumidor da fila de emissão encerrado")
			return ctx.Err()
		default:
		}

		values, err := d.client.BRPop(ctx, popTimeout, emissionQueueKey).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			d.logger.Error("falha ao consumir fila de emissão", "error", err)
			time.Sleep(time.Second)
			continue
		}
		if len(values) != 2 {
			continue
		}

		documentID := values[1]
		if err := d.processor.Emit(ctx, documentID); err != nil {
			d.logger.Error("falha ao emitir documento da fila",
				"document_id", documentID, "error", err)
		}
	}
}
