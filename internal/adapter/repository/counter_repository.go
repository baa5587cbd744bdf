package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinvet/fiscal-engine/internal/domain/document"
	"github.com/clinvet/fiscal-engine/internal/service"
)

// uniqueViolation é o código SQLSTATE de violação de chave única
const uniqueViolation = "23505"

// CounterRepository implementa a interface service.CounterStore sobre a
// tabela fiscal_counters. A reserva toma lock exclusivo de linha
// (SELECT FOR UPDATE) dentro de uma transação, serializando reservas
// concorrentes da mesma chave.
type CounterRepository struct {
	db *pgxpool.Pool
}

// NewCounterRepository cria uma nova instância de CounterRepository
func NewCounterRepository(db *pgxpool.Pool) service.CounterStore {
	return &CounterRepository{
		db: db,
	}
}

// ReserveNext reserva o próximo número da sequência (emissor, tipo, série).
// Quando a linha do contador ainda não existe, a inserção concorrente pode
// perder a corrida; nesse caso retorna service.ErrCounterConflict para o
// chamador reexecutar a reserva.
func (r *CounterRepository) ReserveNext(ctx context.Context, emitterID string, docType document.Type, series string) (int64, error) {
	conn, err := r.db.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("falha ao adquirir conexão: %w", err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("falha ao iniciar transação: %w", err)
	}
	defer tx.Rollback(ctx)

	var current int64
	err = tx.QueryRow(ctx, `
		SELECT next_number FROM fiscal_counters
		WHERE emitter_id = $1 AND doc_type = $2 AND series = $3
		FOR UPDATE
	`, emitterID, docType, series).Scan(&current)

	switch {
	case err == nil:
		_, err = tx.Exec(ctx, `
			UPDATE fiscal_counters SET next_number = $1, updated_at = now()
			WHERE emitter_id = $2 AND doc_type = $3 AND series = $4
		`, current+1, emitterID, docType, series)
		if err != nil {
			return 0, fmt.Errorf("falha ao avançar contador: %w", err)
		}

	case errors.Is(err, pgx.ErrNoRows):
		// Primeira reserva da chave: cria a linha já apontando para o
		// próximo número
		current = 1
		_, err = tx.Exec(ctx, `
			INSERT INTO fiscal_counters (emitter_id, doc_type, series, next_number, updated_at)
			VALUES ($1, $2, $3, 2, now())
		`, emitterID, docType, series)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return 0, service.ErrCounterConflict
			}
			return 0, fmt.Errorf("falha ao criar contador: %w", err)
		}

	default:
		return 0, fmt.Errorf("falha ao consultar contador: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("falha ao confirmar reserva de número: %w", err)
	}

	return current, nil
}
