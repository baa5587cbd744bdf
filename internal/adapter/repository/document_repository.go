package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinvet/fiscal-engine/internal/domain/document"
)

// DocumentRepository implementa a interface document.Repository
type DocumentRepository struct {
	db *pgxpool.Pool
}

// NewDocumentRepository cria uma nova instância de DocumentRepository
func NewDocumentRepository(db *pgxpool.Pool) document.Repository {
	return &DocumentRepository{
		db: db,
	}
}

const documentColumns = `
	id, emitter_id, clinic_id, doc_type, related_type, related_id, status,
	series, number, access_key, protocol, receipt, verification_code, nfse_number,
	payload, signed_xml, response_xml, error_code, error_message,
	authorized_at, canceled_at, created_at, updated_at`

func scanDocument(row pgx.Row) (*document.Document, error) {
	var doc document.Document
	err := row.Scan(
		&doc.ID, &doc.EmitterID, &doc.ClinicID, &doc.Type, &doc.RelatedType,
		&doc.RelatedID, &doc.Status, &doc.Series, &doc.Number,
		&doc.AccessKey, &doc.Protocol, &doc.Receipt, &doc.VerificationCode, &doc.NfseNumber,
		&doc.Payload, &doc.SignedXML, &doc.ResponseXML,
		&doc.ErrorCode, &doc.ErrorMessage,
		&doc.AuthorizedAt, &doc.CanceledAt, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// Create implementa o método Create da interface document.Repository
func (r *DocumentRepository) Create(ctx context.Context, doc *document.Document) error {
	conn, err := r.db.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("falha ao adquirir conexão: %w", err)
	}
	defer conn.Release()

	query := `
		INSERT INTO fiscal_documents (
			id, emitter_id, clinic_id, doc_type, related_type, related_id, status,
			series, number, access_key, protocol, receipt, verification_code, nfse_number,
			payload, signed_xml, response_xml, error_code, error_message,
			authorized_at, canceled_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
	`

	_, err = conn.Exec(ctx, query,
		doc.ID, doc.EmitterID, doc.ClinicID, doc.Type, doc.RelatedType,
		doc.RelatedID, doc.Status, doc.Series, doc.Number,
		doc.AccessKey, doc.Protocol, doc.Receipt, doc.VerificationCode, doc.NfseNumber,
		doc.Payload, doc.SignedXML, doc.ResponseXML,
		doc.ErrorCode, doc.ErrorMessage,
		doc.AuthorizedAt, doc.CanceledAt, doc.CreatedAt, doc.UpdatedAt)

	if err != nil {
		return fmt.Errorf("falha ao inserir documento fiscal: %w", err)
	}

	return nil
}

// FindByID implementa o método FindByID da interface document.Repository
func (r *DocumentRepository) FindByID(ctx context.Context, id string) (*document.Document, error) {
	conn, err := r.db.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("falha ao adquirir conexão: %w", err)
	}
	defer conn.Release()

	query := `SELECT` + documentColumns + ` FROM fiscal_documents WHERE id = $1`

	doc, err := scanDocument(conn.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("documento fiscal com ID %s não encontrado", id)
		}
		return nil, fmt.Errorf("falha ao buscar documento fiscal: %w", err)
	}

	return doc, nil
}

// FindByRelated implementa o método FindByRelated da interface
// document.Repository. Retorna (nil, nil) quando a origem não possui
// documento, por contrato da idempotência do builder.
func (r *DocumentRepository) FindByRelated(ctx context.Context, relatedType document.RelatedType, relatedID string, docType document.Type) (*document.Document, error) {
	conn, err := r.db.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("falha ao adquirir conexão: %w", err)
	}
	defer conn.Release()

	query := `SELECT` + documentColumns + `
		FROM fiscal_documents
		WHERE related_type = $1 AND related_id = $2 AND doc_type = $3
		ORDER BY created_at DESC
		LIMIT 1`

	doc, err := scanDocument(conn.QueryRow(ctx, query, relatedType, relatedID, docType))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("falha ao buscar documento por origem: %w", err)
	}

	return doc, nil
}

// Update implementa o método Update da interface document.Repository
func (r *DocumentRepository) Update(ctx context.Context, doc *document.Document) error {
	conn, err := r.db.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("falha ao adquirir conexão: %w", err)
	}
	defer conn.Release()

	query := `
		UPDATE fiscal_documents SET
			status = $1, access_key = $2, protocol = $3, receipt = $4,
			verification_code = $5, nfse_number = $6, payload = $7,
			signed_xml = $8, response_xml = $9, error_code = $10, error_message = $11,
			authorized_at = $12, canceled_at = $13, updated_at = $14
		WHERE id = $15
	`

	tag, err := conn.Exec(ctx, query,
		doc.Status, doc.AccessKey, doc.Protocol, doc.Receipt,
		doc.VerificationCode, doc.NfseNumber, doc.Payload,
		doc.SignedXML, doc.ResponseXML, doc.ErrorCode, doc.ErrorMessage,
		doc.AuthorizedAt, doc.CanceledAt, time.Now(), doc.ID)

	if err != nil {
		return fmt.Errorf("falha ao atualizar documento fiscal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("documento fiscal com ID %s não encontrado", doc.ID)
	}

	return nil
}

// List implementa o método List da interface document.Repository
func (r *DocumentRepository) List(ctx context.Context, emitterID string, status document.Status, limit, offset int) ([]*document.Document, error) {
	conn, err := r.db.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("falha ao adquirir conexão: %w", err)
	}
	defer conn.Release()

	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	query := `SELECT` + documentColumns + `
		FROM fiscal_documents
		WHERE emitter_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`

	rows, err := conn.Query(ctx, query, emitterID, string(status), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("falha ao buscar documentos fiscais: %w", err)
	}
	defer rows.Close()

	return collectDocuments(rows)
}

// FindFailedSince implementa o método FindFailedSince da interface document.Repository
func (r *DocumentRepository) FindFailedSince(ctx context.Context, since time.Time, limit int) ([]*document.Document, error) {
	conn, err := r.db.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("falha ao adquirir conexão: %w", err)
	}
	defer conn.Release()

	query := `SELECT` + documentColumns + `
		FROM fiscal_documents
		WHERE status = $1 AND updated_at >= $2
		ORDER BY updated_at
		LIMIT $3`

	rows, err := conn.Query(ctx, query, document.StatusFailed, since, limit)
	if err != nil {
		return nil, fmt.Errorf("falha ao buscar documentos falhados: %w", err)
	}
	defer rows.Close()

	return collectDocuments(rows)
}

// FindStaleProcessing implementa o método FindStaleProcessing da interface document.Repository
func (r *DocumentRepository) FindStaleProcessing(ctx context.Context, olderThan time.Time, limit int) ([]*document.Document, error) {
	conn, err := r.db.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("falha ao adquirir conexão: %w", err)
	}
	defer conn.Release()

	query := `SELECT` + documentColumns + `
		FROM fiscal_documents
		WHERE status = $1 AND updated_at < $2
		ORDER BY updated_at
		LIMIT $3`

	rows, err := conn.Query(ctx, query, document.StatusProcessing, olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("falha ao buscar documentos em processamento: %w", err)
	}
	defer rows.Close()

	return collectDocuments(rows)
}

func collectDocuments(rows pgx.Rows) ([]*document.Document, error) {
	documents := []*document.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("falha ao ler documento fiscal: %w", err)
		}
		documents = append(documents, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("erro ao iterar documentos fiscais: %w", err)
	}

	return documents, nil
}

// AppendEvent implementa o método AppendEvent da interface document.Repository
func (r *DocumentRepository) AppendEvent(ctx context.Context, event *document.Event) error {
	conn, err := r.db.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("falha ao adquirir conexão: %w", err)
	}
	defer conn.Release()

	query := `
		INSERT INTO fiscal_document_events (
			id, document_id, event_type, status, request_xml, response_xml,
			error_message, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = conn.Exec(ctx, query,
		event.ID, event.DocumentID, event.Type, event.Status,
		event.RequestXML, event.ResponseXML, event.ErrorMessage, event.CreatedAt)

	if err != nil {
		return fmt.Errorf("falha ao inserir evento do documento: %w", err)
	}

	return nil
}

// ListEvents implementa o método ListEvents da interface document.Repository
func (r *DocumentRepository) ListEvents(ctx context.Context, documentID string) ([]*document.Event, error) {
	conn, err := r.db.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("falha ao adquirir conexão: %w", err)
	}
	defer conn.Release()

	query := `
		SELECT id, document_id, event_type, status, request_xml, response_xml,
			error_message, created_at
		FROM fiscal_document_events
		WHERE document_id = $1
		ORDER BY created_at
	`

	rows, err := conn.Query(ctx, query, documentID)
	if err != nil {
		return nil, fmt.Errorf("falha ao buscar eventos do documento: %w", err)
	}
	defer rows.Close()

	events := []*document.Event{}
	for rows.Next() {
		var event document.Event
		err = rows.Scan(
			&event.ID, &event.DocumentID, &event.Type, &event.Status,
			&event.RequestXML, &event.ResponseXML, &event.ErrorMessage, &event.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("falha ao ler evento do documento: %w", err)
		}
		events = append(events, &event)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("erro ao iterar eventos do documento: %w", err)
	}

	return events, nil
}

// CountEvents implementa o método CountEvents da interface document.Repository
func (r *DocumentRepository) CountEvents(ctx context.Context, documentID string, eventType document.EventType) (int, error) {
	conn, err := r.db.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("falha ao adquirir conexão: %w", err)
	}
	defer conn.Release()

	var count int
	err = conn.QueryRow(ctx,
		"SELECT COUNT(*) FROM fiscal_document_events WHERE document_id = $1 AND event_type = $2",
		documentID, eventType).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("falha ao contar eventos do documento: %w", err)
	}

	return count, nil
}
