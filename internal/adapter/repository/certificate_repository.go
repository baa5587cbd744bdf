package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinvet/fiscal-engine/internal/domain/certificate"
)

// CertificateRepository implementa a interface certificate.Repository
type CertificateRepository struct {
	db *pgxpool.Pool
}

// NewCertificateRepository cria uma nova instância de CertificateRepository
func NewCertificateRepository(db *pgxpool.Pool) certificate.Repository {
	return &CertificateRepository{
		db: db,
	}
}

const certificateColumns = `
	id, emitter_id, clinic_id, pfx_encrypted, password_encrypted,
	fingerprint_sha256, subject_cnpj, subject_name, valid_from, valid_to, created_at`

func scanCertificate(row pgx.Row) (*certificate.Certificate, error) {
	var cert certificate.Certificate
	err := row.Scan(
		&cert.ID, &cert.EmitterID, &cert.ClinicID,
		&cert.PFXEncrypted, &cert.PasswordEncrypted,
		&cert.FingerprintSHA256, &cert.SubjectCNPJ, &cert.SubjectName,
		&cert.ValidFrom, &cert.ValidTo, &cert.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &cert, nil
}

// Create implementa o método Create da interface certificate.Repository
func (r *CertificateRepository) Create(ctx context.Context, cert *certificate.Certificate) error {
	conn, err := r.db.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("falha ao adquirir conexão: %w", err)
	}
	defer conn.Release()

	query := `
		INSERT INTO certificates (
			id, emitter_id, clinic_id, pfx_encrypted, password_encrypted,
			fingerprint_sha256, subject_cnpj, subject_name, valid_from, valid_to, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err = conn.Exec(ctx, query,
		cert.ID, cert.EmitterID, cert.ClinicID,
		cert.PFXEncrypted, cert.PasswordEncrypted,
		cert.FingerprintSHA256, cert.SubjectCNPJ, cert.SubjectName,
		cert.ValidFrom, cert.ValidTo, cert.CreatedAt)

	if err != nil {
		return fmt.Errorf("falha ao inserir certificado: %w", err)
	}

	return nil
}

// FindByID implementa o método FindByID da interface certificate.Repository
func (r *CertificateRepository) FindByID(ctx context.Context, id string) (*certificate.Certificate, error) {
	conn, err := r.db.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("falha ao adquirir conexão: %w", err)
	}
	defer conn.Release()

	query := `SELECT` + certificateColumns + ` FROM certificates WHERE id = $1`

	cert, err := scanCertificate(conn.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("certificado com ID %s não encontrado", id)
		}
		return nil, fmt.Errorf("falha ao buscar certificado: %w", err)
	}

	return cert, nil
}

// FindByEmitter implementa o método FindByEmitter da interface certificate.Repository
func (r *CertificateRepository) FindByEmitter(ctx context.Context, emitterID string) ([]*certificate.Certificate, error) {
	conn, err := r.db.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("falha ao adquirir conexão: %w", err)
	}
	defer conn.Release()

	query := `SELECT` + certificateColumns + ` FROM certificates WHERE emitter_id = $1 ORDER BY created_at DESC`

	rows, err := conn.Query(ctx, query, emitterID)
	if err != nil {
		return nil, fmt.Errorf("falha ao buscar certificados: %w", err)
	}
	defer rows.Close()

	certificates := []*certificate.Certificate{}
	for rows.Next() {
		cert, err := scanCertificate(rows)
		if err != nil {
			return nil, fmt.Errorf("falha ao ler certificado: %w", err)
		}
		certificates = append(certificates, cert)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("erro ao iterar certificados: %w", err)
	}

	return certificates, nil
}

// FindActive implementa o método FindActive da interface certificate.Repository.
// O certificado ativo é o mais recente ainda dentro da validade.
func (r *CertificateRepository) FindActive(ctx context.Context, emitterID string) (*certificate.Certificate, error) {
	conn, err := r.db.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("falha ao adquirir conexão: %w", err)
	}
	defer conn.Release()

	query := `SELECT` + certificateColumns + `
		FROM certificates
		WHERE emitter_id = $1 AND valid_to > $2
		ORDER BY created_at DESC
		LIMIT 1`

	cert, err := scanCertificate(conn.QueryRow(ctx, query, emitterID, time.Now()))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("nenhum certificado válido encontrado para o emissor %s", emitterID)
		}
		return nil, fmt.Errorf("falha ao buscar certificado ativo: %w", err)
	}

	return cert, nil
}

// FindExpiring implementa o método FindExpiring da interface certificate.Repository
func (r *CertificateRepository) FindExpiring(ctx context.Context, daysToExpire int) ([]*certificate.Certificate, error) {
	conn, err := r.db.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("falha ao adquirir conexão: %w", err)
	}
	defer conn.Release()

	expirationLimit := time.Now().AddDate(0, 0, daysToExpire)

	query := `SELECT` + certificateColumns + `
		FROM certificates
		WHERE valid_to > $1 AND valid_to <= $2
		ORDER BY valid_to`

	rows, err := conn.Query(ctx, query, time.Now(), expirationLimit)
	if err != nil {
		return nil, fmt.Errorf("falha ao buscar certificados: %w", err)
	}
	defer rows.Close()

	certificates := []*certificate.Certificate{}
	for rows.Next() {
		cert, err := scanCertificate(rows)
		if err != nil {
			return nil, fmt.Errorf("falha ao ler certificado: %w", err)
		}
		certificates = append(certificates, cert)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("erro ao iterar certificados: %w", err)
	}

	return certificates, nil
}
