package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinvet/fiscal-engine/internal/domain/emitter"
)

// EmitterRepository implementa a interface emitter.Repository
type EmitterRepository struct {
	db *pgxpool.Pool
}

// NewEmitterRepository cria uma nova instância de EmitterRepository
func NewEmitterRepository(db *pgxpool.Pool) emitter.Repository {
	return &EmitterRepository{
		db: db,
	}
}

const emitterColumns = `
	id, clinic_id, cnpj, razao_social, nome_fantasia, inscricao_estadual,
	inscricao_municipal, tax_regime, municipality, codigo_municipio, uf,
	street, number, district, city, zip_code, environment, created_at, updated_at`

func scanEmitter(row pgx.Row) (*emitter.Emitter, error) {
	var em emitter.Emitter
	err := row.Scan(
		&em.ID, &em.ClinicID, &em.CNPJ, &em.RazaoSocial, &em.NomeFantasia,
		&em.InscricaoEstadual, &em.InscricaoMunicipal, &em.TaxRegime,
		&em.Municipality, &em.CodigoMunicipio, &em.UF,
		&em.Street, &em.Number, &em.District, &em.City, &em.ZipCode,
		&em.Environment, &em.CreatedAt, &em.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &em, nil
}

// Create implementa o método Create da interface emitter.Repository
func (r *EmitterRepository) Create(ctx context.Context, em *emitter.Emitter) error {
	conn, err := r.db.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("falha ao adquirir conexão: %w", err)
	}
	defer conn.Release()

	query := `
		INSERT INTO emitters (
			id, clinic_id, cnpj, razao_social, nome_fantasia, inscricao_estadual,
			inscricao_municipal, tax_regime, municipality, codigo_municipio, uf,
			street, number, district, city, zip_code, environment, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`

	_, err = conn.Exec(ctx, query,
		em.ID, em.ClinicID, em.CNPJ, em.RazaoSocial, em.NomeFantasia,
		em.InscricaoEstadual, em.InscricaoMunicipal, em.TaxRegime,
		em.Municipality, em.CodigoMunicipio, em.UF,
		em.Street, em.Number, em.District, em.City, em.ZipCode,
		em.Environment, em.CreatedAt, em.UpdatedAt)

	if err != nil {
		return fmt.Errorf("falha ao inserir emissor: %w", err)
	}

	return nil
}

// FindByID implementa o método FindByID da interface emitter.Repository
func (r *EmitterRepository) FindByID(ctx context.Context, id string) (*emitter.Emitter, error) {
	conn, err := r.db.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("falha ao adquirir conexão: %w", err)
	}
	defer conn.Release()

	query := `SELECT` + emitterColumns + ` FROM emitters WHERE id = $1`

	em, err := scanEmitter(conn.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("emissor com ID %s não encontrado", id)
		}
		return nil, fmt.Errorf("falha ao buscar emissor: %w", err)
	}

	return em, nil
}

// FindByClinic implementa o método FindByClinic da interface emitter.Repository
func (r *EmitterRepository) FindByClinic(ctx context.Context, clinicID string) (*emitter.Emitter, error) {
	conn, err := r.db.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("falha ao adquirir conexão: %w", err)
	}
	defer conn.Release()

	query := `SELECT` + emitterColumns + ` FROM emitters WHERE clinic_id = $1`

	em, err := scanEmitter(conn.QueryRow(ctx, query, clinicID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("clínica %s não possui emissor fiscal configurado", clinicID)
		}
		return nil, fmt.Errorf("falha ao buscar emissor da clínica: %w", err)
	}

	return em, nil
}

// Update implementa o método Update da interface emitter.Repository
func (r *EmitterRepository) Update(ctx context.Context, em *emitter.Emitter) error {
	conn, err := r.db.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("falha ao adquirir conexão: %w", err)
	}
	defer conn.Release()

	query := `
		UPDATE emitters SET
			cnpj = $1, razao_social = $2, nome_fantasia = $3,
			inscricao_estadual = $4, inscricao_municipal = $5, tax_regime = $6,
			municipality = $7, codigo_municipio = $8, uf = $9,
			street = $10, number = $11, district = $12, city = $13, zip_code = $14,
			environment = $15, updated_at = $16
		WHERE id = $17
	`

	tag, err := conn.Exec(ctx, query,
		em.CNPJ, em.RazaoSocial, em.NomeFantasia,
		em.InscricaoEstadual, em.InscricaoMunicipal, em.TaxRegime,
		em.Municipality, em.CodigoMunicipio, em.UF,
		em.Street, em.Number, em.District, em.City, em.ZipCode,
		em.Environment, time.Now(), em.ID)

	if err != nil {
		return fmt.Errorf("falha ao atualizar emissor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("emissor com ID %s não encontrado", em.ID)
	}

	return nil
}

// List implementa o método List da interface emitter.Repository
func (r *EmitterRepository) List(ctx context.Context, limit, offset int) ([]*emitter.Emitter, error) {
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

	query := `SELECT` + emitterColumns + ` FROM emitters ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := conn.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("falha ao buscar emissores: %w", err)
	}
	defer rows.Close()

	emitters := []*emitter.Emitter{}
	for rows.Next() {
		em, err := scanEmitter(rows)
		if err != nil {
			return nil, fmt.Errorf("falha ao ler emissor: %w", err)
		}
		emitters = append(emitters, em)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("erro ao iterar emissores: %w", err)
	}

	return emitters, nil
}

// ExistsByClinic implementa o método ExistsByClinic da interface emitter.Repository
func (r *EmitterRepository) ExistsByClinic(ctx context.Context, clinicID string) (bool, error) {
	conn, err := r.db.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("falha ao adquirir conexão: %w", err)
	}
	defer conn.Release()

	var exists bool
	err = conn.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM emitters WHERE clinic_id = $1)", clinicID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("falha ao verificar se a clínica possui emissor: %w", err)
	}

	return exists, nil
}
