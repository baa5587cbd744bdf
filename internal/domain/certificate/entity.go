package certificate

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Certificado digital A1 (PKCS#12) vinculado a um emissor. O bundle PFX e a
// senha são armazenados cifrados; os metadados derivados ficam em claro para
// consulta. A rotação adiciona um novo registro em vez de editar o existente,
// e o certificado ativo é sempre o mais recente.
type Certificate struct {
	ID                string    `json:"id"`
	EmitterID         string    `json:"emitter_id"`
	ClinicID          string    `json:"clinic_id"`
	PFXEncrypted      []byte    `json:"-"` // Não expor ao serializar para JSON
	PasswordEncrypted []byte    `json:"-"` // Não expor ao serializar para JSON
	FingerprintSHA256 string    `json:"fingerprint_sha256"`
	SubjectCNPJ       string    `json:"subject_cnpj"`
	SubjectName       string    `json:"subject_name"`
	ValidFrom         time.Time `json:"valid_from"`
	ValidTo           time.Time `json:"valid_to"`
	CreatedAt         time.Time `json:"created_at"`
}

// NewCertificate cria um novo certificado digital com metadados já derivados
func NewCertificate(emitterID, clinicID, fingerprint, subjectCNPJ, subjectName string, validFrom, validTo time.Time) (*Certificate, error) {
	if emitterID == "" {
		return nil, errors.New("emitter ID é obrigatório")
	}
	if clinicID == "" {
		return nil, errors.New("clinic ID é obrigatório")
	}
	if fingerprint == "" {
		return nil, errors.New("fingerprint do certificado é obrigatório")
	}
	if validTo.Before(time.Now()) {
		return nil, errors.New("data de validade do certificado já passou")
	}

	return &Certificate{
		ID:                uuid.New().String(),
		EmitterID:         emitterID,
		ClinicID:          clinicID,
		FingerprintSHA256: fingerprint,
		SubjectCNPJ:       subjectCNPJ,
		SubjectName:       subjectName,
		ValidFrom:         validFrom,
		ValidTo:           validTo,
		CreatedAt:         time.Now(),
	}, nil
}

// StoreEncrypted armazena o bundle e a senha já cifrados
func (c *Certificate) StoreEncrypted(pfxEncrypted, passwordEncrypted []byte) error {
	if len(pfxEncrypted) == 0 {
		return errors.New("dados do certificado não podem estar vazios")
	}
	if len(passwordEncrypted) == 0 {
		return errors.New("senha do certificado é obrigatória")
	}

	c.PFXEncrypted = pfxEncrypted
	c.PasswordEncrypted = passwordEncrypted
	return nil
}

// IsExpired verifica se o certificado está expirado
func (c *Certificate) IsExpired() bool {
	return time.Now().After(c.ValidTo)
}

// ExpiresWithin verifica se o certificado expira dentro do número de dias
func (c *Certificate) ExpiresWithin(days int) bool {
	return time.Now().AddDate(0, 0, days).After(c.ValidTo)
}
