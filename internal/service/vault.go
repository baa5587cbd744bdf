package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/clinvet/fiscal-engine/internal/domain/certificate"
	"github.com/clinvet/fiscal-engine/internal/domain/emitter"
	"github.com/clinvet/fiscal-engine/pkg/cipher"
	"github.com/clinvet/fiscal-engine/pkg/logger"
	"github.com/clinvet/fiscal-engine/pkg/pkcs12"
)

// Erros específicos
var (
	// ErrCNPJMismatch indica que o CNPJ do titular do certificado não
	// confere com o CNPJ do emissor
	ErrCNPJMismatch = errors.New("CNPJ do certificado não confere com o CNPJ do emissor")

	// ErrMissingSubjectCNPJ indica um certificado cujo titular não carrega
	// CNPJ identificável; sem ele a validação de titularidade é impossível
	ErrMissingSubjectCNPJ = errors.New("certificado não identifica o CNPJ do titular")
)

// CertificateVault guarda certificados A1 cifrados em repouso. A chave de
// cifragem é derivada por clínica pelo KeyProvider, construído uma única vez
// no início do processo.
type CertificateVault struct {
	certRepo certificate.Repository
	keys     *cipher.KeyProvider
	logger   logger.Logger
}

// NewCertificateVault cria um novo cofre de certificados
func NewCertificateVault(certRepo certificate.Repository, keys *cipher.KeyProvider, log logger.Logger) *CertificateVault {
	return &CertificateVault{certRepo: certRepo, keys: keys, logger: log}
}

// ParseCertificate abre o bundle PFX e extrai os metadados derivados
func (v *CertificateVault) ParseCertificate(pfxData []byte, password string) (*pkcs12.Metadata, error) {
	if len(pfxData) == 0 {
		return nil, pkcs12.ErrInvalidCertificate
	}
	return pkcs12.Parse(pfxData, password)
}

// Store valida o certificado contra o emissor e o persiste cifrado. A
// validação de CNPJ acontece aqui, na entrada; certificados antigos com CNPJ
// divergente permanecem no banco para auditoria.
func (v *CertificateVault) Store(ctx context.Context, em *emitter.Emitter, pfxData []byte, password string) (*certificate.Certificate, error) {
	meta, err := v.ParseCertificate(pfxData, password)
	if err != nil {
		return nil, err
	}

	if meta.SubjectCNPJ == "" {
		return nil, ErrMissingSubjectCNPJ
	}
	if meta.SubjectCNPJ != em.CNPJ {
		return nil, fmt.Errorf("%w: certificado %s, emissor %s", ErrCNPJMismatch, meta.SubjectCNPJ, em.CNPJ)
	}

	cert, err := certificate.NewCertificate(em.ID, em.ClinicID, meta.FingerprintSHA256,
		meta.SubjectCNPJ, meta.SubjectName, meta.ValidFrom, meta.ValidTo)
	if err != nil {
		return nil, err
	}

	key := v.keys.ClinicKey(em.ClinicID)
	pfxEncrypted, err := cipher.Encrypt(key, pfxData)
	if err != nil {
		return nil, fmt.Errorf("falha ao cifrar certificado: %w", err)
	}
	passwordEncrypted, err := cipher.Encrypt(key, []byte(password))
	if err != nil {
		return nil, fmt.Errorf("falha ao cifrar senha do certificado: %w", err)
	}

	if err := cert.StoreEncrypted(pfxEncrypted, passwordEncrypted); err != nil {
		return nil, err
	}

	if err := v.certRepo.Create(ctx, cert); err != nil {
		return nil, err
	}

	v.logger.Info("certificado armazenado",
		"emitter_id", em.ID, "fingerprint", meta.FingerprintSHA256, "valid_to", meta.ValidTo)

	return cert, nil
}

// GetActive retorna o certificado ativo (mais recente) do emissor
func (v *CertificateVault) GetActive(ctx context.Context, emitterID string) (*certificate.Certificate, error) {
	return v.certRepo.FindActive(ctx, emitterID)
}

// Open decifra o bundle PFX e a senha de um certificado armazenado
func (v *CertificateVault) Open(cert *certificate.Certificate) (pfxData []byte, password string, err error) {
	key := v.keys.ClinicKey(cert.ClinicID)

	pfxData, err = cipher.Decrypt(key, cert.PFXEncrypted)
	if err != nil {
		return nil, "", fmt.Errorf("falha ao decifrar certificado: %w", err)
	}

	passwordBytes, err := cipher.Decrypt(key, cert.PasswordEncrypted)
	if err != nil {
		return nil, "", fmt.Errorf("falha ao decifrar senha do certificado: %w", err)
	}

	return pfxData, string(passwordBytes), nil
}
