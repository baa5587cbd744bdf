package dto

import (
	"time"

	"github.com/clinvet/fiscal-engine/internal/domain/certificate"
)

// CertificateResponse representa os metadados de um certificado digital.
// O conteúdo do PFX e a senha nunca saem do cofre.
type CertificateResponse struct {
	ID                string    `json:"id"`
	EmitterID         string    `json:"emitter_id"`
	FingerprintSHA256 string    `json:"fingerprint_sha256"`
	SubjectCNPJ       string    `json:"subject_cnpj"`
	SubjectName       string    `json:"subject_name"`
	ValidFrom         time.Time `json:"valid_from"`
	ValidTo           time.Time `json:"valid_to"`
	Expired           bool      `json:"expired"`
	CreatedAt         time.Time `json:"created_at"`
}

// ToCertificateResponse converte a entidade em resposta da API
func ToCertificateResponse(cert *certificate.Certificate) CertificateResponse {
	return CertificateResponse{
		ID:                cert.ID,
		EmitterID:         cert.EmitterID,
		FingerprintSHA256: cert.FingerprintSHA256,
		SubjectCNPJ:       cert.SubjectCNPJ,
		SubjectName:       cert.SubjectName,
		ValidFrom:         cert.ValidFrom,
		ValidTo:           cert.ValidTo,
		Expired:           cert.IsExpired(),
		CreatedAt:         cert.CreatedAt,
	}
}

// ToCertificateListResponse converte uma lista de entidades em respostas da API
func ToCertificateListResponse(certs []*certificate.Certificate) []CertificateResponse {
	responses := make([]CertificateResponse, 0, len(certs))
	for _, cert := range certs {
		responses = append(responses, ToCertificateResponse(cert))
	}
	return responses
}
