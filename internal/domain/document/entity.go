package document

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Type define o tipo de documento fiscal
type Type string

const (
	TypeNFSe Type = "nfse"
	TypeNFe  Type = "nfe"
)

// Status define o estado do documento no ciclo de vida
// DRAFT → QUEUED → PROCESSING → {AUTHORIZED | REJECTED | FAILED} → CANCELED
type Status string

const (
	StatusDraft      Status = "draft"
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusAuthorized Status = "authorized"
	StatusRejected   Status = "rejected"
	StatusFailed     Status = "failed"
	StatusCanceled   Status = "canceled"
)

// RelatedType identifica o objeto de negócio que originou o documento
type RelatedType string

const (
	RelatedOrder       RelatedType = "order"
	RelatedAppointment RelatedType = "appointment"
	RelatedBudget      RelatedType = "budget"
)

// ValidRelatedType verifica se o tipo de origem é suportado
func ValidRelatedType(t RelatedType) bool {
	switch t {
	case RelatedOrder, RelatedAppointment, RelatedBudget:
		return true
	}
	return false
}

// Erros específicos
var (
	ErrInvalidTransition = errors.New("transição de status inválida")
	ErrMissingAccessKey  = errors.New("documento sem chave de acesso ou protocolo para cancelamento")
)

// Document é um documento fiscal (NFS-e ou NF-e) de um emissor. A tupla
// (emitter, type, series, number) é única e o número, uma vez reservado,
// nunca é reutilizado, mesmo após rejeição.
type Document struct {
	ID               string      `json:"id"`
	EmitterID        string      `json:"emitter_id"`
	ClinicID         string      `json:"clinic_id"`
	Type             Type        `json:"type"`
	RelatedType      RelatedType `json:"related_type"`
	RelatedID        string      `json:"related_id"`
	Status           Status      `json:"status"`
	Series           string      `json:"series"`
	Number           int64       `json:"number"`
	AccessKey        string      `json:"access_key,omitempty"`
	Protocol         string      `json:"protocol,omitempty"`
	Receipt          string      `json:"receipt,omitempty"`
	VerificationCode string      `json:"verification_code,omitempty"`
	NfseNumber       string      `json:"nfse_number,omitempty"`
	Payload          []byte      `json:"-"`
	SignedXML        string      `json:"-"`
	ResponseXML      string      `json:"-"`
	ErrorCode        string      `json:"error_code,omitempty"`
	ErrorMessage     string      `json:"error_message,omitempty"`
	AuthorizedAt     *time.Time  `json:"authorized_at,omitempty"`
	CanceledAt       *time.Time  `json:"canceled_at,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// NewDocument cria um novo documento fiscal com número já reservado
func NewDocument(emitterID, clinicID string, docType Type, relatedType RelatedType, relatedID, series string, number int64) (*Document, error) {
	if emitterID == "" {
		return nil, errors.New("emitter ID é obrigatório")
	}
	if clinicID == "" {
		return nil, errors.New("clinic ID é obrigatório")
	}
	if docType != TypeNFSe && docType != TypeNFe {
		return nil, errors.New("tipo de documento inválido")
	}
	if !ValidRelatedType(relatedType) {
		return nil, errors.New("tipo de origem não suportado")
	}
	if relatedID == "" {
		return nil, errors.New("related ID é obrigatório")
	}
	if number <= 0 {
		return nil, errors.New("número do documento deve ser maior que zero")
	}

	now := time.Now()
	return &Document{
		ID:          uuid.New().String(),
		EmitterID:   emitterID,
		ClinicID:    clinicID,
		Type:        docType,
		RelatedType: relatedType,
		RelatedID:   relatedID,
		Status:      StatusDraft,
		Series:      series,
		Number:      number,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// IsTerminal indica se o documento está em estado final
func (d *Document) IsTerminal() bool {
	switch d.Status {
	case StatusAuthorized, StatusRejected, StatusCanceled:
		return true
	}
	return false
}

// MarkQueued enfileira o documento para emissão assíncrona
func (d *Document) MarkQueued() error {
	if d.Status != StatusDraft {
		return ErrInvalidTransition
	}
	d.Status = StatusQueued
	d.UpdatedAt = time.Now()
	return nil
}

// MarkProcessing marca o documento como em processamento antes da chamada ao
// transporte. Retorna false se o documento já está em processamento ou além,
// caso em que o pickup é um no-op (guarda de idempotência).
func (d *Document) MarkProcessing() bool {
	if d.Status != StatusQueued && d.Status != StatusFailed {
		return false
	}
	d.Status = StatusProcessing
	d.UpdatedAt = time.Now()
	return true
}

// MarkAuthorized registra a autorização pelo fisco
func (d *Document) MarkAuthorized(protocol string) error {
	if d.Status != StatusProcessing {
		return ErrInvalidTransition
	}
	now := time.Now()
	d.Status = StatusAuthorized
	d.Protocol = protocol
	d.ErrorCode = ""
	d.ErrorMessage = ""
	d.AuthorizedAt = &now
	d.UpdatedAt = now
	return nil
}

// MarkRejected registra a rejeição com o código e mensagem do fisco. Falhas
// de transporte também terminam aqui, distinguidas pelo error_code.
func (d *Document) MarkRejected(code, message string) error {
	if d.Status != StatusProcessing {
		return ErrInvalidTransition
	}
	d.Status = StatusRejected
	d.ErrorCode = code
	d.ErrorMessage = message
	d.UpdatedAt = time.Now()
	return nil
}

// MarkFailed registra uma falha antes da chamada ao fisco (construção,
// assinatura, certificado), deixando o documento elegível para nova tentativa
func (d *Document) MarkFailed(message string) error {
	if d.IsTerminal() {
		return ErrInvalidTransition
	}
	d.Status = StatusFailed
	d.ErrorMessage = message
	d.UpdatedAt = time.Now()
	return nil
}

// MarkCanceled registra o cancelamento de um documento autorizado
func (d *Document) MarkCanceled() error {
	if d.Status != StatusAuthorized {
		return ErrInvalidTransition
	}
	now := time.Now()
	d.Status = StatusCanceled
	d.CanceledAt = &now
	d.UpdatedAt = now
	return nil
}

// CanCancel verifica se o documento pode ser cancelado
func (d *Document) CanCancel() error {
	if d.Status != StatusAuthorized {
		return ErrInvalidTransition
	}
	if d.AccessKey == "" && d.Protocol == "" && d.NfseNumber == "" {
		return ErrMissingAccessKey
	}
	return nil
}
