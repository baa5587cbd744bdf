package dto

import (
	"time"

	"github.com/clinvet/fiscal-engine/internal/domain/document"
)

// IssueDocumentRequest representa o pedido de emissão de um documento fiscal
// a partir de um objeto de negócio. O payload é opcional; quando ausente, é
// carregado do leitor de origem registrado.
type IssueDocumentRequest struct {
	EmitterID   string            `json:"emitter_id" binding:"required"`
	DocType     string            `json:"doc_type" binding:"required"`
	RelatedType string            `json:"related_type" binding:"required"`
	RelatedID   string            `json:"related_id" binding:"required"`
	Payload     *document.Payload `json:"payload,omitempty"`
}

// CancelDocumentRequest representa o pedido de cancelamento de um documento
// autorizado
type CancelDocumentRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// DocumentResponse representa a resposta com dados de um documento fiscal
type DocumentResponse struct {
	ID               string     `json:"id"`
	EmitterID        string     `json:"emitter_id"`
	ClinicID         string     `json:"clinic_id"`
	DocType          string     `json:"doc_type"`
	RelatedType      string     `json:"related_type"`
	RelatedID        string     `json:"related_id"`
	Status           string     `json:"status"`
	Series           string     `json:"series"`
	Number           int64      `json:"number"`
	AccessKey        string     `json:"access_key,omitempty"`
	Protocol         string     `json:"protocol,omitempty"`
	VerificationCode string     `json:"verification_code,omitempty"`
	NfseNumber       string     `json:"nfse_number,omitempty"`
	ErrorCode        string     `json:"error_code,omitempty"`
	ErrorMessage     string     `json:"error_message,omitempty"`
	AuthorizedAt     *time.Time `json:"authorized_at,omitempty"`
	CanceledAt       *time.Time `json:"canceled_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// DocumentEventResponse representa um evento da trilha de auditoria de um
// documento. Os XMLs já estão redigidos de dados sensíveis.
type DocumentEventResponse struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	Status       string    `json:"status"`
	RequestXML   string    `json:"request_xml,omitempty"`
	ResponseXML  string    `json:"response_xml,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// ToDocumentResponse converte a entidade em resposta da API
func ToDocumentResponse(doc *document.Document) DocumentResponse {
	return DocumentResponse{
		ID:               doc.ID,
		EmitterID:        doc.EmitterID,
		ClinicID:         doc.ClinicID,
		DocType:          string(doc.Type),
		RelatedType:      string(doc.RelatedType),
		RelatedID:        doc.RelatedID,
		Status:           string(doc.Status),
		Series:           doc.Series,
		Number:           doc.Number,
		AccessKey:        doc.AccessKey,
		Protocol:         doc.Protocol,
		VerificationCode: doc.VerificationCode,
		NfseNumber:       doc.NfseNumber,
		ErrorCode:        doc.ErrorCode,
		ErrorMessage:     doc.ErrorMessage,
		AuthorizedAt:     doc.AuthorizedAt,
		CanceledAt:       doc.CanceledAt,
		CreatedAt:        doc.CreatedAt,
		UpdatedAt:        doc.UpdatedAt,
	}
}

// ToDocumentListResponse converte uma lista de entidades em respostas da API
func ToDocumentListResponse(docs []*document.Document) []DocumentResponse {
	responses := make([]DocumentResponse, 0, len(docs))
	for _, doc := range docs {
		responses = append(responses, ToDocumentResponse(doc))
	}
	return responses
}

// ToDocumentEventListResponse converte a trilha de eventos em respostas da API
func ToDocumentEventListResponse(events []*document.Event) []DocumentEventResponse {
	responses := make([]DocumentEventResponse, 0, len(events))
	for _, event := range events {
		responses = append(responses, DocumentEventResponse{
			ID:           event.ID,
			Type:         string(event.Type),
			Status:       string(event.Status),
			RequestXML:   event.RequestXML,
			ResponseXML:  event.ResponseXML,
			ErrorMessage: event.ErrorMessage,
			CreatedAt:    event.CreatedAt,
		})
	}
	return responses
}
