package document

import (
	"time"

	"github.com/google/uuid"
)

// EventType identifica o tipo de registro na trilha de auditoria
type EventType string

const (
	EventCreated          EventType = "created"
	EventQueued           EventType = "queued"
	EventSending          EventType = "sending"
	EventResponse         EventType = "response"
	EventError            EventType = "error"
	EventCancel           EventType = "cancel"
	EventPoll             EventType = "poll"
	EventMaintenanceRetry EventType = "maintenance_retry"
)

// Event é um registro imutável da trilha de auditoria de um documento: uma
// linha por chamada de transporte ou mudança de status. Nunca é atualizado
// ou excluído; os XMLs gravados já chegam aqui redigidos de dados sensíveis.
type Event struct {
	ID           string    `json:"id"`
	DocumentID   string    `json:"document_id"`
	Type         EventType `json:"type"`
	Status       Status    `json:"status"`
	RequestXML   string    `json:"request_xml,omitempty"`
	ResponseXML  string    `json:"response_xml,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewEvent cria um novo evento de auditoria para um documento
func NewEvent(documentID string, eventType EventType, status Status) *Event {
	return &Event{
		ID:         uuid.New().String(),
		DocumentID: documentID,
		Type:       eventType,
		Status:     status,
		CreatedAt:  time.Now(),
	}
}

// WithXML anexa os XMLs de requisição e resposta (já redigidos) ao evento
func (e *Event) WithXML(requestXML, responseXML string) *Event {
	e.RequestXML = requestXML
	e.ResponseXML = responseXML
	return e
}

// WithError anexa a mensagem de erro ao evento
func (e *Event) WithError(message string) *Event {
	e.ErrorMessage = message
	return e
}
