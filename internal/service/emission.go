package service

import (
	"context"
	"fmt"
	"time"

	"github.com/beevik/etree"

	"github.com/clinvet/fiscal-engine/internal/domain/document"
	"github.com/clinvet/fiscal-engine/internal/domain/emitter"
	"github.com/clinvet/fiscal-engine/internal/fiscal/nfe"
	"github.com/clinvet/fiscal-engine/internal/fiscal/nfse"
	"github.com/clinvet/fiscal-engine/internal/fiscal/provider"
	"github.com/clinvet/fiscal-engine/internal/fiscal/sefaz"
	"github.com/clinvet/fiscal-engine/internal/fiscal/transport"
	"github.com/clinvet/fiscal-engine/pkg/logger"
	"github.com/clinvet/fiscal-engine/pkg/redact"
	"github.com/clinvet/fiscal-engine/pkg/xmldsig"
)

// errorCodeTransport marca no error_code que a falha foi de transporte, não
// uma rejeição da autoridade; ambas seguem o mesmo caminho de reemissão
const errorCodeTransport = "transport"

// NFeGateway é o contrato do cliente SEFAZ consumido pelo pipeline
type NFeGateway interface {
	Authorize(ctx context.Context, em *emitter.Emitter, signedNFe string, pfxData []byte, password string) *transport.Result
	QueryReceipt(ctx context.Context, em *emitter.Emitter, receipt string, pfxData []byte, password string) *transport.Result
	QueryProtocol(ctx context.Context, em *emitter.Emitter, accessKey string, pfxData []byte, password string) *transport.Result
	SendEvent(ctx context.Context, em *emitter.Emitter, signedEvent string, pfxData []byte, password string) *transport.Result
}

// SignFunc assina um XML sobre o nó identificado pela tag
type SignFunc func(xml string, pfxData []byte, password, targetTag string) (string, error)

// EmissionService conduz um documento pelo ciclo de emissão: assinatura,
// transporte, interpretação da resposta e transição de status, com um evento
// imutável por passo. As transições de um mesmo documento são estritamente
// sequenciais; documentos distintos são independentes.
type EmissionService struct {
	docRepo     document.Repository
	emitterRepo emitter.Repository
	vault       *CertificateVault
	sefazClient NFeGateway
	providers   *provider.Registry
	sign        SignFunc
	logger      logger.Logger
}

// NewEmissionService cria um novo serviço de emissão
func NewEmissionService(docRepo document.Repository, emitterRepo emitter.Repository, vault *CertificateVault, sefazClient NFeGateway, providers *provider.Registry, log logger.Logger) *EmissionService {
	return &EmissionService{
		docRepo:     docRepo,
		emitterRepo: emitterRepo,
		vault:       vault,
		sefazClient: sefazClient,
		providers:   providers,
		sign:        xmldsig.Sign,
		logger:      log,
	}
}

// WithSigner substitui a função de assinatura (usado em testes)
func (s *EmissionService) WithSigner(sign SignFunc) *EmissionService {
	s.sign = sign
	return s
}

// Emit processa a emissão de um documento enfileirado. Se o documento já
// está em processamento ou além, o pickup é um no-op.
func (s *EmissionService) Emit(ctx context.Context, documentID string) error {
	doc, err := s.docRepo.FindByID(ctx, documentID)
	if err != nil {
		return fmt.Errorf("falha ao carregar documento: %w", err)
	}

	if !doc.MarkProcessing() {
		s.logger.Info("documento fora da fila de emissão, pickup ignorado",
			"document_id", doc.ID, "status", doc.Status)
		return nil
	}
	if err := s.docRepo.Update(ctx, doc); err != nil {
		return fmt.Errorf("falha ao marcar documento em processamento: %w", err)
	}

	em, err := s.emitterRepo.FindByID(ctx, doc.EmitterID)
	if err != nil {
		return s.fail(ctx, doc, fmt.Errorf("falha ao carregar emissor: %w", err))
	}

	payload, err := document.UnmarshalPayload(doc.Payload)
	if err != nil {
		return s.fail(ctx, doc, err)
	}

	cert, err := s.vault.GetActive(ctx, em.ID)
	if err != nil {
		return s.fail(ctx, doc, fmt.Errorf("emissor sem certificado ativo: %w", err))
	}
	pfxData, password, err := s.vault.Open(cert)
	if err != nil {
		return s.fail(ctx, doc, err)
	}

	switch doc.Type {
	case document.TypeNFe:
		return s.emitNFe(ctx, doc, em, payload, pfxData, password)
	case document.TypeNFSe:
		return s.emitNFSe(ctx, doc, em, payload, pfxData, password)
	}
	return s.fail(ctx, doc, fmt.Errorf("tipo de documento desconhecido: %q", doc.Type))
}

// emitNFe constrói, assina e envia uma NF-e, tratando o protocolo de
// autorização em duas fases da SEFAZ
func (s *EmissionService) emitNFe(ctx context.Context, doc *document.Document, em *emitter.Emitter, payload *document.Payload, pfxData []byte, password string) error {
	randomCode, err := nfe.RandomCode()
	if err != nil {
		return s.fail(ctx, doc, err)
	}

	xml, accessKey, err := nfe.Build(em, payload, doc.Series, doc.Number, time.Now(), randomCode)
	if err != nil {
		return s.fail(ctx, doc, err)
	}

	signedXML, err := s.sign(xml, pfxData, password, "infNFe")
	if err != nil {
		return s.fail(ctx, doc, err)
	}

	doc.AccessKey = accessKey
	doc.SignedXML = signedXML
	if err := s.docRepo.Update(ctx, doc); err != nil {
		return fmt.Errorf("falha ao persistir XML assinado: %w", err)
	}

	s.appendEvent(ctx, doc, document.EventSending, signedXML, "", "")

	result := s.sefazClient.Authorize(ctx, em, signedXML, pfxData, password)
	resp, perr := s.parseNFeResult(result)
	if perr != nil {
		return s.reject(ctx, doc, errorCodeTransport, perr.Error(), result)
	}

	switch {
	case resp.IsAuthorized():
		return s.authorize(ctx, doc, resp.Protocol, result)

	case resp.NeedsFollowUp():
		// Lote recebido (103): consulta síncrona imediata do recibo
		doc.Receipt = resp.Receipt
		s.appendEvent(ctx, doc, document.EventResponse, result.RequestXML, result.ResponseXML, "")

		followUp := s.sefazClient.QueryReceipt(ctx, em, resp.Receipt, pfxData, password)
		followResp, ferr := s.parseNFeResult(followUp)
		if ferr != nil {
			return s.reject(ctx, doc, errorCodeTransport, ferr.Error(), followUp)
		}
		if followResp.IsAuthorized() {
			return s.authorize(ctx, doc, followResp.Protocol, followUp)
		}
		return s.reject(ctx, doc, followResp.RejectionCode(), followResp.RejectionReason(), followUp)

	default:
		return s.reject(ctx, doc, resp.RejectionCode(), resp.RejectionReason(), result)
	}
}

// emitNFSe constrói, assina e envia um lote de RPS ao provedor municipal
func (s *EmissionService) emitNFSe(ctx context.Context, doc *document.Document, em *emitter.Emitter, payload *document.Payload, pfxData []byte, password string) error {
	prov, err := s.providers.Get(em.Municipality)
	if err != nil {
		return s.fail(ctx, doc, err)
	}

	rps, err := nfse.BuildRPS(em, payload, doc.Series, doc.Number, time.Now())
	if err != nil {
		return s.fail(ctx, doc, err)
	}
	lotXML, err := nfse.BuildLot(em, []*etree.Element{rps})
	if err != nil {
		return s.fail(ctx, doc, err)
	}

	signedXML, err := s.sign(lotXML, pfxData, password, "LoteRps")
	if err != nil {
		return s.fail(ctx, doc, err)
	}

	doc.SignedXML = signedXML
	if err := s.docRepo.Update(ctx, doc); err != nil {
		return fmt.Errorf("falha ao persistir XML assinado: %w", err)
	}

	s.appendEvent(ctx, doc, document.EventSending, signedXML, "", "")

	req := &provider.Request{Emitter: em, BodyXML: signedXML, PFXData: pfxData, Password: password}
	result := prov.Emit(ctx, req)
	resp, perr := s.parseNFSeResult(result)
	if perr != nil {
		return s.reject(ctx, doc, errorCodeTransport, perr.Error(), result)
	}

	if resp.HasErrors() {
		return s.reject(ctx, doc, resp.ErrorCode(), resp.ErrorText(), result)
	}

	if resp.Protocol != "" && !resp.IsAuthorized() {
		// Lote recebido: consulta síncrona imediata do protocolo
		doc.Protocol = resp.Protocol
		s.appendEvent(ctx, doc, document.EventResponse, result.RequestXML, result.ResponseXML, "")

		req.Protocol = resp.Protocol
		followUp := prov.QueryLot(ctx, req)
		followResp, ferr := s.parseNFSeResult(followUp)
		if ferr != nil {
			return s.reject(ctx, doc, errorCodeTransport, ferr.Error(), followUp)
		}
		if followResp.HasErrors() {
			return s.reject(ctx, doc, followResp.ErrorCode(), followResp.ErrorText(), followUp)
		}
		if followResp.IsAuthorized() {
			doc.NfseNumber = followResp.NfseNumber
			doc.VerificationCode = followResp.VerificationCode
			return s.authorize(ctx, doc, resp.Protocol, followUp)
		}
		// Ainda em processamento no provedor; a varredura de manutenção
		// fará o re-poll
		if err := s.docRepo.Update(ctx, doc); err != nil {
			return fmt.Errorf("falha ao persistir protocolo do lote: %w", err)
		}
		return nil
	}

	doc.NfseNumber = resp.NfseNumber
	doc.VerificationCode = resp.VerificationCode
	return s.authorize(ctx, doc, resp.Protocol, result)
}

// Poll consulta a situação de um documento com protocolo pendente. Estados
// terminais são no-op: apenas o registro do poll é gravado, sem mudança de
// status.
func (s *EmissionService) Poll(ctx context.Context, documentID string) error {
	doc, err := s.docRepo.FindByID(ctx, documentID)
	if err != nil {
		return fmt.Errorf("falha ao carregar documento: %w", err)
	}

	if doc.IsTerminal() || doc.Status != document.StatusProcessing {
		s.appendEvent(ctx, doc, document.EventPoll, "", "", "")
		return nil
	}

	em, err := s.emitterRepo.FindByID(ctx, doc.EmitterID)
	if err != nil {
		return fmt.Errorf("falha ao carregar emissor: %w", err)
	}
	cert, err := s.vault.GetActive(ctx, em.ID)
	if err != nil {
		return fmt.Errorf("emissor sem certificado ativo: %w", err)
	}
	pfxData, password, err := s.vault.Open(cert)
	if err != nil {
		return err
	}

	switch doc.Type {
	case document.TypeNFe:
		return s.pollNFe(ctx, doc, em, pfxData, password)
	case document.TypeNFSe:
		return s.pollNFSe(ctx, doc, em, pfxData, password)
	}
	return nil
}

func (s *EmissionService) pollNFe(ctx context.Context, doc *document.Document, em *emitter.Emitter, pfxData []byte, password string) error {
	var result *transport.Result
	if doc.Receipt != "" {
		result = s.sefazClient.QueryReceipt(ctx, em, doc.Receipt, pfxData, password)
	} else if doc.AccessKey != "" {
		result = s.sefazClient.QueryProtocol(ctx, em, doc.AccessKey, pfxData, password)
	} else {
		return nil
	}

	resp, perr := s.parseNFeResult(result)
	if perr != nil {
		s.appendEvent(ctx, doc, document.EventPoll, result.RequestXML, result.ResponseXML, perr.Error())
		return nil
	}
	if resp.IsAuthorized() {
		return s.authorize(ctx, doc, resp.Protocol, result)
	}
	if resp.NeedsFollowUp() {
		// Lote ainda em processamento; mantém PROCESSING
		s.appendEvent(ctx, doc, document.EventPoll, result.RequestXML, result.ResponseXML, "")
		return nil
	}
	return s.reject(ctx, doc, resp.RejectionCode(), resp.RejectionReason(), result)
}

func (s *EmissionService) pollNFSe(ctx context.Context, doc *document.Document, em *emitter.Emitter, pfxData []byte, password string) error {
	if doc.Protocol == "" {
		return nil
	}

	prov, err := s.providers.Get(em.Municipality)
	if err != nil {
		return err
	}

	req := &provider.Request{Emitter: em, PFXData: pfxData, Password: password, Protocol: doc.Protocol}
	result := prov.QueryLot(ctx, req)
	resp, perr := s.parseNFSeResult(result)
	if perr != nil {
		s.appendEvent(ctx, doc, document.EventPoll, result.RequestXML, result.ResponseXML, perr.Error())
		return nil
	}
	if resp.HasErrors() {
		return s.reject(ctx, doc, resp.ErrorCode(), resp.ErrorText(), result)
	}
	if resp.IsAuthorized() {
		doc.NfseNumber = resp.NfseNumber
		doc.VerificationCode = resp.VerificationCode
		return s.authorize(ctx, doc, doc.Protocol, result)
	}

	s.appendEvent(ctx, doc, document.EventPoll, result.RequestXML, result.ResponseXML, "")
	return nil
}

// Cancel submete o cancelamento de um documento autorizado. O cancelamento
// exige chave de acesso ou protocolo; a justificativa é completada até o
// mínimo exigido pelo fisco. Uma negativa do fisco não regride o status: o
// documento permanece autorizado e a negativa fica na trilha de eventos.
func (s *EmissionService) Cancel(ctx context.Context, documentID, reason string) error {
	doc, err := s.docRepo.FindByID(ctx, documentID)
	if err != nil {
		return fmt.Errorf("falha ao carregar documento: %w", err)
	}

	if err := doc.CanCancel(); err != nil {
		return err
	}

	em, err := s.emitterRepo.FindByID(ctx, doc.EmitterID)
	if err != nil {
		return fmt.Errorf("falha ao carregar emissor: %w", err)
	}
	cert, err := s.vault.GetActive(ctx, em.ID)
	if err != nil {
		return fmt.Errorf("emissor sem certificado ativo: %w", err)
	}
	pfxData, password, err := s.vault.Open(cert)
	if err != nil {
		return err
	}

	switch doc.Type {
	case document.TypeNFe:
		return s.cancelNFe(ctx, doc, em, reason, pfxData, password)
	case document.TypeNFSe:
		return s.cancelNFSe(ctx, doc, em, pfxData, password)
	}
	return nil
}

func (s *EmissionService) cancelNFe(ctx context.Context, doc *document.Document, em *emitter.Emitter, reason string, pfxData []byte, password string) error {
	eventXML, err := sefaz.BuildCancelEvent(em, doc.AccessKey, doc.Protocol, reason, time.Now())
	if err != nil {
		return err
	}

	signedEvent, err := s.sign(eventXML, pfxData, password, "infEvento")
	if err != nil {
		return err
	}

	result := s.sefazClient.SendEvent(ctx, em, signedEvent, pfxData, password)
	resp, perr := s.parseNFeResult(result)
	if perr != nil {
		s.appendEvent(ctx, doc, document.EventCancel, result.RequestXML, result.ResponseXML, perr.Error())
		return perr
	}

	if !resp.CancelConfirmed() {
		message := resp.RejectionReason()
		s.appendEvent(ctx, doc, document.EventCancel, result.RequestXML, result.ResponseXML, message)
		return fmt.Errorf("cancelamento não homologado pela SEFAZ: %s %s", resp.RejectionCode(), message)
	}

	if err := doc.MarkCanceled(); err != nil {
		return err
	}
	if err := s.docRepo.Update(ctx, doc); err != nil {
		return fmt.Errorf("falha ao persistir cancelamento: %w", err)
	}
	s.appendEvent(ctx, doc, document.EventCancel, result.RequestXML, result.ResponseXML, "")

	s.logger.Info("documento cancelado", "document_id", doc.ID, "access_key", doc.AccessKey)
	return nil
}

func (s *EmissionService) cancelNFSe(ctx context.Context, doc *document.Document, em *emitter.Emitter, pfxData []byte, password string) error {
	prov, err := s.providers.Get(em.Municipality)
	if err != nil {
		return err
	}

	cancelXML, err := nfse.BuildCancelRequest(em, doc.NfseNumber)
	if err != nil {
		return err
	}
	signedXML, err := s.sign(cancelXML, pfxData, password, "InfPedidoCancelamento")
	if err != nil {
		return err
	}

	req := &provider.Request{Emitter: em, BodyXML: signedXML, PFXData: pfxData, Password: password}
	result := prov.Cancel(ctx, req)
	resp, perr := s.parseNFSeResult(result)
	if perr != nil {
		s.appendEvent(ctx, doc, document.EventCancel, result.RequestXML, result.ResponseXML, perr.Error())
		return perr
	}

	if resp.HasErrors() {
		message := resp.ErrorText()
		s.appendEvent(ctx, doc, document.EventCancel, result.RequestXML, result.ResponseXML, message)
		return fmt.Errorf("cancelamento rejeitado pelo provedor: %s", message)
	}

	if err := doc.MarkCanceled(); err != nil {
		return err
	}
	if err := s.docRepo.Update(ctx, doc); err != nil {
		return fmt.Errorf("falha ao persistir cancelamento: %w", err)
	}
	s.appendEvent(ctx, doc, document.EventCancel, result.RequestXML, result.ResponseXML, "")
	return nil
}

// authorize fecha o ciclo com autorização, grava a resposta e o evento
func (s *EmissionService) authorize(ctx context.Context, doc *document.Document, protocol string, result *transport.Result) error {
	doc.ResponseXML = result.ResponseXML
	if err := doc.MarkAuthorized(protocol); err != nil {
		return err
	}
	if err := s.docRepo.Update(ctx, doc); err != nil {
		return fmt.Errorf("falha ao persistir autorização: %w", err)
	}
	s.appendEvent(ctx, doc, document.EventResponse, result.RequestXML, result.ResponseXML, "")

	s.logger.Info("documento autorizado",
		"document_id", doc.ID, "protocol", protocol, "doc_type", doc.Type)
	return nil
}

// reject fecha o ciclo com rejeição (da autoridade ou de transporte) e
// preserva a distinção no error_code
func (s *EmissionService) reject(ctx context.Context, doc *document.Document, code, message string, result *transport.Result) error {
	doc.ResponseXML = result.ResponseXML
	if err := doc.MarkRejected(code, message); err != nil {
		return err
	}
	if err := s.docRepo.Update(ctx, doc); err != nil {
		return fmt.Errorf("falha ao persistir rejeição: %w", err)
	}
	s.appendEvent(ctx, doc, document.EventError, result.RequestXML, result.ResponseXML, message)

	s.logger.Warn("documento rejeitado",
		"document_id", doc.ID, "error_code", code, "error_message", message)
	return nil
}

// fail registra uma falha antes do transporte (construção, assinatura,
// certificado) e deixa o documento elegível para nova tentativa
func (s *EmissionService) fail(ctx context.Context, doc *document.Document, cause error) error {
	if err := doc.MarkFailed(cause.Error()); err != nil {
		return cause
	}
	if err := s.docRepo.Update(ctx, doc); err != nil {
		s.logger.Error("falha ao persistir status de falha", "document_id", doc.ID, "error", err)
	}
	s.appendEvent(ctx, doc, document.EventError, "", "", cause.Error())
	return cause
}

// appendEvent grava um evento imutável com os XMLs já redigidos de dados
// sensíveis. Falhas de auditoria são logadas, nunca silenciosas.
func (s *EmissionService) appendEvent(ctx context.Context, doc *document.Document, eventType document.EventType, requestXML, responseXML, errMsg string) {
	event := document.NewEvent(doc.ID, eventType, doc.Status).
		WithXML(redact.XML(requestXML), redact.XML(responseXML)).
		WithError(errMsg)

	if err := s.docRepo.AppendEvent(ctx, event); err != nil {
		s.logger.Error("falha ao gravar evento de auditoria",
			"document_id", doc.ID, "event_type", eventType, "error", err)
	}
}

// parseNFeResult converte o resultado de transporte em resposta da SEFAZ,
// tratando os três desfechos de forma uniforme
func (s *EmissionService) parseNFeResult(result *transport.Result) (*nfe.Response, *transportError) {
	if result.ResponseXML == "" {
		return nil, &transportError{message: result.ErrorMessage}
	}
	resp, err := nfe.ParseResponse(result.ResponseXML)
	if err != nil {
		return nil, &transportError{message: err.Error()}
	}
	if !result.Success && resp.CStat == "" {
		return nil, &transportError{message: result.ErrorMessage}
	}
	return resp, nil
}

func (s *EmissionService) parseNFSeResult(result *transport.Result) (*nfse.Response, *transportError) {
	if result.ResponseXML == "" {
		return nil, &transportError{message: result.ErrorMessage}
	}
	resp, err := nfse.ParseResponse(result.ResponseXML)
	if err != nil {
		return nil, &transportError{message: err.Error()}
	}
	if !result.Success && !resp.HasErrors() && !resp.IsAuthorized() {
		return nil, &transportError{message: result.ErrorMessage}
	}
	return resp, nil
}

// transportError distingue falha de transporte de rejeição da autoridade
type transportError struct {
	message string
}

func (e *transportError) Error() string {
	if e.message == "" {
		return "falha de transporte sem resposta do serviço fiscal"
	}
	return e.message
}
