package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinvet/fiscal-engine/internal/domain/certificate"
	"github.com/clinvet/fiscal-engine/internal/domain/document"
	"github.com/clinvet/fiscal-engine/internal/domain/emitter"
	"github.com/clinvet/fiscal-engine/internal/fiscal/provider"
	"github.com/clinvet/fiscal-engine/internal/fiscal/transport"
	"github.com/clinvet/fiscal-engine/pkg/cipher"
	"github.com/clinvet/fiscal-engine/pkg/redact"
)

type noopLogger struct{}

func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}
func (noopLogger) Debug(string, ...interface{}) {}
func (noopLogger) Warn(string, ...interface{})  {}

// memDocRepo guarda documentos e eventos em memória
type memDocRepo struct {
	mu     sync.Mutex
	docs   map[string]*document.Document
	events []*document.Event
}

func newMemDocRepo() *memDocRepo {
	return &memDocRepo{docs: make(map[string]*document.Document)}
}

func (r *memDocRepo) Create(_ context.Context, doc *document.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[doc.ID] = doc
	return nil
}

func (r *memDocRepo) FindByID(_ context.Context, id string) (*document.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok {
		return nil, errors.New("documento não encontrado")
	}
	return doc, nil
}

func (r *memDocRepo) FindByRelated(_ context.Context, relatedType document.RelatedType, relatedID string, docType document.Type) (*document.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, doc := range r.docs {
		if doc.RelatedType == relatedType && doc.RelatedID == relatedID && doc.Type == docType {
			return doc, nil
		}
	}
	return nil, nil
}

func (r *memDocRepo) Update(_ context.Context, doc *document.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[doc.ID] = doc
	return nil
}

func (r *memDocRepo) List(_ context.Context, _ string, _ document.Status, _, _ int) ([]*document.Document, error) {
	return nil, nil
}

func (r *memDocRepo) FindFailedSince(_ context.Context, since time.Time, limit int) ([]*document.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*document.Document
	for _, doc := range r.docs {
		if doc.Status == document.StatusFailed && !doc.UpdatedAt.Before(since) && len(out) < limit {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (r *memDocRepo) FindStaleProcessing(_ context.Context, olderThan time.Time, limit int) ([]*document.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*document.Document
	for _, doc := range r.docs {
		if doc.Status == document.StatusProcessing && doc.UpdatedAt.Before(olderThan) && len(out) < limit {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (r *memDocRepo) AppendEvent(_ context.Context, event *document.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *memDocRepo) ListEvents(_ context.Context, documentID string) ([]*document.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*document.Event
	for _, ev := range r.events {
		if ev.DocumentID == documentID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (r *memDocRepo) CountEvents(_ context.Context, documentID string, eventType document.EventType) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, ev := range r.events {
		if ev.DocumentID == documentID && ev.Type == eventType {
			count++
		}
	}
	return count, nil
}

func (r *memDocRepo) eventsOfType(eventType document.EventType) []*document.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*document.Event
	for _, ev := range r.events {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}

type memEmitterRepo struct {
	em *emitter.Emitter
}

func (r *memEmitterRepo) Create(context.Context, *emitter.Emitter) error { return nil }
func (r *memEmitterRepo) FindByID(_ context.Context, id string) (*emitter.Emitter, error) {
	if r.em == nil || r.em.ID != id {
		return nil, errors.New("emissor não encontrado")
	}
	return r.em, nil
}
func (r *memEmitterRepo) FindByClinic(context.Context, string) (*emitter.Emitter, error) {
	return r.em, nil
}
func (r *memEmitterRepo) Update(context.Context, *emitter.Emitter) error { return nil }
func (r *memEmitterRepo) List(context.Context, int, int) ([]*emitter.Emitter, error) {
	return nil, nil
}
func (r *memEmitterRepo) ExistsByClinic(context.Context, string) (bool, error) {
	return r.em != nil, nil
}

type memCertRepo struct {
	cert *certificate.Certificate
}

func (r *memCertRepo) Create(_ context.Context, cert *certificate.Certificate) error {
	r.cert = cert
	return nil
}
func (r *memCertRepo) FindByID(context.Context, string) (*certificate.Certificate, error) {
	return r.cert, nil
}
func (r *memCertRepo) FindByEmitter(context.Context, string) ([]*certificate.Certificate, error) {
	return []*certificate.Certificate{r.cert}, nil
}
func (r *memCertRepo) FindActive(context.Context, string) (*certificate.Certificate, error) {
	if r.cert == nil {
		return nil, errors.New("emissor não possui certificado ativo")
	}
	return r.cert, nil
}
func (r *memCertRepo) FindExpiring(context.Context, int) ([]*certificate.Certificate, error) {
	return nil, nil
}

// fakeGateway devolve respostas programadas da SEFAZ e conta as chamadas
type fakeGateway struct {
	authorizeResult    *transport.Result
	queryReceiptResult *transport.Result
	queryProtResult    *transport.Result
	sendEventResult    *transport.Result

	authorizeCalls    int
	queryReceiptCalls int
}

func (g *fakeGateway) Authorize(context.Context, *emitter.Emitter, string, []byte, string) *transport.Result {
	g.authorizeCalls++
	return g.authorizeResult
}
func (g *fakeGateway) QueryReceipt(context.Context, *emitter.Emitter, string, []byte, string) *transport.Result {
	g.queryReceiptCalls++
	return g.queryReceiptResult
}
func (g *fakeGateway) QueryProtocol(context.Context, *emitter.Emitter, string, []byte, string) *transport.Result {
	return g.queryProtResult
}
func (g *fakeGateway) SendEvent(context.Context, *emitter.Emitter, string, []byte, string) *transport.Result {
	return g.sendEventResult
}

// fakeProvider devolve respostas programadas do provedor municipal de NFS-e
type fakeProvider struct {
	emitResult     *transport.Result
	queryLotResult *transport.Result
	cancelResult   *transport.Result
}

func (p *fakeProvider) Emit(context.Context, *provider.Request) *transport.Result {
	return p.emitResult
}
func (p *fakeProvider) QueryLot(context.Context, *provider.Request) *transport.Result {
	return p.queryLotResult
}
func (p *fakeProvider) Query(context.Context, *provider.Request) *transport.Result {
	return p.queryLotResult
}
func (p *fakeProvider) Cancel(context.Context, *provider.Request) *transport.Result {
	return p.cancelResult
}

const (
	sefazAuthorizedXML = `<retConsReciNFe xmlns="http://www.portalfiscal.inf.br/nfe"><cStat>104</cStat><xMotivo>Lote processado</xMotivo><protNFe><infProt><cStat>100</cStat><xMotivo>Autorizado o uso da NF-e</xMotivo><nProt>135250000000001</nProt></infProt></protNFe></retConsReciNFe>`
	sefazReceivedXML   = `<retEnviNFe xmlns="http://www.portalfiscal.inf.br/nfe"><cStat>103</cStat><xMotivo>Lote recebido com sucesso</xMotivo><infRec><nRec>351000012345678</nRec></infRec></retEnviNFe>`
	sefazRejectedXML   = `<retEnviNFe xmlns="http://www.portalfiscal.inf.br/nfe"><cStat>104</cStat><xMotivo>Lote processado</xMotivo><protNFe><infProt><cStat>539</cStat><xMotivo>Rejeicao: Duplicidade de NF-e</xMotivo></infProt></protNFe></retEnviNFe>`
	sefazCanceledXML   = `<retEnvEvento xmlns="http://www.portalfiscal.inf.br/nfe"><retEvento><infEvento><cStat>135</cStat><xMotivo>Evento registrado e vinculado a NF-e</xMotivo><nProt>135250000000099</nProt></infEvento></retEvento></retEnvEvento>`
	sefazCancelDenyXML = `<retEnvEvento xmlns="http://www.portalfiscal.inf.br/nfe"><retEvento><infEvento><cStat>573</cStat><xMotivo>Rejeicao: Duplicidade de evento</xMotivo></infEvento></retEvento></retEnvEvento>`

	nfseProtocolXML   = `<EnviarLoteRpsResposta xmlns="http://www.betha.com.br/e-nota-contribuinte-ws"><NumeroLote>1</NumeroLote><Protocolo>PROTO-123</Protocolo></EnviarLoteRpsResposta>`
	nfseAuthorizedXML = `<ConsultarLoteRpsResposta xmlns="http://www.betha.com.br/e-nota-contribuinte-ws"><ListaNfse><CompNfse><Nfse><InfNfse><Numero>777</Numero><CodigoVerificacao>ABCD-1234</CodigoVerificacao></InfNfse></Nfse></CompNfse></ListaNfse></ConsultarLoteRpsResposta>`
	nfseRejectedXML   = `<ConsultarLoteRpsResposta xmlns="http://www.betha.com.br/e-nota-contribuinte-ws"><ListaMensagemRetorno><MensagemRetorno><Codigo>E160</Codigo><Mensagem>CNPJ do prestador invalido</Mensagem></MensagemRetorno></ListaMensagemRetorno></ConsultarLoteRpsResposta>`
	nfseCancelOkXML   = `<CancelarNfseResposta xmlns="http://www.betha.com.br/e-nota-contribuinte-ws"><RetCancelamento><NfseCancelamento><Confirmacao><Pedido/><DataHora>2025-01-15T10:00:00</DataHora></Confirmacao></NfseCancelamento></RetCancelamento></CancelarNfseResposta>`
)

func okResult(responseXML string) *transport.Result {
	return &transport.Result{Success: true, RequestXML: "<pedido/>", ResponseXML: responseXML}
}

type emissionFixture struct {
	svc     *EmissionService
	docRepo *memDocRepo
	gateway *fakeGateway
	prov    *fakeProvider
	em      *emitter.Emitter
	doc     *document.Document
}

func newEmissionFixture(t *testing.T, docType document.Type) *emissionFixture {
	t.Helper()

	em, err := emitter.NewEmitter("clinic-1", "12345678000199", "Clinica Exemplo LTDA")
	require.NoError(t, err)
	em.ConfigureTax("simples_nacional", "123456789", "987654", "betha")
	require.NoError(t, em.ConfigureAddress("Rua das Flores", "100", "Centro", "São Paulo", "SP", "01001000", "3550308"))

	keys, err := cipher.NewKeyProvider("chave-mestra-de-teste")
	require.NoError(t, err)

	cert, err := certificate.NewCertificate(em.ID, em.ClinicID, "fingerprint", em.CNPJ,
		"CLINICA EXEMPLO LTDA:12345678000199", time.Now().Add(-time.Hour), time.Now().Add(24*time.Hour))
	require.NoError(t, err)

	clinicKey := keys.ClinicKey(em.ClinicID)
	pfxEnc, err := cipher.Encrypt(clinicKey, []byte("pfx-de-teste"))
	require.NoError(t, err)
	pwdEnc, err := cipher.Encrypt(clinicKey, []byte("senha123"))
	require.NoError(t, err)
	require.NoError(t, cert.StoreEncrypted(pfxEnc, pwdEnc))

	certRepo := &memCertRepo{cert: cert}
	vault := NewCertificateVault(certRepo, keys, noopLogger{})

	doc, err := document.NewDocument(em.ID, em.ClinicID, docType, document.RelatedOrder, "order-1", "1", 42)
	require.NoError(t, err)

	payload := &document.Payload{
		Customer: document.Party{CpfCnpj: "12345678901", Name: "Cliente Exemplo",
			Street: "Rua B", Number: "20", District: "Centro", City: "São Paulo",
			CityCode: "3550308", UF: "SP", ZipCode: "01002000"},
	}
	if docType == document.TypeNFe {
		payload.Items = []document.ProductItem{{
			Code: "RAC-001", Description: "Ração premium", NCM: "23091000", CFOP: "5102",
			Unit: "UN", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.RequireFromString("149.90"),
			AliquotaICMS: decimal.RequireFromString("0.18"),
			AliquotaPIS:  decimal.RequireFromString("0.0165"), AliquotaCOFINS: decimal.RequireFromString("0.076"),
		}}
	} else {
		payload.Service = &document.ServiceData{
			Description: "Consulta veterinária", Value: decimal.RequireFromString("250.00"),
			AliquotaISS: decimal.RequireFromString("0.03"), ItemListaServico: "05.09",
		}
	}
	data, err := payload.Marshal()
	require.NoError(t, err)
	doc.Payload = data
	require.NoError(t, doc.MarkQueued())

	docRepo := newMemDocRepo()
	require.NoError(t, docRepo.Create(context.Background(), doc))

	gateway := &fakeGateway{}
	prov := &fakeProvider{}
	registry := provider.NewRegistry()
	registry.Register("betha", prov)

	svc := NewEmissionService(docRepo, &memEmitterRepo{em: em}, vault, gateway, registry, noopLogger{}).
		WithSigner(func(xml string, _ []byte, _, _ string) (string, error) { return xml, nil })

	return &emissionFixture{svc: svc, docRepo: docRepo, gateway: gateway, prov: prov, em: em, doc: doc}
}

func TestEmitNFeAuthorizedDirectly(t *testing.T) {
	f := newEmissionFixture(t, document.TypeNFe)
	f.gateway.authorizeResult = okResult(sefazAuthorizedXML)

	require.NoError(t, f.svc.Emit(context.Background(), f.doc.ID))

	assert.Equal(t, document.StatusAuthorized, f.doc.Status)
	assert.Equal(t, "135250000000001", f.doc.Protocol)
	assert.Len(t, f.doc.AccessKey, 44)
	assert.NotEmpty(t, f.doc.SignedXML)
	assert.NotNil(t, f.doc.AuthorizedAt)
	assert.Equal(t, 0, f.gateway.queryReceiptCalls)
}

func TestEmitNFeTwoPhaseAuthorization(t *testing.T) {
	f := newEmissionFixture(t, document.TypeNFe)
	f.gateway.authorizeResult = okResult(sefazReceivedXML)
	f.gateway.queryReceiptResult = okResult(sefazAuthorizedXML)

	require.NoError(t, f.svc.Emit(context.Background(), f.doc.ID))

	assert.Equal(t, document.StatusAuthorized, f.doc.Status)
	assert.Equal(t, "351000012345678", f.doc.Receipt)
	assert.Equal(t, "135250000000001", f.doc.Protocol)
	assert.Equal(t, 1, f.gateway.authorizeCalls)
	assert.Equal(t, 1, f.gateway.queryReceiptCalls)

	// Um evento de resposta para o recebimento do lote e outro para a
	// autorização definitiva
	assert.Len(t, f.docRepo.eventsOfType(document.EventResponse), 2)
}

func TestEmitNFeRejected(t *testing.T) {
	f := newEmissionFixture(t, document.TypeNFe)
	f.gateway.authorizeResult = okResult(sefazRejectedXML)

	require.NoError(t, f.svc.Emit(context.Background(), f.doc.ID))

	assert.Equal(t, document.StatusRejected, f.doc.Status)
	assert.Equal(t, "539", f.doc.ErrorCode)
	assert.Contains(t, f.doc.ErrorMessage, "Duplicidade")
	assert.Len(t, f.docRepo.eventsOfType(document.EventError), 1)
}

func TestEmitNFeTransportFailure(t *testing.T) {
	f := newEmissionFixture(t, document.TypeNFe)
	f.gateway.authorizeResult = &transport.Result{
		RequestXML: "<pedido/>", ErrorMessage: "timeout ao conectar na SEFAZ",
	}

	require.NoError(t, f.svc.Emit(context.Background(), f.doc.ID))

	assert.Equal(t, document.StatusRejected, f.doc.Status)
	assert.Equal(t, "transport", f.doc.ErrorCode)
	assert.Contains(t, f.doc.ErrorMessage, "timeout")
}

func TestEmitSkipsDocumentOutOfQueue(t *testing.T) {
	f := newEmissionFixture(t, document.TypeNFe)
	f.gateway.authorizeResult = okResult(sefazAuthorizedXML)
	require.NoError(t, f.svc.Emit(context.Background(), f.doc.ID))
	require.Equal(t, document.StatusAuthorized, f.doc.Status)

	// Segundo pickup do mesmo documento é um no-op
	require.NoError(t, f.svc.Emit(context.Background(), f.doc.ID))
	assert.Equal(t, 1, f.gateway.authorizeCalls)
}

func TestEmitNFSeAuthorizedViaProtocol(t *testing.T) {
	f := newEmissionFixture(t, document.TypeNFSe)
	f.prov.emitResult = okResult(nfseProtocolXML)
	f.prov.queryLotResult = okResult(nfseAuthorizedXML)

	require.NoError(t, f.svc.Emit(context.Background(), f.doc.ID))

	assert.Equal(t, document.StatusAuthorized, f.doc.Status)
	assert.Equal(t, "PROTO-123", f.doc.Protocol)
	assert.Equal(t, "777", f.doc.NfseNumber)
	assert.Equal(t, "ABCD-1234", f.doc.VerificationCode)
}

func TestEmitNFSeStaysProcessingWhileProviderWorks(t *testing.T) {
	f := newEmissionFixture(t, document.TypeNFSe)
	f.prov.emitResult = okResult(nfseProtocolXML)
	// Consulta do lote ainda sem resultado: só o protocolo de volta
	f.prov.queryLotResult = okResult(nfseProtocolXML)

	require.NoError(t, f.svc.Emit(context.Background(), f.doc.ID))

	assert.Equal(t, document.StatusProcessing, f.doc.Status)
	assert.Equal(t, "PROTO-123", f.doc.Protocol)
}

func TestEmitNFSeRejected(t *testing.T) {
	f := newEmissionFixture(t, document.TypeNFSe)
	f.prov.emitResult = okResult(nfseRejectedXML)

	require.NoError(t, f.svc.Emit(context.Background(), f.doc.ID))

	assert.Equal(t, document.StatusRejected, f.doc.Status)
	assert.Equal(t, "E160", f.doc.ErrorCode)
}

func TestPollTerminalDocumentIsNoOp(t *testing.T) {
	f := newEmissionFixture(t, document.TypeNFe)
	f.gateway.authorizeResult = okResult(sefazAuthorizedXML)
	require.NoError(t, f.svc.Emit(context.Background(), f.doc.ID))
	authorizedAt := f.doc.AuthorizedAt

	require.NoError(t, f.svc.Poll(context.Background(), f.doc.ID))

	assert.Equal(t, document.StatusAuthorized, f.doc.Status)
	assert.Equal(t, authorizedAt, f.doc.AuthorizedAt)
	assert.Len(t, f.docRepo.eventsOfType(document.EventPoll), 1)
}

func TestPollResolvesPendingNFSe(t *testing.T) {
	f := newEmissionFixture(t, document.TypeNFSe)
	f.prov.emitResult = okResult(nfseProtocolXML)
	f.prov.queryLotResult = okResult(nfseProtocolXML)
	require.NoError(t, f.svc.Emit(context.Background(), f.doc.ID))
	require.Equal(t, document.StatusProcessing, f.doc.Status)

	// O provedor terminou de processar o lote
	f.prov.queryLotResult = okResult(nfseAuthorizedXML)
	require.NoError(t, f.svc.Poll(context.Background(), f.doc.ID))

	assert.Equal(t, document.StatusAuthorized, f.doc.Status)
	assert.Equal(t, "777", f.doc.NfseNumber)
}

func TestCancelNFeConfirmed(t *testing.T) {
	f := newEmissionFixture(t, document.TypeNFe)
	f.gateway.authorizeResult = okResult(sefazAuthorizedXML)
	require.NoError(t, f.svc.Emit(context.Background(), f.doc.ID))

	f.gateway.sendEventResult = okResult(sefazCanceledXML)
	require.NoError(t, f.svc.Cancel(context.Background(), f.doc.ID, "Emitida com dados incorretos"))

	assert.Equal(t, document.StatusCanceled, f.doc.Status)
	assert.NotNil(t, f.doc.CanceledAt)
	assert.Len(t, f.docRepo.eventsOfType(document.EventCancel), 1)
}

func TestCancelNFeDeniedKeepsAuthorized(t *testing.T) {
	f := newEmissionFixture(t, document.TypeNFe)
	f.gateway.authorizeResult = okResult(sefazAuthorizedXML)
	require.NoError(t, f.svc.Emit(context.Background(), f.doc.ID))

	f.gateway.sendEventResult = okResult(sefazCancelDenyXML)
	err := f.svc.Cancel(context.Background(), f.doc.ID, "Motivo qualquer")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "cancelamento não homologado")
	// A negativa não regride o status; fica apenas na trilha de eventos
	assert.Equal(t, document.StatusAuthorized, f.doc.Status)
	assert.Nil(t, f.doc.CanceledAt)
	events := f.docRepo.eventsOfType(document.EventCancel)
	require.Len(t, events, 1)
	assert.Contains(t, events[0].ErrorMessage, "Duplicidade de evento")
}

func TestCancelRequiresAuthorizedStatus(t *testing.T) {
	f := newEmissionFixture(t, document.TypeNFe)

	err := f.svc.Cancel(context.Background(), f.doc.ID, "Motivo")
	assert.ErrorIs(t, err, document.ErrInvalidTransition)
}

func TestCancelNFSeConfirmed(t *testing.T) {
	f := newEmissionFixture(t, document.TypeNFSe)
	f.prov.emitResult = okResult(nfseProtocolXML)
	f.prov.queryLotResult = okResult(nfseAuthorizedXML)
	require.NoError(t, f.svc.Emit(context.Background(), f.doc.ID))

	f.prov.cancelResult = okResult(nfseCancelOkXML)
	require.NoError(t, f.svc.Cancel(context.Background(), f.doc.ID, ""))

	assert.Equal(t, document.StatusCanceled, f.doc.Status)
}

func TestEventsRedactSensitiveData(t *testing.T) {
	f := newEmissionFixture(t, document.TypeNFe)
	f.gateway.authorizeResult = okResult(sefazAuthorizedXML)

	require.NoError(t, f.svc.Emit(context.Background(), f.doc.ID))

	sending := f.docRepo.eventsOfType(document.EventSending)
	require.Len(t, sending, 1)
	// O XML assinado carrega o CNPJ do emissor em claro; a trilha guarda a
	// versão redigida, o documento guarda a íntegra
	assert.NotContains(t, sending[0].RequestXML, "<CNPJ>"+f.em.CNPJ+"</CNPJ>")
	assert.Contains(t, sending[0].RequestXML, redact.Placeholder)
	assert.Contains(t, f.doc.SignedXML, "<CNPJ>"+f.em.CNPJ+"</CNPJ>")
}

func TestEmitBuildFailureMarksFailed(t *testing.T) {
	f := newEmissionFixture(t, document.TypeNFe)
	payload := &document.Payload{Customer: document.Party{CpfCnpj: "12345678901", Name: "Cliente"}}
	data, err := payload.Marshal()
	require.NoError(t, err)
	f.doc.Payload = data

	err = f.svc.Emit(context.Background(), f.doc.ID)
	require.Error(t, err)
	assert.Equal(t, document.StatusFailed, f.doc.Status)
	assert.NotEmpty(t, f.doc.ErrorMessage)

	// Documento com falha volta a ser elegível para emissão
	assert.True(t, f.doc.MarkProcessing())
}
