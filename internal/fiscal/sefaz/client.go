package sefaz

import (
	"context"
	"fmt"

	"github.com/beevik/etree"

	"github.com/clinvet/fiscal-engine/internal/domain/emitter"
	"github.com/clinvet/fiscal-engine/internal/fiscal/nfe"
	"github.com/clinvet/fiscal-engine/internal/fiscal/transport"
)

// Content type de SOAP 1.2 exigido pelos serviços versão 4.00
const soap12ContentType = "application/soap+xml; charset=utf-8"

// Serviços da SEFAZ-SP consumidos pelo pipeline
type service string

const (
	svcAutorizacao    service = "NFeAutorizacao4"
	svcRetAutorizacao service = "NFeRetAutorizacao4"
	svcConsulta       service = "NFeConsultaProtocolo4"
	svcEvento         service = "NFeRecepcaoEvento4"
)

// endpoints por ambiente (SEFAZ-SP)
var endpoints = map[emitter.FiscalEnvironment]map[service]string{
	emitter.Production: {
		svcAutorizacao:    "https://nfe.fazenda.sp.gov.br/ws/nfeautorizacao4.asmx",
		svcRetAutorizacao: "https://nfe.fazenda.sp.gov.br/ws/nferetautorizacao4.asmx",
		svcConsulta:       "https://nfe.fazenda.sp.gov.br/ws/nfeconsultaprotocolo4.asmx",
		svcEvento:         "https://nfe.fazenda.sp.gov.br/ws/nferecepcaoevento4.asmx",
	},
	emitter.Homologation: {
		svcAutorizacao:    "https://homologacao.nfe.fazenda.sp.gov.br/ws/nfeautorizacao4.asmx",
		svcRetAutorizacao: "https://homologacao.nfe.fazenda.sp.gov.br/ws/nferetautorizacao4.asmx",
		svcConsulta:       "https://homologacao.nfe.fazenda.sp.gov.br/ws/nfeconsultaprotocolo4.asmx",
		svcEvento:         "https://homologacao.nfe.fazenda.sp.gov.br/ws/nferecepcaoevento4.asmx",
	},
}

// Client é o cliente SOAP dos web services de NF-e da SEFAZ-SP
type Client struct {
	transport *transport.Client
}

// NewClient cria um novo cliente da SEFAZ
func NewClient(t *transport.Client) *Client {
	return &Client{transport: t}
}

// Authorize envia uma NF-e assinada para autorização (envio síncrono de lote
// unitário). A resposta pode ser a autorização direta ou o recibo 103 que
// exige consulta posterior.
func (c *Client) Authorize(ctx context.Context, em *emitter.Emitter, signedNFe string, pfxData []byte, password string) *transport.Result {
	payload := fmt.Sprintf(
		`<enviNFe xmlns="%s" versao="%s"><idLote>1</idLote><indSinc>1</indSinc>%s</enviNFe>`,
		nfe.Namespace, nfe.Version, stripDeclaration(signedNFe),
	)
	return c.call(ctx, em, svcAutorizacao, payload, pfxData, password)
}

// QueryReceipt consulta o resultado do processamento de um lote pelo número
// do recibo (segunda fase do protocolo de autorização)
func (c *Client) QueryReceipt(ctx context.Context, em *emitter.Emitter, receipt string, pfxData []byte, password string) *transport.Result {
	tpAmb := environmentCode(em)
	payload := fmt.Sprintf(
		`<consReciNFe xmlns="%s" versao="%s"><tpAmb>%s</tpAmb><nRec>%s</nRec></consReciNFe>`,
		nfe.Namespace, nfe.Version, tpAmb, receipt,
	)
	return c.call(ctx, em, svcRetAutorizacao, payload, pfxData, password)
}

// QueryProtocol consulta a situação atual de uma NF-e pela chave de acesso
func (c *Client) QueryProtocol(ctx context.Context, em *emitter.Emitter, accessKey string, pfxData []byte, password string) *transport.Result {
	tpAmb := environmentCode(em)
	payload := fmt.Sprintf(
		`<consSitNFe xmlns="%s" versao="%s"><tpAmb>%s</tpAmb><xServ>CONSULTAR</xServ><chNFe>%s</chNFe></consSitNFe>`,
		nfe.Namespace, nfe.Version, tpAmb, accessKey,
	)
	return c.call(ctx, em, svcConsulta, payload, pfxData, password)
}

// SendEvent envia um evento assinado (cancelamento) para a SEFAZ
func (c *Client) SendEvent(ctx context.Context, em *emitter.Emitter, signedEvent string, pfxData []byte, password string) *transport.Result {
	payload := fmt.Sprintf(
		`<envEvento xmlns="%s" versao="1.00"><idLote>1</idLote>%s</envEvento>`,
		nfe.Namespace, stripDeclaration(signedEvent),
	)
	return c.call(ctx, em, svcEvento, payload, pfxData, password)
}

func (c *Client) call(ctx context.Context, em *emitter.Emitter, svc service, payload string, pfxData []byte, password string) *transport.Result {
	endpoint := endpoints[em.Environment][svc]
	envelope := fmt.Sprintf(
		`<?xml version="1.0" encoding="UTF-8"?>`+
			`<soap12:Envelope xmlns:soap12="http://www.w3.org/2003/05/soap-envelope">`+
			`<soap12:Body><nfeDadosMsg xmlns="http://www.portalfiscal.inf.br/nfe/wsdl/%s">%s</nfeDadosMsg></soap12:Body>`+
			`</soap12:Envelope>`,
		svc, payload,
	)
	return c.transport.Post(ctx, endpoint, soap12ContentType, envelope, pfxData, password)
}

func environmentCode(em *emitter.Emitter) string {
	if em.Environment == emitter.Production {
		return "1"
	}
	return "2"
}

// stripDeclaration remove a declaração XML de um documento que será embutido
// em outro envelope
func stripDeclaration(xml string) string {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(xml); err != nil {
		return xml
	}
	root := doc.Root()
	if root == nil {
		return xml
	}

	out := etree.NewDocument()
	out.SetRoot(root.Copy())
	out.WriteSettings = etree.WriteSettings{
		CanonicalEndTags: true,
		CanonicalText:    true,
		CanonicalAttrVal: true,
	}
	s, err := out.WriteToString()
	if err != nil {
		return xml
	}
	return s
}
