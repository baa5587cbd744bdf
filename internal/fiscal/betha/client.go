package betha

import (
	"context"
	"fmt"

	"github.com/clinvet/fiscal-engine/internal/domain/emitter"
	"github.com/clinvet/fiscal-engine/internal/fiscal/provider"
	"github.com/clinvet/fiscal-engine/internal/fiscal/transport"
)

// RegistryKey é a chave sob a qual o adaptador Betha é registrado
const RegistryKey = "betha"

// Namespace do web service e-nota da Betha
const Namespace = "http://www.betha.com.br/e-nota-contribuinte-ws"

const soap11ContentType = "text/xml; charset=utf-8"

// endpoints por ambiente
var endpoints = map[emitter.FiscalEnvironment]string{
	emitter.Production:   "https://e-gov.betha.com.br/e-nota-contribuinte-ws/nfseWS",
	emitter.Homologation: "https://e-gov.betha.com.br/e-nota-contribuinte-test-ws/nfseWS",
}

// Client é o adaptador de NFS-e do provedor Betha (layout ABRASF)
type Client struct {
	transport *transport.Client
}

// NewClient cria um novo adaptador Betha
func NewClient(t *transport.Client) *Client {
	return &Client{transport: t}
}

var _ provider.Provider = (*Client)(nil)

// Emit envia um lote de RPS assinado (RecepcionarLoteRps)
func (c *Client) Emit(ctx context.Context, req *provider.Request) *transport.Result {
	return c.call(ctx, req, "RecepcionarLoteRps", req.BodyXML)
}

// QueryLot consulta o resultado do processamento de um lote (ConsultarLoteRps)
func (c *Client) QueryLot(ctx context.Context, req *provider.Request) *transport.Result {
	body := fmt.Sprintf(
		`<ConsultarLoteRpsEnvio xmlns=%q><Prestador><Cnpj>%s</Cnpj><InscricaoMunicipal>%s</InscricaoMunicipal></Prestador><Protocolo>%s</Protocolo></ConsultarLoteRpsEnvio>`,
		Namespace, req.Emitter.CNPJ, req.Emitter.InscricaoMunicipal, req.Protocol,
	)
	return c.call(ctx, req, "ConsultarLoteRps", body)
}

// Query consulta uma NFS-e pelo RPS que a originou (ConsultarNfsePorRps)
func (c *Client) Query(ctx context.Context, req *provider.Request) *transport.Result {
	return c.call(ctx, req, "ConsultarNfsePorRps", req.BodyXML)
}

// Cancel envia um pedido de cancelamento assinado (CancelarNfse)
func (c *Client) Cancel(ctx context.Context, req *provider.Request) *transport.Result {
	return c.call(ctx, req, "CancelarNfse", req.BodyXML)
}

func (c *Client) call(ctx context.Context, req *provider.Request, operation, body string) *transport.Result {
	endpoint := endpoints[req.Emitter.Environment]
	envelope := fmt.Sprintf(
		`<?xml version="1.0" encoding="UTF-8"?>`+
			`<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/" xmlns:e=%q>`+
			`<soapenv:Body><e:%s>%s</e:%s></soapenv:Body>`+
			`</soapenv:Envelope>`,
		Namespace, operation, body, operation,
	)
	return c.transport.Post(ctx, endpoint, soap11ContentType, envelope, req.PFXData, req.Password)
}
