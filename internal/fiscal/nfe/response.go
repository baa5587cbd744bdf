package nfe

import (
	"fmt"

	"github.com/beevik/etree"
)

// Códigos de status da SEFAZ de interesse do pipeline
const (
	CStatAuthorized       = "100" // Autorizado o uso da NF-e
	CStatAuthorizedOutTim = "150" // Autorizado fora de prazo
	CStatLotReceived      = "103" // Lote recebido com sucesso, aguardando processamento
	CStatCancelConfirmed  = "135" // Evento registrado e vinculado a NF-e
)

// Response é o resultado interpretado de uma resposta da SEFAZ. Os campos de
// protocolo vêm do bloco protNFe quando presente; Receipt vem de infRec no
// fluxo assíncrono em duas fases.
type Response struct {
	CStat       string
	XMotivo     string
	Receipt     string
	Protocol    string
	ProtCStat   string
	ProtXMotivo string
	EventCStat  string
}

// ParseResponse interpreta o XML de retorno dos serviços da SEFAZ
// (retEnviNFe, retConsReciNFe, retConsSitNFe, retEnvEvento)
func ParseResponse(xml string) (*Response, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(xml); err != nil {
		return nil, fmt.Errorf("falha ao ler resposta da SEFAZ: %w", err)
	}

	resp := &Response{}

	if el := doc.FindElement("//cStat"); el != nil {
		resp.CStat = el.Text()
	}
	if el := doc.FindElement("//xMotivo"); el != nil {
		resp.XMotivo = el.Text()
	}
	if el := doc.FindElement("//infRec/nRec"); el != nil {
		resp.Receipt = el.Text()
	}
	if prot := doc.FindElement("//protNFe/infProt"); prot != nil {
		if el := prot.FindElement("nProt"); el != nil {
			resp.Protocol = el.Text()
		}
		if el := prot.FindElement("cStat"); el != nil {
			resp.ProtCStat = el.Text()
		}
		if el := prot.FindElement("xMotivo"); el != nil {
			resp.ProtXMotivo = el.Text()
		}
	}
	if ev := doc.FindElement("//retEvento/infEvento"); ev != nil {
		if el := ev.FindElement("cStat"); el != nil {
			resp.EventCStat = el.Text()
		}
		if el := ev.FindElement("nProt"); el != nil && resp.Protocol == "" {
			resp.Protocol = el.Text()
		}
	}

	return resp, nil
}

// IsAuthorized indica autorização definitiva (cStat 100 ou 150 no protocolo)
func (r *Response) IsAuthorized() bool {
	code := r.ProtCStat
	if code == "" {
		code = r.CStat
	}
	return code == CStatAuthorized || code == CStatAuthorizedOutTim
}

// NeedsFollowUp indica o fluxo em duas fases: lote recebido (103), exige
// consulta do recibo via ret_autorizacao
func (r *Response) NeedsFollowUp() bool {
	return r.CStat == CStatLotReceived && r.Receipt != ""
}

// CancelConfirmed indica que o evento de cancelamento foi homologado (135)
func (r *Response) CancelConfirmed() bool {
	return r.EventCStat == CStatCancelConfirmed
}

// RejectionCode retorna o código de rejeição mais específico disponível
func (r *Response) RejectionCode() string {
	if r.ProtCStat != "" {
		return r.ProtCStat
	}
	return r.CStat
}

// RejectionReason retorna o motivo de rejeição mais específico disponível
func (r *Response) RejectionReason() string {
	if r.ProtXMotivo != "" {
		return r.ProtXMotivo
	}
	return r.XMotivo
}
