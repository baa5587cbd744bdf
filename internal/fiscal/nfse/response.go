package nfse

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

// Response é o resultado interpretado de uma resposta do provedor de NFS-e
type Response struct {
	Protocol         string
	NfseNumber       string
	VerificationCode string
	Situacao         string
	Messages         []Message
}

// Message é uma mensagem de retorno (erro ou alerta) do provedor
type Message struct {
	Code    string
	Text    string
	Correct string
}

// ParseResponse interpreta o XML de retorno dos serviços de NFS-e
// (EnviarLoteRpsResposta, ConsultarLoteRpsResposta, CancelarNfseResposta)
func ParseResponse(xml string) (*Response, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(xml); err != nil {
		return nil, fmt.Errorf("falha ao ler resposta do provedor de NFS-e: %w", err)
	}

	resp := &Response{}

	if el := doc.FindElement("//Protocolo"); el != nil {
		resp.Protocol = el.Text()
	}
	if el := doc.FindElement("//Situacao"); el != nil {
		resp.Situacao = el.Text()
	}
	if inf := doc.FindElement("//InfNfse"); inf != nil {
		if el := inf.FindElement("Numero"); el != nil {
			resp.NfseNumber = el.Text()
		}
		if el := inf.FindElement("CodigoVerificacao"); el != nil {
			resp.VerificationCode = el.Text()
		}
	}

	for _, el := range doc.FindElements("//MensagemRetorno") {
		msg := Message{}
		if code := el.FindElement("Codigo"); code != nil {
			msg.Code = code.Text()
		}
		if text := el.FindElement("Mensagem"); text != nil {
			msg.Text = text.Text()
		}
		if correct := el.FindElement("Correcao"); correct != nil {
			msg.Correct = correct.Text()
		}
		resp.Messages = append(resp.Messages, msg)
	}

	return resp, nil
}

// IsAuthorized indica que o lote foi processado e a NFS-e gerada. Provedores
// sinalizam com a presença da nota ou com situação "processado"/"autorizado"/
// "sucesso".
func (r *Response) IsAuthorized() bool {
	if r.NfseNumber != "" || r.VerificationCode != "" {
		return true
	}
	situacao := strings.ToLower(r.Situacao)
	for _, signal := range []string{"processado", "autorizado", "sucesso"} {
		if strings.Contains(situacao, signal) {
			return true
		}
	}
	return false
}

// HasErrors indica que o provedor devolveu mensagens de rejeição
func (r *Response) HasErrors() bool {
	return len(r.Messages) > 0
}

// ErrorCode retorna o código da primeira mensagem de rejeição
func (r *Response) ErrorCode() string {
	if len(r.Messages) == 0 {
		return ""
	}
	return r.Messages[0].Code
}

// ErrorText concatena as mensagens de rejeição do provedor
func (r *Response) ErrorText() string {
	parts := make([]string, 0, len(r.Messages))
	for _, msg := range r.Messages {
		parts = append(parts, strings.TrimSpace(msg.Code+" "+msg.Text))
	}
	return strings.Join(parts, "; ")
}
