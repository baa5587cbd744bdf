package nfse

import (
	"errors"
	"fmt"

	"github.com/beevik/etree"

	"github.com/clinvet/fiscal-engine/internal/domain/emitter"
)

// ErrMissingNfseNumber indica que o documento ainda não tem número de NFS-e
var ErrMissingNfseNumber = errors.New("cancelamento exige o número da NFS-e gerada")

// BuildCancelRequest monta o pedido de cancelamento de uma NFS-e a ser
// assinado (nó InfPedidoCancelamento com atributo Id)
func BuildCancelRequest(em *emitter.Emitter, nfseNumber string) (string, error) {
	if nfseNumber == "" {
		return "", ErrMissingNfseNumber
	}

	doc := etree.NewDocument()

	envio := doc.CreateElement("CancelarNfseEnvio")
	envio.CreateAttr("xmlns", "http://www.betha.com.br/e-nota-contribuinte-ws")

	pedido := envio.CreateElement("Pedido")
	infPedido := pedido.CreateElement("InfPedidoCancelamento")
	infPedido.CreateAttr("Id", "C"+nfseNumber)

	ident := infPedido.CreateElement("IdentificacaoNfse")
	ident.CreateElement("Numero").SetText(nfseNumber)
	ident.CreateElement("Cnpj").SetText(em.CNPJ)
	ident.CreateElement("InscricaoMunicipal").SetText(em.InscricaoMunicipal)
	ident.CreateElement("CodigoMunicipio").SetText(em.CodigoMunicipio)

	// 2 = serviço não prestado
	infPedido.CreateElement("CodigoCancelamento").SetText("2")

	doc.WriteSettings = etree.WriteSettings{
		CanonicalEndTags: true,
		CanonicalText:    true,
		CanonicalAttrVal: true,
	}
	xml, err := doc.WriteToString()
	if err != nil {
		return "", fmt.Errorf("falha ao serializar pedido de cancelamento: %w", err)
	}
	return xml, nil
}
