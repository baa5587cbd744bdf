package sefaz

import (
	"fmt"
	"time"

	"github.com/beevik/etree"

	"github.com/clinvet/fiscal-engine/internal/domain/emitter"
	"github.com/clinvet/fiscal-engine/internal/fiscal/nfe"
)

// tpEvento de cancelamento de NF-e
const cancelEventType = "110111"

// minJustificationLen é o tamanho mínimo exigido pela SEFAZ para a
// justificativa de cancelamento
const minJustificationLen = 15

// BuildCancelEvent monta o XML do evento de cancelamento a ser assinado.
// O nó infEvento carrega Id="ID{tpEvento}{chave}{nSeqEvento}"; a justificativa
// é completada com um sufixo quando menor que o mínimo exigido.
func BuildCancelEvent(em *emitter.Emitter, accessKey, protocol, justification string, eventAt time.Time) (string, error) {
	if accessKey == "" || protocol == "" {
		return "", fmt.Errorf("cancelamento exige chave de acesso e protocolo de autorização")
	}

	doc := etree.NewDocument()

	evento := doc.CreateElement("evento")
	evento.CreateAttr("xmlns", nfe.Namespace)
	evento.CreateAttr("versao", "1.00")

	infEvento := evento.CreateElement("infEvento")
	infEvento.CreateAttr("Id", fmt.Sprintf("ID%s%s01", cancelEventType, accessKey))

	infEvento.CreateElement("cOrgao").SetText(em.UFCode())
	infEvento.CreateElement("tpAmb").SetText(environmentCode(em))
	infEvento.CreateElement("CNPJ").SetText(em.CNPJ)
	infEvento.CreateElement("chNFe").SetText(accessKey)
	infEvento.CreateElement("dhEvento").SetText(eventAt.Format("2006-01-02T15:04:05-07:00"))
	infEvento.CreateElement("tpEvento").SetText(cancelEventType)
	infEvento.CreateElement("nSeqEvento").SetText("1")
	infEvento.CreateElement("verEvento").SetText("1.00")

	detEvento := infEvento.CreateElement("detEvento")
	detEvento.CreateAttr("versao", "1.00")
	detEvento.CreateElement("descEvento").SetText("Cancelamento")
	detEvento.CreateElement("nProt").SetText(protocol)
	detEvento.CreateElement("xJust").SetText(PadJustification(justification))

	doc.WriteSettings = etree.WriteSettings{
		CanonicalEndTags: true,
		CanonicalText:    true,
		CanonicalAttrVal: true,
	}
	xml, err := doc.WriteToString()
	if err != nil {
		return "", fmt.Errorf("falha ao serializar evento de cancelamento: %w", err)
	}
	return xml, nil
}

// PadJustification garante o tamanho mínimo da justificativa, completando
// com um sufixo padrão quando o motivo do chamador é mais curto
func PadJustification(justification string) string {
	if justification == "" {
		justification = "Cancelamento"
	}
	for len(justification) < minJustificationLen {
		justification += " - cancelamento"
	}
	return justification
}
