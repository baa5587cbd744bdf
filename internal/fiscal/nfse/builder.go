package nfse

import (
	"errors"
	"fmt"
	"time"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"

	"github.com/clinvet/fiscal-engine/internal/domain/document"
	"github.com/clinvet/fiscal-engine/internal/domain/emitter"
)

// Erros específicos
var (
	ErrMissingService = errors.New("payload de NFS-e sem dados do serviço")
)

// BuildRPS monta o XML de um RPS (recibo provisório de serviços) no layout
// ABRASF usado pelo provedor Betha. O nó InfRps carrega Id="RPS{numero}".
func BuildRPS(em *emitter.Emitter, payload *document.Payload, series string, number int64, issuedAt time.Time) (*etree.Element, error) {
	if payload.Service == nil {
		return nil, ErrMissingService
	}
	svc := payload.Service

	rps := etree.NewElement("Rps")
	infRps := rps.CreateElement("InfRps")
	infRps.CreateAttr("Id", fmt.Sprintf("RPS%d", number))

	ident := infRps.CreateElement("IdentificacaoRps")
	ident.CreateElement("Numero").SetText(fmt.Sprintf("%d", number))
	ident.CreateElement("Serie").SetText(series)
	ident.CreateElement("Tipo").SetText("1")

	infRps.CreateElement("DataEmissao").SetText(issuedAt.Format("2006-01-02T15:04:05"))
	infRps.CreateElement("NaturezaOperacao").SetText("1")

	optante := "2"
	if em.SimplesNacional() {
		optante = "1"
	}
	infRps.CreateElement("OptanteSimplesNacional").SetText(optante)
	infRps.CreateElement("IncentivadorCultural").SetText("2")
	infRps.CreateElement("Status").SetText("1")

	servico := infRps.CreateElement("Servico")
	valores := servico.CreateElement("Valores")
	valores.CreateElement("ValorServicos").SetText(money(svc.Value))
	valores.CreateElement("IssRetido").SetText("2")
	vISS := svc.Value.Mul(svc.AliquotaISS.Div(decimal.NewFromInt(100)))
	valores.CreateElement("ValorIss").SetText(money(vISS))
	valores.CreateElement("Aliquota").SetText(svc.AliquotaISS.Div(decimal.NewFromInt(100)).StringFixed(4))
	servico.CreateElement("ItemListaServico").SetText(svc.ItemListaServico)
	servico.CreateElement("Discriminacao").SetText(svc.Description)
	servico.CreateElement("CodigoMunicipio").SetText(em.CodigoMunicipio)

	prestador := infRps.CreateElement("Prestador")
	prestador.CreateElement("Cnpj").SetText(em.CNPJ)
	prestador.CreateElement("InscricaoMunicipal").SetText(em.InscricaoMunicipal)

	tomador := infRps.CreateElement("Tomador")
	identTomador := tomador.CreateElement("IdentificacaoTomador")
	cpfCnpj := identTomador.CreateElement("CpfCnpj")
	if len(payload.Customer.CpfCnpj) == 14 {
		cpfCnpj.CreateElement("Cnpj").SetText(payload.Customer.CpfCnpj)
	} else {
		cpfCnpj.CreateElement("Cpf").SetText(payload.Customer.CpfCnpj)
	}
	tomador.CreateElement("RazaoSocial").SetText(payload.Customer.Name)

	if payload.Customer.Street != "" {
		endereco := tomador.CreateElement("Endereco")
		endereco.CreateElement("Endereco").SetText(payload.Customer.Street)
		endereco.CreateElement("Numero").SetText(payload.Customer.Number)
		endereco.CreateElement("Bairro").SetText(payload.Customer.District)
		endereco.CreateElement("CodigoMunicipio").SetText(payload.Customer.CityCode)
		endereco.CreateElement("Uf").SetText(payload.Customer.UF)
		endereco.CreateElement("Cep").SetText(payload.Customer.ZipCode)
	}

	return rps, nil
}

// BuildLot envelopa um ou mais RPS em um lote para envio. O nó LoteRps
// carrega Id="Lote1".
func BuildLot(em *emitter.Emitter, rpsList []*etree.Element) (string, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	envio := doc.CreateElement("EnviarLoteRpsEnvio")
	envio.CreateAttr("xmlns", "http://www.betha.com.br/e-nota-contribuinte-ws")

	lote := envio.CreateElement("LoteRps")
	lote.CreateAttr("Id", "Lote1")
	lote.CreateElement("NumeroLote").SetText("1")
	lote.CreateElement("Cnpj").SetText(em.CNPJ)
	lote.CreateElement("InscricaoMunicipal").SetText(em.InscricaoMunicipal)
	lote.CreateElement("QuantidadeRps").SetText(fmt.Sprintf("%d", len(rpsList)))

	lista := lote.CreateElement("ListaRps")
	for _, rps := range rpsList {
		lista.AddChild(rps)
	}

	doc.WriteSettings = etree.WriteSettings{
		CanonicalEndTags: true,
		CanonicalText:    true,
		CanonicalAttrVal: true,
	}
	xml, err := doc.WriteToString()
	if err != nil {
		return "", fmt.Errorf("falha ao serializar lote de RPS: %w", err)
	}
	return xml, nil
}

func money(v decimal.Decimal) string {
	return v.Round(2).StringFixed(2)
}
