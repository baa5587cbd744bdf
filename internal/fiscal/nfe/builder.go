package nfe

import (
	"errors"
	"fmt"
	"time"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"

	"github.com/clinvet/fiscal-engine/internal/domain/document"
	"github.com/clinvet/fiscal-engine/internal/domain/emitter"
)

// Namespace do portal fiscal
const Namespace = "http://www.portalfiscal.inf.br/nfe"

// Model é o modelo do documento (NF-e modelo 55)
const Model = "55"

// Version é a versão do layout da NF-e
const Version = "4.00"

// Erros específicos
var (
	ErrEmptyItems = errors.New("NF-e exige ao menos um item")
)

// ItemTax são os valores tributários calculados para um item
type ItemTax struct {
	VItem   decimal.Decimal
	VICMS   decimal.Decimal
	VPIS    decimal.Decimal
	VCOFINS decimal.Decimal
}

// ComputeItemTax calcula os tributos de um item: v_item = qty × unit_price e
// cada tributo é v_item × (aliquota/100), de forma independente
func ComputeItemTax(item document.ProductItem) ItemTax {
	hundred := decimal.NewFromInt(100)
	vItem := item.Total()
	return ItemTax{
		VItem:   vItem,
		VICMS:   vItem.Mul(item.AliquotaICMS.Div(hundred)),
		VPIS:    vItem.Mul(item.AliquotaPIS.Div(hundred)),
		VCOFINS: vItem.Mul(item.AliquotaCOFINS.Div(hundred)),
	}
}

// Build monta o XML da NF-e modelo 55 e sua chave de acesso. O código
// numérico (cNF) é recebido do chamador para que a chave seja determinística
// quando necessário.
func Build(em *emitter.Emitter, payload *document.Payload, series string, number int64, issuedAt time.Time, randomCode string) (xml string, accessKey string, err error) {
	if len(payload.Items) == 0 {
		return "", "", ErrEmptyItems
	}

	accessKey, err = BuildAccessKey(AccessKeyParts{
		UFCode:       em.UFCode(),
		YearMonth:    issuedAt.Format("0601"),
		CNPJ:         em.CNPJ,
		Model:        Model,
		Series:       padLeft(series, 3),
		Number:       fmt.Sprintf("%09d", number),
		EmissionType: "1",
		RandomCode:   randomCode,
	})
	if err != nil {
		return "", "", err
	}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	nfe := doc.CreateElement("NFe")
	nfe.CreateAttr("xmlns", Namespace)

	infNFe := nfe.CreateElement("infNFe")
	infNFe.CreateAttr("Id", "NFe"+accessKey)
	infNFe.CreateAttr("versao", Version)

	buildIde(infNFe, em, accessKey, series, number, issuedAt, randomCode)
	buildEmit(infNFe, em)
	buildDest(infNFe, em, payload.Customer)

	totals := buildItems(infNFe, em, payload.Items)
	buildTotal(infNFe, totals)

	transp := infNFe.CreateElement("transp")
	transp.CreateElement("modFrete").SetText("9")

	pag := infNFe.CreateElement("pag")
	detPag := pag.CreateElement("detPag")
	detPag.CreateElement("tPag").SetText("01")
	detPag.CreateElement("vPag").SetText(money(totals.VItem))

	doc.WriteSettings = etree.WriteSettings{
		CanonicalEndTags: true,
		CanonicalText:    true,
		CanonicalAttrVal: true,
	}
	xml, err = doc.WriteToString()
	if err != nil {
		return "", "", fmt.Errorf("falha ao serializar NF-e: %w", err)
	}

	return xml, accessKey, nil
}

func buildIde(parent *etree.Element, em *emitter.Emitter, accessKey, series string, number int64, issuedAt time.Time, randomCode string) {
	tpAmb := "2"
	if em.Environment == emitter.Production {
		tpAmb = "1"
	}

	ide := parent.CreateElement("ide")
	ide.CreateElement("cUF").SetText(em.UFCode())
	ide.CreateElement("cNF").SetText(randomCode)
	ide.CreateElement("natOp").SetText("VENDA")
	ide.CreateElement("mod").SetText(Model)
	ide.CreateElement("serie").SetText(series)
	ide.CreateElement("nNF").SetText(fmt.Sprintf("%d", number))
	ide.CreateElement("dhEmi").SetText(issuedAt.Format("2006-01-02T15:04:05-07:00"))
	ide.CreateElement("tpNF").SetText("1")
	ide.CreateElement("idDest").SetText("1")
	ide.CreateElement("cMunFG").SetText(em.CodigoMunicipio)
	ide.CreateElement("tpImp").SetText("1")
	ide.CreateElement("tpEmis").SetText("1")
	ide.CreateElement("cDV").SetText(accessKey[len(accessKey)-1:])
	ide.CreateElement("tpAmb").SetText(tpAmb)
	ide.CreateElement("finNFe").SetText("1")
	ide.CreateElement("indFinal").SetText("1")
	ide.CreateElement("indPres").SetText("1")
	ide.CreateElement("procEmi").SetText("0")
	ide.CreateElement("verProc").SetText("fiscal-engine 1.0")
}

func buildEmit(parent *etree.Element, em *emitter.Emitter) {
	emit := parent.CreateElement("emit")
	emit.CreateElement("CNPJ").SetText(em.CNPJ)
	emit.CreateElement("xNome").SetText(em.RazaoSocial)

	ender := emit.CreateElement("enderEmit")
	ender.CreateElement("xLgr").SetText(em.Street)
	ender.CreateElement("nro").SetText(em.Number)
	ender.CreateElement("xBairro").SetText(em.District)
	ender.CreateElement("cMun").SetText(em.CodigoMunicipio)
	ender.CreateElement("xMun").SetText(em.City)
	ender.CreateElement("UF").SetText(em.UF)
	ender.CreateElement("CEP").SetText(em.ZipCode)
	ender.CreateElement("cPais").SetText("1058")
	ender.CreateElement("xPais").SetText("BRASIL")

	emit.CreateElement("IE").SetText(em.InscricaoEstadual)
	emit.CreateElement("CRT").SetText(fmt.Sprintf("%d", em.CRT()))
}

func buildDest(parent *etree.Element, em *emitter.Emitter, customer document.Party) {
	dest := parent.CreateElement("dest")
	if len(customer.CpfCnpj) == 14 {
		dest.CreateElement("CNPJ").SetText(customer.CpfCnpj)
	} else {
		dest.CreateElement("CPF").SetText(customer.CpfCnpj)
	}

	// Em homologação a SEFAZ exige razão social fixa para o destinatário
	name := customer.Name
	if em.Environment == emitter.Homologation {
		name = "NF-E EMITIDA EM AMBIENTE DE HOMOLOGACAO - SEM VALOR FISCAL"
	}
	dest.CreateElement("xNome").SetText(name)

	if customer.Street != "" {
		ender := dest.CreateElement("enderDest")
		ender.CreateElement("xLgr").SetText(customer.Street)
		ender.CreateElement("nro").SetText(customer.Number)
		ender.CreateElement("xBairro").SetText(customer.District)
		ender.CreateElement("cMun").SetText(customer.CityCode)
		ender.CreateElement("xMun").SetText(customer.City)
		ender.CreateElement("UF").SetText(customer.UF)
		ender.CreateElement("CEP").SetText(customer.ZipCode)
		ender.CreateElement("cPais").SetText("1058")
		ender.CreateElement("xPais").SetText("BRASIL")
	}

	dest.CreateElement("indIEDest").SetText("9")
}

// buildItems emite um bloco det por item e acumula os totais
func buildItems(parent *etree.Element, em *emitter.Emitter, items []document.ProductItem) ItemTax {
	var totals ItemTax

	for i, item := range items {
		tax := ComputeItemTax(item)
		totals.VItem = totals.VItem.Add(tax.VItem)
		totals.VICMS = totals.VICMS.Add(tax.VICMS)
		totals.VPIS = totals.VPIS.Add(tax.VPIS)
		totals.VCOFINS = totals.VCOFINS.Add(tax.VCOFINS)

		det := parent.CreateElement("det")
		det.CreateAttr("nItem", fmt.Sprintf("%d", i+1))

		prod := det.CreateElement("prod")
		prod.CreateElement("cProd").SetText(item.Code)
		prod.CreateElement("cEAN").SetText("SEM GTIN")
		prod.CreateElement("xProd").SetText(item.Description)
		prod.CreateElement("NCM").SetText(item.NCM)
		prod.CreateElement("CFOP").SetText(item.CFOP)
		prod.CreateElement("uCom").SetText(item.Unit)
		prod.CreateElement("qCom").SetText(item.Quantity.StringFixed(4))
		prod.CreateElement("vUnCom").SetText(item.UnitPrice.StringFixed(2))
		prod.CreateElement("vProd").SetText(money(tax.VItem))
		prod.CreateElement("cEANTrib").SetText("SEM GTIN")
		prod.CreateElement("uTrib").SetText(item.Unit)
		prod.CreateElement("qTrib").SetText(item.Quantity.StringFixed(4))
		prod.CreateElement("vUnTrib").SetText(item.UnitPrice.StringFixed(2))
		prod.CreateElement("indTot").SetText("1")

		imposto := det.CreateElement("imposto")
		buildICMS(imposto, em, item, tax)
		buildPIS(imposto, item, tax)
		buildCOFINS(imposto, item, tax)
	}

	return totals
}

// buildICMS escolhe o sub-bloco de ICMS conforme o regime: o Simples Nacional
// (CRT 1) usa o grupo ICMSSN, o regime normal usa o grupo por CST
func buildICMS(parent *etree.Element, em *emitter.Emitter, item document.ProductItem, tax ItemTax) {
	icms := parent.CreateElement("ICMS")
	if em.SimplesNacional() {
		sn := icms.CreateElement("ICMSSN102")
		sn.CreateElement("orig").SetText("0")
		sn.CreateElement("CSOSN").SetText("102")
		return
	}

	std := icms.CreateElement("ICMS00")
	std.CreateElement("orig").SetText("0")
	std.CreateElement("CST").SetText("00")
	std.CreateElement("modBC").SetText("3")
	std.CreateElement("vBC").SetText(money(tax.VItem))
	std.CreateElement("pICMS").SetText(item.AliquotaICMS.StringFixed(2))
	std.CreateElement("vICMS").SetText(money(tax.VICMS))
}

func buildPIS(parent *etree.Element, item document.ProductItem, tax ItemTax) {
	pis := parent.CreateElement("PIS")
	aliq := pis.CreateElement("PISAliq")
	aliq.CreateElement("CST").SetText("01")
	aliq.CreateElement("vBC").SetText(money(tax.VItem))
	aliq.CreateElement("pPIS").SetText(item.AliquotaPIS.StringFixed(2))
	aliq.CreateElement("vPIS").SetText(money(tax.VPIS))
}

func buildCOFINS(parent *etree.Element, item document.ProductItem, tax ItemTax) {
	cofins := parent.CreateElement("COFINS")
	aliq := cofins.CreateElement("COFINSAliq")
	aliq.CreateElement("CST").SetText("01")
	aliq.CreateElement("vBC").SetText(money(tax.VItem))
	aliq.CreateElement("pCOFINS").SetText(item.AliquotaCOFINS.StringFixed(2))
	aliq.CreateElement("vCOFINS").SetText(money(tax.VCOFINS))
}

func buildTotal(parent *etree.Element, totals ItemTax) {
	total := parent.CreateElement("total")
	icmsTot := total.CreateElement("ICMSTot")
	icmsTot.CreateElement("vBC").SetText(money(totals.VItem))
	icmsTot.CreateElement("vICMS").SetText(money(totals.VICMS))
	icmsTot.CreateElement("vICMSDeson").SetText("0.00")
	icmsTot.CreateElement("vFCP").SetText("0.00")
	icmsTot.CreateElement("vBCST").SetText("0.00")
	icmsTot.CreateElement("vST").SetText("0.00")
	icmsTot.CreateElement("vFCPST").SetText("0.00")
	icmsTot.CreateElement("vFCPSTRet").SetText("0.00")
	icmsTot.CreateElement("vProd").SetText(money(totals.VItem))
	icmsTot.CreateElement("vFrete").SetText("0.00")
	icmsTot.CreateElement("vSeg").SetText("0.00")
	icmsTot.CreateElement("vDesc").SetText("0.00")
	icmsTot.CreateElement("vII").SetText("0.00")
	icmsTot.CreateElement("vIPI").SetText("0.00")
	icmsTot.CreateElement("vIPIDevol").SetText("0.00")
	icmsTot.CreateElement("vPIS").SetText(money(totals.VPIS))
	icmsTot.CreateElement("vCOFINS").SetText(money(totals.VCOFINS))
	icmsTot.CreateElement("vOutro").SetText("0.00")
	icmsTot.CreateElement("vNF").SetText(money(totals.VItem))
}

// money formata um valor monetário com duas casas
func money(v decimal.Decimal) string {
	return v.Round(2).StringFixed(2)
}

// padLeft completa o valor com zeros à esquerda até o tamanho informado
func padLeft(s string, size int) string {
	for len(s) < size {
		s = "0" + s
	}
	return s
}
