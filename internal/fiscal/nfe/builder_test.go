package nfe

import (
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinvet/fiscal-engine/internal/domain/document"
	"github.com/clinvet/fiscal-engine/internal/domain/emitter"
)

func testEmitter(t *testing.T, regime string) *emitter.Emitter {
	t.Helper()
	em, err := emitter.NewEmitter("11111111-1111-1111-1111-111111111111", "12345678000199", "Clinica Veterinaria Exemplo Ltda")
	require.NoError(t, err)
	em.ConfigureTax(regime, "123456789", "987654", "betha")
	require.NoError(t, em.ConfigureAddress("Rua das Flores", "100", "Centro", "Sao Paulo", "SP", "01001-000", "3550308"))
	return em
}

func testPayload() *document.Payload {
	return &document.Payload{
		Customer: document.Party{
			CpfCnpj: "12345678901",
			Name:    "Tutor Exemplo",
		},
		Items: []document.ProductItem{
			{
				Code:           "RAC001",
				Description:    "Racao premium 10kg",
				NCM:            "23091000",
				CFOP:           "5102",
				Unit:           "UN",
				Quantity:       decimal.NewFromInt(2),
				UnitPrice:      decimal.RequireFromString("149.90"),
				AliquotaICMS:   decimal.RequireFromString("18"),
				AliquotaPIS:    decimal.RequireFromString("1.65"),
				AliquotaCOFINS: decimal.RequireFromString("7.6"),
			},
			{
				Code:           "MED010",
				Description:    "Antipulgas",
				NCM:            "30049099",
				CFOP:           "5102",
				Unit:           "UN",
				Quantity:       decimal.NewFromInt(1),
				UnitPrice:      decimal.RequireFromString("89.50"),
				AliquotaICMS:   decimal.RequireFromString("18"),
				AliquotaPIS:    decimal.RequireFromString("1.65"),
				AliquotaCOFINS: decimal.RequireFromString("7.6"),
			},
		},
	}
}

func parseXML(t *testing.T, xml string) *etree.Document {
	t.Helper()
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(xml))
	return doc
}

func TestComputeItemTax(t *testing.T) {
	item := document.ProductItem{
		Quantity:       decimal.NewFromInt(3),
		UnitPrice:      decimal.RequireFromString("10.00"),
		AliquotaICMS:   decimal.RequireFromString("18"),
		AliquotaPIS:    decimal.RequireFromString("1.65"),
		AliquotaCOFINS: decimal.RequireFromString("7.6"),
	}

	tax := ComputeItemTax(item)
	assert.Equal(t, "30.00", tax.VItem.StringFixed(2))
	assert.Equal(t, "5.40", tax.VICMS.StringFixed(2))
	assert.Equal(t, "0.50", tax.VPIS.Round(2).StringFixed(2))
	assert.Equal(t, "2.28", tax.VCOFINS.StringFixed(2))
}

func TestBuildTotalsAndKey(t *testing.T) {
	em := testEmitter(t, "Lucro Presumido")
	issuedAt := time.Date(2025, time.January, 15, 10, 30, 0, 0, time.FixedZone("BRT", -3*3600))

	xml, accessKey, err := Build(em, testPayload(), "1", 42, issuedAt, "12345678")
	require.NoError(t, err)

	require.Len(t, accessKey, 44)
	assert.Equal(t, "35", accessKey[0:2])
	assert.Equal(t, "2501", accessKey[2:6])
	assert.Equal(t, "12345678000199", accessKey[6:20])
	assert.Equal(t, "001", accessKey[22:25])
	assert.Equal(t, "000000042", accessKey[25:34])

	doc := parseXML(t, xml)

	infNFe := doc.FindElement("//infNFe")
	require.NotNil(t, infNFe)
	assert.Equal(t, "NFe"+accessKey, infNFe.SelectAttrValue("Id", ""))

	// 2 × 149.90 + 89.50 = 389.30
	assert.Equal(t, "389.30", doc.FindElement("//ICMSTot/vNF").Text())
	assert.Equal(t, "389.30", doc.FindElement("//ICMSTot/vProd").Text())
	assert.Equal(t, "70.07", doc.FindElement("//ICMSTot/vICMS").Text())

	dets := doc.FindElements("//det")
	require.Len(t, dets, 2)
	assert.Equal(t, "1", dets[0].SelectAttrValue("nItem", ""))
	assert.Equal(t, "2", dets[1].SelectAttrValue("nItem", ""))
	assert.Equal(t, "299.80", dets[0].FindElement("prod/vProd").Text())
}

func TestBuildICMSRegime(t *testing.T) {
	issuedAt := time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)

	t.Run("simples nacional usa CSOSN", func(t *testing.T) {
		em := testEmitter(t, "Simples Nacional")
		xml, _, err := Build(em, testPayload(), "1", 1, issuedAt, "00000001")
		require.NoError(t, err)

		doc := parseXML(t, xml)
		assert.NotNil(t, doc.FindElement("//ICMS/ICMSSN102/CSOSN"))
		assert.Nil(t, doc.FindElement("//ICMS/ICMS00"))
		assert.Equal(t, "1", doc.FindElement("//emit/CRT").Text())
	})

	t.Run("regime normal usa CST", func(t *testing.T) {
		em := testEmitter(t, "Lucro Real")
		xml, _, err := Build(em, testPayload(), "1", 1, issuedAt, "00000001")
		require.NoError(t, err)

		doc := parseXML(t, xml)
		assert.NotNil(t, doc.FindElement("//ICMS/ICMS00/CST"))
		assert.Nil(t, doc.FindElement("//ICMS/ICMSSN102"))
		assert.Equal(t, "3", doc.FindElement("//emit/CRT").Text())
	})
}

func TestBuildHomologationDest(t *testing.T) {
	em := testEmitter(t, "Simples Nacional")
	require.NoError(t, em.SetEnvironment(emitter.Homologation))

	xml, _, err := Build(em, testPayload(), "1", 1, time.Now(), "00000001")
	require.NoError(t, err)

	doc := parseXML(t, xml)
	assert.Equal(t, "NF-E EMITIDA EM AMBIENTE DE HOMOLOGACAO - SEM VALOR FISCAL",
		doc.FindElement("//dest/xNome").Text())
	assert.Equal(t, "2", doc.FindElement("//ide/tpAmb").Text())
}

func TestBuildEmptyItems(t *testing.T) {
	em := testEmitter(t, "Simples Nacional")
	_, _, err := Build(em, &document.Payload{}, "1", 1, time.Now(), "00000001")
	assert.ErrorIs(t, err, ErrEmptyItems)
}
