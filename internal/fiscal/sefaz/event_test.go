package sefaz

import (
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinvet/fiscal-engine/internal/domain/emitter"
)

func testEmitter(t *testing.T) *emitter.Emitter {
	t.Helper()
	em, err := emitter.NewEmitter("clinic-1", "12345678000199", "Clinica Exemplo LTDA")
	require.NoError(t, err)
	require.NoError(t, em.ConfigureAddress("Rua A", "10", "Centro", "São Paulo", "SP", "01001000", "3550308"))
	return em
}

func TestBuildCancelEvent(t *testing.T) {
	em := testEmitter(t)
	accessKey := "35250112345678000199550010000000421123456785"
	eventAt := time.Date(2025, 1, 15, 10, 30, 0, 0, time.FixedZone("BRT", -3*3600))

	xml, err := BuildCancelEvent(em, accessKey, "135250000000001", "Nota emitida com valor incorreto", eventAt)
	require.NoError(t, err)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(xml))

	infEvento := doc.FindElement("//infEvento")
	require.NotNil(t, infEvento)
	assert.Equal(t, "ID110111"+accessKey+"01", infEvento.SelectAttrValue("Id", ""))
	assert.Equal(t, accessKey, infEvento.FindElement("chNFe").Text())
	assert.Equal(t, "110111", infEvento.FindElement("tpEvento").Text())
	assert.Equal(t, "1", infEvento.FindElement("nSeqEvento").Text())
	assert.Equal(t, "35", infEvento.FindElement("cOrgao").Text())
	assert.Equal(t, "2025-01-15T10:30:00-03:00", infEvento.FindElement("dhEvento").Text())

	detEvento := infEvento.FindElement("detEvento")
	require.NotNil(t, detEvento)
	assert.Equal(t, "Cancelamento", detEvento.FindElement("descEvento").Text())
	assert.Equal(t, "135250000000001", detEvento.FindElement("nProt").Text())
	assert.Equal(t, "Nota emitida com valor incorreto", detEvento.FindElement("xJust").Text())
}

func TestBuildCancelEventRequiresKeyAndProtocol(t *testing.T) {
	em := testEmitter(t)

	_, err := BuildCancelEvent(em, "", "prot", "motivo", time.Now())
	assert.Error(t, err)

	_, err = BuildCancelEvent(em, "35250112345678000199550010000000421123456785", "", "motivo", time.Now())
	assert.Error(t, err)
}

func TestPadJustification(t *testing.T) {
	// Justificativa curta ganha sufixo até o mínimo exigido
	padded := PadJustification("Erro")
	assert.GreaterOrEqual(t, len(padded), 15)
	assert.Contains(t, padded, "Erro")

	// Vazia recebe o texto padrão, também completado
	empty := PadJustification("")
	assert.GreaterOrEqual(t, len(empty), 15)

	// Já longa o suficiente permanece intacta
	long := "Nota emitida com dados incorretos do destinatario"
	assert.Equal(t, long, PadJustification(long))
}
