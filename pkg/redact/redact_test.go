package redact

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestXMLRedactsSensitiveTags(t *testing.T) {
	xml := `<Prestador><Cnpj>12345678000199</Cnpj><InscricaoMunicipal>123456</InscricaoMunicipal></Prestador>`

	redacted := XML(xml)

	assert.NotContains(t, redacted, "12345678000199")
	assert.NotContains(t, redacted, "123456")
	assert.Contains(t, redacted, "<Cnpj>"+Placeholder+"</Cnpj>")
	assert.Contains(t, redacted, "<InscricaoMunicipal>"+Placeholder+"</InscricaoMunicipal>")
}

func TestXMLRedactsNamespacedTags(t *testing.T) {
	xml := `<ns2:CNPJ>12345678000199</ns2:CNPJ>`

	redacted := XML(xml)

	assert.NotContains(t, redacted, "12345678000199")
	assert.Contains(t, redacted, Placeholder)
}

func TestXMLKeepsNonSensitiveContent(t *testing.T) {
	xml := `<infNFe Id="NFe123"><ide><nNF>42</nNF></ide><emit><CNPJ>12345678000199</CNPJ><xNome>Clinica Exemplo</xNome></emit></infNFe>`

	redacted := XML(xml)

	assert.Contains(t, redacted, `<infNFe Id="NFe123">`)
	assert.Contains(t, redacted, "<nNF>42</nNF>")
	assert.Contains(t, redacted, "Clinica Exemplo")
	assert.NotContains(t, redacted, "12345678000199")
}

func TestXMLEmptyInput(t *testing.T) {
	assert.Equal(t, "", XML(""))
	assert.Equal(t, "   ", XML("   "))
}

func TestXMLRedactsAllOccurrences(t *testing.T) {
	xml := `<a><CPF>11122233344</CPF></a><b><CPF>55566677788</CPF></b>`

	redacted := XML(xml)

	assert.Equal(t, 2, strings.Count(redacted, Placeholder))
	assert.NotContains(t, redacted, "11122233344")
	assert.NotContains(t, redacted, "55566677788")
}
