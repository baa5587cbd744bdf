package nfe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildAccessKey(t *testing.T) {
	key, err := BuildAccessKey(AccessKeyParts{
		UFCode:       "35",
		YearMonth:    "2501",
		CNPJ:         "12345678000199",
		Model:        "55",
		Series:       "001",
		Number:       "000000042",
		EmissionType: "1",
		RandomCode:   "12345678",
	})
	require.NoError(t, err)

	assert.Len(t, key, 44)
	assert.Equal(t, "35", key[0:2])
	assert.Equal(t, "2501", key[2:6])
	assert.Equal(t, "12345678000199", key[6:20])
	assert.Equal(t, "55", key[20:22])
	assert.Equal(t, "001", key[22:25])
	assert.Equal(t, "000000042", key[25:34])
	assert.Equal(t, "1", key[34:35])
	assert.Equal(t, "12345678", key[35:43])
	assert.Equal(t, CheckDigit(key[:43]), key[43:])
}

func TestBuildAccessKeyInvalidParts(t *testing.T) {
	cases := []struct {
		name  string
		parts AccessKeyParts
	}{
		{
			name: "CNPJ curto",
			parts: AccessKeyParts{
				UFCode: "35", YearMonth: "2501", CNPJ: "123",
				Model: "55", Series: "001", Number: "000000001",
				EmissionType: "1", RandomCode: "12345678",
			},
		},
		{
			name: "série sem preenchimento",
			parts: AccessKeyParts{
				UFCode: "35", YearMonth: "2501", CNPJ: "12345678000199",
				Model: "55", Series: "1", Number: "000000001",
				EmissionType: "1", RandomCode: "12345678",
			},
		},
		{
			name: "código aleatório com letras",
			parts: AccessKeyParts{
				UFCode: "35", YearMonth: "2501", CNPJ: "12345678000199",
				Model: "55", Series: "001", Number: "000000001",
				EmissionType: "1", RandomCode: "1234567a",
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := BuildAccessKey(tc.parts)
			assert.ErrorIs(t, err, ErrInvalidKeyPart)
		})
	}
}

func TestCheckDigit(t *testing.T) {
	// Resto 0 ou 1 resulta em dígito 0
	assert.Equal(t, "0", CheckDigit("00000000000000000000000000000000000000000000"[:43]))

	// O dígito é estável para a mesma base
	base := "3525011234567800019955001000000042112345678"
	assert.Equal(t, CheckDigit(base), CheckDigit(base))

	dv := CheckDigit(base)
	require.Len(t, dv, 1)
	assert.GreaterOrEqual(t, dv[0], byte('0'))
	assert.LessOrEqual(t, dv[0], byte('9'))
}

func TestRandomCode(t *testing.T) {
	code, err := RandomCode()
	require.NoError(t, err)
	assert.Len(t, code, 8)
	assert.True(t, allDigits(code))

	other, err := RandomCode()
	require.NoError(t, err)
	// Oito dígitos aleatórios colidirem em duas amostras seria suspeito
	assert.NotEqual(t, code, other)
}
