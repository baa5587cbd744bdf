package nfe

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
)

// Layout da chave de acesso (44 dígitos):
// cUF(2) + AAMM(4) + CNPJ(14) + mod(2) + serie(3) + nNF(9) + tpEmis(1) + cNF(8) + cDV(1)

// ErrInvalidKeyPart indica que um componente da chave não tem o tamanho esperado
var ErrInvalidKeyPart = errors.New("componente da chave de acesso com tamanho inválido")

// AccessKeyParts são os componentes que formam a chave de acesso de uma NF-e
type AccessKeyParts struct {
	UFCode       string // código IBGE da UF (2 dígitos)
	YearMonth    string // AAMM da emissão (4 dígitos)
	CNPJ         string // CNPJ do emitente (14 dígitos)
	Model        string // modelo do documento (2 dígitos, "55")
	Series       string // série (3 dígitos)
	Number       string // número (9 dígitos)
	EmissionType string // tpEmis (1 dígito)
	RandomCode   string // cNF (8 dígitos)
}

// BuildAccessKey monta a chave de acesso completa com dígito verificador
func BuildAccessKey(parts AccessKeyParts) (string, error) {
	sizes := []struct {
		value string
		size  int
	}{
		{parts.UFCode, 2},
		{parts.YearMonth, 4},
		{parts.CNPJ, 14},
		{parts.Model, 2},
		{parts.Series, 3},
		{parts.Number, 9},
		{parts.EmissionType, 1},
		{parts.RandomCode, 8},
	}

	base := ""
	for _, p := range sizes {
		if len(p.value) != p.size || !allDigits(p.value) {
			return "", fmt.Errorf("%w: %q (esperado %d dígitos)", ErrInvalidKeyPart, p.value, p.size)
		}
		base += p.value
	}

	return base + CheckDigit(base), nil
}

// CheckDigit calcula o dígito verificador módulo 11 da chave de acesso.
// Os pesos ciclam de 2 a 9 a partir do dígito mais à direita; o dígito é 0
// quando o resto é 0 ou 1, senão 11 − resto.
func CheckDigit(base string) string {
	weight := 2
	sum := 0
	for i := len(base) - 1; i >= 0; i-- {
		sum += int(base[i]-'0') * weight
		weight++
		if weight > 9 {
			weight = 2
		}
	}

	remainder := sum % 11
	if remainder < 2 {
		return "0"
	}
	return fmt.Sprintf("%d", 11-remainder)
}

// RandomCode gera o código numérico aleatório (cNF) de 8 dígitos
func RandomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(100000000))
	if err != nil {
		return "", fmt.Errorf("falha ao gerar código numérico: %w", err)
	}
	return fmt.Sprintf("%08d", n.Int64()), nil
}

func allDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
