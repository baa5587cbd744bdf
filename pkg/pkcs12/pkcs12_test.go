package pkcs12

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sslmate "software.sslmate.com/src/go-pkcs12"
)

func newTestPFX(t *testing.T, commonName, password string) []byte {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: commonName},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	pfx, err := sslmate.Modern.Encode(key, cert, nil, password)
	require.NoError(t, err)
	return pfx
}

func TestParseExtractsMetadata(t *testing.T) {
	pfx := newTestPFX(t, "CLINICA EXEMPLO LTDA:12345678000199", "senha123")

	meta, err := Parse(pfx, "senha123")
	require.NoError(t, err)

	assert.Equal(t, "CLINICA EXEMPLO LTDA:12345678000199", meta.SubjectName)
	assert.Equal(t, "12345678000199", meta.SubjectCNPJ)
	assert.Len(t, meta.FingerprintSHA256, 64)
	assert.True(t, meta.ValidTo.After(meta.ValidFrom))
}

func TestParseWithoutCNPJ(t *testing.T) {
	pfx := newTestPFX(t, "CERTIFICADO SEM CNPJ", "senha123")

	meta, err := Parse(pfx, "senha123")
	require.NoError(t, err)
	assert.Empty(t, meta.SubjectCNPJ)
}

func TestParseWrongPassword(t *testing.T) {
	pfx := newTestPFX(t, "CLINICA EXEMPLO LTDA:12345678000199", "senha123")

	_, err := Parse(pfx, "outra-senha")
	assert.ErrorIs(t, err, ErrInvalidCertificate)
}

func TestParseGarbage(t *testing.T) {
	_, err := Parse([]byte("nao é um pfx"), "senha123")
	assert.ErrorIs(t, err, ErrInvalidCertificate)
}
