package service

import (
	"context"
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

	"github.com/clinvet/fiscal-engine/internal/domain/emitter"
	"github.com/clinvet/fiscal-engine/pkg/cipher"
)

func newVaultPFX(t *testing.T, commonName, password string) []byte {
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

func newTestVault(t *testing.T) (*CertificateVault, *memCertRepo, *emitter.Emitter) {
	t.Helper()

	em, err := emitter.NewEmitter("clinic-1", "12345678000199", "Clinica Exemplo LTDA")
	require.NoError(t, err)

	keys, err := cipher.NewKeyProvider("chave-mestra-de-teste")
	require.NoError(t, err)

	certRepo := &memCertRepo{}
	return NewCertificateVault(certRepo, keys, noopLogger{}), certRepo, em
}

func TestVaultStoreAndOpenRoundTrip(t *testing.T) {
	vault, certRepo, em := newTestVault(t)
	pfx := newVaultPFX(t, "CLINICA EXEMPLO LTDA:12345678000199", "senha123")

	cert, err := vault.Store(context.Background(), em, pfx, "senha123")
	require.NoError(t, err)

	assert.Equal(t, em.CNPJ, cert.SubjectCNPJ)
	assert.NotEmpty(t, cert.FingerprintSHA256)
	assert.NotEqual(t, pfx, cert.PFXEncrypted)
	assert.Same(t, cert, certRepo.cert)

	pfxData, password, err := vault.Open(cert)
	require.NoError(t, err)
	assert.Equal(t, pfx, pfxData)
	assert.Equal(t, "senha123", password)
}

func TestVaultStoreRejectsMismatchedCNPJ(t *testing.T) {
	vault, certRepo, em := newTestVault(t)
	pfx := newVaultPFX(t, "OUTRA EMPRESA LTDA:99887766000155", "senha123")

	_, err := vault.Store(context.Background(), em, pfx, "senha123")

	assert.ErrorIs(t, err, ErrCNPJMismatch)
	assert.Nil(t, certRepo.cert)
}

func TestVaultStoreRejectsCertificateWithoutCNPJ(t *testing.T) {
	vault, certRepo, em := newTestVault(t)
	pfx := newVaultPFX(t, "CERTIFICADO SEM TITULAR", "senha123")

	_, err := vault.Store(context.Background(), em, pfx, "senha123")

	assert.ErrorIs(t, err, ErrMissingSubjectCNPJ)
	assert.Nil(t, certRepo.cert)
}

func TestVaultStoreRejectsWrongPassword(t *testing.T) {
	vault, _, em := newTestVault(t)
	pfx := newVaultPFX(t, "CLINICA EXEMPLO LTDA:12345678000199", "senha123")

	_, err := vault.Store(context.Background(), em, pfx, "senha-errada")
	assert.Error(t, err)
}
