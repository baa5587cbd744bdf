package pkcs12

import (
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"regexp"
	"time"

	"software.sslmate.com/src/go-pkcs12"
)

// ErrInvalidCertificate indica que o arquivo PFX não pôde ser aberto com a
// senha informada ou não contém um certificado
var ErrInvalidCertificate = errors.New("certificado inválido ou senha incorreta")

// cnpjPattern localiza uma sequência de 14 dígitos nos atributos do subject
var cnpjPattern = regexp.MustCompile(`\d{14}`)

// Metadata contém os dados derivados de um certificado A1
type Metadata struct {
	FingerprintSHA256 string
	ValidFrom         time.Time
	ValidTo           time.Time
	SubjectCNPJ       string
	SubjectName       string
}

// Parse abre um bundle PKCS12 e extrai os metadados do certificado folha
func Parse(pfxData []byte, password string) (*Metadata, error) {
	_, certificate, _, err := pkcs12.DecodeChain(pfxData, password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCertificate, err)
	}
	if certificate == nil {
		return nil, ErrInvalidCertificate
	}

	fingerprint := sha256.Sum256(certificate.Raw)

	return &Metadata{
		FingerprintSHA256: hex.EncodeToString(fingerprint[:]),
		ValidFrom:         certificate.NotBefore,
		ValidTo:           certificate.NotAfter,
		SubjectCNPJ:       extractCNPJ(certificate),
		SubjectName:       certificate.Subject.CommonName,
	}, nil
}

// extractCNPJ procura o CNPJ do titular nos atributos do subject.
// Certificados ICP-Brasil carregam o CNPJ no CommonName (após "...:") ou em
// atributos como serialNumber; como último recurso a string RFC4514 completa
// é varrida em busca de uma sequência de 14 dígitos.
func extractCNPJ(cert *x509.Certificate) string {
	candidates := []string{cert.Subject.CommonName, cert.Subject.SerialNumber}
	candidates = append(candidates, cert.Subject.OrganizationalUnit...)

	for _, value := range candidates {
		if match := cnpjPattern.FindString(value); match != "" {
			return match
		}
	}

	return cnpjPattern.FindString(cert.Subject.String())
}

// ToPEM converte um certificado PKCS12 para blocos PEM
func ToPEM(pfxData []byte, password string) ([]*pem.Block, error) {
	// Decodificar o arquivo PKCS12
	privateKey, certificate, caCerts, err := pkcs12.DecodeChain(pfxData, password)
	if err != nil {
		return nil, err
	}

	// Criar slice para armazenar os blocos PEM
	var blocks []*pem.Block

	// Adicionar o certificado principal
	if certificate != nil {
		blocks = append(blocks, &pem.Block{
			Type:  "CERTIFICATE",
			Bytes: certificate.Raw,
		})
	}

	// Adicionar certificados da cadeia (CA)
	for _, cert := range caCerts {
		blocks = append(blocks, &pem.Block{
			Type:  "CERTIFICATE",
			Bytes: cert.Raw,
		})
	}

	// Adicionar chave privada se disponível
	if privateKey != nil {
		pkData, err := x509.MarshalPKCS8PrivateKey(privateKey)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, &pem.Block{
			Type:  "PRIVATE KEY",
			Bytes: pkData,
		})
	}

	return blocks, nil
}
