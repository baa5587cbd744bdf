package transport

import (
	"context"
	"crypto/tls"
	"encoding/pem"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	pkcs12pkg "github.com/clinvet/fiscal-engine/pkg/pkcs12"
)

// DefaultTimeout limita cada chamada ao fisco
const DefaultTimeout = 30 * time.Second

// Result é o resultado uniforme de uma chamada ao fisco. Os três desfechos
// (sucesso, fault da autoridade e falha de transporte) chegam ao chamador
// neste mesmo formato, com os XMLs de ida e volta sempre capturados para a
// trilha de auditoria.
type Result struct {
	Success      bool
	RequestXML   string
	ResponseXML  string
	ErrorMessage string
}

// Client executa chamadas SOAP/HTTP contra os web services fiscais usando
// TLS mútuo com o certificado A1 do emissor
type Client struct {
	timeout time.Duration
}

// NewClient cria um novo cliente de transporte
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{timeout: timeout}
}

// Post envia um envelope SOAP ao endpoint informado autenticando com o
// certificado PKCS#12. O material criptográfico é convertido em arquivos PEM
// temporários que existem apenas durante a chamada e são removidos em todos
// os caminhos de saída.
func (c *Client) Post(ctx context.Context, endpoint, contentType, envelope string, pfxData []byte, password string) *Result {
	result := &Result{RequestXML: envelope}

	certFile, keyFile, cleanup, err := writeTempPEM(pfxData, password)
	if err != nil {
		result.ErrorMessage = err.Error()
		return result
	}
	defer cleanup()

	keyPair, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		result.ErrorMessage = fmt.Sprintf("falha ao carregar par de chaves: %v", err)
		return result
	}

	httpClient := &http.Client{
		Timeout: c.timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				Certificates:  []tls.Certificate{keyPair},
				MinVersion:    tls.VersionTLS12,
				Renegotiation: tls.RenegotiateOnceAsClient,
			},
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(envelope))
	if err != nil {
		result.ErrorMessage = fmt.Sprintf("falha ao montar requisição: %v", err)
		return result
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := httpClient.Do(req)
	if err != nil {
		result.ErrorMessage = fmt.Sprintf("falha de transporte: %v", err)
		return result
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		result.ErrorMessage = fmt.Sprintf("falha ao ler resposta: %v", err)
		return result
	}
	result.ResponseXML = string(body)

	if resp.StatusCode != http.StatusOK {
		// Fault da autoridade: o corpo é capturado integralmente
		result.ErrorMessage = fmt.Sprintf("resposta HTTP %d do serviço fiscal", resp.StatusCode)
		return result
	}

	result.Success = true
	return result
}

// writeTempPEM decifra o PKCS#12 e grava certificado+cadeia e chave privada
// em arquivos PEM temporários. O cleanup devolvido remove ambos
// incondicionalmente.
func writeTempPEM(pfxData []byte, password string) (certFile, keyFile string, cleanup func(), err error) {
	blocks, err := pkcs12pkg.ToPEM(pfxData, password)
	if err != nil {
		return "", "", nil, fmt.Errorf("falha ao converter certificado para PEM: %w", err)
	}

	var certBuf, keyBuf strings.Builder
	for _, block := range blocks {
		if block.Type == "PRIVATE KEY" {
			keyBuf.Write(pem.EncodeToMemory(block))
		} else {
			certBuf.Write(pem.EncodeToMemory(block))
		}
	}
	if certBuf.Len() == 0 || keyBuf.Len() == 0 {
		return "", "", nil, fmt.Errorf("certificado PKCS#12 sem chave privada ou certificado")
	}

	cert, err := os.CreateTemp("", "fiscal-cert-*.pem")
	if err != nil {
		return "", "", nil, fmt.Errorf("falha ao criar arquivo temporário: %w", err)
	}
	key, err := os.CreateTemp("", "fiscal-key-*.pem")
	if err != nil {
		os.Remove(cert.Name())
		return "", "", nil, fmt.Errorf("falha ao criar arquivo temporário: %w", err)
	}

	cleanup = func() {
		os.Remove(cert.Name())
		os.Remove(key.Name())
	}

	if err := writeAndClose(cert, certBuf.String()); err != nil {
		key.Close()
		cleanup()
		return "", "", nil, fmt.Errorf("falha ao gravar material criptográfico temporário: %w", err)
	}
	if err := writeAndClose(key, keyBuf.String()); err != nil {
		cleanup()
		return "", "", nil, fmt.Errorf("falha ao gravar material criptográfico temporário: %w", err)
	}

	return cert.Name(), key.Name(), cleanup, nil
}

func writeAndClose(f *os.File, content string) error {
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
