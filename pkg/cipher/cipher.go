package cipher

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"
	"os"
	"sync"
)

// Erros específicos
var (
	ErrMissingMasterKey = errors.New("chave mestra de criptografia não configurada")
	ErrInvalidToken     = errors.New("dados cifrados inválidos ou chave incorreta")
)

// MasterKeyEnv é a variável de ambiente que contém a chave mestra
const MasterKeyEnv = "FISCAL_MASTER_KEY"

// KeyProvider deriva e mantém em cache as chaves simétricas usadas para
// proteger certificados e senhas em repouso. A derivação acontece uma única
// vez por clínica; o provider é construído no início do processo e injetado
// nos componentes que precisam de criptografia.
type KeyProvider struct {
	masterKey []byte

	mu   sync.RWMutex
	keys map[string][]byte
}

// NewKeyProvider cria um KeyProvider a partir da chave mestra informada
func NewKeyProvider(masterKey string) (*KeyProvider, error) {
	if masterKey == "" {
		return nil, ErrMissingMasterKey
	}
	return &KeyProvider{
		masterKey: []byte(masterKey),
		keys:      make(map[string][]byte),
	}, nil
}

// NewKeyProviderFromEnv cria um KeyProvider lendo a chave mestra do ambiente
func NewKeyProviderFromEnv() (*KeyProvider, error) {
	return NewKeyProvider(os.Getenv(MasterKeyEnv))
}

// ClinicKey retorna a chave derivada para uma clínica específica.
// A derivação é SHA-256(master || ":" || clinic_id) para limitar o raio de
// impacto de um vazamento de chave a uma única clínica.
func (p *KeyProvider) ClinicKey(clinicID string) []byte {
	p.mu.RLock()
	if key, ok := p.keys[clinicID]; ok {
		p.mu.RUnlock()
		return key
	}
	p.mu.RUnlock()

	sum := sha256.Sum256(append(append([]byte{}, p.masterKey...), []byte(":"+clinicID)...))
	key := sum[:]

	p.mu.Lock()
	p.keys[clinicID] = key
	p.mu.Unlock()
	return key
}

// GlobalKey retorna a chave derivada global, para dados não vinculados a
// uma clínica. A derivação é SHA-256(master).
func (p *KeyProvider) GlobalKey() []byte {
	sum := sha256.Sum256(p.masterKey)
	return sum[:]
}

// Encrypt cifra os dados com AES-256-GCM usando a chave informada.
// O nonce é prefixado ao resultado.
func Encrypt(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt decifra dados produzidos por Encrypt. Retorna ErrInvalidToken se
// os dados foram adulterados ou a chave não corresponde.
func Decrypt(key, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, ErrInvalidToken
	}

	nonce, sealed := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrInvalidToken
	}

	return plaintext, nil
}
