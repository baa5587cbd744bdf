package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/clinvet/fiscal-engine/internal/domain/emitter"
	"github.com/clinvet/fiscal-engine/internal/fiscal/transport"
)

// ErrUnsupportedMunicipality é um erro de configuração: não há adaptador
// registrado para o município do emissor
var ErrUnsupportedMunicipality = errors.New("município sem adaptador de NFS-e registrado")

// Request agrupa os dados de uma operação contra o provedor de NFS-e
type Request struct {
	Emitter  *emitter.Emitter
	BodyXML  string // XML da operação, já assinado quando exigido
	PFXData  []byte
	Password string
	Protocol string // protocolo do lote, para consultas
}

// Provider é o conjunto fixo de capacidades que um adaptador municipal de
// NFS-e precisa oferecer. Novos municípios registram uma implementação no
// Registry em vez de ramificar condicionais pelo código.
type Provider interface {
	// Emit envia um lote de RPS assinado
	Emit(ctx context.Context, req *Request) *transport.Result

	// QueryLot consulta o resultado do processamento de um lote
	QueryLot(ctx context.Context, req *Request) *transport.Result

	// Query consulta uma NFS-e individual
	Query(ctx context.Context, req *Request) *transport.Result

	// Cancel envia um pedido de cancelamento assinado
	Cancel(ctx context.Context, req *Request) *transport.Result
}

// Registry mapeia a chave normalizada do município para o adaptador
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry cria um registro vazio de provedores
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register registra um adaptador sob a chave informada
func (r *Registry) Register(key string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[normalize(key)] = p
}

// Get retorna o adaptador para o município informado
func (r *Registry) Get(municipality string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[normalize(municipality)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMunicipality, municipality)
	}
	return p, nil
}

func normalize(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
