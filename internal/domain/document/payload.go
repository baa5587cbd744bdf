package document

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Party identifica um participante do documento (tomador ou destinatário)
type Party struct {
	CpfCnpj  string `json:"cpf_cnpj"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Street   string `json:"street,omitempty"`
	Number   string `json:"number,omitempty"`
	District string `json:"district,omitempty"`
	City     string `json:"city,omitempty"`
	CityCode string `json:"city_code,omitempty"`
	UF       string `json:"uf,omitempty"`
	ZipCode  string `json:"zip_code,omitempty"`
}

// ServiceData é a parte do payload específica de NFS-e: um serviço prestado
// com descrição, valor e alíquota de ISS
type ServiceData struct {
	Description      string          `json:"description"`
	Value            decimal.Decimal `json:"value"`
	AliquotaISS      decimal.Decimal `json:"aliquota_iss"`
	ItemListaServico string          `json:"item_lista_servico"`
}

// ProductItem é um item de linha de NF-e com quantidade, preço e alíquotas
type ProductItem struct {
	Code           string          `json:"code"`
	Description    string          `json:"description"`
	NCM            string          `json:"ncm"`
	CFOP           string          `json:"cfop"`
	Unit           string          `json:"unit"`
	Quantity       decimal.Decimal `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	AliquotaICMS   decimal.Decimal `json:"aliquota_icms"`
	AliquotaPIS    decimal.Decimal `json:"aliquota_pis"`
	AliquotaCOFINS decimal.Decimal `json:"aliquota_cofins"`
}

// Total retorna o valor do item (quantidade × preço unitário)
func (i ProductItem) Total() decimal.Decimal {
	return i.Quantity.Mul(i.UnitPrice)
}

// Payload é o modelo normalizado que origina o XML do documento. É produzido
// pelo builder a partir do objeto de negócio e gravado junto ao documento.
type Payload struct {
	Customer Party         `json:"customer"`
	Service  *ServiceData  `json:"service,omitempty"`
	Items    []ProductItem `json:"items,omitempty"`
}

// Marshal serializa o payload normalizado para persistência
func (p *Payload) Marshal() ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("falha ao serializar payload: %w", err)
	}
	return data, nil
}

// UnmarshalPayload reconstrói o payload normalizado de um documento
func UnmarshalPayload(data []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("falha ao ler payload: %w", err)
	}
	return &p, nil
}
