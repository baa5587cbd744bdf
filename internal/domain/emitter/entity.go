package emitter

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FiscalEnvironment define o ambiente da SEFAZ
type FiscalEnvironment string

const (
	Production   FiscalEnvironment = "production"
	Homologation FiscalEnvironment = "homologation"
)

var nonDigits = regexp.MustCompile(`\D`)

// ufCodes mapeia a sigla da UF para o código IBGE usado na chave de acesso
var ufCodes = map[string]string{
	"RO": "11", "AC": "12", "AM": "13", "RR": "14", "PA": "15", "AP": "16", "TO": "17",
	"MA": "21", "PI": "22", "CE": "23", "RN": "24", "PB": "25", "PE": "26", "AL": "27", "SE": "28", "BA": "29",
	"MG": "31", "ES": "32", "RJ": "33", "SP": "35",
	"PR": "41", "SC": "42", "RS": "43",
	"MS": "50", "MT": "51", "GO": "52", "DF": "53",
}

// Emitter é a identidade fiscal de uma clínica. Existe no máximo um emissor
// por clínica; o registro nunca é excluído isoladamente (cascateia com a
// clínica).
type Emitter struct {
	ID                 string            `json:"id"`
	ClinicID           string            `json:"clinic_id"`
	CNPJ               string            `json:"cnpj"`
	RazaoSocial        string            `json:"razao_social"`
	NomeFantasia       string            `json:"nome_fantasia"`
	InscricaoEstadual  string            `json:"inscricao_estadual"`
	InscricaoMunicipal string            `json:"inscricao_municipal"`
	TaxRegime          string            `json:"tax_regime"`
	Municipality       string            `json:"municipality"`
	CodigoMunicipio    string            `json:"codigo_municipio"`
	UF                 string            `json:"uf"`
	Street             string            `json:"street"`
	Number             string            `json:"number"`
	District           string            `json:"district"`
	City               string            `json:"city"`
	ZipCode            string            `json:"zip_code"`
	Environment        FiscalEnvironment `json:"environment"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// NewEmitter cria um novo emissor fiscal para uma clínica
func NewEmitter(clinicID, cnpj, razaoSocial string) (*Emitter, error) {
	if clinicID == "" {
		return nil, errors.New("clinic ID é obrigatório")
	}
	cnpj = NormalizeCNPJ(cnpj)
	if len(cnpj) != 14 {
		return nil, errors.New("CNPJ deve conter 14 dígitos")
	}
	if razaoSocial == "" {
		return nil, errors.New("razão social é obrigatória")
	}

	now := time.Now()
	return &Emitter{
		ID:          uuid.New().String(),
		ClinicID:    clinicID,
		CNPJ:        cnpj,
		RazaoSocial: razaoSocial,
		Environment: Homologation,
		UF:          "SP",
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// NormalizeCNPJ remove qualquer caractere não numérico do documento
func NormalizeCNPJ(cnpj string) string {
	return nonDigits.ReplaceAllString(cnpj, "")
}

// CRT retorna o código de regime tributário: 1 para Simples Nacional,
// 3 para regime normal
func (e *Emitter) CRT() int {
	if strings.Contains(strings.ToLower(e.TaxRegime), "simples") {
		return 1
	}
	return 3
}

// SimplesNacional indica se o emissor é optante do Simples Nacional
func (e *Emitter) SimplesNacional() bool {
	return e.CRT() == 1
}

// UFCode retorna o código IBGE da UF do emissor
func (e *Emitter) UFCode() string {
	if code, ok := ufCodes[strings.ToUpper(e.UF)]; ok {
		return code
	}
	return "35" // SP
}

// ConfigureAddress define o endereço fiscal do emissor
func (e *Emitter) ConfigureAddress(street, number, district, city, uf, zipCode, codigoMunicipio string) error {
	if uf != "" {
		if _, ok := ufCodes[strings.ToUpper(uf)]; !ok {
			return errors.New("UF inválida")
		}
		e.UF = strings.ToUpper(uf)
	}
	e.Street = street
	e.Number = number
	e.District = district
	e.City = city
	e.ZipCode = nonDigits.ReplaceAllString(zipCode, "")
	e.CodigoMunicipio = codigoMunicipio
	e.UpdatedAt = time.Now()
	return nil
}

// ConfigureTax define regime tributário, inscrições e provedor municipal
func (e *Emitter) ConfigureTax(regime, inscricaoEstadual, inscricaoMunicipal, municipality string) {
	e.TaxRegime = regime
	e.InscricaoEstadual = inscricaoEstadual
	e.InscricaoMunicipal = inscricaoMunicipal
	e.Municipality = municipality
	e.UpdatedAt = time.Now()
}

// SetEnvironment define o ambiente de emissão (produção ou homologação)
func (e *Emitter) SetEnvironment(env FiscalEnvironment) error {
	if env != Production && env != Homologation {
		return errors.New("ambiente fiscal inválido")
	}
	e.Environment = env
	e.UpdatedAt = time.Now()
	return nil
}
