package dto

import (
	"time"

	"github.com/clinvet/fiscal-engine/internal/domain/emitter"
)

// EmitterRequest representa os dados para criação de um emissor fiscal
type EmitterRequest struct {
	CNPJ               string `json:"cnpj" binding:"required"`
	RazaoSocial        string `json:"razao_social" binding:"required"`
	NomeFantasia       string `json:"nome_fantasia"`
	InscricaoEstadual  string `json:"inscricao_estadual"`
	InscricaoMunicipal string `json:"inscricao_municipal"`
	TaxRegime          string `json:"tax_regime"`
	Municipality       string `json:"municipality"`
	CodigoMunicipio    string `json:"codigo_municipio"`
	UF                 string `json:"uf"`
	Street             string `json:"street"`
	Number             string `json:"number"`
	District           string `json:"district"`
	City               string `json:"city"`
	ZipCode            string `json:"zip_code"`
	Environment        string `json:"environment"`
}

// EmitterResponse representa a resposta com dados de um emissor fiscal
type EmitterResponse struct {
	ID                 string    `json:"id"`
	ClinicID           string    `json:"clinic_id"`
	CNPJ               string    `json:"cnpj"`
	RazaoSocial        string    `json:"razao_social"`
	NomeFantasia       string    `json:"nome_fantasia"`
	InscricaoEstadual  string    `json:"inscricao_estadual"`
	InscricaoMunicipal string    `json:"inscricao_municipal"`
	TaxRegime          string    `json:"tax_regime"`
	Municipality       string    `json:"municipality"`
	CodigoMunicipio    string    `json:"codigo_municipio"`
	UF                 string    `json:"uf"`
	Street             string    `json:"street"`
	Number             string    `json:"number"`
	District           string    `json:"district"`
	City               string    `json:"city"`
	ZipCode            string    `json:"zip_code"`
	Environment        string    `json:"environment"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// ToEmitterResponse converte a entidade em resposta da API
func ToEmitterResponse(em *emitter.Emitter) EmitterResponse {
	return EmitterResponse{
		ID:                 em.ID,
		ClinicID:           em.ClinicID,
		CNPJ:               em.CNPJ,
		RazaoSocial:        em.RazaoSocial,
		NomeFantasia:       em.NomeFantasia,
		InscricaoEstadual:  em.InscricaoEstadual,
		InscricaoMunicipal: em.InscricaoMunicipal,
		TaxRegime:          em.TaxRegime,
		Municipality:       em.Municipality,
		CodigoMunicipio:    em.CodigoMunicipio,
		UF:                 em.UF,
		Street:             em.Street,
		Number:             em.Number,
		District:           em.District,
		City:               em.City,
		ZipCode:            em.ZipCode,
		Environment:        string(em.Environment),
		CreatedAt:          em.CreatedAt,
		UpdatedAt:          em.UpdatedAt,
	}
}

// ToEmitterListResponse converte uma lista de entidades em respostas da API
func ToEmitterListResponse(emitters []*emitter.Emitter) []EmitterResponse {
	responses := make([]EmitterResponse, 0, len(emitters))
	for _, em := range emitters {
		responses = append(responses, ToEmitterResponse(em))
	}
	return responses
}
