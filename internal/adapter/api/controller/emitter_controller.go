package controller

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/clinvet/fiscal-engine/internal/adapter/api/dto"
	"github.com/clinvet/fiscal-engine/internal/domain/emitter"
	"github.com/clinvet/fiscal-engine/pkg/clinic"
	"github.com/clinvet/fiscal-engine/pkg/logger"
)

// EmitterController manipula as requisições relacionadas a emissores fiscais
type EmitterController struct {
	emitterRepo emitter.Repository
	logger      logger.Logger
}

// NewEmitterController cria uma nova instância de EmitterController
func NewEmitterController(emitterRepo emitter.Repository, logger logger.Logger) *EmitterController {
	return &EmitterController{
		emitterRepo: emitterRepo,
		logger:      logger,
	}
}

// @Summary Criar emissor
// @Description Cria o emissor fiscal da clínica (no máximo um por clínica)
// @Tags Emissores
// @Accept json
// @Produce json
// @Param clinic-id header string true "ID da clínica"
// @Param emitter body dto.EmitterRequest true "Dados do emissor"
// @Success 201 {object} dto.EmitterResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /emitters [post]
func (c *EmitterController) Create(ctx *gin.Context) {
	clinicID := clinic.GetClinicID(ctx)
	if clinicID == "" {
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(http.StatusBadRequest, "Clínica não informada", "cabeçalho clinic-id é obrigatório"))
		return
	}

	var req dto.EmitterRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(http.StatusBadRequest, "Dados inválidos", err.Error()))
		return
	}

	exists, err := c.emitterRepo.ExistsByClinic(ctx, clinicID)
	if err != nil {
		c.logger.Error("falha ao verificar emissor existente", "clinic_id", clinicID, "error", err)
		ctx.JSON(http.StatusInternalServerError, dto.NewErrorResponse(http.StatusInternalServerError, "Erro ao verificar emissor", err.Error()))
		return
	}
	if exists {
		ctx.JSON(http.StatusConflict, dto.NewErrorResponse(http.StatusConflict, "Clínica já possui emissor fiscal", ""))
		return
	}

	em, err := emitter.NewEmitter(clinicID, req.CNPJ, req.RazaoSocial)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(http.StatusBadRequest, "Dados inválidos", err.Error()))
		return
	}
	em.NomeFantasia = req.NomeFantasia
	em.ConfigureTax(req.TaxRegime, req.InscricaoEstadual, req.InscricaoMunicipal, req.Municipality)
	if err := em.ConfigureAddress(req.Street, req.Number, req.District, req.City, req.UF, req.ZipCode, req.CodigoMunicipio); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(http.StatusBadRequest, "Endereço inválido", err.Error()))
		return
	}
	if req.Environment != "" {
		if err := em.SetEnvironment(emitter.FiscalEnvironment(req.Environment)); err != nil {
			ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(http.StatusBadRequest, "Ambiente inválido", err.Error()))
			return
		}
	}

	if err := c.emitterRepo.Create(ctx, em); err != nil {
		c.logger.Error("falha ao criar emissor", "clinic_id", clinicID, "error", err)
		ctx.JSON(http.StatusInternalServerError, dto.NewErrorResponse(http.StatusInternalServerError, "Erro ao criar emissor", err.Error()))
		return
	}

	c.logger.Info("emissor fiscal criado", "emitter_id", em.ID, "clinic_id", clinicID, "cnpj", em.CNPJ)
	ctx.JSON(http.StatusCreated, dto.ToEmitterResponse(em))
}

// @Summary Buscar emissor
// @Description Busca um emissor fiscal pelo ID
// @Tags Emissores
// @Produce json
// @Param id path string true "ID do emissor"
// @Success 200 {object} dto.EmitterResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /emitters/{id} [get]
func (c *EmitterController) Get(ctx *gin.Context) {
	id := ctx.Param("id")

	em, err := c.emitterRepo.FindByID(ctx, id)
	if err != nil {
		ctx.JSON(http.StatusNotFound, dto.NewErrorResponse(http.StatusNotFound, "Emissor não encontrado", err.Error()))
		return
	}

	ctx.JSON(http.StatusOK, dto.ToEmitterResponse(em))
}

// @Summary Buscar emissor da clínica
// @Description Busca o emissor fiscal da clínica do contexto
// @Tags Emissores
// @Produce json
// @Param clinic-id header string true "ID da clínica"
// @Success 200 {object} dto.EmitterResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /emitters/current [get]
func (c *EmitterController) GetCurrent(ctx *gin.Context) {
	clinicID := clinic.GetClinicID(ctx)
	if clinicID == "" {
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(http.StatusBadRequest, "Clínica não informada", "cabeçalho clinic-id é obrigatório"))
		return
	}

	em, err := c.emitterRepo.FindByClinic(ctx, clinicID)
	if err != nil {
		ctx.JSON(http.StatusNotFound, dto.NewErrorResponse(http.StatusNotFound, "Emissor não encontrado", err.Error()))
		return
	}

	ctx.JSON(http.StatusOK, dto.ToEmitterResponse(em))
}

// @Summary Atualizar emissor
// @Description Atualiza os dados fiscais do emissor
// @Tags Emissores
// @Accept json
// @Produce json
// @Param id path string true "ID do emissor"
// @Param emitter body dto.EmitterRequest true "Dados do emissor"
// @Success 200 {object} dto.EmitterResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /emitters/{id} [put]
func (c *EmitterController) Update(ctx *gin.Context) {
	id := ctx.Param("id")

	em, err := c.emitterRepo.FindByID(ctx, id)
	if err != nil {
		ctx.JSON(http.StatusNotFound, dto.NewErrorResponse(http.StatusNotFound, "Emissor não encontrado", err.Error()))
		return
	}

	var req dto.EmitterRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(http.StatusBadRequest, "Dados inválidos", err.Error()))
		return
	}

	if cnpj := emitter.NormalizeCNPJ(req.CNPJ); len(cnpj) == 14 {
		em.CNPJ = cnpj
	}
	if req.RazaoSocial != "" {
		em.RazaoSocial = req.RazaoSocial
	}
	em.NomeFantasia = req.NomeFantasia
	em.ConfigureTax(req.TaxRegime, req.InscricaoEstadual, req.InscricaoMunicipal, req.Municipality)
	if err := em.ConfigureAddress(req.Street, req.Number, req.District, req.City, req.UF, req.ZipCode, req.CodigoMunicipio); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(http.StatusBadRequest, "Endereço inválido", err.Error()))
		return
	}
	if req.Environment != "" {
		if err := em.SetEnvironment(emitter.FiscalEnvironment(req.Environment)); err != nil {
			ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(http.StatusBadRequest, "Ambiente inválido", err.Error()))
			return
		}
	}

	if err := c.emitterRepo.Update(ctx, em); err != nil {
		c.logger.Error("falha ao atualizar emissor", "emitter_id", em.ID, "error", err)
		ctx.JSON(http.StatusInternalServerError, dto.NewErrorResponse(http.StatusInternalServerError, "Erro ao atualizar emissor", err.Error()))
		return
	}

	ctx.JSON(http.StatusOK, dto.ToEmitterResponse(em))
}

// @Summary Listar emissores
// @Description Lista os emissores fiscais com paginação
// @Tags Emissores
// @Produce json
// @Param page query int false "Página"
// @Param page_size query int false "Itens por página"
// @Success 200 {array} dto.EmitterResponse
// @Router /emitters [get]
func (c *EmitterController) List(ctx *gin.Context) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(ctx.DefaultQuery("page_size", "10"))
	pagination := dto.GetPagination(page, pageSize)

	emitters, err := c.emitterRepo.List(ctx, pagination.PageSize, pagination.Offset())
	if err != nil {
		c.logger.Error("falha ao listar emissores", "error", err)
		ctx.JSON(http.StatusInternalServerError, dto.NewErrorResponse(http.StatusInternalServerError, "Erro ao listar emissores", err.Error()))
		return
	}

	ctx.JSON(http.StatusOK, dto.ToEmitterListResponse(emitters))
}
