package controller

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/clinvet/fiscal-engine/internal/adapter/api/dto"
	"github.com/clinvet/fiscal-engine/internal/domain/document"
	"github.com/clinvet/fiscal-engine/internal/service"
	"github.com/clinvet/fiscal-engine/pkg/logger"
)

// DocumentController manipula as requisições do ciclo de vida dos documentos
// fiscais: emissão, consulta, cancelamento e trilha de auditoria
type DocumentController struct {
	builder  *service.DocumentBuilder
	emission *service.EmissionService
	enqueuer service.Enqueuer
	docRepo  document.Repository
	logger   logger.Logger
}

// NewDocumentController cria uma nova instância de DocumentController
func NewDocumentController(builder *service.DocumentBuilder, emission *service.EmissionService, enqueuer service.Enqueuer, docRepo document.Repository, logger logger.Logger) *DocumentController {
	return &DocumentController{
		builder:  builder,
		emission: emission,
		enqueuer: enqueuer,
		docRepo:  docRepo,
		logger:   logger,
	}
}

// @Summary Emitir documento fiscal
// @Description Cria (ou reaproveita) o documento fiscal para um objeto de negócio e o enfileira para emissão
// @Tags Documentos
// @Accept json
// @Produce json
// @Param request body dto.IssueDocumentRequest true "Dados da emissão"
// @Success 202 {object} dto.DocumentResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /documents [post]
func (c *DocumentController) Issue(ctx *gin.Context) {
	var req dto.IssueDocumentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(http.StatusBadRequest, "Dados inválidos", err.Error()))
		return
	}

	doc, err := c.builder.Build(ctx,
		document.RelatedType(req.RelatedType), req.RelatedID,
		req.EmitterID, document.Type(req.DocType), req.Payload)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(http.StatusBadRequest, "Falha ao criar documento", err.Error()))
		return
	}

	// Documento reaproveitado que já saiu da fila não é reenfileirado
	if doc.Status == document.StatusQueued {
		if err := c.enqueuer.EnqueueEmission(ctx, doc.ID); err != nil {
			c.logger.Error("falha ao enfileirar documento", "document_id", doc.ID, "error", err)
			ctx.JSON(http.StatusInternalServerError, dto.NewErrorResponse(http.StatusInternalServerError, "Erro ao enfileirar documento", err.Error()))
			return
		}
	}

	ctx.JSON(http.StatusAccepted, dto.ToDocumentResponse(doc))
}

// @Summary Buscar documento
// @Description Busca um documento fiscal pelo ID
// @Tags Documentos
// @Produce json
// @Param id path string true "ID do documento"
// @Success 200 {object} dto.DocumentResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /documents/{id} [get]
func (c *DocumentController) Get(ctx *gin.Context) {
	id := ctx.Param("id")

	doc, err := c.docRepo.FindByID(ctx, id)
	if err != nil {
		ctx.JSON(http.StatusNotFound, dto.NewErrorResponse(http.StatusNotFound, "Documento não encontrado", err.Error()))
		return
	}

	ctx.JSON(http.StatusOK, dto.ToDocumentResponse(doc))
}

// @Summary Listar documentos
// @Description Lista os documentos fiscais de um emissor, com filtro opcional de status
// @Tags Documentos
// @Produce json
// @Param emitter_id query string true "ID do emissor"
// @Param status query string false "Filtro de status"
// @Param page query int false "Página"
// @Param page_size query int false "Itens por página"
// @Success 200 {array} dto.DocumentResponse
// @Router /documents [get]
func (c *DocumentController) List(ctx *gin.Context) {
	emitterID := ctx.Query("emitter_id")
	if emitterID == "" {
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(http.StatusBadRequest, "Emissor não informado", "parâmetro emitter_id é obrigatório"))
		return
	}

	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(ctx.DefaultQuery("page_size", "10"))
	pagination := dto.GetPagination(page, pageSize)

	status := document.Status(ctx.Query("status"))

	docs, err := c.docRepo.List(ctx, emitterID, status, pagination.PageSize, pagination.Offset())
	if err != nil {
		c.logger.Error("falha ao listar documentos", "emitter_id", emitterID, "error", err)
		ctx.JSON(http.StatusInternalServerError, dto.NewErrorResponse(http.StatusInternalServerError, "Erro ao listar documentos", err.Error()))
		return
	}

	ctx.JSON(http.StatusOK, dto.ToDocumentListResponse(docs))
}

// @Summary Listar eventos do documento
// @Description Lista a trilha de auditoria de um documento em ordem cronológica
// @Tags Documentos
// @Produce json
// @Param id path string true "ID do documento"
// @Success 200 {array} dto.DocumentEventResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /documents/{id}/events [get]
func (c *DocumentController) ListEvents(ctx *gin.Context) {
	id := ctx.Param("id")

	if _, err := c.docRepo.FindByID(ctx, id); err != nil {
		ctx.JSON(http.StatusNotFound, dto.NewErrorResponse(http.StatusNotFound, "Documento não encontrado", err.Error()))
		return
	}

	events, err := c.docRepo.ListEvents(ctx, id)
	if err != nil {
		c.logger.Error("falha ao listar eventos", "document_id", id, "error", err)
		ctx.JSON(http.StatusInternalServerError, dto.NewErrorResponse(http.StatusInternalServerError, "Erro ao listar eventos", err.Error()))
		return
	}

	ctx.JSON(http.StatusOK, dto.ToDocumentEventListResponse(events))
}

// @Summary Consultar situação do documento
// @Description Consulta a situação de um documento pendente junto ao fisco
// @Tags Documentos
// @Produce json
// @Param id path string true "ID do documento"
// @Success 200 {object} dto.DocumentResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /documents/{id}/poll [post]
func (c *DocumentController) Poll(ctx *gin.Context) {
	id := ctx.Param("id")

	if err := c.emission.Poll(ctx, id); err != nil {
		ctx.JSON(http.StatusInternalServerError, dto.NewErrorResponse(http.StatusInternalServerError, "Erro ao consultar documento", err.Error()))
		return
	}

	doc, err := c.docRepo.FindByID(ctx, id)
	if err != nil {
		ctx.JSON(http.StatusNotFound, dto.NewErrorResponse(http.StatusNotFound, "Documento não encontrado", err.Error()))
		return
	}

	ctx.JSON(http.StatusOK, dto.ToDocumentResponse(doc))
}

// @Summary Cancelar documento
// @Description Submete o cancelamento de um documento autorizado ao fisco
// @Tags Documentos
// @Accept json
// @Produce json
// @Param id path string true "ID do documento"
// @Param request body dto.CancelDocumentRequest true "Justificativa do cancelamento"
// @Success 200 {object} dto.DocumentResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Router /documents/{id}/cancel [post]
func (c *DocumentController) Cancel(ctx *gin.Context) {
	id := ctx.Param("id")

	var req dto.CancelDocumentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(http.StatusBadRequest, "Dados inválidos", err.Error()))
		return
	}

	if err := c.emission.Cancel(ctx, id, req.Reason); err != nil {
		ctx.JSON(http.StatusUnprocessableEntity, dto.NewErrorResponse(http.StatusUnprocessableEntity, "Cancelamento não efetivado", err.Error()))
		return
	}

	doc, err := c.docRepo.FindByID(ctx, id)
	if err != nil {
		ctx.JSON(http.StatusNotFound, dto.NewErrorResponse(http.StatusNotFound, "Documento não encontrado", err.Error()))
		return
	}

	ctx.JSON(http.StatusOK, dto.ToDocumentResponse(doc))
}
