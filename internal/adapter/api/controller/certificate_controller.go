package controller

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/clinvet/fiscal-engine/internal/adapter/api/dto"
	"github.com/clinvet/fiscal-engine/internal/domain/certificate"
	"github.com/clinvet/fiscal-engine/internal/domain/emitter"
	"github.com/clinvet/fiscal-engine/internal/service"
	"github.com/clinvet/fiscal-engine/pkg/logger"
)

// maxPFXSize limita o upload do arquivo PFX (os certificados A1 têm poucos KB)
const maxPFXSize = 1 << 20

// CertificateController manipula as requisições relacionadas a certificados
// digitais. Upload e leitura passam sempre pelo cofre; o conteúdo do PFX
// nunca é exposto pela API.
type CertificateController struct {
	vault       *service.CertificateVault
	certRepo    certificate.Repository
	emitterRepo emitter.Repository
	logger      logger.Logger
}

// NewCertificateController cria uma nova instância de CertificateController
func NewCertificateController(vault *service.CertificateVault, certRepo certificate.Repository, emitterRepo emitter.Repository, logger logger.Logger) *CertificateController {
	return &CertificateController{
		vault:       vault,
		certRepo:    certRepo,
		emitterRepo: emitterRepo,
		logger:      logger,
	}
}

// @Summary Enviar certificado
// @Description Recebe um arquivo PFX (PKCS#12) com a senha e o armazena cifrado no cofre
// @Tags Certificados
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "ID do emissor"
// @Param certificate formData file true "Arquivo PFX"
// @Param password formData string true "Senha do PFX"
// @Success 201 {object} dto.CertificateResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Router /emitters/{id}/certificates [post]
func (c *CertificateController) Upload(ctx *gin.Context) {
	emitterID := ctx.Param("id")

	em, err := c.emitterRepo.FindByID(ctx, emitterID)
	if err != nil {
		ctx.JSON(http.StatusNotFound, dto.NewErrorResponse(http.StatusNotFound, "Emissor não encontrado", err.Error()))
		return
	}

	file, _, err := ctx.Request.FormFile("certificate")
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(http.StatusBadRequest, "Arquivo do certificado é obrigatório", err.Error()))
		return
	}
	defer file.Close()

	pfxData, err := io.ReadAll(io.LimitReader(file, maxPFXSize))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(http.StatusBadRequest, "Falha ao ler o arquivo do certificado", err.Error()))
		return
	}

	password := ctx.PostForm("password")
	if password == "" {
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(http.StatusBadRequest, "Senha do certificado é obrigatória", ""))
		return
	}

	cert, err := c.vault.Store(ctx, em, pfxData, password)
	if err != nil {
		c.logger.Warn("upload de certificado recusado", "emitter_id", emitterID, "error", err)
		ctx.JSON(http.StatusUnprocessableEntity, dto.NewErrorResponse(http.StatusUnprocessableEntity, "Certificado recusado", err.Error()))
		return
	}

	ctx.JSON(http.StatusCreated, dto.ToCertificateResponse(cert))
}

// @Summary Listar certificados do emissor
// @Description Lista os metadados dos certificados de um emissor, mais recentes primeiro
// @Tags Certificados
// @Produce json
// @Param id path string true "ID do emissor"
// @Success 200 {array} dto.CertificateResponse
// @Router /emitters/{id}/certificates [get]
func (c *CertificateController) ListByEmitter(ctx *gin.Context) {
	emitterID := ctx.Param("id")

	certs, err := c.certRepo.FindByEmitter(ctx, emitterID)
	if err != nil {
		c.logger.Error("falha ao listar certificados", "emitter_id", emitterID, "error", err)
		ctx.JSON(http.StatusInternalServerError, dto.NewErrorResponse(http.StatusInternalServerError, "Erro ao listar certificados", err.Error()))
		return
	}

	ctx.JSON(http.StatusOK, dto.ToCertificateListResponse(certs))
}

// @Summary Listar certificados expirando
// @Description Lista os certificados que expiram dentro do número de dias informado
// @Tags Certificados
// @Produce json
// @Param days query int false "Dias até a expiração (padrão 30)"
// @Success 200 {array} dto.CertificateResponse
// @Router /certificates/expiring [get]
func (c *CertificateController) ListExpiring(ctx *gin.Context) {
	days, err := strconv.Atoi(ctx.DefaultQuery("days", "30"))
	if err != nil || days <= 0 {
		days = 30
	}

	certs, err := c.certRepo.FindExpiring(ctx, days)
	if err != nil {
		c.logger.Error("falha ao listar certificados expirando", "error", err)
		ctx.JSON(http.StatusInternalServerError, dto.NewErrorResponse(http.StatusInternalServerError, "Erro ao listar certificados", err.Error()))
		return
	}

	ctx.JSON(http.StatusOK, dto.ToCertificateListResponse(certs))
}
