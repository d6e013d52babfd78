package handler

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yourusername/terms-api/internal/domain/entity"
	"github.com/yourusername/terms-api/internal/handler/dto"
	"github.com/yourusername/terms-api/internal/middleware"
	apperrors "github.com/yourusername/terms-api/internal/pkg/errors"
	"github.com/yourusername/terms-api/internal/service"
)

// TermsHandler обрабатывает запросы, связанные с условиями использования
type TermsHandler struct {
	termsService *service.TermsService
	emailService service.TermsEmailService
}

// NewTermsHandler создает новый обработчик условий использования
func NewTermsHandler(termsService *service.TermsService, emailService service.TermsEmailService) *TermsHandler {
	return &TermsHandler{
		termsService: termsService,
		emailService: emailService,
	}
}

// GetActiveList возвращает активные версии по всем slug
// GET /api/terms
func (h *TermsHandler) GetActiveList(c *gin.Context) {
	list, err := h.termsService.GetActiveTermsList()
	if err != nil {
		log.Printf("[TermsHandler] Ошибка при получении списка активных условий: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error getting active terms"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"terms": list})
}

// GetActive возвращает активную версию для slug (query-параметр, по умолчанию
// из конфигурации). Отсутствие активной версии отдается как 404.
// GET /api/terms/active?slug=site-terms
func (h *TermsHandler) GetActive(c *gin.Context) {
	slug := c.Query("slug")

	active, err := h.termsService.GetActive(slug)
	if err != nil {
		log.Printf("[TermsHandler] Ошибка при получении активной версии slug=%s: %v", slug, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error getting active terms"})
		return
	}
	if active == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No active terms for this slug", "error_type": "not_found"})
		return
	}

	c.JSON(http.StatusOK, active)
}

// ListVersions возвращает все версии документа, включая черновики
// GET /api/terms/versions/:slug
func (h *TermsHandler) ListVersions(c *gin.Context) {
	slug := c.Param("slug")

	versions, err := h.termsService.ListVersions(slug)
	if err != nil {
		log.Printf("[TermsHandler] Ошибка при получении версий slug=%s: %v", slug, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error listing terms versions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"slug": slug, "versions": versions})
}

// GetVersion возвращает конкретную версию документа
// GET /api/terms/versions/:slug/:version
func (h *TermsHandler) GetVersion(c *gin.Context) {
	slug := c.Param("slug")

	version, err := strconv.ParseFloat(c.Param("version"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid version number", "error_type": "validation"})
		return
	}

	terms, err := h.termsService.GetBySlugAndVersion(slug, version)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Terms version not found", "error_type": "not_found"})
			return
		}
		log.Printf("[TermsHandler] Ошибка при получении версии slug=%s version=%.2f: %v", slug, version, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error getting terms version"})
		return
	}

	c.JSON(http.StatusOK, terms)
}

// Accept записывает принятие версии условий аутентифицированным пользователем.
// Повторное принятие той же версии возвращает 200 с существующей записью.
// POST /api/terms/accept
func (h *TermsHandler) Accept(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "error_type": "token_missing"})
		return
	}

	var req dto.AcceptTermsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "terms_id is required", "error_type": "validation"})
		return
	}

	acceptance, err := h.termsService.Accept(userID, req.TermsID, c.ClientIP())
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Terms version not found", "error_type": "not_found"})
		case errors.Is(err, apperrors.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid accept request", "error_type": "validation"})
		default:
			log.Printf("[TermsHandler] Ошибка при принятии условий userID=%d termsID=%d: %v", userID, req.TermsID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error accepting terms"})
		}
		return
	}

	c.JSON(http.StatusOK, acceptance)
}

// GetRequired возвращает активные условия, которые пользователь еще не принял
// GET /api/terms/required
func (h *TermsHandler) GetRequired(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "error_type": "token_missing"})
		return
	}

	notAgreed, err := h.termsService.GetActiveTermsNotAgreedTo(userID)
	if err != nil {
		log.Printf("[TermsHandler] Ошибка при получении непринятых условий userID=%d: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error getting required terms"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"required_terms": notAgreed})
}

// GetAgreed проверяет, принял ли пользователь активную версию slug
// GET /api/terms/agreed?slug=site-terms
func (h *TermsHandler) GetAgreed(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "error_type": "token_missing"})
		return
	}

	slug := c.Query("slug")
	if slug == "" {
		slug = h.termsService.DefaultSlug()
	}

	// Активная версия нужна и для ответа, и для проверки — запрашиваем один раз
	active, err := h.termsService.GetActive(slug)
	if err != nil {
		log.Printf("[TermsHandler] Ошибка при проверке принятия slug=%s userID=%d: %v", slug, userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error checking agreement"})
		return
	}

	resp := dto.AgreedResponse{Slug: slug}
	if active != nil {
		resp.TermsID = active.ID
		agreed, err := h.termsService.AgreedToTerms(userID, active.ID)
		if err != nil {
			log.Printf("[TermsHandler] Ошибка при проверке принятия slug=%s userID=%d: %v", slug, userID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error checking agreement"})
			return
		}
		resp.Agreed = agreed
	}

	c.JSON(http.StatusOK, resp)
}

// GetAcceptances возвращает историю принятий текущего пользователя
// GET /api/terms/acceptances
func (h *TermsHandler) GetAcceptances(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "error_type": "token_missing"})
		return
	}

	acceptances, err := h.termsService.GetUserAcceptances(userID)
	if err != nil {
		log.Printf("[TermsHandler] Ошибка при получении истории принятий userID=%d: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error getting acceptances"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"acceptances": acceptances})
}

// EmailTerms отправляет копию условий на указанный адрес
// POST /api/terms/email
func (h *TermsHandler) EmailTerms(c *gin.Context) {
	var req dto.EmailTermsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "A valid email is required", "error_type": "validation"})
		return
	}

	terms, err := h.resolveTermsForEmail(req)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Terms version not found", "error_type": "not_found"})
			return
		}
		log.Printf("[TermsHandler] Ошибка при поиске условий для отправки: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error emailing terms"})
		return
	}
	if terms == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No active terms for this slug", "error_type": "not_found"})
		return
	}

	idempotencyKey := uuid.NewString()
	if err := h.emailService.SendTermsCopy(c.Request.Context(), req.Email, terms, idempotencyKey); err != nil {
		log.Printf("[TermsHandler] Ошибка при отправке условий на %s: %v", req.Email, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send terms email"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "sent", "terms_id": terms.ID})
}

func (h *TermsHandler) resolveTermsForEmail(req dto.EmailTermsRequest) (*entity.TermsAndConditions, error) {
	if req.VersionNumber > 0 {
		return h.termsService.GetBySlugAndVersion(req.Slug, req.VersionNumber)
	}
	return h.termsService.GetActive(req.Slug)
}
