package handler

import (
	"encoding/csv"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"github.com/yourusername/terms-api/internal/domain/entity"
	"github.com/yourusername/terms-api/internal/handler/dto"
	apperrors "github.com/yourusername/terms-api/internal/pkg/errors"
	"github.com/yourusername/terms-api/internal/service"
)

// AdminTermsHandler обрабатывает административные запросы:
// создание и активация версий, выгрузка аудиторского следа
type AdminTermsHandler struct {
	termsService *service.TermsService
}

// NewAdminTermsHandler создает новый административный обработчик
func NewAdminTermsHandler(termsService *service.TermsService) *AdminTermsHandler {
	return &AdminTermsHandler{termsService: termsService}
}

// CreateTerms создает новую версию условий (черновик, если date_active не задана)
// POST /api/admin/terms
func (h *AdminTermsHandler) CreateTerms(c *gin.Context) {
	var req dto.CreateTermsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required", "error_type": "validation"})
		return
	}

	terms := &entity.TermsAndConditions{
		Slug:          req.Slug,
		Name:          req.Name,
		VersionNumber: req.VersionNumber,
		Text:          req.Text,
		Info:          req.Info,
		DateActive:    req.DateActive,
	}

	if err := h.termsService.CreateTerms(terms); err != nil {
		if errors.Is(err, apperrors.ErrValidation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid terms payload", "error_type": "validation"})
			return
		}
		log.Printf("[AdminTermsHandler] Ошибка при создании версии условий: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error creating terms"})
		return
	}

	c.JSON(http.StatusCreated, terms)
}

// ActivateTerms выставляет дату активации версии
// POST /api/admin/terms/:id/activate
func (h *AdminTermsHandler) ActivateTerms(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid terms id", "error_type": "validation"})
		return
	}

	// Пустое тело допустимо — означает активацию текущим моментом
	var req dto.ActivateTermsRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid activation payload", "error_type": "validation"})
			return
		}
	}

	at := time.Time{}
	if req.DateActive != nil {
		at = *req.DateActive
	}

	terms, err := h.termsService.Activate(uint(id), at)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Terms version not found", "error_type": "not_found"})
			return
		}
		log.Printf("[AdminTermsHandler] Ошибка при активации версии id=%d: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error activating terms"})
		return
	}

	c.JSON(http.StatusOK, terms)
}

// ExportAcceptances выгружает аудиторский след принятий в CSV или Excel
// GET /api/admin/terms/acceptances/export?format=xlsx|csv
func (h *AdminTermsHandler) ExportAcceptances(c *gin.Context) {
	acceptances, err := h.termsService.ListAcceptances()
	if err != nil {
		log.Printf("[AdminTermsHandler] Ошибка при выгрузке принятий: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error exporting acceptances"})
		return
	}

	filename := fmt.Sprintf("terms_acceptances_%s", time.Now().Format("2006-01-02"))

	switch c.DefaultQuery("format", "xlsx") {
	case "csv":
		h.exportCSV(c, acceptances, filename)
	case "xlsx":
		h.exportXLSX(c, acceptances, filename)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported format, use csv or xlsx", "error_type": "validation"})
	}
}

func acceptanceRow(a *entity.UserTermsAndConditions) (slug string, version string, name string) {
	if a.Terms != nil {
		return a.Terms.Slug, fmt.Sprintf("%.2f", a.Terms.VersionNumber), a.Terms.Name
	}
	return "", "", ""
}

// exportCSV пишет принятия в CSV прямо в response
func (h *AdminTermsHandler) exportCSV(c *gin.Context, acceptances []entity.UserTermsAndConditions, filename string) {
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.csv\"", filename))

	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()

	writer.Write([]string{"ID", "User ID", "Slug", "Version", "Document", "IP Address", "Date Accepted"})

	for i := range acceptances {
		a := &acceptances[i]
		slug, version, name := acceptanceRow(a)

		writer.Write([]string{
			strconv.FormatUint(uint64(a.ID), 10),
			strconv.FormatUint(uint64(a.UserID), 10),
			sanitizeForExcel(slug),
			version,
			sanitizeForExcel(name),
			a.IPAddress,
			a.DateAccepted.Format(time.RFC3339),
		})
	}
}

// exportXLSX экспортирует принятия в Excel с использованием StreamWriter
func (h *AdminTermsHandler) exportXLSX(c *gin.Context, acceptances []entity.UserTermsAndConditions, filename string) {
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.xlsx\"", filename))

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Acceptances"
	f.SetSheetName("Sheet1", sheetName)

	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		log.Printf("[AdminTermsHandler] Ошибка создания StreamWriter: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create Excel file"})
		return
	}

	// Заголовки
	headers := []interface{}{"ID", "User ID", "Slug", "Version", "Document", "IP Address", "Date Accepted"}
	if err := sw.SetRow("A1", headers); err != nil {
		log.Printf("[AdminTermsHandler] Ошибка записи заголовков: %v", err)
	}

	// Данные
	for i := range acceptances {
		a := &acceptances[i]
		slug, version, name := acceptanceRow(a)

		rowNum := i + 2 // Начинаем с 2 строки (1 - заголовки)
		cell := fmt.Sprintf("A%d", rowNum)

		row := []interface{}{
			a.ID,
			a.UserID,
			sanitizeForExcel(slug),
			version,
			sanitizeForExcel(name),
			a.IPAddress,
			a.DateAccepted.Format(time.RFC3339),
		}
		if err := sw.SetRow(cell, row); err != nil {
			log.Printf("[AdminTermsHandler] Ошибка записи строки %d: %v", rowNum, err)
		}
	}

	if err := sw.Flush(); err != nil {
		log.Printf("[AdminTermsHandler] Ошибка при Flush: %v", err)
	}

	// Записываем в response
	if err := f.Write(c.Writer); err != nil {
		log.Printf("[AdminTermsHandler] Ошибка записи Excel в response: %v", err)
	}
}

// sanitizeForExcel экранирует данные для защиты от formula injection в Excel/CSV
func sanitizeForExcel(s string) string {
	if len(s) == 0 {
		return s
	}
	// Символы, начинающие формулу в Excel/LibreOffice: = + - @ \t \r
	if s[0] == '=' || s[0] == '+' || s[0] == '-' || s[0] == '@' || s[0] == '\t' || s[0] == '\r' {
		return "'" + s
	}
	return s
}
