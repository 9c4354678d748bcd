package handler

import (
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"legalis/internal/domain"
	"legalis/internal/export"
	"legalis/internal/service"
)

// DocumentHandler handles document translation endpoints.
type DocumentHandler struct {
	translationService service.TranslationService
}

// NewDocumentHandler creates a new DocumentHandler.
func NewDocumentHandler(translationService service.TranslationService) *DocumentHandler {
	return &DocumentHandler{translationService: translationService}
}

// Submit handles POST /api/v1/documents
func (h *DocumentHandler) Submit(c *gin.Context) {
	var req struct {
		Title          string `json:"title"`
		DocumentType   string `json:"document_type" binding:"required"`
		TargetAudience string `json:"target_audience"`
		Content        string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "document_type and content are required")
		return
	}

	doc, err := h.translationService.Submit(c.Request.Context(), &service.SubmitInput{
		Title:          req.Title,
		DocumentType:   domain.DocumentType(req.DocumentType),
		TargetAudience: req.TargetAudience,
		Content:        req.Content,
	})
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondCreated(c, doc)
}

// GetByID handles GET /api/v1/documents/:id
func (h *DocumentHandler) GetByID(c *gin.Context) {
	docID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_ID", "invalid document ID")
		return
	}

	doc, err := h.translationService.GetByID(c.Request.Context(), docID)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, doc)
}

// List handles GET /api/v1/documents
func (h *DocumentHandler) List(c *gin.Context) {
	offset, limit := paginationParams(c)

	docs, total, err := h.translationService.List(c.Request.Context(), offset, limit)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondPaginated(c, docs, PagMeta{Total: total, Offset: offset, Limit: limit})
}

// Result handles GET /api/v1/documents/:id/result
func (h *DocumentHandler) Result(c *gin.Context) {
	docID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_ID", "invalid document ID")
		return
	}

	result, err := h.translationService.Result(c.Request.Context(), docID)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, result)
}

// Export handles GET /api/v1/documents/:id/export?format=csv|xlsx
func (h *DocumentHandler) Export(c *gin.Context) {
	docID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_ID", "invalid document ID")
		return
	}

	format := strings.ToLower(c.DefaultQuery("format", "csv"))
	contentType, err := export.ContentType(format)
	if err != nil {
		HandleError(c, err)
		return
	}

	doc, err := h.translationService.GetByID(c.Request.Context(), docID)
	if err != nil {
		HandleError(c, err)
		return
	}
	result, err := h.translationService.Result(c.Request.Context(), docID)
	if err != nil {
		HandleError(c, err)
		return
	}

	filename := export.BuildFilename(doc.Title, format)
	c.Header("Content-Type", contentType)
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)

	switch format {
	case "csv":
		err = export.WriteCSV(c.Writer, result.Sections)
	case "xlsx":
		err = export.WriteXLSX(c.Writer, result.Sections)
	}
	if err != nil {
		// Headers are already out; log and abort the stream.
		requestID, _ := c.Get("request_id")
		log.Printf("[%s] export failed for document %s: %v", requestID, docID, err)
		c.Abort()
	}
}

// Delete handles DELETE /api/v1/documents/:id
func (h *DocumentHandler) Delete(c *gin.Context) {
	docID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_ID", "invalid document ID")
		return
	}

	if err := h.translationService.Delete(c.Request.Context(), docID); err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, gin.H{"deleted": true})
}

// paginationParams reads offset/limit query params with defaults and caps.
func paginationParams(c *gin.Context) (offset, limit int) {
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return offset, limit
}
