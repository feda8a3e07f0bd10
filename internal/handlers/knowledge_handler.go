package handlers

import (
	"net/http"

	"whatsdesk/internal/dto"
	"whatsdesk/internal/middleware"
	"whatsdesk/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ===========================================================================
// Knowledge Handler
// Documents are chunked in the background; clients poll the status field
// ===========================================================================

type KnowledgeHandler struct {
	service services.KnowledgeService
	logger  *zap.Logger
}

func NewKnowledgeHandler(service services.KnowledgeService, logger *zap.Logger) *KnowledgeHandler {
	return &KnowledgeHandler{service: service, logger: logger}
}

type CreateDocumentRequest struct {
	Title      string `json:"title" binding:"required,max=255"`
	SourceType string `json:"source_type" binding:"omitempty,oneof=text url file"`
	SourceURL  string `json:"source_url" binding:"omitempty,url"`
	Content    string `json:"content" binding:"required"`
}

// List GET /knowledge
func (h *KnowledgeHandler) List(c *gin.Context) {
	docs, err := h.service.List(c.Request.Context(), workspaceID(c))
	if err != nil {
		respondError(c, h.logger, err, "Document")
		return
	}
	c.JSON(http.StatusOK, dto.Success(docs))
}

// Get GET /knowledge/:id
func (h *KnowledgeHandler) Get(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	doc, err := h.service.Get(c.Request.Context(), workspaceID(c), id)
	if err != nil {
		respondError(c, h.logger, err, "Document")
		return
	}
	c.JSON(http.StatusOK, dto.Success(doc))
}

// Create POST /knowledge answers 202: processing continues in the background
func (h *KnowledgeHandler) Create(c *gin.Context) {
	var req CreateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	doc, err := h.service.Create(c.Request.Context(), workspaceID(c), services.CreateDocumentInput{
		Title:      req.Title,
		SourceType: req.SourceType,
		SourceURL:  req.SourceURL,
		Content:    req.Content,
	})
	if err != nil {
		respondError(c, h.logger, err, "Document")
		return
	}

	h.logger.Info("document submitted",
		zap.String("request_id", middleware.GetRequestID(c)),
		zap.String("document_id", doc.ID.String()),
	)
	c.JSON(http.StatusAccepted, dto.Success(doc))
}

// Reprocess POST /knowledge/:id/reprocess
func (h *KnowledgeHandler) Reprocess(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	doc, err := h.service.Reprocess(c.Request.Context(), workspaceID(c), id)
	if err != nil {
		respondError(c, h.logger, err, "Document")
		return
	}
	c.JSON(http.StatusAccepted, dto.Success(doc))
}

// Delete DELETE /knowledge/:id
func (h *KnowledgeHandler) Delete(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), workspaceID(c), id); err != nil {
		respondError(c, h.logger, err, "Document")
		return
	}
	c.JSON(http.StatusOK, dto.Success(gin.H{"message": "Document deleted"}))
}

func (h *KnowledgeHandler) RegisterRoutes(rg *gin.RouterGroup) {
	knowledge := rg.Group("/knowledge")
	{
		knowledge.GET("", h.List)
		knowledge.GET("/:id", h.Get)
		knowledge.POST("", h.Create)
		knowledge.POST("/:id/reprocess", h.Reprocess)
		knowledge.DELETE("/:id", h.Delete)
	}
}
