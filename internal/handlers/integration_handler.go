package handlers

import (
	"net/http"
	"time"

	"whatsdesk/internal/dto"
	"whatsdesk/internal/middleware"
	"whatsdesk/internal/models"
	"whatsdesk/internal/repositories"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ===========================================================================
// Integration Handler
// Vendor credentials per workspace. Secrets are masked on the way out and a
// masked value sent back on update keeps the stored secret.
// ===========================================================================

type IntegrationHandler struct {
	integrationRepo repositories.IntegrationRepository
	logger          *zap.Logger
}

func NewIntegrationHandler(integrationRepo repositories.IntegrationRepository, logger *zap.Logger) *IntegrationHandler {
	return &IntegrationHandler{integrationRepo: integrationRepo, logger: logger}
}

type CreateIntegrationRequest struct {
	Type     string                 `json:"type" binding:"required,oneof=bitrix24 elevenlabs llm"`
	Name     string                 `json:"name" binding:"required,max=255"`
	IsActive *bool                  `json:"is_active"`
	Config   map[string]interface{} `json:"config"`
}

type UpdateIntegrationRequest struct {
	Name     *string                `json:"name" binding:"omitempty,max=255"`
	IsActive *bool                  `json:"is_active"`
	Config   map[string]interface{} `json:"config"`
}

type IntegrationResponse struct {
	ID          uuid.UUID                `json:"id"`
	Type        models.IntegrationType   `json:"type"`
	Name        string                   `json:"name"`
	IsActive    bool                     `json:"is_active"`
	Config      map[string]interface{}   `json:"config"`
	Status      models.IntegrationStatus `json:"status"`
	LastError   *string                  `json:"last_error,omitempty"`
	LastErrorAt *time.Time               `json:"last_error_at,omitempty"`
	CreatedAt   time.Time                `json:"created_at"`
	UpdatedAt   time.Time                `json:"updated_at"`
}

func newIntegrationResponse(i *models.Integration) *IntegrationResponse {
	return &IntegrationResponse{
		ID:          i.ID,
		Type:        i.Type,
		Name:        i.Name,
		IsActive:    i.IsActive,
		Config:      i.MaskedConfig(),
		Status:      i.Status,
		LastError:   i.LastError,
		LastErrorAt: i.LastErrorAt,
		CreatedAt:   i.CreatedAt,
		UpdatedAt:   i.UpdatedAt,
	}
}

// List GET /integrations
func (h *IntegrationHandler) List(c *gin.Context) {
	integrations, err := h.integrationRepo.ListByWorkspace(c.Request.Context(), workspaceID(c))
	if err != nil {
		respondError(c, h.logger, err, "Integration")
		return
	}

	out := make([]*IntegrationResponse, len(integrations))
	for i := range integrations {
		out[i] = newIntegrationResponse(&integrations[i])
	}
	c.JSON(http.StatusOK, dto.Success(out))
}

// Get GET /integrations/:id
func (h *IntegrationHandler) Get(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	integ, err := h.integrationRepo.FindInWorkspace(c.Request.Context(), workspaceID(c), id)
	if err != nil {
		respondError(c, h.logger, err, "Integration")
		return
	}
	c.JSON(http.StatusOK, dto.Success(newIntegrationResponse(integ)))
}

// Create POST /integrations
func (h *IntegrationHandler) Create(c *gin.Context) {
	var req CreateIntegrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	integ := &models.Integration{
		WorkspaceID: workspaceID(c),
		Type:        models.IntegrationType(req.Type),
		Name:        req.Name,
		IsActive:    true,
		Status:      models.IntegrationActive,
	}
	if req.IsActive != nil {
		integ.IsActive = *req.IsActive
	}
	integ.MergeConfig(req.Config)

	if err := h.integrationRepo.Create(c.Request.Context(), integ); err != nil {
		respondError(c, h.logger, err, "Integration")
		return
	}

	h.logger.Info("integration created",
		zap.String("request_id", middleware.GetRequestID(c)),
		zap.String("integration_id", integ.ID.String()),
		zap.String("type", string(integ.Type)),
	)
	c.JSON(http.StatusCreated, dto.Success(newIntegrationResponse(integ)))
}

// Update PUT /integrations/:id
// Saving new credentials clears a previous error.
func (h *IntegrationHandler) Update(c *gin.Context) {
	ctx := c.Request.Context()

	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req UpdateIntegrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	integ, err := h.integrationRepo.FindInWorkspace(ctx, workspaceID(c), id)
	if err != nil {
		respondError(c, h.logger, err, "Integration")
		return
	}

	if req.Name != nil {
		integ.Name = *req.Name
	}
	if req.IsActive != nil {
		integ.IsActive = *req.IsActive
	}
	if req.Config != nil {
		integ.MergeConfig(req.Config)
		integ.ClearError()
	}

	if err := h.integrationRepo.Update(ctx, integ); err != nil {
		respondError(c, h.logger, err, "Integration")
		return
	}
	c.JSON(http.StatusOK, dto.Success(newIntegrationResponse(integ)))
}

// Delete DELETE /integrations/:id
func (h *IntegrationHandler) Delete(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	if err := h.integrationRepo.Delete(c.Request.Context(), workspaceID(c), id); err != nil {
		respondError(c, h.logger, err, "Integration")
		return
	}
	c.JSON(http.StatusOK, dto.Success(gin.H{"message": "Integration deleted"}))
}

func (h *IntegrationHandler) RegisterRoutes(rg *gin.RouterGroup) {
	integrations := rg.Group("/integrations", middleware.RequireAdmin())
	{
		integrations.GET("", h.List)
		integrations.GET("/:id", h.Get)
		integrations.POST("", h.Create)
		integrations.PUT("/:id", h.Update)
		integrations.DELETE("/:id", h.Delete)
	}
}
