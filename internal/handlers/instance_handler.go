package handlers

import (
	"net/http"
	"strconv"

	"whatsdesk/internal/dto"
	"whatsdesk/internal/middleware"
	"whatsdesk/internal/models"
	"whatsdesk/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ===========================================================================
// Instance Handler
// WhatsApp lines of the workspace: CRUD, pairing QR and status refresh
// ===========================================================================

type InstanceHandler struct {
	service services.InstanceService
	logger  *zap.Logger
}

func NewInstanceHandler(service services.InstanceService, logger *zap.Logger) *InstanceHandler {
	return &InstanceHandler{service: service, logger: logger}
}

// ===========================================================================
// Request DTOs
// ===========================================================================

type CreateInstanceRequest struct {
	Name          string     `json:"name" binding:"required,max=255"`
	Provider      string     `json:"provider" binding:"required,oneof=evolution wapi apibrasil gupshup"`
	ExternalID    string     `json:"external_id" binding:"required,max=255"`
	APIToken      string     `json:"api_token"`
	APIBaseURL    string     `json:"api_base_url" binding:"omitempty,url"`
	WebhookSecret string     `json:"webhook_secret"`
	UseFlowEngine bool       `json:"use_flow_engine"`
	DepartmentID  *uuid.UUID `json:"department_id"`
}

// UpdateInstanceRequest a nil department_id keeps it, uuid.Nil clears it
type UpdateInstanceRequest struct {
	Name          *string    `json:"name" binding:"omitempty,max=255"`
	ExternalID    *string    `json:"external_id" binding:"omitempty,max=255"`
	APIToken      *string    `json:"api_token"`
	APIBaseURL    *string    `json:"api_base_url" binding:"omitempty,url"`
	WebhookSecret *string    `json:"webhook_secret"`
	UseFlowEngine *bool      `json:"use_flow_engine"`
	DepartmentID  *uuid.UUID `json:"department_id"`
}

// instanceResponse never exposes credentials, only whether they are set
type instanceResponse struct {
	*models.Instance
	HasAPIToken      bool `json:"has_api_token"`
	HasWebhookSecret bool `json:"has_webhook_secret"`
}

func newInstanceResponse(inst *models.Instance) instanceResponse {
	return instanceResponse{
		Instance:         inst,
		HasAPIToken:      inst.APIToken != "",
		HasWebhookSecret: inst.WebhookSecret != "",
	}
}

// ===========================================================================
// Handlers
// ===========================================================================

// List GET /instances
func (h *InstanceHandler) List(c *gin.Context) {
	instances, err := h.service.List(c.Request.Context(), workspaceID(c))
	if err != nil {
		respondError(c, h.logger, err, "Instance")
		return
	}

	out := make([]instanceResponse, len(instances))
	for i := range instances {
		out[i] = newInstanceResponse(&instances[i])
	}
	c.JSON(http.StatusOK, dto.Success(out))
}

// Get GET /instances/:id
func (h *InstanceHandler) Get(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	inst, err := h.service.Get(c.Request.Context(), workspaceID(c), id)
	if err != nil {
		respondError(c, h.logger, err, "Instance")
		return
	}
	c.JSON(http.StatusOK, dto.Success(newInstanceResponse(inst)))
}

// Create POST /instances
func (h *InstanceHandler) Create(c *gin.Context) {
	var req CreateInstanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	inst := &models.Instance{
		WorkspaceID:   workspaceID(c),
		Name:          req.Name,
		Provider:      models.ProviderType(req.Provider),
		ExternalID:    req.ExternalID,
		APIToken:      req.APIToken,
		APIBaseURL:    req.APIBaseURL,
		WebhookSecret: req.WebhookSecret,
		UseFlowEngine: req.UseFlowEngine,
		DepartmentID:  req.DepartmentID,
	}
	if err := h.service.Create(c.Request.Context(), inst); err != nil {
		respondError(c, h.logger, err, "Instance")
		return
	}

	h.logger.Info("instance created",
		zap.String("request_id", middleware.GetRequestID(c)),
		zap.String("instance_id", inst.ID.String()),
	)
	c.JSON(http.StatusCreated, dto.Success(newInstanceResponse(inst)))
}

// Update PUT /instances/:id
func (h *InstanceHandler) Update(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req UpdateInstanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	inst, err := h.service.Update(c.Request.Context(), workspaceID(c), id, services.InstanceUpdate{
		Name:          req.Name,
		ExternalID:    req.ExternalID,
		APIToken:      req.APIToken,
		APIBaseURL:    req.APIBaseURL,
		WebhookSecret: req.WebhookSecret,
		UseFlowEngine: req.UseFlowEngine,
		DepartmentID:  req.DepartmentID,
	})
	if err != nil {
		respondError(c, h.logger, err, "Instance")
		return
	}
	c.JSON(http.StatusOK, dto.Success(newInstanceResponse(inst)))
}

// Delete DELETE /instances/:id
func (h *InstanceHandler) Delete(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), workspaceID(c), id); err != nil {
		respondError(c, h.logger, err, "Instance")
		return
	}
	c.JSON(http.StatusOK, dto.Success(gin.H{"message": "Instance deleted"}))
}

// Connect POST /instances/:id/connect
func (h *InstanceHandler) Connect(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	inst, err := h.service.Connect(c.Request.Context(), workspaceID(c), id)
	if err != nil {
		respondError(c, h.logger, err, "Instance")
		return
	}
	c.JSON(http.StatusOK, dto.Success(newInstanceResponse(inst)))
}

// SyncStatus POST /instances/:id/sync-status
func (h *InstanceHandler) SyncStatus(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	inst, err := h.service.SyncStatus(c.Request.Context(), workspaceID(c), id)
	if err != nil {
		respondError(c, h.logger, err, "Instance")
		return
	}
	c.JSON(http.StatusOK, dto.Success(newInstanceResponse(inst)))
}

// QRCode GET /instances/:id/qr?size=256 renders the pairing payload as PNG
func (h *InstanceHandler) QRCode(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	size, _ := strconv.Atoi(c.Query("size"))

	png, err := h.service.QRCodePNG(c.Request.Context(), workspaceID(c), id, size)
	if err != nil {
		respondError(c, h.logger, err, "QR code")
		return
	}

	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", png)
}

// ===========================================================================
// Route Registration
// ===========================================================================

func (h *InstanceHandler) RegisterRoutes(rg *gin.RouterGroup) {
	instances := rg.Group("/instances")
	{
		instances.GET("", h.List)
		instances.GET("/:id", h.Get)
		instances.GET("/:id/qr", h.QRCode)
		instances.POST("/:id/connect", h.Connect)
		instances.POST("/:id/sync-status", h.SyncStatus)

		instances.POST("", middleware.RequireAdmin(), h.Create)
		instances.PUT("/:id", middleware.RequireAdmin(), h.Update)
		instances.DELETE("/:id", middleware.RequireAdmin(), h.Delete)
	}
}
