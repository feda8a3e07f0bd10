package handlers

import (
	"net/http"

	"whatsdesk/internal/dto"
	"whatsdesk/internal/middleware"
	"whatsdesk/internal/provider"
	"whatsdesk/internal/repositories"
	"whatsdesk/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ===========================================================================
// Mock Handler
// Development only: feeds a hand written inbound message through the real
// ingestion pipeline without a provider account. Mounted outside production.
// ===========================================================================

type MockHandler struct {
	instanceRepo repositories.InstanceRepository
	messages     services.MessageService
	normalizer   provider.Normalizer
	logger       *zap.Logger
}

func NewMockHandler(instanceRepo repositories.InstanceRepository, messages services.MessageService, logger *zap.Logger) *MockHandler {
	return &MockHandler{
		instanceRepo: instanceRepo,
		messages:     messages,
		normalizer:   provider.NewMockProvider("mock", logger),
		logger:       logger,
	}
}

// MockInboundRequest simulates a customer writing to one of the workspace's instances
type MockInboundRequest struct {
	InstanceID uuid.UUID `json:"instance_id" binding:"required"`
	Phone      string    `json:"phone" binding:"required"`
	PushName   string    `json:"push_name"`
	Message    string    `json:"message" binding:"required"`

	// MessageID provider id, generated when empty; reuse one to exercise duplicate handling
	MessageID string `json:"message_id"`
	Type      string `json:"type"`
	FromMe    bool   `json:"from_me"`
}

// SimulateInbound POST /dev/simulate/inbound
func (h *MockHandler) SimulateInbound(c *gin.Context) {
	requestID := middleware.GetRequestID(c)
	ctx := c.Request.Context()

	var req MockInboundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	inst, err := h.instanceRepo.FindInWorkspace(ctx, workspaceID(c), req.InstanceID)
	if err != nil {
		respondError(c, h.logger, err, "Instance")
		return
	}

	ev, err := h.normalizer.Normalize(ctx, map[string]interface{}{
		"phone":      req.Phone,
		"push_name":  req.PushName,
		"message":    req.Message,
		"message_id": req.MessageID,
		"type":       req.Type,
		"from_me":    req.FromMe,
	})
	if err != nil {
		respondError(c, h.logger, err, "Message")
		return
	}

	result, err := h.messages.ProcessInbound(ctx, inst, ev)
	if err != nil {
		respondError(c, h.logger, err, "Message")
		return
	}

	h.logger.Info("simulated inbound processed",
		zap.String("request_id", requestID),
		zap.String("instance_id", inst.ID.String()),
		zap.String("message_id", result.MessageID.String()),
		zap.Bool("duplicate", result.Duplicate),
		zap.String("dispatch", string(result.Dispatch)),
	)

	c.JSON(http.StatusOK, dto.Success(result))
}

func (h *MockHandler) RegisterRoutes(rg *gin.RouterGroup) {
	dev := rg.Group("/dev")
	{
		dev.POST("/simulate/inbound", h.SimulateInbound)
	}
}
