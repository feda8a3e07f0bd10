package handlers

import (
	"errors"
	"net/http"

	"whatsdesk/internal/bot"
	"whatsdesk/internal/dispatch"
	"whatsdesk/internal/dto"
	apperrors "whatsdesk/internal/errors"
	"whatsdesk/internal/middleware"
	"whatsdesk/internal/models"
	"whatsdesk/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ===========================================================================
// Function Handler
// Internal functions chained by the ingestion pipeline (ingest -> AI ->
// send) and callable by automations. Bodies are loose JSON maps because
// callers mix snake_case and camelCase; errors are the flat {error} body.
// ===========================================================================

type FunctionHandler struct {
	responder bot.Responder
	outbound  services.OutboundService
	knowledge services.KnowledgeService

	// crm nil when no Bitrix24 client is configured
	crm    services.CRMService
	logger *zap.Logger
}

func NewFunctionHandler(
	responder bot.Responder,
	outbound services.OutboundService,
	knowledge services.KnowledgeService,
	crm services.CRMService,
	logger *zap.Logger,
) *FunctionHandler {
	return &FunctionHandler{
		responder: responder,
		outbound:  outbound,
		knowledge: knowledge,
		crm:       crm,
		logger:    logger,
	}
}

// skippedResponse 200 body of a function that decided not to run
type skippedResponse struct {
	Skipped bool   `json:"skipped"`
	Reason  string `json:"reason,omitempty"`
}

// bindBody reads the loose JSON body, answering 400 when it is not an object
func bindBody(c *gin.Context) (map[string]interface{}, bool) {
	var body map[string]interface{}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, dto.FunctionError("invalid JSON body"))
		return nil, false
	}
	return body, true
}

// requireService functions other than send-message are not exposed to operators
func requireService(c *gin.Context) bool {
	if middleware.IsServiceCall(c) {
		return true
	}
	c.JSON(http.StatusUnauthorized, dto.FunctionError("service credential required"))
	return false
}

// ===========================================================================
// Handlers
// ===========================================================================

// AIProcessMessage POST /functions/ai-process-message {conversation_id, message_id}
func (h *FunctionHandler) AIProcessMessage(c *gin.Context) {
	if !requireService(c) {
		return
	}
	body, ok := bindBody(c)
	if !ok {
		return
	}

	req := bot.Request{
		ConversationID: dto.LookupUUID(body, "conversation_id", "conversationId"),
		MessageID:      dto.LookupUUID(body, "message_id", "messageId"),
	}
	if req.ConversationID == uuid.Nil || req.MessageID == uuid.Nil {
		c.JSON(http.StatusBadRequest, dto.FunctionError("conversation_id and message_id are required"))
		return
	}

	result, err := h.responder.Process(c.Request.Context(), req)
	if err != nil {
		respondFunctionError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// SendMessage POST /functions/send-message
// Operator calls are scoped to their workspace and default to source human.
func (h *FunctionHandler) SendMessage(c *gin.Context) {
	body, ok := bindBody(c)
	if !ok {
		return
	}

	params := dto.NormalizeSendParams(body)
	req := services.SendRequestFromParams(params)

	if !middleware.IsServiceCall(c) {
		req.WorkspaceID = workspaceID(c)
		if req.UserID == uuid.Nil {
			req.UserID, _ = middleware.GetUserID(c)
		}
		if params.Source == "" {
			req.Source = models.SourceHuman
		}
	}

	result, err := h.outbound.Send(c.Request.Context(), req)
	if err != nil {
		respondFunctionError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ProcessDocument POST /functions/process-document {document_id}
func (h *FunctionHandler) ProcessDocument(c *gin.Context) {
	if !requireService(c) {
		return
	}
	body, ok := bindBody(c)
	if !ok {
		return
	}

	documentID := dto.LookupUUID(body, "document_id", "documentId")
	if documentID == uuid.Nil {
		c.JSON(http.StatusBadRequest, dto.FunctionError("document_id is required"))
		return
	}

	doc, err := h.knowledge.Process(c.Request.Context(), documentID)
	if err != nil {
		respondFunctionError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"document_id": doc.ID,
		"status":      doc.Status,
		"chunk_count": doc.ChunkCount,
	})
}

// BitrixSync POST /functions/bitrix-sync {conversation_id, message_id}
func (h *FunctionHandler) BitrixSync(c *gin.Context) {
	if !requireService(c) {
		return
	}
	body, ok := bindBody(c)
	if !ok {
		return
	}

	conversationID := dto.LookupUUID(body, "conversation_id", "conversationId")
	messageID := dto.LookupUUID(body, "message_id", "messageId")
	if conversationID == uuid.Nil || messageID == uuid.Nil {
		c.JSON(http.StatusBadRequest, dto.FunctionError("conversation_id and message_id are required"))
		return
	}

	if h.crm == nil {
		c.JSON(http.StatusOK, skippedResponse{Skipped: true, Reason: "bitrix24 bridge is not configured"})
		return
	}

	result, err := h.crm.SyncMessage(c.Request.Context(), conversationID, messageID)
	if errors.Is(err, apperrors.ErrSkipped) {
		c.JSON(http.StatusOK, skippedResponse{Skipped: true, Reason: err.Error()})
		return
	}
	if err != nil {
		respondFunctionError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ===========================================================================
// Route Registration
// ===========================================================================

// RegisterRoutes mounts the functions behind serviceAuth (service key or operator token)
func (h *FunctionHandler) RegisterRoutes(rg *gin.RouterGroup, serviceAuth gin.HandlerFunc) {
	fn := rg.Group("/functions", serviceAuth)
	{
		fn.POST("/"+dispatch.FnAIProcessMessage, h.AIProcessMessage)
		fn.POST("/"+dispatch.FnSendMessage, h.SendMessage)
		fn.POST("/"+dispatch.FnProcessDocument, h.ProcessDocument)
		fn.POST("/"+dispatch.FnBitrixSync, h.BitrixSync)
	}
}
