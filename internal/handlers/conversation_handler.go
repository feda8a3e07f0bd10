package handlers

import (
	"net/http"
	"time"

	"whatsdesk/internal/dto"
	"whatsdesk/internal/middleware"
	"whatsdesk/internal/models"
	"whatsdesk/internal/realtime"
	"whatsdesk/internal/repositories"
	"whatsdesk/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ===========================================================================
// Conversation Handler
// Inbox API: conversations, their messages and operator replies
// ===========================================================================

type ConversationHandler struct {
	conversationRepo repositories.ConversationRepository
	messageRepo      repositories.MessageRepository
	outbound         services.OutboundService
	publisher        realtime.Publisher
	now              func() time.Time
	logger           *zap.Logger
}

func NewConversationHandler(
	conversationRepo repositories.ConversationRepository,
	messageRepo repositories.MessageRepository,
	outbound services.OutboundService,
	publisher realtime.Publisher,
	logger *zap.Logger,
) *ConversationHandler {
	return &ConversationHandler{
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
		outbound:         outbound,
		publisher:        publisher,
		now:              time.Now,
		logger:           logger,
	}
}

// ===========================================================================
// Request DTOs
// ===========================================================================

type ListConversationsQuery struct {
	Status         string `form:"status" binding:"omitempty,oneof=open closed"`
	AttendanceMode string `form:"attendance_mode" binding:"omitempty,oneof=ai human"`
	InstanceID     string `form:"instance_id"`
	AssignedTo     string `form:"assigned_to"`
	DepartmentID   string `form:"department_id"`
}

// UpdateConversationBody nil fields are left untouched; an empty
// department_id or assigned_to clears it
type UpdateConversationBody struct {
	AttendanceMode *string `json:"attendance_mode" binding:"omitempty,oneof=ai human"`
	Status         *string `json:"status" binding:"omitempty,oneof=open closed"`
	DepartmentID   *string `json:"department_id"`
	AssignedTo     *string `json:"assigned_to"`
}

type SendMessageBody struct {
	Content  string `json:"content" binding:"max=4096"`
	Type     string `json:"type" binding:"omitempty,oneof=text image audio video document"`
	MediaURL string `json:"media_url"`
	MimeType string `json:"mime_type"`
	FileName string `json:"file_name"`
	Caption  string `json:"caption"`
}

// ===========================================================================
// Handlers
// ===========================================================================

// List GET /conversations?status=open&attendance_mode=ai&instance_id=&page=1&limit=20
func (h *ConversationHandler) List(c *gin.Context) {
	var query ListConversationsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		badRequest(c, err.Error())
		return
	}

	page := pagination(c, 20)
	opts := repositories.FindOptions{
		Offset:   page.Offset(),
		Limit:    page.Limit,
		OrderBy:  "last_message_at",
		OrderDir: "desc",
		Filters:  make(map[string]interface{}),
	}
	if query.Status != "" {
		opts.Filters["status"] = query.Status
	}
	if query.AttendanceMode != "" {
		opts.Filters["attendance_mode"] = query.AttendanceMode
	}
	for key, raw := range map[string]string{
		"instance_id":   query.InstanceID,
		"assigned_to":   query.AssignedTo,
		"department_id": query.DepartmentID,
	} {
		id, ok := optionalUUID(raw)
		if !ok {
			badRequest(c, "invalid "+key)
			return
		}
		if id != nil {
			opts.Filters[key] = *id
		}
	}

	conversations, total, err := h.conversationRepo.FindByWorkspace(c.Request.Context(), workspaceID(c), opts)
	if err != nil {
		respondError(c, h.logger, err, "Conversation")
		return
	}

	c.JSON(http.StatusOK, dto.SuccessWithMeta(conversations, dto.NewMeta(page.Page, page.Limit, total)))
}

// Get GET /conversations/:id
func (h *ConversationHandler) Get(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	conv, err := h.conversationRepo.FindInWorkspace(c.Request.Context(), workspaceID(c), id)
	if err != nil {
		respondError(c, h.logger, err, "Conversation")
		return
	}

	c.JSON(http.StatusOK, dto.Success(conv))
}

// Update PATCH /conversations/:id
// Switching attendance_mode back to ai re-enables automatic answers for the
// next inbound message.
func (h *ConversationHandler) Update(c *gin.Context) {
	requestID := middleware.GetRequestID(c)
	ctx := c.Request.Context()

	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	var body UpdateConversationBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}

	conv, err := h.conversationRepo.FindInWorkspace(ctx, workspaceID(c), id)
	if err != nil {
		respondError(c, h.logger, err, "Conversation")
		return
	}

	fields := make(map[string]interface{})
	if body.AttendanceMode != nil {
		fields["attendance_mode"] = models.AttendanceMode(*body.AttendanceMode)
	}
	if body.Status != nil {
		status := models.ConversationStatus(*body.Status)
		fields["status"] = status
		if status == models.StatusClosed && conv.IsOpen() {
			fields["closed_at"] = h.now()
		}
		if status == models.StatusOpen {
			fields["closed_at"] = nil
		}
	}
	if body.DepartmentID != nil {
		deptID, ok := optionalUUID(*body.DepartmentID)
		if !ok {
			badRequest(c, "invalid department_id")
			return
		}
		fields["department_id"] = deptID
	}
	if body.AssignedTo != nil {
		userID, ok := optionalUUID(*body.AssignedTo)
		if !ok {
			badRequest(c, "invalid assigned_to")
			return
		}
		fields["assigned_to"] = userID
	}
	if len(fields) == 0 {
		badRequest(c, "nothing to update")
		return
	}

	if err := h.conversationRepo.UpdateFields(ctx, id, fields); err != nil {
		respondError(c, h.logger, err, "Conversation")
		return
	}

	updated, err := h.conversationRepo.FindInWorkspace(ctx, workspaceID(c), id)
	if err != nil {
		respondError(c, h.logger, err, "Conversation")
		return
	}

	h.publishUpdate(c, updated)

	h.logger.Info("conversation updated",
		zap.String("request_id", requestID),
		zap.String("conversation_id", id.String()),
		zap.String("attendance_mode", string(updated.AttendanceMode)),
		zap.String("status", string(updated.Status)),
	)

	c.JSON(http.StatusOK, dto.Success(updated))
}

// MarkRead POST /conversations/:id/read
func (h *ConversationHandler) MarkRead(c *gin.Context) {
	ctx := c.Request.Context()

	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	conv, err := h.conversationRepo.FindInWorkspace(ctx, workspaceID(c), id)
	if err != nil {
		respondError(c, h.logger, err, "Conversation")
		return
	}
	if err := h.conversationRepo.MarkRead(ctx, id); err != nil {
		respondError(c, h.logger, err, "Conversation")
		return
	}
	conv.UnreadCount = 0
	h.publishUpdate(c, conv)

	c.JSON(http.StatusOK, dto.Success(gin.H{"unread_count": 0}))
}

// ListMessages GET /conversations/:id/messages, oldest first
func (h *ConversationHandler) ListMessages(c *gin.Context) {
	ctx := c.Request.Context()

	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	if _, err := h.conversationRepo.FindInWorkspace(ctx, workspaceID(c), id); err != nil {
		respondError(c, h.logger, err, "Conversation")
		return
	}

	page := pagination(c, 50)
	opts := repositories.FindOptions{
		Offset:   page.Offset(),
		Limit:    page.Limit,
		OrderBy:  "created_at",
		OrderDir: "asc",
	}

	messages, total, err := h.messageRepo.FindByConversation(ctx, id, opts)
	if err != nil {
		respondError(c, h.logger, err, "Message")
		return
	}

	c.JSON(http.StatusOK, dto.SuccessWithMeta(messages, dto.NewMeta(page.Page, page.Limit, total)))
}

// SendMessage POST /conversations/:id/messages
// An operator reply takes the conversation over from the AI.
func (h *ConversationHandler) SendMessage(c *gin.Context) {
	requestID := middleware.GetRequestID(c)
	ctx := c.Request.Context()

	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	var body SendMessageBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}

	conv, err := h.conversationRepo.FindInWorkspace(ctx, workspaceID(c), id)
	if err != nil {
		respondError(c, h.logger, err, "Conversation")
		return
	}

	userID, _ := middleware.GetUserID(c)
	msgType := models.TypeText
	if body.Type != "" {
		msgType = models.ParseMessageType(body.Type)
	} else if body.MediaURL != "" {
		msgType = models.TypeDocument
	}

	result, err := h.outbound.Send(ctx, &services.SendRequest{
		WorkspaceID:    conv.WorkspaceID,
		InstanceID:     conv.InstanceID,
		ConversationID: conv.ID,
		UserID:         userID,
		Type:           msgType,
		Text:           body.Content,
		MediaURL:       body.MediaURL,
		MimeType:       body.MimeType,
		FileName:       body.FileName,
		Caption:        body.Caption,
		Source:         models.SourceHuman,
	})
	if err != nil {
		respondError(c, h.logger, err, "Message")
		return
	}

	h.logger.Info("operator message sent",
		zap.String("request_id", requestID),
		zap.String("conversation_id", result.ConversationID.String()),
		zap.String("message_id", result.MessageID.String()),
		zap.Bool("takeover", result.Takeover),
	)

	c.JSON(http.StatusCreated, dto.Success(result))
}

func (h *ConversationHandler) publishUpdate(c *gin.Context, conv *models.Conversation) {
	event := &realtime.ConversationEvent{
		Type:           realtime.EventConversationUpdate,
		ConversationID: conv.ID,
		Status:         string(conv.Status),
		AttendanceMode: string(conv.AttendanceMode),
		UnreadCount:    conv.UnreadCount,
	}
	if conv.AssignedTo != nil {
		event.AssignedTo = conv.AssignedTo.String()
	}
	if err := h.publisher.PublishConversationUpdate(c.Request.Context(), conv.WorkspaceID, event); err != nil {
		h.logger.Warn("publish conversation update failed",
			zap.String("conversation_id", conv.ID.String()),
			zap.Error(err),
		)
	}
}

// ===========================================================================
// Route Registration
// ===========================================================================

func (h *ConversationHandler) RegisterRoutes(rg *gin.RouterGroup) {
	conversations := rg.Group("/conversations")
	{
		conversations.GET("", h.List)
		conversations.GET("/:id", h.Get)
		conversations.PATCH("/:id", h.Update)
		conversations.POST("/:id/read", h.MarkRead)
		conversations.GET("/:id/messages", h.ListMessages)
		conversations.POST("/:id/messages", h.SendMessage)
	}
}
