package handlers

import (
	"net/http"

	"whatsdesk/internal/bot"
	"whatsdesk/internal/dto"
	"whatsdesk/internal/middleware"
	"whatsdesk/internal/models"
	"whatsdesk/internal/repositories"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ===========================================================================
// Persona Handler
// CRUD for AI personas, default selection and the prompt playground
// ===========================================================================

type PersonaHandler struct {
	personaRepo repositories.PersonaRepository
	responder   bot.Responder
	logger      *zap.Logger
}

func NewPersonaHandler(personaRepo repositories.PersonaRepository, responder bot.Responder, logger *zap.Logger) *PersonaHandler {
	return &PersonaHandler{
		personaRepo: personaRepo,
		responder:   responder,
		logger:      logger,
	}
}

// ===========================================================================
// Request/Response DTOs
// ===========================================================================

type CreatePersonaRequest struct {
	Name          string   `json:"name" binding:"required,min=1,max=255"`
	SystemPrompt  string   `json:"system_prompt"`
	Model         string   `json:"model" binding:"max=100"`
	Temperature   *float64 `json:"temperature" binding:"omitempty,min=0,max=2"`
	MaxTokens     *int     `json:"max_tokens" binding:"omitempty,min=1,max=32000"`
	VoiceEnabled  bool     `json:"voice_enabled"`
	VoiceID       string   `json:"voice_id"`
	IsDefault     bool     `json:"is_default"`
	CRMBotEnabled bool     `json:"crm_bot_enabled"`
}

type UpdatePersonaRequest struct {
	Name          *string  `json:"name" binding:"omitempty,min=1,max=255"`
	SystemPrompt  *string  `json:"system_prompt"`
	Model         *string  `json:"model" binding:"omitempty,max=100"`
	Temperature   *float64 `json:"temperature" binding:"omitempty,min=0,max=2"`
	MaxTokens     *int     `json:"max_tokens" binding:"omitempty,min=1,max=32000"`
	VoiceEnabled  *bool    `json:"voice_enabled"`
	VoiceID       *string  `json:"voice_id"`
	CRMBotEnabled *bool    `json:"crm_bot_enabled"`
}

type PlaygroundRequest struct {
	Message string `json:"message" binding:"required,min=1,max=4096"`
}

// ===========================================================================
// Handlers
// ===========================================================================

// List GET /personas
func (h *PersonaHandler) List(c *gin.Context) {
	personas, err := h.personaRepo.ListByWorkspace(c.Request.Context(), workspaceID(c))
	if err != nil {
		respondError(c, h.logger, err, "Persona")
		return
	}

	c.JSON(http.StatusOK, dto.Success(gin.H{
		"personas": personas,
		"total":    len(personas),
	}))
}

// Get GET /personas/:id
func (h *PersonaHandler) Get(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	persona, err := h.personaRepo.FindInWorkspace(c.Request.Context(), workspaceID(c), id)
	if err != nil {
		respondError(c, h.logger, err, "Persona")
		return
	}

	c.JSON(http.StatusOK, dto.Success(persona))
}

// Create POST /personas
func (h *PersonaHandler) Create(c *gin.Context) {
	requestID := middleware.GetRequestID(c)
	ctx := c.Request.Context()

	var req CreatePersonaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	persona := &models.Persona{
		WorkspaceID:   workspaceID(c),
		Name:          req.Name,
		SystemPrompt:  req.SystemPrompt,
		Model:         req.Model,
		Temperature:   0.7,
		MaxTokens:     1024,
		VoiceEnabled:  req.VoiceEnabled,
		VoiceID:       req.VoiceID,
		CRMBotEnabled: req.CRMBotEnabled,
	}
	if req.Temperature != nil {
		persona.Temperature = *req.Temperature
	}
	if req.MaxTokens != nil {
		persona.MaxTokens = *req.MaxTokens
	}

	if err := h.personaRepo.Create(ctx, persona); err != nil {
		respondError(c, h.logger, err, "Persona")
		return
	}

	if req.IsDefault {
		if err := h.personaRepo.SetDefault(ctx, persona.WorkspaceID, persona.ID); err != nil {
			respondError(c, h.logger, err, "Persona")
			return
		}
		persona.IsDefault = true
	}

	h.logger.Info("persona created",
		zap.String("request_id", requestID),
		zap.String("persona_id", persona.ID.String()),
		zap.String("name", persona.Name),
	)

	c.JSON(http.StatusCreated, dto.Success(persona))
}

// Update PUT /personas/:id
func (h *PersonaHandler) Update(c *gin.Context) {
	ctx := c.Request.Context()

	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req UpdatePersonaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	persona, err := h.personaRepo.FindInWorkspace(ctx, workspaceID(c), id)
	if err != nil {
		respondError(c, h.logger, err, "Persona")
		return
	}

	if req.Name != nil {
		persona.Name = *req.Name
	}
	if req.SystemPrompt != nil {
		persona.SystemPrompt = *req.SystemPrompt
	}
	if req.Model != nil {
		persona.Model = *req.Model
	}
	if req.Temperature != nil {
		persona.Temperature = *req.Temperature
	}
	if req.MaxTokens != nil {
		persona.MaxTokens = *req.MaxTokens
	}
	if req.VoiceEnabled != nil {
		persona.VoiceEnabled = *req.VoiceEnabled
	}
	if req.VoiceID != nil {
		persona.VoiceID = *req.VoiceID
	}
	if req.CRMBotEnabled != nil {
		persona.CRMBotEnabled = *req.CRMBotEnabled
	}

	if err := h.personaRepo.Update(ctx, persona); err != nil {
		respondError(c, h.logger, err, "Persona")
		return
	}

	c.JSON(http.StatusOK, dto.Success(persona))
}

// Delete DELETE /personas/:id (soft delete)
func (h *PersonaHandler) Delete(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	if err := h.personaRepo.Delete(c.Request.Context(), workspaceID(c), id); err != nil {
		respondError(c, h.logger, err, "Persona")
		return
	}

	h.logger.Info("persona deleted",
		zap.String("request_id", middleware.GetRequestID(c)),
		zap.String("persona_id", id.String()),
	)

	c.JSON(http.StatusOK, dto.Success(gin.H{"message": "Persona deleted"}))
}

// SetDefault POST /personas/:id/default
func (h *PersonaHandler) SetDefault(c *gin.Context) {
	ctx := c.Request.Context()

	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	persona, err := h.personaRepo.FindInWorkspace(ctx, workspaceID(c), id)
	if err != nil {
		respondError(c, h.logger, err, "Persona")
		return
	}
	if err := h.personaRepo.SetDefault(ctx, persona.WorkspaceID, persona.ID); err != nil {
		respondError(c, h.logger, err, "Persona")
		return
	}
	persona.IsDefault = true

	c.JSON(http.StatusOK, dto.Success(persona))
}

// Playground POST /personas/:id/playground
// Answers message with the persona and the knowledge base; nothing is sent
// or stored.
func (h *PersonaHandler) Playground(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req PlaygroundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	result, err := h.responder.Playground(c.Request.Context(), workspaceID(c), id, req.Message)
	if err != nil {
		respondError(c, h.logger, err, "Persona")
		return
	}

	c.JSON(http.StatusOK, dto.Success(result))
}

// ===========================================================================
// Route Registration
// ===========================================================================

func (h *PersonaHandler) RegisterRoutes(rg *gin.RouterGroup, playgroundLimiter gin.HandlerFunc) {
	personas := rg.Group("/personas")
	{
		personas.GET("", h.List)
		personas.GET("/:id", h.Get)
		personas.POST("", middleware.RequireAdmin(), h.Create)
		personas.PUT("/:id", middleware.RequireAdmin(), h.Update)
		personas.DELETE("/:id", middleware.RequireAdmin(), h.Delete)
		personas.POST("/:id/default", middleware.RequireAdmin(), h.SetDefault)
		personas.POST("/:id/playground", playgroundLimiter, h.Playground)
	}
}
