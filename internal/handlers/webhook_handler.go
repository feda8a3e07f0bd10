package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"whatsdesk/internal/dto"
	apperrors "whatsdesk/internal/errors"
	"whatsdesk/internal/middleware"
	"whatsdesk/internal/models"
	"whatsdesk/internal/provider"
	"whatsdesk/internal/repositories"
	"whatsdesk/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ===========================================================================
// Webhook Handler
// Provider deliveries (Evolution, W-API, APIBrasil, Gupshup) and Bitrix24
// callbacks. Once the instance is resolved the provider always gets 200 so it
// never retries a delivery we already logged.
// ===========================================================================

const WebhookSecretHeader = "X-Webhook-Secret"

const maxWebhookBody = 5 << 20

type WebhookHandler struct {
	registry     *provider.Registry
	instanceRepo repositories.InstanceRepository
	eventRepo    repositories.WebhookEventRepository
	messages     services.MessageService
	outbound     services.OutboundService

	// crm nil when no Bitrix24 client is configured
	crm    services.CRMService
	logger *zap.Logger
}

func NewWebhookHandler(
	registry *provider.Registry,
	instanceRepo repositories.InstanceRepository,
	eventRepo repositories.WebhookEventRepository,
	messages services.MessageService,
	outbound services.OutboundService,
	crm services.CRMService,
	logger *zap.Logger,
) *WebhookHandler {
	return &WebhookHandler{
		registry:     registry,
		instanceRepo: instanceRepo,
		eventRepo:    eventRepo,
		messages:     messages,
		outbound:     outbound,
		crm:          crm,
		logger:       logger,
	}
}

// ===========================================================================
// WhatsApp providers
// ===========================================================================

// ProviderWebhook POST /webhook/{provider}?instance_id=
func (h *WebhookHandler) ProviderWebhook(p models.ProviderType) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := middleware.GetRequestID(c)
		ctx := c.Request.Context()

		raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
		if err != nil {
			c.JSON(http.StatusBadRequest, dto.FunctionError("cannot read body"))
			return
		}

		var payload map[string]interface{}
		parseErr := json.Unmarshal(raw, &payload)

		inst, err := h.resolveInstance(c, p, payload)
		if err != nil {
			h.logger.Warn("webhook instance not resolved",
				zap.String("request_id", requestID),
				zap.String("provider", string(p)),
				zap.Error(err),
			)
			respondFunctionError(c, h.logger, err)
			return
		}

		if !secretMatches(c, inst.WebhookSecret) {
			c.JSON(http.StatusUnauthorized, dto.FunctionError("invalid webhook secret"))
			return
		}

		event := &models.WebhookEvent{
			Provider:   string(p),
			InstanceID: &inst.ID,
			Payload:    storablePayload(raw, parseErr),
			Status:     models.WebhookStatusReceived,
		}
		if err := h.eventRepo.Create(ctx, event); err != nil {
			h.logger.Warn("webhook event log failed", zap.String("request_id", requestID), zap.Error(err))
		}

		h.process(c, p, inst, payload, parseErr, event)
		h.finish(c, event)

		c.JSON(http.StatusOK, dto.WebhookAck)
	}
}

func (h *WebhookHandler) process(c *gin.Context, p models.ProviderType, inst *models.Instance, payload map[string]interface{}, parseErr error, event *models.WebhookEvent) {
	requestID := middleware.GetRequestID(c)
	ctx := c.Request.Context()

	if parseErr != nil {
		event.MarkFailed(apperrors.Wrap(apperrors.ErrInvalidInput, "payload is not a JSON object"))
		return
	}

	prov, err := h.registry.Get(p)
	if err != nil {
		event.MarkFailed(err)
		h.logger.Error("provider not registered", zap.String("provider", string(p)))
		return
	}

	ev, err := prov.Normalize(ctx, payload)
	if err != nil {
		event.MarkFailed(err)
		h.logger.Warn("webhook normalize failed",
			zap.String("request_id", requestID),
			zap.String("instance_id", inst.ID.String()),
			zap.Error(err),
		)
		return
	}
	event.EventType = ev.RawType

	if ev.Kind == provider.EventIgnored {
		event.MarkIgnored(ev.Reason)
		return
	}

	result, err := h.messages.ProcessInbound(ctx, inst, ev)
	switch {
	case err != nil:
		event.MarkFailed(err)
		h.logger.Error("process inbound failed",
			zap.String("request_id", requestID),
			zap.String("instance_id", inst.ID.String()),
			zap.String("event", ev.RawType),
			zap.Error(err),
		)
	case result.Duplicate:
		event.MarkIgnored("duplicate")
	case result.Kind == provider.EventIgnored:
		event.MarkIgnored(result.Reason)
	default:
		event.MarkProcessed()
		h.logger.Info("webhook processed",
			zap.String("request_id", requestID),
			zap.String("instance_id", inst.ID.String()),
			zap.String("kind", string(result.Kind)),
			zap.String("message_id", result.MessageID.String()),
			zap.String("dispatch", string(result.Dispatch)),
		)
	}
}

func (h *WebhookHandler) finish(c *gin.Context, event *models.WebhookEvent) {
	if event.ID == uuid.Nil {
		return
	}
	if err := h.eventRepo.Update(c.Request.Context(), event); err != nil {
		h.logger.Warn("webhook event update failed",
			zap.String("request_id", middleware.GetRequestID(c)),
			zap.Error(err),
		)
	}
}

// resolveInstance ?instance_id= first; Evolution deliveries also name the
// instance in the body
func (h *WebhookHandler) resolveInstance(c *gin.Context, p models.ProviderType, payload map[string]interface{}) (*models.Instance, error) {
	ctx := c.Request.Context()

	var (
		inst *models.Instance
		err  error
	)
	if raw := c.Query("instance_id"); raw != "" {
		id, perr := uuid.Parse(raw)
		if perr != nil {
			return nil, apperrors.New(apperrors.ErrInvalidInput, "invalid instance_id")
		}
		inst, err = h.instanceRepo.FindByID(ctx, id)
	} else if name := dto.LookupString(payload, "instance", "instanceName"); p == models.ProviderEvolution && name != "" {
		inst, err = h.instanceRepo.FindByExternalID(ctx, p, name)
	} else {
		return nil, apperrors.New(apperrors.ErrInvalidInput, "instance_id is required")
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.New(apperrors.ErrNotFound, "instance not found")
	}
	if err != nil {
		return nil, err
	}
	if inst.Provider != p {
		return nil, apperrors.New(apperrors.ErrInvalidInput, "instance is not a "+string(p)+" instance")
	}
	return inst, nil
}

func secretMatches(c *gin.Context, secret string) bool {
	if secret == "" {
		return true
	}
	given := c.GetHeader(WebhookSecretHeader)
	if given == "" {
		given = c.Query("secret")
	}
	return subtle.ConstantTimeCompare([]byte(given), []byte(secret)) == 1
}

// storablePayload jsonb column needs valid JSON; unparseable bodies are kept as a string
func storablePayload(raw []byte, parseErr error) datatypes.JSON {
	if parseErr == nil {
		return datatypes.JSON(raw)
	}
	wrapped, err := json.Marshal(map[string]string{"raw": string(raw)})
	if err != nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(wrapped)
}

// ===========================================================================
// Bitrix24
// ===========================================================================

// BitrixWebhook POST /webhook/bitrix?integration_id=
// SMS-provider deliveries and Open Lines operator replies become WhatsApp sends
func (h *WebhookHandler) BitrixWebhook(c *gin.Context) {
	requestID := middleware.GetRequestID(c)
	ctx := c.Request.Context()

	if h.crm == nil {
		c.JSON(http.StatusNotFound, dto.FunctionError("bitrix24 bridge is not configured"))
		return
	}

	integrationID, err := uuid.Parse(c.Query("integration_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.FunctionError("integration_id is required"))
		return
	}
	if err := c.Request.ParseForm(); err != nil {
		c.JSON(http.StatusBadRequest, dto.FunctionError("invalid form body"))
		return
	}

	event := &models.WebhookEvent{
		Provider:  string(models.IntegrationBitrix24),
		EventType: c.Request.PostForm.Get("event"),
		Payload:   formPayload(c.Request.PostForm),
		Status:    models.WebhookStatusReceived,
	}
	if err := h.eventRepo.Create(ctx, event); err != nil {
		h.logger.Warn("webhook event log failed", zap.String("request_id", requestID), zap.Error(err))
	}

	cb, err := h.crm.ParseCallback(ctx, integrationID, c.Request.PostForm)
	if err != nil {
		if errors.Is(err, apperrors.ErrSkipped) {
			event.MarkIgnored(err.Error())
			h.finish(c, event)
			c.JSON(http.StatusOK, dto.WebhookAck)
			return
		}
		event.MarkFailed(err)
		h.finish(c, event)
		respondFunctionError(c, h.logger, err)
		return
	}
	event.InstanceID = &cb.InstanceID

	result, err := h.outbound.Send(ctx, &services.SendRequest{
		InstanceID: cb.InstanceID,
		Phone:      cb.Phone,
		Type:       models.TypeText,
		Text:       cb.Text,
		Source:     cb.Source,
	})
	if err != nil {
		event.MarkFailed(err)
		h.finish(c, event)
		h.logger.Error("bitrix callback send failed",
			zap.String("request_id", requestID),
			zap.String("integration_id", integrationID.String()),
			zap.Error(err),
		)
		respondFunctionError(c, h.logger, err)
		return
	}

	event.MarkProcessed()
	h.finish(c, event)
	c.JSON(http.StatusOK, gin.H{"status": "ok", "message_id": result.MessageID})
}

func formPayload(form map[string][]string) datatypes.JSON {
	flat := make(map[string]string, len(form))
	for k, v := range form {
		if len(v) > 0 {
			flat[k] = v[0]
		}
	}
	b, err := json.Marshal(flat)
	if err != nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(b)
}

// ===========================================================================
// Route Registration
// ===========================================================================

func (h *WebhookHandler) RegisterRoutes(rg *gin.RouterGroup) {
	webhook := rg.Group("/webhook")
	{
		webhook.POST("/evolution", h.ProviderWebhook(models.ProviderEvolution))
		webhook.POST("/wapi", h.ProviderWebhook(models.ProviderWAPI))
		webhook.POST("/apibrasil", h.ProviderWebhook(models.ProviderAPIBrasil))
		webhook.POST("/gupshup", h.ProviderWebhook(models.ProviderGupshup))

		webhook.POST("/bitrix", h.BitrixWebhook)
	}
}
