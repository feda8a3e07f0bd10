package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"whatsdesk/internal/config"
	"whatsdesk/internal/crm/bitrix"
	apperrors "whatsdesk/internal/errors"
	"whatsdesk/internal/models"
	"whatsdesk/internal/phone"
	"whatsdesk/internal/repositories"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ===========================================================================
// CRM Service Implementation
// ===========================================================================

const eventOpenLinesMessage = "ONIMCONNECTORMESSAGEADD"

type crmService struct {
	conversationRepo repositories.ConversationRepository
	messageRepo      repositories.MessageRepository
	contactRepo      repositories.ContactRepository
	integrationRepo  repositories.IntegrationRepository
	api              BitrixAPI
	leads            *cache.Cache
	refreshBuffer    time.Duration
	now              func() time.Time
	logger           *zap.Logger
}

func NewCRMService(
	conversationRepo repositories.ConversationRepository,
	messageRepo repositories.MessageRepository,
	contactRepo repositories.ContactRepository,
	integrationRepo repositories.IntegrationRepository,
	api BitrixAPI,
	cfg config.BitrixConfig,
	logger *zap.Logger,
) CRMService {
	ttl := cfg.LeadCacheTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &crmService{
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
		contactRepo:      contactRepo,
		integrationRepo:  integrationRepo,
		api:              api,
		leads:            cache.New(ttl, 2*ttl),
		refreshBuffer:    cfg.RefreshBuffer,
		now:              time.Now,
		logger:           logger.Named("crm"),
	}
}

func (s *crmService) SyncMessage(ctx context.Context, conversationID, messageID uuid.UUID) (*CRMSyncResult, error) {
	conv, err := s.conversationRepo.FindByID(ctx, conversationID)
	if err != nil {
		return nil, notFound(err, "Conversation")
	}
	if conv.Contact == nil {
		return nil, fmt.Errorf("conversation %s has no contact loaded: %w", conv.ID, apperrors.ErrInternal)
	}

	msg, err := s.messageRepo.FindByID(ctx, messageID)
	if err != nil {
		return nil, notFound(err, "Message")
	}
	if msg.ConversationID != conv.ID {
		return nil, apperrors.New(apperrors.ErrInvalidInput, "message does not belong to the conversation")
	}

	integ, err := s.integrationRepo.FindActiveByType(ctx, conv.WorkspaceID, models.IntegrationBitrix24)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Wrap(apperrors.ErrSkipped, "no active bitrix24 integration")
		}
		return nil, fmt.Errorf("find bitrix24 integration: %w", err)
	}

	creds, err := s.credentials(ctx, integ)
	if err != nil {
		return nil, err
	}

	result := &CRMSyncResult{IntegrationID: integ.ID}

	result.LeadID, result.LeadCreated, err = s.ensureLead(ctx, integ, creds, conv.Contact)
	if err != nil {
		return nil, s.recordFailure(ctx, integ, err)
	}

	subject := "WhatsApp message to " + conv.Contact.DisplayName()
	if msg.IsIncoming() {
		subject = "WhatsApp message from " + conv.Contact.DisplayName()
	}
	result.ActivityID, err = s.api.AddActivity(ctx, creds, bitrix.Activity{
		LeadID:        result.LeadID,
		Phone:         conv.Contact.Phone,
		Subject:       subject,
		Description:   msg.Preview(),
		Incoming:      msg.IsIncoming(),
		ResponsibleID: creds.ResponsibleID,
	})
	if err != nil {
		return nil, s.recordFailure(ctx, integ, err)
	}

	// operators answer in Open Lines, so only the customer side is forwarded there
	if msg.IsIncoming() && creds.OpenLinesEnabled() {
		err = s.api.SendToOpenLine(ctx, creds, bitrix.OpenLineMessage{
			Phone:     conv.Contact.Phone,
			UserName:  conv.Contact.DisplayName(),
			MessageID: msg.ID.String(),
			Text:      msg.Preview(),
			SentAt:    msg.SentAt,
		})
		if err != nil {
			return nil, s.recordFailure(ctx, integ, err)
		}
		result.OpenLine = true
	}

	if integ.Status == models.IntegrationError {
		integ.ClearError()
		if err := s.integrationRepo.SaveState(ctx, integ); err != nil {
			s.logger.Warn("failed to clear integration error", zap.String("integration_id", integ.ID.String()), zap.Error(err))
		}
	}

	s.logger.Info("message synced to bitrix24",
		zap.String("integration_id", integ.ID.String()),
		zap.String("message_id", msg.ID.String()),
		zap.String("lead_id", result.LeadID),
		zap.Bool("open_line", result.OpenLine),
	)
	return result, nil
}

// credentials decodes the config and runs the token pre-check: inside the
// buffer before expiry exactly one refresh is attempted
func (s *crmService) credentials(ctx context.Context, integ *models.Integration) (bitrix.Credentials, error) {
	var creds bitrix.Credentials
	if err := integ.DecodeConfig(&creds); err != nil {
		return creds, fmt.Errorf("%w: bitrix24 config: %v", apperrors.ErrInvalidInput, err)
	}
	if !creds.NeedsRefresh(s.now(), s.refreshBuffer) {
		return creds, nil
	}

	fresh, err := s.api.Refresh(ctx, creds)
	if err != nil {
		integ.MarkError(err, s.now())
		if saveErr := s.integrationRepo.SaveState(ctx, integ); saveErr != nil {
			s.logger.Error("failed to record refresh failure", zap.String("integration_id", integ.ID.String()), zap.Error(saveErr))
		}
		s.logger.Warn("bitrix24 token refresh failed", zap.String("integration_id", integ.ID.String()), zap.Error(err))
		return creds, fmt.Errorf("%w: bitrix24 token refresh failed: %v", apperrors.ErrUnauthorized, err)
	}

	if integ.Config == nil {
		integ.Config = datatypes.JSONMap{}
	}
	fresh.WriteTokens(integ.Config)
	integ.ClearError()
	if err := s.integrationRepo.SaveState(ctx, integ); err != nil {
		// the portal already rotated the refresh token; losing it means a reconnect
		s.logger.Error("failed to store refreshed bitrix24 tokens", zap.String("integration_id", integ.ID.String()), zap.Error(err))
	}

	s.logger.Info("bitrix24 token refreshed", zap.String("integration_id", integ.ID.String()))
	return *fresh, nil
}

// ensureLead metadata, then cache, then portal search, then creation
func (s *crmService) ensureLead(ctx context.Context, integ *models.Integration, creds bitrix.Credentials, contact *models.Contact) (string, bool, error) {
	if id := contact.MetaString(models.ContactMetaBitrixLeadID); id != "" {
		return id, false, nil
	}

	key := integ.ID.String() + ":" + contact.Phone
	if v, ok := s.leads.Get(key); ok {
		return v.(string), false, nil
	}

	id, err := s.api.FindLeadByPhone(ctx, creds, contact.Phone)
	if err != nil {
		return "", false, err
	}
	created := false
	if id == "" {
		id, err = s.api.AddLead(ctx, creds, bitrix.Lead{
			Title:         "WhatsApp: " + contact.DisplayName(),
			Name:          contact.DisplayName(),
			Phone:         contact.Phone,
			ResponsibleID: creds.ResponsibleID,
		})
		if err != nil {
			return "", false, err
		}
		created = true
	}

	s.leads.SetDefault(key, id)
	if err := s.contactRepo.SetMetadata(ctx, contact.ID, models.ContactMetaBitrixLeadID, id); err != nil {
		s.logger.Warn("failed to store lead id on contact", zap.String("contact_id", contact.ID.String()), zap.Error(err))
	}
	return id, created, nil
}

func (s *crmService) recordFailure(ctx context.Context, integ *models.Integration, err error) error {
	if errors.Is(err, apperrors.ErrSkipped) {
		return err
	}
	integ.MarkError(err, s.now())
	if saveErr := s.integrationRepo.SaveState(ctx, integ); saveErr != nil {
		s.logger.Error("failed to record integration error", zap.String("integration_id", integ.ID.String()), zap.Error(saveErr))
	}
	return err
}

// ===========================================================================
// Callbacks
// ===========================================================================

func (s *crmService) ParseCallback(ctx context.Context, integrationID uuid.UUID, form url.Values) (*CRMCallback, error) {
	integ, err := s.integrationRepo.FindByID(ctx, integrationID)
	if err != nil {
		return nil, notFound(err, "Integration")
	}
	if integ.Type != models.IntegrationBitrix24 || !integ.IsActive {
		return nil, apperrors.New(apperrors.ErrNotFound, "Integration not found")
	}

	var creds bitrix.Credentials
	if err := integ.DecodeConfig(&creds); err != nil {
		return nil, fmt.Errorf("%w: bitrix24 config: %v", apperrors.ErrInvalidInput, err)
	}

	token := form.Get("auth[application_token]")
	if creds.ApplicationToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(creds.ApplicationToken)) != 1 {
		return nil, apperrors.New(apperrors.ErrUnauthorized, "invalid application token")
	}

	instanceID, err := uuid.Parse(creds.InstanceID)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrInvalidInput, "bitrix24 integration has no instance_id")
	}

	cb := &CRMCallback{IntegrationID: integ.ID, InstanceID: instanceID}

	if form.Get("event") == eventOpenLinesMessage {
		cb.Source = models.SourceHuman
		cb.Phone = form.Get("data[MESSAGES][0][chat][id]")
		cb.Text = form.Get("data[MESSAGES][0][message][text]")
		cb.ExternalID = form.Get("data[MESSAGES][0][im][message_id]")
	} else {
		cb.Source = models.SourceCRM
		cb.Phone = form.Get("message_to")
		cb.Text = form.Get("message_body")
		cb.ExternalID = form.Get("message_id")
	}

	cb.Phone = phone.Normalize(cb.Phone)
	cb.Text = strings.TrimSpace(strings.ReplaceAll(cb.Text, "[br]", "\n"))
	if cb.Phone == "" || cb.Text == "" {
		return nil, apperrors.New(apperrors.ErrInvalidInput, "callback has no recipient or text")
	}
	return cb, nil
}
