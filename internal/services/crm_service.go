package services

import (
	"context"
	"net/url"

	"whatsdesk/internal/crm/bitrix"
	"whatsdesk/internal/models"

	"github.com/google/uuid"
)

// ===========================================================================
// CRM Service Interface
// Bitrix24 bridge: mirrors WhatsApp messages into leads, activities and the
// Open Lines chat, and turns Bitrix24 callbacks into WhatsApp sends
// ===========================================================================

// BitrixAPI subset of the Bitrix24 REST client used by the bridge
type BitrixAPI interface {
	Refresh(ctx context.Context, creds bitrix.Credentials) (*bitrix.Credentials, error)
	FindLeadByPhone(ctx context.Context, creds bitrix.Credentials, phone string) (string, error)
	AddLead(ctx context.Context, creds bitrix.Credentials, lead bitrix.Lead) (string, error)
	AddActivity(ctx context.Context, creds bitrix.Credentials, a bitrix.Activity) (string, error)
	SendToOpenLine(ctx context.Context, creds bitrix.Credentials, m bitrix.OpenLineMessage) error
}

// CRMSyncResult what one sync wrote into the portal
type CRMSyncResult struct {
	IntegrationID uuid.UUID `json:"integration_id"`
	LeadID        string    `json:"lead_id"`
	LeadCreated   bool      `json:"lead_created"`
	ActivityID    string    `json:"activity_id,omitempty"`
	OpenLine      bool      `json:"open_line"`
}

// CRMCallback a Bitrix24 callback reduced to the WhatsApp send it asks for
type CRMCallback struct {
	IntegrationID uuid.UUID
	InstanceID    uuid.UUID
	Phone         string
	Text          string

	// Source crm for SMS-provider deliveries, human for Open Lines operator replies
	Source models.MessageSource

	// ExternalID Bitrix24 side message id, if any
	ExternalID string
}

type CRMService interface {
	// SyncMessage mirrors one stored message. ErrSkipped when the workspace
	// has no active bitrix24 integration.
	SyncMessage(ctx context.Context, conversationID, messageID uuid.UUID) (*CRMSyncResult, error)

	// ParseCallback authenticates a form-encoded callback against the
	// integration's application token
	ParseCallback(ctx context.Context, integrationID uuid.UUID, form url.Values) (*CRMCallback, error)
}
