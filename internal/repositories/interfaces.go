package repositories

import (
	"context"
	"time"

	"whatsdesk/internal/models"

	"github.com/google/uuid"
)

// ===========================================================================
// Workspace Repository Interface
// ===========================================================================

// WorkspaceRepository tenants are provisioned out of band (seed, admin
// console); the API only reads them
type WorkspaceRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Workspace, error)
}

// ===========================================================================
// User Repository Interface
// ===========================================================================

// UserRepository operators are created by seeding or the admin console, the
// API only reads them and records sessions.
type UserRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)

	// FindByEmail active user by login email
	FindByEmail(ctx context.Context, email string) (*models.User, error)

	// SaveSession writes refresh_token_hash and last_seen_at only
	SaveSession(ctx context.Context, user *models.User) error
}

// ===========================================================================
// Instance Repository Interface
// ===========================================================================

// InstanceStatusUpdate fields written by connection and QR events. Empty
// PhoneNumber keeps the stored one.
type InstanceStatusUpdate struct {
	Status      models.InstanceStatus
	PhoneNumber string
	QRCode      string
	At          time.Time
}

type InstanceRepository interface {
	Repository[models.Instance]

	// FindByExternalID provider side identifier lookup (Evolution webhooks name the instance in the body)
	FindByExternalID(ctx context.Context, provider models.ProviderType, externalID string) (*models.Instance, error)

	// ListForStatusSync instances whose connection state is polled by the status job
	ListForStatusSync(ctx context.Context) ([]models.Instance, error)

	UpdateStatus(ctx context.Context, id uuid.UUID, upd InstanceStatusUpdate) error
}

// ===========================================================================
// Contact Repository Interface
// ===========================================================================

type ContactRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Contact, error)
	FindInWorkspace(ctx context.Context, workspaceID, id uuid.UUID) (*models.Contact, error)
	FindByWorkspace(ctx context.Context, workspaceID uuid.UUID, opts FindOptions) ([]models.Contact, int64, error)

	// Upsert inserts or refreshes the contact keyed by (instance_id, phone) in
	// one statement and returns the stored row
	Upsert(ctx context.Context, contact *models.Contact) (*models.Contact, error)

	Update(ctx context.Context, contact *models.Contact) error

	// SetMetadata merges one key into the metadata bag
	SetMetadata(ctx context.Context, id uuid.UUID, key string, value string) error
}

// ===========================================================================
// Conversation Repository Interface
// ===========================================================================

type ConversationRepository interface {
	// FindByID preloads Contact and Instance
	FindByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
	FindInWorkspace(ctx context.Context, workspaceID, id uuid.UUID) (*models.Conversation, error)
	FindByWorkspace(ctx context.Context, workspaceID uuid.UUID, opts FindOptions) ([]models.Conversation, int64, error)

	// UpsertOpen inserts or touches the open conversation of (instance_id,
	// contact_id) in one statement. incoming bumps unread_count atomically.
	UpsertOpen(ctx context.Context, conv *models.Conversation, incoming bool) (*models.Conversation, error)

	// TouchOutbound stamps last_message_at and preview after a send; takeover
	// also switches attendance_mode to human
	TouchOutbound(ctx context.Context, id uuid.UUID, preview string, at time.Time, takeover bool) error

	// UpdateFields partial update from the dashboard
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error

	MarkRead(ctx context.Context, id uuid.UUID) error
}

// ===========================================================================
// Message Repository Interface
// ===========================================================================

type MessageRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Message, error)
	FindByConversation(ctx context.Context, conversationID uuid.UUID, opts FindOptions) ([]models.Message, int64, error)

	// FindRecent last limit messages of the conversation in chronological order
	FindRecent(ctx context.Context, conversationID uuid.UUID, limit int) ([]models.Message, error)

	ExistsByWhatsAppID(ctx context.Context, instanceID uuid.UUID, whatsappMessageID string) (bool, error)

	// Insert ON CONFLICT (instance_id, whatsapp_message_id) DO NOTHING.
	// inserted is false when the provider id was already stored.
	Insert(ctx context.Context, msg *models.Message) (inserted bool, err error)

	// ClaimOutbound hands a row stored from the provider's echo of our own
	// send (source device) over to the real sender. nil when no device row
	// holds the provider id.
	ClaimOutbound(ctx context.Context, msg *models.Message) (*models.Message, error)

	// UpdateStatus moves the delivery status forward only; returns rows changed
	UpdateStatus(ctx context.Context, instanceID uuid.UUID, whatsappMessageID string, status models.MessageStatus) (int64, error)

	SetTranscription(ctx context.Context, id uuid.UUID, text string) error
}

// ===========================================================================
// Persona Repository Interface
// ===========================================================================

type PersonaRepository interface {
	Repository[models.Persona]

	FindDefault(ctx context.Context, workspaceID uuid.UUID) (*models.Persona, error)

	// SetDefault makes id the only default persona of the workspace
	SetDefault(ctx context.Context, workspaceID, id uuid.UUID) error
}

// ===========================================================================
// Department Repository Interface
// ===========================================================================

type DepartmentRepository interface {
	Repository[models.Department]
}

// ===========================================================================
// Integration Repository Interface
// ===========================================================================

type IntegrationRepository interface {
	Repository[models.Integration]

	// FindActiveByType first active integration of the type, gorm.ErrRecordNotFound when none
	FindActiveByType(ctx context.Context, workspaceID uuid.UUID, t models.IntegrationType) (*models.Integration, error)

	// SaveState writes config, status and last error columns only
	SaveState(ctx context.Context, integration *models.Integration) error
}

// ===========================================================================
// Knowledge Repository Interface
// ===========================================================================

type KnowledgeRepository interface {
	Repository[models.KnowledgeDocument]

	// ReplaceChunks swaps the chunks of a document in one transaction
	ReplaceChunks(ctx context.Context, documentID uuid.UUID, chunks []models.KnowledgeChunk) error

	// ListSearchableChunks chunks of completed documents in the workspace
	ListSearchableChunks(ctx context.Context, workspaceID uuid.UUID) ([]models.KnowledgeChunk, error)
}

// ===========================================================================
// WebhookEvent Repository Interface
// ===========================================================================

type WebhookEventRepository interface {
	Create(ctx context.Context, event *models.WebhookEvent) error
	Update(ctx context.Context, event *models.WebhookEvent) error

	// PurgeBefore hard deletes events created before t
	PurgeBefore(ctx context.Context, t time.Time) (int64, error)
}
