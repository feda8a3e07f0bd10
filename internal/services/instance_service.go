package services

import (
	"context"

	"whatsdesk/internal/models"

	"github.com/google/uuid"
)

// ===========================================================================
// Instance Service Interface
// WhatsApp lines: CRUD, pairing and connection-state polling
// ===========================================================================

// InstanceUpdate nil fields are left untouched
type InstanceUpdate struct {
	Name          *string
	ExternalID    *string
	APIToken      *string
	APIBaseURL    *string
	WebhookSecret *string
	UseFlowEngine *bool
	DepartmentID  *uuid.UUID
}

type InstanceService interface {
	List(ctx context.Context, workspaceID uuid.UUID) ([]models.Instance, error)
	Get(ctx context.Context, workspaceID, id uuid.UUID) (*models.Instance, error)
	Create(ctx context.Context, inst *models.Instance) error
	Update(ctx context.Context, workspaceID, id uuid.UUID, upd InstanceUpdate) (*models.Instance, error)
	Delete(ctx context.Context, workspaceID, id uuid.UUID) error

	// Connect asks the provider for a pairing QR code
	Connect(ctx context.Context, workspaceID, id uuid.UUID) (*models.Instance, error)

	// SyncStatus reads the provider's view of one instance
	SyncStatus(ctx context.Context, workspaceID, id uuid.UUID) (*models.Instance, error)

	// SyncStatuses polls every instance whose state may change without a
	// webhook; returns how many changed
	SyncStatuses(ctx context.Context) (int, error)

	// QRCodePNG pairing payload rendered as a PNG image
	QRCodePNG(ctx context.Context, workspaceID, id uuid.UUID, size int) ([]byte, error)
}
