package services

import (
	"context"

	"whatsdesk/internal/models"

	"github.com/google/uuid"
)

// ===========================================================================
// Knowledge Service Interface
// Document intake and chunking for the AI responder's keyword search
// ===========================================================================

type CreateDocumentInput struct {
	Title      string
	SourceType string
	SourceURL  string
	Content    string
}

type KnowledgeService interface {
	List(ctx context.Context, workspaceID uuid.UUID) ([]models.KnowledgeDocument, error)
	Get(ctx context.Context, workspaceID, id uuid.UUID) (*models.KnowledgeDocument, error)

	// Create stores the document as pending and submits its processing
	Create(ctx context.Context, workspaceID uuid.UUID, input CreateDocumentInput) (*models.KnowledgeDocument, error)

	// Process chunks the document synchronously; the document comes back
	// failed (with the error) when chunking or storing fails
	Process(ctx context.Context, documentID uuid.UUID) (*models.KnowledgeDocument, error)

	// Reprocess resets the document to pending and submits it again
	Reprocess(ctx context.Context, workspaceID, id uuid.UUID) (*models.KnowledgeDocument, error)

	Delete(ctx context.Context, workspaceID, id uuid.UUID) error
}
