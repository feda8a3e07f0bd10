package services

import (
	"context"
	"fmt"
	"strings"

	"whatsdesk/internal/config"
	"whatsdesk/internal/dispatch"
	apperrors "whatsdesk/internal/errors"
	"whatsdesk/internal/knowledge"
	"whatsdesk/internal/models"
	"whatsdesk/internal/repositories"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ===========================================================================
// Knowledge Service Implementation
// ===========================================================================

type knowledgeService struct {
	repo    repositories.KnowledgeRepository
	runner  dispatch.Runner
	size    int
	overlap int
	logger  *zap.Logger
}

func NewKnowledgeService(
	repo repositories.KnowledgeRepository,
	runner dispatch.Runner,
	cfg config.KnowledgeConfig,
	logger *zap.Logger,
) KnowledgeService {
	size, overlap := cfg.ChunkSize, cfg.ChunkOverlap
	if size <= 0 {
		size, overlap = knowledge.DefaultChunkSize, knowledge.DefaultChunkOverlap
	}
	return &knowledgeService{
		repo:    repo,
		runner:  runner,
		size:    size,
		overlap: overlap,
		logger:  logger.Named("knowledge"),
	}
}

func (s *knowledgeService) List(ctx context.Context, workspaceID uuid.UUID) ([]models.KnowledgeDocument, error) {
	return s.repo.ListByWorkspace(ctx, workspaceID)
}

func (s *knowledgeService) Get(ctx context.Context, workspaceID, id uuid.UUID) (*models.KnowledgeDocument, error) {
	doc, err := s.repo.FindInWorkspace(ctx, workspaceID, id)
	if err != nil {
		return nil, notFound(err, "Document")
	}
	return doc, nil
}

func (s *knowledgeService) Create(ctx context.Context, workspaceID uuid.UUID, input CreateDocumentInput) (*models.KnowledgeDocument, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.New(apperrors.ErrInvalidInput, "title is required")
	}
	if strings.TrimSpace(input.Content) == "" {
		return nil, apperrors.New(apperrors.ErrInvalidInput, "content is required")
	}

	sourceType := input.SourceType
	if sourceType == "" {
		sourceType = "text"
	}
	doc := &models.KnowledgeDocument{
		WorkspaceID: workspaceID,
		Title:       title,
		SourceType:  sourceType,
		SourceURL:   input.SourceURL,
		Content:     input.Content,
		Status:      models.DocumentPending,
	}
	if err := s.repo.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}

	s.submit(doc.ID)
	return doc, nil
}

func (s *knowledgeService) Reprocess(ctx context.Context, workspaceID, id uuid.UUID) (*models.KnowledgeDocument, error) {
	doc, err := s.Get(ctx, workspaceID, id)
	if err != nil {
		return nil, err
	}
	if doc.Status == models.DocumentProcessing {
		return nil, apperrors.New(apperrors.ErrConflict, "document is being processed")
	}

	doc.Status = models.DocumentPending
	doc.ErrorMessage = nil
	if err := s.repo.Update(ctx, doc); err != nil {
		return nil, fmt.Errorf("reset document: %w", err)
	}

	s.submit(doc.ID)
	return doc, nil
}

func (s *knowledgeService) submit(id uuid.UUID) {
	s.runner.Submit(dispatch.FnProcessDocument, func(ctx context.Context) error {
		_, err := s.Process(ctx, id)
		return err
	})
}

func (s *knowledgeService) Process(ctx context.Context, documentID uuid.UUID) (*models.KnowledgeDocument, error) {
	doc, err := s.repo.FindByID(ctx, documentID)
	if err != nil {
		return nil, notFound(err, "Document")
	}

	doc.MarkProcessing()
	if err := s.repo.Update(ctx, doc); err != nil {
		return nil, fmt.Errorf("mark processing: %w", err)
	}

	parts, err := knowledge.Split(doc.Content, s.size, s.overlap)
	if err == nil && len(parts) == 0 {
		err = apperrors.New(apperrors.ErrInvalidInput, "document has no text")
	}
	if err != nil {
		return s.fail(ctx, doc, err)
	}

	chunks := make([]models.KnowledgeChunk, len(parts))
	for i, p := range parts {
		chunks[i] = models.KnowledgeChunk{
			DocumentID:  doc.ID,
			WorkspaceID: doc.WorkspaceID,
			ChunkIndex:  i,
			Content:     p,
		}
	}
	if err := s.repo.ReplaceChunks(ctx, doc.ID, chunks); err != nil {
		return s.fail(ctx, doc, fmt.Errorf("store chunks: %w", err))
	}

	doc.MarkCompleted(len(chunks))
	if err := s.repo.Update(ctx, doc); err != nil {
		return nil, fmt.Errorf("mark completed: %w", err)
	}

	s.logger.Info("document processed",
		zap.String("document_id", doc.ID.String()),
		zap.Int("chunks", len(chunks)),
	)
	return doc, nil
}

func (s *knowledgeService) fail(ctx context.Context, doc *models.KnowledgeDocument, cause error) (*models.KnowledgeDocument, error) {
	doc.MarkFailed(cause)
	if err := s.repo.Update(ctx, doc); err != nil {
		s.logger.Error("failed to mark document failed", zap.String("document_id", doc.ID.String()), zap.Error(err))
	}
	s.logger.Warn("document processing failed", zap.String("document_id", doc.ID.String()), zap.Error(cause))
	return doc, cause
}

func (s *knowledgeService) Delete(ctx context.Context, workspaceID, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, workspaceID, id); err != nil {
		return notFound(err, "Document")
	}
	return nil
}
