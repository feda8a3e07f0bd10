package repositories

import (
	"context"

	"whatsdesk/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ===========================================================================
// Knowledge Repository GORM Implementation
// Documents are workspace owned; chunks follow their document
// ===========================================================================

const chunkInsertBatch = 100

type knowledgeRepo struct {
	gormRepo[models.KnowledgeDocument]
}

func NewKnowledgeRepository(db *gorm.DB) KnowledgeRepository {
	return &knowledgeRepo{gormRepo[models.KnowledgeDocument]{db: db}}
}

// Delete removes the chunks with the document
func (r *knowledgeRepo) Delete(ctx context.Context, workspaceID, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("workspace_id = ? AND id = ?", workspaceID, id).Delete(&models.KnowledgeDocument{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Where("document_id = ?", id).Delete(&models.KnowledgeChunk{}).Error
	})
}

func (r *knowledgeRepo) ReplaceChunks(ctx context.Context, documentID uuid.UUID, chunks []models.KnowledgeChunk) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", documentID).Delete(&models.KnowledgeChunk{}).Error; err != nil {
			return err
		}
		if len(chunks) == 0 {
			return nil
		}
		return tx.CreateInBatches(chunks, chunkInsertBatch).Error
	})
}

func (r *knowledgeRepo) ListSearchableChunks(ctx context.Context, workspaceID uuid.UUID) ([]models.KnowledgeChunk, error) {
	var chunks []models.KnowledgeChunk
	err := r.db.WithContext(ctx).
		Joins("JOIN knowledge_documents d ON d.id = knowledge_chunks.document_id AND d.status = ? AND d.deleted_at IS NULL",
			models.DocumentCompleted).
		Where("knowledge_chunks.workspace_id = ?", workspaceID).
		Order("d.created_at ASC, knowledge_chunks.chunk_index ASC").
		Find(&chunks).Error
	return chunks, err
}
