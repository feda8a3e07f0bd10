package models

import (
	"time"

	"github.com/google/uuid"
)

// ===========================================================================
// Knowledge base
// A document is split once into overlapping chunks at ingest time; the
// chunks are scanned linearly when answering
// ===========================================================================

type DocumentStatus string

const (
	DocumentPending    DocumentStatus = "pending"
	DocumentProcessing DocumentStatus = "processing"
	DocumentCompleted  DocumentStatus = "completed"
	DocumentFailed     DocumentStatus = "failed"
)

type KnowledgeDocument struct {
	BaseModel

	WorkspaceID uuid.UUID `gorm:"type:uuid;not null;index" json:"workspace_id"`
	Title       string    `gorm:"size:255;not null" json:"title"`

	// SourceType text, url or file; only the extracted text is stored
	SourceType string `gorm:"size:30;not null;default:'text'" json:"source_type"`
	SourceURL  string `gorm:"size:1000" json:"source_url,omitempty"`
	Content    string `gorm:"type:text;not null" json:"content,omitempty"`

	Status       DocumentStatus `gorm:"size:20;not null;default:'pending';index" json:"status"`
	ChunkCount   int            `gorm:"not null;default:0" json:"chunk_count"`
	ErrorMessage *string        `gorm:"type:text" json:"error_message,omitempty"`
}

func (KnowledgeDocument) TableName() string {
	return "knowledge_documents"
}

func (d *KnowledgeDocument) MarkProcessing() {
	d.Status = DocumentProcessing
	d.ErrorMessage = nil
}

func (d *KnowledgeDocument) MarkCompleted(chunks int) {
	d.Status = DocumentCompleted
	d.ChunkCount = chunks
	d.ErrorMessage = nil
}

func (d *KnowledgeDocument) MarkFailed(err error) {
	msg := err.Error()
	d.Status = DocumentFailed
	d.ErrorMessage = &msg
}

// KnowledgeChunk slice of a document. Replaced wholesale on reprocess, so no soft delete.
type KnowledgeChunk struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	DocumentID  uuid.UUID `gorm:"type:uuid;not null;index" json:"document_id"`
	WorkspaceID uuid.UUID `gorm:"type:uuid;not null;index" json:"workspace_id"`
	ChunkIndex  int       `gorm:"not null" json:"chunk_index"`
	Content     string    `gorm:"type:text;not null" json:"content"`
	CreatedAt   time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (KnowledgeChunk) TableName() string {
	return "knowledge_chunks"
}
