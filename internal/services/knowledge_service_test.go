package services

import (
	"context"
	"strings"
	"testing"

	"whatsdesk/internal/config"
	apperrors "whatsdesk/internal/errors"
	"whatsdesk/internal/models"
	"whatsdesk/internal/repositories/mocks"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newKnowledgeService(repo *mocks.KnowledgeRepository) KnowledgeService {
	return NewKnowledgeService(repo, inlineRunner(), config.KnowledgeConfig{}, zap.NewNop())
}

func TestKnowledge_CreateProcessesInBackground(t *testing.T) {
	repo := &mocks.KnowledgeRepository{}
	workspaceID := uuid.New()
	docID := uuid.New()
	var stored *models.KnowledgeDocument

	repo.On("Create", mock.Anything, mock.AnythingOfType("*models.KnowledgeDocument")).
		Run(func(args mock.Arguments) {
			stored = args.Get(1).(*models.KnowledgeDocument)
			stored.ID = docID
		}).
		Return(nil)
	repo.On("Update", mock.Anything, mock.AnythingOfType("*models.KnowledgeDocument")).Return(nil)
	repo.On("ReplaceChunks", mock.Anything, docID, mock.MatchedBy(func(chunks []models.KnowledgeChunk) bool {
		return len(chunks) == 3 &&
			len([]rune(chunks[0].Content)) == 1000 &&
			len([]rune(chunks[2].Content)) == 900 &&
			chunks[2].ChunkIndex == 2 &&
			chunks[1].WorkspaceID == workspaceID
	})).Return(nil)

	svc := NewKnowledgeService(repo, stubRunner{}, config.KnowledgeConfig{}, zap.NewNop())
	doc, err := svc.Create(context.Background(), workspaceID, CreateDocumentInput{
		Title:   "  Horários  ",
		Content: strings.Repeat("a", 2500),
	})
	require.NoError(t, err)
	assert.Equal(t, "Horários", doc.Title)
	assert.Equal(t, "text", doc.SourceType)
	assert.Equal(t, models.DocumentPending, doc.Status)

	repo.On("FindByID", mock.Anything, docID).Return(stored, nil)
	processed, err := svc.Process(context.Background(), docID)
	require.NoError(t, err)
	assert.Equal(t, models.DocumentCompleted, processed.Status)
	assert.Equal(t, 3, processed.ChunkCount)
	assert.Nil(t, processed.ErrorMessage)
	repo.AssertExpectations(t)
}

func TestKnowledge_CreateRunsProcessingThroughRunner(t *testing.T) {
	repo := &mocks.KnowledgeRepository{}
	doc := &models.KnowledgeDocument{}

	repo.On("Create", mock.Anything, mock.AnythingOfType("*models.KnowledgeDocument")).
		Run(func(args mock.Arguments) {
			created := args.Get(1).(*models.KnowledgeDocument)
			created.ID = uuid.New()
			*doc = *created
		}).
		Return(nil)
	repo.On("FindByID", mock.Anything, mock.Anything).Return(doc, nil)
	repo.On("Update", mock.Anything, doc).Return(nil)
	repo.On("ReplaceChunks", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	_, err := newKnowledgeService(repo).Create(context.Background(), uuid.New(), CreateDocumentInput{
		Title:   "FAQ",
		Content: "Abrimos de segunda a sexta, das 9h às 18h.",
	})
	require.NoError(t, err)

	assert.Equal(t, models.DocumentCompleted, doc.Status)
	assert.Equal(t, 1, doc.ChunkCount)
	repo.AssertCalled(t, "ReplaceChunks", mock.Anything, doc.ID, mock.Anything)
}

func TestKnowledge_EmptyDocumentFails(t *testing.T) {
	repo := &mocks.KnowledgeRepository{}
	doc := &models.KnowledgeDocument{Content: " \n\t "}
	doc.ID = uuid.New()
	repo.On("FindByID", mock.Anything, doc.ID).Return(doc, nil)
	repo.On("Update", mock.Anything, doc).Return(nil)

	_, err := newKnowledgeService(repo).Process(context.Background(), doc.ID)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	assert.Equal(t, models.DocumentFailed, doc.Status)
	require.NotNil(t, doc.ErrorMessage)
	assert.Contains(t, *doc.ErrorMessage, "no text")
	repo.AssertNotCalled(t, "ReplaceChunks", mock.Anything, mock.Anything, mock.Anything)
}

func TestKnowledge_CreateValidation(t *testing.T) {
	repo := &mocks.KnowledgeRepository{}
	svc := newKnowledgeService(repo)

	_, err := svc.Create(context.Background(), uuid.New(), CreateDocumentInput{Title: " ", Content: "x"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = svc.Create(context.Background(), uuid.New(), CreateDocumentInput{Title: "FAQ"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestKnowledge_ReprocessWhileProcessingConflicts(t *testing.T) {
	repo := &mocks.KnowledgeRepository{}
	doc := &models.KnowledgeDocument{WorkspaceID: uuid.New(), Status: models.DocumentProcessing}
	doc.ID = uuid.New()
	repo.On("FindInWorkspace", mock.Anything, doc.WorkspaceID, doc.ID).Return(doc, nil)

	_, err := newKnowledgeService(repo).Reprocess(context.Background(), doc.WorkspaceID, doc.ID)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

// stubRunner accepts work without running it
type stubRunner struct{}

func (stubRunner) Submit(string, func(ctx context.Context) error) bool { return true }
