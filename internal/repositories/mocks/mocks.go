// Package mocks testify fakes of the repository interfaces.
package mocks

import (
	"context"
	"time"

	"whatsdesk/internal/models"
	"whatsdesk/internal/repositories"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

func ptr[T any](v interface{}) *T {
	if v == nil {
		return nil
	}
	return v.(*T)
}

func slice[T any](v interface{}) []T {
	if v == nil {
		return nil
	}
	return v.([]T)
}

// ===========================================================================
// Generic
// ===========================================================================

type Repo[T any] struct {
	mock.Mock
}

func (m *Repo[T]) FindByID(ctx context.Context, id uuid.UUID) (*T, error) {
	args := m.Called(ctx, id)
	return ptr[T](args.Get(0)), args.Error(1)
}

func (m *Repo[T]) FindInWorkspace(ctx context.Context, workspaceID, id uuid.UUID) (*T, error) {
	args := m.Called(ctx, workspaceID, id)
	return ptr[T](args.Get(0)), args.Error(1)
}

func (m *Repo[T]) ListByWorkspace(ctx context.Context, workspaceID uuid.UUID) ([]T, error) {
	args := m.Called(ctx, workspaceID)
	return slice[T](args.Get(0)), args.Error(1)
}

func (m *Repo[T]) Create(ctx context.Context, entity *T) error {
	return m.Called(ctx, entity).Error(0)
}

func (m *Repo[T]) Update(ctx context.Context, entity *T) error {
	return m.Called(ctx, entity).Error(0)
}

func (m *Repo[T]) Delete(ctx context.Context, workspaceID, id uuid.UUID) error {
	return m.Called(ctx, workspaceID, id).Error(0)
}

// ===========================================================================
// Workspace / User
// ===========================================================================

type WorkspaceRepository struct {
	mock.Mock
}

var _ repositories.WorkspaceRepository = (*WorkspaceRepository)(nil)

func (m *WorkspaceRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Workspace, error) {
	args := m.Called(ctx, id)
	return ptr[models.Workspace](args.Get(0)), args.Error(1)
}

type UserRepository struct {
	mock.Mock
}

var _ repositories.UserRepository = (*UserRepository)(nil)

func (m *UserRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	return ptr[models.User](args.Get(0)), args.Error(1)
}

func (m *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	return ptr[models.User](args.Get(0)), args.Error(1)
}

func (m *UserRepository) SaveSession(ctx context.Context, user *models.User) error {
	return m.Called(ctx, user).Error(0)
}

// ===========================================================================
// Instance
// ===========================================================================

type InstanceRepository struct {
	Repo[models.Instance]
}

var _ repositories.InstanceRepository = (*InstanceRepository)(nil)

func (m *InstanceRepository) FindByExternalID(ctx context.Context, provider models.ProviderType, externalID string) (*models.Instance, error) {
	args := m.Called(ctx, provider, externalID)
	return ptr[models.Instance](args.Get(0)), args.Error(1)
}

func (m *InstanceRepository) ListForStatusSync(ctx context.Context) ([]models.Instance, error) {
	args := m.Called(ctx)
	return slice[models.Instance](args.Get(0)), args.Error(1)
}

func (m *InstanceRepository) UpdateStatus(ctx context.Context, id uuid.UUID, upd repositories.InstanceStatusUpdate) error {
	return m.Called(ctx, id, upd).Error(0)
}

// ===========================================================================
// Contact
// ===========================================================================

type ContactRepository struct {
	mock.Mock
}

var _ repositories.ContactRepository = (*ContactRepository)(nil)

func (m *ContactRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Contact, error) {
	args := m.Called(ctx, id)
	return ptr[models.Contact](args.Get(0)), args.Error(1)
}

func (m *ContactRepository) FindInWorkspace(ctx context.Context, workspaceID, id uuid.UUID) (*models.Contact, error) {
	args := m.Called(ctx, workspaceID, id)
	return ptr[models.Contact](args.Get(0)), args.Error(1)
}

func (m *ContactRepository) FindByWorkspace(ctx context.Context, workspaceID uuid.UUID, opts repositories.FindOptions) ([]models.Contact, int64, error) {
	args := m.Called(ctx, workspaceID, opts)
	return slice[models.Contact](args.Get(0)), args.Get(1).(int64), args.Error(2)
}

func (m *ContactRepository) Upsert(ctx context.Context, contact *models.Contact) (*models.Contact, error) {
	args := m.Called(ctx, contact)
	return ptr[models.Contact](args.Get(0)), args.Error(1)
}

func (m *ContactRepository) Update(ctx context.Context, contact *models.Contact) error {
	return m.Called(ctx, contact).Error(0)
}

func (m *ContactRepository) SetMetadata(ctx context.Context, id uuid.UUID, key string, value string) error {
	return m.Called(ctx, id, key, value).Error(0)
}

// ===========================================================================
// Conversation
// ===========================================================================

type ConversationRepository struct {
	mock.Mock
}

var _ repositories.ConversationRepository = (*ConversationRepository)(nil)

func (m *ConversationRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	args := m.Called(ctx, id)
	return ptr[models.Conversation](args.Get(0)), args.Error(1)
}

func (m *ConversationRepository) FindInWorkspace(ctx context.Context, workspaceID, id uuid.UUID) (*models.Conversation, error) {
	args := m.Called(ctx, workspaceID, id)
	return ptr[models.Conversation](args.Get(0)), args.Error(1)
}

func (m *ConversationRepository) FindByWorkspace(ctx context.Context, workspaceID uuid.UUID, opts repositories.FindOptions) ([]models.Conversation, int64, error) {
	args := m.Called(ctx, workspaceID, opts)
	return slice[models.Conversation](args.Get(0)), args.Get(1).(int64), args.Error(2)
}

func (m *ConversationRepository) UpsertOpen(ctx context.Context, conv *models.Conversation, incoming bool) (*models.Conversation, error) {
	args := m.Called(ctx, conv, incoming)
	return ptr[models.Conversation](args.Get(0)), args.Error(1)
}

func (m *ConversationRepository) TouchOutbound(ctx context.Context, id uuid.UUID, preview string, at time.Time, takeover bool) error {
	return m.Called(ctx, id, preview, at, takeover).Error(0)
}

func (m *ConversationRepository) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	return m.Called(ctx, id, fields).Error(0)
}

func (m *ConversationRepository) MarkRead(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

// ===========================================================================
// Message
// ===========================================================================

type MessageRepository struct {
	mock.Mock
}

var _ repositories.MessageRepository = (*MessageRepository)(nil)

func (m *MessageRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	args := m.Called(ctx, id)
	return ptr[models.Message](args.Get(0)), args.Error(1)
}

func (m *MessageRepository) FindByConversation(ctx context.Context, conversationID uuid.UUID, opts repositories.FindOptions) ([]models.Message, int64, error) {
	args := m.Called(ctx, conversationID, opts)
	return slice[models.Message](args.Get(0)), args.Get(1).(int64), args.Error(2)
}

func (m *MessageRepository) FindRecent(ctx context.Context, conversationID uuid.UUID, limit int) ([]models.Message, error) {
	args := m.Called(ctx, conversationID, limit)
	return slice[models.Message](args.Get(0)), args.Error(1)
}

func (m *MessageRepository) ExistsByWhatsAppID(ctx context.Context, instanceID uuid.UUID, whatsappMessageID string) (bool, error) {
	args := m.Called(ctx, instanceID, whatsappMessageID)
	return args.Bool(0), args.Error(1)
}

func (m *MessageRepository) Insert(ctx context.Context, msg *models.Message) (bool, error) {
	args := m.Called(ctx, msg)
	return args.Bool(0), args.Error(1)
}

func (m *MessageRepository) ClaimOutbound(ctx context.Context, msg *models.Message) (*models.Message, error) {
	args := m.Called(ctx, msg)
	return ptr[models.Message](args.Get(0)), args.Error(1)
}

func (m *MessageRepository) UpdateStatus(ctx context.Context, instanceID uuid.UUID, whatsappMessageID string, status models.MessageStatus) (int64, error) {
	args := m.Called(ctx, instanceID, whatsappMessageID, status)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MessageRepository) SetTranscription(ctx context.Context, id uuid.UUID, text string) error {
	return m.Called(ctx, id, text).Error(0)
}

// ===========================================================================
// Persona / Department
// ===========================================================================

type PersonaRepository struct {
	Repo[models.Persona]
}

var _ repositories.PersonaRepository = (*PersonaRepository)(nil)

func (m *PersonaRepository) FindDefault(ctx context.Context, workspaceID uuid.UUID) (*models.Persona, error) {
	args := m.Called(ctx, workspaceID)
	return ptr[models.Persona](args.Get(0)), args.Error(1)
}

func (m *PersonaRepository) SetDefault(ctx context.Context, workspaceID, id uuid.UUID) error {
	return m.Called(ctx, workspaceID, id).Error(0)
}

type DepartmentRepository struct {
	Repo[models.Department]
}

var _ repositories.DepartmentRepository = (*DepartmentRepository)(nil)

// ===========================================================================
// Integration
// ===========================================================================

type IntegrationRepository struct {
	Repo[models.Integration]
}

var _ repositories.IntegrationRepository = (*IntegrationRepository)(nil)

func (m *IntegrationRepository) FindActiveByType(ctx context.Context, workspaceID uuid.UUID, t models.IntegrationType) (*models.Integration, error) {
	args := m.Called(ctx, workspaceID, t)
	return ptr[models.Integration](args.Get(0)), args.Error(1)
}

func (m *IntegrationRepository) SaveState(ctx context.Context, integration *models.Integration) error {
	return m.Called(ctx, integration).Error(0)
}

// ===========================================================================
// Knowledge
// ===========================================================================

type KnowledgeRepository struct {
	Repo[models.KnowledgeDocument]
}

var _ repositories.KnowledgeRepository = (*KnowledgeRepository)(nil)

func (m *KnowledgeRepository) ReplaceChunks(ctx context.Context, documentID uuid.UUID, chunks []models.KnowledgeChunk) error {
	return m.Called(ctx, documentID, chunks).Error(0)
}

func (m *KnowledgeRepository) ListSearchableChunks(ctx context.Context, workspaceID uuid.UUID) ([]models.KnowledgeChunk, error) {
	args := m.Called(ctx, workspaceID)
	return slice[models.KnowledgeChunk](args.Get(0)), args.Error(1)
}

// ===========================================================================
// WebhookEvent
// ===========================================================================

type WebhookEventRepository struct {
	mock.Mock
}

var _ repositories.WebhookEventRepository = (*WebhookEventRepository)(nil)

func (m *WebhookEventRepository) Create(ctx context.Context, event *models.WebhookEvent) error {
	return m.Called(ctx, event).Error(0)
}

func (m *WebhookEventRepository) Update(ctx context.Context, event *models.WebhookEvent) error {
	return m.Called(ctx, event).Error(0)
}

func (m *WebhookEventRepository) PurgeBefore(ctx context.Context, t time.Time) (int64, error) {
	args := m.Called(ctx, t)
	return args.Get(0).(int64), args.Error(1)
}
