package repositories

import (
	"context"
	"time"

	"whatsdesk/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ===========================================================================
// Conversation Repository GORM Implementation
// ===========================================================================

type conversationRepo struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepo{db: db}
}

func (r *conversationRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	var conv models.Conversation
	if err := r.db.WithContext(ctx).
		Preload("Contact").
		Preload("Instance").
		First(&conv, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *conversationRepo) FindInWorkspace(ctx context.Context, workspaceID, id uuid.UUID) (*models.Conversation, error) {
	var conv models.Conversation
	err := r.db.WithContext(ctx).
		Preload("Contact").
		Preload("Instance").
		Where("workspace_id = ? AND id = ?", workspaceID, id).
		First(&conv).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *conversationRepo) FindByWorkspace(ctx context.Context, workspaceID uuid.UUID, opts FindOptions) ([]models.Conversation, int64, error) {
	opts.SetDefaults()

	var conversations []models.Conversation
	var total int64

	query := r.db.WithContext(ctx).
		Model(&models.Conversation{}).
		Where("workspace_id = ?", workspaceID)

	if opts.Filters != nil {
		for _, col := range []string{"status", "attendance_mode", "instance_id", "assigned_to", "department_id"} {
			if v, ok := opts.Filters[col]; ok {
				query = query.Where(col+" = ?", v)
			}
		}
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Preload("Contact").
		Order(opts.GetOrderClause()).
		Offset(opts.Offset).
		Limit(opts.Limit).
		Find(&conversations).Error

	return conversations, total, err
}

// UpsertOpen the conflict target is the partial index ux_conversations_open.
// The predicate is a literal so postgres can infer the index.
func (r *conversationRepo) UpsertOpen(ctx context.Context, conv *models.Conversation, incoming bool) (*models.Conversation, error) {
	conv.Status = models.StatusOpen
	if incoming {
		conv.UnreadCount = 1
	}

	updates := map[string]interface{}{
		"last_message_at":      gorm.Expr("EXCLUDED.last_message_at"),
		"last_message_preview": gorm.Expr("EXCLUDED.last_message_preview"),
		"updated_at":           gorm.Expr("NOW()"),
	}
	if incoming {
		updates["unread_count"] = gorm.Expr("conversations.unread_count + 1")
	}

	err := r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(
			clause.OnConflict{
				Columns:     []clause.Column{{Name: "instance_id"}, {Name: "contact_id"}},
				TargetWhere: clause.Where{Exprs: []clause.Expression{clause.Expr{SQL: "status = 'open'"}}},
				DoUpdates:   clause.Assignments(updates),
			},
			clause.Returning{},
		).
		Create(conv).Error
	if err != nil {
		return nil, err
	}
	return conv, nil
}

func (r *conversationRepo) TouchOutbound(ctx context.Context, id uuid.UUID, preview string, at time.Time, takeover bool) error {
	fields := map[string]interface{}{
		"last_message_at":      at,
		"last_message_preview": models.PreviewText(preview),
	}
	if takeover {
		fields["attendance_mode"] = models.AttendanceHuman
	}
	return r.db.WithContext(ctx).
		Model(&models.Conversation{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (r *conversationRepo) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	res := r.db.WithContext(ctx).
		Model(&models.Conversation{}).
		Where("id = ?", id).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *conversationRepo) MarkRead(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Conversation{}).
		Where("id = ?", id).
		Update("unread_count", 0).Error
}
