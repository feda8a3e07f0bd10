package repositories

import (
	"context"

	"whatsdesk/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ===========================================================================
// Message Repository GORM Implementation
// ===========================================================================

type messageRepo struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepo{db: db}
}

func (r *messageRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	var msg models.Message
	if err := r.db.WithContext(ctx).First(&msg, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *messageRepo) FindByConversation(ctx context.Context, conversationID uuid.UUID, opts FindOptions) ([]models.Message, int64, error) {
	opts.SetDefaults()

	var messages []models.Message
	var total int64

	query := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("conversation_id = ?", conversationID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// chronological unless asked otherwise
	if opts.OrderBy == "created_at" {
		opts.OrderBy = "sent_at"
		if opts.OrderDir == "desc" {
			opts.OrderDir = "asc"
		}
	}

	err := query.
		Order(opts.GetOrderClause()).
		Offset(opts.Offset).
		Limit(opts.Limit).
		Find(&messages).Error

	return messages, total, err
}

func (r *messageRepo) FindRecent(ctx context.Context, conversationID uuid.UUID, limit int) ([]models.Message, error) {
	var messages []models.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("sent_at DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (r *messageRepo) ExistsByWhatsAppID(ctx context.Context, instanceID uuid.UUID, whatsappMessageID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("instance_id = ? AND whatsapp_message_id = ?", instanceID, whatsappMessageID).
		Limit(1).
		Count(&count).Error
	return count > 0, err
}

func (r *messageRepo) Insert(ctx context.Context, msg *models.Message) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "instance_id"}, {Name: "whatsapp_message_id"}},
			DoNothing: true,
		}).
		Create(msg)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *messageRepo) ClaimOutbound(ctx context.Context, msg *models.Message) (*models.Message, error) {
	if msg.WhatsAppMessageID == nil {
		return nil, nil
	}
	var claimed []models.Message
	err := r.db.WithContext(ctx).
		Model(&claimed).
		Clauses(clause.Returning{}).
		Where("instance_id = ? AND whatsapp_message_id = ?", msg.InstanceID, *msg.WhatsAppMessageID).
		Where("source = ?", models.SourceDevice).
		Updates(map[string]interface{}{
			"source":         msg.Source,
			"is_from_bot":    msg.IsFromBot,
			"sender_user_id": msg.SenderUserID,
		}).Error
	if err != nil || len(claimed) == 0 {
		return nil, err
	}
	return &claimed[0], nil
}

func (r *messageRepo) UpdateStatus(ctx context.Context, instanceID uuid.UUID, whatsappMessageID string, status models.MessageStatus) (int64, error) {
	before := models.StatusesBefore(status)
	if len(before) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("instance_id = ? AND whatsapp_message_id = ?", instanceID, whatsappMessageID).
		Where("status IN ?", before).
		Update("status", status)
	return res.RowsAffected, res.Error
}

func (r *messageRepo) SetTranscription(ctx context.Context, id uuid.UUID, text string) error {
	return r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("id = ?", id).
		Update("transcription", text).Error
}
