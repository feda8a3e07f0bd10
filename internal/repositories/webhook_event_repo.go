package repositories

import (
	"context"
	"time"

	"whatsdesk/internal/models"

	"gorm.io/gorm"
)

type webhookEventRepo struct {
	db *gorm.DB
}

func NewWebhookEventRepository(db *gorm.DB) WebhookEventRepository {
	return &webhookEventRepo{db: db}
}

func (r *webhookEventRepo) Create(ctx context.Context, event *models.WebhookEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *webhookEventRepo) Update(ctx context.Context, event *models.WebhookEvent) error {
	return r.db.WithContext(ctx).
		Model(event).
		Select("status", "event_type", "error_message", "processed_at", "updated_at").
		Updates(event).Error
}

func (r *webhookEventRepo) PurgeBefore(ctx context.Context, t time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("created_at < ?", t).
		Delete(&models.WebhookEvent{})
	return res.RowsAffected, res.Error
}
