package repositories

import (
	"context"

	"whatsdesk/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type integrationRepo struct {
	gormRepo[models.Integration]
}

func NewIntegrationRepository(db *gorm.DB) IntegrationRepository {
	return &integrationRepo{gormRepo[models.Integration]{db: db}}
}

func (r *integrationRepo) FindActiveByType(ctx context.Context, workspaceID uuid.UUID, t models.IntegrationType) (*models.Integration, error) {
	var integration models.Integration
	err := r.db.WithContext(ctx).
		Where("workspace_id = ? AND type = ? AND is_active = ?", workspaceID, t, true).
		Order("created_at ASC").
		First(&integration).Error
	if err != nil {
		return nil, err
	}
	return &integration, nil
}

func (r *integrationRepo) SaveState(ctx context.Context, integration *models.Integration) error {
	return r.db.WithContext(ctx).
		Model(integration).
		Select("config", "status", "last_error", "last_error_at").
		Updates(integration).Error
}
