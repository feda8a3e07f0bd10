package repositories

import (
	"context"

	"whatsdesk/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type personaRepo struct {
	gormRepo[models.Persona]
}

func NewPersonaRepository(db *gorm.DB) PersonaRepository {
	return &personaRepo{gormRepo[models.Persona]{db: db}}
}

func (r *personaRepo) FindDefault(ctx context.Context, workspaceID uuid.UUID) (*models.Persona, error) {
	var persona models.Persona
	err := r.db.WithContext(ctx).
		Where("workspace_id = ? AND is_default = ?", workspaceID, true).
		First(&persona).Error
	if err != nil {
		return nil, err
	}
	return &persona, nil
}

// SetDefault clears the previous default first so ux_personas_default never sees two rows
func (r *personaRepo) SetDefault(ctx context.Context, workspaceID, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Persona{}).
			Where("workspace_id = ? AND is_default = ? AND id <> ?", workspaceID, true, id).
			Update("is_default", false).Error; err != nil {
			return err
		}
		res := tx.Model(&models.Persona{}).
			Where("workspace_id = ? AND id = ?", workspaceID, id).
			Update("is_default", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
