package repositories

import (
	"context"

	"whatsdesk/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ===========================================================================
// Contact Repository GORM Implementation
// ===========================================================================

type contactRepo struct {
	db *gorm.DB
}

func NewContactRepository(db *gorm.DB) ContactRepository {
	return &contactRepo{db: db}
}

func (r *contactRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Contact, error) {
	var contact models.Contact
	if err := r.db.WithContext(ctx).First(&contact, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &contact, nil
}

func (r *contactRepo) FindInWorkspace(ctx context.Context, workspaceID, id uuid.UUID) (*models.Contact, error) {
	var contact models.Contact
	err := r.db.WithContext(ctx).
		Where("workspace_id = ? AND id = ?", workspaceID, id).
		First(&contact).Error
	if err != nil {
		return nil, err
	}
	return &contact, nil
}

func (r *contactRepo) FindByWorkspace(ctx context.Context, workspaceID uuid.UUID, opts FindOptions) ([]models.Contact, int64, error) {
	opts.SetDefaults()

	var contacts []models.Contact
	var total int64

	query := r.db.WithContext(ctx).
		Model(&models.Contact{}).
		Where("workspace_id = ?", workspaceID)

	if opts.Filters != nil {
		if instanceID, ok := opts.Filters["instance_id"]; ok {
			query = query.Where("instance_id = ?", instanceID)
		}
		if search, ok := opts.Filters["search"].(string); ok && search != "" {
			like := "%" + search + "%"
			query = query.Where("phone LIKE ? OR name ILIKE ? OR push_name ILIKE ?", like, like, like)
		}
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order(opts.GetOrderClause()).
		Offset(opts.Offset).
		Limit(opts.Limit).
		Find(&contacts).Error

	return contacts, total, err
}

// Upsert a manually set name is never overwritten; push name and picture are
// refreshed only by non-empty values; a soft deleted row comes back to life
func (r *contactRepo) Upsert(ctx context.Context, contact *models.Contact) (*models.Contact, error) {
	err := r.db.WithContext(ctx).
		Clauses(
			clause.OnConflict{
				Columns: []clause.Column{{Name: "instance_id"}, {Name: "phone"}},
				DoUpdates: clause.Assignments(map[string]interface{}{
					"name":                gorm.Expr("COALESCE(contacts.name, EXCLUDED.name)"),
					"push_name":           gorm.Expr("COALESCE(NULLIF(EXCLUDED.push_name, ''), contacts.push_name)"),
					"profile_picture_url": gorm.Expr("COALESCE(NULLIF(EXCLUDED.profile_picture_url, ''), contacts.profile_picture_url)"),
					"deleted_at":          nil,
					"updated_at":          gorm.Expr("NOW()"),
				}),
			},
			clause.Returning{},
		).
		Create(contact).Error
	if err != nil {
		return nil, err
	}
	return contact, nil
}

func (r *contactRepo) Update(ctx context.Context, contact *models.Contact) error {
	return r.db.WithContext(ctx).Save(contact).Error
}

func (r *contactRepo) SetMetadata(ctx context.Context, id uuid.UUID, key string, value string) error {
	return r.db.WithContext(ctx).
		Model(&models.Contact{}).
		Where("id = ?", id).
		Update("metadata", gorm.Expr("COALESCE(metadata, '{}'::jsonb) || jsonb_build_object(?::text, ?::text)", key, value)).
		Error
}
