package repositories

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ===========================================================================
// Repository Base Interfaces and Types
// ===========================================================================

// FindOptions paging, ordering and filters for list queries
type FindOptions struct {
	Offset int
	Limit  int

	// OrderBy column to sort by; OrderDir "asc" or "desc"
	OrderBy  string
	OrderDir string

	Preloads []string
	Filters  map[string]interface{}
}

func (o *FindOptions) SetDefaults() {
	if o.Limit == 0 {
		o.Limit = 20
	}
	if o.OrderBy == "" {
		o.OrderBy = "created_at"
	}
	if o.OrderDir == "" {
		o.OrderDir = "desc"
	}
}

// GetOrderClause ORDER BY expression
func (o *FindOptions) GetOrderClause() string {
	return o.OrderBy + " " + o.OrderDir
}

// ===========================================================================
// Generic Repository Interface
// ===========================================================================

// Repository CRUD shared by every workspace owned entity
type Repository[T any] interface {
	FindByID(ctx context.Context, id uuid.UUID) (*T, error)

	// FindInWorkspace like FindByID but a row of another workspace is not found
	FindInWorkspace(ctx context.Context, workspaceID, id uuid.UUID) (*T, error)

	ListByWorkspace(ctx context.Context, workspaceID uuid.UUID) ([]T, error)

	Create(ctx context.Context, entity *T) error
	Update(ctx context.Context, entity *T) error

	// Delete soft deletes when the model has DeletedAt; gorm.ErrRecordNotFound when nothing matched
	Delete(ctx context.Context, workspaceID, id uuid.UUID) error
}

// gormRepo generic GORM implementation embedded by the concrete repositories
type gormRepo[T any] struct {
	db *gorm.DB
}

func (r *gormRepo[T]) FindByID(ctx context.Context, id uuid.UUID) (*T, error) {
	var entity T
	if err := r.db.WithContext(ctx).First(&entity, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &entity, nil
}

func (r *gormRepo[T]) FindInWorkspace(ctx context.Context, workspaceID, id uuid.UUID) (*T, error) {
	var entity T
	err := r.db.WithContext(ctx).
		Where("workspace_id = ? AND id = ?", workspaceID, id).
		First(&entity).Error
	if err != nil {
		return nil, err
	}
	return &entity, nil
}

func (r *gormRepo[T]) ListByWorkspace(ctx context.Context, workspaceID uuid.UUID) ([]T, error) {
	var entities []T
	err := r.db.WithContext(ctx).
		Where("workspace_id = ?", workspaceID).
		Order("created_at ASC").
		Find(&entities).Error
	return entities, err
}

func (r *gormRepo[T]) Create(ctx context.Context, entity *T) error {
	return r.db.WithContext(ctx).Create(entity).Error
}

func (r *gormRepo[T]) Update(ctx context.Context, entity *T) error {
	return r.db.WithContext(ctx).Save(entity).Error
}

func (r *gormRepo[T]) Delete(ctx context.Context, workspaceID, id uuid.UUID) error {
	var entity T
	res := r.db.WithContext(ctx).
		Where("workspace_id = ? AND id = ?", workspaceID, id).
		Delete(&entity)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
