package repositories

import (
	"whatsdesk/internal/models"

	"gorm.io/gorm"
)

type departmentRepo struct {
	gormRepo[models.Department]
}

func NewDepartmentRepository(db *gorm.DB) DepartmentRepository {
	return &departmentRepo{gormRepo[models.Department]{db: db}}
}
