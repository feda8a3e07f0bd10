package repositories

import (
	"context"

	"whatsdesk/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ===========================================================================
// Instance Repository GORM Implementation
// ===========================================================================

type instanceRepo struct {
	gormRepo[models.Instance]
}

func NewInstanceRepository(db *gorm.DB) InstanceRepository {
	return &instanceRepo{gormRepo[models.Instance]{db: db}}
}

func (r *instanceRepo) FindByExternalID(ctx context.Context, provider models.ProviderType, externalID string) (*models.Instance, error) {
	var inst models.Instance
	err := r.db.WithContext(ctx).
		Where("provider = ? AND external_id = ?", provider, externalID).
		Order("created_at ASC").
		First(&inst).Error
	if err != nil {
		return nil, err
	}
	return &inst, nil
}

func (r *instanceRepo) ListForStatusSync(ctx context.Context) ([]models.Instance, error) {
	var instances []models.Instance
	err := r.db.WithContext(ctx).
		Where("status IN ?", []models.InstanceStatus{
			models.InstanceConnecting, models.InstanceQRPending, models.InstanceConnected,
		}).
		Find(&instances).Error
	return instances, err
}

// UpdateStatus leaving qr_pending for connected or disconnected drops the pairing payload
func (r *instanceRepo) UpdateStatus(ctx context.Context, id uuid.UUID, upd InstanceStatusUpdate) error {
	fields := map[string]interface{}{
		"status":         upd.Status,
		"last_status_at": upd.At,
	}
	if upd.PhoneNumber != "" {
		fields["phone_number"] = upd.PhoneNumber
	}
	switch {
	case upd.QRCode != "":
		fields["qr_code"] = upd.QRCode
	case upd.Status == models.InstanceConnected || upd.Status == models.InstanceDisconnected:
		fields["qr_code"] = ""
	}

	res := r.db.WithContext(ctx).
		Model(&models.Instance{}).
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
