package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	apperrors "whatsdesk/internal/errors"
	"whatsdesk/internal/models"
	"whatsdesk/internal/phone"
	"whatsdesk/internal/provider"
	"whatsdesk/internal/realtime"
	"whatsdesk/internal/repositories"

	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
	"github.com/vincent-petithory/dataurl"
	"go.uber.org/zap"
)

// ===========================================================================
// Instance Service Implementation
// ===========================================================================

const (
	defaultQRSize = 256
	maxQRSize     = 1024
)

type instanceService struct {
	repo     repositories.InstanceRepository
	registry *provider.Registry
	followUp
	now    func() time.Time
	logger *zap.Logger
}

func NewInstanceService(
	repo repositories.InstanceRepository,
	registry *provider.Registry,
	publisher realtime.Publisher,
	logger *zap.Logger,
) InstanceService {
	logger = logger.Named("instances")
	return &instanceService{
		repo:     repo,
		registry: registry,
		followUp: followUp{publisher: publisher, logger: logger},
		now:      time.Now,
		logger:   logger,
	}
}

func (s *instanceService) List(ctx context.Context, workspaceID uuid.UUID) ([]models.Instance, error) {
	return s.repo.ListByWorkspace(ctx, workspaceID)
}

func (s *instanceService) Get(ctx context.Context, workspaceID, id uuid.UUID) (*models.Instance, error) {
	inst, err := s.repo.FindInWorkspace(ctx, workspaceID, id)
	if err != nil {
		return nil, notFound(err, "Instance")
	}
	return inst, nil
}

func (s *instanceService) Create(ctx context.Context, inst *models.Instance) error {
	inst.Name = strings.TrimSpace(inst.Name)
	inst.ExternalID = strings.TrimSpace(inst.ExternalID)
	if inst.Name == "" || inst.ExternalID == "" {
		return apperrors.New(apperrors.ErrInvalidInput, "name and external_id are required")
	}
	if !s.registry.Has(inst.Provider) {
		return apperrors.New(apperrors.ErrInvalidInput, fmt.Sprintf("unsupported provider %q", inst.Provider))
	}

	inst.Status = models.InstanceDisconnected
	inst.QRCode = ""
	if err := s.repo.Create(ctx, inst); err != nil {
		return fmt.Errorf("create instance: %w", err)
	}

	s.logger.Info("instance created",
		zap.String("instance_id", inst.ID.String()),
		zap.String("provider", string(inst.Provider)),
	)
	return nil
}

func (s *instanceService) Update(ctx context.Context, workspaceID, id uuid.UUID, upd InstanceUpdate) (*models.Instance, error) {
	inst, err := s.Get(ctx, workspaceID, id)
	if err != nil {
		return nil, err
	}

	if upd.Name != nil {
		inst.Name = strings.TrimSpace(*upd.Name)
	}
	if upd.ExternalID != nil {
		inst.ExternalID = strings.TrimSpace(*upd.ExternalID)
	}
	if upd.APIToken != nil {
		inst.APIToken = *upd.APIToken
	}
	if upd.APIBaseURL != nil {
		inst.APIBaseURL = *upd.APIBaseURL
	}
	if upd.WebhookSecret != nil {
		inst.WebhookSecret = *upd.WebhookSecret
	}
	if upd.UseFlowEngine != nil {
		inst.UseFlowEngine = *upd.UseFlowEngine
	}
	if upd.DepartmentID != nil {
		if *upd.DepartmentID == uuid.Nil {
			inst.DepartmentID = nil
		} else {
			inst.DepartmentID = upd.DepartmentID
		}
	}
	if inst.Name == "" || inst.ExternalID == "" {
		return nil, apperrors.New(apperrors.ErrInvalidInput, "name and external_id are required")
	}

	if err := s.repo.Update(ctx, inst); err != nil {
		return nil, fmt.Errorf("update instance: %w", err)
	}
	return inst, nil
}

func (s *instanceService) Delete(ctx context.Context, workspaceID, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, workspaceID, id); err != nil {
		return notFound(err, "Instance")
	}
	s.logger.Info("instance deleted", zap.String("instance_id", id.String()))
	return nil
}

func (s *instanceService) Connect(ctx context.Context, workspaceID, id uuid.UUID) (*models.Instance, error) {
	inst, err := s.Get(ctx, workspaceID, id)
	if err != nil {
		return nil, err
	}
	prov, err := s.registry.Get(inst.Provider)
	if err != nil {
		return nil, err
	}

	info, err := prov.Connect(ctx, inst)
	if err != nil {
		return nil, err
	}
	if err := s.apply(ctx, inst, info); err != nil {
		return nil, err
	}
	return inst, nil
}

func (s *instanceService) SyncStatus(ctx context.Context, workspaceID, id uuid.UUID) (*models.Instance, error) {
	inst, err := s.Get(ctx, workspaceID, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.sync(ctx, inst); err != nil {
		return nil, err
	}
	return inst, nil
}

func (s *instanceService) SyncStatuses(ctx context.Context) (int, error) {
	instances, err := s.repo.ListForStatusSync(ctx)
	if err != nil {
		return 0, fmt.Errorf("list instances for status sync: %w", err)
	}

	changed := 0
	for i := range instances {
		if ctx.Err() != nil {
			return changed, ctx.Err()
		}
		ok, err := s.sync(ctx, &instances[i])
		if err != nil {
			s.logger.Warn("instance status sync failed",
				zap.String("instance_id", instances[i].ID.String()),
				zap.Error(err),
			)
			continue
		}
		if ok {
			changed++
		}
	}
	return changed, nil
}

// sync returns true when the provider state differed from the stored one
func (s *instanceService) sync(ctx context.Context, inst *models.Instance) (bool, error) {
	prov, err := s.registry.Get(inst.Provider)
	if err != nil {
		return false, err
	}
	info, err := prov.ConnectionState(ctx, inst)
	if err != nil {
		return false, err
	}

	same := info.Status == inst.Status &&
		(info.QRCode == "" || info.QRCode == inst.QRCode) &&
		(info.PhoneNumber == "" || phone.Normalize(info.PhoneNumber) == inst.PhoneNumber)
	if same {
		return false, nil
	}
	return true, s.apply(ctx, inst, info)
}

func (s *instanceService) apply(ctx context.Context, inst *models.Instance, info *provider.ConnectionInfo) error {
	if info.Status == "" {
		return fmt.Errorf("%w: provider reported no connection state", apperrors.ErrExternal)
	}
	if err := applyConnection(ctx, s.repo, inst, *info, s.now()); err != nil {
		return fmt.Errorf("update instance status: %w", err)
	}
	s.instanceChanged(ctx, inst)
	return nil
}

func (s *instanceService) QRCodePNG(ctx context.Context, workspaceID, id uuid.UUID, size int) ([]byte, error) {
	inst, err := s.Get(ctx, workspaceID, id)
	if err != nil {
		return nil, err
	}
	if inst.QRCode == "" {
		return nil, apperrors.New(apperrors.ErrNotFound, "Instance has no pairing code")
	}

	// some providers hand out the rendered image instead of the payload
	if strings.HasPrefix(inst.QRCode, "data:") {
		du, err := dataurl.DecodeString(inst.QRCode)
		if err != nil {
			return nil, fmt.Errorf("%w: stored qr image: %v", apperrors.ErrExternal, err)
		}
		return du.Data, nil
	}

	if size <= 0 {
		size = defaultQRSize
	}
	if size > maxQRSize {
		size = maxQRSize
	}
	return qrcode.Encode(inst.QRCode, qrcode.Medium, size)
}
