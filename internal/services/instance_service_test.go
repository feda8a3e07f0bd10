package services

import (
	"bytes"
	"context"
	"testing"
	"time"

	apperrors "whatsdesk/internal/errors"
	"whatsdesk/internal/models"
	"whatsdesk/internal/provider"
	"whatsdesk/internal/repositories"
	"whatsdesk/internal/repositories/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newInstanceFixture(p *provider.MockProvider) (*mocks.InstanceRepository, *fakePublisher, InstanceService) {
	repo := &mocks.InstanceRepository{}
	pub := &fakePublisher{}
	svc := NewInstanceService(repo, registryWith(p), pub, zap.NewNop())
	svc.(*instanceService).now = func() time.Time { return fixedNow }
	return repo, pub, svc
}

func TestInstance_SyncStatusesCountsChanges(t *testing.T) {
	p := provider.NewMockProvider(models.ProviderEvolution, zap.NewNop())
	p.State = provider.ConnectionInfo{Status: models.InstanceConnected, PhoneNumber: "+55 11 90000-0001"}
	repo, pub, svc := newInstanceFixture(p)

	unchanged := *testInstance(models.ProviderEvolution)
	unchanged.PhoneNumber = "5511900000001"
	pending := *testInstance(models.ProviderEvolution)
	pending.Status = models.InstanceQRPending
	pending.QRCode = "2@abc"
	unsupported := *testInstance(models.ProviderGupshup)

	repo.On("ListForStatusSync", mock.Anything).Return([]models.Instance{unchanged, pending, unsupported}, nil)
	repo.On("UpdateStatus", mock.Anything, pending.ID, repositories.InstanceStatusUpdate{
		Status:      models.InstanceConnected,
		PhoneNumber: "5511900000001",
		At:          fixedNow,
	}).Return(nil).Once()

	changed, err := svc.SyncStatuses(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	require.Len(t, pub.instances, 1)
	assert.Equal(t, "connected", pub.instances[0].Status)
	assert.False(t, pub.instances[0].HasQRCode)
	repo.AssertExpectations(t)
}

func TestInstance_ConnectStoresQRCode(t *testing.T) {
	p := provider.NewMockProvider(models.ProviderWAPI, zap.NewNop())
	p.State = provider.ConnectionInfo{Status: models.InstanceQRPending, QRCode: "2@pairing"}
	repo, pub, svc := newInstanceFixture(p)

	inst := testInstance(models.ProviderWAPI)
	inst.Status = models.InstanceDisconnected
	repo.On("FindInWorkspace", mock.Anything, inst.WorkspaceID, inst.ID).Return(inst, nil)
	repo.On("UpdateStatus", mock.Anything, inst.ID, mock.AnythingOfType("repositories.InstanceStatusUpdate")).Return(nil)

	got, err := svc.Connect(context.Background(), inst.WorkspaceID, inst.ID)
	require.NoError(t, err)

	assert.Equal(t, models.InstanceQRPending, got.Status)
	assert.Equal(t, "2@pairing", got.QRCode)
	require.Len(t, pub.instances, 1)
	assert.True(t, pub.instances[0].HasQRCode)
}

func TestInstance_QRCodePNG(t *testing.T) {
	p := provider.NewMockProvider(models.ProviderEvolution, zap.NewNop())
	repo, _, svc := newInstanceFixture(p)

	inst := testInstance(models.ProviderEvolution)
	inst.QRCode = "2@Xk9aPq,abcDEF==,xyz=="
	repo.On("FindInWorkspace", mock.Anything, inst.WorkspaceID, inst.ID).Return(inst, nil)

	png, err := svc.QRCodePNG(context.Background(), inst.WorkspaceID, inst.ID, 5000)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
}

func TestInstance_QRCodeFromDataURL(t *testing.T) {
	p := provider.NewMockProvider(models.ProviderEvolution, zap.NewNop())
	repo, _, svc := newInstanceFixture(p)

	inst := testInstance(models.ProviderEvolution)
	inst.QRCode = "data:image/png;base64,iVBORw0KGgo="
	repo.On("FindInWorkspace", mock.Anything, inst.WorkspaceID, inst.ID).Return(inst, nil)

	png, err := svc.QRCodePNG(context.Background(), inst.WorkspaceID, inst.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG\r\n\x1a\n"), png)
}

func TestInstance_QRCodeMissing(t *testing.T) {
	p := provider.NewMockProvider(models.ProviderEvolution, zap.NewNop())
	repo, _, svc := newInstanceFixture(p)

	inst := testInstance(models.ProviderEvolution)
	repo.On("FindInWorkspace", mock.Anything, inst.WorkspaceID, inst.ID).Return(inst, nil)

	_, err := svc.QRCodePNG(context.Background(), inst.WorkspaceID, inst.ID, 0)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestInstance_CreateValidation(t *testing.T) {
	p := provider.NewMockProvider(models.ProviderEvolution, zap.NewNop())
	repo, _, svc := newInstanceFixture(p)

	err := svc.Create(context.Background(), &models.Instance{Name: "Sales", ExternalID: "acme", Provider: models.ProviderGupshup})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	err = svc.Create(context.Background(), &models.Instance{Name: " ", ExternalID: "acme", Provider: models.ProviderEvolution})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)

	repo.On("Create", mock.Anything, mock.AnythingOfType("*models.Instance")).Return(nil)
	inst := &models.Instance{Name: "Sales", ExternalID: " acme ", Provider: models.ProviderEvolution, QRCode: "stale"}
	require.NoError(t, svc.Create(context.Background(), inst))
	assert.Equal(t, "acme", inst.ExternalID)
	assert.Equal(t, models.InstanceDisconnected, inst.Status)
	assert.Empty(t, inst.QRCode)
}
