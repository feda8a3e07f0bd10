package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	apperrors "whatsdesk/internal/errors"
	"whatsdesk/internal/models"
	"whatsdesk/internal/repositories/mocks"
	"whatsdesk/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeAuth struct {
	user      *models.User
	err       error
	loggedOut []uuid.UUID
}

func (f *fakeAuth) Login(context.Context, string, string) (*services.Session, error) {
	return nil, apperrors.ErrInvalidCredentials
}

func (f *fakeAuth) Refresh(context.Context, string) (*services.Session, error) {
	return nil, apperrors.ErrInvalidToken
}

func (f *fakeAuth) CurrentUser(_ context.Context, workspaceID, _ uuid.UUID) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.user.WorkspaceID != workspaceID {
		return nil, apperrors.ErrNotFound
	}
	return f.user, nil
}

func (f *fakeAuth) Logout(_ context.Context, _, userID uuid.UUID) error {
	f.loggedOut = append(f.loggedOut, userID)
	return f.err
}

func authRouter(op operator, svc services.AuthService, workspaces *mocks.WorkspaceRepository) *gin.Engine {
	r := gin.New()
	pass := func(c *gin.Context) { c.Next() }
	NewAuthHandler(svc, workspaces, false, time.Hour, zap.NewNop()).RegisterRoutes(r.Group("/api/v1"), op.middleware(), pass)
	return r
}

func TestMe_IncludesWorkspace(t *testing.T) {
	op := newOperator(models.RoleOperator)
	user := &models.User{WorkspaceID: op.WorkspaceID, Email: "ana@acme.test", Name: "Ana", Role: models.RoleOperator}
	user.ID = op.UserID
	ws := &models.Workspace{Name: "Acme", Slug: "acme", Settings: models.WorkspaceSettings{Timezone: "America/Sao_Paulo"}}
	ws.ID = op.WorkspaceID

	workspaces := &mocks.WorkspaceRepository{}
	workspaces.On("FindByID", mock.Anything, op.WorkspaceID).Return(ws, nil)

	w := doJSON(authRouter(op, &fakeAuth{user: user}, workspaces), http.MethodGet, "/api/v1/auth/me", nil)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := decodeBody(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "ana@acme.test", data["user"].(map[string]interface{})["email"])
	workspace := data["workspace"].(map[string]interface{})
	assert.Equal(t, "acme", workspace["slug"])
	assert.Equal(t, "America/Sao_Paulo", workspace["settings"].(map[string]interface{})["timezone"])
}

func TestMe_ForeignUserIsNotFound(t *testing.T) {
	op := newOperator(models.RoleOperator)
	user := &models.User{WorkspaceID: uuid.New()}
	workspaces := &mocks.WorkspaceRepository{}

	w := doJSON(authRouter(op, &fakeAuth{user: user}, workspaces), http.MethodGet, "/api/v1/auth/me", nil)

	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "User not found", decodeBody(t, w)["error"].(map[string]interface{})["message"])
	workspaces.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}

func TestLogout_ClearsCookiesEvenOnFailure(t *testing.T) {
	op := newOperator(models.RoleAdmin)
	svc := &fakeAuth{err: errors.New("db down")}

	w := doJSON(authRouter(op, svc, &mocks.WorkspaceRepository{}), http.MethodPost, "/api/v1/auth/logout", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []uuid.UUID{op.UserID}, svc.loggedOut)

	cleared := map[string]bool{}
	for _, c := range w.Result().Cookies() {
		if c.MaxAge < 0 {
			cleared[c.Name] = true
		}
	}
	assert.True(t, cleared["access_token"])
	assert.True(t, cleared[RefreshTokenCookie])
}
