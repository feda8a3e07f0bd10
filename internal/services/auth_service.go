package services

import (
	"context"

	"whatsdesk/internal/models"

	"github.com/google/uuid"
)

// ===========================================================================
// Operator sessions
// ===========================================================================

// Session issued tokens for one operator. RefreshToken is only ever stored
// hashed on the user row.
type Session struct {
	User         *models.User
	AccessToken  string
	RefreshToken string
	ExpiresIn    int // seconds
}

// AuthService signs dashboard operators in and out. Request authentication
// itself happens in middleware against the JWT service.
type AuthService interface {
	Login(ctx context.Context, email, password string) (*Session, error)

	// Refresh rotates the pair. A refresh token works once.
	Refresh(ctx context.Context, refreshToken string) (*Session, error)

	// CurrentUser loads the token's user, which must still be active and
	// belong to the token's workspace.
	CurrentUser(ctx context.Context, workspaceID, userID uuid.UUID) (*models.User, error)

	Logout(ctx context.Context, workspaceID, userID uuid.UUID) error
}
