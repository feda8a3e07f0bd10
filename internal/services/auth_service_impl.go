package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"whatsdesk/internal/auth"
	apperrors "whatsdesk/internal/errors"
	"whatsdesk/internal/models"
	"whatsdesk/internal/repositories"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type authServiceImpl struct {
	users  repositories.UserRepository
	tokens *auth.JWTService
	logger *zap.Logger
}

func NewAuthService(users repositories.UserRepository, tokens *auth.JWTService, logger *zap.Logger) AuthService {
	return &authServiceImpl{
		users:  users,
		tokens: tokens,
		logger: logger.Named("auth"),
	}
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (s *authServiceImpl) Login(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, apperrors.ErrInvalidCredentials
	case err != nil:
		return nil, fmt.Errorf("find operator %s: %w", email, err)
	}

	// inactive and wrong password look the same to the caller
	if !user.IsActive || !user.CheckPassword(password) {
		s.logger.Info("login rejected", zap.String("user_id", user.ID.String()))
		return nil, apperrors.ErrInvalidCredentials
	}

	session, err := s.startSession(ctx, user)
	if err != nil {
		return nil, err
	}
	s.logger.Info("operator signed in",
		zap.String("user_id", user.ID.String()),
		zap.String("workspace_id", user.WorkspaceID.String()),
		zap.String("role", string(user.Role)),
	)
	return session, nil
}

func (s *authServiceImpl) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	claims, err := s.tokens.ValidateRefreshToken(refreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) {
			return nil, apperrors.ErrTokenExpired
		}
		return nil, apperrors.ErrInvalidToken
	}

	user, err := s.activeUser(ctx, claims.WorkspaceID, claims.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrInvalidToken
		}
		return nil, err
	}

	if user.RefreshTokenHash == nil || *user.RefreshTokenHash != hashToken(refreshToken) {
		s.logger.Warn("stale refresh token presented", zap.String("user_id", user.ID.String()))
		return nil, apperrors.ErrInvalidToken
	}
	return s.startSession(ctx, user)
}

func (s *authServiceImpl) CurrentUser(ctx context.Context, workspaceID, userID uuid.UUID) (*models.User, error) {
	return s.activeUser(ctx, workspaceID, userID)
}

func (s *authServiceImpl) Logout(ctx context.Context, workspaceID, userID uuid.UUID) error {
	user, err := s.activeUser(ctx, workspaceID, userID)
	if err != nil {
		return err
	}
	if user.RefreshTokenHash == nil {
		return nil
	}

	user.RefreshTokenHash = nil
	if err := s.users.SaveSession(ctx, user); err != nil {
		return fmt.Errorf("clear refresh token: %w", err)
	}
	s.logger.Info("operator signed out", zap.String("user_id", userID.String()))
	return nil
}

// activeUser treats deactivated operators and foreign workspaces as missing
func (s *authServiceImpl) activeUser(ctx context.Context, workspaceID, userID uuid.UUID) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, apperrors.ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("find operator %s: %w", userID, err)
	}
	if !user.IsActive || user.WorkspaceID != workspaceID {
		return nil, apperrors.ErrNotFound
	}
	return user, nil
}

// startSession signs a pair and keeps the refresh hash. If the hash cannot
// be saved the operator is still signed in but the refresh will fail later.
func (s *authServiceImpl) startSession(ctx context.Context, user *models.User) (*Session, error) {
	pair, err := s.tokens.GenerateTokenPair(user)
	if err != nil {
		return nil, fmt.Errorf("sign tokens: %w", err)
	}

	hash := hashToken(pair.RefreshToken)
	user.RefreshTokenHash = &hash
	user.UpdateLastSeen()
	if err := s.users.SaveSession(ctx, user); err != nil {
		s.logger.Error("store refresh hash failed",
			zap.Error(err),
			zap.String("user_id", user.ID.String()),
		)
	}

	return &Session{
		User:         user,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    int(s.tokens.AccessTTL().Seconds()),
	}, nil
}
