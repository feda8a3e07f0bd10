package handlers

import (
	"net/http"
	"time"

	"whatsdesk/internal/dto"
	apperrors "whatsdesk/internal/errors"
	"whatsdesk/internal/middleware"
	"whatsdesk/internal/models"
	"whatsdesk/internal/repositories"
	"whatsdesk/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ===========================================================================
// Auth Handler
// Operator login, refresh, me, logout. Tokens travel in httpOnly cookies and
// are also returned in the body for API clients using bearer auth.
// ===========================================================================

const RefreshTokenCookie = "refresh_token"

type AuthHandler struct {
	authService services.AuthService
	workspaces  repositories.WorkspaceRepository

	// secureCookies set in production (HTTPS only)
	secureCookies bool
	refreshTTL    time.Duration
	logger        *zap.Logger
}

func NewAuthHandler(
	authService services.AuthService,
	workspaces repositories.WorkspaceRepository,
	secureCookies bool,
	refreshTTL time.Duration,
	logger *zap.Logger,
) *AuthHandler {
	return &AuthHandler{
		authService:   authService,
		workspaces:    workspaces,
		secureCookies: secureCookies,
		refreshTTL:    refreshTTL,
		logger:        logger,
	}
}

// ===========================================================================
// Request/Response DTOs
// ===========================================================================

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type LoginResponse struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	ExpiresIn    int           `json:"expires_in"`
	User         *UserResponse `json:"user"`
}

// UserResponse user data without credentials
type UserResponse struct {
	ID          string  `json:"id"`
	Email       string  `json:"email"`
	Name        string  `json:"name"`
	Role        string  `json:"role"`
	WorkspaceID string  `json:"workspace_id"`
	AvatarURL   *string `json:"avatar_url,omitempty"`
}

type WorkspaceResponse struct {
	ID       string                   `json:"id"`
	Name     string                   `json:"name"`
	Slug     string                   `json:"slug"`
	Settings models.WorkspaceSettings `json:"settings"`
}

type MeResponse struct {
	User      *UserResponse      `json:"user"`
	Workspace *WorkspaceResponse `json:"workspace"`
}

// RefreshRequest body alternative to the refresh cookie
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func newLoginResponse(s *services.Session) *LoginResponse {
	return &LoginResponse{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		ExpiresIn:    s.ExpiresIn,
		User:         newUserResponse(s.User),
	}
}

func newUserResponse(u *models.User) *UserResponse {
	return &UserResponse{
		ID:          u.ID.String(),
		Email:       u.Email,
		Name:        u.Name,
		Role:        string(u.Role),
		WorkspaceID: u.WorkspaceID.String(),
		AvatarURL:   u.AvatarURL,
	}
}

// ===========================================================================
// Handlers
// ===========================================================================

// Login POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	session, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, dto.Error("INVALID_CREDENTIALS", "Invalid email or password"))
			return
		}
		respondError(c, h.logger, err, "User")
		return
	}

	h.setSession(c, session)
	c.JSON(http.StatusOK, dto.Success(newLoginResponse(session)))
}

// Refresh POST /auth/refresh (cookie or body token)
func (h *AuthHandler) Refresh(c *gin.Context) {
	refreshToken, _ := c.Cookie(RefreshTokenCookie)
	if refreshToken == "" {
		var req RefreshRequest
		if err := c.ShouldBindJSON(&req); err == nil {
			refreshToken = req.RefreshToken
		}
	}
	if refreshToken == "" {
		c.JSON(http.StatusUnauthorized, dto.Error("NO_TOKEN", "Refresh token is missing"))
		return
	}

	session, err := h.authService.Refresh(c.Request.Context(), refreshToken)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrTokenExpired) {
			h.clearSession(c)
		}
		respondError(c, h.logger, err, "User")
		return
	}

	h.setSession(c, session)
	c.JSON(http.StatusOK, dto.Success(newLoginResponse(session)))
}

// Me GET /auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, dto.Error("UNAUTHORIZED", "Not logged in"))
		return
	}

	ctx := c.Request.Context()
	user, err := h.authService.CurrentUser(ctx, workspaceID(c), userID)
	if err != nil {
		respondError(c, h.logger, err, "User")
		return
	}
	ws, err := h.workspaces.FindByID(ctx, user.WorkspaceID)
	if err != nil {
		respondError(c, h.logger, err, "Workspace")
		return
	}

	c.JSON(http.StatusOK, dto.Success(&MeResponse{
		User: newUserResponse(user),
		Workspace: &WorkspaceResponse{
			ID:       ws.ID.String(),
			Name:     ws.Name,
			Slug:     ws.Slug,
			Settings: ws.Settings,
		},
	}))
}

// Logout POST /auth/logout. Cookies are cleared even when the revoke fails.
func (h *AuthHandler) Logout(c *gin.Context) {
	if userID, ok := middleware.GetUserID(c); ok {
		if err := h.authService.Logout(c.Request.Context(), workspaceID(c), userID); err != nil {
			h.logger.Warn("logout failed",
				zap.String("request_id", middleware.GetRequestID(c)),
				zap.Error(err),
			)
		}
	}

	h.clearSession(c)
	c.JSON(http.StatusOK, dto.Success(gin.H{"message": "Logged out"}))
}

func (h *AuthHandler) setSession(c *gin.Context, session *services.Session) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AccessTokenCookie, session.AccessToken, session.ExpiresIn, "/", "", h.secureCookies, true)
	c.SetCookie(RefreshTokenCookie, session.RefreshToken, int(h.refreshTTL.Seconds()), "/", "", h.secureCookies, true)

	csrfToken, err := middleware.GenerateCSRFToken()
	if err != nil {
		h.logger.Error("generate csrf token failed", zap.Error(err))
		return
	}
	middleware.SetCSRFCookie(c, csrfToken, h.secureCookies)
}

func (h *AuthHandler) clearSession(c *gin.Context) {
	c.SetCookie(middleware.AccessTokenCookie, "", -1, "/", "", h.secureCookies, true)
	c.SetCookie(RefreshTokenCookie, "", -1, "/", "", h.secureCookies, true)
	c.SetCookie(middleware.CSRFCookieName, "", -1, "/", "", h.secureCookies, false)
}

// ===========================================================================
// Route Registration
// ===========================================================================

func (h *AuthHandler) RegisterRoutes(rg *gin.RouterGroup, authMiddleware, loginLimiter gin.HandlerFunc) {
	auth := rg.Group("/auth")
	{
		auth.POST("/login", loginLimiter, h.Login)
		auth.POST("/refresh", h.Refresh)

		auth.GET("/me", authMiddleware, h.Me)
		auth.POST("/logout", authMiddleware, h.Logout)
	}
}
