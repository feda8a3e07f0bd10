package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"whatsdesk/internal/dto"
	apperrors "whatsdesk/internal/errors"
	"whatsdesk/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ===========================================================================
// Error Helpers
// Dashboard routes answer the dto.Response envelope, function and webhook
// routes the flat {"error": "..."} body
// ===========================================================================

// respondError maps a service or repository error onto the dashboard envelope
func respondError(c *gin.Context, logger *zap.Logger, err error, entity string) {
	status := apperrors.StatusCode(err)
	fields := []zap.Field{
		zap.String("request_id", middleware.GetRequestID(c)),
		zap.String("entity", entity),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", fields...)
	} else {
		logger.Debug("request rejected", fields...)
	}

	var appErr *apperrors.AppError
	message := apperrors.PublicMessage(err)
	if !errors.As(err, &appErr) {
		switch status {
		case http.StatusNotFound:
			message = entity + " not found"
		case http.StatusConflict:
			message = entity + " conflicts with an existing record"
		}
	}
	c.JSON(status, dto.Error(apperrors.ErrorCode(err), message))
}

// respondFunctionError flat error body with the mapped status (400, 401, 404,
// 429, 402, 500)
func respondFunctionError(c *gin.Context, logger *zap.Logger, err error) {
	status := apperrors.StatusCode(err)
	if status >= http.StatusInternalServerError {
		logger.Error("function failed",
			zap.String("request_id", middleware.GetRequestID(c)),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	c.JSON(status, dto.FunctionError(apperrors.PublicMessage(err)))
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, dto.Error("INVALID_REQUEST", message))
}

// ===========================================================================
// Request Helpers
// ===========================================================================

// idParam parses a uuid path parameter, answering 400 when malformed
func idParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// workspaceID of the authenticated operator
func workspaceID(c *gin.Context) uuid.UUID {
	id, _ := middleware.GetWorkspaceID(c)
	return id
}

// pagination page/limit from the query string with defaults
func pagination(c *gin.Context, defaultLimit int) dto.PaginationRequest {
	p := dto.PaginationRequest{Limit: defaultLimit}
	if v, err := strconv.Atoi(c.Query("page")); err == nil && v > 0 {
		p.Page = v
	}
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 && v <= 100 {
		p.Limit = v
	}
	p.SetDefaults()
	return p
}

// optionalUUID parses a query value, ok false when present but malformed
func optionalUUID(raw string) (*uuid.UUID, bool) {
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, false
	}
	return &id, true
}
