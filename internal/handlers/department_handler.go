package handlers

import (
	"net/http"

	"whatsdesk/internal/dto"
	"whatsdesk/internal/middleware"
	"whatsdesk/internal/models"
	"whatsdesk/internal/repositories"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ===========================================================================
// Department Handler
// ===========================================================================

type DepartmentHandler struct {
	departmentRepo repositories.DepartmentRepository
	logger         *zap.Logger
}

func NewDepartmentHandler(departmentRepo repositories.DepartmentRepository, logger *zap.Logger) *DepartmentHandler {
	return &DepartmentHandler{departmentRepo: departmentRepo, logger: logger}
}

type DepartmentRequest struct {
	Name        string  `json:"name" binding:"required,min=1,max=255"`
	Description *string `json:"description"`
	Color       string  `json:"color" binding:"omitempty,hexcolor"`
}

// List GET /departments
func (h *DepartmentHandler) List(c *gin.Context) {
	departments, err := h.departmentRepo.ListByWorkspace(c.Request.Context(), workspaceID(c))
	if err != nil {
		respondError(c, h.logger, err, "Department")
		return
	}
	c.JSON(http.StatusOK, dto.Success(departments))
}

// Create POST /departments
func (h *DepartmentHandler) Create(c *gin.Context) {
	var req DepartmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	dept := &models.Department{
		WorkspaceID: workspaceID(c),
		Name:        req.Name,
		Description: req.Description,
		Color:       req.Color,
	}
	if dept.Color == "" {
		dept.Color = "#6366f1"
	}
	if err := h.departmentRepo.Create(c.Request.Context(), dept); err != nil {
		respondError(c, h.logger, err, "Department")
		return
	}
	c.JSON(http.StatusCreated, dto.Success(dept))
}

// Update PUT /departments/:id
func (h *DepartmentHandler) Update(c *gin.Context) {
	ctx := c.Request.Context()

	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req DepartmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	dept, err := h.departmentRepo.FindInWorkspace(ctx, workspaceID(c), id)
	if err != nil {
		respondError(c, h.logger, err, "Department")
		return
	}

	dept.Name = req.Name
	dept.Description = req.Description
	if req.Color != "" {
		dept.Color = req.Color
	}
	if err := h.departmentRepo.Update(ctx, dept); err != nil {
		respondError(c, h.logger, err, "Department")
		return
	}
	c.JSON(http.StatusOK, dto.Success(dept))
}

// Delete DELETE /departments/:id
func (h *DepartmentHandler) Delete(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	if err := h.departmentRepo.Delete(c.Request.Context(), workspaceID(c), id); err != nil {
		respondError(c, h.logger, err, "Department")
		return
	}
	c.JSON(http.StatusOK, dto.Success(gin.H{"message": "Department deleted"}))
}

func (h *DepartmentHandler) RegisterRoutes(rg *gin.RouterGroup) {
	departments := rg.Group("/departments")
	{
		departments.GET("", h.List)
		departments.POST("", middleware.RequireAdmin(), h.Create)
		departments.PUT("/:id", middleware.RequireAdmin(), h.Update)
		departments.DELETE("/:id", middleware.RequireAdmin(), h.Delete)
	}
}
