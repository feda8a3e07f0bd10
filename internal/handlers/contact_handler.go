package handlers

import (
	"net/http"
	"strings"
	"unicode"

	"whatsdesk/internal/dto"
	"whatsdesk/internal/phone"
	"whatsdesk/internal/repositories"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ===========================================================================
// Contact Handler
// Contacts are created by ingestion; operators only rename and tag them
// ===========================================================================

type ContactHandler struct {
	contactRepo repositories.ContactRepository
	logger      *zap.Logger
}

func NewContactHandler(contactRepo repositories.ContactRepository, logger *zap.Logger) *ContactHandler {
	return &ContactHandler{contactRepo: contactRepo, logger: logger}
}

// UpdateContactRequest an empty name clears the manual name so the push name shows again
type UpdateContactRequest struct {
	Name *string   `json:"name" binding:"omitempty,max=255"`
	Tags *[]string `json:"tags" binding:"omitempty,max=50,dive,min=1,max=50"`
}

// List GET /contacts?search=&instance_id=&page=&limit=
func (h *ContactHandler) List(c *gin.Context) {
	page := pagination(c, 20)
	opts := repositories.FindOptions{
		Offset:   page.Offset(),
		Limit:    page.Limit,
		OrderBy:  "updated_at",
		OrderDir: "desc",
		Filters:  make(map[string]interface{}),
	}

	instanceID, ok := optionalUUID(c.Query("instance_id"))
	if !ok {
		badRequest(c, "invalid instance_id")
		return
	}
	if instanceID != nil {
		opts.Filters["instance_id"] = *instanceID
	}
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		// phone searches match the stored digits-only form
		if !strings.ContainsFunc(search, unicode.IsLetter) {
			if digits := phone.Normalize(search); digits != "" {
				search = digits
			}
		}
		opts.Filters["search"] = search
	}

	contacts, total, err := h.contactRepo.FindByWorkspace(c.Request.Context(), workspaceID(c), opts)
	if err != nil {
		respondError(c, h.logger, err, "Contact")
		return
	}
	c.JSON(http.StatusOK, dto.SuccessWithMeta(contacts, dto.NewMeta(page.Page, page.Limit, total)))
}

// Get GET /contacts/:id
func (h *ContactHandler) Get(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	contact, err := h.contactRepo.FindInWorkspace(c.Request.Context(), workspaceID(c), id)
	if err != nil {
		respondError(c, h.logger, err, "Contact")
		return
	}
	c.JSON(http.StatusOK, dto.Success(contact))
}

// Update PATCH /contacts/:id
func (h *ContactHandler) Update(c *gin.Context) {
	ctx := c.Request.Context()

	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req UpdateContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	contact, err := h.contactRepo.FindInWorkspace(ctx, workspaceID(c), id)
	if err != nil {
		respondError(c, h.logger, err, "Contact")
		return
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			contact.Name = nil
		} else {
			contact.Name = &name
		}
	}
	if req.Tags != nil {
		contact.Tags = normalizeTags(*req.Tags)
	}

	if err := h.contactRepo.Update(ctx, contact); err != nil {
		respondError(c, h.logger, err, "Contact")
		return
	}
	c.JSON(http.StatusOK, dto.Success(contact))
}

// normalizeTags trims, lower-cases and de-duplicates keeping the first occurrence order
func normalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func (h *ContactHandler) RegisterRoutes(rg *gin.RouterGroup) {
	contacts := rg.Group("/contacts")
	{
		contacts.GET("", h.List)
		contacts.GET("/:id", h.Get)
		contacts.PATCH("/:id", h.Update)
	}
}
