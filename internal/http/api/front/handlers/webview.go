package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	portalhttp "github.com/router-for-me/StationPortal/internal/http"
	"github.com/router-for-me/StationPortal/internal/http/api/schema"
	"github.com/router-for-me/StationPortal/internal/models"
	"gorm.io/gorm"
)

// WebViewHandler manages embeddable dashboard links.
type WebViewHandler struct {
	db *gorm.DB
}

// NewWebViewHandler constructs a WebViewHandler.
func NewWebViewHandler(db *gorm.DB) *WebViewHandler {
	return &WebViewHandler{db: db}
}

// ListActive returns active links for viewers.
func (h *WebViewHandler) ListActive(c *gin.Context) {
	h.list(c, true)
}

// ListAll returns every link for editors.
func (h *WebViewHandler) ListAll(c *gin.Context) {
	h.list(c, false)
}

func (h *WebViewHandler) list(c *gin.Context, activeOnly bool) {
	q := h.db.WithContext(c.Request.Context()).Model(&models.WebViewLink{})
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var rows []models.WebViewLink
	if errFind := q.Order("id ASC").Find(&rows).Error; errFind != nil {
		portalhttp.Error(c, http.StatusInternalServerError, "list links failed")
		return
	}
	out := make([]schema.WebViewLink, 0, len(rows))
	for _, row := range rows {
		out = append(out, schema.FromWebViewLink(row))
	}
	c.JSON(http.StatusOK, out)
}

// webViewRequest is the create and update body. Update applies only set fields.
type webViewRequest struct {
	Title    *string `json:"title"`
	URL      *string `json:"url"`
	IsActive *bool   `json:"is_active"`
}

// Create adds a link. Title and url are required; is_active defaults to true.
func (h *WebViewHandler) Create(c *gin.Context) {
	var body webViewRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		portalhttp.Error(c, http.StatusBadRequest, "invalid json")
		return
	}
	if body.Title == nil || strings.TrimSpace(*body.Title) == "" {
		portalhttp.Error(c, http.StatusBadRequest, "title is required")
		return
	}
	if body.URL == nil || !validLinkURL(*body.URL) {
		portalhttp.Error(c, http.StatusBadRequest, "url must be an absolute http(s) URL")
		return
	}
	link := models.WebViewLink{Title: strings.TrimSpace(*body.Title), URL: strings.TrimSpace(*body.URL), IsActive: true}
	ctx := c.Request.Context()
	if errCreate := h.db.WithContext(ctx).Create(&link).Error; errCreate != nil {
		portalhttp.Error(c, http.StatusInternalServerError, "create link failed")
		return
	}
	if body.IsActive != nil && !*body.IsActive {
		if errUpdate := h.db.WithContext(ctx).Model(&link).Update("is_active", false).Error; errUpdate != nil {
			portalhttp.Error(c, http.StatusInternalServerError, "create link failed")
			return
		}
		link.IsActive = false
	}
	c.JSON(http.StatusCreated, schema.FromWebViewLink(link))
}

// Update changes the provided fields of a link.
func (h *WebViewHandler) Update(c *gin.Context) {
	id, ok := portalhttp.ParseID(c, "id")
	if !ok {
		portalhttp.Error(c, http.StatusBadRequest, "invalid id")
		return
	}
	var body webViewRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		portalhttp.Error(c, http.StatusBadRequest, "invalid json")
		return
	}
	updates := map[string]any{}
	if body.Title != nil {
		title := strings.TrimSpace(*body.Title)
		if title == "" {
			portalhttp.Error(c, http.StatusBadRequest, "title is required")
			return
		}
		updates["title"] = title
	}
	if body.URL != nil {
		if !validLinkURL(*body.URL) {
			portalhttp.Error(c, http.StatusBadRequest, "url must be an absolute http(s) URL")
			return
		}
		updates["url"] = strings.TrimSpace(*body.URL)
	}
	if body.IsActive != nil {
		updates["is_active"] = *body.IsActive
	}

	ctx := c.Request.Context()
	var link models.WebViewLink
	if errFind := h.db.WithContext(ctx).First(&link, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			portalhttp.Error(c, http.StatusNotFound, "Link not found")
			return
		}
		portalhttp.Error(c, http.StatusInternalServerError, "query link failed")
		return
	}
	if len(updates) > 0 {
		if errUpdate := h.db.WithContext(ctx).Model(&link).Updates(updates).Error; errUpdate != nil {
			portalhttp.Error(c, http.StatusInternalServerError, "update link failed")
			return
		}
		if errReload := h.db.WithContext(ctx).First(&link, id).Error; errReload != nil {
			portalhttp.Error(c, http.StatusInternalServerError, "query link failed")
			return
		}
	}
	c.JSON(http.StatusOK, schema.FromWebViewLink(link))
}

// Delete removes a link.
func (h *WebViewHandler) Delete(c *gin.Context) {
	id, ok := portalhttp.ParseID(c, "id")
	if !ok {
		portalhttp.Error(c, http.StatusBadRequest, "invalid id")
		return
	}
	res := h.db.WithContext(c.Request.Context()).Delete(&models.WebViewLink{}, id)
	if res.Error != nil {
		portalhttp.Error(c, http.StatusInternalServerError, "delete link failed")
		return
	}
	if res.RowsAffected == 0 {
		portalhttp.Error(c, http.StatusNotFound, "Link not found")
		return
	}
	c.Status(http.StatusNoContent)
}

func validLinkURL(raw string) bool {
	u, errParse := url.Parse(strings.TrimSpace(raw))
	if errParse != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}
