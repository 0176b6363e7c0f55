package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/StationPortal/internal/authz"
	portalhttp "github.com/router-for-me/StationPortal/internal/http"
	"github.com/router-for-me/StationPortal/internal/http/api/schema"
	"github.com/router-for-me/StationPortal/internal/models"
	"gorm.io/gorm"
)

// RoleHandler manages roles and their permission sets.
type RoleHandler struct {
	db *gorm.DB
}

// NewRoleHandler constructs a RoleHandler.
func NewRoleHandler(db *gorm.DB) *RoleHandler {
	return &RoleHandler{db: db}
}

// List returns all roles with permissions.
func (h *RoleHandler) List(c *gin.Context) {
	var rows []models.Role
	if errFind := h.db.WithContext(c.Request.Context()).Preload("Permissions").Order("id ASC").Find(&rows).Error; errFind != nil {
		portalhttp.Error(c, http.StatusInternalServerError, "list roles failed")
		return
	}
	out := make([]schema.Role, 0, len(rows))
	for _, row := range rows {
		out = append(out, schema.FromRole(row))
	}
	c.JSON(http.StatusOK, out)
}

// roleRequest defines the request body for role create and update.
type roleRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// Create creates an empty role.
func (h *RoleHandler) Create(c *gin.Context) {
	var body roleRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		portalhttp.Error(c, http.StatusBadRequest, "invalid json")
		return
	}
	if body.Name == nil || strings.TrimSpace(*body.Name) == "" {
		portalhttp.Error(c, http.StatusBadRequest, "missing name")
		return
	}
	role := models.Role{Name: strings.TrimSpace(*body.Name), Description: body.Description}
	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if errUnique := checkRoleUnique(tx, 0, role.Name); errUnique != nil {
			return errUnique
		}
		return tx.Create(&role).Error
	})
	if errTx != nil {
		writeError(c, errTx, "create role failed")
		return
	}
	role.Permissions = []models.Permission{}
	c.JSON(http.StatusCreated, schema.FromRole(role))
}

// Update renames a role or changes its description.
func (h *RoleHandler) Update(c *gin.Context) {
	id, ok := portalhttp.ParseID(c, "id")
	if !ok {
		portalhttp.Error(c, http.StatusBadRequest, "invalid id")
		return
	}
	var body roleRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		portalhttp.Error(c, http.StatusBadRequest, "invalid json")
		return
	}
	var role models.Role
	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if errFind := tx.First(&role, id).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return notFoundf("Role not found")
			}
			return errFind
		}
		updates := map[string]any{}
		if body.Name != nil {
			name := strings.TrimSpace(*body.Name)
			if name == "" {
				return badRequestf("name cannot be empty")
			}
			if strings.EqualFold(role.Name, authz.RoleAdmin) && !strings.EqualFold(name, authz.RoleAdmin) {
				return badRequestf("The admin role cannot be renamed")
			}
			if errUnique := checkRoleUnique(tx, role.ID, name); errUnique != nil {
				return errUnique
			}
			updates["name"] = name
		}
		if body.Description != nil {
			updates["description"] = *body.Description
		}
		if len(updates) == 0 {
			return nil
		}
		return tx.Model(&role).Updates(updates).Error
	})
	if errTx != nil {
		writeError(c, errTx, "update role failed")
		return
	}
	h.respondRole(c, id, http.StatusOK)
}

// Delete removes a role. The admin role and roles still assigned to users are kept.
func (h *RoleHandler) Delete(c *gin.Context) {
	id, ok := portalhttp.ParseID(c, "id")
	if !ok {
		portalhttp.Error(c, http.StatusBadRequest, "invalid id")
		return
	}
	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var role models.Role
		if errFind := tx.First(&role, id).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return notFoundf("Role not found")
			}
			return errFind
		}
		if strings.EqualFold(role.Name, authz.RoleAdmin) {
			return badRequestf("The admin role cannot be deleted")
		}
		var users int64
		if errCount := tx.Model(&models.User{}).Where("role_id = ?", id).Count(&users).Error; errCount != nil {
			return errCount
		}
		if users > 0 {
			return conflictf("Role is assigned to %d user(s)", users)
		}
		if errClear := tx.Model(&role).Association("Permissions").Clear(); errClear != nil {
			return errClear
		}
		return tx.Delete(&role).Error
	})
	if errTx != nil {
		writeError(c, errTx, "delete role failed")
		return
	}
	c.Status(http.StatusNoContent)
}

// setPermissionsRequest is the full replacement permission set of a role.
type setPermissionsRequest struct {
	PermissionIDs []uint64 `json:"permission_ids"`
}

// SetPermissions replaces the role's permission set. Submitting the same set twice is a no-op.
func (h *RoleHandler) SetPermissions(c *gin.Context) {
	id, ok := portalhttp.ParseID(c, "id")
	if !ok {
		portalhttp.Error(c, http.StatusBadRequest, "invalid id")
		return
	}
	var body setPermissionsRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		portalhttp.Error(c, http.StatusBadRequest, "invalid json")
		return
	}
	ids := uniqueIDs(body.PermissionIDs)

	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var role models.Role
		if errFind := tx.First(&role, id).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return notFoundf("Role not found")
			}
			return errFind
		}
		perms := []models.Permission{}
		if len(ids) > 0 {
			if errPerms := tx.Where("id IN ?", ids).Find(&perms).Error; errPerms != nil {
				return errPerms
			}
			if len(perms) != len(ids) {
				return badRequestf("Unknown permission id")
			}
		}
		return replaceAssociation(tx, &role, "Permissions", perms)
	})
	if errTx != nil {
		writeError(c, errTx, "update role permissions failed")
		return
	}
	h.respondRole(c, id, http.StatusOK)
}

func (h *RoleHandler) respondRole(c *gin.Context, id uint64, status int) {
	var role models.Role
	if errFind := h.db.WithContext(c.Request.Context()).Preload("Permissions").First(&role, id).Error; errFind != nil {
		portalhttp.Error(c, http.StatusInternalServerError, "load role failed")
		return
	}
	c.JSON(status, schema.FromRole(role))
}

func checkRoleUnique(tx *gorm.DB, selfID uint64, name string) error {
	var count int64
	if errCount := tx.Model(&models.Role{}).Where("LOWER(name) = ? AND id <> ?", strings.ToLower(name), selfID).Count(&count).Error; errCount != nil {
		return errCount
	}
	if count > 0 {
		return badRequestf("Role name already exists")
	}
	return nil
}

// PermissionHandler manages the permission catalogue.
type PermissionHandler struct {
	db *gorm.DB
}

// NewPermissionHandler constructs a PermissionHandler.
func NewPermissionHandler(db *gorm.DB) *PermissionHandler {
	return &PermissionHandler{db: db}
}

// List returns all permissions ordered by name.
func (h *PermissionHandler) List(c *gin.Context) {
	var rows []models.Permission
	if errFind := h.db.WithContext(c.Request.Context()).Order("name ASC").Find(&rows).Error; errFind != nil {
		portalhttp.Error(c, http.StatusInternalServerError, "list permissions failed")
		return
	}
	out := make([]schema.Permission, 0, len(rows))
	for _, row := range rows {
		out = append(out, schema.FromPermission(row))
	}
	c.JSON(http.StatusOK, out)
}

// Create adds a permission token.
func (h *PermissionHandler) Create(c *gin.Context) {
	var body roleRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		portalhttp.Error(c, http.StatusBadRequest, "invalid json")
		return
	}
	if body.Name == nil || strings.TrimSpace(*body.Name) == "" {
		portalhttp.Error(c, http.StatusBadRequest, "missing name")
		return
	}
	perm := models.Permission{Name: strings.TrimSpace(*body.Name), Description: body.Description}
	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var count int64
		if errCount := tx.Model(&models.Permission{}).Where("name = ?", perm.Name).Count(&count).Error; errCount != nil {
			return errCount
		}
		if count > 0 {
			return badRequestf("Permission already exists")
		}
		return tx.Create(&perm).Error
	})
	if errTx != nil {
		writeError(c, errTx, "create permission failed")
		return
	}
	c.JSON(http.StatusCreated, schema.FromPermission(perm))
}

// Update changes a permission's name or description.
func (h *PermissionHandler) Update(c *gin.Context) {
	id, ok := portalhttp.ParseID(c, "id")
	if !ok {
		portalhttp.Error(c, http.StatusBadRequest, "invalid id")
		return
	}
	var body roleRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		portalhttp.Error(c, http.StatusBadRequest, "invalid json")
		return
	}
	var perm models.Permission
	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if errFind := tx.First(&perm, id).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return notFoundf("Permission not found")
			}
			return errFind
		}
		updates := map[string]any{}
		if body.Name != nil {
			name := strings.TrimSpace(*body.Name)
			if name == "" {
				return badRequestf("name cannot be empty")
			}
			var count int64
			if errCount := tx.Model(&models.Permission{}).Where("name = ? AND id <> ?", name, id).Count(&count).Error; errCount != nil {
				return errCount
			}
			if count > 0 {
				return badRequestf("Permission already exists")
			}
			updates["name"] = name
		}
		if body.Description != nil {
			updates["description"] = *body.Description
		}
		if len(updates) == 0 {
			return nil
		}
		if errUpdate := tx.Model(&perm).Updates(updates).Error; errUpdate != nil {
			return errUpdate
		}
		return tx.First(&perm, id).Error
	})
	if errTx != nil {
		writeError(c, errTx, "update permission failed")
		return
	}
	c.JSON(http.StatusOK, schema.FromPermission(perm))
}

// Delete removes a permission and its role grants.
func (h *PermissionHandler) Delete(c *gin.Context) {
	id, ok := portalhttp.ParseID(c, "id")
	if !ok {
		portalhttp.Error(c, http.StatusBadRequest, "invalid id")
		return
	}
	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var perm models.Permission
		if errFind := tx.First(&perm, id).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return notFoundf("Permission not found")
			}
			return errFind
		}
		if errGrants := tx.Exec("DELETE FROM role_permissions WHERE permission_id = ?", id).Error; errGrants != nil {
			return errGrants
		}
		return tx.Delete(&perm).Error
	})
	if errTx != nil {
		writeError(c, errTx, "delete permission failed")
		return
	}
	c.Status(http.StatusNoContent)
}
