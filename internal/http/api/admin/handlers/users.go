package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/StationPortal/internal/authz"
	dbutil "github.com/router-for-me/StationPortal/internal/db"
	portalhttp "github.com/router-for-me/StationPortal/internal/http"
	"github.com/router-for-me/StationPortal/internal/http/api/schema"
	"github.com/router-for-me/StationPortal/internal/models"
	"github.com/router-for-me/StationPortal/internal/security"
	"gorm.io/gorm"
)

// UserHandler manages dashboard accounts.
type UserHandler struct {
	db *gorm.DB
}

// NewUserHandler constructs a UserHandler.
func NewUserHandler(db *gorm.DB) *UserHandler {
	return &UserHandler{db: db}
}

func (h *UserHandler) preloaded(c *gin.Context) *gorm.DB {
	return h.db.WithContext(c.Request.Context()).
		Preload("Role.Permissions").
		Preload("ManagedAreas").
		Preload("OwnedStations")
}

// List returns all users with role, areas and stations. Optional filters: q, role.
func (h *UserHandler) List(c *gin.Context) {
	q := h.preloaded(c).Model(&models.User{})
	if term := strings.TrimSpace(c.Query("q")); term != "" {
		cond, args := dbutil.MatchAny(h.db, term, "username", "email")
		q = q.Where(cond, args...)
	}
	if roleName := strings.TrimSpace(c.Query("role")); roleName != "" {
		q = q.Where("role_id IN (?)", h.db.Model(&models.Role{}).Select("id").Where("LOWER(name) = ?", strings.ToLower(roleName)))
	}
	var rows []models.User
	if errFind := q.Order("id ASC").Find(&rows).Error; errFind != nil {
		portalhttp.Error(c, http.StatusInternalServerError, "list users failed")
		return
	}
	out := make([]schema.User, 0, len(rows))
	for _, row := range rows {
		out = append(out, schema.FromUser(row))
	}
	c.JSON(http.StatusOK, out)
}

// Owners returns users holding the owner role with their stations.
func (h *UserHandler) Owners(c *gin.Context) {
	var rows []models.User
	errFind := h.preloaded(c).
		Joins("JOIN roles ON roles.id = users.role_id").
		Where("LOWER(roles.name) = ?", authz.RoleOwner).
		Order("users.username ASC").
		Find(&rows).Error
	if errFind != nil {
		portalhttp.Error(c, http.StatusInternalServerError, "list owners failed")
		return
	}
	out := make([]schema.User, 0, len(rows))
	for _, row := range rows {
		out = append(out, schema.FromUser(row))
	}
	c.JSON(http.StatusOK, out)
}

// Brief returns id and username of every user for pickers.
func (h *UserHandler) Brief(c *gin.Context) {
	var rows []schema.UserRef
	if errFind := h.db.WithContext(c.Request.Context()).Model(&models.User{}).Select("id", "username").Order("username ASC").Scan(&rows).Error; errFind != nil {
		portalhttp.Error(c, http.StatusInternalServerError, "list users failed")
		return
	}
	if rows == nil {
		rows = []schema.UserRef{}
	}
	c.JSON(http.StatusOK, rows)
}

// createUserRequest defines the request body for user creation.
type createUserRequest struct {
	Username string  `json:"username" binding:"required,min=3,max=100"`
	Email    string  `json:"email" binding:"required,email,max=100"`
	Password string  `json:"password" binding:"required"`
	ChatID   *string `json:"user_id"`
	IsActive *bool   `json:"is_active"`
	RoleID   uint64  `json:"role_id" binding:"required"`
}

// Create creates a user. is_active defaults to true.
func (h *UserHandler) Create(c *gin.Context) {
	var body createUserRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		portalhttp.Error(c, http.StatusBadRequest, "invalid request: "+errBind.Error())
		return
	}
	if errPassword := security.ValidatePassword(body.Password); errPassword != nil {
		portalhttp.Error(c, http.StatusBadRequest, errPassword.Error())
		return
	}
	hash, errHash := security.HashPassword(body.Password)
	if errHash != nil {
		portalhttp.Error(c, http.StatusInternalServerError, "hash password failed")
		return
	}

	user := models.User{
		Username:       strings.TrimSpace(body.Username),
		Email:          strings.TrimSpace(body.Email),
		ChatID:         body.ChatID,
		HashedPassword: hash,
		IsActive:       true,
		RoleID:         &body.RoleID,
	}
	active := body.IsActive == nil || *body.IsActive

	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if errUnique := checkUserUnique(tx, 0, user.Username, user.Email); errUnique != nil {
			return errUnique
		}
		if errRole := tx.Select("id").First(&models.Role{}, body.RoleID).Error; errRole != nil {
			if errors.Is(errRole, gorm.ErrRecordNotFound) {
				return badRequestf("Role not found")
			}
			return errRole
		}
		if errCreate := tx.Create(&user).Error; errCreate != nil {
			return errCreate
		}
		if !active {
			return tx.Model(&user).Update("is_active", false).Error
		}
		return nil
	})
	if errTx != nil {
		writeError(c, errTx, "create user failed")
		return
	}

	created, errLoad := portalhttp.LoadUser(c.Request.Context(), h.db, user.ID)
	if errLoad != nil {
		portalhttp.Error(c, http.StatusInternalServerError, "load user failed")
		return
	}
	c.JSON(http.StatusCreated, schema.FromUser(*created))
}

// updateUserRequest defines the request body for user updates.
type updateUserRequest struct {
	Username *string `json:"username" binding:"omitempty,min=3,max=100"`
	Email    *string `json:"email" binding:"omitempty,email,max=100"`
	Password *string `json:"password"`
	ChatID   *string `json:"user_id"`
	IsActive *bool   `json:"is_active"`
	RoleID   *uint64 `json:"role_id"`
}

// Update modifies user fields. A password change revokes issued tokens.
func (h *UserHandler) Update(c *gin.Context) {
	id, ok := portalhttp.ParseID(c, "id")
	if !ok {
		portalhttp.Error(c, http.StatusBadRequest, "invalid id")
		return
	}
	var body updateUserRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		portalhttp.Error(c, http.StatusBadRequest, "invalid request: "+errBind.Error())
		return
	}

	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if errFind := tx.First(&user, id).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return notFoundf("User not found")
			}
			return errFind
		}

		updates := map[string]any{}
		username, email := user.Username, user.Email
		if body.Username != nil {
			username = strings.TrimSpace(*body.Username)
			updates["username"] = username
		}
		if body.Email != nil {
			email = strings.TrimSpace(*body.Email)
			updates["email"] = email
		}
		if errUnique := checkUserUnique(tx, user.ID, username, email); errUnique != nil {
			return errUnique
		}
		if body.Password != nil && *body.Password != "" {
			if errPassword := security.ValidatePassword(*body.Password); errPassword != nil {
				return badRequestf("%s", errPassword.Error())
			}
			hash, errHash := security.HashPassword(*body.Password)
			if errHash != nil {
				return errHash
			}
			updates["hashed_password"] = hash
			updates["token_version"] = gorm.Expr("token_version + 1")
		}
		if body.ChatID != nil {
			updates["chat_id"] = strings.TrimSpace(*body.ChatID)
		}
		if body.IsActive != nil {
			updates["is_active"] = *body.IsActive
		}
		if body.RoleID != nil {
			if errRole := tx.Select("id").First(&models.Role{}, *body.RoleID).Error; errRole != nil {
				if errors.Is(errRole, gorm.ErrRecordNotFound) {
					return badRequestf("Role not found")
				}
				return errRole
			}
			updates["role_id"] = *body.RoleID
		}
		if len(updates) == 0 {
			return nil
		}
		return tx.Model(&user).Updates(updates).Error
	})
	if errTx != nil {
		writeError(c, errTx, "update user failed")
		return
	}

	updated, errLoad := portalhttp.LoadUser(c.Request.Context(), h.db, id)
	if errLoad != nil {
		portalhttp.Error(c, http.StatusInternalServerError, "load user failed")
		return
	}
	c.JSON(http.StatusOK, schema.FromUser(*updated))
}

// Delete removes a user with its assignments, sessions and key ownership.
func (h *UserHandler) Delete(c *gin.Context) {
	id, ok := portalhttp.ParseID(c, "id")
	if !ok {
		portalhttp.Error(c, http.StatusBadRequest, "invalid id")
		return
	}
	if id == portalhttp.UserID(c) {
		portalhttp.Error(c, http.StatusBadRequest, "Cannot delete your own account")
		return
	}

	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if errFind := tx.First(&user, id).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return notFoundf("User not found")
			}
			return errFind
		}
		if errClear := tx.Model(&user).Association("ManagedAreas").Clear(); errClear != nil {
			return errClear
		}
		if errClear := tx.Model(&user).Association("OwnedStations").Clear(); errClear != nil {
			return errClear
		}
		if errKeys := tx.Model(&models.APIKey{}).Where("user_id = ?", id).Update("user_id", nil).Error; errKeys != nil {
			return errKeys
		}
		if errSessions := tx.Where("user_id = ?", id).Delete(&models.ActiveSession{}).Error; errSessions != nil {
			return errSessions
		}
		return tx.Delete(&user).Error
	})
	if errTx != nil {
		writeError(c, errTx, "delete user failed")
		return
	}
	c.Status(http.StatusNoContent)
}

func checkUserUnique(tx *gorm.DB, selfID uint64, username, email string) error {
	var count int64
	if errCount := tx.Model(&models.User{}).Where("username = ? AND id <> ?", username, selfID).Count(&count).Error; errCount != nil {
		return errCount
	}
	if count > 0 {
		return badRequestf("Username already registered")
	}
	if errCount := tx.Model(&models.User{}).Where("email = ? AND id <> ?", email, selfID).Count(&count).Error; errCount != nil {
		return errCount
	}
	if count > 0 {
		return badRequestf("Email already registered")
	}
	return nil
}
