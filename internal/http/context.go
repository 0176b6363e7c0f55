package http

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/StationPortal/internal/models"
)

// Context keys set by the auth middlewares.
const (
	ContextUserID   = "userID"
	ContextUser     = "user"
	ContextAPIKeyID = "apiKeyID"
)

// Error writes an error body carrying the message under both "error" and "detail".
func Error(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message, "detail": message})
}

// Abort stops the chain with an error body.
func Abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": message, "detail": message})
}

// UserID extracts the authenticated user id from gin context.
func UserID(c *gin.Context) uint64 {
	val, exists := c.Get(ContextUserID)
	if !exists {
		return 0
	}
	switch v := val.(type) {
	case uint64:
		return v
	case int64:
		return uint64(v)
	case uint:
		return uint64(v)
	case int:
		return uint64(v)
	default:
		return 0
	}
}

// CurrentUser returns the user loaded by UserAuthMiddleware or APIKeyMiddleware.
func CurrentUser(c *gin.Context) *models.User {
	val, exists := c.Get(ContextUser)
	if !exists {
		return nil
	}
	user, _ := val.(*models.User)
	return user
}

// ParseID parses a positive numeric path parameter.
func ParseID(c *gin.Context, name string) (uint64, bool) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param(name)), 10, 64)
	if errParse != nil || id == 0 {
		return 0, false
	}
	return id, true
}
