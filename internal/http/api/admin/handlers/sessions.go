package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	portalhttp "github.com/router-for-me/StationPortal/internal/http"
	"github.com/router-for-me/StationPortal/internal/http/api/schema"
	"github.com/router-for-me/StationPortal/internal/realtime"
	"github.com/router-for-me/StationPortal/internal/sessions"
	log "github.com/sirupsen/logrus"
)

// SessionHandler lists sessions and terminates them.
type SessionHandler struct {
	svc       *sessions.Service
	publisher realtime.Publisher
}

// NewSessionHandler constructs a SessionHandler. publisher may be nil.
func NewSessionHandler(svc *sessions.Service, publisher realtime.Publisher) *SessionHandler {
	return &SessionHandler{svc: svc, publisher: publisher}
}

// List returns active sessions.
func (h *SessionHandler) List(c *gin.Context) {
	rows, errList := h.svc.ListActive(c.Request.Context())
	if errList != nil {
		log.WithError(errList).Error("list active sessions failed")
		portalhttp.Error(c, http.StatusInternalServerError, "list sessions failed")
		return
	}
	out := make([]schema.ActiveSession, 0, len(rows))
	for _, row := range rows {
		out = append(out, schema.FromActiveSession(row))
	}
	c.JSON(http.StatusOK, out)
}

// History returns session history. Query: user_id, limit, offset.
func (h *SessionHandler) History(c *gin.Context) {
	var filter sessions.HistoryFilter
	if raw := strings.TrimSpace(c.Query("user_id")); raw != "" {
		id, errParse := strconv.ParseUint(raw, 10, 64)
		if errParse != nil {
			portalhttp.Error(c, http.StatusBadRequest, "invalid user_id")
			return
		}
		filter.UserID = &id
	}
	filter.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "100"))
	filter.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))

	rows, total, errList := h.svc.ListHistory(c.Request.Context(), filter)
	if errList != nil {
		log.WithError(errList).Error("list session history failed")
		portalhttp.Error(c, http.StatusInternalServerError, "list session history failed")
		return
	}
	out := make([]schema.SessionHistory, 0, len(rows))
	for _, row := range rows {
		out = append(out, schema.FromSessionHistory(row))
	}
	c.JSON(http.StatusOK, gin.H{"items": out, "total": total})
}

// terminateRequest optionally carries the message shown to the user.
type terminateRequest struct {
	Message string `json:"message"`
}

// Terminate revokes every token of a user, closes their sessions and pushes a force_logout.
func (h *SessionHandler) Terminate(c *gin.Context) {
	userID, ok := portalhttp.ParseID(c, "user_id")
	if !ok {
		portalhttp.Error(c, http.StatusBadRequest, "invalid user_id")
		return
	}
	var body terminateRequest
	if c.Request.ContentLength > 0 {
		if errBind := c.ShouldBindJSON(&body); errBind != nil {
			portalhttp.Error(c, http.StatusBadRequest, "invalid json")
			return
		}
	}

	removed, errEnd := h.svc.EndAll(c.Request.Context(), userID, sessions.ReasonTerminated)
	if errEnd != nil {
		if errors.Is(errEnd, sessions.ErrUserNotFound) {
			portalhttp.Error(c, http.StatusNotFound, "User not found")
			return
		}
		log.WithError(errEnd).WithField("user_id", userID).Error("terminate sessions failed")
		portalhttp.Error(c, http.StatusInternalServerError, "terminate sessions failed")
		return
	}

	notified := false
	if h.publisher != nil {
		msg := realtime.ForceLogout(userID, strings.TrimSpace(body.Message))
		if errPublish := h.publisher.Publish(c.Request.Context(), msg); errPublish != nil {
			log.WithError(errPublish).WithField("user_id", userID).Warn("force logout publish failed")
		} else {
			notified = true
		}
	}
	log.WithFields(log.Fields{"user_id": userID, "sessions": removed, "by": portalhttp.UserID(c)}).Info("sessions terminated")
	c.JSON(http.StatusOK, gin.H{
		"message":             "Sessions terminated",
		"sessions_terminated": removed,
		"notified":            notified,
	})
}
