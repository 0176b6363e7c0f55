package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/router-for-me/StationPortal/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Reasons recorded on closed session history rows.
const (
	ReasonLogout     = "logout"
	ReasonTerminated = "terminated"
	ReasonExpired    = "expired"
)

// ErrUserNotFound is returned when ending sessions of an unknown user.
var ErrUserNotFound = errors.New("sessions: user not found")

// Service records logins and ends sessions.
type Service struct {
	db  *gorm.DB
	now func() time.Time
}

// NewService creates a session service.
func NewService(db *gorm.DB) *Service {
	return &Service{
		db: db,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// RecordLogin stores an active session and its history row.
func (s *Service) RecordLogin(ctx context.Context, user *models.User, ip, userAgent string) (models.ActiveSession, error) {
	now := s.now()
	active := models.ActiveSession{
		SessionID: uuid.NewString(),
		UserID:    user.ID,
		Username:  user.Username,
		IPAddress: truncate(ip, 45),
		UserAgent: truncate(userAgent, 255),
		LoginTime: now,
	}
	history := models.SessionHistory{
		UserID:    user.ID,
		SessionID: active.SessionID,
		LoginTime: now,
		IPAddress: active.IPAddress,
		UserAgent: active.UserAgent,
	}
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errCreate := tx.Create(&active).Error; errCreate != nil {
			return errCreate
		}
		return tx.Create(&history).Error
	})
	if errTx != nil {
		return models.ActiveSession{}, fmt.Errorf("sessions: record login: %w", errTx)
	}
	return active, nil
}

// EndAll invalidates every token of userID by bumping its token version, removes
// its active sessions and closes open history rows with reason.
// It returns the number of active sessions removed.
func (s *Service) EndAll(ctx context.Context, userID uint64, reason string) (int64, error) {
	now := s.now()
	details, errMarshal := json.Marshal(map[string]string{"reason": reason})
	if errMarshal != nil {
		return 0, errMarshal
	}
	var removed int64
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).Where("id = ?", userID).
			Update("token_version", gorm.Expr("token_version + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrUserNotFound
		}
		del := tx.Where("user_id = ?", userID).Delete(&models.ActiveSession{})
		if del.Error != nil {
			return del.Error
		}
		removed = del.RowsAffected
		return tx.Model(&models.SessionHistory{}).
			Where("user_id = ? AND logout_time IS NULL", userID).
			Updates(map[string]any{"logout_time": now, "details": datatypes.JSON(details)}).Error
	})
	if errTx != nil {
		if errors.Is(errTx, ErrUserNotFound) {
			return 0, errTx
		}
		return 0, fmt.Errorf("sessions: end sessions of user %d: %w", userID, errTx)
	}
	return removed, nil
}

// ListActive returns active sessions, newest first.
func (s *Service) ListActive(ctx context.Context) ([]models.ActiveSession, error) {
	var rows []models.ActiveSession
	if errFind := s.db.WithContext(ctx).Order("login_time DESC").Order("id DESC").Find(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("sessions: list active: %w", errFind)
	}
	return rows, nil
}

// HistoryFilter narrows ListHistory.
type HistoryFilter struct {
	UserID *uint64
	Limit  int
	Offset int
}

// ListHistory returns session history rows, newest first.
func (s *Service) ListHistory(ctx context.Context, f HistoryFilter) ([]models.SessionHistory, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.SessionHistory{})
	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}
	var total int64
	if errCount := q.Count(&total).Error; errCount != nil {
		return nil, 0, fmt.Errorf("sessions: count history: %w", errCount)
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var rows []models.SessionHistory
	errFind := q.Order("login_time DESC").Order("id DESC").Limit(limit).Offset(max(f.Offset, 0)).Find(&rows).Error
	if errFind != nil {
		return nil, 0, fmt.Errorf("sessions: list history: %w", errFind)
	}
	return rows, total, nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) > n {
		return s[:n]
	}
	return s
}
