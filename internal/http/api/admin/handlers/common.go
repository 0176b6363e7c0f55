package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	portalhttp "github.com/router-for-me/StationPortal/internal/http"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// statusError carries an HTTP status out of a transaction callback.
type statusError struct {
	status int
	msg    string
}

func (e *statusError) Error() string { return e.msg }

func conflictf(format string, args ...any) error {
	return &statusError{status: http.StatusConflict, msg: fmt.Sprintf(format, args...)}
}

func badRequestf(format string, args ...any) error {
	return &statusError{status: http.StatusBadRequest, msg: fmt.Sprintf(format, args...)}
}

func notFoundf(format string, args ...any) error {
	return &statusError{status: http.StatusNotFound, msg: fmt.Sprintf(format, args...)}
}

// writeError maps a statusError to its response and logs anything else as a 500 with fallback.
func writeError(c *gin.Context, err error, fallback string) {
	var se *statusError
	if errors.As(err, &se) {
		portalhttp.Error(c, se.status, se.msg)
		return
	}
	log.WithError(err).WithField("path", c.FullPath()).Error(fallback)
	portalhttp.Error(c, http.StatusInternalServerError, fallback)
}

// uniqueIDs drops zero and repeated ids and sorts the rest.
func uniqueIDs(ids []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(ids))
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// replaceAssociation replaces a many2many association, clearing it for an empty list.
func replaceAssociation[T any](tx *gorm.DB, owner any, name string, values []T) error {
	if len(values) == 0 {
		return tx.Model(owner).Association(name).Clear()
	}
	return tx.Model(owner).Association(name).Replace(values)
}
