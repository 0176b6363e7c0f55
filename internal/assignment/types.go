// Package assignment holds the editing rules for area, station-owner and role-permission assignments.
package assignment

import (
	"errors"
	"regexp"
	"strings"
)

// Editing errors.
var (
	// ErrUnknownStation means the station id is not in the fetched station list.
	ErrUnknownStation = errors.New("station not found")
	// ErrStationInOtherArea means the station already belongs to a different area.
	ErrStationInOtherArea = errors.New("station is already assigned to another area")
	// ErrStationOwnedByOther means the station already belongs to a different owner.
	ErrStationOwnedByOther = errors.New("station is already assigned to another owner")
	// ErrUnknownArea means the selected area is not in the fetched area list.
	ErrUnknownArea = errors.New("area not found")
	// ErrUnknownOwner means the selected owner is not in the fetched owner list.
	ErrUnknownOwner = errors.New("owner not found")
)

// StationRef is the part of a station the editors need.
type StationRef struct {
	ID        uint64 // Database id.
	StationID string // Business identifier matched by bulk import.
	Name      string
}

// AreaState is an area with its current station and manager ids.
type AreaState struct {
	ID         uint64
	Name       string
	StationIDs []uint64
	ManagerIDs []uint64
}

// OwnerState is an owner with the station ids they currently own.
type OwnerState struct {
	ID         uint64
	Username   string
	StationIDs []uint64
}

var tokenSplitter = regexp.MustCompile(`[,\s]+`)

// ParseStationTokens splits comma or whitespace separated station ids, dropping blanks and repeats.
func ParseStationTokens(text string) []string {
	parts := tokenSplitter.Split(strings.TrimSpace(text), -1)
	seen := make(map[string]struct{}, len(parts))
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if _, dup := seen[part]; dup {
			continue
		}
		seen[part] = struct{}{}
		out = append(out, part)
	}
	return out
}

// idSet is an insertion-ordered set of ids.
type idSet struct {
	order []uint64
	index map[uint64]struct{}
}

func newIDSet(ids []uint64) *idSet {
	s := &idSet{index: make(map[uint64]struct{}, len(ids))}
	for _, id := range ids {
		s.add(id)
	}
	return s
}

func (s *idSet) has(id uint64) bool {
	_, ok := s.index[id]
	return ok
}

func (s *idSet) add(id uint64) {
	if s.has(id) {
		return
	}
	s.index[id] = struct{}{}
	s.order = append(s.order, id)
}

func (s *idSet) remove(id uint64) {
	if !s.has(id) {
		return
	}
	delete(s.index, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *idSet) slice() []uint64 {
	out := make([]uint64, len(s.order))
	copy(out, s.order)
	return out
}

func (s *idSet) equal(ids []uint64) bool {
	other := newIDSet(ids)
	if len(other.order) != len(s.order) {
		return false
	}
	for _, id := range s.order {
		if !other.has(id) {
			return false
		}
	}
	return true
}
