package stationinfo

import (
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/router-for-me/StationPortal/internal/models"
)

// Sort keys accepted by Apply. Dotted keys reach into the lookup's display field.
const (
	SortStationID     = "station_id"
	SortStationName   = "station_name"
	SortActive        = "active"
	SortProvinceName  = "province.name"
	SortAMControlName = "am_control.name"
	SortSupporterName = "supporter.supporter_name"
)

// Row is a flattened station with lookup display names.
type Row struct {
	ID            uint64  `json:"id"`
	StationID     string  `json:"station_id"`
	StationName   string  `json:"station_name"`
	Active        *int    `json:"active"`
	ProvinceID    *string `json:"province_id"`
	ProvinceName  string  `json:"province_name"`
	SupporterID   *uint64 `json:"supporter_id"`
	SupporterName string  `json:"supporter_name"`
	AMControlID   *uint64 `json:"am_control_id"`
	AMControlName string  `json:"am_control_name"`
}

// Status renders the tri-state active flag.
func (r Row) Status() string {
	if r.Active == nil {
		return "N/A"
	}
	switch *r.Active {
	case 1:
		return "Active"
	case 0:
		return "Inactive"
	default:
		return "N/A"
	}
}

// FromModel flattens a station with its preloaded lookups.
func FromModel(s models.Station) Row {
	row := Row{
		ID:          s.ID,
		StationID:   s.StationID,
		StationName: s.StationName,
		Active:      s.Active,
		ProvinceID:  s.ProvinceID,
		SupporterID: s.SupporterID,
		AMControlID: s.AMControlID,
	}
	if s.Province != nil {
		row.ProvinceName = s.Province.Name
	}
	if s.Supporter != nil {
		row.SupporterName = s.Supporter.SupporterName
	}
	if s.AMControlInfo != nil {
		row.AMControlName = s.AMControlInfo.Name
	} else {
		row.AMControlName = s.AMControl
	}
	return row
}

// SortKey is one level of a multi-key sort.
type SortKey struct {
	Key  string
	Desc bool
}

// Query narrows and orders a station list.
type Query struct {
	Search      string  // Substring of station id + name, case-insensitive.
	ProvinceID  string  // Exact province code, empty for any.
	SupporterID *uint64 // Exact supporter, nil for any.
	AMControlID *uint64 // Exact AM control, nil for any.
	Sort        []SortKey
}

// Apply filters, searches and sorts rows without modifying the input.
func Apply(rows []Row, q Query) []Row {
	search := strings.ToLower(strings.TrimSpace(q.Search))
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		if q.ProvinceID != "" && (r.ProvinceID == nil || *r.ProvinceID != q.ProvinceID) {
			continue
		}
		if q.SupporterID != nil && (r.SupporterID == nil || *r.SupporterID != *q.SupporterID) {
			continue
		}
		if q.AMControlID != nil && (r.AMControlID == nil || *r.AMControlID != *q.AMControlID) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(r.StationID+r.StationName), search) {
			continue
		}
		out = append(out, r)
	}
	if len(q.Sort) == 0 {
		return out
	}
	sort.SliceStable(out, func(i, j int) bool {
		for _, key := range q.Sort {
			c := naturalCompare(sortValue(out[i], key.Key), sortValue(out[j], key.Key))
			if c == 0 {
				continue
			}
			if key.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	return out
}

// ValidSortKey reports whether key is accepted by Apply.
func ValidSortKey(key string) bool {
	switch key {
	case SortStationID, SortStationName, SortActive, SortProvinceName, SortAMControlName, SortSupporterName:
		return true
	}
	return false
}

func sortValue(r Row, key string) string {
	switch key {
	case SortStationID:
		return r.StationID
	case SortStationName:
		return r.StationName
	case SortActive:
		if r.Active == nil {
			return ""
		}
		return strconv.Itoa(*r.Active)
	case SortProvinceName:
		return r.ProvinceName
	case SortAMControlName:
		return r.AMControlName
	case SortSupporterName:
		return r.SupporterName
	default:
		return ""
	}
}

// naturalCompare orders strings case-insensitively with digit runs compared by value.
func naturalCompare(a, b string) int {
	ar, br := []rune(strings.ToLower(a)), []rune(strings.ToLower(b))
	i, j := 0, 0
	for i < len(ar) && j < len(br) {
		if unicode.IsDigit(ar[i]) && unicode.IsDigit(br[j]) {
			si := i
			for i < len(ar) && unicode.IsDigit(ar[i]) {
				i++
			}
			sj := j
			for j < len(br) && unicode.IsDigit(br[j]) {
				j++
			}
			na := strings.TrimLeft(string(ar[si:i]), "0")
			nb := strings.TrimLeft(string(br[sj:j]), "0")
			if len(na) != len(nb) {
				if len(na) < len(nb) {
					return -1
				}
				return 1
			}
			if na != nb {
				if na < nb {
					return -1
				}
				return 1
			}
			continue
		}
		if ar[i] != br[j] {
			if ar[i] < br[j] {
				return -1
			}
			return 1
		}
		i++
		j++
	}
	switch {
	case len(ar)-i < len(br)-j:
		return -1
	case len(ar)-i > len(br)-j:
		return 1
	default:
		return 0
	}
}
