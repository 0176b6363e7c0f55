package report

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/router-for-me/StationPortal/internal/authz"
	"github.com/router-for-me/StationPortal/internal/models"
)

// DateLayout is the wire format of report dates.
const DateLayout = "2006-01-02"

// Material ids of the three tracked fuel products.
const (
	MatHSD   = "500033"
	MatULG95 = "500014"
	MatULR91 = "500024"
)

// UnknownMaterial is the display name of untracked material ids.
const UnknownMaterial = "Unknown Material"

var materialNames = map[string]string{
	MatHSD:   "HSD",
	MatULG95: "ULG95",
	MatULR91: "ULR 91",
}

// MaterialName maps a material id to its product name.
func MaterialName(matID string) string {
	if name, ok := materialNames[strings.TrimSpace(matID)]; ok {
		return name
	}
	return UnknownMaterial
}

// Sale is one per-product sales line as served to the dashboard.
type Sale struct {
	IDType        string  `json:"id_type"`
	StationID     string  `json:"station_id"`
	Station       string  `json:"station"`
	AMName        string  `json:"am_name"`
	ProvinceName  string  `json:"province_name"`
	DateCompleted string  `json:"date_completed"`
	Payment       string  `json:"payment"`
	ShiftID       *int    `json:"shift_id"`
	MatID         string  `json:"mat_id"`
	MatName       string  `json:"mat_name"`
	TotalVolume   float64 `json:"total_volume"`
	TotalAmount   float64 `json:"total_amount"`
}

// FromModel converts a stored summary line.
func FromModel(m models.SaleSummary) Sale {
	return Sale{
		IDType:        m.IDType,
		StationID:     m.StationID,
		Station:       m.Station,
		AMName:        m.AMName,
		ProvinceName:  m.ProvinceName,
		DateCompleted: m.DateCompleted.Format(DateLayout),
		Payment:       m.Payment,
		ShiftID:       m.ShiftID,
		MatID:         m.MatID,
		MatName:       MaterialName(m.MatID),
		TotalVolume:   m.TotalVolume,
		TotalAmount:   m.TotalAmount,
	}
}

// FromModels converts stored summary lines in order.
func FromModels(items []models.SaleSummary) []Sale {
	out := make([]Sale, 0, len(items))
	for _, item := range items {
		out = append(out, FromModel(item))
	}
	return out
}

// ParseDate parses a YYYY-MM-DD date. An empty string yields nil.
func ParseDate(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	parsed, err := time.ParseInLocation(DateLayout, value, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q, use YYYY-MM-DD", value)
	}
	return &parsed, nil
}

// Date range errors returned by ParseRange.
var (
	ErrInvalidStartDate = errors.New("report: invalid start date")
	ErrInvalidEndDate   = errors.New("report: invalid end date")
	ErrInvertedRange    = errors.New("report: end date before start date")
)

// ParseRange parses optional inclusive start and end dates.
func ParseRange(start, end string) (*time.Time, *time.Time, error) {
	from, errStart := ParseDate(start)
	if errStart != nil {
		return nil, nil, ErrInvalidStartDate
	}
	to, errEnd := ParseDate(end)
	if errEnd != nil {
		return nil, nil, ErrInvalidEndDate
	}
	if from != nil && to != nil && to.Before(*from) {
		return nil, nil, ErrInvertedRange
	}
	return from, to, nil
}

// Filter narrows sales by station and inclusive date range.
type Filter struct {
	StationID string
	StartDate string // YYYY-MM-DD, inclusive.
	EndDate   string // YYYY-MM-DD, inclusive.
}

// Empty reports whether the filter has no criteria.
func (f Filter) Empty() bool {
	return f.StationID == "" && f.StartDate == "" && f.EndDate == ""
}

// Apply returns the sales matching every set criterion.
func (f Filter) Apply(sales []Sale) []Sale {
	if f.Empty() {
		return sales
	}
	out := make([]Sale, 0, len(sales))
	for _, s := range sales {
		if f.StationID != "" && s.StationID != f.StationID {
			continue
		}
		if f.StartDate != "" && s.DateCompleted < f.StartDate {
			continue
		}
		if f.EndDate != "" && s.DateCompleted > f.EndDate {
			continue
		}
		out = append(out, s)
	}
	return out
}

// ApplyFor applies f only when p holds the filter permission.
func ApplyFor(p authz.Principal, f Filter, sales []Sale) []Sale {
	if !authz.HasPermission(p, authz.PermFilter) {
		return sales
	}
	return f.Apply(sales)
}

// Search keeps sales where any field contains query, case-insensitive.
func Search(sales []Sale, query string) []Sale {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return sales
	}
	out := make([]Sale, 0, len(sales))
	for _, s := range sales {
		for _, field := range s.fields() {
			if strings.Contains(strings.ToLower(field), query) {
				out = append(out, s)
				break
			}
		}
	}
	return out
}

func (s Sale) fields() []string {
	shift := ""
	if s.ShiftID != nil {
		shift = strconv.Itoa(*s.ShiftID)
	}
	return []string{
		s.IDType, s.StationID, s.Station, s.AMName, s.ProvinceName, s.DateCompleted,
		s.Payment, shift, s.MatID, s.MatName,
		strconv.FormatFloat(s.TotalVolume, 'f', -1, 64),
		strconv.FormatFloat(s.TotalAmount, 'f', -1, 64),
	}
}
