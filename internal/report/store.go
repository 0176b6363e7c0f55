package report

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/router-for-me/StationPortal/internal/authz"
	"github.com/router-for-me/StationPortal/internal/db"
	"github.com/router-for-me/StationPortal/internal/models"
	"gorm.io/gorm"
)

// Scope is the set of stations whose sales a user may see.
type Scope struct {
	All        bool
	StationIDs []string
}

// Empty reports whether the scope matches no station.
func (s Scope) Empty() bool { return !s.All && len(s.StationIDs) == 0 }

// ScopeFor resolves the station scope of user. Area managers see stations of
// their managed areas, owners their owned stations, every other role sees all.
// With activeOnly set, inactive stations are excluded from restricted scopes.
func ScopeFor(ctx context.Context, conn *gorm.DB, user *models.User, activeOnly bool) (Scope, error) {
	if user == nil {
		return Scope{}, nil
	}
	switch strings.ToLower(user.RoleName()) {
	case authz.RoleArea:
		areaIDs := make([]uint64, 0, len(user.ManagedAreas))
		for _, a := range user.ManagedAreas {
			areaIDs = append(areaIDs, a.ID)
		}
		if len(areaIDs) == 0 {
			return Scope{}, nil
		}
		q := conn.WithContext(ctx).Model(&models.Station{}).Where("area_id IN ?", areaIDs)
		if activeOnly {
			q = q.Where("active = ?", 1)
		}
		var ids []string
		if errFind := q.Order("station_id ASC").Pluck("station_id", &ids).Error; errFind != nil {
			return Scope{}, fmt.Errorf("report: area stations: %w", errFind)
		}
		return Scope{StationIDs: ids}, nil
	case authz.RoleOwner:
		ids := make([]string, 0, len(user.OwnedStations))
		for _, s := range user.OwnedStations {
			if activeOnly && (s.Active == nil || *s.Active != 1) {
				continue
			}
			if s.StationID != "" {
				ids = append(ids, s.StationID)
			}
		}
		return Scope{StationIDs: ids}, nil
	default:
		return Scope{All: true}, nil
	}
}

// SalesQuery selects stored sales lines.
type SalesQuery struct {
	Scope  Scope
	From   time.Time // Inclusive.
	To     time.Time // Exclusive.
	IDType string
}

// YearQuery covers a calendar year, optionally narrowed to month and day.
func YearQuery(scope Scope, year, month, day int) (SalesQuery, error) {
	from, to := db.YearBounds(year)
	if month != 0 {
		if month < 1 || month > 12 {
			return SalesQuery{}, errors.New("month must be between 1 and 12")
		}
		from = time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
		to = from.AddDate(0, 1, 0)
		if day != 0 {
			if day < 1 || day > from.AddDate(0, 1, -1).Day() {
				return SalesQuery{}, errors.New("day is out of range for month")
			}
			from = from.AddDate(0, 0, day-1)
			to = from.AddDate(0, 0, 1)
		}
	}
	return SalesQuery{Scope: scope, From: from, To: to}, nil
}

// Narrow restricts the query to the inclusive [start, end] dates that fall within it.
func (q SalesQuery) Narrow(start, end *time.Time) SalesQuery {
	if start != nil && start.After(q.From) {
		q.From = *start
	}
	if end != nil {
		if next := end.AddDate(0, 0, 1); next.Before(q.To) {
			q.To = next
		}
	}
	return q
}

// LoadSales returns sales lines ordered by date then id.
func LoadSales(ctx context.Context, conn *gorm.DB, q SalesQuery) ([]Sale, error) {
	if q.Scope.Empty() || !q.From.Before(q.To) {
		return []Sale{}, nil
	}
	tx := conn.WithContext(ctx).Model(&models.SaleSummary{}).
		Where("date_completed >= ? AND date_completed < ?", q.From, q.To)
	if !q.Scope.All {
		tx = tx.Where("station_id IN ?", q.Scope.StationIDs)
	}
	if q.IDType != "" {
		tx = tx.Where("id_type = ?", q.IDType)
	}
	var rows []models.SaleSummary
	if errFind := tx.Order("date_completed ASC").Order("id ASC").Find(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("report: load sales: %w", errFind)
	}
	return FromModels(rows), nil
}

// CountStations counts active stations in scope.
func CountStations(ctx context.Context, conn *gorm.DB, scope Scope) (int64, error) {
	if scope.Empty() {
		return 0, nil
	}
	if !scope.All {
		return int64(len(scope.StationIDs)), nil
	}
	var total int64
	if errCount := conn.WithContext(ctx).Model(&models.Station{}).Where("active = ?", 1).Count(&total).Error; errCount != nil {
		return 0, fmt.Errorf("report: count stations: %w", errCount)
	}
	return total, nil
}

// StationSummary totals one station over a period.
type StationSummary struct {
	StationID   string  `json:"station_id"`
	StationName string  `json:"station_name"`
	Province    string  `json:"province"`
	TotalVolume float64 `json:"total_volume"`
	TotalAmount float64 `json:"total_amount"`
}

// AreaSummary groups station totals of one area.
type AreaSummary struct {
	ID       uint64           `json:"id"`
	Name     string           `json:"name"`
	Stations []StationSummary `json:"stations"`
}

// AMReport is the area manager summary over a date range.
type AMReport struct {
	GeneratedAt     time.Time     `json:"report_generated_at"`
	AreaManagerName string        `json:"area_manager_name"`
	StartDate       string        `json:"start_date"`
	EndDate         string        `json:"end_date"`
	AssignedAreas   []AreaSummary `json:"assigned_areas"`
}

type stationTotals struct {
	StationID   string
	TotalVolume float64
	TotalAmount float64
}

// BuildAMReport totals sales per station for every area managed by user over [start, end].
// Stations without sales are listed with zero totals.
func BuildAMReport(ctx context.Context, conn *gorm.DB, user *models.User, start, end time.Time) (AMReport, error) {
	out := AMReport{
		GeneratedAt:     time.Now().UTC(),
		AreaManagerName: user.Username,
		StartDate:       start.Format(DateLayout),
		EndDate:         end.Format(DateLayout),
		AssignedAreas:   []AreaSummary{},
	}
	areaIDs := make([]uint64, 0, len(user.ManagedAreas))
	for _, a := range user.ManagedAreas {
		areaIDs = append(areaIDs, a.ID)
	}
	if len(areaIDs) == 0 {
		return out, nil
	}

	var areas []models.Area
	errAreas := conn.WithContext(ctx).
		Preload("Stations", func(tx *gorm.DB) *gorm.DB { return tx.Order("station_id ASC") }).
		Preload("Stations.Province").
		Where("id IN ?", areaIDs).
		Order("id ASC").
		Find(&areas).Error
	if errAreas != nil {
		return out, fmt.Errorf("report: load areas: %w", errAreas)
	}

	var stationIDs []string
	for _, a := range areas {
		for _, s := range a.Stations {
			stationIDs = append(stationIDs, s.StationID)
		}
	}
	totals := map[string]stationTotals{}
	if len(stationIDs) > 0 {
		var rows []stationTotals
		errSum := conn.WithContext(ctx).Model(&models.SaleSummary{}).
			Select("station_id, SUM(total_volume) AS total_volume, SUM(total_amount) AS total_amount").
			Where("station_id IN ?", stationIDs).
			Where("date_completed >= ? AND date_completed < ?", start, end.AddDate(0, 0, 1)).
			Group("station_id").
			Scan(&rows).Error
		if errSum != nil {
			return out, fmt.Errorf("report: sum sales: %w", errSum)
		}
		for _, r := range rows {
			totals[r.StationID] = r
		}
	}

	for _, a := range areas {
		summary := AreaSummary{ID: a.ID, Name: a.Name, Stations: make([]StationSummary, 0, len(a.Stations))}
		for _, s := range a.Stations {
			item := StationSummary{StationID: s.StationID, StationName: s.StationName}
			if s.Province != nil {
				item.Province = s.Province.Name
			}
			if t, ok := totals[s.StationID]; ok {
				item.TotalVolume = t.TotalVolume
				item.TotalAmount = t.TotalAmount
			}
			summary.Stations = append(summary.Stations, item)
		}
		out.AssignedAreas = append(out.AssignedAreas, summary)
	}
	return out, nil
}
