package report

import (
	"sort"
	"strconv"
	"strings"
)

// PivotRow is one (date, station, shift, id type) transaction with per-product volumes.
type PivotRow struct {
	IDType        string  `json:"id_type"`
	StationID     string  `json:"station_id"`
	Station       string  `json:"station"`
	AMName        string  `json:"am_name"`
	ProvinceName  string  `json:"province_name"`
	DateCompleted string  `json:"date_completed"`
	Payment       string  `json:"payment"`
	ShiftID       *int    `json:"shift_id"`
	HSD           float64 `json:"hsd"`
	ULG95         float64 `json:"ulg95"`
	ULR91         float64 `json:"ulr91"`
	TotalAmount   float64 `json:"total_amount"`
}

// Column is a pivot table column.
type Column struct {
	Key   string
	Label string
}

// Columns lists pivot table columns in display order.
var Columns = []Column{
	{Key: "id_type", Label: "ID Type"},
	{Key: "station_id", Label: "Station ID"},
	{Key: "station", Label: "Station Name"},
	{Key: "am_name", Label: "AM Name"},
	{Key: "province_name", Label: "Province"},
	{Key: "date_completed", Label: "Date"},
	{Key: "payment", Label: "Payment"},
	{Key: "shift_id", Label: "Shift"},
	{Key: "hsd", Label: "HSD"},
	{Key: "ulg95", Label: "ULG95"},
	{Key: "ulr91", Label: "ULR91"},
	{Key: "total_amount", Label: "Total Amount"},
}

// ValidColumn reports whether key names a pivot column.
func ValidColumn(key string) bool {
	for _, c := range Columns {
		if c.Key == key {
			return true
		}
	}
	return false
}

type pivotKey struct {
	date, station, idType string
	shift                 int
	hasShift              bool
}

// Pivot groups sales lines into one row per transaction, in first-seen order.
// Amounts of every line are summed; volumes go to their product column and
// untracked materials add no volume.
func Pivot(sales []Sale) []PivotRow {
	index := make(map[pivotKey]int, len(sales))
	rows := make([]PivotRow, 0)
	for _, s := range sales {
		key := pivotKey{date: s.DateCompleted, station: s.StationID, idType: s.IDType}
		if s.ShiftID != nil {
			key.shift, key.hasShift = *s.ShiftID, true
		}
		i, ok := index[key]
		if !ok {
			rows = append(rows, PivotRow{
				IDType:        s.IDType,
				StationID:     s.StationID,
				Station:       s.Station,
				AMName:        s.AMName,
				ProvinceName:  s.ProvinceName,
				DateCompleted: s.DateCompleted,
				Payment:       s.Payment,
				ShiftID:       s.ShiftID,
			})
			i = len(rows) - 1
			index[key] = i
		}
		row := &rows[i]
		row.TotalAmount += s.TotalAmount
		switch strings.TrimSpace(s.MatID) {
		case MatHSD:
			row.HSD += s.TotalVolume
		case MatULG95:
			row.ULG95 += s.TotalVolume
		case MatULR91:
			row.ULR91 += s.TotalVolume
		}
	}
	return rows
}

// Values renders a row in Columns order.
func (r PivotRow) Values() []string {
	shift := ""
	if r.ShiftID != nil {
		shift = strconv.Itoa(*r.ShiftID)
	}
	return []string{
		r.IDType, r.StationID, r.Station, r.AMName, r.ProvinceName, r.DateCompleted, r.Payment, shift,
		formatNumber(r.HSD), formatNumber(r.ULG95), formatNumber(r.ULR91), formatNumber(r.TotalAmount),
	}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// sortValue returns a comparable value for key; ok is false for missing values.
func (r PivotRow) sortValue(key string) (str string, num float64, numeric bool, ok bool) {
	switch key {
	case "id_type":
		return r.IDType, 0, false, true
	case "station_id":
		return r.StationID, 0, false, true
	case "station":
		return r.Station, 0, false, true
	case "am_name":
		return r.AMName, 0, false, true
	case "province_name":
		return r.ProvinceName, 0, false, true
	case "date_completed":
		return r.DateCompleted, 0, false, true
	case "payment":
		return r.Payment, 0, false, true
	case "shift_id":
		if r.ShiftID == nil {
			return "", 0, true, false
		}
		return "", float64(*r.ShiftID), true, true
	case "hsd":
		return "", r.HSD, true, true
	case "ulg95":
		return "", r.ULG95, true, true
	case "ulr91":
		return "", r.ULR91, true, true
	case "total_amount":
		return "", r.TotalAmount, true, true
	}
	return "", 0, false, false
}

// Sort orders rows by one column. Rows missing the value go last in both directions.
func Sort(rows []PivotRow, key string, desc bool) {
	sort.SliceStable(rows, func(i, j int) bool {
		as, an, numeric, aok := rows[i].sortValue(key)
		bs, bn, _, bok := rows[j].sortValue(key)
		if !aok || !bok {
			return aok && !bok
		}
		var c int
		if numeric {
			switch {
			case an < bn:
				c = -1
			case an > bn:
				c = 1
			}
		} else {
			c = strings.Compare(as, bs)
		}
		if desc {
			return c > 0
		}
		return c < 0
	})
}

// Paginate returns the 1-based page of items and the total page count.
// Out-of-range pages yield an empty slice.
func Paginate[T any](items []T, page, perPage int) ([]T, int) {
	if perPage <= 0 {
		perPage = DefaultPageSize
	}
	total := (len(items) + perPage - 1) / perPage
	if page < 1 {
		page = 1
	}
	start := (page - 1) * perPage
	if start >= len(items) {
		return []T{}, total
	}
	end := start + perPage
	if end > len(items) {
		end = len(items)
	}
	return items[start:end], total
}

// DefaultPageSize is the report table page size.
const DefaultPageSize = 15
