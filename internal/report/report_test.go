package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/router-for-me/StationPortal/internal/models"
	"github.com/xuri/excelize/v2"
)

func shift(v int) *int { return &v }

func sampleSales() []Sale {
	return []Sale{
		{IDType: "COCO", StationID: "F601", Station: "North", DateCompleted: "2025-01-02", Payment: "Cash", ShiftID: shift(1), MatID: MatHSD, TotalVolume: 100, TotalAmount: 3000},
		{IDType: "COCO", StationID: "F601", Station: "North", DateCompleted: "2025-01-02", Payment: "Cash", ShiftID: shift(1), MatID: MatULG95, TotalVolume: 50, TotalAmount: 2000},
		{IDType: "COCO", StationID: "F602", Station: "South", DateCompleted: "2025-01-03", Payment: "Card", ShiftID: shift(2), MatID: MatULR91, TotalVolume: 20, TotalAmount: 700},
		{IDType: "COCO", StationID: "F601", Station: "North", DateCompleted: "2025-01-02", Payment: "Cash", ShiftID: shift(1), MatID: "999", TotalVolume: 5, TotalAmount: 10},
		{IDType: "DODO", StationID: "F603", Station: "East", DateCompleted: "2025-01-01", Payment: "Cash", MatID: MatHSD, TotalVolume: 7, TotalAmount: 70},
	}
}

type principal struct {
	role  string
	perms []string
}

func (p principal) RoleName() string          { return p.role }
func (p principal) PermissionNames() []string { return p.perms }

func TestMaterialName(t *testing.T) {
	cases := map[string]string{"500033": "HSD", "500014": "ULG95", "500024": "ULR 91", "1": UnknownMaterial}
	for id, want := range cases {
		if got := MaterialName(id); got != want {
			t.Fatalf("MaterialName(%q) = %q, want %q", id, got, want)
		}
	}
	if got := FromModel(models.SaleSummary{MatID: "500024"}).MatName; got != "ULR 91" {
		t.Fatalf("FromModel mat name = %q", got)
	}
}

func TestFromModelKeepsCalendarDayOfOffsetDate(t *testing.T) {
	bangkok := time.FixedZone("+07", 7*60*60)
	m := models.SaleSummary{DateCompleted: time.Date(2024, time.January, 1, 0, 0, 0, 0, bangkok)}
	if got := FromModel(m).DateCompleted; got != "2024-01-01" {
		t.Fatalf("DateCompleted = %q, want 2024-01-01", got)
	}
}

func TestPivotGroupsByTransaction(t *testing.T) {
	rows := Pivot(sampleSales())
	if len(rows) != 3 {
		t.Fatalf("expected 3 pivot rows, got %d", len(rows))
	}
	first := rows[0]
	if first.StationID != "F601" || first.HSD != 100 || first.ULG95 != 50 || first.ULR91 != 0 {
		t.Fatalf("unexpected first row %+v", first)
	}
	if first.TotalAmount != 5010 {
		t.Fatalf("expected summed amount 5010, got %v", first.TotalAmount)
	}
	if rows[1].StationID != "F602" || rows[1].ULR91 != 20 {
		t.Fatalf("unexpected second row %+v", rows[1])
	}
	if rows[2].ShiftID != nil {
		t.Fatalf("expected nil shift on third row")
	}
}

func TestSortPutsMissingValuesLast(t *testing.T) {
	rows := Pivot(sampleSales())
	Sort(rows, "shift_id", true)
	if *rows[0].ShiftID != 2 || rows[2].ShiftID != nil {
		t.Fatalf("unexpected desc order %+v", rows)
	}
	Sort(rows, "shift_id", false)
	if *rows[0].ShiftID != 1 || rows[2].ShiftID != nil {
		t.Fatalf("unexpected asc order %+v", rows)
	}
	Sort(rows, "date_completed", false)
	if rows[0].StationID != "F603" {
		t.Fatalf("expected F603 first by date, got %s", rows[0].StationID)
	}
}

func TestFilterGatedByPermission(t *testing.T) {
	f := Filter{StationID: "F601", StartDate: "2025-01-02", EndDate: "2025-01-02"}
	viewer := principal{role: "owner", perms: []string{"view_reports"}}
	if got := ApplyFor(viewer, f, sampleSales()); len(got) != 5 {
		t.Fatalf("filter must be ignored without permission, got %d", len(got))
	}
	filterer := principal{role: "owner", perms: []string{"filter"}}
	if got := ApplyFor(filterer, f, sampleSales()); len(got) != 3 {
		t.Fatalf("expected 3 filtered lines, got %d", len(got))
	}
	if got := ApplyFor(principal{role: "admin"}, Filter{EndDate: "2025-01-01"}, sampleSales()); len(got) != 1 {
		t.Fatalf("expected admin end-date filter to keep 1 line, got %d", len(got))
	}
}

func TestSearchAcrossFields(t *testing.T) {
	if got := Search(sampleSales(), "card"); len(got) != 1 || got[0].StationID != "F602" {
		t.Fatalf("unexpected search result %+v", got)
	}
	if got := Search(sampleSales(), "  "); len(got) != 5 {
		t.Fatalf("blank search must keep everything")
	}
}

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	page, total := Paginate(items, 2, 2)
	if total != 3 || len(page) != 2 || page[0] != 3 {
		t.Fatalf("unexpected page %v total %d", page, total)
	}
	page, _ = Paginate(items, 9, 2)
	if len(page) != 0 {
		t.Fatalf("expected empty out-of-range page")
	}
}

func TestParseDate(t *testing.T) {
	if d, err := ParseDate(""); err != nil || d != nil {
		t.Fatalf("empty date should be nil")
	}
	if _, err := ParseDate("2025/01/01"); err == nil {
		t.Fatalf("expected error for bad layout")
	}
	d, err := ParseDate("2025-02-03")
	if err != nil || d.Day() != 3 {
		t.Fatalf("unexpected parse %v %v", d, err)
	}
}

func TestSummarize(t *testing.T) {
	d := Summarize(sampleSales(), 4)
	if d.KPI.TotalStations != 4 || d.KPI.HSDVolume != 107 || d.KPI.ULG95Volume != 50 || d.KPI.ULR91Volume != 20 {
		t.Fatalf("unexpected kpi %+v", d.KPI)
	}
	var cash float64
	for _, p := range d.Charts.SalesByPayment {
		if p.Name == "Cash" {
			cash = p.Value
		}
	}
	if cash != 4 {
		t.Fatalf("expected 4 cash lines, got %v", cash)
	}
	var other bool
	for _, p := range d.Charts.VolumeByProduct {
		if p.Name == "Other" && p.Value == 5 {
			other = true
		}
	}
	if !other {
		t.Fatalf("expected untracked material under Other: %+v", d.Charts.VolumeByProduct)
	}
}

func TestExports(t *testing.T) {
	rows := Pivot(sampleSales())

	var csvBuf bytes.Buffer
	if err := WriteCSV(&csvBuf, rows); err != nil {
		t.Fatalf("csv: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(csvBuf.String()), "\n")
	if len(lines) != len(rows)+1 || !strings.HasPrefix(lines[0], "ID Type,Station ID") {
		t.Fatalf("unexpected csv %q", csvBuf.String())
	}

	var xlsxBuf bytes.Buffer
	if err := WriteXLSX(&xlsxBuf, rows); err != nil {
		t.Fatalf("xlsx: %v", err)
	}
	f, err := excelize.OpenReader(&xlsxBuf)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = f.Close() }()
	got, err := f.GetRows(SheetName)
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(got) != len(rows)+1 || got[0][len(Columns)-1] != "Total Amount" {
		t.Fatalf("unexpected sheet rows %v", got)
	}
}
