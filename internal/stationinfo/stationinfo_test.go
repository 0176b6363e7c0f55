package stationinfo

import (
	"bytes"
	"reflect"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }
func u64Ptr(v uint64) *uint64 { return &v }

func sampleRows() []Row {
	return []Row{
		{ID: 1, StationID: "F10", StationName: "Ten", Active: intPtr(1), ProvinceID: strPtr("BKK"), ProvinceName: "Bangkok", SupporterID: u64Ptr(1), SupporterName: "Sam"},
		{ID: 2, StationID: "F2", StationName: "Two", Active: intPtr(0), ProvinceID: strPtr("CNX"), ProvinceName: "Chiang Mai", AMControlName: "Amy"},
		{ID: 3, StationID: "F1", StationName: "One", ProvinceID: strPtr("BKK"), ProvinceName: "Bangkok", SupporterID: u64Ptr(2), SupporterName: "Ann"},
	}
}

func stationIDs(rows []Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.StationID
	}
	return out
}

func TestApplySortsNaturally(t *testing.T) {
	got := Apply(sampleRows(), Query{Sort: []SortKey{{Key: SortStationID}}})
	if want := []string{"F1", "F2", "F10"}; !reflect.DeepEqual(stationIDs(got), want) {
		t.Fatalf("sorted = %v, want %v", stationIDs(got), want)
	}
	got = Apply(sampleRows(), Query{Sort: []SortKey{{Key: SortStationID, Desc: true}}})
	if want := []string{"F10", "F2", "F1"}; !reflect.DeepEqual(stationIDs(got), want) {
		t.Fatalf("desc sorted = %v, want %v", stationIDs(got), want)
	}
}

func TestApplyMultiKeyNestedSort(t *testing.T) {
	got := Apply(sampleRows(), Query{Sort: []SortKey{
		{Key: SortProvinceName},
		{Key: SortSupporterName},
	}})
	if want := []string{"F1", "F10", "F2"}; !reflect.DeepEqual(stationIDs(got), want) {
		t.Fatalf("sorted = %v, want %v", stationIDs(got), want)
	}
}

func TestApplyFiltersAndSearch(t *testing.T) {
	rows := sampleRows()
	got := Apply(rows, Query{ProvinceID: "BKK"})
	if len(got) != 2 {
		t.Fatalf("expected 2 Bangkok rows, got %d", len(got))
	}
	got = Apply(rows, Query{SupporterID: u64Ptr(2)})
	if !reflect.DeepEqual(stationIDs(got), []string{"F1"}) {
		t.Fatalf("unexpected supporter filter result %v", stationIDs(got))
	}
	got = Apply(rows, Query{Search: "two"})
	if !reflect.DeepEqual(stationIDs(got), []string{"F2"}) {
		t.Fatalf("unexpected search result %v", stationIDs(got))
	}
	if len(rows) != 3 || rows[0].StationID != "F10" {
		t.Fatalf("input must not be modified")
	}
}

func TestNaturalCompare(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"a2", "a10", -1},
		{"A10", "a10", 0},
		{"a010", "a10", 0},
		{"b", "a", 1},
		{"a", "ab", -1},
		{"", "", 0},
	}
	for _, tc := range cases {
		if got := naturalCompare(tc.a, tc.b); got != tc.want {
			t.Fatalf("naturalCompare(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestWriteXLSXHeaderAndRows(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteXLSX(&buf, sampleRows()); err != nil {
		t.Fatalf("write xlsx: %v", err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open xlsx: %v", err)
	}
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(SheetName)
	if err != nil {
		t.Fatalf("get rows: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected header plus 3 rows, got %d", len(rows))
	}
	if !reflect.DeepEqual(rows[0], Columns) {
		t.Fatalf("header = %v, want %v", rows[0], Columns)
	}
	if want := []string{"F2", "Two", "Chiang Mai", "Amy", "N/A", "Inactive"}; !reflect.DeepEqual(rows[2], want) {
		t.Fatalf("row = %v, want %v", rows[2], want)
	}
	if rows[3][5] != "N/A" {
		t.Fatalf("expected N/A status for unset active, got %q", rows[3][5])
	}
}

func TestWriteCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, nil); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	if got := strings.TrimSpace(buf.String()); got != strings.Join(Columns, ",") {
		t.Fatalf("unexpected csv %q", got)
	}
}

func TestReadStationIDs(t *testing.T) {
	ids, err := ReadStationIDs("list.txt", strings.NewReader("F601, F602\nF601"))
	if err != nil {
		t.Fatalf("read txt: %v", err)
	}
	if !reflect.DeepEqual(ids, []string{"F601", "F602"}) {
		t.Fatalf("unexpected ids %v", ids)
	}

	ids, err = ReadStationIDs("list.csv", strings.NewReader("Station ID\nF1\nF2,F3\n"))
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if !reflect.DeepEqual(ids, []string{"F1", "F2", "F3"}) {
		t.Fatalf("unexpected csv ids %v", ids)
	}

	book := excelize.NewFile()
	_ = book.SetCellValue("Sheet1", "A1", "Station ID")
	_ = book.SetCellValue("Sheet1", "A2", "F700")
	_ = book.SetCellValue("Sheet1", "B2", "F701")
	var buf bytes.Buffer
	if _, errWrite := book.WriteTo(&buf); errWrite != nil {
		t.Fatalf("write workbook: %v", errWrite)
	}
	_ = book.Close()

	ids, err = ReadStationIDs("upload.XLSX", &buf)
	if err != nil {
		t.Fatalf("read xlsx: %v", err)
	}
	if !reflect.DeepEqual(ids, []string{"F700", "F701"}) {
		t.Fatalf("unexpected xlsx ids %v", ids)
	}
}
