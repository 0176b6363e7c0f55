package stationinfo

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/router-for-me/StationPortal/internal/assignment"
	"github.com/xuri/excelize/v2"
)

// maxImportBytes caps plain-text imports.
const maxImportBytes = 4 << 20

// ReadStationIDs extracts station business ids from an uploaded file.
// Spreadsheets contribute every non-empty cell of the first sheet, CSV every field,
// anything else is treated as comma or whitespace separated text. Header cells are dropped.
func ReadStationIDs(filename string, r io.Reader) ([]string, error) {
	var cells []string
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		f, errOpen := excelize.OpenReader(r)
		if errOpen != nil {
			return nil, fmt.Errorf("stationinfo: open xlsx: %w", errOpen)
		}
		defer func() { _ = f.Close() }()
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.New("stationinfo: workbook has no sheets")
		}
		rows, errRows := f.GetRows(sheets[0])
		if errRows != nil {
			return nil, fmt.Errorf("stationinfo: read rows: %w", errRows)
		}
		for _, row := range rows {
			cells = append(cells, row...)
		}
	case ".csv":
		cr := csv.NewReader(r)
		cr.FieldsPerRecord = -1
		cr.TrimLeadingSpace = true
		records, errRead := cr.ReadAll()
		if errRead != nil {
			return nil, fmt.Errorf("stationinfo: read csv: %w", errRead)
		}
		for _, rec := range records {
			cells = append(cells, rec...)
		}
	default:
		data, errRead := io.ReadAll(io.LimitReader(r, maxImportBytes))
		if errRead != nil {
			return nil, fmt.Errorf("stationinfo: read text: %w", errRead)
		}
		cells = []string{string(data)}
	}

	tokens := assignment.ParseStationTokens(strings.Join(filterHeaders(cells), "\n"))
	return tokens, nil
}

func filterHeaders(cells []string) []string {
	out := cells[:0]
	for _, c := range cells {
		switch strings.ToLower(strings.TrimSpace(c)) {
		case "station id", "station_id", "stationid":
			continue
		}
		out = append(out, c)
	}
	return out
}
