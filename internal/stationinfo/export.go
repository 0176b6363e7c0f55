package stationinfo

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet written by WriteXLSX.
const SheetName = "Stations"

// Columns is the export header in table order.
var Columns = []string{"Station ID", "Name", "Province", "AM Control", "Supporter", "Status"}

// exportRecord renders one row in Columns order.
func exportRecord(r Row) []string {
	return []string{
		r.StationID,
		r.StationName,
		orNA(r.ProvinceName),
		orNA(r.AMControlName),
		orNA(r.SupporterName),
		r.Status(),
	}
}

func orNA(v string) string {
	if v == "" {
		return "N/A"
	}
	return v
}

// WriteXLSX writes a workbook with one header row followed by one row per station.
func WriteXLSX(w io.Writer, rows []Row) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if errRename := f.SetSheetName("Sheet1", SheetName); errRename != nil {
		return fmt.Errorf("stationinfo: rename sheet: %w", errRename)
	}
	if errHeader := setRow(f, 1, Columns); errHeader != nil {
		return errHeader
	}
	for i, r := range rows {
		if errRow := setRow(f, i+2, exportRecord(r)); errRow != nil {
			return errRow
		}
	}
	if _, errWrite := f.WriteTo(w); errWrite != nil {
		return fmt.Errorf("stationinfo: write xlsx: %w", errWrite)
	}
	return nil
}

func setRow(f *excelize.File, rowNum int, values []string) error {
	cell, errCell := excelize.CoordinatesToCellName(1, rowNum)
	if errCell != nil {
		return fmt.Errorf("stationinfo: cell name: %w", errCell)
	}
	record := make([]any, len(values))
	for i, v := range values {
		record[i] = v
	}
	if errSet := f.SetSheetRow(SheetName, cell, &record); errSet != nil {
		return fmt.Errorf("stationinfo: set row %d: %w", rowNum, errSet)
	}
	return nil
}

// WriteCSV writes the same header and rows as WriteXLSX in CSV form.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if errHeader := cw.Write(Columns); errHeader != nil {
		return errHeader
	}
	for _, r := range rows {
		if errRow := cw.Write(exportRecord(r)); errRow != nil {
			return errRow
		}
	}
	cw.Flush()
	return cw.Error()
}
