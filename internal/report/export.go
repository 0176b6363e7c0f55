package report

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet written by WriteXLSX.
const SheetName = "Sales Report"

// Labels returns the column labels in display order.
func Labels() []string {
	out := make([]string, len(Columns))
	for i, c := range Columns {
		out[i] = c.Label
	}
	return out
}

// WriteXLSX writes pivoted rows under a label header. Volume and amount cells stay numeric.
func WriteXLSX(w io.Writer, rows []PivotRow) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("report: rename sheet: %w", err)
	}
	header := make([]any, len(Columns))
	for i, label := range Labels() {
		header[i] = label
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("report: header: %w", err)
	}
	for i, r := range rows {
		var shift any
		if r.ShiftID != nil {
			shift = *r.ShiftID
		}
		record := []any{
			r.IDType, r.StationID, r.Station, r.AMName, r.ProvinceName, r.DateCompleted, r.Payment, shift,
			r.HSD, r.ULG95, r.ULR91, r.TotalAmount,
		}
		cell, errCell := excelize.CoordinatesToCellName(1, i+2)
		if errCell != nil {
			return fmt.Errorf("report: cell name: %w", errCell)
		}
		if err := f.SetSheetRow(SheetName, cell, &record); err != nil {
			return fmt.Errorf("report: row %d: %w", i+2, err)
		}
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("report: write xlsx: %w", err)
	}
	return nil
}

// WriteCSV writes pivoted rows as CSV with the same header as WriteXLSX.
func WriteCSV(w io.Writer, rows []PivotRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Labels()); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(r.Values()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
