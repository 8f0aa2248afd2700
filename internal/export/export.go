// Package export renders the attendance table as CSV or as a spreadsheet.
// Both formats carry the columns id, name, date, time in ledger order.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/RudraShekhare/face-attendance-system/internal/domain"
	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet holding the attendance rows.
const SheetName = "Attendance"

// Header is the column row shared by both formats.
var Header = []string{"id", "name", "date", "time"}

// WriteCSV writes records as CSV with a header row.
func WriteCSV(w io.Writer, records []domain.AttendanceRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, r := range records {
		if err := cw.Write([]string{strconv.FormatUint(uint64(r.ID), 10), r.Name, r.Date, r.Time}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes records as an .xlsx workbook with a single sheet.
func WriteXLSX(w io.Writer, records []domain.AttendanceRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	header := make([]interface{}, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, r := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{r.ID, r.Name, r.Date, r.Time}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze header: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
