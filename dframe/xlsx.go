package dframe

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// ReadXLSX reads the first sheet of an XLSX workbook as a table with
// a header row, using the same trimming, missing-token handling, and
// type inference as ReadCSV.
func ReadXLSX(path string) (*Frame, error) {

	wb, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%s has no sheets", path)
	}

	rows, err := wb.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s has no header row", path)
	}

	head := rows[0]
	nrow := len(rows) - 1

	f := New()
	for j, name := range head {
		raw := make([]string, nrow)
		for i := 0; i < nrow; i++ {
			if j < len(rows[i+1]) {
				raw[i] = rows[i+1][j]
			}
		}
		if err := f.AddColumn(inferColumn(name, raw)); err != nil {
			return nil, err
		}
	}

	return f, nil
}

// WriteXLSX writes the frame as a single-sheet XLSX workbook with a
// header row.  Missing values are written as empty cells.
func (f *Frame) WriteXLSX(path, sheet string) error {

	wb := excelize.NewFile()
	defer wb.Close()

	if sheet == "" {
		sheet = "Sheet1"
	}
	if sheet != "Sheet1" {
		if err := wb.SetSheetName("Sheet1", sheet); err != nil {
			return err
		}
	}

	for j, name := range f.Names() {
		cell, err := excelize.CoordinatesToCellName(j+1, 1)
		if err != nil {
			return err
		}
		if err := wb.SetCellValue(sheet, cell, name); err != nil {
			return err
		}
	}

	for i := 0; i < f.NumRow(); i++ {
		for j, c := range f.cols {
			cell, err := excelize.CoordinatesToCellName(j+1, i+2)
			if err != nil {
				return err
			}
			if c.Miss[i] {
				continue
			}
			var v interface{}
			if c.Type == Numeric {
				v = c.Num[i]
			} else {
				v = c.CellString(i)
			}
			if err := wb.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}

	return wb.SaveAs(path)
}
