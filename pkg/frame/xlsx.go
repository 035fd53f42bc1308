package frame

import (
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"
)

const maxSheetName = 31

// Sheet is one named frame of a workbook.
type Sheet struct {
	Name  string
	Frame *Frame
}

// ReadXLSX reads a worksheet whose first row is the header. An empty sheet
// name selects the first sheet of the workbook.
func ReadXLSX(path, sheet string, opts ReadOptions) (*Frame, error) {
	wb, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	defer wb.Close()

	if sheet == "" {
		sheets := wb.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook %s has no sheet", path)
		}
		sheet = sheets[0]
	}
	rows, err := wb.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q is empty", sheet)
	}

	names := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		n := h
		if !opts.KeepHeaders {
			n = NormalizeColumn(h)
		}
		if n == "" {
			n = "col_" + strconv.Itoa(i+1)
		}
		names[i] = n
	}
	f := New(names...)
	for _, row := range rows[1:] {
		if len(row) == 0 {
			continue
		}
		f.AppendRow(row...)
	}
	return f, nil
}

// WriteXLSX writes each sheet to a new workbook. Cells that parse as numbers
// are stored as numbers so spreadsheet formulas work on them.
func WriteXLSX(path string, sheets []Sheet) error {
	if len(sheets) == 0 {
		return fmt.Errorf("write workbook %s: no sheet", path)
	}
	wb := excelize.NewFile()
	defer wb.Close()

	for i, s := range sheets {
		name := s.Name
		if len(name) > maxSheetName {
			name = name[:maxSheetName]
		}
		if i == 0 {
			if err := wb.SetSheetName("Sheet1", name); err != nil {
				return fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := wb.NewSheet(name); err != nil {
			return fmt.Errorf("new sheet %q: %w", name, err)
		}

		for c, h := range s.Frame.names {
			cell, _ := excelize.CoordinatesToCellName(c+1, 1)
			wb.SetCellValue(name, cell, h)
		}
		for r := 0; r < s.Frame.rows; r++ {
			row := make([]any, len(s.Frame.cols))
			for c, col := range s.Frame.cols {
				if n := ParseNum(col[r]); n.Valid && looksNumeric(col[r]) {
					row[c] = n.V
				} else {
					row[c] = col[r]
				}
			}
			cell, _ := excelize.CoordinatesToCellName(1, r+2)
			if err := wb.SetSheetRow(name, cell, &row); err != nil {
				return fmt.Errorf("write sheet %q row %d: %w", name, r+2, err)
			}
		}
	}
	return wb.SaveAs(path)
}

// looksNumeric keeps codes with leading zeros ("01", "01004") as text.
func looksNumeric(s string) bool {
	return !(len(s) > 1 && s[0] == '0' && s[1] != '.')
}
