package tabular

import (
	"github.com/tealeg/xlsx/v2"
)

func decodeSpreadsheet(data []byte, sheetName string) (*Table, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, malformed(KindSpreadsheet, "open workbook: %v", err)
	}

	sheet, err := pickSheet(f, sheetName)
	if err != nil {
		return nil, err
	}

	var header []string
	var body [][]string
	for _, row := range sheet.Rows {
		if row == nil {
			continue
		}
		rec := rowToStrings(row)
		if isBlankRecord(rec) {
			continue
		}
		if header == nil {
			header = rec
			continue
		}
		body = append(body, rec)
	}
	if header == nil {
		return nil, malformed(KindSpreadsheet, "sheet %q has no header row", sheet.Name)
	}
	return fromRecords(header, body), nil
}

func pickSheet(f *xlsx.File, name string) (*xlsx.Sheet, error) {
	if name != "" {
		sheet, ok := f.Sheet[name]
		if !ok {
			return nil, malformed(KindSpreadsheet, "sheet %q not found", name)
		}
		return sheet, nil
	}
	if len(f.Sheets) == 0 {
		return nil, malformed(KindSpreadsheet, "workbook has no sheets")
	}
	return f.Sheets[0], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		if cell == nil {
			continue
		}
		cells[j] = cell.String()
	}
	return cells
}
