package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// XLSXExporter renders Dataset records into an .xlsx workbook.
type XLSXExporter struct {
	SheetName string
}

// NewXLSXExporter builds an XLSX exporter writing to a single sheet.
func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{SheetName: "Sheet1"}
}

// Render produces xlsx encoded bytes for the dataset.
func (e *XLSXExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("xlsx requires at least one header")
	}

	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	sheet := e.SheetName
	if sheet == "" {
		sheet = "Sheet1"
	}
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerRow := make([]interface{}, len(data.Headers))
	for i, h := range data.Headers {
		headerRow[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &headerRow); err != nil {
		return nil, fmt.Errorf("write xlsx headers: %w", err)
	}

	for rowIdx, row := range data.Rows {
		record := make([]interface{}, len(data.Headers))
		for i, header := range data.Headers {
			record[i] = row[header]
		}
		cell, err := excelize.CoordinatesToCellName(1, rowIdx+2)
		if err != nil {
			return nil, fmt.Errorf("resolve cell: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &record); err != nil {
			return nil, fmt.Errorf("write xlsx row: %w", err)
		}
	}

	buf := &bytes.Buffer{}
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("render xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

// ParseSheet reads the first sheet of an .xlsx payload into header-keyed
// rows. The first row is treated as the header row.
func ParseSheet(payload []byte) (Dataset, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return Dataset{}, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close() //nolint:errcheck

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Dataset{}, fmt.Errorf("xlsx has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return Dataset{}, fmt.Errorf("read xlsx rows: %w", err)
	}
	if len(rows) == 0 {
		return Dataset{}, fmt.Errorf("xlsx sheet is empty")
	}

	headers := rows[0]
	data := Dataset{Headers: headers}
	for _, raw := range rows[1:] {
		row := make(map[string]string, len(headers))
		empty := true
		for i, header := range headers {
			value := ""
			if i < len(raw) {
				value = raw[i]
			}
			if value != "" {
				empty = false
			}
			row[header] = value
		}
		if !empty {
			data.Rows = append(data.Rows, row)
		}
	}
	return data, nil
}
