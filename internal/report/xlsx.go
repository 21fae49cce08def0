package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// XLSXRenderer writes one worksheet per table. Spreadsheets are not paged.
type XLSXRenderer struct{}

func NewXLSXRenderer() *XLSXRenderer { return &XLSXRenderer{} }

func (XLSXRenderer) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (XLSXRenderer) Extension() string { return "xlsx" }

func (XLSXRenderer) Render(w io.Writer, doc Document) error {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"6B46C1"}},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	const defaultSheet = "Sheet1"
	if len(doc.Tables) == 0 {
		if err := f.SetCellValue(defaultSheet, "A1", doc.Title); err != nil {
			return err
		}
		if err := f.SetCellValue(defaultSheet, "A2", doc.Period); err != nil {
			return err
		}
		return f.Write(w)
	}

	for i, table := range doc.Tables {
		sheet := table.Title
		if i == 0 {
			if err := f.SetSheetName(defaultSheet, sheet); err != nil {
				return fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("create sheet %q: %w", sheet, err)
		}

		if err := f.SetCellValue(sheet, "A1", doc.Period); err != nil {
			return err
		}
		if err := writeRow(f, sheet, 3, table.Headers); err != nil {
			return err
		}
		last, _ := excelize.CoordinatesToCellName(len(table.Headers), 3)
		if err := f.SetCellStyle(sheet, "A3", last, headerStyle); err != nil {
			return fmt.Errorf("style header: %w", err)
		}
		for r, row := range table.Rows {
			if err := writeRow(f, sheet, r+4, row); err != nil {
				return err
			}
		}
	}

	return f.Write(w)
}

func writeRow(f *excelize.File, sheet string, row int, cells []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	values := make([]interface{}, len(cells))
	for i, c := range cells {
		values[i] = c
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write row %d on %q: %w", row, sheet, err)
	}
	return nil
}
