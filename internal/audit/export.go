package audit

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "Activity"

// ExportXLSX renders rows as a single-sheet Excel workbook.
func ExportXLSX(rows []Row) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return nil, fmt.Errorf("audit: export: %w", err)
	}

	headers := []string{"Time", "User", "Action", "Job No", "Details"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(exportSheet, cell, h)
	}

	for i, r := range rows {
		row := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(exportSheet, cell, v)
		}
		write(1, r.CreatedAt.Local().Format("2006-01-02 15:04:05"))
		write(2, r.ActorName)
		write(3, r.Action)
		write(4, r.JobNo)
		write(5, r.Details)
	}

	_ = f.SetColWidth(exportSheet, "A", "A", 20)
	_ = f.SetColWidth(exportSheet, "B", "B", 24)
	_ = f.SetColWidth(exportSheet, "C", "D", 16)
	_ = f.SetColWidth(exportSheet, "E", "E", 60)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("audit: export write: %w", err)
	}
	return buf.Bytes(), nil
}
