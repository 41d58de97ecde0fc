// Package export renders a club's registration sheet as an .xlsx workbook.
package export

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"club-registration/internal/apperr"
	"club-registration/internal/sheets"
)

const (
	SheetName   = "Registrations"
	sourceRange = "A:F"
)

// WriteXLSX copies every row of documentID, header included, into a
// workbook written to w. It returns the number of registrations, not
// counting the header.
func WriteXLSX(ctx context.Context, store sheets.Store, documentID string, w io.Writer) (int, error) {
	if strings.TrimSpace(documentID) == "" {
		return 0, apperr.Validation("sheetId is required")
	}
	grid, err := store.GetRange(ctx, sheets.GetRangeRequest{DocumentID: documentID, Range: sourceRange})
	if err != nil {
		return 0, apperr.Store("read registrations", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return 0, err
	}
	for i, row := range grid {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return 0, err
		}
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return 0, fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	if len(grid) > 0 {
		bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err != nil {
			return 0, err
		}
		if err := f.SetRowStyle(SheetName, 1, 1, bold); err != nil {
			return 0, err
		}
		if err := f.SetColWidth(SheetName, "A", "F", 24); err != nil {
			return 0, err
		}
	}

	if err := f.Write(w); err != nil {
		return 0, fmt.Errorf("write workbook: %w", err)
	}
	n := len(grid) - 1
	if n < 0 {
		n = 0
	}
	return n, nil
}
