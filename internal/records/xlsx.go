package records

import (
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet written by Save.
const SheetName = "Students"

func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &FormatError{Op: "read xlsx", Err: err}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &FormatError{Op: "read xlsx", Err: fmt.Errorf("workbook has no sheets")}
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, &FormatError{Op: "read xlsx", Err: err}
	}
	return rows, nil
}

func writeXLSX(w io.Writer, table [][]string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("records: name sheet: %w", err)
	}

	for i, row := range table {
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		// serials below the header are numbers; everything else stays text
		if i > 0 && len(row) > 0 {
			if n, err := strconv.Atoi(row[0]); err == nil {
				values[0] = n
			}
		}

		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("records: cell name: %w", err)
		}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return fmt.Errorf("records: write row %d: %w", i+1, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("records: write xlsx: %w", err)
	}
	return nil
}
