package records

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
)

func readCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, &FormatError{Op: "read csv", Err: err}
	}
	if len(rows) == 0 {
		return nil, &FormatError{Op: "read csv", Err: errors.New("missing header row")}
	}
	return rows, nil
}

func writeCSV(w io.Writer, table [][]string) error {
	writer := csv.NewWriter(w)
	if err := writer.WriteAll(table); err != nil {
		return fmt.Errorf("records: write csv: %w", err)
	}
	return nil
}
