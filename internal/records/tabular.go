package records

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Format identifies a tabular file encoding.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

const xlsxMime = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Extension returns the file extension for the format, including the dot.
func (f Format) Extension() string {
	return "." + string(f)
}

// ContentType returns the MIME type used when serving the format.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return xlsxMime
	}
	return "text/csv"
}

// ParseFormat accepts "xlsx" or "csv" in any case.
func ParseFormat(name string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, ".")))) {
	case FormatXLSX:
		return FormatXLSX, nil
	case FormatCSV:
		return FormatCSV, nil
	default:
		return "", &FormatError{Op: "format", Err: fmt.Errorf("unsupported format %q", name)}
	}
}

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	ext := filepath.Ext(path)
	if ext == "" {
		return "", &FormatError{Op: "format", Err: fmt.Errorf("%s has no extension", path)}
	}
	return ParseFormat(ext)
}

// DetectFormat sniffs uploaded content. The file name only settles zip
// containers; text content is always read as CSV. Legacy .xls workbooks and
// other binary content are rejected.
func DetectFormat(data []byte, name string) (Format, error) {
	mime := mimetype.Detect(data)
	namedXLSX := strings.EqualFold(filepath.Ext(name), FormatXLSX.Extension())

	switch {
	case mime.Is(xlsxMime):
		return FormatXLSX, nil
	case mime.Is("application/zip") && namedXLSX:
		return FormatXLSX, nil
	case mime.Is("text/csv"):
		return FormatCSV, nil
	case strings.HasPrefix(mime.String(), "text/"):
		return FormatCSV, nil
	}

	return "", &FormatError{Op: "detect", Err: fmt.Errorf("unsupported content type %s", mime.String())}
}

// fromTable turns raw rows into records. The first row is the header.
func fromTable(table [][]string) []Record {
	if len(table) == 0 {
		return []Record{}
	}

	index := make(map[string]int, len(Columns))
	for i, name := range table[0] {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		for _, col := range Columns {
			if strings.EqualFold(name, col) {
				if _, seen := index[col]; !seen {
					index[col] = i
				}
			}
		}
	}

	cell := func(row []string, col string) string {
		i, ok := index[col]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	rows := make([]Record, 0, len(table)-1)
	for _, row := range table[1:] {
		if blank(row) {
			continue
		}
		rows = append(rows, Record{
			Serial:  CoerceSerial(cell(row, ColumnSerial)),
			ID:      NormalizeID(cell(row, ColumnID)),
			Name:    cell(row, ColumnName),
			Father:  cell(row, ColumnFather),
			Mother:  cell(row, ColumnMother),
			Class:   cell(row, ColumnClass),
			Session: cell(row, ColumnSession),
			DOB:     cell(row, ColumnDOB),
		})
	}
	return rows
}

func (s *Store) toTable() [][]string {
	table := make([][]string, 0, len(s.rows)+1)
	table = append(table, append([]string(nil), Columns...))
	for _, r := range s.rows {
		table = append(table, []string{
			strconv.Itoa(r.Serial),
			r.ID,
			r.Name,
			r.Father,
			r.Mother,
			r.Class,
			r.Session,
			r.DOB,
		})
	}
	return table
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
