// Package records holds the student table: an identifier-indexed list of
// rows with upsert, lookup and serial allocation, persisted as XLSX or CSV.
package records

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
)

// Store is an in-memory student table. It is not safe for concurrent use;
// callers that share a store must serialise access.
type Store struct {
	rows []Record
}

// NewStore returns a store holding the given rows after normalisation.
func NewStore(rows ...Record) *Store {
	s := &Store{}
	s.Replace(rows)
	return s
}

// Len returns the number of rows.
func (s *Store) Len() int {
	return len(s.rows)
}

// Records returns a copy of all rows in table order.
func (s *Store) Records() []Record {
	out := make([]Record, len(s.rows))
	copy(out, s.rows)
	return out
}

// Clone returns an independent copy of the store.
func (s *Store) Clone() *Store {
	return &Store{rows: s.Records()}
}

// Replace swaps the whole table, as a bulk edit does. Rows are normalised
// but duplicate IDs are kept; FindByID returns the first of them.
func (s *Store) Replace(rows []Record) {
	next := make([]Record, 0, len(rows))
	for _, r := range rows {
		next = append(next, normalize(r))
	}
	s.rows = next
}

// NextSerial returns one more than the highest serial in the table, or 1
// when the table is empty. It saturates at math.MaxInt.
func (s *Store) NextSerial() int {
	if len(s.rows) == 0 {
		return 1
	}
	highest := s.rows[0].Serial
	for _, r := range s.rows[1:] {
		if r.Serial > highest {
			highest = r.Serial
		}
	}
	if highest == math.MaxInt {
		return highest
	}
	return highest + 1
}

// FindByID looks a record up by its normalised identifier.
func (s *Store) FindByID(id string) (Record, bool) {
	key := NormalizeID(id)
	if key == "" {
		return Record{}, false
	}
	if i := s.indexOf(key); i >= 0 {
		return s.rows[i], true
	}
	return Record{}, false
}

// Upsert merges p into the row with the same ID or appends a new row.
// It returns the stored row.
func (s *Store) Upsert(p Patch) (Record, error) {
	id := NormalizeID(p.ID)
	if id == "" {
		return Record{}, &ValidationError{Field: ColumnID, Reason: "is required"}
	}

	if i := s.indexOf(id); i >= 0 {
		p.apply(&s.rows[i])
		return s.rows[i], nil
	}

	r := Record{ID: id}
	p.apply(&r)
	s.rows = append(s.rows, r)
	return r, nil
}

func (s *Store) indexOf(id string) int {
	for i := range s.rows {
		if s.rows[i].ID == id {
			return i
		}
	}
	return -1
}

// Load parses a table from r. Unknown columns are dropped and missing ones
// default to empty values.
func Load(r io.Reader, format Format) (*Store, error) {
	var (
		table [][]string
		err   error
	)
	switch format {
	case FormatXLSX:
		table, err = readXLSX(r)
	case FormatCSV:
		table, err = readCSV(r)
	default:
		return nil, &FormatError{Op: "load", Err: fmt.Errorf("unsupported format %q", format)}
	}
	if err != nil {
		return nil, err
	}

	return &Store{rows: fromTable(table)}, nil
}

// LoadBytes parses a table held in memory.
func LoadBytes(data []byte, format Format) (*Store, error) {
	return Load(bytes.NewReader(data), format)
}

// LoadFile reads a table from path, choosing the format by extension.
func LoadFile(path string) (*Store, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	return Load(f, format)
}

// Save writes the full table to w.
func (s *Store) Save(w io.Writer, format Format) error {
	table := s.toTable()
	switch format {
	case FormatXLSX:
		return writeXLSX(w, table)
	case FormatCSV:
		return writeCSV(w, table)
	default:
		return fmt.Errorf("records: save: unsupported format %q", format)
	}
}

// SaveFile overwrites path with the table, choosing the format by extension.
func (s *Store) SaveFile(path string) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := s.Save(&buf, format); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
