package records

import (
	"math"
	"strconv"
	"strings"
)

// Column names of the persisted table, in their fixed order.
const (
	ColumnSerial  = "Serial"
	ColumnID      = "ID"
	ColumnName    = "Name"
	ColumnFather  = "Father"
	ColumnMother  = "Mother"
	ColumnClass   = "Class"
	ColumnSession = "Session"
	ColumnDOB     = "DOB"
)

// Columns lists the recognised columns in storage order.
var Columns = []string{
	ColumnSerial,
	ColumnID,
	ColumnName,
	ColumnFather,
	ColumnMother,
	ColumnClass,
	ColumnSession,
	ColumnDOB,
}

// Record is one student row.
type Record struct {
	Serial  int    `json:"serial"`
	ID      string `json:"id"`
	Name    string `json:"name"`
	Father  string `json:"father"`
	Mother  string `json:"mother"`
	Class   string `json:"class"`
	Session string `json:"session"`
	DOB     string `json:"dob"`
}

// Patch is a partial record keyed by ID. Nil fields are left untouched when
// the patch is merged into an existing row.
type Patch struct {
	ID      string
	Serial  *string
	Name    *string
	Father  *string
	Mother  *string
	Class   *string
	Session *string
	DOB     *string
}

// PatchFromRecord builds a patch that overwrites every column.
func PatchFromRecord(r Record) Patch {
	serial := strconv.Itoa(r.Serial)
	return Patch{
		ID:      r.ID,
		Serial:  &serial,
		Name:    &r.Name,
		Father:  &r.Father,
		Mother:  &r.Mother,
		Class:   &r.Class,
		Session: &r.Session,
		DOB:     &r.DOB,
	}
}

func (p Patch) apply(r *Record) {
	if p.Serial != nil {
		r.Serial = CoerceSerial(*p.Serial)
	}
	if p.Name != nil {
		r.Name = *p.Name
	}
	if p.Father != nil {
		r.Father = *p.Father
	}
	if p.Mother != nil {
		r.Mother = *p.Mother
	}
	if p.Class != nil {
		r.Class = *p.Class
	}
	if p.Session != nil {
		r.Session = *p.Session
	}
	if p.DOB != nil {
		r.DOB = *p.DOB
	}
}

// NormalizeID canonicalises a student identifier. Surrounding whitespace is
// removed; a value made of ASCII digits with at most one decimal point is
// reduced to its integer part without leading zeros ("00123" and "123.0"
// both become "123"). Any other value is returned as is.
func NormalizeID(raw string) string {
	id := strings.TrimSpace(raw)
	if !numericLooking(id) {
		return id
	}

	intPart := id
	if dot := strings.IndexByte(id, '.'); dot >= 0 {
		intPart = id[:dot]
	}
	intPart = strings.TrimLeft(intPart, "0")
	if intPart == "" {
		return "0"
	}
	return intPart
}

func numericLooking(s string) bool {
	digits := 0
	dots := 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c >= '0' && c <= '9':
			digits++
		case c == '.':
			dots++
			if dots > 1 {
				return false
			}
		default:
			return false
		}
	}
	return digits > 0
}

// CoerceSerial converts a raw serial cell to an integer. Floats are truncated
// toward zero; anything that does not parse as a finite number below
// math.MaxInt yields 0.
func CoerceSerial(raw string) int {
	value, ok := parseSerial(raw)
	if !ok {
		return 0
	}
	return value
}

func parseSerial(raw string) (int, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n == math.MaxInt {
			return 0, false
		}
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	if f >= math.MaxInt64 || f <= math.MinInt64 {
		return 0, false
	}
	return int(f), true
}

// normalize applies the load-time coercion rules to a record built in code.
func normalize(r Record) Record {
	r.ID = NormalizeID(r.ID)
	return r
}
