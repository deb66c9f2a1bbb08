package dto

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/noah-isme/certdesk-go-api/internal/records"
)

// FlexibleString accepts either a JSON string or a JSON number. Serial numbers
// arrive both ways from spreadsheets and forms.
type FlexibleString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexibleString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexibleString(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*f = FlexibleString(n.String())
	return nil
}

// RecordUpsertRequest is a partial student record. Absent fields keep their stored value.
type RecordUpsertRequest struct {
	Serial  *FlexibleString `json:"serial" validate:"omitempty,max=32"`
	ID      string          `json:"id" validate:"required,max=64"`
	Name    *string         `json:"name" validate:"omitempty,max=255"`
	Father  *string         `json:"father" validate:"omitempty,max=255"`
	Mother  *string         `json:"mother" validate:"omitempty,max=255"`
	Class   *string         `json:"class" validate:"omitempty,max=64"`
	Session *string         `json:"session" validate:"omitempty,max=64"`
	DOB     *string         `json:"dob" validate:"omitempty,max=32"`
}

// Patch converts the request into a store patch.
func (r RecordUpsertRequest) Patch() records.Patch {
	p := records.Patch{
		ID:      r.ID,
		Name:    r.Name,
		Father:  r.Father,
		Mother:  r.Mother,
		Class:   r.Class,
		Session: r.Session,
		DOB:     r.DOB,
	}
	if r.Serial != nil {
		serial := string(*r.Serial)
		p.Serial = &serial
	}
	return p
}

// RecordReplaceRequest replaces the whole table, as when edits to the grid are applied.
type RecordReplaceRequest struct {
	Records []RecordRow `json:"records" validate:"dive"`
}

// RecordRow is one full row of a bulk edit.
type RecordRow struct {
	Serial  FlexibleString `json:"serial" validate:"max=32"`
	ID      string         `json:"id" validate:"required,max=64"`
	Name    string         `json:"name" validate:"max=255"`
	Father  string         `json:"father" validate:"max=255"`
	Mother  string         `json:"mother" validate:"max=255"`
	Class   string         `json:"class" validate:"max=64"`
	Session string         `json:"session" validate:"max=64"`
	DOB     string         `json:"dob" validate:"max=32"`
}

// Record converts the row, coercing the serial.
func (r RecordRow) Record() records.Record {
	return records.Record{
		Serial:  records.CoerceSerial(string(r.Serial)),
		ID:      r.ID,
		Name:    r.Name,
		Father:  r.Father,
		Mother:  r.Mother,
		Class:   r.Class,
		Session: r.Session,
		DOB:     r.DOB,
	}
}

// RecordUpsertResponse reports the stored row after an upsert.
type RecordUpsertResponse struct {
	Record  records.Record `json:"record"`
	Created bool           `json:"created"`
	Saved   bool           `json:"saved"`
}

// RecordListResponse returns the whole table plus the serial the next new record would get.
type RecordListResponse struct {
	Records    []records.Record `json:"records"`
	Total      int              `json:"total"`
	NextSerial int              `json:"next_serial"`
}

// NextSerialResponse wraps the next serial.
type NextSerialResponse struct {
	NextSerial int `json:"next_serial"`
}

// WorkbookResponse describes the table after a save, reload, import or replace.
type WorkbookResponse struct {
	Path       string `json:"path"`
	Format     string `json:"format,omitempty"`
	Records    int    `json:"records"`
	NextSerial int    `json:"next_serial"`
	Saved      bool   `json:"saved"`
}

// ExportResult carries a downloadable rendition of the table.
type ExportResult struct {
	FileName    string
	ContentType string
	Data        []byte
}
