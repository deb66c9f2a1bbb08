package dto

import "time"

// CertificateRequest carries the form used to issue a certificate. The
// student fields are upserted into the table before the PDF is drawn.
type CertificateRequest struct {
	Kind    string         `json:"kind" validate:"required,oneof=testimonial transfer_certificate"`
	Gender  string         `json:"gender" validate:"required,oneof=male female"`
	Date    string         `json:"date" validate:"required,max=32"`
	Serial  FlexibleString `json:"serial" validate:"required,max=32"`
	ID      string         `json:"id" validate:"required,max=64"`
	Name    string         `json:"name" validate:"required,max=255"`
	Father  string         `json:"father" validate:"max=255"`
	Mother  string         `json:"mother" validate:"max=255"`
	Class   string         `json:"class" validate:"max=64"`
	Session string         `json:"session" validate:"max=64"`
	DOB     string         `json:"dob" validate:"max=32"`
}

// CertificateResponse describes a generated certificate.
type CertificateResponse struct {
	ID          uint      `json:"id"`
	Kind        string    `json:"kind"`
	StudentID   string    `json:"student_id"`
	Serial      int       `json:"serial"`
	FileName    string    `json:"file_name"`
	URL         string    `json:"url"`
	DownloadURL string    `json:"download_url"`
	SizeBytes   int64     `json:"size_bytes"`
	Checksum    string    `json:"checksum"`
	RecordSaved bool      `json:"record_saved"`
	IssuedAt    time.Time `json:"issued_at"`
}

// CertificateHistoryRequest filters the issuance log.
type CertificateHistoryRequest struct {
	Kind      string `query:"kind" validate:"omitempty,oneof=testimonial transfer_certificate"`
	StudentID string `query:"student_id" validate:"omitempty,max=64"`
	Page      int    `query:"page" validate:"omitempty,min=1"`
	PageSize  int    `query:"page_size" validate:"omitempty,min=1,max=100"`
}

// CertificateHistoryItem is one row of the issuance log.
type CertificateHistoryItem struct {
	ID          uint                   `json:"id"`
	Kind        string                 `json:"kind"`
	StudentID   string                 `json:"student_id"`
	Serial      int                    `json:"serial"`
	StudentName string                 `json:"student_name"`
	Gender      string                 `json:"gender"`
	IssueDate   string                 `json:"issue_date"`
	FileName    string                 `json:"file_name"`
	URL         string                 `json:"url"`
	SizeBytes   int64                  `json:"size_bytes"`
	Checksum    string                 `json:"checksum"`
	IssuedBy    string                 `json:"issued_by,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

// CertificateHistoryResponse is a page of the issuance log.
type CertificateHistoryResponse struct {
	Items      []CertificateHistoryItem `json:"items"`
	Pagination PaginationMeta           `json:"pagination"`
}

// CertificateFile is a downloadable PDF.
type CertificateFile struct {
	FileName string
	Data     []byte
	Cached   bool
}

// ClearGeneratedResponse reports how many stored PDFs were removed.
type ClearGeneratedResponse struct {
	Removed int `json:"removed"`
}

// PaginationMeta describes pagination information for list responses.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}
