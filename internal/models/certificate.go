package models

import (
	"time"

	"gorm.io/datatypes"
)

// IssuedCertificate logs one generated testimonial or transfer certificate.
type IssuedCertificate struct {
	ID          uint              `gorm:"primaryKey" json:"id"`
	Kind        string            `gorm:"size:32;index:idx_issued_kind_student;not null" json:"kind"`
	StudentID   string            `gorm:"size:64;index:idx_issued_kind_student;not null" json:"student_id"`
	Serial      int               `json:"serial"`
	StudentName string            `gorm:"size:255" json:"student_name"`
	Gender      string            `gorm:"size:16" json:"gender"`
	IssueDate   string            `gorm:"size:32" json:"issue_date"`
	FileName    string            `gorm:"size:255;not null" json:"file_name"`
	StorageKey  string            `gorm:"size:512" json:"-"`
	URL         string            `gorm:"size:1024" json:"url"`
	SizeBytes   int64             `json:"size_bytes"`
	Checksum    string            `gorm:"size:64" json:"checksum"`
	Metadata    datatypes.JSONMap `gorm:"type:json" json:"metadata,omitempty"`
	IssuedBy    string            `gorm:"size:128" json:"issued_by,omitempty"`
	CreatedAt   time.Time         `gorm:"index" json:"created_at"`
}

// TableName pins the table name used by migrations.
func (IssuedCertificate) TableName() string {
	return "issued_certificates"
}
