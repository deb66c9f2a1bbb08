package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/noah-isme/certdesk-go-api/internal/models"
)

// CertificateFilter narrows the issuance history.
type CertificateFilter struct {
	Kind      string
	StudentID string
	Page      int
	PageSize  int
}

// CertificateRepository stores the log of issued certificates.
type CertificateRepository interface {
	Create(ctx context.Context, cert *models.IssuedCertificate) error
	List(ctx context.Context, filter CertificateFilter) ([]models.IssuedCertificate, int64, error)
	Latest(ctx context.Context, kind, studentID string) (models.IssuedCertificate, error)
	All(ctx context.Context) ([]models.IssuedCertificate, error)
}

type certificateRepository struct {
	db *gorm.DB
}

// NewCertificateRepository constructs a repository for issued certificates.
func NewCertificateRepository(db *gorm.DB) CertificateRepository {
	return &certificateRepository{db: db}
}

func (r *certificateRepository) Create(ctx context.Context, cert *models.IssuedCertificate) error {
	return r.db.WithContext(ctx).Create(cert).Error
}

func (r *certificateRepository) List(ctx context.Context, filter CertificateFilter) ([]models.IssuedCertificate, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.IssuedCertificate{})
	if kind := strings.TrimSpace(filter.Kind); kind != "" {
		query = query.Where("kind = ?", kind)
	}
	if studentID := strings.TrimSpace(filter.StudentID); studentID != "" {
		query = query.Where("student_id = ?", studentID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := filter.Page
	if page <= 0 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	var items []models.IssuedCertificate
	err := query.Order("created_at DESC").Order("id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&items).Error
	if err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

// Latest returns gorm.ErrRecordNotFound when nothing was issued for the pair.
func (r *certificateRepository) Latest(ctx context.Context, kind, studentID string) (models.IssuedCertificate, error) {
	var cert models.IssuedCertificate
	err := r.db.WithContext(ctx).
		Where("kind = ? AND student_id = ?", kind, studentID).
		Order("id DESC").
		First(&cert).Error
	if err != nil {
		return models.IssuedCertificate{}, err
	}
	return cert, nil
}

func (r *certificateRepository) All(ctx context.Context) ([]models.IssuedCertificate, error) {
	var items []models.IssuedCertificate
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// IsNotFound reports whether err means no matching row exists.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
