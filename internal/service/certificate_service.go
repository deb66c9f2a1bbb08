package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"

	"github.com/noah-isme/certdesk-go-api/internal/certificate"
	"github.com/noah-isme/certdesk-go-api/internal/dto"
	"github.com/noah-isme/certdesk-go-api/internal/middleware"
	"github.com/noah-isme/certdesk-go-api/internal/models"
	"github.com/noah-isme/certdesk-go-api/internal/observability"
	"github.com/noah-isme/certdesk-go-api/internal/records"
	"github.com/noah-isme/certdesk-go-api/internal/repository"
)

// ErrCertificateNotFound indicates no stored PDF exists for the kind and student.
var ErrCertificateNotFound = errors.New("certificate not found")

// CertificateRenderer draws a certificate PDF.
type CertificateRenderer interface {
	Render(w io.Writer, req certificate.Request) error
}

// CertificateService issues testimonial and transfer certificates.
type CertificateService interface {
	Generate(ctx context.Context, req dto.CertificateRequest, issuedBy string) (dto.CertificateResponse, error)
	Download(ctx context.Context, kind, studentID string) (dto.CertificateFile, error)
	History(ctx context.Context, req dto.CertificateHistoryRequest) (dto.CertificateHistoryResponse, error)
	ClearGenerated(ctx context.Context) (dto.ClearGeneratedResponse, error)
}

// CertificateServiceDeps groups the collaborators of the certificate service.
// Cache and Publisher are optional.
type CertificateServiceDeps struct {
	Records   RecordService
	Renderer  CertificateRenderer
	Storage   FileStorage
	Repo      repository.CertificateRepository
	Cache     *redis.Client
	CacheTTL  time.Duration
	Publisher EventPublisher
	Validator *validator.Validate
	// DownloadBase prefixes the download link returned to callers.
	DownloadBase string
}

type certificateService struct {
	deps   CertificateServiceDeps
	logger zerolog.Logger
	tracer trace.Tracer
	now    func() time.Time
}

// NewCertificateService constructs the certificate service.
func NewCertificateService(deps CertificateServiceDeps, logger zerolog.Logger) CertificateService {
	if deps.CacheTTL <= 0 {
		deps.CacheTTL = 10 * time.Minute
	}
	if deps.Publisher == nil {
		deps.Publisher = NewNoopPublisher()
	}
	if deps.DownloadBase == "" {
		deps.DownloadBase = "/api/v1/certificates"
	}
	return &certificateService{
		deps:   deps,
		logger: logger.With().Str("component", "certificate_service").Logger(),
		tracer: otel.Tracer("github.com/noah-isme/certdesk-go-api/internal/service/certificate"),
		now:    time.Now,
	}
}

// Generate upserts the student, draws the PDF, stores it and logs the issuance.
// A workbook flush failure does not stop generation.
func (s *certificateService) Generate(ctx context.Context, req dto.CertificateRequest, issuedBy string) (dto.CertificateResponse, error) {
	ctx, span := s.tracer.Start(ctx, "certificate.generate")
	defer span.End()

	logger := s.requestLogger(ctx)

	if kind, err := certificate.ParseKind(req.Kind); err == nil {
		req.Kind = string(kind)
	}
	req.Gender = strings.ToLower(strings.TrimSpace(req.Gender))
	req.Date = strings.TrimSpace(req.Date)
	if err := s.deps.Validator.Struct(req); err != nil {
		span.SetStatus(codes.Error, "validation failed")
		return dto.CertificateResponse{}, err
	}
	kind := certificate.Kind(req.Kind)
	gender := certificate.Gender(req.Gender)
	span.SetAttributes(attribute.String("certificate.kind", req.Kind))

	upserted, err := s.deps.Records.Upsert(ctx, recordRequestFrom(req))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "record upsert failed")
		return dto.CertificateResponse{}, err
	}
	rec := upserted.Record
	span.SetAttributes(attribute.String("certificate.student_id", rec.ID))
	if !upserted.Saved {
		logger.Warn().Str("student_id", rec.ID).Msg("record not flushed to workbook, generating anyway")
	}

	pdf, err := s.render(ctx, certificate.Request{Kind: kind, Record: rec, Gender: gender, Date: req.Date})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "render failed")
		return dto.CertificateResponse{}, err
	}

	fileName := certificate.FileName(kind, rec.ID)
	stored, err := s.deps.Storage.Save(ctx, certificate.StorageName(kind, rec.ID), pdf)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "storage failed")
		return dto.CertificateResponse{}, err
	}

	checksum := sha256.Sum256(pdf)
	issued := models.IssuedCertificate{
		Kind:        string(kind),
		StudentID:   rec.ID,
		Serial:      rec.Serial,
		StudentName: rec.Name,
		Gender:      string(gender),
		IssueDate:   req.Date,
		FileName:    fileName,
		StorageKey:  stored.Key,
		URL:         stored.URL,
		SizeBytes:   int64(len(pdf)),
		Checksum:    hex.EncodeToString(checksum[:]),
		IssuedBy:    issuedBy,
		Metadata: datatypes.JSONMap{
			"class":          rec.Class,
			"session":        rec.Session,
			"record_created": upserted.Created,
			"record_saved":   upserted.Saved,
		},
	}
	if err := s.deps.Repo.Create(ctx, &issued); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persistence failed")
		return dto.CertificateResponse{}, err
	}

	s.cachePut(ctx, kind, rec.ID, pdf)

	event := CertificateIssuedEvent{
		CertificateID: issued.ID,
		Kind:          issued.Kind,
		StudentID:     issued.StudentID,
		Serial:        issued.Serial,
		FileName:      issued.FileName,
		URL:           issued.URL,
		Checksum:      issued.Checksum,
		IssuedAt:      issued.CreatedAt,
	}
	if err := s.deps.Publisher.PublishCertificateIssued(ctx, event); err != nil {
		logger.Warn().Err(err).Uint("certificate_id", issued.ID).Msg("issuance event not published")
	}

	observability.CertificatesGenerated().WithLabelValues(string(kind)).Inc()
	span.SetStatus(codes.Ok, "issued")
	logger.Info().Str("kind", issued.Kind).Str("student_id", issued.StudentID).Str("file", fileName).Msg("certificate issued")

	return dto.CertificateResponse{
		ID:          issued.ID,
		Kind:        issued.Kind,
		StudentID:   issued.StudentID,
		Serial:      issued.Serial,
		FileName:    issued.FileName,
		URL:         issued.URL,
		DownloadURL: fmt.Sprintf("%s/%s/%s", s.deps.DownloadBase, issued.Kind, issued.StudentID),
		SizeBytes:   issued.SizeBytes,
		Checksum:    issued.Checksum,
		RecordSaved: upserted.Saved,
		IssuedAt:    issued.CreatedAt,
	}, nil
}

func (s *certificateService) render(ctx context.Context, req certificate.Request) ([]byte, error) {
	_, span := s.tracer.Start(ctx, "certificate.render")
	defer span.End()

	start := s.now()
	defer func() {
		observability.CertificateRenderSeconds().Observe(time.Since(start).Seconds())
	}()

	var buf bytes.Buffer
	if err := s.deps.Renderer.Render(&buf, req); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("render %s: %w", req.Kind, err)
	}
	span.SetAttributes(attribute.Int("certificate.size_bytes", buf.Len()))
	return buf.Bytes(), nil
}

// Download serves the most recent PDF for the pair, from cache when possible.
func (s *certificateService) Download(ctx context.Context, kindValue, studentID string) (dto.CertificateFile, error) {
	kind, err := certificate.ParseKind(kindValue)
	if err != nil {
		return dto.CertificateFile{}, ErrCertificateNotFound
	}
	studentID = records.NormalizeID(studentID)
	if studentID == "" {
		return dto.CertificateFile{}, ErrCertificateNotFound
	}
	fileName := certificate.FileName(kind, studentID)

	if data, ok := s.cacheGet(ctx, kind, studentID); ok {
		return dto.CertificateFile{FileName: fileName, Data: data, Cached: true}, nil
	}

	issued, err := s.deps.Repo.Latest(ctx, string(kind), studentID)
	if err != nil {
		if repository.IsNotFound(err) {
			return dto.CertificateFile{}, ErrCertificateNotFound
		}
		return dto.CertificateFile{}, err
	}

	data, err := s.deps.Storage.Open(ctx, StoredFile{Key: issued.StorageKey, URL: issued.URL})
	if err != nil {
		if errors.Is(err, ErrStoredFileMissing) {
			return dto.CertificateFile{}, ErrCertificateNotFound
		}
		return dto.CertificateFile{}, err
	}

	s.cachePut(ctx, kind, studentID, data)
	return dto.CertificateFile{FileName: issued.FileName, Data: data}, nil
}

func (s *certificateService) History(ctx context.Context, req dto.CertificateHistoryRequest) (dto.CertificateHistoryResponse, error) {
	if kind, err := certificate.ParseKind(req.Kind); err == nil {
		req.Kind = string(kind)
	}
	if err := s.deps.Validator.Struct(req); err != nil {
		return dto.CertificateHistoryResponse{}, err
	}
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.PageSize <= 0 {
		req.PageSize = 20
	}

	items, total, err := s.deps.Repo.List(ctx, repository.CertificateFilter{
		Kind:      req.Kind,
		StudentID: records.NormalizeID(req.StudentID),
		Page:      req.Page,
		PageSize:  req.PageSize,
	})
	if err != nil {
		return dto.CertificateHistoryResponse{}, err
	}

	out := make([]dto.CertificateHistoryItem, 0, len(items))
	for _, item := range items {
		out = append(out, dto.CertificateHistoryItem{
			ID:          item.ID,
			Kind:        item.Kind,
			StudentID:   item.StudentID,
			Serial:      item.Serial,
			StudentName: item.StudentName,
			Gender:      item.Gender,
			IssueDate:   item.IssueDate,
			FileName:    item.FileName,
			URL:         item.URL,
			SizeBytes:   item.SizeBytes,
			Checksum:    item.Checksum,
			IssuedBy:    item.IssuedBy,
			Metadata:    item.Metadata,
			CreatedAt:   item.CreatedAt,
		})
	}

	return dto.CertificateHistoryResponse{
		Items: out,
		Pagination: dto.PaginationMeta{
			Page:       req.Page,
			PageSize:   req.PageSize,
			TotalItems: total,
			TotalPages: int(math.Ceil(float64(total) / float64(req.PageSize))),
		},
	}, nil
}

// ClearGenerated deletes every stored PDF and its cache entry. The issuance
// log is kept as history.
func (s *certificateService) ClearGenerated(ctx context.Context) (dto.ClearGeneratedResponse, error) {
	issued, err := s.deps.Repo.All(ctx)
	if err != nil {
		return dto.ClearGeneratedResponse{}, err
	}

	removed := 0
	seen := make(map[string]struct{}, len(issued))
	for _, item := range issued {
		if _, dup := seen[item.StorageKey]; dup || item.StorageKey == "" {
			continue
		}
		seen[item.StorageKey] = struct{}{}

		ok, err := s.deps.Storage.Remove(ctx, StoredFile{Key: item.StorageKey, URL: item.URL})
		if err != nil {
			return dto.ClearGeneratedResponse{Removed: removed}, err
		}
		if ok {
			removed++
		}
		s.cacheDelete(ctx, certificate.Kind(item.Kind), item.StudentID)
	}

	s.requestLogger(ctx).Info().Int("removed", removed).Msg("generated certificates cleared")
	return dto.ClearGeneratedResponse{Removed: removed}, nil
}

func cacheKey(kind certificate.Kind, studentID string) string {
	return fmt.Sprintf("certificate:%s:%s", kind, studentID)
}

func (s *certificateService) cacheGet(ctx context.Context, kind certificate.Kind, studentID string) ([]byte, bool) {
	if s.deps.Cache == nil {
		return nil, false
	}
	data, err := s.deps.Cache.Get(ctx, cacheKey(kind, studentID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("certificate cache read failed")
		}
		return nil, false
	}
	return data, true
}

func (s *certificateService) cachePut(ctx context.Context, kind certificate.Kind, studentID string, data []byte) {
	if s.deps.Cache == nil {
		return
	}
	if err := s.deps.Cache.Set(ctx, cacheKey(kind, studentID), data, s.deps.CacheTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("certificate cache write failed")
	}
}

func (s *certificateService) cacheDelete(ctx context.Context, kind certificate.Kind, studentID string) {
	if s.deps.Cache == nil {
		return
	}
	if err := s.deps.Cache.Del(ctx, cacheKey(kind, studentID)).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("certificate cache delete failed")
	}
}

func (s *certificateService) requestLogger(ctx context.Context) *zerolog.Logger {
	logger := s.logger
	if id := middleware.CorrelationIDFromContext(ctx); id != "" {
		logger = logger.With().Str("correlation_id", id).Logger()
	}
	return &logger
}

func recordRequestFrom(req dto.CertificateRequest) dto.RecordUpsertRequest {
	serial := req.Serial
	name, father, mother := req.Name, req.Father, req.Mother
	class, session, dob := req.Class, req.Session, req.DOB
	return dto.RecordUpsertRequest{
		Serial:  &serial,
		ID:      req.ID,
		Name:    &name,
		Father:  &father,
		Mother:  &mother,
		Class:   &class,
		Session: &session,
		DOB:     &dob,
	}
}
