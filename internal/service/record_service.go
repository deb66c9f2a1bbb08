package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"

	"github.com/noah-isme/certdesk-go-api/internal/dto"
	"github.com/noah-isme/certdesk-go-api/internal/observability"
	"github.com/noah-isme/certdesk-go-api/internal/records"
	"github.com/noah-isme/certdesk-go-api/internal/repository"
)

var (
	// ErrRecordNotFound indicates no student row carries the requested ID.
	ErrRecordNotFound = errors.New("student record not found")
	// ErrImportTooLarge indicates an uploaded table exceeded the configured limit.
	ErrImportTooLarge = errors.New("import exceeds maximum allowed size")
)

// RecordService owns the in-memory student table for the lifetime of the process.
type RecordService interface {
	List(ctx context.Context) (dto.RecordListResponse, error)
	Get(ctx context.Context, id string) (records.Record, error)
	NextSerial(ctx context.Context) (int, error)
	Upsert(ctx context.Context, req dto.RecordUpsertRequest) (dto.RecordUpsertResponse, error)
	Replace(ctx context.Context, req dto.RecordReplaceRequest) (dto.WorkbookResponse, error)
	Import(ctx context.Context, name string, data []byte) (dto.WorkbookResponse, error)
	Export(ctx context.Context, format records.Format) (dto.ExportResult, error)
	Save(ctx context.Context) (dto.WorkbookResponse, error)
	Reload(ctx context.Context) (dto.WorkbookResponse, error)
}

// RecordServiceOptions tunes persistence behaviour.
type RecordServiceOptions struct {
	// Autosave flushes the workbook after every mutation.
	Autosave bool
	// MaxImportBytes caps uploaded tables; zero means 10 MiB.
	MaxImportBytes int64
}

type recordService struct {
	mu        sync.RWMutex
	store     *records.Store
	repo      repository.WorkbookRepository
	validator *validator.Validate
	policy    *bluemonday.Policy
	opts      RecordServiceOptions
	logger    zerolog.Logger
}

// NewRecordService loads the workbook and returns a service owning it. A
// workbook that exists but cannot be parsed is an error, never an empty table.
func NewRecordService(ctx context.Context, repo repository.WorkbookRepository, validate *validator.Validate, opts RecordServiceOptions, logger zerolog.Logger) (RecordService, error) {
	store, err := repo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load workbook %s: %w", repo.Path(), err)
	}
	if opts.MaxImportBytes <= 0 {
		opts.MaxImportBytes = 10 * 1024 * 1024
	}

	s := &recordService{
		store:     store,
		repo:      repo,
		validator: validate,
		policy:    bluemonday.StrictPolicy(),
		opts:      opts,
		logger:    logger.With().Str("component", "record_service").Logger(),
	}
	s.logger.Info().Str("path", repo.Path()).Int("records", store.Len()).Msg("workbook loaded")
	return s, nil
}

func (s *recordService) List(ctx context.Context) (dto.RecordListResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.store.Records()
	return dto.RecordListResponse{Records: rows, Total: len(rows), NextSerial: s.store.NextSerial()}, nil
}

func (s *recordService) Get(ctx context.Context, id string) (records.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.store.FindByID(id)
	if !ok {
		return records.Record{}, ErrRecordNotFound
	}
	return rec, nil
}

func (s *recordService) NextSerial(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.store.NextSerial(), nil
}

// Upsert merges the request into the table. A new record without a serial
// receives the next free one. A failed workbook flush is reported through
// Saved=false rather than an error, the row stays in memory.
func (s *recordService) Upsert(ctx context.Context, req dto.RecordUpsertRequest) (dto.RecordUpsertResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		observability.RecordUpserts().WithLabelValues("failed").Inc()
		return dto.RecordUpsertResponse{}, err
	}

	patch := s.sanitizePatch(req.Patch())

	s.mu.Lock()
	defer s.mu.Unlock()

	_, exists := s.store.FindByID(patch.ID)
	if !exists && (patch.Serial == nil || strings.TrimSpace(*patch.Serial) == "") {
		next := fmt.Sprint(s.store.NextSerial())
		patch.Serial = &next
	}

	rec, err := s.store.Upsert(patch)
	if err != nil {
		observability.RecordUpserts().WithLabelValues("failed").Inc()
		return dto.RecordUpsertResponse{}, err
	}

	outcome := "updated"
	if !exists {
		outcome = "inserted"
	}
	observability.RecordUpserts().WithLabelValues(outcome).Inc()

	return dto.RecordUpsertResponse{
		Record:  rec,
		Created: !exists,
		Saved:   s.persistLocked(ctx),
	}, nil
}

func (s *recordService) Replace(ctx context.Context, req dto.RecordReplaceRequest) (dto.WorkbookResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.WorkbookResponse{}, err
	}

	rows := make([]records.Record, 0, len(req.Records))
	for _, row := range req.Records {
		rec := row.Record()
		s.sanitizeRecord(&rec)
		if records.NormalizeID(rec.ID) == "" {
			return dto.WorkbookResponse{}, &records.ValidationError{Field: records.ColumnID, Reason: "must not be empty"}
		}
		rows = append(rows, rec)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.store.Replace(rows)
	s.logger.Info().Int("records", len(rows)).Msg("table replaced")
	return s.summaryLocked("", s.persistLocked(ctx)), nil
}

// Import parses an uploaded xlsx or csv table and swaps it in only when parsing succeeds.
func (s *recordService) Import(ctx context.Context, name string, data []byte) (dto.WorkbookResponse, error) {
	if int64(len(data)) > s.opts.MaxImportBytes {
		return dto.WorkbookResponse{}, ErrImportTooLarge
	}

	format, err := records.DetectFormat(data, name)
	if err != nil {
		return dto.WorkbookResponse{}, err
	}
	imported, err := records.LoadBytes(data, format)
	if err != nil {
		s.logger.Warn().Err(err).Str("file", name).Msg("import rejected")
		return dto.WorkbookResponse{}, err
	}

	rows := imported.Records()
	for i := range rows {
		s.sanitizeRecord(&rows[i])
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.store = records.NewStore(rows...)
	s.logger.Info().Str("file", name).Str("format", string(format)).Int("records", len(rows)).Msg("table imported")
	return s.summaryLocked(format, s.persistLocked(ctx)), nil
}

func (s *recordService) Export(ctx context.Context, format records.Format) (dto.ExportResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var buf bytes.Buffer
	if err := s.store.Save(&buf, format); err != nil {
		return dto.ExportResult{}, err
	}
	return dto.ExportResult{
		FileName:    "students_storage" + format.Extension(),
		ContentType: format.ContentType(),
		Data:        buf.Bytes(),
	}, nil
}

// Save flushes the table regardless of the autosave setting.
func (s *recordService) Save(ctx context.Context) (dto.WorkbookResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.Save(ctx, s.store); err != nil {
		s.logger.Error().Err(err).Str("path", s.repo.Path()).Msg("workbook save failed")
		return dto.WorkbookResponse{}, err
	}
	return s.summaryLocked("", true), nil
}

// Reload discards unsaved changes. The current table survives a failed load.
func (s *recordService) Reload(ctx context.Context) (dto.WorkbookResponse, error) {
	store, err := s.repo.Load(ctx)
	if err != nil {
		return dto.WorkbookResponse{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.store = store
	return s.summaryLocked("", true), nil
}

func (s *recordService) persistLocked(ctx context.Context) bool {
	if !s.opts.Autosave {
		return false
	}
	if err := s.repo.Save(ctx, s.store); err != nil {
		s.logger.Error().Err(err).Str("path", s.repo.Path()).Msg("workbook save failed")
		return false
	}
	return true
}

func (s *recordService) summaryLocked(format records.Format, saved bool) dto.WorkbookResponse {
	return dto.WorkbookResponse{
		Path:       s.repo.Path(),
		Format:     string(format),
		Records:    s.store.Len(),
		NextSerial: s.store.NextSerial(),
		Saved:      saved,
	}
}

// clean strips markup from free text; the table never holds HTML.
func (s *recordService) clean(value string) string {
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(value)))
}

func (s *recordService) sanitizePatch(p records.Patch) records.Patch {
	p.ID = s.clean(p.ID)
	for _, field := range []**string{&p.Name, &p.Father, &p.Mother, &p.Class, &p.Session, &p.DOB} {
		if *field != nil {
			v := s.clean(**field)
			*field = &v
		}
	}
	return p
}

func (s *recordService) sanitizeRecord(r *records.Record) {
	for _, field := range []*string{&r.ID, &r.Name, &r.Father, &r.Mother, &r.Class, &r.Session, &r.DOB} {
		*field = s.clean(*field)
	}
}
