package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/certdesk-go-api/internal/models"
	"github.com/noah-isme/certdesk-go-api/internal/records"
	"github.com/noah-isme/certdesk-go-api/internal/repository"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func testValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

func strPtr(v string) *string {
	return &v
}

// failingWorkbook loads an initial table but refuses every save.
type failingWorkbook struct {
	initial *records.Store
	saves   int
}

func (f *failingWorkbook) Load(ctx context.Context) (*records.Store, error) {
	if f.initial == nil {
		return records.NewStore(), nil
	}
	return f.initial.Clone(), nil
}

func (f *failingWorkbook) Save(ctx context.Context, store *records.Store) error {
	f.saves++
	return errors.New("disk full")
}

func (f *failingWorkbook) Path() string {
	return "/readonly/students_storage.xlsx"
}

func newWorkbook(t *testing.T, name string) repository.WorkbookRepository {
	t.Helper()
	repo, err := repository.NewWorkbookRepository(filepath.Join(t.TempDir(), name))
	require.NoError(t, err)
	return repo
}

func newRecordService(t *testing.T, repo repository.WorkbookRepository, autosave bool) RecordService {
	t.Helper()
	svc, err := NewRecordService(context.Background(), repo, testValidator(), RecordServiceOptions{Autosave: autosave, MaxImportBytes: 1024 * 1024}, testLogger())
	require.NoError(t, err)
	return svc
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.IssuedCertificate{}))
	return db
}
