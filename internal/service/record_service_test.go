package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/certdesk-go-api/internal/dto"
	"github.com/noah-isme/certdesk-go-api/internal/records"
)

func TestRecordServiceUpsertAllocatesSerialForNewRecords(t *testing.T) {
	svc := newRecordService(t, newWorkbook(t, "students.xlsx"), true)
	ctx := context.Background()

	first, err := svc.Upsert(ctx, dto.RecordUpsertRequest{ID: "1001", Name: strPtr("Rahim Uddin")})
	require.NoError(t, err)
	require.True(t, first.Created)
	require.True(t, first.Saved)
	require.Equal(t, 1, first.Record.Serial)

	explicit := dto.FlexibleString("10")
	second, err := svc.Upsert(ctx, dto.RecordUpsertRequest{ID: "1002", Serial: &explicit})
	require.NoError(t, err)
	require.Equal(t, 10, second.Record.Serial)

	third, err := svc.Upsert(ctx, dto.RecordUpsertRequest{ID: "1003"})
	require.NoError(t, err)
	require.Equal(t, 11, third.Record.Serial)

	updated, err := svc.Upsert(ctx, dto.RecordUpsertRequest{ID: "1001.0", Class: strPtr("Ten")})
	require.NoError(t, err)
	require.False(t, updated.Created)
	require.Equal(t, records.Record{Serial: 1, ID: "1001", Name: "Rahim Uddin", Class: "Ten"}, updated.Record)

	next, err := svc.NextSerial(ctx)
	require.NoError(t, err)
	require.Equal(t, 12, next)
}

func TestRecordServiceSanitisesText(t *testing.T) {
	svc := newRecordService(t, newWorkbook(t, "students.csv"), false)

	resp, err := svc.Upsert(context.Background(), dto.RecordUpsertRequest{
		ID:     " 77 ",
		Name:   strPtr("<b>Nusrat</b> <script>alert(1)</script>Jahan"),
		Father: strPtr("Abdul & Sons"),
		Mother: strPtr("O'Neil"),
	})
	require.NoError(t, err)
	require.False(t, resp.Saved, "autosave disabled")
	require.Equal(t, "77", resp.Record.ID)
	require.Equal(t, "Nusrat Jahan", resp.Record.Name)
	require.Equal(t, "Abdul & Sons", resp.Record.Father)
	require.Equal(t, "O'Neil", resp.Record.Mother)
}

func TestRecordServiceValidation(t *testing.T) {
	svc := newRecordService(t, newWorkbook(t, "students.csv"), true)
	ctx := context.Background()

	_, err := svc.Upsert(ctx, dto.RecordUpsertRequest{Name: strPtr("Nobody")})
	var vErrs validator.ValidationErrors
	require.ErrorAs(t, err, &vErrs)

	_, err = svc.Upsert(ctx, dto.RecordUpsertRequest{ID: "   "})
	var recErr *records.ValidationError
	require.ErrorAs(t, err, &recErr)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Zero(t, list.Total)
	require.Equal(t, 1, list.NextSerial)
}

func TestRecordServiceSaveFailureKeepsRecordInMemory(t *testing.T) {
	repo := &failingWorkbook{}
	svc := newRecordService(t, repo, true)
	ctx := context.Background()

	resp, err := svc.Upsert(ctx, dto.RecordUpsertRequest{ID: "5", Name: strPtr("Asha")})
	require.NoError(t, err)
	require.False(t, resp.Saved)
	require.Equal(t, 1, repo.saves)

	got, err := svc.Get(ctx, "5")
	require.NoError(t, err)
	require.Equal(t, "Asha", got.Name)

	_, err = svc.Save(ctx)
	require.Error(t, err)
}

func TestRecordServiceGetMissing(t *testing.T) {
	svc := newRecordService(t, newWorkbook(t, "students.csv"), false)

	_, err := svc.Get(context.Background(), "404")
	require.ErrorIs(t, err, ErrRecordNotFound)
}

func TestRecordServicePersistsAndReloads(t *testing.T) {
	repo := newWorkbook(t, "students.xlsx")
	svc := newRecordService(t, repo, false)
	ctx := context.Background()

	_, err := svc.Upsert(ctx, dto.RecordUpsertRequest{ID: "1", Name: strPtr("Saved")})
	require.NoError(t, err)
	summary, err := svc.Save(ctx)
	require.NoError(t, err)
	require.True(t, summary.Saved)
	require.Equal(t, 1, summary.Records)

	_, err = svc.Upsert(ctx, dto.RecordUpsertRequest{ID: "2", Name: strPtr("Unsaved")})
	require.NoError(t, err)

	reloaded, err := svc.Reload(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, reloaded.Records)
	_, err = svc.Get(ctx, "2")
	require.ErrorIs(t, err, ErrRecordNotFound)

	fresh := newRecordService(t, repo, false)
	got, err := fresh.Get(ctx, "1")
	require.NoError(t, err)
	require.Equal(t, "Saved", got.Name)
}

func TestRecordServiceImportSwapsOnlyOnSuccess(t *testing.T) {
	svc := newRecordService(t, newWorkbook(t, "students.xlsx"), true)
	ctx := context.Background()

	_, err := svc.Upsert(ctx, dto.RecordUpsertRequest{ID: "keep"})
	require.NoError(t, err)

	_, err = svc.Import(ctx, "broken.xlsx", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A})
	var fErr *records.FormatError
	require.ErrorAs(t, err, &fErr)

	_, err = svc.Get(ctx, "keep")
	require.NoError(t, err)

	summary, err := svc.Import(ctx, "upload.csv", []byte("Serial,ID,Name\n4,0012,<i>Bina</i>\n9,A-1,Chandra\n"))
	require.NoError(t, err)
	require.Equal(t, "csv", summary.Format)
	require.Equal(t, 2, summary.Records)
	require.Equal(t, 10, summary.NextSerial)
	require.True(t, summary.Saved)

	_, err = svc.Get(ctx, "keep")
	require.ErrorIs(t, err, ErrRecordNotFound)
	got, err := svc.Get(ctx, "12")
	require.NoError(t, err)
	require.Equal(t, "Bina", got.Name)

	_, err = svc.Import(ctx, "huge.csv", []byte(strings.Repeat("x", 2*1024*1024)))
	require.ErrorIs(t, err, ErrImportTooLarge)
}

func TestRecordServiceReplaceAndExport(t *testing.T) {
	svc := newRecordService(t, newWorkbook(t, "students.csv"), true)
	ctx := context.Background()

	summary, err := svc.Replace(ctx, dto.RecordReplaceRequest{Records: []dto.RecordRow{
		{Serial: "3", ID: "1", Name: "One"},
		{Serial: "n/a", ID: "2.0", Name: "Two"},
	}})
	require.NoError(t, err)
	require.Equal(t, 2, summary.Records)
	require.Equal(t, 4, summary.NextSerial)

	_, err = svc.Replace(ctx, dto.RecordReplaceRequest{Records: []dto.RecordRow{{ID: "<b></b>"}}})
	var recErr *records.ValidationError
	require.ErrorAs(t, err, &recErr)

	export, err := svc.Export(ctx, records.FormatCSV)
	require.NoError(t, err)
	require.Equal(t, "students_storage.csv", export.FileName)
	require.Equal(t, "Serial,ID,Name,Father,Mother,Class,Session,DOB\n3,1,One,,,,,\n0,2,Two,,,,,\n", string(export.Data))

	xlsx, err := svc.Export(ctx, records.FormatXLSX)
	require.NoError(t, err)
	loaded, err := records.LoadBytes(xlsx.Data, records.FormatXLSX)
	require.NoError(t, err)
	require.Equal(t, 2, loaded.Len())
}

func TestRecordServiceRejectsCorruptWorkbookAtStartup(t *testing.T) {
	_, err := NewRecordService(context.Background(), &corruptWorkbook{}, testValidator(), RecordServiceOptions{}, testLogger())
	var fErr *records.FormatError
	require.ErrorAs(t, err, &fErr)
}

type corruptWorkbook struct{ failingWorkbook }

func (corruptWorkbook) Load(ctx context.Context) (*records.Store, error) {
	return records.LoadBytes([]byte("not a workbook"), records.FormatXLSX)
}

func TestRecordServiceConcurrentUpserts(t *testing.T) {
	svc := newRecordService(t, newWorkbook(t, "students.csv"), false)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Upsert(ctx, dto.RecordUpsertRequest{ID: fmt.Sprint(i % 10), Name: strPtr("Student")})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Equal(t, 10, list.Total)
	require.Equal(t, 11, list.NextSerial)
}
