package handler_test

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/certdesk-go-api/internal/dto"
	"github.com/noah-isme/certdesk-go-api/internal/handler"
	"github.com/noah-isme/certdesk-go-api/internal/records"
	"github.com/noah-isme/certdesk-go-api/internal/service"
)

type mockRecordService struct {
	list        dto.RecordListResponse
	record      records.Record
	upsert      dto.RecordUpsertResponse
	workbook    dto.WorkbookResponse
	export      dto.ExportResult
	err         error
	lastUpsert  dto.RecordUpsertRequest
	lastReplace dto.RecordReplaceRequest
	lastImport  string
	lastData    []byte
	lastFormat  records.Format
	lastID      string
}

func (m *mockRecordService) List(context.Context) (dto.RecordListResponse, error) {
	return m.list, m.err
}

func (m *mockRecordService) Get(_ context.Context, id string) (records.Record, error) {
	m.lastID = id
	return m.record, m.err
}

func (m *mockRecordService) NextSerial(context.Context) (int, error) {
	return m.list.NextSerial, m.err
}

func (m *mockRecordService) Upsert(_ context.Context, req dto.RecordUpsertRequest) (dto.RecordUpsertResponse, error) {
	m.lastUpsert = req
	return m.upsert, m.err
}

func (m *mockRecordService) Replace(_ context.Context, req dto.RecordReplaceRequest) (dto.WorkbookResponse, error) {
	m.lastReplace = req
	return m.workbook, m.err
}

func (m *mockRecordService) Import(_ context.Context, name string, data []byte) (dto.WorkbookResponse, error) {
	m.lastImport = name
	m.lastData = data
	return m.workbook, m.err
}

func (m *mockRecordService) Export(_ context.Context, format records.Format) (dto.ExportResult, error) {
	m.lastFormat = format
	return m.export, m.err
}

func (m *mockRecordService) Save(context.Context) (dto.WorkbookResponse, error) {
	return m.workbook, m.err
}

func (m *mockRecordService) Reload(context.Context) (dto.WorkbookResponse, error) {
	return m.workbook, m.err
}

var _ service.RecordService = (*mockRecordService)(nil)

func newRecordApp(svc service.RecordService, maxBytes int64, write fiber.Handler) *fiber.App {
	app := fiber.New()
	handler.NewRecordHandler(svc, maxBytes, zerolog.Nop()).Register(app.Group("/api/v1/records"), write)
	return app
}

func multipartBody(t *testing.T, name string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestRecordHandler_List(t *testing.T) {
	svc := &mockRecordService{list: dto.RecordListResponse{
		Records:    []records.Record{{Serial: 1, ID: "1001", Name: "Asha"}},
		Total:      1,
		NextSerial: 2,
	}}
	app := newRecordApp(svc, 0, allowAll)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/records", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var payload envelope[dto.RecordListResponse]
	decodeResponse(t, resp, &payload)
	require.True(t, payload.Success)
	require.Equal(t, 1, payload.Data.Total)
	require.Equal(t, 2, payload.Data.NextSerial)
	require.Equal(t, "Asha", payload.Data.Records[0].Name)
}

func TestRecordHandler_NextSerial(t *testing.T) {
	svc := &mockRecordService{list: dto.RecordListResponse{NextSerial: 15}}
	app := newRecordApp(svc, 0, allowAll)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/records/next-serial", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var payload envelope[dto.NextSerialResponse]
	decodeResponse(t, resp, &payload)
	require.Equal(t, 15, payload.Data.NextSerial)
	require.Empty(t, svc.lastID)
}

func TestRecordHandler_GetNotFound(t *testing.T) {
	svc := &mockRecordService{err: service.ErrRecordNotFound}
	app := newRecordApp(svc, 0, allowAll)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/records/404", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	require.Equal(t, "404", svc.lastID)

	var payload envelope[any]
	decodeResponse(t, resp, &payload)
	require.False(t, payload.Success)
}

func TestRecordHandler_UpsertCreated(t *testing.T) {
	svc := &mockRecordService{upsert: dto.RecordUpsertResponse{
		Record:  records.Record{Serial: 3, ID: "1001", Name: "Asha"},
		Created: true,
		Saved:   false,
	}}
	app := newRecordApp(svc, 0, allowAll)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/records", strings.NewReader(`{"id":"1001","name":"Asha","serial":3}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var payload envelope[dto.RecordUpsertResponse]
	decodeResponse(t, resp, &payload)
	require.True(t, payload.Success)
	require.Equal(t, "record stored in memory; workbook not saved", payload.Message)
	require.Equal(t, "1001", svc.lastUpsert.ID)
	require.NotNil(t, svc.lastUpsert.Serial)
	require.Equal(t, dto.FlexibleString("3"), *svc.lastUpsert.Serial)
	require.Nil(t, svc.lastUpsert.Father)
}

func TestRecordHandler_UpsertByIDUsesPath(t *testing.T) {
	svc := &mockRecordService{upsert: dto.RecordUpsertResponse{Record: records.Record{ID: "123"}, Saved: true}}
	app := newRecordApp(svc, 0, allowAll)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/records/00123", strings.NewReader(`{"id":"999","class":"Nine"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "00123", svc.lastUpsert.ID)
	require.NotNil(t, svc.lastUpsert.Class)
	require.Equal(t, "Nine", *svc.lastUpsert.Class)
}

func TestRecordHandler_DecodesEscapedIDs(t *testing.T) {
	svc := &mockRecordService{upsert: dto.RecordUpsertResponse{Record: records.Record{ID: "B 7"}, Saved: true}}
	app := newRecordApp(svc, 0, allowAll)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/records/B%207", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "B 7", svc.lastID)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/records/A%2F17", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "A/17", svc.lastID)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/records/B%207", strings.NewReader(`{"class":"Nine"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "B 7", svc.lastUpsert.ID)
}

func TestRecordHandler_UpsertValidationErrors(t *testing.T) {
	validationErr := validator.New(validator.WithRequiredStructEnabled()).Struct(dto.RecordUpsertRequest{})
	require.Error(t, validationErr)

	cases := []struct {
		name  string
		err   error
		field string
	}{
		{name: "validator", err: validationErr, field: "id"},
		{name: "store", err: &records.ValidationError{Field: "ID", Reason: "must not be empty"}, field: "id"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := newRecordApp(&mockRecordService{err: tc.err}, 0, allowAll)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/records", strings.NewReader(`{"name":"x"}`))
			req.Header.Set("Content-Type", "application/json")
			resp, err := app.Test(req)
			require.NoError(t, err)
			require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

			var payload envelope[any]
			decodeResponse(t, resp, &payload)
			require.False(t, payload.Success)
			require.Contains(t, payload.Details, tc.field)
		})
	}
}

func TestRecordHandler_ReplaceTable(t *testing.T) {
	svc := &mockRecordService{workbook: dto.WorkbookResponse{Path: "students.xlsx", Records: 2, NextSerial: 8, Saved: true}}
	app := newRecordApp(svc, 0, allowAll)

	body := `{"records":[{"serial":"7","id":"1","name":"A"},{"serial":2,"id":"2","name":"B"}]}`
	req := httptest.NewRequest(http.MethodPut, "/api/v1/records", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	require.Len(t, svc.lastReplace.Records, 2)
	require.Equal(t, dto.FlexibleString("2"), svc.lastReplace.Records[1].Serial)

	var payload envelope[dto.WorkbookResponse]
	decodeResponse(t, resp, &payload)
	require.Equal(t, 8, payload.Data.NextSerial)
}

func TestRecordHandler_Import(t *testing.T) {
	svc := &mockRecordService{workbook: dto.WorkbookResponse{Format: "csv", Records: 1, NextSerial: 2}}
	app := newRecordApp(svc, 1024, allowAll)

	content := []byte("Serial,ID,Name\n1,1001,Asha\n")
	body, contentType := multipartBody(t, "students.csv", content)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/records/import", body)
	req.Header.Set("Content-Type", contentType)

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "students.csv", svc.lastImport)
	require.Equal(t, content, svc.lastData)
}

func TestRecordHandler_ImportErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		app := newRecordApp(&mockRecordService{}, 1024, allowAll)
		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/records/import", nil))
		require.NoError(t, err)
		require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})

	t.Run("too large", func(t *testing.T) {
		svc := &mockRecordService{}
		app := newRecordApp(svc, 4, allowAll)
		body, contentType := multipartBody(t, "students.csv", []byte("Serial,ID\n1,2\n"))
		req := httptest.NewRequest(http.MethodPost, "/api/v1/records/import", body)
		req.Header.Set("Content-Type", contentType)

		resp, err := app.Test(req)
		require.NoError(t, err)
		require.Equal(t, fiber.StatusRequestEntityTooLarge, resp.StatusCode)
		require.Empty(t, svc.lastImport)
	})

	t.Run("bad format", func(t *testing.T) {
		svc := &mockRecordService{err: &records.FormatError{Op: "load", Err: errors.New("missing ID column")}}
		app := newRecordApp(svc, 1024, allowAll)
		body, contentType := multipartBody(t, "students.csv", []byte("Name\nAsha\n"))
		req := httptest.NewRequest(http.MethodPost, "/api/v1/records/import", body)
		req.Header.Set("Content-Type", contentType)

		resp, err := app.Test(req)
		require.NoError(t, err)
		require.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
	})
}

func TestRecordHandler_Export(t *testing.T) {
	svc := &mockRecordService{export: dto.ExportResult{
		FileName:    "students.csv",
		ContentType: "text/csv",
		Data:        []byte("Serial,ID\n1,1001\n"),
	}}
	app := newRecordApp(svc, 0, allowAll)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/records/export?format=CSV", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, records.FormatCSV, svc.lastFormat)
	require.Equal(t, "text/csv", resp.Header.Get("Content-Type"))
	require.Equal(t, `attachment; filename="students.csv"`, resp.Header.Get("Content-Disposition"))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/records/export?format=pdf", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestRecordHandler_WriteGuard(t *testing.T) {
	svc := &mockRecordService{}
	deny := func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusForbidden)
	}
	app := newRecordApp(svc, 0, deny)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/records", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	for _, path := range []string{"/api/v1/records/save", "/api/v1/records/reload"} {
		resp, err = app.Test(httptest.NewRequest(http.MethodPost, path, nil))
		require.NoError(t, err)
		require.Equal(t, fiber.StatusForbidden, resp.StatusCode, path)
	}
}

func TestRecordHandler_SaveFailure(t *testing.T) {
	svc := &mockRecordService{err: context.DeadlineExceeded}
	app := newRecordApp(svc, 0, allowAll)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/records/save", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)

	var payload envelope[any]
	decodeResponse(t, resp, &payload)
	require.Equal(t, "failed to save workbook", payload.Message)
}
