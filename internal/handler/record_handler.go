package handler

import (
	"fmt"
	"io"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/certdesk-go-api/internal/dto"
	"github.com/noah-isme/certdesk-go-api/internal/records"
	"github.com/noah-isme/certdesk-go-api/internal/service"
	"github.com/noah-isme/certdesk-go-api/internal/utils"
)

// RecordHandler exposes the student table.
type RecordHandler struct {
	service  service.RecordService
	maxBytes int64
	logger   zerolog.Logger
}

// NewRecordHandler constructs a record handler. maxBytes caps imports.
func NewRecordHandler(service service.RecordService, maxBytes int64, logger zerolog.Logger) *RecordHandler {
	if maxBytes <= 0 {
		maxBytes = 10 * 1024 * 1024
	}
	return &RecordHandler{
		service:  service,
		maxBytes: maxBytes,
		logger:   logger.With().Str("component", "record_handler").Logger(),
	}
}

// Register wires record routes. write guards every route that changes the table.
func (h *RecordHandler) Register(router fiber.Router, write fiber.Handler) {
	router.Get("", h.list)
	router.Get("/next-serial", h.nextSerial)
	router.Get("/export", h.export)
	router.Get("/:id", h.get)
	router.Post("", write, h.upsert)
	router.Put("", write, h.replace)
	router.Post("/import", write, h.importTable)
	router.Post("/save", write, h.save)
	router.Post("/reload", write, h.reload)
	router.Put("/:id", write, h.upsertByID)
}

func (h *RecordHandler) list(c *fiber.Ctx) error {
	result, err := h.service.List(c.UserContext())
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to list records")
	}
	return utils.SendSuccess(c, "records retrieved", result)
}

func (h *RecordHandler) nextSerial(c *fiber.Ctx) error {
	next, err := h.service.NextSerial(c.UserContext())
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to compute next serial")
	}
	return utils.SendSuccess(c, "next serial", dto.NextSerialResponse{NextSerial: next})
}

func (h *RecordHandler) get(c *fiber.Ctx) error {
	rec, err := h.service.Get(c.UserContext(), pathParam(c, "id"))
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to load record")
	}
	return utils.SendSuccess(c, "record retrieved", rec)
}

func (h *RecordHandler) upsert(c *fiber.Ctx) error {
	var payload dto.RecordUpsertRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	return h.doUpsert(c, payload)
}

// upsertByID takes the ID from the path, overriding any ID in the body.
func (h *RecordHandler) upsertByID(c *fiber.Ctx) error {
	var payload dto.RecordUpsertRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
		}
	}
	payload.ID = pathParam(c, "id")
	return h.doUpsert(c, payload)
}

func (h *RecordHandler) doUpsert(c *fiber.Ctx, payload dto.RecordUpsertRequest) error {
	logger := requestLogger(h.logger, c)
	result, err := h.service.Upsert(c.UserContext(), payload)
	if err != nil {
		return sendServiceError(c, logger, err, "failed to store record")
	}

	message := "record stored"
	if !result.Saved {
		message = "record stored in memory; workbook not saved"
	}
	status := fiber.StatusOK
	if result.Created {
		status = fiber.StatusCreated
	}
	logger.Info().Str("student_id", result.Record.ID).Bool("created", result.Created).Msg("record upserted")
	return utils.SendSuccessWithStatus(c, status, message, result)
}

func (h *RecordHandler) replace(c *fiber.Ctx) error {
	var payload dto.RecordReplaceRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	result, err := h.service.Replace(c.UserContext(), payload)
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to replace records")
	}
	return utils.SendSuccess(c, "table replaced", result)
}

func (h *RecordHandler) importTable(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "file is required")
	}
	if file.Size > h.maxBytes {
		return sendServiceError(c, requestLogger(h.logger, c), service.ErrImportTooLarge, "")
	}

	handle, err := file.Open()
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "unable to read upload")
	}
	defer handle.Close()

	data, err := io.ReadAll(io.LimitReader(handle, h.maxBytes+1))
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "unable to read upload")
	}

	result, err := h.service.Import(c.UserContext(), file.Filename, data)
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to import records")
	}
	return utils.SendSuccess(c, "records imported", result)
}

func (h *RecordHandler) export(c *fiber.Ctx) error {
	formatName := strings.TrimSpace(c.Query("format", string(records.FormatXLSX)))
	format, err := records.ParseFormat(formatName)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "format must be xlsx or csv")
	}

	result, err := h.service.Export(c.UserContext(), format)
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to export records")
	}

	c.Set(fiber.HeaderContentType, result.ContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", result.FileName))
	return c.Status(fiber.StatusOK).Send(result.Data)
}

func (h *RecordHandler) save(c *fiber.Ctx) error {
	result, err := h.service.Save(c.UserContext())
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to save workbook")
	}
	return utils.SendSuccess(c, "workbook saved", result)
}

func (h *RecordHandler) reload(c *fiber.Ctx) error {
	result, err := h.service.Reload(c.UserContext())
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to reload workbook")
	}
	return utils.SendSuccess(c, "workbook reloaded", result)
}
