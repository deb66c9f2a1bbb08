package handler

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/certdesk-go-api/internal/dto"
	"github.com/noah-isme/certdesk-go-api/internal/service"
	"github.com/noah-isme/certdesk-go-api/internal/utils"
)

// CertificateHandler issues and serves certificate PDFs.
type CertificateHandler struct {
	service service.CertificateService
	logger  zerolog.Logger
}

// NewCertificateHandler constructs a certificate handler.
func NewCertificateHandler(service service.CertificateService, logger zerolog.Logger) *CertificateHandler {
	return &CertificateHandler{
		service: service,
		logger:  logger.With().Str("component", "certificate_handler").Logger(),
	}
}

// Register wires certificate routes. write guards generation and clearing.
func (h *CertificateHandler) Register(router fiber.Router, write fiber.Handler) {
	router.Get("", h.history)
	router.Post("", write, h.generate)
	router.Delete("/generated", write, h.clearGenerated)
	router.Get("/:kind/:id", h.download)
}

func (h *CertificateHandler) generate(c *fiber.Ctx) error {
	var payload dto.CertificateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.service.Generate(c.UserContext(), payload, actorFromContext(c))
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to generate certificate")
	}

	message := "certificate generated"
	if !result.RecordSaved {
		message = "certificate generated; workbook not saved"
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, message, result)
}

func (h *CertificateHandler) download(c *fiber.Ctx) error {
	file, err := h.service.Download(c.UserContext(), pathParam(c, "kind"), pathParam(c, "id"))
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to load certificate")
	}

	cache := "MISS"
	if file.Cached {
		cache = "HIT"
	}
	c.Set("X-Cache", cache)
	c.Set(fiber.HeaderContentType, "application/pdf")
	disposition := "attachment"
	if c.QueryBool("inline") {
		disposition = "inline"
	}
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("%s; filename=%q", disposition, file.FileName))
	return c.Status(fiber.StatusOK).Send(file.Data)
}

func (h *CertificateHandler) history(c *fiber.Ctx) error {
	var req dto.CertificateHistoryRequest
	if err := c.QueryParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	result, err := h.service.History(c.UserContext(), req)
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to load certificate history")
	}
	return utils.OK(c, result.Items, "certificate history retrieved", result.Pagination)
}

func (h *CertificateHandler) clearGenerated(c *fiber.Ctx) error {
	result, err := h.service.ClearGenerated(c.UserContext())
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err, "failed to clear generated certificates")
	}
	return utils.SendSuccess(c, "generated certificates cleared", result)
}
