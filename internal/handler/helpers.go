package handler

import (
	"errors"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/certdesk-go-api/internal/certificate"
	"github.com/noah-isme/certdesk-go-api/internal/middleware"
	"github.com/noah-isme/certdesk-go-api/internal/records"
	"github.com/noah-isme/certdesk-go-api/internal/service"
	"github.com/noah-isme/certdesk-go-api/internal/utils"
)

// pathParam returns a decoded route parameter. Malformed escapes are kept as sent.
func pathParam(c *fiber.Ctx, key string) string {
	raw := c.Params(key)
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

func parseQueryInt(c *fiber.Ctx, key string) (int, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, nil
	}
	return strconv.Atoi(value)
}

func actorFromContext(c *fiber.Ctx) string {
	user, _ := c.Locals(middleware.LocalUser).(string)
	return user
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

func isValidationError(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.As(err, &validationErrors)
}

func validationDetails(err error) map[string]string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return nil
	}
	details := make(map[string]string, len(validationErrors))
	for _, fe := range validationErrors {
		details[strings.ToLower(fe.Field())] = fe.Tag()
	}
	return details
}

// sendServiceError maps domain errors onto HTTP statuses. Anything unknown
// is logged and reported as fallback with a 500.
func sendServiceError(c *fiber.Ctx, logger *zerolog.Logger, err error, fallback string) error {
	var (
		recordErr *records.ValidationError
		formatErr *records.FormatError
	)
	switch {
	case isValidationError(err):
		return utils.Fail(c, fiber.StatusBadRequest, "validation failed", validationDetails(err))
	case errors.As(err, &recordErr):
		return utils.Fail(c, fiber.StatusBadRequest, recordErr.Error(), map[string]string{strings.ToLower(recordErr.Field): recordErr.Reason})
	case errors.Is(err, certificate.ErrUnknownKind), errors.Is(err, certificate.ErrUnknownGender):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.As(err, &formatErr):
		return utils.SendError(c, fiber.StatusUnprocessableEntity, formatErr.Error())
	case errors.Is(err, service.ErrRecordNotFound), errors.Is(err, service.ErrCertificateNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrImportTooLarge):
		return utils.SendError(c, fiber.StatusRequestEntityTooLarge, err.Error())
	default:
		logger.Error().Err(err).Msg(fallback)
		return utils.SendError(c, fiber.StatusInternalServerError, fallback)
	}
}
