package api

import (
	"errors"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"storefront-service/internal/service"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Str("component", "api").Logger()

// statusFor maps service errors onto HTTP status codes. Anything not
// recognised is a server fault.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrDuplicateRequest):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrProductNotFound),
		errors.Is(err, service.ErrVariantNotFound),
		errors.Is(err, service.ErrSizeNotFound),
		errors.Is(err, service.ErrInsufficientStock),
		errors.Is(err, service.ErrInvalidStatus),
		errors.Is(err, service.ErrVerificationFailed):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func errorJSON(c echo.Context, err error) error {
	status := statusFor(err)
	msg := err.Error()

	switch {
	case status == http.StatusInternalServerError:
		logger.Error().Err(err).
			Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
			Str("path", c.Path()).
			Msg("request failed")
		msg = "Internal server error"
	case errors.Is(err, service.ErrVerificationFailed):
		// upstream verifier details stay in the logs
		logger.Warn().Err(err).Msg("verification rejected request")
		msg = service.ErrVerificationFailed.Error()
	case status == http.StatusUnauthorized:
		msg = "Unauthorized"
	}

	return c.JSON(status, map[string]string{"error": msg})
}
