package handler

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"vendocs/internal/http/middleware"
	"vendocs/internal/repository"
	"vendocs/internal/resolver"
	"vendocs/internal/service"
	"vendocs/internal/share"
)

// errorPayload defines the standardized error response body.
type errorPayload struct {
	RequestID string        `json:"request_id"`
	Error     errorEnvelope `json:"error"`
}

type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// requestIDFromCtx extracts request_id previously stored by middleware.RequestID.
func requestIDFromCtx(c *fiber.Ctx) string {
	if v := c.Locals(middleware.RequestIDLocalKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// writeError writes a standardized JSON error response without leaking internal errors.
func writeError(c *fiber.Ctx, status int, code, message string) error {
	res := errorPayload{
		RequestID: requestIDFromCtx(c),
		Error: errorEnvelope{
			Code:    code,
			Message: message,
		},
	}
	return c.Status(status).JSON(res)
}

// writeServiceError translates domain errors into the response code map.
// Terminal conditions (linkless record, unopenable URL) get codes the client
// must not retry; transient ones (signing, staging) get retryable statuses.
func writeServiceError(c *fiber.Ctx, err error) error {
	var statusErr *share.StatusError
	var signErr *resolver.SignError

	switch {
	case errors.Is(err, service.ErrIDRequired):
		return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id")
	case errors.Is(err, service.ErrNotFound):
		return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "document not found")
	case errors.Is(err, repository.ErrPermissionDenied):
		return writeError(c, fiber.StatusForbidden, "PERMISSION_DENIED", "sin permisos para ver documentos")
	case errors.Is(err, resolver.ErrNoLink):
		return writeError(c, fiber.StatusNotFound, "NO_LINK", "documento sin enlace disponible")
	case errors.Is(err, share.ErrCannotOpen):
		return writeError(c, fiber.StatusUnprocessableEntity, "CANNOT_OPEN", "no se puede abrir el enlace")
	case errors.Is(err, share.ErrShareInProgress):
		return writeError(c, fiber.StatusConflict, "SHARE_IN_PROGRESS", "el documento ya se está compartiendo")
	case errors.As(err, &statusErr):
		return writeError(c, fiber.StatusBadGateway, "DOWNLOAD_FAILED",
			fmt.Sprintf("error al descargar (estado %d)", statusErr.StatusCode))
	case errors.As(err, &signErr):
		return writeError(c, fiber.StatusServiceUnavailable, "SIGN_FAILED", "no se pudo firmar el enlace, reintente")
	default:
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

// ErrorHandler returns a Fiber global error handler that standardizes error responses.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			status = e.Code
		}

		switch status {
		case fiber.StatusBadRequest:
			return writeError(c, status, "BAD_REQUEST", "bad request")
		case fiber.StatusNotFound:
			return writeError(c, status, "NOT_FOUND", "resource not found")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, status, "METHOD_NOT_ALLOWED", "method not allowed")
		case fiber.StatusUpgradeRequired:
			return writeError(c, status, "UPGRADE_REQUIRED", "websocket upgrade required")
		default:
			return writeError(c, status, "INTERNAL_ERROR", "internal server error")
		}
	}
}
