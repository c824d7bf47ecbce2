package http

import (
	"errors"

	"github.com/fheinonen/helsinki-moves/internal/core/domain"
	"github.com/gofiber/fiber/v2"
)

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`    // Error code: bad_request, upstream_timeout, internal_error, etc.
	Message   string `json:"message"` // Human-readable message
	RequestID string `json:"request_id,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: reqID,
	})
}

// errBadRequest returns a 400 error.
func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, 400, "bad_request", msg)
}

// errPayloadTooLarge returns a 413 error.
func errPayloadTooLarge(c *fiber.Ctx) error {
	return newError(c, 413, "payload_too_large", "Payload too large")
}

// errInternal returns a 500 error.
func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, 500, "internal_error", msg)
}

// errFromDomain maps the domain sentinel errors onto HTTP responses.
func errFromDomain(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidCoordinates):
		return errBadRequest(c, "lat and lon must be valid WGS84 coordinates")
	case errors.Is(err, domain.ErrInvalidMode):
		return errBadRequest(c, "mode must be rail or bus")
	case errors.Is(err, domain.ErrUpstreamTimeout):
		return newError(c, 504, "upstream_timeout", "routing API timed out")
	case errors.Is(err, domain.ErrTransport), errors.Is(err, domain.ErrUpstream):
		return newError(c, 502, "upstream_error", "routing API unavailable")
	}
	return errInternal(c, err.Error())
}
