package errs

import (
	"context"
	"errors"
	"net/http"
)

// Error kinds surfaced to clients. Callers wrap them with fmt.Errorf("...: %w").
var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("not authorized")
	ErrNotFound        = errors.New("not found")
	ErrPersistence     = errors.New("storage unavailable")
	ErrValidation      = errors.New("invalid request")
)

// Wire codes carried in the `error` event.
const (
	CodeAuthentication = "authentication_error"
	CodeAuthorization  = "authorization_error"
	CodeNotFound       = "not_found"
	CodePersistence    = "persistence_error"
	CodeValidation     = "validation_error"
	CodeInternal       = "internal_error"
)

// Code maps an error to its wire code.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthenticated):
		return CodeAuthentication
	case errors.Is(err, ErrForbidden):
		return CodeAuthorization
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrValidation):
		return CodeValidation
	case errors.Is(err, ErrPersistence), errors.Is(err, context.DeadlineExceeded):
		return CodePersistence
	default:
		return CodeInternal
	}
}

// HTTPStatus maps an error to the status used by the REST handlers.
func HTTPStatus(err error) int {
	switch Code(err) {
	case CodeAuthentication:
		return http.StatusUnauthorized
	case CodeAuthorization:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeValidation:
		return http.StatusBadRequest
	case CodePersistence:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the client-facing text for err. Internal details of
// persistence failures are not leaked.
func Message(err error) string {
	switch Code(err) {
	case CodePersistence:
		return "temporary storage failure, please retry"
	case CodeInternal:
		return "internal error"
	default:
		return err.Error()
	}
}
