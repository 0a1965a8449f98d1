package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// ErrUnknownSection indicates a section id the editor does not serve.
type ErrUnknownSection struct {
	SectionID string
}

func (e *ErrUnknownSection) Error() string {
	return fmt.Sprintf("unknown section: %q", e.SectionID)
}

// ErrEntryNotFound indicates an entry that does not exist or belongs to
// another user.
type ErrEntryNotFound struct {
	EntryID uuid.UUID
}

func (e *ErrEntryNotFound) Error() string {
	return fmt.Sprintf("entry not found: %s", e.EntryID)
}

// ErrValidation indicates request validation failure.
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	if e.Field == "" {
		return "validation error: " + e.Message
	}
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// ErrInvalidCSRF indicates a missing or wrong CSRF token.
type ErrInvalidCSRF struct{}

func (e *ErrInvalidCSRF) Error() string {
	return "invalid CSRF token"
}

// HTTPStatus returns the HTTP status code for err.
func HTTPStatus(err error) int {
	var (
		unknown  *ErrUnknownSection
		notFound *ErrEntryNotFound
		invalid  *ErrValidation
		csrf     *ErrInvalidCSRF
	)
	switch {
	case errors.As(err, &csrf):
		return http.StatusForbidden
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &unknown), errors.As(err, &invalid):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage returns the text safe to send to clients for err.
func publicMessage(err error) string {
	if HTTPStatus(err) == http.StatusInternalServerError {
		return "Something went wrong. Please try again."
	}
	return err.Error()
}
