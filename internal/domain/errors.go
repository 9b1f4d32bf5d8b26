package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrQuestionNotFound is returned when a question id does not exist.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrCommentNotFound is returned when a comment id does not exist on the question.
	ErrCommentNotFound = errors.New("comment not found")
	// ErrBookmarkNotFound is returned when deleting a bookmark that was never made.
	ErrBookmarkNotFound = errors.New("no bookmark to delete")
	// ErrNotAuthorized is returned when the caller lacks the identity or role for an operation.
	ErrNotAuthorized = errors.New("not authorized")
	// ErrBadRequest marks malformed or incomplete input.
	ErrBadRequest = errors.New("bad request")
	// ErrValidation marks input that is well formed but violates model constraints.
	ErrValidation = errors.New("validation failed")
	// ErrMalformedSet is returned when an exam set key is not "{year}/{season}".
	ErrMalformedSet = errors.New("malformed exam set key")
)

// Error types carried in APIError.Type.
const (
	ErrorTypeBadRequest    = "BadRequest"
	ErrorTypeNotAuthorized = "NotAuthorized"
	ErrorTypeNotFound      = "NotFoundError"
	ErrorTypeValidation    = "ValidationError"
	ErrorTypeServer        = "ServerError"
)

// APIError is the structured error payload exchanged between backend and client.
type APIError struct {
	Type    string         `json:"type"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data"`
	Status  int            `json:"-"`
}

func (e *APIError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s (%d): %s", e.Type, e.Status, e.Message)
	}
	return e.Type + ": " + e.Message
}

// Is lets errors.Is match an APIError decoded from the wire against the sentinels above.
func (e *APIError) Is(target error) bool {
	switch e.Type {
	case ErrorTypeBadRequest:
		return target == ErrBadRequest
	case ErrorTypeNotAuthorized:
		return target == ErrNotAuthorized
	case ErrorTypeNotFound:
		return target == ErrQuestionNotFound || target == ErrCommentNotFound || target == ErrBookmarkNotFound
	case ErrorTypeValidation:
		return target == ErrValidation
	}
	return false
}

// ErrorType classifies err into one of the APIError types.
func ErrorType(err error) string {
	switch {
	case errors.Is(err, ErrQuestionNotFound), errors.Is(err, ErrCommentNotFound), errors.Is(err, ErrBookmarkNotFound):
		return ErrorTypeNotFound
	case errors.Is(err, ErrNotAuthorized):
		return ErrorTypeNotAuthorized
	case errors.Is(err, ErrBadRequest), errors.Is(err, ErrMalformedSet):
		return ErrorTypeBadRequest
	case errors.Is(err, ErrValidation):
		return ErrorTypeValidation
	}
	return ErrorTypeServer
}
