/*
Package errs provides the application's error taxonomy.

CustomError carries a business code, a client-safe message, and the HTTP
status the error maps to. Internal causes are logged where they occur and
never travel inside the message.
*/
package errs

import (
	"fmt"
	"net/http"
	"strings"

	"callbridge/internal/pkg/logx"
)

// CustomError is the error type used across handlers and services.
type CustomError struct {
	// Code is the business error code (see error_codes.go).
	Code int

	// Message is the client-facing error description.
	Message string

	// Status is the HTTP status code the error responds with.
	Status int
}

// Error implements the error interface.
func (e CustomError) Error() string {
	return fmt.Sprintf("Error Code %d (HTTP %d): %s", e.Code, e.Status, e.Message)
}

// NewError builds a *CustomError from a predefined code. Optional details
// are printf-style arguments for message templates that carry placeholders.
// An unknown code degrades to ErrUnknown.
func NewError(code int, details ...any) *CustomError {
	templateErr, ok := errorMap[code]

	if !ok {
		logx.Error(
			fmt.Errorf("attempted to create an error with an unknown code in errorMap"),
			"Unknown error code requested",
			"requested_code", code,
		)

		unknownErr := errorMap[ErrUnknown]
		return &CustomError{
			Code:    unknownErr.Code,
			Message: unknownErr.Message,
			Status:  unknownErr.Status,
		}
	}

	customErr := templateErr

	if customErr.Status == 0 {
		customErr.Status = http.StatusOK
	}

	if code == ErrUnknown && len(details) > 0 {
		if originalErr, ok := details[0].(error); ok {
			logx.Error(
				originalErr,
				"Handling ErrUnknown with underlying error",
			)
		}
	} else if len(details) > 0 {
		if strings.Contains(customErr.Message, "%") {
			customErr.Message = fmt.Sprintf(customErr.Message, details...)
		} else {
			logx.Warn(
				"Details provided for error, but message template has no formatting placeholders. Details ignored.",
			)
		}
	}

	return &customErr
}
