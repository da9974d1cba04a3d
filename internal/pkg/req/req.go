/*
Package req provides helpers for parsing and binding HTTP request data.

JSON binding is strict: the content type must be application/json, unknown
fields are rejected, and trailing content after the document is an error.
*/
package req

import (
	"encoding/json"
	"net/http"
	"strings"

	"callbridge/internal/pkg/errs"
)

// BindJSON binds the JSON request body to dst.
func BindJSON(r *http.Request, dst any) *errs.CustomError {
	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "application/json") {
		return errs.NewError(errs.ErrUnsupportedMediaType)
	}

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		return errs.NewError(errs.ErrInvalidJSONFormat)
	}

	if decoder.More() {
		return errs.NewError(errs.ErrExtraContentInBody)
	}

	return nil
}
