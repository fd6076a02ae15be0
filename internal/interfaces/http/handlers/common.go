package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/networknext/portal/pkg/errors"
)

// maxRequestBody bounds JSON request bodies accepted by the admin API.
const maxRequestBody = 1 << 16

// ErrorResponse is the standard error response body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// statusFor maps an error to its HTTP status. Errors without a code are
// internal.
func statusFor(err error) (errors.ErrorCode, int) {
	code := errors.GetCode(err)
	if code == errors.CodeUnknown {
		code = errors.ErrCodeInternal
	}
	return code, errors.HTTPStatusForCode(code)
}

// publicMessage is the message safe to show a caller. Server errors are
// masked with the code's default message.
func publicMessage(err error, code errors.ErrorCode, status int) string {
	if status >= http.StatusInternalServerError {
		return errors.DefaultMessageForCode(code)
	}
	var ae *errors.AppError
	if errors.As(err, &ae) && ae.Message != "" {
		return ae.Message
	}
	return errors.DefaultMessageForCode(code)
}

// writeAppError maps application errors to a JSON error response.
func writeAppError(w http.ResponseWriter, err error) {
	code, status := statusFor(err)
	writeJSON(w, status, ErrorResponse{
		Code:    code.String(),
		Message: publicMessage(err, code, status),
	})
}

// decodeJSON reads a bounded JSON body into dst, rejecting unknown fields.
func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.Wrap(err, errors.CodeInvalidParam, "invalid request body")
	}
	return nil
}

// parsePagination reads offset and limit query parameters, clamping limit to
// [1, 100].
func parsePagination(r *http.Request) (offset, limit int) {
	limit = 20
	if v := r.URL.Query().Get("offset"); v != "" {
		if o, err := strconv.Atoi(v); err == nil && o >= 0 {
			offset = o
		}
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if l, err := strconv.Atoi(v); err == nil && l > 0 {
			limit = l
		}
	}
	if limit > 100 {
		limit = 100
	}
	return offset, limit
}
