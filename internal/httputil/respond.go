// Package httputil provides the response envelope and HTTP client plumbing
// shared by the agent services.
package httputil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/intexuraos/agents/internal/errors"
)

// maxRequestBody bounds request body reads.
const maxRequestBody = 1 << 20

// Envelope is the wire shape of every response.
type Envelope struct {
	Success bool           `json:"success"`
	Data    interface{}    `json:"data,omitempty"`
	Error   *ErrorEnvelope `json:"error,omitempty"`
}

// ErrorEnvelope is the wire shape of a failure.
type ErrorEnvelope struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// WriteData writes a {success:true, data:...} response.
func WriteData(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, Envelope{Success: true, Data: data})
}

// WriteError writes a {success:false, error:...} response. Non-service
// errors are reported as a generic internal failure so unexpected error
// text never reaches callers.
func WriteError(w http.ResponseWriter, err error) {
	serviceErr := errors.GetServiceError(err)
	if serviceErr == nil {
		serviceErr = errors.Internal("internal error", err)
	}
	writeJSON(w, serviceErr.HTTPStatus, Envelope{
		Success: false,
		Error: &ErrorEnvelope{
			Code:    string(serviceErr.Code),
			Message: serviceErr.Message,
			Details: serviceErr.Details,
		},
	})
}

// WriteErrorCode writes a failure with an explicit code and message.
func WriteErrorCode(w http.ResponseWriter, code errors.Code, message string) {
	writeJSON(w, errors.HTTPStatusForCode(code), Envelope{
		Success: false,
		Error:   &ErrorEnvelope{Code: string(code), Message: message},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// ReadBody reads a request body with the standard size limit.
func ReadBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody+1))
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", err)
	}
	if len(body) > maxRequestBody {
		return nil, fmt.Errorf("request body exceeds %d bytes", maxRequestBody)
	}
	return body, nil
}

// DecodeJSON decodes a request body into dst, rejecting unknown trailing
// content and oversized payloads.
func DecodeJSON(r *http.Request, dst interface{}) error {
	body, err := ReadBody(r)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

// ReadAllWithLimit reads up to limit bytes and reports whether the body was
// truncated.
func ReadAllWithLimit(r io.Reader, limit int64) ([]byte, bool, error) {
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, false, err
	}
	if int64(len(body)) > limit {
		return body[:limit], true, nil
	}
	return body, false, nil
}

// ReadAllStrict reads the full body, failing when it exceeds limit.
func ReadAllStrict(r io.Reader, limit int64) ([]byte, error) {
	body, truncated, err := ReadAllWithLimit(r, limit)
	if err != nil {
		return nil, err
	}
	if truncated {
		return nil, fmt.Errorf("response body exceeds %d bytes", limit)
	}
	return body, nil
}
