package httputil

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

const (
	ContentTypeJSON    = "application/json"
	ContentTypeJSONAPI = "application/vnd.api+json"
)

// WriteJSON writes data as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	writeEncoded(w, status, ContentTypeJSON, data)
}

// WriteJSONAPI writes data with the JSON:API media type.
func WriteJSONAPI(w http.ResponseWriter, status int, data interface{}) {
	writeEncoded(w, status, ContentTypeJSONAPI, data)
}

func writeEncoded(w http.ResponseWriter, status int, contentType string, data interface{}) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// ErrorObject is a single JSON:API error.
type ErrorObject struct {
	Status int               `json:"status"`
	Code   string            `json:"code"`
	Title  string            `json:"title"`
	Detail string            `json:"detail,omitempty"`
	Source map[string]string `json:"source,omitempty"`
}

// ErrorDocument is the top level JSON:API error envelope.
type ErrorDocument struct {
	Errors []ErrorObject `json:"errors"`
}

// WriteJSONAPIError writes a single-error JSON:API document.
// code is the machine-checkable reason, detail the human message.
func WriteJSONAPIError(w http.ResponseWriter, status int, code, title, detail string) {
	WriteJSONAPI(w, status, ErrorDocument{Errors: []ErrorObject{{
		Status: status,
		Code:   code,
		Title:  title,
		Detail: detail,
	}}})
}

func WriteValidationError(w http.ResponseWriter, detail string) {
	WriteJSONAPIError(w, http.StatusBadRequest, "validation_failed", "Validation Failed", detail)
}

func WriteNotFoundError(w http.ResponseWriter, detail string) {
	WriteJSONAPIError(w, http.StatusNotFound, "not_found", "Not Found", detail)
}

func WriteForbiddenError(w http.ResponseWriter, detail string) {
	WriteJSONAPIError(w, http.StatusForbidden, "forbidden", "Forbidden", detail)
}

// WriteInternalError writes a 500 with a generic detail. Log the cause before calling.
func WriteInternalError(w http.ResponseWriter) {
	WriteJSONAPIError(w, http.StatusInternalServerError, "gateway_internal", "Internal Server Error",
		"An internal error occurred")
}
