package errors

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
)

// Response is the JSON error body written by Render
type Response struct {
	Error   string                 `json:"error"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Render writes err as JSON with the status of its kind. Unclassified errors
// are logged and reported as a generic internal error.
func Render(w http.ResponseWriter, r *http.Request, err error) {
	var structuredErr *Error
	if !errors.As(err, &structuredErr) {
		slog.Error("Unstructured error", "path", r.URL.Path, "err", err)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, Response{Error: KindUnknown.String(), Message: "Internal server error"})
		return
	}

	status := structuredErr.HTTPStatusCode()
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "path", r.URL.Path, "kind", structuredErr.Kind, "err", err)
	}
	render.Status(r, status)
	render.JSON(w, r, Response{
		Error:   structuredErr.Kind.String(),
		Message: structuredErr.Message,
		Details: structuredErr.Details,
	})
}

// BadRequest wraps a request decoding failure as a validation error
func BadRequest(err error) *Error {
	return Wrap(err, KindValidation, "invalid request body")
}
