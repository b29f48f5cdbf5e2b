package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/AdamBeresnev/courtside/internal/apperr"
)

type errorBody struct {
	Error string      `json:"error"`
	Kind  apperr.Kind `json:"kind"`
}

// WriteJSON encodes v as the response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// DecodeJSON reads a JSON request body into v. Unknown fields are rejected.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return apperr.Wrap(apperr.KindValidation, "invalid request body", err)
	}
	return nil
}

// WriteError answers with the status matching the error's kind. Internal
// errors are logged and their details withheld from the client.
func WriteError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	msg := err.Error()

	switch kind {
	case apperr.KindInternal:
		slog.Error("request failed", "error", err)
		msg = "internal server error"
	case apperr.KindDependency:
		slog.Error("dependency failed", "error", err)
	default:
		slog.Warn("request rejected", "kind", kind, "error", err)
	}

	WriteJSON(w, kind.HTTPStatus(), errorBody{Error: msg, Kind: kind})
}

func InternalServerError(w http.ResponseWriter, msg string, err error) {
	WriteError(w, apperr.Wrap(apperr.KindInternal, msg, err))
}

func BadRequest(w http.ResponseWriter, msg string, err error) {
	if err == nil {
		WriteError(w, apperr.New(apperr.KindValidation, msg))
		return
	}
	WriteError(w, apperr.Wrap(apperr.KindValidation, msg, err))
}

func NotFound(w http.ResponseWriter, msg string, err error) {
	if err == nil {
		WriteError(w, apperr.New(apperr.KindNotFound, msg))
		return
	}
	WriteError(w, apperr.Wrap(apperr.KindNotFound, msg, err))
}
