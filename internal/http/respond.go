package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"tally/internal/core"
	"tally/internal/importer"
	"tally/internal/store"
)

// errorBody is the error envelope clients expect.
type errorBody struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeError maps domain errors onto the API's status codes: 404 for missing
// records, 422 for anything the caller can fix, 500 for the rest.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var headerErr *importer.HeaderError
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Detail: "not found"})
	case errors.As(err, &headerErr):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Detail: headerErr.Error()})
	case core.IsValidation(err):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Detail: err.Error()})
	default:
		slog.ErrorContext(r.Context(), "Request failed",
			"method", r.Method,
			"url", r.URL.Path,
			"error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Detail: "internal server error"})
	}
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return core.Invalid("invalid request body: " + err.Error())
	}
	return nil
}
