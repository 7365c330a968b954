package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/raaihank/annotext/internal/annotation"
	"github.com/raaihank/annotext/internal/version"
)

type errorBody struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

// writeError maps domain errors onto status codes. Internal errors are
// logged and answered with a generic message.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validation *annotation.ValidationError
		conflict   *annotation.ConflictError
		tooLarge   *http.MaxBytesError
	)

	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: errorBody{Type: "validation_error", Message: err.Error(), Field: validation.Field}})
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, errorResponse{Error: errorBody{Type: "conflict", Message: conflict.Message}})
	case errors.Is(err, version.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: errorBody{Type: "not_found", Message: err.Error()}})
	case errors.As(err, &tooLarge):
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: errorBody{Type: "request_too_large", Message: err.Error()}})
	default:
		s.requestLogger(r).Error("Request failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: errorBody{Type: "internal_error", Message: "internal server error"}})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON reads a bounded request body into v
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	body := http.MaxBytesReader(w, r.Body, s.config.Server.MaxBodyBytes)
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return &annotation.ValidationError{Field: "body", Message: err.Error()}
	}
	return nil
}
