// Package httpx holds the JSON response helpers shared by the registry handlers.
package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-registry/internal/apperr"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
	Field string `json:"field,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// StatusOf maps an error kind to an HTTP status.
func StatusOf(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindUnavailable:
		return http.StatusServiceUnavailable
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// WriteError renders err. Internal errors are logged and reported without detail.
func WriteError(w http.ResponseWriter, logger *zap.SugaredLogger, err error) {
	status := StatusOf(err)
	if status == http.StatusInternalServerError {
		logger.Errorw("request failed", "err", err)
		WriteJSON(w, status, ErrorBody{Error: "internal error"})
		return
	}
	logger.Debugw("request rejected", "status", status, "err", err)
	body := ErrorBody{Error: err.Error()}
	var e *apperr.Error
	if errors.As(err, &e) {
		body = ErrorBody{Error: e.Message, Code: e.Code, Field: e.Field}
	}
	WriteJSON(w, status, body)
}
