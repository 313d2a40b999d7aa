package rest

import (
	"encoding/json"
	"net/http"

	"github.com/marmos91/binder/internal/logger"
	"github.com/marmos91/binder/pkg/storage"
)

const (
	msgForbidden        = "invalid or missing token."
	msgNoContent        = "no content"
	msgQuotaExceeded    = "exceeded container limit"
	msgNotFound         = "not found."
	msgInvalidName      = "invalid file name."
	msgInternal         = "internal server error"
	msgTooManyRequests  = "too many requests"
	msgReconcileRunning = "reconcile already running"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// errorStatus maps a coordinator failure to a status code and a message
// safe to show clients.
func errorStatus(err error) (int, string) {
	switch storage.KindOf(err) {
	case storage.KindNotFound:
		return http.StatusNotFound, msgNotFound
	case storage.KindQuotaExceeded:
		return http.StatusBadRequest, msgQuotaExceeded
	case storage.KindInvalidName:
		return http.StatusBadRequest, msgInvalidName
	default:
		return http.StatusInternalServerError, msgInternal
	}
}

// respondError logs err once with the request id and replies with the
// mapped status. Client errors are logged at debug level.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	code, msg := errorStatus(err)
	if code >= http.StatusInternalServerError {
		logger.Error("[%s] %s %s: %v", requestID(r), r.Method, r.URL.Path, err)
	} else {
		logger.Debug("[%s] %s %s: %v", requestID(r), r.Method, r.URL.Path, err)
	}
	respondMessage(w, code, msg)
}

func respondMessage(w http.ResponseWriter, code int, msg string) {
	respondJSON(w, code, ErrorResponse{Message: msg, Status: code})
}

func respondJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
