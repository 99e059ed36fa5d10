package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"cooplend/models"
	"cooplend/service"

	log "github.com/sirupsen/logrus"
)

const internalErrorMessage = "Internal error, please try again"

type errorResponse struct {
	Error     string        `json:"error"`
	Kind      string        `json:"kind,omitempty"`
	Shortfall *models.Money `json:"shortfall,omitempty"`
}

// statusForKind maps an error kind to its HTTP status
func statusForKind(kind service.ErrorKind) int {
	switch kind {
	case service.KindValidation:
		return http.StatusBadRequest
	case service.KindPreconditionFailed:
		return http.StatusConflict
	case service.KindInsufficientFunds:
		return http.StatusUnprocessableEntity
	case service.KindSystemFrozen:
		return http.StatusLocked
	case service.KindForbidden:
		return http.StatusForbidden
	case service.KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.WithError(err).Warn("Failed to encode response")
	}
}

func jsonError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeServiceError renders a service failure. Internal errors are logged
// and replaced by an opaque message.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	kind := service.KindOf(err)
	status := statusForKind(kind)

	if kind == service.KindInternal {
		log.WithFields(log.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).WithError(err).Error("Request failed")
		writeJSON(w, status, errorResponse{Error: internalErrorMessage, Kind: string(kind)})
		return
	}

	var typed *service.Error
	message := err.Error()
	if errors.As(err, &typed) {
		message = typed.Message
	}

	body := errorResponse{Error: message, Kind: string(kind)}
	if kind == service.KindInsufficientFunds {
		shortfall := service.ShortfallOf(err)
		body.Shortfall = &shortfall
	}

	log.WithFields(log.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
		"kind":   kind,
	}).Debug(message)

	writeJSON(w, status, body)
}
