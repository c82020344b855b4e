package http

import (
	"encoding/json"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/afterschool-bookings/internal/domain"
	"github.com/robertarktes/afterschool-bookings/internal/observability"
)

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, messageResponse{Message: msg})
}

// writeError maps err onto a status code. Details of unexpected errors are
// logged and never sent to the client.
func writeError(w http.ResponseWriter, r *http.Request, logger observability.Logger, err error, notFound string) {
	log := observability.LoggerFromContext(r.Context(), logger)
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeMessage(w, http.StatusNotFound, notFound)
	case errors.Is(err, domain.ErrUnavailable):
		log.WithError(err).Error("store unavailable")
		writeMessage(w, http.StatusServiceUnavailable, "Service Unavailable")
	default:
		log.WithError(err).Error("request failed")
		writeMessage(w, http.StatusInternalServerError, "Internal Server Error")
	}
}
