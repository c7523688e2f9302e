package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/plumehost/platform/internal/domain"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// AuthEnvelope wraps login/register responses.
type AuthEnvelope struct {
	Bearer  string         `json:"Bearer,omitempty"`
	Tenant  *domain.Tenant `json:"tenant,omitempty"`
	Message string         `json:"message,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// BlogEnvelope is the public descriptor served at a blog's root.
type BlogEnvelope struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Theme       string `json:"theme"`
	Domain      string `json:"domain,omitempty"`
}

// DeliveriesEnvelope wraps the dashboard's pending-delivery listing.
type DeliveriesEnvelope struct {
	Data  []domain.Delivery `json:"data"`
	Total int               `json:"total"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}

// httpError maps domain sentinel errors onto response status codes.
func httpError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrBadRequest):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrAlreadySent):
		status = http.StatusConflict
	}
	writeError(w, status, err.Error())
}
