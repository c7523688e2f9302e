package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/plumehost/platform/internal/application/broadcast"
	"github.com/plumehost/platform/internal/transport/http/middleware"
)

// DeliveryHandler exposes the dashboard's view of the notification pipeline:
// listing pending deliveries and canceling individual ones.
type DeliveryHandler struct {
	svc broadcast.Service
}

func NewDeliveryHandler(svc broadcast.Service) *DeliveryHandler { return &DeliveryHandler{svc: svc} }

func (h *DeliveryHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	pending, err := h.svc.ListPending(r.Context(), claims.TenantID)
	if err != nil {
		httpError(w, err)
		return
	}
	if postID := r.URL.Query().Get("post_id"); postID != "" {
		filtered := pending[:0]
		for _, d := range pending {
			if d.PostID == postID {
				filtered = append(filtered, d)
			}
		}
		pending = filtered
	}
	writeJSON(w, http.StatusOK, DeliveriesEnvelope{Data: pending, Total: len(pending)})
}

func (h *DeliveryHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	postID := chi.URLParam(r, "postID")
	subscriberID := chi.URLParam(r, "subscriberID")
	if err := h.svc.Cancel(r.Context(), claims.TenantID, postID, subscriberID); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "delivery canceled"})
}
