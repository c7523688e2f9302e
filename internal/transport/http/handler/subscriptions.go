package handler

import (
	"encoding/json"
	"net/http"

	"github.com/plumehost/platform/internal/application/resolver"
	"github.com/plumehost/platform/internal/application/subscription"
	"github.com/plumehost/platform/internal/domain"
	"github.com/plumehost/platform/internal/pkg/validate"
	"github.com/plumehost/platform/internal/transport/http/middleware"
)

// SubscriptionHandler handles the public subscribe/unsubscribe surface of a blog.
type SubscriptionHandler struct {
	svc subscription.Service
}

func NewSubscriptionHandler(svc subscription.Service) *SubscriptionHandler {
	return &SubscriptionHandler{svc: svc}
}

// blogTenant pulls the resolved tenant out of the request context. These
// endpoints only exist on blog hosts; on the canonical host they 404.
func blogTenant(w http.ResponseWriter, r *http.Request) (*domain.Tenant, bool) {
	res, ok := middleware.ResolutionFromContext(r.Context())
	if !ok || res.Kind != resolver.KindTenant {
		writeError(w, http.StatusNotFound, "not found")
		return nil, false
	}
	return res.Tenant, true
}

func (h *SubscriptionHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	tenant, ok := blogTenant(w, r)
	if !ok {
		return
	}
	var req domain.SubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if _, err := h.svc.Subscribe(r.Context(), tenant.TenantID, &req); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, MessageEnvelope{Message: "subscribed"})
}

func (h *SubscriptionHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	if _, ok := blogTenant(w, r); !ok {
		return
	}
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, http.StatusBadRequest, "missing token")
		return
	}
	if err := h.svc.Unsubscribe(r.Context(), token); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "unsubscribed"})
}

// UnsubscribeKey deletes the subscriber record outright. It is mounted both on
// POST /unsubscribe, where mail clients fire the List-Unsubscribe one-click
// request, and on GET /unsubscribe-key for the equivalent link.
func (h *SubscriptionHandler) UnsubscribeKey(w http.ResponseWriter, r *http.Request) {
	if _, ok := blogTenant(w, r); !ok {
		return
	}
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, http.StatusBadRequest, "missing token")
		return
	}
	if err := h.svc.UnsubscribeKey(r.Context(), token); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "unsubscribed"})
}
