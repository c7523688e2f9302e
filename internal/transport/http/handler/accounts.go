package handler

import (
	"encoding/json"
	"net/http"

	"github.com/plumehost/platform/internal/application/account"
	"github.com/plumehost/platform/internal/domain"
	"github.com/plumehost/platform/internal/pkg/validate"
	"github.com/plumehost/platform/internal/transport/http/middleware"
)

// AccountHandler handles tenant registration, login, and settings endpoints.
type AccountHandler struct {
	svc account.Service
}

func NewAccountHandler(svc account.Service) *AccountHandler { return &AccountHandler{svc: svc} }

func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	tenant, err := h.svc.Register(r.Context(), &req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, AuthEnvelope{Tenant: tenant, Message: "account created"})
}

func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	token, tenant, err := h.svc.Login(r.Context(), &req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AuthEnvelope{Bearer: token, Tenant: tenant})
}

func (h *AccountHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	tenant, err := h.svc.GetSettings(r.Context(), claims.TenantID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tenant)
}

func (h *AccountHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req domain.UpdateTenantSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	tenant, err := h.svc.UpdateSettings(r.Context(), claims.TenantID, &req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tenant)
}
