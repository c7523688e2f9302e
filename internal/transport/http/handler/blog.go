package handler

import (
	"net/http"

	"github.com/plumehost/platform/internal/application/resolver"
	"github.com/plumehost/platform/internal/transport/http/middleware"
)

// BlogHandler serves the public descriptor of a resolved blog.
type BlogHandler struct{}

func NewBlogHandler() *BlogHandler { return &BlogHandler{} }

func (h *BlogHandler) Home(w http.ResponseWriter, r *http.Request) {
	res, ok := middleware.ResolutionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusInternalServerError, "no host resolution")
		return
	}
	if res.Kind == resolver.KindCanonical {
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: "plume"})
		return
	}
	t := res.Tenant
	writeJSON(w, http.StatusOK, BlogEnvelope{
		Username:    t.Username,
		DisplayName: t.SenderName(),
		Theme:       res.Theme,
		Domain:      t.CustomDomain,
	})
}
