package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"courier/internal/platform/middleware"
	"courier/pkg/platform/sentinel"

	"courier/internal/messaging/models"
	"courier/internal/messaging/provider"
)

// ProviderHandler exposes the provider contract for channel configuration.
// The whole surface is admin-token guarded.
type ProviderHandler struct {
	logger     *slog.Logger
	resolver   *provider.Resolver
	adminToken string
}

// NewProviderHandler creates the provider admin handler.
func NewProviderHandler(resolver *provider.Resolver, adminToken string, logger *slog.Logger) *ProviderHandler {
	return &ProviderHandler{
		logger:     logger,
		resolver:   resolver,
		adminToken: adminToken,
	}
}

// Register mounts the provider routes.
func (h *ProviderHandler) Register(r chi.Router) {
	r.Route("/v1/admin/channels/{channel}/providers", func(r chi.Router) {
		r.Use(middleware.RequireAdminToken(h.adminToken, h.logger))
		r.Get("/", h.handleList)
		r.Post("/", h.handleCreate)
		r.Get("/primary", h.handlePrimary)
		r.Route("/{providerID}", func(r chi.Router) {
			r.Get("/", h.handleGet)
			r.Put("/", h.handleUpdate)
			r.Delete("/", h.handleDelete)
		})
	})
}

type providerRequest struct {
	Name        string            `json:"name"`
	Credentials map[string]string `json:"credentials"`
	IsPrimary   bool              `json:"is_primary"`
}

// resolve builds the (organisation, channel) scoped handle from the route and
// the required organisation_id query parameter.
func (h *ProviderHandler) resolve(w http.ResponseWriter, r *http.Request) (*provider.Handle, bool) {
	organisationID, err := uuid.Parse(r.URL.Query().Get("organisation_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "organisation_id is required")
		return nil, false
	}

	channel := models.ChannelType(chi.URLParam(r, "channel"))
	handle, err := h.resolver.Resolve(channel, organisationID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unsupported channel type")
		return nil, false
	}
	return handle, true
}

func (h *ProviderHandler) handleList(w http.ResponseWriter, r *http.Request) {
	handle, ok := h.resolve(w, r)
	if !ok {
		return
	}

	listed, err := handle.List(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list providers", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list providers")
		return
	}

	out := make([]providerResponse, 0, len(listed))
	for _, p := range listed {
		out = append(out, toProviderResponse(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *ProviderHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	handle, ok := h.resolve(w, r)
	if !ok {
		return
	}

	var req providerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	p := &models.Provider{
		Name:        req.Name,
		Credentials: req.Credentials,
		IsPrimary:   req.IsPrimary,
	}
	if err := handle.Create(r.Context(), p); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			writeError(w, http.StatusConflict, "a primary provider already exists for this channel")
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to create provider", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create provider")
		return
	}
	writeJSON(w, http.StatusCreated, toProviderResponse(*p))
}

func (h *ProviderHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	handle, ok := h.resolve(w, r)
	if !ok {
		return
	}
	providerID, ok := h.providerID(w, r)
	if !ok {
		return
	}

	p, err := handle.Get(r.Context(), providerID)
	if err != nil {
		h.respondLookupError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProviderResponse(*p))
}

func (h *ProviderHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	handle, ok := h.resolve(w, r)
	if !ok {
		return
	}
	providerID, ok := h.providerID(w, r)
	if !ok {
		return
	}

	var req providerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	p, err := handle.Get(r.Context(), providerID)
	if err != nil {
		h.respondLookupError(w, r, err)
		return
	}
	p.Name = req.Name
	p.Credentials = req.Credentials
	p.IsPrimary = req.IsPrimary

	if err := handle.Update(r.Context(), p); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			writeError(w, http.StatusConflict, "a primary provider already exists for this channel")
			return
		}
		h.respondLookupError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProviderResponse(*p))
}

func (h *ProviderHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	handle, ok := h.resolve(w, r)
	if !ok {
		return
	}
	providerID, ok := h.providerID(w, r)
	if !ok {
		return
	}

	if err := handle.Delete(r.Context(), providerID); err != nil {
		h.respondLookupError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProviderHandler) handlePrimary(w http.ResponseWriter, r *http.Request) {
	handle, ok := h.resolve(w, r)
	if !ok {
		return
	}

	p, err := handle.GetPrimaryOrDefault(r.Context())
	if err != nil {
		h.respondLookupError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProviderResponse(*p))
}

func (h *ProviderHandler) providerID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "providerID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid provider id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *ProviderHandler) respondLookupError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, sentinel.ErrNotFound) {
		writeError(w, http.StatusNotFound, "provider not found")
		return
	}
	h.logger.ErrorContext(r.Context(), "provider operation failed", "error", err)
	writeError(w, http.StatusInternalServerError, "provider operation failed")
}
