package http

import (
	"ShortReach-Backend/internal/domain"
	"ShortReach-Backend/internal/repository"
	"ShortReach-Backend/internal/service"
	"ShortReach-Backend/pkg/base62"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// LinksHandler serves the JSON management API for short links.
type LinksHandler struct {
	links   *service.ShortLinkService
	log     *zap.Logger
	baseURL string
}

// NewLinksHandler creates the links handler.
func NewLinksHandler(links *service.ShortLinkService, log *zap.Logger, baseURL string) *LinksHandler {
	return &LinksHandler{
		links:   links,
		log:     log,
		baseURL: baseURL,
	}
}

// CreateLinkRequest is the payload for creating a short link.
type CreateLinkRequest struct {
	DestinationURL string `json:"destination_url"`
	OwnerID        string `json:"owner_id"`
	CustomCode     string `json:"custom_code,omitempty"`
	EntityID       string `json:"entity_id,omitempty"`
	EntityKind     string `json:"entity_kind,omitempty"`
	SubTag         string `json:"sub_tag,omitempty"`
	Title          string `json:"title,omitempty"`
	Description    string `json:"description,omitempty"`
	Variant        string `json:"variant,omitempty"`
	ExpiresInDays  int    `json:"expires_in_days,omitempty"`
}

// RefreshLinkRequest is the payload for reactivating a link.
type RefreshLinkRequest struct {
	ExpiresInDays int `json:"expires_in_days,omitempty"`
}

// LinkInfo is the wire representation of a short link.
type LinkInfo struct {
	ID             int64  `json:"id"`
	Code           string `json:"code"`
	ShortURL       string `json:"short_url"`
	DestinationURL string `json:"destination_url"`
	OwnerID        string `json:"owner_id"`
	EntityID       string `json:"entity_id,omitempty"`
	EntityKind     string `json:"entity_kind,omitempty"`
	SubTag         string `json:"sub_tag,omitempty"`
	Title          string `json:"title,omitempty"`
	Description    string `json:"description,omitempty"`
	Variant        string `json:"variant,omitempty"`
	ClickCount     int64  `json:"click_count"`
	LastClickedAt  string `json:"last_clicked_at,omitempty"`
	CreatedAt      string `json:"created_at"`
	ExpiresAt      string `json:"expires_at,omitempty"`
	IsActive       bool   `json:"is_active"`
}

// ListLinksResponse wraps a link collection.
type ListLinksResponse struct {
	Links []LinkInfo `json:"links"`
}

// CreateLink serves POST /api/links.
func (h *LinksHandler) CreateLink(w http.ResponseWriter, r *http.Request) {
	var req CreateLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Debug("invalid create link request", zap.Error(err))
		h.writeError(w, "Invalid request format", http.StatusBadRequest)
		return
	}

	if req.DestinationURL == "" {
		h.writeError(w, "destination_url is required", http.StatusBadRequest)
		return
	}
	if req.OwnerID == "" {
		h.writeError(w, "owner_id is required", http.StatusBadRequest)
		return
	}

	in := service.CreateLinkInput{
		DestinationURL: req.DestinationURL,
		OwnerID:        req.OwnerID,
		CustomCode:     req.CustomCode,
		Title:          req.Title,
		Description:    req.Description,
		Variant:        req.Variant,
		ExpiresInDays:  req.ExpiresInDays,
	}
	if req.EntityID != "" {
		in.Entity = &domain.AssociatedEntity{
			EntityID:   req.EntityID,
			EntityKind: req.EntityKind,
			SubTag:     req.SubTag,
		}
	}

	link, err := h.links.Create(r.Context(), in)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidURL):
			h.writeError(w, "Invalid destination URL", http.StatusBadRequest)
		case errors.Is(err, base62.ErrInvalidFormat):
			h.writeError(w, "Invalid custom code: 4-10 alphanumeric characters required", http.StatusBadRequest)
		case errors.Is(err, repository.ErrCodeExists):
			h.writeError(w, "Code already exists", http.StatusConflict)
		case errors.Is(err, base62.ErrGenerationExhausted):
			h.log.Error("code generation exhausted", zap.Error(err))
			h.writeError(w, "Could not generate a unique code", http.StatusServiceUnavailable)
		default:
			h.log.Error("failed to create link", zap.Error(err))
			h.writeError(w, "Failed to create link", http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(w, h.linkInfo(link), http.StatusCreated)
}

// ListLinks serves GET /api/links?owner_id=...&limit=... and
// GET /api/links/entity/{entityID}.
func (h *LinksHandler) ListLinks(w http.ResponseWriter, r *http.Request) {
	ownerID := r.URL.Query().Get("owner_id")
	if ownerID == "" {
		h.writeError(w, "owner_id query parameter is required", http.StatusBadRequest)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			h.writeError(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	links, err := h.links.ListByOwner(r.Context(), ownerID, limit)
	if err != nil {
		h.log.Error("failed to list owner links", zap.String("owner_id", ownerID), zap.Error(err))
		h.writeError(w, "Failed to retrieve links", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, h.listResponse(links), http.StatusOK)
}

// ListEntityLinks serves GET /api/links/entity/{entityID}.
func (h *LinksHandler) ListEntityLinks(w http.ResponseWriter, r *http.Request, entityID string) {
	links, err := h.links.ListByEntity(r.Context(), entityID)
	if err != nil {
		h.log.Error("failed to list entity links", zap.String("entity_id", entityID), zap.Error(err))
		h.writeError(w, "Failed to retrieve links", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, h.listResponse(links), http.StatusOK)
}

// GetStats serves GET /api/stats/{id}.
func (h *LinksHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r.URL.Path, "/api/stats/")
	if !ok {
		return
	}

	stats, err := h.links.Stats(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrCodeNotFound) {
			h.writeError(w, "Link not found", http.StatusNotFound)
			return
		}
		h.log.Error("failed to get link stats", zap.Int64("link_id", id), zap.Error(err))
		h.writeError(w, "Failed to retrieve statistics", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, stats, http.StatusOK)
}

// DeactivateLink serves DELETE /api/links/{id}. Idempotent: deleting an
// unknown or already-inactive link still answers 204.
func (h *LinksHandler) DeactivateLink(w http.ResponseWriter, r *http.Request, id int64) {
	if err := h.links.Deactivate(r.Context(), id); err != nil {
		h.log.Error("failed to deactivate link", zap.Int64("link_id", id), zap.Error(err))
		h.writeError(w, "Failed to deactivate link", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RefreshLink serves POST /api/links/{id}/refresh.
func (h *LinksHandler) RefreshLink(w http.ResponseWriter, r *http.Request, id int64) {
	var req RefreshLinkRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, "Invalid request format", http.StatusBadRequest)
			return
		}
	}

	link, err := h.links.Refresh(r.Context(), id, req.ExpiresInDays)
	if err != nil {
		if errors.Is(err, repository.ErrCodeNotFound) {
			h.writeError(w, "Link not found", http.StatusNotFound)
			return
		}
		h.log.Error("failed to refresh link", zap.Int64("link_id", id), zap.Error(err))
		h.writeError(w, "Failed to refresh link", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, h.linkInfo(link), http.StatusOK)
}

// Helper methods

func (h *LinksHandler) linkInfo(link *domain.ShortLink) LinkInfo {
	info := LinkInfo{
		ID:             link.ID,
		Code:           link.Code,
		ShortURL:       h.baseURL + "/" + link.Code,
		DestinationURL: link.DestinationURL,
		OwnerID:        link.OwnerID,
		ClickCount:     link.ClickCount,
		CreatedAt:      link.CreatedAt.Format(time.RFC3339),
		IsActive:       link.IsActive,
	}
	if link.EntityID != nil {
		info.EntityID = *link.EntityID
	}
	if link.EntityKind != nil {
		info.EntityKind = *link.EntityKind
	}
	if link.SubTag != nil {
		info.SubTag = *link.SubTag
	}
	if link.Title != nil {
		info.Title = *link.Title
	}
	if link.Description != nil {
		info.Description = *link.Description
	}
	if link.Variant != nil {
		info.Variant = *link.Variant
	}
	if link.LastClickedAt != nil {
		info.LastClickedAt = link.LastClickedAt.Format(time.RFC3339)
	}
	if link.ExpiresAt != nil {
		info.ExpiresAt = link.ExpiresAt.Format(time.RFC3339)
	}
	return info
}

func (h *LinksHandler) listResponse(links []*domain.ShortLink) ListLinksResponse {
	infos := make([]LinkInfo, len(links))
	for i, link := range links {
		infos[i] = h.linkInfo(link)
	}
	return ListLinksResponse{Links: infos}
}

func (h *LinksHandler) pathID(w http.ResponseWriter, path, prefix string) (int64, bool) {
	raw := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, "Valid link id is required", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func (h *LinksHandler) writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func (h *LinksHandler) writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
