package handlers

import (
	"net/http"

	"github.com/piriwata/Council1901/internal/api/middleware"
	"github.com/piriwata/Council1901/internal/metrics"
	"github.com/piriwata/Council1901/internal/models"
)

// CreateConversationRequest represents the conversation creation request.
// Participants may or may not list the caller's own faction.
type CreateConversationRequest struct {
	Participants []string `json:"participants"`
	RoomID       *string  `json:"room_id,omitempty"`
}

// CreateConversationResponse represents the conversation creation response.
type CreateConversationResponse struct {
	ConversationID string `json:"conversation_id"`
}

// ListConversations handles GET /api/conversations.
func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetClaimsFromContext(r.Context())
	if !ok {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	list, err := h.dir.List(r.Context(), claims.RoomID, claims.Faction)
	if err != nil {
		h.Fail(w, r, err)
		return
	}

	h.JSON(w, http.StatusOK, list)
}

// CreateConversation handles POST /api/conversations.
func (h *Handler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetClaimsFromContext(r.Context())
	if !ok {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req CreateConversationRequest
	if err := decode(r, &req); err != nil {
		h.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Participants == nil {
		h.Error(w, http.StatusBadRequest, "participants is required")
		return
	}
	if req.RoomID != nil && *req.RoomID != claims.RoomID {
		h.Error(w, http.StatusForbidden, "room_id does not match token")
		return
	}

	// Drop the caller's own faction once; any further copy is a duplicate.
	others := make([]models.Faction, 0, len(req.Participants))
	self := false
	for _, p := range req.Participants {
		f := models.Faction(p)
		if f == claims.Faction && !self {
			self = true
			continue
		}
		others = append(others, f)
	}

	id, created, err := h.dir.Create(r.Context(), claims.RoomID, claims.Faction, others)
	if err != nil {
		h.Fail(w, r, err)
		return
	}

	result := "existing"
	if created {
		result = "created"
	}
	metrics.ConversationsCreated.WithLabelValues(result).Inc()

	h.JSON(w, http.StatusOK, CreateConversationResponse{ConversationID: id})
}
