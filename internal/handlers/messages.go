package handlers

import (
	"net/http"
	"strconv"

	"github.com/piriwata/Council1901/internal/api/middleware"
	"github.com/piriwata/Council1901/internal/conversations"
	"github.com/piriwata/Council1901/internal/messages"
	"github.com/piriwata/Council1901/internal/metrics"
)

// SendMessageRequest represents the post message request.
type SendMessageRequest struct {
	ConversationID string  `json:"conversation_id"`
	Content        *string `json:"content"`
}

// SendMessageResponse represents the post message response.
type SendMessageResponse struct {
	MessageID string `json:"message_id"`
	Timestamp int64  `json:"timestamp"`
}

// ListMessages handles GET /api/messages.
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetClaimsFromContext(r.Context())
	if !ok {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	q := r.URL.Query()
	convID := q.Get("conversation_id")
	if convID == "" {
		h.Error(w, http.StatusBadRequest, "conversation_id is required")
		return
	}

	var since int64
	if s := q.Get("since"); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil || v < 0 {
			h.Error(w, http.StatusBadRequest, "since must be a non-negative integer")
			return
		}
		since = v
	}

	limit := messages.MaxPageSize
	if s := q.Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 || v > messages.MaxPageSize {
			h.Error(w, http.StatusBadRequest, "limit must be between 1 and 200")
			return
		}
		limit = v
	}

	conv, err := h.dir.Get(r.Context(), claims.RoomID, convID)
	if err != nil {
		h.Fail(w, r, err)
		return
	}
	if err := conversations.Authorize(conv, claims.Faction); err != nil {
		h.Fail(w, r, err)
		return
	}

	list, err := h.log.ListSince(r.Context(), conv.ID, since, limit)
	if err != nil {
		h.Fail(w, r, err)
		return
	}

	h.JSON(w, http.StatusOK, list)
}

// SendMessage handles POST /api/messages.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetClaimsFromContext(r.Context())
	if !ok {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req SendMessageRequest
	if err := decode(r, &req); err != nil {
		h.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ConversationID == "" {
		h.Error(w, http.StatusBadRequest, "conversation_id is required")
		return
	}
	if req.Content == nil {
		h.Error(w, http.StatusBadRequest, "content is required")
		return
	}

	conv, err := h.dir.Get(r.Context(), claims.RoomID, req.ConversationID)
	if err != nil {
		h.Fail(w, r, err)
		return
	}

	msg, err := h.log.Append(r.Context(), conv, claims.Faction, *req.Content)
	if err != nil {
		h.Fail(w, r, err)
		return
	}

	metrics.MessagesPosted.WithLabelValues(strconv.Itoa(conv.Participants.Len())).Inc()
	h.JSON(w, http.StatusOK, SendMessageResponse{MessageID: msg.ID, Timestamp: msg.Timestamp})
}
