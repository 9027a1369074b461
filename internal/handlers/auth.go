package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/piriwata/Council1901/internal/metrics"
	"github.com/piriwata/Council1901/internal/models"
	"github.com/piriwata/Council1901/internal/store"
)

// AuthRequest represents the token request body.
type AuthRequest struct {
	RoomID  string `json:"room_id"`
	Faction string `json:"faction"`
}

// AuthResponse represents the token response.
type AuthResponse struct {
	AccessToken string `json:"access_token"`
}

// IssueToken handles POST /api/auth.
func (h *Handler) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req AuthRequest
	if err := decode(r, &req); err != nil {
		h.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	faction, err := models.ParseFaction(req.Faction)
	if err != nil {
		h.Fail(w, r, err)
		return
	}

	token, err := h.tokens.Issue(req.RoomID, faction)
	if err != nil {
		h.Fail(w, r, err)
		return
	}

	if h.claimSeats {
		if err := h.claimSeat(r, req.RoomID, faction); err != nil {
			h.Fail(w, r, err)
			return
		}
	}

	metrics.TokensIssued.Inc()
	h.JSON(w, http.StatusOK, AuthResponse{AccessToken: token})
}

// claimSeat marks the seat taken, failing if it already was. Two
// simultaneous first claims can both succeed; the store has no
// compare-and-swap.
func (h *Handler) claimSeat(r *http.Request, roomID string, faction models.Faction) error {
	key := store.SeatKey(roomID, string(faction))
	_, err := h.kv.Get(r.Context(), key)
	switch {
	case err == nil:
		return fmt.Errorf("%w: seat already claimed", models.ErrConflict)
	case !errors.Is(err, store.ErrKeyNotFound):
		return err
	}
	return h.kv.Put(r.Context(), key, []byte("true"))
}
