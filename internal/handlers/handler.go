package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/piriwata/Council1901/internal/conversations"
	"github.com/piriwata/Council1901/internal/crypto"
	"github.com/piriwata/Council1901/internal/messages"
	"github.com/piriwata/Council1901/internal/models"
	"github.com/piriwata/Council1901/internal/store"
)

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	kv         store.KV
	tokens     *crypto.TokenService
	dir        *conversations.Directory
	log        *messages.Log
	claimSeats bool
}

// Options configures a Handler.
type Options struct {
	// ClaimSeats refuses a second token for the same room and faction.
	ClaimSeats bool
}

// NewHandler creates a new Handler over kv.
func NewHandler(kv store.KV, tokens *crypto.TokenService, log *messages.Log, opts Options) *Handler {
	return &Handler{
		kv:         kv,
		tokens:     tokens,
		dir:        conversations.NewDirectory(kv),
		log:        log,
		claimSeats: opts.ClaimSeats,
	}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// Fail maps a component error to its status code. Storage failures are
// logged and answered with a generic message so that keys and driver
// details stay out of responses.
func (h *Handler) Fail(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, models.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, models.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrConflict):
		status = http.StatusConflict
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		h.Error(w, http.StatusInternalServerError, "storage unavailable")
		return
	}
	h.Error(w, status, publicMessage(err))
}

// publicMessage strips the category prefix, "invalid input: content is
// required" becomes "content is required".
func publicMessage(err error) string {
	msg := err.Error()
	if _, detail, ok := strings.Cut(msg, ": "); ok {
		return detail
	}
	return msg
}

// decode reads a JSON body into v.
func decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.New("invalid JSON body")
	}
	return nil
}
