package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/piriwata/Council1901/internal/crypto"
)

type contextKey string

const ClaimsContextKey contextKey = "claims"

// AuthMiddleware verifies bearer tokens for authenticated endpoints.
type AuthMiddleware struct {
	tokens *crypto.TokenService
	logger zerolog.Logger
}

// NewAuthMiddleware creates a new auth middleware.
func NewAuthMiddleware(tokens *crypto.TokenService, logger zerolog.Logger) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, logger: logger}
}

// RequireToken verifies the Authorization header and puts the token's
// room and faction in the request context. A room_id query parameter
// must name the token's room.
func (m *AuthMiddleware) RequireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			jsonError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		claims, err := m.tokens.Verify(strings.TrimSpace(token))
		if err != nil {
			m.logger.Warn().
				Str("type", "security").
				Str("event", "token_rejected").
				Str("ip", RealIP(r)).
				Str("endpoint", r.URL.Path).
				Msg("invalid bearer token")
			jsonError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		if roomID, ok := r.URL.Query()["room_id"]; ok && (len(roomID) != 1 || roomID[0] != claims.RoomID) {
			jsonError(w, http.StatusForbidden, "room_id does not match token")
			return
		}

		zerolog.Ctx(r.Context()).UpdateContext(func(c zerolog.Context) zerolog.Context {
			return c.Str("room_id", claims.RoomID).Str("faction", string(claims.Faction))
		})

		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

func jsonError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// GetClaimsFromContext retrieves the verified token claims from the request context.
func GetClaimsFromContext(ctx context.Context) (crypto.Claims, bool) {
	claims, ok := ctx.Value(ClaimsContextKey).(crypto.Claims)
	return claims, ok
}

// WithClaims returns ctx carrying claims, as RequireToken would.
func WithClaims(ctx context.Context, claims crypto.Claims) context.Context {
	return context.WithValue(ctx, ClaimsContextKey, claims)
}
