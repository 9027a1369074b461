package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/piriwata/Council1901/internal/models"
)

var (
	ErrMalformedToken   = fmt.Errorf("%w: malformed token", models.ErrUnauthorized)
	ErrInvalidSignature = fmt.Errorf("%w: invalid signature", models.ErrUnauthorized)
	ErrEmptySecret      = errors.New("token secret must not be empty")
)

// Claims is the identity carried by a verified token.
type Claims struct {
	RoomID  string
	Faction models.Faction
}

// TokenService issues and verifies bearer tokens of the form
// room_id|faction|hex(HMAC-SHA256(secret, room_id:faction)).
type TokenService struct {
	secret []byte
}

// NewTokenService creates a service signing with a copy of secret.
func NewTokenService(secret []byte) (*TokenService, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	return &TokenService{secret: append([]byte(nil), secret...)}, nil
}

// Issue returns a token binding roomID and faction.
func (s *TokenService) Issue(roomID string, faction models.Faction) (string, error) {
	if err := models.ValidateRoomID(roomID); err != nil {
		return "", err
	}
	if !faction.Valid() {
		return "", fmt.Errorf("%w: unknown faction %q", models.ErrInvalidInput, faction)
	}
	return roomID + "|" + string(faction) + "|" + hex.EncodeToString(s.sign(roomID, faction)), nil
}

// Verify checks a token and returns its claims.
//
// The token is split from the right: room ids are caller supplied and may
// contain '|', factions and signatures never do.
func (s *TokenService) Verify(token string) (Claims, error) {
	last := strings.LastIndexByte(token, '|')
	if last < 0 {
		return Claims{}, ErrMalformedToken
	}
	sigHex, rest := token[last+1:], token[:last]

	mid := strings.LastIndexByte(rest, '|')
	if mid < 0 {
		return Claims{}, ErrMalformedToken
	}
	faction, roomID := models.Faction(rest[mid+1:]), rest[:mid]

	if roomID == "" || !faction.Valid() {
		return Claims{}, ErrMalformedToken
	}

	if len(sigHex) != hex.EncodedLen(sha256.Size) {
		return Claims{}, ErrMalformedToken
	}
	// Compared as lowercase hex text so that a case change is a mismatch.
	want := hex.EncodeToString(s.sign(roomID, faction))
	if !hmac.Equal([]byte(sigHex), []byte(want)) {
		return Claims{}, ErrInvalidSignature
	}

	return Claims{RoomID: roomID, Faction: faction}, nil
}

func (s *TokenService) sign(roomID string, faction models.Faction) []byte {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(roomID + ":" + string(faction)))
	return mac.Sum(nil)
}
