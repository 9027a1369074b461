package models

import (
	"fmt"
	"strings"
	"unicode"
)

// MaxRoomIDLength bounds caller-supplied room identifiers, in bytes.
const MaxRoomIDLength = 64

// Conversation is a private channel between two or three factions of a room.
type Conversation struct {
	ID           string     `json:"conversation_id"` // 16 hex chars
	RoomID       string     `json:"-"`
	Participants FactionSet `json:"participants"`
}

// ConversationMeta is the stored form of a conversation under conv:{id}:meta.
type ConversationMeta struct {
	RoomID       string     `json:"room_id"`
	Participants FactionSet `json:"participants"`
}

// ValidateRoomID checks a caller-supplied room identifier.
//
// ':' is refused because conversation ids hash room and factions joined
// by ':'; allowing it would let two rooms derive the same id. '|' is fine,
// tokens are parsed from the right.
func ValidateRoomID(roomID string) error {
	if roomID == "" {
		return fmt.Errorf("%w: room_id is required", ErrInvalidInput)
	}
	if len(roomID) > MaxRoomIDLength {
		return fmt.Errorf("%w: room_id must be at most %d bytes", ErrInvalidInput, MaxRoomIDLength)
	}
	if strings.Contains(roomID, ":") {
		return fmt.Errorf("%w: room_id must not contain ':'", ErrInvalidInput)
	}
	if strings.IndexFunc(roomID, unicode.IsControl) >= 0 {
		return fmt.Errorf("%w: room_id must not contain control characters", ErrInvalidInput)
	}
	return nil
}
