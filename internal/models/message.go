package models

// MaxContentLength is the largest accepted message body, in bytes.
const MaxContentLength = 4096

// Message is a single faction-authored entry in a conversation log.
type Message struct {
	ID             string  `json:"message_id"` // ULID or UUIDv7
	RoomID         string  `json:"room_id"`
	ConversationID string  `json:"conversation_id"`
	Sender         Faction `json:"sender_faction"`
	Content        string  `json:"content"`
	Timestamp      int64   `json:"timestamp"` // Unix ms, server assigned
}
