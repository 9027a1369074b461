package store

import "fmt"

// Key layout shared by every backend. Room ids never contain ':' so a
// room prefix cannot match keys of another room.

// ConversationMetaKey holds the JSON ConversationMeta of a conversation.
func ConversationMetaKey(conversationID string) string {
	return fmt.Sprintf("conv:%s:meta", conversationID)
}

// RoomConversationsKey holds the legacy JSON array of a room's conversation ids.
func RoomConversationsKey(roomID string) string {
	return fmt.Sprintf("room:%s:conversations", roomID)
}

// RoomMembershipPrefix prefixes the one-key-per-conversation room index.
func RoomMembershipPrefix(roomID string) string {
	return fmt.Sprintf("room:%s:conv:", roomID)
}

// RoomMembershipKey records that conversationID belongs to roomID.
func RoomMembershipKey(roomID, conversationID string) string {
	return RoomMembershipPrefix(roomID) + conversationID
}

// SeatKey marks a faction seat of a room as claimed.
func SeatKey(roomID, faction string) string {
	return fmt.Sprintf("room:%s:seat:%s", roomID, faction)
}

// MessagePrefix prefixes every message key of a conversation.
func MessagePrefix(conversationID string) string {
	return fmt.Sprintf("conv:%s:msg:", conversationID)
}

// MessageKey orders messages by zero-padded timestamp, then by id.
func MessageKey(conversationID string, timestamp int64, messageID string) string {
	return fmt.Sprintf("%s%020d:%s", MessagePrefix(conversationID), timestamp, messageID)
}
