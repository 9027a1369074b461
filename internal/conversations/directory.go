// Package conversations derives conversation ids and keeps the per-room
// conversation index.
package conversations

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/piriwata/Council1901/internal/models"
	"github.com/piriwata/Council1901/internal/store"
)

// Directory creates and lists conversations on a KV store.
//
// Room membership is written as one key per conversation, so concurrent
// creates of different conversations cannot lose each other. The legacy
// list key is still maintained for stores shared with older deployments
// and is merged in on read.
type Directory struct {
	kv store.KV
}

// NewDirectory creates a directory backed by kv.
func NewDirectory(kv store.KV) *Directory {
	return &Directory{kv: kv}
}

// ConversationID returns the first 16 hex chars of
// SHA-256(room_id ":" sorted participants joined by ":").
func ConversationID(roomID string, participants models.FactionSet) string {
	sum := sha256.Sum256([]byte(roomID + ":" + strings.Join(participants.Strings(), ":")))
	return hex.EncodeToString(sum[:8])
}

// ValidConversationID reports whether id has the shape ConversationID produces.
func ValidConversationID(id string) bool {
	if len(id) != 16 {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// Create records the conversation between requester and others and
// returns its id. created is false when the conversation already existed;
// repeating a create is then a no-op apart from restoring a membership
// key lost to an earlier partial write.
func (d *Directory) Create(ctx context.Context, roomID string, requester models.Faction, others []models.Faction) (id string, created bool, err error) {
	if err := models.ValidateRoomID(roomID); err != nil {
		return "", false, err
	}
	if !requester.Valid() {
		return "", false, fmt.Errorf("%w: unknown faction %q", models.ErrInvalidInput, requester)
	}
	if len(others) < 1 || len(others) > 2 {
		return "", false, fmt.Errorf("%w: a conversation needs 1 or 2 other participants", models.ErrInvalidInput)
	}
	otherSet, err := models.NewFactionSet(others...)
	if err != nil {
		return "", false, err
	}
	if otherSet.Contains(requester) {
		return "", false, fmt.Errorf("%w: participants must not include the requester", models.ErrInvalidInput)
	}

	participants := otherSet.Add(requester)
	id = ConversationID(roomID, participants)

	meta, err := d.loadMeta(ctx, id)
	switch {
	case err == nil:
		if meta.RoomID != roomID || meta.Participants != participants {
			return "", false, fmt.Errorf("%w: conversation id already in use", models.ErrConflict)
		}
		if err := d.ensureMembership(ctx, roomID, id); err != nil {
			return "", false, err
		}
		return id, false, nil
	case !errors.Is(err, models.ErrNotFound):
		return "", false, err
	}

	data, err := json.Marshal(models.ConversationMeta{RoomID: roomID, Participants: participants})
	if err != nil {
		return "", false, err
	}
	if err := d.kv.Put(ctx, store.ConversationMetaKey(id), data); err != nil {
		return "", false, err
	}
	if err := d.kv.Put(ctx, store.RoomMembershipKey(roomID, id), []byte("true")); err != nil {
		return "", false, err
	}
	if err := d.appendLegacyIndex(ctx, roomID, id); err != nil {
		return "", false, err
	}

	return id, true, nil
}

// Get loads a conversation of roomID.
func (d *Directory) Get(ctx context.Context, roomID, id string) (models.Conversation, error) {
	if !ValidConversationID(id) {
		return models.Conversation{}, fmt.Errorf("%w: malformed conversation_id", models.ErrInvalidInput)
	}
	meta, err := d.loadMeta(ctx, id)
	if err != nil {
		return models.Conversation{}, err
	}
	if meta.RoomID != roomID {
		return models.Conversation{}, fmt.Errorf("%w: conversation belongs to another room", models.ErrForbidden)
	}
	return models.Conversation{ID: id, RoomID: roomID, Participants: meta.Participants}, nil
}

// List returns the conversations of roomID that include faction. Ids from
// the legacy list come first in their creation order, followed by any
// found only through membership keys.
func (d *Directory) List(ctx context.Context, roomID string, faction models.Faction) ([]models.Conversation, error) {
	legacy, err := d.loadLegacyIndex(ctx, roomID)
	if err != nil {
		return nil, err
	}

	prefix := store.RoomMembershipPrefix(roomID)
	keys, err := d.kv.List(ctx, prefix, "", 0)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(legacy)+len(keys))
	seen := make(map[string]bool, cap(ids))
	add := func(id string) {
		if seen[id] || !ValidConversationID(id) {
			return
		}
		seen[id] = true
		ids = append(ids, id)
	}
	for _, id := range legacy {
		add(id)
	}
	for _, key := range keys {
		add(strings.TrimPrefix(key, prefix))
	}

	out := make([]models.Conversation, 0, len(ids))
	for _, id := range ids {
		meta, err := d.loadMeta(ctx, id)
		if errors.Is(err, models.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if meta.RoomID != roomID || !meta.Participants.Contains(faction) {
			continue
		}
		out = append(out, models.Conversation{ID: id, RoomID: roomID, Participants: meta.Participants})
	}
	return out, nil
}

// Authorize checks that faction takes part in conv.
func Authorize(conv models.Conversation, faction models.Faction) error {
	if !conv.Participants.Contains(faction) {
		return fmt.Errorf("%w: not a participant of this conversation", models.ErrForbidden)
	}
	return nil
}

func (d *Directory) loadMeta(ctx context.Context, id string) (models.ConversationMeta, error) {
	var meta models.ConversationMeta
	data, err := d.kv.Get(ctx, store.ConversationMetaKey(id))
	if err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			return meta, fmt.Errorf("%w: conversation not found", models.ErrNotFound)
		}
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("%w: corrupt conversation record: %v", models.ErrStorageUnavailable, err)
	}
	return meta, nil
}

func (d *Directory) ensureMembership(ctx context.Context, roomID, id string) error {
	key := store.RoomMembershipKey(roomID, id)
	_, err := d.kv.Get(ctx, key)
	if errors.Is(err, store.ErrKeyNotFound) {
		return d.kv.Put(ctx, key, []byte("true"))
	}
	return err
}

func (d *Directory) loadLegacyIndex(ctx context.Context, roomID string) ([]string, error) {
	data, err := d.kv.Get(ctx, store.RoomConversationsKey(roomID))
	if err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		// Membership keys cover every conversation, so a damaged list is ignored.
		return nil, nil
	}
	return ids, nil
}

// appendLegacyIndex is a read-modify-write and may lose a concurrent
// update. Readers never rely on it alone.
func (d *Directory) appendLegacyIndex(ctx context.Context, roomID, id string) error {
	ids, err := d.loadLegacyIndex(ctx, roomID)
	if err != nil {
		return err
	}
	for _, existing := range ids {
		if existing == id {
			return nil
		}
	}
	data, err := json.Marshal(append(ids, id))
	if err != nil {
		return err
	}
	return d.kv.Put(ctx, store.RoomConversationsKey(roomID), data)
}
