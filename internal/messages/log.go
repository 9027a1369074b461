// Package messages implements the append-only conversation log.
package messages

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/piriwata/Council1901/internal/conversations"
	"github.com/piriwata/Council1901/internal/crypto"
	"github.com/piriwata/Council1901/internal/models"
	"github.com/piriwata/Council1901/internal/store"
)

// MaxPageSize caps the messages returned by one ListSince call.
const MaxPageSize = 200

// Log appends and lists messages. Every message lives under its own key
// conv:{id}:msg:{ts20}:{message_id}, so appends never contend and a
// prefix scan returns messages by timestamp, then by message id.
type Log struct {
	kv    store.KV
	clock Clock
	newID crypto.IDGenerator
}

// Option configures a Log.
type Option func(*Log)

// WithClock replaces the monotonic wall clock.
func WithClock(c Clock) Option {
	return func(l *Log) { l.clock = c }
}

// WithIDGenerator replaces the ULID generator.
func WithIDGenerator(g crypto.IDGenerator) Option {
	return func(l *Log) { l.newID = g }
}

// NewLog creates a log backed by kv.
func NewLog(kv store.KV, opts ...Option) *Log {
	l := &Log{
		kv:    kv,
		clock: NewMonotonicClock(),
		newID: crypto.NewULID,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Append stores a message from sender in conv.
func (l *Log) Append(ctx context.Context, conv models.Conversation, sender models.Faction, content string) (models.Message, error) {
	if err := conversations.Authorize(conv, sender); err != nil {
		return models.Message{}, err
	}
	if content == "" {
		return models.Message{}, fmt.Errorf("%w: content is required", models.ErrInvalidInput)
	}
	if len(content) > models.MaxContentLength {
		return models.Message{}, fmt.Errorf("%w: content exceeds %d bytes", models.ErrInvalidInput, models.MaxContentLength)
	}

	msg := models.Message{
		ID:             l.newID(),
		RoomID:         conv.RoomID,
		ConversationID: conv.ID,
		Sender:         sender,
		Content:        content,
		Timestamp:      l.clock.NowMilli(),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return models.Message{}, err
	}
	if err := l.kv.Put(ctx, store.MessageKey(conv.ID, msg.Timestamp, msg.ID), data); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// ListSince returns up to limit messages of a conversation with a
// timestamp strictly after since, in key order. since <= 0 lists from the
// start and limit <= 0 means MaxPageSize.
//
// A full page never ends part way through a millisecond unless the whole
// page shares one, so paging with since set to the last timestamp seen
// does not skip messages.
func (l *Log) ListSince(ctx context.Context, conversationID string, since int64, limit int) ([]models.Message, error) {
	if limit <= 0 || limit > MaxPageSize {
		limit = MaxPageSize
	}

	prefix := store.MessagePrefix(conversationID)
	startAfter := ""
	if since > 0 {
		// ';' sorts right after ':', so this skips every key at since.
		startAfter = fmt.Sprintf("%s%020d;", prefix, since)
	}

	keys, err := l.kv.List(ctx, prefix, startAfter, limit+1)
	if err != nil {
		return nil, err
	}

	type entry struct {
		key string
		ts  int64
	}
	entries := make([]entry, 0, len(keys))
	for _, key := range keys {
		ts, ok := parseTimestamp(strings.TrimPrefix(key, prefix))
		if !ok {
			continue
		}
		entries = append(entries, entry{key: key, ts: ts})
	}

	if len(entries) > limit {
		next := entries[limit].ts
		entries = entries[:limit]
		cut := len(entries)
		for cut > 0 && entries[cut-1].ts == next {
			cut--
		}
		if cut > 0 {
			entries = entries[:cut]
		}
	}

	out := make([]models.Message, 0, len(entries))
	for _, e := range entries {
		data, err := l.kv.Get(ctx, e.key)
		if errors.Is(err, store.ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		var msg models.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

// parseTimestamp reads the 20-digit timestamp at the start of a key suffix.
func parseTimestamp(suffix string) (int64, bool) {
	if len(suffix) < 21 || suffix[20] != ':' {
		return 0, false
	}
	ts, err := strconv.ParseInt(suffix[:20], 10, 64)
	if err != nil || ts < 0 {
		return 0, false
	}
	return ts, true
}
