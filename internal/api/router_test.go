package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/piriwata/Council1901/internal/crypto"
	"github.com/piriwata/Council1901/internal/messages"
	"github.com/piriwata/Council1901/internal/models"
	"github.com/piriwata/Council1901/internal/store"
)

const testSecret = "router-test-secret"

// brokenKV fails every operation, like an unreachable backend.
type brokenKV struct{}

var errBroken = errors.New("dial tcp 10.0.0.1:6379: connection refused")

func (brokenKV) Close() error {
	return nil
}

func (brokenKV) Ping(ctx context.Context) error {
	return errBroken
}

func (brokenKV) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, errors.Join(models.ErrStorageUnavailable, errBroken)
}

func (brokenKV) Put(ctx context.Context, key string, value []byte) error {
	return errors.Join(models.ErrStorageUnavailable, errBroken)
}

func (brokenKV) List(ctx context.Context, prefix, startAfter string, limit int) ([]string, error) {
	return nil, errors.Join(models.ErrStorageUnavailable, errBroken)
}

type testServer struct {
	t      *testing.T
	router http.Handler
	tokens *crypto.TokenService
}

func newTestServer(t *testing.T, kv store.KV, claimSeats bool) *testServer {
	t.Helper()
	tokens, err := crypto.NewTokenService([]byte(testSecret))
	if err != nil {
		t.Fatal(err)
	}
	router := NewRouter(zerolog.Nop(), Deps{
		KV:         kv,
		Tokens:     tokens,
		Log:        messages.NewLog(kv),
		ClaimSeats: claimSeats,
	})
	return &testServer{t: t, router: router, tokens: tokens}
}

func (s *testServer) do(method, target, token, body string) *httptest.ResponseRecorder {
	s.t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) token(room string, faction models.Faction) string {
	s.t.Helper()
	token, err := s.tokens.Issue(room, faction)
	if err != nil {
		s.t.Fatal(err)
	}
	return token
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

func jsonString(v string) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func TestScenario(t *testing.T) {
	kv := store.NewMemoryStore()
	s := newTestServer(t, kv, false)

	rec := s.do("POST", "/api/auth", "", `{"room_id":"room-x","faction":"england"}`)
	expectStatus(t, rec, http.StatusOK)
	var auth struct {
		AccessToken string `json:"access_token"`
	}
	decodeBody(t, rec, &auth)
	england := auth.AccessToken
	if england != s.token("room-x", models.England) {
		t.Fatalf("unexpected token %q", england)
	}

	var created struct {
		ConversationID string `json:"conversation_id"`
	}
	rec = s.do("POST", "/api/conversations", england, `{"participants":["france"]}`)
	expectStatus(t, rec, http.StatusOK)
	decodeBody(t, rec, &created)
	convID := created.ConversationID

	rec = s.do("POST", "/api/conversations", england, `{"participants":["france"]}`)
	expectStatus(t, rec, http.StatusOK)
	decodeBody(t, rec, &created)
	if created.ConversationID != convID {
		t.Fatalf("expected idempotent id %q, got %q", convID, created.ConversationID)
	}

	var index []string
	raw, err := kv.Get(context.Background(), store.RoomConversationsKey("room-x"))
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(raw, &index); err != nil || len(index) != 1 {
		t.Fatalf("expected index of one, got %s", raw)
	}

	var sent struct {
		MessageID string `json:"message_id"`
		Timestamp int64  `json:"timestamp"`
	}
	rec = s.do("POST", "/api/messages", england, `{"conversation_id":"`+convID+`","content":"hello"}`)
	expectStatus(t, rec, http.StatusOK)
	decodeBody(t, rec, &sent)
	m1 := sent

	france := s.token("room-x", models.France)
	rec = s.do("POST", "/api/messages", france, `{"conversation_id":"`+convID+`","content":"bonjour"}`)
	expectStatus(t, rec, http.StatusOK)
	decodeBody(t, rec, &sent)
	m2 := sent
	if m2.Timestamp < m1.Timestamp {
		t.Fatalf("expected m2.timestamp >= m1.timestamp, got %d < %d", m2.Timestamp, m1.Timestamp)
	}

	rec = s.do("GET", "/api/messages?conversation_id="+convID+"&since=0", france, "")
	expectStatus(t, rec, http.StatusOK)
	var list []models.Message
	decodeBody(t, rec, &list)
	if len(list) != 2 || list[0].ID != m1.MessageID || list[1].ID != m2.MessageID {
		t.Fatalf("expected [m1 m2], got %+v", list)
	}
	if list[0].Sender != models.England || list[0].Content != "hello" || list[0].RoomID != "room-x" || list[0].ConversationID != convID {
		t.Fatalf("unexpected first message %+v", list[0])
	}

	germany := s.token("room-x", models.Germany)
	rec = s.do("POST", "/api/messages", germany, `{"conversation_id":"`+convID+`","content":"guten tag"}`)
	expectStatus(t, rec, http.StatusForbidden)

	rec = s.do("GET", "/api/messages?conversation_id="+convID, germany, "")
	expectStatus(t, rec, http.StatusForbidden)

	rec = s.do("GET", "/api/conversations?room_id=room-x", france, "")
	expectStatus(t, rec, http.StatusOK)
	var convs []struct {
		ConversationID string   `json:"conversation_id"`
		Participants   []string `json:"participants"`
	}
	decodeBody(t, rec, &convs)
	if len(convs) != 1 || convs[0].ConversationID != convID || strings.Join(convs[0].Participants, ",") != "england,france" {
		t.Fatalf("unexpected conversations %+v", convs)
	}

	rec = s.do("GET", "/api/conversations", germany, "")
	expectStatus(t, rec, http.StatusOK)
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("expected empty array, got %s", rec.Body.String())
	}
}

func TestIssueToken(t *testing.T) {
	s := newTestServer(t, store.NewMemoryStore(), false)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"valid", `{"room_id":"room-x","faction":"turkey"}`, http.StatusOK},
		{"pipe in room", `{"room_id":"a|b","faction":"italy"}`, http.StatusOK},
		{"unknown faction", `{"room_id":"room-x","faction":"prussia"}`, http.StatusBadRequest},
		{"missing faction", `{"room_id":"room-x"}`, http.StatusBadRequest},
		{"missing room", `{"faction":"italy"}`, http.StatusBadRequest},
		{"colon in room", `{"room_id":"a:b","faction":"italy"}`, http.StatusBadRequest},
		{"bad json", `{"room_id":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do("POST", "/api/auth", "", tt.body)
			expectStatus(t, rec, tt.status)
		})
	}

	rec := s.do("POST", "/api/auth", "", `{"room_id":"a|b","faction":"italy"}`)
	var auth struct {
		AccessToken string `json:"access_token"`
	}
	decodeBody(t, rec, &auth)
	rec = s.do("GET", "/api/conversations?room_id="+url.QueryEscape("a|b"), auth.AccessToken, "")
	expectStatus(t, rec, http.StatusOK)
}

func TestSeatClaims(t *testing.T) {
	s := newTestServer(t, store.NewMemoryStore(), true)

	body := `{"room_id":"room-x","faction":"russia"}`
	expectStatus(t, s.do("POST", "/api/auth", "", body), http.StatusOK)
	expectStatus(t, s.do("POST", "/api/auth", "", body), http.StatusConflict)
	expectStatus(t, s.do("POST", "/api/auth", "", `{"room_id":"room-y","faction":"russia"}`), http.StatusOK)
}

func TestAuthentication(t *testing.T) {
	s := newTestServer(t, store.NewMemoryStore(), false)
	token := s.token("room-x", models.England)
	tampered := token[:len(token)-1] + string(token[len(token)-1]^1)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"not bearer", "Basic " + token, http.StatusUnauthorized},
		{"tampered", "Bearer " + tampered, http.StatusUnauthorized},
		{"forged faction", "Bearer " + strings.Replace(token, "|england|", "|france|", 1), http.StatusUnauthorized},
		{"valid", "Bearer " + token, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/conversations", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			s.router.ServeHTTP(rec, req)
			expectStatus(t, rec, tt.status)
		})
	}
}

func TestRoomMismatch(t *testing.T) {
	s := newTestServer(t, store.NewMemoryStore(), false)
	token := s.token("room-x", models.England)

	expectStatus(t, s.do("GET", "/api/conversations?room_id=room-y", token, ""), http.StatusForbidden)
	expectStatus(t, s.do("GET", "/api/conversations?room_id=room-x", token, ""), http.StatusOK)
	expectStatus(t, s.do("POST", "/api/conversations", token, `{"participants":["france"],"room_id":"room-y"}`), http.StatusForbidden)

	// A conversation of another room is not reachable with this token.
	other := s.token("room-y", models.England)
	rec := s.do("POST", "/api/conversations", other, `{"participants":["france"]}`)
	expectStatus(t, rec, http.StatusOK)
	var created struct {
		ConversationID string `json:"conversation_id"`
	}
	decodeBody(t, rec, &created)
	expectStatus(t, s.do("GET", "/api/messages?conversation_id="+created.ConversationID, token, ""), http.StatusForbidden)
}

func TestCreateConversationValidation(t *testing.T) {
	s := newTestServer(t, store.NewMemoryStore(), false)
	token := s.token("room-x", models.England)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"missing participants", `{}`, http.StatusBadRequest},
		{"empty participants", `{"participants":[]}`, http.StatusBadRequest},
		{"only self", `{"participants":["england"]}`, http.StatusBadRequest},
		{"three others", `{"participants":["france","germany","italy"]}`, http.StatusBadRequest},
		{"duplicate", `{"participants":["france","france"]}`, http.StatusBadRequest},
		{"self twice", `{"participants":["england","england","france"]}`, http.StatusBadRequest},
		{"unknown faction", `{"participants":["prussia"]}`, http.StatusBadRequest},
		{"wrong type", `{"participants":"france"}`, http.StatusBadRequest},
		{"two others", `{"participants":["france","germany"]}`, http.StatusOK},
		{"two others with self", `{"participants":["germany","england","france"]}`, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectStatus(t, s.do("POST", "/api/conversations", token, tt.body), tt.status)
		})
	}
}

func TestCreateConversationSelfListedIsSameID(t *testing.T) {
	s := newTestServer(t, store.NewMemoryStore(), false)

	var a, b struct {
		ConversationID string `json:"conversation_id"`
	}
	decodeBody(t, s.do("POST", "/api/conversations", s.token("room-x", models.England), `{"participants":["france","austria"]}`), &a)
	decodeBody(t, s.do("POST", "/api/conversations", s.token("room-x", models.Austria), `{"participants":["england","austria","france"]}`), &b)
	if a.ConversationID == "" || a.ConversationID != b.ConversationID {
		t.Fatalf("expected same id, got %q and %q", a.ConversationID, b.ConversationID)
	}
}

func TestMessageValidation(t *testing.T) {
	s := newTestServer(t, store.NewMemoryStore(), false)
	token := s.token("room-x", models.England)

	var created struct {
		ConversationID string `json:"conversation_id"`
	}
	decodeBody(t, s.do("POST", "/api/conversations", token, `{"participants":["france"]}`), &created)
	conv := created.ConversationID

	send := func(content string) *httptest.ResponseRecorder {
		return s.do("POST", "/api/messages", token, `{"conversation_id":"`+conv+`","content":`+jsonString(content)+`}`)
	}

	expectStatus(t, send(strings.Repeat("a", 4096)), http.StatusOK)
	expectStatus(t, send(strings.Repeat("a", 4097)), http.StatusBadRequest)
	expectStatus(t, send(""), http.StatusBadRequest)
	// Escaped control characters decode back to 4096 bytes.
	expectStatus(t, send(strings.Repeat("\x01", 4096)), http.StatusOK)

	tests := []struct {
		name   string
		method string
		target string
		body   string
		status int
	}{
		{"missing content", "POST", "/api/messages", `{"conversation_id":"` + conv + `"}`, http.StatusBadRequest},
		{"missing conversation", "POST", "/api/messages", `{"content":"hi"}`, http.StatusBadRequest},
		{"unknown conversation", "POST", "/api/messages", `{"conversation_id":"0000000000000000","content":"hi"}`, http.StatusNotFound},
		{"malformed conversation", "POST", "/api/messages", `{"conversation_id":"nothex","content":"hi"}`, http.StatusBadRequest},
		{"list without conversation", "GET", "/api/messages", "", http.StatusBadRequest},
		{"list unknown", "GET", "/api/messages?conversation_id=0000000000000000", "", http.StatusNotFound},
		{"list bad since", "GET", "/api/messages?conversation_id=" + conv + "&since=yesterday", "", http.StatusBadRequest},
		{"list negative since", "GET", "/api/messages?conversation_id=" + conv + "&since=-1", "", http.StatusBadRequest},
		{"list zero limit", "GET", "/api/messages?conversation_id=" + conv + "&limit=0", "", http.StatusBadRequest},
		{"list big limit", "GET", "/api/messages?conversation_id=" + conv + "&limit=201", "", http.StatusBadRequest},
		{"list ok", "GET", "/api/messages?conversation_id=" + conv + "&limit=1", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectStatus(t, s.do(tt.method, tt.target, token, tt.body), tt.status)
		})
	}
}

func TestListMessagesSince(t *testing.T) {
	s := newTestServer(t, store.NewMemoryStore(), false)
	token := s.token("room-x", models.England)

	var created struct {
		ConversationID string `json:"conversation_id"`
	}
	decodeBody(t, s.do("POST", "/api/conversations", token, `{"participants":["france","germany"]}`), &created)

	for _, c := range []string{"one", "two", "three"} {
		expectStatus(t, s.do("POST", "/api/messages", token, `{"conversation_id":"`+created.ConversationID+`","content":"`+c+`"}`), http.StatusOK)
	}

	var all []models.Message
	decodeBody(t, s.do("GET", "/api/messages?conversation_id="+created.ConversationID, token, ""), &all)
	if len(all) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].Timestamp < all[i-1].Timestamp {
			t.Fatalf("expected ascending timestamps, got %+v", all)
		}
	}

	var later []models.Message
	decodeBody(t, s.do("GET", "/api/messages?conversation_id="+created.ConversationID+"&since="+strconv.FormatInt(all[2].Timestamp, 10), token, ""), &later)
	if len(later) != 0 {
		t.Fatalf("expected nothing after the last timestamp, got %+v", later)
	}
}

func TestStorageFailure(t *testing.T) {
	s := newTestServer(t, brokenKV{}, true)
	token := s.token("room-x", models.England)

	for _, rec := range []*httptest.ResponseRecorder{
		s.do("POST", "/api/auth", "", `{"room_id":"room-x","faction":"england"}`),
		s.do("GET", "/api/conversations", token, ""),
		s.do("POST", "/api/conversations", token, `{"participants":["france"]}`),
		s.do("GET", "/api/messages?conversation_id=0123456789abcdef", token, ""),
		s.do("POST", "/api/messages", token, `{"conversation_id":"0123456789abcdef","content":"hi"}`),
	} {
		expectStatus(t, rec, http.StatusInternalServerError)
		body := rec.Body.String()
		if strings.Contains(body, "room:") || strings.Contains(body, "conv:") || strings.Contains(body, "10.0.0.1") || strings.Contains(body, testSecret) {
			t.Fatalf("error body leaks internals: %s", body)
		}
	}
}

func TestHealth(t *testing.T) {
	expectStatus(t, newTestServer(t, store.NewMemoryStore(), false).do("GET", "/api/health", "", ""), http.StatusOK)
	expectStatus(t, newTestServer(t, brokenKV{}, false).do("GET", "/api/health", "", ""), http.StatusServiceUnavailable)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, store.NewMemoryStore(), false)

	req := httptest.NewRequest("OPTIONS", "/api/messages", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "Authorization, Content-Type")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("expected wildcard origin, got %q (status %d)", got, rec.Code)
	}
}

func TestRejectsNonJSONBody(t *testing.T) {
	s := newTestServer(t, store.NewMemoryStore(), false)

	req := httptest.NewRequest("POST", "/api/auth", strings.NewReader(`room_id=x`))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	expectStatus(t, rec, http.StatusUnsupportedMediaType)
}
