// Package council provides a client for the Council1901 negotiation API.
package council

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Client is a Council1901 API client. A client holds at most one access
// token, so it acts as one faction in one room.
type Client struct {
	BaseURL    string
	ConfigDir  string
	Token      string
	HTTPClient *http.Client
}

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("council error %d: %s", e.Status, e.Message)
}

// ErrNoToken is returned by authenticated calls before Auth or LoadConfig.
var ErrNoToken = errors.New("no access token, run auth first")

// NewClient creates a new client.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	configDir := os.Getenv("COUNCIL_CONFIG")
	if configDir == "" {
		home, _ := os.UserHomeDir()
		configDir = filepath.Join(home, ".council")
	}

	c := &Client{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		ConfigDir:  configDir,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}

	_ = c.LoadConfig()
	return c
}

// LoadConfig loads the saved access token from disk.
func (c *Client) LoadConfig() error {
	data, err := os.ReadFile(filepath.Join(c.ConfigDir, "token"))
	if err != nil {
		return err
	}
	c.Token = strings.TrimSpace(string(data))
	return nil
}

// SaveConfig saves the access token to disk.
func (c *Client) SaveConfig() error {
	if err := os.MkdirAll(c.ConfigDir, 0700); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(c.ConfigDir, "token"), []byte(c.Token), 0600)
}

// doRequest performs an HTTP request and decodes a JSON response into out.
func (c *Client) doRequest(method, path string, in, out interface{}, authed bool) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		if c.Token == "" {
			return ErrNoToken
		}
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		json.Unmarshal(respBody, &errResp)
		return &APIError{Status: resp.StatusCode, Message: errResp.Error}
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(respBody, out)
}

// AuthRequest is the request body for token issuance.
type AuthRequest struct {
	RoomID  string `json:"room_id"`
	Faction string `json:"faction"`
}

// AuthResponse is the response from token issuance.
type AuthResponse struct {
	AccessToken string `json:"access_token"`
}

// Auth obtains a token for faction in roomID and keeps it on the client.
func (c *Client) Auth(roomID, faction string) (*AuthResponse, error) {
	var resp AuthResponse
	if err := c.doRequest("POST", "/api/auth", AuthRequest{RoomID: roomID, Faction: faction}, &resp, false); err != nil {
		return nil, err
	}
	c.Token = resp.AccessToken
	return &resp, nil
}

// RoomID returns the room of the held token. Tokens are
// room|faction|signature, and room ids may contain '|'.
func (c *Client) RoomID() string {
	rest := c.Token
	for i := 0; i < 2; i++ {
		j := strings.LastIndexByte(rest, '|')
		if j < 0 {
			return ""
		}
		rest = rest[:j]
	}
	return rest
}

// Conversation is a conversation the caller takes part in.
type Conversation struct {
	ID           string   `json:"conversation_id"`
	Participants []string `json:"participants"`
}

// ListConversations lists the caller's conversations in their room.
func (c *Client) ListConversations() ([]Conversation, error) {
	var resp []Conversation
	path := "/api/conversations?room_id=" + url.QueryEscape(c.RoomID())
	if err := c.doRequest("GET", path, nil, &resp, true); err != nil {
		return nil, err
	}
	return resp, nil
}

// CreateConversationRequest is the request body for creating a conversation.
type CreateConversationRequest struct {
	Participants []string `json:"participants"`
}

// CreateConversationResponse is the response from creating a conversation.
type CreateConversationResponse struct {
	ConversationID string `json:"conversation_id"`
}

// CreateConversation opens (or finds) the conversation with participants.
func (c *Client) CreateConversation(participants ...string) (*CreateConversationResponse, error) {
	var resp CreateConversationResponse
	if err := c.doRequest("POST", "/api/conversations", CreateConversationRequest{Participants: participants}, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Message represents a conversation message.
type Message struct {
	ID             string `json:"message_id"`
	RoomID         string `json:"room_id"`
	ConversationID string `json:"conversation_id"`
	Sender         string `json:"sender_faction"`
	Content        string `json:"content"`
	Timestamp      int64  `json:"timestamp"`
}

// GetMessages retrieves messages newer than since. limit <= 0 uses the
// server default.
func (c *Client) GetMessages(conversationID string, since int64, limit int) ([]Message, error) {
	q := url.Values{}
	q.Set("conversation_id", conversationID)
	if since > 0 {
		q.Set("since", strconv.FormatInt(since, 10))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var resp []Message
	if err := c.doRequest("GET", "/api/messages?"+q.Encode(), nil, &resp, true); err != nil {
		return nil, err
	}
	return resp, nil
}

// PostMessageRequest is the request body for posting a message.
type PostMessageRequest struct {
	ConversationID string `json:"conversation_id"`
	Content        string `json:"content"`
}

// PostMessageResponse is the response from posting a message.
type PostMessageResponse struct {
	MessageID string `json:"message_id"`
	Timestamp int64  `json:"timestamp"`
}

// PostMessage posts a message to a conversation.
func (c *Client) PostMessage(conversationID, content string) (*PostMessageResponse, error) {
	var resp PostMessageResponse
	if err := c.doRequest("POST", "/api/messages", PostMessageRequest{ConversationID: conversationID, Content: content}, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}

// HealthResponse is the response from the health endpoint.
type HealthResponse struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version"`
	Checks    map[string]interface{} `json:"checks"`
	Timestamp string                 `json:"timestamp"`
}

// Health checks server health.
func (c *Client) Health() (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.doRequest("GET", "/api/health", nil, &resp, false); err != nil {
		return nil, err
	}
	return &resp, nil
}
