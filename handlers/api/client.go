// handlers/api/client.go
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"replydeck/config"
)

// ErrUnauthorized marks a provider rejection of the session's credentials.
// Callers check it with errors.Is so a stale token surfaces as "sign in
// again" rather than a generic failure.
var ErrUnauthorized = errors.New("mailbox credentials rejected")

// Label ids used when flagging an answered message.
const (
	labelUnread  = "UNREAD"
	labelStarred = "STARRED"
)

// Client performs authenticated calls against the mailbox provider's REST
// API on behalf of one session. Construct a fresh one per request with a
// live access token.
type Client struct {
	token      string
	baseURL    string
	userID     string
	maxUnread  int
	httpClient *http.Client
}

// NewClient creates a provider client bound to the given access token.
func NewClient(token string, cfg *config.Config) *Client {
	userID := cfg.Provider.UserID
	if userID == "" {
		userID = "me"
	}
	maxUnread := cfg.Provider.MaxUnread
	if maxUnread <= 0 {
		maxUnread = 15
	}
	return &Client{
		token:      token,
		baseURL:    strings.TrimSuffix(cfg.Provider.APIBase, "/"),
		userID:     userID,
		maxUnread:  maxUnread,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// SetBaseURL sets a custom API base URL (for testing).
func (c *Client) SetBaseURL(url string) {
	c.baseURL = strings.TrimSuffix(url, "/")
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// MessageRef is one entry of the provider's unread listing.
type MessageRef struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
}

// MessageMetadata is the enrichment payload for a single message.
type MessageMetadata struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
	Snippet  string `json:"snippet"`
	Payload  struct {
		Headers []MessageHeader `json:"headers"`
	} `json:"payload"`
}

// MessageHeader is one protocol header on a message payload.
type MessageHeader struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Header returns the value of the named header, or "" when absent.
func (m *MessageMetadata) Header(name string) string {
	for _, h := range m.Payload.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// ListUnread returns refs for the unread primary-inbox messages, newest
// first as the provider orders them, capped at the configured maximum.
func (c *Client) ListUnread(ctx context.Context) ([]MessageRef, error) {
	query := url.Values{
		"q":          {"is:unread category:primary"},
		"maxResults": {strconv.Itoa(c.maxUnread)},
	}
	path := fmt.Sprintf("/users/%s/messages?%s", c.userID, query.Encode())

	var result struct {
		Messages []MessageRef `json:"messages"`
	}
	if err := c.get(ctx, path, &result); err != nil {
		return nil, err
	}
	return result.Messages, nil
}

// GetMetadata fetches the headers and snippet for one message.
func (c *Client) GetMetadata(ctx context.Context, id string) (*MessageMetadata, error) {
	path := fmt.Sprintf("/users/%s/messages/%s?format=metadata&metadataHeaders=Subject&metadataHeaders=From&metadataHeaders=Date&metadataHeaders=Message-ID", c.userID, id)

	var meta MessageMetadata
	if err := c.get(ctx, path, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// SendRaw submits an encoded message envelope, threading it into the
// given conversation when threadID is non-empty. Returns the id the
// provider assigned to the sent message.
func (c *Client) SendRaw(ctx context.Context, raw, threadID string) (string, error) {
	payload := map[string]string{"raw": raw}
	if threadID != "" {
		payload["threadId"] = threadID
	}

	var result struct {
		ID string `json:"id"`
	}
	path := fmt.Sprintf("/users/%s/messages/send", c.userID)
	if err := c.post(ctx, path, payload, &result); err != nil {
		return "", err
	}
	return result.ID, nil
}

// Modify adds and removes labels on a message.
func (c *Client) Modify(ctx context.Context, id string, add, remove []string) error {
	payload := map[string][]string{}
	if len(add) > 0 {
		payload["addLabelIds"] = add
	}
	if len(remove) > 0 {
		payload["removeLabelIds"] = remove
	}

	path := fmt.Sprintf("/users/%s/messages/%s/modify", c.userID, id)
	return c.post(ctx, path, payload, nil)
}

func (c *Client) get(ctx context.Context, path string, result interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, result)
}

func (c *Client) post(ctx context.Context, path string, payload, result interface{}) error {
	return c.do(ctx, http.MethodPost, path, payload, result)
}

func (c *Client) do(ctx context.Context, method, path string, payload, result interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("mailbox request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%s %s: %w", method, path, ErrUnauthorized)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("mailbox API: %s", apiErrorMessage(resp))
	}

	if result == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// apiErrorMessage extracts the provider's error message from an error
// body, falling back to the HTTP status line.
func apiErrorMessage(resp *http.Response) string {
	data, _ := io.ReadAll(resp.Body)

	var apiErr struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Error.Message != "" {
		return apiErr.Error.Message
	}
	return resp.Status
}
