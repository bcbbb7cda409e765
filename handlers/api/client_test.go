package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"replydeck/config"
)

func newTestClient() *Client {
	cfg := &config.Config{}
	cfg.Provider.APIBase = "https://api.test.com"
	client := NewClient("test-token", cfg)
	client.SetBaseURL("https://api.test.com")
	return client
}

func TestNewClient(t *testing.T) {
	cfg := &config.Config{}
	cfg.Provider.APIBase = "https://mail.example.com/v1/"

	client := NewClient("my-token", cfg)

	assert.Equal(t, "https://mail.example.com/v1", client.baseURL, "should strip trailing slash")
	assert.Equal(t, "me", client.userID, "should default the user id")
	assert.Equal(t, 15, client.maxUnread, "should default the unread cap")
	assert.NotNil(t, client.httpClient)
}

func TestClient_SetBaseURL(t *testing.T) {
	client := newTestClient()

	client.SetBaseURL("https://custom.api.com/")
	assert.Equal(t, "https://custom.api.com", client.baseURL, "should strip trailing slash")

	client.SetBaseURL("https://another.api.com")
	assert.Equal(t, "https://another.api.com", client.baseURL)
}

func TestClient_ListUnread(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	client := newTestClient()

	httpmock.RegisterResponder("GET",
		"https://api.test.com/users/me/messages?maxResults=15&q=is%3Aunread+category%3Aprimary",
		httpmock.NewJsonResponderOrPanic(200, map[string]interface{}{
			"messages": []map[string]interface{}{
				{"id": "msg-1", "threadId": "thread-1"},
				{"id": "msg-2", "threadId": "thread-2"},
			},
		}))

	refs, err := client.ListUnread(context.Background())

	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, "msg-1", refs[0].ID)
	assert.Equal(t, "thread-1", refs[0].ThreadID)
	assert.Equal(t, "msg-2", refs[1].ID)
}

func TestClient_ListUnread_SetsAuthHeader(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	client := newTestClient()

	httpmock.RegisterResponder("GET",
		"https://api.test.com/users/me/messages?maxResults=15&q=is%3Aunread+category%3Aprimary",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "Bearer test-token", req.Header.Get("Authorization"))
			return httpmock.NewJsonResponse(200, map[string]interface{}{})
		})

	_, err := client.ListUnread(context.Background())
	require.NoError(t, err)
}

func TestClient_ListUnread_Unauthorized(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	client := newTestClient()

	httpmock.RegisterResponder("GET",
		"https://api.test.com/users/me/messages?maxResults=15&q=is%3Aunread+category%3Aprimary",
		httpmock.NewStringResponder(401, "Unauthorized"))

	_, err := client.ListUnread(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestClient_ListUnread_ServerError(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	client := newTestClient()

	httpmock.RegisterResponder("GET",
		"https://api.test.com/users/me/messages?maxResults=15&q=is%3Aunread+category%3Aprimary",
		httpmock.NewJsonResponderOrPanic(503, map[string]interface{}{
			"error": map[string]interface{}{"message": "Backend unavailable"},
		}))

	_, err := client.ListUnread(context.Background())

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnauthorized, "only 401 should map to the credential error")
	assert.Contains(t, err.Error(), "Backend unavailable")
}

func TestClient_GetMetadata(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	client := newTestClient()

	httpmock.RegisterResponder("GET",
		"https://api.test.com/users/me/messages/msg-1?format=metadata&metadataHeaders=Subject&metadataHeaders=From&metadataHeaders=Date&metadataHeaders=Message-ID",
		httpmock.NewJsonResponderOrPanic(200, map[string]interface{}{
			"id":       "msg-1",
			"threadId": "thread-1",
			"snippet":  "Quick question about the launch",
			"payload": map[string]interface{}{
				"headers": []map[string]interface{}{
					{"name": "Subject", "value": "Launch timing"},
					{"name": "From", "value": "Dana Reyes <dana@example.com>"},
				},
			},
		}))

	meta, err := client.GetMetadata(context.Background(), "msg-1")

	require.NoError(t, err)
	assert.Equal(t, "msg-1", meta.ID)
	assert.Equal(t, "thread-1", meta.ThreadID)
	assert.Equal(t, "Launch timing", meta.Header("Subject"))
	assert.Equal(t, "Launch timing", meta.Header("subject"), "header lookup should be case-insensitive")
	assert.Equal(t, "", meta.Header("Date"))
}

func TestClient_SendRaw(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	client := newTestClient()

	httpmock.RegisterResponder("POST", "https://api.test.com/users/me/messages/send",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
			return httpmock.NewJsonResponse(200, map[string]interface{}{"id": "sent-1"})
		})

	id, err := client.SendRaw(context.Background(), "ZW5jb2RlZA", "thread-1")

	require.NoError(t, err)
	assert.Equal(t, "sent-1", id)
}

func TestClient_Modify(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	client := newTestClient()

	httpmock.RegisterResponder("POST", "https://api.test.com/users/me/messages/msg-1/modify",
		httpmock.NewJsonResponderOrPanic(200, map[string]interface{}{"id": "msg-1"}))

	err := client.Modify(context.Background(), "msg-1", []string{"STARRED"}, []string{"UNREAD"})

	require.NoError(t, err)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}
