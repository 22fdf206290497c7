// ABOUTME: Tests for the platform history client against an httptest server.
// ABOUTME: Covers request shape, auth header, cursor param, and failure paths.

package platform

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/opdesk/internal/timeline"
)

func TestClient_FetchMessages(t *testing.T) {
	var gotPath, gotAuth, gotLimit, gotBefore string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotLimit = r.URL.Query().Get("limit")
		gotBefore = r.URL.Query().Get("before_id")

		json.NewEncoder(w).Encode([]timeline.Message{
			{ID: "m-2", ConversationID: "abc-123", Sender: timeline.SenderAgent, Type: timeline.MessageTypeMessage, Content: "newer"},
			{ID: "m-1", ConversationID: "abc-123", Sender: timeline.SenderCustomer, Type: timeline.MessageTypeMessage, Content: "older"},
		})
	}))
	defer srv.Close()

	c := NewClient(Config{
		BaseURL: srv.URL,
		AgentID: "agent-7",
		Token:   "tok-123",
	}, nil)

	msgs, err := c.FetchMessages(context.Background(), "abc-123", 20, "")
	require.NoError(t, err)

	assert.Equal(t, "/conversations/agent-7/abc-123", gotPath)
	assert.Equal(t, "Bearer tok-123", gotAuth)
	assert.Equal(t, "20", gotLimit)
	assert.Empty(t, gotBefore)
	require.Len(t, msgs, 2)
	assert.Equal(t, "m-2", msgs[0].ID, "wire order is newest first")
}

func TestClient_FetchMessagesWithCursor(t *testing.T) {
	var gotBefore string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBefore = r.URL.Query().Get("before_id")
		json.NewEncoder(w).Encode([]timeline.Message{})
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, AgentID: "agent-7", Token: "t"}, nil)

	msgs, err := c.FetchMessages(context.Background(), "abc-123", 20, "msg-026")
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.Equal(t, "msg-026", gotBefore)
}

func TestClient_FetchMessagesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, AgentID: "agent-7", Token: "t"}, nil)

	_, err := c.FetchMessages(context.Background(), "abc-123", 20, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestClient_FetchMessagesUnreachable(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://127.0.0.1:1", AgentID: "agent-7", Token: "t"}, nil)

	_, err := c.FetchMessages(context.Background(), "abc-123", 20, "")
	assert.Error(t, err)
}

func TestClient_FetchMessagesGarbageBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, AgentID: "agent-7", Token: "t"}, nil)

	_, err := c.FetchMessages(context.Background(), "abc-123", 20, "")
	assert.Error(t, err)
}

func TestClient_SocketURL(t *testing.T) {
	c := NewClient(Config{
		SocketURL: "wss://support.example.com",
		AgentID:   "agent-7",
		Token:     "tok-123",
	}, nil)

	u, err := c.SocketURL("abc-123")
	require.NoError(t, err)
	assert.Equal(t, "wss://support.example.com/live/agent-7/abc-123?token=tok-123", u)
}

func TestClient_TokenExpiry(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "agent-7",
		"exp": exp.Unix(),
	})
	signed, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)

	c := NewClient(Config{Token: signed}, nil)

	got, ok := c.TokenExpiry()
	require.True(t, ok)
	assert.True(t, got.Equal(exp))
}

func TestClient_TokenExpiryOpaqueToken(t *testing.T) {
	c := NewClient(Config{Token: "not-a-jwt"}, nil)

	_, ok := c.TokenExpiry()
	assert.False(t, ok)
}
