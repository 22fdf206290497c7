// ABOUTME: HTTP client for the support platform's history API plus live socket URL building.
// ABOUTME: Fetch failures propagate to the caller; there is no retry at this layer.

package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"log/slog"

	"github.com/2389/opdesk/internal/timeline"
)

// DefaultRequestTimeout bounds a single history fetch.
const DefaultRequestTimeout = 15 * time.Second

// Config describes how to reach the platform.
type Config struct {
	// BaseURL is the HTTP API root, e.g. "https://support.example.com/api".
	BaseURL string
	// SocketURL is the live-channel root, e.g. "wss://support.example.com".
	SocketURL string
	// AgentID identifies the operator's agent account.
	AgentID string
	// Token is the bearer token for both transports.
	Token string
	// RequestTimeout bounds each history request; zero uses the default.
	RequestTimeout time.Duration
}

// Client talks to the platform's request/response surface. The live
// channel itself is owned by the live package; this client only builds
// its authenticated URL.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

// NewClient creates a platform client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.RequestTimeout},
		logger: logger.With("component", "platform"),
	}
}

// AgentID returns the configured agent identity.
func (c *Client) AgentID() string {
	return c.cfg.AgentID
}

// FetchMessages retrieves one history page for a conversation, newest
// first, at most limit messages. An empty beforeID fetches the most
// recent page; otherwise the page strictly older than that message id is
// returned. A failing request surfaces as an error and nothing is cached
// or retried here.
func (c *Client) FetchMessages(ctx context.Context, conversationID string, limit int, beforeID string) ([]timeline.Message, error) {
	u, err := url.Parse(fmt.Sprintf("%s/conversations/%s/%s",
		c.cfg.BaseURL, url.PathEscape(c.cfg.AgentID), url.PathEscape(conversationID)))
	if err != nil {
		return nil, fmt.Errorf("building history URL: %w", err)
	}

	q := u.Query()
	q.Set("limit", strconv.Itoa(limit))
	if beforeID != "" {
		q.Set("before_id", beforeID)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating history request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching history: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("history request returned status %d", resp.StatusCode)
	}

	var messages []timeline.Message
	if err := json.NewDecoder(resp.Body).Decode(&messages); err != nil {
		return nil, fmt.Errorf("parsing history response: %w", err)
	}

	c.logger.Debug("history page fetched",
		"conversation_id", conversationID,
		"count", len(messages),
		"before_id", beforeID)
	return messages, nil
}

// SocketURL builds the authenticated live-channel URI for a conversation.
// The bearer token travels in the URI because websocket handshakes cannot
// carry custom headers from every client environment.
func (c *Client) SocketURL(conversationID string) (string, error) {
	u, err := url.Parse(fmt.Sprintf("%s/live/%s/%s",
		c.cfg.SocketURL, url.PathEscape(c.cfg.AgentID), url.PathEscape(conversationID)))
	if err != nil {
		return "", fmt.Errorf("building socket URL: %w", err)
	}

	q := u.Query()
	q.Set("token", c.cfg.Token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// TokenExpiry inspects the bearer token's exp claim without verifying the
// signature (the client has no key material; verification is the
// platform's job). ok is false when the token is not a JWT or carries no
// expiry.
func (c *Client) TokenExpiry() (time.Time, bool) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(c.cfg.Token, claims); err != nil {
		return time.Time{}, false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
