package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Client talks to the Khoda LLM HTTP API. It owns one reusable HTTP session
// shared by all calls; the session is created at most once per process and
// is safe for concurrent use.
type Client struct {
	baseURL  string
	username string
	password string
	timeout  time.Duration
	log      zerolog.Logger

	once    sync.Once
	session *http.Client

	mu       sync.Mutex
	shutdown bool
}

// NewClient creates a client for the given base URL. The HTTP session is
// created lazily on first use or by Init, whichever comes first.
func NewClient(baseURL, username, password string, timeout time.Duration, log zerolog.Logger) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
		timeout:  timeout,
		log:      log.With().Str("component", "api_client").Logger(),
	}
}

// Init eagerly acquires the shared HTTP session. Calling it is optional.
func (c *Client) Init() {
	c.httpSession()
}

// Shutdown releases the HTTP session. Idempotent, and safe to call when no
// session was ever created.
func (c *Client) Shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.shutdown {
		return
	}
	c.shutdown = true
	if c.session != nil {
		c.session.CloseIdleConnections()
		c.log.Info().Msg("api session closed")
	}
}

func (c *Client) httpSession() *http.Client {
	c.once.Do(func() {
		c.session = &http.Client{}
		c.log.Info().Str("base_url", c.baseURL).Msg("api session created")
	})
	return c.session
}

type queryRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id,omitempty"`
}

// The backend answers with either field depending on version; "answer" wins.
type queryResponse struct {
	Answer   string `json:"answer"`
	Response string `json:"response"`
}

type sessionResponse struct {
	SessionID string `json:"session_id"`
}

type deleteSessionRequest struct {
	SessionID string `json:"session_id"`
}

// Ask sends one question to the /query endpoint and normalizes every
// expected failure mode into the result. The call is attempted exactly
// once and carries the configured timeout. question must be non-empty;
// callers reject empty input before reaching the client.
func (c *Client) Ask(ctx context.Context, question, sessionID string) AskResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	// Marshalling two strings cannot fail.
	body, _ := json.Marshal(queryRequest{Query: question, SessionID: sessionID})

	resp, err := c.post(ctx, "/query", body)
	if err != nil {
		c.log.Error().Err(err).Msg("query request failed")
		return failureResult(FailureTransport, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail := fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, readSnippet(resp.Body))
		c.log.Error().Int("status", resp.StatusCode).Msg("query failed")
		return failureResult(FailureTransport, detail)
	}

	var out queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		c.log.Error().Err(err).Msg("unable to decode query response")
		return failureResult(FailureParse, fmt.Sprintf("decode response: %v", err))
	}

	answer := out.Answer
	if answer == "" {
		answer = out.Response
	}
	if answer == "" {
		c.log.Error().Msg("query response has no answer field")
		return failureResult(FailureParse, "response has no answer")
	}

	return answerResult(answer)
}

// CreateSession creates a new server-side conversation session.
func (c *Client) CreateSession(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.post(ctx, "/create-session", nil)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("create session: unexpected status %d: %s", resp.StatusCode, readSnippet(resp.Body))
	}

	var out sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("create session: decode response: %w", err)
	}
	if out.SessionID == "" {
		return "", fmt.Errorf("create session: session id not received")
	}

	c.log.Info().Str("session_id", out.SessionID).Msg("session created")
	return out.SessionID, nil
}

// DeleteSession deletes a server-side conversation session.
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, _ := json.Marshal(deleteSessionRequest{SessionID: sessionID})

	resp, err := c.post(ctx, "/delete-session", body)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("delete session: unexpected status %d: %s", resp.StatusCode, readSnippet(resp.Body))
	}

	c.log.Info().Str("session_id", sessionID).Msg("session deleted")
	return nil
}

func (c *Client) post(ctx context.Context, path string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.SetBasicAuth(c.username, c.password)

	resp, err := c.httpSession().Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	return resp, nil
}

// readSnippet returns a bounded prefix of the body for error details.
func readSnippet(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 512))
	return strings.TrimSpace(string(b))
}
