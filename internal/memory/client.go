package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dimitrije/memorai-api/internal/config"
	"github.com/dimitrije/memorai-api/internal/metrics"
	"golang.org/x/oauth2"
)

var (
	ErrNotFound    = errors.New("memory not found")
	ErrUnavailable = errors.New("memory service unavailable")
)

// maxResponseBytes caps how much of an upstream body is buffered.
const maxResponseBytes = 4 << 20

// Record is a memory as returned by the memory service. Only UserID is interpreted:
// it holds the slug of the owning space. Raw keeps the full body for pass-through.
type Record struct {
	ID     string          `json:"id"`
	UserID string          `json:"user_id"`
	Raw    json.RawMessage `json:"-"`
}

type Client struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
	metrics    *metrics.Metrics
}

// NewClient builds a client for the memory service. When a service token is configured
// requests are authorized with it as a bearer token, otherwise the API key header is sent.
func NewClient(cfg config.MemoryAPIConfig, m *metrics.Metrics) *Client {
	httpClient := &http.Client{}
	if cfg.Token != "" {
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token, TokenType: "Bearer"})
		httpClient = oauth2.NewClient(context.Background(), src)
	}
	httpClient.Timeout = cfg.Timeout

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		timeout:    cfg.Timeout,
		httpClient: httpClient,
		metrics:    m,
	}
}

func (c *Client) Get(ctx context.Context, id string) (*Record, error) {
	body, err := c.do(ctx, http.MethodGet, "/memories/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}

	var rec Record
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, fmt.Errorf("%w: failed to decode memory: %v", ErrUnavailable, err)
	}
	rec.Raw = body
	return &rec, nil
}

func (c *Client) Update(ctx context.Context, id string, data json.RawMessage) (json.RawMessage, error) {
	payload, err := json.Marshal(map[string]json.RawMessage{"data": data})
	if err != nil {
		return nil, fmt.Errorf("failed to encode update: %w", err)
	}
	return c.do(ctx, http.MethodPut, "/memories/"+url.PathEscape(id), payload)
}

func (c *Client) Delete(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, "/memories/"+url.PathEscape(id), nil)
	return err
}

// Message is one turn handed to the memory service for extraction.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CreateRequest adds memories to the space whose slug is UserID.
type CreateRequest struct {
	Messages []Message      `json:"messages"`
	UserID   string         `json:"user_id"`
	AgentID  string         `json:"agent_id,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// SearchRequest runs a semantic query scoped to the space whose slug is UserID.
type SearchRequest struct {
	Query   string `json:"query"`
	UserID  string `json:"user_id"`
	AgentID string `json:"agent_id,omitempty"`
	Limit   int    `json:"limit,omitempty"`
}

// List returns the memories of one space, optionally narrowed to an agent.
func (c *Client) List(ctx context.Context, slug, agentID string) ([]json.RawMessage, error) {
	q := url.Values{"user_id": {slug}}
	if agentID != "" {
		q.Set("agent_id", agentID)
	}
	body, err := c.do(ctx, http.MethodGet, "/memories?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	return decodeResults(body)
}

func (c *Client) Create(ctx context.Context, req CreateRequest) (json.RawMessage, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode memory: %w", err)
	}
	return c.do(ctx, http.MethodPost, "/memories", payload)
}

func (c *Client) Search(ctx context.Context, req SearchRequest) ([]json.RawMessage, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode search: %w", err)
	}
	body, err := c.do(ctx, http.MethodPost, "/search", payload)
	if err != nil {
		return nil, err
	}
	return decodeResults(body)
}

// decodeResults accepts both a bare array and a {"results": [...]} envelope.
func decodeResults(body json.RawMessage) ([]json.RawMessage, error) {
	results := []json.RawMessage{}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return results, nil
	}

	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &results); err != nil {
			return nil, fmt.Errorf("%w: failed to decode results: %v", ErrUnavailable, err)
		}
		return results, nil
	}

	var envelope struct {
		Results []json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, fmt.Errorf("%w: failed to decode results: %v", ErrUnavailable, err)
	}
	if envelope.Results != nil {
		results = envelope.Results
	}
	return results, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) (json.RawMessage, error) {
	start := time.Now()
	body, err := c.roundTrip(ctx, method, path, payload)
	c.metrics.ObserveMemoryAPI(method, resultLabel(err), time.Since(start))
	return body, err
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}

func (c *Client) roundTrip(ctx context.Context, method, path string, payload []byte) (json.RawMessage, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrUnavailable, err)
	}
	if len(respBody) > maxResponseBytes {
		return nil, fmt.Errorf("%w: response exceeds %d bytes", ErrUnavailable, maxResponseBytes)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("memory api returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	case resp.StatusCode == http.StatusNoContent || len(respBody) == 0:
		return nil, nil
	}

	return respBody, nil
}
