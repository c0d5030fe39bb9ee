// Package rest implements the remote gateway over a PostgREST-style HTTP API
// with retry for idempotent calls and online/offline tracking.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fruitsalade/swalang/internal/gateway"
	"github.com/fruitsalade/swalang/internal/logging"
	"github.com/fruitsalade/swalang/internal/metrics"
	"github.com/fruitsalade/swalang/internal/models"
	"github.com/fruitsalade/swalang/internal/retry"
)

const (
	nodesPath       = "/rest/v1/nodes"
	suggestionsPath = "/rest/v1/suggestions_with_votes"
	castVotePath    = "/rest/v1/rpc/cast_vote"
)

// Client talks to the backend's REST endpoint.
type Client struct {
	baseURL     string
	apiKey      string
	httpClient  *http.Client
	retryConfig retry.Config

	mu       sync.RWMutex
	online   bool
	lastPing time.Time
	token    string
}

// Config holds client configuration.
type Config struct {
	BaseURL     string
	APIKey      string
	Token       string
	Timeout     time.Duration
	RetryConfig retry.Config
	// HTTPClient overrides the default transport; Timeout is ignored when set.
	HTTPClient *http.Client
}

// New creates a new client.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.RetryConfig.MaxAttempts == 0 {
		cfg.RetryConfig = retry.DefaultConfig()
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        20,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		}
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		httpClient:  hc,
		retryConfig: cfg.RetryConfig,
		online:      true,
		token:       cfg.Token,
	}
}

// SetToken replaces the bearer token sent with each request.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// IsOnline reports whether the last request reached the server.
func (c *Client) IsOnline() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.online
}

// LastContact returns when the server last answered or failed to.
func (c *Client) LastContact() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastPing
}

func (c *Client) setOnline(online bool) {
	c.mu.Lock()
	changed := c.online != online
	c.online = online
	c.lastPing = time.Now()
	c.mu.Unlock()

	if changed {
		if online {
			logging.Info("backend is reachable again")
		} else {
			logging.Warn("backend is unreachable")
		}
	}
	metrics.SetGatewayOnline(online)
}

func (c *Client) applyAuth(req *http.Request) {
	req.Header.Set("apikey", c.apiKey)
	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()
	if token == "" {
		token = c.apiKey
	}
	req.Header.Set("Authorization", "Bearer "+token)
}

// Ping checks that the REST endpoint answers.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, request{op: "ping", method: http.MethodGet, path: "/rest/v1/"})
}

type request struct {
	op     string
	method string
	path   string
	query  url.Values
	body   any
	prefer string
	out    any
	// retry marks the call safe to repeat.
	retry bool
}

// apiError is the error body PostgREST returns.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (c *Client) do(ctx context.Context, r request) error {
	cfg := c.retryConfig
	if !r.retry {
		cfg = retry.None()
	}
	return retry.Do(ctx, cfg, func() error {
		return c.once(ctx, r)
	})
}

func (c *Client) once(ctx context.Context, r request) error {
	u := c.baseURL + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("%s: encode body: %w", r.op, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u, body)
	if err != nil {
		return fmt.Errorf("%s: %w", r.op, err)
	}
	req.Header.Set("Accept", "application/json")
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.prefer != "" {
		req.Header.Set("Prefer", r.prefer)
	}
	c.applyAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.setOnline(false)
		return retry.Retryable(gateway.Network(r.op, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		c.setOnline(false)
		return retry.Retryable(gateway.Network(r.op, fmt.Errorf("server error: %d", resp.StatusCode)))
	}
	c.setOnline(true)

	if resp.StatusCode >= 400 {
		return classify(r.op, resp)
	}
	if r.out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(r.out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%s: decode response: %w", r.op, err)
	}
	return nil
}

func classify(op string, resp *http.Response) error {
	var ae apiError
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(raw, &ae) != nil || ae.Message == "" {
		ae.Message = strings.TrimSpace(string(raw))
	}
	if ae.Message == "" {
		ae.Message = http.StatusText(resp.StatusCode)
	}

	logging.Debug("backend rejected request",
		zap.String("op", op), zap.Int("status", resp.StatusCode), zap.String("code", ae.Code))

	switch resp.StatusCode {
	case http.StatusNotFound:
		return gateway.NotFound(op, ae.Message)
	case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity,
		http.StatusForbidden, http.StatusUnauthorized:
		return gateway.Validation(op, ae.Message)
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return retry.Retryable(gateway.Network(op, errors.New(ae.Message)))
	default:
		return &gateway.Error{Kind: gateway.KindUnknown, Op: op, Message: ae.Message}
	}
}

func eq(v string) string { return "eq." + v }

// ListNodes implements gateway.NodeGateway.
func (c *Client) ListNodes(ctx context.Context, parentID *string) ([]models.Node, error) {
	q := url.Values{"select": {"*"}}
	if parentID == nil || *parentID == "" {
		q.Set("parent_id", "is.null")
	} else {
		q.Set("parent_id", eq(*parentID))
	}
	var nodes []models.Node
	err := c.do(ctx, request{op: "list", method: http.MethodGet, path: nodesPath, query: q, out: &nodes, retry: true})
	if err != nil {
		return nil, err
	}
	return nodes, nil
}

// CreateNode implements gateway.NodeGateway.
func (c *Client) CreateNode(ctx context.Context, details models.CreateDetails) (models.Node, error) {
	var rows []models.Node
	err := c.do(ctx, request{
		op: "create", method: http.MethodPost, path: nodesPath,
		body: details, prefer: "return=representation", out: &rows,
	})
	if err != nil {
		return models.Node{}, err
	}
	if len(rows) == 0 {
		return models.Node{}, &gateway.Error{Kind: gateway.KindUnknown, Op: "create", Message: "empty representation"}
	}
	return rows[0], nil
}

// UpdateNode implements gateway.NodeGateway.
func (c *Client) UpdateNode(ctx context.Context, nodeID string, patch models.NodePatch) (models.Node, error) {
	var rows []models.Node
	err := c.do(ctx, request{
		op: "update", method: http.MethodPatch, path: nodesPath,
		query: url.Values{"id": {eq(nodeID)}},
		body:  patch, prefer: "return=representation", out: &rows,
	})
	if err != nil {
		return models.Node{}, err
	}
	if len(rows) == 0 {
		return models.Node{}, gateway.NotFound("update", "node "+nodeID+" does not exist")
	}
	return rows[0], nil
}

// DeleteNode implements gateway.NodeGateway.
func (c *Client) DeleteNode(ctx context.Context, nodeID string) error {
	r := request{
		op: "delete", method: http.MethodDelete, path: nodesPath,
		query:  url.Values{"id": {eq(nodeID)}, "select": {"id"}},
		prefer: "return=representation",
	}
	// A failed attempt may still have committed on the server, so an empty
	// representation after a retry means the node is already gone.
	attempts := 0
	var rows []struct {
		ID string `json:"id"`
	}
	err := retry.Do(ctx, c.retryConfig, func() error {
		attempts++
		rows = rows[:0]
		r.out = &rows
		return c.once(ctx, r)
	})
	if err != nil {
		return err
	}
	if len(rows) == 0 && attempts == 1 {
		return gateway.NotFound("delete", "node "+nodeID+" does not exist")
	}
	return nil
}

// CastVote implements gateway.VoteGateway.
func (c *Client) CastVote(ctx context.Context, suggestionID string, value models.Vote) error {
	if !value.Valid() {
		return gateway.Validation("cast_vote", "vote must be -1, 0 or 1")
	}
	body := map[string]any{
		"p_suggestion_id": suggestionID,
		"p_value":         int(value),
	}
	return c.do(ctx, request{op: "cast_vote", method: http.MethodPost, path: castVotePath, body: body})
}

// ListSuggestions implements gateway.VoteGateway.
func (c *Client) ListSuggestions(ctx context.Context) ([]models.Suggestion, error) {
	q := url.Values{"select": {"*"}, "order": {"created_at.desc"}}
	var out []models.Suggestion
	err := c.do(ctx, request{op: "list_suggestions", method: http.MethodGet, path: suggestionsPath, query: q, out: &out, retry: true})
	if err != nil {
		return nil, err
	}
	return out, nil
}

var _ gateway.Gateway = (*Client)(nil)
