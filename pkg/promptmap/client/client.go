// Package client talks to a PromptMap server over its REST API. A *Client
// satisfies the mindmap collaborator interfaces, so an Orchestrator can run
// against a remote server exactly as it runs in-process.
package client

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

	"github.com/google/uuid"

	"github.com/Kripu77/prompt-map-sub001/pkg/mindmap"
)

const (
	DefaultBaseURL   = "http://localhost:3000"
	defaultUserAgent = "promptmap-cli"
)

var (
	_ mindmap.Generator         = (*Client)(nil)
	_ mindmap.StreamOpener      = (*Client)(nil)
	_ mindmap.ShiftChecker      = (*Client)(nil)
	_ mindmap.ThreadPersister   = (*Client)(nil)
	_ mindmap.AnonymousRecorder = (*Client)(nil)
)

// ErrUnauthenticated is returned by thread calls made without a token.
var ErrUnauthenticated = errors.New("a token is required for thread operations")

type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

// APIError is a non-2xx response decoded from the server's error envelope.
type APIError struct {
	StatusCode int
	Message    string
	Errors     []FieldError
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	if len(e.Errors) > 0 {
		msgs := make([]string, 0, len(e.Errors))
		for _, fe := range e.Errors {
			msgs = append(msgs, fe.Message)
		}
		return fmt.Sprintf("%d %s: %s", e.StatusCode, e.Message, strings.Join(msgs, "; "))
	}
	return fmt.Sprintf("%d %s", e.StatusCode, e.Message)
}

type envelope struct {
	Success bool            `json:"success"`
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type Thread struct {
	ID                uuid.UUID                  `json:"id"`
	Title             string                     `json:"title"`
	Content           string                     `json:"content"`
	Reasoning         *string                    `json:"reasoning,omitempty"`
	ReasoningDuration *int                       `json:"reasoningDuration,omitempty"`
	Options           *mindmap.GenerationOptions `json:"options,omitempty"`
	CreatedAt         time.Time                  `json:"createdAt"`
	UpdatedAt         *time.Time                 `json:"updatedAt"`
}

type ThreadList struct {
	Items  []*Thread `json:"items"`
	Total  int64     `json:"total"`
	Limit  int       `json:"limit"`
	Offset int       `json:"offset"`
}

type Client struct {
	baseURL   string
	token     string
	userAgent string
	http      *http.Client
}

type Option func(*Client)

// WithToken authenticates requests with a bearer JWT.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: defaultUserAgent,
		// streams are bounded by their context, not a client timeout
		http: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) BaseURL() string { return c.baseURL }

// Authenticated reports whether requests carry a token.
func (c *Client) Authenticated() bool { return c.token != "" }

func (c *Client) Generate(ctx context.Context, req mindmap.GenerateRequest) (*mindmap.GenerateResult, error) {
	var out mindmap.GenerateResult
	if err := c.do(ctx, http.MethodPost, "/api/mindmap/v1/generate", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// OpenStream starts a streaming generation. The body carries wire records and
// must be closed by the caller.
func (c *Client) OpenStream(ctx context.Context, req mindmap.GenerateRequest) (io.ReadCloser, error) {
	httpReq, err := c.newRequest(ctx, http.MethodPost, "/api/mindmap/v1/stream", req)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to open stream: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}
	return resp.Body, nil
}

func (c *Client) CheckShift(ctx context.Context, payload mindmap.PromptPayload) (mindmap.TopicShiftResult, error) {
	var out mindmap.TopicShiftResult
	err := c.do(ctx, http.MethodPost, "/api/mindmap/v1/topic-shift", payload, &out)
	return out, err
}

// CreateThread saves a draft for the token's user. userID is implied by the
// token and only has to be non-nil.
func (c *Client) CreateThread(ctx context.Context, userID uuid.UUID, draft mindmap.ThreadDraft) error {
	if !c.Authenticated() || userID == uuid.Nil {
		return ErrUnauthenticated
	}
	body := map[string]interface{}{
		"title":   draft.Title,
		"content": draft.Content,
	}
	if draft.Reasoning != "" {
		body["reasoning"] = draft.Reasoning
		body["reasoningDuration"] = draft.ReasoningDuration
	}
	if draft.Options != nil {
		body["options"] = draft.Options
	}
	return c.do(ctx, http.MethodPost, "/api/thread/v1", body, nil)
}

func (c *Client) ListThreads(ctx context.Context, limit, offset int) (*ThreadList, error) {
	if !c.Authenticated() {
		return nil, ErrUnauthenticated
	}
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	path := "/api/thread/v1"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out ThreadList
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetThread(ctx context.Context, id uuid.UUID) (*Thread, error) {
	if !c.Authenticated() {
		return nil, ErrUnauthenticated
	}
	var out Thread
	if err := c.do(ctx, http.MethodGet, "/api/thread/v1/"+id.String(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteThread(ctx context.Context, id uuid.UUID) error {
	if !c.Authenticated() {
		return ErrUnauthenticated
	}
	return c.do(ctx, http.MethodDelete, "/api/thread/v1/"+id.String(), nil, nil)
}

func (c *Client) RecordAnonymous(ctx context.Context, record mindmap.AnonymousRecord) error {
	return c.do(ctx, http.MethodPost, "/api/analytics/v1/anonymous", record, nil)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body interface{}) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// do sends a JSON request and unwraps the response envelope into out.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return fmt.Errorf("response to %s %s has no data", method, path)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to decode response data: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	if s := resp.Header.Get("Retry-After"); s != "" {
		if secs, err := strconv.Atoi(s); err == nil {
			apiErr.RetryAfter = time.Duration(secs) * time.Second
		}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil || len(raw) == 0 {
		return apiErr
	}
	var env envelope
	if json.Unmarshal(raw, &env) != nil {
		apiErr.Message = strings.TrimSpace(string(raw))
		return apiErr
	}
	if env.Message != "" {
		apiErr.Message = env.Message
	}
	if len(env.Data) > 0 {
		var details struct {
			Errors []FieldError `json:"errors"`
		}
		if json.Unmarshal(env.Data, &details) == nil {
			apiErr.Errors = details.Errors
		}
	}
	return apiErr
}
