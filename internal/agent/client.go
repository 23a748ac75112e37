// Package agent is the HTTP client for the upstream assistant service.
//
// Every conversation turn is a single POST to {base}/assist. The service
// answers either with a server-sent event stream or with a plain JSON body;
// both are reduced to one reply string.
package agent

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/skelcrypto/skelbot/internal/sessions"
)

const (
	defaultTimeout = 60 * time.Second

	// maxErrorBody caps how much of a failed response is kept in HTTPError.
	maxErrorBody = 512

	// maxJSONBody caps a non-streaming reply.
	maxJSONBody = 4 << 20

	textBlockContentType = "atomic.textblock"
)

// Client talks to the agent service. Safe for concurrent use.
type Client struct {
	baseURL     string
	processorID string
	client      *http.Client
	sessions    *sessions.Manager
	tracer      trace.Tracer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client (timeout included).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.client = hc
		}
	}
}

// WithTimeout sets the per-request timeout, covering the full streamed body.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			hc := *c.client
			hc.Timeout = d
			c.client = &hc
		}
	}
}

// WithSessions shares an existing session registry.
func WithSessions(m *sessions.Manager) Option {
	return func(c *Client) {
		if m != nil {
			c.sessions = m
		}
	}
}

// NewClient creates a client for the agent at baseURL. A trailing slash is ignored.
func NewClient(baseURL, processorID string, opts ...Option) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		processorID: processorID,
		client:      &http.Client{Timeout: defaultTimeout},
		sessions:    sessions.NewManager(),
		tracer:      otel.Tracer("github.com/skelcrypto/skelbot/internal/agent"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type assistRequest struct {
	Query   assistQuery   `json:"query"`
	Session assistSession `json:"session"`
}

type assistQuery struct {
	ID     string `json:"id"`
	Prompt string `json:"prompt"`
}

type assistSession struct {
	ProcessorID  string            `json:"processor_id"`
	ActivityID   string            `json:"activity_id"`
	RequestID    string            `json:"request_id"`
	Interactions []json.RawMessage `json:"interactions"`
}

// eventData is the JSON payload of one streamed event.
type eventData struct {
	ContentType string          `json:"content_type"`
	Content     json.RawMessage `json:"content"`
}

// jsonReply is the non-streaming response shape.
type jsonReply struct {
	Text    string          `json:"text"`
	Content string          `json:"content"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Send forwards prompt within the session identified by sessionKey and
// returns the agent's reply text.
//
// Errors match ErrUnavailable (transport, timeout, non-2xx),
// ErrMalformedResponse (undecodable or empty reply), or are a *RemoteError.
func (c *Client) Send(ctx context.Context, sessionKey, prompt string) (reply string, err error) {
	ctx, span := c.tracer.Start(ctx, "agent.send",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("agent.session_key", sessionKey),
			attribute.Int("agent.prompt_chars", len(prompt)),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.Int("agent.reply_chars", len(reply)))
		}
		span.End()
	}()

	body := assistRequest{
		Query: assistQuery{
			ID:     sessions.NewID(),
			Prompt: prompt,
		},
		Session: assistSession{
			ProcessorID:  c.processorID,
			ActivityID:   c.sessions.Touch(sessionKey),
			RequestID:    sessions.NewID(),
			Interactions: []json.RawMessage{},
		},
	}

	resp, err := c.doRequest(ctx, body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	br := bufio.NewReader(resp.Body)
	if isJSONResponse(resp.Header.Get("Content-Type"), br) {
		return c.readJSON(br)
	}
	return c.readStream(br)
}

// Reset forgets the session so the next Send starts a new activity.
func (c *Client) Reset(sessionKey string) {
	if c.sessions.Reset(sessionKey) {
		slog.Debug("agent session reset", "session", sessionKey)
	}
}

// Ping checks that the agent base URL answers HTTP at all.
// Any status below 500 counts as reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("agent: create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	if resp.StatusCode >= http.StatusInternalServerError {
		return &HTTPError{Status: resp.StatusCode}
	}
	return nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.client.CloseIdleConnections()
}

func (c *Client) doRequest(ctx context.Context, body interface{}) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("agent: marshal request: %w", err)
	}

	url := c.baseURL + "/assist"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("agent: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream, application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(httpReq.Header))

	slog.Debug("posting prompt to agent", "url", url)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		return nil, &HTTPError{
			Status: resp.StatusCode,
			Body:   strings.TrimSpace(string(respBody)),
		}
	}

	return resp, nil
}

func (c *Client) readStream(r io.Reader) (string, error) {
	var chunks []string
	var remoteErr string

	err := readEvents(r, func(ev sseEvent) {
		var data eventData
		if err := json.Unmarshal([]byte(ev.Data), &data); err != nil {
			slog.Warn("invalid SSE JSON chunk from agent", "event", ev.Name, "error", err)
			return
		}

		switch normalizeEventName(ev.Name) {
		case "FINAL_RESPONSE":
			if data.ContentType != textBlockContentType {
				return
			}
			var text string
			if err := json.Unmarshal(data.Content, &text); err != nil {
				slog.Warn("non-text content in agent text block", "event", ev.Name, "error", err)
				return
			}
			chunks = append(chunks, text)
		case "ERROR":
			remoteErr = errorMessage(data.Content)
		}
	})
	if err != nil {
		return "", fmt.Errorf("%w: read stream: %w", ErrUnavailable, err)
	}

	if remoteErr != "" {
		return "", &RemoteError{Message: remoteErr}
	}

	reply := strings.TrimSpace(strings.Join(chunks, ""))
	if reply == "" {
		return "", ErrEmptyReply
	}
	return reply, nil
}

func (c *Client) readJSON(r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxJSONBody))
	if err != nil {
		return "", fmt.Errorf("%w: read body: %w", ErrUnavailable, err)
	}

	var out jsonReply
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	if out.Error != "" {
		return "", &RemoteError{Message: out.Error}
	}
	if len(out.Data) > 0 {
		slog.Debug("agent reply carried structured data", "bytes", len(out.Data))
	}

	reply := strings.TrimSpace(out.Text)
	if reply == "" {
		reply = strings.TrimSpace(out.Content)
	}
	if reply == "" {
		return "", ErrEmptyReply
	}
	return reply, nil
}

// errorMessage extracts a readable message from an ERROR event's content:
// an object's error_message (or its JSON text), or a bare string. An empty
// result means the event carries no error.
func errorMessage(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return "the agent reported an error"
	}

	var obj map[string]interface{}
	if err := json.Unmarshal(raw, &obj); err == nil {
		if msg, ok := obj["error_message"].(string); ok && msg != "" {
			return msg
		}
		return string(raw)
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		// An empty string is not an error; the reply so far stands.
		return s
	}
	return string(raw)
}

// isJSONResponse decides between the JSON and SSE readers. Without a usable
// Content-Type it peeks at the first non-space byte.
func isJSONResponse(contentType string, br *bufio.Reader) bool {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		switch {
		case mt == "text/event-stream":
			return false
		case mt == "application/json" || strings.HasSuffix(mt, "+json"):
			return true
		}
	}
	for {
		b, err := br.Peek(1)
		if err != nil || len(b) == 0 {
			return false
		}
		switch b[0] {
		case ' ', '\t', '\r', '\n':
			_, _ = br.ReadByte()
		default:
			return b[0] == '{'
		}
	}
}

