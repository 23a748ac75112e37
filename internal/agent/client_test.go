package agent

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// recordingServer captures every /assist request body and replies with the
// given content type and body.
type recordingServer struct {
	mu       sync.Mutex
	requests []assistRequest
}

func (rs *recordingServer) handler(t *testing.T, contentType, body string, status int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/assist" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("request Content-Type = %q", ct)
		}
		var req assistRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		rs.mu.Lock()
		rs.requests = append(rs.requests, req)
		rs.mu.Unlock()

		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		w.WriteHeader(status)
		io.WriteString(w, body)
	}
}

func newTestClient(t *testing.T, contentType, body string, status int) (*Client, *recordingServer) {
	t.Helper()
	rs := &recordingServer{}
	srv := httptest.NewServer(rs.handler(t, contentType, body, status))
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", "telegram-bot", WithHTTPClient(srv.Client())), rs
}

// TestSend_SSEFinalResponse verifies text blocks are concatenated in order and
// other event kinds are ignored.
func TestSend_SSEFinalResponse(t *testing.T) {
	stream := "event: assist.THOUGHT\n" +
		"data: {\"content_type\":\"atomic.textblock\",\"content\":\"thinking\"}\n\n" +
		"event: assist.final_response\n" +
		"data: {\"content_type\":\"atomic.textblock\",\"content\":\"  BTC is \"}\n\n" +
		"event: FINAL_RESPONSE\n" +
		"data: {\"content_type\":\"atomic.json\",\"content\":\"skip\"}\n\n" +
		"event: assist.FINAL_RESPONSE\n" +
		"data: {\"content_type\":\"atomic.textblock\",\"content\":\"$100k \"}" // no trailing blank line

	c, rs := newTestClient(t, "text/event-stream", stream, http.StatusOK)

	reply, err := c.Send(context.Background(), "42", "[LANG=EN] price of btc")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if reply != "BTC is $100k" {
		t.Errorf("reply = %q", reply)
	}

	if len(rs.requests) != 1 {
		t.Fatalf("requests = %d, want 1", len(rs.requests))
	}
	req := rs.requests[0]
	if req.Query.Prompt != "[LANG=EN] price of btc" {
		t.Errorf("prompt = %q", req.Query.Prompt)
	}
	if req.Session.ProcessorID != "telegram-bot" {
		t.Errorf("processor_id = %q", req.Session.ProcessorID)
	}
	if req.Query.ID == "" || req.Session.RequestID == "" || req.Session.ActivityID == "" {
		t.Errorf("missing ids: %+v", req)
	}
	if req.Session.Interactions == nil {
		t.Error("interactions must serialize as an empty array")
	}
}

// TestSend_ActivityPerSession verifies activity IDs are stable per session
// key and rotate after Reset.
func TestSend_ActivityPerSession(t *testing.T) {
	stream := "event: FINAL_RESPONSE\ndata: {\"content_type\":\"atomic.textblock\",\"content\":\"ok\"}\n\n"
	c, rs := newTestClient(t, "text/event-stream", stream, http.StatusOK)
	ctx := context.Background()

	for _, key := range []string{"chat", "chat", "chat:7"} {
		if _, err := c.Send(ctx, key, "hi"); err != nil {
			t.Fatalf("Send(%s): %v", key, err)
		}
	}
	c.Reset("chat")
	if _, err := c.Send(ctx, "chat", "hi"); err != nil {
		t.Fatalf("Send after reset: %v", err)
	}

	a := func(i int) string { return rs.requests[i].Session.ActivityID }
	if a(0) != a(1) {
		t.Error("same session got different activity IDs")
	}
	if a(0) == a(2) {
		t.Error("different sessions share an activity ID")
	}
	if a(3) == a(0) {
		t.Error("activity ID not rotated after Reset")
	}
	if rs.requests[0].Query.ID == rs.requests[1].Query.ID {
		t.Error("query IDs must be unique per call")
	}
}

func TestSend_SSEErrorEvent(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"object with message", `{"error_message":"rate limited","code":429}`, "rate limited"},
		{"object without message", `{"code":500}`, `{"code":500}`},
		{"string", `"upstream down"`, "upstream down"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stream := "event: FINAL_RESPONSE\ndata: {\"content_type\":\"atomic.textblock\",\"content\":\"partial\"}\n\n" +
				"event: assist.error\ndata: {\"content\":" + tt.content + "}\n\n"
			c, _ := newTestClient(t, "text/event-stream", stream, http.StatusOK)

			_, err := c.Send(context.Background(), "1", "x")
			var remote *RemoteError
			if !errors.As(err, &remote) {
				t.Fatalf("err = %v, want *RemoteError", err)
			}
			if remote.Message != tt.want {
				t.Errorf("message = %q, want %q", remote.Message, tt.want)
			}
			if errors.Is(err, ErrUnavailable) {
				t.Error("remote error must not match ErrUnavailable")
			}
		})
	}
}

// TestSend_SSEEmptyErrorKeepsReply verifies an ERROR event with empty string
// content does not discard the text already received.
func TestSend_SSEEmptyErrorKeepsReply(t *testing.T) {
	stream := "event: FINAL_RESPONSE\ndata: {\"content_type\":\"atomic.textblock\",\"content\":\"hello\"}\n\n" +
		"event: ERROR\ndata: {\"content\":\"\"}\n\n"
	c, _ := newTestClient(t, "text/event-stream", stream, http.StatusOK)

	reply, err := c.Send(context.Background(), "1", "x")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if reply != "hello" {
		t.Errorf("reply = %q, want %q", reply, "hello")
	}
}

// TestWithTimeout_CopiesClient verifies the timeout is applied to a copy,
// leaving a caller-supplied client untouched.
func TestWithTimeout_CopiesClient(t *testing.T) {
	hc := &http.Client{Timeout: time.Minute}
	c := NewClient("http://agent", "telegram-bot", WithHTTPClient(hc), WithTimeout(5*time.Second))

	if hc.Timeout != time.Minute {
		t.Errorf("caller client timeout changed to %v", hc.Timeout)
	}
	if c.client == hc || c.client.Timeout != 5*time.Second {
		t.Errorf("client timeout = %v, shared = %v", c.client.Timeout, c.client == hc)
	}
}

// TestSend_SSEInvalidChunkSkipped verifies a bad JSON chunk does not abort the stream.
func TestSend_SSEInvalidChunkSkipped(t *testing.T) {
	stream := "event: FINAL_RESPONSE\ndata: {not json\n\n" +
		"event: FINAL_RESPONSE\ndata: {\"content_type\":\"atomic.textblock\",\"content\":\"fine\"}\n\n"
	c, _ := newTestClient(t, "text/event-stream", stream, http.StatusOK)

	reply, err := c.Send(context.Background(), "1", "x")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if reply != "fine" {
		t.Errorf("reply = %q", reply)
	}
}

func TestSend_EmptyReplyIsMalformed(t *testing.T) {
	stream := "event: FINAL_RESPONSE\ndata: {\"content_type\":\"atomic.textblock\",\"content\":\"   \"}\n\n"
	c, _ := newTestClient(t, "text/event-stream", stream, http.StatusOK)

	_, err := c.Send(context.Background(), "1", "x")
	if !errors.Is(err, ErrEmptyReply) || !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("err = %v, want ErrEmptyReply", err)
	}
}

func TestSend_JSONReply(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		want        string
		wantErr     error
	}{
		{"text field", "application/json", `{"text":" hello ","data":{"price":1}}`, "hello", nil},
		{"content fallback", "application/json; charset=utf-8", `{"content":"from content"}`, "from content", nil},
		{"sniffed without content type", "", `  {"text":"sniffed"}`, "sniffed", nil},
		{"malformed", "application/json", `{"text":`, "", ErrMalformedResponse},
		{"wrong shape", "application/json", `["a","b"]`, "", ErrMalformedResponse},
		{"empty", "application/json", `{"text":""}`, "", ErrEmptyReply},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, tt.contentType, tt.body, http.StatusOK)
			reply, err := c.Send(context.Background(), "1", "x")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Send: %v", err)
			}
			if reply != tt.want {
				t.Errorf("reply = %q, want %q", reply, tt.want)
			}
		})
	}
}

func TestSend_JSONErrorField(t *testing.T) {
	c, _ := newTestClient(t, "application/json", `{"error":"unknown project"}`, http.StatusOK)
	_, err := c.Send(context.Background(), "1", "x")
	var remote *RemoteError
	if !errors.As(err, &remote) || remote.Message != "unknown project" {
		t.Fatalf("err = %v", err)
	}
}

// TestSend_HTTPErrorIsUnavailable verifies non-2xx statuses surface as
// *HTTPError matching ErrUnavailable.
func TestSend_HTTPErrorIsUnavailable(t *testing.T) {
	c, _ := newTestClient(t, "text/plain", "bad gateway", http.StatusBadGateway)

	_, err := c.Send(context.Background(), "1", "x")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("err = %v, want *HTTPError", err)
	}
	if httpErr.Status != http.StatusBadGateway || httpErr.Body != "bad gateway" {
		t.Errorf("HTTPError = %+v", httpErr)
	}
}

func TestSend_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(url, "telegram-bot", WithTimeout(2*time.Second))
	_, err := c.Send(context.Background(), "1", "x")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestSend_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(srv.URL, "telegram-bot", WithTimeout(50*time.Millisecond))
	_, err := c.Send(context.Background(), "1", "x")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestPing(t *testing.T) {
	status := http.StatusNotFound
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "telegram-bot")
	if err := c.Ping(context.Background()); err != nil {
		t.Errorf("404 should count as reachable: %v", err)
	}

	status = http.StatusServiceUnavailable
	if err := c.Ping(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("503 err = %v, want ErrUnavailable", err)
	}
}

func TestReadEvents(t *testing.T) {
	input := ": comment\r\n" +
		"event: a\r\n" +
		"data: line1\r\n" +
		"data: line2\r\n\r\n" +
		"data: orphan\n\n" +
		"event: b\n\n" +
		"event: c\n" +
		"data:{\"x\":1}"

	var got []sseEvent
	if err := readEvents(strings.NewReader(input), func(ev sseEvent) { got = append(got, ev) }); err != nil {
		t.Fatalf("readEvents: %v", err)
	}
	want := []sseEvent{
		{Name: "a", Data: "line1\nline2"},
		{Name: "c", Data: `{"x":1}`},
	}
	if len(got) != len(want) {
		t.Fatalf("events = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestNormalizeEventName(t *testing.T) {
	for in, want := range map[string]string{
		"assist.final_response": "FINAL_RESPONSE",
		"FINAL_RESPONSE":        "FINAL_RESPONSE",
		"a.b.error":             "B.ERROR",
		"error":                 "ERROR",
	} {
		if got := normalizeEventName(in); got != want {
			t.Errorf("normalizeEventName(%q) = %q, want %q", in, got, want)
		}
	}
}
