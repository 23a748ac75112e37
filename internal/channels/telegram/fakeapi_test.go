package telegram

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/mymmrac/telego"

	"github.com/skelcrypto/skelbot/internal/bus"
	"github.com/skelcrypto/skelbot/internal/config"
)

const (
	testToken       = "123456:AAHdqTcvCH1vGWJxfSeofSAs0K5PALDsaw1"
	testBotID       = 999
	testBotUsername = "skel_test_bot"
)

type apiCall struct {
	Method string
	Body   map[string]any
}

// fakeAPI is a minimal Bot API server recording every call.
type fakeAPI struct {
	mu    sync.Mutex
	calls []apiCall

	// rejectHTML makes sendMessage fail with a parse error when parse_mode is set.
	rejectHTML   bool
	failTyping   bool
	memberStatus string
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	raw, _ := io.ReadAll(r.Body)
	body := map[string]any{}
	_ = json.Unmarshal(raw, &body)

	f.mu.Lock()
	f.calls = append(f.calls, apiCall{Method: method, Body: body})
	rejectHTML := f.rejectHTML
	failTyping := f.failTyping
	status := f.memberStatus
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch method {
	case "sendMessage":
		if rejectHTML && body["parse_mode"] != nil {
			io.WriteString(w, `{"ok":false,"error_code":400,"description":"Bad Request: can't parse entities: Unsupported start tag \"foo\""}`)
			return
		}
		io.WriteString(w, `{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":1,"type":"private"}}}`)
	case "sendChatAction":
		if failTyping {
			io.WriteString(w, `{"ok":false,"error_code":400,"description":"Bad Request: not enough rights to send actions"}`)
			return
		}
		io.WriteString(w, `{"ok":true,"result":true}`)
	case "getMe":
		io.WriteString(w, `{"ok":true,"result":{"id":999,"is_bot":true,"first_name":"Skel","username":"skel_test_bot"}}`)
	case "getChatMember":
		if status == "" {
			status = "member"
		}
		io.WriteString(w, `{"ok":true,"result":{"status":"`+status+`","user":{"id":1,"is_bot":false,"first_name":"A"}}}`)
	default:
		io.WriteString(w, `{"ok":true,"result":true}`)
	}
}

func (f *fakeAPI) callsTo(method string) []apiCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []apiCall
	for _, c := range f.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// recordingHandler captures inbound messages and answers with reply.
type recordingHandler struct {
	mu    sync.Mutex
	msgs  []bus.InboundMessage
	reply *bus.OutboundMessage
}

func (h *recordingHandler) Handle(ctx context.Context, msg bus.InboundMessage) (*bus.OutboundMessage, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.msgs = append(h.msgs, msg)
	if h.reply == nil {
		return nil, nil
	}
	out := *h.reply
	return &out, nil
}

func (h *recordingHandler) received() []bus.InboundMessage {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]bus.InboundMessage(nil), h.msgs...)
}

// newTestChannel wires a Channel to a fake Bot API with a known identity.
func newTestChannel(t *testing.T, tcfg config.TelegramConfig, wh config.WebhookConfig, h *recordingHandler) (*Channel, *fakeAPI) {
	t.Helper()
	api := &fakeAPI{}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	tcfg.Token = testToken
	if tcfg.SendRate == 0 {
		tcfg.SendRate = 1000
	}
	ch, err := New(tcfg, wh, h.Handle, WithBotOptions(
		telego.WithAPIServer(srv.URL),
		telego.WithHTTPClient(srv.Client()),
		telego.WithDiscardLogger(),
	))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ch.setIdentity(testBotID, testBotUsername)
	return ch, api
}
