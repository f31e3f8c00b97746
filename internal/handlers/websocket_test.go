package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"simple_calculator/internal/models"
	"simple_calculator/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// --- parseInterval unit tests ---

func TestParseInterval(t *testing.T) {
	h := NewHandler(&service.Service{}, nil)

	cases := []struct {
		name string
		u    string
		want time.Duration
	}{
		{"disabled_when_missing", "/ws", 0},
		{"interval_string_valid", "/ws?interval=200ms", 200 * time.Millisecond},
		{"interval_ms_valid", "/ws?interval_ms=150", 150 * time.Millisecond},
		{"interval_too_large", "/ws?interval=20s", 0},
		{"interval_ms_too_large", "/ws?interval_ms=20000", 0},
		{"interval_invalid_string", "/ws?interval=bogus", 0},
		{"interval_ms_invalid", "/ws?interval_ms=NaN", 0},
		{"both_present_interval_wins", "/ws?interval=2s&interval_ms=150", 2 * time.Second},
		{"both_present_invalid_interval_ms_used", "/ws?interval=bogus&interval_ms=250", 250 * time.Millisecond},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, tc.u, nil)
			c, _ := gin.CreateTestContext(w)
			c.Request = req
			got := h.parseInterval(c)
			if got != tc.want {
				t.Fatalf("got %v, want %v for %s", got, tc.want, tc.u)
			}
		})
	}
}

// --- websocket integration tests ---

type envelope struct {
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

// dialWS starts the full router and opens a session authenticated by ?token=.
func dialWS(t *testing.T, s *service.Service, query url.Values) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(newTestRouter(s))
	t.Cleanup(srv.Close)

	u, _ := url.Parse(srv.URL)
	u.Scheme = "ws"
	u.Path = "/ws"
	if query == nil {
		query = url.Values{}
	}
	query.Set("token", "valid")
	u.RawQuery = query.Encode()

	dialer := websocket.Dialer{HandshakeTimeout: 2 * time.Second}
	conn, _, err := dialer.Dial(u.String(), nil)
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) envelope {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	var env envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read: %v", err)
	}
	return env
}

func readState(t *testing.T, conn *websocket.Conn) models.CalculatorState {
	t.Helper()
	env := readEnvelope(t, conn)
	if env.Type != wsTypeState || len(env.Data) == 0 {
		t.Fatalf("expected state envelope, got %+v", env)
	}
	var st models.CalculatorState
	if err := json.Unmarshal(env.Data, &st); err != nil {
		t.Fatalf("unmarshal state: %v", err)
	}
	return st
}

func TestWebSocket_RequiresToken(t *testing.T) {
	srv := httptest.NewServer(newTestRouter(&service.Service{Authorization: &mockAuth{parseErr: errors.New("bad")}}))
	defer srv.Close()

	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	dialer := websocket.Dialer{HandshakeTimeout: 2 * time.Second}
	_, resp, err := dialer.Dial(u, nil)
	if err == nil {
		t.Fatalf("expected handshake failure")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 response, got %+v", resp)
	}
}

func TestWebSocket_PressSession(t *testing.T) {
	auth := &mockAuth{parseID: 42}
	mon := &mockMonitoring{state: models.CalculatorState{UserID: 42, Display: "0"}}
	calc := &mockCalculator{state: models.CalculatorState{UserID: 42, Display: "7"}}
	conn := dialWS(t, &service.Service{Authorization: auth, Monitoring: mon, Calculator: calc}, nil)

	// initial state on connect
	if st := readState(t, conn); st.Display != "0" {
		t.Fatalf("unexpected initial state: %+v", st)
	}
	if mon.lastUserID != 42 {
		t.Fatalf("initial state of user %d, want 42", mon.lastUserID)
	}

	if err := conn.WriteJSON(map[string]any{"type": "press", "key": "7"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if st := readState(t, conn); st.Display != "7" {
		t.Fatalf("unexpected state after press: %+v", st)
	}
	if calc.pressCalls != 1 || calc.lastUserID != 42 {
		t.Fatalf("unexpected service call: %+v", calc)
	}

	if err := conn.WriteJSON(map[string]any{"type": "press", "keys": []string{"+", "3", "="}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	readState(t, conn)
	if calc.seqCalls != 1 || len(calc.lastKeys) != 3 {
		t.Fatalf("expected one sequence of 3 keys, got %+v", calc)
	}

	if err := conn.WriteJSON(map[string]any{"type": "reset"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	readState(t, conn)
	if calc.resetCalls != 1 {
		t.Fatalf("expected reset call")
	}
}

func TestWebSocket_ErrorsKeepSessionOpen(t *testing.T) {
	auth := &mockAuth{parseID: 1}
	mon := &mockMonitoring{state: models.CalculatorState{UserID: 1, Display: "0"}}
	calc := &mockCalculator{err: errors.New("disk full")}
	conn := dialWS(t, &service.Service{Authorization: auth, Monitoring: mon, Calculator: calc}, nil)
	readState(t, conn)

	cases := []struct {
		msg  string
		want string
	}{
		{`not json`, "invalid message"},
		{`{"type":"dance"}`, "unknown message type"},
		{`{"type":"press","key":"1"}`, errPressKey},
	}
	for _, tc := range cases {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(tc.msg)); err != nil {
			t.Fatalf("write: %v", err)
		}
		env := readEnvelope(t, conn)
		if env.Type != wsTypeError || !strings.Contains(env.Error, tc.want) {
			t.Fatalf("message %s: expected error containing %q, got %+v", tc.msg, tc.want, env)
		}
	}

	// still answering
	if err := conn.WriteJSON(map[string]any{"type": "state"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if st := readState(t, conn); st.Display != "0" {
		t.Fatalf("unexpected state: %+v", st)
	}
}

func TestWebSocket_PeriodicRefresh(t *testing.T) {
	mon := &mockMonitoring{state: models.CalculatorState{UserID: 1, Display: "5"}}
	q := url.Values{}
	q.Set("interval_ms", "20")
	conn := dialWS(t, &service.Service{Authorization: &mockAuth{parseID: 1}, Monitoring: mon}, q)

	readState(t, conn)
	if st := readState(t, conn); st.Display != "5" {
		t.Fatalf("unexpected refreshed state: %+v", st)
	}
}

func TestWebSocket_InitialGetStateError_Closes(t *testing.T) {
	mon := &mockMonitoring{err: errors.New("boom")}
	conn := dialWS(t, &service.Service{Authorization: &mockAuth{parseID: 1}, Monitoring: mon}, nil)

	// The server should close immediately after failing initial GetState/WriteJSON
	_ = conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
	var raw json.RawMessage
	if err := conn.ReadJSON(&raw); err == nil {
		t.Fatalf("expected read error (closed), got message: %s", string(raw))
	}
}
