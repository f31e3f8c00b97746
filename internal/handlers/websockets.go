package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"simple_calculator/internal/calculator"
	"simple_calculator/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Send/receive timing configuration and message size limits.
const (
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = (pongWait * 9) / 10
	maxMsgSize       = 1 << 12 // 4 KB
	maxInterval      = 10 * time.Second
	maxIntervalMilli = 10_000 // 10s in ms
)

// Message types exchanged over the socket.
const (
	wsTypePress = "press"
	wsTypeReset = "reset"
	wsTypeState = "state"
	wsTypeError = "error"
)

// Envelope used for server -> client WebSocket messages.
type wsEnvelope struct {
	Type  string      `json:"type"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

// wsRequest is a client -> server message:
// {"type":"press","key":"7"}, {"type":"press","keys":["7","+"]},
// {"type":"reset"} or {"type":"state"}.
type wsRequest struct {
	Type string   `json:"type"`
	Key  string   `json:"key,omitempty"`
	Keys []string `json:"keys,omitempty"`

	err error // set by the reader when the frame was not valid JSON
}

var (
	errUnknownMessageType = errors.New("unknown message type")
	errTooManyKeys        = fmt.Errorf("at most %d keys per message", maxKeysPerRequest)
)

// Upgrader for HTTP -> WebSocket. Consider tightening CheckOrigin in production.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true }, // TODO: restrict origins for production
}

// wsConnect runs a live keypad session for the authenticated user. Every
// request is answered with the new state or an error; with ?interval= the
// state is also pushed periodically, which keeps several open tabs in sync.
func (h *Handler) wsConnect(c *gin.Context) {
	uid := userID(c)
	interval := h.parseInterval(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if h.log != nil {
			h.log.Errorw("ws_upgrade_failed", "err", err)
		}
		return
	}
	defer func() { _ = conn.Close() }()

	// Configure read limits and pong handler to extend read deadline.
	conn.SetReadLimit(maxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// The reader only decodes; every write happens on this goroutine.
	requests := make(chan wsRequest)
	done := make(chan struct{})
	stop := make(chan struct{})
	defer close(stop)
	go h.startReader(conn, requests, done, stop)

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	var refresh <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		refresh = ticker.C
	}

	ctx := c.Request.Context()

	// Send initial state immediately.
	if err := h.sendState(ctx, conn, uid); err != nil {
		if h.log != nil {
			h.log.Infow("ws_write_failed_initial", "err", err)
		}
		return
	}

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				if h.log != nil {
					h.log.Infow("ws_ping_failed", "err", err)
				}
				return
			}
		case <-refresh:
			if err := h.sendState(ctx, conn, uid); err != nil {
				if h.log != nil {
					h.log.Infow("ws_write_failed", "err", err)
				}
				return
			}
		case req := <-requests:
			if err := h.handleRequest(ctx, conn, uid, req); err != nil {
				if h.log != nil {
					h.log.Infow("ws_write_failed", "err", err)
				}
				return
			}
		}
	}
}

// parseInterval reads ?interval=2s or ?interval_ms=2000 with bounds.
// Zero means no periodic push.
func (h *Handler) parseInterval(c *gin.Context) time.Duration {
	if s := c.Query("interval"); s != "" {
		if d, err := time.ParseDuration(s); err == nil && d > 0 && d <= maxInterval {
			return d
		}
	}

	if ms := c.Query("interval_ms"); ms != "" {
		if v, err := strconv.Atoi(ms); err == nil && v > 0 && v <= maxIntervalMilli {
			return time.Duration(v) * time.Millisecond
		}
	}

	return 0
}

// startReader decodes client frames into requests until the connection
// closes, then closes done. It gives up on a pending send once stop closes.
func (h *Handler) startReader(conn *websocket.Conn, requests chan<- wsRequest, done chan<- struct{}, stop <-chan struct{}) {
	defer close(done)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if h.log != nil {
				h.log.Infow("ws_read_closed", "err", err)
			}
			return
		}
		var req wsRequest
		if err := json.Unmarshal(data, &req); err != nil {
			req = wsRequest{err: fmt.Errorf("invalid message: %w", err)}
		}
		select {
		case requests <- req:
		case <-stop:
			return
		}
	}
}

// handleRequest answers one client request. Only write errors are returned;
// request failures are reported to the client and the session goes on.
func (h *Handler) handleRequest(ctx context.Context, conn *websocket.Conn, uid int, req wsRequest) error {
	if req.err != nil {
		return writeEnvelope(conn, wsEnvelope{Type: wsTypeError, Error: req.err.Error()})
	}

	var (
		st  models.CalculatorState
		err error
	)
	switch req.Type {
	case wsTypePress:
		switch {
		case len(req.Keys) > maxKeysPerRequest:
			err = errTooManyKeys
		case len(req.Keys) > 0:
			st, err = h.services.Calculator.PressSequence(ctx, uid, req.Keys)
		default:
			st, err = h.services.Calculator.Press(ctx, uid, req.Key)
		}
	case wsTypeReset:
		st, err = h.services.Calculator.Reset(ctx, uid)
	case wsTypeState:
		st, err = h.services.Monitoring.GetState(ctx, uid)
	default:
		err = fmt.Errorf("%w %q", errUnknownMessageType, req.Type)
	}

	if err != nil {
		return writeEnvelope(conn, wsEnvelope{Type: wsTypeError, Error: h.wsErrorMessage(err, uid, req)})
	}
	return writeEnvelope(conn, wsEnvelope{Type: wsTypeState, Data: st})
}

// wsErrorMessage hides storage errors from the client and logs them instead.
func (h *Handler) wsErrorMessage(err error, uid int, req wsRequest) string {
	switch {
	case errors.Is(err, calculator.ErrUnknownKey),
		errors.Is(err, errUnknownMessageType),
		errors.Is(err, errTooManyKeys):
		return err.Error()
	}
	if h.log != nil {
		h.log.Errorw("ws_request_failed", "err", err, "user_id", uid, "type", req.Type)
	}
	if req.Type == wsTypeState {
		return errGetState
	}
	if req.Type == wsTypeReset {
		return errResetCalculator
	}
	return errPressKey
}

// sendState fetches and writes the current state with a write deadline.
func (h *Handler) sendState(ctx context.Context, conn *websocket.Conn, uid int) error {
	st, err := h.services.Monitoring.GetState(ctx, uid)
	if err != nil {
		if h.log != nil {
			h.log.Errorw("ws_get_state_failed", "err", err)
		}
		return err
	}
	return writeEnvelope(conn, wsEnvelope{Type: wsTypeState, Data: st})
}

func writeEnvelope(conn *websocket.Conn, env wsEnvelope) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(env)
}
