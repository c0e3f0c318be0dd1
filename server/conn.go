package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/tailored-agentic-units/relay/event"
	"github.com/tailored-agentic-units/relay/mux"
	"github.com/tailored-agentic-units/relay/relay"
)

// conn is one WebSocket connection. A single socket may address many
// sessions: each subscribed session gets its own pump goroutine draining
// the mux subscription, and every write goes through one mutex with a
// deadline. A write that misses the deadline tears the whole connection
// down; the client is expected to reconnect and replay.
type conn struct {
	ws     *websocket.Conn
	id     string
	relay  *relay.Relay
	logger *slog.Logger

	writeTimeout time.Duration
	writeMu      sync.Mutex

	mu   sync.Mutex
	subs map[string]*mux.Subscription

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

func newConn(ws *websocket.Conn, r *relay.Relay, logger *slog.Logger, writeTimeout time.Duration) *conn {
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.Must(uuid.NewV7()).String()

	return &conn{
		ws:           ws,
		id:           id,
		relay:        r,
		logger:       logger.With(slog.String("conn_id", id)),
		writeTimeout: writeTimeout,
		subs:         make(map[string]*mux.Subscription),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// run reads frames until the socket dies, then detaches every session.
func (c *conn) run() {
	defer c.close()

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug("read failed", slog.String("error", err.Error()))
			}
			return
		}

		var frame clientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.sendError("", "invalid frame: "+err.Error())
			continue
		}
		c.handleFrame(frame)
	}
}

func (c *conn) handleFrame(frame clientFrame) {
	if frame.SessionID == "" {
		c.sendError("", "session_id is required")
		return
	}

	switch frame.Type {
	case FrameSubscribe:
		c.handleSubscribe(frame.SessionID)
	case FrameUnsubscribe:
		c.handleUnsubscribe(frame.SessionID)
	case FrameReconnect:
		c.handleReconnect(frame)
	case FrameHeartbeat:
		c.handleHeartbeat(frame.SessionID)
	case FramePermissionRespond, FrameQuestionRespond, FramePlanApprovalRespond, FrameCommitApprovalRespond:
		c.handleRespond(frame)
	default:
		c.sendError(frame.SessionID, fmt.Sprintf("unknown frame type %q", frame.Type))
	}
}

func (c *conn) handleSubscribe(sessionID string) {
	sub, err := c.relay.Subscribe(sessionID, c.id)
	if err != nil {
		c.sendError(sessionID, err.Error())
		return
	}
	c.startPump(sessionID, sub)
}

func (c *conn) handleUnsubscribe(sessionID string) {
	c.mu.Lock()
	delete(c.subs, sessionID)
	c.mu.Unlock()

	// Closing the subscription makes its pump exit.
	c.relay.Unsubscribe(sessionID, c.id)
}

func (c *conn) handleReconnect(frame clientFrame) {
	c.mu.Lock()
	_, attached := c.subs[frame.SessionID]
	c.mu.Unlock()
	if attached {
		// The pump for this session is still running, so the client missed
		// nothing and a snapshot would interleave with the pump's writes.
		// Acknowledge with an empty replay; a client that wants a real
		// resync unsubscribes first.
		c.send(event.NewEnvelope(frame.SessionID, 0, event.ReplayDone{Count: 0}))
		return
	}

	var lastSeen time.Time
	if frame.LastTimestamp != nil {
		lastSeen = *frame.LastTimestamp
	}

	sub, catchUp, err := c.relay.Reconnect(frame.SessionID, c.id, lastSeen)
	if err != nil {
		if errors.Is(err, relay.ErrSessionNotFound) {
			c.sendError(frame.SessionID, "session not found")
		} else {
			c.sendError(frame.SessionID, err.Error())
		}
		return
	}

	// The snapshot goes out before the pump starts so that live envelopes
	// queued during the replay stay behind it. A failed write detaches the
	// just-attached subscription here; close only detaches sessions that
	// made it into c.subs.
	for _, env := range catchUp {
		if err := c.writeJSON(env); err != nil {
			c.relay.Unsubscribe(frame.SessionID, c.id)
			c.close()
			return
		}
	}
	c.startPump(frame.SessionID, sub)
}

func (c *conn) handleHeartbeat(sessionID string) {
	status, err := c.relay.Heartbeat(sessionID)
	if err != nil {
		c.send(heartbeatFrame{Type: FrameHeartbeat, SessionID: sessionID, Status: StatusNotFound})
		return
	}

	c.send(heartbeatFrame{
		Type:       FrameHeartbeat,
		SessionID:  sessionID,
		Status:     StatusOK,
		Buffered:   &status.Buffered,
		MaxSeq:     &status.MaxSeq,
		Prompting:  &status.Prompting,
		PromptKind: status.PromptKind,
	})
}

func (c *conn) handleRespond(frame clientFrame) {
	if frame.RequestID == "" {
		c.sendError(frame.SessionID, "request_id is required")
		return
	}

	resp, err := frame.response()
	if err != nil {
		c.sendError(frame.SessionID, err.Error())
		return
	}

	if err := c.relay.Resolve(frame.SessionID, frame.RequestID, resp); err != nil {
		if errors.Is(err, relay.ErrSessionNotFound) {
			c.sendError(frame.SessionID, "session not found")
		} else {
			c.sendError(frame.SessionID, err.Error())
		}
	}
}

// startPump registers the subscription and spawns its pump goroutine.
// At most one pump runs per (connection, session); a duplicate subscribe
// leaves the running pump in place. A subscription arriving after close
// has run is detached on the spot, since close only covers registered
// sessions.
func (c *conn) startPump(sessionID string, sub *mux.Subscription) {
	c.mu.Lock()
	if c.subs == nil {
		c.mu.Unlock()
		c.relay.Unsubscribe(sessionID, c.id)
		return
	}
	if _, ok := c.subs[sessionID]; ok {
		c.mu.Unlock()
		return
	}
	c.subs[sessionID] = sub
	c.mu.Unlock()

	go c.pump(sessionID, sub)
}

// pump forwards envelopes from one session's subscription to the socket.
func (c *conn) pump(sessionID string, sub *mux.Subscription) {
	for {
		env, err := sub.Next(c.ctx)
		if err != nil {
			return
		}
		if err := c.writeJSON(env); err != nil {
			c.logger.Warn("write failed, dropping connection",
				slog.String("session_id", sessionID),
				slog.String("error", err.Error()))
			c.close()
			return
		}
	}
}

func (c *conn) writeJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.ws.WriteJSON(v)
}

// send writes a control frame, tearing the connection down on failure.
func (c *conn) send(v any) {
	if err := c.writeJSON(v); err != nil {
		c.close()
	}
}

func (c *conn) sendError(sessionID, message string) {
	c.send(errorFrame{Type: FrameError, SessionID: sessionID, Message: message})
}

// close detaches every session and closes the socket. Safe to call from
// any goroutine, effective once. Closing the websocket also unblocks the
// read loop when a pump initiated the teardown.
func (c *conn) close() {
	c.closeOnce.Do(func() {
		c.cancel()

		c.mu.Lock()
		subs := c.subs
		c.subs = nil
		c.mu.Unlock()

		for sessionID := range subs {
			c.relay.Unsubscribe(sessionID, c.id)
		}

		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
			time.Now().Add(time.Second))
		_ = c.ws.Close()

		c.logger.Debug("connection closed")
	})
}
