package session

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	sessionService "github.com/zhouzirui/podtalk/backend/internal/service/session"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsPingInterval = 54 * time.Second
	wsWriteTimeout = 10 * time.Second
)

type inboundMessage struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

type outgoingMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// wsConn 串行化写操作，gorilla 只允许一个并发写者
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) writeJSON(v any) error {
	data, err := sonic.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout))
}

// handleWebSocket 推送会话事件并接收播放器/聊天指令
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request, sess *sessionService.Session) {
	raw, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer raw.Close()
	conn := &wsConn{conn: raw}

	logger := h.logger.With(zap.String("session_id", sess.ID))
	logger.Info("websocket connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	events, unsubscribe := sess.Subscribe(64)
	defer unsubscribe()

	raw.SetReadDeadline(time.Now().Add(wsReadTimeout))
	raw.SetPongHandler(func(string) error {
		raw.SetReadDeadline(time.Now().Add(wsReadTimeout))
		return nil
	})

	h.send(conn, sess.ID, "snapshot", sess.Snapshot())
	go h.writeLoop(ctx, cancel, conn, sess.ID, events)

	for {
		_, data, err := raw.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("websocket read error", zap.Error(err))
			}
			return
		}
		raw.SetReadDeadline(time.Now().Add(wsReadTimeout))

		var msg inboundMessage
		if err := sonic.Unmarshal(data, &msg); err != nil {
			h.sendError(conn, sess.ID, "invalid message")
			continue
		}
		h.metrics.WSMessage("in", msg.Type)
		h.handleWSMessage(ctx, conn, sess, &msg)
	}
}

// writeLoop 转发会话事件并保持心跳，通道关闭表示会话已结束
func (h *Handler) writeLoop(ctx context.Context, cancel context.CancelFunc, conn *wsConn, sessionID string, events <-chan sessionService.Event) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				conn.mu.Lock()
				_ = conn.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"),
					time.Now().Add(wsWriteTimeout))
				conn.mu.Unlock()
				cancel()
				return
			}
			if !h.send(conn, sessionID, ev.Type, ev.Data) {
				cancel()
				return
			}
		case <-ticker.C:
			if err := conn.ping(); err != nil {
				cancel()
				return
			}
		}
	}
}

func (h *Handler) handleWSMessage(ctx context.Context, conn *wsConn, sess *sessionService.Session, msg *inboundMessage) {
	var err error
	switch msg.Type {
	case "player":
		var cmd sessionService.PlayerCommand
		if err = sonic.Unmarshal(msg.Data, &cmd); err == nil {
			_, err = sess.HandlePlayer(cmd)
		}
	case "chat":
		var payload struct {
			Open bool `json:"open"`
		}
		if err = sonic.Unmarshal(msg.Data, &payload); err == nil {
			_, err = sess.SetChatOpen(payload.Open)
		}
	case "message":
		var payload struct {
			Role string `json:"role"`
			Text string `json:"text"`
		}
		if err = sonic.Unmarshal(msg.Data, &payload); err == nil {
			_, err = sess.AddMessage(payload.Role, payload.Text)
		}
	case "connect":
		// 连接结果通过事件返回，不阻塞读循环
		go func() {
			if _, err := sess.Connect(context.WithoutCancel(ctx)); err != nil {
				_, message := connectFailure(err)
				h.sendError(conn, sess.ID, message)
			}
		}()
	case "disconnect":
		sess.Disconnect()
	case "ping":
		h.send(conn, sess.ID, "pong", nil)
	default:
		h.sendError(conn, sess.ID, "unknown message type: "+msg.Type)
		return
	}
	if err != nil {
		h.sendError(conn, sess.ID, err.Error())
	}
}

func (h *Handler) send(conn *wsConn, sessionID, msgType string, data any) bool {
	msg := outgoingMessage{
		Type:      msgType,
		SessionID: sessionID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
	if err := conn.writeJSON(msg); err != nil {
		h.logger.Debug("websocket write failed", zap.String("type", msgType), zap.Error(err))
		return false
	}
	h.metrics.WSMessage("out", msgType)
	return true
}

func (h *Handler) sendError(conn *wsConn, sessionID, message string) {
	h.send(conn, sessionID, "error", map[string]string{"message": message})
}
