package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"wisefido-vitalsync/internal/view"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	wsSendBuffer   = 16
	wsWriteTimeout = 5 * time.Second
)

// HubMessage 一条 websocket 推送
type HubMessage struct {
	Type   string       `json:"type"` // "frame" | "notice"
	Frame  *view.Frame  `json:"frame,omitempty"`
	Notice *view.Notice `json:"notice,omitempty"`
}

type wsClient struct {
	send chan []byte
}

// ViewHub 面向浏览器的渲染端：保存最新 frame 和最后一条 notice，并推送给
// websocket 订阅者。慢订阅者直接断开，不阻塞同步客户端
type ViewHub struct {
	upgrader websocket.Upgrader
	logger   *zap.Logger

	mu      sync.Mutex
	latest  *HubMessage
	notice  *HubMessage
	clients map[*wsClient]struct{}
}

func NewViewHub(logger *zap.Logger) *ViewHub {
	return &ViewHub{
		upgrader: websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 4096},
		logger:   logger,
		clients:  make(map[*wsClient]struct{}),
	}
}

func (h *ViewHub) Render(_ context.Context, frame view.Frame) error {
	msg := &HubMessage{Type: "frame", Frame: &frame}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal frame: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.latest = msg
	h.broadcastLocked(data)
	return nil
}

func (h *ViewHub) Notify(_ context.Context, notice view.Notice) error {
	msg := &HubMessage{Type: "notice", Notice: &notice}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal notice: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.notice = msg
	h.broadcastLocked(data)
	return nil
}

// LastNotice 最后一条 notice，没有时为 nil
func (h *ViewHub) LastNotice() *view.Notice {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.notice == nil {
		return nil
	}
	n := *h.notice.Notice
	return &n
}

func (h *ViewHub) broadcastLocked(data []byte) {
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.logger.Warn("Dropping slow websocket subscriber")
			h.removeLocked(c)
		}
	}
}

func (h *ViewHub) removeLocked(c *wsClient) {
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// register 添加订阅者，并先推送当前 frame 和 notice
func (h *ViewHub) register() *wsClient {
	c := &wsClient{send: make(chan []byte, wsSendBuffer)}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, msg := range []*HubMessage{h.notice, h.latest} {
		if msg == nil {
			continue
		}
		if data, err := json.Marshal(msg); err == nil {
			c.send <- data
		}
	}
	h.clients[c] = struct{}{}
	return c
}

func (h *ViewHub) unregister(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

// Subscribers 当前订阅者数量
func (h *ViewHub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close 断开所有订阅者
func (h *ViewHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.removeLocked(c)
	}
}

// ServeWS GET /api/ws
func (h *ViewHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}
	c := h.register()
	h.logger.Debug("Websocket subscriber connected", zap.String("remote", r.RemoteAddr))

	go h.writeLoop(conn, c)

	// 读端只用于检测断开，订阅者不发送消息
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.unregister(c)
	_ = conn.Close()
}

func (h *ViewHub) writeLoop(conn *websocket.Conn, c *wsClient) {
	defer conn.Close()
	for data := range c.send {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.unregister(c)
			return
		}
	}
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
