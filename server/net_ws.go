package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ClientConn 负责发送（写）数据到客户端的轻量包装
type ClientConn struct {
	ws      *websocket.Conn
	send    chan []byte
	cfg     WSConfig
	metrics *Metrics

	mu     sync.Mutex
	closed bool
}

func NewClientConn(ws *websocket.Conn, cfg WSConfig, metrics *Metrics) *ClientConn {
	return &ClientConn{
		ws:      ws,
		send:    make(chan []byte, cfg.SendBuffer),
		cfg:     cfg,
		metrics: metrics,
	}
}

// Enqueue 将要发送的消息压入队列（非阻塞，满则丢弃）
func (c *ClientConn) Enqueue(b []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- b:
	default:
		// 为了实时性直接丢弃，防止阻塞事件循环
		c.metrics.IncSendDropped()
	}
}

// Close 关闭发送队列，写协程写完剩余消息后关闭连接；可重复调用
func (c *ClientConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// writePump 独立协程，负责从 send 队列写出到 WS，并定期发送 ping
func (c *ClientConn) writePump() {
	ping := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ping.Stop()
		_ = c.ws.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ping.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump 读取客户端消息，解析信封后投递给协调器
func (c *ClientConn) readPump(coord *Coordinator, id PlayerID, log *zap.SugaredLogger) {
	defer c.ws.Close()
	// 读泵退出即视为断线，通知协调器在事件循环中清理
	defer func() { _ = coord.Disconnect(id) }()
	c.ws.SetReadLimit(c.cfg.ReadLimit)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	})

	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				log.Warnw("read error", "player", id, "err", err)
			}
			return
		}
		var env Envelope
		if err := json.Unmarshal(payload, &env); err != nil || env.Type == "" {
			coord.Metrics().IncInvalidDropped()
			continue
		}
		if err := coord.Deliver(id, env); err != nil {
			return
		}
	}
}

// WSHandler WebSocket 接入：/ws
type WSHandler struct {
	coord    *Coordinator
	cfg      WSConfig
	log      *zap.SugaredLogger
	upgrader websocket.Upgrader
}

func NewWSHandler(coord *Coordinator, cfg WSConfig, log *zap.SugaredLogger) *WSHandler {
	return &WSHandler{
		coord: coord,
		cfg:   cfg,
		log:   log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// 与浏览器客户端同源部署，放开来源检查
				return true
			},
		},
	}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnw("upgrade error", "remote", r.RemoteAddr, "err", err)
		return
	}

	id := NewPlayerID()
	client := NewClientConn(ws, h.cfg, h.coord.Metrics())
	go client.writePump()
	if err := h.coord.Connect(id, client); err != nil {
		client.Close()
		return
	}
	go client.readPump(h.coord, id, h.log)
}
