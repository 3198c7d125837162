package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tcolgate/entropycam/internal/detector"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	writeWait  = 10 * time.Second
	maxMsgSize = 512
	sendBuffer = 16
)

// wsMessage frames an event for plain websocket clients.
type wsMessage struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// wsHub streams detector events as JSON text frames to plain websocket
// clients. A text frame of "on" or "off" from a client drives the detector
// the same way the socket.io motion event does.
type wsHub struct {
	det      *detector.Detector
	log      *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

type wsClient struct {
	hub  *wsHub
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func newWSHub(det *detector.Detector, checkOrigin func(*http.Request) bool, log *slog.Logger) *wsHub {
	return &wsHub{
		det: det,
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     checkOrigin,
		},
		clients: map[*wsClient]struct{}{},
	}
}

func (h *wsHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &wsClient{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.log.Info("websocket client connected", "remote", r.RemoteAddr)

	go c.writePump()
	go c.readPump()
}

// Emit queues the event for every client, dropping it for clients that
// are not keeping up.
func (h *wsHub) Emit(event string, payload interface{}) {
	msg, err := json.Marshal(wsMessage{Event: event, Data: payload})
	if err != nil {
		h.log.Warn("could not encode event", "event", event, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.log.Debug("websocket client too slow, dropping event", "event", event)
		}
	}
}

func (h *wsHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (c *wsClient) close() {
	c.once.Do(func() {
		close(c.done)
		c.hub.mu.Lock()
		delete(c.hub.clients, c)
		c.hub.mu.Unlock()
		c.conn.Close()

		// a departing client stops detection, as with socket.io
		c.hub.det.Toggle(detector.CommandOff)
		c.hub.log.Info("websocket client disconnected")
	})
}

func (c *wsClient) reply(msg interface{}) {
	b, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case c.send <- b:
	default:
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *wsClient) readPump() {
	defer c.close()

	c.conn.SetReadLimit(maxMsgSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn("websocket error", "error", err)
			}
			return
		}

		state := c.hub.det.Toggle(strings.TrimSpace(string(payload)))
		c.reply(wsMessage{Event: detector.EventAck, Data: detector.Ack{Data: state}})
	}
}
