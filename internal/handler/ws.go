package handler

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"geosentry/api/internal/eventbus"
	"geosentry/api/internal/model"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

const (
	pingInterval = 30 * time.Second
	writeTimeout = 10 * time.Second
)

// wsMessage is a message sent from a client after connecting, e.g. to
// narrow the stream to a single device or geofence.
type wsMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Client is one live WebSocket connection subscribed to the transition stream.
type Client struct {
	ID         string
	Conn       *websocket.Conn
	Send       chan []byte
	Hub        *WSHub
	DeviceID   string
	GeofenceID string
}

// WSHub drains the event bus's local transition channel and fans each
// transition out to every connected client, optionally narrowed by the
// client's requested device_id/geofence_id filter.
type WSHub struct {
	bus *eventbus.Bus
	log *zap.Logger

	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

func NewWSHub(bus *eventbus.Bus, log *zap.Logger) *WSHub {
	return &WSHub{
		bus:        bus,
		log:        log,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run drains the bus's local channel and the register/unregister channels
// until the bus's local channel is closed. Call it once in its own goroutine.
func (h *WSHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
			}
			h.mu.Unlock()

		case evt, ok := <-h.bus.Local():
			if !ok {
				return
			}
			h.broadcast(evt)
		}
	}
}

func (h *WSHub) broadcast(evt model.TransitionEvent) {
	data, err := json.Marshal(gin.H{"type": "transition", "data": evt})
	if err != nil {
		h.log.Error("ws: marshal transition failed", zap.Error(err))
		return
	}

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		if c.DeviceID != "" && c.DeviceID != evt.DeviceID.String() {
			continue
		}
		if c.GeofenceID != "" && c.GeofenceID != evt.GeofenceID.String() {
			continue
		}
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.Send <- data:
		default:
			h.unregister <- c
		}
	}
}

// ClientCount reports the number of live connections.
func (h *WSHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ReadPump drains client-initiated messages (filter updates, pings).
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(64 * 1024)
	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			break
		}

		var msg wsMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		switch msg.Type {
		case "subscribe":
			var filter struct {
				DeviceID   string `json:"device_id"`
				GeofenceID string `json:"geofence_id"`
			}
			if err := json.Unmarshal(msg.Data, &filter); err == nil {
				c.DeviceID = filter.DeviceID
				c.GeofenceID = filter.GeofenceID
			}
		case "ping":
			select {
			case c.Send <- []byte(`{"type":"pong"}`):
			default:
			}
		}
	}
}

// WritePump drains c.Send to the socket, pinging on pingInterval.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// WSHandler upgrades HTTP requests onto the transition stream.
type WSHandler struct {
	hub *WSHub
	log *zap.Logger
}

func NewWSHandler(hub *WSHub, log *zap.Logger) *WSHandler {
	return &WSHandler{hub: hub, log: log}
}

// Events upgrades the connection and streams geofence transitions.
// @Summary Live transition stream
// @Description Upgrade to a WebSocket streaming geofence enter/exit transitions
// @Tags Events
// @Security BearerAuth
// @Router /ws/events [get]
func (h *WSHandler) Events(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("ws: upgrade failed", zap.Error(err))
		return
	}

	clientID := c.Query("client_id")
	if clientID == "" {
		clientID = uuid.New().String()
	}

	client := &Client{
		ID:         clientID,
		Conn:       conn,
		Send:       make(chan []byte, 256),
		Hub:        h.hub,
		DeviceID:   c.Query("device_id"),
		GeofenceID: c.Query("geofence_id"),
	}

	client.Hub.register <- client
	go client.WritePump()
	go client.ReadPump()

	welcome, _ := json.Marshal(gin.H{"type": "connected", "client_id": clientID})
	select {
	case client.Send <- welcome:
	default:
	}
}

// Stats reports how many clients are currently streaming.
// @Summary WebSocket stats
// @Description Report the number of connected transition-stream clients
// @Tags Events
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Router /ws/stats [get]
func (h *WSHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"connected_clients": h.hub.ClientCount()})
}
