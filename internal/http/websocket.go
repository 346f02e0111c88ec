package http

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"gpio_control_server/internal/lockout"
	"gpio_control_server/internal/motion"
	"gpio_control_server/internal/switches"
	"gpio_control_server/pkg/logger"
)

// WebSocket upgrader configuration
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Origins are already filtered by the CORS middleware
		return true
	},
}

// WebSocketHub fans device events out to every connected client
type WebSocketHub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	quit       chan struct{}
	mutex      sync.RWMutex
	log        *logger.Logger
}

// WebSocketMessage represents a message sent through WebSocket
type WebSocketMessage struct {
	Type      string      `json:"type"`
	Timestamp string      `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// NewWebSocketHub creates a new WebSocket hub
func NewWebSocketHub(log *logger.Logger) *WebSocketHub {
	return &WebSocketHub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		quit:       make(chan struct{}),
		log:        log.WithComponent("websocket"),
	}
}

// Run serves the hub until Stop is called
func (h *WebSocketHub) Run() {
	h.log.Info("WebSocket hub started")

	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			n := len(h.clients)
			h.mutex.Unlock()
			h.log.Logger.Debug().Int("clients", n).Msg("WebSocket client connected")

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			n := len(h.clients)
			h.mutex.Unlock()
			h.log.Logger.Debug().Int("clients", n).Msg("WebSocket client disconnected")

		case message := <-h.broadcast:
			h.mutex.Lock()
			for client := range h.clients {
				if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
					h.log.Logger.Warn().Err(err).Msg("Error sending message to WebSocket client")
					client.Close()
					delete(h.clients, client)
				}
			}
			h.mutex.Unlock()

		case <-h.quit:
			h.mutex.Lock()
			for client := range h.clients {
				client.Close()
				delete(h.clients, client)
			}
			h.mutex.Unlock()
			return
		}
	}
}

// Stop closes every client and ends Run
func (h *WebSocketHub) Stop() {
	close(h.quit)
}

// ClientCount returns the number of connected clients
func (h *WebSocketHub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// send queues a message; a full queue drops it so device commands never wait on slow clients
func (h *WebSocketHub) send(msgType string, data interface{}) {
	message := WebSocketMessage{
		Type:      msgType,
		Timestamp: time.Now().Format(time.RFC3339),
		Data:      data,
	}
	payload, err := json.Marshal(message)
	if err != nil {
		h.log.Logger.Error().Err(err).Str("type", msgType).Msg("Error marshaling WebSocket message")
		return
	}
	select {
	case h.broadcast <- payload:
	default:
		h.log.Logger.Warn().Str("type", msgType).Msg("WebSocket queue full, message dropped")
	}
}

// Movement broadcasts a stepper movement log line
func (h *WebSocketHub) Movement(ev motion.Event) {
	h.send("movement", ev)
}

// SwitchEdge broadcasts a detected switch edge
func (h *WebSocketHub) SwitchEdge(ev switches.Event) {
	h.send("switch_edge", ev)
}

// Lockout broadcasts lockout changes
func (h *WebSocketHub) Lockout(ev lockout.Event) {
	h.send("lockout", ev)
}

// HandleWebSocket handles WebSocket connections
func (h *WebSocketHub) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Logger.Error().Err(err).Msg("Failed to upgrade to WebSocket")
		return
	}

	h.log.Logger.Debug().Str("remote", c.ClientIP()).Msg("New WebSocket connection")

	select {
	case h.register <- conn:
	case <-h.quit:
		conn.Close()
		return
	}

	go func() {
		defer func() {
			select {
			case h.unregister <- conn:
			case <-h.quit:
			}
		}()

		// Clients only listen; reads keep the connection alive and notice closes
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					h.log.Logger.Warn().Err(err).Msg("WebSocket error")
				}
				return
			}
		}
	}()
}
