package websocket

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// Message is the standard message format pushed over WebSocket: timer
// ticks, time_up, and completed events for one quiz session.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allow all origins. Adjust this in production!
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Hub fans session events out to the browsers subscribed to each
// session code. The server is the only writer; clients just listen.
type Hub struct {
	mu         sync.RWMutex
	rooms      map[string]map[*Client]bool
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
}

func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	session string
	done    chan struct{}
}

func NewClient(hub *Hub, conn *websocket.Conn, sessionCode string) *Client {
	return &Client{
		hub:     hub,
		conn:    conn,
		send:    make(chan []byte, 256),
		session: sessionCode,
		done:    make(chan struct{}),
	}
}

// SessionEvent delivers a session engine event to every subscriber of
// that session. Implements the engine's event sink.
func (h *Hub) SessionEvent(code string, eventType string, data interface{}) {
	h.BroadcastMessage(code, eventType, data)
}

// BroadcastMessage marshals the message and then broadcasts it.
func (h *Hub) BroadcastMessage(sessionCode string, messageType string, data interface{}) {
	msg := Message{
		Type: messageType,
		Data: data,
	}

	messageBytes, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Error marshaling %s message: %v", messageType, err)
		return
	}
	h.broadcast(sessionCode, messageBytes)
}

func (h *Hub) broadcast(sessionCode string, message []byte) {
	h.mu.RLock()
	room := h.rooms[sessionCode]
	clients := make([]*Client, 0, len(room))
	for client := range room {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		select {
		case client.send <- message:
		default:
			log.Printf("Send channel full for client %p; unregistering client", client)
			h.unregister <- client
		}
	}
}

// Subscribers reports how many clients are listening on a session.
func (h *Hub) Subscribers(sessionCode string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[sessionCode])
}

// Run listens on the register and unregister channels and updates the
// hub state accordingly.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			if _, exists := h.rooms[client.session]; !exists {
				h.rooms[client.session] = make(map[*Client]bool)
			}
			h.rooms[client.session][client] = true
			log.Printf("Client %p subscribed to session %s. Total: %d", client, client.session, len(h.rooms[client.session]))
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				if room, exists := h.rooms[client.session]; exists {
					delete(room, client)
					if len(room) == 0 {
						delete(h.rooms, client.session)
					}
				}
				delete(h.clients, client)
				close(client.send)
				close(client.done)
				log.Printf("Client %p left session %s", client, client.session)
			}
			h.mu.Unlock()
		}
	}
}

// HandleWebSocket upgrades the HTTP connection and subscribes the
// client to its session's events.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	sessionCode := vars["session"]
	if sessionCode == "" {
		http.Error(w, "Missing session code", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	client := NewClient(h, conn, sessionCode)
	h.register <- client

	go client.writePump()
	go client.readPump()
}

// readPump drains the connection so pongs and close frames are
// processed. Inbound payloads are ignored; the stream is push-only.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("Unexpected close: %v", err)
			}
			break
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("Error writing message to client %p: %v", c, err)
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
