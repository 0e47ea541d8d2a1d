package websocket

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"floodwatch/models"
)

// broadcastMessage carries an encoded payload and the device it concerns.
// An empty device means the message goes to every client.
type broadcastMessage struct {
	device  string
	payload []byte
}

// Hub maintains the set of active clients and pushes readings, derived
// metrics and alerts to them. Clients may subscribe to specific device
// IDs; a client with no subscriptions receives everything.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan broadcastMessage
	register   chan *Client
	unregister chan *Client
	upgrader   websocket.Upgrader
	mutex      sync.RWMutex
}

// Client represents a websocket client connection
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	id      string
	devices map[string]bool
	mutex   sync.RWMutex
}

// NewHub creates a hub that accepts connections from the given origins
func NewHub(allowedOrigins []string) *Hub {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = true
	}

	return &Hub{
		broadcast:  make(chan broadcastMessage, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed[origin]
			},
		},
	}
}

// Run starts the hub loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mutex.Unlock()
			log.Printf("Client %s registered, total clients: %d", client.id, total)

			welcome := models.WebSocketMessage{
				Type:      "connection",
				Data:      map[string]string{"status": "connected", "client_id": client.id},
				Timestamp: time.Now(),
			}
			if msg, err := json.Marshal(welcome); err == nil {
				client.trySend(msg)
			}

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				log.Printf("Client %s unregistered, total clients: %d", client.id, len(h.clients))
			}
			h.mutex.Unlock()

		case message := <-h.broadcast:
			h.mutex.RLock()
			for client := range h.clients {
				if message.device != "" && !client.wantsDevice(message.device) {
					continue
				}
				client.trySend(message.payload)
			}
			h.mutex.RUnlock()
		}
	}
}

func (h *Hub) push(msgType, deviceID string, data interface{}) {
	message := models.WebSocketMessage{
		Type:      msgType,
		DeviceID:  deviceID,
		Data:      data,
		Timestamp: time.Now(),
	}

	payload, err := json.Marshal(message)
	if err != nil {
		log.Printf("Failed to marshal %s message: %v", msgType, err)
		return
	}

	select {
	case h.broadcast <- broadcastMessage{device: deviceID, payload: payload}:
	default:
		log.Printf("Broadcast channel full, dropping %s message", msgType)
	}
}

// BroadcastReading pushes a stored reading to subscribers of its device
func (h *Hub) BroadcastReading(reading *models.Reading) {
	h.push("reading", reading.DeviceID, reading)
}

// BroadcastMetrics pushes a device's per-cycle derived metrics
func (h *Hub) BroadcastMetrics(deviceID string, metrics *models.DeviceMetrics) {
	h.push("metrics", deviceID, metrics)
}

// BroadcastAnomalies pushes the current anomaly detection list for a device
func (h *Hub) BroadcastAnomalies(deviceID string, alerts []models.AnomalyAlert) {
	h.push("anomalies", deviceID, alerts)
}

// BroadcastAlert pushes a smart alert notification to all clients
func (h *Hub) BroadcastAlert(alert *models.AlertNotification) {
	h.push("alert", "", alert)
}

// BroadcastNodes pushes the refreshed node map view to all clients
func (h *Hub) BroadcastNodes(nodes []models.DeviceNode) {
	h.push("nodes", "", nodes)
}

// BroadcastStats pushes system statistics to all clients
func (h *Hub) BroadcastStats(stats interface{}) {
	h.push("stats", "", stats)
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// HandleWebSocket upgrades the connection and starts the client pumps
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	client := &Client{
		hub:     h,
		conn:    conn,
		send:    make(chan []byte, 256),
		id:      uuid.NewString(),
		devices: make(map[string]bool),
	}

	client.hub.register <- client

	go client.writePump()
	go client.readPump()
}

func (c *Client) trySend(payload []byte) {
	select {
	case c.send <- payload:
	default:
		log.Printf("Client %s send buffer full, dropping message", c.id)
	}
}

func (c *Client) wantsDevice(deviceID string) bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.devices) == 0 || c.devices[deviceID]
}

// readPump pumps messages from the websocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		c.handleMessage(message)
	}
}

// writePump pumps messages from the hub to the websocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("WebSocket write error: %v", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage processes messages received from the client
func (c *Client) handleMessage(message []byte) {
	var msg struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}

	if err := json.Unmarshal(message, &msg); err != nil {
		log.Printf("Failed to unmarshal client message: %v", err)
		return
	}

	switch msg.Type {
	case "subscribe", "unsubscribe":
		var payload struct {
			Devices []string `json:"devices"`
		}
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			log.Printf("Invalid %s payload from client %s: %v", msg.Type, c.id, err)
			return
		}
		c.mutex.Lock()
		for _, device := range payload.Devices {
			if msg.Type == "subscribe" {
				c.devices[device] = true
			} else {
				delete(c.devices, device)
			}
		}
		c.mutex.Unlock()
		log.Printf("Client %s %sd devices: %v", c.id, msg.Type, payload.Devices)

	case "ping":
		pong := models.WebSocketMessage{
			Type:      "pong",
			Data:      map[string]string{"client_id": c.id},
			Timestamp: time.Now(),
		}
		if payload, err := json.Marshal(pong); err == nil {
			c.trySend(payload)
		}

	default:
		log.Printf("Unknown message type from client %s: %s", c.id, msg.Type)
	}
}
