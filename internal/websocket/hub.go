package websocket

import (
	"encoding/json"
	"log"
	"sync"
)

// Hub maintains the set of attached displays and broadcasts stamp events
// to them. Displays are identified by the id they present on handshake.
type Hub struct {
	// Registered displays map: DisplayID -> Client
	clients map[string]*Client

	// Register requests
	register chan *Client

	// Unregister requests
	unregister chan *Client

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[string]*Client),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if client.DisplayID != "" {
				// If a display connects again, close the old connection
				if old, ok := h.clients[client.DisplayID]; ok {
					close(old.send)
					delete(h.clients, client.DisplayID)
				}
				h.clients[client.DisplayID] = client
				log.Printf("🖥️ Display connected: %s", client.DisplayID)
			}
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if client.DisplayID != "" {
				if _, ok := h.clients[client.DisplayID]; ok {
					delete(h.clients, client.DisplayID)
					close(client.send)
					log.Printf("📴 Display disconnected: %s", client.DisplayID)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast sends a message to every attached display
func (h *Hub) Broadcast(message interface{}) {
	jsonMsg, err := json.Marshal(message)
	if err != nil {
		log.Printf("Error marshaling message: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		select {
		case client.send <- jsonMsg:
		default:
			// Buffer full or client dead, skip
		}
	}
}
