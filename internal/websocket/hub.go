package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/admatrix/api/internal/model"
)

// Client represents a WebSocket client subscribed to one generation.
type Client struct {
	GenerationID string
	Conn         *websocket.Conn
	Send         chan []byte
}

// Hub maintains active WebSocket connections grouped by generation id and
// fans job updates out to them.
type Hub struct {
	clients map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *BroadcastMessage

	mu sync.RWMutex
}

// BroadcastMessage represents a message to broadcast.
type BroadcastMessage struct {
	GenerationID string
	Message      []byte
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *BroadcastMessage, 256),
	}
}

// Run starts the hub's main loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.GenerationID] == nil {
				h.clients[client.GenerationID] = make(map[*Client]bool)
			}
			h.clients[client.GenerationID][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.GenerationID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.Send)
					if len(clients) == 0 {
						delete(h.clients, client.GenerationID)
					}
				}
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.RLock()
			if clients, ok := h.clients[msg.GenerationID]; ok {
				for client := range clients {
					select {
					case client.Send <- msg.Message:
					default:
						close(client.Send)
						delete(clients, client)
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// BroadcastJobUpdate notifies a generation's subscribers of a job transition.
func (h *Hub) BroadcastJobUpdate(job *model.RenderJob) {
	msg := model.WSJobUpdateMessage{
		Type:           model.WSMessageTypeJobUpdate,
		GenerationID:   job.GenerationID,
		JobID:          job.ID,
		VariationIndex: job.VariationIndex,
		Status:         job.Status,
		OutputURL:      job.OutputURL,
		Error:          job.ErrorMessage,
	}
	h.send(job.GenerationID, msg)
}

// BroadcastGenerationComplete fires once every job of a generation is
// terminal.
func (h *Hub) BroadcastGenerationComplete(generationID string, completed, failed int) {
	msg := model.WSGenerationCompleteMessage{
		Type:         model.WSMessageTypeGenerationComplete,
		GenerationID: generationID,
		Completed:    completed,
		Failed:       failed,
	}
	h.send(generationID, msg)
}

func (h *Hub) send(generationID string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Failed to marshal broadcast message: %v", err)
		return
	}
	h.broadcast <- &BroadcastMessage{
		GenerationID: generationID,
		Message:      data,
	}
}

// HandleConnection pumps messages to a subscriber until the socket closes.
func (h *Hub) HandleConnection(conn *websocket.Conn, generationID string) {
	client := &Client{
		GenerationID: generationID,
		Conn:         conn,
		Send:         make(chan []byte, 64),
	}
	h.register <- client
	defer func() {
		h.unregister <- client
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			// Reads only detect disconnects; clients don't send messages.
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case msg, ok := <-client.Send:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
