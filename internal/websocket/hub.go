package websocket

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/clipforge/api/internal/model"
)

const pingInterval = 30 * time.Second

// Client is one subscriber to a job's updates. Send is never closed: the hub
// drops a client by closing its dropped channel, so the reader may keep
// running until the write pump hangs up.
type Client struct {
	JobID string
	Conn  *websocket.Conn
	Send  chan []byte

	pong     chan []byte
	dropped  chan struct{}
	dropOnce sync.Once
}

// NewClient creates a subscriber with room for buffer queued updates.
func NewClient(jobID string, conn *websocket.Conn, buffer int) *Client {
	return &Client{
		JobID:   jobID,
		Conn:    conn,
		Send:    make(chan []byte, buffer),
		pong:    make(chan []byte, 1),
		dropped: make(chan struct{}),
	}
}

// Dropped is closed once the hub stops delivering to the client.
func (c *Client) Dropped() <-chan struct{} {
	return c.dropped
}

func (c *Client) drop() {
	c.dropOnce.Do(func() { close(c.dropped) })
}

// queuePong hands a pong to the write pump. A pong already waiting is enough.
func (c *Client) queuePong(msg []byte) {
	select {
	case c.pong <- msg:
	default:
	}
}

// Hub fans job progress out to the WebSocket clients watching that job.
type Hub struct {
	// Clients grouped by job ID
	clients map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *BroadcastMessage
	// stopped is closed when Run returns
	stopped  chan struct{}
	stopOnce sync.Once

	mu sync.RWMutex
}

// BroadcastMessage represents a message to broadcast
type BroadcastMessage struct {
	JobID   string
	Message []byte
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *BroadcastMessage, 256),
		stopped:    make(chan struct{}),
	}
}

// Run starts the hub's main loop and returns when ctx is done. Every client
// still subscribed at that point is dropped.
func (h *Hub) Run(ctx context.Context) {
	defer h.stopOnce.Do(func() { close(h.stopped) })

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for _, clients := range h.clients {
				for client := range clients {
					h.remove(client)
				}
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.JobID] == nil {
				h.clients[client.JobID] = make(map[*Client]bool)
			}
			h.clients[client.JobID][client] = true
			h.mu.Unlock()
			log.Printf("websocket subscriber joined job %s", client.JobID)

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()
			log.Printf("websocket subscriber left job %s", client.JobID)

		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients[msg.JobID] {
				select {
				case client.Send <- msg.Message:
				default:
					h.remove(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// remove must be called with h.mu held.
func (h *Hub) remove(client *Client) {
	clients, ok := h.clients[client.JobID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	client.drop()
	if len(clients) == 0 {
		delete(h.clients, client.JobID)
	}
}

// Register adds a new client. Once the hub has stopped the client is dropped
// straight away.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.stopped:
		client.drop()
	}
}

// Unregister removes a client. It does not block after the hub has stopped.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.stopped:
	}
}

// Subscribers returns how many clients watch a job.
func (h *Hub) Subscribers(jobID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[jobID])
}

// BroadcastProgress sends a progress update to all job subscribers
func (h *Hub) BroadcastProgress(jobID string, progress int, status model.JobStatus, step model.Step) {
	h.publish(jobID, model.WSProgress{
		WSEnvelope:  model.WSEnvelope{Type: model.WSTypeProgress, JobID: jobID},
		Progress:    progress,
		Status:      status,
		CurrentStep: step,
	})
}

// BroadcastComplete sends the rendered clips to all job subscribers
func (h *Hub) BroadcastComplete(jobID string, result *model.JobResult) {
	msg := model.WSComplete{WSEnvelope: model.WSEnvelope{Type: model.WSTypeComplete, JobID: jobID}}
	if result != nil {
		msg.Clips = result.Clips
		msg.Archive = result.Archive
		msg.Skipped = result.Skipped
	}
	h.publish(jobID, msg)
}

// BroadcastError sends a terminal failure to all job subscribers
func (h *Hub) BroadcastError(jobID string, code, message string) {
	h.publish(jobID, failure(jobID, code, message))
}

func failure(jobID, code, message string) model.WSFailure {
	return model.WSFailure{
		WSEnvelope: model.WSEnvelope{Type: model.WSTypeError, JobID: jobID},
		Code:       code,
		Message:    message,
	}
}

// publish never blocks the pipeline: when the queue is full the update is dropped,
// the next one carries the newer state anyway.
func (h *Hub) publish(jobID string, msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Warning: marshal %T for job %s: %v", msg, jobID, err)
		return
	}
	select {
	case h.broadcast <- &BroadcastMessage{JobID: jobID, Message: data}:
	default:
		log.Printf("Warning: websocket broadcast queue full, dropping update for job %s", jobID)
	}
}

// HandleConnection streams a job's updates to c until the client goes away.
// snapshot, when set, is written first. A nil snapshot means the job does not
// exist: the client gets a NOT_FOUND failure and the connection is closed.
func (h *Hub) HandleConnection(c *websocket.Conn, jobID string, snapshot *model.JobStatusResponse) {
	if snapshot == nil {
		data, _ := json.Marshal(failure(jobID, "NOT_FOUND", "job not found"))
		c.WriteMessage(websocket.TextMessage, data)
		c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unknown job"))
		return
	}

	client := NewClient(jobID, c, 256)
	if data, err := json.Marshal(model.WSSnapshot{
		WSEnvelope: model.WSEnvelope{Type: model.WSTypeSnapshot, JobID: jobID},
		Job:        snapshot,
	}); err == nil {
		client.Send <- data
	}

	h.Register(client)
	defer h.Unregister(client)

	done := make(chan struct{})
	defer close(done)
	go h.writePump(client, done)

	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("Warning: websocket for job %s: %v", jobID, err)
			}
			return
		}

		var msg model.WSEnvelope
		if err := json.Unmarshal(message, &msg); err != nil || msg.Type != model.WSTypePing {
			continue
		}
		pong, _ := json.Marshal(model.WSEnvelope{Type: model.WSTypePong, JobID: jobID})
		client.queuePong(pong)
	}
}

// writePump owns all writes to the connection. It stops when the hub drops
// the client or the reader returns.
func (h *Hub) writePump(client *Client, done <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case message := <-client.Send:
			if err := client.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case pong := <-client.pong:
			if err := client.Conn.WriteMessage(websocket.TextMessage, pong); err != nil {
				return
			}

		case <-client.dropped:
			client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case <-ticker.C:
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-done:
			return
		}
	}
}
