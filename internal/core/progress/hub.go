// Package progress fans out job progress/terminal events to websocket
// clients subscribed to one job's id, grounded on viewra's
// pluginmodule.DashboardAPIHandlers (activeStreams map, streamsMutex,
// WebSocketMessage envelope, per-connection goroutine broadcast).
package progress

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mantonx/transcodecore/internal/core/model"
)

// Message is the envelope written to every subscriber, matching the
// viewra's WebSocketMessage shape.
type Message struct {
	Type      string      `json:"type"`
	JobID     string      `json:"job_id"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// Hub broadcasts one job's progress/terminal events to every websocket
// connection subscribed to it.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]map[*websocket.Conn]struct{} // jobID -> connection set
}

func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		clients:  make(map[string]map[*websocket.Conn]struct{}),
	}
}

// Subscribe upgrades an HTTP request to a websocket and registers it for
// jobID's events until the client disconnects.
func (h *Hub) Subscribe(w http.ResponseWriter, r *http.Request, jobID string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	h.mu.Lock()
	if h.clients[jobID] == nil {
		h.clients[jobID] = make(map[*websocket.Conn]struct{})
	}
	h.clients[jobID][conn] = struct{}{}
	h.mu.Unlock()

	go h.readUntilClose(conn, jobID)
	return nil
}

func (h *Hub) readUntilClose(conn *websocket.Conn, jobID string) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.mu.Lock()
			delete(h.clients[jobID], conn)
			if len(h.clients[jobID]) == 0 {
				delete(h.clients, jobID)
			}
			h.mu.Unlock()
			conn.Close()
			return
		}
	}
}

// OnProgress implements job.ProgressSink, broadcasting a "progress" message
// to every subscriber of jobID.
func (h *Hub) OnProgress(jobID string, p model.Progress) {
	h.broadcast(jobID, Message{Type: "progress", JobID: jobID, Data: p, Timestamp: time.Now().Unix()})
}

// OnTerminal implements job.ProgressSink, broadcasting a "terminal" message
// and dropping every subscriber once the job has nothing further to report.
func (h *Hub) OnTerminal(jobID string, state model.JobState, jobErr *model.Error) {
	type terminalData struct {
		State model.JobState `json:"state"`
		Error *model.Error   `json:"error,omitempty"`
	}
	h.broadcast(jobID, Message{Type: "terminal", JobID: jobID, Data: terminalData{State: state, Error: jobErr}, Timestamp: time.Now().Unix()})

	h.mu.Lock()
	delete(h.clients, jobID)
	h.mu.Unlock()
}

func (h *Hub) broadcast(jobID string, msg Message) {
	h.mu.RLock()
	clients := h.clients[jobID]
	h.mu.RUnlock()
	if len(clients) == 0 {
		return
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	for conn := range clients {
		go func(c *websocket.Conn) {
			c.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
				h.mu.Lock()
				delete(h.clients[jobID], c)
				h.mu.Unlock()
				c.Close()
			}
		}(conn)
	}
}
