package websocket

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lcalzada-xor/vmap/internal/core/domain"
	"github.com/lcalzada-xor/vmap/internal/core/ports"
	"github.com/lcalzada-xor/vmap/internal/core/services/stats"
)

// writeTimeout bounds one broadcast write; a stuck client is dropped.
const writeTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Same-origin requests carry no Origin header.
		return r.Header.Get("Origin") == "" || r.Host == hostOf(r.Header.Get("Origin"))
	},
}

func hostOf(origin string) string {
	for _, prefix := range []string{"http://", "https://"} {
		if len(origin) > len(prefix) && origin[:len(prefix)] == prefix {
			return origin[len(prefix):]
		}
	}
	return origin
}

// Message is the envelope for every frame pushed to the dashboard.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// datasetEvent is the payload of a dataset:published frame. The dashboard
// refreshes its widgets from the aggregates without re-fetching the findings.
type datasetEvent struct {
	DatasetID  string                        `json:"dataset_id"`
	Findings   int                           `json:"findings"`
	Overview   domain.Overview               `json:"overview"`
	Funnel     []domain.FunnelBucket         `json:"funnel"`
	Complexity domain.ComplexityDistribution `json:"complexity"`
}

// Manager tracks connected dashboard clients and pushes dataset updates.
type Manager struct {
	clients map[*websocket.Conn]bool
	mu      sync.Mutex
}

func NewManager() *Manager {
	return &Manager{clients: make(map[*websocket.Conn]bool)}
}

// HandleWebSocket upgrades the connection and registers the client.
func (m *Manager) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}

	m.mu.Lock()
	m.clients[conn] = true
	m.mu.Unlock()
	slog.Debug("websocket connected", "remote", conn.RemoteAddr())

	go func() {
		defer func() {
			m.mu.Lock()
			delete(m.clients, conn)
			m.mu.Unlock()
			conn.Close()
			slog.Debug("websocket disconnected", "remote", conn.RemoteAddr())
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// DatasetPublished pushes the new dataset's aggregates to every client.
// It implements ports.DatasetNotifier.
func (m *Manager) DatasetPublished(ds domain.Dataset) {
	m.broadcast(Message{
		Type: "dataset:published",
		Payload: datasetEvent{
			DatasetID:  ds.ID,
			Findings:   len(ds.Findings),
			Overview:   stats.Overview(ds.Findings),
			Funnel:     stats.Funnel(ds.Findings),
			Complexity: stats.Complexity(ds.Findings),
		},
	})
}

// BroadcastLog pushes a log line to every client.
func (m *Manager) BroadcastLog(message, level string) {
	m.broadcast(Message{
		Type:    "log",
		Payload: map[string]string{"message": message, "level": level},
	})
}

func (m *Manager) broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("websocket marshal error", "error", err)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for conn := range m.clients {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			conn.Close()
			delete(m.clients, conn)
		}
	}
}

var _ ports.DatasetNotifier = (*Manager)(nil)
