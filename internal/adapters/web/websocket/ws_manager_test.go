package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/vmap/internal/core/domain"
)

func connect(t *testing.T, m *Manager) *gws.Conn {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(m.HandleWebSocket))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := gws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestDatasetPublishedBroadcast(t *testing.T) {
	m := NewManager()
	conn := connect(t, m)

	// Registration happens in the upgrade handler goroutine.
	waitForClients(t, m, 1)

	m.DatasetPublished(domain.Dataset{
		ID: "ds-1",
		Findings: []domain.Finding{
			{Host: "web01", NormalizedSeverity: domain.SeverityHigh, VRRScore: 7.5},
		},
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "dataset:published", msg.Type)

	payload, ok := msg.Payload.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ds-1", payload["dataset_id"])
	assert.Equal(t, float64(1), payload["findings"])
}

func TestBroadcastLog(t *testing.T) {
	m := NewManager()
	conn := connect(t, m)
	waitForClients(t, m, 1)

	m.BroadcastLog("upload complete", "info")

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "log", msg.Type)
}

func TestBroadcastWithoutClients(t *testing.T) {
	m := NewManager()
	// Nothing to deliver to; must not panic or block.
	m.DatasetPublished(domain.Dataset{ID: "ds-1"})
	m.BroadcastLog("no listeners", "info")
}

func TestDisconnectedClientRemoved(t *testing.T) {
	m := NewManager()
	conn := connect(t, m)
	waitForClients(t, m, 1)

	conn.Close()
	waitForClients(t, m, 0)
}

func waitForClients(t *testing.T, m *Manager, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		m.mu.Lock()
		n := len(m.clients)
		m.mu.Unlock()
		if n == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("client count never reached %d", want)
}
