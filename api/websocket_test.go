package api

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"androidmirror/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialHub(t *testing.T, hub *WebSocketHub) *websocket.Conn {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/ws", func(c *gin.Context) { HandleWebSocket(hub, c) })
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestNewCatalogEvent(t *testing.T) {
	refreshed := time.UnixMilli(1700000000123)
	snap := &models.Snapshot{
		ID:          "snap-1",
		RefreshedAt: refreshed,
		Devices:     []models.Device{{ID: "A"}, {ID: "B"}},
	}

	ev := NewCatalogEvent(snap)

	assert.Equal(t, models.CatalogEvent{
		Type:        "catalog_changed",
		SnapshotID:  "snap-1",
		DeviceCount: 2,
		RefreshedAt: 1700000000123,
	}, ev)
}

func TestWebSocketHub_PublishCatalog(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewWebSocketHub(zerolog.Nop())
	go hub.Run(ctx)

	conn := dialHub(t, hub)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	hub.PublishCatalog(&models.Snapshot{ID: "snap-2", Devices: []models.Device{{ID: "A"}}})

	var ev models.CatalogEvent
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, models.EventCatalogChanged, ev.Type)
	assert.Equal(t, "snap-2", ev.SnapshotID)
	assert.Equal(t, 1, ev.DeviceCount)
}

func TestWebSocketHub_ClientDisconnect(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewWebSocketHub(zerolog.Nop())
	go hub.Run(ctx)

	conn := dialHub(t, hub)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	conn.Close()

	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestWebSocketHub_ShutdownClosesClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewWebSocketHub(zerolog.Nop())
	go hub.Run(ctx)

	conn := dialHub(t, hub)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	cancel()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	assert.Zero(t, hub.ClientCount())
}
