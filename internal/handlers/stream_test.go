package handlers

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fundraiser/internal/models"
)

func TestEventHub(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewEventHub(nil)
	r := gin.New()
	r.GET("/ws", hub.ServeWS)
	server := httptest.NewServer(r)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	all, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer all.Close()
	filtered, _, err := websocket.DefaultDialer.Dial(url+"?campaign=wanted", nil)
	require.NoError(t, err)
	defer filtered.Close()

	require.Eventually(t, func() bool { return hub.Subscribers() == 2 }, time.Second, 10*time.Millisecond)

	other := models.EscrowEvent{ID: uuid.New(), Type: models.EventContributed, Campaign: "other"}
	wanted := models.EscrowEvent{ID: uuid.New(), Type: models.EventSettled, Campaign: "wanted"}
	require.NoError(t, hub.Send(other))
	require.NoError(t, hub.Send(wanted))

	var got models.EscrowEvent
	all.SetReadDeadline(time.Now().Add(time.Second))
	require.NoError(t, all.ReadJSON(&got))
	assert.Equal(t, other.ID, got.ID)
	require.NoError(t, all.ReadJSON(&got))
	assert.Equal(t, wanted.ID, got.ID)

	filtered.SetReadDeadline(time.Now().Add(time.Second))
	require.NoError(t, filtered.ReadJSON(&got))
	assert.Equal(t, wanted.ID, got.ID, "filtered subscriber only sees its campaign")

	all.Close()
	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestEventHubDropsSlowSubscribers(t *testing.T) {
	hub := NewEventHub(nil)
	client := hub.register("")
	for i := 0; i < clientBacklog+1; i++ {
		require.NoError(t, hub.Send(models.EscrowEvent{Campaign: "c"}))
	}
	assert.Zero(t, hub.Subscribers())
	_, open := <-client.send
	assert.True(t, open, "buffered events are still delivered before close")
}

func TestEventHubOrigins(t *testing.T) {
	hub := NewEventHub([]string{"http://app.test"})
	req := httptest.NewRequest("GET", "/ws", nil)
	req.Header.Set("Origin", "http://evil.test")
	assert.False(t, hub.upgrader.CheckOrigin(req))
	req.Header.Set("Origin", "http://app.test")
	assert.True(t, hub.upgrader.CheckOrigin(req))
}
