package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"fundraiser/internal/models"
)

const (
	writeWait     = 10 * time.Second
	pongWait      = 60 * time.Second
	pingPeriod    = (pongWait * 9) / 10
	clientBacklog = 64
)

type streamClient struct {
	campaign string
	send     chan models.EscrowEvent
}

// EventHub fans escrow events out to websocket subscribers. A subscriber
// that falls behind by more than its backlog is disconnected.
type EventHub struct {
	mu       sync.RWMutex
	clients  map[*streamClient]struct{}
	upgrader websocket.Upgrader
}

// NewEventHub creates a hub accepting connections from allowedOrigins; an
// empty list accepts any origin
func NewEventHub(allowedOrigins []string) *EventHub {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = true
	}
	return &EventHub{
		clients: make(map[*streamClient]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(allowed) == 0 || origin == "" || allowed[origin]
			},
		},
	}
}

// Send implements escrow.EventSink
func (h *EventHub) Send(event models.EscrowEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		if client.campaign != "" && client.campaign != event.Campaign {
			continue
		}
		select {
		case client.send <- event:
		default:
			delete(h.clients, client)
			close(client.send)
		}
	}
	return nil
}

// Subscribers returns the number of connected clients
func (h *EventHub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *EventHub) register(campaign string) *streamClient {
	client := &streamClient{campaign: campaign, send: make(chan models.EscrowEvent, clientBacklog)}
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	return client
}

func (h *EventHub) unregister(client *streamClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
}

// ServeWS upgrades the request and streams events, optionally only those
// of ?campaign=
func (h *EventHub) ServeWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.WithField("remote", c.ClientIP()).Warnf("websocket upgrade failed: %v", err)
		return
	}
	client := h.register(c.Query("campaign"))
	log.WithFields(log.Fields{
		"remote":   c.ClientIP(),
		"campaign": client.campaign,
	}).Info("event stream subscriber connected")

	go h.readPump(conn, client)
	h.writePump(conn, client)
}

// readPump discards client messages and notices disconnects
func (h *EventHub) readPump(conn *websocket.Conn, client *streamClient) {
	defer h.unregister(client)
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *EventHub) writePump(conn *websocket.Conn, client *streamClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()
	for {
		select {
		case event, ok := <-client.send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
