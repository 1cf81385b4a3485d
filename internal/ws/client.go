package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"mimic-chat/backend/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	HandshakeTimeout: 10 * time.Second,
	ReadBufferSize:   1024,
	WriteBufferSize:  1024,
}

// Client is one active websocket connection. Room membership lives in the
// hub; the client only pumps frames. The Send channel is closed exactly once
// via closeSend; writers go through enqueue, which checks the closed flag
// under the same lock, so the hub dropping a slow subscriber cannot race a
// concurrent pong or error frame from the read pump.
type Client struct {
	ID     string
	UserID string
	Conn   *websocket.Conn
	Send   chan []byte
	Hub    *Hub

	mu     sync.Mutex
	closed bool
}

// enqueue delivers a frame unless the connection is closed or its buffer is
// full. Returns false when the client should be dropped.
func (c *Client) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

// closeSend closes the send channel once. Safe to call from both the
// unregister and the slow-subscriber drop paths.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.Send)
}

// ReadPump reads events from the connection until it closes. Connection
// teardown is the only leave path: there is no explicit unjoin event.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
		if c.Hub.presence != nil && c.UserID != "" {
			if err := c.Hub.presence.SetOffline(context.Background(), c.UserID); err != nil {
				c.Hub.log.Debug("failed to record last seen", "user", c.UserID, "error", err.Error())
			}
		}
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.log.Debug("websocket read error", "client", c.ID, "error", err.Error())
			}
			break
		}

		var event Event
		if err := json.Unmarshal(data, &event); err != nil {
			c.Hub.log.Debug("malformed event", "client", c.ID, "error", err.Error())
			continue
		}

		c.handleEvent(event)
	}
}

func (c *Client) handleEvent(event Event) {
	switch event.Type {
	case "join":
		c.handleJoin(event.Content)
	case "sendMessage":
		c.handleSendMessage(event.Content)
	case "toggleAutoReply":
		c.handleToggleAutoReply(event.Content)
	case "ping":
		c.send("pong", nil)
		if c.Hub.presence != nil && c.UserID != "" {
			c.Hub.presence.SetOnline(context.Background(), c.UserID)
		}
	default:
		c.Hub.log.Debug("unknown event type", "type", event.Type)
	}
}

// handleJoin subscribes the connection to a chat room. The payload is the
// chat id, either as a bare string or as {"chatId": ...}.
func (c *Client) handleJoin(content json.RawMessage) {
	var chatID string
	if err := json.Unmarshal(content, &chatID); err != nil {
		var body struct {
			ChatID string `json:"chatId"`
		}
		if err := json.Unmarshal(content, &body); err != nil || body.ChatID == "" {
			c.sendError("join requires a chat id")
			return
		}
		chatID = body.ChatID
	}

	c.Hub.Join(c, chatID)
}

func (c *Client) handleSendMessage(content json.RawMessage) {
	var req models.SendMessageRequest
	if err := json.Unmarshal(content, &req); err != nil {
		c.sendError("malformed sendMessage payload")
		return
	}
	if req.ChatID == "" || req.SenderID == "" || req.ReceiverID == "" {
		c.sendError("sendMessage requires chatId, senderId and receiverId")
		return
	}

	if _, err := c.Hub.RelayMessage(req); err != nil {
		c.Hub.log.LogError(err, "failed to relay message", "chat", req.ChatID)
		c.sendError("failed to send message")
	}
}

func (c *Client) handleToggleAutoReply(content json.RawMessage) {
	var req AutoReplyStatus
	if err := json.Unmarshal(content, &req); err != nil {
		c.sendError("malformed toggleAutoReply payload")
		return
	}
	if req.ChatID == "" || req.UserID == "" {
		c.sendError("toggleAutoReply requires chatId and userId")
		return
	}

	if err := c.Hub.RelayAutoReplyToggle(req.ChatID, req.UserID, req.Enabled); err != nil {
		c.Hub.log.LogError(err, "failed to toggle auto-reply", "chat", req.ChatID)
		c.sendError("failed to toggle auto-reply")
	}
}

func (c *Client) send(eventType string, content any) {
	data, err := marshalEvent(eventType, content)
	if err != nil {
		c.Hub.log.LogError(err, "failed to marshal event", "type", eventType)
		return
	}

	c.enqueue(data)
}

func (c *Client) sendError(message string) {
	c.send("error", map[string]string{"message": message})
}

// WritePump writes outbound frames and keeps the connection alive with
// periodic pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

			// Flush any queued frames without waiting for the next tick
			n := len(c.Send)
			for i := 0; i < n; i++ {
				if err := c.Conn.WriteMessage(websocket.TextMessage, <-c.Send); err != nil {
					return
				}
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWs upgrades an HTTP request to a websocket connection and starts the
// client pumps. The userId query parameter attributes presence; there is no
// authentication beyond the self-asserted id.
func ServeWs(hub *Hub, c *gin.Context) {
	userID := c.Query("userId")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "MISSING_USER_ID", "message": "userId query parameter is required"}})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		hub.log.LogError(err, "failed to upgrade connection")
		return
	}

	client := &Client{
		ID:     uuid.NewString(),
		UserID: userID,
		Conn:   conn,
		Send:   make(chan []byte, 256),
		Hub:    hub,
	}

	hub.register <- client

	if hub.presence != nil && userID != "" {
		if err := hub.presence.SetOnline(context.Background(), userID); err != nil {
			hub.log.Debug("failed to record presence", "user", userID, "error", err.Error())
		}
	}

	go client.WritePump()
	go client.ReadPump()
}
