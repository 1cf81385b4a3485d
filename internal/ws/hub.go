package ws

import (
	"context"
	"encoding/json"
	"time"

	"mimic-chat/backend/internal/models"
	"mimic-chat/backend/pkg/logger"

	"github.com/google/uuid"
)

// MessageStore is the persistence interface the relay needs for messages.
type MessageStore interface {
	SaveMessage(message *models.Message) error
}

// ChatDirectory is the persistence interface the relay needs for chats.
type ChatDirectory interface {
	UpdateSnapshot(chatID string, snap models.Snapshot) error
	SetAutoReply(chatID, userID string, enabled bool) error
}

// PresenceTracker records connect/disconnect events. Optional; a nil tracker
// disables presence.
type PresenceTracker interface {
	SetOnline(ctx context.Context, userID string) error
	SetOffline(ctx context.Context, userID string) error
}

// AutoReplyResponder is notified after each relayed message so it can draft
// an automatic answer on behalf of the receiver. Optional.
type AutoReplyResponder interface {
	OnIncomingMessage(msg models.Message)
}

// Event is the envelope for realtime traffic in both directions.
type Event struct {
	Type    string          `json:"type"`
	Content json.RawMessage `json:"content"`
}

// AutoReplyStatus is the payload of the autoReplyStatus broadcast.
type AutoReplyStatus struct {
	ChatID  string `json:"chatId"`
	UserID  string `json:"userId"`
	Enabled bool   `json:"enabled"`
}

type joinRequest struct {
	client *Client
	chatID string
}

type roomEvent struct {
	chatID string
	data   []byte
}

// Hub owns the socket registry and the chat-scoped rooms. All room state is
// touched only by the Run goroutine, which also makes per-room delivery
// order match emission order.
type Hub struct {
	clients map[*Client]bool
	rooms   map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	join       chan joinRequest
	broadcast  chan roomEvent

	messages  MessageStore
	chats     ChatDirectory
	presence  PresenceTracker
	autoReply AutoReplyResponder

	log *logger.Logger
}

// NewHub creates a hub wired to its persistence collaborators.
func NewHub(messages MessageStore, chats ChatDirectory, log *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		join:       make(chan joinRequest),
		broadcast:  make(chan roomEvent, 64),
		messages:   messages,
		chats:      chats,
		log:        log,
	}
}

// SetPresence wires the optional presence tracker.
func (h *Hub) SetPresence(p PresenceTracker) {
	h.presence = p
}

// SetAutoReply wires the optional auto-reply responder. Set after
// construction because the responder relays through the hub itself.
func (h *Hub) SetAutoReply(r AutoReplyResponder) {
	h.autoReply = r
}

// Run processes registry and broadcast traffic until the process exits.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			h.log.Debug("client registered", "client", client.ID, "user", client.UserID)

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				for chatID, members := range h.rooms {
					delete(members, client)
					if len(members) == 0 {
						delete(h.rooms, chatID)
					}
				}
				client.closeSend()
				h.log.Debug("client unregistered", "client", client.ID)
			}

		case req := <-h.join:
			members, ok := h.rooms[req.chatID]
			if !ok {
				members = make(map[*Client]bool)
				h.rooms[req.chatID] = members
			}
			members[req.client] = true
			h.log.Debug("client joined room", "client", req.client.ID, "chat", req.chatID)

		case event := <-h.broadcast:
			for client := range h.rooms[event.chatID] {
				if client.enqueue(event.data) {
					continue
				}
				// Slow subscriber: drop, never block the room
				client.closeSend()
				delete(h.clients, client)
				for _, members := range h.rooms {
					delete(members, client)
				}
				h.log.Warn("client dropped due to blocked channel", "client", client.ID)
			}
		}
	}
}

// RelayMessage is the persist-then-broadcast path. The relay allocates the
// id and timestamp so there is a single ordering authority, writes the row
// with status "sent", overwrites the chat's last-message snapshot, and fans
// the full message out to every room subscriber including the sender. The
// broadcast is the source of truth: clients must not locally append before
// the echo arrives.
func (h *Hub) RelayMessage(req models.SendMessageRequest) (*models.Message, error) {
	msgType := req.Type
	if msgType == "" {
		msgType = models.MessageTypeText
	}

	msg := &models.Message{
		ID:         "msg-" + uuid.NewString(),
		ChatID:     req.ChatID,
		SenderID:   req.SenderID,
		ReceiverID: req.ReceiverID,
		Text:       req.Text,
		Type:       msgType,
		Timestamp:  time.Now().UnixMilli(),
		Status:     models.MessageStatusSent,
	}

	if err := h.messages.SaveMessage(msg); err != nil {
		return nil, err
	}

	if err := h.chats.UpdateSnapshot(msg.ChatID, models.SnapshotOf(msg)); err != nil {
		// The snapshot is display-only; the message row is already durable
		h.log.LogError(err, "failed to update chat snapshot", "chat", msg.ChatID)
	}

	h.Broadcast(msg.ChatID, "message", msg)

	if h.autoReply != nil {
		h.autoReply.OnIncomingMessage(*msg)
	}

	return msg, nil
}

// RelayAutoReplyToggle persists a single (chat, user) flag and broadcasts
// the changed entry to the room.
func (h *Hub) RelayAutoReplyToggle(chatID, userID string, enabled bool) error {
	if err := h.chats.SetAutoReply(chatID, userID, enabled); err != nil {
		return err
	}

	h.Broadcast(chatID, "autoReplyStatus", AutoReplyStatus{
		ChatID:  chatID,
		UserID:  userID,
		Enabled: enabled,
	})
	return nil
}

// Broadcast fans an event out to every current subscriber of the chat's
// room. Subscribers that join later do not receive it; they must fetch
// history instead.
func (h *Hub) Broadcast(chatID, eventType string, content any) {
	data, err := marshalEvent(eventType, content)
	if err != nil {
		h.log.LogError(err, "failed to marshal broadcast", "type", eventType)
		return
	}
	h.broadcast <- roomEvent{chatID: chatID, data: data}
}

// Join subscribes a client to a chat room. Clients receive no broadcasts
// for a chat before joining it.
func (h *Hub) Join(client *Client, chatID string) {
	h.join <- joinRequest{client: client, chatID: chatID}
}

func marshalEvent(eventType string, content any) ([]byte, error) {
	raw, err := json.Marshal(content)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Event{Type: eventType, Content: raw})
}
