package models

import (
	"time"
)

// MessageType enumerates the wire types a client may send. Only text is
// implemented end to end; the others are carried through untouched.
type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeImage MessageType = "image"
	MessageTypeVoice MessageType = "voice"
	MessageTypeEmoji MessageType = "emoji"
)

// MessageStatus tracks delivery state. The relay only ever writes "sent".
type MessageStatus string

const (
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusSeen      MessageStatus = "seen"
)

// Message is an immutable chat message. The id and timestamp are allocated by
// the relay, never by the client, so there is a single ordering authority.
// Timestamps are wall-clock milliseconds and not monotonic across senders.
type Message struct {
	ID         string        `gorm:"primaryKey" json:"id"`
	ChatID     string        `gorm:"index" json:"chatId"`
	SenderID   string        `json:"senderId"`
	ReceiverID string        `json:"receiverId"`
	Text       string        `json:"text"`
	Type       MessageType   `json:"type"`
	MediaURL   string        `json:"mediaUrl,omitempty"`
	Timestamp  int64         `gorm:"index" json:"timestamp"`
	Status     MessageStatus `json:"status"`
	CreatedAt  time.Time     `json:"-"`
}

// SendMessageRequest is the payload of the sendMessage realtime event.
type SendMessageRequest struct {
	ChatID     string      `json:"chatId" binding:"required"`
	SenderID   string      `json:"senderId" binding:"required"`
	ReceiverID string      `json:"receiverId" binding:"required"`
	Text       string      `json:"text"`
	Type       MessageType `json:"type"`
}
