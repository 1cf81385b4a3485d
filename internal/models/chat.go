package models

import (
	"sort"
	"strings"
	"time"
)

// Chat is a persistent two-person conversation identified by an unordered
// participant pair. The participant list and per-user auto-reply flags live
// in their own tables; the last-message snapshot is denormalized onto the
// chat row for list-view display and is not authoritative for ordering.
type Chat struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	PairKey   string    `gorm:"uniqueIndex" json:"-"`
	UpdatedAt int64     `json:"updatedAt"`
	LastMsg   Snapshot  `gorm:"embedded;embeddedPrefix:last_message_" json:"-"`
	CreatedAt time.Time `json:"-"`
}

// Snapshot is the denormalized copy of the most recent message in a chat.
type Snapshot struct {
	ID         string        `json:"id"`
	SenderID   string        `json:"senderId"`
	ReceiverID string        `json:"receiverId"`
	Text       string        `json:"text"`
	Type       MessageType   `json:"type"`
	Timestamp  int64         `json:"timestamp"`
	Status     MessageStatus `json:"status"`
}

// SnapshotOf builds the chat-row snapshot for a freshly relayed message.
func SnapshotOf(m *Message) Snapshot {
	return Snapshot{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Text:       m.Text,
		Type:       m.Type,
		Timestamp:  m.Timestamp,
		Status:     m.Status,
	}
}

// ChatParticipant associates a user with a chat. Membership queries join on
// this table, which rules out the id-prefix false positives a substring match
// over a serialized list would allow.
type ChatParticipant struct {
	ChatID string `gorm:"primaryKey" json:"chatId"`
	UserID string `gorm:"primaryKey;index" json:"userId"`
}

// AutoReplyFlag is the per-chat, per-user auto-reply switch. Keying the row
// by (chat, user) lets toggles for different users land independently, so a
// toggle can never clobber a peer's concurrent one.
type AutoReplyFlag struct {
	ChatID  string `gorm:"primaryKey" json:"chatId"`
	UserID  string `gorm:"primaryKey" json:"userId"`
	Enabled bool   `json:"enabled"`
}

// PairKey canonicalizes a participant set: sorted ids joined with "|".
// Chats for (a,b) and (b,a) map to the same key.
func PairKey(participants []string) string {
	ids := make([]string, len(participants))
	copy(ids, participants)
	sort.Strings(ids)
	return strings.Join(ids, "|")
}

// ChatResponse is a chat with its associations resolved for the API.
type ChatResponse struct {
	ID               string          `json:"id"`
	Participants     []string        `json:"participants"`
	LastMessage      *Snapshot       `json:"lastMessage,omitempty"`
	AutoReplyEnabled map[string]bool `json:"autoReplyEnabled"`
	UpdatedAt        int64           `json:"updatedAt"`
}

// ToResponse resolves a chat row against its participants and flags.
func (c *Chat) ToResponse(participants []string, flags map[string]bool) ChatResponse {
	if flags == nil {
		flags = map[string]bool{}
	}
	var last *Snapshot
	if c.LastMsg.ID != "" {
		snap := c.LastMsg
		last = &snap
	}
	return ChatResponse{
		ID:               c.ID,
		Participants:     participants,
		LastMessage:      last,
		AutoReplyEnabled: flags,
		UpdatedAt:        c.UpdatedAt,
	}
}

// CreateChatRequest is the body of POST /api/chats.
type CreateChatRequest struct {
	Participants []string `json:"participants" binding:"required,min=2,max=2"`
}
