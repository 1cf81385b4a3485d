package autoreply

import (
	"context"
	"sync"
	"time"

	"mimic-chat/backend/internal/models"
	"mimic-chat/backend/internal/suggest"
	"mimic-chat/backend/pkg/logger"
)

// Relay is the persist-then-broadcast entry point the responder sends
// through. In practice this is the websocket hub.
type Relay interface {
	RelayMessage(req models.SendMessageRequest) (*models.Message, error)
}

// FlagSource exposes a chat's auto-reply map.
type FlagSource interface {
	AutoReplyFlags(chatID string) (map[string]bool, error)
}

// UserSource resolves user profiles for prompt assembly.
type UserSource interface {
	GetUser(id string) (*models.User, error)
}

// HistorySource supplies the bounded message window.
type HistorySource interface {
	RecentMessages(chatID string, limit int) ([]models.Message, error)
}

// SuggestionSource drafts candidate replies.
type SuggestionSource interface {
	Generate(ctx context.Context, history []models.Message, currentUser, otherUser *models.User) ([]suggest.Suggestion, error)
}

// Responder answers incoming messages on behalf of users who enabled
// auto-reply for a chat. Each incoming message is answered at most once:
// the guard records the message id per (chat, user) before generation
// starts, so a slow generation cannot double-fire.
type Responder struct {
	relay   Relay
	flags   FlagSource
	users   UserSource
	history HistorySource
	suggest SuggestionSource

	window  int
	timeout time.Duration

	mu          sync.Mutex
	lastReplied map[string]string

	log *logger.Logger
}

// New creates a responder.
func New(relay Relay, flags FlagSource, users UserSource, history HistorySource, suggestions SuggestionSource, window int, log *logger.Logger) *Responder {
	if window <= 0 {
		window = 20
	}
	return &Responder{
		relay:       relay,
		flags:       flags,
		users:       users,
		history:     history,
		suggest:     suggestions,
		window:      window,
		timeout:     30 * time.Second,
		lastReplied: make(map[string]string),
		log:         log,
	}
}

// OnIncomingMessage is called by the relay after every broadcast. Generation
// happens off the relay goroutine so a slow model never stalls delivery.
func (r *Responder) OnIncomingMessage(msg models.Message) {
	go r.respond(msg)
}

func (r *Responder) respond(msg models.Message) {
	receiver := msg.ReceiverID
	if receiver == "" || receiver == msg.SenderID {
		return
	}

	flags, err := r.flags.AutoReplyFlags(msg.ChatID)
	if err != nil {
		r.log.LogError(err, "failed to read auto-reply flags", "chat", msg.ChatID)
		return
	}
	if !flags[receiver] {
		return
	}

	if !r.claim(msg.ChatID, receiver, msg.ID) {
		return
	}

	user, err := r.users.GetUser(receiver)
	if err != nil {
		r.log.LogError(err, "failed to load auto-reply user", "user", receiver)
		return
	}
	// The counterpart profile is optional; the prompt degrades to a
	// generic label when it is missing.
	sender, err := r.users.GetUser(msg.SenderID)
	if err != nil {
		sender = nil
	}

	history, err := r.history.RecentMessages(msg.ChatID, r.window)
	if err != nil {
		r.log.LogError(err, "failed to load history for auto-reply", "chat", msg.ChatID)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	suggestions, err := r.suggest.Generate(ctx, history, user, sender)
	if err != nil || len(suggestions) == 0 {
		return
	}

	_, err = r.relay.RelayMessage(models.SendMessageRequest{
		ChatID:     msg.ChatID,
		SenderID:   receiver,
		ReceiverID: msg.SenderID,
		Text:       suggestions[0].Text,
		Type:       models.MessageTypeText,
	})
	if err != nil {
		r.log.LogError(err, "failed to relay auto-reply", "chat", msg.ChatID)
	}
}

// claim records the message id as answered for (chat, user). Returns false
// when this message was already claimed.
func (r *Responder) claim(chatID, userID, messageID string) bool {
	key := chatID + "|" + userID

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.lastReplied[key] == messageID {
		return false
	}
	r.lastReplied[key] = messageID
	return true
}
