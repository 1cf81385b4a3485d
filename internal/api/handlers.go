package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"mimic-chat/backend/internal/models"
	"mimic-chat/backend/internal/presence"
	"mimic-chat/backend/internal/service"
	"mimic-chat/backend/internal/suggest"
	apperrors "mimic-chat/backend/pkg/errors"
	"mimic-chat/backend/pkg/logger"
)

// Handlers groups the REST endpoints. Realtime traffic goes through the
// websocket hub, not through these.
type Handlers struct {
	users    *service.UserService
	chats    *service.ChatService
	messages *service.MessageService
	presence *presence.Store
	suggest  *suggest.Client
	log      *logger.Logger
}

func NewHandlers(users *service.UserService, chats *service.ChatService, messages *service.MessageService, pres *presence.Store, suggestClient *suggest.Client, log *logger.Logger) *Handlers {
	return &Handlers{
		users:    users,
		chats:    chats,
		messages: messages,
		presence: pres,
		suggest:  suggestClient,
		log:      log,
	}
}

// Login upserts the caller's profile. Identity is self-asserted; logging in
// again with the same id replaces the stored profile.
func (h *Handlers) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewBadRequestError("INVALID_LOGIN", err.Error()))
		return
	}

	user := req.ToUser()
	if err := h.users.UpsertUser(&user); err != nil {
		c.Error(apperrors.NewStorageError(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "user": user})
}

// ListUsers returns every registered user with presence merged in. Presence
// lookups are best effort; a Redis outage degrades to offline, it does not
// fail the request.
func (h *Handlers) ListUsers(c *gin.Context) {
	users, err := h.users.ListUsers()
	if err != nil {
		c.Error(apperrors.NewStorageError(err))
		return
	}

	ids := make([]string, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}

	var info map[string]presence.Info
	if h.presence != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		info, err = h.presence.Lookup(ctx, ids)
		if err != nil {
			h.log.LogError(err, "presence lookup failed")
			info = nil
		}
	}

	out := make([]models.UserResponse, len(users))
	for i, u := range users {
		out[i] = models.UserResponse{User: u}
		if p, ok := info[u.ID]; ok {
			out[i].IsOnline = p.IsOnline
			out[i].LastSeen = p.LastSeen
		}
	}

	c.JSON(http.StatusOK, out)
}

// ListChats returns the chats a user participates in, most recently
// active first.
func (h *Handlers) ListChats(c *gin.Context) {
	userID := c.Param("userId")
	if userID == "" {
		c.Error(apperrors.NewBadRequestError("MISSING_USER_ID", "user id is required"))
		return
	}

	chats, err := h.chats.ListChatsForUser(userID)
	if err != nil {
		c.Error(apperrors.NewStorageError(err))
		return
	}

	c.JSON(http.StatusOK, chats)
}

// CreateChat finds or creates the chat for an exact participant pair. The
// operation is idempotent; concurrent creates converge on one row.
func (h *Handlers) CreateChat(c *gin.Context) {
	var req models.CreateChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewBadRequestError("INVALID_CHAT", err.Error()))
		return
	}

	chat, err := h.chats.GetOrCreateChat(req.Participants)
	if err != nil {
		c.Error(apperrors.NewStorageError(err))
		return
	}

	c.JSON(http.StatusOK, chat)
}

// ListMessages returns a chat's full history in chronological order.
func (h *Handlers) ListMessages(c *gin.Context) {
	chatID := c.Param("chatId")
	if chatID == "" {
		c.Error(apperrors.NewBadRequestError("MISSING_CHAT_ID", "chat id is required"))
		return
	}

	messages, err := h.messages.ListMessages(chatID)
	if err != nil {
		c.Error(apperrors.NewStorageError(err))
		return
	}

	c.JSON(http.StatusOK, messages)
}

// SuggestionsRequest identifies the chat and the user the drafts are for.
type SuggestionsRequest struct {
	ChatID string `json:"chatId" binding:"required"`
	UserID string `json:"userId" binding:"required"`
}

// Suggestions drafts candidate replies for a user in a chat. Upstream
// failures are swallowed and surfaced as an empty list so the composer
// never breaks on a flaky model.
func (h *Handlers) Suggestions(c *gin.Context) {
	var req SuggestionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewBadRequestError("INVALID_SUGGESTION_REQUEST", err.Error()))
		return
	}

	user, err := h.users.GetUser(req.UserID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			c.Error(apperrors.NewNotFoundError("USER_NOT_FOUND", "user not found"))
			return
		}
		c.Error(apperrors.NewStorageError(err))
		return
	}

	chat, err := h.chats.GetChat(req.ChatID)
	if err != nil {
		if errors.Is(err, service.ErrChatNotFound) {
			c.Error(apperrors.NewNotFoundError("CHAT_NOT_FOUND", "chat not found"))
			return
		}
		c.Error(apperrors.NewStorageError(err))
		return
	}

	var other *models.User
	for _, id := range chat.Participants {
		if id != req.UserID {
			if u, err := h.users.GetUser(id); err == nil {
				other = u
			}
			break
		}
	}

	history, err := h.messages.ListMessages(req.ChatID)
	if err != nil {
		c.Error(apperrors.NewStorageError(err))
		return
	}

	suggestions, _ := h.suggest.Generate(c.Request.Context(), history, user, other)
	if suggestions == nil {
		suggestions = []suggest.Suggestion{}
	}

	c.JSON(http.StatusOK, gin.H{"suggestions": suggestions})
}
