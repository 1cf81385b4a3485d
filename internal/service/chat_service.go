package service

import (
	"errors"
	"time"

	"mimic-chat/backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrChatNotFound = errors.New("chat not found")
)

// ChatService owns chats, their participant associations and the per-user
// auto-reply flags.
type ChatService struct {
	db *gorm.DB
}

// NewChatService creates a new chat service
func NewChatService(db *gorm.DB) *ChatService {
	return &ChatService{db: db}
}

// GetOrCreateChat returns the chat whose participant set equals the requested
// one as an unordered set, creating it when absent. The pair key's unique
// index serializes concurrent creates for the same pair: the loser of the
// race falls back to reading the winner's row.
func (s *ChatService) GetOrCreateChat(participants []string) (*models.ChatResponse, error) {
	pairKey := models.PairKey(participants)

	var chat models.Chat
	err := s.db.First(&chat, "pair_key = ?", pairKey).Error
	if err == nil {
		return s.resolve(&chat)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	chat = models.Chat{
		ID:        "chat-" + uuid.NewString(),
		PairKey:   pairKey,
		UpdatedAt: time.Now().UnixMilli(),
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&chat).Error; err != nil {
			return err
		}
		for _, userID := range participants {
			if err := tx.Create(&models.ChatParticipant{ChatID: chat.ID, UserID: userID}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		// Lost a concurrent create for the same pair; reuse the winner.
		var existing models.Chat
		if ferr := s.db.First(&existing, "pair_key = ?", pairKey).Error; ferr == nil {
			return s.resolve(&existing)
		}
		return nil, err
	}

	return s.resolve(&chat)
}

// ListChatsForUser returns the chats the user belongs to, most recently
// updated first. Membership is an exact join on the participants table, not
// a substring match over a serialized list.
func (s *ChatService) ListChatsForUser(userID string) ([]models.ChatResponse, error) {
	var chats []models.Chat
	err := s.db.
		Joins("JOIN chat_participants ON chat_participants.chat_id = chats.id").
		Where("chat_participants.user_id = ?", userID).
		Order("chats.updated_at DESC").
		Find(&chats).Error
	if err != nil {
		return nil, err
	}

	responses := make([]models.ChatResponse, 0, len(chats))
	for i := range chats {
		resp, err := s.resolve(&chats[i])
		if err != nil {
			return nil, err
		}
		responses = append(responses, *resp)
	}
	return responses, nil
}

// GetChat retrieves a single chat with its associations resolved
func (s *ChatService) GetChat(chatID string) (*models.ChatResponse, error) {
	var chat models.Chat
	result := s.db.First(&chat, "id = ?", chatID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrChatNotFound
		}
		return nil, result.Error
	}
	return s.resolve(&chat)
}

// SetAutoReply upserts the single (chat, user) auto-reply flag. Row-level
// keying means concurrent toggles by different users never clobber each
// other.
func (s *ChatService) SetAutoReply(chatID, userID string, enabled bool) error {
	flag := models.AutoReplyFlag{ChatID: chatID, UserID: userID, Enabled: enabled}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "chat_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"enabled"}),
	}).Create(&flag).Error
}

// AutoReplyFlags returns the chat's auto-reply map
func (s *ChatService) AutoReplyFlags(chatID string) (map[string]bool, error) {
	var flags []models.AutoReplyFlag
	if err := s.db.Find(&flags, "chat_id = ?", chatID).Error; err != nil {
		return nil, err
	}
	result := make(map[string]bool, len(flags))
	for _, f := range flags {
		result[f.UserID] = f.Enabled
	}
	return result, nil
}

// UpdateSnapshot overwrites the chat's denormalized last-message snapshot and
// updated-at timestamp. Last write wins; the snapshot is display-only and not
// authoritative for ordering.
func (s *ChatService) UpdateSnapshot(chatID string, snap models.Snapshot) error {
	return s.db.Model(&models.Chat{}).Where("id = ?", chatID).Updates(map[string]any{
		"updated_at":               snap.Timestamp,
		"last_message_id":          snap.ID,
		"last_message_sender_id":   snap.SenderID,
		"last_message_receiver_id": snap.ReceiverID,
		"last_message_text":        snap.Text,
		"last_message_type":        snap.Type,
		"last_message_timestamp":   snap.Timestamp,
		"last_message_status":      snap.Status,
	}).Error
}

// resolve loads a chat's participants and auto-reply flags
func (s *ChatService) resolve(chat *models.Chat) (*models.ChatResponse, error) {
	var participants []models.ChatParticipant
	if err := s.db.Find(&participants, "chat_id = ?", chat.ID).Error; err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(participants))
	for _, p := range participants {
		ids = append(ids, p.UserID)
	}

	flags, err := s.AutoReplyFlags(chat.ID)
	if err != nil {
		return nil, err
	}

	resp := chat.ToResponse(ids, flags)
	return &resp, nil
}
