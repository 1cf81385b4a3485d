package service

import (
	"mimic-chat/backend/internal/models"

	"gorm.io/gorm"
)

// MessageService handles message persistence
type MessageService struct {
	db *gorm.DB
}

// NewMessageService creates a new message service
func NewMessageService(db *gorm.DB) *MessageService {
	return &MessageService{db: db}
}

// SaveMessage persists a message row. Messages are immutable once created.
func (s *MessageService) SaveMessage(message *models.Message) error {
	return s.db.Create(message).Error
}

// ListMessages returns all messages for a chat ordered by timestamp
// ascending. Unbounded, matching the history-fetch contract.
func (s *MessageService) ListMessages(chatID string) ([]models.Message, error) {
	var messages []models.Message
	err := s.db.
		Where("chat_id = ?", chatID).
		Order("timestamp ASC").
		Find(&messages).Error
	return messages, err
}

// RecentMessages returns the newest messages for a chat in chronological
// order, truncated to limit. Used to assemble the suggestion window.
func (s *MessageService) RecentMessages(chatID string, limit int) ([]models.Message, error) {
	var messages []models.Message
	err := s.db.
		Where("chat_id = ?", chatID).
		Order("timestamp DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}

	// Reverse to chronological order
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
