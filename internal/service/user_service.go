package service

import (
	"errors"

	"mimic-chat/backend/internal/models"

	"gorm.io/gorm"
)

var (
	ErrUserNotFound = errors.New("user not found")
)

// UserService handles user-related operations
type UserService struct {
	db *gorm.DB
}

// NewUserService creates a new user service
func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

// UpsertUser performs the login upsert: insert-or-replace by id, full record,
// last writer wins. Calling it twice with identical input leaves identical
// stored state.
func (s *UserService) UpsertUser(user *models.User) error {
	return s.db.Save(user).Error
}

// ListUsers returns all users, unfiltered and unpaginated.
func (s *UserService) ListUsers() ([]models.User, error) {
	var users []models.User
	err := s.db.Order("created_at ASC").Find(&users).Error
	return users, err
}

// GetUser retrieves a user by id
func (s *UserService) GetUser(id string) (*models.User, error) {
	var user models.User
	result := s.db.First(&user, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, result.Error
	}
	return &user, nil
}
