package models

import (
	"time"
)

// PersonalityMode labels the tone the suggestion generator should mimic
// when drafting replies on a user's behalf.
type PersonalityMode string

const (
	PersonalityFriendly     PersonalityMode = "friendly"
	PersonalityProfessional PersonalityMode = "professional"
	PersonalityFunny        PersonalityMode = "funny"
	PersonalityRomantic     PersonalityMode = "romantic"
	PersonalityCustom       PersonalityMode = "custom"
)

// User represents a chat participant. Identity is self-asserted: login is a
// plain upsert keyed by the client-supplied id, with no credential check.
type User struct {
	ID               string          `gorm:"primaryKey" json:"id"`
	Name             string          `json:"name"`
	PhoneNumber      string          `json:"phoneNumber"`
	PhotoURL         string          `json:"photoURL,omitempty"`
	Status           string          `json:"status,omitempty"`
	PersonalityMode  PersonalityMode `json:"personalityMode,omitempty"`
	AutoReplyDefault bool            `json:"autoReplyEnabled"`
	CreatedAt        time.Time       `json:"-"`
	UpdatedAt        time.Time       `json:"-"`
}

// LoginRequest is the request structure for the login upsert
type LoginRequest struct {
	ID               string          `json:"id" binding:"required"`
	Name             string          `json:"name" binding:"required"`
	PhoneNumber      string          `json:"phoneNumber"`
	PhotoURL         string          `json:"photoURL"`
	Status           string          `json:"status"`
	PersonalityMode  PersonalityMode `json:"personalityMode"`
	AutoReplyDefault bool            `json:"autoReplyEnabled"`
}

// ToUser converts a login request into the stored user record. Re-login is a
// full replace, last writer wins.
func (r *LoginRequest) ToUser() User {
	mode := r.PersonalityMode
	if mode == "" {
		mode = PersonalityFriendly
	}
	return User{
		ID:               r.ID,
		Name:             r.Name,
		PhoneNumber:      r.PhoneNumber,
		PhotoURL:         r.PhotoURL,
		Status:           r.Status,
		PersonalityMode:  mode,
		AutoReplyDefault: r.AutoReplyDefault,
	}
}

// UserResponse is the stored user record plus presence data merged from the
// presence store. Presence is best-effort and may be absent.
type UserResponse struct {
	User
	IsOnline bool  `json:"isOnline"`
	LastSeen int64 `json:"lastSeen,omitempty"`
}
