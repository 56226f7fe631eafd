package models

import "time"

type User struct {
	ID             int64     `yaml:"id" json:"id"`
	Username       string    `yaml:"username" json:"username"`
	FullName       string    `yaml:"full_name" json:"full_name"`
	Email          string    `yaml:"email" json:"email"`
	Role           Role      `yaml:"role" json:"role"`
	TelegramChatID int64     `yaml:"telegram_chat_id" json:"telegram_chat_id,omitempty"`
	State          Lifecycle `yaml:"state" json:"state"`
	CreatedAt      time.Time `yaml:"-" json:"created_at"`
	UpdatedAt      time.Time `yaml:"-" json:"updated_at"`
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}
