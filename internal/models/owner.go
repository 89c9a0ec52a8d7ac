package models

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Owner is the person a reservation or waitlist entry belongs to.
type Owner struct {
	ID                   string    `json:"id"`
	FullName             string    `json:"full_name"`
	Email                string    `json:"email"`
	Phone                string    `json:"phone"`
	TelegramChatID       int64     `json:"telegram_chat_id"`
	CalendarSynced       bool      `json:"calendar_synced"`
	CalendarRefreshToken string    `json:"-"`
	Role                 Role      `json:"role"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// Contact is the subset of Owner the notifier needs.
func (o *Owner) Contact() Contact {
	return Contact{
		OwnerID:        o.ID,
		Name:           o.FullName,
		Email:          o.Email,
		Phone:          o.Phone,
		TelegramChatID: o.TelegramChatID,
	}
}

type Contact struct {
	OwnerID        string
	Name           string
	Email          string
	Phone          string
	TelegramChatID int64
}

// Actor is the identity performing a cancellation or administrative action.
type Actor struct {
	ID   string
	Role Role
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// SystemActor is used for actions the scheduler or a gateway signal performs.
var SystemActor = Actor{ID: "system", Role: RoleAdmin}
