package models

import (
	"database/sql"
	"time"
)

type User struct {
	ID          int64
	Username    string
	Email       string
	Role        string // admin, user
	ChatID      int64  // notification channel, 0 when the user opted out
	LastLogin   sql.NullTime
	LastBooking sql.NullTime
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Activity is an audit record of a user-visible core operation.
type Activity struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Type      string    `json:"type"`
	Data      string    `json:"data"` // free-form operation details
	CreatedAt time.Time `json:"created_at"`
}
