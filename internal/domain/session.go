package domain

import "time"

// DefaultSessionTitle se usa cuando el cliente no envia titulo.
const DefaultSessionTitle = "Untitled Chat"

type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}
