package domain

import "time"

// Valores permitidos para Message.Sender.
const (
	SenderUser = "user"
	SenderBot  = "bot"
)

type Message struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id"`
	Body      string    `json:"message"`
	Sender    string    `json:"sender"`
	CreatedAt time.Time `json:"timestamp"`
}
