package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"medibot/internal/domain"
)

type MessageRepository interface {
	Create(ctx context.Context, message domain.Message) error
	ListBySessionID(ctx context.Context, sessionID string) ([]domain.Message, error)
	ListByUserID(ctx context.Context, userID string) ([]domain.Message, error)
	DeleteBySessionID(ctx context.Context, sessionID string) error
}

type PgMessageRepository struct {
	pool *pgxpool.Pool
}

func NewPgMessageRepository(pool *pgxpool.Pool) *PgMessageRepository {
	return &PgMessageRepository{pool: pool}
}

func (r *PgMessageRepository) Create(ctx context.Context, message domain.Message) error {
	const query = `
		INSERT INTO messages (id, user_id, session_id, body, sender, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.pool.Exec(ctx, query,
		message.ID,
		message.UserID,
		message.SessionID,
		message.Body,
		message.Sender,
		message.CreatedAt,
	)
	return err
}

// ListBySessionID devuelve los mensajes de la sesion en orden cronologico.
func (r *PgMessageRepository) ListBySessionID(ctx context.Context, sessionID string) ([]domain.Message, error) {
	const query = `
		SELECT id, user_id, session_id, body, sender, created_at
		FROM messages
		WHERE session_id = $1
		ORDER BY created_at ASC
	`
	return r.list(ctx, query, sessionID)
}

// ListByUserID devuelve todo el historial del usuario en orden cronologico.
func (r *PgMessageRepository) ListByUserID(ctx context.Context, userID string) ([]domain.Message, error) {
	const query = `
		SELECT id, user_id, session_id, body, sender, created_at
		FROM messages
		WHERE user_id = $1
		ORDER BY created_at ASC
	`
	return r.list(ctx, query, userID)
}

func (r *PgMessageRepository) DeleteBySessionID(ctx context.Context, sessionID string) error {
	const query = `
		DELETE FROM messages
		WHERE session_id = $1
	`
	_, err := r.pool.Exec(ctx, query, sessionID)
	return err
}

func (r *PgMessageRepository) list(ctx context.Context, query, arg string) ([]domain.Message, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var msg domain.Message
		err = rows.Scan(
			&msg.ID,
			&msg.UserID,
			&msg.SessionID,
			&msg.Body,
			&msg.Sender,
			&msg.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return messages, nil
}
