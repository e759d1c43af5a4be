package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"medibot/internal/bot"
	"medibot/internal/domain"
	"medibot/internal/repository"
)

var ErrSessionNotFound = errors.New("session not found")

// ChatService coordina sesiones de conversacion y sus mensajes.
type ChatService struct {
	logger    *zap.Logger
	sessions  repository.SessionRepository
	messages  repository.MessageRepository
	responder bot.Responder
}

func NewChatService(logger *zap.Logger, sessions repository.SessionRepository, messages repository.MessageRepository, responder bot.Responder) *ChatService {
	return &ChatService{
		logger:    logger,
		sessions:  sessions,
		messages:  messages,
		responder: responder,
	}
}

// StartSession crea una sesion nueva para el usuario. El titulo es opcional.
func (s *ChatService) StartSession(ctx context.Context, userID, title string) (domain.Session, error) {
	if _, err := uuid.Parse(strings.TrimSpace(userID)); err != nil {
		return domain.Session{}, fmt.Errorf("%w: invalid or missing userId", ErrValidation)
	}

	title = strings.TrimSpace(title)
	if title == "" {
		title = domain.DefaultSessionTitle
	}

	session := domain.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return domain.Session{}, err
	}
	return session, nil
}

// SaveMessage persiste un mensaje dentro de una sesion existente.
func (s *ChatService) SaveMessage(ctx context.Context, userID, sessionID, body, sender string) (domain.Message, error) {
	if _, err := uuid.Parse(strings.TrimSpace(sessionID)); err != nil {
		return domain.Message{}, fmt.Errorf("%w: invalid sessionId provided", ErrValidation)
	}
	body = strings.TrimSpace(body)
	if body == "" || sender == "" {
		return domain.Message{}, fmt.Errorf("%w: message and sender are required", ErrValidation)
	}
	if sender != domain.SenderUser && sender != domain.SenderBot {
		return domain.Message{}, fmt.Errorf("%w: unknown sender %q", ErrValidation, sender)
	}

	msg := domain.Message{
		ID:        uuid.NewString(),
		UserID:    userID,
		SessionID: sessionID,
		Body:      body,
		Sender:    sender,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return domain.Message{}, err
	}
	return msg, nil
}

// RenameSession cambia el titulo de la sesion.
func (s *ChatService) RenameSession(ctx context.Context, sessionID, title string) (domain.Session, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return domain.Session{}, fmt.Errorf("%w: title is required", ErrValidation)
	}
	session, err := s.sessions.UpdateTitle(ctx, sessionID, title)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Session{}, ErrSessionNotFound
		}
		return domain.Session{}, err
	}
	return session, nil
}

// ListSessions devuelve las sesiones del usuario, la mas reciente primero.
func (s *ChatService) ListSessions(ctx context.Context, userID string) ([]domain.Session, error) {
	return s.sessions.ListByUserID(ctx, userID)
}

// ListMessages devuelve los mensajes de la sesion en orden cronologico.
func (s *ChatService) ListMessages(ctx context.Context, sessionID string) ([]domain.Message, error) {
	return s.messages.ListBySessionID(ctx, sessionID)
}

// History devuelve todos los mensajes del usuario en orden cronologico.
func (s *ChatService) History(ctx context.Context, userID string) ([]domain.Message, error) {
	return s.messages.ListByUserID(ctx, userID)
}

// DeleteSession borra primero los mensajes y despues la sesion, de modo que
// una falla parcial nunca deja mensajes huerfanos sin sesion.
func (s *ChatService) DeleteSession(ctx context.Context, sessionID string) error {
	if err := s.messages.DeleteBySessionID(ctx, sessionID); err != nil {
		return err
	}
	return s.sessions.Delete(ctx, sessionID)
}

// Exchange persiste el mensaje del usuario, obtiene la respuesta del motor y
// la persiste como mensaje del bot antes de devolverla. Ambos efectos viven en
// una sola llamada para que un mensaje retransmitido nunca quede sin historial.
func (s *ChatService) Exchange(ctx context.Context, userID, sessionID, text string) (domain.Message, error) {
	if _, err := s.SaveMessage(ctx, userID, sessionID, text, domain.SenderUser); err != nil {
		return domain.Message{}, err
	}

	if s.responder == nil {
		return domain.Message{}, errors.New("responder not configured")
	}
	reply, err := s.responder.Reply(ctx, text)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("bot reply failed", zap.Error(err), zap.String("session_id", sessionID))
		}
		return domain.Message{}, err
	}

	botMsg, err := s.SaveMessage(ctx, userID, sessionID, reply, domain.SenderBot)
	if err != nil {
		return domain.Message{}, err
	}
	return botMsg, nil
}
