package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"medibot/internal/service"
)

// Nombres de evento del canal realtime.
const (
	EventMessage     = "message"
	EventRecvMessage = "recv_message"
	EventError       = "error"
)

// Envelope es el marco JSON de cada frame del canal.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// MessagePayload es el payload del evento "message" del cliente.
type MessagePayload struct {
	Message string       `json:"message"`
	SID     string       `json:"sid"`
	File    *FilePayload `json:"file,omitempty"`
}

// FilePayload describe un adjunto enviado junto al mensaje.
type FilePayload struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Data string `json:"data"`
}

// Handler atiende conexiones websocket del relay de chat. Cada evento
// "message" se persiste y responde en una sola llamada al servicio, de modo
// que un mensaje entregado al cliente nunca queda fuera del historial.
type Handler struct {
	logger   *zap.Logger
	jwtServ  *service.JWTService
	chatServ *service.ChatService
	devMode  bool
}

func NewHandler(logger *zap.Logger, jwtServ *service.JWTService, chatServ *service.ChatService, devMode bool) *Handler {
	return &Handler{
		logger:   logger,
		jwtServ:  jwtServ,
		chatServ: chatServ,
		devMode:  devMode,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	claims, err := h.jwtServ.ParseAccessToken(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: h.devMode,
	})
	if err != nil {
		h.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	h.handleConnection(r.Context(), conn, claims.UserID)
}

// connectionState serializa escrituras concurrentes sobre una conexion.
type connectionState struct {
	writeMu sync.Mutex
}

func (h *Handler) handleConnection(ctx context.Context, conn *websocket.Conn, userID string) {
	h.logger.Info("relay connection opened", zap.String("user_id", userID))
	state := &connectionState{}

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			h.logger.Debug("relay read closed", zap.Error(err))
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			h.sendError(ctx, conn, state, "invalid message format")
			continue
		}

		switch env.Event {
		case EventMessage:
			var payload MessagePayload
			if err := json.Unmarshal(env.Data, &payload); err != nil {
				h.sendError(ctx, conn, state, "invalid message payload")
				continue
			}
			h.handleMessage(ctx, conn, state, userID, payload)
		default:
			h.sendError(ctx, conn, state, "unknown event: "+env.Event)
		}
	}
}

func (h *Handler) handleMessage(ctx context.Context, conn *websocket.Conn, state *connectionState, userID string, payload MessagePayload) {
	if payload.File != nil {
		// Los adjuntos los procesa el motor de respuestas, fuera de este repo.
		h.sendError(ctx, conn, state, "file attachments are not supported")
		return
	}

	reply, err := h.chatServ.Exchange(ctx, userID, payload.SID, payload.Message)
	if err != nil {
		h.logger.Warn("relay exchange failed",
			zap.Error(err),
			zap.String("user_id", userID),
			zap.String("session_id", payload.SID),
		)
		h.sendError(ctx, conn, state, "could not generate a reply")
		return
	}

	h.send(ctx, conn, state, EventRecvMessage, reply.Body)
}

func (h *Handler) send(ctx context.Context, conn *websocket.Conn, state *connectionState, event string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		h.logger.Error("relay marshal failed", zap.Error(err))
		return
	}
	frame, err := json.Marshal(Envelope{Event: event, Data: raw})
	if err != nil {
		h.logger.Error("relay marshal failed", zap.Error(err))
		return
	}

	state.writeMu.Lock()
	defer state.writeMu.Unlock()
	if err := conn.Write(ctx, websocket.MessageText, frame); err != nil {
		h.logger.Debug("relay write failed", zap.Error(err))
	}
}

func (h *Handler) sendError(ctx context.Context, conn *websocket.Conn, state *connectionState, msg string) {
	h.send(ctx, conn, state, EventError, msg)
}
