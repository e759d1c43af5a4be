package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/coder/websocket"

	"medibot/internal/ws"
)

// RelayConn es una conexion de cliente al relay de chat.
type RelayConn struct {
	conn *websocket.Conn
}

// DialRelay abre la conexion websocket autenticando con el access token.
func DialRelay(ctx context.Context, baseURL, token string) (*RelayConn, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse relay url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial relay: %w", err)
	}
	return &RelayConn{conn: conn}, nil
}

// Send envia un mensaje de usuario asociado a una sesion.
func (r *RelayConn) Send(ctx context.Context, sessionID, message string) error {
	payload, err := json.Marshal(ws.MessagePayload{Message: message, SID: sessionID})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	frame, err := json.Marshal(ws.Envelope{Event: ws.EventMessage, Data: payload})
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	return r.conn.Write(ctx, websocket.MessageText, frame)
}

// Recv bloquea hasta recibir la respuesta del bot. Un evento de error del
// servidor se devuelve como error.
func (r *RelayConn) Recv(ctx context.Context) (string, error) {
	for {
		_, data, err := r.conn.Read(ctx)
		if err != nil {
			return "", fmt.Errorf("read relay: %w", err)
		}

		var env ws.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			return "", fmt.Errorf("decode envelope: %w", err)
		}

		switch env.Event {
		case ws.EventRecvMessage:
			var reply string
			if err := json.Unmarshal(env.Data, &reply); err != nil {
				return "", fmt.Errorf("decode reply: %w", err)
			}
			return reply, nil
		case ws.EventError:
			var msg string
			_ = json.Unmarshal(env.Data, &msg)
			return "", errors.New(msg)
		default:
			// Eventos desconocidos se ignoran.
		}
	}
}

func (r *RelayConn) Close() error {
	return r.conn.Close(websocket.StatusNormalClosure, "")
}
