package bot

import "context"

// Responder define la interfaz hacia el motor de respuestas del chatbot.
type Responder interface {
	Reply(ctx context.Context, message string) (string, error)
}
