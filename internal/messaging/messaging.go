package messaging

import (
	"context"
	"log/slog"
)

// Poster delivers system messages into a conversation owned by the external
// messaging collaborator. The core posts settlement outcomes here; transport
// and delivery guarantees are not its concern.
type Poster interface {
	PostSystemMessage(ctx context.Context, conversationID, body string) error
}

// LoggerPoster is a stub implementation that writes system messages to the
// logger. Production deployments swap in the messaging service's client.
type LoggerPoster struct {
	logger *slog.Logger
}

// NewLoggerPoster constructs a logging poster stub.
func NewLoggerPoster(logger *slog.Logger) *LoggerPoster {
	return &LoggerPoster{logger: logger}
}

// PostSystemMessage writes the message to the structured logger.
func (p *LoggerPoster) PostSystemMessage(_ context.Context, conversationID, body string) error {
	if p == nil || p.logger == nil {
		return nil
	}
	p.logger.Info("system message", "conversation_id", conversationID, "body", body)
	return nil
}
