package email

import (
	"context"

	"go.uber.org/zap"
)

// LogClient writes messages to a zap logger instead of sending them. It is
// meant for local development only.
type LogClient struct {
	logger *zap.Logger
}

func NewLogClient(logger *zap.Logger) *LogClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogClient{logger: logger.Named("email")}
}

func (c *LogClient) Send(_ context.Context, recipient, subject, body string) error {
	c.logger.Info("email not sent (log mode)",
		zap.String("to", recipient),
		zap.String("subject", subject),
		zap.String("body", body),
	)
	return nil
}
