package email

import (
	"context"

	"github.com/google/uuid"

	"github.com/dropDatabas3/posguard/internal/observability/logger"
)

// LogDispatcher no envía nada; deja el mensaje en el log. Pensado para dev.
type LogDispatcher struct{}

func (LogDispatcher) Send(ctx context.Context, msg Message) (Receipt, error) {
	if err := msg.validate(); err != nil {
		return Receipt{}, err
	}
	id := uuid.NewString()
	logger.From(ctx).Info("email not sent (log driver)",
		logger.Component("email.log"),
		logger.String("message_id", id),
		logger.Email(msg.To),
		logger.String("subject", msg.Subject),
		logger.String("text", msg.Text),
	)
	return Receipt{MessageID: id}, nil
}
