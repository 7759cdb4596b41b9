// README: Fan-out across every configured notification channel.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"ordertrack/internal/logger"
	"ordertrack/internal/metrics"
	"ordertrack/internal/modules/order"
)

type Channel struct {
	Name     string
	Notifier order.Notifier
}

// Multi tries every channel in turn. One channel failing does not stop the others.
type Multi struct {
	channels []Channel
	log      *logrus.Entry
}

func NewMulti(log *logrus.Entry, channels ...Channel) *Multi {
	if log == nil {
		log = logger.New("notify")
	}
	return &Multi{channels: channels, log: log}
}

func (m *Multi) Len() int {
	return len(m.channels)
}

func (m *Multi) Notify(ctx context.Context, note order.Notification) error {
	var errs []error
	for _, ch := range m.channels {
		err := ch.Notifier.Notify(ctx, note)
		switch {
		case err == nil:
			metrics.NotificationsTotal.WithLabelValues(ch.Name, "sent").Inc()
			m.log.WithFields(logrus.Fields{
				"channel":  ch.Name,
				"order_id": note.Order.ID,
				"status":   note.Event.Status,
			}).Debug("notification sent")
		case errors.Is(err, ErrNoRecipient):
			metrics.NotificationsTotal.WithLabelValues(ch.Name, "skipped").Inc()
		default:
			metrics.NotificationsTotal.WithLabelValues(ch.Name, "failed").Inc()
			errs = append(errs, fmt.Errorf("%s: %w", ch.Name, err))
		}
	}
	return errors.Join(errs...)
}
